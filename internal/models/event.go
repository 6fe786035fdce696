package models

import "time"

// ActivityEvent is one immutable row in the append-only activity log.
// Events are never updated or deleted; corrections happen downstream in
// curation, never here.
type ActivityEvent struct {
	ID              string    `json:"id"` // source-derived, stable across re-pulls
	NodeID          string    `json:"nodeId"`
	ScopeID         string    `json:"scopeId"`
	Source          string    `json:"source"`
	EventType       string    `json:"eventType"`
	PlatformUserID  string    `json:"platformUserId"`
	PayloadHash     string    `json:"payloadHash"`
	Producer        string    `json:"producer"`
	ProducerVersion string    `json:"producerVersion"`
	EventTime       time.Time `json:"eventTime"`
	RetrievedAt     time.Time `json:"retrievedAt"`
	IngestedAt      time.Time `json:"ingestedAt"`
}

// SourceCursor tracks the furthest-advanced position seen for one
// (node, scope, source, stream, ref) tuple. Writes only ever advance it.
type SourceCursor struct {
	NodeID    string    `json:"nodeId"`
	ScopeID   string    `json:"scopeId"`
	Source    string    `json:"source"`
	Stream    string    `json:"stream"`
	SourceRef string    `json:"sourceRef"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updatedAt"`
}
