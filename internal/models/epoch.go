package models

import (
	"time"

	"github.com/epoch-ledger/internal/types"
)

// Epoch represents one fixed calendar window over which activity is
// aggregated into a single payout pool. At most one open epoch exists per
// (node, scope) pair; the unique partial index in storage enforces that.
type Epoch struct {
	ID               string            `json:"id"`
	NodeID           string            `json:"nodeId"`
	ScopeID          string            `json:"scopeId"`
	Status           types.EpochStatus `json:"status"`
	PeriodStart      time.Time         `json:"periodStart"`
	PeriodEnd        time.Time         `json:"periodEnd"`
	WeightConfig     []byte            `json:"weightConfig"`
	PoolTotalCredits *int64            `json:"poolTotalCredits,omitempty"`
	OpenedAt         time.Time         `json:"openedAt"`
	ClosedAt         *time.Time        `json:"closedAt,omitempty"`
}

// PoolComponent is a named credit contribution to an epoch's pool. An epoch
// cannot close until every required component has been recorded.
type PoolComponent struct {
	ID               string    `json:"id"`
	EpochID          string    `json:"epochId"`
	ComponentID      string    `json:"componentId"`
	AlgorithmVersion string    `json:"algorithmVersion"`
	AmountCredits    int64     `json:"amountCredits"`
	InputsJSON       []byte    `json:"inputsJson"`
	EvidenceRef      *string   `json:"evidenceRef,omitempty"`
	CreatedAt        time.Time `json:"createdAt"`
}
