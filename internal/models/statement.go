package models

import "time"

// PayoutStatement is an immutable snapshot of one payout computation. A
// re-run that changes the result writes a new statement referencing its
// predecessor via SupersedesStatementID; rows are never mutated in place.
type PayoutStatement struct {
	ID                    string    `json:"id"`
	EpochID               string    `json:"epochId"`
	AllocationSetHash     string    `json:"allocationSetHash"`
	PoolTotalCredits      int64     `json:"poolTotalCredits"`
	PayoutsJSON           []byte    `json:"payoutsJson"`
	SupersedesStatementID *string   `json:"supersedesStatementId,omitempty"`
	CreatedAt             time.Time `json:"createdAt"`
}

// StatementSignature is one party's attestation over a statement.
// Signatures append independently and never block statement creation.
type StatementSignature struct {
	ID          string    `json:"id"`
	StatementID string    `json:"statementId"`
	Signer      string    `json:"signer"`
	Signature   string    `json:"signature"`
	SignedAt    time.Time `json:"signedAt"`
}
