package models

import (
	"time"

	"github.com/epoch-ledger/internal/types"
)

// QueueJob is one durable job row. JobKey deduplicates: re-enqueueing the
// same key while the job is still pending replaces the pending row instead
// of creating a second one. QueueName serializes: at most one job per queue
// name runs at a time.
type QueueJob struct {
	ID           string          `json:"id"`
	TaskID       string          `json:"taskId"`
	Payload      []byte          `json:"payload"`
	RunAt        time.Time       `json:"runAt"`
	JobKey       string          `json:"jobKey"`
	QueueName    *string         `json:"queueName,omitempty"`
	Status       types.JobStatus `json:"status"`
	Attempts     int             `json:"attempts"`
	LastError    *string         `json:"lastError,omitempty"`
	LockedBy     *string         `json:"lockedBy,omitempty"`
	LockedUntil  *time.Time      `json:"lockedUntil,omitempty"`
	CreatedAt    time.Time       `json:"createdAt"`
	CompletedAt  *time.Time      `json:"completedAt,omitempty"`
}
