// Package queue provides the durable, idempotent job queue the scheduler
// runs on. Job keys deduplicate submissions; queue names serialize
// execution.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/epoch-ledger/internal/models"
	"github.com/epoch-ledger/internal/types"
)

// JobStore is the persistence surface for queue jobs.
type JobStore interface {
	// UpsertByJobKey inserts the job, or replaces the payload, run time and
	// queue of an existing still-pending job with the same key. Last
	// enqueue wins; a key whose job already started inserts a fresh row.
	UpsertByJobKey(ctx context.Context, job *models.QueueJob) error
	// Dequeue claims the next due pending job, skipping any job whose
	// queue name currently has a running job. Returns nil when nothing is
	// eligible.
	Dequeue(ctx context.Context, workerID string, lockDuration time.Duration) (*models.QueueJob, error)
	Complete(ctx context.Context, jobID string) error
	Fail(ctx context.Context, jobID string, errMsg string) error
}

// EnqueueParams describes one job submission.
type EnqueueParams struct {
	TaskID    string
	Payload   interface{}
	RunAt     time.Time
	JobKey    string
	QueueName *string
}

// Queue enqueues durable jobs.
type Queue struct {
	store JobStore
}

// NewQueue creates a queue over the given store.
func NewQueue(store JobStore) *Queue {
	return &Queue{store: store}
}

// Enqueue submits a job. Two submissions with the same job key while the
// first is still pending collapse into one logical job with the later
// submission's payload and run time.
func (q *Queue) Enqueue(ctx context.Context, params EnqueueParams) error {
	if params.TaskID == "" {
		return fmt.Errorf("task id is required")
	}
	if params.JobKey == "" {
		return fmt.Errorf("job key is required")
	}

	payload, err := json.Marshal(params.Payload)
	if err != nil {
		return fmt.Errorf("failed to marshal job payload: %w", err)
	}

	runAt := params.RunAt
	if runAt.IsZero() {
		runAt = time.Now().UTC()
	}

	job := &models.QueueJob{
		ID:        uuid.New().String(),
		TaskID:    params.TaskID,
		Payload:   payload,
		RunAt:     runAt,
		JobKey:    params.JobKey,
		QueueName: params.QueueName,
		Status:    types.JobPending,
		CreatedAt: time.Now().UTC(),
	}

	if err := q.store.UpsertByJobKey(ctx, job); err != nil {
		return fmt.Errorf("failed to enqueue job %s: %w", params.JobKey, err)
	}
	return nil
}
