package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/epoch-ledger/internal/models"
	"github.com/epoch-ledger/internal/types"
)

// QueueJobRepository is the durable job queue. Two SQL shapes carry its
// semantics: the partial-unique upsert on job_key (replace-while-pending)
// and the dequeue CTE that skips queue names with a running job.
type QueueJobRepository struct {
	db *PostgresDB
}

// NewQueueJobRepository creates a new queue job repository
func NewQueueJobRepository(db *PostgresDB) *QueueJobRepository {
	return &QueueJobRepository{db: db}
}

// UpsertByJobKey inserts the job, or replaces the payload, run time and
// queue of a still-pending job with the same key. A key whose job already
// started conflicts with nothing and inserts a fresh row.
func (r *QueueJobRepository) UpsertByJobKey(ctx context.Context, job *models.QueueJob) error {
	query := `
		INSERT INTO queue_jobs (id, task_id, payload, run_at, job_key, queue_name, status, attempts, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 0, $8)
		ON CONFLICT (job_key) WHERE status = 'pending'
		DO UPDATE SET
			task_id = EXCLUDED.task_id,
			payload = EXCLUDED.payload,
			run_at = EXCLUDED.run_at,
			queue_name = EXCLUDED.queue_name
	`

	_, err := r.db.Pool().Exec(ctx, query,
		job.ID, job.TaskID, job.Payload, job.RunAt, job.JobKey, job.QueueName,
		types.JobPending, job.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to enqueue job: %w", err)
	}
	return nil
}

// Dequeue claims the next due pending job. Jobs whose queue name has a
// running job are skipped, serializing each queue. FOR UPDATE SKIP LOCKED
// keeps concurrent workers from fighting over the same row.
func (r *QueueJobRepository) Dequeue(ctx context.Context, workerID string, lockDuration time.Duration) (*models.QueueJob, error) {
	query := `
		WITH next_job AS (
			SELECT id
			FROM queue_jobs j
			WHERE j.status = 'pending'
			  AND j.run_at <= now()
			  AND (j.queue_name IS NULL OR NOT EXISTS (
			      SELECT 1 FROM queue_jobs running
			      WHERE running.queue_name = j.queue_name
			        AND running.status = 'running'
			  ))
			ORDER BY j.run_at
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		UPDATE queue_jobs
		SET status = 'running',
		    attempts = attempts + 1,
		    locked_by = $1,
		    locked_until = now() + $2
		FROM next_job
		WHERE queue_jobs.id = next_job.id
		RETURNING queue_jobs.id, queue_jobs.task_id, queue_jobs.payload, queue_jobs.run_at,
		          queue_jobs.job_key, queue_jobs.queue_name, queue_jobs.status,
		          queue_jobs.attempts, queue_jobs.last_error, queue_jobs.locked_by,
		          queue_jobs.locked_until, queue_jobs.created_at, queue_jobs.completed_at
	`

	var job models.QueueJob
	err := r.db.Pool().QueryRow(ctx, query, workerID, lockDuration).Scan(
		&job.ID, &job.TaskID, &job.Payload, &job.RunAt,
		&job.JobKey, &job.QueueName, &job.Status,
		&job.Attempts, &job.LastError, &job.LockedBy,
		&job.LockedUntil, &job.CreatedAt, &job.CompletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to dequeue job: %w", err)
	}
	return &job, nil
}

// Complete marks a job done
func (r *QueueJobRepository) Complete(ctx context.Context, jobID string) error {
	query := `
		UPDATE queue_jobs
		SET status = 'completed', completed_at = now(), locked_by = NULL, locked_until = NULL
		WHERE id = $1
	`

	result, err := r.db.Pool().Exec(ctx, query, jobID)
	if err != nil {
		return fmt.Errorf("failed to complete job: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("no job found with id %s", jobID)
	}
	return nil
}

// Fail marks a job failed with its error message
func (r *QueueJobRepository) Fail(ctx context.Context, jobID string, errMsg string) error {
	query := `
		UPDATE queue_jobs
		SET status = 'failed', last_error = $2, completed_at = now(), locked_by = NULL, locked_until = NULL
		WHERE id = $1
	`

	result, err := r.db.Pool().Exec(ctx, query, jobID, errMsg)
	if err != nil {
		return fmt.Errorf("failed to fail job: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("no job found with id %s", jobID)
	}
	return nil
}

// ReleaseExpiredLocks returns jobs whose lock expired to pending so another
// worker can retry them. Called by the reconciler sweep.
func (r *QueueJobRepository) ReleaseExpiredLocks(ctx context.Context, now time.Time) (int64, error) {
	query := `
		UPDATE queue_jobs
		SET status = 'pending', locked_by = NULL, locked_until = NULL
		WHERE status = 'running' AND locked_until IS NOT NULL AND locked_until < $1
	`

	result, err := r.db.Pool().Exec(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("failed to release expired locks: %w", err)
	}
	return result.RowsAffected(), nil
}
