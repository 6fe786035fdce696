package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/epoch-ledger/internal/models"
	"github.com/epoch-ledger/internal/types"
)

// RunRepository handles schedule run rows. (schedule_id, scheduled_for) is
// unique, which is what makes duplicate tick deliveries harmless.
type RunRepository struct {
	db *PostgresDB
}

// NewRunRepository creates a new run repository
func NewRunRepository(db *PostgresDB) *RunRepository {
	return &RunRepository{db: db}
}

// CreateRun inserts a run row. Reports false when a run for the same
// (schedule, scheduledFor) already exists.
func (r *RunRepository) CreateRun(ctx context.Context, run *models.ScheduleRun) (bool, error) {
	query := `
		INSERT INTO schedule_runs (id, schedule_id, scheduled_for, status, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (schedule_id, scheduled_for) DO NOTHING
	`

	result, err := r.db.Pool().Exec(ctx, query,
		run.ID, run.ScheduleID, run.ScheduledFor, run.Status, run.CreatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to create schedule run: %w", err)
	}
	return result.RowsAffected() > 0, nil
}

// MarkRunning flips a run to running with its start time
func (r *RunRepository) MarkRunning(ctx context.Context, runID string, startedAt time.Time) error {
	query := `
		UPDATE schedule_runs
		SET status = $2, started_at = $3
		WHERE id = $1
	`

	result, err := r.db.Pool().Exec(ctx, query, runID, types.RunRunning, startedAt)
	if err != nil {
		return fmt.Errorf("failed to mark run running: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("no run found with id %s", runID)
	}
	return nil
}

// MarkFinished records the terminal status of a run
func (r *RunRepository) MarkFinished(ctx context.Context, runID string, status types.RunStatus, errorMessage *string) error {
	query := `
		UPDATE schedule_runs
		SET status = $2, error_message = $3, finished_at = now()
		WHERE id = $1
	`

	result, err := r.db.Pool().Exec(ctx, query, runID, status, errorMessage)
	if err != nil {
		return fmt.Errorf("failed to mark run finished: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("no run found with id %s", runID)
	}
	return nil
}

// ListRuns retrieves recent runs for a schedule, newest first
func (r *RunRepository) ListRuns(ctx context.Context, scheduleID string, limit int) ([]*models.ScheduleRun, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, schedule_id, scheduled_for, status, started_at, finished_at, error_message, created_at
		FROM schedule_runs
		WHERE schedule_id = $1
		ORDER BY scheduled_for DESC
		LIMIT $2
	`

	rows, err := r.db.Pool().Query(ctx, query, scheduleID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list schedule runs: %w", err)
	}
	defer rows.Close()

	var runs []*models.ScheduleRun
	for rows.Next() {
		var run models.ScheduleRun
		err := rows.Scan(
			&run.ID, &run.ScheduleID, &run.ScheduledFor, &run.Status,
			&run.StartedAt, &run.FinishedAt, &run.ErrorMessage, &run.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan schedule run: %w", err)
		}
		runs = append(runs, &run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating schedule runs: %w", err)
	}
	return runs, nil
}
