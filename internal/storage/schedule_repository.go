package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/epoch-ledger/internal/models"
)

// ScheduleRepository handles schedule rows
type ScheduleRepository struct {
	db *PostgresDB
}

// NewScheduleRepository creates a new schedule repository
func NewScheduleRepository(db *PostgresDB) *ScheduleRepository {
	return &ScheduleRepository{db: db}
}

const scheduleColumns = `id, owner_user_id, graph_id, input, cron, timezone, enabled,
	next_run_at, last_run_at, execution_grant_id, created_at, updated_at`

// CreateSchedule inserts a new schedule
func (r *ScheduleRepository) CreateSchedule(ctx context.Context, s *models.Schedule) error {
	query := `
		INSERT INTO schedules (` + scheduleColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err := r.db.Pool().Exec(ctx, query,
		s.ID, s.OwnerUserID, s.GraphID, s.Input, s.Cron, s.Timezone, s.Enabled,
		s.NextRunAt, s.LastRunAt, s.ExecutionGrantID, s.CreatedAt, s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create schedule: %w", err)
	}
	return nil
}

// GetSchedule retrieves a schedule by ID, nil when not found
func (r *ScheduleRepository) GetSchedule(ctx context.Context, scheduleID string) (*models.Schedule, error) {
	query := `SELECT ` + scheduleColumns + ` FROM schedules WHERE id = $1`

	s, err := scanSchedule(r.db.Pool().QueryRow(ctx, query, scheduleID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get schedule: %w", err)
	}
	return s, nil
}

// UpdateSchedule persists mutable schedule fields
func (r *ScheduleRepository) UpdateSchedule(ctx context.Context, s *models.Schedule) error {
	query := `
		UPDATE schedules
		SET input = $2, cron = $3, timezone = $4, enabled = $5,
		    next_run_at = $6, last_run_at = $7, updated_at = $8
		WHERE id = $1
	`

	result, err := r.db.Pool().Exec(ctx, query,
		s.ID, s.Input, s.Cron, s.Timezone, s.Enabled,
		s.NextRunAt, s.LastRunAt, s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update schedule: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("no schedule found with id %s", s.ID)
	}
	return nil
}

// DeleteSchedule removes a schedule. Run history is kept: schedule_runs
// carries no foreign key to schedules, so its rows outlive the parent.
func (r *ScheduleRepository) DeleteSchedule(ctx context.Context, scheduleID string) error {
	query := `DELETE FROM schedules WHERE id = $1`

	result, err := r.db.Pool().Exec(ctx, query, scheduleID)
	if err != nil {
		return fmt.Errorf("failed to delete schedule: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("no schedule found with id %s", scheduleID)
	}
	return nil
}

// UpdateRunPointers advances lastRunAt/nextRunAt after a tick
func (r *ScheduleRepository) UpdateRunPointers(ctx context.Context, scheduleID string, lastRunAt *time.Time, nextRunAt time.Time) error {
	query := `
		UPDATE schedules
		SET last_run_at = COALESCE($2, last_run_at), next_run_at = $3, updated_at = now()
		WHERE id = $1
	`

	_, err := r.db.Pool().Exec(ctx, query, scheduleID, lastRunAt, nextRunAt)
	if err != nil {
		return fmt.Errorf("failed to update run pointers: %w", err)
	}
	return nil
}

// ListStaleSchedules returns enabled schedules whose next run is overdue
func (r *ScheduleRepository) ListStaleSchedules(ctx context.Context, now time.Time) ([]*models.Schedule, error) {
	query := `
		SELECT ` + scheduleColumns + `
		FROM schedules
		WHERE enabled = true AND next_run_at IS NOT NULL AND next_run_at < $1
		ORDER BY next_run_at
	`

	return r.list(ctx, query, now)
}

// ListSchedulesByOwner retrieves all schedules owned by a user
func (r *ScheduleRepository) ListSchedulesByOwner(ctx context.Context, ownerUserID string) ([]*models.Schedule, error) {
	query := `
		SELECT ` + scheduleColumns + `
		FROM schedules
		WHERE owner_user_id = $1
		ORDER BY created_at DESC
	`

	return r.list(ctx, query, ownerUserID)
}

func (r *ScheduleRepository) list(ctx context.Context, query string, args ...interface{}) ([]*models.Schedule, error) {
	rows, err := r.db.Pool().Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list schedules: %w", err)
	}
	defer rows.Close()

	var schedules []*models.Schedule
	for rows.Next() {
		s, err := scanSchedule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan schedule: %w", err)
		}
		schedules = append(schedules, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating schedules: %w", err)
	}
	return schedules, nil
}

func scanSchedule(row pgx.Row) (*models.Schedule, error) {
	var s models.Schedule
	err := row.Scan(
		&s.ID, &s.OwnerUserID, &s.GraphID, &s.Input, &s.Cron, &s.Timezone, &s.Enabled,
		&s.NextRunAt, &s.LastRunAt, &s.ExecutionGrantID, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}
