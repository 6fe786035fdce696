package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/epoch-ledger/internal/logging"
	"github.com/epoch-ledger/internal/models"
	"github.com/epoch-ledger/internal/queue"
	"github.com/epoch-ledger/internal/types"
)

// ScheduleStore is the persistence surface for schedules.
type ScheduleStore interface {
	CreateSchedule(ctx context.Context, s *models.Schedule) error
	GetSchedule(ctx context.Context, scheduleID string) (*models.Schedule, error)
	UpdateSchedule(ctx context.Context, s *models.Schedule) error
	DeleteSchedule(ctx context.Context, scheduleID string) error
	// UpdateRunPointers advances lastRunAt/nextRunAt after a tick.
	UpdateRunPointers(ctx context.Context, scheduleID string, lastRunAt *time.Time, nextRunAt time.Time) error
	// ListStaleSchedules returns enabled schedules whose nextRunAt is
	// before now.
	ListStaleSchedules(ctx context.Context, now time.Time) ([]*models.Schedule, error)
	ListSchedulesByOwner(ctx context.Context, ownerUserID string) ([]*models.Schedule, error)
}

// Manager owns schedule CRUD and the execution grant tied to each schedule.
type Manager struct {
	schedules ScheduleStore
	grants    GrantStore
	queue     *queue.Queue
	logger    *logging.Logger
}

// NewManager creates a schedule manager.
func NewManager(schedules ScheduleStore, grants GrantStore, q *queue.Queue, logger *logging.Logger) *Manager {
	return &Manager{schedules: schedules, grants: grants, queue: q, logger: logger}
}

// CreateScheduleParams describes a new schedule.
type CreateScheduleParams struct {
	GraphID  string
	Input    []byte
	Cron     string
	Timezone string
}

// CreateSchedule creates the execution grant, the schedule row and the
// first queued tick as one logical unit. If anything after grant creation
// fails the grant is deleted, not revoked: a revoked grant is audit
// history, an orphaned one is a dangling authorization.
func (m *Manager) CreateSchedule(ctx context.Context, callerUserID, billingAccountID string, params CreateScheduleParams) (*models.Schedule, error) {
	firstRun, err := NextRun(params.Cron, params.Timezone, time.Now())
	if err != nil {
		return nil, err
	}

	grant := &models.ExecutionGrant{
		ID:               uuid.New().String(),
		UserID:           callerUserID,
		BillingAccountID: billingAccountID,
		Scopes:           []string{GrantScopeForGraph(params.GraphID)},
		CreatedAt:        time.Now().UTC(),
	}
	if err := m.grants.CreateGrant(ctx, grant); err != nil {
		return nil, fmt.Errorf("failed to create execution grant: %w", err)
	}

	now := time.Now().UTC()
	sched := &models.Schedule{
		ID:               uuid.New().String(),
		OwnerUserID:      callerUserID,
		GraphID:          params.GraphID,
		Input:            params.Input,
		Cron:             params.Cron,
		Timezone:         params.Timezone,
		Enabled:          true,
		NextRunAt:        &firstRun,
		ExecutionGrantID: grant.ID,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := m.schedules.CreateSchedule(ctx, sched); err != nil {
		m.cleanupGrant(ctx, grant.ID)
		return nil, fmt.Errorf("failed to create schedule: %w", err)
	}

	if err := m.enqueueTick(ctx, sched, firstRun); err != nil {
		if delErr := m.schedules.DeleteSchedule(ctx, sched.ID); delErr != nil {
			m.logger.WithError(delErr).WithField("scheduleId", sched.ID).Error("failed to roll back schedule after enqueue failure")
		}
		m.cleanupGrant(ctx, grant.ID)
		return nil, fmt.Errorf("failed to enqueue first run: %w", err)
	}

	return sched, nil
}

// UpdateScheduleParams holds the mutable schedule fields. Nil means leave
// unchanged.
type UpdateScheduleParams struct {
	Cron     *string
	Timezone *string
	Enabled  *bool
	Input    []byte
}

// UpdateSchedule applies the changes and recomputes nextRunAt whenever the
// cadence or enablement changed.
func (m *Manager) UpdateSchedule(ctx context.Context, callerUserID, scheduleID string, params UpdateScheduleParams) (*models.Schedule, error) {
	sched, err := m.ownedSchedule(ctx, callerUserID, scheduleID)
	if err != nil {
		return nil, err
	}

	cadenceChanged := false
	if params.Cron != nil && *params.Cron != sched.Cron {
		sched.Cron = *params.Cron
		cadenceChanged = true
	}
	if params.Timezone != nil && *params.Timezone != sched.Timezone {
		sched.Timezone = *params.Timezone
		cadenceChanged = true
	}
	if params.Enabled != nil && *params.Enabled != sched.Enabled {
		sched.Enabled = *params.Enabled
		cadenceChanged = true
	}
	if params.Input != nil {
		sched.Input = params.Input
	}

	if cadenceChanged {
		next, err := NextRun(sched.Cron, sched.Timezone, time.Now())
		if err != nil {
			return nil, err
		}
		sched.NextRunAt = &next
	}
	sched.UpdatedAt = time.Now().UTC()

	if err := m.schedules.UpdateSchedule(ctx, sched); err != nil {
		return nil, fmt.Errorf("failed to update schedule: %w", err)
	}

	if cadenceChanged && sched.Enabled && sched.NextRunAt != nil {
		if err := m.enqueueTick(ctx, sched, *sched.NextRunAt); err != nil {
			return nil, fmt.Errorf("failed to enqueue run after update: %w", err)
		}
	}

	return sched, nil
}

// DeleteSchedule removes the schedule and revokes its grant. The grant row
// survives as audit history.
func (m *Manager) DeleteSchedule(ctx context.Context, callerUserID, scheduleID string) error {
	sched, err := m.ownedSchedule(ctx, callerUserID, scheduleID)
	if err != nil {
		return err
	}

	if err := m.schedules.DeleteSchedule(ctx, sched.ID); err != nil {
		return fmt.Errorf("failed to delete schedule: %w", err)
	}
	if err := m.grants.RevokeGrant(ctx, sched.ExecutionGrantID); err != nil {
		return fmt.Errorf("failed to revoke execution grant: %w", err)
	}
	return nil
}

// GetSchedule returns a schedule the caller owns.
func (m *Manager) GetSchedule(ctx context.Context, callerUserID, scheduleID string) (*models.Schedule, error) {
	return m.ownedSchedule(ctx, callerUserID, scheduleID)
}

// ListSchedules returns every schedule the caller owns.
func (m *Manager) ListSchedules(ctx context.Context, callerUserID string) ([]*models.Schedule, error) {
	scheds, err := m.schedules.ListSchedulesByOwner(ctx, callerUserID)
	if err != nil {
		return nil, fmt.Errorf("failed to list schedules: %w", err)
	}
	return scheds, nil
}

func (m *Manager) ownedSchedule(ctx context.Context, callerUserID, scheduleID string) (*models.Schedule, error) {
	sched, err := m.schedules.GetSchedule(ctx, scheduleID)
	if err != nil {
		return nil, fmt.Errorf("failed to load schedule %s: %w", scheduleID, err)
	}
	if sched == nil {
		return nil, types.NewErrorf(types.KindNotFound, types.CodeScheduleNotFound,
			"schedule %s not found", scheduleID)
	}
	if sched.OwnerUserID != callerUserID {
		return nil, types.NewErrorf(types.KindAuthorization, types.CodeAccessDenied,
			"caller does not own schedule %s", scheduleID)
	}
	return sched, nil
}

func (m *Manager) enqueueTick(ctx context.Context, sched *models.Schedule, runAt time.Time) error {
	queueName := sched.ID
	return m.queue.Enqueue(ctx, queue.EnqueueParams{
		TaskID:    TaskExecuteSchedule,
		Payload:   ExecutePayload{ScheduleID: sched.ID, ScheduledFor: runAt},
		RunAt:     runAt,
		JobKey:    ExecuteJobKey(sched.ID, runAt),
		QueueName: &queueName,
	})
}

func (m *Manager) cleanupGrant(ctx context.Context, grantID string) {
	if err := m.grants.DeleteGrant(ctx, grantID); err != nil {
		m.logger.WithError(err).WithField("grantId", grantID).Error("failed to delete orphaned execution grant")
	}
}
