package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/epoch-ledger/internal/logging"
	"github.com/epoch-ledger/internal/models"
	"github.com/epoch-ledger/internal/queue"
	"github.com/epoch-ledger/internal/types"
)

// RunStore is the persistence surface for schedule run records.
type RunStore interface {
	// CreateRun inserts the run; (scheduleId, scheduledFor) is unique, and
	// inserting an existing pair is a no-op that reports false.
	CreateRun(ctx context.Context, run *models.ScheduleRun) (bool, error)
	MarkRunning(ctx context.Context, runID string, startedAt time.Time) error
	MarkFinished(ctx context.Context, runID string, status types.RunStatus, errorMessage *string) error
	ListRuns(ctx context.Context, scheduleID string, limit int) ([]*models.ScheduleRun, error)
}

// WorkUnit is the actual work one schedule tick performs.
type WorkUnit func(ctx context.Context, sched *models.Schedule) error

// ExecutePayload is the queue payload for one schedule tick.
type ExecutePayload struct {
	ScheduleID   string    `json:"scheduleId"`
	ScheduledFor time.Time `json:"scheduledFor"`
}

// Executor runs one schedule tick end to end: record the run, validate the
// grant, do the work, and always line up the next tick. The heartbeat
// outranks any single execution: a failing grant skips the run but never
// stops the schedule from ticking.
type Executor struct {
	schedules ScheduleStore
	runs      RunStore
	validator *GrantValidator
	queue     *queue.Queue
	work      WorkUnit
	logger    *logging.Logger
}

// NewExecutor creates a schedule executor.
func NewExecutor(schedules ScheduleStore, runs RunStore, validator *GrantValidator, q *queue.Queue, work WorkUnit, logger *logging.Logger) *Executor {
	return &Executor{schedules: schedules, runs: runs, validator: validator, queue: q, work: work, logger: logger}
}

// HandleExecuteJob is the queue handler for TaskExecuteSchedule.
func (e *Executor) HandleExecuteJob(ctx context.Context, payload []byte) error {
	var p ExecutePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("failed to decode execute payload: %w", err)
	}
	return e.Execute(ctx, p)
}

// Execute performs one tick for the payload's schedule.
func (e *Executor) Execute(ctx context.Context, p ExecutePayload) error {
	logger := e.logger.WithFields(map[string]interface{}{
		"scheduleId":   p.ScheduleID,
		"scheduledFor": p.ScheduledFor.UTC().Format(time.RFC3339),
	})

	sched, err := e.schedules.GetSchedule(ctx, p.ScheduleID)
	if err != nil {
		return fmt.Errorf("failed to load schedule %s: %w", p.ScheduleID, err)
	}
	if sched == nil {
		logger.Info("schedule no longer exists, skipping tick")
		return nil
	}
	if !sched.Enabled {
		logger.Info("schedule disabled, skipping tick")
		return nil
	}

	run := &models.ScheduleRun{
		ID:           uuid.New().String(),
		ScheduleID:   sched.ID,
		ScheduledFor: p.ScheduledFor,
		Status:       types.RunPending,
		CreatedAt:    time.Now().UTC(),
	}
	created, err := e.runs.CreateRun(ctx, run)
	if err != nil {
		return fmt.Errorf("failed to record schedule run: %w", err)
	}
	if !created {
		// This slot already ran (at-least-once delivery); only make sure
		// the heartbeat continues.
		logger.Info("run already recorded for this slot")
		return e.scheduleNextTick(ctx, sched, logger)
	}

	if _, err := e.validator.ValidateForGraph(ctx, sched.ExecutionGrantID, sched.GraphID); err != nil {
		// Bad grant: the run is skipped, not errored, and it never
		// started. The next tick still gets enqueued below.
		reason := err.Error()
		logger.WithField("reason", reason).Warn("grant validation failed, skipping run")
		if markErr := e.runs.MarkFinished(ctx, run.ID, types.RunSkipped, &reason); markErr != nil {
			logger.WithError(markErr).Error("failed to mark run skipped")
		}
		return e.scheduleNextTick(ctx, sched, logger)
	}

	startedAt := time.Now().UTC()
	if err := e.runs.MarkRunning(ctx, run.ID, startedAt); err != nil {
		return fmt.Errorf("failed to mark run running: %w", err)
	}

	workErr := e.work(ctx, sched)
	if workErr != nil {
		msg := truncateError(workErr.Error())
		logger.WithError(workErr).Error("schedule work failed")
		if markErr := e.runs.MarkFinished(ctx, run.ID, types.RunError, &msg); markErr != nil {
			logger.WithError(markErr).Error("failed to mark run errored")
		}
	} else {
		if markErr := e.runs.MarkFinished(ctx, run.ID, types.RunSuccess, nil); markErr != nil {
			logger.WithError(markErr).Error("failed to mark run succeeded")
		}
	}

	sched.LastRunAt = &startedAt
	return e.scheduleNextTick(ctx, sched, logger)
}

// scheduleNextTick computes the next fire time and enqueues it. The job key
// collapses duplicate enqueues for the same slot; the queue name serializes
// this schedule's runs so overlapping ticks cannot interleave.
func (e *Executor) scheduleNextTick(ctx context.Context, sched *models.Schedule, logger *logging.Logger) error {
	next, err := NextRun(sched.Cron, sched.Timezone, time.Now())
	if err != nil {
		return fmt.Errorf("failed to compute next run: %w", err)
	}

	queueName := sched.ID
	err = e.queue.Enqueue(ctx, queue.EnqueueParams{
		TaskID:    TaskExecuteSchedule,
		Payload:   ExecutePayload{ScheduleID: sched.ID, ScheduledFor: next},
		RunAt:     next,
		JobKey:    ExecuteJobKey(sched.ID, next),
		QueueName: &queueName,
	})
	if err != nil {
		return fmt.Errorf("failed to enqueue next tick: %w", err)
	}

	if err := e.schedules.UpdateRunPointers(ctx, sched.ID, sched.LastRunAt, next); err != nil {
		return fmt.Errorf("failed to update schedule run pointers: %w", err)
	}

	logger.WithField("nextRunAt", next.Format(time.RFC3339)).Debug("next tick enqueued")
	return nil
}

const maxErrorMessageLength = 1024

func truncateError(msg string) string {
	if len(msg) > maxErrorMessageLength {
		return msg[:maxErrorMessageLength]
	}
	return msg
}
