package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/epoch-ledger/internal/logging"
	"github.com/epoch-ledger/internal/queue"
)

// Reconciler is the self-healing sweep. It finds enabled schedules whose
// next-run pointer fell behind real time (a crashed worker never enqueued
// their tick), re-enqueues them at a fresh future fire time, and always
// finishes by scheduling its own next sweep. Within one interval of a
// crash, every schedule's heartbeat is restored.
type Reconciler struct {
	schedules ScheduleStore
	jobLocks  JobLockStore
	queue     *queue.Queue
	interval  time.Duration
	logger    *logging.Logger
}

// JobLockStore releases queue jobs whose worker died holding the lock.
type JobLockStore interface {
	ReleaseExpiredLocks(ctx context.Context, now time.Time) (int64, error)
}

// NewReconciler creates a reconciler sweeping at the given interval. jobLocks
// may be nil when the caller has no lock reaping to do.
func NewReconciler(schedules ScheduleStore, jobLocks JobLockStore, q *queue.Queue, interval time.Duration, logger *logging.Logger) *Reconciler {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Reconciler{schedules: schedules, jobLocks: jobLocks, queue: q, interval: interval, logger: logger}
}

// Start enqueues the first sweep immediately. The fixed job key makes this
// safe to call from every process start: concurrent starts collapse into
// one pending sweep.
func (r *Reconciler) Start(ctx context.Context) error {
	return r.enqueueSweep(ctx, time.Now().UTC())
}

// HandleReconcileJob is the queue handler for TaskReconcile.
func (r *Reconciler) HandleReconcileJob(ctx context.Context, payload []byte) error {
	// The payload carries no parameters today; decode defensively so an
	// older enqueue format never wedges the sweep.
	var ignored map[string]interface{}
	_ = json.Unmarshal(payload, &ignored)
	return r.Sweep(ctx)
}

// Sweep repairs stale schedules and unconditionally schedules the next
// sweep. A reconciler that stops rescheduling itself is exactly the
// failure it exists to repair.
func (r *Reconciler) Sweep(ctx context.Context) error {
	now := time.Now().UTC()

	if r.jobLocks != nil {
		released, err := r.jobLocks.ReleaseExpiredLocks(ctx, now)
		if err != nil {
			r.logger.WithError(err).Error("failed to release expired job locks")
		} else if released > 0 {
			r.logger.WithField("released", released).Info("released expired job locks")
		}
	}

	stale, err := r.schedules.ListStaleSchedules(ctx, now)
	if err != nil {
		// Still reschedule the sweep; the next one may succeed.
		if enqErr := r.enqueueSweep(ctx, now.Add(r.interval)); enqErr != nil {
			r.logger.WithError(enqErr).Error("failed to reschedule reconciler after sweep error")
		}
		return fmt.Errorf("failed to list stale schedules: %w", err)
	}

	repaired := 0
	for _, sched := range stale {
		next, err := NextRun(sched.Cron, sched.Timezone, now)
		if err != nil {
			r.logger.WithError(err).WithField("scheduleId", sched.ID).Error("cannot recompute fire time for stale schedule")
			continue
		}

		queueName := sched.ID
		err = r.queue.Enqueue(ctx, queue.EnqueueParams{
			TaskID:    TaskExecuteSchedule,
			Payload:   ExecutePayload{ScheduleID: sched.ID, ScheduledFor: next},
			RunAt:     next,
			JobKey:    ExecuteJobKey(sched.ID, next),
			QueueName: &queueName,
		})
		if err != nil {
			r.logger.WithError(err).WithField("scheduleId", sched.ID).Error("failed to re-enqueue stale schedule")
			continue
		}

		if err := r.schedules.UpdateRunPointers(ctx, sched.ID, sched.LastRunAt, next); err != nil {
			r.logger.WithError(err).WithField("scheduleId", sched.ID).Error("failed to advance stale schedule pointer")
			continue
		}
		repaired++
	}

	if len(stale) > 0 {
		r.logger.WithFields(map[string]interface{}{
			"stale":    len(stale),
			"repaired": repaired,
		}).Info("reconciled stale schedules")
	}

	return r.enqueueSweep(ctx, now.Add(r.interval))
}

func (r *Reconciler) enqueueSweep(ctx context.Context, runAt time.Time) error {
	err := r.queue.Enqueue(ctx, queue.EnqueueParams{
		TaskID:  TaskReconcile,
		Payload: struct{}{},
		RunAt:   runAt,
		JobKey:  ReconcilerJobKey,
	})
	if err != nil {
		return fmt.Errorf("failed to enqueue reconciler sweep: %w", err)
	}
	return nil
}
