// Package scheduler manages recurring schedules, the execution grants that
// authorize their runs, and the reconciliation sweep that keeps every
// schedule's heartbeat alive across crashes.
package scheduler

import (
	"time"

	"github.com/robfig/cron/v3"

	"github.com/epoch-ledger/internal/types"
)

// Task IDs for jobs this package enqueues.
const (
	TaskExecuteSchedule = "schedule:execute"
	TaskReconcile       = "schedule:reconcile"
)

// ReconcilerJobKey is the fixed idempotency key for reconciliation sweeps.
// Using one key means a second concurrent enqueue replaces the first rather
// than producing two sweeps.
const ReconcilerJobKey = "reconciler"

var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// NextRun computes the fire time after `from` for a cron expression in the
// given timezone. An empty timezone means UTC.
func NextRun(cronExpr, timezone string, from time.Time) (time.Time, error) {
	loc := time.UTC
	if timezone != "" {
		parsed, err := time.LoadLocation(timezone)
		if err != nil {
			return time.Time{}, types.NewErrorf(types.KindDataIntegrity, types.CodeInvalidCron,
				"unknown timezone %q", timezone)
		}
		loc = parsed
	}

	schedule, err := cronParser.Parse(cronExpr)
	if err != nil {
		return time.Time{}, types.NewErrorf(types.KindDataIntegrity, types.CodeInvalidCron,
			"invalid cron expression %q: %v", cronExpr, err)
	}

	return schedule.Next(from.In(loc)).UTC(), nil
}

// ExecuteJobKey builds the idempotency key for one schedule tick. Duplicate
// enqueues for the same slot collapse into one job.
func ExecuteJobKey(scheduleID string, runAt time.Time) string {
	return scheduleID + ":" + runAt.UTC().Format(time.RFC3339)
}
