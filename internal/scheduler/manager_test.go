package scheduler

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/epoch-ledger/internal/logging"
	"github.com/epoch-ledger/internal/types"
)

type managerFixture struct {
	schedules *mockScheduleStore
	grants    *mockGrantStore
	jobs      *mockJobStore
	manager   *Manager
}

func newManagerFixture(t *testing.T) *managerFixture {
	t.Helper()
	f := &managerFixture{
		schedules: newMockScheduleStore(),
		grants:    newMockGrantStore(),
		jobs:      &mockJobStore{},
	}
	f.manager = NewManager(f.schedules, f.grants, newTestQueue(f.jobs), logging.NewNopLogger())
	return f
}

func TestCreateSchedule(t *testing.T) {
	f := newManagerFixture(t)

	sched, err := f.manager.CreateSchedule(context.Background(), "user-1", "billing-1", CreateScheduleParams{
		GraphID:  "graph-1",
		Input:    []byte(`{"source":"github"}`),
		Cron:     "0 * * * *",
		Timezone: "UTC",
	})
	if err != nil {
		t.Fatalf("CreateSchedule failed: %v", err)
	}

	if sched.OwnerUserID != "user-1" {
		t.Errorf("expected owner user-1, got %s", sched.OwnerUserID)
	}
	if !sched.Enabled {
		t.Error("expected new schedule enabled")
	}
	if sched.NextRunAt == nil || !sched.NextRunAt.After(time.Now().Add(-time.Minute)) {
		t.Error("expected a future first run")
	}

	grant := f.grants.grants[sched.ExecutionGrantID]
	if grant == nil {
		t.Fatal("expected an execution grant for the schedule")
	}
	if grant.BillingAccountID != "billing-1" {
		t.Errorf("expected billing account billing-1, got %s", grant.BillingAccountID)
	}
	if len(grant.Scopes) != 1 || grant.Scopes[0] != "graph:execute:graph-1" {
		t.Errorf("unexpected grant scopes %v", grant.Scopes)
	}

	ticks := f.jobs.jobsForTask(TaskExecuteSchedule)
	if len(ticks) != 1 {
		t.Fatalf("expected 1 queued first tick, got %d", len(ticks))
	}
	if !ticks[0].RunAt.Equal(*sched.NextRunAt) {
		t.Errorf("queued tick at %v does not match nextRunAt %v", ticks[0].RunAt, *sched.NextRunAt)
	}
}

func TestCreateScheduleInvalidCron(t *testing.T) {
	f := newManagerFixture(t)

	_, err := f.manager.CreateSchedule(context.Background(), "user-1", "billing-1", CreateScheduleParams{
		GraphID: "graph-1",
		Cron:    "never",
	})
	if err == nil {
		t.Fatal("expected error for invalid cron")
	}
	if len(f.grants.grants) != 0 {
		t.Error("expected no grant created when cron validation fails")
	}
	if len(f.schedules.schedules) != 0 {
		t.Error("expected no schedule created when cron validation fails")
	}
}

func TestCreateScheduleRollsBackOnScheduleFailure(t *testing.T) {
	f := newManagerFixture(t)
	f.schedules.createErr = fmt.Errorf("insert failed")

	_, err := f.manager.CreateSchedule(context.Background(), "user-1", "billing-1", CreateScheduleParams{
		GraphID: "graph-1",
		Cron:    "0 * * * *",
	})
	if err == nil {
		t.Fatal("expected error when schedule insert fails")
	}

	// The half-created grant must be deleted outright, not revoked: it
	// never authorized anything.
	if len(f.grants.deleted) != 1 {
		t.Errorf("expected 1 deleted grant, got %d", len(f.grants.deleted))
	}
	if len(f.grants.grants) != 0 {
		t.Error("expected no grant rows to survive the rollback")
	}
}

func TestCreateScheduleRollsBackOnEnqueueFailure(t *testing.T) {
	f := newManagerFixture(t)
	f.jobs.enqueueErr = fmt.Errorf("queue unavailable")

	_, err := f.manager.CreateSchedule(context.Background(), "user-1", "billing-1", CreateScheduleParams{
		GraphID: "graph-1",
		Cron:    "0 * * * *",
	})
	if err == nil {
		t.Fatal("expected error when enqueue fails")
	}
	if len(f.schedules.schedules) != 0 {
		t.Error("expected schedule rolled back after enqueue failure")
	}
	if len(f.grants.grants) != 0 {
		t.Error("expected grant rolled back after enqueue failure")
	}
}

func TestUpdateScheduleCadenceChange(t *testing.T) {
	f := newManagerFixture(t)
	created, err := f.manager.CreateSchedule(context.Background(), "user-1", "billing-1", CreateScheduleParams{
		GraphID: "graph-1",
		Cron:    "0 * * * *",
	})
	if err != nil {
		t.Fatalf("CreateSchedule failed: %v", err)
	}
	before := *created.NextRunAt

	newCron := "30 2 * * *"
	updated, err := f.manager.UpdateSchedule(context.Background(), "user-1", created.ID, UpdateScheduleParams{
		Cron: &newCron,
	})
	if err != nil {
		t.Fatalf("UpdateSchedule failed: %v", err)
	}

	if updated.Cron != newCron {
		t.Errorf("expected cron %s, got %s", newCron, updated.Cron)
	}
	if updated.NextRunAt == nil || updated.NextRunAt.Equal(before) {
		t.Error("expected nextRunAt recomputed after cadence change")
	}
	if len(f.jobs.jobsForTask(TaskExecuteSchedule)) != 2 {
		t.Errorf("expected a second queued tick for the new cadence, got %d jobs", len(f.jobs.jobsForTask(TaskExecuteSchedule)))
	}
}

func TestUpdateScheduleInputOnly(t *testing.T) {
	f := newManagerFixture(t)
	created, err := f.manager.CreateSchedule(context.Background(), "user-1", "billing-1", CreateScheduleParams{
		GraphID: "graph-1",
		Cron:    "0 * * * *",
	})
	if err != nil {
		t.Fatalf("CreateSchedule failed: %v", err)
	}
	before := *created.NextRunAt

	updated, err := f.manager.UpdateSchedule(context.Background(), "user-1", created.ID, UpdateScheduleParams{
		Input: []byte(`{"stream":"pull_requests"}`),
	})
	if err != nil {
		t.Fatalf("UpdateSchedule failed: %v", err)
	}

	if string(updated.Input) != `{"stream":"pull_requests"}` {
		t.Errorf("unexpected input %s", updated.Input)
	}
	if !updated.NextRunAt.Equal(before) {
		t.Error("expected nextRunAt unchanged for an input-only update")
	}
	if len(f.jobs.jobsForTask(TaskExecuteSchedule)) != 1 {
		t.Error("expected no extra tick for an input-only update")
	}
}

func TestUpdateScheduleDisable(t *testing.T) {
	f := newManagerFixture(t)
	created, err := f.manager.CreateSchedule(context.Background(), "user-1", "billing-1", CreateScheduleParams{
		GraphID: "graph-1",
		Cron:    "0 * * * *",
	})
	if err != nil {
		t.Fatalf("CreateSchedule failed: %v", err)
	}

	disabled := false
	updated, err := f.manager.UpdateSchedule(context.Background(), "user-1", created.ID, UpdateScheduleParams{
		Enabled: &disabled,
	})
	if err != nil {
		t.Fatalf("UpdateSchedule failed: %v", err)
	}
	if updated.Enabled {
		t.Error("expected schedule disabled")
	}
	// No new tick while disabled; the executor ignores the already-queued
	// one.
	if len(f.jobs.jobsForTask(TaskExecuteSchedule)) != 1 {
		t.Error("expected no new tick for a disabled schedule")
	}
}

func TestScheduleOwnership(t *testing.T) {
	f := newManagerFixture(t)
	created, err := f.manager.CreateSchedule(context.Background(), "user-1", "billing-1", CreateScheduleParams{
		GraphID: "graph-1",
		Cron:    "0 * * * *",
	})
	if err != nil {
		t.Fatalf("CreateSchedule failed: %v", err)
	}

	t.Run("non-owner cannot read", func(t *testing.T) {
		_, err := f.manager.GetSchedule(context.Background(), "user-2", created.ID)
		if !types.IsKind(err, types.KindAuthorization) {
			t.Errorf("expected authorization error, got %v", err)
		}
	})

	t.Run("non-owner cannot delete", func(t *testing.T) {
		err := f.manager.DeleteSchedule(context.Background(), "user-2", created.ID)
		if !types.IsKind(err, types.KindAuthorization) {
			t.Errorf("expected authorization error, got %v", err)
		}
		if _, ok := f.schedules.schedules[created.ID]; !ok {
			t.Error("expected schedule to survive the denied delete")
		}
	})

	t.Run("missing schedule", func(t *testing.T) {
		_, err := f.manager.GetSchedule(context.Background(), "user-1", "missing")
		if !types.IsKind(err, types.KindNotFound) {
			t.Errorf("expected not-found error, got %v", err)
		}
	})
}

func TestDeleteScheduleRevokesGrant(t *testing.T) {
	f := newManagerFixture(t)
	created, err := f.manager.CreateSchedule(context.Background(), "user-1", "billing-1", CreateScheduleParams{
		GraphID: "graph-1",
		Cron:    "0 * * * *",
	})
	if err != nil {
		t.Fatalf("CreateSchedule failed: %v", err)
	}

	if err := f.manager.DeleteSchedule(context.Background(), "user-1", created.ID); err != nil {
		t.Fatalf("DeleteSchedule failed: %v", err)
	}

	if _, ok := f.schedules.schedules[created.ID]; ok {
		t.Error("expected schedule deleted")
	}

	// The grant row stays for audit, stamped revoked.
	grant := f.grants.grants[created.ExecutionGrantID]
	if grant == nil {
		t.Fatal("expected grant row to survive as audit history")
	}
	if grant.RevokedAt == nil {
		t.Error("expected grant revoked on schedule delete")
	}
}

func TestListSchedulesScopedToOwner(t *testing.T) {
	f := newManagerFixture(t)
	for _, owner := range []string{"user-1", "user-1", "user-2"} {
		if _, err := f.manager.CreateSchedule(context.Background(), owner, "billing", CreateScheduleParams{
			GraphID: "graph-1",
			Cron:    "0 * * * *",
		}); err != nil {
			t.Fatalf("CreateSchedule failed: %v", err)
		}
	}

	mine, err := f.manager.ListSchedules(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("ListSchedules failed: %v", err)
	}
	if len(mine) != 2 {
		t.Errorf("expected 2 schedules for user-1, got %d", len(mine))
	}
}
