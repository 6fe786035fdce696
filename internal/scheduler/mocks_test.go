package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/epoch-ledger/internal/models"
	"github.com/epoch-ledger/internal/queue"
	"github.com/epoch-ledger/internal/types"
)

// Mock stores shared by the scheduler tests.

type mockScheduleStore struct {
	schedules map[string]*models.Schedule
	stale     []*models.Schedule
	staleErr  error
	pointers  map[string]time.Time // scheduleID -> last nextRunAt written
	createErr error
	deleted   []string
}

func newMockScheduleStore() *mockScheduleStore {
	return &mockScheduleStore{
		schedules: make(map[string]*models.Schedule),
		pointers:  make(map[string]time.Time),
	}
}

func (m *mockScheduleStore) CreateSchedule(ctx context.Context, s *models.Schedule) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.schedules[s.ID] = s
	return nil
}

func (m *mockScheduleStore) GetSchedule(ctx context.Context, scheduleID string) (*models.Schedule, error) {
	return m.schedules[scheduleID], nil
}

func (m *mockScheduleStore) UpdateSchedule(ctx context.Context, s *models.Schedule) error {
	if _, ok := m.schedules[s.ID]; !ok {
		return fmt.Errorf("no schedule found with id %s", s.ID)
	}
	m.schedules[s.ID] = s
	return nil
}

func (m *mockScheduleStore) DeleteSchedule(ctx context.Context, scheduleID string) error {
	if _, ok := m.schedules[scheduleID]; !ok {
		return fmt.Errorf("no schedule found with id %s", scheduleID)
	}
	delete(m.schedules, scheduleID)
	m.deleted = append(m.deleted, scheduleID)
	return nil
}

func (m *mockScheduleStore) UpdateRunPointers(ctx context.Context, scheduleID string, lastRunAt *time.Time, nextRunAt time.Time) error {
	m.pointers[scheduleID] = nextRunAt
	if s, ok := m.schedules[scheduleID]; ok {
		if lastRunAt != nil {
			s.LastRunAt = lastRunAt
		}
		s.NextRunAt = &nextRunAt
	}
	return nil
}

func (m *mockScheduleStore) ListStaleSchedules(ctx context.Context, now time.Time) ([]*models.Schedule, error) {
	if m.staleErr != nil {
		return nil, m.staleErr
	}
	return m.stale, nil
}

func (m *mockScheduleStore) ListSchedulesByOwner(ctx context.Context, ownerUserID string) ([]*models.Schedule, error) {
	var result []*models.Schedule
	for _, s := range m.schedules {
		if s.OwnerUserID == ownerUserID {
			result = append(result, s)
		}
	}
	return result, nil
}

type mockGrantStore struct {
	grants  map[string]*models.ExecutionGrant
	revoked []string
	deleted []string
}

func newMockGrantStore() *mockGrantStore {
	return &mockGrantStore{grants: make(map[string]*models.ExecutionGrant)}
}

func (m *mockGrantStore) CreateGrant(ctx context.Context, g *models.ExecutionGrant) error {
	m.grants[g.ID] = g
	return nil
}

func (m *mockGrantStore) GetGrant(ctx context.Context, grantID string) (*models.ExecutionGrant, error) {
	return m.grants[grantID], nil
}

func (m *mockGrantStore) RevokeGrant(ctx context.Context, grantID string) error {
	if g, ok := m.grants[grantID]; ok {
		now := time.Now().UTC()
		g.RevokedAt = &now
	}
	m.revoked = append(m.revoked, grantID)
	return nil
}

func (m *mockGrantStore) DeleteGrant(ctx context.Context, grantID string) error {
	delete(m.grants, grantID)
	m.deleted = append(m.deleted, grantID)
	return nil
}

type mockRunStore struct {
	runs     map[string]*models.ScheduleRun // keyed by run ID
	slots    map[string]bool                // scheduleID + scheduledFor
	finished map[string]types.RunStatus
}

func newMockRunStore() *mockRunStore {
	return &mockRunStore{
		runs:     make(map[string]*models.ScheduleRun),
		slots:    make(map[string]bool),
		finished: make(map[string]types.RunStatus),
	}
}

func slotKey(scheduleID string, scheduledFor time.Time) string {
	return scheduleID + "|" + scheduledFor.UTC().Format(time.RFC3339Nano)
}

func (m *mockRunStore) CreateRun(ctx context.Context, run *models.ScheduleRun) (bool, error) {
	key := slotKey(run.ScheduleID, run.ScheduledFor)
	if m.slots[key] {
		return false, nil
	}
	m.slots[key] = true
	m.runs[run.ID] = run
	return true, nil
}

func (m *mockRunStore) MarkRunning(ctx context.Context, runID string, startedAt time.Time) error {
	run, ok := m.runs[runID]
	if !ok {
		return fmt.Errorf("no run found with id %s", runID)
	}
	run.Status = types.RunRunning
	run.StartedAt = &startedAt
	return nil
}

func (m *mockRunStore) MarkFinished(ctx context.Context, runID string, status types.RunStatus, errorMessage *string) error {
	run, ok := m.runs[runID]
	if !ok {
		return fmt.Errorf("no run found with id %s", runID)
	}
	run.Status = status
	run.ErrorMessage = errorMessage
	m.finished[runID] = status
	return nil
}

func (m *mockRunStore) ListRuns(ctx context.Context, scheduleID string, limit int) ([]*models.ScheduleRun, error) {
	var result []*models.ScheduleRun
	for _, run := range m.runs {
		if run.ScheduleID == scheduleID {
			result = append(result, run)
		}
	}
	return result, nil
}

// onlyRun returns the single recorded run, failing loudly when the count is
// off.
func (m *mockRunStore) onlyRun() *models.ScheduleRun {
	if len(m.runs) != 1 {
		panic(fmt.Sprintf("expected exactly 1 run, have %d", len(m.runs)))
	}
	for _, run := range m.runs {
		return run
	}
	return nil
}

type mockJobStore struct {
	jobs       []*models.QueueJob
	enqueueErr error
}

func (m *mockJobStore) UpsertByJobKey(ctx context.Context, job *models.QueueJob) error {
	if m.enqueueErr != nil {
		return m.enqueueErr
	}
	for i, existing := range m.jobs {
		if existing.JobKey == job.JobKey && existing.Status == types.JobPending {
			m.jobs[i] = job
			return nil
		}
	}
	m.jobs = append(m.jobs, job)
	return nil
}

func (m *mockJobStore) Dequeue(ctx context.Context, workerID string, lockDuration time.Duration) (*models.QueueJob, error) {
	return nil, nil
}

func (m *mockJobStore) Complete(ctx context.Context, jobID string) error { return nil }

func (m *mockJobStore) Fail(ctx context.Context, jobID string, errMsg string) error { return nil }

func (m *mockJobStore) jobsForTask(taskID string) []*models.QueueJob {
	var result []*models.QueueJob
	for _, job := range m.jobs {
		if job.TaskID == taskID {
			result = append(result, job)
		}
	}
	return result
}

func newTestQueue(store *mockJobStore) *queue.Queue {
	return queue.NewQueue(store)
}
