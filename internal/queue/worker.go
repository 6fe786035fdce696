package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/epoch-ledger/internal/logging"
	"github.com/epoch-ledger/internal/models"
)

// Handler executes one task type. The payload is the JSON the enqueuer
// submitted.
type Handler func(ctx context.Context, payload []byte) error

// WorkerConfig holds worker configuration
type WorkerConfig struct {
	PollInterval time.Duration
	Concurrency  int
	LockDuration time.Duration
}

// Worker drains the job queue with a single polling loop. Concurrency comes
// from multiple eligible jobs running at once, bounded by the configured
// limit; per-queue-name serialization is enforced by the store's dequeue.
type Worker struct {
	id       string
	store    JobStore
	handlers map[string]Handler
	config   WorkerConfig
	logger   *logging.Logger

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
	wg      sync.WaitGroup
}

// NewWorker creates a worker over the given store.
func NewWorker(store JobStore, config WorkerConfig, logger *logging.Logger) *Worker {
	if config.PollInterval <= 0 {
		config.PollInterval = 1 * time.Second
	}
	if config.Concurrency <= 0 {
		config.Concurrency = 4
	}
	if config.LockDuration <= 0 {
		config.LockDuration = 5 * time.Minute
	}

	return &Worker{
		id:       uuid.New().String(),
		store:    store,
		handlers: make(map[string]Handler),
		config:   config,
		logger:   logger,
	}
}

// Register binds a handler to a task ID. Must be called before Start.
func (w *Worker) Register(taskID string, handler Handler) {
	w.handlers[taskID] = handler
}

// Start begins polling for jobs. It returns immediately; Stop shuts the
// loop down and waits for in-flight jobs.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return fmt.Errorf("worker already started")
	}
	w.running = true
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})

	go w.pollLoop(ctx)
	return nil
}

// Stop shuts down the polling loop and waits for in-flight jobs to finish.
func (w *Worker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	close(w.stopCh)
	w.mu.Unlock()

	<-w.doneCh
	w.wg.Wait()
}

func (w *Worker) pollLoop(ctx context.Context) {
	defer close(w.doneCh)

	sem := make(chan struct{}, w.config.Concurrency)
	ticker := time.NewTicker(w.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.drain(ctx, sem)
		}
	}
}

// drain claims eligible jobs until the queue is empty or every concurrency
// slot is busy.
func (w *Worker) drain(ctx context.Context, sem chan struct{}) {
	for {
		select {
		case sem <- struct{}{}:
		default:
			// All slots busy; wait for the next tick.
			return
		}

		job, err := w.store.Dequeue(ctx, w.id, w.config.LockDuration)
		if err != nil {
			<-sem
			if ctx.Err() == nil {
				w.logger.WithError(err).Error("failed to dequeue job")
			}
			return
		}
		if job == nil {
			<-sem
			return
		}

		w.wg.Add(1)
		go func(job *models.QueueJob) {
			defer w.wg.Done()
			defer func() { <-sem }()
			w.execute(ctx, job)
		}(job)
	}
}

func (w *Worker) execute(ctx context.Context, job *models.QueueJob) {
	logger := w.logger.WithFields(map[string]interface{}{
		"jobId":  job.ID,
		"taskId": job.TaskID,
		"jobKey": job.JobKey,
	})

	handler, ok := w.handlers[job.TaskID]
	if !ok {
		logger.Error("no handler registered for task")
		if err := w.store.Fail(ctx, job.ID, fmt.Sprintf("no handler registered for task %s", job.TaskID)); err != nil {
			logger.WithError(err).Error("failed to mark job failed")
		}
		return
	}

	if err := handler(ctx, job.Payload); err != nil {
		logger.WithError(err).Error("job failed")
		if markErr := w.store.Fail(ctx, job.ID, err.Error()); markErr != nil {
			logger.WithError(markErr).Error("failed to mark job failed")
		}
		return
	}

	if err := w.store.Complete(ctx, job.ID); err != nil {
		logger.WithError(err).Error("failed to mark job completed")
	}
}
