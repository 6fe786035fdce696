// Package main provides the background worker entry point. It drains the
// durable job queue, executing schedule ticks and reconciler sweeps.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/epoch-ledger/internal/config"
	"github.com/epoch-ledger/internal/epoch"
	"github.com/epoch-ledger/internal/identity"
	"github.com/epoch-ledger/internal/ingest"
	"github.com/epoch-ledger/internal/logging"
	"github.com/epoch-ledger/internal/models"
	"github.com/epoch-ledger/internal/queue"
	"github.com/epoch-ledger/internal/scheduler"
	"github.com/epoch-ledger/internal/source"
	"github.com/epoch-ledger/internal/storage"
)

// graphInput is the schedule input for the ingestion graph: which source
// stream to pull and which ref (e.g. a repository) to pull it from.
type graphInput struct {
	Source    string `json:"source"`
	Stream    string `json:"stream"`
	SourceRef string `json:"sourceRef"`
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := logging.NewLogger(logging.LogLevel(cfg.Logging.Level), logging.LogFormat(cfg.Logging.Format))
	defer logger.Sync()

	postgres, err := storage.NewPostgresDB(&cfg.Database.Postgres)
	if err != nil {
		logger.WithError(err).Error("Failed to connect to Postgres")
		os.Exit(1)
	}
	defer postgres.Close()

	redisCache, err := storage.NewRedisCache(&cfg.Database.Redis)
	if err != nil {
		logger.WithError(err).Error("Failed to connect to Redis")
		os.Exit(1)
	}
	defer redisCache.Close()

	// Repositories
	epochRepo := storage.NewEpochRepository(postgres)
	eventRepo := storage.NewEventRepository(postgres)
	cursorRepo := storage.NewCursorRepository(postgres)
	curationRepo := storage.NewCurationRepository(postgres)
	scheduleRepo := storage.NewScheduleRepository(postgres)
	grantRepo := storage.NewGrantRepository(postgres)
	runRepo := storage.NewRunRepository(postgres)
	jobRepo := storage.NewQueueJobRepository(postgres)
	userRepo := storage.NewUserRepository(postgres)

	// Source adapters
	registry := source.NewRegistry()
	registry.Register(source.NewGitHubAdapter(&source.GitHubAdapterConfig{
		Token:             cfg.Sources.GitHub.Token,
		RequestsPerSecond: cfg.Sources.GitHub.RequestsPerSecond,
	}))

	// Ingestion pipeline and curation resolver
	pipeline := ingest.NewPipeline(ingestStore{
		EpochRepository:  epochRepo,
		EventRepository:  eventRepo,
		CursorRepository: cursorRepo,
	}, registry, logger)

	identityResolver := identity.NewCachedResolver(userRepo, redisCache, 15*time.Minute)
	resolver := ingest.NewResolver(curationStore{
		EpochRepository:    epochRepo,
		EventRepository:    eventRepo,
		CurationRepository: curationRepo,
	}, identityResolver)

	// Scheduling
	jobQueue := queue.NewQueue(jobRepo)
	validator := scheduler.NewGrantValidator(grantRepo)
	work := ingestWorkUnit(cfg, pipeline, resolver)
	executor := scheduler.NewExecutor(scheduleRepo, runRepo, validator, jobQueue, work, logger)
	reconciler := scheduler.NewReconciler(scheduleRepo, jobRepo, jobQueue, cfg.Reconciler.Interval, logger)

	worker := queue.NewWorker(jobRepo, queue.WorkerConfig{
		PollInterval: cfg.Worker.PollInterval,
		Concurrency:  cfg.Worker.Concurrency,
		LockDuration: cfg.Worker.LockDuration,
	}, logger)
	worker.Register(scheduler.TaskExecuteSchedule, executor.HandleExecuteJob)
	worker.Register(scheduler.TaskReconcile, reconciler.HandleReconcileJob)

	ctx := logging.IntoContext(context.Background(), logger)

	if err := reconciler.Start(ctx); err != nil {
		logger.WithError(err).Error("Failed to start reconciler")
		os.Exit(1)
	}
	if err := worker.Start(ctx); err != nil {
		logger.WithError(err).Error("Failed to start worker")
		os.Exit(1)
	}
	logger.Info("Worker started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.WithField("signal", sig.String()).Info("Shutdown signal received")

	worker.Stop()
	logger.Info("Worker stopped")
}

// ingestWorkUnit builds the work one schedule tick performs: compute the
// current epoch window, run the cursor-tracked pull, then curate and
// resolve what landed.
func ingestWorkUnit(cfg *config.Config, pipeline *ingest.Pipeline, resolver *ingest.Resolver) scheduler.WorkUnit {
	return func(ctx context.Context, sched *models.Schedule) error {
		var input graphInput
		if len(sched.Input) > 0 {
			if err := json.Unmarshal(sched.Input, &input); err != nil {
				return fmt.Errorf("failed to decode schedule input: %w", err)
			}
		}
		if input.Source == "" {
			return fmt.Errorf("schedule %s has no source in its input", sched.ID)
		}

		window, err := epoch.ComputeWindow(time.Now().UTC(), cfg.Worker.EpochDays)
		if err != nil {
			return fmt.Errorf("failed to compute epoch window: %w", err)
		}

		result, err := pipeline.Ingest(ctx, ingest.IngestParams{
			NodeID:      cfg.Worker.IngestNodeID,
			ScopeID:     cfg.Worker.IngestScopeID,
			Source:      input.Source,
			Stream:      input.Stream,
			SourceRef:   input.SourceRef,
			PeriodStart: window.PeriodStart,
			PeriodEnd:   window.PeriodEnd,
		})
		if err != nil {
			return err
		}

		if _, err := resolver.CurateAndResolve(ctx, result.EpochID); err != nil {
			return err
		}
		return nil
	}
}

// ingestStore composes the repositories behind the ingestion pipeline.
type ingestStore struct {
	*storage.EpochRepository
	*storage.EventRepository
	*storage.CursorRepository
}

// curationStore composes the repositories behind the curation resolver.
type curationStore struct {
	*storage.EpochRepository
	*storage.EventRepository
	*storage.CurationRepository
}
