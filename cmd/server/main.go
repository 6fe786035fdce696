// Package main provides the API server entry point for the epoch ledger service.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/epoch-ledger/internal/api"
	"github.com/epoch-ledger/internal/config"
	"github.com/epoch-ledger/internal/ledger"
	"github.com/epoch-ledger/internal/logging"
	"github.com/epoch-ledger/internal/payout"
	"github.com/epoch-ledger/internal/queue"
	"github.com/epoch-ledger/internal/scheduler"
	"github.com/epoch-ledger/internal/storage"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := logging.NewLogger(logging.LogLevel(cfg.Logging.Level), logging.LogFormat(cfg.Logging.Format))
	defer logger.Sync()

	logger.Info("Connecting to Postgres...")
	postgres, err := storage.NewPostgresDB(&cfg.Database.Postgres)
	if err != nil {
		logger.WithError(err).Error("Failed to connect to Postgres")
		os.Exit(1)
	}
	defer postgres.Close()

	// Repositories
	epochRepo := storage.NewEpochRepository(postgres)
	allocationRepo := storage.NewAllocationRepository(postgres)
	curationRepo := storage.NewCurationRepository(postgres)
	statementRepo := storage.NewStatementRepository(postgres)
	scheduleRepo := storage.NewScheduleRepository(postgres)
	grantRepo := storage.NewGrantRepository(postgres)
	runRepo := storage.NewRunRepository(postgres)
	jobRepo := storage.NewQueueJobRepository(postgres)
	userRepo := storage.NewUserRepository(postgres)

	// Services
	jobQueue := queue.NewQueue(jobRepo)
	statementBuilder := payout.NewStatementBuilder(statementRepo)
	ledgerService := ledger.NewService(ledgerStore{
		EpochRepository:      epochRepo,
		AllocationRepository: allocationRepo,
		CurationRepository:   curationRepo,
	}, statementBuilder, logger)
	scheduleManager := scheduler.NewManager(scheduleRepo, grantRepo, jobQueue, logger)

	server := api.NewServer(&api.ServerConfig{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		ReadTimeout:     15 * time.Second,
		WriteTimeout:    30 * time.Second,
		IdleTimeout:     60 * time.Second,
		ShutdownTimeout: 10 * time.Second,
	}, api.Deps{
		Schedules:  scheduleManager,
		Ledger:     ledgerService,
		LedgerRead: ledgerRead{EpochRepository: epochRepo, AllocationRepository: allocationRepo},
		Statements: statementBuilder,
		StmtRead:   statementRepo,
		Runs:       runRepo,
		Users:      userRepo,
	}, logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		logger.WithError(err).Error("Server stopped")
	case sig := <-sigCh:
		logger.WithField("signal", sig.String()).Info("Shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Graceful shutdown failed")
	}
}

// ledgerStore composes the repositories behind the ledger service's store.
type ledgerStore struct {
	*storage.EpochRepository
	*storage.AllocationRepository
	*storage.CurationRepository
}

// ledgerRead composes the read-only repositories behind the API.
type ledgerRead struct {
	*storage.EpochRepository
	*storage.AllocationRepository
}
