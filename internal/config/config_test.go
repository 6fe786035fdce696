package config

import (
	"os"
	"testing"
	"time"
)

func TestLoadConfig(t *testing.T) {
	// Set some test environment variables
	if err := os.Setenv("SERVER_PORT", "9090"); err != nil {
		t.Fatalf("Failed to set SERVER_PORT: %v", err)
	}
	if err := os.Setenv("POSTGRES_HOST", "testhost"); err != nil {
		t.Fatalf("Failed to set POSTGRES_HOST: %v", err)
	}
	if err := os.Setenv("WORKER_POLL_INTERVAL", "250ms"); err != nil {
		t.Fatalf("Failed to set WORKER_POLL_INTERVAL: %v", err)
	}
	defer func() {
		_ = os.Unsetenv("SERVER_PORT")
		_ = os.Unsetenv("POSTGRES_HOST")
		_ = os.Unsetenv("WORKER_POLL_INTERVAL")
	}()

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Server.Port != "9090" {
		t.Errorf("Server.Port = %v, want %v", cfg.Server.Port, "9090")
	}

	if cfg.Database.Postgres.Host != "testhost" {
		t.Errorf("Database.Postgres.Host = %v, want %v", cfg.Database.Postgres.Host, "testhost")
	}

	if cfg.Worker.PollInterval != 250*time.Millisecond {
		t.Errorf("Worker.PollInterval = %v, want %v", cfg.Worker.PollInterval, 250*time.Millisecond)
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	for _, key := range []string{
		"SERVER_PORT", "POSTGRES_HOST", "POSTGRES_DB",
		"WORKER_POLL_INTERVAL", "EPOCH_LENGTH_DAYS", "RECONCILER_INTERVAL",
	} {
		_ = os.Unsetenv(key)
	}

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Errorf("Server.Port = %v, want default 8080", cfg.Server.Port)
	}
	if cfg.Database.Postgres.Database != "epoch_ledger" {
		t.Errorf("Postgres.Database = %v, want default epoch_ledger", cfg.Database.Postgres.Database)
	}
	if cfg.Worker.EpochDays != 7 {
		t.Errorf("Worker.EpochDays = %v, want default 7", cfg.Worker.EpochDays)
	}
	if cfg.Reconciler.Interval != 5*time.Minute {
		t.Errorf("Reconciler.Interval = %v, want default 5m", cfg.Reconciler.Interval)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level = %v, want default info", cfg.Logging.Level)
	}
}

func TestGetEnvAsDurationInvalid(t *testing.T) {
	if err := os.Setenv("WORKER_LOCK_DURATION", "not-a-duration"); err != nil {
		t.Fatalf("Failed to set WORKER_LOCK_DURATION: %v", err)
	}
	defer func() { _ = os.Unsetenv("WORKER_LOCK_DURATION") }()

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	// Unparseable values fall back to the default
	if cfg.Worker.LockDuration != 5*time.Minute {
		t.Errorf("Worker.LockDuration = %v, want default 5m", cfg.Worker.LockDuration)
	}
}
