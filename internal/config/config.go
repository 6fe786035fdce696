// Package config provides configuration management for the epoch ledger
// service. It loads configuration from environment variables and .env files.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Worker     WorkerConfig
	Reconciler ReconcilerConfig
	Sources    SourcesConfig
	Logging    LoggingConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port string
	Host string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Postgres PostgresConfig
	Redis    RedisConfig
}

// PostgresConfig holds Postgres configuration
type PostgresConfig struct {
	Host           string
	Port           string
	Database       string
	User           string
	Password       string
	MaxConnections int
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host           string
	Port           string
	Password       string
	DB             int
	MaxConnections int
}

// WorkerConfig holds queue worker configuration
type WorkerConfig struct {
	PollInterval  time.Duration
	Concurrency   int
	LockDuration  time.Duration
	EpochDays     int
	IngestNodeID  string
	IngestScopeID string
}

// ReconcilerConfig holds reconciliation sweep configuration
type ReconcilerConfig struct {
	Interval time.Duration
}

// SourcesConfig holds external source adapter configuration
type SourcesConfig struct {
	GitHub GitHubConfig
}

// GitHubConfig holds GitHub adapter configuration
type GitHubConfig struct {
	Token             string
	RequestsPerSecond float64
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// LoadConfig loads configuration from .env file and environment variables
func LoadConfig() (*Config, error) {
	// Load .env file (optional in production)
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	config := &Config{
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8080"),
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
		},
		Database: DatabaseConfig{
			Postgres: PostgresConfig{
				Host:           getEnv("POSTGRES_HOST", "localhost"),
				Port:           getEnv("POSTGRES_PORT", "5432"),
				Database:       getEnv("POSTGRES_DB", "epoch_ledger"),
				User:           getEnv("POSTGRES_USER", "ledger"),
				Password:       getEnv("POSTGRES_PASSWORD", ""),
				MaxConnections: getEnvAsInt("POSTGRES_MAX_CONNECTIONS", 50),
			},
			Redis: RedisConfig{
				Host:           getEnv("REDIS_HOST", "localhost"),
				Port:           getEnv("REDIS_PORT", "6379"),
				Password:       getEnv("REDIS_PASSWORD", ""),
				DB:             getEnvAsInt("REDIS_DB", 0),
				MaxConnections: getEnvAsInt("REDIS_MAX_CONNECTIONS", 20),
			},
		},
		Worker: WorkerConfig{
			PollInterval:  getEnvAsDuration("WORKER_POLL_INTERVAL", 1*time.Second),
			Concurrency:   getEnvAsInt("WORKER_CONCURRENCY", 4),
			LockDuration:  getEnvAsDuration("WORKER_LOCK_DURATION", 5*time.Minute),
			EpochDays:     getEnvAsInt("EPOCH_LENGTH_DAYS", 7),
			IngestNodeID:  getEnv("INGEST_NODE_ID", "default"),
			IngestScopeID: getEnv("INGEST_SCOPE_ID", "default"),
		},
		Reconciler: ReconcilerConfig{
			Interval: getEnvAsDuration("RECONCILER_INTERVAL", 5*time.Minute),
		},
		Sources: SourcesConfig{
			GitHub: GitHubConfig{
				Token:             getEnv("GITHUB_TOKEN", ""),
				RequestsPerSecond: getEnvAsFloat("GITHUB_REQUESTS_PER_SECOND", 1),
			},
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	return config, nil
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an environment variable as an integer with a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsFloat gets an environment variable as a float with a default value
func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration gets an environment variable as a duration with a default value
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
