// Package api provides the HTTP API server implementation.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/epoch-ledger/internal/logging"
	"github.com/epoch-ledger/internal/models"
	"github.com/epoch-ledger/internal/payout"
	"github.com/epoch-ledger/internal/scheduler"
)

// Service interfaces for dependency injection and testing

// ScheduleServiceInterface defines the interface for schedule operations
type ScheduleServiceInterface interface {
	CreateSchedule(ctx context.Context, callerUserID, billingAccountID string, params scheduler.CreateScheduleParams) (*models.Schedule, error)
	GetSchedule(ctx context.Context, callerUserID, scheduleID string) (*models.Schedule, error)
	UpdateSchedule(ctx context.Context, callerUserID, scheduleID string, params scheduler.UpdateScheduleParams) (*models.Schedule, error)
	DeleteSchedule(ctx context.Context, callerUserID, scheduleID string) error
	ListSchedules(ctx context.Context, callerUserID string) ([]*models.Schedule, error)
}

// LedgerServiceInterface defines the interface for epoch ledger operations
type LedgerServiceInterface interface {
	AddPoolComponent(ctx context.Context, epochID, componentID, algorithmVersion string, amountCredits int64, inputsJSON []byte, evidenceRef *string) (*models.PoolComponent, error)
	ProposeAllocations(ctx context.Context, epochID string) ([]models.Allocation, error)
	FinalizeAllocation(ctx context.Context, epochID, userID string, finalUnits int64) error
	CloseEpoch(ctx context.Context, epochID string, requiredComponents []string) (*models.PayoutStatement, error)
}

// LedgerReadInterface defines read-only access to epochs and allocations
type LedgerReadInterface interface {
	GetEpoch(ctx context.Context, epochID string) (*models.Epoch, error)
	ListPoolComponents(ctx context.Context, epochID string) ([]*models.PoolComponent, error)
	ListAllocations(ctx context.Context, epochID string) ([]*models.Allocation, error)
}

// StatementServiceInterface defines the interface for statement operations
type StatementServiceInterface interface {
	AddSignature(ctx context.Context, statementID, signer, signature string) (*models.StatementSignature, error)
}

// StatementReadInterface defines read-only access to payout statements
type StatementReadInterface interface {
	GetStatementForEpoch(ctx context.Context, epochID string) (*models.PayoutStatement, error)
	GetStatement(ctx context.Context, statementID string) (*models.PayoutStatement, error)
	ListStatementSignatures(ctx context.Context, statementID string) ([]*models.StatementSignature, error)
}

// RunReadInterface defines read-only access to schedule run history
type RunReadInterface interface {
	ListRuns(ctx context.Context, scheduleID string, limit int) ([]*models.ScheduleRun, error)
}

// UserServiceInterface defines the interface for user and identity operations
type UserServiceInterface interface {
	CreateUser(ctx context.Context, u *models.User) error
	GetUser(ctx context.Context, userID string) (*models.User, error)
	UpsertPlatformIdentity(ctx context.Context, pi *models.PlatformIdentity) error
}

// Server represents the HTTP API server.
type Server struct {
	router     *mux.Router
	httpServer *http.Server
	schedules  ScheduleServiceInterface
	ledger     LedgerServiceInterface
	ledgerRead LedgerReadInterface
	statements StatementServiceInterface
	stmtRead   StatementReadInterface
	runs       RunReadInterface
	users      UserServiceInterface
	logger     *logging.Logger
	config     *ServerConfig
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// Deps bundles the services the server routes to.
type Deps struct {
	Schedules  ScheduleServiceInterface
	Ledger     LedgerServiceInterface
	LedgerRead LedgerReadInterface
	Statements *payout.StatementBuilder
	StmtRead   StatementReadInterface
	Runs       RunReadInterface
	Users      UserServiceInterface
}

// NewServer creates a new API server instance.
func NewServer(config *ServerConfig, deps Deps, logger *logging.Logger) *Server {
	s := &Server{
		router:     mux.NewRouter(),
		schedules:  deps.Schedules,
		ledger:     deps.Ledger,
		ledgerRead: deps.LedgerRead,
		statements: deps.Statements,
		stmtRead:   deps.StmtRead,
		runs:       deps.Runs,
		users:      deps.Users,
		logger:     logger,
		config:     config,
	}

	s.setupRouter()

	return s
}

// setupRouter configures the router with middleware and routes
func (s *Server) setupRouter() {
	s.router.Use(LoggingMiddleware(s.logger))
	s.router.Use(RecoveryMiddleware(s.logger))
	s.router.Use(CORSMiddleware)

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%s", s.config.Host, s.config.Port),
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}
}

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	// Health check endpoint
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")

	// API v1 routes
	api := s.router.PathPrefix("/api").Subrouter()

	// Schedule endpoints
	api.HandleFunc("/schedules", s.handleCreateSchedule).Methods("POST")
	api.HandleFunc("/schedules", s.handleListSchedules).Methods("GET")
	api.HandleFunc("/schedules/{id}", s.handleGetSchedule).Methods("GET")
	api.HandleFunc("/schedules/{id}", s.handleUpdateSchedule).Methods("PUT")
	api.HandleFunc("/schedules/{id}", s.handleDeleteSchedule).Methods("DELETE")
	api.HandleFunc("/schedules/{id}/runs", s.handleListRuns).Methods("GET")

	// Epoch endpoints
	api.HandleFunc("/epochs/{id}", s.handleGetEpoch).Methods("GET")
	api.HandleFunc("/epochs/{id}/components", s.handleAddPoolComponent).Methods("POST")
	api.HandleFunc("/epochs/{id}/components", s.handleListPoolComponents).Methods("GET")
	api.HandleFunc("/epochs/{id}/allocations", s.handleListAllocations).Methods("GET")
	api.HandleFunc("/epochs/{id}/allocations/propose", s.handleProposeAllocations).Methods("POST")
	api.HandleFunc("/epochs/{id}/allocations/{userId}", s.handleFinalizeAllocation).Methods("PUT")
	api.HandleFunc("/epochs/{id}/close", s.handleCloseEpoch).Methods("POST")
	api.HandleFunc("/epochs/{id}/statement", s.handleGetEpochStatement).Methods("GET")

	// Statement endpoints
	api.HandleFunc("/statements/{id}", s.handleGetStatement).Methods("GET")
	api.HandleFunc("/statements/{id}/signatures", s.handleAddSignature).Methods("POST")
	api.HandleFunc("/statements/{id}/signatures", s.handleListSignatures).Methods("GET")

	// User endpoints
	api.HandleFunc("/users", s.handleCreateUser).Methods("POST")
	api.HandleFunc("/users/{id}", s.handleGetUser).Methods("GET")
	api.HandleFunc("/users/{id}/identities", s.handleLinkIdentity).Methods("POST")
}

// handleHealth handles health check requests.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "epoch-ledger",
	})
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.WithField("addr", s.httpServer.Addr).Info("starting API server")
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down API server")
	return s.httpServer.Shutdown(ctx)
}
