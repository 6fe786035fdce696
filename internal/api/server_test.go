package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"

	"github.com/epoch-ledger/internal/logging"
	"github.com/epoch-ledger/internal/models"
	"github.com/epoch-ledger/internal/scheduler"
	"github.com/epoch-ledger/internal/types"
)

// Mock services for testing

type mockScheduleService struct {
	createFunc func(ctx context.Context, callerUserID, billingAccountID string, params scheduler.CreateScheduleParams) (*models.Schedule, error)
	getFunc    func(ctx context.Context, callerUserID, scheduleID string) (*models.Schedule, error)
	deleteFunc func(ctx context.Context, callerUserID, scheduleID string) error
}

func (m *mockScheduleService) CreateSchedule(ctx context.Context, callerUserID, billingAccountID string, params scheduler.CreateScheduleParams) (*models.Schedule, error) {
	if m.createFunc != nil {
		return m.createFunc(ctx, callerUserID, billingAccountID, params)
	}
	next := time.Now().UTC().Add(time.Hour)
	return &models.Schedule{
		ID:               "sched-123",
		OwnerUserID:      callerUserID,
		GraphID:          params.GraphID,
		Cron:             params.Cron,
		Timezone:         params.Timezone,
		Enabled:          true,
		NextRunAt:        &next,
		ExecutionGrantID: "grant-123",
		CreatedAt:        time.Now().UTC(),
	}, nil
}

func (m *mockScheduleService) GetSchedule(ctx context.Context, callerUserID, scheduleID string) (*models.Schedule, error) {
	if m.getFunc != nil {
		return m.getFunc(ctx, callerUserID, scheduleID)
	}
	return &models.Schedule{
		ID:          scheduleID,
		OwnerUserID: callerUserID,
		GraphID:     "graph-1",
		Cron:        "0 * * * *",
		Timezone:    "UTC",
		Enabled:     true,
	}, nil
}

func (m *mockScheduleService) UpdateSchedule(ctx context.Context, callerUserID, scheduleID string, params scheduler.UpdateScheduleParams) (*models.Schedule, error) {
	sched, _ := m.GetSchedule(ctx, callerUserID, scheduleID)
	if params.Cron != nil {
		sched.Cron = *params.Cron
	}
	if params.Enabled != nil {
		sched.Enabled = *params.Enabled
	}
	return sched, nil
}

func (m *mockScheduleService) DeleteSchedule(ctx context.Context, callerUserID, scheduleID string) error {
	if m.deleteFunc != nil {
		return m.deleteFunc(ctx, callerUserID, scheduleID)
	}
	return nil
}

func (m *mockScheduleService) ListSchedules(ctx context.Context, callerUserID string) ([]*models.Schedule, error) {
	return []*models.Schedule{
		{ID: "sched-123", OwnerUserID: callerUserID, GraphID: "graph-1", Cron: "0 * * * *"},
	}, nil
}

type mockLedgerService struct {
	closeFunc    func(ctx context.Context, epochID string, requiredComponents []string) (*models.PayoutStatement, error)
	finalizeFunc func(ctx context.Context, epochID, userID string, finalUnits int64) error
}

func (m *mockLedgerService) AddPoolComponent(ctx context.Context, epochID, componentID, algorithmVersion string, amountCredits int64, inputsJSON []byte, evidenceRef *string) (*models.PoolComponent, error) {
	return &models.PoolComponent{
		ID:               "comp-123",
		EpochID:          epochID,
		ComponentID:      componentID,
		AlgorithmVersion: algorithmVersion,
		AmountCredits:    amountCredits,
		CreatedAt:        time.Now().UTC(),
	}, nil
}

func (m *mockLedgerService) ProposeAllocations(ctx context.Context, epochID string) ([]models.Allocation, error) {
	return []models.Allocation{
		{EpochID: epochID, UserID: "user-1", ProposedUnits: 1000},
	}, nil
}

func (m *mockLedgerService) FinalizeAllocation(ctx context.Context, epochID, userID string, finalUnits int64) error {
	if m.finalizeFunc != nil {
		return m.finalizeFunc(ctx, epochID, userID, finalUnits)
	}
	return nil
}

func (m *mockLedgerService) CloseEpoch(ctx context.Context, epochID string, requiredComponents []string) (*models.PayoutStatement, error) {
	if m.closeFunc != nil {
		return m.closeFunc(ctx, epochID, requiredComponents)
	}
	return &models.PayoutStatement{
		ID:               "stmt-123",
		EpochID:          epochID,
		PoolTotalCredits: 1000,
		PayoutsJSON:      []byte(`[]`),
		CreatedAt:        time.Now().UTC(),
	}, nil
}

type mockLedgerRead struct {
	getEpochFunc func(ctx context.Context, epochID string) (*models.Epoch, error)
}

func (m *mockLedgerRead) GetEpoch(ctx context.Context, epochID string) (*models.Epoch, error) {
	if m.getEpochFunc != nil {
		return m.getEpochFunc(ctx, epochID)
	}
	return &models.Epoch{
		ID:      epochID,
		NodeID:  "node-1",
		ScopeID: "scope-1",
		Status:  types.EpochOpen,
	}, nil
}

func (m *mockLedgerRead) ListPoolComponents(ctx context.Context, epochID string) ([]*models.PoolComponent, error) {
	return []*models.PoolComponent{
		{ID: "comp-123", EpochID: epochID, ComponentID: "base-rewards", AmountCredits: 1000},
	}, nil
}

func (m *mockLedgerRead) ListAllocations(ctx context.Context, epochID string) ([]*models.Allocation, error) {
	return []*models.Allocation{
		{EpochID: epochID, UserID: "user-1", ProposedUnits: 1000},
	}, nil
}

type mockStatementService struct {
	addSignatureFunc func(ctx context.Context, statementID, signer, signature string) (*models.StatementSignature, error)
}

func (m *mockStatementService) AddSignature(ctx context.Context, statementID, signer, signature string) (*models.StatementSignature, error) {
	if m.addSignatureFunc != nil {
		return m.addSignatureFunc(ctx, statementID, signer, signature)
	}
	return &models.StatementSignature{
		ID:          "sig-123",
		StatementID: statementID,
		Signer:      signer,
		Signature:   signature,
		SignedAt:    time.Now().UTC(),
	}, nil
}

type mockStatementRead struct {
	getFunc func(ctx context.Context, statementID string) (*models.PayoutStatement, error)
}

func (m *mockStatementRead) GetStatementForEpoch(ctx context.Context, epochID string) (*models.PayoutStatement, error) {
	return &models.PayoutStatement{ID: "stmt-123", EpochID: epochID, PayoutsJSON: []byte(`[]`)}, nil
}

func (m *mockStatementRead) GetStatement(ctx context.Context, statementID string) (*models.PayoutStatement, error) {
	if m.getFunc != nil {
		return m.getFunc(ctx, statementID)
	}
	return &models.PayoutStatement{ID: statementID, EpochID: "epoch-1", PayoutsJSON: []byte(`[]`)}, nil
}

func (m *mockStatementRead) ListStatementSignatures(ctx context.Context, statementID string) ([]*models.StatementSignature, error) {
	return []*models.StatementSignature{
		{ID: "sig-123", StatementID: statementID, Signer: "ops"},
	}, nil
}

type mockRunRead struct{}

func (m *mockRunRead) ListRuns(ctx context.Context, scheduleID string, limit int) ([]*models.ScheduleRun, error) {
	return []*models.ScheduleRun{
		{ID: "run-123", ScheduleID: scheduleID, Status: types.RunSuccess},
	}, nil
}

type mockUserService struct {
	users map[string]*models.User
}

func (m *mockUserService) CreateUser(ctx context.Context, u *models.User) error {
	if m.users == nil {
		m.users = make(map[string]*models.User)
	}
	m.users[u.ID] = u
	return nil
}

func (m *mockUserService) GetUser(ctx context.Context, userID string) (*models.User, error) {
	if m.users == nil {
		return nil, nil
	}
	return m.users[userID], nil
}

func (m *mockUserService) UpsertPlatformIdentity(ctx context.Context, pi *models.PlatformIdentity) error {
	return nil
}

// Helper function to create test server with mock-backed services
func createTestServer() *Server {
	config := &ServerConfig{
		Host:         "localhost",
		Port:         "8080",
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	server := &Server{
		router:     mux.NewRouter(),
		schedules:  &mockScheduleService{},
		ledger:     &mockLedgerService{},
		ledgerRead: &mockLedgerRead{},
		statements: &mockStatementService{},
		stmtRead:   &mockStatementRead{},
		runs:       &mockRunRead{},
		users:      &mockUserService{},
		logger:     logging.NewNopLogger(),
		config:     config,
	}
	server.setupRouter()
	return server
}

func TestHealthEndpoint(t *testing.T) {
	server := createTestServer()

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	server.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}

	var response map[string]string
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if response["status"] != "healthy" {
		t.Errorf("Expected status 'healthy', got '%s'", response["status"])
	}
}

func TestCreateSchedule_Success(t *testing.T) {
	server := createTestServer()

	reqBody := map[string]interface{}{
		"graphId": "graph-1",
		"cron":    "0 * * * *",
		"input":   map[string]string{"source": "github", "sourceRef": "acme/widgets"},
	}
	body, _ := json.Marshal(reqBody)

	req := httptest.NewRequest("POST", "/api/schedules", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", "user-123")

	w := httptest.NewRecorder()
	server.router.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Errorf("Expected status 201, got %d", w.Code)
	}

	var response models.Schedule
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if response.GraphID != "graph-1" {
		t.Errorf("Expected graphId to match, got %s", response.GraphID)
	}
	if response.Timezone != "UTC" {
		t.Errorf("Expected timezone defaulted to UTC, got %s", response.Timezone)
	}
}

func TestCreateSchedule_MissingUserID(t *testing.T) {
	server := createTestServer()

	body, _ := json.Marshal(map[string]string{"graphId": "graph-1", "cron": "0 * * * *"})
	req := httptest.NewRequest("POST", "/api/schedules", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	server.router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401, got %d", w.Code)
	}
}

func TestCreateSchedule_InvalidJSON(t *testing.T) {
	server := createTestServer()

	req := httptest.NewRequest("POST", "/api/schedules", bytes.NewReader([]byte("invalid json")))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", "user-123")

	w := httptest.NewRecorder()
	server.router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", w.Code)
	}
}

func TestCreateSchedule_MissingFields(t *testing.T) {
	server := createTestServer()

	body, _ := json.Marshal(map[string]string{"graphId": "graph-1"})
	req := httptest.NewRequest("POST", "/api/schedules", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", "user-123")

	w := httptest.NewRecorder()
	server.router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", w.Code)
	}
}

func TestGetSchedule_NotOwned(t *testing.T) {
	server := createTestServer()
	server.schedules = &mockScheduleService{
		getFunc: func(ctx context.Context, callerUserID, scheduleID string) (*models.Schedule, error) {
			return nil, types.NewErrorf(types.KindAuthorization, types.CodeAccessDenied,
				"caller does not own schedule %s", scheduleID)
		},
	}

	req := httptest.NewRequest("GET", "/api/schedules/sched-123", nil)
	req.Header.Set("X-User-ID", "user-456")

	w := httptest.NewRecorder()
	server.router.ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Errorf("Expected status 403, got %d", w.Code)
	}

	var response ErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if response.Error.Code != types.CodeAccessDenied {
		t.Errorf("Expected code %s, got %s", types.CodeAccessDenied, response.Error.Code)
	}
}

func TestGetSchedule_NotFound(t *testing.T) {
	server := createTestServer()
	server.schedules = &mockScheduleService{
		getFunc: func(ctx context.Context, callerUserID, scheduleID string) (*models.Schedule, error) {
			return nil, types.NewErrorf(types.KindNotFound, types.CodeScheduleNotFound,
				"schedule %s not found", scheduleID)
		},
	}

	req := httptest.NewRequest("GET", "/api/schedules/missing", nil)
	req.Header.Set("X-User-ID", "user-123")

	w := httptest.NewRecorder()
	server.router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", w.Code)
	}
}

func TestDeleteSchedule_Success(t *testing.T) {
	server := createTestServer()

	req := httptest.NewRequest("DELETE", "/api/schedules/sched-123", nil)
	req.Header.Set("X-User-ID", "user-123")

	w := httptest.NewRecorder()
	server.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}
}

func TestListRuns_Success(t *testing.T) {
	server := createTestServer()

	req := httptest.NewRequest("GET", "/api/schedules/sched-123/runs?limit=10", nil)
	req.Header.Set("X-User-ID", "user-123")

	w := httptest.NewRecorder()
	server.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}

	var response map[string][]*models.ScheduleRun
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(response["runs"]) == 0 {
		t.Error("Expected at least one run")
	}
}

func TestGetEpoch_Success(t *testing.T) {
	server := createTestServer()

	req := httptest.NewRequest("GET", "/api/epochs/epoch-1", nil)
	w := httptest.NewRecorder()
	server.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}

	var response models.Epoch
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if response.ID != "epoch-1" {
		t.Errorf("Expected epoch ID 'epoch-1', got '%s'", response.ID)
	}
}

func TestGetEpoch_NotFound(t *testing.T) {
	server := createTestServer()
	server.ledgerRead = &mockLedgerRead{
		getEpochFunc: func(ctx context.Context, epochID string) (*models.Epoch, error) {
			return nil, nil
		},
	}

	req := httptest.NewRequest("GET", "/api/epochs/ghost", nil)
	w := httptest.NewRecorder()
	server.router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", w.Code)
	}
}

func TestAddPoolComponent_Success(t *testing.T) {
	server := createTestServer()

	reqBody := map[string]interface{}{
		"componentId":      "base-rewards",
		"algorithmVersion": "v2",
		"amountCredits":    5000,
	}
	body, _ := json.Marshal(reqBody)

	req := httptest.NewRequest("POST", "/api/epochs/epoch-1/components", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	server.router.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Errorf("Expected status 201, got %d", w.Code)
	}

	var response models.PoolComponent
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if response.ComponentID != "base-rewards" {
		t.Errorf("Expected componentId 'base-rewards', got '%s'", response.ComponentID)
	}
}

func TestAddPoolComponent_MissingFields(t *testing.T) {
	server := createTestServer()

	body, _ := json.Marshal(map[string]interface{}{"amountCredits": 5000})
	req := httptest.NewRequest("POST", "/api/epochs/epoch-1/components", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	server.router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", w.Code)
	}
}

func TestCloseEpoch_Success(t *testing.T) {
	server := createTestServer()

	body, _ := json.Marshal(map[string]interface{}{
		"requiredComponents": []string{"base-rewards"},
	})
	req := httptest.NewRequest("POST", "/api/epochs/epoch-1/close", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	server.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}

	var response models.PayoutStatement
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if response.EpochID != "epoch-1" {
		t.Errorf("Expected epochId 'epoch-1', got '%s'", response.EpochID)
	}
}

func TestCloseEpoch_AlreadyClosed(t *testing.T) {
	server := createTestServer()
	server.ledger = &mockLedgerService{
		closeFunc: func(ctx context.Context, epochID string, requiredComponents []string) (*models.PayoutStatement, error) {
			return nil, types.NewErrorf(types.KindStateConflict, types.CodeEpochClosed,
				"epoch %s is already closed", epochID)
		},
	}

	body, _ := json.Marshal(map[string]interface{}{})
	req := httptest.NewRequest("POST", "/api/epochs/epoch-1/close", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	server.router.ServeHTTP(w, req)

	if w.Code != http.StatusConflict {
		t.Errorf("Expected status 409, got %d", w.Code)
	}
}

func TestFinalizeAllocation_NegativeUnits(t *testing.T) {
	server := createTestServer()
	server.ledger = &mockLedgerService{
		finalizeFunc: func(ctx context.Context, epochID, userID string, finalUnits int64) error {
			return types.NewErrorf(types.KindDataIntegrity, types.CodeNegativeUnits,
				"final units for user %s cannot be negative (%d)", userID, finalUnits)
		},
	}

	body, _ := json.Marshal(map[string]interface{}{"finalUnits": -5})
	req := httptest.NewRequest("PUT", "/api/epochs/epoch-1/allocations/user-1", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	server.router.ServeHTTP(w, req)

	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("Expected status 422, got %d", w.Code)
	}
}

func TestProposeAllocations_Success(t *testing.T) {
	server := createTestServer()

	req := httptest.NewRequest("POST", "/api/epochs/epoch-1/allocations/propose", nil)
	w := httptest.NewRecorder()
	server.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}

	var response map[string][]models.Allocation
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(response["allocations"]) == 0 {
		t.Error("Expected at least one allocation")
	}
}

func TestAddSignature_Success(t *testing.T) {
	server := createTestServer()

	body, _ := json.Marshal(map[string]string{
		"signer":    "ops-team",
		"signature": "sig-bytes",
	})
	req := httptest.NewRequest("POST", "/api/statements/stmt-123/signatures", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	server.router.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Errorf("Expected status 201, got %d", w.Code)
	}

	var response models.StatementSignature
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if response.Signer != "ops-team" {
		t.Errorf("Expected signer 'ops-team', got '%s'", response.Signer)
	}
}

func TestAddSignature_MissingFields(t *testing.T) {
	server := createTestServer()

	body, _ := json.Marshal(map[string]string{"signer": "ops-team"})
	req := httptest.NewRequest("POST", "/api/statements/stmt-123/signatures", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	server.router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", w.Code)
	}
}

func TestGetStatement_NotFound(t *testing.T) {
	server := createTestServer()
	server.stmtRead = &mockStatementRead{
		getFunc: func(ctx context.Context, statementID string) (*models.PayoutStatement, error) {
			return nil, nil
		},
	}

	req := httptest.NewRequest("GET", "/api/statements/ghost", nil)
	w := httptest.NewRecorder()
	server.router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", w.Code)
	}
}

func TestCreateUser_Success(t *testing.T) {
	server := createTestServer()

	body, _ := json.Marshal(map[string]string{"handle": "alice"})
	req := httptest.NewRequest("POST", "/api/users", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	server.router.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Errorf("Expected status 201, got %d", w.Code)
	}

	var response models.User
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if response.Handle != "alice" {
		t.Errorf("Expected handle 'alice', got '%s'", response.Handle)
	}
	if response.ID == "" {
		t.Error("Expected generated user ID")
	}
}

func TestCreateUser_MissingHandle(t *testing.T) {
	server := createTestServer()

	body, _ := json.Marshal(map[string]string{})
	req := httptest.NewRequest("POST", "/api/users", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	server.router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", w.Code)
	}
}

func TestLinkIdentity_Success(t *testing.T) {
	server := createTestServer()

	body, _ := json.Marshal(map[string]string{
		"platform":       "github",
		"platformUserId": "alice-gh",
	})
	req := httptest.NewRequest("POST", "/api/users/user-123/identities", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	server.router.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Errorf("Expected status 201, got %d", w.Code)
	}

	var response models.PlatformIdentity
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if response.UserID != "user-123" || response.Platform != "github" {
		t.Errorf("Unexpected identity %+v", response)
	}
}

func TestCORSHeaders(t *testing.T) {
	server := createTestServer()

	req := httptest.NewRequest("GET", "/health", nil)
	req.Header.Set("Origin", "http://localhost:3000")

	w := httptest.NewRecorder()
	server.router.ServeHTTP(w, req)

	if w.Header().Get("Access-Control-Allow-Origin") == "" {
		t.Error("Expected CORS headers to be set")
	}
}
