package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/epoch-ledger/internal/scheduler"
)

// handleCreateSchedule handles POST /api/schedules
func (s *Server) handleCreateSchedule(w http.ResponseWriter, r *http.Request) {
	var req struct {
		GraphID  string          `json:"graphId"`
		Input    json.RawMessage `json:"input,omitempty"`
		Cron     string          `json:"cron"`
		Timezone string          `json:"timezone"`
	}

	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}
	if req.GraphID == "" || req.Cron == "" {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "graphId and cron are required", nil)
		return
	}

	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	billingAccountID := r.Header.Get("X-Billing-Account-ID")
	if billingAccountID == "" {
		billingAccountID = userID
	}

	timezone := req.Timezone
	if timezone == "" {
		timezone = "UTC"
	}

	sched, err := s.schedules.CreateSchedule(r.Context(), userID, billingAccountID, scheduler.CreateScheduleParams{
		GraphID:  req.GraphID,
		Input:    req.Input,
		Cron:     req.Cron,
		Timezone: timezone,
	})
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, sched)
}

// handleListSchedules handles GET /api/schedules
func (s *Server) handleListSchedules(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	schedules, err := s.schedules.ListSchedules(r.Context(), userID)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"schedules": schedules})
}

// handleGetSchedule handles GET /api/schedules/:id
func (s *Server) handleGetSchedule(w http.ResponseWriter, r *http.Request) {
	scheduleID := mux.Vars(r)["id"]

	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	sched, err := s.schedules.GetSchedule(r.Context(), userID, scheduleID)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, sched)
}

// handleUpdateSchedule handles PUT /api/schedules/:id
func (s *Server) handleUpdateSchedule(w http.ResponseWriter, r *http.Request) {
	scheduleID := mux.Vars(r)["id"]

	var req struct {
		Cron     *string         `json:"cron,omitempty"`
		Timezone *string         `json:"timezone,omitempty"`
		Enabled  *bool           `json:"enabled,omitempty"`
		Input    json.RawMessage `json:"input,omitempty"`
	}

	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	sched, err := s.schedules.UpdateSchedule(r.Context(), userID, scheduleID, scheduler.UpdateScheduleParams{
		Cron:     req.Cron,
		Timezone: req.Timezone,
		Enabled:  req.Enabled,
		Input:    req.Input,
	})
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, sched)
}

// handleDeleteSchedule handles DELETE /api/schedules/:id
func (s *Server) handleDeleteSchedule(w http.ResponseWriter, r *http.Request) {
	scheduleID := mux.Vars(r)["id"]

	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	if err := s.schedules.DeleteSchedule(r.Context(), userID, scheduleID); err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// handleListRuns handles GET /api/schedules/:id/runs
func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	scheduleID := mux.Vars(r)["id"]

	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	// Ownership check happens through the schedule lookup.
	if _, err := s.schedules.GetSchedule(r.Context(), userID, scheduleID); err != nil {
		respondDomainError(w, err)
		return
	}

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 && parsed <= 500 {
			limit = parsed
		}
	}

	runs, err := s.runs.ListRuns(r.Context(), scheduleID, limit)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"runs": runs})
}
