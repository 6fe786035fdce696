package api

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
)

// handleGetEpoch handles GET /api/epochs/:id
func (s *Server) handleGetEpoch(w http.ResponseWriter, r *http.Request) {
	epochID := mux.Vars(r)["id"]

	epoch, err := s.ledgerRead.GetEpoch(r.Context(), epochID)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	if epoch == nil {
		respondError(w, http.StatusNotFound, ErrCodeNotFound, "Epoch not found", nil)
		return
	}

	respondJSON(w, http.StatusOK, epoch)
}

// handleAddPoolComponent handles POST /api/epochs/:id/components
func (s *Server) handleAddPoolComponent(w http.ResponseWriter, r *http.Request) {
	epochID := mux.Vars(r)["id"]

	var req struct {
		ComponentID      string          `json:"componentId"`
		AlgorithmVersion string          `json:"algorithmVersion"`
		AmountCredits    int64           `json:"amountCredits"`
		Inputs           json.RawMessage `json:"inputs,omitempty"`
		EvidenceRef      *string         `json:"evidenceRef,omitempty"`
	}

	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}
	if req.ComponentID == "" || req.AlgorithmVersion == "" {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "componentId and algorithmVersion are required", nil)
		return
	}

	component, err := s.ledger.AddPoolComponent(r.Context(), epochID, req.ComponentID, req.AlgorithmVersion, req.AmountCredits, req.Inputs, req.EvidenceRef)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, component)
}

// handleListPoolComponents handles GET /api/epochs/:id/components
func (s *Server) handleListPoolComponents(w http.ResponseWriter, r *http.Request) {
	epochID := mux.Vars(r)["id"]

	components, err := s.ledgerRead.ListPoolComponents(r.Context(), epochID)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"components": components})
}

// handleListAllocations handles GET /api/epochs/:id/allocations
func (s *Server) handleListAllocations(w http.ResponseWriter, r *http.Request) {
	epochID := mux.Vars(r)["id"]

	allocations, err := s.ledgerRead.ListAllocations(r.Context(), epochID)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"allocations": allocations})
}

// handleProposeAllocations handles POST /api/epochs/:id/allocations/propose
func (s *Server) handleProposeAllocations(w http.ResponseWriter, r *http.Request) {
	epochID := mux.Vars(r)["id"]

	allocations, err := s.ledger.ProposeAllocations(r.Context(), epochID)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"allocations": allocations})
}

// handleFinalizeAllocation handles PUT /api/epochs/:id/allocations/:userId
func (s *Server) handleFinalizeAllocation(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	epochID := vars["id"]
	userID := vars["userId"]

	var req struct {
		FinalUnits int64 `json:"finalUnits"`
	}

	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	if err := s.ledger.FinalizeAllocation(r.Context(), epochID, userID, req.FinalUnits); err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"status": "finalized"})
}

// handleCloseEpoch handles POST /api/epochs/:id/close
func (s *Server) handleCloseEpoch(w http.ResponseWriter, r *http.Request) {
	epochID := mux.Vars(r)["id"]

	var req struct {
		RequiredComponents []string `json:"requiredComponents,omitempty"`
	}

	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	stmt, err := s.ledger.CloseEpoch(r.Context(), epochID, req.RequiredComponents)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, stmt)
}

// handleGetEpochStatement handles GET /api/epochs/:id/statement
func (s *Server) handleGetEpochStatement(w http.ResponseWriter, r *http.Request) {
	epochID := mux.Vars(r)["id"]

	stmt, err := s.stmtRead.GetStatementForEpoch(r.Context(), epochID)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	if stmt == nil {
		respondError(w, http.StatusNotFound, ErrCodeNotFound, "No statement for epoch", nil)
		return
	}

	respondJSON(w, http.StatusOK, stmt)
}
