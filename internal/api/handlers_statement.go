package api

import (
	"net/http"

	"github.com/gorilla/mux"
)

// handleGetStatement handles GET /api/statements/:id
func (s *Server) handleGetStatement(w http.ResponseWriter, r *http.Request) {
	statementID := mux.Vars(r)["id"]

	stmt, err := s.stmtRead.GetStatement(r.Context(), statementID)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	if stmt == nil {
		respondError(w, http.StatusNotFound, ErrCodeNotFound, "Statement not found", nil)
		return
	}

	respondJSON(w, http.StatusOK, stmt)
}

// handleAddSignature handles POST /api/statements/:id/signatures
func (s *Server) handleAddSignature(w http.ResponseWriter, r *http.Request) {
	statementID := mux.Vars(r)["id"]

	var req struct {
		Signer    string `json:"signer"`
		Signature string `json:"signature"`
	}

	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}
	if req.Signer == "" || req.Signature == "" {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "signer and signature are required", nil)
		return
	}

	sig, err := s.statements.AddSignature(r.Context(), statementID, req.Signer, req.Signature)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, sig)
}

// handleListSignatures handles GET /api/statements/:id/signatures
func (s *Server) handleListSignatures(w http.ResponseWriter, r *http.Request) {
	statementID := mux.Vars(r)["id"]

	sigs, err := s.stmtRead.ListStatementSignatures(r.Context(), statementID)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"signatures": sigs})
}
