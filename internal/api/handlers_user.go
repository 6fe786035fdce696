package api

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/epoch-ledger/internal/models"
)

// handleCreateUser handles POST /api/users
func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Handle        string  `json:"handle"`
		WalletAddress *string `json:"walletAddress,omitempty"`
	}

	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}
	if req.Handle == "" {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "handle is required", nil)
		return
	}

	user := &models.User{
		ID:            uuid.New().String(),
		Handle:        req.Handle,
		WalletAddress: req.WalletAddress,
		CreatedAt:     time.Now().UTC(),
	}

	if err := s.users.CreateUser(r.Context(), user); err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, user)
}

// handleGetUser handles GET /api/users/:id
func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["id"]

	user, err := s.users.GetUser(r.Context(), userID)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	if user == nil {
		respondError(w, http.StatusNotFound, ErrCodeNotFound, "User not found", nil)
		return
	}

	respondJSON(w, http.StatusOK, user)
}

// handleLinkIdentity handles POST /api/users/:id/identities
func (s *Server) handleLinkIdentity(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["id"]

	var req struct {
		Platform       string `json:"platform"`
		PlatformUserID string `json:"platformUserId"`
	}

	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}
	if req.Platform == "" || req.PlatformUserID == "" {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "platform and platformUserId are required", nil)
		return
	}

	identity := &models.PlatformIdentity{
		Platform:       req.Platform,
		PlatformUserID: req.PlatformUserID,
		UserID:         userID,
		VerifiedAt:     time.Now().UTC(),
	}

	if err := s.users.UpsertPlatformIdentity(r.Context(), identity); err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, identity)
}
