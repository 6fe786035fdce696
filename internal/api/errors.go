package api

import (
	"encoding/json"
	"net/http"

	"github.com/epoch-ledger/internal/types"
)

// ErrorResponse represents an API error response.
type ErrorResponse struct {
	Error types.Error `json:"error"`
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, statusCode int, code, message string, details map[string]interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := ErrorResponse{
		Error: types.Error{
			Code:    code,
			Message: message,
			Details: details,
		},
	}

	json.NewEncoder(w).Encode(response)
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// parseJSONBody parses JSON request body.
func parseJSONBody(r *http.Request, v interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(v)
}

// Common error codes
const (
	ErrCodeInvalidInput  = "INVALID_INPUT"
	ErrCodeNotFound      = "NOT_FOUND"
	ErrCodeUnauthorized  = "UNAUTHORIZED"
	ErrCodeForbidden     = "FORBIDDEN"
	ErrCodeConflict      = "CONFLICT"
	ErrCodeInternalError = "INTERNAL_ERROR"
)

// respondDomainError maps a domain error to an HTTP response. The kind
// picks the status; the domain code passes through so clients can branch
// on the precise cause.
func respondDomainError(w http.ResponseWriter, err error) {
	if de, ok := err.(*types.Error); ok {
		var statusCode int
		switch de.Kind {
		case types.KindNotFound:
			statusCode = http.StatusNotFound
		case types.KindStateConflict:
			statusCode = http.StatusConflict
		case types.KindAuthorization:
			statusCode = http.StatusForbidden
		case types.KindDataIntegrity:
			statusCode = http.StatusUnprocessableEntity
		case types.KindTransient:
			statusCode = http.StatusServiceUnavailable
		default:
			statusCode = http.StatusInternalServerError
		}
		respondError(w, statusCode, de.Code, de.Message, de.Details)
		return
	}

	respondError(w, http.StatusInternalServerError, ErrCodeInternalError, "An internal error occurred", nil)
}
