// Package types provides common type definitions for the epoch ledger system.
package types

import "fmt"

// EpochStatus represents the lifecycle state of an epoch
type EpochStatus string

const (
	// EpochOpen represents an epoch still accepting activity
	EpochOpen EpochStatus = "open"
	// EpochClosed represents an epoch with a finalized credit pool
	EpochClosed EpochStatus = "closed"
)

// RunStatus represents the execution status of a schedule run
type RunStatus string

const (
	// RunPending represents a run that has been recorded but not started
	RunPending RunStatus = "pending"
	// RunRunning represents a run currently executing
	RunRunning RunStatus = "running"
	// RunSuccess represents a successfully completed run
	RunSuccess RunStatus = "success"
	// RunError represents a run that started and failed
	RunError RunStatus = "error"
	// RunSkipped represents a run that was never started, e.g. grant validation failed
	RunSkipped RunStatus = "skipped"
)

// JobStatus represents the status of a queued job
type JobStatus string

const (
	// JobPending represents a job waiting for its run time
	JobPending JobStatus = "pending"
	// JobRunning represents a job claimed by a worker
	JobRunning JobStatus = "running"
	// JobCompleted represents a job that finished successfully
	JobCompleted JobStatus = "completed"
	// JobFailed represents a job that finished with an error
	JobFailed JobStatus = "failed"
)

// ErrorKind classifies domain failures so callers can branch on the kind
// instead of inspecting error strings or concrete types.
type ErrorKind string

const (
	// KindNotFound indicates a referenced entity does not exist
	KindNotFound ErrorKind = "not-found"
	// KindStateConflict indicates the entity exists but its state forbids
	// the operation (epoch already closed, statement superseded)
	KindStateConflict ErrorKind = "state-conflict"
	// KindAuthorization indicates a grant or ownership check failed
	KindAuthorization ErrorKind = "authorization"
	// KindTransient indicates an infrastructure failure worth retrying
	KindTransient ErrorKind = "transient"
	// KindDataIntegrity indicates input that contradicts the append-only
	// ledger and can never be accepted
	KindDataIntegrity ErrorKind = "data-integrity"
)

// Error is the structured domain error carried across package boundaries.
type Error struct {
	Kind    ErrorKind              `json:"kind"`
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func (e *Error) Error() string {
	return e.Message
}

// NewError creates a domain error
func NewError(kind ErrorKind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

// NewErrorf creates a domain error with a formatted message
func NewErrorf(kind ErrorKind, code, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithDetail attaches a detail field, returning the same error for chaining
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// KindOf returns the error kind, or an empty string for non-domain errors
func KindOf(err error) ErrorKind {
	if de, ok := err.(*Error); ok {
		return de.Kind
	}
	return ""
}

// IsKind reports whether err is a domain error of the given kind
func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}

// Common error codes
const (
	CodeEpochNotFound     = "EPOCH_NOT_FOUND"
	CodeEpochClosed       = "EPOCH_CLOSED"
	CodeEpochIncomplete   = "EPOCH_COMPONENTS_MISSING"
	CodeGrantNotFound     = "GRANT_NOT_FOUND"
	CodeGrantExpired      = "GRANT_EXPIRED"
	CodeGrantRevoked      = "GRANT_REVOKED"
	CodeGrantScope        = "GRANT_SCOPE_MISMATCH"
	CodeScheduleNotFound  = "SCHEDULE_NOT_FOUND"
	CodeAccessDenied      = "ACCESS_DENIED"
	CodeStatementNotFound = "STATEMENT_NOT_FOUND"
	CodeNegativeUnits     = "NEGATIVE_VALUATION_UNITS"
	CodeInvalidCron       = "INVALID_CRON"
)
