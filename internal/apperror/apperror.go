package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	// ErrNotFound indicates a reference to a nonexistent entity.
	ErrNotFound = errors.New("not found")
	// ErrConflict indicates a unique-constraint violation.
	ErrConflict = errors.New("conflict")
	// ErrUnauthenticated indicates a missing or invalid session.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrUnauthorized indicates an authenticated user lacking a capability.
	ErrUnauthorized = errors.New("unauthorized")
)

// NotFound wraps ErrNotFound with a message naming the missing entity.
func NotFound(format string, args ...interface{}) error {
	return fmt.Errorf("%w: "+format, append([]interface{}{ErrNotFound}, args...)...)
}

// Conflict wraps ErrConflict with a message naming the colliding value.
func Conflict(format string, args ...interface{}) error {
	return fmt.Errorf("%w: "+format, append([]interface{}{ErrConflict}, args...)...)
}

// ValidationError carries per-field messages for malformed input.
// The caller can retry with corrected input.
type ValidationError struct {
	Fields map[string][]string
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for field, msgs := range e.Fields {
		parts = append(parts, field+": "+strings.Join(msgs, "; "))
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

// NewValidation builds an empty ValidationError ready for Add calls.
func NewValidation() *ValidationError {
	return &ValidationError{Fields: make(map[string][]string)}
}

// Add records a message against a field and returns the error for chaining.
func (e *ValidationError) Add(field, msg string) *ValidationError {
	e.Fields[field] = append(e.Fields[field], msg)
	return e
}

// HasErrors reports whether any field message was recorded.
func (e *ValidationError) HasErrors() bool {
	return len(e.Fields) > 0
}

// TransactionFailure wraps a store-level fault that aborted a multi-step
// assignment. The transaction has already been rolled back when this is
// surfaced; the underlying error is preserved for diagnosis.
type TransactionFailure struct {
	Op  string
	Err error
}

func (e *TransactionFailure) Error() string {
	return "transaction " + e.Op + " failed: " + e.Err.Error()
}

func (e *TransactionFailure) Unwrap() error { return e.Err }

// HTTPStatus maps an error to the HTTP status of its category. Validation
// errors map to 400, conflicts to 409, missing entities to 404, session
// failures to 401/403, and anything else to 500.
func HTTPStatus(err error) int {
	var ve *ValidationError
	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, ErrUnauthorized):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}
