package domain

import "fmt"

// DomainError represents a domain-specific error
type DomainError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is reports whether target carries the same code and message, so wrapped
// copies created with NewDomainErrorWithCause still match the sentinel.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code && e.Message == t.Message
}

// NewDomainError creates a new DomainError
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     nil,
	}
}

// NewDomainErrorWithCause creates a new DomainError with an underlying cause
func NewDomainErrorWithCause(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Common domain error codes
const (
	ErrCodeValidation      = "VALIDATION_ERROR"
	ErrCodeNotFound        = "NOT_FOUND"
	ErrCodeUnauthorized    = "UNAUTHORIZED"
	ErrCodeInternalError   = "INTERNAL_ERROR"
	ErrCodeDataConsistency = "DATA_CONSISTENCY"
	ErrCodeUnavailable     = "UNAVAILABLE"
)

// Validation errors
var (
	ErrInvalidMessage   = NewDomainError(ErrCodeValidation, "message is required")
	ErrMessageTooLong   = NewDomainError(ErrCodeValidation, fmt.Sprintf("message exceeds %d characters", MaxMessageLength))
	ErrInvalidSessionID = NewDomainError(ErrCodeValidation, "session_id must be a valid UUID")
	ErrInvalidCursor    = NewDomainError(ErrCodeValidation, "invalid cursor")
	ErrInvalidLimit     = NewDomainError(ErrCodeValidation, "limit must be a positive integer")
)

// Not found errors
var (
	ErrSessionNotFound = NewDomainError(ErrCodeNotFound, "session not found")
)

// Authorization errors
var (
	ErrInvalidAdminToken = NewDomainError(ErrCodeUnauthorized, "invalid admin token")
)

// Index errors
var (
	// ErrCorpusInconsistent is returned when the persisted documents and
	// vectors disagree. The index refuses to serve until it is re-seeded.
	ErrCorpusInconsistent = NewDomainError(ErrCodeDataConsistency, "document index is inconsistent, re-seed required")
	ErrDimensionMismatch  = NewDomainError(ErrCodeDataConsistency, "document index dimension does not match embedder")
)

// Completion service errors
var (
	ErrEmptyCompletion = NewDomainError(ErrCodeUnavailable, "completion service returned no content")
)
