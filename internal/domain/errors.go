package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrForbidden = errors.New("forbidden")
)

// ValidationError rejects malformed input before any store call is made.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return "validation: " + e.Reason }

func Invalid(format string, args ...any) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// ConflictError is the authoritative rejection of a reservation whose range
// is already taken. Conflicts carries the ranges that caused it so callers
// can tell the user which dates to avoid.
type ConflictError struct {
	Conflicts []DateRange
}

func (e *ConflictError) Error() string {
	parts := make([]string, 0, len(e.Conflicts))
	for _, r := range e.Conflicts {
		parts = append(parts, r.String())
	}
	return "dates conflict with existing bookings: " + strings.Join(parts, ", ")
}

// LookupError wraps a failed availability read. Callers must treat it as
// "unknown", never as a verdict in either direction.
type LookupError struct {
	Err error
}

func (e *LookupError) Error() string { return "availability lookup: " + e.Err.Error() }
func (e *LookupError) Unwrap() error { return e.Err }

// WriteError wraps a reservation insert that failed for a reason other than
// a date conflict. Retryable by the user.
type WriteError struct {
	Err error
}

func (e *WriteError) Error() string { return "booking write: " + e.Err.Error() }
func (e *WriteError) Unwrap() error { return e.Err }
