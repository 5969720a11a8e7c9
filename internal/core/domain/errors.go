package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrConflict     = errors.New("conflict")

	// Wizard navigation.
	ErrStepNotVisited       = errors.New("step has not been visited")
	ErrSubmissionInFlight   = errors.New("a submission is already in flight")
	ErrSupersededSubmission = errors.New("submission superseded by a newer attempt")
	ErrAlreadySubmitted     = errors.New("reservation already submitted")
	ErrConfirmationPending  = errors.New("confirmation step completes on submission")
)

// ValidationError reports a field that blocks a wizard step or an input.
// It never implies a state change.
type ValidationError struct {
	Step   int    `json:"step"`
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

func (e *ValidationError) Error() string {
	if e.Step < 0 {
		return fmt.Sprintf("%s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("step %d: %s: %s", e.Step, e.Field, e.Reason)
}

// NewValidationError builds a ValidationError.
func NewValidationError(step int, field, reason string) *ValidationError {
	return &ValidationError{Step: step, Field: field, Reason: reason}
}

// InvalidPolygonError is returned when a polygon has fewer than 3 distinct vertices.
type InvalidPolygonError struct {
	Vertices int
}

func (e *InvalidPolygonError) Error() string {
	return fmt.Sprintf("invalid polygon: need at least 3 distinct vertices, got %d", e.Vertices)
}

// SubmissionError wraps a failed hand-off to the booking API. The draft stays intact.
type SubmissionError struct {
	Cause error
}

func (e *SubmissionError) Error() string {
	return "submission failed: " + e.Cause.Error()
}

func (e *SubmissionError) Unwrap() error { return e.Cause }
