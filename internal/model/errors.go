package model

import (
	"errors"
	"fmt"
)

// Sentinel errors shared by the planner layers.
var (
	ErrNotFound             = errors.New("planner: not found")
	ErrValidation           = errors.New("planner: validation failed")
	ErrMissingSeriesContext = errors.New("planner: missing series context")
	ErrStoreTransient       = errors.New("planner: store temporarily unavailable")
	ErrStoreConflict        = errors.New("planner: batch write rejected")
)

// ValidationError reports a rejected input field. It matches ErrValidation
// with errors.Is.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "invalid input: " + e.Message
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// Invalid builds a ValidationError with a formatted message.
func Invalid(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}
