package models

import (
	"errors"
	"fmt"
)

var (
	ErrValidation         = errors.New("validation failed")
	ErrStoreUnavailable   = errors.New("state store unavailable")
	ErrDeadlineExceeded   = errors.New("state store deadline exceeded")
	ErrInvariantViolation = errors.New("invariant violation")
	ErrNotFound           = errors.New("not found")
	ErrAlreadyVerified    = errors.New("prediction already verified")
	ErrMalformedRecord    = errors.New("malformed record")
)

// ValidationError names the offending input field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func NewValidationError(field, format string, args ...interface{}) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// InvariantError carries the record that broke an invariant so it can be logged.
type InvariantError struct {
	What   string
	Record interface{}
}

func (e *InvariantError) Error() string { return "invariant violation: " + e.What }

func (e *InvariantError) Unwrap() error { return ErrInvariantViolation }
