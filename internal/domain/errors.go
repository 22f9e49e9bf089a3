package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors returned (wrapped) by engine operations.
var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrNotFound          = errors.New("not found")
	ErrQuoteLocked       = errors.New("quote is locked")
	ErrInvalidTransition = errors.New("invalid status transition")
)

// ValidationError describes a rejected input field.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

// Error names the field and the rule it broke.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// Unwrap lets errors.Is match ErrInvalidInput.
func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

// Invalid builds a ValidationError.
func Invalid(field string, value interface{}, message string) error {
	return &ValidationError{Field: field, Value: value, Message: message}
}

// NotFoundError reports a missing record.
type NotFoundError struct {
	Kind string
	ID   string
}

// Error names the missing record.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

// Unwrap lets errors.Is match ErrNotFound.
func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// NotFound builds a NotFoundError.
func NotFound(kind, id string) error {
	return &NotFoundError{Kind: kind, ID: id}
}
