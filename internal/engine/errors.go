package engine

import (
	"errors"
	"fmt"

	"github.com/roach88/previa/internal/domain"
	"github.com/roach88/previa/internal/schema"
)

// ErrorCode categorizes operation failures.
type ErrorCode string

const (
	// CodeInvalidInput indicates a rejected field or value.
	CodeInvalidInput ErrorCode = "INVALID_INPUT"

	// CodeNotFound indicates a referenced record does not exist.
	CodeNotFound ErrorCode = "NOT_FOUND"

	// CodeQuoteLocked indicates an edit of a locked quote.
	CodeQuoteLocked ErrorCode = "QUOTE_LOCKED"

	// CodeInvalidDocument indicates an imported document failed validation.
	CodeInvalidDocument ErrorCode = "INVALID_DOCUMENT"

	// CodeInvalidTransition indicates a forbidden status change.
	CodeInvalidTransition ErrorCode = "INVALID_TRANSITION"

	// CodeInternal covers everything else, including cancelled contexts.
	CodeInternal ErrorCode = "INTERNAL"
)

// OperationError is the failure of one engine operation. The state is
// unchanged whenever an OperationError is returned.
type OperationError struct {
	// Code identifies the error category.
	Code ErrorCode

	// Op names the operation, e.g. "create-payment".
	Op string

	// Message is a human-readable description.
	Message string

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *OperationError) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Code, e.Message)
}

// Unwrap returns the underlying error, so errors.Is matches the domain
// sentinels.
func (e *OperationError) Unwrap() error {
	return e.Err
}

// codeOf maps the sentinel wrapped by err to its code.
func codeOf(err error) ErrorCode {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return CodeInvalidInput
	case errors.Is(err, domain.ErrNotFound):
		return CodeNotFound
	case errors.Is(err, domain.ErrQuoteLocked):
		return CodeQuoteLocked
	case errors.Is(err, schema.ErrInvalidDocument):
		return CodeInvalidDocument
	case errors.Is(err, domain.ErrInvalidTransition):
		return CodeInvalidTransition
	default:
		return CodeInternal
	}
}

// opError wraps err for op. An err that already is an OperationError is
// returned unchanged.
func opError(op string, err error) error {
	if err == nil {
		return nil
	}
	var oe *OperationError
	if errors.As(err, &oe) {
		return err
	}
	return &OperationError{Code: codeOf(err), Op: op, Message: err.Error(), Err: err}
}

// CodeOf returns the code of an OperationError in err's chain, or "".
func CodeOf(err error) ErrorCode {
	var oe *OperationError
	if errors.As(err, &oe) {
		return oe.Code
	}
	return ""
}

// IsNotFound returns true if err is a not-found operation error.
// Uses errors.As to handle wrapped errors.
func IsNotFound(err error) bool {
	return CodeOf(err) == CodeNotFound
}

// IsLocked returns true if err rejected an edit of a locked quote.
func IsLocked(err error) bool {
	return CodeOf(err) == CodeQuoteLocked
}

// IsInvalidInput returns true if err rejected its input.
func IsInvalidInput(err error) bool {
	c := CodeOf(err)
	return c == CodeInvalidInput || c == CodeInvalidDocument
}
