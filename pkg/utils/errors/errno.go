// Package errors provides the structured error code system for claimflow.
//
// Error codes are globally unique 7-digit integers in AABBCCC form:
//
//	AA  (00-99): service code - 00 common, 20 claim pipeline, 90 third-party
//	BB  (00-99): category code - maps to an HTTP status class
//	CCC (000-999): sequence number within the category
//
// Usage:
//
//	// Predefined errors
//	return errors.ErrClaimNotFound.WithMessagef("claim %q not found", id)
//
//	// Wrapping an underlying cause
//	return errors.ErrPersistence.WithCause(err)
package errors

import (
	"fmt"
	"net/http"
)

// Errno represents a structured error with a stable code and messages.
type Errno struct {
	// Code is the unique business error code.
	Code int `json:"code"`

	// HTTP is the HTTP status code to return.
	HTTP int `json:"-"`

	// Message is a human-readable error message.
	Message string `json:"message"`

	// cause is the underlying error.
	cause error
}

// Error implements the error interface.
func (e *Errno) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("errno %d: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("errno %d: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Errno) Unwrap() error {
	return e.cause
}

// WithCause returns a copy of the Errno carrying the given cause.
func (e *Errno) WithCause(cause error) *Errno {
	clone := *e
	clone.cause = cause
	return &clone
}

// WithMessage returns a copy of the Errno with a custom message.
func (e *Errno) WithMessage(msg string) *Errno {
	clone := *e
	clone.Message = msg
	return &clone
}

// WithMessagef returns a copy of the Errno with a formatted message.
func (e *Errno) WithMessagef(format string, args ...interface{}) *Errno {
	clone := *e
	clone.Message = fmt.Sprintf(format, args...)
	return &clone
}

// HTTPStatus returns the HTTP status code for this error.
func (e *Errno) HTTPStatus() int {
	if e.HTTP != 0 {
		return e.HTTP
	}
	return http.StatusInternalServerError
}

// Is matches errors by code, so that errors.Is works across
// WithMessage/WithCause copies.
func (e *Errno) Is(target error) bool {
	if t, ok := target.(*Errno); ok {
		return e.Code == t.Code
	}
	return false
}

// MakeCode builds an AABBCCC error code.
func MakeCode(service, category, seq int) int {
	return service*100000 + category*1000 + seq
}
