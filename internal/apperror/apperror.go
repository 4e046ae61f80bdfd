// Package apperror defines the typed error taxonomy shared between the
// dispatcher and the HTTP layer.
//
// Errors represented here are the admission failures: the request never made
// it into a sandbox (unknown language, full queue, host problem). Failures of
// the code being executed (compile errors, timeouts, non-zero exits) are
// legitimate execution outcomes, not errors, and travel in sandbox.Result
// instead, so captured output is never lost.
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrValidation          = errors.New("validation error")
	ErrUnsupportedLanguage = errors.New("unsupported language")
	ErrOverloaded          = errors.New("overloaded")
	ErrInternal            = errors.New("internal error")
)

type AppError struct {
	Err     error  // sentinel, matched with errors.Is
	Message string // human-readable error message
	Field   string // optional: request field causing the error
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

// UnsupportedLanguage indicates the request named a language with no
// registered profile. Guaranteed to fire before any subprocess is spawned.
func UnsupportedLanguage(language string) *AppError {
	return &AppError{
		Err:     ErrUnsupportedLanguage,
		Message: fmt.Sprintf("language %q is not supported", language),
		Field:   "language",
	}
}

// Overloaded indicates all execution slots are busy and the wait queue is
// full (or the queue wait timed out). The caller may retry later; the service
// never retries on its own.
func Overloaded(message string) *AppError {
	return &AppError{
		Err:     ErrOverloaded,
		Message: message,
	}
}

// Internal wraps a host/environment failure (temp dir creation, backend
// unavailable). The only kind worth operator attention.
func Internal(err error) *AppError {
	return &AppError{
		Err:     errors.Join(ErrInternal, err),
		Message: "internal error during execution",
	}
}
