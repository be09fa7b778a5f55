// Package apierror defines the error kinds shared across the tool server,
// the gateway, and the HTTP API, grounded on the teacher's sentinel-error
// style (storage.ErrNotFound, auth.ErrAuthDisabled) but generalized into a
// small wrapper so each kind maps to exactly one HTTP status and one MCP
// isError shape.
package apierror

import (
	"errors"
	"fmt"
)

// Kind classifies an error for the outer edges (HTTP status, MCP isError)
// without callers needing to switch on an error's concrete type.
type Kind string

const (
	KindAuthRequired   Kind = "auth_required"
	KindAuthInvalid    Kind = "auth_invalid"
	KindAccessDenied   Kind = "access_denied"
	KindNotFound       Kind = "not_found"
	KindValidation     Kind = "validation"
	KindBackendFailure Kind = "backend_failure"
)

// Error wraps a Kind, a safe caller-facing message, and an optional cause
// that is logged but never surfaced to the caller.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// As reports whether err (or any error it wraps) is an *Error, returning it.
func As(err error) (*Error, bool) {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// KindOf returns the Kind of err if it is an *Error, or KindBackendFailure
// as a conservative default for unrecognized errors.
func KindOf(err error) Kind {
	if apiErr, ok := As(err); ok {
		return apiErr.Kind
	}
	return KindBackendFailure
}

var (
	ErrNotFound      = New(KindNotFound, "not found")
	ErrAccessDenied  = New(KindAccessDenied, "access denied")
	ErrAuthRequired  = New(KindAuthRequired, "authentication required")
)
