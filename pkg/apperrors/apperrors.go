// Package apperrors defines the typed error taxonomy shared by every service.
// Services raise these errors; only the HTTP layer translates them to status
// codes, so the mapping lives in exactly one place.
package apperrors

import (
	"errors"
	"fmt"
)

// Kind classifies a service failure
type Kind int

const (
	// KindInternal is an unclassified failure (persistence or unexpected error)
	KindInternal Kind = iota
	// KindNotFound is a missing or inactive entity
	KindNotFound
	// KindValidation is malformed input or an invalid/inactive related-id reference
	KindValidation
	// KindConflict is a duplicate active name or an update on an inactive record
	KindConflict
	// KindPermissionDenied is a target-side authorization rule
	KindPermissionDenied
	// KindUnauthorized is a failed credential or token check
	KindUnauthorized
)

// String returns the machine-readable code for the kind
func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindValidation:
		return "validation_failed"
	case KindConflict:
		return "conflict"
	case KindPermissionDenied:
		return "permission_denied"
	case KindUnauthorized:
		return "unauthorized"
	default:
		return "internal_error"
	}
}

// Error is a classified service error. Validation errors additionally carry a
// field-name-to-message-array map for the client.
type Error struct {
	Kind    Kind
	Message string
	Fields  map[string][]string

	cause error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.cause
}

// WithField attaches per-field validation messages and returns the error
func (e *Error) WithField(field string, messages ...string) *Error {
	if e.Fields == nil {
		e.Fields = make(map[string][]string)
	}
	e.Fields[field] = append(e.Fields[field], messages...)
	return e
}

// NotFound creates a NotFound error
func NotFound(format string, args ...interface{}) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

// Validation creates a Validation error; attach field detail via WithField
func Validation(format string, args ...interface{}) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// Conflict creates a Conflict error
func Conflict(format string, args ...interface{}) *Error {
	return &Error{Kind: KindConflict, Message: fmt.Sprintf(format, args...)}
}

// PermissionDenied creates a PermissionDenied error
func PermissionDenied(format string, args ...interface{}) *Error {
	return &Error{Kind: KindPermissionDenied, Message: fmt.Sprintf(format, args...)}
}

// Unauthorized creates an Unauthorized error
func Unauthorized(format string, args ...interface{}) *Error {
	return &Error{Kind: KindUnauthorized, Message: fmt.Sprintf(format, args...)}
}

// Internal wraps an unexpected failure. The cause is kept for logs and never
// serialized to clients.
func Internal(message string, cause error) *Error {
	return &Error{Kind: KindInternal, Message: message, cause: cause}
}

// KindOf extracts the kind from an error chain, defaulting to KindInternal
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// FieldsOf extracts the per-field validation detail from an error chain
func FieldsOf(err error) map[string][]string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Fields
	}
	return nil
}
