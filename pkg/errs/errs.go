// Package errs defines the error taxonomy shared by every domain package.
//
// Domain packages declare their own sentinels on top of a Kind so callers can
// branch either on a precise code (errors.Is(err, domain.ErrValueValidated))
// or on the broad category (errors.Is(err, errs.ErrForbidden)).
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies an error for propagation and retry decisions.
type Kind string

const (
	KindValidation Kind = "validation_error"
	KindDuplicate  Kind = "duplicate"
	KindForbidden  Kind = "forbidden"
	KindNotFound   Kind = "not_found"
	KindTransient  Kind = "transient"
	KindInternal   Kind = "internal_error"
)

// Error is a classified error with a stable machine code and a human-readable message.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

// Kind-level sentinels. They match any *Error of the same Kind.
var (
	ErrValidation = &Error{Kind: KindValidation}
	ErrDuplicate  = &Error{Kind: KindDuplicate}
	ErrForbidden  = &Error{Kind: KindForbidden}
	ErrNotFound   = &Error{Kind: KindNotFound}
	ErrTransient  = &Error{Kind: KindTransient}
)

// New returns a classified error.
func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Code
	}
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches on Kind, and on Code when the target carries one.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	return t.Code == "" || t.Code == e.Code
}

// WithCause returns a copy of e wrapping cause.
func (e *Error) WithCause(cause error) *Error {
	clone := *e
	clone.Err = cause
	return &clone
}

// WithMessagef returns a copy of e with a formatted message.
func (e *Error) WithMessagef(format string, args ...any) *Error {
	clone := *e
	clone.Message = fmt.Sprintf(format, args...)
	return &clone
}

// Validation builds a validation error.
func Validation(code, message string) *Error { return New(KindValidation, code, message) }

// Duplicate builds a uniqueness violation error.
func Duplicate(code, message string) *Error { return New(KindDuplicate, code, message) }

// Forbidden builds a scope or role violation error.
func Forbidden(code, message string) *Error { return New(KindForbidden, code, message) }

// NotFound builds a missing reference error.
func NotFound(code, message string) *Error { return New(KindNotFound, code, message) }

// Transient wraps a retryable failure that outlived its retry budget.
func Transient(cause error) *Error {
	return &Error{Kind: KindTransient, Code: "transient", Message: "temporary storage failure", Err: cause}
}

// KindOf reports the Kind of err, or KindInternal when err is unclassified.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// CodeOf reports the code of the outermost classified error.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		if e.Code != "" {
			return e.Code
		}
		return string(e.Kind)
	}
	return string(KindInternal)
}

// Retryable reports whether err may succeed on a later attempt.
func Retryable(err error) bool {
	return KindOf(err) == KindTransient
}
