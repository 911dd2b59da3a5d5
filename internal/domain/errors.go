package domain

import (
	"errors"
	"fmt"
)

// ErrorKind is the closed set of failure classes surfaced to callers
type ErrorKind string

const (
	KindValidation ErrorKind = "validation"
	KindConflict   ErrorKind = "conflict"
	KindNotFound   ErrorKind = "not_found"
	KindAuth       ErrorKind = "auth"
	KindInfra      ErrorKind = "infra"
)

// Error is a domain failure with a stable machine-readable code and a message
// that is safe to return to clients. Err keeps the underlying cause for logs.
type Error struct {
	Kind    ErrorKind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches on Code so that wrapped or re-messaged errors still compare equal
// to the sentinels below.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code
}

// Sentinel errors. Use the With* helpers to attach a specific message.
var (
	ErrInvalidFormat        = &Error{Kind: KindValidation, Code: "invalid_format", Message: "invalid input"}
	ErrDuplicateEmail       = &Error{Kind: KindConflict, Code: "duplicate_email", Message: "email already exists"}
	ErrDuplicateFlat        = &Error{Kind: KindConflict, Code: "duplicate_flat", Message: "flat already exists in this society"}
	ErrDuplicateSociety     = &Error{Kind: KindConflict, Code: "duplicate_society", Message: "society already registered"}
	ErrNotFound             = &Error{Kind: KindNotFound, Code: "not_found", Message: "record not found"}
	ErrInvalidCredentials   = &Error{Kind: KindAuth, Code: "invalid_credentials", Message: "invalid credentials"}
	ErrIncorrectOldPassword = &Error{Kind: KindAuth, Code: "incorrect_old_password", Message: "incorrect old password"}
	ErrInternal             = &Error{Kind: KindInfra, Code: "internal_error", Message: "internal error"}
)

// WithMessage returns a copy of a sentinel carrying a more specific message.
func (e *Error) WithMessage(msg string) *Error {
	return &Error{Kind: e.Kind, Code: e.Code, Message: msg, Err: e.Err}
}

// Validation builds an invalid_format error with the given message.
func Validation(format string, args ...any) *Error {
	return ErrInvalidFormat.WithMessage(fmt.Sprintf(format, args...))
}

// NotFound builds a not_found error naming the missing entity.
func NotFound(entity string) *Error {
	return ErrNotFound.WithMessage(entity + " not found")
}

// Infra wraps an infrastructure failure. The message stays generic.
func Infra(op string, err error) *Error {
	return &Error{Kind: KindInfra, Code: ErrInternal.Code, Message: ErrInternal.Message, Err: fmt.Errorf("%s: %w", op, err)}
}

// KindOf reports the kind of err, treating unknown errors as infrastructure.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInfra
}

// AsError returns err as a domain error, wrapping unknown errors as internal.
func AsError(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Infra("unexpected", err)
}
