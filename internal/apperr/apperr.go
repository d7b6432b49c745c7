// Package apperr defines the error kinds returned by the domain services.
// Services never decide HTTP status codes; the boundary maps a Kind to one.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindDuplicate
	KindConflict
	KindNotFound
	KindInvalidArgument
)

var (
	ErrInternal        = errors.New("internal error")
	ErrValidation      = errors.New("validation failed")
	ErrDuplicate       = errors.New("duplicate")
	ErrConflict        = errors.New("conflict")
	ErrNotFound        = errors.New("not found")
	ErrInvalidArgument = errors.New("invalid argument")
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindDuplicate:
		return "duplicate"
	case KindConflict:
		return "conflict"
	case KindNotFound:
		return "not_found"
	case KindInvalidArgument:
		return "invalid_argument"
	default:
		return "internal"
	}
}

func (k Kind) sentinel() error {
	switch k {
	case KindValidation:
		return ErrValidation
	case KindDuplicate:
		return ErrDuplicate
	case KindConflict:
		return ErrConflict
	case KindNotFound:
		return ErrNotFound
	case KindInvalidArgument:
		return ErrInvalidArgument
	default:
		return ErrInternal
	}
}

// FieldError describes one invalid input field.
type FieldError struct {
	Name    string
	Message string
}

// Error is a classified failure carrying a user-facing message.
type Error struct {
	Kind    Kind
	Message string
	Fields  []FieldError
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, apperr.ErrNotFound) and friends work for every Error.
func (e *Error) Is(target error) bool {
	return target == e.Kind.sentinel()
}

func Validation(message string, fields ...FieldError) *Error {
	return &Error{Kind: KindValidation, Message: message, Fields: fields}
}

func Duplicate(message string) *Error {
	return &Error{Kind: KindDuplicate, Message: message}
}

func Conflict(message string) *Error {
	return &Error{Kind: KindConflict, Message: message}
}

func NotFound(message string) *Error {
	return &Error{Kind: KindNotFound, Message: message}
}

func InvalidArgument(message string) *Error {
	return &Error{Kind: KindInvalidArgument, Message: message}
}

// Wrap attaches a cause to a new Error of the given kind.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf reports the kind of err. Errors that are not *Error are internal.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// As returns the *Error in err's chain, if any.
func As(err error) (*Error, bool) {
	var appErr *Error
	ok := errors.As(err, &appErr)
	return appErr, ok
}
