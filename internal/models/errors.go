package models

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("validation failed")
	ErrConflict   = errors.New("conflict")
	ErrTransport  = errors.New("transport failure")
)

type ErrorKind string

const (
	KindValidation ErrorKind = "validation"
	KindNotFound   ErrorKind = "not_found"
	KindConflict   ErrorKind = "conflict"
	KindTransport  ErrorKind = "transport"
)

// Error is returned by the graph store. Details and Hint are optional and must
// be shown to whoever reads Message.
type Error struct {
	Kind    ErrorKind
	Message string
	Details string
	Hint    string
	Err     error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Message)
	if e.Details != "" {
		b.WriteString(" (")
		b.WriteString(e.Details)
		b.WriteString(")")
	}
	if e.Hint != "" {
		b.WriteString(". Hint: ")
		b.WriteString(e.Hint)
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.Kind == KindNotFound
	case ErrValidation:
		return e.Kind == KindValidation
	case ErrConflict:
		return e.Kind == KindConflict
	case ErrTransport:
		return e.Kind == KindTransport
	}
	return false
}

func Validation(msg, details, hint string) *Error {
	return &Error{Kind: KindValidation, Message: msg, Details: details, Hint: hint}
}

func NotFound(entity, id string) *Error {
	return &Error{
		Kind:    KindNotFound,
		Message: fmt.Sprintf("%s not found", entity),
		Details: "id " + id,
		Hint:    "Call get_people or get_marriages to look up valid ids.",
	}
}

func Conflict(msg, hint string) *Error {
	return &Error{Kind: KindConflict, Message: msg, Hint: hint}
}

func Transport(op string, err error) *Error {
	return &Error{Kind: KindTransport, Message: op + " failed", Details: err.Error(), Err: err}
}

// AsError extracts a *Error from err, if any.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
