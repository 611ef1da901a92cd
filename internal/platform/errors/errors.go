package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

type Kind string

const (
	KindConfig      Kind = "config"
	KindValidation  Kind = "validation"
	KindCompression Kind = "compression"
	KindStorage     Kind = "storage"
	KindDescription Kind = "description"
	KindTransport   Kind = "transport"
	KindPlatform    Kind = "platform"
	KindBootstrap   Kind = "bootstrap"
	KindUnknown     Kind = "unknown"
)

type Error struct {
	Kind    Kind
	Op      string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Kind, e.Op, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Kind, e.Op, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Wrap classifies err. An error that already carries a Kind keeps it, so the
// stage that first observed the failure decides how callers see it.
func Wrap(kind Kind, op, message string, err error) *Error {
	if err == nil {
		return nil
	}

	var typed *Error
	if errors.As(err, &typed) {
		return typed
	}

	if errors.Is(err, context.DeadlineExceeded) {
		message = message + " (timeout)"
	}

	return &Error{
		Kind:    kind,
		Op:      op,
		Message: message,
		Cause:   err,
	}
}

func New(kind Kind, op, message string) *Error {
	return &Error{
		Kind:    kind,
		Op:      op,
		Message: message,
	}
}

// IsKind checks whether any error in the chain matches the provided kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// KindOf returns the kind of the first typed error in the chain.
func KindOf(err error) Kind {
	var target *Error
	if errors.As(err, &target) {
		return target.Kind
	}
	return KindUnknown
}

// Retryable reports whether repeating the whole request may succeed without
// operator or client intervention.
func Retryable(kind Kind) bool {
	switch kind {
	case KindStorage, KindDescription:
		return true
	default:
		return false
	}
}

// Public returns the caller-facing message: the typed message plus its cause,
// without the kind/op envelope used in server logs.
func Public(err error) string {
	if err == nil {
		return ""
	}
	var typed *Error
	if errors.As(err, &typed) {
		if typed.Cause != nil {
			cause := Public(typed.Cause)
			if strings.HasPrefix(cause, typed.Message) {
				return cause
			}
			return fmt.Sprintf("%s: %s", typed.Message, cause)
		}
		return typed.Message
	}
	return err.Error()
}
