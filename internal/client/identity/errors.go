package identity

import (
	"context"
	"errors"
	"strings"
)

type Kind string

const (
	KindRejected    Kind = "rejected"
	KindUnavailable Kind = "unavailable"
	KindUnknown     Kind = "unknown"
)

const GenericMessage = "Something went wrong. Please try again."

// FieldError is one structured error reported by the provider.
type FieldError struct {
	Code        string
	Message     string
	LongMessage string
	Param       string
}

// APIErrors is the structured rejection returned by provider calls.
type APIErrors struct {
	Errors []FieldError
}

func (e *APIErrors) Error() string {
	if len(e.Errors) == 0 {
		return "identity provider error"
	}
	msgs := make([]string, 0, len(e.Errors))
	for _, fe := range e.Errors {
		msgs = append(msgs, fe.Message)
	}
	return strings.Join(msgs, "; ")
}

// Reject builds an *APIErrors with a single entry.
func Reject(code, message string) *APIErrors {
	return &APIErrors{Errors: []FieldError{{Code: code, Message: message}}}
}

// Error is the single normalized shape the controller consumes.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string { return e.Message }
func (e *Error) Unwrap() error { return e.Err }

// MapError normalizes any provider error. The first structured message wins;
// otherwise the message is empty and callers use their own fallback.
func MapError(err error) *Error {
	if err == nil {
		return nil
	}

	var mapped *Error
	if errors.As(err, &mapped) {
		return mapped
	}

	var apiErr *APIErrors
	if errors.As(err, &apiErr) {
		e := &Error{Kind: KindRejected, Err: err}
		for _, fe := range apiErr.Errors {
			msg := fe.LongMessage
			if msg == "" {
				msg = fe.Message
			}
			if msg != "" {
				e.Code = fe.Code
				e.Message = msg
				break
			}
		}
		return e
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return &Error{Kind: KindUnavailable, Err: err}
	}

	return &Error{Kind: KindUnknown, Err: err}
}

// Message returns the user-facing message for err, or fallback when the
// provider supplied none.
func Message(err error, fallback string) string {
	if m := MapError(err); m != nil && m.Message != "" {
		return m.Message
	}
	return fallback
}
