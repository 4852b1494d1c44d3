// Package failure holds the single error kind surfaced by the replay engine.
// It carries a human-readable message and an optional underlying cause so the
// full causal chain survives up to the CLI or HTTP caller.
package failure

import "fmt"

type Error struct {
	Message string
	Cause   error
}

// New creates an error with the given message and optional cause.
func New(message string, cause error) *Error {
	return &Error{
		Message: message,
		Cause:   cause,
	}
}

// Wrap attaches cause to a formatted message.
func Wrap(cause error, format string, args ...any) *Error {
	return &Error{
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return e.Message
	}

	return e.Message + ": " + e.Cause.Error()
}

func (e *Error) Unwrap() error {
	return e.Cause
}
