// Package apperr defines the fatal error kinds of a prguard run.
//
// Every error that aborts a run is either a configuration problem, detected
// before any network call, or a transport problem talking to the safety
// service. Content that is reduced to fit the token budget is not an error.
package apperr

import (
	"errors"
	"fmt"
)

// Kind is the category of a fatal error.
type Kind int

const (
	// Configuration covers missing credentials and budgets that leave no room
	// for content after the fixed prompt overhead.
	Configuration Kind = iota
	// Transport covers network failures, non-2xx responses and malformed
	// response bodies from the safety service.
	Transport
)

func (k Kind) String() string {
	switch k {
	case Configuration:
		return "configuration"
	case Transport:
		return "transport"
	default:
		return "unknown"
	}
}

// Error is a fatal run error of a specific Kind.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		return fmt.Sprintf("%s error: %s: %v", e.Kind, msg, e.Err)
	}
	return fmt.Sprintf("%s error: %s", e.Kind, msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Configf returns a Configuration error with a formatted message.
func Configf(op, format string, args ...any) *Error {
	return &Error{Kind: Configuration, Op: op, Message: fmt.Sprintf(format, args...)}
}

// Transportf returns a Transport error wrapping cause, which may be nil.
func Transportf(op string, cause error, format string, args ...any) *Error {
	return &Error{Kind: Transport, Op: op, Message: fmt.Sprintf(format, args...), Err: cause}
}

// Is reports whether any error in err's chain is an *Error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// IsConfig reports whether err is a Configuration error.
func IsConfig(err error) bool { return Is(err, Configuration) }

// IsTransport reports whether err is a Transport error.
func IsTransport(err error) bool { return Is(err, Transport) }
