// Package rterr implements the uniform error taxonomy propagated across every
// component of the runtime (spec §4.K).
package rterr

import (
	"errors"
	"fmt"
)

// Kind is one of the fixed failure categories every public operation returns.
type Kind string

const (
	Ok               Kind = "ok"
	InvalidArg       Kind = "invalid_arg"
	NoMemory         Kind = "no_memory"
	Network          Kind = "network"
	TLS              Kind = "tls"
	Timeout          Kind = "timeout"
	DNS              Kind = "dns"
	HTTP             Kind = "http"
	NotInitialized   Kind = "not_initialized"
	Backend          Kind = "backend"
	IO               Kind = "io"
	NotImplemented   Kind = "not_implemented"
	NotFound         Kind = "not_found"
	NotConnected     Kind = "not_connected"
	Protocol         Kind = "protocol"
	Parse            Kind = "parse"
	ResponseTooLarge Kind = "response_too_large"
	InvalidState     Kind = "invalid_state"
)

// Error is the concrete error type carrying a Kind, a message, and an
// optional wrapped cause.
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

// Unwrap lets errors.Is / errors.As see through to the cause.
func (e *Error) Unwrap() error { return e.Cause }

// New creates an *Error of the given kind with a formatted message.
func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a Kind to an existing error, preserving it as the Cause.
func Wrap(kind Kind, cause error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// Of extracts the Kind from err, returning ok=false if err is not (or does
// not wrap) an *Error.
func Of(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return Ok, false
}

// Is reports whether err is an *Error of the given Kind.
func Is(err error, kind Kind) bool {
	k, ok := Of(err)
	return ok && k == kind
}
