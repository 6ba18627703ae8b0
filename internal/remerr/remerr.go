// Package remerr defines the categorised error kinds the core distinguishes
// when talking to the runtime API or driving an item through its automaton.
package remerr

import "errors"

// Kind is the category of a runtime-facing failure.
type Kind int

const (
	KindUnknown Kind = iota
	KindTransport
	KindAuth
	KindServer4xx
	KindServer5xx
	KindTimeout
	KindProtocol // remote reported success=false
	KindInvalidTransition
)

// Error wraps an underlying error with a Kind, so callers can branch on
// category without string-matching messages.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an Error of the given kind.
func New(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Err: cause}
}

// KindOf returns the Kind of err if it is (or wraps) an *Error, else KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
