package render

import (
	"errors"
	"fmt"
)

// ErrorKind classifies render failures.
type ErrorKind string

const (
	KindInvalidContext    ErrorKind = "invalid_context"
	KindMissingExpression ErrorKind = "missing_expression"
	KindContextRead       ErrorKind = "context_read"
	KindInvalidExpression ErrorKind = "invalid_expression"
	KindDelegateNotFound  ErrorKind = "delegate_not_found"
	KindDelegateLookup    ErrorKind = "delegate_lookup"
)

// Sentinels usable with errors.Is; matching is by Kind only.
var (
	ErrInvalidContext    = &Error{Kind: KindInvalidContext, Message: "cannot render with a nil context"}
	ErrMissingExpression = &Error{Kind: KindMissingExpression, Message: "context does not contain an expression"}
	ErrContextRead       = &Error{Kind: KindContextRead, Message: "could not read the expression from the context"}
	ErrInvalidExpression = &Error{Kind: KindInvalidExpression, Message: "value is not an expression"}
	ErrDelegateNotFound  = &Error{Kind: KindDelegateNotFound, Message: "could not find a delegate renderer for the term"}
	ErrDelegateLookup    = &Error{Kind: KindDelegateLookup, Message: "an error occurred while reading from the delegate renderer store"}
)

var sentinels = map[ErrorKind]*Error{
	KindInvalidContext:    ErrInvalidContext,
	KindMissingExpression: ErrMissingExpression,
	KindContextRead:       ErrContextRead,
	KindInvalidExpression: ErrInvalidExpression,
	KindDelegateNotFound:  ErrDelegateNotFound,
	KindDelegateLookup:    ErrDelegateLookup,
}

// ErrInvalidOperator is returned when an operator is neither a string nor a
// fmt.Stringer.
var ErrInvalidOperator = errors.New("render: operator is not a string or stringer")

// Error is the structured error produced by the engine. Err holds the original
// cause, reachable through errors.Unwrap/Is/As.
type Error struct {
	Kind     ErrorKind
	Message  string
	TermType string
	Key      string
	Err      error
}

func (e *Error) Error() string {
	msg := "render: " + e.Message
	if e.TermType != "" {
		msg += fmt.Sprintf(" (term type %q)", e.TermType)
	}
	if e.Key != "" {
		msg += fmt.Sprintf(" (key %q)", e.Key)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes the cause.
func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the kind of the outermost *Error in err's chain.
func KindOf(err error) (ErrorKind, bool) {
	var rerr *Error
	if errors.As(err, &rerr) {
		return rerr.Kind, true
	}
	return "", false
}

func newError(kind ErrorKind, cause error) *Error {
	message := string(kind)
	if sentinel, ok := sentinels[kind]; ok {
		message = sentinel.Message
	}
	return &Error{Kind: kind, Message: message, Err: cause}
}
