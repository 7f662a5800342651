// Package errors defines the typed error kinds surfaced by tscore to its
// command layer. The host translates these into client-visible replies;
// tscore itself never formats a wire reply.
package errors

import (
	"errors"
	"fmt"
)

// Kind classifies a tscore error the way the host needs to decide how to
// reply to a client (typed error vs. silent drop vs. ACL rejection).
type Kind int

const (
	_ Kind = iota
	KeyDoesNotExist
	WrongType
	KeyExists
	DuplicateTimestamp
	NonMonotonic
	RetentionExceeded
	ParseError
	InvalidSelector
	InvalidRule
	LengthMismatch
	MissingField
	NumericOverflow
	Unsupported
)

func (k Kind) String() string {
	switch k {
	case KeyDoesNotExist:
		return "KeyDoesNotExist"
	case WrongType:
		return "WrongType"
	case KeyExists:
		return "KeyExists"
	case DuplicateTimestamp:
		return "DuplicateTimestamp"
	case NonMonotonic:
		return "NonMonotonic"
	case RetentionExceeded:
		return "RetentionExceeded"
	case ParseError:
		return "ParseError"
	case InvalidSelector:
		return "InvalidSelector"
	case InvalidRule:
		return "InvalidRule"
	case LengthMismatch:
		return "LengthMismatch"
	case MissingField:
		return "MissingField"
	case NumericOverflow:
		return "NumericOverflow"
	case Unsupported:
		return "Unsupported"
	default:
		return "Unknown"
	}
}

// Error is the concrete error type returned by every exported tscore
// operation that can fail. Every client-visible message carries the
// "TSDB:" prefix the spec requires, plus the offending argument name when
// known.
type Error struct {
	Kind  Kind
	Arg   string // offending argument, if applicable (ParseError{which})
	Cause error
	msg   string
}

func (e *Error) Error() string {
	prefix := "TSDB: " + e.Kind.String()
	if e.Arg != "" {
		prefix += " (" + e.Arg + ")"
	}
	if e.msg != "" {
		return prefix + ": " + e.msg
	}
	if e.Cause != nil {
		return prefix + ": " + e.Cause.Error()
	}
	return prefix
}

func (e *Error) Unwrap() error { return e.Cause }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// New builds a bare Error of the given kind with a formatted message.
func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, msg: fmt.Sprintf(format, args...)}
}

// Wrap attaches a Kind to an underlying error from a collaborator (e.g. a
// host callback failure).
func Wrap(kind Kind, cause error) *Error {
	return &Error{Kind: kind, Cause: cause}
}

// Arg builds a ParseError naming the offending argument, per spec §4.8.
func Arg(which string, format string, args ...interface{}) *Error {
	return &Error{Kind: ParseError, Arg: which, msg: fmt.Sprintf(format, args...)}
}

// Of reports the Kind of err, if err is (or wraps) a *Error.
func Of(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}

// Is reports whether err is a tscore error of the given kind.
func Is(err error, kind Kind) bool {
	k, ok := Of(err)
	return ok && k == kind
}
