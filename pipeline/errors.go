package pipeline

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrorKind classifies a per-image failure, per spec.md §7.
type ErrorKind int

const (
	ErrorKindNone ErrorKind = iota
	ErrorKindInputUnreadable
	ErrorKindDecodeFailed
	ErrorKindOversized
	ErrorKindInsufficientMemory
	ErrorKindResizeFailed
	ErrorKindEncodeFailed
	ErrorKindWriteFailed
	ErrorKindFinalizeFailed
	ErrorKindPoolTimeout
)

func (k ErrorKind) String() string {
	switch k {
	case ErrorKindInputUnreadable:
		return "InputUnreadable"
	case ErrorKindDecodeFailed:
		return "DecodeFailed"
	case ErrorKindOversized:
		return "Oversized"
	case ErrorKindInsufficientMemory:
		return "InsufficientMemory"
	case ErrorKindResizeFailed:
		return "ResizeFailed"
	case ErrorKindEncodeFailed:
		return "EncodeFailed"
	case ErrorKindWriteFailed:
		return "WriteFailed"
	case ErrorKindFinalizeFailed:
		return "FinalizeFailed"
	case ErrorKindPoolTimeout:
		return "PoolTimeout"
	default:
		return "None"
	}
}

// Error wraps an underlying error with the ErrorKind classification used
// to populate Result.ErrorMessage and to decide whether the failure is
// fatal to the whole batch (only ErrorKindPoolTimeout is, per spec.md §7's
// propagation policy).
type Error struct {
	Kind  ErrorKind
	cause error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.cause)
}

func (e *Error) Unwrap() error { return e.cause }

// wrapErr builds a classified Error, using github.com/pkg/errors to attach
// a causal chain (the wrapping convention used across the retrieved pack's
// service-shaped repos) without losing the original error.
func wrapErr(kind ErrorKind, cause error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, cause: errors.Wrapf(cause, format, args...)}
}

var errNegativeDimension = errors.New("pipeline: MaxWidth/MaxHeight must not be negative")
