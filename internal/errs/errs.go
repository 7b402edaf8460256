// Package errs defines the error taxonomy shared across the core.
package errs

import (
	"errors"
	"fmt"
	"time"
)

// Kind classifies an error for callers that need to branch on failure mode.
type Kind int

const (
	KindInternal Kind = iota
	KindConfig
	KindNotFound
	KindInvalidArgument
	KindDatabase
	KindVectorDB
	KindEmbedding
	KindResourceExhausted
	KindTimeout
	KindCancelled
)

func (k Kind) String() string {
	switch k {
	case KindConfig:
		return "config"
	case KindNotFound:
		return "not_found"
	case KindInvalidArgument:
		return "invalid_argument"
	case KindDatabase:
		return "database"
	case KindVectorDB:
		return "vector_db"
	case KindEmbedding:
		return "embedding"
	case KindResourceExhausted:
		return "resource_exhausted"
	case KindTimeout:
		return "timeout"
	case KindCancelled:
		return "cancelled"
	default:
		return "internal"
	}
}

// Error is the concrete error type returned by the core components.
type Error struct {
	Kind      Kind
	Op        string
	Msg       string
	Retriable bool
	// RetryAfter is a hint for ResourceExhausted errors; zero means unknown.
	RetryAfter time.Duration
	Err        error
}

func (e *Error) Error() string {
	switch {
	case e.Msg != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %s: %v", e.Kind, e.Op, e.Msg, e.Err)
	case e.Msg != "":
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Op, e.Msg)
	case e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
	default:
		return fmt.Sprintf("%s: %s", e.Kind, e.Op)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// E constructs an Error. Op names the failing operation ("index.embed_batch").
func E(kind Kind, op, msg string) *Error {
	return &Error{Kind: kind, Op: op, Msg: msg}
}

// Wrap annotates err with a kind and operation.
func Wrap(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Retriable wraps a provider error that is safe to retry.
func RetriableE(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err, Retriable: true}
}

// Invalid reports a rejected argument.
func Invalid(field, reason string) *Error {
	return &Error{Kind: KindInvalidArgument, Op: field, Msg: reason}
}

// NotFound reports a missing entity of the given kind.
func NotFound(entity, id string) *Error {
	return &Error{Kind: KindNotFound, Op: entity, Msg: id}
}

// KindOf extracts the Kind from err, or KindInternal if err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsRetriable reports whether err (or any wrapped error) is marked retriable.
func IsRetriable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Retriable
	}
	return false
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, k Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == k
	}
	return false
}
