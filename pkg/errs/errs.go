// Package errs defines the closed set of error kinds shared across the
// claim pipeline (spec.md §7). Components wrap a Kind with context using
// fmt.Errorf("...: %w", err); callers recover the kind with errors.As.
package errs

import "fmt"

// Kind is one of a small, fixed set of error categories. Kind values are
// compared by identity, never by string, so renaming a message never
// changes behavior.
type Kind int

const (
	_ Kind = iota
	MalformedInput
	NotEligible
	WeakKey
	ProverInternal
	AlreadyClaimed
	RateLimited
	ChainRevertKnown
	ChainTransient
	ServiceStarved
	StorageFailure
	Internal
)

func (k Kind) String() string {
	switch k {
	case MalformedInput:
		return "MalformedInput"
	case NotEligible:
		return "NotEligible"
	case WeakKey:
		return "WeakKey"
	case ProverInternal:
		return "ProverInternalError"
	case AlreadyClaimed:
		return "AlreadyClaimed"
	case RateLimited:
		return "RateLimited"
	case ChainRevertKnown:
		return "ChainRevertKnown"
	case ChainTransient:
		return "ChainTransient"
	case ServiceStarved:
		return "ServiceStarved"
	case StorageFailure:
		return "StorageFailure"
	case Internal:
		return "Internal"
	default:
		return "Unknown"
	}
}

// Error pairs a Kind with a message and an optional wrapped cause.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an *Error with no wrapped cause.
func New(kind Kind, msg string) error {
	return &Error{Kind: kind, Msg: msg}
}

// Wrap builds an *Error that wraps cause.
func Wrap(kind Kind, msg string, cause error) error {
	return &Error{Kind: kind, Msg: msg, Err: cause}
}

// KindOf returns the Kind of err if it (or something it wraps) is an *Error,
// otherwise Internal.
func KindOf(err error) Kind {
	for err != nil {
		if e, ok := err.(*Error); ok {
			return e.Kind
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	return Internal
}
