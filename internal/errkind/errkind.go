// Package errkind classifies the error taxonomy from the error-handling
// design: decode failures, RPC policy violations, stale references,
// transport timeouts and invariant breaches all carry a stable Kind so
// callers can decide whether to log, count, or disconnect without string
// matching.
package errkind

import (
	"golang.org/x/xerrors"
)

// Kind is one of the six error categories.
type Kind int

const (
	// Unknown is the zero value; never attached deliberately.
	Unknown Kind = iota
	// Malformed marks a decode failure on untrusted input.
	Malformed
	// Unauthorized marks an RPC that failed an ownership or role check.
	Unauthorized
	// NotFound marks a reference to a net-id, player or room that no
	// longer (or never did) exist.
	NotFound
	// PolicyViolation marks an anti-cheat rule violation.
	PolicyViolation
	// Timeout marks a transport-level deadline expiry.
	Timeout
	// Fatal marks an invariant breach; the owning room is destroyed but
	// the process continues.
	Fatal
)

func (k Kind) String() string {
	switch k {
	case Malformed:
		return "malformed"
	case Unauthorized:
		return "unauthorized"
	case NotFound:
		return "not_found"
	case PolicyViolation:
		return "policy_violation"
	case Timeout:
		return "timeout"
	case Fatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// kindError wraps an error with a Kind without hiding the wrap chain -
// xerrors.Is/As/Unwrap all keep working through it.
type kindError struct {
	kind Kind
	err  error
}

func (e *kindError) Error() string { return e.err.Error() }
func (e *kindError) Unwrap() error { return e.err }

// Wrap attaches kind to err, preserving err in the unwrap chain.
func Wrap(kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return &kindError{kind: kind, err: err}
}

// Errorf is xerrors.Errorf followed by Wrap, for the common case of
// annotating a new error with a kind in one call.
func Errorf(kind Kind, format string, args ...interface{}) error {
	return Wrap(kind, xerrors.Errorf(format, args...))
}

// Of returns the Kind attached to err via Wrap/Errorf, walking the unwrap
// chain. Returns Unknown if no kindError is found.
func Of(err error) Kind {
	for err != nil {
		if ke, ok := err.(*kindError); ok {
			return ke.kind
		}
		err = xerrors.Unwrap(err)
	}
	return Unknown
}

// Is reports whether err (or anything it wraps) carries kind.
func Is(err error, kind Kind) bool {
	return Of(err) == kind
}
