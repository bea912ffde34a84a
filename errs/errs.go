// Package errs defines the error taxonomy shared by every component of the
// adaptive hashmap core: BadInput, IO, Policy, and Internal.
package errs

import (
	"errors"
	"fmt"
)

// Tier identifies which of the four error categories an Error belongs to.
type Tier string

const (
	// TierBadInput covers malformed operation records, invalid config, and
	// out-of-range thresholds. Always propagated; never swallowed.
	TierBadInput Tier = "bad_input"
	// TierIO covers file-not-found, unreadable, checksum-mismatch, and
	// snapshot-format violations.
	TierIO Tier = "io"
	// TierPolicy covers requests that would violate an invariant, such as a
	// migration requested while one is already in flight.
	TierPolicy Tier = "policy"
	// TierInternal covers invariants that HAVE been violated. Callers that
	// see this should terminate rather than continue with corrupted state.
	TierInternal Tier = "internal"
)

// Sentinel errors for errors.Is checks against the tier, independent of the
// specific detail message.
var (
	ErrBadInput = errors.New("errs: bad input")
	ErrIO       = errors.New("errs: io")
	ErrPolicy   = errors.New("errs: policy violation")
	ErrInternal = errors.New("errs: internal invariant violated")
)

func sentinelFor(tier Tier) error {
	switch tier {
	case TierBadInput:
		return ErrBadInput
	case TierIO:
		return ErrIO
	case TierPolicy:
		return ErrPolicy
	case TierInternal:
		return ErrInternal
	default:
		return nil
	}
}

// Error is the concrete error type returned by every core component. Message
// is a structured detail string naming the offending field/path/invariant and
// the constraint that was violated.
type Error struct {
	Tier    Tier
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Tier, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Tier, e.Message)
}

// Unwrap lets errors.Is/As see through to both the wrapped cause and the
// tier's sentinel.
func (e *Error) Unwrap() []error {
	sentinel := sentinelFor(e.Tier)
	if e.Cause != nil {
		return []error{sentinel, e.Cause}
	}
	return []error{sentinel}
}

// BadInput reports a malformed operation record or invalid configuration.
// field names the offending field; constraint describes what was required.
func BadInput(field, constraint string) *Error {
	return &Error{Tier: TierBadInput, Message: fmt.Sprintf("field %q: %s", field, constraint)}
}

// IO reports a filesystem or snapshot-format failure for the given path.
func IO(path string, cause error) *Error {
	return &Error{Tier: TierIO, Message: fmt.Sprintf("path %q", path), Cause: cause}
}

// Policy reports a request that would violate an invariant (e.g. a second
// migration requested while one is already in flight).
func Policy(reason string) *Error {
	return &Error{Tier: TierPolicy, Message: reason}
}

// Internal reports that an invariant has already been violated. Callers
// should treat this as fatal.
func Internal(invariant string) *Error {
	return &Error{Tier: TierInternal, Message: fmt.Sprintf("invariant violated: %s", invariant)}
}

// IsFatal reports whether err is an Internal-tier error, i.e. the process
// should terminate rather than continue operating on corrupted state.
func IsFatal(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Tier == TierInternal
	}
	return false
}
