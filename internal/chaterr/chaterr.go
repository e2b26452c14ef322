// Package chaterr classifies failures into the error kinds the connection
// handler, client reader, and fan-out worker need to distinguish: a
// protocol violation by one peer never affects another, a peer simply
// going away is handled identically to a failed send, and an internal
// fault aborts only the affected room or connection.
package chaterr

import (
	"errors"
	"fmt"
)

// Kind classifies the cause of a failure.
type Kind int

const (
	// ProtocolViolation: malformed JOIN, oversize JOIN, invalid identifier,
	// line exceeding MAX_MSG_SIZE. Response: ERROR\n to the offender, close.
	ProtocolViolation Kind = iota
	// PeerGone: socket read returned <= 0 or a send failed.
	PeerGone
	// CapacityPressure: never surfaced to a caller; producers block instead.
	CapacityPressure
	// InternalFault: synchronization primitive, allocation, or spawn failure.
	InternalFault
)

func (k Kind) String() string {
	switch k {
	case ProtocolViolation:
		return "protocol_violation"
	case PeerGone:
		return "peer_gone"
	case CapacityPressure:
		return "capacity_pressure"
	case InternalFault:
		return "internal_fault"
	default:
		return "unknown"
	}
}

// Error wraps a cause with a Kind so call sites can switch on it without
// string matching.
type Error struct {
	Kind  Kind
	Cause error
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Cause)
}

func (e *Error) Unwrap() error { return e.Cause }

// New constructs an *Error of the given kind wrapping cause.
func New(kind Kind, cause error) *Error {
	return &Error{Kind: kind, Cause: cause}
}

// Is reports whether err is a *Error of kind k.
func Is(err error, k Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == k
	}
	return false
}
