package session

import (
	"errors"
	"fmt"

	"github.com/wti806/elevenlabs-tts/internal/duplex"
	"github.com/wti806/elevenlabs-tts/internal/protocol"
)

// Kind classifies a terminal session error.
type Kind int

const (
	// KindProtocolViolation marks a malformed or out-of-order session
	// start, such as a missing or misplaced config message.
	KindProtocolViolation Kind = iota

	// KindSynthesisFailure marks a provider that failed to start or
	// errored mid-stream.
	KindSynthesisFailure

	// KindTransportFailure marks establishment timeouts, mid-stream
	// disconnects, and peer-reported errors.
	KindTransportFailure

	// KindSinkFailure marks a local audio device or file write error.
	KindSinkFailure

	// KindInternal marks any unanticipated fault.
	KindInternal
)

// String returns the kind name used in logs.
func (k Kind) String() string {
	switch k {
	case KindProtocolViolation:
		return "protocol_violation"
	case KindSynthesisFailure:
		return "synthesis_failure"
	case KindTransportFailure:
		return "transport_failure"
	case KindSinkFailure:
		return "sink_failure"
	case KindInternal:
		return "internal_failure"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// Error is a terminal session error with its taxonomy kind.
type Error struct {
	Kind   Kind
	Detail string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Errorf builds a session error with a formatted detail.
func Errorf(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Detail: fmt.Sprintf(format, args...), Err: cause}
}

// KindOf extracts the taxonomy kind from an error chain.
func KindOf(err error) (Kind, bool) {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind, true
	}
	return 0, false
}

// StatusCategory is the operator-facing display classification of a
// transport failure.
type StatusCategory string

const (
	StatusUnauthenticated StatusCategory = "Unauthenticated"
	StatusInvalidArgument StatusCategory = "InvalidArgument"
	StatusUnavailable     StatusCategory = "Unavailable"
	StatusOther           StatusCategory = "Other"
)

// Classify maps a transport-reported failure onto its display category.
// The classification is purely diagnostic; every category is fatal to the
// session and none triggers a retry.
func Classify(err error) StatusCategory {
	var pe *duplex.PeerError
	if errors.As(err, &pe) {
		switch pe.Code {
		case protocol.CodeUnauthenticated:
			return StatusUnauthenticated
		case protocol.CodeInvalidArgument, protocol.CodeFailedPrecondition:
			return StatusInvalidArgument
		case protocol.CodeUnavailable:
			return StatusUnavailable
		}
	}
	return StatusOther
}
