package duplex

import (
	"errors"
	"fmt"
	"io"

	"github.com/wti806/elevenlabs-tts/internal/protocol"
)

// Sentinel errors returned by Stream implementations
var (
	// ErrClosed is returned when the underlying connection is gone.
	ErrClosed = errors.New("duplex: connection closed")

	// ErrSendClosed is returned by Send after CloseSend.
	ErrSendClosed = errors.New("duplex: send direction closed")
)

// Stream is an ordered, reliable, bidirectional message stream with
// independent half-close of the send direction.
//
// Recv returns io.EOF once the peer has half-closed its direction, and a
// *PeerError if the peer surfaced a terminal error envelope. Implementations
// must support one concurrent sender and one concurrent receiver.
type Stream interface {
	// Send writes one message in its arrival order.
	Send(msg *protocol.Message) error

	// Recv blocks for the next inbound message.
	Recv() (*protocol.Message, error)

	// CloseSend half-closes the send direction. The receive direction
	// remains usable.
	CloseSend() error

	// Close tears down the whole connection.
	Close() error

	// Alive reports whether the peer connection is still usable.
	Alive() bool
}

// PeerError is a terminal error envelope received from the peer.
type PeerError struct {
	Code    string
	Message string
}

func (e *PeerError) Error() string {
	return fmt.Sprintf("peer error (%s): %s", e.Code, e.Message)
}

// interpret maps inbound control envelopes onto Recv semantics: an eos
// envelope becomes io.EOF and an error envelope becomes a *PeerError.
// Data envelopes pass through unchanged.
func interpret(msg *protocol.Message) (*protocol.Message, error) {
	switch msg.Type {
	case protocol.TypeEOS:
		return nil, io.EOF
	case protocol.TypeError:
		return nil, &PeerError{Code: msg.Error.Code, Message: msg.Error.Message}
	default:
		return msg, nil
	}
}
