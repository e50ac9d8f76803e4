package duplex

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wti806/elevenlabs-tts/internal/protocol"
)

// WSStream adapts a websocket connection to the Stream interface. Each
// session message travels as one JSON text frame; half-close travels as a
// dedicated eos envelope so the receive direction can keep flowing.
type WSStream struct {
	conn *websocket.Conn

	writeMu    sync.Mutex
	sendClosed bool

	alive atomic.Bool
}

// NewWSStream wraps an established websocket connection. Works for both the
// dialing and the accepting side.
func NewWSStream(conn *websocket.Conn) *WSStream {
	s := &WSStream{conn: conn}
	s.alive.Store(true)
	return s
}

// Dial establishes a websocket stream to addr within the readiness timeout.
// Establishment past the timeout is abandoned as a failure, not retried.
func Dial(ctx context.Context, addr string, readyTimeout time.Duration, header http.Header) (*WSStream, error) {
	dialer := websocket.Dialer{HandshakeTimeout: readyTimeout}

	dialCtx, cancel := context.WithTimeout(ctx, readyTimeout)
	defer cancel()

	conn, resp, err := dialer.DialContext(dialCtx, addr, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("failed to establish channel to %s (status %d): %w", addr, resp.StatusCode, err)
		}
		return nil, fmt.Errorf("failed to establish channel to %s: %w", addr, err)
	}

	return NewWSStream(conn), nil
}

// Send writes one message as a JSON text frame.
func (s *WSStream) Send(msg *protocol.Message) error {
	data, err := protocol.Encode(msg)
	if err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.sendClosed {
		return ErrSendClosed
	}
	if !s.alive.Load() {
		return ErrClosed
	}

	if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		s.alive.Store(false)
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}

// Recv blocks for the next inbound message. A peer half-close maps to
// io.EOF, a peer error envelope to *PeerError, and a clean websocket close
// to io.EOF as well (the peer is done in both directions).
func (s *WSStream) Recv() (*protocol.Message, error) {
	_, data, err := s.conn.ReadMessage()
	if err != nil {
		s.alive.Store(false)
		if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("failed to receive message: %w", err)
	}

	msg, err := protocol.Decode(data)
	if err != nil {
		return nil, err
	}
	return interpret(msg)
}

// CloseSend half-closes the send direction by emitting an eos envelope.
func (s *WSStream) CloseSend() error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.sendClosed {
		return nil
	}
	s.sendClosed = true

	if !s.alive.Load() {
		return ErrClosed
	}

	data, err := protocol.Encode(protocol.NewEOSMessage())
	if err != nil {
		return err
	}
	if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		s.alive.Store(false)
		return fmt.Errorf("failed to half-close stream: %w", err)
	}
	return nil
}

// Close tears down the websocket connection, attempting a clean close
// handshake first.
func (s *WSStream) Close() error {
	s.writeMu.Lock()
	if s.alive.Load() {
		deadline := time.Now().Add(time.Second)
		_ = s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
	}
	s.sendClosed = true
	s.writeMu.Unlock()

	s.alive.Store(false)
	return s.conn.Close()
}

// Alive reports whether the connection is still usable. It turns false on
// the first failed read or write, or after Close.
func (s *WSStream) Alive() bool {
	return s.alive.Load()
}
