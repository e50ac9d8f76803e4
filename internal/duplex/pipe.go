package duplex

import (
	"io"
	"sync"

	"github.com/wti806/elevenlabs-tts/internal/protocol"
)

// PipeEnd is one side of an in-memory duplex stream. Message order is
// preserved per direction; half-close and peer teardown behave like the
// websocket implementation.
type PipeEnd struct {
	out chan *protocol.Message
	in  chan *protocol.Message

	localDone chan struct{}
	peerDone  chan struct{}
	closeOnce sync.Once

	sendMu     sync.Mutex
	sendClosed bool

	recvMu   sync.Mutex
	recvDone bool
}

// Pipe returns two connected stream ends. Each direction buffers up to
// capacity messages before Send blocks.
func Pipe(capacity int) (*PipeEnd, *PipeEnd) {
	ab := make(chan *protocol.Message, capacity)
	ba := make(chan *protocol.Message, capacity)
	aDone := make(chan struct{})
	bDone := make(chan struct{})

	a := &PipeEnd{out: ab, in: ba, localDone: aDone, peerDone: bDone}
	b := &PipeEnd{out: ba, in: ab, localDone: bDone, peerDone: aDone}
	return a, b
}

// Send queues one message for the peer, blocking while the direction's
// buffer is full.
func (e *PipeEnd) Send(msg *protocol.Message) error {
	if err := protocol.Validate(msg); err != nil {
		return err
	}

	e.sendMu.Lock()
	closed := e.sendClosed
	e.sendMu.Unlock()
	if closed {
		return ErrSendClosed
	}

	select {
	case e.out <- msg:
		return nil
	case <-e.peerDone:
		return ErrClosed
	case <-e.localDone:
		return ErrClosed
	}
}

// Recv returns the next inbound message. Buffered messages are drained
// before peer teardown is reported, so a clean shutdown delivers everything
// that was sent.
func (e *PipeEnd) Recv() (*protocol.Message, error) {
	e.recvMu.Lock()
	done := e.recvDone
	e.recvMu.Unlock()
	if done {
		return nil, io.EOF
	}

	// Prefer pending data over teardown signals.
	select {
	case msg := <-e.in:
		return e.deliver(msg)
	default:
	}

	select {
	case msg := <-e.in:
		return e.deliver(msg)
	case <-e.peerDone:
		return nil, ErrClosed
	case <-e.localDone:
		return nil, ErrClosed
	}
}

func (e *PipeEnd) deliver(msg *protocol.Message) (*protocol.Message, error) {
	out, err := interpret(msg)
	if err == io.EOF {
		e.recvMu.Lock()
		e.recvDone = true
		e.recvMu.Unlock()
	}
	return out, err
}

// CloseSend half-closes the send direction, queuing an eos envelope after
// any pending messages.
func (e *PipeEnd) CloseSend() error {
	e.sendMu.Lock()
	if e.sendClosed {
		e.sendMu.Unlock()
		return nil
	}
	e.sendClosed = true
	e.sendMu.Unlock()

	select {
	case e.out <- protocol.NewEOSMessage():
		return nil
	case <-e.peerDone:
		return ErrClosed
	case <-e.localDone:
		return ErrClosed
	}
}

// Close tears down this end. The peer observes ErrClosed once its inbound
// buffer is drained, and its sends fail immediately.
func (e *PipeEnd) Close() error {
	e.closeOnce.Do(func() {
		e.sendMu.Lock()
		e.sendClosed = true
		e.sendMu.Unlock()
		close(e.localDone)
	})
	return nil
}

// Alive reports whether both ends are still open.
func (e *PipeEnd) Alive() bool {
	select {
	case <-e.peerDone:
		return false
	case <-e.localDone:
		return false
	default:
		return true
	}
}
