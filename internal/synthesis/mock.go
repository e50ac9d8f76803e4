package synthesis

import (
	"context"
	"io"
	"sync"
	"time"
)

// MockProvider is an in-process Provider for tests and offline runs. It
// consumes the text channel in the background and yields a preset chunk
// sequence, optionally ending in an error instead of a natural finish.
type MockProvider struct {
	Chunks     [][]byte
	Err        error         // returned after Chunks instead of io.EOF
	StartErr   error         // fails Synthesize itself
	ChunkDelay time.Duration // pause before each chunk
	Release    chan struct{} // when set, chunks wait for one receive each

	mu       sync.Mutex
	received []string
	lastReq  Request
}

// Synthesize implements Provider.
func (m *MockProvider) Synthesize(ctx context.Context, req Request, text <-chan string) (AudioStream, error) {
	if m.StartErr != nil {
		return nil, m.StartErr
	}

	m.mu.Lock()
	m.lastReq = req
	m.mu.Unlock()

	go func() {
		for t := range text {
			m.mu.Lock()
			m.received = append(m.received, t)
			m.mu.Unlock()
		}
	}()

	return &mockStream{provider: m, ctx: ctx}, nil
}

// Received returns the text fragments consumed so far, in arrival order.
func (m *MockProvider) Received() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.received))
	copy(out, m.received)
	return out
}

// LastRequest returns the parameters of the most recent Synthesize call.
func (m *MockProvider) LastRequest() Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastReq
}

type mockStream struct {
	provider *MockProvider
	ctx      context.Context
	pos      int
	closed   bool
}

func (s *mockStream) Next() ([]byte, error) {
	if s.closed {
		return nil, io.EOF
	}
	if err := s.ctx.Err(); err != nil {
		return nil, err
	}

	p := s.provider
	if s.pos >= len(p.Chunks) {
		if p.Err != nil {
			return nil, p.Err
		}
		return nil, io.EOF
	}

	if p.Release != nil {
		select {
		case <-p.Release:
		case <-s.ctx.Done():
			return nil, s.ctx.Err()
		}
	}
	if p.ChunkDelay > 0 {
		select {
		case <-time.After(p.ChunkDelay):
		case <-s.ctx.Done():
			return nil, s.ctx.Err()
		}
	}

	chunk := p.Chunks[s.pos]
	s.pos++
	return chunk, nil
}

func (s *mockStream) Close() error {
	s.closed = true
	return nil
}
