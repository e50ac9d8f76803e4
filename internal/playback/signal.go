package playback

import "sync"

// Signal is a one-shot stop flag shared between the network receive path
// and the playback consumer. Any side may set it; all sides observe it at
// their poll points.
type Signal struct {
	once sync.Once
	ch   chan struct{}
}

// NewSignal creates an unset signal.
func NewSignal() *Signal {
	return &Signal{ch: make(chan struct{})}
}

// Set raises the signal. Safe to call repeatedly from multiple goroutines.
func (s *Signal) Set() {
	s.once.Do(func() { close(s.ch) })
}

// IsSet reports whether the signal has been raised.
func (s *Signal) IsSet() bool {
	select {
	case <-s.ch:
		return true
	default:
		return false
	}
}

// Done returns a channel closed when the signal is raised.
func (s *Signal) Done() <-chan struct{} {
	return s.ch
}
