package playback

import (
	"errors"
	"time"
)

// Errors returned by bounded queue operations
var (
	// ErrFull is returned when an enqueue could not complete within its
	// bounded wait.
	ErrFull = errors.New("playback: queue full")

	// ErrTimeout is returned when a dequeue observed no entry within its
	// bounded wait.
	ErrTimeout = errors.New("playback: queue empty")
)

// entry is one queue slot: either an audio chunk or the distinguished
// end-of-stream marker. The marker is a separate flag rather than a
// zero-length chunk so empty data stays unambiguous.
type entry struct {
	data []byte
	end  bool
}

// Queue is a bounded, strict-FIFO buffer decoupling network receipt from
// real-time audio consumption. Exactly one producer (the receive loop) and
// one consumer (the sink driver) use it.
type Queue struct {
	ch chan entry
}

// NewQueue creates a queue with the given capacity bound.
func NewQueue(capacity int) *Queue {
	if capacity < 1 {
		capacity = 1
	}
	return &Queue{ch: make(chan entry, capacity)}
}

// Enqueue adds one audio chunk, waiting up to wait for a free slot.
func (q *Queue) Enqueue(data []byte, wait time.Duration) error {
	return q.push(entry{data: data}, wait)
}

// EnqueueEnd adds the end-of-stream marker, waiting up to wait for a free
// slot.
func (q *Queue) EnqueueEnd(wait time.Duration) error {
	return q.push(entry{end: true}, wait)
}

func (q *Queue) push(e entry, wait time.Duration) error {
	select {
	case q.ch <- e:
		return nil
	default:
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case q.ch <- e:
		return nil
	case <-timer.C:
		return ErrFull
	}
}

// Dequeue removes the next entry, waiting up to wait for one to arrive.
// The second return value reports the end-of-stream marker.
func (q *Queue) Dequeue(wait time.Duration) ([]byte, bool, error) {
	select {
	case e := <-q.ch:
		return e.data, e.end, nil
	default:
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case e := <-q.ch:
		return e.data, e.end, nil
	case <-timer.C:
		return nil, false, ErrTimeout
	}
}

// Len returns the current number of queued entries.
func (q *Queue) Len() int {
	return len(q.ch)
}

// Cap returns the capacity bound.
func (q *Queue) Cap() int {
	return cap(q.ch)
}
