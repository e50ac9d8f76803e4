package playback

import (
	"bytes"
	"errors"
	"testing"
	"time"
)

func TestQueueFIFO(t *testing.T) {
	q := NewQueue(10)

	chunks := [][]byte{{1}, {2, 2}, {3, 3, 3}}
	for _, c := range chunks {
		if err := q.Enqueue(c, time.Second); err != nil {
			t.Fatalf("Enqueue failed: %v", err)
		}
	}

	for i, want := range chunks {
		data, end, err := q.Dequeue(time.Second)
		if err != nil {
			t.Fatalf("Dequeue %d failed: %v", i, err)
		}
		if end {
			t.Fatalf("Unexpected end marker at position %d", i)
		}
		if !bytes.Equal(data, want) {
			t.Errorf("Chunk %d: got %v, want %v", i, data, want)
		}
	}
}

func TestQueueEndMarkerIsDistinctFromEmptyChunk(t *testing.T) {
	q := NewQueue(10)

	if err := q.Enqueue([]byte{}, time.Second); err != nil {
		t.Fatalf("Enqueue of empty chunk failed: %v", err)
	}
	if err := q.EnqueueEnd(time.Second); err != nil {
		t.Fatalf("EnqueueEnd failed: %v", err)
	}

	data, end, err := q.Dequeue(time.Second)
	if err != nil {
		t.Fatalf("Dequeue failed: %v", err)
	}
	if end {
		t.Errorf("Empty chunk must not read as an end marker")
	}
	if len(data) != 0 {
		t.Errorf("Expected empty chunk, got %v", data)
	}

	_, end, err = q.Dequeue(time.Second)
	if err != nil {
		t.Fatalf("Dequeue of end marker failed: %v", err)
	}
	if !end {
		t.Errorf("Expected end marker")
	}
}

func TestQueueFullAfterBoundedWait(t *testing.T) {
	q := NewQueue(1)

	if err := q.Enqueue([]byte{1}, 10*time.Millisecond); err != nil {
		t.Fatalf("First enqueue failed: %v", err)
	}

	start := time.Now()
	err := q.Enqueue([]byte{2}, 30*time.Millisecond)
	if !errors.Is(err, ErrFull) {
		t.Fatalf("Expected ErrFull, got %v", err)
	}
	if elapsed := time.Since(start); elapsed < 30*time.Millisecond {
		t.Errorf("Enqueue gave up before its wait elapsed: %v", elapsed)
	}

	// Dequeue opens a slot and the retry succeeds.
	if _, _, err := q.Dequeue(time.Second); err != nil {
		t.Fatalf("Dequeue failed: %v", err)
	}
	if err := q.Enqueue([]byte{2}, 10*time.Millisecond); err != nil {
		t.Errorf("Enqueue after drain failed: %v", err)
	}
}

func TestQueueDequeueTimeout(t *testing.T) {
	q := NewQueue(1)

	_, _, err := q.Dequeue(20 * time.Millisecond)
	if !errors.Is(err, ErrTimeout) {
		t.Errorf("Expected ErrTimeout on empty queue, got %v", err)
	}
}

func TestQueueUnblocksWaitingProducer(t *testing.T) {
	q := NewQueue(1)

	if err := q.Enqueue([]byte{1}, 10*time.Millisecond); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		done <- q.Enqueue([]byte{2}, time.Second)
	}()

	time.Sleep(20 * time.Millisecond)
	if _, _, err := q.Dequeue(time.Second); err != nil {
		t.Fatalf("Dequeue failed: %v", err)
	}

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Blocked producer should succeed once a slot opens, got %v", err)
		}
	case <-time.After(time.Second):
		t.Errorf("Producer still blocked after consumer made room")
	}
}

func TestQueueCapacityClamp(t *testing.T) {
	q := NewQueue(0)
	if q.Cap() < 1 {
		t.Errorf("Expected capacity clamp to at least 1, got %d", q.Cap())
	}
}
