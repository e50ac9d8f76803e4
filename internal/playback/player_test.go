package playback

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeSink records writes in order and can be told to fail.
type fakeSink struct {
	mu       sync.Mutex
	written  [][]byte
	startErr error
	writeErr error
	started  bool
	stopped  bool
	closed   bool
	latency  time.Duration
}

func (f *fakeSink) Start() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return f.startErr
	}
	f.started = true
	return nil
}

func (f *fakeSink) Write(data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return f.writeErr
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	f.written = append(f.written, buf)
	return nil
}

func (f *fakeSink) Latency() time.Duration {
	return f.latency
}

func (f *fakeSink) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = true
	return nil
}

func (f *fakeSink) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeSink) snapshot() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]byte, len(f.written))
	copy(out, f.written)
	return out
}

func TestPlayerWritesChunksInOrder(t *testing.T) {
	queue := NewQueue(10)
	sink := &fakeSink{}
	stop := NewSignal()

	player := NewPlayer(queue, sink, stop, testLogger())
	player.SetPollInterval(5 * time.Millisecond)
	player.Start()

	chunks := [][]byte{{1}, {2, 2}, {3, 3, 3}}
	for _, c := range chunks {
		if err := queue.Enqueue(c, time.Second); err != nil {
			t.Fatalf("Enqueue failed: %v", err)
		}
	}
	if err := queue.EnqueueEnd(time.Second); err != nil {
		t.Fatalf("EnqueueEnd failed: %v", err)
	}

	if err := player.Join(2 * time.Second); err != nil {
		t.Fatalf("Player did not exit: %v", err)
	}

	written := sink.snapshot()
	if len(written) != len(chunks) {
		t.Fatalf("Expected %d writes, got %d", len(chunks), len(written))
	}
	for i, want := range chunks {
		if !bytes.Equal(written[i], want) {
			t.Errorf("Write %d: got %v, want %v", i, written[i], want)
		}
	}

	if !sink.stopped || !sink.closed {
		t.Errorf("Expected sink to be stopped and closed on exit")
	}
}

func TestPlayerSkipsEmptyChunks(t *testing.T) {
	queue := NewQueue(10)
	sink := &fakeSink{}
	stop := NewSignal()

	player := NewPlayer(queue, sink, stop, testLogger())
	player.SetPollInterval(5 * time.Millisecond)
	player.Start()

	queue.Enqueue([]byte{}, time.Second)
	queue.Enqueue([]byte{7}, time.Second)
	queue.EnqueueEnd(time.Second)

	if err := player.Join(2 * time.Second); err != nil {
		t.Fatalf("Player did not exit: %v", err)
	}

	written := sink.snapshot()
	if len(written) != 1 || !bytes.Equal(written[0], []byte{7}) {
		t.Errorf("Expected only the non-empty chunk to be written, got %v", written)
	}
}

func TestPlayerStopsOnWriteFailure(t *testing.T) {
	queue := NewQueue(10)
	sink := &fakeSink{writeErr: errors.New("device gone")}
	stop := NewSignal()

	player := NewPlayer(queue, sink, stop, testLogger())
	player.SetPollInterval(5 * time.Millisecond)
	player.Start()

	queue.Enqueue([]byte{1}, time.Second)

	if err := player.Join(2 * time.Second); err != nil {
		t.Fatalf("Player did not exit: %v", err)
	}
	if !stop.IsSet() {
		t.Errorf("Expected stop signal after sink write failure")
	}
}

func TestPlayerStopsOnStartFailure(t *testing.T) {
	queue := NewQueue(10)
	sink := &fakeSink{startErr: errors.New("no output device")}
	stop := NewSignal()

	player := NewPlayer(queue, sink, stop, testLogger())
	player.Start()

	if err := player.Join(2 * time.Second); err != nil {
		t.Fatalf("Player did not exit: %v", err)
	}
	if !stop.IsSet() {
		t.Errorf("Expected stop signal after sink start failure")
	}
}

func TestPlayerExitsOnStopSignal(t *testing.T) {
	queue := NewQueue(10)
	sink := &fakeSink{}
	stop := NewSignal()

	player := NewPlayer(queue, sink, stop, testLogger())
	player.SetPollInterval(5 * time.Millisecond)
	player.Start()

	stop.Set()

	if err := player.Join(time.Second); err != nil {
		t.Errorf("Player did not exit after stop signal: %v", err)
	}
}

func TestPlayerJoinTimeout(t *testing.T) {
	queue := NewQueue(10)
	sink := &fakeSink{}
	stop := NewSignal()

	player := NewPlayer(queue, sink, stop, testLogger())
	player.SetPollInterval(5 * time.Millisecond)
	player.Start()

	// Consumer is idle-polling with no end marker queued.
	if err := player.Join(30 * time.Millisecond); err == nil {
		t.Errorf("Expected Join to time out while the consumer is running")
	}

	stop.Set()
	if err := player.Join(time.Second); err != nil {
		t.Errorf("Player did not exit after stop signal: %v", err)
	}
}

func TestPlayerDrainsBeforeExitOnEndMarker(t *testing.T) {
	queue := NewQueue(10)
	sink := &fakeSink{latency: 300 * time.Millisecond}
	stop := NewSignal()

	player := NewPlayer(queue, sink, stop, testLogger())
	player.SetPollInterval(5 * time.Millisecond)
	player.SetDrainMargin(50 * time.Millisecond)
	player.Start()

	if err := queue.Enqueue([]byte{1, 2}, time.Second); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	if err := queue.EnqueueEnd(time.Second); err != nil {
		t.Fatalf("EnqueueEnd failed: %v", err)
	}

	begin := time.Now()
	if err := player.Join(2 * time.Second); err != nil {
		t.Fatalf("Player did not exit: %v", err)
	}
	if elapsed := time.Since(begin); elapsed < sink.latency {
		t.Errorf("Expected drain wait of at least %v, player exited after %v", sink.latency, elapsed)
	}
}

func TestPlayerSkipsDrainWhenStopPrecedesEndMarker(t *testing.T) {
	queue := NewQueue(10)
	sink := &fakeSink{latency: time.Second}
	stop := NewSignal()

	player := NewPlayer(queue, sink, stop, testLogger())
	player.SetPollInterval(5 * time.Millisecond)
	player.Start()

	// Same order as the initiator's terminate path: raise stop, then
	// enqueue the end marker.
	stop.Set()
	if err := queue.EnqueueEnd(time.Second); err != nil {
		t.Fatalf("EnqueueEnd failed: %v", err)
	}

	begin := time.Now()
	if err := player.Join(2 * time.Second); err != nil {
		t.Fatalf("Player did not exit: %v", err)
	}
	if elapsed := time.Since(begin); elapsed >= sink.latency {
		t.Errorf("Expected player to skip the drain wait, exited after %v", elapsed)
	}
}

func TestParseSampleRate(t *testing.T) {
	tests := []struct {
		format      string
		rate        int
		expectError bool
	}{
		{"pcm_24000", 24000, false},
		{"pcm_16000", 16000, false},
		{"ulaw_8000", 0, true},
		{"mp3_44100_128", 0, true},
		{"pcm_", 0, true},
		{"pcm_abc", 0, true},
		{"opus", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			rate, err := ParseSampleRate(tt.format)
			if tt.expectError {
				if err == nil {
					t.Errorf("Expected error for format %q", tt.format)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if rate != tt.rate {
				t.Errorf("Expected rate %d, got %d", tt.rate, rate)
			}
		})
	}
}
