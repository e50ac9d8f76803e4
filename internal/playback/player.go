package playback

import (
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Defaults for the consumer loop
const (
	DefaultPollInterval = 100 * time.Millisecond
	DefaultDrainMargin  = 100 * time.Millisecond
)

// Player drives the audio sink from the queue in a dedicated goroutine.
// It observes the shared stop signal at every poll interval and raises it
// itself on any sink failure.
type Player struct {
	queue  *Queue
	sink   Sink
	stop   *Signal
	logger *slog.Logger

	pollInterval time.Duration
	drainMargin  time.Duration

	done chan struct{}
}

// NewPlayer creates a player over the given queue and sink. The stop signal
// is shared with the producing side.
func NewPlayer(queue *Queue, sink Sink, stop *Signal, logger *slog.Logger) *Player {
	return &Player{
		queue:        queue,
		sink:         sink,
		stop:         stop,
		logger:       logger,
		pollInterval: DefaultPollInterval,
		drainMargin:  DefaultDrainMargin,
		done:         make(chan struct{}),
	}
}

// SetPollInterval overrides the stop-flag polling interval.
func (p *Player) SetPollInterval(d time.Duration) {
	if d > 0 {
		p.pollInterval = d
	}
}

// SetDrainMargin overrides the safety margin added to the sink latency
// when waiting out the final samples.
func (p *Player) SetDrainMargin(d time.Duration) {
	if d >= 0 {
		p.drainMargin = d
	}
}

// Start launches the consumer loop.
func (p *Player) Start() {
	go p.run()
}

func (p *Player) run() {
	defer close(p.done)

	started := false
	defer func() {
		if started {
			if err := p.sink.Stop(); err != nil {
				p.logger.Warn("Error stopping audio sink", slog.String("error", err.Error()))
			}
		}
		if err := p.sink.Close(); err != nil {
			p.logger.Warn("Error closing audio sink", slog.String("error", err.Error()))
		}
		p.logger.Debug("Playback consumer finished")
	}()

	if err := p.sink.Start(); err != nil {
		p.logger.Error("Failed to initialize audio sink", slog.String("error", err.Error()))
		p.stop.Set()
		return
	}
	started = true

	p.logger.Debug("Playback consumer started",
		slog.Duration("poll_interval", p.pollInterval),
		slog.Duration("drain_margin", p.drainMargin),
	)

	for {
		if p.stop.IsSet() {
			return
		}

		data, end, err := p.queue.Dequeue(p.pollInterval)
		if errors.Is(err, ErrTimeout) {
			continue
		}

		if end {
			// Natural end of stream: let the last written samples leave
			// the device before tearing it down. The wait only fires when
			// the consumer reaches the marker before the producer raises
			// stop; the initiator's terminate path sets stop first, so a
			// producer-driven shutdown skips the drain.
			if !p.stop.IsSet() {
				time.Sleep(p.sink.Latency() + p.drainMargin)
			}
			return
		}

		if len(data) == 0 {
			continue
		}

		if err := p.sink.Write(data); err != nil {
			p.logger.Error("Audio sink write failed", slog.String("error", err.Error()))
			p.stop.Set()
			return
		}
	}
}

// Join waits for the consumer loop to finish, up to timeout.
func (p *Player) Join(timeout time.Duration) error {
	select {
	case <-p.done:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("playback consumer did not finish within %v", timeout)
	}
}
