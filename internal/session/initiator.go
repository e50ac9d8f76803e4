package session

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/wti806/elevenlabs-tts/internal/duplex"
	"github.com/wti806/elevenlabs-tts/internal/playback"
	"github.com/wti806/elevenlabs-tts/internal/protocol"
)

// Defaults for the initiator's bounded waits
const (
	DefaultEnqueueWait  = time.Second
	DefaultRetryBackoff = 100 * time.Millisecond
	DefaultSentinelWait = 500 * time.Millisecond
	DefaultJoinTimeout  = 5 * time.Second
)

// InitiatorOptions configures a StreamingSession. Exactly one of Queue and
// FileSink must be set: audio is either buffered for live playback or
// appended raw to a file, never both.
type InitiatorOptions struct {
	Config protocol.SessionConfig

	// Queue and Player carry live playback. Player may be nil when the
	// caller drives the queue itself (tests).
	Queue  *playback.Queue
	Player *playback.Player

	// FileSink receives the exact concatenation of chunk payloads in
	// arrival order.
	FileSink io.WriteCloser

	// Stop is the shared cancellation flag. Required.
	Stop *playback.Signal

	Logger *slog.Logger

	EnqueueWait  time.Duration
	RetryBackoff time.Duration
	SentinelWait time.Duration
	JoinTimeout  time.Duration
}

// StreamingSession is the initiator-side driver for one duplex session:
// it performs the handshake, streams line-delimited input out, and routes
// inbound audio to the configured destination.
type StreamingSession struct {
	stream duplex.Stream
	opts   InitiatorOptions
	logger *slog.Logger

	mu             sync.Mutex
	chunksReceived uint64
	sendErr        error
}

// NewStreamingSession validates the options and builds a session over an
// established stream.
func NewStreamingSession(stream duplex.Stream, opts InitiatorOptions) (*StreamingSession, error) {
	if (opts.Queue == nil) == (opts.FileSink == nil) {
		return nil, fmt.Errorf("exactly one of playback queue and file sink must be configured")
	}
	if opts.Stop == nil {
		return nil, fmt.Errorf("stop signal is required")
	}
	if err := opts.Config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid session config: %w", err)
	}

	if opts.EnqueueWait <= 0 {
		opts.EnqueueWait = DefaultEnqueueWait
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = DefaultRetryBackoff
	}
	if opts.SentinelWait <= 0 {
		opts.SentinelWait = DefaultSentinelWait
	}
	if opts.JoinTimeout <= 0 {
		opts.JoinTimeout = DefaultJoinTimeout
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &StreamingSession{stream: stream, opts: opts, logger: logger}, nil
}

// ChunksReceived returns the number of audio chunks received so far.
func (s *StreamingSession) ChunksReceived() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.chunksReceived
}

// Run drives the session to completion: config first, then concurrent
// outbound text production and inbound audio consumption. The termination
// sequence executes on every exit path.
func (s *StreamingSession) Run(ctx context.Context, input io.Reader) error {
	defer s.terminate()

	if err := s.stream.Send(protocol.NewConfigMessage(s.opts.Config)); err != nil {
		return Errorf(KindTransportFailure, err, "failed to send session config")
	}
	s.logger.Info("Session config sent",
		slog.String("voice_id", s.opts.Config.VoiceID),
		slog.String("model_id", s.opts.Config.ModelID),
		slog.String("output_format", s.opts.Config.OutputFormat),
	)

	go s.sendLoop(input)

	return s.receiveLoop(ctx)
}

// sendLoop streams successive input lines as text fragments. An empty line
// or end of input half-closes the outbound direction; this is the user's
// completion signal, not an error.
func (s *StreamingSession) sendLoop(input io.Reader) {
	scanner := bufio.NewScanner(input)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			s.logger.Debug("Empty input line, finishing outbound stream")
			break
		}

		if err := s.stream.Send(protocol.NewInputMessage(line)); err != nil {
			s.logger.Warn("Failed to send text fragment", slog.String("error", err.Error()))
			s.mu.Lock()
			s.sendErr = err
			s.mu.Unlock()
			return
		}
		s.logger.Debug("Text fragment sent", slog.Int("length", len(line)))
	}

	if err := scanner.Err(); err != nil {
		s.logger.Warn("Input source failed", slog.String("error", err.Error()))
	}

	if err := s.stream.CloseSend(); err != nil {
		s.logger.Warn("Failed to half-close outbound direction", slog.String("error", err.Error()))
	}
}

// receiveLoop consumes inbound audio until the responder closes its
// direction, classifying any transport failure for display.
func (s *StreamingSession) receiveLoop(ctx context.Context) error {
	for {
		if s.opts.Stop.IsSet() {
			s.logger.Warn("Playback stopped, abandoning receive loop")
			return Errorf(KindSinkFailure, nil, "playback consumer stopped unexpectedly")
		}
		if err := ctx.Err(); err != nil {
			return Errorf(KindTransportFailure, err, "session cancelled")
		}

		msg, err := s.stream.Recv()
		if errors.Is(err, io.EOF) {
			s.logger.Info("Response stream finished",
				slog.Uint64("chunks_received", s.ChunksReceived()),
			)
			return nil
		}
		if err != nil {
			category := Classify(err)
			s.logger.Error("Transport failure",
				slog.String("category", string(category)),
				slog.String("error", err.Error()),
			)
			return Errorf(KindTransportFailure, err, "session failed (%s)", category)
		}

		if msg.Type != protocol.TypeAudio {
			s.logger.Warn("Ignoring unexpected message from responder", slog.String("type", msg.Type))
			continue
		}
		chunk := msg.Audio.Data
		if len(chunk) == 0 {
			continue
		}

		s.mu.Lock()
		s.chunksReceived++
		received := s.chunksReceived
		s.mu.Unlock()
		s.logger.Debug("Audio chunk received",
			slog.Uint64("chunk_index", received),
			slog.Int("size", len(chunk)),
		)

		if err := s.dispatch(chunk); err != nil {
			return err
		}
	}
}

// dispatch routes one chunk to the configured destination. In live mode a
// full buffer is retried after a short backoff: sustained overload degrades
// to lag, never to silent loss.
func (s *StreamingSession) dispatch(chunk []byte) error {
	if s.opts.FileSink != nil {
		if _, err := s.opts.FileSink.Write(chunk); err != nil {
			s.opts.Stop.Set()
			return Errorf(KindSinkFailure, err, "failed to write audio to file")
		}
		return nil
	}

	for {
		err := s.opts.Queue.Enqueue(chunk, s.opts.EnqueueWait)
		if err == nil {
			return nil
		}
		if !errors.Is(err, playback.ErrFull) {
			s.opts.Stop.Set()
			return Errorf(KindSinkFailure, err, "failed to enqueue audio chunk")
		}

		s.logger.Warn("Playback buffer full, playback may be lagging",
			slog.Int("capacity", s.opts.Queue.Cap()),
		)
		time.Sleep(s.opts.RetryBackoff)

		if s.opts.Stop.IsSet() {
			return Errorf(KindSinkFailure, nil, "playback stopped while buffer was full")
		}
	}
}

// terminate runs the unconditional shutdown sequence: raise the stop flag,
// push the end-of-stream sentinel, close the file sink, join the playback
// consumer within a bound, and close the transport.
func (s *StreamingSession) terminate() {
	s.opts.Stop.Set()

	if s.opts.Queue != nil {
		if err := s.opts.Queue.EnqueueEnd(s.opts.SentinelWait); err != nil {
			s.logger.Warn("Could not enqueue end-of-stream marker", slog.String("error", err.Error()))
		}
	}

	if s.opts.FileSink != nil {
		if err := s.opts.FileSink.Close(); err != nil {
			s.logger.Warn("Error closing output file", slog.String("error", err.Error()))
		}
	}

	if s.opts.Player != nil {
		if err := s.opts.Player.Join(s.opts.JoinTimeout); err != nil {
			s.logger.Warn("Playback consumer did not exit cleanly", slog.String("error", err.Error()))
		}
	}

	if err := s.stream.Close(); err != nil {
		s.logger.Debug("Error closing transport channel", slog.String("error", err.Error()))
	}
	s.logger.Info("Session closed")
}
