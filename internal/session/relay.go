package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/wti806/elevenlabs-tts/internal/duplex"
	"github.com/wti806/elevenlabs-tts/internal/protocol"
	"github.com/wti806/elevenlabs-tts/internal/synthesis"
)

// State is the relay session lifecycle position.
type State int

const (
	// StateAwaitingConfig is the initial state: nothing but a config
	// message is acceptable.
	StateAwaitingConfig State = iota

	// StateRelaying bridges inbound text to the provider and provider
	// audio back to the peer.
	StateRelaying

	// StateDraining continues emitting in-flight audio after the peer
	// half-closed its inbound direction.
	StateDraining

	// StateTerminated is final; no further messages are emitted.
	StateTerminated
)

// String returns the state name used in logs.
func (s State) String() string {
	switch s {
	case StateAwaitingConfig:
		return "awaiting_config"
	case StateRelaying:
		return "relaying"
	case StateDraining:
		return "draining"
	case StateTerminated:
		return "terminated"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// textBufferSize bounds how far the inbound reader may run ahead of the
// provider's text consumption.
const textBufferSize = 16

// RelaySession is the responder-side state machine for one duplex session.
// It validates the handshake, forwards inbound text fragments to the
// synthesis provider in arrival order, and sends the provider's audio
// chunks back in production order. The two directions run concurrently.
type RelaySession struct {
	id       string
	stream   duplex.Stream
	provider synthesis.Provider
	logger   *slog.Logger

	mu                 sync.Mutex
	state              State
	fragmentsForwarded uint64
	chunksSent         uint64
}

// NewRelaySession creates a relay session over an accepted stream.
func NewRelaySession(id string, stream duplex.Stream, provider synthesis.Provider, logger *slog.Logger) *RelaySession {
	return &RelaySession{
		id:       id,
		stream:   stream,
		provider: provider,
		logger:   logger.With(slog.String("session_id", id)),
	}
}

// State returns the current lifecycle state.
func (r *RelaySession) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// ChunksSent returns the number of audio chunks emitted so far.
func (r *RelaySession) ChunksSent() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.chunksSent
}

// FragmentsForwarded returns the number of text fragments fed to the provider.
func (r *RelaySession) FragmentsForwarded() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.fragmentsForwarded
}

func (r *RelaySession) setState(s State) {
	r.mu.Lock()
	r.state = s
	r.mu.Unlock()
}

// transition moves to next only when currently in from.
func (r *RelaySession) transition(from, next State) {
	r.mu.Lock()
	if r.state == from {
		r.state = next
	}
	r.mu.Unlock()
}

// Run executes the session to completion. A nil return means the provider's
// audio sequence ended naturally and the outbound direction was closed.
// A *Error return carries the taxonomy kind; the peer has already been sent
// an error envelope where the transport still allowed it.
func (r *RelaySession) Run(ctx context.Context) (err error) {
	defer r.setState(StateTerminated)
	defer func() {
		if rec := recover(); rec != nil {
			err = r.abort(protocol.CodeInternal, KindInternal, fmt.Errorf("panic: %v", rec),
				"unexpected internal fault")
		}
	}()

	cfg, err := r.handshake()
	if err != nil {
		return err
	}

	r.logger.Info("Session configured",
		slog.String("voice_id", cfg.VoiceID),
		slog.String("model_id", cfg.ModelID),
		slog.String("output_format", cfg.OutputFormat),
	)
	r.setState(StateRelaying)

	// Bridge inbound input messages onto the provider's text sequence.
	// The channel bound keeps the reader from buffering unboundedly ahead
	// of the provider.
	bridgeCtx, cancelBridge := context.WithCancel(ctx)
	defer cancelBridge()

	text := make(chan string, textBufferSize)
	go r.forwardText(bridgeCtx, text)

	req := synthesis.Request{
		VoiceID:      cfg.VoiceID,
		ModelID:      cfg.ModelID,
		OutputFormat: cfg.OutputFormat,
	}
	audio, err := r.provider.Synthesize(bridgeCtx, req, text)
	if err != nil {
		return r.abort(protocol.CodeInternal, KindSynthesisFailure, err, "provider failed to start")
	}
	defer audio.Close()

	if err := r.relayAudio(audio); err != nil {
		return err
	}

	// Natural end of the provider's sequence: close our direction.
	if err := r.stream.CloseSend(); err != nil {
		r.logger.Warn("Failed to close outbound direction", slog.String("error", err.Error()))
	}

	r.mu.Lock()
	sent := r.chunksSent
	forwarded := r.fragmentsForwarded
	r.mu.Unlock()
	r.logger.Info("Session completed",
		slog.Uint64("fragments_forwarded", forwarded),
		slog.Uint64("chunks_sent", sent),
	)
	return nil
}

// handshake reads and validates the mandatory first config message.
func (r *RelaySession) handshake() (*protocol.SessionConfig, error) {
	msg, err := r.stream.Recv()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, r.abort(protocol.CodeFailedPrecondition, KindProtocolViolation, nil,
				"session ended before a config message was received")
		}
		return nil, Errorf(KindTransportFailure, err, "failed to read session start")
	}

	if msg.Type != protocol.TypeConfig {
		return nil, r.abort(protocol.CodeFailedPrecondition, KindProtocolViolation, nil,
			"the first message sent must be a config message, got %q", msg.Type)
	}

	if err := msg.Config.Validate(); err != nil {
		return nil, r.abort(protocol.CodeInvalidArgument, KindProtocolViolation, err,
			"invalid session config")
	}

	return msg.Config, nil
}

// forwardText reads inbound messages for the rest of the session, feeding
// input fragments to the provider in arrival order. Inbound half-close ends
// the text sequence but not the session. Non-input messages are ignored.
func (r *RelaySession) forwardText(ctx context.Context, text chan<- string) {
	defer close(text)

	for {
		msg, err := r.stream.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				r.logger.Debug("Inbound direction half-closed, draining provider audio")
			} else {
				r.logger.Warn("Inbound read failed", slog.String("error", err.Error()))
			}
			r.transition(StateRelaying, StateDraining)
			return
		}

		if msg.Type != protocol.TypeInput {
			r.logger.Warn("Ignoring unexpected message during relay", slog.String("type", msg.Type))
			continue
		}

		select {
		case text <- msg.Input.Text:
			r.mu.Lock()
			r.fragmentsForwarded++
			r.mu.Unlock()
		case <-ctx.Done():
			return
		}
	}
}

// relayAudio pumps provider audio to the peer in strict production order,
// checking peer liveness before each send.
func (r *RelaySession) relayAudio(audio synthesis.AudioStream) error {
	for {
		chunk, err := audio.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return r.abort(protocol.CodeInternal, KindSynthesisFailure, err, "synthesis stream failed")
		}
		if len(chunk) == 0 {
			continue
		}

		if !r.stream.Alive() {
			r.logger.Warn("Peer connection inactive, aborting audio relay")
			return Errorf(KindTransportFailure, nil, "peer disconnected during audio relay")
		}

		if err := r.stream.Send(protocol.NewAudioMessage(chunk)); err != nil {
			return Errorf(KindTransportFailure, err, "failed to send audio chunk")
		}

		r.mu.Lock()
		r.chunksSent++
		sent := r.chunksSent
		r.mu.Unlock()
		r.logger.Debug("Audio chunk sent",
			slog.Int("size", len(chunk)),
			slog.Uint64("chunk_index", sent),
		)
	}
}

// abort surfaces a terminal error envelope to the peer (best effort) and
// builds the session error. After abort the session emits nothing further.
func (r *RelaySession) abort(code string, kind Kind, cause error, format string, args ...any) *Error {
	detail := fmt.Sprintf(format, args...)

	if r.stream.Alive() {
		if err := r.stream.Send(protocol.NewErrorMessage(code, detail)); err != nil {
			r.logger.Warn("Failed to surface error to peer", slog.String("error", err.Error()))
		}
		if err := r.stream.CloseSend(); err != nil {
			r.logger.Debug("Failed to close outbound direction after abort", slog.String("error", err.Error()))
		}
	}

	err := &Error{Kind: kind, Detail: detail, Err: cause}
	r.logger.Error("Session aborted",
		slog.String("kind", kind.String()),
		slog.String("error", err.Error()),
	)
	return err
}
