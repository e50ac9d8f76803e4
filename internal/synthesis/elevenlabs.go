package synthesis

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const defaultElevenLabsEndpoint = "wss://api.elevenlabs.io"

// ElevenLabsConfig contains connection parameters for the ElevenLabs
// streaming synthesis API.
type ElevenLabsConfig struct {
	Endpoint       string
	APIKey         string
	ConnectTimeout time.Duration
}

// ElevenLabs is a Provider backed by the ElevenLabs websocket stream-input
// API. One Synthesize call opens one upstream websocket.
type ElevenLabs struct {
	config ElevenLabsConfig
	logger *slog.Logger
}

// NewElevenLabs creates an ElevenLabs provider.
func NewElevenLabs(cfg ElevenLabsConfig, logger *slog.Logger) (*ElevenLabs, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("elevenlabs api key cannot be empty")
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = defaultElevenLabsEndpoint
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}
	return &ElevenLabs{config: cfg, logger: logger}, nil
}

// Synthesize dials the stream-input endpoint and bridges the text channel
// onto it. Text fragments are written as they arrive; audio frames are
// pulled through the returned stream.
func (e *ElevenLabs) Synthesize(ctx context.Context, req Request, text <-chan string) (AudioStream, error) {
	endpoint := fmt.Sprintf("%s/v1/text-to-speech/%s/stream-input?model_id=%s&output_format=%s",
		e.config.Endpoint, url.PathEscape(req.VoiceID), url.QueryEscape(req.ModelID), url.QueryEscape(req.OutputFormat))

	header := http.Header{}
	header.Set("xi-api-key", e.config.APIKey)

	dialer := websocket.Dialer{HandshakeTimeout: e.config.ConnectTimeout}
	conn, _, err := dialer.DialContext(ctx, endpoint, header)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to synthesis endpoint: %w", err)
	}

	e.logger.Debug("Synthesis stream opened",
		slog.String("voice_id", req.VoiceID),
		slog.String("model_id", req.ModelID),
		slog.String("output_format", req.OutputFormat),
	)

	s := &elevenLabsStream{conn: conn, logger: e.logger}

	// Close the upstream connection if the session context ends first, so
	// both the writer and Next unblock.
	closeCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	go func() {
		<-closeCtx.Done()
		s.closeConn()
	}()

	go s.writeLoop(text)

	return s, nil
}

// elevenLabsStream reads audio frames off one stream-input websocket.
type elevenLabsStream struct {
	conn   *websocket.Conn
	logger *slog.Logger
	cancel context.CancelFunc

	closeOnce sync.Once
	done      bool
}

// writeLoop forwards text fragments upstream in arrival order, then signals
// end of input. The API expects a trailing space per fragment and an empty
// text object as the end marker.
func (s *elevenLabsStream) writeLoop(text <-chan string) {
	for t := range text {
		payload := map[string]any{
			"text":                   t + " ",
			"try_trigger_generation": true,
		}
		if err := s.conn.WriteJSON(payload); err != nil {
			s.logger.Warn("Failed to send text fragment upstream", slog.String("error", err.Error()))
			// Drain the channel so the session's forwarder never blocks.
			for range text {
			}
			return
		}
	}

	if err := s.conn.WriteJSON(map[string]string{"text": ""}); err != nil {
		s.logger.Warn("Failed to send end-of-input upstream", slog.String("error", err.Error()))
	}
}

// Next returns the next decoded audio chunk, io.EOF once the provider marks
// the stream final, or a terminal error.
func (s *elevenLabsStream) Next() ([]byte, error) {
	if s.done {
		return nil, io.EOF
	}

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			return nil, fmt.Errorf("synthesis stream failed: %w", err)
		}

		var frame struct {
			Audio   string `json:"audio"`
			IsFinal bool   `json:"isFinal"`
			Error   string `json:"error"`
			Message string `json:"message"`
		}
		if err := json.Unmarshal(data, &frame); err != nil {
			return nil, fmt.Errorf("malformed synthesis frame: %w", err)
		}

		if frame.Error != "" {
			return nil, fmt.Errorf("synthesis provider error %s: %s", frame.Error, frame.Message)
		}

		if frame.Audio != "" {
			chunk, err := base64.StdEncoding.DecodeString(frame.Audio)
			if err != nil {
				return nil, fmt.Errorf("failed to decode audio frame: %w", err)
			}
			if len(chunk) > 0 {
				return chunk, nil
			}
		}

		if frame.IsFinal {
			s.done = true
			return nil, io.EOF
		}
	}
}

func (s *elevenLabsStream) closeConn() {
	s.closeOnce.Do(func() {
		_ = s.conn.Close()
	})
}

// Close releases the upstream connection.
func (s *elevenLabsStream) Close() error {
	if s.cancel != nil {
		s.cancel()
	}
	s.closeConn()
	return nil
}
