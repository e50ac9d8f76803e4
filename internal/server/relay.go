package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/wti806/elevenlabs-tts/internal/config"
	"github.com/wti806/elevenlabs-tts/internal/duplex"
	"github.com/wti806/elevenlabs-tts/internal/metrics"
	"github.com/wti806/elevenlabs-tts/internal/session"
	"github.com/wti806/elevenlabs-tts/internal/synthesis"
)

// RelayServer accepts duplex streaming connections and runs one relay
// session per connection, bounded by a concurrency limit.
type RelayServer struct {
	config   *config.ServerConfig
	logger   *slog.Logger
	provider synthesis.Provider
	metrics  *metrics.Metrics

	httpServer *http.Server
	upgrader   websocket.Upgrader

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// slots bounds concurrent sessions
	slots chan struct{}
}

// NewRelayServer creates a relay server backed by the given provider.
func NewRelayServer(cfg *config.ServerConfig, logger *slog.Logger, provider synthesis.Provider, m *metrics.Metrics) *RelayServer {
	ctx, cancel := context.WithCancel(context.Background())

	s := &RelayServer{
		config:   cfg,
		logger:   logger,
		provider: &instrumentedProvider{inner: provider, metrics: m},
		metrics:  m,
		ctx:      ctx,
		cancel:   cancel,
		slots:    make(chan struct{}, cfg.MaxConcurrentSessions),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc(cfg.StreamPath, s.handleStream)

	s.httpServer = &http.Server{
		Addr:        fmt.Sprintf("%s:%d", cfg.BindAddress, cfg.Port),
		Handler:     mux,
		IdleTimeout: 60 * time.Second,
	}

	return s
}

// Start begins accepting connections. It returns once the listener is
// bound; accept errors after that are logged.
func (s *RelayServer) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.httpServer.Addr, err)
	}

	s.logger.Info("Relay server started",
		slog.String("address", ln.Addr().String()),
		slog.String("stream_path", s.config.StreamPath),
		slog.Int("max_concurrent_sessions", s.config.MaxConcurrentSessions),
	)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Error("Relay server stopped unexpectedly", slog.String("error", err.Error()))
		}
	}()

	return nil
}

// Stop gracefully shuts the server down, waiting up to the configured
// shutdown timeout for in-flight sessions to drain.
func (s *RelayServer) Stop() error {
	s.logger.Info("Stopping relay server...")

	timeout := s.config.GetShutdownTimeoutDuration()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	// Stop accepting new connections first, then cancel active sessions
	// if they outlive the grace period.
	err := s.httpServer.Shutdown(ctx)
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(timeout):
		s.logger.Warn("Shutdown timeout elapsed with sessions still active")
	}

	s.logger.Info("Relay server stopped")
	return err
}

// handleStream upgrades the connection and runs a relay session on it.
func (s *RelayServer) handleStream(w http.ResponseWriter, r *http.Request) {
	select {
	case s.slots <- struct{}{}:
	default:
		s.metrics.RecordSessionRejected()
		s.logger.Warn("Session rejected, concurrency limit reached",
			slog.String("remote_addr", r.RemoteAddr),
			slog.Int("limit", s.config.MaxConcurrentSessions),
		)
		http.Error(w, "too many concurrent sessions", http.StatusServiceUnavailable)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		<-s.slots
		s.logger.Warn("Connection upgrade failed",
			slog.String("remote_addr", r.RemoteAddr),
			slog.String("error", err.Error()),
		)
		return
	}

	sessionID := uuid.New().String()
	s.logger.Info("Connection accepted",
		slog.String("session_id", sessionID),
		slog.String("remote_addr", r.RemoteAddr),
	)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() { <-s.slots }()
		s.runSession(sessionID, conn)
	}()
}

// runSession executes one relay session and records its outcome.
func (s *RelayServer) runSession(sessionID string, conn *websocket.Conn) {
	stream := duplex.NewWSStream(conn)
	defer stream.Close()

	rs := session.NewRelaySession(sessionID, stream, s.provider, s.logger)

	s.metrics.RecordSessionStarted()
	start := time.Now()

	err := rs.Run(s.ctx)
	elapsed := time.Since(start).Seconds()

	s.metrics.RecordFragmentsForwarded(rs.FragmentsForwarded())

	if err != nil {
		kind, ok := session.KindOf(err)
		label := "unknown"
		if ok {
			label = kind.String()
		}
		s.metrics.RecordSessionFailed(label, elapsed)
		return
	}

	s.metrics.RecordSessionCompleted(elapsed)
}

// ActiveSessions reports how many sessions are currently running.
func (s *RelayServer) ActiveSessions() int {
	return len(s.slots)
}
