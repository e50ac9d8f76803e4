package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wti806/elevenlabs-tts/internal/config"
)

// HTTPServer provides monitoring endpoints for the relay service
type HTTPServer struct {
	server    *http.Server
	logger    *slog.Logger
	relay     *RelayServer
	startTime time.Time
}

// NewHTTPServer creates the monitoring HTTP server
func NewHTTPServer(cfg config.HTTPConfig, logger *slog.Logger, relay *RelayServer) *HTTPServer {
	h := &HTTPServer{
		logger:    logger,
		relay:     relay,
		startTime: time.Now(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", h.handleHealth)
	mux.HandleFunc("/stats", h.handleStats)
	mux.Handle("/metrics", promhttp.Handler())

	h.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Address, cfg.Port),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return h
}

// Start begins serving monitoring requests
func (h *HTTPServer) Start() error {
	h.logger.Info("HTTP monitoring server started", slog.String("address", h.server.Addr))

	go func() {
		if err := h.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			h.logger.Error("HTTP monitoring server stopped unexpectedly", slog.String("error", err.Error()))
		}
	}()

	return nil
}

// Stop gracefully shuts down the monitoring server
func (h *HTTPServer) Stop(ctx context.Context) error {
	h.logger.Info("Stopping HTTP monitoring server...")
	return h.server.Shutdown(ctx)
}

func (h *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, map[string]any{
		"status":         "healthy",
		"uptime_seconds": time.Since(h.startTime).Seconds(),
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *HTTPServer) handleStats(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, map[string]any{
		"active_sessions": h.relay.ActiveSessions(),
		"uptime_seconds":  time.Since(h.startTime).Seconds(),
	})
}

func (h *HTTPServer) writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Warn("Failed to encode response", slog.String("error", err.Error()))
	}
}
