package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/wti806/elevenlabs-tts/internal/config"
	"github.com/wti806/elevenlabs-tts/internal/metrics"
	"github.com/wti806/elevenlabs-tts/internal/server"
	"github.com/wti806/elevenlabs-tts/internal/synthesis"
)

const (
	defaultConfigPath = "configs/config.yaml"
	serviceName       = "tts-relay"
	serviceVersion    = "1.0.0"
)

func main() {
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	// Optional .env file for credentials; absence is not an error.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Synthesis.ResolveAPIKey(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to resolve credentials: %v\n", err)
		os.Exit(1)
	}

	logger := initLogger(cfg.Logging)

	logger.Info("Service starting",
		slog.String("service", serviceName),
		slog.String("version", serviceVersion),
		slog.String("config_path", *configPath),
	)

	// Configuration summary without credentials
	logger.Info("Configuration loaded",
		slog.Int("port", cfg.Server.Port),
		slog.String("bind_address", cfg.Server.BindAddress),
		slog.String("stream_path", cfg.Server.StreamPath),
		slog.Int("max_concurrent_sessions", cfg.Server.MaxConcurrentSessions),
		slog.String("synthesis_endpoint", cfg.Synthesis.Endpoint),
		slog.String("log_level", cfg.Logging.Level),
	)

	appMetrics := metrics.NewMetrics(prometheus.DefaultRegisterer)
	logger.Info("Prometheus metrics initialized")

	provider, err := synthesis.NewElevenLabs(synthesis.ElevenLabsConfig{
		Endpoint:       cfg.Synthesis.Endpoint,
		APIKey:         cfg.Synthesis.APIKey,
		ConnectTimeout: cfg.Synthesis.GetConnectTimeoutDuration(),
	}, logger)
	if err != nil {
		logger.Error("Failed to initialize synthesis provider", slog.String("error", err.Error()))
		os.Exit(1)
	}

	relayServer := server.NewRelayServer(&cfg.Server, logger, provider, appMetrics)
	if err := relayServer.Start(); err != nil {
		logger.Error("Failed to start relay server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	var httpServer *server.HTTPServer
	if cfg.HTTP.Enabled {
		httpServer = server.NewHTTPServer(cfg.HTTP, logger, relayServer)
		if err := httpServer.Start(); err != nil {
			logger.Error("Failed to start HTTP monitoring server", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	logger.Info("Service started successfully, waiting for signals...",
		slog.String("address", fmt.Sprintf("%s:%d", cfg.Server.BindAddress, cfg.Server.Port)),
	)

	sig := <-sigChan
	logger.Info("Received shutdown signal", slog.String("signal", sig.String()))

	logger.Info("Starting graceful shutdown...")

	if httpServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := httpServer.Stop(shutdownCtx); err != nil {
			logger.Error("Error stopping HTTP monitoring server", slog.String("error", err.Error()))
		}
		shutdownCancel()
	}

	if err := relayServer.Stop(); err != nil {
		logger.Error("Error stopping relay server", slog.String("error", err.Error()))
	}

	logger.Info("Service stopped")
}

// initLogger creates and configures the structured logger based on configuration
func initLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}

	var output *os.File
	switch cfg.Output {
	case "stderr":
		output = os.Stderr
	case "stdout", "":
		output = os.Stdout
	default:
		file, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file %s: %v, falling back to stdout\n", cfg.Output, err)
			output = os.Stdout
		} else {
			output = file
		}
	}

	var handler slog.Handler
	switch cfg.Format {
	case "json":
		handler = slog.NewJSONHandler(output, opts)
	default:
		handler = slog.NewTextHandler(output, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}
