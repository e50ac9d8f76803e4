package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/wti806/elevenlabs-tts/internal/config"
	"github.com/wti806/elevenlabs-tts/internal/duplex"
	"github.com/wti806/elevenlabs-tts/internal/playback"
	"github.com/wti806/elevenlabs-tts/internal/protocol"
	"github.com/wti806/elevenlabs-tts/internal/session"
)

const (
	defaultAddr         = "ws://127.0.0.1:8788/v1/stream"
	defaultVoiceID      = "21m00Tcm4TlvDq8ikWAM"
	defaultModelID      = "eleven_turbo_v2"
	defaultOutputFormat = "pcm_24000"
)

func main() {
	addr := flag.String("addr", defaultAddr, "Relay server websocket URL")
	voiceID := flag.String("voice", defaultVoiceID, "Voice ID for synthesis")
	modelID := flag.String("model", defaultModelID, "Model ID for synthesis")
	format := flag.String("format", defaultOutputFormat, "Audio output format")
	outputFile := flag.String("output", "", "Write raw audio to this file instead of playing it")
	timeout := flag.Duration("timeout", 10*time.Second, "Connection readiness timeout")
	bufferChunks := flag.Int("buffer-chunks", 100, "Playback buffer capacity in chunks")
	pollInterval := flag.Float64("poll-interval", 0.1, "Playback stop-flag polling interval in seconds")
	drainMargin := flag.Float64("drain-margin", 0.1, "Extra wait after the last chunk in seconds")
	verbose := flag.Bool("v", false, "Enable debug logging")
	flag.Parse()

	playbackCfg := config.PlaybackConfig{
		BufferCapacity: *bufferChunks,
		PollInterval:   *pollInterval,
		DrainMargin:    *drainMargin,
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	if err := run(logger, *addr, *voiceID, *modelID, *format, *outputFile, *timeout, playbackCfg); err != nil {
		logger.Error("Session failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(logger *slog.Logger, addr, voiceID, modelID, format, outputFile string, timeout time.Duration, playbackCfg config.PlaybackConfig) error {
	if err := playbackCfg.Validate(); err != nil {
		return fmt.Errorf("invalid playback parameters: %w", err)
	}
	ctx := context.Background()

	stream, err := duplex.Dial(ctx, addr, timeout, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", addr, err)
	}
	logger.Info("Connected", slog.String("addr", addr))

	opts := session.InitiatorOptions{
		Config: protocol.SessionConfig{
			VoiceID:      voiceID,
			ModelID:      modelID,
			OutputFormat: format,
		},
		Stop:   playback.NewSignal(),
		Logger: logger,
	}

	if outputFile != "" {
		file, err := os.Create(outputFile)
		if err != nil {
			stream.Close()
			return fmt.Errorf("failed to create output file: %w", err)
		}
		opts.FileSink = file
		logger.Info("Writing audio to file", slog.String("path", outputFile))
	} else {
		sampleRate, err := playback.ParseSampleRate(format)
		if err != nil {
			stream.Close()
			return fmt.Errorf("cannot play format %q, use -output to write it to a file: %w", format, err)
		}

		queue := playback.NewQueue(playbackCfg.BufferCapacity)
		sink := playback.NewDeviceSink(sampleRate, 1)
		player := playback.NewPlayer(queue, sink, opts.Stop, logger)
		player.SetPollInterval(playbackCfg.GetPollIntervalDuration())
		player.SetDrainMargin(playbackCfg.GetDrainMarginDuration())
		player.Start()

		opts.Queue = queue
		opts.Player = player
		logger.Info("Live playback ready", slog.Int("sample_rate", sampleRate))
	}

	sess, err := session.NewStreamingSession(stream, opts)
	if err != nil {
		stream.Close()
		return err
	}

	fmt.Fprintln(os.Stderr, "Type text and press Enter to synthesize. An empty line finishes the session.")

	if err := sess.Run(ctx, os.Stdin); err != nil {
		return err
	}

	logger.Info("Done", slog.Uint64("chunks_received", sess.ChunksReceived()))
	return nil
}
