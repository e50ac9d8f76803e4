package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete relay service configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	HTTP      HTTPConfig      `yaml:"http"`
	Synthesis SynthesisConfig `yaml:"synthesis"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig contains the duplex relay endpoint configuration
type ServerConfig struct {
	Port                  int    `yaml:"port"`
	BindAddress           string `yaml:"bind_address"`
	StreamPath            string `yaml:"stream_path"`
	MaxConcurrentSessions int    `yaml:"max_concurrent_sessions"`
	ShutdownTimeout       int    `yaml:"shutdown_timeout"` // seconds
}

// HTTPConfig contains the metrics and health endpoint configuration
type HTTPConfig struct {
	Port    int    `yaml:"port"`
	Address string `yaml:"address"`
	Enabled bool   `yaml:"enabled"`
}

// SynthesisConfig contains upstream synthesis provider configuration.
// APIKey may be left empty in the file and supplied via the
// ELEVENLABS_API_KEY environment variable instead.
type SynthesisConfig struct {
	Endpoint       string `yaml:"endpoint"`
	APIKey         string `yaml:"api_key"`
	ConnectTimeout int    `yaml:"connect_timeout"` // seconds
}

// PlaybackConfig contains the initiator's playback buffering parameters.
// It is not part of the daemon's config file; the client CLI builds one
// from its flags and validates it before wiring the playback pipeline.
type PlaybackConfig struct {
	BufferCapacity int     // chunks
	PollInterval   float64 // seconds
	DrainMargin    float64 // seconds
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// Validate performs comprehensive validation of the configuration
func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server config: %w", err)
	}

	if err := c.HTTP.Validate(); err != nil {
		return fmt.Errorf("http config: %w", err)
	}

	if err := c.Synthesis.Validate(); err != nil {
		return fmt.Errorf("synthesis config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

// Validate validates server configuration
func (s *ServerConfig) Validate() error {
	if s.Port < 1 || s.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", s.Port)
	}

	if s.BindAddress == "" {
		return fmt.Errorf("bind_address cannot be empty")
	}

	if s.StreamPath == "" || !strings.HasPrefix(s.StreamPath, "/") {
		return fmt.Errorf("stream_path must start with '/', got '%s'", s.StreamPath)
	}

	if s.MaxConcurrentSessions < 1 {
		return fmt.Errorf("max_concurrent_sessions must be at least 1, got %d", s.MaxConcurrentSessions)
	}

	if s.ShutdownTimeout < 1 {
		return fmt.Errorf("shutdown_timeout must be at least 1 second, got %d", s.ShutdownTimeout)
	}

	return nil
}

// Validate validates HTTP configuration
func (h *HTTPConfig) Validate() error {
	if h.Enabled {
		if h.Port < 1 || h.Port > 65535 {
			return fmt.Errorf("http port must be between 1 and 65535, got %d", h.Port)
		}

		if h.Address == "" {
			return fmt.Errorf("http address cannot be empty when HTTP is enabled")
		}
	}

	return nil
}

// Validate validates synthesis provider configuration. The API key is
// deliberately not validated here since it may arrive via the environment.
func (s *SynthesisConfig) Validate() error {
	if s.Endpoint == "" {
		return fmt.Errorf("endpoint cannot be empty")
	}

	if !strings.HasPrefix(s.Endpoint, "wss://") && !strings.HasPrefix(s.Endpoint, "ws://") {
		return fmt.Errorf("endpoint must be a ws:// or wss:// URL, got '%s'", s.Endpoint)
	}

	if s.ConnectTimeout < 1 {
		return fmt.Errorf("connect_timeout must be at least 1 second, got %d", s.ConnectTimeout)
	}

	return nil
}

// Validate validates playback configuration
func (p *PlaybackConfig) Validate() error {
	if p.BufferCapacity < 1 {
		return fmt.Errorf("buffer_capacity must be at least 1 chunk, got %d", p.BufferCapacity)
	}

	if p.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be positive, got %f", p.PollInterval)
	}

	if p.DrainMargin < 0 {
		return fmt.Errorf("drain_margin cannot be negative, got %f", p.DrainMargin)
	}

	return nil
}

// Validate validates logging configuration
func (l *LoggingConfig) Validate() error {
	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[l.Level] {
		return fmt.Errorf("level must be one of [debug, info, warn, error], got '%s'", l.Level)
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("format must be 'json' or 'text', got '%s'", l.Format)
	}

	return nil
}

// ResolveAPIKey fills in the API key from the environment when the file
// left it empty. Returns an error if no key can be found anywhere.
func (s *SynthesisConfig) ResolveAPIKey() error {
	if s.APIKey != "" {
		return nil
	}
	if key := os.Getenv("ELEVENLABS_API_KEY"); key != "" {
		s.APIKey = key
		return nil
	}
	return fmt.Errorf("no API key: set synthesis.api_key or the ELEVENLABS_API_KEY environment variable")
}

// GetShutdownTimeoutDuration returns the shutdown timeout as a time.Duration
func (s *ServerConfig) GetShutdownTimeoutDuration() time.Duration {
	return time.Duration(s.ShutdownTimeout) * time.Second
}

// GetConnectTimeoutDuration returns the provider connect timeout as a time.Duration
func (s *SynthesisConfig) GetConnectTimeoutDuration() time.Duration {
	return time.Duration(s.ConnectTimeout) * time.Second
}

// GetPollIntervalDuration returns the consumer poll interval as a time.Duration
func (p *PlaybackConfig) GetPollIntervalDuration() time.Duration {
	return time.Duration(p.PollInterval * float64(time.Second))
}

// GetDrainMarginDuration returns the end-of-stream drain margin as a time.Duration
func (p *PlaybackConfig) GetDrainMarginDuration() time.Duration {
	return time.Duration(p.DrainMargin * float64(time.Second))
}
