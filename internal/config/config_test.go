package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func validConfig() Config {
	return Config{
		Server: ServerConfig{
			Port:                  8788,
			BindAddress:           "0.0.0.0",
			StreamPath:            "/v1/stream",
			MaxConcurrentSessions: 100,
			ShutdownTimeout:       15,
		},
		HTTP: HTTPConfig{
			Port:    9090,
			Address: "0.0.0.0",
			Enabled: true,
		},
		Synthesis: SynthesisConfig{
			Endpoint:       "wss://api.elevenlabs.io",
			APIKey:         "test-key",
			ConnectTimeout: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(*Config)
		expectError bool
		errorMsg    string
	}{
		{
			name:        "valid configuration",
			mutate:      func(*Config) {},
			expectError: false,
		},
		{
			name:        "invalid server port",
			mutate:      func(c *Config) { c.Server.Port = 70000 },
			expectError: true,
			errorMsg:    "port must be between 1 and 65535",
		},
		{
			name:        "empty bind address",
			mutate:      func(c *Config) { c.Server.BindAddress = "" },
			expectError: true,
			errorMsg:    "bind_address cannot be empty",
		},
		{
			name:        "stream path without leading slash",
			mutate:      func(c *Config) { c.Server.StreamPath = "v1/stream" },
			expectError: true,
			errorMsg:    "stream_path must start with '/'",
		},
		{
			name:        "zero concurrent sessions",
			mutate:      func(c *Config) { c.Server.MaxConcurrentSessions = 0 },
			expectError: true,
			errorMsg:    "max_concurrent_sessions must be at least 1",
		},
		{
			name:        "non-websocket synthesis endpoint",
			mutate:      func(c *Config) { c.Synthesis.Endpoint = "https://api.elevenlabs.io" },
			expectError: true,
			errorMsg:    "endpoint must be a ws:// or wss:// URL",
		},
		{
			name:        "missing API key is allowed at validation time",
			mutate:      func(c *Config) { c.Synthesis.APIKey = "" },
			expectError: false,
		},
		{
			name:        "invalid log level",
			mutate:      func(c *Config) { c.Logging.Level = "verbose" },
			expectError: true,
			errorMsg:    "level must be one of",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := validConfig()
			tt.mutate(&config)

			err := config.Validate()
			if tt.expectError {
				if err == nil {
					t.Errorf("Expected error but got none")
				} else if tt.errorMsg != "" && !strings.Contains(err.Error(), tt.errorMsg) {
					t.Errorf("Expected error to contain '%s', got '%s'", tt.errorMsg, err.Error())
				}
			} else {
				if err != nil {
					t.Errorf("Expected no error but got: %v", err)
				}
			}
		})
	}
}

func TestPlaybackConfigValidation(t *testing.T) {
	tests := []struct {
		name        string
		config      PlaybackConfig
		expectError bool
		errorMsg    string
	}{
		{
			name:        "valid playback parameters",
			config:      PlaybackConfig{BufferCapacity: 100, PollInterval: 0.1, DrainMargin: 0.1},
			expectError: false,
		},
		{
			name:        "zero drain margin is allowed",
			config:      PlaybackConfig{BufferCapacity: 1, PollInterval: 0.05, DrainMargin: 0},
			expectError: false,
		},
		{
			name:        "zero buffer capacity",
			config:      PlaybackConfig{BufferCapacity: 0, PollInterval: 0.1, DrainMargin: 0.1},
			expectError: true,
			errorMsg:    "buffer_capacity must be at least 1 chunk",
		},
		{
			name:        "non-positive poll interval",
			config:      PlaybackConfig{BufferCapacity: 100, PollInterval: 0, DrainMargin: 0.1},
			expectError: true,
			errorMsg:    "poll_interval must be positive",
		},
		{
			name:        "negative drain margin",
			config:      PlaybackConfig{BufferCapacity: 100, PollInterval: 0.1, DrainMargin: -0.5},
			expectError: true,
			errorMsg:    "drain_margin cannot be negative",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.expectError {
				if err == nil {
					t.Errorf("Expected error but got none")
				} else if !strings.Contains(err.Error(), tt.errorMsg) {
					t.Errorf("Expected error to contain '%s', got '%s'", tt.errorMsg, err.Error())
				}
			} else {
				if err != nil {
					t.Errorf("Expected no error but got: %v", err)
				}
			}
		})
	}
}

func TestConfigLoad(t *testing.T) {
	tempDir := t.TempDir()

	tests := []struct {
		name        string
		configYAML  string
		expectError bool
		errorMsg    string
	}{
		{
			name: "valid config file",
			configYAML: `
server:
  port: 8788
  bind_address: "0.0.0.0"
  stream_path: "/v1/stream"
  max_concurrent_sessions: 100
  shutdown_timeout: 15
http:
  port: 9090
  address: "0.0.0.0"
  enabled: true
synthesis:
  endpoint: "wss://api.elevenlabs.io"
  api_key: "test-key"
  connect_timeout: 10
logging:
  level: "info"
  format: "json"
  output: "stdout"
`,
			expectError: false,
		},
		{
			name: "invalid YAML syntax",
			configYAML: `
server:
  port: 8788
  max_concurrent_sessions: not_a_number
`,
			expectError: true,
			errorMsg:    "failed to parse",
		},
		{
			name: "missing required fields",
			configYAML: `
server:
  port: 8788
`,
			expectError: true,
			errorMsg:    "bind_address cannot be empty",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			configPath := filepath.Join(tempDir, "config.yaml")
			if err := os.WriteFile(configPath, []byte(tt.configYAML), 0644); err != nil {
				t.Fatalf("Failed to create test config file: %v", err)
			}

			config, err := Load(configPath)

			if tt.expectError {
				if err == nil {
					t.Errorf("Expected error but got none")
				} else if tt.errorMsg != "" && !strings.Contains(err.Error(), tt.errorMsg) {
					t.Errorf("Expected error to contain '%s', got '%s'", tt.errorMsg, err.Error())
				}
			} else {
				if err != nil {
					t.Errorf("Expected no error but got: %v", err)
				} else if config == nil {
					t.Errorf("Expected config to be loaded but got nil")
				}
			}
		})
	}
}

func TestConfigLoadNonexistentFile(t *testing.T) {
	_, err := Load("nonexistent.yaml")
	if err == nil {
		t.Errorf("Expected error for nonexistent file but got none")
	}
	if !strings.Contains(err.Error(), "failed to read config file") {
		t.Errorf("Expected error about reading file, got: %v", err)
	}
}

func TestResolveAPIKey(t *testing.T) {
	s := SynthesisConfig{APIKey: "from-file"}
	if err := s.ResolveAPIKey(); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if s.APIKey != "from-file" {
		t.Errorf("Expected file key to be kept, got '%s'", s.APIKey)
	}

	s = SynthesisConfig{}
	t.Setenv("ELEVENLABS_API_KEY", "from-env")
	if err := s.ResolveAPIKey(); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if s.APIKey != "from-env" {
		t.Errorf("Expected key from environment, got '%s'", s.APIKey)
	}

	s = SynthesisConfig{}
	t.Setenv("ELEVENLABS_API_KEY", "")
	if err := s.ResolveAPIKey(); err == nil {
		t.Errorf("Expected error when no key is available")
	}
}

func TestDurationHelpers(t *testing.T) {
	server := ServerConfig{ShutdownTimeout: 15}
	if server.GetShutdownTimeoutDuration() != 15*time.Second {
		t.Errorf("Expected 15 seconds, got %v", server.GetShutdownTimeoutDuration())
	}

	synthesis := SynthesisConfig{ConnectTimeout: 10}
	if synthesis.GetConnectTimeoutDuration() != 10*time.Second {
		t.Errorf("Expected 10 seconds, got %v", synthesis.GetConnectTimeoutDuration())
	}

	playback := PlaybackConfig{PollInterval: 0.1, DrainMargin: 0.25}
	if playback.GetPollIntervalDuration() != 100*time.Millisecond {
		t.Errorf("Expected 100ms, got %v", playback.GetPollIntervalDuration())
	}
	if playback.GetDrainMarginDuration() != 250*time.Millisecond {
		t.Errorf("Expected 250ms, got %v", playback.GetDrainMarginDuration())
	}
}
