package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// Config represents the application configuration
type Config struct {
	Server        ServerConfig        `toml:"server"`
	Transcription TranscriptionConfig `toml:"transcription"`
	Logging       LoggingConfig       `toml:"logging"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host               string   `toml:"host"`
	Port               int      `toml:"port"`
	CORSAllowedOrigins []string `toml:"cors_allowed_origins"`
	StaticFilesDir     string   `toml:"static_files_dir"`
	MaxUploadMB        int      `toml:"max_upload_mb"`
	ReadTimeoutSec     int      `toml:"read_timeout_seconds"`
}

// TranscriptionConfig contains transcription pipeline configuration
type TranscriptionConfig struct {
	Model                  string `toml:"model"`
	DefaultAPIKey          string `toml:"default_api_key"`
	MaxSegmentMB           int    `toml:"max_segment_mb"`
	SegmentDurationHintSec int    `toml:"segment_duration_hint_seconds"`
	RequestTimeoutSec      int    `toml:"request_timeout_seconds"`
	FetchMaxMB             int    `toml:"fetch_max_mb"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Default returns a configuration with sensible defaults
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:               "0.0.0.0",
			Port:               8080,
			CORSAllowedOrigins: []string{"*"},
			StaticFilesDir:     "web",
			MaxUploadMB:        25,
			ReadTimeoutSec:     300,
		},
		Transcription: TranscriptionConfig{
			Model:                  "whisper-1",
			MaxSegmentMB:           20,
			SegmentDurationHintSec: 30,
			RequestTimeoutSec:      120,
			FetchMaxMB:             25,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load reads the configuration file at path, applies environment overrides
// and validates the result. A missing file is not an error; defaults apply.
func Load(path string) (*Config, error) {
	cfg := Default()

	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// applyEnv overlays environment variables on top of the file values.
// The API key env var wins over the file so keys can stay out of configs.
func (c *Config) applyEnv() {
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		c.Transcription.DefaultAPIKey = key
	}
	if level := os.Getenv("AUDIOSCRIBE_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
}

// Validate checks the configuration for invalid values
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.MaxUploadMB <= 0 {
		return fmt.Errorf("max_upload_mb must be positive, got %d", c.Server.MaxUploadMB)
	}
	if c.Transcription.Model == "" {
		return fmt.Errorf("transcription model must not be empty")
	}
	if c.Transcription.MaxSegmentMB <= 0 {
		return fmt.Errorf("max_segment_mb must be positive, got %d", c.Transcription.MaxSegmentMB)
	}
	if c.Transcription.RequestTimeoutSec <= 0 {
		return fmt.Errorf("request_timeout_seconds must be positive, got %d", c.Transcription.RequestTimeoutSec)
	}
	return nil
}

// Addr returns the listen address for the HTTP server
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// MaxUploadBytes returns the upload size ceiling in bytes
func (c *ServerConfig) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) * 1024 * 1024
}

// MaxSegmentBytes returns the segment size threshold in bytes
func (c *TranscriptionConfig) MaxSegmentBytes() int {
	return c.MaxSegmentMB * 1024 * 1024
}

// RequestTimeout returns the per-request provider timeout
func (c *TranscriptionConfig) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSec) * time.Second
}

// FetchMaxBytes returns the remote fetch size ceiling in bytes
func (c *TranscriptionConfig) FetchMaxBytes() int64 {
	return int64(c.FetchMaxMB) * 1024 * 1024
}
