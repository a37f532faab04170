// Package config provides configuration loading from environment variables.
package config

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
)

// Static errors for configuration validation.
var (
	// ErrInvalidPort is returned when PORT is outside 1-65535.
	ErrInvalidPort = errors.New("config: PORT must be between 1 and 65535")
	// ErrInvalidConcurrency is returned when a concurrency limit is below 1.
	ErrInvalidConcurrency = errors.New("config: concurrency limits must be at least 1")
	// ErrInvalidPitchBand is returned when the F0 search band is empty or negative.
	ErrInvalidPitchBand = errors.New("config: PITCH_MIN_HZ must be positive and below PITCH_MAX_HZ")
	// ErrInvalidThreshold is returned when VOICE_THRESHOLD_HZ lies outside the pitch band.
	ErrInvalidThreshold = errors.New("config: VOICE_THRESHOLD_HZ must lie inside the pitch band")
	// ErrInvalidTimeout is returned for negative durations.
	ErrInvalidTimeout = errors.New("config: timeouts must not be negative")
	// ErrS3Incomplete is returned when only one of S3_BUCKET and S3_REGION is set.
	ErrS3Incomplete = errors.New("config: S3_BUCKET and S3_REGION must be set together")
)

// Config holds all configuration for the application.
type Config struct {
	// Server settings
	Port int `env:"PORT, default=8000" json:"port"`

	// Workspace settings
	WorkDir string `env:"WORK_DIR, default=/tmp/dubbing" json:"work_dir"`

	// Processing settings
	MaxConcurrentRuns           int           `env:"MAX_CONCURRENT_RUNS, default=2" json:"max_concurrent_runs"`
	MaxConcurrentTranscriptions int           `env:"MAX_CONCURRENT_TRANSCRIPTIONS, default=1" json:"max_concurrent_transcriptions"`
	RunTimeout                  time.Duration `env:"RUN_TIMEOUT, default=30m" json:"run_timeout"`

	// External tools
	FFmpegPath   string `env:"FFMPEG_PATH, default=ffmpeg" json:"ffmpeg_path"`
	FFprobePath  string `env:"FFPROBE_PATH, default=ffprobe" json:"ffprobe_path"`
	YTDLPPath    string `env:"YTDLP_PATH, default=yt-dlp" json:"ytdlp_path"`
	WhisperPath  string `env:"WHISPER_PATH, default=whisper" json:"whisper_path"`
	WhisperModel string `env:"WHISPER_MODEL, default=base" json:"whisper_model"`

	// Voice profiling
	VoiceThresholdHz float64 `env:"VOICE_THRESHOLD_HZ, default=165" json:"voice_threshold_hz"`
	PitchMinHz       float64 `env:"PITCH_MIN_HZ, default=65" json:"pitch_min_hz"`
	PitchMaxHz       float64 `env:"PITCH_MAX_HZ, default=523" json:"pitch_max_hz"`

	// Translation and speech services
	TranslateBaseURL string        `env:"TRANSLATE_BASE_URL, default=https://translate.googleapis.com" json:"translate_base_url"`
	TTSBaseURL       string        `env:"TTS_BASE_URL, default=https://translate.google.com" json:"tts_base_url"`
	HTTPTimeout      time.Duration `env:"HTTP_TIMEOUT, default=60s" json:"http_timeout"`

	// Publishing
	DestFolder    string `env:"DEST_FOLDER, default=dubbed" json:"dest_folder"`
	PublicDir     string `env:"PUBLIC_DIR, default=static" json:"public_dir"`
	PublicBaseURL string `env:"PUBLIC_BASE_URL, default=http://localhost:8000" json:"public_base_url"`

	// Optional S3 settings
	S3Bucket           string `env:"S3_BUCKET" json:"s3_bucket,omitempty"`
	S3Region           string `env:"S3_REGION" json:"s3_region,omitempty"`
	S3Endpoint         string `env:"S3_ENDPOINT" json:"s3_endpoint,omitempty"`
	AWSAccessKeyID     string `env:"AWS_ACCESS_KEY_ID" json:"-"`     // Masked in JSON
	AWSSecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY" json:"-"` // Masked in JSON

	// Logging settings
	LogFormat string `env:"LOG_FORMAT, default=text" json:"log_format"` // "json" or "text"
	LogLevel  string `env:"LOG_LEVEL, default=info" json:"log_level"`   // "debug", "info", "warn", "error"
}

// S3Enabled returns true if S3 configuration is provided.
func (c *Config) S3Enabled() bool {
	return c.S3Bucket != "" && c.S3Region != ""
}

// LoadDotEnv loads variables from the given .env files (".env" when none are
// given) without overriding variables already set. Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("config: load %s: %w", p, err)
		}
	}
	return nil
}

// Load reads configuration from environment variables using go-envconfig
// and validates it.
func Load() (*Config, error) {
	return LoadWithLookuper(envconfig.OsLookuper())
}

// LoadWithLookuper reads configuration from l instead of the process
// environment.
func LoadWithLookuper(l envconfig.Lookuper) (*Config, error) {
	cfg := &Config{}

	if err := envconfig.ProcessWith(context.Background(), &envconfig.Config{
		Target:   cfg,
		Lookuper: l,
	}); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that configured values are within range.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return ErrInvalidPort
	}
	if c.MaxConcurrentRuns < 1 || c.MaxConcurrentTranscriptions < 1 {
		return ErrInvalidConcurrency
	}
	if c.PitchMinHz <= 0 || c.PitchMaxHz <= c.PitchMinHz {
		return ErrInvalidPitchBand
	}
	if c.VoiceThresholdHz <= c.PitchMinHz || c.VoiceThresholdHz >= c.PitchMaxHz {
		return ErrInvalidThreshold
	}
	if c.RunTimeout < 0 || c.HTTPTimeout < 0 {
		return ErrInvalidTimeout
	}
	if (c.S3Bucket == "") != (c.S3Region == "") {
		return ErrS3Incomplete
	}
	return nil
}

// NewLogger creates a structured logger based on the configuration.
// When LogFormat is "json", it outputs JSON logs suitable for production.
// Otherwise, it outputs human-readable text logs.
func (c *Config) NewLogger() *slog.Logger {
	return c.NewLoggerTo(os.Stdout)
}

// NewLoggerTo is NewLogger writing to w.
func (c *Config) NewLoggerTo(w io.Writer) *slog.Logger {
	return slog.New(c.newHandler(w))
}

func (c *Config) newHandler(w io.Writer) slog.Handler {
	opts := &slog.HandlerOptions{Level: parseLogLevel(c.LogLevel)}
	if strings.ToLower(c.LogFormat) == "json" {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

// String returns a string representation of the config with sensitive values masked.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Port: %d, WorkDir: %s, MaxConcurrentRuns: %d, MaxConcurrentTranscriptions: %d, RunTimeout: %s, WhisperModel: %s, VoiceThresholdHz: %.0f, DestFolder: %s, PublicDir: %s, S3Bucket: %s, S3Region: %s, S3Endpoint: %s, LogFormat: %s, LogLevel: %s}",
		c.Port,
		c.WorkDir,
		c.MaxConcurrentRuns,
		c.MaxConcurrentTranscriptions,
		c.RunTimeout,
		c.WhisperModel,
		c.VoiceThresholdHz,
		c.DestFolder,
		c.PublicDir,
		c.S3Bucket,
		c.S3Region,
		c.S3Endpoint,
		c.LogFormat,
		c.LogLevel,
	)
}

// parseLogLevel converts a string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
