package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/Sumatoshi-tech/evalgrep/pkg/filter"
	"github.com/Sumatoshi-tech/evalgrep/pkg/observability"
)

// Config is the top-level evalgrep configuration.
// Field tags use mapstructure for viper and yaml for the config command.
type Config struct {
	Search    SearchConfig    `mapstructure:"search" yaml:"search"`
	Output    OutputConfig    `mapstructure:"output" yaml:"output"`
	Logging   LoggingConfig   `mapstructure:"logging" yaml:"logging"`
	Telemetry TelemetryConfig `mapstructure:"telemetry" yaml:"telemetry"`
}

// SearchConfig holds filter defaults and pipeline knobs.
type SearchConfig struct {
	Workers      int      `mapstructure:"workers" yaml:"workers"`
	Epochs       string   `mapstructure:"epochs" yaml:"epochs"`
	Samples      string   `mapstructure:"samples" yaml:"samples"`
	MessageRegex string   `mapstructure:"message_regex" yaml:"message_regex"`
	Roles        []string `mapstructure:"roles" yaml:"roles"`
	Extension    string   `mapstructure:"extension" yaml:"extension"`
	MaxEntrySize string   `mapstructure:"max_entry_size" yaml:"max_entry_size"`
}

// OutputConfig controls console rendering.
type OutputConfig struct {
	Color       string `mapstructure:"color" yaml:"color"`
	Progress    bool   `mapstructure:"progress" yaml:"progress"`
	Summary     bool   `mapstructure:"summary" yaml:"summary"`
	MetricsFile string `mapstructure:"metrics_file" yaml:"metrics_file"`
}

// LoggingConfig controls the slog logger.
type LoggingConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
	JSON  bool   `mapstructure:"json" yaml:"json"`
}

// TelemetryConfig configures OTLP export. An empty endpoint disables it.
type TelemetryConfig struct {
	OTLPEndpoint string  `mapstructure:"otlp_endpoint" yaml:"otlp_endpoint"`
	OTLPHeaders  string  `mapstructure:"otlp_headers" yaml:"otlp_headers"`
	OTLPInsecure bool    `mapstructure:"otlp_insecure" yaml:"otlp_insecure"`
	SampleRatio  float64 `mapstructure:"sample_ratio" yaml:"sample_ratio"`
	DebugTrace   bool    `mapstructure:"debug_trace" yaml:"debug_trace"`
	Environment  string  `mapstructure:"environment" yaml:"environment"`
}

// Sentinel errors for configuration validation.
var (
	// ErrInvalidWorkers indicates a negative worker count.
	ErrInvalidWorkers = errors.New("search.workers must be non-negative")
	// ErrInvalidEpochs indicates an unparsable epoch filter.
	ErrInvalidEpochs = errors.New("search.epochs is not a valid epoch filter")
	// ErrInvalidExtension indicates an empty extension or one containing a path separator.
	ErrInvalidExtension = errors.New("search.extension must be a non-empty file extension")
	// ErrInvalidMaxEntrySize indicates a size that go-humanize cannot parse.
	ErrInvalidMaxEntrySize = errors.New("search.max_entry_size must be a byte size such as 256MB")
	// ErrInvalidColorMode indicates a color mode other than auto, always or never.
	ErrInvalidColorMode = errors.New("output.color must be auto, always or never")
	// ErrInvalidLogLevel indicates an unknown log level.
	ErrInvalidLogLevel = errors.New("logging.level must be debug, info, warn or error")
	// ErrInvalidSampleRatio indicates a ratio outside [0, 1].
	ErrInvalidSampleRatio = errors.New("telemetry.sample_ratio must be between 0 and 1")
)

// Validate checks Config invariants and returns the first error found.
func (c *Config) Validate() error {
	err := c.Search.validate()
	if err != nil {
		return err
	}

	switch c.Output.Color {
	case "auto", "always", "never":
	default:
		return fmt.Errorf("%w: %q", ErrInvalidColorMode, c.Output.Color)
	}

	_, err = c.Logging.SlogLevel()
	if err != nil {
		return err
	}

	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		return ErrInvalidSampleRatio
	}

	return nil
}

func (s *SearchConfig) validate() error {
	if s.Workers < 0 {
		return ErrInvalidWorkers
	}

	_, err := filter.ParseEpochFilter(s.Epochs)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidEpochs, err)
	}

	ext := strings.TrimPrefix(s.Extension, ".")
	if ext == "" || strings.ContainsAny(ext, `/\`) {
		return fmt.Errorf("%w: %q", ErrInvalidExtension, s.Extension)
	}

	_, err = s.MaxEntryBytes()
	if err != nil {
		return err
	}

	return nil
}

// MaxEntryBytes parses MaxEntrySize. Empty or "0" disables the limit.
func (s *SearchConfig) MaxEntryBytes() (uint64, error) {
	if s.MaxEntrySize == "" {
		return 0, nil
	}

	size, err := humanize.ParseBytes(s.MaxEntrySize)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrInvalidMaxEntrySize, err)
	}

	return size, nil
}

// SlogLevel parses Level.
func (l *LoggingConfig) SlogLevel() (slog.Level, error) {
	level, err := observability.ParseLogLevel(l.Level)
	if err != nil {
		return level, fmt.Errorf("%w: %q", ErrInvalidLogLevel, l.Level)
	}

	return level, nil
}

// Observability builds the observability configuration for a process
// launched in mode.
func (c *Config) Observability(mode observability.AppMode, version string) observability.Config {
	obs := observability.DefaultConfig()
	obs.Mode = mode
	obs.ServiceVersion = version
	obs.Environment = c.Telemetry.Environment
	obs.OTLPEndpoint = c.Telemetry.OTLPEndpoint
	obs.OTLPHeaders = observability.ParseOTLPHeaders(c.Telemetry.OTLPHeaders)
	obs.OTLPInsecure = c.Telemetry.OTLPInsecure
	obs.SampleRatio = c.Telemetry.SampleRatio
	obs.DebugTrace = c.Telemetry.DebugTrace
	obs.LogJSON = c.Logging.JSON

	if level, err := c.Logging.SlogLevel(); err == nil {
		obs.LogLevel = level
	}

	return obs
}
