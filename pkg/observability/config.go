// Package observability wires OpenTelemetry tracing and metrics together with
// structured slog logging for the evalgrep CLI and MCP server.
package observability

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// AppMode identifies how the binary was launched.
type AppMode string

const (
	// ModeCLI is a one-shot command invocation.
	ModeCLI AppMode = "cli"
	// ModeMCP is the stdio MCP server.
	ModeMCP AppMode = "mcp"
)

const (
	defaultServiceName        = "evalgrep"
	defaultShutdownTimeoutSec = 5
)

// ErrInvalidLogLevel is returned for an unrecognized log level name.
var ErrInvalidLogLevel = errors.New("invalid log level")

// Config holds all observability configuration.
type Config struct {
	// ServiceName is the OTel resource service name.
	ServiceName string

	// ServiceVersion is the version of the running binary.
	ServiceVersion string

	// Environment is an optional deployment label such as "ci" or "dev".
	Environment string

	// Mode identifies how the binary was launched.
	Mode AppMode

	// OTLPEndpoint is the OTLP gRPC collector address.
	// Empty disables export and yields no-op providers.
	OTLPEndpoint string

	// OTLPHeaders are extra gRPC metadata headers for the exporters.
	OTLPHeaders map[string]string

	// OTLPInsecure disables TLS for the collector connection.
	OTLPInsecure bool

	// DebugTrace forces every trace to be sampled.
	DebugTrace bool

	// SampleRatio is the root sampling ratio when DebugTrace is off.
	// Zero keeps the parent-based always-on default.
	SampleRatio float64

	// LogLevel is the minimum slog severity.
	LogLevel slog.Level

	// LogJSON switches the log handler to JSON.
	LogJSON bool

	// LogWriter receives log output. Nil means stderr.
	LogWriter io.Writer

	// ShutdownTimeoutSec bounds the final telemetry flush.
	ShutdownTimeoutSec int
}

// DefaultConfig returns the zero-config CLI setup: no export, warn-level logs.
func DefaultConfig() Config {
	return Config{
		ServiceName:        defaultServiceName,
		Mode:               ModeCLI,
		LogLevel:           slog.LevelWarn,
		ShutdownTimeoutSec: defaultShutdownTimeoutSec,
	}
}

// ParseLogLevel maps debug, info, warn (or warning) and error to slog levels.
func ParseLogLevel(name string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("%w: %q", ErrInvalidLogLevel, name)
	}
}
