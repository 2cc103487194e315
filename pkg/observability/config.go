// Package observability wires structured logging, tracing and metrics.
// Without an OTLP endpoint or a metrics file every provider is a no-op.
package observability

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// ErrInvalidLogLevel is returned by ParseLogLevel.
var ErrInvalidLogLevel = errors.New("observability: invalid log level")

// AppMode tags telemetry with how the binary was invoked.
type AppMode string

// Application modes.
const (
	ModeCLI AppMode = "cli"
	ModeCI  AppMode = "ci"
)

const defaultShutdownTimeoutSec = 5

// Config configures Init.
type Config struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	Mode           AppMode

	// OTLPEndpoint is the gRPC collector address; empty disables export.
	OTLPEndpoint string
	OTLPHeaders  map[string]string
	OTLPInsecure bool

	// MetricsFile, when set, receives the run metrics in Prometheus text
	// format on shutdown.
	MetricsFile string

	// SampleRatio is the fraction of root spans kept; zero or one keeps
	// every span.
	SampleRatio float64
	// DebugTrace samples every span and logs attributes dropped by the
	// attribute filter.
	DebugTrace bool

	LogLevel slog.Level
	LogJSON  bool
	// LogOutput receives log records; nil means os.Stderr.
	LogOutput io.Writer

	ShutdownTimeoutSec int
}

// DefaultConfig returns a CLI configuration with info logging and no export.
func DefaultConfig() Config {
	return Config{
		ServiceName:        "locfang",
		Mode:               ModeCLI,
		LogLevel:           slog.LevelInfo,
		ShutdownTimeoutSec: defaultShutdownTimeoutSec,
	}
}

// ParseLogLevel accepts debug, info, warn and error in any case.
func ParseLogLevel(s string) (slog.Level, error) {
	var level slog.Level

	err := level.UnmarshalText([]byte(strings.TrimSpace(s)))
	if err != nil {
		return slog.LevelInfo, fmt.Errorf("%w: %q", ErrInvalidLogLevel, s)
	}

	return level, nil
}
