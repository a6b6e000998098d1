// Package logging provides structured logging configuration using zerolog
// for the OpenAlex client.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogLevel represents the logging level.
type LogLevel string

const (
	// LevelDebug logs debug messages and above.
	LevelDebug LogLevel = "debug"

	// LevelInfo logs info messages and above.
	LevelInfo LogLevel = "info"

	// LevelWarn logs warning messages and above.
	LevelWarn LogLevel = "warn"

	// LevelError logs error messages only.
	LevelError LogLevel = "error"
)

// levels maps accepted level names, including the "warning" alias, to
// zerolog levels. Unknown names fall back to info.
var levels = map[string]zerolog.Level{
	"debug":   zerolog.DebugLevel,
	"info":    zerolog.InfoLevel,
	"warn":    zerolog.WarnLevel,
	"warning": zerolog.WarnLevel,
	"error":   zerolog.ErrorLevel,
}

// Config holds logger configuration.
type Config struct {
	// Level is the minimum log level to output.
	Level LogLevel

	// Pretty enables human-readable console output (default: false for JSON).
	Pretty bool

	// Output is the writer to output logs to (default: os.Stderr).
	Output io.Writer
}

// DefaultConfig returns a default logger configuration.
func DefaultConfig() Config {
	return Config{
		Level:  LevelInfo,
		Pretty: false,
		Output: os.Stderr,
	}
}

// Setup configures the global zerolog logger and returns it. A nil Output
// goes to stderr rather than being discarded.
func Setup(cfg Config) zerolog.Logger {
	zerolog.SetGlobalLevel(parseLevel(cfg.Level))

	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: output}
	}

	logger := zerolog.New(output).With().Timestamp().Logger()
	log.Logger = logger
	return logger
}

// parseLevel converts LogLevel to zerolog.Level.
func parseLevel(level LogLevel) zerolog.Level {
	if l, ok := levels[strings.ToLower(string(level))]; ok {
		return l
	}
	return zerolog.InfoLevel
}

// NewLogger creates a new logger with the given component name.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// Log Level Guidelines:
//
// Debug: Detailed information for debugging
//   - Cache operations (hit/miss, key, TTL)
//   - Retry scheduling (attempt, backoff)
//   - Batch dispatch (chunk counts, executor limits)
//
// Info: Normal operation events
//   - Query total counts on first page
//   - Pagination progress and completion
//   - Requests that recovered after retries
//
// Warn: Warning conditions that don't prevent operation
//   - Failed attempts that will be retried
//   - Cache errors (fallback to direct request)
//   - Exhausted retry budgets
//
// Error: Error conditions requiring attention
//   - Permanent query failures
//   - Configuration errors
//
// Context Fields:
//   - endpoint: OpenAlex endpoint path (e.g. /works)
//   - attempt: 0-indexed retry attempt
//   - backoff: Computed sleep before the next attempt
//   - kind: Error classification (malformed_query, rate_limited,
//     server_error, api_error, network_error)
//   - count: Remote total result count for a query
//   - chunks: Number of batched sub-queries
