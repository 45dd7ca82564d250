// Package logging builds the structured logger shared by every component.
// Output goes to stderr by default so that stdout stays reserved for
// machine-parsable reports and manifests.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Format represents the output format for log records.
type Format int

const (
	// FormatText outputs logs as key=value text.
	FormatText Format = iota
	// FormatJSON outputs logs as JSON objects.
	FormatJSON
)

// ParseLevel converts a string to a slog level. Unknown values map to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ParseFormat converts a string to a Format. Unknown values map to text.
func ParseFormat(s string) Format {
	if strings.ToLower(s) == "json" {
		return FormatJSON
	}
	return FormatText
}

// Config holds configuration for a logger.
type Config struct {
	Level  slog.Level
	Format Format
	Output io.Writer
}

// New creates a logger with the given configuration.
func New(cfg Config) *slog.Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	opts := &slog.HandlerOptions{Level: cfg.Level}

	var h slog.Handler
	switch cfg.Format {
	case FormatJSON:
		h = slog.NewJSONHandler(out, opts)
	default:
		h = slog.NewTextHandler(out, opts)
	}
	return slog.New(h)
}

// Discard returns a logger that drops every record. Tests use it.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}
