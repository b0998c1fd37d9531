// Package logger builds the structured slog logger used across the service.
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Format selects the slog handler.
type Format string

const (
	// FormatJSON is the production default.
	FormatJSON Format = "json"
	// FormatText is easier to read on a terminal.
	FormatText Format = "text"
)

// Options controls level and output format.
type Options struct {
	Level  slog.Level
	Format Format
}

// OptionsFromEnv reads LOG_LEVEL (debug, info, warn, error) and
// LOG_FORMAT (json, text). Unknown values fall back to info and json.
func OptionsFromEnv() Options {
	return Options{
		Level:  ParseLevel(os.Getenv("LOG_LEVEL")),
		Format: ParseFormat(os.Getenv("LOG_FORMAT")),
	}
}

// New returns a logger configured from the environment writing to stdout.
func New() *slog.Logger {
	return NewWithWriter(os.Stdout, OptionsFromEnv())
}

// NewWithWriter returns a logger writing to w.
func NewWithWriter(w io.Writer, opts Options) *slog.Logger {
	handlerOpts := &slog.HandlerOptions{
		Level:     opts.Level,
		AddSource: opts.Level <= slog.LevelDebug,
	}

	var handler slog.Handler
	switch opts.Format {
	case FormatText:
		handler = slog.NewTextHandler(w, handlerOpts)
	default:
		handler = slog.NewJSONHandler(w, handlerOpts)
	}

	return slog.New(handler).With("service", "posts-service")
}

// Discard returns a logger that drops every record. Handy in tests.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// ParseLevel maps a level name to slog.Level.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
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

// ParseFormat maps a format name to Format.
func ParseFormat(s string) Format {
	if strings.ToLower(strings.TrimSpace(s)) == string(FormatText) {
		return FormatText
	}
	return FormatJSON
}

// SetDefault installs l as the process-wide slog default.
func SetDefault(l *slog.Logger) {
	slog.SetDefault(l)
}
