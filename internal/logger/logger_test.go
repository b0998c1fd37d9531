package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		" error ": slog.LevelError,
		"":        slog.LevelInfo,
		"loud":    slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestParseFormat(t *testing.T) {
	if ParseFormat("Text") != FormatText {
		t.Error("Expected text format")
	}
	if ParseFormat("yaml") != FormatJSON {
		t.Error("Expected unknown format to fall back to json")
	}
}

func TestNewWithWriter_JSON(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, Options{Level: slog.LevelInfo, Format: FormatJSON})

	l.Debug("hidden")
	l.Info("post created", "post_id", 7)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("Expected 1 log line, got %d: %q", len(lines), buf.String())
	}

	var record map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &record); err != nil {
		t.Fatalf("Failed to decode log line: %v", err)
	}
	if record["msg"] != "post created" {
		t.Errorf("Expected msg to be 'post created', got %v", record["msg"])
	}
	if record["service"] != "posts-service" {
		t.Errorf("Expected service attribute, got %v", record["service"])
	}
	if record["post_id"] != float64(7) {
		t.Errorf("Expected post_id 7, got %v", record["post_id"])
	}
}

func TestOptionsFromEnv(t *testing.T) {
	t.Setenv("LOG_LEVEL", "warn")
	t.Setenv("LOG_FORMAT", "text")

	opts := OptionsFromEnv()
	if opts.Level != slog.LevelWarn || opts.Format != FormatText {
		t.Errorf("Unexpected options: %+v", opts)
	}
}
