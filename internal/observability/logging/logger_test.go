package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestNewJSONLoggerToCarriesServiceAttr(t *testing.T) {
	var buf bytes.Buffer
	log := NewJSONLoggerTo(&buf, "transcript-insight", "info")

	log.Info("hello", "key", "value")

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("unmarshal log line: %v", err)
	}
	if record["service"] != "transcript-insight" {
		t.Fatalf("service = %v, want transcript-insight", record["service"])
	}
	if record["key"] != "value" {
		t.Fatalf("key = %v, want value", record["key"])
	}
}

func TestNewJSONLoggerToFiltersBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	log := NewJSONLoggerTo(&buf, "svc", "warn")

	log.Info("dropped")
	if buf.Len() != 0 {
		t.Fatalf("info record emitted at warn level: %q", buf.String())
	}

	log.Warn("kept")
	if !strings.Contains(buf.String(), "kept") {
		t.Fatalf("warn record missing: %q", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	cases := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"WARN", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tc := range cases {
		if got := parseLevel(tc.in); got != tc.want {
			t.Fatalf("parseLevel(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}
