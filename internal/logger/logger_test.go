package logger

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestHandlerFormatsAttrs(t *testing.T) {
	SetLevel(slog.LevelDebug)
	defer SetLevel(slog.LevelInfo)

	var buf bytes.Buffer
	log := slog.New(NewHandler(&buf)).With("component", "relay")

	log.Info("registered", "peer", "p1", "score", 0.5)

	line := buf.String()
	for _, want := range []string{"[INF] registered", "component=relay", "peer=p1", "score=0.5"} {
		if !strings.Contains(line, want) {
			t.Errorf("line %q missing %q", line, want)
		}
	}
}

func TestHandlerLevelThreshold(t *testing.T) {
	SetLevel(slog.LevelWarn)
	defer SetLevel(slog.LevelInfo)

	var buf bytes.Buffer
	log := slog.New(NewHandler(&buf))

	log.Info("hidden")
	log.Warn("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info record written below threshold: %q", out)
	}
	if !strings.Contains(out, "[WRN] shown") {
		t.Errorf("warn record missing: %q", out)
	}
}

func TestHandlerGroup(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewHandler(&buf)).WithGroup("download")

	log.Info("attempt", "n", 2)

	if !strings.Contains(buf.String(), "download.n=2") {
		t.Errorf("grouped key missing: %q", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
		err  bool
	}{
		{"debug", slog.LevelDebug, false},
		{"INFO", slog.LevelInfo, false},
		{"", slog.LevelInfo, false},
		{"warn", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"loud", slog.LevelInfo, true},
	}

	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err != nil) != tt.err {
			t.Errorf("ParseLevel(%q) error = %v, want error %v", tt.in, err, tt.err)
		}
		if got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
