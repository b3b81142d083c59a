package logger

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" INFO ":  slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNewFiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, "warn")
	l.Info("hidden")
	l.Warn("shown", "k", "v")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info line should be filtered: %s", out)
	}
	if !strings.Contains(out, "msg=shown k=v") {
		t.Errorf("expected warn line, got %s", out)
	}
}
