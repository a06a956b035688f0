package logger

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestColorTextHandlerEmitsRawEscapeBytes(t *testing.T) {
	var buf bytes.Buffer
	l := slog.New(NewColorTextHandler(&buf, nil))
	l.Warn("disk low")

	out := buf.String()
	if !strings.HasPrefix(out, "\033[33mWARN\033[0m ") {
		t.Fatalf("line not prefixed with colored level: %q", out)
	}
	if !strings.Contains(out, `msg="disk low"`) {
		t.Fatalf("message lost: %q", out)
	}
	// The ESC bytes must reach the terminal raw, never quoted into the
	// message attribute as \x1b escapes.
	if strings.Contains(out, `\x1b`) {
		t.Fatalf("escape bytes were quoted away: %q", out)
	}
}

func TestColorTextHandlerLevelColors(t *testing.T) {
	cases := []struct {
		level slog.Level
		color string
	}{
		{slog.LevelDebug, "\033[36m"},
		{slog.LevelInfo, "\033[32m"},
		{slog.LevelWarn, "\033[33m"},
		{slog.LevelError, "\033[31m"},
	}
	for _, c := range cases {
		if got := levelColor(c.level); got != c.color {
			t.Errorf("levelColor(%v) = %q, want %q", c.level, got, c.color)
		}
	}
}

func TestColorTextHandlerWithAttrs(t *testing.T) {
	var buf bytes.Buffer
	l := slog.New(NewColorTextHandler(&buf, nil)).With("component", "core")
	l.Info("spawned")

	out := buf.String()
	if !strings.Contains(out, "component=core") {
		t.Fatalf("attrs lost through WithAttrs: %q", out)
	}
	if !strings.HasPrefix(out, "\033[32mINFO\033[0m ") {
		t.Fatalf("derived handler lost the color prefix: %q", out)
	}
}
