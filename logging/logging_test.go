package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"
)

type colour int

func (c colour) String() string { return [...]string{"red", "green"}[c] }

func TestPrettyJSONHandler(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewPrettyJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	logger.With("session", "s1").WithGroup("cycle").With("n", 3).Info("dispatch",
		"err", errors.New("boom"),
		"colour", colour(1),
		"wait", 250*time.Millisecond,
	)

	var got map[string]any
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, buf.String())
	}
	if got["msg"] != "dispatch" || got["level"] != "INFO" || got["session"] != "s1" {
		t.Fatalf("top level=%v", got)
	}
	cycle, ok := got["cycle"].(map[string]any)
	if !ok {
		t.Fatalf("missing cycle group in %v", got)
	}
	if cycle["n"] != float64(3) || cycle["err"] != "boom" || cycle["colour"] != "green" || cycle["wait"] != "250ms" {
		t.Fatalf("cycle group=%v", cycle)
	}
	if !strings.Contains(buf.String(), "\n  ") {
		t.Fatalf("output is not indented:\n%s", buf.String())
	}
}

func TestPrettyJSONHandler_Level(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewPrettyJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn}))
	logger.Info("quiet")
	if buf.Len() != 0 {
		t.Fatalf("info logged at warn level: %s", buf.String())
	}
	logger.Warn("loud")
	if !strings.Contains(buf.String(), "loud") {
		t.Fatalf("warn dropped")
	}
}

func TestNew(t *testing.T) {
	for _, format := range []string{"text", "json", "pretty", ""} {
		var buf bytes.Buffer
		logger, err := New(&buf, format, slog.LevelInfo)
		if err != nil {
			t.Fatalf("New(%q): %v", format, err)
		}
		logger.Debug("hidden")
		logger.Info("shown", "k", "v")
		out := buf.String()
		if strings.Contains(out, "hidden") || !strings.Contains(out, "shown") {
			t.Fatalf("format %q wrote %q", format, out)
		}
	}
	if _, err := New(&bytes.Buffer{}, "xml", slog.LevelInfo); err == nil {
		t.Fatalf("accepted format xml")
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{" warn ", slog.LevelWarn},
		{"error", slog.LevelError},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if err != nil || got != tt.want {
			t.Fatalf("ParseLevel(%q)=%v,%v want=%v", tt.in, got, err, tt.want)
		}
	}
	if _, err := ParseLevel("loud"); err == nil {
		t.Fatalf("accepted level loud")
	}
}
