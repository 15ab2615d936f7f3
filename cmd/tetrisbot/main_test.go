package main

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/brensch/tetrisbot/session"
)

func TestSplitSessions(t *testing.T) {
	got := splitSessions(" a, b,,a ,c ")
	if strings.Join(got, "|") != "a|b|c" {
		t.Fatalf("got=%v want=[a b c]", got)
	}
	if got := splitSessions(" , "); len(got) != 0 {
		t.Fatalf("got=%v want none", got)
	}
}

func TestEnvDefaults(t *testing.T) {
	t.Setenv("TETRIS_PORT", "8080")
	t.Setenv("HEIGHT_MARGIN", "2.5")
	t.Setenv("SEED", "not-a-number")
	t.Setenv("TUI", "yes")
	if got := getEnvIntOrDefault("TETRIS_PORT", 1); got != 8080 {
		t.Fatalf("port=%d", got)
	}
	if got := getEnvFloatOrDefault("HEIGHT_MARGIN", 3); got != 2.5 {
		t.Fatalf("margin=%v", got)
	}
	if got := getEnvInt64OrDefault("SEED", 7); got != 7 {
		t.Fatalf("seed=%d want the default for garbage", got)
	}
	if !getEnvBoolOrDefault("TUI", false) {
		t.Fatalf("TUI=yes not parsed as true")
	}
	if got := getEnvDurationOrDefault("UNSET_DURATION_FOR_TEST", time.Second); got != time.Second {
		t.Fatalf("duration=%v", got)
	}
}

func TestDashboard(t *testing.T) {
	s := session.New(session.DefaultConfig("alpha"), nil)
	d := newDashboard([]*session.Session{s}, "http", "http://localhost:3001/api/tetris/")

	m, cmd := d.Update(TickMsg(d.startTime.Add(2 * time.Second)))
	if cmd == nil {
		t.Fatalf("tick did not schedule the next tick")
	}
	view := m.View()
	for _, want := range []string{"alpha", "UNKNOWN", "Press q to quit", "Duration:  2s"} {
		if !strings.Contains(view, want) {
			t.Fatalf("view missing %q:\n%s", want, view)
		}
	}

	if _, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")}); cmd == nil {
		t.Fatalf("q did not quit")
	}
}
