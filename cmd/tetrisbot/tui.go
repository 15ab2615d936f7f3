package main

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/brensch/tetrisbot/session"
)

type TickMsg time.Time

func tickCmd() tea.Cmd {
	return tea.Tick(time.Millisecond*250, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

// dashboard polls each session's stats on a tick.
type dashboard struct {
	loops     []*session.Session
	transport string
	server    string
	startTime time.Time
	stats     []session.Stats
	now       time.Time
}

func newDashboard(loops []*session.Session, transport, server string) dashboard {
	d := dashboard{
		loops:     loops,
		transport: transport,
		server:    server,
		startTime: time.Now(),
	}
	d.refresh(d.startTime)
	return d
}

func (d *dashboard) refresh(now time.Time) {
	d.now = now
	d.stats = d.stats[:0]
	for _, s := range d.loops {
		d.stats = append(d.stats, s.Stats())
	}
}

func (d dashboard) Init() tea.Cmd {
	return tickCmd()
}

func (d dashboard) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "q" || msg.String() == "ctrl+c" {
			return d, tea.Quit
		}
	case TickMsg:
		// Copy so the previous model's slice is never written.
		d.stats = append([]session.Stats(nil), d.stats...)
		d.refresh(time.Time(msg))
		return d, tickCmd()
	}
	return d, nil
}

func (d dashboard) View() string {
	duration := d.now.Sub(d.startTime)

	var sb strings.Builder
	fmt.Fprintf(&sb, "Server:    %s (%s)\n", d.server, d.transport)
	fmt.Fprintf(&sb, "Duration:  %s\n\n", duration.Round(time.Second))

	fmt.Fprintf(&sb, "%-20s %-10s %8s %8s %6s %6s %6s %-11s %-15s %8s %7s\n",
		"SESSION", "STATE", "CYCLES", "CMDS", "REJ", "FAIL", "BAD", "LAST", "STAGE", "SCORE", "BACKOFF")
	var cycles, commands int64
	for _, st := range d.stats {
		cycles += st.Cycles
		commands += st.Commands
		fmt.Fprintf(&sb, "%-20s %-10s %8d %8d %6d %6d %6d %-11s %-15s %8.2f %7s\n",
			trimTo(st.SessionID, 20), st.State, st.Cycles, st.Commands, st.Rejections,
			st.TransportFailures, st.MalformedBoards, st.LastCommand, st.LastStage, st.LastScore, st.Backoff)
	}

	if duration.Seconds() >= 1 {
		fmt.Fprintf(&sb, "\nCycles/Sec:   %.2f\n", float64(cycles)/duration.Seconds())
		fmt.Fprintf(&sb, "Commands/Sec: %.2f\n", float64(commands)/duration.Seconds())
	}

	sb.WriteString("\nPress q to quit.\n")
	return sb.String()
}

func trimTo(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "~"
}
