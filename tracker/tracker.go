// Package tracker infers which cells belong to the falling piece by diffing
// consecutive board observations.
//
// The server never says where the active piece is. Diffing cannot tell the
// piece apart from a line-clear shift or a lock that happened between polls, so
// an inconclusive comparison simply yields an empty Snapshot.
package tracker

import (
	"sort"

	"github.com/brensch/tetrisbot/board"
)

// DefaultWindow is the tallest tetromino extent in spawn orientation.
const DefaultWindow = 4

// Config controls the diff window.
type Config struct {
	// Window is how many rows below the topmost changed row still count as the piece.
	Window int
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{Window: DefaultWindow}
}

// Snapshot is the set of cells occupied by the active piece, sorted by row then column.
type Snapshot []board.Coord

// Empty reports whether the piece could not be located.
func (s Snapshot) Empty() bool { return len(s) == 0 }

// Columns returns the distinct columns of the snapshot in ascending order.
func (s Snapshot) Columns() []int {
	seen := make(map[int]bool, len(s))
	var cols []int
	for _, c := range s {
		if !seen[c.Col] {
			seen[c.Col] = true
			cols = append(cols, c.Col)
		}
	}
	sort.Ints(cols)
	return cols
}

// MinCol returns the leftmost column, or -1 when empty.
func (s Snapshot) MinCol() int {
	if len(s) == 0 {
		return -1
	}
	m := s[0].Col
	for _, c := range s[1:] {
		if c.Col < m {
			m = c.Col
		}
	}
	return m
}

// MaxCol returns the rightmost column, or -1 when empty.
func (s Snapshot) MaxCol() int {
	if len(s) == 0 {
		return -1
	}
	m := s[0].Col
	for _, c := range s[1:] {
		if c.Col > m {
			m = c.Col
		}
	}
	return m
}

// Contains reports whether (row, col) is part of the snapshot.
func (s Snapshot) Contains(row, col int) bool {
	for _, c := range s {
		if c.Row == row && c.Col == col {
			return true
		}
	}
	return false
}

// Identify returns the cells of cur that look like the active piece relative to prev.
//
// A cell is a candidate when it is occupied in cur and was empty in prev, or was
// occupied in both with a different colour. Candidates more than cfg.Window rows
// below the topmost candidate are dropped: pieces enter at the top and only move
// down, so anything that far below is a lock or a clear shift.
//
// prev == nil (first observation), mismatched dimensions and identical boards all
// yield an empty snapshot.
func Identify(prev *board.Board, cur board.Board, cfg Config) Snapshot {
	if prev == nil || prev.Width != cur.Width || prev.Height != cur.Height {
		return nil
	}
	window := cfg.Window
	if window <= 0 {
		window = DefaultWindow
	}

	var changed Snapshot
	minRow := cur.Height
	for r := 0; r < cur.Height; r++ {
		for c := 0; c < cur.Width; c++ {
			now := cur.At(r, c)
			if now == 0 || now == prev.At(r, c) {
				continue
			}
			changed = append(changed, board.Coord{Row: r, Col: c})
			if r < minRow {
				minRow = r
			}
		}
	}
	if len(changed) == 0 {
		return nil
	}

	out := changed[:0]
	for _, c := range changed {
		if c.Row < minRow+window {
			out = append(out, c)
		}
	}
	// Row-major scan already yields (row, col) order.
	return out
}
