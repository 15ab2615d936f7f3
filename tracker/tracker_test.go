package tracker

import (
	"testing"

	"github.com/brensch/tetrisbot/board"
)

func coords(s Snapshot) [][2]int {
	out := make([][2]int, len(s))
	for i, c := range s {
		out[i] = [2]int{c.Row, c.Col}
	}
	return out
}

func sameCoords(t *testing.T, got Snapshot, want [][2]int) {
	t.Helper()
	g := coords(got)
	if len(g) != len(want) {
		t.Fatalf("snapshot=%v want=%v", g, want)
	}
	for i := range want {
		if g[i] != want[i] {
			t.Fatalf("snapshot=%v want=%v", g, want)
		}
	}
}

func TestIdentify_FirstObservationIsEmpty(t *testing.T) {
	cur := board.FromStrings(
		"...##.....",
		"...##.....",
		"..........",
		"##########",
	)
	if got := Identify(nil, cur, DefaultConfig()); !got.Empty() {
		t.Fatalf("snapshot=%v want empty", coords(got))
	}
}

func TestIdentify_IdenticalBoardsAreEmpty(t *testing.T) {
	cur := board.FromStrings(
		"....#.....",
		"...###....",
		"..........",
		"#.########",
	)
	prev := cur.Clone()
	if got := Identify(&prev, cur, DefaultConfig()); !got.Empty() {
		t.Fatalf("snapshot=%v want empty", coords(got))
	}
}

func TestIdentify_PieceMovedDown(t *testing.T) {
	prev := board.FromStrings(
		"....#.....",
		"...###....",
		"..........",
		"..........",
		"##.#######",
	)
	cur := board.FromStrings(
		"..........",
		"....#.....",
		"...###....",
		"..........",
		"##.#######",
	)
	// (1,4) was occupied before too, so only newly filled cells are reported.
	got := Identify(&prev, cur, DefaultConfig())
	sameCoords(t, got, [][2]int{{2, 3}, {2, 4}, {2, 5}})
}

func TestIdentify_ColourChangeCounts(t *testing.T) {
	prev := board.FromStrings(
		"..11......",
		"..11......",
		"..........",
	)
	cur := board.FromStrings(
		"..22......",
		"..11......",
		"..........",
	)
	got := Identify(&prev, cur, DefaultConfig())
	sameCoords(t, got, [][2]int{{0, 2}, {0, 3}})
}

func TestIdentify_WindowExcludesLockedPieceBelow(t *testing.T) {
	prev := board.New(10, 12)
	cur := board.FromStrings(
		"...##.....",
		"...##.....",
		"..........",
		"..........",
		"..........",
		"..........",
		"..........",
		"..........",
		"..........",
		"..........",
		"#.........",
		"###.......",
	)
	got := Identify(&prev, cur, DefaultConfig())
	sameCoords(t, got, [][2]int{{0, 3}, {0, 4}, {1, 3}, {1, 4}})

	// A wide window lets the locked piece through.
	wide := Identify(&prev, cur, Config{Window: 12})
	if len(wide) != 8 {
		t.Fatalf("wide window snapshot=%v want 8 cells", coords(wide))
	}
}

func TestIdentify_DimensionMismatchIsEmpty(t *testing.T) {
	prev := board.New(10, 20)
	cur := board.New(10, 18).With(0, 0, 1)
	if got := Identify(&prev, cur, DefaultConfig()); !got.Empty() {
		t.Fatalf("snapshot=%v want empty", coords(got))
	}
}

func TestSnapshot_Columns(t *testing.T) {
	s := Snapshot{{Row: 0, Col: 5}, {Row: 1, Col: 3}, {Row: 1, Col: 4}, {Row: 1, Col: 5}}
	cols := s.Columns()
	if len(cols) != 3 || cols[0] != 3 || cols[2] != 5 {
		t.Fatalf("columns=%v want=[3 4 5]", cols)
	}
	if s.MinCol() != 3 || s.MaxCol() != 5 {
		t.Fatalf("min=%d max=%d want 3/5", s.MinCol(), s.MaxCol())
	}
	if !s.Contains(1, 4) || s.Contains(0, 4) {
		t.Fatalf("contains mismatch")
	}
	var empty Snapshot
	if empty.MinCol() != -1 || empty.MaxCol() != -1 {
		t.Fatalf("empty snapshot bounds should be -1")
	}
}
