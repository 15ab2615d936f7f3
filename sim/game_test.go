package sim

import (
	"testing"

	"github.com/brensch/tetrisbot/board"
	"github.com/brensch/tetrisbot/session"
	"github.com/brensch/tetrisbot/strategy"
)

func countFilled(b board.Board) int {
	n := 0
	for _, v := range b.Cells {
		if v != 0 {
			n++
		}
	}
	return n
}

func TestNewGame_SpawnsAtTop(t *testing.T) {
	g := NewGame(10, 20, 1)
	if g.State() != session.Playing {
		t.Fatalf("state=%v want=PLAYING", g.State())
	}
	if n := countFilled(g.Board()); n != 4 {
		t.Fatalf("filled=%d want=4", n)
	}
	top := 20
	for _, c := range g.Active().Cells() {
		top = min(top, c.Row)
		if c.Col < 3 || c.Col > 6 {
			t.Fatalf("spawn cell %+v outside the centre columns", c)
		}
	}
	if top != 0 {
		t.Fatalf("top row=%d want=0", top)
	}
}

func TestApply_LateralStopsAtWall(t *testing.T) {
	g := NewGame(10, 20, 1)
	moved := 0
	for i := 0; i < 10; i++ {
		if ok, _ := g.Apply(strategy.Left); ok {
			moved++
		}
	}
	if moved == 0 || moved == 10 {
		t.Fatalf("moved=%d want some moves then a blocked one", moved)
	}
	ok, msg := g.Apply(strategy.Left)
	if ok || msg != "blocked" {
		t.Fatalf("ok=%v msg=%q want blocked", ok, msg)
	}
	for _, c := range g.Active().Cells() {
		if c.Col < 0 {
			t.Fatalf("cell %+v left the board", c)
		}
	}
}

func TestApply_DropLocksAndSpawns(t *testing.T) {
	g := NewGame(10, 20, 3)
	if ok, _ := g.Apply(strategy.Drop); !ok {
		t.Fatalf("drop rejected")
	}
	if g.Stats().Pieces != 1 {
		t.Fatalf("pieces=%d want=1", g.Stats().Pieces)
	}
	if n := countFilled(g.Board()); n != 8 {
		t.Fatalf("filled=%d want=8 (locked piece plus the new one)", n)
	}
	if board.FilledCount(g.stack, 19) == 0 {
		t.Fatalf("bottom row empty after drop:\n%s", g.stack)
	}
}

func TestDown_LocksWhenLanded(t *testing.T) {
	g := NewGame(6, 4, 5)
	for i := 0; i < 4 && g.Stats().Pieces == 0; i++ {
		g.Apply(strategy.Down)
	}
	if g.Stats().Pieces != 1 {
		t.Fatalf("pieces=%d want=1 after falling the whole board", g.Stats().Pieces)
	}
}

func TestLock_ClearsFullRows(t *testing.T) {
	g := NewGame(4, 6, 1)
	g.stack = board.FromStrings(
		"....",
		"....",
		"....",
		"3...",
		"3...",
		"33.3",
	)
	// Vertical I in column 2.
	g.active = spawnPiece(I, 4).rotated(1)
	g.Apply(strategy.Drop)

	st := g.Stats()
	if st.Lines != 1 || st.Score != 100 {
		t.Fatalf("stats=%+v want one line for 100", st)
	}
	want := board.FromStrings("....", "....", "....", "..1.", "3.1.", "3.1.")
	if !board.Equal(g.stack, want) {
		t.Fatalf("stack after clear:\n%s\nwant:\n%s", g.stack, want)
	}
}

func TestRotate_FourTurnsIsIdentity(t *testing.T) {
	for k := Kind(0); k < numKinds; k++ {
		p := Piece{Kind: k, Row: 5, Col: 3}
		q := p.rotated(1).rotated(1).rotated(1).rotated(1)
		back := p.rotated(1).rotated(-1)
		a, b, c := p.Cells(), q.Cells(), back.Cells()
		for i := range a {
			if a[i] != b[i] || a[i] != c[i] {
				t.Fatalf("%s: cells=%v after four turns=%v after cw/ccw=%v", k, a, b, c)
			}
		}
	}
}

func TestSpawnBlocked_EndsGameUntilRestart(t *testing.T) {
	g := NewGame(10, 6, 1)
	g.stack = board.FromStrings(
		"#.#.#.#.#.",
		"#.#.#.#.#.",
		"#.#.#.#.#.",
		"#.#.#.#.#.",
		"#.#.#.#.#.",
		"#.#.#.#.#.",
	)
	g.spawn(T)
	if g.State() != session.GameOver {
		t.Fatalf("state=%v want=GAME_OVER", g.State())
	}
	if ok, msg := g.Apply(strategy.Left); ok || msg != "game over" {
		t.Fatalf("ok=%v msg=%q want game over rejection", ok, msg)
	}
	g.Tick()

	if ok, _ := g.Apply(strategy.Restart); !ok {
		t.Fatalf("restart rejected")
	}
	if g.State() != session.Playing || g.Stats().Games != 2 {
		t.Fatalf("state=%v stats=%+v want a second game in play", g.State(), g.Stats())
	}
	if countFilled(g.stack) != 0 {
		t.Fatalf("stack not cleared:\n%s", g.stack)
	}
}

func TestPauseResume(t *testing.T) {
	g := NewGame(10, 20, 1)
	if ok, _ := g.Apply(strategy.Pause); !ok || g.State() != session.Paused {
		t.Fatalf("pause failed state=%v", g.State())
	}
	before := g.Active()
	g.Tick()
	if ok, _ := g.Apply(strategy.Down); ok {
		t.Fatalf("move accepted while paused")
	}
	if g.Active() != before {
		t.Fatalf("piece moved while paused")
	}
	if ok, _ := g.Apply(strategy.Resume); !ok || g.State() != session.Playing {
		t.Fatalf("resume failed state=%v", g.State())
	}
	if ok, _ := g.Apply(strategy.Resume); ok {
		t.Fatalf("resume accepted while playing")
	}
}

func TestHold(t *testing.T) {
	g := NewGame(10, 20, 9)
	first := g.Active().Kind
	if ok, _ := g.Apply(strategy.Hold); !ok {
		t.Fatalf("hold rejected")
	}
	if ok, msg := g.Apply(strategy.Hold); ok || msg != "hold already used" {
		t.Fatalf("ok=%v msg=%q want second hold rejected", ok, msg)
	}
	g.Apply(strategy.Drop)
	if ok, _ := g.Apply(strategy.Hold); !ok {
		t.Fatalf("hold rejected after a lock")
	}
	if g.Active().Kind != first {
		t.Fatalf("kind=%s want the held %s back", g.Active().Kind, first)
	}
}

func TestSameSeedSameGame(t *testing.T) {
	a, b := NewGame(10, 20, 42), NewGame(10, 20, 42)
	for i := 0; i < 12; i++ {
		a.Apply(strategy.Drop)
		b.Apply(strategy.Drop)
	}
	if !board.Equal(a.Board(), b.Board()) {
		t.Fatalf("boards diverged:\n%s\nvs\n%s", a.Board(), b.Board())
	}
}
