package strategy

import (
	"math"
	"math/rand"
	"testing"

	"github.com/brensch/tetrisbot/board"
	"github.com/brensch/tetrisbot/tracker"
)

// fixedRand always rolls the same value (mod n).
type fixedRand int

func (f fixedRand) Intn(n int) int { return int(f) % n }

const (
	neverRotate  = fixedRand(1)
	alwaysRotate = fixedRand(0)
)

// pieceOf collects every cell with the given colour.
func pieceOf(b board.Board, colour board.Cell) tracker.Snapshot {
	var s tracker.Snapshot
	for r := 0; r < b.Height; r++ {
		for c := 0; c < b.Width; c++ {
			if b.At(r, c) == colour {
				s = append(s, board.Coord{Row: r, Col: c})
			}
		}
	}
	return s
}

func logDecision(t *testing.T, label string, b board.Board, d Decision) {
	t.Helper()
	t.Logf("%s\n%s-> %s (%s, target=%d): %s", label, b, d.Command, d.Stage, d.Target, d.Rationale)
}

func TestDecide_TallColumnIsNotDropped(t *testing.T) {
	b := board.FromStrings(
		"...#......",
		"...#......",
		"...#......",
		"...#......",
	)
	e := NewEngine(DefaultConfig())
	for _, rng := range []Rand{neverRotate, alwaysRotate} {
		d := e.Decide(b, nil, None, rng)
		logDecision(t, "tall column 3", b, d)
		if d.Command == Drop {
			t.Fatalf("dropped onto a tower")
		}
		if d.Stage != StageHeightBalance || d.Command != Right {
			t.Fatalf("got %s/%s want RIGHT/height_balance", d.Command, d.Stage)
		}
		if d.Target != 3 || !d.AssumedFootprint {
			t.Fatalf("target=%d assumed=%v want 3/true", d.Target, d.AssumedFootprint)
		}
	}
}

func TestDecide_EmptyBoardNeverDrops(t *testing.T) {
	e := NewEngine(DefaultConfig())
	empty := board.New(10, 20)

	withPiece := board.FromStrings(
		"....22....",
		"....22....",
	)
	withPiece = board.Board{Width: 10, Height: 20, Cells: append(withPiece.Cells, make([]board.Cell, 180)...)}

	for seed := int64(0); seed < 50; seed++ {
		rng := rand.New(rand.NewSource(seed))
		for _, tc := range []struct {
			b     board.Board
			piece tracker.Snapshot
		}{
			{empty, nil},
			{withPiece, pieceOf(withPiece, 2)},
		} {
			d := e.Decide(tc.b, tc.piece, None, rng)
			switch d.Command {
			case Down, Left, Right, RotateCW:
			default:
				t.Fatalf("seed %d: got %s on an empty board", seed, d.Command)
			}
		}
	}
}

func TestDecide_HoleAvoidance(t *testing.T) {
	b := board.FromStrings(
		"....22....",
		"....22....",
		"..........",
		"..........",
		"..........",
		"....#.....",
		"...#.#....",
		"...###....",
	)
	e := NewEngine(DefaultConfig())
	d := e.Decide(b, pieceOf(b, 2), None, alwaysRotate)
	logDecision(t, "hole under column 4", b, d)
	if d.Command != Left || d.Stage != StageHoleAvoidance || d.Target != 4 {
		t.Fatalf("got %s/%s target=%d want LEFT/hole_avoidance target=4", d.Command, d.Stage, d.Target)
	}
}

func TestDecide_HoleAvoidanceRespectsTolerance(t *testing.T) {
	// Column 4 is holed but both neighbours are 3+ rows lower.
	b := board.FromStrings(
		"....22....",
		"....22....",
		"....#.....",
		"....#.....",
		"....#.....",
		"..........",
		"...###....",
	)
	cfg := DefaultConfig()
	cfg.HeightMargin = 100 // keep balancing out of the way
	e := NewEngine(cfg)
	d := e.Decide(b, pieceOf(b, 2), None, neverRotate)
	logDecision(t, "steep neighbours", b, d)
	if d.Stage == StageHoleAvoidance {
		t.Fatalf("hole avoidance fired across a gap larger than tolerance")
	}

	cfg.HoleTolerance = 5
	d = NewEngine(cfg).Decide(b, pieceOf(b, 2), None, neverRotate)
	if d.Stage != StageHoleAvoidance || d.Command != Left {
		t.Fatalf("got %s/%s want LEFT/hole_avoidance with wide tolerance", d.Command, d.Stage)
	}
}

func TestDecide_HeightBalance(t *testing.T) {
	b := board.FromStrings(
		"......22..",
		"......22..",
		"..........",
		"......#...",
		"......#...",
		"......##..",
		"......##..",
		"......##..",
		".....###..",
		".....###..",
	)
	e := NewEngine(DefaultConfig())
	d := e.Decide(b, pieceOf(b, 2), None, alwaysRotate)
	logDecision(t, "tower under piece", b, d)
	if d.Command != Left || d.Stage != StageHeightBalance || d.Target != 6 {
		t.Fatalf("got %s/%s target=%d want LEFT/height_balance target=6", d.Command, d.Stage, d.Target)
	}
}

func TestDecide_WallBlocksLateralMove(t *testing.T) {
	b := board.FromStrings(
		"22........",
		"22........",
		"..........",
		"..........",
		".##.......",
		".##.......",
		".##.......",
		".##.......",
		".##.......",
		"###.......",
	)
	e := NewEngine(DefaultConfig())
	d := e.Decide(b, pieceOf(b, 2), None, neverRotate)
	logDecision(t, "against the wall", b, d)
	if d.Command.Lateral() {
		t.Fatalf("moved %s into the wall", d.Command)
	}
	if d.Command != Down {
		t.Fatalf("got %s want DOWN", d.Command)
	}
}

func TestDecide_DropWhenLevel(t *testing.T) {
	b := board.FromStrings(
		"....22....",
		"....22....",
		"..........",
		"..........",
		"#########.",
	)
	e := NewEngine(DefaultConfig())
	piece := pieceOf(b, 2)

	d := e.Decide(b, piece, None, neverRotate)
	logDecision(t, "flat stack", b, d)
	if d.Command != Drop || d.Stage != StageDrop {
		t.Fatalf("got %s/%s want DROP/drop", d.Command, d.Stage)
	}

	// The rotation roll comes before the drop check.
	if d := e.Decide(b, piece, Down, alwaysRotate); d.Command != RotateCW {
		t.Fatalf("got %s want ROTATE_CW", d.Command)
	}
	// But never twice in a row.
	if d := e.Decide(b, piece, RotateCW, alwaysRotate); d.Command != Drop {
		t.Fatalf("got %s want DROP after a rotation", d.Command)
	}
	// And not when disabled.
	cfg := DefaultConfig()
	cfg.RotationOdds = 0
	if d := NewEngine(cfg).Decide(b, piece, Down, alwaysRotate); d.Command != Drop {
		t.Fatalf("got %s want DROP with rotation disabled", d.Command)
	}
}

func TestDecide_UnknownPieceNeverDrops(t *testing.T) {
	b := board.FromStrings(
		"..........",
		"..........",
		"..........",
		"#########.",
	)
	d := NewEngine(DefaultConfig()).Decide(b, nil, None, neverRotate)
	if d.Command != Down || !d.AssumedFootprint {
		t.Fatalf("got %s assumed=%v want DOWN with assumed footprint", d.Command, d.AssumedFootprint)
	}
}

func randomBoardAndPiece(rng *rand.Rand) (board.Board, tracker.Snapshot) {
	b := board.New(10, 20)
	for r := 8; r < 20; r++ {
		for c := 0; c < 10; c++ {
			if rng.Intn(2) == 0 {
				b = b.With(r, c, board.Cell(1+rng.Intn(board.MaxCell)))
			}
		}
	}
	if rng.Intn(4) == 0 {
		return b, nil
	}
	col := rng.Intn(9)
	row := rng.Intn(5)
	piece := tracker.Snapshot{{Row: row, Col: col}, {Row: row, Col: col + 1}, {Row: row + 1, Col: col}, {Row: row + 1, Col: col + 1}}
	for _, p := range piece {
		b = b.With(p.Row, p.Col, 4)
	}
	return b, piece
}

func TestDecide_Deterministic(t *testing.T) {
	e := NewEngine(DefaultConfig())
	gen := rand.New(rand.NewSource(99))
	for i := 0; i < 200; i++ {
		b, piece := randomBoardAndPiece(gen)
		prev := AllCommands[gen.Intn(len(AllCommands))]

		a := e.Decide(b, piece, prev, rand.New(rand.NewSource(int64(i))))
		c := e.Decide(b, piece, prev, rand.New(rand.NewSource(int64(i))))
		if a != c {
			t.Fatalf("case %d: %+v != %+v", i, a, c)
		}
	}
}

func TestDecide_NeverEmitsControlCommands(t *testing.T) {
	e := NewEngine(DefaultConfig())
	gen := rand.New(rand.NewSource(5))
	for i := 0; i < 500; i++ {
		b, piece := randomBoardAndPiece(gen)
		d := e.Decide(b, piece, None, gen)
		if d.Command.Control() {
			t.Fatalf("case %d: emitted %s", i, d.Command)
		}
		if piece.Empty() && d.Command == Drop {
			t.Fatalf("case %d: dropped without a located piece", i)
		}
	}
}

func TestDecide_Score(t *testing.T) {
	e := NewEngine(DefaultConfig())
	if s := e.Decide(board.New(10, 20), nil, None, neverRotate).Score; s != 0 {
		t.Fatalf("empty board score=%v want 0", s)
	}
	b := board.FromStrings(
		"..........",
		"#.........",
		"..........",
		"##########",
	)
	// heights 3,1,...; holes 1; bumpiness 2
	want := -(0.51*12 + 0.36*1 + 0.18*2)
	if s := e.Decide(b, nil, None, neverRotate).Score; math.Abs(s-want) > 1e-9 {
		t.Fatalf("score=%v want %v", s, want)
	}
}

func TestParseCommand(t *testing.T) {
	for _, c := range AllCommands {
		got, err := ParseCommand(" " + string(c) + " ")
		if err != nil || got != c {
			t.Fatalf("ParseCommand(%q)=%v,%v", c, got, err)
		}
	}
	if got, err := ParseCommand("rotate_ccw"); err != nil || got != RotateCCW {
		t.Fatalf("lowercase parse=%v,%v", got, err)
	}
	if _, err := ParseCommand("JUMP"); err == nil {
		t.Fatalf("unknown command should fail")
	}
}
