// Package sim is a local Tetris game server speaking the same polling and
// websocket protocol as the remote one, so the bot can be run and tested
// end to end without network access.
package sim

import (
	"math/rand"
	"time"

	"github.com/brensch/tetrisbot/board"
	"github.com/brensch/tetrisbot/session"
	"github.com/brensch/tetrisbot/strategy"
)

// lineScores is indexed by the number of rows cleared at once.
var lineScores = [...]int{0, 100, 300, 500, 800}

// Stats summarizes one game.
type Stats struct {
	Score  int
	Lines  int
	Pieces int
	Games  int
}

// Game is one session's game. It is not safe for concurrent use; the server
// serializes access per session.
type Game struct {
	width  int
	height int
	rng    *rand.Rand
	now    func() time.Time

	stack    board.Board
	active   Piece
	held     Kind
	hasHeld  bool
	holdUsed bool

	state   session.State
	stats   Stats
	updated time.Time
}

// NewGame starts a game in the PLAYING state. The piece sequence is fixed by seed.
func NewGame(width, height int, seed int64) *Game {
	g := &Game{
		width:  width,
		height: height,
		rng:    rand.New(rand.NewSource(seed)),
		now:    time.Now,
	}
	g.reset()
	return g
}

func (g *Game) reset() {
	g.stack = board.New(g.width, g.height)
	g.hasHeld = false
	g.holdUsed = false
	g.stats = Stats{Games: g.stats.Games + 1}
	g.state = session.Playing
	g.spawn(g.nextKind())
}

func (g *Game) nextKind() Kind { return Kind(g.rng.Intn(int(numKinds))) }

// spawn places a new piece. A blocked spawn ends the game.
func (g *Game) spawn(k Kind) {
	p := spawnPiece(k, g.width)
	g.active = p
	g.holdUsed = false
	g.touch()
	if !g.fits(p) {
		g.state = session.GameOver
	}
}

func (g *Game) touch() { g.updated = g.now() }

func (g *Game) fits(p Piece) bool {
	for _, c := range p.Cells() {
		if !g.stack.InBounds(c.Row, c.Col) || g.stack.Occupied(c.Row, c.Col) {
			return false
		}
	}
	return true
}

func (g *Game) try(p Piece) bool {
	if !g.fits(p) {
		return false
	}
	g.active = p
	g.touch()
	return true
}

// lock writes the active piece into the stack, clears full rows and spawns the next piece.
func (g *Game) lock() {
	colour := g.active.Kind.Colour()
	for _, c := range g.active.Cells() {
		if g.stack.InBounds(c.Row, c.Col) {
			g.stack.Cells[c.Row*g.width+c.Col] = colour
		}
	}
	g.stats.Pieces++

	cleared := g.clearRows()
	g.stats.Lines += cleared
	g.stats.Score += lineScores[min(cleared, len(lineScores)-1)]
	g.spawn(g.nextKind())
}

// clearRows removes complete rows and shifts everything above them down.
func (g *Game) clearRows() int {
	full := board.CompleteRows(g.stack)
	if len(full) == 0 {
		return 0
	}
	isFull := make(map[int]bool, len(full))
	for _, r := range full {
		isFull[r] = true
	}
	out := board.New(g.width, g.height)
	dst := g.height - 1
	for r := g.height - 1; r >= 0; r-- {
		if isFull[r] {
			continue
		}
		copy(out.Cells[dst*g.width:(dst+1)*g.width], g.stack.Cells[r*g.width:(r+1)*g.width])
		dst--
	}
	g.stack = out
	return len(full)
}

// Apply performs one command. Rejected commands leave the game unchanged and
// return a reason.
func (g *Game) Apply(cmd strategy.Command) (bool, string) {
	switch cmd {
	case strategy.Restart:
		g.reset()
		return true, "restarted"
	case strategy.Pause:
		if g.state != session.Playing {
			return false, "not playing"
		}
		g.state = session.Paused
		g.touch()
		return true, "paused"
	case strategy.Resume:
		if g.state != session.Paused {
			return false, "not paused"
		}
		g.state = session.Playing
		g.touch()
		return true, "resumed"
	}

	switch g.state {
	case session.Paused:
		return false, "game paused"
	case session.GameOver:
		return false, "game over"
	}

	switch cmd {
	case strategy.Left:
		if !g.try(g.active.moved(0, -1)) {
			return false, "blocked"
		}
	case strategy.Right:
		if !g.try(g.active.moved(0, 1)) {
			return false, "blocked"
		}
	case strategy.RotateCW:
		if !g.try(g.active.rotated(1)) {
			return false, "cannot rotate"
		}
	case strategy.RotateCCW:
		if !g.try(g.active.rotated(-1)) {
			return false, "cannot rotate"
		}
	case strategy.Down:
		g.Tick()
	case strategy.Drop:
		for g.try(g.active.moved(1, 0)) {
		}
		g.lock()
	case strategy.Hold:
		if g.holdUsed {
			return false, "hold already used"
		}
		k := g.active.Kind
		if g.hasHeld {
			g.spawn(g.held)
		} else {
			g.spawn(g.nextKind())
		}
		g.held, g.hasHeld, g.holdUsed = k, true, true
	default:
		return false, "unknown command"
	}
	return true, "ok"
}

// Tick applies gravity once: the piece falls a row or locks in place.
func (g *Game) Tick() {
	if g.state != session.Playing {
		return
	}
	if !g.try(g.active.moved(1, 0)) {
		g.lock()
	}
}

// Board returns the stack with the active piece drawn in.
func (g *Game) Board() board.Board {
	b := g.stack.Clone()
	if g.state == session.GameOver {
		return b
	}
	colour := g.active.Kind.Colour()
	for _, c := range g.active.Cells() {
		if b.InBounds(c.Row, c.Col) {
			b.Cells[c.Row*g.width+c.Col] = colour
		}
	}
	return b
}

func (g *Game) State() session.State { return g.state }

func (g *Game) Active() Piece { return g.active }

func (g *Game) Stats() Stats { return g.stats }

// LastUpdated is when the board or state last changed.
func (g *Game) LastUpdated() time.Time { return g.updated }
