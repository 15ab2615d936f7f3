// Package strategy chooses one command per cycle from the current board and
// the inferred active piece.
//
// The engine is greedy and one piece deep. It walks a fixed list of stages and
// the first stage that fires decides the command:
//
//  1. hole avoidance: step toward a neighbouring column with fewer holes
//  2. height balancing: step off a column that towers over the mean
//  3. rotation: occasionally rotate to vary the footprint
//  4. drop: drop once the landing column is level with its neighbours
//  5. default: soft drop one row
//
// Decide holds no state between calls. Randomness comes only from the Rand
// passed in, so a seeded source makes every decision reproducible.
package strategy

import (
	"fmt"

	"github.com/brensch/tetrisbot/board"
	"github.com/brensch/tetrisbot/tracker"
)

// Stage names the heuristic stage that produced a decision.
type Stage int

const (
	StageDefault Stage = iota
	StageHoleAvoidance
	StageHeightBalance
	StageRotation
	StageDrop
)

func (s Stage) String() string {
	switch s {
	case StageHoleAvoidance:
		return "hole_avoidance"
	case StageHeightBalance:
		return "height_balance"
	case StageRotation:
		return "rotation"
	case StageDrop:
		return "drop"
	default:
		return "default"
	}
}

// Config holds the heuristic thresholds. None of them are tuned; they are the
// values the bot has always played with and are exposed so they can be overridden.
type Config struct {
	// HoleTolerance is the largest height gap to a neighbour that hole avoidance will step into.
	HoleTolerance int
	// HeightMargin is how far above the mean column height the landing column may be
	// before height balancing moves the piece.
	HeightMargin float64
	// RotationOdds rotates with probability 1/RotationOdds. 0 disables rotation.
	RotationOdds int
	// NeighborDelta is the largest height gap to either neighbour that still counts as level.
	NeighborDelta int

	// Score weights. They only feed Decision.Score for logging and recording.
	HeightWeight    float64
	HoleWeight      float64
	BumpinessWeight float64
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		HoleTolerance:   2,
		HeightMargin:    3,
		RotationOdds:    8,
		NeighborDelta:   1,
		HeightWeight:    0.51,
		HoleWeight:      0.36,
		BumpinessWeight: 0.18,
	}
}

// Rand is the randomness the engine consumes. *math/rand.Rand satisfies it.
type Rand interface {
	Intn(n int) int
}

// Decision is the command chosen for one cycle and why.
type Decision struct {
	Command Command
	Stage   Stage
	// Target is the landing column the stages reasoned about, -1 if the board has no columns.
	Target int
	// Score is a board penalty (higher is better, 0 for an empty board).
	Score     float64
	Rationale string
	// AssumedFootprint is set when the piece could not be located and the spawn columns were used.
	AssumedFootprint bool
}

// Engine evaluates boards with a fixed Config.
type Engine struct {
	config Config
}

// NewEngine creates an engine.
func NewEngine(config Config) *Engine {
	return &Engine{config: config}
}

// Config returns the engine thresholds.
func (e *Engine) Config() Config { return e.config }

// footprint is the horizontal extent of the piece the stages reason about.
type footprint struct {
	cols    []int
	minCol  int
	maxCol  int
	assumed bool
}

// spawnFootprint is where a new tetromino appears on a board of the given width.
func spawnFootprint(width int) footprint {
	start := (width - 4) / 2
	if start < 0 {
		start = 0
	}
	end := start + 3
	if end > width-1 {
		end = width - 1
	}
	fp := footprint{minCol: start, maxCol: end, assumed: true}
	for c := start; c <= end; c++ {
		fp.cols = append(fp.cols, c)
	}
	return fp
}

// Decide picks the command for this cycle.
//
// The stack profile excludes the piece's own cells. When piece is empty the
// engine assumes the spawn footprint and never drops, since it cannot tell
// where the piece would land.
func (e *Engine) Decide(b board.Board, piece tracker.Snapshot, prev Command, rng Rand) Decision {
	if b.Width <= 0 || b.Height <= 0 {
		return Decision{Command: Down, Stage: StageDefault, Target: -1, Rationale: "board has no columns"}
	}

	settled := b
	var fp footprint
	if piece.Empty() {
		fp = spawnFootprint(b.Width)
	} else {
		settled = board.Without(b, piece)
		fp = footprint{cols: piece.Columns(), minCol: piece.MinCol(), maxCol: piece.MaxCol()}
	}

	prof := board.ProfileOf(settled)
	target := fp.cols[0]
	for _, c := range fp.cols[1:] {
		if prof.Heights[c] > prof.Heights[target] {
			target = c
		}
	}

	d := Decision{
		Target:           target,
		Score:            e.score(prof),
		AssumedFootprint: fp.assumed,
	}

	if cmd, why, ok := e.avoidHoles(prof, fp, target, b.Width); ok {
		return d.with(cmd, StageHoleAvoidance, why)
	}
	if cmd, why, ok := e.balanceHeight(prof, fp, target, b.Width); ok {
		return d.with(cmd, StageHeightBalance, why)
	}
	if e.config.RotationOdds > 0 && prev != RotateCW && rng != nil && rng.Intn(e.config.RotationOdds) == 0 {
		return d.with(RotateCW, StageRotation, fmt.Sprintf("rotation roll hit 1/%d", e.config.RotationOdds))
	}
	if !fp.assumed && prof.Aggregate() > 0 && e.wellPositioned(prof, fp, target, b.Width) {
		return d.with(Drop, StageDrop, fmt.Sprintf("column %d level with neighbours at height %d", target, prof.Heights[target]))
	}

	why := "no stage fired"
	if fp.assumed {
		why = "piece not located; holding position"
	}
	return d.with(Down, StageDefault, why)
}

func (d Decision) with(cmd Command, stage Stage, why string) Decision {
	d.Command = cmd
	d.Stage = stage
	d.Rationale = why
	return d
}

// avoidHoles steps toward a neighbour with strictly fewer holes whose height is
// within HoleTolerance of the landing column.
func (e *Engine) avoidHoles(prof board.Profile, fp footprint, target, width int) (Command, string, bool) {
	if prof.Holes[target] == 0 {
		return None, "", false
	}

	best := -1
	for _, n := range []int{target - 1, target + 1} {
		if n < 0 || n >= width {
			continue
		}
		if prof.Holes[n] >= prof.Holes[target] {
			continue
		}
		gap := absInt(prof.Heights[n] - prof.Heights[target])
		if gap > e.config.HoleTolerance {
			continue
		}
		if best == -1 ||
			prof.Holes[n] < prof.Holes[best] ||
			(prof.Holes[n] == prof.Holes[best] && gap < absInt(prof.Heights[best]-prof.Heights[target])) {
			best = n
		}
	}
	if best == -1 {
		return None, "", false
	}

	cmd := toward(target, best)
	if !canShift(fp, cmd, width) {
		return None, "", false
	}
	return cmd, fmt.Sprintf("column %d has %d holes, column %d has %d", target, prof.Holes[target], best, prof.Holes[best]), true
}

// balanceHeight moves off a landing column that sits more than HeightMargin above the mean.
func (e *Engine) balanceHeight(prof board.Profile, fp footprint, target, width int) (Command, string, bool) {
	mean := prof.Mean()
	if float64(prof.Heights[target])-mean <= e.config.HeightMargin {
		return None, "", false
	}

	left, right := target-1, target+1
	var cmd Command
	switch {
	case left < 0 && right >= width:
		return None, "", false
	case left < 0:
		cmd = Right
	case right >= width:
		cmd = Left
	case prof.Heights[left] < prof.Heights[right]:
		cmd = Left
	case prof.Heights[right] < prof.Heights[left]:
		cmd = Right
	case float64(target) > float64(width-1)/2:
		cmd = Left
	default:
		cmd = Right
	}

	if !canShift(fp, cmd, width) {
		return None, "", false
	}
	return cmd, fmt.Sprintf("column %d height %d exceeds mean %.2f by more than %.0f", target, prof.Heights[target], mean, e.config.HeightMargin), true
}

// wellPositioned reports whether the landing column is level with its neighbours
// and nothing under the piece is hollow.
func (e *Engine) wellPositioned(prof board.Profile, fp footprint, target, width int) bool {
	for _, n := range []int{target - 1, target + 1} {
		if n < 0 || n >= width {
			continue
		}
		if absInt(prof.Heights[n]-prof.Heights[target]) > e.config.NeighborDelta {
			return false
		}
	}
	for _, c := range fp.cols {
		if prof.Holes[c] > 0 {
			return false
		}
	}
	return true
}

func (e *Engine) score(prof board.Profile) float64 {
	return -(e.config.HeightWeight*float64(prof.Aggregate()) +
		e.config.HoleWeight*float64(prof.TotalHoles()) +
		e.config.BumpinessWeight*float64(board.BumpinessOf(prof.Heights)))
}

func toward(from, to int) Command {
	if to < from {
		return Left
	}
	return Right
}

// canShift reports whether the footprint has room to move one column in that direction.
func canShift(fp footprint, cmd Command, width int) bool {
	switch cmd {
	case Left:
		return fp.minCol > 0
	case Right:
		return fp.maxCol < width-1
	}
	return true
}

func absInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
