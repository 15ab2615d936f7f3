package sim

import "github.com/brensch/tetrisbot/board"

// Kind identifies a tetromino.
type Kind int

const (
	I Kind = iota
	O
	T
	S
	Z
	J
	L
	numKinds
)

var kindNames = [numKinds]string{"I", "O", "T", "S", "Z", "J", "L"}

func (k Kind) String() string {
	if k < 0 || k >= numKinds {
		return "?"
	}
	return kindNames[k]
}

// Colour is the cell value the piece is drawn with.
func (k Kind) Colour() board.Cell { return board.Cell(k) + 1 }

// shape is a piece in spawn orientation inside a box x box bounding square.
type shape struct {
	box   int
	cells [][2]int
}

var shapes = [numKinds]shape{
	I: {4, [][2]int{{1, 0}, {1, 1}, {1, 2}, {1, 3}}},
	O: {2, [][2]int{{0, 0}, {0, 1}, {1, 0}, {1, 1}}},
	T: {3, [][2]int{{0, 1}, {1, 0}, {1, 1}, {1, 2}}},
	S: {3, [][2]int{{0, 1}, {0, 2}, {1, 0}, {1, 1}}},
	Z: {3, [][2]int{{0, 0}, {0, 1}, {1, 1}, {1, 2}}},
	J: {3, [][2]int{{0, 0}, {1, 0}, {1, 1}, {1, 2}}},
	L: {3, [][2]int{{0, 2}, {1, 0}, {1, 1}, {1, 2}}},
}

// Piece is a tetromino placed on the board. Row and Col locate the top-left
// corner of its bounding box, which may hang off the board.
type Piece struct {
	Kind Kind
	Rot  int
	Row  int
	Col  int
}

// Cells returns the board coordinates the piece covers.
func (p Piece) Cells() []board.Coord {
	s := shapes[p.Kind]
	rot := ((p.Rot % 4) + 4) % 4
	out := make([]board.Coord, len(s.cells))
	for i, c := range s.cells {
		r, col := c[0], c[1]
		for k := 0; k < rot; k++ {
			r, col = col, s.box-1-r
		}
		out[i] = board.Coord{Row: p.Row + r, Col: p.Col + col}
	}
	return out
}

func (p Piece) moved(dRow, dCol int) Piece {
	p.Row += dRow
	p.Col += dCol
	return p
}

func (p Piece) rotated(dir int) Piece {
	p.Rot = (((p.Rot + dir) % 4) + 4) % 4
	return p
}

// spawnPiece centres k at the top of a board of the given width with its
// highest cell on row 0.
func spawnPiece(k Kind, width int) Piece {
	s := shapes[k]
	minRow := s.box
	for _, c := range s.cells {
		if c[0] < minRow {
			minRow = c[0]
		}
	}
	return Piece{Kind: k, Row: -minRow, Col: (width - s.box) / 2}
}
