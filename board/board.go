// Package board defines the normalized game matrix observed from the remote
// server and the column metrics the decision engine scores it with.
//
// A Board is a value: every function in this package is pure and safe to call
// concurrently on the same Board.
package board

import (
	"fmt"
	"strings"
)

// MaxCell is the largest valid cell value. 0 is empty, 1..7 are piece colours.
const MaxCell = 7

// Cell is a single matrix cell.
type Cell uint8

// Coord is a board coordinate.
// Row 0 is the top of the board, Col 0 the leftmost column.
type Coord struct {
	Row int
	Col int
}

// Board is a Height x Width matrix stored row-major.
type Board struct {
	Width  int
	Height int
	Cells  []Cell
}

// New returns an empty board.
func New(width, height int) Board {
	return Board{
		Width:  width,
		Height: height,
		Cells:  make([]Cell, width*height),
	}
}

func (b Board) index(row, col int) int { return row*b.Width + col }

// InBounds reports whether (row, col) lies on the board.
func (b Board) InBounds(row, col int) bool {
	return row >= 0 && row < b.Height && col >= 0 && col < b.Width
}

// At returns the cell at (row, col). Out of bounds reads are empty.
func (b Board) At(row, col int) Cell {
	if !b.InBounds(row, col) {
		return 0
	}
	return b.Cells[b.index(row, col)]
}

// Occupied reports whether (row, col) holds a block.
func (b Board) Occupied(row, col int) bool {
	return b.At(row, col) != 0
}

// Row returns a copy of a single row.
func (b Board) Row(row int) []Cell {
	out := make([]Cell, b.Width)
	if row < 0 || row >= b.Height {
		return out
	}
	copy(out, b.Cells[b.index(row, 0):b.index(row, 0)+b.Width])
	return out
}

// Clone performs a deep copy of the board.
func (b Board) Clone() Board {
	out := Board{Width: b.Width, Height: b.Height}
	if len(b.Cells) > 0 {
		out.Cells = make([]Cell, len(b.Cells))
		copy(out.Cells, b.Cells)
	}
	return out
}

// With returns a copy of the board with (row, col) set to v.
func (b Board) With(row, col int, v Cell) Board {
	out := b.Clone()
	if out.InBounds(row, col) {
		out.Cells[out.index(row, col)] = v
	}
	return out
}

// Without returns a copy of the board with the given coordinates cleared.
func Without(b Board, coords []Coord) Board {
	out := b.Clone()
	for _, c := range coords {
		if out.InBounds(c.Row, c.Col) {
			out.Cells[out.index(c.Row, c.Col)] = 0
		}
	}
	return out
}

// Equal reports whether two boards have identical dimensions and cells.
func Equal(a, b Board) bool {
	if a.Width != b.Width || a.Height != b.Height || len(a.Cells) != len(b.Cells) {
		return false
	}
	for i := range a.Cells {
		if a.Cells[i] != b.Cells[i] {
			return false
		}
	}
	return true
}

// Mirror reverses column order.
func Mirror(b Board) Board {
	out := New(b.Width, b.Height)
	for r := 0; r < b.Height; r++ {
		for c := 0; c < b.Width; c++ {
			out.Cells[out.index(r, b.Width-1-c)] = b.Cells[b.index(r, c)]
		}
	}
	return out
}

// String renders the board top to bottom, '.' for empty and the colour digit otherwise.
func (b Board) String() string {
	var sb strings.Builder
	for r := 0; r < b.Height; r++ {
		for c := 0; c < b.Width; c++ {
			v := b.Cells[b.index(r, c)]
			if v == 0 {
				sb.WriteByte('.')
			} else {
				sb.WriteByte('0' + byte(v))
			}
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

// FromStrings builds a board from an ASCII picture, one string per row.
// '.' and ' ' are empty, '1'..'7' are colours and any other rune is colour 1.
// Rows shorter than the widest row are padded with empty cells.
func FromStrings(rows ...string) Board {
	width := 0
	for _, r := range rows {
		if len(r) > width {
			width = len(r)
		}
	}
	b := New(width, len(rows))
	for r, line := range rows {
		for c := 0; c < len(line); c++ {
			ch := line[c]
			switch {
			case ch == '.' || ch == ' ':
			case ch >= '1' && ch <= '7':
				b.Cells[b.index(r, c)] = Cell(ch - '0')
			default:
				b.Cells[b.index(r, c)] = 1
			}
		}
	}
	return b
}

// MalformedBoardError is returned when a wire payload violates the board shape.
type MalformedBoardError struct {
	Line   int
	Reason string
}

func (e *MalformedBoardError) Error() string {
	if e.Line < 0 {
		return fmt.Sprintf("malformed board: %s", e.Reason)
	}
	return fmt.Sprintf("malformed board: line %d: %s", e.Line, e.Reason)
}
