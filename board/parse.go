package board

import "fmt"

// RawRow is one line of the wire matrix. The server omits lines that are empty.
type RawRow struct {
	Line  int   `json:"line"`
	Cells []int `json:"cells"`
}

// Parse normalizes a sparse wire matrix into a width x height Board.
//
// A row carrying k*width cells is unpacked into k consecutive lines starting at
// its Line. Any other cell count, a cell outside [0,MaxCell], a line outside the
// board or a line given twice yields a *MalformedBoardError.
func Parse(rows []RawRow, width, height int) (Board, error) {
	if width <= 0 || height <= 0 {
		return Board{}, &MalformedBoardError{Line: -1, Reason: fmt.Sprintf("invalid dimensions %dx%d", width, height)}
	}

	b := New(width, height)
	seen := make([]bool, height)

	for _, row := range rows {
		if len(row.Cells) == 0 || len(row.Cells)%width != 0 {
			return Board{}, &MalformedBoardError{
				Line:   row.Line,
				Reason: fmt.Sprintf("%d cells do not divide into width %d", len(row.Cells), width),
			}
		}

		for k := 0; k < len(row.Cells)/width; k++ {
			line := row.Line + k
			if line < 0 || line >= height {
				return Board{}, &MalformedBoardError{Line: line, Reason: fmt.Sprintf("outside board height %d", height)}
			}
			if seen[line] {
				return Board{}, &MalformedBoardError{Line: line, Reason: "duplicate line"}
			}
			seen[line] = true

			for c, v := range row.Cells[k*width : (k+1)*width] {
				if v < 0 || v > MaxCell {
					return Board{}, &MalformedBoardError{Line: line, Reason: fmt.Sprintf("cell %d value %d out of range", c, v)}
				}
				b.Cells[b.index(line, c)] = Cell(v)
			}
		}
	}

	return b, nil
}

// Encode returns the sparse wire form of a board: only non-empty lines, one per row.
func Encode(b Board) []RawRow {
	var rows []RawRow
	for r := 0; r < b.Height; r++ {
		cells := make([]int, b.Width)
		empty := true
		for c := 0; c < b.Width; c++ {
			v := b.Cells[b.index(r, c)]
			cells[c] = int(v)
			if v != 0 {
				empty = false
			}
		}
		if !empty {
			rows = append(rows, RawRow{Line: r, Cells: cells})
		}
	}
	return rows
}
