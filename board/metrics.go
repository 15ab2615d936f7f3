package board

// Profile is the per-column shape of the stack.
type Profile struct {
	Heights []int
	Holes   []int
}

// ProfileOf scans each column once, top to bottom. The first occupied cell sets
// the column height (Height minus its row index); every empty cell after it is a hole.
func ProfileOf(b Board) Profile {
	p := Profile{
		Heights: make([]int, b.Width),
		Holes:   make([]int, b.Width),
	}
	for c := 0; c < b.Width; c++ {
		seen := false
		for r := 0; r < b.Height; r++ {
			filled := b.Cells[b.index(r, c)] != 0
			switch {
			case filled && !seen:
				seen = true
				p.Heights[c] = b.Height - r
			case !filled && seen:
				p.Holes[c]++
			}
		}
	}
	return p
}

// Heights returns the stack height of every column.
func Heights(b Board) []int { return ProfileOf(b).Heights }

// Holes returns the number of covered empty cells in every column.
func Holes(b Board) []int { return ProfileOf(b).Holes }

// Bumpiness is the sum of absolute height differences between adjacent columns.
func Bumpiness(b Board) int { return BumpinessOf(Heights(b)) }

// BumpinessOf is Bumpiness over precomputed heights.
func BumpinessOf(heights []int) int {
	sum := 0
	for c := 0; c+1 < len(heights); c++ {
		sum += abs(heights[c] - heights[c+1])
	}
	return sum
}

// AggregateHeight is the sum of all column heights.
func AggregateHeight(b Board) int { return sumInts(Heights(b)) }

// TotalHoles sums holes over all columns.
func (p Profile) TotalHoles() int { return sumInts(p.Holes) }

// Aggregate sums heights over all columns.
func (p Profile) Aggregate() int { return sumInts(p.Heights) }

// Mean returns the mean column height.
func (p Profile) Mean() float64 {
	if len(p.Heights) == 0 {
		return 0
	}
	return float64(p.Aggregate()) / float64(len(p.Heights))
}

// FilledCount returns the number of occupied cells in a row.
func FilledCount(b Board, row int) int {
	n := 0
	for c := 0; c < b.Width; c++ {
		if b.At(row, c) != 0 {
			n++
		}
	}
	return n
}

// NearlyCompleteRows returns the rows with at least minFilled occupied cells,
// top to bottom. Full rows are included.
func NearlyCompleteRows(b Board, minFilled int) []int {
	var rows []int
	for r := 0; r < b.Height; r++ {
		if FilledCount(b, r) >= minFilled {
			rows = append(rows, r)
		}
	}
	return rows
}

// CompleteRows returns the rows with every cell occupied.
func CompleteRows(b Board) []int { return NearlyCompleteRows(b, b.Width) }

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

func sumInts(xs []int) int {
	s := 0
	for _, x := range xs {
		s += x
	}
	return s
}
