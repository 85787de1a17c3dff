package grid

import "iter"

// Cell is an integer (row, col) grid coordinate.
type Cell struct {
	Row int
	Col int
}

// Side identifies one edge of a Ring.
type Side int

const (
	Top Side = iota
	Right
	Bottom
	Left
)

func (s Side) String() string {
	switch s {
	case Top:
		return "top"
	case Right:
		return "right"
	case Bottom:
		return "bottom"
	case Left:
		return "left"
	default:
		return "unknown"
	}
}

// Ring is the clipped square perimeter at a fixed Chebyshev distance from a
// center cell. It holds only its corners and per-side flags; coordinates
// are produced on demand, so a Ring can be walked any number of times.
//
// Walk order is clockwise: top row left to right, right column top to
// bottom, bottom row right to left, left column bottom to top. The LOS
// sweep relies on this order being stable.
type Ring struct {
	distance    int
	topLeft     Cell
	topRight    Cell
	bottomRight Cell
	bottomLeft  Cell
	inBounds    [4]bool
}

// GetRing returns the ring at distance around (centerRow, centerCol).
//
// Each corner coordinate is clamped to the grid independently. Clamping on
// the leading edge of a side (the top row for Top, the right column for
// Right, the bottom row for Bottom, the left column for Left) removes that
// side from the walk entirely; clamping on any other coordinate only
// shortens the neighbouring side.
func (g *Grid) GetRing(centerRow, centerCol, distance int) Ring {
	rows, cols := g.m.Dims()
	r := Ring{distance: distance, inBounds: [4]bool{true, true, true, true}}

	r.topLeft = Cell{Row: centerRow - distance, Col: centerCol - distance}
	if r.topLeft.Row < 0 {
		r.topLeft.Row = 0
		r.inBounds[Top] = false
	}
	if r.topLeft.Col < 0 {
		r.topLeft.Col = 0
	}

	r.topRight = Cell{Row: centerRow - distance, Col: centerCol + distance}
	if r.topRight.Row < 0 {
		r.topRight.Row = 0
	}
	if r.topRight.Col >= cols {
		r.topRight.Col = cols - 1
		r.inBounds[Right] = false
	}

	r.bottomRight = Cell{Row: centerRow + distance, Col: centerCol + distance}
	if r.bottomRight.Row >= rows {
		r.bottomRight.Row = rows - 1
		r.inBounds[Bottom] = false
	}
	if r.bottomRight.Col >= cols {
		r.bottomRight.Col = cols - 1
	}

	r.bottomLeft = Cell{Row: centerRow + distance, Col: centerCol - distance}
	if r.bottomLeft.Row >= rows {
		r.bottomLeft.Row = rows - 1
	}
	if r.bottomLeft.Col < 0 {
		r.bottomLeft.Col = 0
		r.inBounds[Left] = false
	}

	return r
}

// Distance returns the Chebyshev distance of the ring from its center.
func (r Ring) Distance() int { return r.distance }

// InBounds reports whether side s contributes cells to the walk.
func (r Ring) InBounds(s Side) bool { return r.inBounds[s] }

// Len returns the number of cells the walk yields.
func (r Ring) Len() int {
	n := 0
	if r.inBounds[Top] {
		n += max(0, r.topRight.Col-r.topLeft.Col)
	}
	if r.inBounds[Right] {
		n += max(0, r.bottomRight.Row-r.topRight.Row)
	}
	if r.inBounds[Bottom] {
		n += max(0, r.bottomRight.Col-r.bottomLeft.Col)
	}
	if r.inBounds[Left] {
		n += max(0, r.bottomLeft.Row-r.topLeft.Row)
	}
	return n
}

// All returns an iterator over the ring's cells in walk order.
func (r Ring) All() iter.Seq[Cell] {
	return func(yield func(Cell) bool) {
		if r.inBounds[Top] {
			for x := r.topLeft.Col; x < r.topRight.Col; x++ {
				if !yield(Cell{Row: r.topLeft.Row, Col: x}) {
					return
				}
			}
		}
		if r.inBounds[Right] {
			for y := r.topRight.Row; y < r.bottomRight.Row; y++ {
				if !yield(Cell{Row: y, Col: r.topRight.Col}) {
					return
				}
			}
		}
		if r.inBounds[Bottom] {
			for x := r.bottomRight.Col; x > r.bottomLeft.Col; x-- {
				if !yield(Cell{Row: r.bottomRight.Row, Col: x}) {
					return
				}
			}
		}
		if r.inBounds[Left] {
			for y := r.bottomLeft.Row; y > r.topLeft.Row; y-- {
				if !yield(Cell{Row: y, Col: r.bottomLeft.Col}) {
					return
				}
			}
		}
	}
}

// AppendTo appends the ring's cells to dst in walk order and returns the
// extended slice. Workers use it to reuse one buffer across rings.
func (r Ring) AppendTo(dst []Cell) []Cell {
	for c := range r.All() {
		dst = append(dst, c)
	}
	return dst
}

// Cells returns the ring's cells as a new slice.
func (r Ring) Cells() []Cell {
	return r.AppendTo(make([]Cell, 0, r.Len()))
}
