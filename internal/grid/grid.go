package grid

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// ErrInvalidShape is returned when a grid is requested with non-positive
// dimensions, a non-positive cell size, or data of the wrong length.
var ErrInvalidShape = errors.New("invalid grid shape")

// Grid is a row-major 2D raster of float64 values with a square cell size
// expressed in ground units. Dimensions are fixed at construction.
//
// A Grid is not safe for concurrent mutation. Concurrent reads are safe as
// long as no goroutine writes.
type Grid struct {
	m        *mat.Dense
	cellSize float64
}

// New returns a zero-initialised grid of rows×cols cells.
func New(rows, cols int, cellSize float64) (*Grid, error) {
	if err := checkShape(rows, cols, cellSize); err != nil {
		return nil, err
	}
	return &Grid{m: mat.NewDense(rows, cols, nil), cellSize: cellSize}, nil
}

// ImportElevation builds a grid from a row-major slice of samples. The
// slice is copied. Callers holding column-major data must transpose it
// before import.
func ImportElevation(rows, cols int, cellSize float64, data []float64) (*Grid, error) {
	if err := checkShape(rows, cols, cellSize); err != nil {
		return nil, err
	}
	if len(data) != rows*cols {
		return nil, fmt.Errorf("%w: %d samples for %dx%d grid", ErrInvalidShape, len(data), rows, cols)
	}
	buf := make([]float64, len(data))
	copy(buf, data)
	return &Grid{m: mat.NewDense(rows, cols, buf), cellSize: cellSize}, nil
}

// NewLike returns a zero grid with the same shape and cell size as g.
func NewLike(g *Grid) *Grid {
	rows, cols := g.m.Dims()
	return &Grid{m: mat.NewDense(rows, cols, nil), cellSize: g.cellSize}
}

func checkShape(rows, cols int, cellSize float64) error {
	if rows <= 0 || cols <= 0 {
		return fmt.Errorf("%w: dimensions %dx%d", ErrInvalidShape, rows, cols)
	}
	if !(cellSize > 0) {
		return fmt.Errorf("%w: cell size %v", ErrInvalidShape, cellSize)
	}
	return nil
}

// Rows returns the extent along axis 0.
func (g *Grid) Rows() int {
	r, _ := g.m.Dims()
	return r
}

// Cols returns the extent along axis 1.
func (g *Grid) Cols() int {
	_, c := g.m.Dims()
	return c
}

// GetLength returns the extent of the grid along dim (0 = rows, 1 = cols).
func (g *Grid) GetLength(dim int) int {
	switch dim {
	case 0:
		return g.Rows()
	case 1:
		return g.Cols()
	default:
		panic(fmt.Sprintf("grid: dimension %d out of range", dim))
	}
}

// CellSize returns the ground size of one cell edge.
func (g *Grid) CellSize() float64 { return g.cellSize }

// InBounds reports whether (row, col) addresses a cell of g.
func (g *Grid) InBounds(row, col int) bool {
	rows, cols := g.m.Dims()
	return row >= 0 && row < rows && col >= 0 && col < cols
}

// At returns the value at (row, col). It panics if the cell is out of range.
func (g *Grid) At(row, col int) float64 { return g.m.At(row, col) }

// Set stores v at (row, col). It panics if the cell is out of range.
func (g *Grid) Set(row, col int, v float64) { g.m.Set(row, col, v) }

// Add adds v to the value at (row, col).
func (g *Grid) Add(row, col int, v float64) { g.m.Set(row, col, g.m.At(row, col)+v) }

// Clear zeroes every cell.
func (g *Grid) Clear() { g.m.Zero() }

// Initialize zeroes every cell. It is an alias of Clear kept for callers
// that treat a fresh accumulator as "initialised".
func (g *Grid) Initialize() { g.Clear() }

// Fill sets every cell to v.
func (g *Grid) Fill(v float64) {
	raw := g.m.RawMatrix()
	for r := 0; r < raw.Rows; r++ {
		row := raw.Data[r*raw.Stride : r*raw.Stride+raw.Cols]
		for i := range row {
			row[i] = v
		}
	}
}

// Transpose returns a new grid with the axes swapped. Output rasters whose
// native order is (x, y) use it when serialising.
func (g *Grid) Transpose() *Grid {
	return &Grid{m: mat.DenseCopyOf(g.m.T()), cellSize: g.cellSize}
}

// Clone returns a deep copy of g.
func (g *Grid) Clone() *Grid {
	return &Grid{m: mat.DenseCopyOf(g.m), cellSize: g.cellSize}
}

// Values returns a row-major copy of the cell values.
func (g *Grid) Values() []float64 {
	raw := g.m.RawMatrix()
	out := make([]float64, 0, raw.Rows*raw.Cols)
	for r := 0; r < raw.Rows; r++ {
		out = append(out, raw.Data[r*raw.Stride:r*raw.Stride+raw.Cols]...)
	}
	return out
}

// Sum returns the sum of all cells.
func (g *Grid) Sum() float64 { return floats.Sum(g.Values()) }

// Max returns the largest cell value.
func (g *Grid) Max() float64 { return floats.Max(g.Values()) }

// Count returns the number of cells for which keep returns true.
func (g *Grid) Count(keep func(v float64) bool) int {
	n := 0
	raw := g.m.RawMatrix()
	for r := 0; r < raw.Rows; r++ {
		for _, v := range raw.Data[r*raw.Stride : r*raw.Stride+raw.Cols] {
			if keep(v) {
				n++
			}
		}
	}
	return n
}

// EqualApprox reports whether a and b have the same shape and all cells
// agree within tol (absolute or relative).
func EqualApprox(a, b *Grid, tol float64) bool {
	if a.Rows() != b.Rows() || a.Cols() != b.Cols() {
		return false
	}
	return mat.EqualApprox(a.m, b.m, tol)
}
