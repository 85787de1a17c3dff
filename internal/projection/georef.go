// Package projection maps vector viewpoint layers onto elevation grid
// pixels.
package projection

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidGeoref reports a georeference that cannot address any cell.
var ErrInvalidGeoref = errors.New("invalid georeference")

// Georef places a grid in map coordinates. (XLL, YLL) is the lower-left
// corner of the lower-left cell; row 0 is the northern edge.
type Georef struct {
	XLL      float64
	YLL      float64
	CellSize float64
	Rows     int
	Cols     int
}

// Validate checks that the georeference describes a non-empty grid.
func (g Georef) Validate() error {
	if g.Rows <= 0 || g.Cols <= 0 {
		return fmt.Errorf("%w: %dx%d cells", ErrInvalidGeoref, g.Rows, g.Cols)
	}
	if !(g.CellSize > 0) {
		return fmt.Errorf("%w: cell size %v", ErrInvalidGeoref, g.CellSize)
	}
	return nil
}

// MapToPixel returns the (row, col) of the cell containing (x, y). Points
// outside the grid, including its southern and eastern edges, map to
// (-1, -1).
func (g Georef) MapToPixel(x, y float64) (row, col int) {
	top := g.YLL + float64(g.Rows)*g.CellSize
	c := math.Floor((x - g.XLL) / g.CellSize)
	r := math.Floor((top - y) / g.CellSize)
	if math.IsNaN(c) || math.IsNaN(r) || c < 0 || r < 0 || c >= float64(g.Cols) || r >= float64(g.Rows) {
		return -1, -1
	}
	return int(r), int(c)
}

// PixelCenter returns the map coordinates of the center of (row, col).
func (g Georef) PixelCenter(row, col int) (x, y float64) {
	x = g.XLL + (float64(col)+0.5)*g.CellSize
	y = g.YLL + (float64(g.Rows-row)-0.5)*g.CellSize
	return x, y
}
