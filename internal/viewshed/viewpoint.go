package viewshed

import "fmt"

// Viewpoint is an observer location on the elevation grid.
type Viewpoint struct {
	Row int
	Col int
	// Elevation is the absolute observer height. It is resolved by the
	// worker as terrain elevation plus ElevationOffset when processing
	// starts; any value set by the caller is overwritten.
	Elevation float64
	// ElevationOffset is the observer height above the terrain.
	ElevationOffset float64
	// Weight scales every contribution of this viewpoint when weighted
	// mode is enabled.
	Weight float64
}

// NewViewpoint returns an unweighted viewpoint at (row, col).
func NewViewpoint(row, col int, offset float64) Viewpoint {
	return Viewpoint{Row: row, Col: col, ElevationOffset: offset, Weight: 1}
}

func (v Viewpoint) String() string {
	return fmt.Sprintf("[%d,%d]", v.Row, v.Col)
}

// Contribution is the visual magnitude one viewpoint adds to one cell.
type Contribution struct {
	Row       int
	Col       int
	Magnitude float64
	Weight    float64
}

// Value returns the amount added to the output grid.
func (c Contribution) Value() float64 { return c.Magnitude * c.Weight }
