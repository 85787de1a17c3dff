package viewshed

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/vismag/internal/grid"
)

const (
	// UndefinedLOS seeds the LOS scratch grid. It is larger than any zenith
	// angle, so a cell whose neighbours were never swept is always visible.
	UndefinedLOS = 100.0

	earthDiameter   = 12_740_000.0
	lightRefraction = 0.13
)

// Math evaluates visibility and visual magnitude for one viewpoint over one
// elevation grid. It is not safe for concurrent use; every worker owns one.
type Math struct {
	elev         *grid.Grid
	cellSize     float64
	windTurbines bool
	vp           Viewpoint
}

// NewMath binds the evaluator to an elevation grid.
func NewMath(elev *grid.Grid, windTurbines bool) *Math {
	return &Math{elev: elev, cellSize: elev.CellSize(), windTurbines: windTurbines}
}

// SetViewpoint makes vp the active viewpoint. vp.Elevation must already be
// resolved.
func (m *Math) SetViewpoint(vp Viewpoint) { m.vp = vp }

// Viewpoint returns the active viewpoint.
func (m *Math) Viewpoint() Viewpoint { return m.vp }

// Sector classifies (row, col) relative to the active viewpoint.
func (m *Math) Sector(row, col int) (Sector, error) {
	s, err := classify(row-m.vp.Row, col-m.vp.Col)
	if err != nil {
		return 0, fmt.Errorf("cell [%d,%d] from viewpoint %v: %w", row, col, m.vp, err)
	}
	return s, nil
}

// Neighbors returns the adjacent and offset cells bracketing the line of
// sight to (row, col) in ring d-1.
func (m *Math) Neighbors(row, col int, s Sector) (adj, off grid.Cell) {
	b := bracketTable[s]
	adj = grid.Cell{Row: row + b.adjRow, Col: col + b.adjCol}
	off = grid.Cell{Row: row + b.offRow, Col: col + b.offCol}
	return adj, off
}

// InterpolateWeight returns the weight of the adjacent cell's LOS value. It
// is the fraction of angular separation between the target's viewing aspect
// and the offset cell's, relative to the whole bracket.
func (m *Math) InterpolateWeight(row, col int, s Sector) float64 {
	adj, off := m.Neighbors(row, col, s)
	cellAspect := m.ViewingAspect(row, col)
	adjDelta := math.Abs(m.ViewingAspect(adj.Row, adj.Col) - cellAspect)
	offDelta := math.Abs(m.ViewingAspect(off.Row, off.Col) - cellAspect)

	total := adjDelta + offDelta
	if total == 0 {
		return 1
	}
	return offDelta / total
}

// ViewingAspect is the compass direction from the viewpoint to the cell in
// [0, 2π).
func (m *Math) ViewingAspect(row, col int) float64 {
	a := -math.Atan2(float64(m.vp.Col-col), float64(m.vp.Row-row))
	return math.Mod(a+2*math.Pi, 2*math.Pi)
}

// offsets returns horizontal and vertical displacement from the viewpoint to
// the cell, with the vertical term corrected for curvature and refraction.
func (m *Math) offsets(row, col int) (horizontal, vertical float64) {
	dx := math.Abs(float64(m.vp.Col-col)) * m.cellSize
	dy := math.Abs(float64(m.vp.Row-row)) * m.cellSize
	sq := dx*dx + dy*dy
	curvature := sq / earthDiameter
	vertical = m.elev.At(row, col) - curvature + lightRefraction*curvature - m.vp.Elevation
	return math.Sqrt(sq), vertical
}

// ViewingSlope is the zenith angle of the ray from the viewpoint to the
// cell: 0 straight up, π/2 level, π straight down.
func (m *Math) ViewingSlope(row, col int) float64 {
	h, v := m.offsets(row, col)
	return math.Atan2(h, v)
}

// Distance is the straight-line 3D distance from the viewpoint to the cell.
func (m *Math) Distance(row, col int) float64 {
	h, v := m.offsets(row, col)
	return math.Hypot(h, v)
}

// IsCellVisible tests (row, col) against the LOS values already stored for
// ring d-1 and records the cell's own LOS value in los.
//
// The cell is visible when its viewing slope is at or below the
// interpolated horizon, i.e. the ray reaches it no higher than the
// steepest obstruction in front of it.
func (m *Math) IsCellVisible(los *grid.Grid, row, col int) (bool, error) {
	s, err := m.Sector(row, col)
	if err != nil {
		return false, err
	}
	adj, off := m.Neighbors(row, col, s)
	w := m.InterpolateWeight(row, col, s)
	cellLOS := los.At(adj.Row, adj.Col)*w + los.At(off.Row, off.Col)*(1-w)

	slope := m.ViewingSlope(row, col)
	if slope <= cellLOS {
		los.Set(row, col, slope)
		return true, nil
	}
	los.Set(row, col, cellLOS)
	return false, nil
}

// slopeComponents returns the north-south and west-east elevation
// gradients of the 3x3 window around (row, col), diagonals weighted √2.
func (m *Math) slopeComponents(row, col int) (ns, ew float64) {
	e := m.elev.At
	ns = (math.Sqrt2*e(row-1, col-1) + e(row-1, col) + math.Sqrt2*e(row-1, col+1)) / 4
	ns -= (math.Sqrt2*e(row+1, col-1) + e(row+1, col) + math.Sqrt2*e(row+1, col+1)) / 4
	ew = (math.Sqrt2*e(row-1, col-1) + e(row, col-1) + math.Sqrt2*e(row+1, col-1)) / 4
	ew -= (math.Sqrt2*e(row-1, col+1) + e(row, col+1) + math.Sqrt2*e(row+1, col+1)) / 4
	return ns, ew
}

func (m *Math) isEdge(row, col int) bool {
	return row <= 0 || col <= 0 || row >= m.elev.Rows()-1 || col >= m.elev.Cols()-1
}

// CellSlope is the angle between the cell's surface normal and vertical.
// Edge cells have no full window and report 0.
func (m *Math) CellSlope(row, col int) float64 {
	if m.isEdge(row, col) {
		return 0
	}
	ns, ew := m.slopeComponents(row, col)
	north := r3.Unit(r3.Vec{X: 0, Y: 2 * m.cellSize, Z: ns})
	east := r3.Unit(r3.Vec{X: 2 * m.cellSize, Y: 0, Z: ew})
	normal := r3.Cross(east, north)
	return vectorAngle(normal, r3.Vec{Z: 1})
}

// CellAspect is the downslope compass direction of the cell in [0, 2π):
// 0 north, π/2 east. Edge cells report 0.
func (m *Math) CellAspect(row, col int) float64 {
	if m.isEdge(row, col) {
		return 0
	}
	ns, ew := m.slopeComponents(row, col)
	return math.Mod(math.Atan2(ew, -ns)+2*math.Pi, 2*math.Pi)
}

// VisualMagnitude is the solid-angle proxy of the cell as seen from the
// viewpoint. Cells whose surface faces away from the viewer score 0.
func (m *Math) VisualMagnitude(row, col int) float64 {
	d := m.Distance(row, col)
	area := m.cellSize * m.cellSize
	if m.windTurbines {
		return area / (d * d)
	}

	view := directionVector(m.ViewingAspect(row, col), m.ViewingSlope(row, col))
	normal := directionVector(m.CellAspect(row, col), m.CellSlope(row, col))
	return exposure(area, d, vectorAngle(view, normal))
}

// exposure scales the inverse-square term by how squarely the surface faces
// the viewer. angle is measured between the view ray and the surface normal.
func exposure(area, distance, angle float64) float64 {
	if angle < math.Pi/2 {
		return 0
	}
	return area / (distance * distance) * math.Abs(math.Cos(angle))
}

// directionVector is the unit vector for a compass azimuth and a zenith
// angle.
func directionVector(azimuth, zenith float64) r3.Vec {
	sinZ, cosZ := math.Sincos(zenith)
	sinA, cosA := math.Sincos(azimuth)
	return r3.Unit(r3.Vec{X: cosA * sinZ, Y: sinA * sinZ, Z: cosZ})
}

func vectorAngle(a, b r3.Vec) float64 {
	cos := r3.Dot(r3.Unit(a), r3.Unit(b))
	return math.Acos(math.Max(-1, math.Min(1, cos)))
}
