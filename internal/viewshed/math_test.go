package viewshed

import (
	"errors"
	"math"
	"testing"

	"github.com/banshee-data/vismag/internal/grid"
)

func flatGrid(t *testing.T, rows, cols int, cellSize float64) *grid.Grid {
	t.Helper()
	g, err := grid.New(rows, cols, cellSize)
	if err != nil {
		t.Fatalf("grid.New: %v", err)
	}
	return g
}

func TestClassify_AllSectors(t *testing.T) {
	cases := []struct {
		relRow, relCol int
		want           Sector
	}{
		{-3, 0, SectorN},
		{-3, 1, SectorNNE},
		{-2, 2, SectorNE},
		{-1, 3, SectorENE},
		{0, 4, SectorE},
		{1, 3, SectorESE},
		{2, 2, SectorSE},
		{3, 1, SectorSSE},
		{3, 0, SectorS},
		{3, -1, SectorSSW},
		{2, -2, SectorSW},
		{1, -3, SectorWSW},
		{0, -4, SectorW},
		{-1, -3, SectorWNW},
		{-2, -2, SectorNW},
		{-3, -1, SectorNNW},
	}
	for _, tc := range cases {
		got, err := classify(tc.relRow, tc.relCol)
		if err != nil {
			t.Fatalf("classify(%d,%d): %v", tc.relRow, tc.relCol, err)
		}
		if got != tc.want {
			t.Errorf("classify(%d,%d) = %v, want %v", tc.relRow, tc.relCol, got, tc.want)
		}
	}
}

func TestClassify_BracketCellsAreOneRingCloser(t *testing.T) {
	elev := flatGrid(t, 41, 41, 1)
	m := NewMath(elev, false)
	m.SetViewpoint(Viewpoint{Row: 20, Col: 20})

	cheb := func(r, c int) int { return max(abs(r-20), abs(c-20)) }
	for d := 2; d <= 20; d++ {
		for cell := range elev.GetRing(20, 20, d).All() {
			s, err := m.Sector(cell.Row, cell.Col)
			if err != nil {
				t.Fatalf("Sector(%v): %v", cell, err)
			}
			adj, off := m.Neighbors(cell.Row, cell.Col, s)
			if cheb(adj.Row, adj.Col) != d-1 || cheb(off.Row, off.Col) != d-1 {
				t.Fatalf("cell %v (%v): neighbours %v %v not in ring %d", cell, s, adj, off, d-1)
			}
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func TestSectorFromCode_Unknown(t *testing.T) {
	if _, err := sectorFromCode(0x9999); !errors.Is(err, ErrUnknownSector) {
		t.Fatalf("expected ErrUnknownSector, got %v", err)
	}

	// the viewpoint cell itself has no sector
	elev := flatGrid(t, 5, 5, 1)
	m := NewMath(elev, false)
	m.SetViewpoint(Viewpoint{Row: 2, Col: 2})
	los := grid.NewLike(elev)
	los.Fill(UndefinedLOS)
	if _, err := m.IsCellVisible(los, 2, 2); !errors.Is(err, ErrUnknownSector) {
		t.Fatalf("expected ErrUnknownSector at viewpoint, got %v", err)
	}
}

func TestSector_String(t *testing.T) {
	if SectorWNW.String() != "WNW" || SectorN.String() != "N" {
		t.Fatalf("unexpected names %q %q", SectorWNW, SectorN)
	}
	if got := Sector(42).String(); got != "Sector(42)" {
		t.Fatalf("out of range name = %q", got)
	}
}

func TestInterpolateWeight(t *testing.T) {
	elev := flatGrid(t, 21, 21, 1)
	m := NewMath(elev, false)
	m.SetViewpoint(Viewpoint{Row: 10, Col: 10})

	// on an axis both neighbours coincide
	w := m.InterpolateWeight(10, 14, SectorE)
	if w != 1 {
		t.Fatalf("axis weight = %v, want 1", w)
	}

	// off-axis weights stay in [0, 1]
	for cell := range elev.GetRing(10, 10, 6).All() {
		s, err := m.Sector(cell.Row, cell.Col)
		if err != nil {
			t.Fatal(err)
		}
		w := m.InterpolateWeight(cell.Row, cell.Col, s)
		if w < 0 || w > 1 || math.IsNaN(w) {
			t.Fatalf("weight %v out of range at %v", w, cell)
		}
	}
}

func TestViewingAspect(t *testing.T) {
	elev := flatGrid(t, 11, 11, 1)
	m := NewMath(elev, false)
	m.SetViewpoint(Viewpoint{Row: 5, Col: 5})

	cases := []struct {
		row, col int
		want     float64
	}{
		{0, 5, 0},
		{5, 10, math.Pi / 2},
		{10, 5, math.Pi},
		{5, 0, 3 * math.Pi / 2},
		{0, 10, math.Pi / 4},
	}
	for _, tc := range cases {
		if got := m.ViewingAspect(tc.row, tc.col); math.Abs(got-tc.want) > 1e-12 {
			t.Errorf("ViewingAspect(%d,%d) = %v, want %v", tc.row, tc.col, got, tc.want)
		}
	}
}

func TestViewingSlope_FlatPlaneBelowHorizon(t *testing.T) {
	elev := flatGrid(t, 21, 21, 10)
	m := NewMath(elev, false)
	m.SetViewpoint(Viewpoint{Row: 10, Col: 10, Elevation: 10})

	prev := math.Pi
	for c := 11; c <= 20; c++ {
		s := m.ViewingSlope(10, c)
		if s <= math.Pi/2 || s >= math.Pi {
			t.Fatalf("slope %v at col %d not below horizon", s, c)
		}
		if s >= prev {
			t.Fatalf("slope did not decrease with distance at col %d: %v >= %v", c, s, prev)
		}
		prev = s
	}
}

func TestCellSlopeAndAspect(t *testing.T) {
	// plane rising toward the east by 1 per cell
	data := make([]float64, 25)
	for r := 0; r < 5; r++ {
		for c := 0; c < 5; c++ {
			data[r*5+c] = float64(c)
		}
	}
	elev, err := grid.ImportElevation(5, 5, 1, data)
	if err != nil {
		t.Fatal(err)
	}
	m := NewMath(elev, false)

	if got := m.CellSlope(0, 2); got != 0 {
		t.Fatalf("edge slope = %v, want 0", got)
	}
	if got := m.CellAspect(4, 4); got != 0 {
		t.Fatalf("edge aspect = %v, want 0", got)
	}

	slope := m.CellSlope(2, 2)
	if slope <= 0 || slope >= math.Pi/2 {
		t.Fatalf("slope %v out of range", slope)
	}
	// the west-east gradient is the only component
	if got := m.CellAspect(2, 2); math.Abs(got-3*math.Pi/2) > 1e-12 {
		t.Fatalf("aspect = %v, want 3π/2", got)
	}

	flat := flatGrid(t, 5, 5, 1)
	if got := NewMath(flat, false).CellSlope(2, 2); got != 0 {
		t.Fatalf("flat slope = %v, want 0", got)
	}
}

func TestExposure_RightAngleBoundary(t *testing.T) {
	if got := exposure(1, 1, math.Pi/2-1e-9); got != 0 {
		t.Fatalf("exposure just inside π/2 = %v, want 0", got)
	}
	if got := exposure(1, 1, math.Pi/2+1e-3); got <= 0 {
		t.Fatalf("exposure just past π/2 = %v, want > 0", got)
	}
	if got := exposure(4, 2, math.Pi); math.Abs(got-1) > 1e-12 {
		t.Fatalf("head-on exposure = %v, want 1", got)
	}
}

func TestVisualMagnitude_WindTurbines(t *testing.T) {
	elev := flatGrid(t, 11, 11, 10)
	m := NewMath(elev, true)
	m.SetViewpoint(Viewpoint{Row: 5, Col: 5})

	// same elevation as the viewpoint: pure horizontal distance
	got := m.VisualMagnitude(5, 8)
	want := 100.0 / (30.0 * 30.0)
	if math.Abs(got-want) > 1e-6 {
		t.Fatalf("magnitude = %v, want %v", got, want)
	}
}

func TestVisualMagnitude_FacingAway(t *testing.T) {
	// a slope dropping away from a viewer level with the target cell
	data := make([]float64, 49)
	for r := 0; r < 7; r++ {
		for c := 0; c < 7; c++ {
			data[r*7+c] = -2 * float64(c)
		}
	}
	elev, err := grid.ImportElevation(7, 7, 1, data)
	if err != nil {
		t.Fatal(err)
	}
	m := NewMath(elev, false)
	m.SetViewpoint(Viewpoint{Row: 3, Col: 0, Elevation: -8})
	if got := m.VisualMagnitude(3, 4); got != 0 {
		t.Fatalf("back-facing magnitude = %v, want 0", got)
	}
}
