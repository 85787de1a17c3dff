package grid

import (
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func mustGrid(t *testing.T, rows, cols int) *Grid {
	t.Helper()
	g, err := New(rows, cols, 1)
	if err != nil {
		t.Fatalf("New(%d, %d): %v", rows, cols, err)
	}
	return g
}

func chebyshev(a, b Cell) int {
	dr := a.Row - b.Row
	if dr < 0 {
		dr = -dr
	}
	dc := a.Col - b.Col
	if dc < 0 {
		dc = -dc
	}
	return max(dr, dc)
}

func sortCells(cells []Cell) []Cell {
	out := append([]Cell(nil), cells...)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Row != out[j].Row {
			return out[i].Row < out[j].Row
		}
		return out[i].Col < out[j].Col
	})
	return out
}

func TestGetRing_WalkOrder(t *testing.T) {
	g := mustGrid(t, 11, 11)
	got := g.GetRing(5, 5, 1).Cells()
	want := []Cell{
		{4, 4}, {4, 5}, // top, left to right
		{4, 6}, {5, 6}, // right, top to bottom
		{6, 6}, {6, 5}, // bottom, right to left
		{6, 4}, {5, 4}, // left, bottom to top
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("ring walk mismatch (-want +got):\n%s", diff)
	}
}

func TestGetRing_UnclippedIsFullPerimeter(t *testing.T) {
	g := mustGrid(t, 21, 21)
	center := Cell{10, 10}

	for d := 1; d <= 10; d++ {
		ring := g.GetRing(center.Row, center.Col, d)
		for s := Top; s <= Left; s++ {
			if !ring.InBounds(s) {
				t.Fatalf("d=%d: side %v unexpectedly clipped", d, s)
			}
		}

		var want []Cell
		for r := 0; r < 21; r++ {
			for c := 0; c < 21; c++ {
				if chebyshev(Cell{r, c}, center) == d {
					want = append(want, Cell{r, c})
				}
			}
		}
		got := ring.Cells()
		if len(got) != 8*d || ring.Len() != 8*d {
			t.Fatalf("d=%d: got %d cells (Len %d), want %d", d, len(got), ring.Len(), 8*d)
		}
		if diff := cmp.Diff(want, sortCells(got)); diff != "" {
			t.Fatalf("d=%d: perimeter mismatch (-want +got):\n%s", d, diff)
		}
	}
}

func TestGetRing_ClipPolicyDropsLeadingEdgeSides(t *testing.T) {
	g := mustGrid(t, 20, 20)
	ring := g.GetRing(10, 10, 10)

	if !ring.InBounds(Top) || ring.InBounds(Right) || ring.InBounds(Bottom) || !ring.InBounds(Left) {
		t.Fatalf("unexpected side flags: top=%v right=%v bottom=%v left=%v",
			ring.InBounds(Top), ring.InBounds(Right), ring.InBounds(Bottom), ring.InBounds(Left))
	}

	var want []Cell
	for x := 0; x < 19; x++ {
		want = append(want, Cell{0, x})
	}
	for y := 19; y > 0; y-- {
		want = append(want, Cell{y, 0})
	}
	if diff := cmp.Diff(want, ring.Cells()); diff != "" {
		t.Fatalf("clipped ring mismatch (-want +got):\n%s", diff)
	}
	if ring.Len() != 38 {
		t.Fatalf("Len = %d, want 38", ring.Len())
	}
}

func TestGetRing_CornerViewpoint(t *testing.T) {
	g := mustGrid(t, 5, 5)

	got := g.GetRing(0, 0, 1).Cells()
	want := []Cell{{0, 1}, {1, 1}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("corner ring mismatch (-want +got):\n%s", diff)
	}

	// past every edge nothing is yielded
	if n := len(g.GetRing(2, 2, 3).Cells()); n != 0 {
		t.Fatalf("expected empty ring beyond all edges, got %d cells", n)
	}
}

func TestGetRing_Restartable(t *testing.T) {
	g := mustGrid(t, 9, 13)
	ring := g.GetRing(3, 8, 4)

	first := ring.Cells()
	second := ring.AppendTo(nil)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("second walk differs (-first +second):\n%s", diff)
	}

	// early termination leaves the ring reusable
	n := 0
	for range ring.All() {
		n++
		if n == 3 {
			break
		}
	}
	if len(ring.Cells()) != len(first) {
		t.Fatalf("ring changed after partial walk")
	}
}

func TestGetRing_PropertiesEverywhere(t *testing.T) {
	g := mustGrid(t, 7, 9)
	for r := 0; r < 7; r++ {
		for c := 0; c < 9; c++ {
			center := Cell{r, c}
			maxD := max(r, c, 6-r, 8-c)
			for d := 1; d <= maxD; d++ {
				ring := g.GetRing(r, c, d)
				cells := ring.Cells()
				if len(cells) != ring.Len() {
					t.Fatalf("center %v d=%d: Len %d != walked %d", center, d, ring.Len(), len(cells))
				}
				seen := make(map[Cell]bool, len(cells))
				for _, cell := range cells {
					if !g.InBounds(cell.Row, cell.Col) {
						t.Fatalf("center %v d=%d: out of bounds %v", center, d, cell)
					}
					if got := chebyshev(cell, center); got != d {
						t.Fatalf("center %v d=%d: cell %v at distance %d", center, d, cell, got)
					}
					if seen[cell] {
						t.Fatalf("center %v d=%d: duplicate %v", center, d, cell)
					}
					seen[cell] = true
				}
			}
		}
	}
}

func TestSide_String(t *testing.T) {
	names := []string{Top.String(), Right.String(), Bottom.String(), Left.String(), Side(9).String()}
	want := []string{"top", "right", "bottom", "left", "unknown"}
	if diff := cmp.Diff(want, names); diff != "" {
		t.Fatalf("side names (-want +got):\n%s", diff)
	}
}
