package raster

import (
	"fmt"
	"io"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette/moreland"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/vismag/internal/grid"
)

// heatGrid adapts a grid to plotter.GridXYZ with row 0 drawn at the top.
type heatGrid struct {
	g *grid.Grid
}

func (h heatGrid) Dims() (c, r int)   { return h.g.Cols(), h.g.Rows() }
func (h heatGrid) Z(c, r int) float64 { return h.g.At(h.g.Rows()-1-r, c) }
func (h heatGrid) X(c int) float64    { return float64(c) }
func (h heatGrid) Y(r int) float64    { return float64(r) }

// WritePNG renders g as a heat map PNG of the given size in inches.
func WritePNG(w io.Writer, g *grid.Grid, title string, sizeInches float64) error {
	if sizeInches <= 0 {
		sizeInches = 8
	}
	cmap := moreland.ExtendedBlackBody()
	hm := plotter.NewHeatMap(heatGrid{g: g}, cmap.Palette(255))
	if hm.Max <= hm.Min {
		hm.Max = hm.Min + 1
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "column"
	p.Y.Label.Text = "row from south"
	p.Add(hm)

	size := vg.Length(sizeInches) * vg.Inch
	wt, err := p.WriterTo(size, size, "png")
	if err != nil {
		return fmt.Errorf("render heat map: %w", err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("write png: %w", err)
	}
	return nil
}
