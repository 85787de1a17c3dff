package raster

import (
	"fmt"
	"io"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/vismag/internal/grid"
)

// DefaultMaxHTMLCells bounds the number of cells sent to the browser.
const DefaultMaxHTMLCells = 40_000

var viridis = []string{"#440154", "#482777", "#3e4989", "#31688e", "#26828e", "#1f9e89", "#35b779", "#6ece58", "#b5de2b", "#fde725"}

// HTMLStride returns the sampling stride that keeps a rows x cols grid
// under maxCells rendered cells.
func HTMLStride(rows, cols, maxCells int) int {
	if maxCells <= 0 {
		maxCells = DefaultMaxHTMLCells
	}
	stride := 1
	for (rows/stride+1)*(cols/stride+1) > maxCells && stride < max(rows, cols) {
		stride++
	}
	return stride
}

// WriteHTML renders g as an interactive heat map page. Large grids are
// sampled every stride cells; each rendered cell shows the value at its
// top-left source cell.
func WriteHTML(w io.Writer, g *grid.Grid, title string, maxCells int) error {
	stride := HTMLStride(g.Rows(), g.Cols(), maxCells)

	var xs, ys []string
	var rows []int
	for c := 0; c < g.Cols(); c += stride {
		xs = append(xs, strconv.Itoa(c))
	}
	// category axes run bottom-up, so the southernmost sampled row comes first
	for r := 0; r < g.Rows(); r += stride {
		rows = append([]int{r}, rows...)
	}
	for _, r := range rows {
		ys = append(ys, strconv.Itoa(r))
	}

	data := make([]opts.HeatMapData, 0, len(xs)*len(ys))
	peak := 0.0
	for yi, r := range rows {
		for xi := range xs {
			v := g.At(r, xi*stride)
			peak = max(peak, v)
			data = append(data, opts.HeatMapData{Value: [3]interface{}{xi, yi, v}})
		}
	}
	if peak == 0 {
		peak = 1
	}

	hm := charts.NewHeatMap()
	hm.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: title, Theme: "dark", Width: "900px", Height: "900px"}),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: fmt.Sprintf("%dx%d cells stride=%d", g.Rows(), g.Cols(), stride)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Type: "category", Data: xs, Name: "col"}),
		charts.WithYAxisOpts(opts.YAxis{Type: "category", Data: ys, Name: "row"}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show:       opts.Bool(true),
			Calculable: opts.Bool(true),
			Min:        0,
			Max:        float32(peak),
			InRange:    &opts.VisualMapInRange{Color: viridis},
		}),
	)
	hm.AddSeries("magnitude", data)

	if err := hm.Render(w); err != nil {
		return fmt.Errorf("render html: %w", err)
	}
	return nil
}
