package raster

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/banshee-data/vismag/internal/grid"
	"github.com/banshee-data/vismag/internal/projection"
)

// OutputNoData is the NODATA value written with results. A cell that no
// viewpoint sees has magnitude 0 and is therefore NODATA.
const OutputNoData = 0.0

// MaxASCIICells bounds the cell count a header may declare.
const MaxASCIICells = 1 << 28

// ErrMalformedGrid reports an ASCII grid that cannot be parsed.
var ErrMalformedGrid = errors.New("malformed ASCII grid")

// DEM is an elevation grid with its georeference.
type DEM struct {
	Elevation *grid.Grid
	Georef    projection.Georef
	// NoDataCells counts cells that carried the NODATA value and were
	// replaced by 0.
	NoDataCells int
}

type header struct {
	ncols, nrows     int
	xll, yll         float64
	xCenter, yCenter bool
	cellSize         float64
	noData           float64
	hasNoData        bool
	seen             map[string]bool
}

// ReadASCIIGrid parses an ESRI ASCII grid. Both corner and center
// registration are accepted; the returned georeference is always corner
// based.
func ReadASCIIGrid(r io.Reader) (*DEM, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	sc.Split(bufio.ScanWords)

	h := header{seen: make(map[string]bool)}
	var pending string
	for sc.Scan() {
		key := strings.ToLower(sc.Text())
		if !isHeaderKey(key) {
			pending = sc.Text()
			break
		}
		if !sc.Scan() {
			return nil, fmt.Errorf("%w: header %q has no value", ErrMalformedGrid, key)
		}
		if err := h.set(key, sc.Text()); err != nil {
			return nil, err
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read grid: %w", err)
	}
	if err := h.validate(); err != nil {
		return nil, err
	}

	data := make([]float64, 0, h.nrows*h.ncols)
	noData := 0
	next := func() (string, bool) {
		if pending != "" {
			tok := pending
			pending = ""
			return tok, true
		}
		if sc.Scan() {
			return sc.Text(), true
		}
		return "", false
	}
	for len(data) < h.nrows*h.ncols {
		tok, ok := next()
		if !ok {
			if err := sc.Err(); err != nil {
				return nil, fmt.Errorf("read grid: %w", err)
			}
			return nil, fmt.Errorf("%w: expected %d values, got %d", ErrMalformedGrid, h.nrows*h.ncols, len(data))
		}
		v, err := strconv.ParseFloat(tok, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: value %d: %v", ErrMalformedGrid, len(data), err)
		}
		if h.hasNoData && v == h.noData {
			v = 0
			noData++
		}
		data = append(data, v)
	}

	elev, err := grid.ImportElevation(h.nrows, h.ncols, h.cellSize, data)
	if err != nil {
		return nil, err
	}
	ref := projection.Georef{XLL: h.xll, YLL: h.yll, CellSize: h.cellSize, Rows: h.nrows, Cols: h.ncols}
	if h.xCenter {
		ref.XLL -= h.cellSize / 2
	}
	if h.yCenter {
		ref.YLL -= h.cellSize / 2
	}
	return &DEM{Elevation: elev, Georef: ref, NoDataCells: noData}, nil
}

func isHeaderKey(k string) bool {
	switch k {
	case "ncols", "nrows", "xllcorner", "xllcenter", "yllcorner", "yllcenter", "cellsize", "nodata_value":
		return true
	}
	return false
}

func (h *header) set(key, val string) error {
	if h.seen[key] {
		return fmt.Errorf("%w: duplicate header %q", ErrMalformedGrid, key)
	}
	h.seen[key] = true

	var err error
	switch key {
	case "ncols":
		h.ncols, err = strconv.Atoi(val)
	case "nrows":
		h.nrows, err = strconv.Atoi(val)
	case "xllcorner", "xllcenter":
		h.xll, err = strconv.ParseFloat(val, 64)
		h.xCenter = key == "xllcenter"
	case "yllcorner", "yllcenter":
		h.yll, err = strconv.ParseFloat(val, 64)
		h.yCenter = key == "yllcenter"
	case "cellsize":
		h.cellSize, err = strconv.ParseFloat(val, 64)
	case "nodata_value":
		h.noData, err = strconv.ParseFloat(val, 64)
		h.hasNoData = true
	}
	if err != nil {
		return fmt.Errorf("%w: header %s: %v", ErrMalformedGrid, key, err)
	}
	return nil
}

func (h *header) validate() error {
	for _, k := range []string{"ncols", "nrows", "cellsize"} {
		if !h.seen[k] {
			return fmt.Errorf("%w: missing %s", ErrMalformedGrid, k)
		}
	}
	if !h.seen["xllcorner"] && !h.seen["xllcenter"] {
		return fmt.Errorf("%w: missing xllcorner", ErrMalformedGrid)
	}
	if !h.seen["yllcorner"] && !h.seen["yllcenter"] {
		return fmt.Errorf("%w: missing yllcorner", ErrMalformedGrid)
	}
	if h.seen["xllcorner"] && h.seen["xllcenter"] || h.seen["yllcorner"] && h.seen["yllcenter"] {
		return fmt.Errorf("%w: both corner and center registration given", ErrMalformedGrid)
	}
	if h.ncols <= 0 || h.nrows <= 0 || !(h.cellSize > 0) {
		return fmt.Errorf("%w: %dx%d cells of size %v", ErrMalformedGrid, h.nrows, h.ncols, h.cellSize)
	}
	if h.ncols > MaxASCIICells/h.nrows {
		return fmt.Errorf("%w: %dx%d cells exceeds the limit of %d", ErrMalformedGrid, h.nrows, h.ncols, MaxASCIICells)
	}
	return nil
}

// WriteASCIIGrid writes g as an ESRI ASCII grid with NODATA 0.
func WriteASCIIGrid(w io.Writer, g *grid.Grid, ref projection.Georef) error {
	if g.Rows() != ref.Rows || g.Cols() != ref.Cols {
		return fmt.Errorf("grid is %dx%d but georeference is %dx%d", g.Rows(), g.Cols(), ref.Rows, ref.Cols)
	}
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "ncols %d\nnrows %d\n", g.Cols(), g.Rows())
	fmt.Fprintf(bw, "xllcorner %s\nyllcorner %s\n", formatFloat(ref.XLL), formatFloat(ref.YLL))
	fmt.Fprintf(bw, "cellsize %s\nNODATA_value %s\n", formatFloat(ref.CellSize), formatFloat(OutputNoData))

	buf := make([]byte, 0, 32)
	for r := 0; r < g.Rows(); r++ {
		for c := 0; c < g.Cols(); c++ {
			if c > 0 {
				bw.WriteByte(' ')
			}
			buf = strconv.AppendFloat(buf[:0], g.At(r, c), 'g', -1, 64)
			bw.Write(buf)
		}
		bw.WriteByte('\n')
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("write grid: %w", err)
	}
	return nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
