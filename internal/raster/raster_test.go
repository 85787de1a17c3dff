package raster

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/tiff"

	"github.com/banshee-data/vismag/internal/grid"
	"github.com/banshee-data/vismag/internal/projection"
	"github.com/banshee-data/vismag/internal/testutil"
)

func TestReadASCIIGrid(t *testing.T) {
	doc := testutil.ASCIIGrid(500, 1000, 25, [][]string{
		{"1", "2", "3"},
		{"4", "5.5", "6"},
	})
	dem, err := ReadASCIIGrid(strings.NewReader(doc))
	require.NoError(t, err)

	assert.Equal(t, projection.Georef{XLL: 500, YLL: 1000, CellSize: 25, Rows: 2, Cols: 3}, dem.Georef)
	assert.Equal(t, 5.5, dem.Elevation.At(1, 1))
	assert.Equal(t, 3.0, dem.Elevation.At(0, 2))
	assert.Equal(t, 25.0, dem.Elevation.CellSize())
	assert.Equal(t, 0, dem.NoDataCells)
}

func TestReadASCIIGrid_CenterRegistrationAndNoData(t *testing.T) {
	doc := `NCOLS 2
NROWS 2
XLLCENTER 105
YLLCENTER 205
CELLSIZE 10
NODATA_VALUE -9999
-9999 7
8 -9999
`
	dem, err := ReadASCIIGrid(strings.NewReader(doc))
	require.NoError(t, err)

	assert.Equal(t, 100.0, dem.Georef.XLL)
	assert.Equal(t, 200.0, dem.Georef.YLL)
	assert.Equal(t, 2, dem.NoDataCells)
	assert.Equal(t, 0.0, dem.Elevation.At(0, 0))
	assert.Equal(t, 0.0, dem.Elevation.At(1, 1))
	assert.Equal(t, 8.0, dem.Elevation.At(1, 0))
}

func TestReadASCIIGrid_Malformed(t *testing.T) {
	cases := map[string]string{
		"missing nrows":      "ncols 2\nxllcorner 0\nyllcorner 0\ncellsize 1\n1 2\n",
		"short data":         "ncols 2\nnrows 2\nxllcorner 0\nyllcorner 0\ncellsize 1\n1 2 3\n",
		"bad value":          "ncols 1\nnrows 1\nxllcorner 0\nyllcorner 0\ncellsize 1\nx\n",
		"zero cell size":     "ncols 1\nnrows 1\nxllcorner 0\nyllcorner 0\ncellsize 0\n1\n",
		"duplicate header":   "ncols 1\nncols 1\nnrows 1\nxllcorner 0\nyllcorner 0\ncellsize 1\n1\n",
		"mixed registration": "ncols 1\nnrows 1\nxllcorner 0\nxllcenter 0\nyllcorner 0\ncellsize 1\n1\n",
		"bad header value":   "ncols two\nnrows 1\nxllcorner 0\nyllcorner 0\ncellsize 1\n1\n",
		"empty":              "",
		"overflowing size":   "ncols 10000000000\nnrows 10000000000\nxllcorner 0\nyllcorner 0\ncellsize 1\n1\n",
		"oversized":          "ncols 20000\nnrows 20000\nxllcorner 0\nyllcorner 0\ncellsize 1\n1\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ReadASCIIGrid(strings.NewReader(doc))
			assert.True(t, errors.Is(err, ErrMalformedGrid), "got %v", err)
		})
	}
}

func TestWriteASCIIGrid_RoundTrip(t *testing.T) {
	g, err := grid.ImportElevation(2, 3, 5, []float64{0, 1.25, 2, 3e-7, 0, 100})
	require.NoError(t, err)
	ref := projection.Georef{XLL: 10.5, YLL: -20, CellSize: 5, Rows: 2, Cols: 3}

	var buf bytes.Buffer
	require.NoError(t, WriteASCIIGrid(&buf, g, ref))
	assert.Contains(t, buf.String(), "NODATA_value 0\n")

	back, err := ReadASCIIGrid(&buf)
	require.NoError(t, err)
	assert.Equal(t, ref, back.Georef)
	assert.True(t, grid.EqualApprox(g, back.Elevation, 0))
	// zero magnitude cells come back as NODATA
	assert.Equal(t, 2, back.NoDataCells)
}

func TestWriteASCIIGrid_ShapeMismatch(t *testing.T) {
	g, err := grid.New(2, 2, 1)
	require.NoError(t, err)
	err = WriteASCIIGrid(&bytes.Buffer{}, g, projection.Georef{CellSize: 1, Rows: 3, Cols: 2})
	assert.Error(t, err)
}

func sample(t *testing.T) *grid.Grid {
	t.Helper()
	g, err := grid.New(6, 8, 10)
	require.NoError(t, err)
	for r := 0; r < 6; r++ {
		for c := 0; c < 8; c++ {
			g.Set(r, c, float64(r*c))
		}
	}
	return g
}

func TestWritePNG(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WritePNG(&buf, sample(t), "magnitude", 2))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("\x89PNG\r\n\x1a\n")), "not a PNG")

	// a constant grid still renders
	buf.Reset()
	flat, err := grid.New(3, 3, 1)
	require.NoError(t, err)
	require.NoError(t, WritePNG(&buf, flat, "empty", 0))
	assert.NotZero(t, buf.Len())
}

func TestWriteHTML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteHTML(&buf, sample(t), "Run 42", 0))
	out := buf.String()
	assert.Contains(t, out, "Run 42")
	assert.Contains(t, out, "#fde725")
}

func TestHTMLStride(t *testing.T) {
	assert.Equal(t, 1, HTMLStride(10, 10, 1000))
	s := HTMLStride(1000, 1000, 10_000)
	assert.LessOrEqual(t, (1000/s+1)*(1000/s+1), 10_000)
	assert.Greater(t, s, 1)
}

func TestWriteTIFF(t *testing.T) {
	g := sample(t)
	var buf bytes.Buffer
	require.NoError(t, WriteTIFF(&buf, g))

	img, err := tiff.Decode(&buf)
	require.NoError(t, err)
	b := img.Bounds()
	assert.Equal(t, 8, b.Dx())
	assert.Equal(t, 6, b.Dy())

	peak, _, _, _ := img.At(7, 5).RGBA()
	zero, _, _, _ := img.At(0, 0).RGBA()
	assert.Equal(t, uint32(0xffff), peak)
	assert.Equal(t, uint32(0), zero)
}
