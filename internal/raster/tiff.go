package raster

import (
	"fmt"
	"image"
	"image/color"
	"io"
	"math"

	"golang.org/x/image/tiff"

	"github.com/banshee-data/vismag/internal/grid"
)

// WriteTIFF writes a 16-bit grayscale preview of g, scaled so the grid
// maximum is white. Negative values clamp to black.
func WriteTIFF(w io.Writer, g *grid.Grid) error {
	img := image.NewGray16(image.Rect(0, 0, g.Cols(), g.Rows()))
	peak := g.Max()
	for r := 0; r < g.Rows(); r++ {
		for c := 0; c < g.Cols(); c++ {
			var level uint16
			if peak > 0 {
				v := math.Max(0, g.At(r, c)) / peak
				level = uint16(math.Round(v * math.MaxUint16))
			}
			img.SetGray16(c, r, color.Gray16{Y: level})
		}
	}
	if err := tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate}); err != nil {
		return fmt.Errorf("encode tiff: %w", err)
	}
	return nil
}
