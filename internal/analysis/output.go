package analysis

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/banshee-data/vismag/internal/grid"
	"github.com/banshee-data/vismag/internal/projection"
	"github.com/banshee-data/vismag/internal/raster"
)

// Format is an output raster encoding.
type Format string

const (
	FormatASCII Format = "asc"
	FormatPNG   Format = "png"
	FormatHTML  Format = "html"
	FormatTIFF  Format = "tiff"
)

// pngSizeInches is the edge length of rendered PNG previews.
const pngSizeInches = 8

// FormatForPath picks the encoding from a file extension.
func FormatForPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".asc", ".txt":
		return FormatASCII, nil
	case ".png":
		return FormatPNG, nil
	case ".html", ".htm":
		return FormatHTML, nil
	case ".tif", ".tiff":
		return FormatTIFF, nil
	}
	return "", fmt.Errorf("unsupported output extension %q", filepath.Ext(path))
}

// Extension returns the file extension written for f.
func (f Format) Extension() string {
	if f == FormatTIFF {
		return ".tif"
	}
	return "." + string(f)
}

func writeGrid(w io.Writer, f Format, g *grid.Grid, ref projection.Georef, title string) error {
	switch f {
	case FormatASCII:
		return raster.WriteASCIIGrid(w, g, ref)
	case FormatPNG:
		return raster.WritePNG(w, g, title, pngSizeInches)
	case FormatHTML:
		return raster.WriteHTML(w, g, title, raster.DefaultMaxHTMLCells)
	case FormatTIFF:
		return raster.WriteTIFF(w, g)
	}
	return fmt.Errorf("unknown output format %q", f)
}
