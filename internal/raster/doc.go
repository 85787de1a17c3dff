// Package raster reads elevation grids and writes visual magnitude results.
//
// The interchange format is the ESRI ASCII grid. Results can additionally
// be rendered as a PNG heat map, an interactive HTML heat map and a 16-bit
// grayscale TIFF preview.
package raster
