// Package grid owns the raster model used by the visibility engine.
//
// Responsibilities: a fixed-shape float64 grid with a square cell size
// (elevation source, LOS scratch space and output accumulator) and the
// expanding-ring coordinate generator used to sweep outward from a
// viewpoint.
// Key types: Grid, Ring, Cell.
//
// Dependency rule: grid depends on nothing else in this module. No I/O
// or format handling belongs here; see internal/raster.
package grid
