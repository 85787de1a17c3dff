// Package analysis runs one visual magnitude computation end to end: it
// reads the DEM and viewpoint layer, drives the viewshed scheduler, writes
// the output rasters and records the run.
package analysis
