// Package viewshed computes cumulative visual magnitude over an elevation
// grid.
//
// Responsibilities: per-viewpoint incremental line-of-sight sweeps over
// expanding rings, curvature and refraction corrected viewing geometry,
// surface-normal weighting of visible cells, and the worker pool plus
// single-writer aggregator that merges every viewpoint into one output
// grid.
// Key types: Math, Worker, Aggregator, Scheduler, Viewpoint, Contribution,
// Params.
//
// Dependency rule: viewshed may depend on internal/grid only. File
// formats, projection of vector layers and persistence live elsewhere.
package viewshed
