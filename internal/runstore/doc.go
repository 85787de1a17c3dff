// Package runstore keeps a sqlite history of visual magnitude runs. Each
// record carries the run parameters, counters, summary statistics and the
// zstd compressed output grid so a run can be re-exported later.
package runstore
