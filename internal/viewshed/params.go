package viewshed

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownSector reports an orientation code outside the 16-sector
	// table. It indicates a logic defect and fails the whole run.
	ErrUnknownSector = errors.New("unknown orientation sector")

	// ErrViewpointOutOfBounds is returned when a viewpoint does not address
	// a cell of the elevation grid.
	ErrViewpointOutOfBounds = errors.New("viewpoint outside elevation grid")

	// ErrAlreadyStarted is returned when work is added to, or started on, a
	// scheduler that is already running.
	ErrAlreadyStarted = errors.New("scheduler already started")

	// ErrNotStarted is returned when waiting on a scheduler that was never
	// started.
	ErrNotStarted = errors.New("scheduler not started")

	// ErrNotFinished is returned when a result is requested before the
	// aggregator has drained.
	ErrNotFinished = errors.New("computation not finished")
)

// Params holds the run parameters consumed by the engine. It is passed by
// value into the scheduler and every worker; nothing reads global state.
type Params struct {
	// Workers is the number of compute goroutines (>= 1).
	Workers int
	// OmittedRings skips the first N rings around each viewpoint.
	OmittedRings int
	// WindTurbines drops surface-normal weighting: magnitude becomes the
	// pure inverse-square term.
	WindTurbines bool
	// WeightedViewpoints multiplies each contribution by the viewpoint
	// weight. When false every viewpoint weighs 1.
	WeightedViewpoints bool
	// QueueDepth is the buffer size of the contribution channel, in
	// batches. Zero selects a default.
	QueueDepth int
}

// DefaultParams returns the parameters used when nothing is configured.
func DefaultParams() Params {
	return Params{Workers: 4}
}

// Validate checks that the parameters are usable.
func (p Params) Validate() error {
	if p.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", p.Workers)
	}
	if p.OmittedRings < 0 {
		return fmt.Errorf("omitted rings must be non-negative, got %d", p.OmittedRings)
	}
	if p.QueueDepth < 0 {
		return fmt.Errorf("queue depth must be non-negative, got %d", p.QueueDepth)
	}
	return nil
}

func (p Params) queueDepth() int {
	if p.QueueDepth > 0 {
		return p.QueueDepth
	}
	return 64 * p.Workers
}
