package viewshed

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/banshee-data/vismag/internal/grid"
)

// MaxDistance is the ring distance needed from (row, col) to reach the
// farthest edge of a rows x cols grid.
func MaxDistance(row, col, rows, cols int) int {
	return max(row, col, rows-1-row, cols-1-col)
}

// counters is shared by every worker of one scheduler run.
type counters struct {
	viewpoints    atomic.Int64
	visible       atomic.Int64
	contributions atomic.Int64
}

// ViewpointResult summarises one processed viewpoint.
type ViewpointResult struct {
	Rings         int
	Visible       int
	Contributions int
	Elapsed       time.Duration
}

// Worker runs the ring sweep for one viewpoint at a time. It owns a private
// LOS scratch grid and evaluator, so workers never share mutable state.
type Worker struct {
	id     int
	elev   *grid.Grid
	params Params
	math   *Math
	los    *grid.Grid
	ring   []grid.Cell
	stats  *counters
}

// NewWorker creates a worker over a read-only elevation grid.
func NewWorker(id int, elev *grid.Grid, params Params) *Worker {
	return &Worker{
		id:     id,
		elev:   elev,
		params: params,
		math:   NewMath(elev, params.WindTurbines),
		los:    grid.NewLike(elev),
	}
}

// Process sweeps every ring around vp and hands each ring's contributions
// to emit. The batch slice is owned by the receiver once emitted.
func (w *Worker) Process(ctx context.Context, vp Viewpoint, emit func([]Contribution) error) (ViewpointResult, error) {
	var res ViewpointResult
	if !w.elev.InBounds(vp.Row, vp.Col) {
		return res, fmt.Errorf("viewpoint %v: %w", vp, ErrViewpointOutOfBounds)
	}
	start := time.Now()

	vp.Elevation = w.elev.At(vp.Row, vp.Col) + vp.ElevationOffset
	weight := 1.0
	if w.params.WeightedViewpoints {
		weight = vp.Weight
	}
	w.math.SetViewpoint(vp)
	w.los.Fill(UndefinedLOS)

	maxDist := MaxDistance(vp.Row, vp.Col, w.elev.Rows(), w.elev.Cols())
	for d := 1 + w.params.OmittedRings; d <= maxDist; d++ {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		w.ring = w.elev.GetRing(vp.Row, vp.Col, d).AppendTo(w.ring[:0])
		var batch []Contribution
		visible := 0
		for _, c := range w.ring {
			ok, err := w.math.IsCellVisible(w.los, c.Row, c.Col)
			if err != nil {
				opsf("worker %d: viewpoint %v ring %d: %v", w.id, vp, d, err)
				return res, err
			}
			if !ok {
				continue
			}
			visible++
			if mag := w.math.VisualMagnitude(c.Row, c.Col); mag > 0 {
				batch = append(batch, Contribution{Row: c.Row, Col: c.Col, Magnitude: mag, Weight: weight})
			}
		}

		res.Rings++
		res.Visible += visible
		res.Contributions += len(batch)
		tracef("worker %d: viewpoint %v ring %d cells=%d visible=%d emitted=%d",
			w.id, vp, d, len(w.ring), visible, len(batch))
		if len(batch) > 0 {
			if err := emit(batch); err != nil {
				return res, err
			}
		}
	}

	res.Elapsed = time.Since(start)
	diagf("worker %d: viewpoint %v done in %v: rings=%d visible=%d contributions=%d",
		w.id, vp, res.Elapsed, res.Rings, res.Visible, res.Contributions)
	return res, nil
}

// Run takes viewpoints from queue until it is closed and empty, sending
// contribution batches to sink. It returns early on cancellation or on the
// first processing error.
func (w *Worker) Run(ctx context.Context, queue <-chan Viewpoint, sink chan<- []Contribution) error {
	emit := func(batch []Contribution) error {
		select {
		case sink <- batch:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case vp, ok := <-queue:
			if !ok {
				return nil
			}
			res, err := w.Process(ctx, vp, emit)
			if err != nil {
				return err
			}
			if w.stats != nil {
				w.stats.viewpoints.Add(1)
				w.stats.visible.Add(int64(res.Visible))
				w.stats.contributions.Add(int64(res.Contributions))
			}
		}
	}
}
