package viewshed

import (
	"sync"

	"github.com/banshee-data/vismag/internal/grid"
)

// Aggregator is the single writer of the output grid. Workers send batches
// of contributions to Sink; one goroutine drains them into the grid.
type Aggregator struct {
	out  *grid.Grid
	in   chan []Contribution
	done chan struct{}

	startOnce sync.Once
	stopOnce  sync.Once

	// merged is written only by the draining goroutine (or by Merge
	// callers when the aggregator is not started) and read after Done.
	merged int64
}

// NewAggregator creates an aggregator whose output grid has the shape and
// cell size of like. buffer is the channel capacity in batches.
func NewAggregator(like *grid.Grid, buffer int) *Aggregator {
	return &Aggregator{
		out:  grid.NewLike(like),
		in:   make(chan []Contribution, buffer),
		done: make(chan struct{}),
	}
}

// Start launches the draining goroutine. Calling it more than once has no
// effect.
func (a *Aggregator) Start() {
	a.startOnce.Do(func() {
		go a.listen()
	})
}

func (a *Aggregator) listen() {
	defer close(a.done)
	for batch := range a.in {
		a.Merge(batch)
	}
	diagf("aggregator drained: %d contributions merged", a.merged)
}

// Sink is the send side of the contribution channel.
func (a *Aggregator) Sink() chan<- []Contribution { return a.in }

// Add queues one batch. It blocks while the channel is full and must not be
// called after Stop.
func (a *Aggregator) Add(batch []Contribution) { a.in <- batch }

// Stop closes the contribution channel. Batches already queued are still
// merged before Done is closed. Safe to call more than once.
func (a *Aggregator) Stop() {
	a.stopOnce.Do(func() { close(a.in) })
}

// Done is closed once the channel has been drained after Stop.
func (a *Aggregator) Done() <-chan struct{} { return a.done }

// Merge adds a batch into the output grid directly. It must only be used
// from the draining goroutine or when the aggregator was never started.
func (a *Aggregator) Merge(batch []Contribution) {
	for _, c := range batch {
		a.out.Add(c.Row, c.Col, c.Value())
	}
	a.merged += int64(len(batch))
}

// Merged returns the number of contributions merged so far. Only reliable
// after Done is closed.
func (a *Aggregator) Merged() int64 { return a.merged }

// Result returns the output grid once the aggregator has finished.
func (a *Aggregator) Result() (*grid.Grid, error) {
	select {
	case <-a.done:
		return a.out, nil
	default:
		return nil, ErrNotFinished
	}
}

// Grid returns the output grid regardless of completion. Intended for
// synchronous Merge use.
func (a *Aggregator) Grid() *grid.Grid { return a.out }
