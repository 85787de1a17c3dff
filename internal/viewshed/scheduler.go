package viewshed

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/banshee-data/vismag/internal/grid"
)

// Stats reports what a scheduler run processed.
type Stats struct {
	Workers       int
	Viewpoints    int
	Processed     int64
	VisibleCells  int64
	Contributions int64
	Merged        int64
	Elapsed       time.Duration
}

// Scheduler distributes viewpoints over a pool of workers and closes the
// aggregator once the last worker exits.
type Scheduler struct {
	params Params

	mu      sync.Mutex
	pending []Viewpoint
	started bool

	agg     *Aggregator
	group   *errgroup.Group
	live    atomic.Int32
	stats   counters
	startAt time.Time

	waitOnce sync.Once
	err      error
	elapsed  time.Duration
}

// NewScheduler creates a scheduler with immutable run parameters.
func NewScheduler(params Params) (*Scheduler, error) {
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("invalid params: %w", err)
	}
	return &Scheduler{params: params}, nil
}

// Enqueue adds a viewpoint. Viewpoints can only be added before Start.
func (s *Scheduler) Enqueue(vps ...Viewpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return ErrAlreadyStarted
	}
	s.pending = append(s.pending, vps...)
	return nil
}

// Start validates the queued viewpoints against elev and launches the
// workers and the aggregator. It does not block.
func (s *Scheduler) Start(ctx context.Context, elev *grid.Grid) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return ErrAlreadyStarted
	}
	for _, vp := range s.pending {
		if !elev.InBounds(vp.Row, vp.Col) {
			return fmt.Errorf("viewpoint %v in %dx%d grid: %w", vp, elev.Rows(), elev.Cols(), ErrViewpointOutOfBounds)
		}
	}
	s.started = true
	s.startAt = time.Now()

	queue := make(chan Viewpoint, len(s.pending))
	for _, vp := range s.pending {
		queue <- vp
	}
	close(queue)

	s.agg = NewAggregator(elev, s.params.queueDepth())
	s.agg.Start()

	g, gctx := errgroup.WithContext(ctx)
	s.group = g
	s.live.Store(int32(s.params.Workers))
	diagf("starting %d workers for %d viewpoints on %dx%d grid",
		s.params.Workers, len(s.pending), elev.Rows(), elev.Cols())

	for i := 0; i < s.params.Workers; i++ {
		w := NewWorker(i, elev, s.params)
		w.stats = &s.stats
		g.Go(func() error {
			defer s.workerExited()
			return w.Run(gctx, queue, s.agg.Sink())
		})
	}
	return nil
}

// workerExited stops the aggregator when the last worker leaves. Every send
// of the exiting worker has completed by then, so nothing is lost.
func (s *Scheduler) workerExited() {
	if s.live.Add(-1) == 0 {
		s.elapsed = time.Since(s.startAt)
		s.agg.Stop()
	}
}

// Wait blocks until every queued contribution has been merged and returns
// the first worker error, including context cancellation.
func (s *Scheduler) Wait() error {
	s.mu.Lock()
	started := s.started
	s.mu.Unlock()
	if !started {
		return ErrNotStarted
	}

	<-s.agg.Done()
	s.waitOnce.Do(func() {
		s.err = s.group.Wait()
		if s.err != nil {
			opsf("run failed after %v: %v", s.elapsed, s.err)
		} else {
			diagf("run finished in %v: %d viewpoints, %d contributions merged",
				s.elapsed, s.stats.viewpoints.Load(), s.agg.Merged())
		}
	})
	return s.err
}

// Result returns the output grid of a successful run. A failed run yields
// no grid.
func (s *Scheduler) Result() (*grid.Grid, error) {
	s.mu.Lock()
	started := s.started
	s.mu.Unlock()
	if !started {
		return nil, ErrNotStarted
	}
	out, err := s.agg.Result()
	if err != nil {
		return nil, err
	}
	if err := s.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Stats returns run counters. Merged and Elapsed are set once Wait returns.
func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	st := Stats{Workers: s.params.Workers, Viewpoints: len(s.pending)}
	agg := s.agg
	s.mu.Unlock()
	st.Processed = s.stats.viewpoints.Load()
	st.VisibleCells = s.stats.visible.Load()
	st.Contributions = s.stats.contributions.Load()
	if agg != nil {
		select {
		case <-agg.Done():
			st.Merged = agg.Merged()
			st.Elapsed = s.elapsed
		default:
		}
	}
	return st
}

// Run computes the cumulative visual magnitude of vps over elev and blocks
// until it is done.
func Run(ctx context.Context, elev *grid.Grid, vps []Viewpoint, params Params) (*grid.Grid, Stats, error) {
	s, err := NewScheduler(params)
	if err != nil {
		return nil, Stats{}, err
	}
	if err := s.Enqueue(vps...); err != nil {
		return nil, Stats{}, err
	}
	if err := s.Start(ctx, elev); err != nil {
		return nil, Stats{}, err
	}
	if err := s.Wait(); err != nil {
		return nil, s.Stats(), err
	}
	out, err := s.Result()
	return out, s.Stats(), err
}
