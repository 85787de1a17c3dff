package viewshed

import (
	"context"
	"errors"
	"math/rand/v2"
	"testing"

	"github.com/banshee-data/vismag/internal/grid"
)

func fiveViewpoints() []Viewpoint {
	return []Viewpoint{
		{Row: 2, Col: 3, ElevationOffset: 2, Weight: 1},
		{Row: 15, Col: 15, ElevationOffset: 10, Weight: 1},
		{Row: 29, Col: 0, ElevationOffset: 1.5, Weight: 1},
		{Row: 7, Col: 22, ElevationOffset: 30, Weight: 1},
		{Row: 20, Col: 9, ElevationOffset: 5, Weight: 1},
	}
}

func TestRun_WorkerCountDoesNotChangeResult(t *testing.T) {
	elev := hillyGrid(t, 30, 30)
	vps := fiveViewpoints()

	serial, serialStats, err := Run(context.Background(), elev, vps, Params{Workers: 1})
	if err != nil {
		t.Fatalf("Run with 1 worker: %v", err)
	}
	pooled, pooledStats, err := Run(context.Background(), elev, vps, Params{Workers: 4})
	if err != nil {
		t.Fatalf("Run with 4 workers: %v", err)
	}

	if !grid.EqualApprox(serial, pooled, 1e-9) {
		t.Fatalf("1-worker and 4-worker grids differ")
	}
	if serial.Sum() <= 0 {
		t.Fatalf("expected a non-empty result")
	}
	if serialStats.Processed != 5 || pooledStats.Processed != 5 {
		t.Fatalf("processed = %d / %d, want 5", serialStats.Processed, pooledStats.Processed)
	}
	if pooledStats.Merged != pooledStats.Contributions {
		t.Fatalf("merged %d of %d contributions", pooledStats.Merged, pooledStats.Contributions)
	}
	if serialStats.Contributions != pooledStats.Contributions {
		t.Fatalf("contribution counts differ: %d vs %d", serialStats.Contributions, pooledStats.Contributions)
	}
}

func TestRun_SumOfSingleViewpointRuns(t *testing.T) {
	elev := hillyGrid(t, 30, 30)
	vps := fiveViewpoints()

	want := grid.NewLike(elev)
	for _, vp := range vps {
		one, _, err := Run(context.Background(), elev, []Viewpoint{vp}, Params{Workers: 2})
		if err != nil {
			t.Fatalf("Run(%v): %v", vp, err)
		}
		for r := 0; r < one.Rows(); r++ {
			for c := 0; c < one.Cols(); c++ {
				want.Add(r, c, one.At(r, c))
			}
		}
	}

	got, _, err := Run(context.Background(), elev, vps, Params{Workers: 3})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !grid.EqualApprox(want, got, 1e-9) {
		t.Fatalf("combined run differs from the sum of single runs")
	}
}

func TestRun_MoreWorkersThanViewpoints(t *testing.T) {
	elev := flatGrid(t, 10, 10, 1)
	out, stats, err := Run(context.Background(), elev, []Viewpoint{NewViewpoint(4, 4, 2)}, Params{Workers: 8})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stats.Processed != 1 || out.Sum() <= 0 {
		t.Fatalf("unexpected stats %+v sum %v", stats, out.Sum())
	}
}

func TestRun_NoViewpoints(t *testing.T) {
	elev := flatGrid(t, 4, 4, 1)
	out, _, err := Run(context.Background(), elev, nil, DefaultParams())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.Sum() != 0 || out.Rows() != 4 || out.Cols() != 4 {
		t.Fatalf("expected empty 4x4 grid")
	}
}

func TestRun_CancelledContext(t *testing.T) {
	elev := hillyGrid(t, 30, 30)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out, _, err := Run(ctx, elev, fiveViewpoints(), Params{Workers: 2})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if out != nil {
		t.Fatalf("cancelled run returned a grid")
	}
}

func TestRun_ViewpointOutOfBounds(t *testing.T) {
	elev := flatGrid(t, 10, 10, 1)
	_, _, err := Run(context.Background(), elev, []Viewpoint{NewViewpoint(3, 3, 1), NewViewpoint(10, 2, 1)}, DefaultParams())
	if !errors.Is(err, ErrViewpointOutOfBounds) {
		t.Fatalf("expected ErrViewpointOutOfBounds, got %v", err)
	}
}

func TestRun_InvalidParams(t *testing.T) {
	elev := flatGrid(t, 10, 10, 1)
	for _, p := range []Params{{Workers: 0}, {Workers: 1, OmittedRings: -1}, {Workers: 1, QueueDepth: -3}} {
		if _, _, err := Run(context.Background(), elev, nil, p); err == nil {
			t.Fatalf("expected error for %+v", p)
		}
	}
}

func TestScheduler_Lifecycle(t *testing.T) {
	elev := flatGrid(t, 12, 12, 1)
	s, err := NewScheduler(Params{Workers: 2})
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}

	if err := s.Wait(); !errors.Is(err, ErrNotStarted) {
		t.Fatalf("Wait before Start: %v", err)
	}
	if _, err := s.Result(); !errors.Is(err, ErrNotStarted) {
		t.Fatalf("Result before Start: %v", err)
	}

	if err := s.Enqueue(NewViewpoint(1, 1, 2), NewViewpoint(6, 6, 2)); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if err := s.Start(context.Background(), elev); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := s.Enqueue(NewViewpoint(3, 3, 2)); !errors.Is(err, ErrAlreadyStarted) {
		t.Fatalf("Enqueue after Start: %v", err)
	}
	if err := s.Start(context.Background(), elev); !errors.Is(err, ErrAlreadyStarted) {
		t.Fatalf("second Start: %v", err)
	}

	if err := s.Wait(); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	// a second Wait returns the same outcome
	if err := s.Wait(); err != nil {
		t.Fatalf("second Wait: %v", err)
	}
	out, err := s.Result()
	if err != nil {
		t.Fatalf("Result: %v", err)
	}
	stats := s.Stats()
	if stats.Viewpoints != 2 || stats.Processed != 2 || stats.Workers != 2 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if stats.Merged == 0 || stats.Elapsed <= 0 {
		t.Fatalf("stats not finalised: %+v", stats)
	}
	if out.Sum() <= 0 {
		t.Fatalf("empty result")
	}
}

func TestAggregator_MergeOrderDoesNotMatter(t *testing.T) {
	like := flatGrid(t, 8, 8, 1)
	rng := rand.New(rand.NewPCG(7, 11))

	batches := make([][]Contribution, 40)
	for i := range batches {
		n := 1 + rng.IntN(12)
		for j := 0; j < n; j++ {
			batches[i] = append(batches[i], Contribution{
				Row:       rng.IntN(8),
				Col:       rng.IntN(8),
				Magnitude: rng.Float64(),
				Weight:    0.5 + rng.Float64(),
			})
		}
	}

	inOrder := NewAggregator(like, 0)
	for _, b := range batches {
		inOrder.Merge(b)
	}

	for trial := 0; trial < 5; trial++ {
		shuffled := append([][]Contribution(nil), batches...)
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

		agg := NewAggregator(like, len(shuffled))
		agg.Start()
		for _, b := range shuffled {
			agg.Add(b)
		}
		agg.Stop()
		agg.Stop()
		<-agg.Done()

		got, err := agg.Result()
		if err != nil {
			t.Fatalf("Result: %v", err)
		}
		if !grid.EqualApprox(inOrder.Grid(), got, 1e-12) {
			t.Fatalf("trial %d: permuted merge differs", trial)
		}
		if agg.Merged() != inOrder.Merged() {
			t.Fatalf("trial %d: merged %d, want %d", trial, agg.Merged(), inOrder.Merged())
		}
	}
}

func TestAggregator_ResultBeforeDone(t *testing.T) {
	agg := NewAggregator(flatGrid(t, 2, 2, 1), 1)
	if _, err := agg.Result(); !errors.Is(err, ErrNotFinished) {
		t.Fatalf("expected ErrNotFinished, got %v", err)
	}
	agg.Start()
	agg.Add([]Contribution{{Row: 1, Col: 1, Magnitude: 2, Weight: 3}})
	agg.Stop()
	<-agg.Done()
	out, err := agg.Result()
	if err != nil {
		t.Fatalf("Result: %v", err)
	}
	if out.At(1, 1) != 6 {
		t.Fatalf("At(1,1) = %v, want 6", out.At(1, 1))
	}
}
