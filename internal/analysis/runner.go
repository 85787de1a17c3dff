package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/banshee-data/vismag/internal/config"
	"github.com/banshee-data/vismag/internal/fsutil"
	"github.com/banshee-data/vismag/internal/grid"
	"github.com/banshee-data/vismag/internal/monitoring"
	"github.com/banshee-data/vismag/internal/projection"
	"github.com/banshee-data/vismag/internal/raster"
	"github.com/banshee-data/vismag/internal/runstore"
	"github.com/banshee-data/vismag/internal/security"
	"github.com/banshee-data/vismag/internal/timeutil"
	"github.com/banshee-data/vismag/internal/viewshed"
)

var (
	// ErrOutputExists is returned when the output raster exists and the
	// request does not allow overwriting it.
	ErrOutputExists = errors.New("output file already exists")
	// ErrNoViewpoints is returned when no viewpoint falls inside the DEM.
	ErrNoViewpoints = errors.New("no viewpoints inside the elevation model")
	// ErrNoStore is returned by operations that need run history when the
	// runner has none.
	ErrNoStore = errors.New("run store not configured")
)

// Request describes one run.
type Request struct {
	DEMPath        string
	ViewpointsPath string
	// Config holds the run settings; nil uses config.DefaultRunConfig.
	Config *config.RunConfig
	// Force overwrites an existing output raster.
	Force bool
	// Extra lists preview formats written next to the ASCII grid.
	Extra []Format
	// Label names the previews; empty uses the output file stem.
	Label string
}

// Report summarises a finished run.
type Report struct {
	RunID       string
	OutputPath  string
	ExtraPaths  []string
	Features    int
	Viewpoints  int
	Invalid     int
	NoDataCells int
	Stats       viewshed.Stats
	Elapsed     time.Duration
}

// Runner executes requests against a filesystem and optional run store.
type Runner struct {
	fs    fsutil.FileSystem
	clock timeutil.Clock
	store *runstore.Store
}

// NewRunner creates a runner. A nil fs or clock uses the OS
// implementation; store may be nil to skip run history.
func NewRunner(fs fsutil.FileSystem, clock timeutil.Clock, store *runstore.Store) *Runner {
	if fs == nil {
		fs = fsutil.OSFileSystem{}
	}
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Runner{fs: fs, clock: clock, store: store}
}

// Run executes req. A failed computation writes no output.
func (r *Runner) Run(ctx context.Context, req Request) (*Report, error) {
	cfg := req.Config
	if cfg == nil {
		cfg = config.DefaultRunConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	outDir := cfg.GetOutputDir()
	outPath := cfg.OutputPath()
	if r.fs.Exists(outPath) && !req.Force {
		return nil, fmt.Errorf("%w: %s", ErrOutputExists, outPath)
	}

	dem, err := r.readDEM(req.DEMPath)
	if err != nil {
		return nil, err
	}
	if dem.NoDataCells > 0 {
		monitoring.Logf("%s: %d NODATA cells treated as elevation 0", req.DEMPath, dem.NoDataCells)
	}

	proj, err := r.readViewpoints(req.ViewpointsPath, dem.Georef, cfg)
	if err != nil {
		return nil, err
	}
	if proj.Invalid > 0 {
		monitoring.Logf("%d viewpoint samples fall outside the elevation model and were skipped", proj.Invalid)
	}
	if len(proj.Viewpoints) == 0 {
		return nil, ErrNoViewpoints
	}

	params := cfg.Params()
	monitoring.Logf("computing visual magnitude: %d viewpoints on %dx%d cells, %d workers",
		len(proj.Viewpoints), dem.Georef.Rows, dem.Georef.Cols, params.Workers)
	sw := monitoring.StartStage("visual magnitude", r.clock.Now)
	out, stats, err := viewshed.Run(ctx, dem.Elevation, proj.Viewpoints, params)
	if err != nil {
		return nil, fmt.Errorf("compute visual magnitude: %w", err)
	}
	elapsed := sw.Stop()

	if err := r.fs.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}
	if err := r.write(outPath, outDir, FormatASCII, out, dem.Georef, ""); err != nil {
		return nil, err
	}

	report := &Report{
		OutputPath:  outPath,
		Features:    proj.Features,
		Viewpoints:  len(proj.Viewpoints),
		Invalid:     proj.Invalid,
		NoDataCells: dem.NoDataCells,
		Stats:       stats,
		Elapsed:     elapsed,
	}

	stem := req.Label
	if stem == "" {
		stem = strings.TrimSuffix(cfg.GetOutputFilename(), filepath.Ext(cfg.GetOutputFilename()))
	}
	stem = security.SanitizeFilename(stem)
	for _, f := range req.Extra {
		if f == FormatASCII {
			continue
		}
		path := filepath.Join(outDir, stem+f.Extension())
		if err := r.write(path, outDir, f, out, dem.Georef, stem); err != nil {
			return nil, err
		}
		report.ExtraPaths = append(report.ExtraPaths, path)
	}

	if r.store != nil {
		id, err := r.record(req, cfg, report, out, dem.Georef)
		if err != nil {
			return nil, err
		}
		report.RunID = id
	}
	return report, nil
}

func (r *Runner) readDEM(path string) (*raster.DEM, error) {
	f, err := r.fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open elevation model: %w", err)
	}
	defer f.Close()

	dem, err := raster.ReadASCIIGrid(f)
	if err != nil {
		return nil, fmt.Errorf("read elevation model %s: %w", path, err)
	}
	return dem, nil
}

func (r *Runner) readViewpoints(path string, ref projection.Georef, cfg *config.RunConfig) (*projection.Result, error) {
	f, err := r.fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open viewpoints: %w", err)
	}
	defer f.Close()

	res, err := projection.Load(f, ref, projection.Options{
		DefaultOffset: cfg.GetAltOffset(),
		LineInterval:  cfg.GetLineInterval(),
	})
	if err != nil {
		return nil, fmt.Errorf("read viewpoints %s: %w", path, err)
	}
	return res, nil
}

// write encodes g to path, which must resolve inside dir.
func (r *Runner) write(path, dir string, f Format, g *grid.Grid, ref projection.Georef, title string) error {
	if err := r.fs.ValidatePath(path, dir); err != nil {
		return fmt.Errorf("invalid output path: %w", err)
	}
	w, err := r.fs.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := writeGrid(w, f, g, ref, title); err != nil {
		w.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	return nil
}

func (r *Runner) record(req Request, cfg *config.RunConfig, rep *Report, g *grid.Grid, ref projection.Georef) (string, error) {
	params, err := json.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("encode run parameters: %w", err)
	}
	run := &runstore.Run{
		CreatedAt:      r.clock.Now().UnixNano(),
		DEMPath:        req.DEMPath,
		ViewpointsPath: req.ViewpointsPath,
		OutputPath:     rep.OutputPath,
		ParamsJSON:     params,
		Viewpoints:     rep.Viewpoints,
		Invalid:        rep.Invalid,
		VisibleCells:   rep.Stats.VisibleCells,
		Contributions:  rep.Stats.Contributions,
		ElapsedMS:      rep.Elapsed.Milliseconds(),
		Georef:         ref,
	}
	if err := r.store.Insert(run, g); err != nil {
		return "", fmt.Errorf("record run: %w", err)
	}
	monitoring.Logf("recorded run %s", run.RunID)
	return run.RunID, nil
}

// Export re-encodes the stored grid of runID to path. The format follows
// the extension of path.
func (r *Runner) Export(runID, path string) error {
	if r.store == nil {
		return ErrNoStore
	}
	f, err := FormatForPath(path)
	if err != nil {
		return err
	}
	run, err := r.store.Get(runID)
	if err != nil {
		return err
	}
	g, err := r.store.Grid(runID)
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := r.fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	title := "run " + run.RunID
	if err := r.write(path, dir, f, g, run.Georef, title); err != nil {
		return err
	}
	monitoring.Logf("exported run %s to %s", run.RunID, path)
	return nil
}

// History lists up to limit recorded runs, newest first.
func (r *Runner) History(limit int) ([]*runstore.Run, error) {
	if r.store == nil {
		return nil, ErrNoStore
	}
	return r.store.List(limit)
}
