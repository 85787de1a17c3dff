// Command vismag computes the visual magnitude of a terrain as seen from a
// set of viewpoints and keeps a history of past runs.
//
// Usage:
//
//	vismag -dem terrain.asc -viewpoints trail.geojson [flags]
//	vismag runs [-db runs.db] [-n 20]
//	vismag export -run <id> -out result.png [-db runs.db]
//	vismag serve [-listen :8080] [-db runs.db]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/banshee-data/vismag/internal/analysis"
	"github.com/banshee-data/vismag/internal/api"
	"github.com/banshee-data/vismag/internal/config"
	"github.com/banshee-data/vismag/internal/fsutil"
	"github.com/banshee-data/vismag/internal/monitoring"
	"github.com/banshee-data/vismag/internal/runstore"
	"github.com/banshee-data/vismag/internal/timeutil"
	"github.com/banshee-data/vismag/internal/version"
	"github.com/banshee-data/vismag/internal/viewshed"
)

const defaultDB = "vismag_runs.db"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

// run dispatches to a subcommand and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	logger := log.New(stderr, "", log.LstdFlags)
	monitoring.SetLogger(logger.Printf)

	var err error
	switch {
	case len(args) > 0 && args[0] == "runs":
		err = runHistory(args[1:], stdout, stderr)
	case len(args) > 0 && args[0] == "export":
		err = runExport(args[1:], stderr)
	case len(args) > 0 && args[0] == "serve":
		err = runServe(ctx, args[1:], stderr)
	default:
		err = runCompute(ctx, args, stdout, stderr)
	}
	if errors.Is(err, flag.ErrHelp) {
		return 2
	}
	if err != nil {
		fmt.Fprintf(stderr, "vismag: %v\n", err)
		return 1
	}
	return 0
}

type computeFlags struct {
	dem, viewpoints, configPath, outDir, outFile, db, label string
	workers, omittedRings, queueDepth                       int
	altOffset, lineInterval                                 float64
	windTurbines, weighted, force, noDB, verbose, version   bool
	png, html, tiff                                         bool
}

func (f *computeFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&f.dem, "dem", "", "ESRI ASCII grid elevation model (required)")
	fs.StringVar(&f.viewpoints, "viewpoints", "", "GeoJSON viewpoint layer (required)")
	fs.StringVar(&f.configPath, "config", "", "JSON run configuration")
	fs.StringVar(&f.outDir, "out", "", "output directory (overrides output_dir)")
	fs.StringVar(&f.outFile, "output-filename", "", "output raster name (overrides output_filename)")
	fs.StringVar(&f.db, "db", defaultDB, "run history database")
	fs.BoolVar(&f.noDB, "no-db", false, "do not record the run")
	fs.StringVar(&f.label, "label", "", "name for preview outputs")
	fs.IntVar(&f.workers, "workers", config.DefaultWorkerThreads, "number of compute workers")
	fs.IntVar(&f.omittedRings, "omitted-rings", config.DefaultOmittedRings, "rings around each viewpoint left out")
	fs.IntVar(&f.queueDepth, "queue-depth", 0, "contribution queue capacity in batches (0 = automatic)")
	fs.Float64Var(&f.altOffset, "alt-offset", config.DefaultAltOffset, "default observer height above terrain")
	fs.Float64Var(&f.lineInterval, "line-interval", config.DefaultLineInterval, "sampling step along line viewpoints")
	fs.BoolVar(&f.windTurbines, "wind-turbines", false, "use the inverse square wind turbine model")
	fs.BoolVar(&f.weighted, "weighted", false, "scale contributions by viewpoint weight")
	fs.BoolVar(&f.force, "force", false, "overwrite an existing output raster")
	fs.BoolVar(&f.png, "png", false, "also write a PNG heat map")
	fs.BoolVar(&f.html, "html", false, "also write an interactive HTML heat map")
	fs.BoolVar(&f.tiff, "tiff", false, "also write a 16-bit TIFF preview")
	fs.BoolVar(&f.verbose, "v", false, "log per-viewpoint timing")
	fs.BoolVar(&f.version, "version", false, "print version and exit")
}

// overrides returns a config holding only the flags set on the command
// line, so they win over the config file without clobbering it.
func (f *computeFlags) overrides(fs *flag.FlagSet) *config.RunConfig {
	o := &config.RunConfig{}
	fs.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "workers":
			o.WorkerThreads = &f.workers
		case "omitted-rings":
			o.OmittedRings = &f.omittedRings
		case "queue-depth":
			o.QueueDepth = &f.queueDepth
		case "alt-offset":
			o.AltOffset = &f.altOffset
		case "line-interval":
			o.LineInterval = &f.lineInterval
		case "wind-turbines":
			o.WindTurbines = &f.windTurbines
		case "weighted":
			o.WeightedViewpoints = &f.weighted
		case "out":
			o.OutputDir = &f.outDir
		case "output-filename":
			o.OutputFilename = &f.outFile
		}
	})
	return o
}

func (f *computeFlags) extras() []analysis.Format {
	var out []analysis.Format
	if f.png {
		out = append(out, analysis.FormatPNG)
	}
	if f.html {
		out = append(out, analysis.FormatHTML)
	}
	if f.tiff {
		out = append(out, analysis.FormatTIFF)
	}
	return out
}

// loadConfig resolves the run configuration: built-in defaults, then the
// config file, then explicit flags.
func loadConfig(path string, overrides *config.RunConfig) (*config.RunConfig, error) {
	cfg := config.DefaultRunConfig()
	if path != "" {
		file, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		cfg.Merge(file)
	}
	cfg.Merge(overrides)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runCompute(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	var f computeFlags
	fs := flag.NewFlagSet("vismag", flag.ContinueOnError)
	fs.SetOutput(stderr)
	f.register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if f.version {
		fmt.Fprintln(stdout, version.String())
		return nil
	}
	if f.dem == "" || f.viewpoints == "" {
		fs.Usage()
		return errors.New("-dem and -viewpoints are required")
	}

	cfg, err := loadConfig(f.configPath, f.overrides(fs))
	if err != nil {
		return err
	}

	if f.verbose {
		viewshed.SetLogWriters(stderr, stderr, nil)
	} else {
		viewshed.SetLogWriters(stderr, nil, nil)
	}

	var store *runstore.Store
	if !f.noDB {
		store, err = runstore.Open(f.db)
		if err != nil {
			return err
		}
		defer store.Close()
	}

	runner := analysis.NewRunner(fsutil.OSFileSystem{}, timeutil.RealClock{}, store)
	rep, err := runner.Run(ctx, analysis.Request{
		DEMPath:        f.dem,
		ViewpointsPath: f.viewpoints,
		Config:         cfg,
		Force:          f.force,
		Extra:          f.extras(),
		Label:          f.label,
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(stdout, "wrote %s\n", rep.OutputPath)
	for _, p := range rep.ExtraPaths {
		fmt.Fprintf(stdout, "wrote %s\n", p)
	}
	fmt.Fprintf(stdout, "viewpoints: %d used, %d skipped outside the elevation model\n", rep.Viewpoints, rep.Invalid)
	fmt.Fprintf(stdout, "visible cells: %d, elapsed: %v\n", rep.Stats.VisibleCells, rep.Elapsed)
	if rep.RunID != "" {
		fmt.Fprintf(stdout, "run id: %s\n", rep.RunID)
	}
	return nil
}

func runHistory(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("vismag runs", flag.ContinueOnError)
	fs.SetOutput(stderr)
	db := fs.String("db", defaultDB, "run history database")
	limit := fs.Int("n", 20, "number of runs to list (0 = all)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	store, err := runstore.Open(*db)
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := analysis.NewRunner(nil, nil, store).History(*limit)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN ID\tCREATED\tVIEWPOINTS\tSKIPPED\tGRID\tELAPSED\tMAX\tOUTPUT")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%dx%d\t%dms\t%.4g\t%s\n",
			r.RunID, r.Created().Format("2006-01-02 15:04:05"), r.Viewpoints, r.Invalid,
			r.Georef.Rows, r.Georef.Cols, r.ElapsedMS, r.MaxMagnitude, r.OutputPath)
	}
	return tw.Flush()
}

func runExport(args []string, stderr io.Writer) error {
	fs := flag.NewFlagSet("vismag export", flag.ContinueOnError)
	fs.SetOutput(stderr)
	db := fs.String("db", defaultDB, "run history database")
	id := fs.String("run", "", "run id to export (required)")
	out := fs.String("out", "", "output file; extension selects asc, png, html or tif (required)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*id) == "" || *out == "" {
		fs.Usage()
		return errors.New("-run and -out are required")
	}

	store, err := runstore.Open(*db)
	if err != nil {
		return err
	}
	defer store.Close()
	return analysis.NewRunner(nil, nil, store).Export(*id, *out)
}

func runServe(ctx context.Context, args []string, stderr io.Writer) error {
	fs := flag.NewFlagSet("vismag serve", flag.ContinueOnError)
	fs.SetOutput(stderr)
	db := fs.String("db", defaultDB, "run history database")
	listen := fs.String("listen", ":8080", "listen address")
	if err := fs.Parse(args); err != nil {
		return err
	}

	store, err := runstore.Open(*db)
	if err != nil {
		return err
	}
	defer store.Close()

	srv := &http.Server{
		Addr:              *listen,
		Handler:           api.LoggingMiddleware(api.NewServer(store).ServeMux()),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		monitoring.Logf("serving run history on %s", *listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
