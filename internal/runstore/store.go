package runstore

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/banshee-data/vismag/internal/grid"
	"github.com/banshee-data/vismag/internal/projection"
	"github.com/banshee-data/vismag/internal/timeutil"
)

// ErrNotFound is returned when a run id has no record.
var ErrNotFound = errors.New("run not found")

// Run is one recorded visual magnitude computation.
type Run struct {
	RunID          string            `json:"run_id"`
	CreatedAt      int64             `json:"created_at"`
	DEMPath        string            `json:"dem_path"`
	ViewpointsPath string            `json:"viewpoints_path"`
	OutputPath     string            `json:"output_path"`
	ParamsJSON     json.RawMessage   `json:"params_json,omitempty"`
	Viewpoints     int               `json:"viewpoints"`
	Invalid        int               `json:"invalid"`
	VisibleCells   int64             `json:"visible_cells"`
	Contributions  int64             `json:"contributions"`
	ElapsedMS      int64             `json:"elapsed_ms"`
	Georef         projection.Georef `json:"georef"`
	MaxMagnitude   float64           `json:"max_magnitude"`
	SumMagnitude   float64           `json:"sum_magnitude"`
}

// Created returns CreatedAt as a time.Time.
func (r *Run) Created() time.Time { return time.Unix(0, r.CreatedAt) }

// Store persists runs in a sqlite database.
type Store struct {
	db    *sql.DB
	clock timeutil.Clock
}

var pragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA busy_timeout=5000",
	"PRAGMA synchronous=NORMAL",
	"PRAGMA temp_store=MEMORY",
}

// Open opens (creating if needed) the database at path and migrates it to
// the latest schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open run database: %w", err)
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("exec %q: %w", p, err)
		}
	}
	s := NewStore(db, timeutil.RealClock{})
	if err := s.MigrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewStore wraps an open database. The schema is not migrated.
func NewStore(db *sql.DB, clock timeutil.Clock) *Store {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Store{db: db, clock: clock}
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Insert records run and its output grid. An empty RunID gets a fresh
// UUID and a zero CreatedAt is stamped from the store clock; summary
// statistics are computed from g.
func (s *Store) Insert(run *Run, g *grid.Grid) error {
	if g.Rows() != run.Georef.Rows || g.Cols() != run.Georef.Cols {
		return fmt.Errorf("grid is %dx%d but run georeference is %dx%d", g.Rows(), g.Cols(), run.Georef.Rows, run.Georef.Cols)
	}
	if run.RunID == "" {
		run.RunID = uuid.New().String()
	}
	if run.CreatedAt == 0 {
		run.CreatedAt = s.clock.Now().UnixNano()
	}
	run.MaxMagnitude = g.Max()
	run.SumMagnitude = g.Sum()

	blob, err := encodeGrid(g)
	if err != nil {
		return err
	}
	var params interface{}
	if len(run.ParamsJSON) > 0 {
		params = string(run.ParamsJSON)
	}

	return retryOnBusy(func() error {
		_, err := s.db.Exec(`
			INSERT INTO vismag_runs (
				run_id, created_at, dem_path, viewpoints_path, output_path,
				params_json, viewpoints, invalid, visible_cells, contributions,
				elapsed_ms, n_rows, n_cols, xll, yll, cell_size,
				max_magnitude, sum_magnitude, grid_blob
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			run.RunID, run.CreatedAt, run.DEMPath, run.ViewpointsPath, run.OutputPath,
			params, run.Viewpoints, run.Invalid, run.VisibleCells, run.Contributions,
			run.ElapsedMS, run.Georef.Rows, run.Georef.Cols, run.Georef.XLL, run.Georef.YLL, run.Georef.CellSize,
			run.MaxMagnitude, run.SumMagnitude, blob,
		)
		if err != nil {
			return fmt.Errorf("insert run: %w", err)
		}
		return nil
	})
}

const runColumns = `run_id, created_at, dem_path, viewpoints_path, output_path,
		       params_json, viewpoints, invalid, visible_cells, contributions,
		       elapsed_ms, n_rows, n_cols, xll, yll, cell_size,
		       max_magnitude, sum_magnitude`

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row scanner) (*Run, error) {
	var r Run
	var params sql.NullString
	err := row.Scan(
		&r.RunID, &r.CreatedAt, &r.DEMPath, &r.ViewpointsPath, &r.OutputPath,
		&params, &r.Viewpoints, &r.Invalid, &r.VisibleCells, &r.Contributions,
		&r.ElapsedMS, &r.Georef.Rows, &r.Georef.Cols, &r.Georef.XLL, &r.Georef.YLL, &r.Georef.CellSize,
		&r.MaxMagnitude, &r.SumMagnitude,
	)
	if err != nil {
		return nil, err
	}
	if params.Valid {
		r.ParamsJSON = json.RawMessage(params.String)
	}
	return &r, nil
}

// List returns up to limit runs, newest first. limit <= 0 returns all.
func (s *Store) List(limit int) ([]*Run, error) {
	query := `SELECT ` + runColumns + ` FROM vismag_runs ORDER BY created_at DESC`
	args := []interface{}{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Get returns a single run by id.
func (s *Store) Get(runID string) (*Run, error) {
	row := s.db.QueryRow(`SELECT `+runColumns+` FROM vismag_runs WHERE run_id = ?`, runID)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("query run: %w", err)
	}
	return r, nil
}

// Grid loads the stored output grid of a run.
func (s *Store) Grid(runID string) (*grid.Grid, error) {
	var blob []byte
	err := s.db.QueryRow(`SELECT grid_blob FROM vismag_runs WHERE run_id = ?`, runID).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("query grid: %w", err)
	}
	if len(blob) == 0 {
		return nil, fmt.Errorf("run %s has no stored grid", runID)
	}
	return decodeGrid(blob)
}

// Delete removes a run.
func (s *Store) Delete(runID string) error {
	return retryOnBusy(func() error {
		result, err := s.db.Exec(`DELETE FROM vismag_runs WHERE run_id = ?`, runID)
		if err != nil {
			return fmt.Errorf("delete run: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if affected == 0 {
			return fmt.Errorf("%w: %s", ErrNotFound, runID)
		}
		return nil
	})
}

const busyRetries = 5

// retryOnBusy retries fn while sqlite reports the database as locked.
func retryOnBusy(fn func() error) error {
	var err error
	backoff := 20 * time.Millisecond
	for attempt := 0; attempt < busyRetries; attempt++ {
		err = fn()
		if err == nil || !isBusy(err) {
			return err
		}
		time.Sleep(backoff)
		backoff *= 2
	}
	return err
}

func isBusy(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}
