package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/banshee-data/vismag/internal/viewshed"
)

// DefaultConfigPath is the path to the canonical run defaults file.
const DefaultConfigPath = "config/vismag.defaults.json"

const maxFileSize = 1 * 1024 * 1024 // 1MB

// Defaults applied by the Get* accessors when a field is unset.
const (
	DefaultAltOffset      = 0.0
	DefaultLineInterval   = 10.0
	DefaultOmittedRings   = 0
	DefaultWorkerThreads  = 4
	DefaultOutputFilename = "VisualMagnitude.asc"
	DefaultOutputDir      = "VisualMagnitudeOutput"
)

// RunConfig holds the user-facing settings of a visual magnitude run.
// Every field is optional; unset fields fall back to the defaults above.
type RunConfig struct {
	// Observer height above terrain for viewpoints without an offset property.
	AltOffset *float64 `json:"alt_offset,omitempty"`
	// Densification step for line viewpoints, in map units.
	LineInterval *float64 `json:"line_interval,omitempty"`
	// Rings around each viewpoint that receive no contribution.
	OmittedRings  *int `json:"omitted_rings,omitempty"`
	WorkerThreads *int `json:"worker_threads,omitempty"`

	OutputFilename *string `json:"output_filename,omitempty"`
	OutputDir      *string `json:"output_dir,omitempty"`

	WindTurbines       *bool `json:"wind_turbines,omitempty"`
	WeightedViewpoints *bool `json:"weighted_viewpoints,omitempty"`

	// Contribution channel capacity in batches; 0 picks one per worker count.
	QueueDepth *int `json:"queue_depth,omitempty"`
}

func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// DefaultRunConfig returns a RunConfig with every field populated.
func DefaultRunConfig() *RunConfig {
	return &RunConfig{
		AltOffset:          ptrFloat64(DefaultAltOffset),
		LineInterval:       ptrFloat64(DefaultLineInterval),
		OmittedRings:       ptrInt(DefaultOmittedRings),
		WorkerThreads:      ptrInt(DefaultWorkerThreads),
		OutputFilename:     ptrString(DefaultOutputFilename),
		OutputDir:          ptrString(DefaultOutputDir),
		WindTurbines:       ptrBool(false),
		WeightedViewpoints: ptrBool(false),
		QueueDepth:         ptrInt(0),
	}
}

// Load reads a RunConfig from a JSON file. The file must have a .json
// extension and be under 1MB. Fields omitted from the file stay nil and
// resolve through the Get* accessors, so partial configs are safe.
func Load(path string) (*RunConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &RunConfig{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// MustLoadDefaultConfig loads DefaultConfigPath, searching the current
// directory and its parents up to the repository root. Panics if the file
// cannot be loaded; intended for test setup.
func MustLoadDefaultConfig() *RunConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,
		"../../../" + DefaultConfigPath,
	}
	for _, path := range candidates {
		if cfg, err := Load(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Save writes the configuration as indented JSON.
func (c *RunConfig) Save(path string) error {
	if ext := filepath.Ext(path); ext != ".json" {
		return fmt.Errorf("config file must have .json extension, got %q", ext)
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Validate checks that the configuration values are valid.
func (c *RunConfig) Validate() error {
	if c.LineInterval != nil && *c.LineInterval <= 0 {
		return fmt.Errorf("line_interval must be positive, got %f", *c.LineInterval)
	}
	if c.OmittedRings != nil && *c.OmittedRings < 0 {
		return fmt.Errorf("omitted_rings must be non-negative, got %d", *c.OmittedRings)
	}
	if c.WorkerThreads != nil && *c.WorkerThreads < 1 {
		return fmt.Errorf("worker_threads must be at least 1, got %d", *c.WorkerThreads)
	}
	if c.QueueDepth != nil && *c.QueueDepth < 0 {
		return fmt.Errorf("queue_depth must be non-negative, got %d", *c.QueueDepth)
	}
	if c.OutputFilename != nil {
		name := *c.OutputFilename
		if name == "" || strings.ContainsAny(name, `/\`) {
			return fmt.Errorf("output_filename must be a bare file name, got %q", name)
		}
	}
	return nil
}

// GetAltOffset returns the alt_offset value or the default.
func (c *RunConfig) GetAltOffset() float64 {
	if c.AltOffset == nil {
		return DefaultAltOffset
	}
	return *c.AltOffset
}

// GetLineInterval returns the line_interval value or the default.
func (c *RunConfig) GetLineInterval() float64 {
	if c.LineInterval == nil {
		return DefaultLineInterval
	}
	return *c.LineInterval
}

// GetOmittedRings returns the omitted_rings value or the default.
func (c *RunConfig) GetOmittedRings() int {
	if c.OmittedRings == nil {
		return DefaultOmittedRings
	}
	return *c.OmittedRings
}

// GetWorkerThreads returns the worker_threads value or the default.
func (c *RunConfig) GetWorkerThreads() int {
	if c.WorkerThreads == nil {
		return DefaultWorkerThreads
	}
	return *c.WorkerThreads
}

// GetOutputFilename returns the output_filename value or the default.
func (c *RunConfig) GetOutputFilename() string {
	if c.OutputFilename == nil || *c.OutputFilename == "" {
		return DefaultOutputFilename
	}
	return *c.OutputFilename
}

// GetOutputDir returns the output_dir value or the default.
func (c *RunConfig) GetOutputDir() string {
	if c.OutputDir == nil || *c.OutputDir == "" {
		return DefaultOutputDir
	}
	return *c.OutputDir
}

// GetWindTurbines returns the wind_turbines value or the default.
func (c *RunConfig) GetWindTurbines() bool {
	if c.WindTurbines == nil {
		return false
	}
	return *c.WindTurbines
}

// GetWeightedViewpoints returns the weighted_viewpoints value or the default.
func (c *RunConfig) GetWeightedViewpoints() bool {
	if c.WeightedViewpoints == nil {
		return false
	}
	return *c.WeightedViewpoints
}

// GetQueueDepth returns the queue_depth value or the default.
func (c *RunConfig) GetQueueDepth() int {
	if c.QueueDepth == nil {
		return 0
	}
	return *c.QueueDepth
}

// OutputPath joins the output directory and file name.
func (c *RunConfig) OutputPath() string {
	return filepath.Join(c.GetOutputDir(), c.GetOutputFilename())
}

// Params resolves the engine parameters. The returned value is immutable
// for the duration of a run.
func (c *RunConfig) Params() viewshed.Params {
	return viewshed.Params{
		Workers:            c.GetWorkerThreads(),
		OmittedRings:       c.GetOmittedRings(),
		WindTurbines:       c.GetWindTurbines(),
		WeightedViewpoints: c.GetWeightedViewpoints(),
		QueueDepth:         c.GetQueueDepth(),
	}
}

// Merge overlays every non-nil field of other onto c.
func (c *RunConfig) Merge(other *RunConfig) {
	if other == nil {
		return
	}
	if other.AltOffset != nil {
		c.AltOffset = ptrFloat64(*other.AltOffset)
	}
	if other.LineInterval != nil {
		c.LineInterval = ptrFloat64(*other.LineInterval)
	}
	if other.OmittedRings != nil {
		c.OmittedRings = ptrInt(*other.OmittedRings)
	}
	if other.WorkerThreads != nil {
		c.WorkerThreads = ptrInt(*other.WorkerThreads)
	}
	if other.OutputFilename != nil {
		c.OutputFilename = ptrString(*other.OutputFilename)
	}
	if other.OutputDir != nil {
		c.OutputDir = ptrString(*other.OutputDir)
	}
	if other.WindTurbines != nil {
		c.WindTurbines = ptrBool(*other.WindTurbines)
	}
	if other.WeightedViewpoints != nil {
		c.WeightedViewpoints = ptrBool(*other.WeightedViewpoints)
	}
	if other.QueueDepth != nil {
		c.QueueDepth = ptrInt(*other.QueueDepth)
	}
}
