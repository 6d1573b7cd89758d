package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/banshee-data/servosphere/internal/movement"
	"github.com/banshee-data/servosphere/internal/units"
)

// DefaultConfigPath is the path to the canonical defaults file.
const DefaultConfigPath = "config/servosphere.defaults.json"

// DefaultDatabasePath is the database file used when none is configured.
const DefaultDatabasePath = "servosphere.db"

// Config holds the settings for a derivation run. Every field is optional;
// the Get* methods fall back to defaults for fields left unset.
type Config struct {
	// Pipeline
	Stages  []string `json:"stages,omitempty"`
	Workers *int     `json:"workers,omitempty"`

	// Cleaning
	Clean       *bool    `json:"clean,omitempty"`
	MinDTMillis *float64 `json:"min_dt_ms,omitempty"`

	// Output
	DatabasePath *string `json:"database_path,omitempty"`
	OutputDir    *string `json:"output_dir,omitempty"`
	PlotDir      *string `json:"plot_dir,omitempty"`
	DistanceUnit *string `json:"distance_unit,omitempty"`
}

func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// DefaultConfig returns a Config with every field set to its default.
func DefaultConfig() *Config {
	stages := make([]string, len(movement.AllStages))
	for i, s := range movement.AllStages {
		stages[i] = s.String()
	}
	return &Config{
		Stages:       stages,
		Workers:      ptrInt(1),
		Clean:        ptrBool(true),
		MinDTMillis:  ptrFloat64(0),
		DatabasePath: ptrString(DefaultDatabasePath),
		OutputDir:    ptrString(""),
		PlotDir:      ptrString(""),
		DistanceUnit: ptrString(units.CM),
	}
}

// LoadConfig loads a Config from a JSON file.
// The file must have a .json extension and be under 1MB. Unknown fields
// are rejected so typos do not silently fall back to defaults.
func LoadConfig(path string) (*Config, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &Config{}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical defaults from DefaultConfigPath,
// searching the current directory and its parents up to the repo root.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *Config {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath, // from internal/config/
		"../../../" + DefaultConfigPath,
	}
	for _, path := range candidates {
		if cfg, err := LoadConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *Config) Validate() error {
	if _, err := c.stages(); err != nil {
		return err
	}
	if c.Workers != nil && *c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", *c.Workers)
	}
	if c.MinDTMillis != nil && *c.MinDTMillis < 0 {
		return fmt.Errorf("min_dt_ms must be non-negative, got %f", *c.MinDTMillis)
	}
	if c.DistanceUnit != nil && !units.IsValid(*c.DistanceUnit) {
		return fmt.Errorf("distance_unit must be one of %s, got %q", units.GetValidUnitsString(), *c.DistanceUnit)
	}
	if c.DatabasePath != nil && *c.DatabasePath == "" {
		return fmt.Errorf("database_path must not be empty when set")
	}
	return nil
}

func (c *Config) stages() ([]movement.Stage, error) {
	if len(c.Stages) == 0 {
		return movement.AllStages, nil
	}
	out := make([]movement.Stage, len(c.Stages))
	for i, name := range c.Stages {
		s, err := movement.ParseStage(name)
		if err != nil {
			return nil, err
		}
		out[i] = s
	}
	// Ordering is checked against the raw recording columns.
	if err := movement.NewPipeline(out...).Validate([]string{movement.ColDT, movement.ColDX, movement.ColDY}); err != nil {
		return nil, fmt.Errorf("invalid stages: %w", err)
	}
	return out, nil
}

// GetStages returns the configured stages, or all six in dependency order.
func (c *Config) GetStages() []movement.Stage {
	s, err := c.stages()
	if err != nil {
		return movement.AllStages
	}
	return s
}

// GetWorkers returns the workers value or the default.
func (c *Config) GetWorkers() int {
	if c.Workers == nil {
		return 1 // default: sequential
	}
	return *c.Workers
}

// GetClean returns the clean value or the default.
func (c *Config) GetClean() bool {
	if c.Clean == nil {
		return true
	}
	return *c.Clean
}

// GetMinDTMillis returns the min_dt_ms value or the default.
func (c *Config) GetMinDTMillis() float64 {
	if c.MinDTMillis == nil {
		return 0
	}
	return *c.MinDTMillis
}

// GetDatabasePath returns the database_path value or the default.
func (c *Config) GetDatabasePath() string {
	if c.DatabasePath == nil {
		return DefaultDatabasePath
	}
	return *c.DatabasePath
}

// GetOutputDir returns the directory for derived CSVs; empty disables output.
func (c *Config) GetOutputDir() string {
	if c.OutputDir == nil {
		return ""
	}
	return *c.OutputDir
}

// GetPlotDir returns the directory for plots; empty disables plotting.
func (c *Config) GetPlotDir() string {
	if c.PlotDir == nil {
		return ""
	}
	return *c.PlotDir
}

// GetDistanceUnit returns the distance_unit value or the default.
func (c *Config) GetDistanceUnit() string {
	if c.DistanceUnit == nil {
		return units.CM
	}
	return *c.DistanceUnit
}

// Pipeline builds the derivation pipeline described by the config.
func (c *Config) Pipeline() *movement.Pipeline {
	return movement.NewPipeline(c.GetStages()...).WithWorkers(c.GetWorkers())
}
