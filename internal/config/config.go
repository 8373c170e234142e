// Package config holds gradlog's YAML configuration: where metrics go,
// which backends record them, and the bounds for the demo loop.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Backend names accepted in the config file.
const (
	BackendTensorBoard = "tensorboard"
	BackendSQLite      = "sqlite"
	BackendBoth        = "both"
)

// Config holds all gradlog configuration.
type Config struct {
	// RunName labels the run in the history store and CLI output.
	RunName string `yaml:"run_name"`

	// LogDir is the event-log directory for the TensorBoard backend.
	LogDir string `yaml:"log_dir"`

	// Backend selects where metrics are written: tensorboard, sqlite,
	// or both.
	Backend string `yaml:"backend"`

	// HistoryDB is the SQLite history database path.
	HistoryDB string `yaml:"history_db"`

	// Loop bounds the demo training loop.
	Loop LoopConfig `yaml:"loop"`
}

// LoopConfig bounds a training loop. Zero means unbounded.
type LoopConfig struct {
	MaxEpochs        int64 `yaml:"max_epochs"`
	MaxSteps         int64 `yaml:"max_steps"`
	MaxStepsPerEpoch int64 `yaml:"max_steps_per_epoch"`
	BatchSize        int   `yaml:"batch_size"`
	DatasetSize      int   `yaml:"dataset_size"`
	Seed             int64 `yaml:"seed"`
}

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() *Config {
	return &Config{
		RunName:   "default",
		LogDir:    "runs",
		Backend:   BackendTensorBoard,
		HistoryDB: filepath.Join("runs", "history.db"),
		Loop: LoopConfig{
			MaxEpochs:   2,
			BatchSize:   8,
			DatasetSize: 64,
			Seed:        42,
		},
	}
}

// Load reads the config at path, falling back to defaults when the
// file does not exist. Environment overrides are applied either way.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		// Defaults.
	case err != nil:
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	cfg.applyEnvOverrides()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the config to path, creating parent directories.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("config: create directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if dir := os.Getenv("GRADLOG_LOG_DIR"); dir != "" {
		c.LogDir = dir
	}
	if name := os.Getenv("GRADLOG_RUN_NAME"); name != "" {
		c.RunName = name
	}
	if db := os.Getenv("GRADLOG_HISTORY_DB"); db != "" {
		c.HistoryDB = db
	}
	if backend := os.Getenv("GRADLOG_BACKEND"); backend != "" {
		c.Backend = backend
	}
}

func (c *Config) validate() error {
	switch c.Backend {
	case BackendTensorBoard, BackendSQLite, BackendBoth:
	default:
		return fmt.Errorf("config: unknown backend %q", c.Backend)
	}
	if c.Loop.BatchSize < 1 {
		return fmt.Errorf("config: batch_size must be >= 1, got %d", c.Loop.BatchSize)
	}
	if c.Loop.DatasetSize < 1 {
		return fmt.Errorf("config: dataset_size must be >= 1, got %d", c.Loop.DatasetSize)
	}
	return nil
}
