// Package config loads the process-wide configuration: the five status
// directory paths, the simulations output directory, and FIXIE_NJOBS. It is
// injected into components rather than read from package-level globals, so
// components stay testable in isolation.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/BurntSushi/toml"

	"fixiebatch/internal/jobqueue"
)

// Config holds the directory layout and concurrency bound for one
// fixiebatch deployment.
type Config struct {
	// JobsDir is the FIXIE_JOBS_DIR root under which the five status
	// directories default to "<JobsDir>/fixie/<status>" when not
	// independently overridden.
	JobsDir string `toml:"jobs_dir"`

	QueuedDir    string `toml:"queued_dir"`
	RunningDir   string `toml:"running_dir"`
	CompletedDir string `toml:"completed_dir"`
	FailedDir    string `toml:"failed_dir"`
	CanceledDir  string `toml:"canceled_dir"`

	// SimsDir is FIXIE_SIMS_DIR: where the simulator writes its output
	// file, "<SimsDir>/<jobid>.h5".
	SimsDir string `toml:"sims_dir"`

	// NJobs is FIXIE_NJOBS, the admission controller's concurrency bound.
	NJobs int `toml:"njobs"`

	// SimulatorPath is the path to the simulator binary the runner
	// invokes. The simulator is opaque to the service; this is only the
	// path used to exec it.
	SimulatorPath string `toml:"simulator_path"`

	// LogLevel controls internal/logging's verbosity ("debug"|"info"|
	// "warn"|"error").
	LogLevel string `toml:"log_level"`

	// BaseDir is the directory containing the loaded TOML file, used to
	// resolve relative paths within it. Not itself part of the TOML.
	BaseDir string `toml:"-"`
}

// Load reads path as TOML, applies FIXIE_* environment variable overrides,
// fills in directory defaults derived from JobsDir, and validates the
// result.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}
	cfg.BaseDir = filepath.Dir(path)

	applyEnvOverrides(cfg)
	applyDefaults(cfg)
	resolvePaths(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides lets each FIXIE_*_JOBS_DIR / FIXIE_SIMS_DIR /
// FIXIE_NJOBS environment variable, if set, override whatever the TOML
// file contained.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("FIXIE_JOBS_DIR"); v != "" {
		cfg.JobsDir = v
	}
	if v := os.Getenv("FIXIE_QUEUED_JOBS_DIR"); v != "" {
		cfg.QueuedDir = v
	}
	if v := os.Getenv("FIXIE_RUNNING_JOBS_DIR"); v != "" {
		cfg.RunningDir = v
	}
	if v := os.Getenv("FIXIE_COMPLETED_JOBS_DIR"); v != "" {
		cfg.CompletedDir = v
	}
	if v := os.Getenv("FIXIE_FAILED_JOBS_DIR"); v != "" {
		cfg.FailedDir = v
	}
	if v := os.Getenv("FIXIE_CANCELED_JOBS_DIR"); v != "" {
		cfg.CanceledDir = v
	}
	if v := os.Getenv("FIXIE_SIMS_DIR"); v != "" {
		cfg.SimsDir = v
	}
	if v := os.Getenv("FIXIE_NJOBS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.NJobs = n
		}
	}
}

// applyDefaults derives any unset status directory from JobsDir: each
// directory defaults to "<JobsDir>/fixie/<status>" unless independently
// overridden, so a deployment only has to set one root.
func applyDefaults(cfg *Config) {
	if cfg.JobsDir == "" {
		cfg.JobsDir = "."
	}
	base := filepath.Join(cfg.JobsDir, "fixie")
	if cfg.QueuedDir == "" {
		cfg.QueuedDir = filepath.Join(base, "queued")
	}
	if cfg.RunningDir == "" {
		cfg.RunningDir = filepath.Join(base, "running")
	}
	if cfg.CompletedDir == "" {
		cfg.CompletedDir = filepath.Join(base, "completed")
	}
	if cfg.FailedDir == "" {
		cfg.FailedDir = filepath.Join(base, "failed")
	}
	if cfg.CanceledDir == "" {
		cfg.CanceledDir = filepath.Join(base, "canceled")
	}
	if cfg.SimsDir == "" {
		cfg.SimsDir = filepath.Join(base, "sims")
	}
	if cfg.SimulatorPath == "" {
		cfg.SimulatorPath = "cyclus"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
}

// resolvePaths makes every directory path absolute relative to BaseDir, so
// a config file can use paths relative to its own location.
func resolvePaths(cfg *Config) {
	resolve := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(cfg.BaseDir, p)
	}
	cfg.JobsDir = resolve(cfg.JobsDir)
	cfg.QueuedDir = resolve(cfg.QueuedDir)
	cfg.RunningDir = resolve(cfg.RunningDir)
	cfg.CompletedDir = resolve(cfg.CompletedDir)
	cfg.FailedDir = resolve(cfg.FailedDir)
	cfg.CanceledDir = resolve(cfg.CanceledDir)
	cfg.SimsDir = resolve(cfg.SimsDir)
}

// Validate rejects a negative concurrency bound, an empty simulator path,
// and five status directories that are not non-empty and pairwise
// distinct (the same check jobqueue.New applies).
func (cfg *Config) Validate() error {
	if cfg.NJobs < 0 {
		return fmt.Errorf("config: njobs must be >= 0, got %d", cfg.NJobs)
	}
	if cfg.SimulatorPath == "" {
		return fmt.Errorf("config: simulator_path must not be empty")
	}
	if _, err := jobqueue.New(cfg.QueuedDir, cfg.RunningDir, cfg.CompletedDir, cfg.FailedDir, cfg.CanceledDir); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// Dirs constructs the jobqueue.Dirs this config describes, creating the
// five directories (and the sims directory) if they do not already exist.
func (cfg *Config) Dirs() (*jobqueue.Dirs, error) {
	d, err := jobqueue.New(cfg.QueuedDir, cfg.RunningDir, cfg.CompletedDir, cfg.FailedDir, cfg.CanceledDir)
	if err != nil {
		return nil, err
	}
	if err := d.EnsureAll(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.SimsDir, 0o755); err != nil {
		return nil, fmt.Errorf("config: create sims dir %q: %w", cfg.SimsDir, err)
	}
	return d, nil
}

// OutputPath returns the path the simulator should write its output to for
// jobid: "<SimsDir>/<jobid>.h5".
func (cfg *Config) OutputPath(jobid int) string {
	return filepath.Join(cfg.SimsDir, strconv.Itoa(jobid)+".h5")
}
