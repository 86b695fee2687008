// Package cli wires the cobra command tree exposed by the fixiebatch
// binary: spawn, cancel, and query as user-facing subcommands, plus a
// hidden runner subcommand that is never invoked directly by a human: it
// is the detached child control.DetachedLauncher execs for each job.
package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"fixiebatch/internal/config"
	"fixiebatch/internal/control"
	"fixiebatch/internal/logging"
)

var (
	cfgPath string
	jsonOut bool
)

var rootCmd = &cobra.Command{
	Use:           "fixiebatch",
	Short:         "fixiebatch - filesystem-backed batch execution for long-running simulations",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file path (TOML)")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "output JSON")
}

// Execute runs the command tree, printing any returned error to stderr.
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return err
	}
	return nil
}

// resolveConfigPath mirrors the precedence a deployment expects: an
// explicit --config flag, then ./fixiebatch.toml in the current directory,
// then FIXIE_CONFIG in the environment.
func resolveConfigPath() (string, error) {
	if cfgPath != "" {
		return cfgPath, nil
	}
	if _, err := os.Stat("fixiebatch.toml"); err == nil {
		return "fixiebatch.toml", nil
	}
	if v := os.Getenv("FIXIE_CONFIG"); v != "" {
		return v, nil
	}
	return "", fmt.Errorf("no config file found; pass --config or set FIXIE_CONFIG")
}

func loadConfig() (*config.Config, error) {
	path, err := resolveConfigPath()
	if err != nil {
		return nil, err
	}
	return config.Load(path)
}

// buildDeps assembles the control.Deps a spawn/cancel/query invocation
// needs: the five status directories, a file-backed job id counter under
// "<JobsDir>/fixie/control/jobid-counter", an in-memory alias registry (one
// per process; alias lookups only need to survive a single CLI
// invocation's lifetime here since each subcommand process is short-lived
// and queries re-derive everything from the directories), and the
// detached-launcher collaborator that execs this same binary's hidden
// "runner" subcommand.
func buildDeps(cfg *config.Config) (*control.Deps, error) {
	dirs, err := cfg.Dirs()
	if err != nil {
		return nil, err
	}
	// One correlation id per CLI invocation, so every log line a single
	// spawn/cancel/query emits can be grepped together.
	log := logging.New(cfg.LogLevel).WithCorrelationId(uuid.NewString())
	counterPath := filepath.Join(cfg.JobsDir, "fixie", "control", "jobid-counter")
	if err := os.MkdirAll(filepath.Dir(counterPath), 0o755); err != nil {
		return nil, fmt.Errorf("create jobid counter dir: %w", err)
	}
	return &control.Deps{
		Config:    cfg,
		Dirs:      dirs,
		Verifier:  control.AllowAllVerifier,
		Allocator: control.FileCounterAllocator{Path: counterPath},
		Aliases:   control.NewAliasRegistry(),
		Launcher:  &control.DetachedLauncher{Config: cfg},
		Log:       log,
	}, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// exitCodeForResult maps a control-plane op's ok flag onto the process exit
// convention: success exits zero, a rejected operation (bad input, auth
// failure, not-found) exits 1 without being a Go error per se.
func exitCodeForResult(ok bool) {
	if !ok {
		os.Exit(1)
	}
}
