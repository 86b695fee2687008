package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fixiebatch/internal/config"
)

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "fixiebatch.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `njobs = 2`+"\n")

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.NJobs)
	assert.Equal(t, filepath.Join(dir, "fixie", "queued"), cfg.QueuedDir)
	assert.Equal(t, filepath.Join(dir, "fixie", "sims"), cfg.SimsDir)
	assert.Equal(t, "cyclus", cfg.SimulatorPath)
}

func TestLoadRejectsDuplicateDirs(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `
njobs = 1
queued_dir = "same"
running_dir = "same"
`)
	_, err := config.Load(path)
	assert.Error(t, err)
}

func TestEnvOverridesTakePriority(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `njobs = 1`+"\n")

	override := filepath.Join(t.TempDir(), "queued-override")
	t.Setenv("FIXIE_QUEUED_JOBS_DIR", override)
	t.Setenv("FIXIE_NJOBS", "7")

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, override, cfg.QueuedDir)
	assert.Equal(t, 7, cfg.NJobs)
}

func TestDirsCreatesDirectories(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `njobs = 1`+"\n")
	cfg, err := config.Load(path)
	require.NoError(t, err)

	d, err := cfg.Dirs()
	require.NoError(t, err)
	require.NotNil(t, d)

	info, err := os.Stat(cfg.QueuedDir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestOutputPath(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `njobs = 1`+"\n")
	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(cfg.SimsDir, "42.h5"), cfg.OutputPath(42))
}
