package runner_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fixiebatch/internal/config"
	"fixiebatch/internal/control"
	"fixiebatch/internal/jobqueue"
	"fixiebatch/internal/model"
	"fixiebatch/internal/runner"
)

// fakeSimulator returns the path to a tiny shell script usable as
// SimulatorPath: it always exits 0 unless fail is true, in which case it
// prints to stderr and exits 1.
func fakeSimulator(t *testing.T, fail bool) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake simulator script is POSIX-shell only")
	}
	dir := t.TempDir()
	path := filepath.Join(dir, "fake-sim.sh")
	body := "#!/bin/sh\necho simulated output\n"
	if fail {
		body += "echo boom 1>&2\nexit 1\n"
	} else {
		body += "exit 0\n"
	}
	require.NoError(t, os.WriteFile(path, []byte(body), 0o755))
	return path
}

// slowFakeSimulator returns a fake simulator that sleeps for delay before
// exiting 0, leaving a window in which a concurrent external cancel can
// remove the running record out from under an in-flight invoke.
func slowFakeSimulator(t *testing.T, delay time.Duration) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake simulator script is POSIX-shell only")
	}
	dir := t.TempDir()
	path := filepath.Join(dir, "slow-sim.sh")
	body := fmt.Sprintf("#!/bin/sh\nsleep %f\necho simulated output\nexit 0\n", delay.Seconds())
	require.NoError(t, os.WriteFile(path, []byte(body), 0o755))
	return path
}

func newHarness(t *testing.T, njobs int, fail bool) (*runner.Runner, *jobqueue.Dirs, *config.Config) {
	t.Helper()
	root := t.TempDir()
	dirs, err := jobqueue.New(
		filepath.Join(root, "queued"),
		filepath.Join(root, "running"),
		filepath.Join(root, "completed"),
		filepath.Join(root, "failed"),
		filepath.Join(root, "canceled"),
	)
	require.NoError(t, err)
	require.NoError(t, dirs.EnsureAll())

	cfg := &config.Config{
		NJobs:         njobs,
		SimulatorPath: fakeSimulator(t, fail),
		SimsDir:       filepath.Join(root, "sims"),
	}
	require.NoError(t, os.MkdirAll(cfg.SimsDir, 0o755))

	return runner.New(dirs, cfg, nil), dirs, cfg
}

func testHandoff(jobid int, cfg *config.Config) control.Handoff {
	return control.Handoff{
		JobID:       jobid,
		User:        "me",
		Simulation:  map[string]any{"steps": float64(3)},
		Permissions: "public",
		Outfile:     cfg.OutputPath(jobid),
	}
}

func TestRunSpawnToComplete(t *testing.T) {
	// End to end: enqueue, admit, run, land in completed.
	r, dirs, cfg := newHarness(t, 1, false)

	err := r.Run(context.Background(), testHandoff(0, cfg))
	require.NoError(t, err)

	job, loadErr := dirs.Load(model.StatusCompleted, 0)
	require.NoError(t, loadErr)
	require.NotNil(t, job.ReturnCode)
	assert.Equal(t, 0, *job.ReturnCode)
	assert.Equal(t, "me", job.User)
	assert.Equal(t, 0, job.JobID)
	require.NotNil(t, job.Out)
	assert.Contains(t, *job.Out, "simulated output")
	require.NotNil(t, job.Err)
}

func TestRunSpawnToFailed(t *testing.T) {
	r, dirs, cfg := newHarness(t, 1, true)

	err := r.Run(context.Background(), testHandoff(1, cfg))
	require.NoError(t, err)

	job, loadErr := dirs.Load(model.StatusFailed, 1)
	require.NoError(t, loadErr)
	require.NotNil(t, job.ReturnCode)
	assert.Equal(t, 1, *job.ReturnCode)
	require.NotNil(t, job.Err)
	assert.Contains(t, *job.Err, "boom")
}

func TestRunSelfCancelsWhenDequeuedOutOfBand(t *testing.T) {
	// NJobs=0 means the job is never admitted; removing its queued file
	// out-of-band must be observed.
	r, dirs, cfg := newHarness(t, 0, false)

	done := make(chan error, 1)
	go func() {
		done <- r.Run(context.Background(), testHandoff(2, cfg))
	}()

	require.Eventually(t, func() bool {
		return dirs.Exists(model.StatusQueued, 2)
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, dirs.Remove(model.StatusQueued, 2))

	select {
	case err := <-done:
		assert.True(t, runner.IsSelfCancel(err))
	case <-time.After(2 * time.Second):
		t.Fatal("runner did not observe self-cancellation in time")
	}

	job, loadErr := dirs.Load(model.StatusCanceled, 2)
	require.NoError(t, loadErr)
	require.NotNil(t, job.ReturnCode)
	assert.Equal(t, 1, *job.ReturnCode)
	assert.Nil(t, job.Out)
	require.NotNil(t, job.Err)
	assert.Contains(t, *job.Err, "removed from queue")
}

func TestRunNeverAdmitsAndContextCancellationStopsWait(t *testing.T) {
	r, dirs, cfg := newHarness(t, 0, false)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	err := r.Run(ctx, testHandoff(3, cfg))
	require.NoError(t, err)
	assert.True(t, dirs.Exists(model.StatusQueued, 3), "job stays queued when neither admitted nor removed")
}

func TestRunningJobCancelRaceNeverDuplicatesTerminalRecord(t *testing.T) {
	// A concurrent external cancel that removes running/<jobid>.json and
	// writes canceled/<jobid>.json while
	// the runner is mid-invoke must win outright: dispose must not
	// resurrect the running record and move it into completed/failed
	// alongside the canceled record cancel already wrote.
	r, dirs, cfg := newHarness(t, 1, false)
	cfg.SimulatorPath = slowFakeSimulator(t, 150*time.Millisecond)

	done := make(chan error, 1)
	go func() {
		done <- r.Run(context.Background(), testHandoff(4, cfg))
	}()

	require.Eventually(t, func() bool {
		return dirs.Exists(model.StatusRunning, 4)
	}, 2*time.Second, 5*time.Millisecond)

	// Simulate what internal/control.Cancel does to a running job's record
	// on disk: remove the running file, then write the patched record into
	// canceled, all while the runner's invoke is still in flight.
	job, err := dirs.Load(model.StatusRunning, 4)
	require.NoError(t, err)
	require.NoError(t, dirs.Remove(model.StatusRunning, 4))
	job.Cancel("Job was canceled externally", float64(time.Now().UnixNano())/1e9)
	require.NoError(t, dirs.Write(model.StatusCanceled, job))

	select {
	case runErr := <-done:
		assert.NoError(t, runErr)
	case <-time.After(2 * time.Second):
		t.Fatal("runner did not return after losing the disposition race")
	}

	assert.True(t, dirs.Exists(model.StatusCanceled, 4))
	assert.False(t, dirs.Exists(model.StatusCompleted, 4), "dispose must not resurrect the race-lost running record as completed")
	assert.False(t, dirs.Exists(model.StatusFailed, 4), "dispose must not resurrect the race-lost running record as failed")
	assert.False(t, dirs.Exists(model.StatusRunning, 4))
}
