// Package runner implements the per-job supervisor: a detached process that
// owns one job's entire on-disk lifecycle, from the initial queued record
// through admission, simulator invocation, and terminal disposition.
package runner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"fixiebatch/internal/admission"
	"fixiebatch/internal/config"
	"fixiebatch/internal/control"
	"fixiebatch/internal/envutil"
	"fixiebatch/internal/jobqueue"
	"fixiebatch/internal/logging"
	"fixiebatch/internal/model"
)

// pollInterval is the admission wait loop's tick. Admission latency is on
// the order of this interval.
const pollInterval = 100 * time.Millisecond

// Runner supervises a single job from enqueue through terminal disposition.
type Runner struct {
	Dirs   *jobqueue.Dirs
	Config *config.Config
	Log    *logging.Logger

	// now, when non-nil, replaces the wall clock; New leaves it nil and
	// Runner falls back to time.Now.
	now func() time.Time
}

// New constructs a Runner over dirs/cfg, logging through log (or a silent
// logger if log is nil).
func New(dirs *jobqueue.Dirs, cfg *config.Config, log *logging.Logger) *Runner {
	if log == nil {
		log = logging.NewSilent()
	}
	return &Runner{Dirs: dirs, Config: cfg, Log: log}
}

func (r *Runner) clock() time.Time {
	if r.now != nil {
		return r.now()
	}
	return time.Now()
}

func nowSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

// Run executes the full supervisor contract for the job described by
// handoff, blocking until the job reaches a terminal state. It returns a
// non-nil error only for hard runner failures, none of which are expected
// in normal operation; even simulator failure is a recorded outcome, not a
// runner error. A return value satisfying IsSelfCancel indicates the job
// self-canceled, which the CLI entry point turns into a non-zero process
// exit.
func (r *Runner) Run(ctx context.Context, handoff control.Handoff) error {
	job, err := r.enqueue(handoff)
	if err != nil {
		return err
	}

	admitted, interrupted, err := r.waitForAdmission(ctx, job.JobID)
	if err != nil {
		return err
	}
	if interrupted {
		// The process is shutting down, not the job being canceled. Leave
		// the queued record in place: a fresh runner (or a human re-running
		// this subcommand) can pick the job back up by reading the
		// directories.
		return nil
	}
	if !admitted {
		return r.selfCancel(job)
	}

	job, promoted, err := r.promote(job)
	if err != nil {
		return err
	}
	if !promoted {
		// An external cancel removed the queued record between admission
		// and promotion and has already written (or is about to write) the
		// authoritative canceled record itself; this runner must not also
		// fabricate a running/terminal record for the same job id.
		return nil
	}

	r.invoke(ctx, job)

	return r.dispose(job)
}

// enqueue writes the initial record with queue_starttime = now, pid = self,
// to queued/<jobid>.json.
func (r *Runner) enqueue(h control.Handoff) (*model.Job, error) {
	job := &model.Job{
		JobID:          h.JobID,
		User:           h.User,
		Project:        h.Project,
		Simulation:     h.Simulation,
		Interactive:    h.Interactive,
		Notify:         h.Notify,
		Post:           h.Post,
		Permissions:    model.NewStringPermissions(h.Permissions),
		Outfile:        h.Outfile,
		PID:            os.Getpid(),
		QueueStartTime: nowSeconds(r.clock()),
	}
	if err := r.Dirs.Write(model.StatusQueued, job); err != nil {
		return nil, fmt.Errorf("runner: enqueue job %d: %w", job.JobID, err)
	}
	r.Log.Info().Int("jobid", job.JobID).Msg("runner: enqueued")
	return job, nil
}

// waitForAdmission polls the queued directory until jobid is among the N
// smallest ids (admitted), or jobid disappears from the queue entirely
// (self-cancel). ctx cancellation ends the wait without admitting or
// self-canceling; see Run's interrupted handling.
func (r *Runner) waitForAdmission(ctx context.Context, jobid int) (admitted bool, interrupted bool, err error) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		eligible, present, err := admission.Eligible(r.Dirs, jobid, r.Config.NJobs)
		if err != nil {
			return false, false, fmt.Errorf("runner: poll admission for job %d: %w", jobid, err)
		}
		if eligible {
			return true, false, nil
		}
		if !present {
			return false, false, nil
		}
		select {
		case <-ctx.Done():
			return false, true, nil
		case <-ticker.C:
		}
	}
}

// errSelfCanceled signals the CLI entry point that the runner exited via
// self-cancellation and should exit the process non-zero.
var errSelfCanceled = fmt.Errorf("runner: self-canceled")

// IsSelfCancel reports whether err is the sentinel Run returns after a
// self-cancellation, distinguishing it from a genuine runner failure for
// callers that need to choose an exit code.
func IsSelfCancel(err error) bool {
	return err == errSelfCanceled
}

// selfCancel handles the runner discovering its own queue file was removed
// out-of-band: it writes its own canceled record.
func (r *Runner) selfCancel(job *model.Job) error {
	now := nowSeconds(r.clock())
	job.Cancel("Job canceled itself after jobfile was removed from queue", now)
	if err := r.Dirs.Write(model.StatusCanceled, job); err != nil {
		return fmt.Errorf("runner: self-cancel job %d: %w", job.JobID, err)
	}
	r.Log.Warn().Int("jobid", job.JobID).Msg("runner: self-canceled, queue file vanished")
	return errSelfCanceled
}

// promote sets queue_endtime and moves the record from queued to running.
// It patches the queued record in place with Overwrite rather than Write:
// if a concurrent external cancel has already removed queued/<jobid>.json,
// Overwrite (and, failing that, Move) returns jobqueue.ErrNotFound instead
// of recreating the file, and promote reports promoted=false so Run leaves
// disposition to the cancel that won the race.
func (r *Runner) promote(job *model.Job) (updated *model.Job, promoted bool, err error) {
	now := nowSeconds(r.clock())
	job.QueueEndTime = &now
	if err := r.Dirs.Overwrite(model.StatusQueued, job); err != nil {
		if errors.Is(err, jobqueue.ErrNotFound) {
			r.Log.Warn().Int("jobid", job.JobID).Msg("runner: queued record vanished before promotion, external cancel won the race")
			return job, false, nil
		}
		return nil, false, fmt.Errorf("runner: patch queue_endtime for job %d: %w", job.JobID, err)
	}
	if err := r.Dirs.Move(job.JobID, model.StatusQueued, model.StatusRunning); err != nil {
		if errors.Is(err, jobqueue.ErrNotFound) {
			r.Log.Warn().Int("jobid", job.JobID).Msg("runner: queued record vanished before promotion, external cancel won the race")
			return job, false, nil
		}
		return nil, false, fmt.Errorf("runner: promote job %d to running: %w", job.JobID, err)
	}
	r.Log.Info().Int("jobid", job.JobID).Msg("runner: promoted to running")
	return job, true, nil
}

// invoke runs the simulator against the job's payload, capturing exit code
// and stdio. Non-zero exit is not treated as fatal to the runner itself;
// it is recorded on job and disposed of by dispose.
func (r *Runner) invoke(ctx context.Context, job *model.Job) {
	start := r.clock()
	startSeconds := nowSeconds(start)
	job.StartTime = &startSeconds

	inputPath, cleanup, err := writeSimulationInput(job)
	if err != nil {
		r.recordInvocationFailure(job, err)
		return
	}
	defer cleanup()

	cmd := exec.CommandContext(ctx, r.Config.SimulatorPath, "--input", inputPath, "--output", job.Outfile)
	cmd.Env = envutil.FilteredEnv()
	cmd.Cancel = func() error {
		if cmd.Process != nil {
			return cmd.Process.Signal(syscall.SIGTERM)
		}
		return nil
	}
	cmd.WaitDelay = 10 * time.Second

	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()

	endSeconds := nowSeconds(r.clock())
	job.EndTime = &endSeconds

	exitCode := 0
	if runErr != nil {
		if exitErr, ok := runErr.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			exitCode = -1
		}
	}
	out := stdout.String()
	errOut := stderr.String()
	job.ReturnCode = &exitCode
	job.Out = &out
	job.Err = &errOut

	r.Log.Info().Int("jobid", job.JobID).Int("returncode", exitCode).Msg("runner: simulator exited")
}

// recordInvocationFailure records a failure that occurred before the
// simulator could even be started (e.g. the input payload could not be
// serialized), so the job still reaches a terminal state with a non-zero
// returncode rather than hanging.
func (r *Runner) recordInvocationFailure(job *model.Job, err error) {
	endSeconds := nowSeconds(r.clock())
	job.EndTime = &endSeconds
	rc := -1
	job.ReturnCode = &rc
	msg := err.Error()
	job.Err = &msg
	r.Log.Error().Int("jobid", job.JobID).Err(err).Msg("runner: failed to invoke simulator")
}

// writeSimulationInput serializes job.Simulation to a temp file the
// simulator reads from, since the simulator is an opaque external binary
// invoked by argv rather than over stdin.
func writeSimulationInput(job *model.Job) (path string, cleanup func(), err error) {
	dir, err := os.MkdirTemp("", fmt.Sprintf("fixiebatch-job-%d-", job.JobID))
	if err != nil {
		return "", func() {}, fmt.Errorf("create simulation input dir: %w", err)
	}
	data, err := json.Marshal(job.Simulation)
	if err != nil {
		os.RemoveAll(dir)
		return "", func() {}, fmt.Errorf("encode simulation input: %w", err)
	}
	path = filepath.Join(dir, "simulation.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		os.RemoveAll(dir)
		return "", func() {}, fmt.Errorf("write simulation input: %w", err)
	}
	return path, func() { os.RemoveAll(dir) }, nil
}

// dispose moves the record to completed or failed depending on returncode.
// Like promote, it patches the running record in place with Overwrite
// rather than Write: if a concurrent external cancel has already removed
// running/<jobid>.json and written its own authoritative canceled record,
// Overwrite (and, failing that, Move) returns jobqueue.ErrNotFound instead
// of recreating the file, and dispose simply returns without writing into
// completed/failed, rather than resurrecting a second terminal record for
// the same job id.
func (r *Runner) dispose(job *model.Job) error {
	dst := model.StatusFailed
	if job.ReturnCode != nil && *job.ReturnCode == 0 {
		dst = model.StatusCompleted
	}
	if err := r.Dirs.Overwrite(model.StatusRunning, job); err != nil {
		if errors.Is(err, jobqueue.ErrNotFound) {
			r.Log.Warn().Int("jobid", job.JobID).Msg("runner: running record vanished before disposition, external cancel won the race")
			return nil
		}
		return fmt.Errorf("runner: patch disposition for job %d: %w", job.JobID, err)
	}
	if err := r.Dirs.Move(job.JobID, model.StatusRunning, dst); err != nil {
		if errors.Is(err, jobqueue.ErrNotFound) {
			r.Log.Warn().Int("jobid", job.JobID).Msg("runner: running record vanished before disposition, external cancel won the race")
			return nil
		}
		return fmt.Errorf("runner: dispose job %d to %s: %w", job.JobID, dst, err)
	}
	r.Log.Info().Int("jobid", job.JobID).Str("status", string(dst)).Msg("runner: disposed")
	return nil
}
