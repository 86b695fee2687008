package control

import (
	"errors"
	"fmt"
	"sort"
	"syscall"
	"time"

	"fixiebatch/internal/jobqueue"
	"fixiebatch/internal/model"
)

// CancelRequest carries the inputs to Cancel. Job is any to accept either
// an integer job id or a string alias name; an integer names exactly one
// job, a string resolves through the alias registry.
type CancelRequest struct {
	Job     any
	User    string
	Token   string
	Project string
}

// CancelResult is Cancel's (jobid, ok, message) result.
type CancelResult struct {
	JobID   int
	OK      bool
	Message string
}

func rejectCancel(jobid int, msg string) CancelResult {
	return CancelResult{JobID: jobid, OK: false, Message: msg}
}

// Cancel terminates a queued or running job owned by the requesting user:
// verify credentials, resolve the job reference to exactly one active id,
// check ownership, signal the runner, and replace the active record with a
// canceled one. The canceled record is written immediately rather than
// waiting for the signal to propagate, because the record is the
// authoritative state.
func Cancel(deps *Deps, req CancelRequest) CancelResult {
	valid, ok, msg := deps.Verifier.VerifyUser(req.User, req.Token)
	if !ok || !valid {
		return rejectCancel(-1, msg)
	}

	var candidates []int
	switch job := req.Job.(type) {
	case int:
		candidates = []int{job}
	case string:
		candidates = deps.Aliases.JobIDsFromAlias(req.User, job, req.Project)
	default:
		return rejectCancel(-1, fmt.Sprintf("type of job not reconized: %v %T", job, job))
	}

	active, err := activeJobIDSet(deps.Dirs)
	if err != nil {
		return rejectCancel(-1, "internal error: "+err.Error())
	}

	var matched []int
	for _, id := range candidates {
		if active[id] {
			matched = append(matched, id)
		}
	}
	sort.Ints(matched)

	switch len(matched) {
	case 0:
		return rejectCancel(-1, "No running or queued job found")
	case 1:
		// fall through
	default:
		return rejectCancel(-1, fmt.Sprintf("Too many jobids found! Candidates: %v", matched))
	}
	jobid := matched[0]

	record, foundStatus, err := locateActive(deps.Dirs, jobid)
	if err != nil {
		return rejectCancel(-1, "internal error: "+err.Error())
	}

	if record.User != req.User {
		return rejectCancel(jobid, "User did not start job, cannot cancel it!")
	}

	if err := syscall.Kill(record.PID, syscall.SIGTERM); err != nil && deps.Log != nil {
		deps.Log.Warn().Int("jobid", jobid).Int("pid", record.PID).Err(err).Msg("control: signal delivery to runner failed")
	}

	if err := deps.Dirs.Remove(foundStatus, jobid); err != nil {
		return rejectCancel(jobid, "internal error: "+err.Error())
	}

	now := float64(time.Now().UnixNano()) / 1e9
	record.Cancel("Job was canceled externally", now)

	if err := deps.Dirs.Write(model.StatusCanceled, record); err != nil {
		return rejectCancel(jobid, "internal error: "+err.Error())
	}

	return CancelResult{JobID: jobid, OK: true, Message: "Job canceled"}
}

// activeJobIDSet returns the union of queued and running job ids; only
// active jobs can be canceled.
func activeJobIDSet(dirs *jobqueue.Dirs) (map[int]bool, error) {
	set := make(map[int]bool)
	for _, status := range []model.Status{model.StatusQueued, model.StatusRunning} {
		ids, err := dirs.IDs(status)
		if err != nil {
			return nil, err
		}
		for _, id := range ids {
			set[id] = true
		}
	}
	return set, nil
}

// locateActive probes queued then running for jobid. Dirs.Load already
// implements the race-tolerant retry-on-empty-read this probe needs when
// the runner is mid-write.
func locateActive(dirs *jobqueue.Dirs, jobid int) (*model.Job, model.Status, error) {
	for _, status := range []model.Status{model.StatusQueued, model.StatusRunning} {
		job, err := dirs.Load(status, jobid)
		if err == nil {
			return job, status, nil
		}
		if !errors.Is(err, jobqueue.ErrNotFound) {
			return nil, "", err
		}
	}
	return nil, "", fmt.Errorf("jobqueue: job %d vanished from queued and running between the candidate scan and load", jobid)
}
