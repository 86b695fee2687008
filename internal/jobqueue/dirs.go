// Package jobqueue implements the five status directories: queued, running,
// completed, failed, and canceled. Each directory is a set of
// "<jobid>.json" files; membership in a directory IS the job's status.
// There is no separately stored status field.
package jobqueue

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"fixiebatch/internal/model"
)

// ErrNotFound is returned when a job id is not present in the requested
// status directory (or, for Lookup, in any status directory).
var ErrNotFound = errors.New("jobqueue: job not found")

// retryAttempts and retryDelay bound the empty-read retry loop used by
// Load. Readers can observe a record mid-write as an existing-but-empty
// file; bounding the retries lets a genuinely corrupt (permanently empty)
// file fail fast instead of hanging.
const (
	retryAttempts = 5
	retryDelay    = 10 * time.Millisecond
)

// Dirs holds the five status directory paths and the operations that treat
// each one as a set of job ids.
type Dirs struct {
	paths map[model.Status]string
}

// New constructs a Dirs from the five paths, which must be pairwise
// distinct. It does not create the directories; callers should call
// EnsureAll first (or use config.Config.Dirs, which does).
func New(queued, running, completed, failed, canceled string) (*Dirs, error) {
	paths := map[model.Status]string{
		model.StatusQueued:    queued,
		model.StatusRunning:   running,
		model.StatusCompleted: completed,
		model.StatusFailed:    failed,
		model.StatusCanceled:  canceled,
	}
	seen := make(map[string]model.Status, len(paths))
	for status, p := range paths {
		if p == "" {
			return nil, fmt.Errorf("jobqueue: %s directory path must not be empty", status)
		}
		clean := filepath.Clean(p)
		if other, dup := seen[clean]; dup {
			return nil, fmt.Errorf("jobqueue: %s and %s must have distinct directory paths, both got %q", other, status, p)
		}
		seen[clean] = status
	}
	return &Dirs{paths: paths}, nil
}

// EnsureAll creates all five directories (and any missing parents) with
// mode 0o755 if they do not already exist.
func (d *Dirs) EnsureAll() error {
	for status, p := range d.paths {
		if err := os.MkdirAll(p, 0o755); err != nil {
			return fmt.Errorf("jobqueue: create %s directory %q: %w", status, p, err)
		}
	}
	return nil
}

// Root returns the directory path backing status.
func (d *Dirs) Root(status model.Status) string {
	return d.paths[status]
}

// Path returns the on-disk path for jobid within status,
// "<dir>/<jobid>.json".
func (d *Dirs) Path(status model.Status, jobid int) string {
	return filepath.Join(d.paths[status], strconv.Itoa(jobid)+".json")
}

// IDs enumerates the job ids present in status by reading its directory and
// stripping the ".json" suffix from each filename. Non-conforming filenames
// (no ".json" suffix, or a non-integer stem) are ignored rather than
// treated as an error.
func (d *Dirs) IDs(status model.Status) ([]int, error) {
	entries, err := os.ReadDir(d.paths[status])
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("jobqueue: list %s: %w", status, err)
	}
	ids := make([]int, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(name, ".json") {
			continue
		}
		stem := strings.TrimSuffix(name, ".json")
		id, err := strconv.Atoi(stem)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// SortedIDs returns IDs(status) sorted ascending. The admission controller
// relies on ascending order over monotone job ids to get FIFO semantics.
func (d *Dirs) SortedIDs(status model.Status) ([]int, error) {
	ids, err := d.IDs(status)
	if err != nil {
		return nil, err
	}
	sort.Ints(ids)
	return ids, nil
}

// Write creates "<jobid>.json" in status with job's encoded contents. Used
// for the initial write into the queued directory and for the cancel paths
// that compose a fresh canceled record; lifecycle transitions between
// existing records go through Move.
func (d *Dirs) Write(status model.Status, job *model.Job) error {
	data, err := job.Encode()
	if err != nil {
		return err
	}
	path := d.Path(status, job.JobID)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("jobqueue: write %s: %w", path, err)
	}
	return nil
}

// Overwrite rewrites jobid's already-existing record in status in place. It
// fails with ErrNotFound rather than recreating the file if the record has
// been removed out from under it, e.g. by a concurrent external cancel
// that has already claimed the job. The runner's promote and dispose steps
// use this instead of Write for their pre-Move patches, so a runner racing
// a cancel can never resurrect a record cancel has already removed: a
// record must appear in at most one status directory, never in both
// canceled and a terminal directory the runner writes after losing the
// race.
func (d *Dirs) Overwrite(status model.Status, job *model.Job) error {
	data, err := job.Encode()
	if err != nil {
		return err
	}
	path := d.Path(status, job.JobID)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ErrNotFound
		}
		return fmt.Errorf("jobqueue: overwrite %s: %w", path, err)
	}
	defer f.Close()
	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("jobqueue: overwrite %s: %w", path, err)
	}
	return nil
}

// Move atomically renames jobid's record from one status directory to
// another. Rename, unlike a write-new-then-remove-old sequence, closes the
// window where a concurrent reader could observe the record in neither
// directory. If the source has already vanished (a concurrent cancel won
// the race between Overwrite and Move), Move returns ErrNotFound rather
// than a bare rename failure, so callers can distinguish "lost the race"
// from a real filesystem error.
func (d *Dirs) Move(jobid int, from, to model.Status) error {
	src := d.Path(from, jobid)
	dst := d.Path(to, jobid)
	if err := os.Rename(src, dst); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("jobqueue: move job %d from %s to %s: %w", jobid, from, to, ErrNotFound)
		}
		return fmt.Errorf("jobqueue: move job %d from %s to %s: %w", jobid, from, to, err)
	}
	return nil
}

// Remove deletes jobid's record from status. Used by the external-cancel
// path, which removes the source record itself rather than going through
// Move since the canceled record's contents differ from what is on disk
// (the cancellation patch is applied first).
func (d *Dirs) Remove(status model.Status, jobid int) error {
	if err := os.Remove(d.Path(status, jobid)); err != nil {
		return fmt.Errorf("jobqueue: remove job %d from %s: %w", jobid, status, err)
	}
	return nil
}

// Load reads and decodes jobid's record from status, retrying on an empty
// read (the writer may have created the file but not yet flushed its
// contents). Returns ErrNotFound if the file does not exist.
func (d *Dirs) Load(status model.Status, jobid int) (*model.Job, error) {
	path := d.Path(status, jobid)
	var lastErr error
	for attempt := 0; attempt < retryAttempts; attempt++ {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, ErrNotFound
			}
			return nil, fmt.Errorf("jobqueue: read %s: %w", path, err)
		}
		job, err := model.Decode(data)
		if err == nil {
			return job, nil
		}
		if !errors.Is(err, model.ErrEmptyRead) {
			return nil, err
		}
		lastErr = err
		time.Sleep(retryDelay)
	}
	return nil, fmt.Errorf("jobqueue: %s/%d.json stayed empty after %d attempts: %w", status, jobid, retryAttempts, lastErr)
}

// Exists reports whether jobid has a record in status, without decoding it.
func (d *Dirs) Exists(status model.Status, jobid int) bool {
	_, err := os.Stat(d.Path(status, jobid))
	return err == nil
}

// Lookup probes hint first, then falls back to scanning every other status
// in the canonical order; query's cross-directory join uses it with the
// status that produced each candidate id as the hint. It returns the
// decoded job, the status it was found in, and ErrNotFound if no directory
// holds the id. Disjoint residency means at most one of these probes should
// ever succeed; Lookup does not itself re-verify disjointness across the
// remaining directories once it finds a hit.
func (d *Dirs) Lookup(hint model.Status, jobid int) (*model.Job, model.Status, error) {
	order := make([]model.Status, 0, len(model.Statuses))
	if hint.Valid() {
		order = append(order, hint)
	}
	for _, s := range model.Statuses {
		if s != hint {
			order = append(order, s)
		}
	}
	for _, status := range order {
		job, err := d.Load(status, jobid)
		if err == nil {
			return job, status, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, "", err
		}
	}
	return nil, "", ErrNotFound
}
