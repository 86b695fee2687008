package control

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// Handoff is the structured payload spawn passes to the detached runner
// subprocess. The runner subcommand reads this file once, at startup, to
// learn what job it is supervising, then writes the initial
// queued/<jobid>.json record itself.
type Handoff struct {
	JobID       int            `json:"jobid"`
	User        string         `json:"user"`
	Project     string         `json:"project"`
	Simulation  map[string]any `json:"simulation"`
	Permissions string         `json:"permissions"`
	Notify      []string       `json:"notify"`
	Post        []string       `json:"post"`
	Interactive bool           `json:"interactive"`
	Outfile     string         `json:"outfile"`
}

// handoffDir is the directory under a config's JobsDir that holds
// transient handoff files, one per spawned job.
func handoffDir(jobsDir string) string {
	return filepath.Join(jobsDir, "fixie", "handoff")
}

// WriteHandoff serializes h to a new file under jobsDir and returns its
// path. The filename is suffixed with a random UUID (github.com/google/uuid)
// so concurrent spawns of different jobs never collide even before jobid
// allocation would otherwise distinguish them.
func WriteHandoff(jobsDir string, h Handoff) (string, error) {
	dir := handoffDir(jobsDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("control: create handoff dir: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("%d-%s.json", h.JobID, uuid.NewString()))
	data, err := json.Marshal(h)
	if err != nil {
		return "", fmt.Errorf("control: marshal handoff: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", fmt.Errorf("control: write handoff %s: %w", path, err)
	}
	return path, nil
}

// ReadHandoff reads and decodes the handoff file at path.
func ReadHandoff(path string) (Handoff, error) {
	var h Handoff
	data, err := os.ReadFile(path)
	if err != nil {
		return h, fmt.Errorf("control: read handoff %s: %w", path, err)
	}
	if err := json.Unmarshal(data, &h); err != nil {
		return h, fmt.Errorf("control: decode handoff %s: %w", path, err)
	}
	return h, nil
}

// RemoveHandoff deletes the handoff file once the runner has consumed it.
// Failure to remove is not fatal to the job.
func RemoveHandoff(path string) {
	_ = os.Remove(path)
}
