// Package model provides the core domain types for the batch execution
// service: the job record and its lifecycle status.
package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Status represents the lifecycle state of a job. Status is never a field
// stored in a job record; it is derived from which status directory holds
// the record (see package jobqueue) and is only attached to the in-memory
// view returned by query-time operations.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCanceled  Status = "canceled"
)

// Statuses is the fixed set of all five lifecycle states, in the canonical
// order used for "all" expansion and iteration.
var Statuses = []Status{StatusQueued, StatusRunning, StatusCompleted, StatusFailed, StatusCanceled}

// Valid reports whether s is one of the five known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusQueued, StatusRunning, StatusCompleted, StatusFailed, StatusCanceled:
		return true
	}
	return false
}

// ErrEmptyRead is returned by Decode when the supplied bytes are empty or
// all-whitespace. Callers that read job files mid-write (the writer has
// created the file but not yet flushed its contents) should retry the read
// rather than treat this as a decode failure.
var ErrEmptyRead = errors.New("model: empty read, retry")

// Permissions models the job record's "permissions" field, which may be
// encoded on disk as either a bare string ("public") or a list of user
// names. This project only ever produces the string form, but Decode must
// tolerate either shape for forward/backward compatibility with records
// written by other producers.
type Permissions struct {
	raw    string
	asList []string
	isList bool
}

// NewStringPermissions constructs a Permissions value holding a bare string.
func NewStringPermissions(s string) Permissions {
	return Permissions{raw: s}
}

// String returns the permissions value as a string. If the underlying value
// is a list, the list is rendered as its first element, or "" if empty, so
// a list whose first element is "public" also renders as "public"; IsPublic
// is the check that tells the two shapes apart.
func (p Permissions) String() string {
	if p.isList {
		if len(p.asList) == 0 {
			return ""
		}
		return p.asList[0]
	}
	return p.raw
}

// IsPublic reports whether the permissions value is exactly the string
// "public", the only value the service accepts.
func (p Permissions) IsPublic() bool {
	return !p.isList && p.raw == "public"
}

func (p Permissions) MarshalJSON() ([]byte, error) {
	if p.isList {
		return json.Marshal(p.asList)
	}
	return json.Marshal(p.raw)
}

func (p *Permissions) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*p = Permissions{raw: s}
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*p = Permissions{asList: list, isList: true}
		return nil
	}
	return fmt.Errorf("model: permissions must be a string or list of strings")
}

// Job is the canonical on-disk representation of a single job record.
// Field presence is time-dependent: pointer fields are nil until the
// lifecycle stage that populates them is reached.
type Job struct {
	JobID          int             `json:"jobid"`
	User           string          `json:"user"`
	Project        string          `json:"project"`
	Simulation     map[string]any  `json:"simulation"`
	Interactive    bool            `json:"interactive"`
	Notify         []string        `json:"notify"`
	Post           []string        `json:"post"`
	Permissions    Permissions     `json:"permissions"`
	Outfile        string          `json:"outfile"`
	PID            int             `json:"pid"`
	QueueStartTime float64         `json:"queue_starttime"`
	QueueEndTime   *float64        `json:"queue_endtime,omitempty"`
	StartTime      *float64        `json:"starttime,omitempty"`
	EndTime        *float64        `json:"endtime,omitempty"`
	ReturnCode     *int            `json:"returncode,omitempty"`
	Out            *string         `json:"out,omitempty"`
	Err            *string         `json:"err,omitempty"`
}

// Clone returns a deep-enough copy of j suitable for mutation without
// aliasing the caller's pointers.
func (j *Job) Clone() *Job {
	c := *j
	if j.Notify != nil {
		c.Notify = append([]string(nil), j.Notify...)
	}
	if j.Post != nil {
		c.Post = append([]string(nil), j.Post...)
	}
	if j.Simulation != nil {
		sim := make(map[string]any, len(j.Simulation))
		for k, v := range j.Simulation {
			sim[k] = v
		}
		c.Simulation = sim
	}
	if j.QueueEndTime != nil {
		v := *j.QueueEndTime
		c.QueueEndTime = &v
	}
	if j.StartTime != nil {
		v := *j.StartTime
		c.StartTime = &v
	}
	if j.EndTime != nil {
		v := *j.EndTime
		c.EndTime = &v
	}
	if j.ReturnCode != nil {
		v := *j.ReturnCode
		c.ReturnCode = &v
	}
	if j.Out != nil {
		v := *j.Out
		c.Out = &v
	}
	if j.Err != nil {
		v := *j.Err
		c.Err = &v
	}
	return &c
}

// Cancel patches j in place with the disposition a canceled job must carry:
// queue_endtime and starttime are backfilled if absent, endtime is set to
// now, returncode is forced to 1, out is cleared, and err is set to reason.
// Both the external-cancel path and the runner's self-cancel path go through
// here so the two converge on identical canceled records.
func (j *Job) Cancel(reason string, now float64) {
	if j.QueueEndTime == nil {
		j.QueueEndTime = &now
	}
	if j.StartTime == nil {
		j.StartTime = &now
	}
	j.EndTime = &now
	rc := 1
	j.ReturnCode = &rc
	j.Out = nil
	errMsg := reason
	j.Err = &errMsg
}

// Encode serializes j as JSON with alphabetically sorted keys and a stable
// indent, so records stay diff-friendly. Go's encoding/json sorts map keys
// lexicographically, so Encode round-trips the struct through a map to get
// sorted output rather than the struct's declared field order.
func (j *Job) Encode() ([]byte, error) {
	raw, err := json.Marshal(j)
	if err != nil {
		return nil, fmt.Errorf("model: encode job %d: %w", j.JobID, err)
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("model: encode job %d: %w", j.JobID, err)
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", " ")
	if err := enc.Encode(m); err != nil {
		return nil, fmt.Errorf("model: encode job %d: %w", j.JobID, err)
	}
	return buf.Bytes(), nil
}

// Decode parses data into a Job. It returns ErrEmptyRead if data is empty or
// whitespace-only (a file may exist but be empty for a short window during
// creation) so that callers can retry rather than treat the read as a hard
// failure. Decode tolerates records missing fields introduced after the
// record was written.
func Decode(data []byte) (*Job, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ErrEmptyRead
	}
	var j Job
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("model: decode job: %w", err)
	}
	if j.QueueEndTime == nil {
		// Some historical records carry the field under the drifted name
		// "queued_endtime". Normalize to queue_endtime on read.
		var legacy struct {
			QueuedEndTime *float64 `json:"queued_endtime"`
		}
		if err := json.Unmarshal(data, &legacy); err == nil && legacy.QueuedEndTime != nil {
			j.QueueEndTime = legacy.QueuedEndTime
		}
	}
	return &j, nil
}
