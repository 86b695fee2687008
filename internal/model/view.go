package model

import "encoding/json"

// JobView is the query-time representation of a job: the stored record plus
// the status derived from whichever directory it was found in. Status is
// never persisted on disk (membership in a status directory is the status),
// so it only exists on this view type, attached at read time.
type JobView struct {
	Job
	Status Status `json:"status"`
}

// MarshalJSON ensures Notify and Post serialize as [] rather than null when
// nil.
func (v JobView) MarshalJSON() ([]byte, error) {
	type alias struct {
		Job
		Status Status `json:"status"`
	}
	a := alias{Job: v.Job, Status: v.Status}
	a.Notify = nilToEmpty(a.Notify)
	a.Post = nilToEmpty(a.Post)
	return json.Marshal(a)
}

// nilToEmpty returns s if non-nil, or an initialized empty slice of the same
// type. This ensures JSON serialization produces [] rather than null.
func nilToEmpty[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
