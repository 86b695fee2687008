package control

import (
	"errors"
	"fmt"
	"sort"

	"fixiebatch/internal/jobqueue"
	"fixiebatch/internal/model"
)

// QueryRequest carries the filters for Query. Each filter field is typed
// any so it can carry a single value, a slice of values, or nil ("no
// constraint"); Statuses additionally accepts the string "all".
type QueryRequest struct {
	Statuses any
	Users    any
	Jobs     any
	Projects any
}

// QueryResult is Query's (data, ok, message) result.
type QueryResult struct {
	Data    []model.JobView
	OK      bool
	Message string
}

func rejectQuery(msg string) QueryResult {
	return QueryResult{OK: false, Message: msg}
}

// Query is a read-only scan across the status directories. Values within a
// filter field are ORed; the fields themselves are ANDed. Results are
// ordered by ascending job id, each carrying the status directory it was
// found in.
func Query(deps *Deps, req QueryRequest) QueryResult {
	users, usersErr := normalizeStringSet(req.Users)
	if usersErr != "" {
		return rejectQuery(usersErr)
	}
	projects, projectsErr := normalizeStringSet(req.Projects)
	if projectsErr != "" {
		return rejectQuery(projectsErr)
	}
	statuses, statusErr := normalizeStatuses(req.Statuses)
	if statusErr != "" {
		return rejectQuery(statusErr)
	}

	sids := make(map[int]model.Status)
	for _, status := range statuses {
		ids, err := deps.Dirs.IDs(status)
		if err != nil {
			return rejectQuery("internal error: " + err.Error())
		}
		for _, id := range ids {
			if prev, dup := sids[id]; dup {
				// A record must live in exactly one status directory; two
				// hits for the same id means the store is corrupt.
				return rejectQuery(fmt.Sprintf("job %d found in both %s and %s", id, prev, status))
			}
			sids[id] = status
		}
	}

	jids, jidsErr := resolveJobsFilter(deps, req.Jobs)
	if jidsErr != "" {
		return rejectQuery(jidsErr)
	}

	var candidates []int
	for id := range sids {
		if jids == nil || jids[id] {
			candidates = append(candidates, id)
		}
	}
	sort.Ints(candidates)

	var out []model.JobView
	for _, id := range candidates {
		job, _, err := deps.Dirs.Lookup(sids[id], id)
		if err != nil {
			if errors.Is(err, jobqueue.ErrNotFound) {
				continue
			}
			return rejectQuery("internal error: " + err.Error())
		}
		if users != nil && !users[job.User] {
			continue
		}
		if projects != nil && !projects[job.Project] {
			continue
		}
		out = append(out, model.JobView{Job: *job, Status: sids[id]})
	}

	return QueryResult{Data: out, OK: true, Message: "Jobs queried"}
}

// normalizeStringSet accepts nil (no constraint), a single string, or a
// slice of strings. Any other element type is rejected with the element's
// formatted representation in the message.
func normalizeStringSet(value any) (set map[string]bool, errMsg string) {
	if value == nil {
		return nil, ""
	}
	switch v := value.(type) {
	case string:
		return map[string]bool{v: true}, ""
	case []string:
		set := make(map[string]bool, len(v))
		for _, s := range v {
			set[s] = true
		}
		return set, ""
	case []any:
		set := make(map[string]bool, len(v))
		for _, e := range v {
			s, ok := e.(string)
			if !ok {
				return nil, fmt.Sprintf("%v is not a string", e)
			}
			set[s] = true
		}
		return set, ""
	default:
		return nil, fmt.Sprintf("%v is not a string", v)
	}
}

// normalizeStatuses expands "all" (the default) to every status; otherwise
// a single value or slice of values is accepted, each of which must name a
// known status.
func normalizeStatuses(value any) ([]model.Status, string) {
	if value == nil {
		return model.Statuses, ""
	}
	var raw []string
	switch v := value.(type) {
	case string:
		if v == "all" {
			return model.Statuses, ""
		}
		raw = []string{v}
	case []string:
		raw = v
	case []any:
		for _, e := range v {
			s, ok := e.(string)
			if !ok {
				return nil, fmt.Sprintf("%v is not a valid status", e)
			}
			raw = append(raw, s)
		}
	default:
		return nil, fmt.Sprintf("%v is not a valid status", v)
	}

	seen := make(map[model.Status]bool, len(raw))
	var statuses []model.Status
	for _, s := range raw {
		if s == "all" {
			return model.Statuses, ""
		}
		status := model.Status(s)
		if !status.Valid() {
			return nil, fmt.Sprintf("%s is not a valid status", s)
		}
		if !seen[status] {
			seen[status] = true
			statuses = append(statuses, status)
		}
	}
	return statuses, ""
}

// resolveJobsFilter treats nil as no constraint; otherwise each element is
// either an integer job id or a string resolved through the alias
// registry, and any other element type is rejected.
func resolveJobsFilter(deps *Deps, value any) (jids map[int]bool, errMsg string) {
	if value == nil {
		return nil, ""
	}

	var elems []any
	switch v := value.(type) {
	case []any:
		elems = v
	default:
		elems = []any{v}
	}

	jids = make(map[int]bool)
	for _, e := range elems {
		switch t := e.(type) {
		case int:
			jids[t] = true
		case string:
			for _, id := range deps.Aliases.JobIDsWithName(t) {
				jids[id] = true
			}
		default:
			return nil, fmt.Sprintf("type of job not reconized: %v %T", t, t)
		}
	}
	return jids, ""
}
