// Package admission implements the bounded-concurrency FIFO admission
// policy. It is intentionally decentralized: there is no scheduler process,
// only a rule every runner evaluates against its own id and the current
// contents of the queued directory.
package admission

import (
	"fixiebatch/internal/jobqueue"
	"fixiebatch/internal/model"
)

// Eligible evaluates the admission rule for jobid against the current
// snapshot of the queued directory: jobid is admitted when it is among the
// n smallest ids currently queued. present reports whether jobid appears in
// the queue at all; when present is false, the caller (the runner's wait
// loop) must self-cancel rather than keep polling, since its queue file
// was removed out-of-band.
func Eligible(dirs *jobqueue.Dirs, jobid int, n int) (eligible bool, present bool, err error) {
	ids, err := dirs.SortedIDs(model.StatusQueued)
	if err != nil {
		return false, false, err
	}

	present = false
	for _, id := range ids {
		if id == jobid {
			present = true
			break
		}
	}
	if !present {
		return false, false, nil
	}

	if n < 0 {
		n = 0
	}
	head := ids
	if len(head) > n {
		head = head[:n]
	}
	for _, id := range head {
		if id == jobid {
			return true, true, nil
		}
	}
	return false, true, nil
}
