// Package control implements the three control-plane operations the
// service exposes to callers: spawn, cancel, and query. Each is a pure
// function of its Deps and request, returning a (jobid_or_data, ok,
// message) result.
package control

import (
	"fixiebatch/internal/config"
	"fixiebatch/internal/jobqueue"
	"fixiebatch/internal/logging"
)

// RunnerLauncher is the detached-call collaborator: given a jobid and the
// path to its handoff file, it starts the runner subcommand as a child
// fully decoupled from spawn's lifetime and returns its pid.
type RunnerLauncher interface {
	Launch(jobid int, handoffPath string) (pid int, err error)
}

// Deps collects every collaborator the control-plane operations need.
// Passed explicitly rather than read from package globals so the
// operations stay testable with fakes.
type Deps struct {
	Config    *config.Config
	Dirs      *jobqueue.Dirs
	Verifier  UserVerifier
	Allocator JobIDAllocator
	Aliases   *AliasRegistry
	Launcher  RunnerLauncher
	Log       *logging.Logger
}
