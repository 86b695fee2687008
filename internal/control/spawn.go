package control

// SpawnRequest carries the inputs to Spawn. Simulation is typed any
// (rather than map[string]any) so the "simulation must be a mapping"
// precondition can be checked against a caller who passed something else
// entirely, such as a bare string.
type SpawnRequest struct {
	Simulation  any
	User        string
	Token       string
	Name        string
	Project     string
	Permissions string
	Post        []string
	Notify      []string
	Interactive bool
	ReturnPID   bool
}

// SpawnResult is Spawn's (jobid, ok, message, pid) result. PID is always
// populated when a runner was launched; callers that did not set ReturnPID
// simply ignore it.
type SpawnResult struct {
	JobID   int
	OK      bool
	Message string
	PID     int
}

func rejectSpawn(msg string) SpawnResult {
	return SpawnResult{JobID: -1, OK: false, Message: msg}
}

// Spawn validates the request's preconditions in order, allocates a job
// id, hands off the validated request to a detached runner, optionally
// registers an alias, and reports success.
func Spawn(deps *Deps, req SpawnRequest) SpawnResult {
	simMap, isMapping := req.Simulation.(map[string]any)
	if !isMapping {
		return rejectSpawn("Simulation must be dict (i.e. mapping object) currently.")
	}
	permissions := req.Permissions
	if permissions == "" {
		permissions = "public"
	}
	if permissions != "public" {
		return rejectSpawn("Non-public permissions are not supported yet.")
	}
	if len(req.Post) > 0 {
		return rejectSpawn("Post-processing activities are not supported yet.")
	}
	if len(req.Notify) > 0 {
		return rejectSpawn("Notifications are not supported yet.")
	}
	if req.Interactive {
		return rejectSpawn("Interactive simulation spawning is not supported yet.")
	}

	valid, ok, msg := deps.Verifier.VerifyUser(req.User, req.Token)
	if !ok || !valid {
		return rejectSpawn(msg)
	}

	jobid, err := deps.Allocator.NextJobID()
	if err != nil {
		return rejectSpawn("internal error: could not allocate job id: " + err.Error())
	}

	handoff := Handoff{
		JobID:       jobid,
		User:        req.User,
		Project:     req.Project,
		Simulation:  simMap,
		Permissions: permissions,
		Notify:      req.Notify,
		Post:        req.Post,
		Interactive: req.Interactive,
		Outfile:     deps.Config.OutputPath(jobid),
	}
	handoffPath, err := WriteHandoff(deps.Config.JobsDir, handoff)
	if err != nil {
		return rejectSpawn("internal error: could not stage runner handoff: " + err.Error())
	}

	pid, err := deps.Launcher.Launch(jobid, handoffPath)
	if err != nil {
		return rejectSpawn("internal error: could not launch runner: " + err.Error())
	}

	if req.Name != "" || req.Project != "" {
		deps.Aliases.Register(jobid, req.User, req.Name, req.Project)
	}

	return SpawnResult{JobID: jobid, OK: true, Message: "Simulation spawned", PID: pid}
}
