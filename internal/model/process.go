package model

import "time"

// RunReason classifies why an ExecutionProcess was spawned.
type RunReason string

const (
	RunSetupScript   RunReason = "setup-script"
	RunCodingAgent   RunReason = "coding-agent"
	RunCleanupScript RunReason = "cleanup-script"
	RunDevServer     RunReason = "dev-server"
	RunGHCliSetup    RunReason = "gh-cli-setup"
)

// ProcessStatus is the lifecycle status of an ExecutionProcess.
type ProcessStatus string

const (
	ProcessRunning   ProcessStatus = "running"
	ProcessCompleted ProcessStatus = "completed"
	ProcessFailed    ProcessStatus = "failed"
	ProcessKilled    ProcessStatus = "killed"
)

// ActionKind discriminates the ExecutorAction tagged union.
type ActionKind string

const (
	ActionInitialRequest  ActionKind = "initial_request"
	ActionFollowUpRequest ActionKind = "follow_up_request"
	ActionScriptRequest   ActionKind = "script_request"
)

// ExecutorAction is a tagged union describing what was asked of the executor
// for a given ExecutionProcess. Exactly one of the embedded fields is
// meaningful, selected by Kind.
type ExecutorAction struct {
	Kind ActionKind

	// Kind == ActionInitialRequest
	Initial *InitialRequest
	// Kind == ActionFollowUpRequest
	FollowUp *FollowUpRequest
	// Kind == ActionScriptRequest
	Script *ScriptRequest
}

// InitialRequest starts a brand new agent conversation.
type InitialRequest struct {
	Prompt     string
	Profile    ExecutorProfile
	WorkingDir string

	// RequestID, when non-empty, makes this call idempotent: a repeated
	// StartInitial call carrying the same RequestID returns the process id
	// from the first call instead of spawning again.
	RequestID string
}

// FollowUpRequest resumes an existing agent conversation via its native
// session id (when the executor supports continuation).
type FollowUpRequest struct {
	Prompt    string
	SessionID string
	Profile   ExecutorProfile

	// RequestID, when non-empty, makes this call idempotent: a repeated
	// FollowUp call carrying the same RequestID returns the process id from
	// the first call instead of spawning again.
	RequestID string
}

// ScriptRequest runs a setup/cleanup/dev-server script in a given context.
type ScriptRequest struct {
	Script  string
	Context string
}

// NextAction is advisory metadata about what should happen after this
// process, surfaced to clients via a normalized next_action entry.
type NextAction struct {
	Failed        bool
	ProcessCount  int
	NeedsSetup    bool
}

// ExecutionProcess is one spawned child under a Session or script context.
type ExecutionProcess struct {
	ID            string
	SessionID     string // empty for setup/cleanup scripts not tied to a session
	AttemptID     string
	RunReason     RunReason
	Status        ProcessStatus
	ExitCode      *int
	TerminationSignal *string
	StartedAt     time.Time
	CompletedAt   *time.Time
	Dropped       bool
	SoftDeleted   bool
	Action        ExecutorAction
	NextAction    *NextAction
}

// IsRunning reports whether the process is still executing.
func (p *ExecutionProcess) IsRunning() bool {
	return p.Status == ProcessRunning
}
