package model

import "time"

// AttemptStatus is the state machine position of an Attempt, per the
// Attempt Orchestrator's transition diagram.
type AttemptStatus string

const (
	AttemptCreated    AttemptStatus = "created"
	AttemptSettingUp  AttemptStatus = "setting-up"
	AttemptReady      AttemptStatus = "ready"
	AttemptRunning    AttemptStatus = "running"
	AttemptIdle       AttemptStatus = "idle"
	AttemptCleaning   AttemptStatus = "cleaning"
	AttemptStopping   AttemptStatus = "stopping"
	AttemptStopped    AttemptStatus = "stopped"
	AttemptFailed     AttemptStatus = "failed"
	AttemptArchived   AttemptStatus = "archived"
)

// RepoBranch records the branch name materialized on one repo for an attempt.
type RepoBranch struct {
	RepoID string
	Branch string
}

// Attempt (aka Workspace in the UI) is one execution instance of a Task.
type Attempt struct {
	ID           string
	TaskID       string
	Branches     []RepoBranch
	BaseRef      string
	Status       AttemptStatus
	ContainerRef *string // non-nil iff the worktree set has been materialized
	CreatedAt    time.Time
	UpdatedAt    time.Time
	FailureSummary string
}

// Exists reports whether the attempt's worktree set is currently materialized.
func (a *Attempt) Exists() bool {
	return a.ContainerRef != nil
}

// MarkMaterialized records the container ref for a newly created worktree set.
func (a *Attempt) MarkMaterialized(ref string) {
	a.ContainerRef = &ref
}

// MarkRemoved clears the container ref, recording that the worktree set no
// longer exists on disk.
func (a *Attempt) MarkRemoved() {
	a.ContainerRef = nil
}
