package model

import "time"

// ExecutorProfile selects which agent adapter runs a Session, plus the
// model/reasoning overrides that adapter should apply. It generalizes the
// teacher's IterationContext.ModelOverride/ReasoningOverride fields into a
// first-class part of the Session, since the distilled spec references
// "executor profile (agent id + variant)" without defining its shape.
type ExecutorProfile struct {
	AgentID           string // e.g. "claude-code", "codex", "gemini"
	Variant           string // e.g. "default", "plan-only"
	ModelOverride     string
	ReasoningOverride string
}

// Session is one logical agent conversation attached to an attempt. It may
// span multiple ExecutionProcesses via follow-ups.
type Session struct {
	ID               string
	AttemptID        string
	Profile          ExecutorProfile
	NativeSessionID  string // agent-native session id for resume, if supported
	CreatedAt        time.Time
}
