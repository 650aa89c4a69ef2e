package model

import "time"

// ApprovalState is the lifecycle of an ApprovalRequest.
type ApprovalState string

const (
	ApprovalPending  ApprovalState = "pending"
	ApprovalApproved ApprovalState = "approved"
	ApprovalDenied   ApprovalState = "denied"
	ApprovalExpired  ApprovalState = "expired"
)

// ApprovalRequest gates a tool-use on a user decision, answered via an
// external endpoint and relayed to the child's stdin.
type ApprovalRequest struct {
	ID          string
	ProcessID   string
	ToolUseID   string
	Prompt      string
	ExpiresAt   *time.Time
	State       ApprovalState
	CreatedAt   time.Time
	DecidedAt   *time.Time
}
