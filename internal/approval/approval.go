// Package approval implements the Approval Coordinator (C6): a map from
// approval-id to pending decision state, correlated with the tool_use entry
// it gates and the process whose stdin the decision must be written to.
//
// Grounded on the teacher's judge.go insofar as both correlate an
// asynchronous agent signal with a caller-visible verdict, generalized here
// from "parse a verdict out of completed output" (judge.go is synchronous,
// called once per phase) to "hold a decision open until an external caller
// answers it or a deadline elapses" — machinery the teacher never needed
// since its judge step never waits on a human.
package approval

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vibe-kanban/attemptcore/internal/apperror"
	"github.com/vibe-kanban/attemptcore/internal/model"
)

// DecisionWriter delivers an approve/deny decision to a running process
// using that agent's stdin protocol. Implemented by the Executor Adapter
// that spawned the process.
type DecisionWriter interface {
	WriteApprovalDecision(toolUseID string, approved bool) error
}

// EntryAppender is the narrow slice of a process's normalized Message Store
// the Coordinator needs: appending the replacement tool_use / error_message
// entries that reflect a decision or expiry.
type EntryAppender interface {
	Append(entry model.NormalizedEntry) (uint64, error)
}

// sink bundles the per-process handles the Coordinator writes through, plus
// the mutex spec.md §5 requires: "Approval decisions are serialized per
// session (the Approval Coordinator holds a per-process mutex when writing
// stdin + mutating tool-use)."
type sink struct {
	writer   DecisionWriter
	appender EntryAppender
	mu       sync.Mutex
}

type pending struct {
	req   model.ApprovalRequest
	entry model.NormalizedEntry // the tool_use entry this request gates
	timer *time.Timer
}

// Coordinator holds the pending-approval map and the per-process sinks it
// writes decisions through.
type Coordinator struct {
	mu      sync.Mutex
	pending map[string]*pending
	sinks   map[string]*sink
}

// New constructs an empty Coordinator.
func New() *Coordinator {
	return &Coordinator{
		pending: make(map[string]*pending),
		sinks:   make(map[string]*sink),
	}
}

// RegisterProcess attaches the stdin writer and log appender a process's
// approvals will be written/recorded through. Must be called before
// Register is used for that processID.
func (c *Coordinator) RegisterProcess(processID string, writer DecisionWriter, appender EntryAppender) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sinks[processID] = &sink{writer: writer, appender: appender}
}

// UnregisterProcess drops the sink for processID and expires any approval
// still pending for it, so a process that has already exited never leaves a
// dangling timer or an approval no caller can still decide meaningfully.
func (c *Coordinator) UnregisterProcess(processID string) {
	c.mu.Lock()
	var toExpire []string
	for id, p := range c.pending {
		if p.req.ProcessID == processID && p.req.State == model.ApprovalPending {
			toExpire = append(toExpire, id)
		}
	}
	delete(c.sinks, processID)
	c.mu.Unlock()

	for _, id := range toExpire {
		c.expire(id)
	}
}

// Register records a new pending approval for the tool_use entry toolUse
// (which must have Type == EntryToolUse and a non-nil ToolUse), mutates it
// to status pending_approval at its original entry-index, and starts an
// expiry timer if deadline is non-zero. Returns the approval id.
//
// Enforces spec.md's invariant that at most one approval may be pending per
// tool-use instance.
func (c *Coordinator) Register(processID string, toolUse model.NormalizedEntry, prompt string, deadline time.Duration) (string, error) {
	if toolUse.ToolUse == nil {
		return "", apperror.New(apperror.BadRequest, "approval: entry has no tool_use to gate")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	sk, ok := c.sinks[processID]
	if !ok {
		return "", apperror.New(apperror.NotFound, "approval: no process registered for %s", processID)
	}

	toolUseID := toolUse.ToolUse.ToolUseID
	for _, p := range c.pending {
		if p.req.ProcessID == processID && p.req.ToolUseID == toolUseID && p.req.State == model.ApprovalPending {
			return "", apperror.New(apperror.Conflict, "approval: tool_use %s already has a pending approval", toolUseID)
		}
	}

	// Reuse the agent-native approval id surfaced inline in the tool_use
	// entry when the executor adapter populated one, so an external caller
	// watching only the Message Store (never this Coordinator directly,
	// e.g. a CLI) can read the same id back out of ApprovalRequestAction.ID
	// and call Decide with it. Falls back to a fresh id when the adapter
	// didn't surface one.
	id := ""
	if toolUse.ToolUse.Action.ApprovalRequest != nil {
		id = toolUse.ToolUse.Action.ApprovalRequest.ID
	}
	if id == "" {
		id = uuid.NewString()
	}
	now := time.Now()
	req := model.ApprovalRequest{
		ID:        id,
		ProcessID: processID,
		ToolUseID: toolUseID,
		Prompt:    prompt,
		State:     model.ApprovalPending,
		CreatedAt: now,
	}

	gated := toolUse.WithToolStatus(model.ToolPendingApproval)
	if _, err := sk.appender.Append(gated); err != nil {
		return "", err
	}

	p := &pending{req: req, entry: toolUse}
	if deadline > 0 {
		expiresAt := now.Add(deadline)
		req.ExpiresAt = &expiresAt
		p.req.ExpiresAt = &expiresAt
		p.timer = time.AfterFunc(deadline, func() { c.expire(id) })
	}
	c.pending[id] = p

	return id, nil
}

// Get returns the current state of an approval request.
func (c *Coordinator) Get(id string) (model.ApprovalRequest, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.pending[id]
	if !ok {
		return model.ApprovalRequest{}, false
	}
	return p.req, true
}

// Decide moves a pending approval to approved or denied, writes the
// decision to the governing process's stdin, and mutates the gated
// tool_use entry. On approval the entry reverts to status created so the
// Normalizer's ordinary tool_result handling can still close it out to
// success/failed; on denial the entry is finalized to failed directly,
// since a denied tool never runs.
//
// Per spec.md §7, a write failure never recovers silently: the approval
// stays pending and the error is returned as-is (Kind Transient).
func (c *Coordinator) Decide(id string, approved bool) error {
	c.mu.Lock()
	p, ok := c.pending[id]
	if !ok {
		c.mu.Unlock()
		return apperror.New(apperror.NotFound, "approval: %s not found", id)
	}
	if p.req.State != model.ApprovalPending {
		c.mu.Unlock()
		return apperror.New(apperror.Conflict, "approval: %s already decided (%s)", id, p.req.State)
	}
	sk, ok := c.sinks[p.req.ProcessID]
	if !ok {
		c.mu.Unlock()
		return apperror.New(apperror.NotFound, "approval: no process registered for %s", p.req.ProcessID)
	}
	c.mu.Unlock()

	sk.mu.Lock()
	defer sk.mu.Unlock()

	if err := sk.writer.WriteApprovalDecision(p.req.ToolUseID, approved); err != nil {
		return apperror.Wrap(apperror.Transient, err, "approval: write decision for %s", id)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if p.timer != nil {
		p.timer.Stop()
	}
	now := time.Now()
	p.req.DecidedAt = &now
	if approved {
		p.req.State = model.ApprovalApproved
		_, _ = sk.appender.Append(p.entry.WithToolStatus(model.ToolCreated))
	} else {
		p.req.State = model.ApprovalDenied
		_, _ = sk.appender.Append(p.entry.WithToolStatus(model.ToolFailed))
	}
	return nil
}

// expire transitions a still-pending approval to expired, finalizing its
// tool_use entry to failed with an approval_expired error_message, per
// spec.md §4.6.
func (c *Coordinator) expire(id string) {
	c.mu.Lock()
	p, ok := c.pending[id]
	if !ok || p.req.State != model.ApprovalPending {
		c.mu.Unlock()
		return
	}
	sk, hasSink := c.sinks[p.req.ProcessID]
	now := time.Now()
	p.req.State = model.ApprovalExpired
	p.req.DecidedAt = &now
	entry := p.entry
	c.mu.Unlock()

	if !hasSink {
		return
	}

	sk.mu.Lock()
	defer sk.mu.Unlock()
	_, _ = sk.appender.Append(entry.WithToolStatus(model.ToolFailed))
	_, _ = sk.appender.Append(model.NormalizedEntry{
		Type: model.EntryErrorMessage,
		Error: &model.ErrorMessage{
			ErrorType: model.ErrorApprovalExpired,
			Message:   "approval request expired before a decision was made",
		},
		Timestamp: &now,
	})
}
