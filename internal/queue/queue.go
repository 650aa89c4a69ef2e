// Package queue implements the Queued-Message FIFO (C7): at most one
// pending follow-up message held per session until the current run exits
// cleanly.
//
// Grounded on internal/handoff/store.go's StorePhaseOutput, which replaces
// any existing entry for the same phase rather than accumulating a history
// — generalized here from "one output per phase" to "one pending message
// per session".
package queue

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vibe-kanban/attemptcore/internal/apperror"
	"github.com/vibe-kanban/attemptcore/internal/model"
)

// FIFO holds at most one pending model.QueuedMessage per session.
type FIFO struct {
	mu      sync.Mutex
	pending map[string]*model.QueuedMessage // sessionID -> the one pending entry
}

// New constructs an empty FIFO.
func New() *FIFO {
	return &FIFO{pending: make(map[string]*model.QueuedMessage)}
}

// Enqueue replaces any existing pending entry for sessionID with a new one
// and returns it. The UI model is "the queued message", not a history of
// them, so a second enqueue silently supersedes the first rather than
// erroring.
//
// Per spec.md §4.7, if the attempt is idle at call time the Orchestrator is
// expected to short-circuit this into an immediate follow-up instead of
// calling Enqueue at all; the FIFO itself has no notion of idle/running and
// always just replaces the pending slot.
func (f *FIFO) Enqueue(sessionID, message, variant string) model.QueuedMessage {
	f.mu.Lock()
	defer f.mu.Unlock()

	qm := model.QueuedMessage{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Message:   message,
		Variant:   variant,
		State:     model.QueuedPending,
		CreatedAt: time.Now(),
	}
	f.pending[sessionID] = &qm
	return qm
}

// Cancel marks the pending entry for sessionID (if any) as cancelled and
// removes it from the pending slot. Returns false if nothing was pending.
func (f *FIFO) Cancel(sessionID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	qm, ok := f.pending[sessionID]
	if !ok {
		return false
	}
	qm.State = model.QueuedCancelled
	delete(f.pending, sessionID)
	return true
}

// Peek returns the current pending entry for sessionID without consuming
// it, or false if none is pending.
func (f *FIFO) Peek(sessionID string) (model.QueuedMessage, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	qm, ok := f.pending[sessionID]
	if !ok {
		return model.QueuedMessage{}, false
	}
	return *qm, true
}

// Pop removes and returns the pending entry for sessionID, marking it
// consumed. The Orchestrator calls this only after a coding-agent process
// exits with status completed (not failed, not killed); on a failed or
// killed exit the pending entry is left intact for explicit user action,
// per spec.md §4.7, so callers must not call Pop in that case.
func (f *FIFO) Pop(sessionID string) (model.QueuedMessage, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	qm, ok := f.pending[sessionID]
	if !ok {
		return model.QueuedMessage{}, false
	}
	qm.State = model.QueuedConsumed
	delete(f.pending, sessionID)
	return *qm, true
}

// CancelByID cancels the pending entry for sessionID only if its id matches,
// so a stale client can't cancel a message enqueued after the one it last
// saw. Returns a Conflict error if the pending entry has a different id,
// NotFound if nothing is pending.
func (f *FIFO) CancelByID(sessionID, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	qm, ok := f.pending[sessionID]
	if !ok {
		return apperror.New(apperror.NotFound, "queue: no pending message for session %s", sessionID)
	}
	if qm.ID != id {
		return apperror.New(apperror.Conflict, "queue: pending message for session %s is %s, not %s", sessionID, qm.ID, id)
	}
	qm.State = model.QueuedCancelled
	delete(f.pending, sessionID)
	return nil
}
