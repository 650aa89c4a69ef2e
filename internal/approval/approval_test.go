package approval

import (
	"errors"
	"testing"
	"time"

	"github.com/vibe-kanban/attemptcore/internal/apperror"
	"github.com/vibe-kanban/attemptcore/internal/model"
)

type fakeWriter struct {
	calls []struct {
		toolUseID string
		approved  bool
	}
	err error
}

func (w *fakeWriter) WriteApprovalDecision(toolUseID string, approved bool) error {
	if w.err != nil {
		return w.err
	}
	w.calls = append(w.calls, struct {
		toolUseID string
		approved  bool
	}{toolUseID, approved})
	return nil
}

type fakeAppender struct {
	entries []model.NormalizedEntry
}

func (a *fakeAppender) Append(entry model.NormalizedEntry) (uint64, error) {
	a.entries = append(a.entries, entry)
	return uint64(len(a.entries) - 1), nil
}

func toolUseEntry(id string) model.NormalizedEntry {
	return model.NormalizedEntry{
		Type: model.EntryToolUse,
		ToolUse: &model.ToolUse{
			ToolUseID: id,
			ToolName:  "Bash",
			Status:    model.ToolCreated,
		},
	}
}

func TestRegister_MutatesEntryToPendingApproval(t *testing.T) {
	c := New()
	w := &fakeWriter{}
	a := &fakeAppender{}
	c.RegisterProcess("proc-1", w, a)

	id, err := c.Register("proc-1", toolUseEntry("call-1"), "run rm -rf /tmp/x?", 0)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if id == "" {
		t.Fatal("expected non-empty approval id")
	}
	if len(a.entries) != 1 {
		t.Fatalf("expected 1 appended entry, got %d", len(a.entries))
	}
	if a.entries[0].ToolUse.Status != model.ToolPendingApproval {
		t.Errorf("expected pending_approval status, got %s", a.entries[0].ToolUse.Status)
	}
}

func TestRegister_RejectsSecondPendingForSameToolUse(t *testing.T) {
	c := New()
	c.RegisterProcess("proc-1", &fakeWriter{}, &fakeAppender{})

	if _, err := c.Register("proc-1", toolUseEntry("call-1"), "p1", 0); err != nil {
		t.Fatalf("first Register: %v", err)
	}
	_, err := c.Register("proc-1", toolUseEntry("call-1"), "p2", 0)
	if err == nil {
		t.Fatal("expected second Register for the same tool_use to fail")
	}
	if apperror.KindOf(err) != apperror.Conflict {
		t.Errorf("expected Conflict, got %s", apperror.KindOf(err))
	}
}

func TestDecide_ApprovedWritesDecisionAndRevertsToCreated(t *testing.T) {
	c := New()
	w := &fakeWriter{}
	a := &fakeAppender{}
	c.RegisterProcess("proc-1", w, a)

	id, err := c.Register("proc-1", toolUseEntry("call-1"), "p", 0)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	if err := c.Decide(id, true); err != nil {
		t.Fatalf("Decide: %v", err)
	}

	if len(w.calls) != 1 || !w.calls[0].approved || w.calls[0].toolUseID != "call-1" {
		t.Errorf("unexpected writer calls: %+v", w.calls)
	}
	last := a.entries[len(a.entries)-1]
	if last.ToolUse.Status != model.ToolCreated {
		t.Errorf("expected reverted to created, got %s", last.ToolUse.Status)
	}

	req, ok := c.Get(id)
	if !ok || req.State != model.ApprovalApproved {
		t.Errorf("expected approved state, got %+v ok=%v", req, ok)
	}
}

func TestDecide_DeniedFinalizesToolUseAsFailed(t *testing.T) {
	c := New()
	w := &fakeWriter{}
	a := &fakeAppender{}
	c.RegisterProcess("proc-1", w, a)

	id, _ := c.Register("proc-1", toolUseEntry("call-1"), "p", 0)
	if err := c.Decide(id, false); err != nil {
		t.Fatalf("Decide: %v", err)
	}

	last := a.entries[len(a.entries)-1]
	if last.ToolUse.Status != model.ToolFailed {
		t.Errorf("expected failed status, got %s", last.ToolUse.Status)
	}
	req, _ := c.Get(id)
	if req.State != model.ApprovalDenied {
		t.Errorf("expected denied state, got %s", req.State)
	}
}

func TestDecide_WriteFailureLeavesApprovalPending(t *testing.T) {
	c := New()
	w := &fakeWriter{err: errors.New("broken pipe")}
	a := &fakeAppender{}
	c.RegisterProcess("proc-1", w, a)

	id, _ := c.Register("proc-1", toolUseEntry("call-1"), "p", 0)
	err := c.Decide(id, true)
	if err == nil {
		t.Fatal("expected Decide to fail")
	}
	if apperror.KindOf(err) != apperror.Transient {
		t.Errorf("expected Transient, got %s", apperror.KindOf(err))
	}
	req, ok := c.Get(id)
	if !ok || req.State != model.ApprovalPending {
		t.Errorf("expected approval to remain pending, got %+v", req)
	}
}

func TestDecide_AlreadyDecidedIsConflict(t *testing.T) {
	c := New()
	c.RegisterProcess("proc-1", &fakeWriter{}, &fakeAppender{})
	id, _ := c.Register("proc-1", toolUseEntry("call-1"), "p", 0)

	if err := c.Decide(id, true); err != nil {
		t.Fatalf("first Decide: %v", err)
	}
	err := c.Decide(id, false)
	if err == nil {
		t.Fatal("expected second Decide to fail")
	}
	if apperror.KindOf(err) != apperror.Conflict {
		t.Errorf("expected Conflict, got %s", apperror.KindOf(err))
	}
}

func TestExpiry_MarksExpiredAndEmitsApprovalExpiredError(t *testing.T) {
	c := New()
	w := &fakeWriter{}
	a := &fakeAppender{}
	c.RegisterProcess("proc-1", w, a)

	id, err := c.Register("proc-1", toolUseEntry("call-1"), "p", 20*time.Millisecond)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	deadline := time.After(2 * time.Second)
	for {
		req, _ := c.Get(id)
		if req.State == model.ApprovalExpired {
			break
		}
		select {
		case <-deadline:
			t.Fatal("approval never expired")
		case <-time.After(5 * time.Millisecond):
		}
	}

	if len(a.entries) < 2 {
		t.Fatalf("expected at least 2 appended entries (pending + expiry), got %d", len(a.entries))
	}
	last := a.entries[len(a.entries)-1]
	if last.Type != model.EntryErrorMessage || last.Error == nil || last.Error.ErrorType != model.ErrorApprovalExpired {
		t.Errorf("expected trailing approval_expired error_message, got %+v", last)
	}
	secondLast := a.entries[len(a.entries)-2]
	if secondLast.ToolUse == nil || secondLast.ToolUse.Status != model.ToolFailed {
		t.Errorf("expected tool_use finalized to failed before the error entry, got %+v", secondLast)
	}

	// Deciding after expiry must fail: the window has closed.
	if err := c.Decide(id, true); err == nil {
		t.Error("expected Decide after expiry to fail")
	} else if apperror.KindOf(err) != apperror.Conflict {
		t.Errorf("expected Conflict, got %s", apperror.KindOf(err))
	}
}

func TestUnregisterProcess_ExpiresOutstandingApprovals(t *testing.T) {
	c := New()
	w := &fakeWriter{}
	a := &fakeAppender{}
	c.RegisterProcess("proc-1", w, a)

	id, _ := c.Register("proc-1", toolUseEntry("call-1"), "p", 0)
	c.UnregisterProcess("proc-1")

	req, ok := c.Get(id)
	if !ok || req.State != model.ApprovalExpired {
		t.Errorf("expected approval expired after process unregistered, got %+v ok=%v", req, ok)
	}
}

func TestRegister_UnknownProcessIsNotFound(t *testing.T) {
	c := New()
	_, err := c.Register("ghost", toolUseEntry("call-1"), "p", 0)
	if err == nil {
		t.Fatal("expected error for unregistered process")
	}
	if apperror.KindOf(err) != apperror.NotFound {
		t.Errorf("expected NotFound, got %s", apperror.KindOf(err))
	}
}
