package queue

import (
	"testing"

	"github.com/vibe-kanban/attemptcore/internal/apperror"
	"github.com/vibe-kanban/attemptcore/internal/model"
)

func TestEnqueue_ReplacesExistingPending(t *testing.T) {
	f := New()
	first := f.Enqueue("sess-1", "do thing one", "")
	second := f.Enqueue("sess-1", "do thing two", "")

	qm, ok := f.Peek("sess-1")
	if !ok {
		t.Fatal("expected a pending entry")
	}
	if qm.ID != second.ID {
		t.Errorf("expected the second enqueue's id %s, got %s", second.ID, qm.ID)
	}
	if qm.Message != "do thing two" {
		t.Errorf("expected latest message, got %q", qm.Message)
	}
	if first.ID == second.ID {
		t.Error("expected distinct ids for distinct enqueues")
	}
}

func TestCancel_ClearsPendingSlot(t *testing.T) {
	f := New()
	f.Enqueue("sess-1", "msg", "")

	if !f.Cancel("sess-1") {
		t.Fatal("expected Cancel to report a pending entry was cleared")
	}
	if _, ok := f.Peek("sess-1"); ok {
		t.Error("expected no pending entry after cancel")
	}
	if f.Cancel("sess-1") {
		t.Error("expected second Cancel on an empty slot to report false")
	}
}

func TestPop_ConsumesAndClearsPendingSlot(t *testing.T) {
	f := New()
	f.Enqueue("sess-1", "msg", "")

	qm, ok := f.Pop("sess-1")
	if !ok {
		t.Fatal("expected a pending entry to pop")
	}
	if qm.State != model.QueuedConsumed {
		t.Errorf("expected consumed state, got %s", qm.State)
	}
	if _, ok := f.Peek("sess-1"); ok {
		t.Error("expected no pending entry after pop")
	}
}

func TestPop_EmptySlotReturnsFalse(t *testing.T) {
	f := New()
	if _, ok := f.Pop("sess-1"); ok {
		t.Error("expected Pop on empty slot to return false")
	}
}

func TestAtMostOnePendingPerSession_IndependentAcrossSessions(t *testing.T) {
	f := New()
	f.Enqueue("sess-1", "a", "")
	f.Enqueue("sess-2", "b", "")

	a, ok := f.Peek("sess-1")
	if !ok || a.Message != "a" {
		t.Errorf("expected sess-1 pending 'a', got %+v ok=%v", a, ok)
	}
	b, ok := f.Peek("sess-2")
	if !ok || b.Message != "b" {
		t.Errorf("expected sess-2 pending 'b', got %+v ok=%v", b, ok)
	}
}

func TestCancelByID_RejectsStaleID(t *testing.T) {
	f := New()
	f.Enqueue("sess-1", "a", "")
	current := f.Enqueue("sess-1", "b", "")

	err := f.CancelByID("sess-1", "not-the-current-id")
	if err == nil {
		t.Fatal("expected stale id cancel to fail")
	}
	if apperror.KindOf(err) != apperror.Conflict {
		t.Errorf("expected Conflict, got %s", apperror.KindOf(err))
	}

	if err := f.CancelByID("sess-1", current.ID); err != nil {
		t.Fatalf("CancelByID with current id: %v", err)
	}
	if _, ok := f.Peek("sess-1"); ok {
		t.Error("expected no pending entry after cancel")
	}
}

func TestCancelByID_NoPendingIsNotFound(t *testing.T) {
	f := New()
	err := f.CancelByID("sess-1", "whatever")
	if apperror.KindOf(err) != apperror.NotFound {
		t.Errorf("expected NotFound, got %s", apperror.KindOf(err))
	}
}
