package store

import (
	"sync"
	"testing"
	"time"
)

func intSizer(int) int { return 1 }
func neverTerminal(int) bool { return false }

func TestAppend_DenseMonotonicIndexes(t *testing.T) {
	s := New[int](0, 0, intSizer, neverTerminal)
	for i := 0; i < 10; i++ {
		idx, err := s.Append(i)
		if err != nil {
			t.Fatalf("Append: %v", err)
		}
		if idx != uint64(i) {
			t.Errorf("entry %d: got index %d, want %d", i, idx, i)
		}
	}
}

func TestHistory_NoCursorReturnsMostRecent(t *testing.T) {
	s := New[int](0, 0, intSizer, neverTerminal)
	for i := 0; i < 20; i++ {
		s.Append(i)
	}

	page := s.History(nil, 5)
	if len(page.Entries) != 5 {
		t.Fatalf("expected 5 entries, got %d", len(page.Entries))
	}
	for i, e := range page.Entries {
		want := uint64(15 + i)
		if e.Index != want {
			t.Errorf("entry %d: got index %d, want %d", i, e.Index, want)
		}
	}
	if !page.HasMore {
		t.Error("expected has_more=true")
	}
	if page.NextCursor == nil || *page.NextCursor != 15 {
		t.Errorf("expected next_cursor=15, got %v", page.NextCursor)
	}
}

func TestHistory_CursorExclusiveUpperBound(t *testing.T) {
	// Scenario S8: tail_attempt_logs with cursor=10, limit=5 after 20 entries
	// exist returns indexes {5,6,7,8,9}, next_cursor=5, has_more=true.
	s := New[int](0, 0, intSizer, neverTerminal)
	for i := 0; i < 20; i++ {
		s.Append(i)
	}

	cursor := uint64(10)
	page := s.History(&cursor, 5)
	if len(page.Entries) != 5 {
		t.Fatalf("expected 5 entries, got %d", len(page.Entries))
	}
	for i, e := range page.Entries {
		want := uint64(5 + i)
		if e.Index != want {
			t.Errorf("entry %d: got index %d, want %d", i, e.Index, want)
		}
	}
	if page.NextCursor == nil || *page.NextCursor != 5 {
		t.Errorf("expected next_cursor=5, got %v", page.NextCursor)
	}
	if !page.HasMore {
		t.Error("expected has_more=true")
	}
}

func TestHistory_NoOlderEntries(t *testing.T) {
	s := New[int](0, 0, intSizer, neverTerminal)
	for i := 0; i < 3; i++ {
		s.Append(i)
	}
	page := s.History(nil, 10)
	if page.HasMore {
		t.Error("expected has_more=false when all entries fit")
	}
	if page.NextCursor != nil {
		t.Errorf("expected nil next_cursor, got %v", *page.NextCursor)
	}
}

func TestEviction_SetsHistoryTruncated(t *testing.T) {
	s := New[int](0, 5, intSizer, neverTerminal)
	for i := 0; i < 10; i++ {
		s.Append(i)
	}
	if s.Len() != 5 {
		t.Fatalf("expected 5 retained entries, got %d", s.Len())
	}
	page := s.History(nil, 100)
	if !page.HistoryTruncated {
		t.Error("expected history_truncated=true after eviction")
	}
}

func TestSubscribe_ReplaysHistoryThenLiveAppends(t *testing.T) {
	s := New[int](0, 0, intSizer, neverTerminal)
	for i := 0; i < 3; i++ {
		s.Append(i)
	}

	ch, cancel, err := s.Subscribe()
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer cancel()

	go func() {
		s.Append(3)
		s.Append(4)
	}()

	var got []int
	for e := range collectN(t, ch, 5) {
		got = append(got, e)
	}
	for i, v := range got {
		if v != i {
			t.Errorf("position %d: got %d, want %d", i, v, i)
		}
	}
}

func collectN(t *testing.T, ch <-chan Indexed[int], n int) []int {
	t.Helper()
	out := make([]int, 0, n)
	timeout := time.After(2 * time.Second)
	for len(out) < n {
		select {
		case e, ok := <-ch:
			if !ok {
				t.Fatalf("channel closed early, got %d of %d", len(out), n)
			}
			out = append(out, e.Value)
		case <-timeout:
			t.Fatalf("timed out waiting for %d entries, got %d", n, len(out))
		}
	}
	return out
}

func TestSubscribe_NoReorderAcrossConcurrentAppends(t *testing.T) {
	s := New[int](0, 0, intSizer, neverTerminal)
	ch, cancel, err := s.Subscribe()
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer cancel()

	const n = 200
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < n; i++ {
			s.Append(i)
		}
	}()

	last := -1
	for i := 0; i < n; i++ {
		e := <-ch
		if int(e.Index) <= last {
			t.Fatalf("reorder detected: saw index %d after %d", e.Index, last)
		}
		last = int(e.Index)
	}
	wg.Wait()
}

func TestSubscribe_OverflowClosesSlowConsumer(t *testing.T) {
	s := New[int](0, 0, intSizer, neverTerminal)
	ch, cancel, err := s.Subscribe()
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer cancel()

	// Never drain the channel; exceed its buffer to force an overflow close.
	for i := 0; i < defaultSubscriberBuffer+10; i++ {
		s.Append(i)
	}

	select {
	case _, ok := <-ch:
		if ok {
			// Channel may still have buffered entries before closing; drain
			// until closed.
			for ok {
				_, ok = <-ch
			}
		}
	case <-time.After(2 * time.Second):
		t.Fatal("expected channel to be closed after overflow")
	}
}

func TestAppend_FinishedTerminatesSubscribers(t *testing.T) {
	isFinished := func(v int) bool { return v == -1 }
	s := New[int](0, 0, intSizer, isFinished)
	ch, cancel, err := s.Subscribe()
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer cancel()

	s.Append(1)
	s.Append(-1)

	<-ch // 1
	_, ok := <-ch // -1 (finished)
	if !ok {
		t.Fatal("expected finished entry before close")
	}
	if _, ok := <-ch; ok {
		t.Fatal("expected channel closed after terminal entry")
	}
}

func TestAppend_AfterClose(t *testing.T) {
	s := New[int](0, 0, intSizer, neverTerminal)
	s.Close()
	if _, err := s.Append(1); err != ErrClosed {
		t.Errorf("expected ErrClosed, got %v", err)
	}
}
