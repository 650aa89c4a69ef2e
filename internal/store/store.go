// Package store implements the Message Store (C1): a bounded, append-only,
// multi-subscriber log with replay of history and pagination, generalized
// over the two payload kinds spec.md §4.1 calls for (LogEntry and Patch).
//
// The bounded-append-and-prune shape is grounded on the teacher's
// internal/memory.Store (append, then prune the oldest entries once a
// configured cap is exceeded); the multi-subscriber fan-out and
// slow-subscriber disconnect discipline is new machinery this spec requires
// that the teacher, being a single-tenant CLI, never needed.
package store

import (
	"errors"
	"sync"
)

// ErrSlowConsumer is returned to a subscriber (by closing its stream with
// this error recorded) when it falls far enough behind that its bounded
// queue overflows. Per spec.md §4.1, no entry is ever silently skipped for a
// live subscriber — instead the subscription itself is torn down, and the
// client is expected to reconnect (which replays history).
var ErrSlowConsumer = errors.New("store: subscriber too slow, disconnected")

// ErrClosed is returned by Append/Subscribe once the store has been closed.
var ErrClosed = errors.New("store: closed")

// Sizer estimates the byte footprint of one entry, for max_bytes accounting.
type Sizer[T any] func(T) int

// TerminalCheck reports whether an entry is the terminal marker for the
// stream (e.g. a LogBody{Kind: LogFinished}).
type TerminalCheck[T any] func(T) bool

const defaultSubscriberBuffer = 256

// Page is the result of History: the requested window of entries plus
// cursor/has_more/truncated metadata.
type Page[T any] struct {
	Entries          []Indexed[T]
	NextCursor       *uint64
	HasMore          bool
	HistoryTruncated bool
}

// Indexed pairs a stored value with its append index.
type Indexed[T any] struct {
	Index uint64
	Value T
}

type subscriber[T any] struct {
	ch     chan Indexed[T]
	closed bool
}

// Store is a bounded, append-only, multi-subscriber ordered sequence of T.
type Store[T any] struct {
	mu sync.Mutex

	entries    []Indexed[T]
	totalBytes int
	nextIndex  uint64

	maxBytes   int
	maxEntries int

	// historyTruncated is set once the in-memory ring has evicted an entry
	// that a durable store could still supply but this Store was not
	// consulted to fetch it.
	historyTruncated bool

	subscribers map[uint64]*subscriber[T]
	nextSubID   uint64

	sizer      Sizer[T]
	isTerminal TerminalCheck[T]

	closed   bool
	finished bool
}

// New constructs a Store bounded by maxBytes and maxEntries (either may be
// zero to mean "unbounded" for that dimension). sizer and isTerminal may be
// nil, in which case entries are treated as zero-sized and never terminal.
func New[T any](maxBytes, maxEntries int, sizer Sizer[T], isTerminal TerminalCheck[T]) *Store[T] {
	if sizer == nil {
		sizer = func(T) int { return 0 }
	}
	if isTerminal == nil {
		isTerminal = func(T) bool { return false }
	}
	return &Store[T]{
		maxBytes:    maxBytes,
		maxEntries:  maxEntries,
		subscribers: make(map[uint64]*subscriber[T]),
		sizer:       sizer,
		isTerminal:  isTerminal,
	}
}

// Append adds entry to the end of the sequence, assigns it the next dense
// index, fans it out to all live subscribers, and evicts the oldest entries
// if the store has grown past its configured bounds. Returns the assigned
// index.
func (s *Store[T]) Append(entry T) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, ErrClosed
	}

	idx := s.nextIndex
	s.nextIndex++

	s.entries = append(s.entries, Indexed[T]{Index: idx, Value: entry})
	s.totalBytes += s.sizer(entry)

	s.evictLocked()

	if s.isTerminal(entry) {
		s.finished = true
	}

	for id, sub := range s.subscribers {
		if sub.closed {
			continue
		}
		select {
		case sub.ch <- Indexed[T]{Index: idx, Value: entry}:
		default:
			// Overflow: close this subscriber rather than block the
			// appender or silently drop the entry for someone still
			// listening.
			close(sub.ch)
			sub.closed = true
			delete(s.subscribers, id)
		}
	}

	if s.finished {
		for id, sub := range s.subscribers {
			if !sub.closed {
				close(sub.ch)
				sub.closed = true
			}
			delete(s.subscribers, id)
		}
	}

	return idx, nil
}

// evictLocked drops the oldest entries until the store is within its
// configured bounds. Must be called with s.mu held.
func (s *Store[T]) evictLocked() {
	evicted := false
	for (s.maxEntries > 0 && len(s.entries) > s.maxEntries) ||
		(s.maxBytes > 0 && s.totalBytes > s.maxBytes && len(s.entries) > 0) {
		oldest := s.entries[0]
		s.totalBytes -= s.sizer(oldest.Value)
		s.entries = s.entries[1:]
		evicted = true
	}
	if evicted {
		s.historyTruncated = true
	}
}

// History returns the most recent limit entries when cursor is nil;
// otherwise the limit entries with index < *cursor. next_cursor is the
// minimum index in the returned page if older entries remain available.
func (s *Store[T]) History(cursor *uint64, limit int) Page[T] {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 {
		limit = len(s.entries)
	}

	var window []Indexed[T]
	if cursor == nil {
		start := 0
		if len(s.entries) > limit {
			start = len(s.entries) - limit
		}
		window = s.entries[start:]
	} else {
		// entries with index < *cursor, most recent `limit` of them.
		end := len(s.entries)
		for end > 0 && s.entries[end-1].Index >= *cursor {
			end--
		}
		start := end - limit
		if start < 0 {
			start = 0
		}
		window = s.entries[start:end]
	}

	page := Page[T]{
		Entries:          append([]Indexed[T]{}, window...),
		HistoryTruncated: s.historyTruncated,
	}

	if len(page.Entries) > 0 {
		oldestInPage := page.Entries[0].Index
		hasOlderInRing := oldestInPage > 0 && (len(s.entries) == 0 || s.entries[0].Index < oldestInPage)
		// There are older entries available (in the ring or beyond it, per
		// history_truncated) whenever the page doesn't start at index 0.
		hasOlder := oldestInPage != 0 || s.historyTruncated
		_ = hasOlderInRing
		if hasOlder {
			c := oldestInPage
			page.NextCursor = &c
			page.HasMore = true
		}
	}

	return page
}

// Subscribe delivers a snapshot of the current history, then every
// subsequent Append, until a terminal entry or the subscription is dropped.
// The returned cancel func must be called to release the subscriber's slot;
// it is safe to call multiple times.
func (s *Store[T]) Subscribe() (<-chan Indexed[T], func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, func() {}, ErrClosed
	}

	ch := make(chan Indexed[T], defaultSubscriberBuffer+len(s.entries))
	for _, e := range s.entries {
		ch <- e
	}

	if s.finished {
		close(ch)
		return ch, func() {}, nil
	}

	id := s.nextSubID
	s.nextSubID++
	sub := &subscriber[T]{ch: ch}
	s.subscribers[id] = sub

	cancel := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if cur, ok := s.subscribers[id]; ok {
			if !cur.closed {
				close(cur.ch)
				cur.closed = true
			}
			delete(s.subscribers, id)
		}
	}

	return ch, cancel, nil
}

// Close terminates the store: all subscribers are closed and further
// Append/Subscribe calls fail with ErrClosed.
func (s *Store[T]) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	for id, sub := range s.subscribers {
		if !sub.closed {
			close(sub.ch)
			sub.closed = true
		}
		delete(s.subscribers, id)
	}
}

// Len returns the number of entries currently retained in memory.
func (s *Store[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
