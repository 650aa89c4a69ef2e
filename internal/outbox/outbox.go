// Package outbox implements the Event Outbox / Patch Publisher (C9):
// translating entity mutations into RFC-6902 JSON-Patch operations over a
// per-subscription projected snapshot, per spec.md §4.9.
//
// Grounded on internal/controller/task_state.go's role as the single
// in-memory source of truth other components read off of (c.taskStates,
// mutated in place by updateTaskPhase) — generalized here from "accumulate
// state for this controller's own use" to "accumulate state and derive a
// patch stream other processes subscribe to", which the teacher (a
// single-process CLI with no external subscribers) never needed.
package outbox

import (
	"sync"

	"github.com/vibe-kanban/attemptcore/internal/apperror"
	"github.com/vibe-kanban/attemptcore/internal/model"
)

// ChangeKind mirrors the durable outbox row's change_kind.
type ChangeKind string

const (
	Add     ChangeKind = "add"
	Replace ChangeKind = "replace"
	Remove  ChangeKind = "remove"
)

// Change is one outbox row: an entity mutation to project into a JSON-Patch
// op against this Outbox's resource stream.
type Change struct {
	ID      string // entity id within this resource stream, e.g. a task id
	Kind    ChangeKind
	Payload any // ignored for Remove
}

// Outbox maintains one projected snapshot (a resource stream such as
// `/tasks` or `/execution_processes`) and fans out JSON-Patch ops derived
// from Publish calls to every live subscriber, coalescing consecutive ops
// that target the same path rather than ever reordering or dropping one.
type Outbox struct {
	mu       sync.Mutex
	root     string // JSON pointer prefix, e.g. "/tasks"
	snapshot map[string]any
	subs     map[uint64]*subscriber
	nextID   uint64
	closed   bool
}

// New constructs an Outbox for the resource stream at the given JSON
// pointer root (e.g. "/tasks").
func New(root string) *Outbox {
	return &Outbox{
		root:     root,
		snapshot: make(map[string]any),
		subs:     make(map[uint64]*subscriber),
	}
}

// Publish applies change to the projection and enqueues the derived
// JSON-Patch op to every live subscriber.
//
// Per spec.md §4.9, a Replace against an id the projection doesn't yet hold
// is re-encoded as Add (the publisher normalizes this regardless of what
// the caller labeled it, since "unknown key in replace" can only mean the
// durable store's view and this projection's view have drifted in the
// caller's favor, not an error).
func (o *Outbox) Publish(change Change) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return
	}

	path := o.root + "/" + change.ID

	var op model.JSONPatchOp
	switch change.Kind {
	case Remove:
		delete(o.snapshot, change.ID)
		op = model.JSONPatchOp{Op: "remove", Path: path}
	case Add:
		o.snapshot[change.ID] = change.Payload
		op = model.JSONPatchOp{Op: "add", Path: path, Value: change.Payload}
	case Replace:
		opName := "replace"
		if _, exists := o.snapshot[change.ID]; !exists {
			opName = "add"
		}
		o.snapshot[change.ID] = change.Payload
		op = model.JSONPatchOp{Op: opName, Path: path, Value: change.Payload}
	default:
		return
	}

	for _, s := range o.subs {
		s.enqueue(op)
	}
}

// Subscribe opens a new subscription: the returned channel first receives a
// snapshot-replace of the entire current projection, then every subsequent
// Publish as an incremental patch, until Close or the returned cancel func
// is called. The cancel func is safe to call more than once.
func (o *Outbox) Subscribe() (<-chan model.PatchMessage, func(), error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return nil, func() {}, apperror.New(apperror.Conflict, "outbox: already closed")
	}

	snap := make(map[string]any, len(o.snapshot))
	for k, v := range o.snapshot {
		snap[k] = v
	}

	s := newSubscriber()
	s.enqueue(model.JSONPatchOp{Op: "replace", Path: o.root, Value: snap})

	id := o.nextID
	o.nextID++
	o.subs[id] = s
	go s.pump()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			o.mu.Lock()
			delete(o.subs, id)
			o.mu.Unlock()
			s.stop()
		})
	}

	return s.out, cancel, nil
}

// Close terminates the outbox: every subscriber receives a final
// {finished: true} message and further Publish/Subscribe calls are no-ops.
func (o *Outbox) Close() {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	o.closed = true
	subs := o.subs
	o.subs = make(map[uint64]*subscriber)
	o.mu.Unlock()

	for _, s := range subs {
		s.finish()
	}
}

// subscriber buffers coalesced JSON-Patch ops and delivers them to out via
// a dedicated pump goroutine. out has exactly one writer (pump) so a
// concurrent stop/finish request never races a send against a flush.
type subscriber struct {
	mu      sync.Mutex
	pending []model.JSONPatchOp

	notify    chan struct{}
	cancelReq chan struct{}
	finishReq chan struct{}
	out       chan model.PatchMessage

	cancelOnce sync.Once
	finishOnce sync.Once
}

func newSubscriber() *subscriber {
	return &subscriber{
		notify:    make(chan struct{}, 1),
		cancelReq: make(chan struct{}),
		finishReq: make(chan struct{}),
		out:       make(chan model.PatchMessage, 1),
	}
}

// enqueue appends op, coalescing with the last pending op if it targets the
// same path — per spec.md §4.9, consecutive patches for the same path may
// collapse into one, but ops are never reordered or skipped across paths.
func (s *subscriber) enqueue(op model.JSONPatchOp) {
	s.mu.Lock()
	if n := len(s.pending); n > 0 && s.pending[n-1].Path == op.Path {
		s.pending[n-1] = op
	} else {
		s.pending = append(s.pending, op)
	}
	s.mu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
}

func (s *subscriber) pump() {
	for {
		select {
		case <-s.cancelReq:
			return
		case <-s.finishReq:
			s.flush()
			select {
			case s.out <- model.PatchMessage{Finished: true}:
			case <-s.cancelReq:
			}
			return
		case <-s.notify:
			s.flush()
		}
	}
}

func (s *subscriber) flush() {
	s.mu.Lock()
	ops := s.pending
	s.pending = nil
	s.mu.Unlock()
	if len(ops) == 0 {
		return
	}
	select {
	case s.out <- model.PatchMessage{JSONPatch: ops}:
	case <-s.cancelReq:
	}
}

func (s *subscriber) stop() {
	s.cancelOnce.Do(func() { close(s.cancelReq) })
}

func (s *subscriber) finish() {
	s.finishOnce.Do(func() { close(s.finishReq) })
}
