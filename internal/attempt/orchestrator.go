// Package attempt implements the Attempt Orchestrator (C8): the state
// machine that drives one attempt from worktree creation through agent
// runs to cleanup, wiring the Worktree Manager (C2), Process Supervisor
// (C3) via Executor Adapters (C5), Log Normalizer (C4), Message Store (C1),
// Approval Coordinator (C6), Queued-Message FIFO (C7), Event Outbox (C9)
// and Diff Engine (C10) together.
//
// Grounded on controller.Controller's role in controller.go: a single
// struct that owns the agent adapter, work directory, and logging/secret
// handles and wires them together in New/Run, generalized here from "one
// controller per CLI invocation driving a fixed phase loop" to "one
// orchestrator per attempt driving the state machine in spec.md §4.8".
package attempt

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/vibe-kanban/attemptcore/internal/apperror"
	"github.com/vibe-kanban/attemptcore/internal/approval"
	"github.com/vibe-kanban/attemptcore/internal/audit"
	"github.com/vibe-kanban/attemptcore/internal/diffengine"
	"github.com/vibe-kanban/attemptcore/internal/executor"
	"github.com/vibe-kanban/attemptcore/internal/model"
	"github.com/vibe-kanban/attemptcore/internal/normalize"
	"github.com/vibe-kanban/attemptcore/internal/obslog"
	"github.com/vibe-kanban/attemptcore/internal/outbox"
	"github.com/vibe-kanban/attemptcore/internal/queue"
	"github.com/vibe-kanban/attemptcore/internal/security"
	"github.com/vibe-kanban/attemptcore/internal/store"
	"github.com/vibe-kanban/attemptcore/internal/supervisor"
	"github.com/vibe-kanban/attemptcore/internal/worktree"
)

// scrubber redacts secret-shaped substrings from script text before it is
// published through the outbox, so an inline `export TOKEN=...` in a setup
// script never reaches a JSON-Patch subscriber. Raw/normalized log store
// content is left untouched — that store's replay contract requires exact
// bytes, and a future HTTP layer, not this package, owns redacting it for
// display.
var scrubber = security.NewScrubber()

// StoreBounds configures the per-process Message Stores this orchestrator
// creates, per spec.md §4.1.
type StoreBounds struct {
	MaxEntries int
	MaxBytes   int
}

// Deps bundles the components an Orchestrator wires together. All fields
// are required except ProcessOutbox/AttemptOutbox, which may be nil if the
// caller doesn't need a patch stream for this attempt.
type Deps struct {
	Worktrees     *worktree.Manager
	Approvals     *approval.Coordinator
	Queue         *queue.FIFO
	Diff          *diffengine.Engine
	ProcessOutbox *outbox.Outbox
	AttemptOutbox *outbox.Outbox
	StoreBounds   StoreBounds
	StopDeadline  time.Duration // graceful SIGTERM-to-SIGKILL window

	// CommandValidator, if set, vets every spawned command and its
	// arguments before the process starts. Left nil, any command the
	// Executor Adapter or a setup/cleanup/dev-server script names is run
	// unchecked — operators who want an allow-listed command surface
	// configure one.
	CommandValidator *security.CommandValidator

	// AuditLog, if set, receives a Warn entry for every security-relevant
	// tool_use action a coding agent's normalized output produces (see
	// internal/audit). Left nil, actions still run — no audit event is
	// ever used to block or alter execution, only to record it.
	AuditLog obslog.Logger
}

// processHandle bundles everything the orchestrator tracks for one spawned
// Execution Process.
type processHandle struct {
	proc   model.ExecutionProcess
	handle *supervisor.Handle
	raw    *store.Store[model.LogBody]
	norm   *store.Store[model.LogBody]
}

// idempotentCall records the outcome of a request-id-bearing call so a
// concurrent or later retry with the same id can observe it instead of
// repeating the call's side effects, per spec.md's "idempotent create/start"
// property.
type idempotentCall struct {
	done      chan struct{}
	processID string
	err       error
}

// Orchestrator drives one attempt's state machine.
type Orchestrator struct {
	deps Deps

	mu        sync.Mutex
	attempt   model.Attempt
	repos     []model.Repo
	wtSet     *worktree.Set
	session   *model.Session
	sessCtr   int
	processes map[string]*processHandle // processID -> handle, only while running/just-finished

	requests        map[string]*idempotentCall // request id -> in-flight/completed call
	createRequestID string                     // requestID CreateWorktree last materialized against
}

// New constructs an Orchestrator for attempt against the given repos,
// starting in model.AttemptCreated.
func New(a model.Attempt, repos []model.Repo, deps Deps) *Orchestrator {
	if deps.StopDeadline == 0 {
		deps.StopDeadline = 5 * time.Second
	}
	a.Status = model.AttemptCreated
	o := &Orchestrator{
		deps:      deps,
		attempt:   a,
		repos:     repos,
		processes: make(map[string]*processHandle),
		requests:  make(map[string]*idempotentCall),
	}
	o.publishAttempt(outbox.Add)
	return o
}

// claimRequest reserves requestID for the duration of one idempotent call.
// An empty requestID always claims (idempotency is opt-in per caller). When
// owner is false, call is already in flight or finished under another
// goroutine; wait on call.done and reuse call.processID/call.err instead of
// repeating the work.
func (o *Orchestrator) claimRequest(requestID string) (call *idempotentCall, owner bool) {
	if requestID == "" {
		return nil, true
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if c, ok := o.requests[requestID]; ok {
		return c, false
	}
	c := &idempotentCall{done: make(chan struct{})}
	o.requests[requestID] = c
	return c, true
}

func (o *Orchestrator) finishRequest(call *idempotentCall, processID string, err error) {
	if call == nil {
		return
	}
	call.processID = processID
	call.err = err
	close(call.done)
}

// Attempt returns a snapshot of the current attempt state.
func (o *Orchestrator) Attempt() model.Attempt {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.attempt
}

// NormalizedLog returns the normalized Message Store (C1) for processID, so
// a caller outside this package — the watch TUI, most concretely — can
// read its History or Subscribe to it directly, the same way a future
// HTTP/WS layer would. Returns false if no process with that id has ever
// been spawned on this attempt.
func (o *Orchestrator) NormalizedLog(processID string) (*store.Store[model.LogBody], bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	ph, ok := o.processes[processID]
	if !ok {
		return nil, false
	}
	return ph.norm, true
}

func (o *Orchestrator) publishAttempt(kind outbox.ChangeKind) {
	if o.deps.AttemptOutbox == nil {
		return
	}
	o.deps.AttemptOutbox.Publish(outbox.Change{ID: o.attempt.ID, Kind: kind, Payload: o.attempt})
}

func (o *Orchestrator) publishProcess(p model.ExecutionProcess, kind outbox.ChangeKind) {
	if o.deps.ProcessOutbox == nil {
		return
	}
	o.deps.ProcessOutbox.Publish(outbox.Change{ID: p.ID, Kind: kind, Payload: p})
}

func (o *Orchestrator) setStatus(s model.AttemptStatus) {
	o.attempt.Status = s
	o.attempt.UpdatedAt = time.Now()
	o.publishAttempt(outbox.Replace)
}

// CreateWorktree materializes the attempt's worktree set across all repos,
// transitioning Created -> SettingUp -> Ready, or -> Failed on any failure
// (the Worktree Manager itself rolls back partial per-repo failures before
// returning). A repeated call carrying the requestID that already
// materialized this attempt's worktree is a no-op, per spec.md's
// idempotent-create property; requestID may be empty to opt out.
func (o *Orchestrator) CreateWorktree(taskTitle, requestID string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if requestID != "" && requestID == o.createRequestID && o.attempt.Exists() {
		return nil
	}

	if o.attempt.Status != model.AttemptCreated {
		return apperror.New(apperror.Conflict, "attempt %s: CreateWorktree called in state %s", o.attempt.ID, o.attempt.Status)
	}
	o.createRequestID = requestID
	o.setStatus(model.AttemptSettingUp)

	set, err := o.deps.Worktrees.Materialize(o.attempt.ID, taskTitle, o.repos)
	if err != nil {
		o.attempt.FailureSummary = err.Error()
		o.setStatus(model.AttemptFailed)
		return err
	}

	o.wtSet = set
	o.attempt.MarkMaterialized(set.AttemptID)
	o.attempt.Branches = set.Branches()
	o.setStatus(model.AttemptReady)
	return nil
}

// RunSetupScript runs an optional setup script to completion before the
// attempt is usable for agent runs. Only one setup/cleanup script may run
// between agent runs, per spec.md §4.8.
func (o *Orchestrator) RunSetupScript(ctx context.Context, spec supervisor.Spec) error {
	o.mu.Lock()
	if o.attempt.Status != model.AttemptSettingUp && o.attempt.Status != model.AttemptReady {
		o.mu.Unlock()
		return apperror.New(apperror.Conflict, "attempt %s: RunSetupScript called in state %s", o.attempt.ID, o.attempt.Status)
	}
	o.mu.Unlock()

	_, exit, err := o.runScript(ctx, model.RunSetupScript, spec)
	if err != nil {
		return err
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if exit.ExitCode == nil || *exit.ExitCode != 0 {
		o.attempt.FailureSummary = "setup script failed"
		o.setStatus(model.AttemptFailed)
		return apperror.New(apperror.Fatal, "setup script exited non-zero")
	}
	o.setStatus(model.AttemptReady)
	return nil
}

// StartInitial spawns the attempt's first coding-agent process via the
// named executor, transitioning Ready -> Running. If req.RequestID matches
// an in-flight or completed StartInitial call, this returns that call's
// process id without spawning again, per spec.md's idempotent-start
// property and scenario S6.
func (o *Orchestrator) StartInitial(ctx context.Context, executorName string, req model.InitialRequest) (string, error) {
	call, owner := o.claimRequest(req.RequestID)
	if !owner {
		<-call.done
		return call.processID, call.err
	}

	o.mu.Lock()
	if o.attempt.Status != model.AttemptReady {
		o.mu.Unlock()
		err := apperror.New(apperror.Conflict, "attempt %s: StartInitial called in state %s", o.attempt.ID, o.attempt.Status)
		o.finishRequest(call, "", err)
		return "", err
	}
	o.mu.Unlock()

	ex, err := executor.Get(executorName)
	if err != nil {
		o.finishRequest(call, "", err)
		return "", err
	}
	spec, err := ex.BuildInitialSpec(req)
	if err != nil {
		err = apperror.Wrap(apperror.BadRequest, err, "build initial spec")
		o.finishRequest(call, "", err)
		return "", err
	}

	o.mu.Lock()
	o.sessCtr++
	session := model.Session{
		ID:        fmt.Sprintf("%s-session-%d", o.attempt.ID, o.sessCtr),
		AttemptID: o.attempt.ID,
		Profile:   req.Profile,
		CreatedAt: time.Now(),
	}
	o.session = &session
	o.mu.Unlock()

	action := model.ExecutorAction{Kind: model.ActionInitialRequest, Initial: &req}
	processID, err := o.spawn(ctx, ex, session.ID, model.RunCodingAgent, spec, action)
	o.finishRequest(call, processID, err)
	if err != nil {
		return "", err
	}

	o.mu.Lock()
	o.setStatus(model.AttemptRunning)
	o.mu.Unlock()
	return processID, nil
}

// FollowUp spawns a continuation process against the attempt's current
// session, for executors that support it. If the attempt is idle, this is
// the direct path; if it is running, callers should Enqueue instead.
// FollowUp spawns a continuation process against the attempt's current
// session, for executors that support it. If the attempt is idle, this is
// the direct path; if it is running, callers should Enqueue instead. If
// req.RequestID matches an in-flight or completed FollowUp call, this
// returns that call's process id without spawning again (spec.md scenario
// S6: two rapid identical follow_up calls return the same process id).
func (o *Orchestrator) FollowUp(ctx context.Context, executorName string, req model.FollowUpRequest) (string, error) {
	call, owner := o.claimRequest(req.RequestID)
	if !owner {
		<-call.done
		return call.processID, call.err
	}

	o.mu.Lock()
	if o.attempt.Status != model.AttemptIdle {
		o.mu.Unlock()
		err := apperror.New(apperror.Conflict, "attempt %s: FollowUp called in state %s", o.attempt.ID, o.attempt.Status)
		o.finishRequest(call, "", err)
		return "", err
	}
	sessionID := ""
	if o.session != nil {
		sessionID = o.session.ID
		req.SessionID = o.session.NativeSessionID
		if req.Profile == (model.ExecutorProfile{}) {
			req.Profile = o.session.Profile
		}
	}
	o.mu.Unlock()

	ex, err := executor.Get(executorName)
	if err != nil {
		o.finishRequest(call, "", err)
		return "", err
	}
	cont, ok := ex.(executor.ContinuationCapable)
	if !ok || !cont.SupportsContinuation() {
		err := apperror.New(apperror.BadRequest, "executor %s does not support continuation", executorName)
		o.finishRequest(call, "", err)
		return "", err
	}
	spec, err := cont.BuildFollowUpSpec(req)
	if err != nil {
		err = apperror.Wrap(apperror.BadRequest, err, "build follow-up spec")
		o.finishRequest(call, "", err)
		return "", err
	}

	action := model.ExecutorAction{Kind: model.ActionFollowUpRequest, FollowUp: &req}
	processID, err := o.spawn(ctx, ex, sessionID, model.RunCodingAgent, spec, action)
	o.finishRequest(call, processID, err)
	if err != nil {
		return "", err
	}

	o.mu.Lock()
	o.setStatus(model.AttemptRunning)
	o.mu.Unlock()
	return processID, nil
}

// Enqueue holds message as the session's at-most-one pending follow-up. If
// the attempt is currently idle this degenerates into an immediate
// follow-up, per spec.md §4.7.
func (o *Orchestrator) Enqueue(ctx context.Context, executorName, message, variant string) (model.QueuedMessage, error) {
	o.mu.Lock()
	sessionID := ""
	profile := model.ExecutorProfile{Variant: variant}
	if o.session != nil {
		sessionID = o.session.ID
		profile = o.session.Profile
		profile.Variant = variant
	}
	idle := o.attempt.Status == model.AttemptIdle
	o.mu.Unlock()

	if idle {
		qm := o.deps.Queue.Enqueue(sessionID, message, variant)
		if _, err := o.FollowUp(ctx, executorName, model.FollowUpRequest{Prompt: message, Profile: profile}); err != nil {
			return qm, err
		}
		o.deps.Queue.Pop(sessionID)
		return qm, nil
	}

	return o.deps.Queue.Enqueue(sessionID, message, variant), nil
}

// Cancel cancels the session's currently pending queued message, if any.
func (o *Orchestrator) Cancel(sessionID string) bool {
	return o.deps.Queue.Cancel(sessionID)
}

// Stop signals the attempt's running process(es) to stop, escalating to a
// hard kill after deadline. force skips the graceful phase.
func (o *Orchestrator) Stop(ctx context.Context, force bool) error {
	o.mu.Lock()
	o.setStatus(model.AttemptStopping)
	handles := make([]*supervisor.Handle, 0, len(o.processes))
	for _, ph := range o.processes {
		handles = append(handles, ph.handle)
	}
	o.mu.Unlock()

	for _, h := range handles {
		if force {
			_ = h.Kill()
			continue
		}
		h.Stop(o.deps.StopDeadline)
	}
	return nil
}

// RemoveWorktree tears down the attempt's worktree set. Per spec.md §4.2,
// this is only valid while no Execution Process is running.
func (o *Orchestrator) RemoveWorktree(force bool) error {
	o.mu.Lock()
	if len(o.processes) > 0 {
		o.mu.Unlock()
		return apperror.New(apperror.Conflict, "attempt %s: cannot remove worktree with running processes", o.attempt.ID)
	}
	set := o.wtSet
	o.mu.Unlock()

	if set == nil {
		return nil
	}
	if err := o.deps.Worktrees.Remove(set, force); err != nil {
		return err
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	o.attempt.MarkRemoved()
	o.wtSet = nil
	o.setStatus(model.AttemptArchived)
	return nil
}

// Diff computes the current worktree diff against the attempt's base ref.
func (o *Orchestrator) Diff(ctx context.Context, force bool) (*model.DiffSnapshot, <-chan model.DiffFileEntry, error) {
	o.mu.Lock()
	set := o.wtSet
	o.mu.Unlock()
	if set == nil {
		return nil, nil, apperror.New(apperror.Conflict, "attempt %s: no materialized worktree to diff", o.attempt.ID)
	}

	refs := make([]diffengine.RepoRef, 0, len(set.Entries))
	for _, e := range set.Entries {
		refs = append(refs, diffengine.RepoRef{RepoID: e.RepoID, WorktreePath: e.Path, BaseRef: o.attempt.BaseRef})
	}
	return o.deps.Diff.Compute(ctx, o.attempt.ID, refs, force)
}

// runScript spawns a non-agent process (setup/cleanup/dev-server) and
// blocks until it exits, registering it as an ExecutionProcess and
// returning its ExitInfo.
func (o *Orchestrator) runScript(ctx context.Context, reason model.RunReason, spec supervisor.Spec) (string, supervisor.ExitInfo, error) {
	if err := o.validateSpec(spec); err != nil {
		return "", supervisor.ExitInfo{}, err
	}

	h, err := supervisor.Spawn(ctx, spec)
	if err != nil {
		return "", supervisor.ExitInfo{}, err
	}

	o.mu.Lock()
	processID := fmt.Sprintf("%s-proc-%d", o.attempt.ID, len(o.processes)+1)
	o.mu.Unlock()

	proc := model.ExecutionProcess{
		ID:        processID,
		AttemptID: o.attempt.ID,
		RunReason: reason,
		Status:    model.ProcessRunning,
		StartedAt: time.Now(),
		Action:    model.ExecutorAction{Kind: model.ActionScriptRequest, Script: &model.ScriptRequest{Script: scrubber.Scrub(spec.Command)}},
	}
	o.publishProcess(proc, outbox.Add)

	raw := store.New[model.LogBody](o.deps.StoreBounds.MaxBytes, o.deps.StoreBounds.MaxEntries, logBodySizer, isFinished)
	drainRaw(h, raw)
	exit := h.Wait()
	_, _ = raw.Append(model.FinishedEntry())

	now := time.Now()
	proc.CompletedAt = &now
	proc.ExitCode = exit.ExitCode
	proc.TerminationSignal = exit.Signal
	switch {
	case exit.Signal != nil:
		proc.Status = model.ProcessKilled
	case exit.ExitCode != nil && *exit.ExitCode == 0:
		proc.Status = model.ProcessCompleted
	default:
		proc.Status = model.ProcessFailed
	}
	o.publishProcess(proc, outbox.Replace)

	return processID, exit, nil
}

// spawn starts a coding-agent process and wires its output through the
// Normalizer into raw and normalized Message Stores, registers it with the
// Approval Coordinator, and watches for exit in the background.
func (o *Orchestrator) spawn(ctx context.Context, ex executor.Executor, sessionID string, reason model.RunReason, spec supervisor.Spec, action model.ExecutorAction) (string, error) {
	if err := o.validateSpec(spec); err != nil {
		return "", err
	}

	h, err := supervisor.Spawn(ctx, spec)
	if err != nil {
		return "", apperror.Wrap(apperror.Transient, err, "spawn process")
	}

	o.mu.Lock()
	processID := fmt.Sprintf("%s-proc-%d", o.attempt.ID, len(o.processes)+1)
	o.mu.Unlock()

	proc := model.ExecutionProcess{
		ID:        processID,
		SessionID: sessionID,
		AttemptID: o.attempt.ID,
		RunReason: reason,
		Status:    model.ProcessRunning,
		StartedAt: time.Now(),
		Action:    action,
	}

	raw := store.New[model.LogBody](o.deps.StoreBounds.MaxBytes, o.deps.StoreBounds.MaxEntries, logBodySizer, isFinished)
	norm := store.New[model.LogBody](o.deps.StoreBounds.MaxBytes, o.deps.StoreBounds.MaxEntries, logBodySizer, isFinished)

	ph := &processHandle{proc: proc, handle: h, raw: raw, norm: norm}
	o.mu.Lock()
	o.processes[processID] = ph
	o.mu.Unlock()
	o.publishProcess(proc, outbox.Add)

	if o.deps.Approvals != nil {
		o.deps.Approvals.RegisterProcess(processID, &stdinDecisionWriter{handle: h}, &normalizedAppender{store: norm})
	}

	go o.pumpOutput(h.Stdout(), model.LogStdout, ex.NewNormalizer(), processID, raw, norm)
	go pumpRawOnly(h.Stderr(), model.LogStderr, raw)
	if reason == model.RunCodingAgent {
		go o.watchExit(h, processID)
	}

	return processID, nil
}

// pumpOutput reads chunks from a single stream (stdout is the only stream
// the Normalizer parses; stderr is recorded raw-only), appends each raw
// chunk, feeds it through the normalizer, and appends each resulting
// NormalizedEntry — watching for an in-flight approval_request action to
// hand off to the Approval Coordinator.
func (o *Orchestrator) pumpOutput(ch <-chan []byte, kind model.LogBodyKind, n normalize.Normalizer, processID string, raw, norm *store.Store[model.LogBody]) {
	for chunk := range ch {
		_, _ = raw.Append(model.LogBody{Kind: kind, Chunk: chunk})
		for _, entry := range n.Normalize(chunk) {
			_, _ = norm.Append(model.NormalizedLogEntry(entry))
			o.maybeRegisterApproval(processID, entry)
			o.auditEntry(processID, entry)
		}
	}
}

// pumpRawOnly appends every chunk from ch to raw without normalization,
// used for the stderr stream (the Normalizer only ever parses stdout).
func pumpRawOnly(ch <-chan []byte, kind model.LogBodyKind, raw *store.Store[model.LogBody]) {
	for chunk := range ch {
		_, _ = raw.Append(model.LogBody{Kind: kind, Chunk: chunk})
	}
}

func (o *Orchestrator) maybeRegisterApproval(processID string, entry model.NormalizedEntry) {
	if o.deps.Approvals == nil || entry.ToolUse == nil {
		return
	}
	if entry.ToolUse.Action.Kind != model.ActionApprovalRequest || entry.ToolUse.Action.ApprovalRequest == nil {
		return
	}
	ar := entry.ToolUse.Action.ApprovalRequest
	if _, err := o.deps.Approvals.Register(processID, entry, ar.Prompt, 0); err != nil {
		// A duplicate/erroring registration isn't fatal to the stream; the
		// tool_use entry itself is still visible as pending_approval only
		// if Register reached the append, which it didn't here.
		_ = err
	}
}

// auditEntry classifies entry's tool_use action (if any) and logs every
// resulting audit.Event through o.deps.AuditLog. A no-op when AuditLog
// isn't configured or entry triggers nothing audit-relevant.
func (o *Orchestrator) auditEntry(processID string, entry model.NormalizedEntry) {
	if o.deps.AuditLog == nil {
		return
	}
	for _, ev := range audit.ExtractFromEntry(entry, o.attempt.ID, processID) {
		o.deps.AuditLog.Log(obslog.SeverityWarning, ev.Message, map[string]interface{}{
			"audit_category": string(ev.Category),
			"tool_name":      ev.ToolName,
			"attempt_id":     ev.AttemptID,
			"process_id":     ev.ProcessID,
		})
	}
}

// watchExit blocks on the process's exit, applies the attempt-level
// transition spec.md §4.8 names, and drains the queued-message FIFO on a
// clean exit.
func (o *Orchestrator) watchExit(h *supervisor.Handle, processID string) {
	exit := h.Wait()

	o.mu.Lock()
	ph, ok := o.processes[processID]
	if !ok {
		o.mu.Unlock()
		return
	}
	now := time.Now()
	ph.proc.CompletedAt = &now
	ph.proc.ExitCode = exit.ExitCode
	ph.proc.TerminationSignal = exit.Signal

	switch {
	case exit.Signal != nil:
		ph.proc.Status = model.ProcessKilled
	case exit.ExitCode != nil && *exit.ExitCode == 0:
		ph.proc.Status = model.ProcessCompleted
	default:
		ph.proc.Status = model.ProcessFailed
	}

	_, _ = ph.raw.Append(model.FinishedEntry())
	_, _ = ph.norm.Append(model.FinishedEntry())

	delete(o.processes, processID)
	sessionID := ph.proc.SessionID
	proc := ph.proc
	o.mu.Unlock()

	o.publishProcess(proc, outbox.Replace)

	if o.deps.Approvals != nil {
		o.deps.Approvals.UnregisterProcess(processID)
	}

	o.mu.Lock()
	switch proc.Status {
	case model.ProcessCompleted:
		o.setStatus(model.AttemptIdle)
	case model.ProcessKilled:
		o.setStatus(model.AttemptStopped)
	default:
		o.attempt.FailureSummary = failureSummary(proc)
		o.setStatus(model.AttemptFailed)
	}
	o.mu.Unlock()

	if proc.Status == model.ProcessCompleted {
		if qm, ok := o.deps.Queue.Pop(sessionID); ok {
			o.mu.Lock()
			executorName := ""
			profile := model.ExecutorProfile{Variant: qm.Variant}
			if o.session != nil {
				executorName = o.session.Profile.AgentID
				profile = o.session.Profile
				profile.Variant = qm.Variant
			}
			o.mu.Unlock()
			_, _ = o.FollowUp(context.Background(), executorName, model.FollowUpRequest{
				Prompt:  qm.Message,
				Profile: profile,
			})
		}
	}
}

// failureSummary derives a human-readable summary from the process's exit
// code, per spec.md §4.8 ("surfaces failure_summary derived from ... the
// process exit code").
// validateSpec rejects a process spec whose command isn't allow-listed, if
// a CommandValidator is configured.
func (o *Orchestrator) validateSpec(spec supervisor.Spec) error {
	if o.deps.CommandValidator == nil {
		return nil
	}
	if err := o.deps.CommandValidator.ValidateCommand(spec.Command, spec.Args); err != nil {
		return apperror.Wrap(apperror.Blocked, err, "command rejected")
	}
	return nil
}

func failureSummary(p model.ExecutionProcess) string {
	if p.ExitCode != nil {
		return fmt.Sprintf("process exited with code %d", *p.ExitCode)
	}
	return "process exited abnormally"
}

func drainRaw(h *supervisor.Handle, raw *store.Store[model.LogBody]) {
	done := make(chan struct{})
	go func() {
		defer close(done)
		for chunk := range h.Stdout() {
			_, _ = raw.Append(model.LogBody{Kind: model.LogStdout, Chunk: chunk})
		}
	}()
	for chunk := range h.Stderr() {
		_, _ = raw.Append(model.LogBody{Kind: model.LogStderr, Chunk: chunk})
	}
	<-done
}

func logBodySizer(b model.LogBody) int {
	switch b.Kind {
	case model.LogStdout, model.LogStderr:
		return len(b.Chunk)
	case model.LogNormalized:
		if b.Normalized != nil {
			return len(b.Normalized.Content)
		}
	}
	return 0
}

func isFinished(b model.LogBody) bool { return b.Kind == model.LogFinished }

// stdinDecisionWriter is a generic, protocol-agnostic fallback
// approval.DecisionWriter: it writes a newline-delimited JSON command to
// the process's stdin. No executor in this corpus documents a real
// stdin-based approval wire format (every concrete adapter runs with a
// permission-skipping flag instead), so this is the honest placeholder a
// future agent-specific DecisionWriter would override.
type stdinDecisionWriter struct {
	handle *supervisor.Handle
}

func (w *stdinDecisionWriter) WriteApprovalDecision(toolUseID string, approved bool) error {
	stdin := w.handle.Stdin()
	if stdin == nil {
		return apperror.New(apperror.BadRequest, "process has no stdin")
	}
	payload, err := json.Marshal(map[string]any{
		"type":        "approval_decision",
		"tool_use_id": toolUseID,
		"approved":    approved,
	})
	if err != nil {
		return err
	}
	_, err = stdin.Write(append(payload, '\n'))
	return err
}

// normalizedAppender adapts a *store.Store[model.LogBody] to approval.EntryAppender.
type normalizedAppender struct {
	store *store.Store[model.LogBody]
}

func (a *normalizedAppender) Append(entry model.NormalizedEntry) (uint64, error) {
	return a.store.Append(model.NormalizedLogEntry(entry))
}
