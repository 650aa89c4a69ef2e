// Package executor implements the Executor Adapter (C5): one adapter per
// coding agent CLI, translating a model.InitialRequest/FollowUpRequest into
// a supervisor.Spec and providing the matching normalize.Normalizer for that
// agent's output format.
//
// Direct generalization of internal/agent/interface.go +
// internal/agent/registry.go: the core Agent interface there (BuildEnv,
// BuildCommand, ParseOutput, ...) is reshaped here into the narrower
// spawn-a-process contract this spec needs, and the optional capability
// interfaces (StdinPromptProvider, ContinuationCapable, PlanModeCapable) are
// carried over with the same names and duck-typed discovery pattern — the
// teacher already modeled exactly this variability across agent CLIs.
package executor

import (
	"fmt"
	"sync"

	"github.com/vibe-kanban/attemptcore/internal/model"
	"github.com/vibe-kanban/attemptcore/internal/normalize"
	"github.com/vibe-kanban/attemptcore/internal/supervisor"
)

// Executor builds process specs for one agent CLI and supplies the
// Normalizer that understands its output format.
type Executor interface {
	// Name is the executor's registry key (e.g. "claude-code", "codex").
	Name() string

	// BuildInitialSpec constructs the supervisor.Spec for a brand new
	// conversation.
	BuildInitialSpec(req model.InitialRequest) (supervisor.Spec, error)

	// NewNormalizer returns a fresh, per-process Normalizer instance.
	NewNormalizer() normalize.Normalizer

	// DefaultMCPConfigPath returns the path this executor expects an MCP
	// config file at, or "" if it does not support MCP.
	DefaultMCPConfigPath() string
}

// StdinPromptProvider is implemented by executors that deliver the prompt
// via stdin rather than as a command-line argument (useful for non-TTY
// --print-style invocations where argv-based prompts hit size or escaping
// limits).
type StdinPromptProvider interface {
	StdinPrompt(req model.InitialRequest) string
}

// ContinuationCapable is implemented by executors whose CLI supports
// resuming a prior native session id without replaying the whole prompt.
type ContinuationCapable interface {
	SupportsContinuation() bool
	BuildFollowUpSpec(req model.FollowUpRequest) (supervisor.Spec, error)
}

// PlanModeCapable is implemented by executors that can enforce a read-only
// planning mode (no file writes, no command execution side effects).
type PlanModeCapable interface {
	SupportsPlanMode() bool
}

var (
	registryMu sync.RWMutex
	registry   = make(map[string]func() Executor)
)

// Register adds an executor factory under name. Intended to be called from
// an adapter package's init().
func Register(name string, factory func() Executor) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = factory
}

// Get constructs a fresh Executor instance for name.
func Get(name string) (Executor, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	factory, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown executor: %s", name)
	}
	return factory(), nil
}

// List returns all registered executor names.
func List() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	return names
}

// Exists reports whether name is registered.
func Exists(name string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := registry[name]
	return ok
}
