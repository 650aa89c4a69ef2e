// Package claudecode is the Executor Adapter (C5) for Anthropic's Claude
// Code CLI. Command construction is grounded on
// internal/agent/claudecode/adapter.go's BuildCommand/BuildPrompt, adapted
// from "build one big docker run command" to "build a supervisor.Spec for a
// process already running inside the attempt's worktree".
package claudecode

import (
	"github.com/vibe-kanban/attemptcore/internal/model"
	"github.com/vibe-kanban/attemptcore/internal/normalize"
	"github.com/vibe-kanban/attemptcore/internal/normalize/claudecode"
	"github.com/vibe-kanban/attemptcore/internal/executor"
	"github.com/vibe-kanban/attemptcore/internal/supervisor"
)

// Adapter implements executor.Executor, executor.ContinuationCapable, and
// executor.PlanModeCapable for Claude Code.
type Adapter struct{}

// New constructs a Claude Code executor adapter.
func New() *Adapter { return &Adapter{} }

func (a *Adapter) Name() string { return "claude-code" }

func (a *Adapter) BuildInitialSpec(req model.InitialRequest) (supervisor.Spec, error) {
	args := []string{"--print", "--dangerously-skip-permissions", "--output-format", "stream-json"}

	if req.Profile.ModelOverride != "" {
		args = append(args, "--model", req.Profile.ModelOverride)
	}
	args = append(args, req.Prompt)

	return supervisor.Spec{
		Command: "claude",
		Args:    args,
		Dir:     req.WorkingDir,
	}, nil
}

func (a *Adapter) BuildFollowUpSpec(req model.FollowUpRequest) (supervisor.Spec, error) {
	args := []string{
		"--print", "--dangerously-skip-permissions", "--output-format", "stream-json",
		"--resume", req.SessionID,
	}
	if req.Profile.ModelOverride != "" {
		args = append(args, "--model", req.Profile.ModelOverride)
	}
	args = append(args, req.Prompt)

	return supervisor.Spec{
		Command: "claude",
		Args:    args,
	}, nil
}

func (a *Adapter) SupportsContinuation() bool { return true }

func (a *Adapter) SupportsPlanMode() bool { return true }

func (a *Adapter) NewNormalizer() normalize.Normalizer {
	return claudecode.New()
}

func (a *Adapter) DefaultMCPConfigPath() string {
	return ".mcp.json"
}

var (
	_ executor.Executor             = (*Adapter)(nil)
	_ executor.ContinuationCapable  = (*Adapter)(nil)
	_ executor.PlanModeCapable      = (*Adapter)(nil)
)

func init() {
	executor.Register("claude-code", func() executor.Executor { return New() })
}
