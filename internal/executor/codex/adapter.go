// Package codex is the Executor Adapter (C5) for OpenAI's Codex CLI.
// Grounded on internal/agent/codex/adapter.go's BuildCommand (--json,
// --skip-git-repo-check, model/reasoning-effort overrides).
package codex

import (
	"fmt"

	"github.com/vibe-kanban/attemptcore/internal/executor"
	"github.com/vibe-kanban/attemptcore/internal/model"
	"github.com/vibe-kanban/attemptcore/internal/normalize"
	normcodex "github.com/vibe-kanban/attemptcore/internal/normalize/codex"
	"github.com/vibe-kanban/attemptcore/internal/supervisor"
)

// Adapter implements executor.Executor for the Codex CLI. Codex has no
// session-resume flag the teacher's adapter relies on, so it does not
// implement executor.ContinuationCapable: a follow-up message is delivered
// as a new initial request carrying forward accumulated context instead.
type Adapter struct{}

// New constructs a Codex executor adapter.
func New() *Adapter { return &Adapter{} }

func (a *Adapter) Name() string { return "codex" }

func (a *Adapter) BuildInitialSpec(req model.InitialRequest) (supervisor.Spec, error) {
	args := []string{"exec", "--json", "--yolo", "--skip-git-repo-check", "--cd", req.WorkingDir}

	if req.Profile.ModelOverride != "" {
		args = append(args, "--model", req.Profile.ModelOverride)
	}
	if req.Profile.ReasoningOverride != "" {
		args = append(args, "-c", fmt.Sprintf("model_reasoning_effort=%s", req.Profile.ReasoningOverride))
	}
	args = append(args, req.Prompt)

	return supervisor.Spec{
		Command: "codex",
		Args:    args,
		Dir:     req.WorkingDir,
	}, nil
}

func (a *Adapter) NewNormalizer() normalize.Normalizer {
	return normcodex.New()
}

func (a *Adapter) DefaultMCPConfigPath() string {
	return ""
}

var _ executor.Executor = (*Adapter)(nil)

func init() {
	executor.Register("codex", func() executor.Executor { return New() })
}
