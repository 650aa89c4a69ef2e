// Package fakeagent is the test-only Executor Adapter variant spec.md §9
// calls for: it runs a tiny shell script instead of a real coding-agent CLI,
// so the rest of the orchestrator (supervisor, normalizer, approvals, diff
// engine) can be exercised end-to-end without Docker images or API keys.
package fakeagent

import (
	"fmt"

	"github.com/vibe-kanban/attemptcore/internal/executor"
	"github.com/vibe-kanban/attemptcore/internal/model"
	"github.com/vibe-kanban/attemptcore/internal/normalize"
	normfake "github.com/vibe-kanban/attemptcore/internal/normalize/fakeagent"
	"github.com/vibe-kanban/attemptcore/internal/supervisor"
)

// VariantApproval is the ExecutorProfile.Variant value that makes the fake
// agent ask for approval instead of running its tool unattended, so the
// Approval Coordinator path can be driven by a real spawned process.
const VariantApproval = "approval"

// Adapter implements executor.Executor, executor.ContinuationCapable, and
// executor.PlanModeCapable with deterministic, dependency-free behavior.
type Adapter struct{}

// New constructs a fake executor adapter.
func New() *Adapter { return &Adapter{} }

func (a *Adapter) Name() string { return "fake-agent" }

func (a *Adapter) BuildInitialSpec(req model.InitialRequest) (supervisor.Spec, error) {
	script := scenarioScript(req.Prompt, req.Profile.Variant)
	return supervisor.Spec{
		Command:    "sh",
		Args:       []string{"-c", script},
		Dir:        req.WorkingDir,
		NeedsStdin: req.Profile.Variant == VariantApproval,
	}, nil
}

func (a *Adapter) BuildFollowUpSpec(req model.FollowUpRequest) (supervisor.Spec, error) {
	script := scenarioScript(req.Prompt, req.Profile.Variant)
	return supervisor.Spec{
		Command:    "sh",
		Args:       []string{"-c", script},
		NeedsStdin: req.Profile.Variant == VariantApproval,
	}, nil
}

// scenarioScript builds the shell one-liner the fake agent "runs". Variant
// VariantApproval emits an APPROVE: line instead of a TOOL: one, so the
// normalizer produces an ActionApprovalRequest entry and the process then
// blocks on stdin for the Approval Coordinator's decision line, matching
// spec.md's S3/S4 scenarios.
func scenarioScript(prompt, variant string) string {
	echo := fmt.Sprintf("echo %q", prompt)
	if variant == VariantApproval {
		return echo + "; echo 'APPROVE: rm -rf /tmp/scratch'; read -r decision; echo \"DECIDED: $decision\"\n"
	}
	return echo + "; echo 'TOOL: git status'\n"
}

func (a *Adapter) SupportsContinuation() bool { return true }

func (a *Adapter) SupportsPlanMode() bool { return true }

func (a *Adapter) NewNormalizer() normalize.Normalizer {
	return normfake.New()
}

func (a *Adapter) DefaultMCPConfigPath() string { return "" }

var (
	_ executor.Executor            = (*Adapter)(nil)
	_ executor.ContinuationCapable = (*Adapter)(nil)
	_ executor.PlanModeCapable     = (*Adapter)(nil)
)

func init() {
	executor.Register("fake-agent", func() executor.Executor { return New() })
}
