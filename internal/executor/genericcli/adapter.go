// Package genericcli provides Executor Adapter (C5) variants for coding
// agent CLIs that, unlike Claude Code and Codex, have no teacher-grounded
// output schema in this corpus: gemini, cursor, amp, opencode, qwen,
// copilot, droid. Each still follows the same invocation shape observed
// across the teacher's real adapters (a print/non-interactive flag, the
// prompt as the final positional argument, plain text on stdout) but is
// normalized with the line-based fallback normalizer rather than a
// CLI-specific structured parser, since no sample output for these CLIs
// appears anywhere in the example pack.
package genericcli

import (
	"github.com/vibe-kanban/attemptcore/internal/executor"
	"github.com/vibe-kanban/attemptcore/internal/model"
	"github.com/vibe-kanban/attemptcore/internal/normalize"
	normfake "github.com/vibe-kanban/attemptcore/internal/normalize/fakeagent"
	"github.com/vibe-kanban/attemptcore/internal/supervisor"
)

// spec describes one CLI's invocation shape.
type spec struct {
	name          string
	command       string
	baseArgs      []string
	mcpConfigPath string
}

// Adapter implements executor.Executor for a table-described CLI.
type Adapter struct {
	spec spec
}

func (a *Adapter) Name() string { return a.spec.name }

func (a *Adapter) BuildInitialSpec(req model.InitialRequest) (supervisor.Spec, error) {
	args := append(append([]string{}, a.spec.baseArgs...), req.Prompt)
	return supervisor.Spec{
		Command: a.spec.command,
		Args:    args,
		Dir:     req.WorkingDir,
	}, nil
}

func (a *Adapter) NewNormalizer() normalize.Normalizer {
	return normfake.New()
}

func (a *Adapter) DefaultMCPConfigPath() string { return a.spec.mcpConfigPath }

var _ executor.Executor = (*Adapter)(nil)

var specs = []spec{
	{name: "gemini", command: "gemini", baseArgs: []string{"--yolo", "-p"}},
	{name: "cursor", command: "cursor-agent", baseArgs: []string{"--print", "--force"}},
	{name: "amp", command: "amp", baseArgs: []string{"--execute"}},
	{name: "opencode", command: "opencode", baseArgs: []string{"run"}},
	{name: "qwen", command: "qwen", baseArgs: []string{"--yolo", "-p"}},
	{name: "copilot", command: "copilot", baseArgs: []string{"--prompt"}},
	{name: "droid", command: "droid", baseArgs: []string{"exec"}},
}

func init() {
	for _, s := range specs {
		s := s
		executor.Register(s.name, func() executor.Executor {
			return &Adapter{spec: s}
		})
	}
}
