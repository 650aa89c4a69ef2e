// Package watch renders a live, scrolling view of one process's normalized
// log (C1's Message Store) to the terminal, pausing to collect an operator's
// decision whenever a tool_use gates on the Approval Coordinator (C6).
//
// Grounded on the orchestration-mode TUI in the example pack
// (zjrosen/perles's internal/orchestration): a bubbles/viewport scrolling
// pane plus lipgloss chrome tailing a live agent session, generalized here
// from a three-pane chat/message/worker layout to a single log pane, since
// this core has exactly one normalized stream per process rather than a
// multi-pane coordinator/worker split. Approval collection uses
// bubbletea's ReleaseTerminal/RestoreTerminal instead of perles's in-TUI
// formmodal overlay — both solve the same problem (a synchronous decision
// without losing the log view's state), but huh's form already has to run
// standalone for attemptctl's own non-interactive callers, so reusing it
// here instead of building a second modal widget avoids two approval UIs.
package watch

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/vibe-kanban/attemptcore/internal/approval"
	"github.com/vibe-kanban/attemptcore/internal/cli/wizard"
	"github.com/vibe-kanban/attemptcore/internal/model"
	"github.com/vibe-kanban/attemptcore/internal/store"
)

// Params bundles what Run needs to tail one process's normalized log and,
// when a tool_use gates on an approval, hand the decision back to the
// Approval Coordinator that registered it.
type Params struct {
	Store     *store.Store[model.LogBody]
	Approvals *approval.Coordinator
}

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("33"))
	toolStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

type appendMsg string

type finishedMsg struct{}

type tuiModel struct {
	vp     viewport.Model
	lines  []string
	ready  bool
	done   bool
}

func newModel() tuiModel {
	return tuiModel{}
}

func (m tuiModel) Init() tea.Cmd { return nil }

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		if !m.ready {
			m.vp = viewport.New(msg.Width, msg.Height-1)
			m.ready = true
		} else {
			m.vp.Width = msg.Width
			m.vp.Height = msg.Height - 1
		}
		m.vp.SetContent(strings.Join(m.lines, "\n"))
		m.vp.GotoBottom()

	case appendMsg:
		m.lines = append(m.lines, string(msg))
		if m.ready {
			m.vp.SetContent(strings.Join(m.lines, "\n"))
			m.vp.GotoBottom()
		}

	case finishedMsg:
		m.done = true
		return m, tea.Quit

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		}
	}

	var cmd tea.Cmd
	m.vp, cmd = m.vp.Update(msg)
	return m, cmd
}

func (m tuiModel) View() string {
	header := headerStyle.Render("attemptctl — live log (q to quit)")
	if !m.ready {
		return header
	}
	return header + "\n" + m.vp.View()
}

// Run tails p.Store to a scrolling terminal view until ctx is cancelled or
// the store finishes (the process exited). Blocks until the view exits.
func Run(ctx context.Context, p Params) error {
	ch, cancelSub, err := p.Store.Subscribe()
	if err != nil {
		return err
	}
	defer cancelSub()

	program := tea.NewProgram(newModel())

	go pumpEntries(ctx, program, ch, p.Approvals)

	_, err = program.Run()
	return err
}

// pumpEntries renders every LogBody from ch as a line, pausing the TUI to
// run the huh approval wizard whenever a not-yet-seen approval_request
// surfaces, and quits the program once ctx is cancelled or ch closes.
func pumpEntries(ctx context.Context, program *tea.Program, ch <-chan store.Indexed[model.LogBody], approvals *approval.Coordinator) {
	seen := make(map[string]bool)
	for {
		select {
		case <-ctx.Done():
			program.Send(finishedMsg{})
			return
		case indexed, ok := <-ch:
			if !ok {
				program.Send(finishedMsg{})
				return
			}
			body := indexed.Value
			if body.Kind != model.LogNormalized || body.Normalized == nil {
				continue
			}
			entry := *body.Normalized
			program.Send(appendMsg(renderEntry(entry)))

			if approvals == nil || entry.ToolUse == nil {
				continue
			}
			if entry.ToolUse.Action.Kind != model.ActionApprovalRequest || entry.ToolUse.Action.ApprovalRequest == nil {
				continue
			}
			ar := entry.ToolUse.Action.ApprovalRequest
			if seen[ar.ID] {
				continue
			}
			seen[ar.ID] = true
			go collectApprovalDecision(program, approvals, model.ApprovalRequest{
				ID:        ar.ID,
				ToolUseID: entry.ToolUse.ToolUseID,
				Prompt:    ar.Prompt,
			})
		}
	}
}

// collectApprovalDecision releases the terminal to the huh wizard, submits
// the decision to approvals, and restores the TUI. Runs on its own
// goroutine so a slow operator never blocks the log pane from rendering
// new entries for a different tool use.
func collectApprovalDecision(program *tea.Program, approvals *approval.Coordinator, req model.ApprovalRequest) {
	if err := program.ReleaseTerminal(); err != nil {
		return
	}
	decision, err := wizard.AskApproval(req)
	_ = program.RestoreTerminal()
	if err != nil {
		program.Send(appendMsg(errorStyle.Render(fmt.Sprintf("approval prompt failed: %v", err))))
		return
	}
	if err := approvals.Decide(req.ID, decision.Approved); err != nil {
		program.Send(appendMsg(errorStyle.Render(fmt.Sprintf("approval decision for %s: %v", req.ID, err))))
		return
	}
	verb := "approved"
	if !decision.Approved {
		verb = "denied"
	}
	program.Send(appendMsg(dimStyle.Render(fmt.Sprintf("— %s %s", req.ID, verb))))
}

func renderEntry(entry model.NormalizedEntry) string {
	switch entry.Type {
	case model.EntryToolUse:
		if entry.ToolUse == nil {
			return entry.Content
		}
		return toolStyle.Render(fmt.Sprintf("[%s:%s] %s", entry.ToolUse.ToolName, entry.ToolUse.Status, entry.Content))
	case model.EntryErrorMessage:
		if entry.Error != nil {
			return errorStyle.Render(fmt.Sprintf("[error:%s] %s", entry.Error.ErrorType, entry.Error.Message))
		}
		return errorStyle.Render(entry.Content)
	default:
		return entry.Content
	}
}
