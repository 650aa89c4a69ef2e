// Package wizard provides the interactive approval form attemptctl shows
// when an attempt's Approval Coordinator registers a pending decision:
// the tool-use prompt, with a yes/no choice and an optional comment.
//
// Grounded on internal/cli/wizard/prompts.go's confirm/edit flow for
// project setup, replaced with a charmbracelet/huh form — the teacher's
// own bufio.Reader prompts are a reasonable fit for a handful of one-shot
// setup questions, but an approval decision blocking a running agent
// process benefits from huh's single-keystroke yes/no and inline comment
// field instead of a raw "y/n" line read.
package wizard

import (
	"fmt"

	"github.com/charmbracelet/huh"

	"github.com/vibe-kanban/attemptcore/internal/model"
)

// Decision is the operator's answer to a pending ApprovalRequest.
type Decision struct {
	Approved bool
	Comment  string
}

// AskApproval renders a form for req and returns the operator's decision.
// Blocks until the form is submitted; returns an error if the terminal
// session is aborted (e.g. Ctrl+C).
func AskApproval(req model.ApprovalRequest) (Decision, error) {
	var choice bool = true
	var comment string

	fmt.Printf("\nApproval requested for tool use %s (process %s)\n", req.ToolUseID, req.ProcessID)

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewNote().
				Title("Pending approval").
				Description(req.Prompt),
			huh.NewConfirm().
				Title("Approve this action?").
				Affirmative("Approve").
				Negative("Deny").
				Value(&choice),
			huh.NewText().
				Title("Comment (optional)").
				Value(&comment),
		),
	)

	if err := form.Run(); err != nil {
		return Decision{}, fmt.Errorf("approval form: %w", err)
	}

	return Decision{Approved: choice, Comment: comment}, nil
}

// ConfirmStop asks for confirmation before force-stopping a running
// attempt, per the orchestrator's Stop(ctx, force) contract.
func ConfirmStop(attemptID string) (bool, error) {
	confirmed := false
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(fmt.Sprintf("Stop attempt %s?", attemptID)).
				Affirmative("Stop").
				Negative("Cancel").
				Value(&confirmed),
		),
	)
	if err := form.Run(); err != nil {
		return false, fmt.Errorf("stop confirmation form: %w", err)
	}
	return confirmed, nil
}
