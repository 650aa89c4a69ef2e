// Package audit classifies an attempt's tool-use actions into
// security-relevant categories (bash commands, sensitive file writes,
// package installs, outbound data transfers, URLs browsed) and hands them
// to a caller-supplied sink, typically an obslog.Logger, for forensic
// visibility into what an agent process actually did.
//
// Grounded on the teacher's internal/audit package, adapted from
// extracting categories out of per-adapter tool_use wire shapes
// (Claude Code's StreamEvent, Codex's event items) to classifying the
// single model.NormalizedEntry.ToolUse shape every executor adapter in
// this repo already normalizes into — one extraction path instead of one
// per adapter.
package audit

import "github.com/vibe-kanban/attemptcore/internal/model"

// Category represents a security-relevant action category.
type Category string

const (
	BashCommand          Category = "BASH_COMMAND"
	URLBrowsed           Category = "URL_BROWSED"
	SensitiveFileWrite   Category = "SENSITIVE_FILE_WRITE"
	PackageInstall       Category = "PACKAGE_INSTALL"
	OutboundDataTransfer Category = "OUTBOUND_DATA_TRANSFER"
)

// Event is a single security audit event extracted from one tool use.
type Event struct {
	Category  Category
	ToolName  string
	AttemptID string
	ProcessID string
	Message   string
}

// ExtractFromEntry inspects a tool_use NormalizedEntry and returns every
// audit event it triggers. Returns nil for entries with no audit-relevant
// action (most entries) or that aren't tool_use at all.
func ExtractFromEntry(entry model.NormalizedEntry, attemptID, processID string) []Event {
	if entry.Type != model.EntryToolUse || entry.ToolUse == nil {
		return nil
	}
	tu := entry.ToolUse
	action := tu.Action

	switch action.Kind {
	case model.ActionCommandRun:
		if action.CommandRun == nil || action.CommandRun.Command == "" {
			return nil
		}
		return eventsFor(ClassifyBashCommand(action.CommandRun.Command), tu.ToolName, attemptID, processID, action.CommandRun.Command)

	case model.ActionFileEdit:
		if action.FileEdit == nil || !IsSensitivePath(action.FileEdit.Path) {
			return nil
		}
		return []Event{{Category: SensitiveFileWrite, ToolName: tu.ToolName, AttemptID: attemptID, ProcessID: processID, Message: action.FileEdit.Path}}

	case model.ActionWebSearch:
		if action.WebSearch == nil || action.WebSearch.Query == "" {
			return nil
		}
		return []Event{{Category: URLBrowsed, ToolName: tu.ToolName, AttemptID: attemptID, ProcessID: processID, Message: action.WebSearch.Query}}

	default:
		return nil
	}
}

func eventsFor(categories []Category, toolName, attemptID, processID, message string) []Event {
	if len(categories) == 0 {
		return nil
	}
	out := make([]Event, 0, len(categories))
	for _, cat := range categories {
		out = append(out, Event{Category: cat, ToolName: toolName, AttemptID: attemptID, ProcessID: processID, Message: message})
	}
	return out
}
