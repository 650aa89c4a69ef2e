// Package codex normalizes OpenAI Codex CLI's `--json` NDJSON event stream
// into model.NormalizedEntry values. Grounded on the CodexEvent/EventItem
// schema the teacher's internal/agent/codex adapter decodes in ParseOutput
// (item.completed / item.delta events, item types agent_message /
// command_execution / file_change), generalized here from "collect into a
// single IterationResult" to "emit entries incrementally per chunk".
package codex

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/vibe-kanban/attemptcore/internal/model"
	"github.com/vibe-kanban/attemptcore/internal/normalize"
)

type eventItem struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	Command  string `json:"command,omitempty"`
	Output   string `json:"output,omitempty"`
	FilePath string `json:"file_path,omitempty"`
}

type eventDelta struct {
	Text string `json:"text,omitempty"`
}

type codexEvent struct {
	Type  string      `json:"type"`
	Item  *eventItem  `json:"item,omitempty"`
	Delta *eventDelta `json:"delta,omitempty"`
}

// Normalizer is the stateful parser for one process's Codex CLI output.
type Normalizer struct {
	buf []byte

	counter normalize.ToolUseCounter
	// pendingCommands tracks command_execution items opened by item.started
	// (not emitted by this CLI version) — Codex only surfaces item.completed,
	// so each command_execution item.completed is both open and close in one
	// event; no cross-call correlation state is needed for it today.
}

// New constructs a Normalizer for one process's output stream.
func New() *Normalizer {
	return &Normalizer{}
}

// Normalize implements normalize.Normalizer.
func (n *Normalizer) Normalize(chunk []byte) []model.NormalizedEntry {
	data := chunk
	if len(n.buf) > 0 {
		data = append(append([]byte{}, n.buf...), chunk...)
	}

	lines := bytes.Split(data, []byte("\n"))
	complete := lines
	if len(data) == 0 || data[len(data)-1] != '\n' {
		n.buf = append([]byte{}, lines[len(lines)-1]...)
		complete = lines[:len(lines)-1]
	} else {
		n.buf = nil
	}

	var out []model.NormalizedEntry
	for _, line := range complete {
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		out = append(out, n.normalizeLine(line)...)
	}
	return out
}

func (n *Normalizer) normalizeLine(line []byte) []model.NormalizedEntry {
	var evt codexEvent
	if err := json.Unmarshal(line, &evt); err != nil {
		return nil
	}

	now := time.Now()

	switch evt.Type {
	case "item.delta", "response.output_text.delta":
		if evt.Delta != nil && evt.Delta.Text != "" {
			return []model.NormalizedEntry{{
				Type:      model.EntryAssistantMessage,
				Content:   evt.Delta.Text,
				Timestamp: &now,
			}}
		}
		return nil

	case "item.completed":
		if evt.Item == nil {
			return nil
		}
		switch evt.Item.Type {
		case "agent_message":
			if evt.Item.Text == "" {
				return nil
			}
			return []model.NormalizedEntry{{
				Type:      model.EntryAssistantMessage,
				Content:   evt.Item.Text,
				Timestamp: &now,
			}}
		case "command_execution":
			result := evt.Item.Output
			return []model.NormalizedEntry{{
				Type:      model.EntryToolUse,
				Content:   evt.Item.Command,
				Timestamp: &now,
				ToolUse: &model.ToolUse{
					ToolUseID: n.counter.Next(),
					ToolName:  "shell",
					Action: model.ActionType{
						Kind: model.ActionCommandRun,
						CommandRun: &model.CommandRunAction{
							Command: evt.Item.Command,
							Result:  &result,
						},
					},
					Status: model.ToolSuccess,
				},
			}}
		case "file_change":
			if evt.Item.FilePath == "" {
				return nil
			}
			return []model.NormalizedEntry{{
				Type:      model.EntryToolUse,
				Content:   evt.Item.FilePath,
				Timestamp: &now,
				ToolUse: &model.ToolUse{
					ToolUseID: n.counter.Next(),
					ToolName:  "apply_patch",
					Action: model.ActionType{
						Kind: model.ActionFileEdit,
						FileEdit: &model.FileEditAction{
							Path:       evt.Item.FilePath,
							ChangeKind: model.FileUpdated,
						},
					},
					Status: model.ToolSuccess,
				},
			}}
		}
	}
	return nil
}
