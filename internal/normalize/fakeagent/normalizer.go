// Package fakeagent provides the normalizer half of the fake executor
// variant spec.md §9 calls for: a deterministic, dependency-free agent used
// by the test suite in place of a real CLI. Its wire format is plain text,
// one NormalizedEntry per non-empty line, with two line-prefix conventions
// ("TOOL: " for an auto-approved tool invocation, "APPROVE: " for one that
// gates on the Approval Coordinator) standing in for the two tool_use
// lifecycles spec.md §4.6 describes — just enough structure to exercise
// both without needing to fake an entire CLI's NDJSON schema.
package fakeagent

import (
	"bytes"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vibe-kanban/attemptcore/internal/model"
	"github.com/vibe-kanban/attemptcore/internal/normalize"
)

const (
	toolPrefix     = "TOOL: "
	approvePrefix  = "APPROVE: "
)

// Normalizer is the stateful line-buffering parser for the fake agent's
// plain-text output convention.
type Normalizer struct {
	buf     []byte
	counter normalize.ToolUseCounter
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
	now := time.Now()
	for _, line := range complete {
		text := strings.TrimSpace(string(line))
		if text == "" {
			continue
		}
		if strings.HasPrefix(text, toolPrefix) {
			command := strings.TrimPrefix(text, toolPrefix)
			out = append(out, model.NormalizedEntry{
				Type:      model.EntryToolUse,
				Content:   command,
				Timestamp: &now,
				ToolUse: &model.ToolUse{
					ToolUseID: n.counter.Next(),
					ToolName:  "fake_tool",
					Action: model.ActionType{
						Kind:       model.ActionCommandRun,
						CommandRun: &model.CommandRunAction{Command: command},
					},
					Status: model.ToolSuccess,
				},
			})
			continue
		}
		if strings.HasPrefix(text, approvePrefix) {
			command := strings.TrimPrefix(text, approvePrefix)
			out = append(out, model.NormalizedEntry{
				Type:      model.EntryToolUse,
				Content:   command,
				Timestamp: &now,
				ToolUse: &model.ToolUse{
					ToolUseID: n.counter.Next(),
					ToolName:  "fake_tool",
					Action: model.ActionType{
						Kind: model.ActionApprovalRequest,
						ApprovalRequest: &model.ApprovalRequestAction{
							ID:     uuid.NewString(),
							Prompt: command,
						},
					},
					Status: model.ToolCreated,
				},
			})
			continue
		}
		out = append(out, model.NormalizedEntry{
			Type:      model.EntryAssistantMessage,
			Content:   text,
			Timestamp: &now,
		})
	}
	return out
}
