// Package claudecode normalizes Claude Code's stream-json NDJSON output into
// model.NormalizedEntry values. Directly generalizes
// internal/agent/claudecode/stream.go's ParseStreamJSON, which parsed a
// complete captured buffer in one shot, into a stateful parser that accepts
// arbitrarily-chunked input and retains tool-use lifecycle state across
// calls — neither of which the teacher's batch-collect-then-parse use case
// needed.
package claudecode

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	"github.com/vibe-kanban/attemptcore/internal/model"
	"github.com/vibe-kanban/attemptcore/internal/normalize"
)

// maxThinkingBytes truncates thinking blocks before they reach the log
// store, matching the teacher's MaxThinkingBytes constant (sized against
// Cloud Logging's 64KB entry limit).
const maxThinkingBytes = 50000

type rawContentBlock struct {
	Type     string          `json:"type"`
	Text     string          `json:"text,omitempty"`
	Thinking string          `json:"thinking,omitempty"`
	Name     string          `json:"name,omitempty"`
	Input    json.RawMessage `json:"input,omitempty"`
	Content  interface{}     `json:"content,omitempty"`
}

type rawEvent struct {
	Type    string          `json:"type"`
	Subtype string          `json:"subtype,omitempty"`
	Message json.RawMessage `json:"message,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
}

type rawMessage struct {
	Content []rawContentBlock `json:"content"`
}

type rawResult struct {
	Content    []rawContentBlock `json:"content"`
	StopReason string            `json:"stop_reason,omitempty"`
}

type toolInput struct {
	Command   string `json:"command,omitempty"`
	FilePath  string `json:"file_path,omitempty"`
	Path      string `json:"path,omitempty"`
	Query     string `json:"query,omitempty"`
	Offset    int    `json:"offset,omitempty"`
	Limit     int    `json:"limit,omitempty"`
	OldString string `json:"old_string,omitempty"`
}

// Normalizer is the stateful NDJSON-to-NormalizedEntry parser for one
// process's Claude Code output.
type Normalizer struct {
	buf []byte

	counter normalize.ToolUseCounter
	// pendingTools is a FIFO of tool_use entries awaiting their matching
	// tool_result. Claude Code's stream-json format does not correlate
	// tool_use and tool_result by id, so entries are closed out in the
	// order they were opened.
	pendingTools []model.NormalizedEntry
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
	var evt rawEvent
	if err := json.Unmarshal(line, &evt); err != nil {
		return nil // malformed lines are skipped, matching the teacher's parser
	}

	now := time.Now()

	switch evt.Type {
	case "assistant", "user":
		var msg rawMessage
		if err := json.Unmarshal(evt.Message, &msg); err != nil {
			return nil
		}
		return n.extractBlocks(msg.Content, now)

	case "result":
		var res rawResult
		if err := json.Unmarshal(evt.Result, &res); err != nil {
			return nil
		}
		return n.extractBlocks(res.Content, now)

	default:
		return nil
	}
}

func (n *Normalizer) extractBlocks(blocks []rawContentBlock, now time.Time) []model.NormalizedEntry {
	var out []model.NormalizedEntry
	for _, block := range blocks {
		switch block.Type {
		case "text":
			if block.Text == "" {
				continue
			}
			out = append(out, model.NormalizedEntry{
				Type:      model.EntryAssistantMessage,
				Content:   block.Text,
				Timestamp: &now,
			})

		case "thinking":
			content := block.Thinking
			if len(content) > maxThinkingBytes {
				content = content[:maxThinkingBytes]
			}
			out = append(out, model.NormalizedEntry{
				Type:      model.EntryThinking,
				Content:   content,
				Timestamp: &now,
			})

		case "tool_use":
			entry := n.toolUseEntry(block, now)
			n.pendingTools = append(n.pendingTools, entry)
			out = append(out, entry)

		case "tool_result":
			content := blockContentToString(block.Content)
			if len(n.pendingTools) == 0 {
				continue // orphaned result with no matching created entry
			}
			created := n.pendingTools[0]
			n.pendingTools = n.pendingTools[1:]
			status := model.ToolSuccess
			if strings.Contains(strings.ToLower(content), "error") {
				status = model.ToolFailed
			}
			out = append(out, created.WithToolStatus(status))
		}
	}
	return out
}

func (n *Normalizer) toolUseEntry(block rawContentBlock, now time.Time) model.NormalizedEntry {
	var in toolInput
	_ = json.Unmarshal(block.Input, &in)

	action := actionFor(block.Name, in)

	return model.NormalizedEntry{
		Type:      model.EntryToolUse,
		Content:   block.Name,
		Timestamp: &now,
		ToolUse: &model.ToolUse{
			ToolUseID: n.counter.Next(),
			ToolName:  block.Name,
			Action:    action,
			Status:    model.ToolCreated,
		},
	}
}

func actionFor(toolName string, in toolInput) model.ActionType {
	switch toolName {
	case "Bash":
		return model.ActionType{
			Kind:       model.ActionCommandRun,
			CommandRun: &model.CommandRunAction{Command: in.Command},
		}
	case "Edit", "Write", "MultiEdit":
		kind := model.FileUpdated
		if toolName == "Write" {
			kind = model.FileCreated
		}
		path := in.FilePath
		if path == "" {
			path = in.Path
		}
		return model.ActionType{
			Kind: model.ActionFileEdit,
			FileEdit: &model.FileEditAction{
				Path:       path,
				ChangeKind: kind,
				Preview:    in.OldString,
			},
		}
	case "Read":
		path := in.FilePath
		if path == "" {
			path = in.Path
		}
		fr := &model.FileReadAction{Path: path}
		if in.Offset != 0 || in.Limit != 0 {
			fr.Range = &model.FileRange{StartLine: in.Offset, EndLine: in.Offset + in.Limit}
		}
		return model.ActionType{Kind: model.ActionFileRead, FileRead: fr}
	case "WebSearch":
		return model.ActionType{
			Kind:      model.ActionWebSearch,
			WebSearch: &model.WebSearchAction{Query: in.Query},
		}
	default:
		return model.ActionType{
			Kind:       model.ActionCommandRun,
			CommandRun: &model.CommandRunAction{Command: toolName},
		}
	}
}

func blockContentToString(content interface{}) string {
	if content == nil {
		return ""
	}
	switch v := content.(type) {
	case string:
		return v
	case []interface{}:
		var parts []string
		for _, item := range v {
			if m, ok := item.(map[string]interface{}); ok {
				if text, ok := m["text"].(string); ok && text != "" {
					parts = append(parts, text)
				}
			}
		}
		if len(parts) > 0 {
			return strings.Join(parts, "\n")
		}
		data, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(data)
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(data)
	}
}
