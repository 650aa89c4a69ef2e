package codex

import (
	"testing"

	"github.com/vibe-kanban/attemptcore/internal/model"
)

func TestNormalize_AgentMessageCompleted(t *testing.T) {
	n := New()
	line := `{"type":"item.completed","item":{"type":"agent_message","text":"done"}}` + "\n"
	entries := n.Normalize([]byte(line))
	if len(entries) != 1 || entries[0].Content != "done" {
		t.Fatalf("unexpected entries: %+v", entries)
	}
	if entries[0].Type != model.EntryAssistantMessage {
		t.Errorf("expected assistant message entry, got %v", entries[0].Type)
	}
}

func TestNormalize_CommandExecutionCompleted(t *testing.T) {
	n := New()
	line := `{"type":"item.completed","item":{"type":"command_execution","command":"go build ./...","output":"ok"}}` + "\n"
	entries := n.Normalize([]byte(line))
	if len(entries) != 1 || entries[0].Type != model.EntryToolUse {
		t.Fatalf("expected 1 tool_use entry, got %+v", entries)
	}
	if entries[0].ToolUse.Action.CommandRun.Command != "go build ./..." {
		t.Errorf("unexpected command: %+v", entries[0].ToolUse.Action.CommandRun)
	}
}

func TestNormalize_FileChangeCompleted(t *testing.T) {
	n := New()
	line := `{"type":"item.completed","item":{"type":"file_change","file_path":"main.go"}}` + "\n"
	entries := n.Normalize([]byte(line))
	if len(entries) != 1 || entries[0].ToolUse.Action.Kind != model.ActionFileEdit {
		t.Fatalf("expected file_edit action, got %+v", entries)
	}
}

func TestNormalize_DeltaEvent(t *testing.T) {
	n := New()
	line := `{"type":"item.delta","delta":{"text":"partial "}}` + "\n"
	entries := n.Normalize([]byte(line))
	if len(entries) != 1 || entries[0].Content != "partial " {
		t.Fatalf("unexpected entries: %+v", entries)
	}
}
