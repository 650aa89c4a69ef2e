package claudecode

import (
	"strings"
	"testing"

	"github.com/vibe-kanban/attemptcore/internal/model"
)

func TestNormalize_AssistantTextBlock(t *testing.T) {
	n := New()
	line := `{"type":"assistant","message":{"content":[{"type":"text","text":"hello there"}]}}` + "\n"
	entries := n.Normalize([]byte(line))
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].Type != model.EntryAssistantMessage || entries[0].Content != "hello there" {
		t.Errorf("unexpected entry: %+v", entries[0])
	}
}

func TestNormalize_PartialLineAcrossChunks(t *testing.T) {
	n := New()
	full := `{"type":"assistant","message":{"content":[{"type":"text","text":"split"}]}}` + "\n"
	mid := len(full) / 2

	first := n.Normalize([]byte(full[:mid]))
	if len(first) != 0 {
		t.Fatalf("expected no entries from a partial line, got %d", len(first))
	}
	second := n.Normalize([]byte(full[mid:]))
	if len(second) != 1 || second[0].Content != "split" {
		t.Fatalf("expected the completed line to parse, got %+v", second)
	}
}

func TestNormalize_ToolUseLifecycle(t *testing.T) {
	n := New()
	useLine := `{"type":"assistant","message":{"content":[{"type":"tool_use","name":"Bash","input":{"command":"go test ./..."}}]}}` + "\n"
	resultLine := `{"type":"user","message":{"content":[{"type":"tool_result","content":"ok"}]}}` + "\n"

	created := n.Normalize([]byte(useLine))
	if len(created) != 1 || created[0].Type != model.EntryToolUse {
		t.Fatalf("expected 1 tool_use entry, got %+v", created)
	}
	if created[0].ToolUse.Status != model.ToolCreated {
		t.Errorf("expected created status, got %v", created[0].ToolUse.Status)
	}
	id := created[0].ToolUse.ToolUseID

	resolved := n.Normalize([]byte(resultLine))
	if len(resolved) != 1 {
		t.Fatalf("expected 1 resolution entry, got %d", len(resolved))
	}
	if resolved[0].ToolUse.ToolUseID != id {
		t.Errorf("expected matching tool_use id %s, got %s", id, resolved[0].ToolUse.ToolUseID)
	}
	if resolved[0].ToolUse.Status != model.ToolSuccess {
		t.Errorf("expected success status, got %v", resolved[0].ToolUse.Status)
	}
}

func TestNormalize_ToolResultErrorMarksFailed(t *testing.T) {
	n := New()
	n.Normalize([]byte(`{"type":"assistant","message":{"content":[{"type":"tool_use","name":"Bash","input":{"command":"false"}}]}}` + "\n"))
	resolved := n.Normalize([]byte(`{"type":"user","message":{"content":[{"type":"tool_result","content":"Error: command failed"}]}}` + "\n"))
	if len(resolved) != 1 || resolved[0].ToolUse.Status != model.ToolFailed {
		t.Fatalf("expected failed status, got %+v", resolved)
	}
}

func TestNormalize_ThinkingTruncated(t *testing.T) {
	n := New()
	longThinking := strings.Repeat("x", maxThinkingBytes+1000)
	line := `{"type":"assistant","message":{"content":[{"type":"thinking","thinking":"` + longThinking + `"}]}}` + "\n"
	entries := n.Normalize([]byte(line))
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if len(entries[0].Content) != maxThinkingBytes {
		t.Errorf("expected truncation to %d bytes, got %d", maxThinkingBytes, len(entries[0].Content))
	}
}

func TestNormalize_MalformedLineSkipped(t *testing.T) {
	n := New()
	entries := n.Normalize([]byte("not json\n"))
	if len(entries) != 0 {
		t.Fatalf("expected malformed line to be skipped, got %+v", entries)
	}
}
