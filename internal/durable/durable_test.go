package durable

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestMemoryAppender_AppendAndAll(t *testing.T) {
	m := NewMemoryAppender()
	ctx := context.Background()

	if err := m.Append(ctx, "attempt-1", 0, []byte(`{"a":1}`)); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := m.Append(ctx, "attempt-1", 1, []byte(`{"a":2}`)); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := m.Append(ctx, "attempt-2", 0, []byte(`{"b":1}`)); err != nil {
		t.Fatalf("Append: %v", err)
	}

	got := m.All("attempt-1")
	if len(got) != 2 {
		t.Fatalf("All(attempt-1) len = %d, want 2", len(got))
	}
	if got[0].Index != 0 || string(got[0].Data) != `{"a":1}` {
		t.Errorf("entry 0 = %+v, want index=0 data={\"a\":1}", got[0])
	}
	if got[1].Index != 1 || string(got[1].Data) != `{"a":2}` {
		t.Errorf("entry 1 = %+v, want index=1 data={\"a\":2}", got[1])
	}

	other := m.All("attempt-2")
	if len(other) != 1 {
		t.Fatalf("All(attempt-2) len = %d, want 1", len(other))
	}
}

func TestMemoryAppender_UnknownAttemptReturnsEmpty(t *testing.T) {
	m := NewMemoryAppender()
	if got := m.All("never-appended"); len(got) != 0 {
		t.Errorf("All() = %v, want empty", got)
	}
}

func TestFileAppender_WritesOneFilePerAttempt(t *testing.T) {
	dir := t.TempDir()
	fa, err := NewFileAppender(dir)
	if err != nil {
		t.Fatalf("NewFileAppender: %v", err)
	}
	ctx := context.Background()

	if err := fa.Append(ctx, "attempt-1", 0, []byte(`{"a":1}`)); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := fa.Append(ctx, "attempt-1", 1, []byte(`{"a":2}`)); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := fa.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "attempt-1.jsonl"))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	want := "0\t{\"a\":1}\n1\t{\"a\":2}\n"
	if string(data) != want {
		t.Errorf("file contents = %q, want %q", string(data), want)
	}
}

func TestFileAppender_SeparatesAttempts(t *testing.T) {
	dir := t.TempDir()
	fa, err := NewFileAppender(dir)
	if err != nil {
		t.Fatalf("NewFileAppender: %v", err)
	}
	defer fa.Close()
	ctx := context.Background()

	if err := fa.Append(ctx, "attempt-a", 0, []byte("a")); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := fa.Append(ctx, "attempt-b", 0, []byte("b")); err != nil {
		t.Fatalf("Append: %v", err)
	}

	if _, err := os.Stat(filepath.Join(dir, "attempt-a.jsonl")); err != nil {
		t.Errorf("expected attempt-a.jsonl to exist: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "attempt-b.jsonl")); err != nil {
		t.Errorf("expected attempt-b.jsonl to exist: %v", err)
	}
}
