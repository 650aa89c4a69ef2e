package codex

import (
	"testing"

	"github.com/vibe-kanban/attemptcore/internal/model"
)

func TestBuildInitialSpec_IncludesJSONFlag(t *testing.T) {
	a := New()
	spec, err := a.BuildInitialSpec(model.InitialRequest{
		Prompt:     "implement feature",
		WorkingDir: "/work",
	})
	if err != nil {
		t.Fatalf("BuildInitialSpec: %v", err)
	}
	if spec.Command != "codex" {
		t.Errorf("expected command 'codex', got %q", spec.Command)
	}
	foundJSON := false
	for _, a := range spec.Args {
		if a == "--json" {
			foundJSON = true
		}
	}
	if !foundJSON {
		t.Errorf("expected --json flag in args, got %v", spec.Args)
	}
}

func TestBuildInitialSpec_ReasoningOverride(t *testing.T) {
	a := New()
	spec, err := a.BuildInitialSpec(model.InitialRequest{
		Prompt:  "go",
		Profile: model.ExecutorProfile{ReasoningOverride: "high"},
	})
	if err != nil {
		t.Fatalf("BuildInitialSpec: %v", err)
	}
	found := false
	for i, arg := range spec.Args {
		if arg == "-c" && i+1 < len(spec.Args) && spec.Args[i+1] == "model_reasoning_effort=high" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected reasoning effort override in args, got %v", spec.Args)
	}
}

func TestAdapter_DoesNotImplementContinuation(t *testing.T) {
	var e interface{} = New()
	if _, ok := e.(interface{ SupportsContinuation() bool }); ok {
		t.Error("codex adapter unexpectedly implements ContinuationCapable")
	}
}
