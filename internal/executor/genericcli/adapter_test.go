package genericcli

import (
	"testing"

	"github.com/vibe-kanban/attemptcore/internal/executor"
	"github.com/vibe-kanban/attemptcore/internal/model"
)

func TestAllVariants_Registered(t *testing.T) {
	for _, name := range []string{"gemini", "cursor", "amp", "opencode", "qwen", "copilot", "droid"} {
		if !executor.Exists(name) {
			t.Errorf("expected %q to be registered", name)
		}
	}
}

func TestBuildInitialSpec_AppendsPromptLast(t *testing.T) {
	e, err := executor.Get("gemini")
	if err != nil {
		t.Fatalf("Get(gemini): %v", err)
	}
	spec, err := e.BuildInitialSpec(model.InitialRequest{Prompt: "do the thing"})
	if err != nil {
		t.Fatalf("BuildInitialSpec: %v", err)
	}
	if spec.Args[len(spec.Args)-1] != "do the thing" {
		t.Errorf("expected prompt as last arg, got %v", spec.Args)
	}
}
