package diffengine

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/vibe-kanban/attemptcore/internal/model"
)

func run(t *testing.T, dir string, args ...string) {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(),
		"GIT_AUTHOR_NAME=test", "GIT_AUTHOR_EMAIL=test@example.com",
		"GIT_COMMITTER_NAME=test", "GIT_COMMITTER_EMAIL=test@example.com",
	)
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("git %v: %v\n%s", args, err, out)
	}
}

func initRepoWithChanges(t *testing.T) (dir, baseRef string) {
	t.Helper()
	dir = t.TempDir()
	run(t, dir, "init", "-b", "main")
	if err := os.WriteFile(filepath.Join(dir, "a.txt"), []byte("line1\n"), 0644); err != nil {
		t.Fatal(err)
	}
	run(t, dir, "add", ".")
	run(t, dir, "commit", "-m", "initial")

	if err := os.WriteFile(filepath.Join(dir, "a.txt"), []byte("line1\nline2\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "b.txt"), []byte("new file\n"), 0644); err != nil {
		t.Fatal(err)
	}
	return dir, "main"
}

func drainEntries(t *testing.T, ch <-chan model.DiffFileEntry) []model.DiffFileEntry {
	t.Helper()
	var entries []model.DiffFileEntry
	deadline := time.After(5 * time.Second)
	for {
		select {
		case e, ok := <-ch:
			if !ok {
				return entries
			}
			entries = append(entries, e)
		case <-deadline:
			t.Fatal("timed out draining diff entries")
		}
	}
}

func TestCompute_SummarizesAddedAndModifiedFiles(t *testing.T) {
	dir, base := initRepoWithChanges(t)
	e := New(Thresholds{})

	snap, ch, err := e.Compute(context.Background(), "attempt-1", []RepoRef{
		{RepoID: "repo-1", WorktreePath: dir, BaseRef: base},
	}, false)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if snap.Blocked {
		t.Fatalf("expected not blocked, reason=%s", snap.BlockedReason)
	}
	if snap.Summary.Files != 2 {
		t.Errorf("expected 2 changed files, got %d", snap.Summary.Files)
	}

	entries := drainEntries(t, ch)
	if len(entries) != 2 {
		t.Fatalf("expected 2 file entries, got %d", len(entries))
	}

	kinds := map[string]model.DiffChangeKind{}
	for _, en := range entries {
		kinds[en.Path] = en.ChangeKind
	}
	if kinds["a.txt"] != model.DiffModified {
		t.Errorf("expected a.txt modified, got %s", kinds["a.txt"])
	}
	if kinds["b.txt"] != model.DiffAdded {
		t.Errorf("expected b.txt added, got %s", kinds["b.txt"])
	}
}

func TestCompute_ThresholdExceededBlocksWithoutEntries(t *testing.T) {
	dir, base := initRepoWithChanges(t)
	e := New(Thresholds{MaxFiles: 1})

	snap, ch, err := e.Compute(context.Background(), "attempt-1", []RepoRef{
		{RepoID: "repo-1", WorktreePath: dir, BaseRef: base},
	}, false)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if !snap.Blocked || snap.BlockedReason != model.BlockedThresholdExceeded {
		t.Fatalf("expected threshold_exceeded block, got blocked=%v reason=%s", snap.Blocked, snap.BlockedReason)
	}
	if entries := drainEntries(t, ch); len(entries) != 0 {
		t.Errorf("expected no entries when blocked, got %d", len(entries))
	}
}

func TestCompute_ForceBypassesThreshold(t *testing.T) {
	dir, base := initRepoWithChanges(t)
	e := New(Thresholds{MaxFiles: 1})

	snap, ch, err := e.Compute(context.Background(), "attempt-1", []RepoRef{
		{RepoID: "repo-1", WorktreePath: dir, BaseRef: base},
	}, true)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if snap.Blocked {
		t.Fatalf("expected force to bypass threshold block, got reason=%s", snap.BlockedReason)
	}
	entries := drainEntries(t, ch)
	if len(entries) != 2 {
		t.Errorf("expected 2 entries under force, got %d", len(entries))
	}
}

func TestCompute_MissingWorktreeBlocksWithSummaryFailed(t *testing.T) {
	e := New(Thresholds{})
	snap, ch, err := e.Compute(context.Background(), "attempt-1", []RepoRef{
		{RepoID: "repo-1", WorktreePath: filepath.Join(t.TempDir(), "does-not-exist"), BaseRef: "main"},
	}, false)
	if err == nil {
		t.Fatal("expected an error for a missing worktree")
	}
	if !snap.Blocked || snap.BlockedReason != model.BlockedSummaryFailed {
		t.Fatalf("expected summary_failed block, got blocked=%v reason=%s", snap.Blocked, snap.BlockedReason)
	}
	if entries := drainEntries(t, ch); len(entries) != 0 {
		t.Errorf("expected no entries on summary failure, got %d", len(entries))
	}
}

func TestCompute_AggregatesAcrossMultipleRepos(t *testing.T) {
	dir1, base1 := initRepoWithChanges(t)
	dir2, base2 := initRepoWithChanges(t)
	e := New(Thresholds{})

	snap, ch, err := e.Compute(context.Background(), "attempt-1", []RepoRef{
		{RepoID: "repo-1", WorktreePath: dir1, BaseRef: base1},
		{RepoID: "repo-2", WorktreePath: dir2, BaseRef: base2},
	}, false)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if snap.Summary.Files != 4 {
		t.Errorf("expected 4 files across 2 repos, got %d", snap.Summary.Files)
	}
	entries := drainEntries(t, ch)
	if len(entries) != 4 {
		t.Fatalf("expected 4 streamed entries, got %d", len(entries))
	}
	repoIDs := map[string]bool{}
	for _, en := range entries {
		repoIDs[en.RepoID] = true
	}
	if !repoIDs["repo-1"] || !repoIDs["repo-2"] {
		t.Errorf("expected entries tagged with both repo ids, got %+v", repoIDs)
	}
}
