package worktree

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/vibe-kanban/attemptcore/internal/apperror"
	"github.com/vibe-kanban/attemptcore/internal/model"
)

// removingMarker is the name of the monotonic marker file written before a
// Set's directories are torn down. Its presence lets ScanOrphans recognize
// (and finish) a removal that was interrupted by a crash, rather than
// relying on an advisory lock that could be left stale by a dead process.
const removingMarker = ".attemptcore-removing"

// Entry records one repo's materialized worktree for an attempt.
type Entry struct {
	RepoID     string
	OriginPath string // the repo's canonical working copy, used to run git against
	Path       string // the worktree's own path
	Branch     string
}

// Set is the collection of per-repo worktrees materialized for one attempt.
type Set struct {
	AttemptID string
	Entries   []Entry
}

// Branches projects Set into the []model.RepoBranch shape stored on the Attempt.
func (s *Set) Branches() []model.RepoBranch {
	out := make([]model.RepoBranch, 0, len(s.Entries))
	for _, e := range s.Entries {
		out = append(out, model.RepoBranch{RepoID: e.RepoID, Branch: e.Branch})
	}
	return out
}

// PathFor returns the worktree path for a repo id, or "" if absent.
func (s *Set) PathFor(repoID string) string {
	for _, e := range s.Entries {
		if e.RepoID == repoID {
			return e.Path
		}
	}
	return ""
}

// Manager materializes and tears down worktree Sets under a configured root
// directory, one subdirectory per attempt id.
type Manager struct {
	root string
}

// NewManager constructs a Manager rooted at the given directory
// (VK_WORKTREES_ROOT). The root is created on first Materialize call.
func NewManager(root string) *Manager {
	return &Manager{root: root}
}

func (m *Manager) attemptDir(attemptID string) string {
	return filepath.Join(m.root, attemptID)
}

// Materialize creates one git worktree per repo for the given attempt. If any
// repo fails, worktrees already created in this call are rolled back before
// the error is returned, leaving no partial Set on disk.
func (m *Manager) Materialize(attemptID, taskTitle string, repos []model.Repo) (*Set, error) {
	dir := m.attemptDir(attemptID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, apperror.Wrap(apperror.Transient, err, "create attempt worktree dir %s", dir)
	}

	set := &Set{AttemptID: attemptID}
	for _, repoRef := range repos {
		branch := branchName(taskTitle)
		path := filepath.Join(dir, repoRef.ID)

		r := newRepo(repoRef.Path)
		if err := r.createWorktree(path, branch, repoRef.DefaultBranch); err != nil {
			m.rollback(set)
			return nil, apperror.Wrap(apperror.Transient, err, "materialize worktree for repo %s", repoRef.ID)
		}

		set.Entries = append(set.Entries, Entry{
			RepoID:     repoRef.ID,
			OriginPath: repoRef.Path,
			Path:       path,
			Branch:     branch,
		})
	}

	return set, nil
}

// rollback removes any worktrees already created in a partially-materialized
// Set. Best-effort: errors are not fatal since the caller is already
// returning the original materialization error.
func (m *Manager) rollback(set *Set) {
	for _, e := range set.Entries {
		r := newRepo(e.OriginPath)
		_ = r.removeWorktree(e.Path, true)
	}
	_ = os.RemoveAll(m.attemptDir(set.AttemptID))
}

// Remove tears down every worktree in the Set and the attempt's directory.
// Idempotent: calling Remove twice, or on a Set already partially removed by
// a crashed process, succeeds without error as long as force bypasses git's
// dirty-worktree check where needed.
func (m *Manager) Remove(set *Set, force bool) error {
	dir := m.attemptDir(set.AttemptID)
	markerPath := filepath.Join(dir, removingMarker)
	_ = os.WriteFile(markerPath, []byte(set.AttemptID), 0o644)

	var firstErr error
	for _, e := range set.Entries {
		r := newRepo(e.OriginPath)
		if err := r.removeWorktree(e.Path, force); err != nil {
			if _, statErr := os.Stat(e.Path); os.IsNotExist(statErr) {
				// Already gone (prior interrupted removal); not an error.
				continue
			}
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		_ = r.pruneWorktrees()
	}

	if firstErr != nil {
		return apperror.Wrap(apperror.Transient, firstErr, "remove worktree set for attempt %s", set.AttemptID)
	}

	if err := os.RemoveAll(dir); err != nil {
		return apperror.Wrap(apperror.Transient, err, "remove attempt worktree dir %s", dir)
	}
	return nil
}

// ScanOrphans lists attempt-id subdirectories under root that are not in
// knownAttempts, either because the attempt was deleted without cleanup or
// because a prior Remove was interrupted mid-way (marker file present).
// Disabled when DISABLE_WORKTREE_ORPHAN_CLEANUP is set, per spec.md §9.
func ScanOrphans(root string, knownAttempts map[string]bool) ([]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan worktree root %s: %w", root, err)
	}

	var orphans []string
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if knownAttempts[entry.Name()] {
			continue
		}
		orphans = append(orphans, entry.Name())
	}
	return orphans, nil
}

// RemoveOrphan force-removes an orphaned attempt directory discovered by
// ScanOrphans, without needing the original Set (the repo's own worktree
// metadata is pruned via `git worktree prune` run against each repo
// separately by the caller after RemoveOrphan returns).
func (m *Manager) RemoveOrphan(attemptID string) error {
	return os.RemoveAll(m.attemptDir(attemptID))
}
