package worktree

import (
	"regexp"
	"strings"

	"github.com/google/uuid"
)

var unsafeBranchChars = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

const maxTitleSlugLen = 40

// branchName derives a git-safe branch name for an attempt's worktree,
// combining a short random suffix with a sanitized task title so the branch
// is both collision-resistant and legible in `git branch` output.
// Grounded on the teacher's containerName helper in container_pool.go
// (deterministic name format: prefix-suffix-role), generalized here to
// prefix-slug-suffix since git branch names, unlike container names, need to
// stay readable to the humans reviewing the resulting PR.
func branchName(taskTitle string) string {
	suffix := uuid.New().String()
	if len(suffix) > 8 {
		suffix = suffix[:8]
	}
	slug := sanitizeForBranch(taskTitle)
	if slug == "" {
		slug = "attempt"
	}
	return "vk/" + slug + "-" + suffix
}

func sanitizeForBranch(title string) string {
	s := strings.ToLower(strings.TrimSpace(title))
	s = unsafeBranchChars.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	if len(s) > maxTitleSlugLen {
		s = strings.Trim(s[:maxTitleSlugLen], "-")
	}
	return s
}
