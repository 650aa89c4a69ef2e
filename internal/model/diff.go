package model

// DiffChangeKind enumerates the kind of change a diff file entry represents.
type DiffChangeKind string

const (
	DiffAdded    DiffChangeKind = "added"
	DiffModified DiffChangeKind = "modified"
	DiffDeleted  DiffChangeKind = "deleted"
	DiffRenamed  DiffChangeKind = "renamed"
)

// DiffFileEntry is one file's worth of diff content.
type DiffFileEntry struct {
	RepoID     string
	Path       string
	OldPath    string // populated when ChangeKind == DiffRenamed
	ChangeKind DiffChangeKind
	Patch      string
	Added      int
	Deleted    int
}

// DiffSummary aggregates file/line/byte counts across a DiffSnapshot.
type DiffSummary struct {
	Files   int
	Added   int
	Deleted int
	Bytes   int
}

// BlockedReason enumerates why a diff computation was blocked.
type BlockedReason string

const (
	BlockedSummaryFailed     BlockedReason = "summary_failed"
	BlockedThresholdExceeded BlockedReason = "threshold_exceeded"
)

// DiffSnapshot is the current worktree diff against an attempt's base ref.
type DiffSnapshot struct {
	AttemptID     string
	BaseRef       string
	Files         []DiffFileEntry
	Summary       DiffSummary
	Blocked       bool
	BlockedReason BlockedReason
}
