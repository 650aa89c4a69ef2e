package model

// This file defines the JSON wire shapes referenced by spec.md §6. They exist
// so a future HTTP/WebSocket layer (out of scope for this module) can
// serialize core state directly, without re-deriving the shared schema —
// per the "auto-generated cross-language types" design note, the shared
// shape is defined once here rather than hand-ported per transport.

// LogHistoryEntry pairs an entry index with its LogEntry body for the paged
// history endpoint.
type LogHistoryEntry struct {
	EntryIndex uint64  `json:"entry_index"`
	Entry      LogBody `json:"entry"`
}

// LogHistoryPage is the shape returned by the paged log history endpoint:
// `{ entries, next_cursor?, has_more, history_truncated? }`.
type LogHistoryPage struct {
	Entries           []LogHistoryEntry `json:"entries"`
	NextCursor        *uint64           `json:"next_cursor,omitempty"`
	HasMore           bool              `json:"has_more"`
	HistoryTruncated  bool              `json:"history_truncated,omitempty"`
}

// JSONPatchOp is a single RFC-6902 JSON-Patch operation.
type JSONPatchOp struct {
	Op    string      `json:"op"` // add | replace | remove
	Path  string      `json:"path"`
	Value interface{} `json:"value,omitempty"`
}

// PatchMessage is the WS message shape: `{ JsonPatch: [ops] } | { finished: true }`.
type PatchMessage struct {
	JSONPatch []JSONPatchOp `json:"JsonPatch,omitempty"`
	Finished  bool          `json:"finished,omitempty"`
}
