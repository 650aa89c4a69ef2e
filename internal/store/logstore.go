package store

import "github.com/vibe-kanban/attemptcore/internal/model"

// LogStore is the Message Store specialized for one process's LogEntry
// stream, bounded by VK_LOG_HISTORY_MAX_BYTES / VK_LOG_HISTORY_MAX_ENTRIES.
type LogStore = Store[model.LogBody]

// logBodySize approximates the byte footprint of a LogBody for max_bytes
// accounting: raw chunk length, or a fixed estimate for structured bodies.
func logBodySize(b model.LogBody) int {
	switch b.Kind {
	case model.LogStdout, model.LogStderr:
		return len(b.Chunk)
	case model.LogNormalized:
		if b.Normalized != nil {
			return len(b.Normalized.Content) + 64
		}
		return 64
	case model.LogDiff:
		if b.Diff != nil {
			return len(b.Diff.Patch) + 64
		}
		return 64
	default:
		return 8
	}
}

func logBodyIsFinished(b model.LogBody) bool {
	return b.Kind == model.LogFinished
}

// NewLogStore constructs a LogStore bounded by the given byte/entry caps.
func NewLogStore(maxBytes, maxEntries int) *LogStore {
	return New[model.LogBody](maxBytes, maxEntries, logBodySize, logBodyIsFinished)
}

// AppendEntry appends a LogBody and returns the full LogEntry (with its
// assigned process-scoped index) that was recorded.
func AppendEntry(s *LogStore, processID string, body model.LogBody) (model.LogEntry, error) {
	idx, err := s.Append(body)
	if err != nil {
		return model.LogEntry{}, err
	}
	return model.LogEntry{ProcessID: processID, Index: idx, Body: body}, nil
}

// ToWirePage converts a Page[model.LogBody] into the spec.md §6 wire shape.
func ToWirePage(p Page[model.LogBody]) model.LogHistoryPage {
	out := model.LogHistoryPage{
		Entries:          make([]model.LogHistoryEntry, 0, len(p.Entries)),
		NextCursor:       p.NextCursor,
		HasMore:          p.HasMore,
		HistoryTruncated: p.HistoryTruncated,
	}
	for _, e := range p.Entries {
		out.Entries = append(out.Entries, model.LogHistoryEntry{EntryIndex: e.Index, Entry: e.Value})
	}
	return out
}
