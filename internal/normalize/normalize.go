// Package normalize implements the Log Normalizer (C4): turning raw
// stdout/stderr chunks from a running executor into agent-agnostic
// model.NormalizedEntry values, including the tool_use lifecycle
// (created -> pending_approval? -> success|failed) that downstream
// consumers key their UI state off of.
package normalize

import "github.com/vibe-kanban/attemptcore/internal/model"

// Normalizer converts one chunk of raw process output into zero or more
// NormalizedEntry values. Implementations are stateful: a chunk boundary
// may fall in the middle of a line or frame, and a Normalizer is expected
// to retain that partial state across calls rather than require
// line-aligned input. Implementations are not safe for concurrent use;
// callers serialize normalization per process.
type Normalizer interface {
	Normalize(chunk []byte) []model.NormalizedEntry
}
