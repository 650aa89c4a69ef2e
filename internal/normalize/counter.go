package normalize

import (
	"fmt"
	"sync/atomic"
)

// ToolUseCounter assigns dense, monotonically increasing tool-use ids within
// a single process, independent of how many lines or frames the raw stream
// happens to be split into. Per spec.md §4.4, tool-use identity must be
// stable regardless of the executor's own internal id scheme (or lack of
// one), so every Normalizer implementation mints its own ids through one of
// these rather than reusing whatever correlation id (if any) the raw stream
// provides.
type ToolUseCounter struct {
	next atomic.Uint64
}

// Next returns the next tool-use id for this process, formatted as
// "call-<n>" starting at call-0.
func (c *ToolUseCounter) Next() string {
	n := c.next.Add(1) - 1
	return fmt.Sprintf("call-%d", n)
}
