// Package pretool builds the short context block written to stdout
// before a tool executes on PreToolUse — the one other hook event
// besides SessionStart allowed to write to stdout. It has a far
// tighter byte budget than the assembler's SessionStart block, since
// it runs on every tool call rather than once per session.
package pretool

import (
	"fmt"
	"strings"

	"github.com/NoobyNull/Laminark-sub004/internal/memory"
)

// MaxBytes bounds the pre-tool block. Kept far smaller than the
// assembler's SessionStart budget since this runs on the hot path of
// every tool invocation.
const MaxBytes = 500

// Build renders BM25/vector search snippets relevant to the upcoming
// tool call into a compact block, or an empty string if nothing is
// relevant enough to be worth the bytes.
func Build(results []memory.SearchResult) string {
	if len(results) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("Related: ")
	limit := 3
	if len(results) < limit {
		limit = len(results)
	}
	for i, r := range results[:limit] {
		if i > 0 {
			b.WriteString("; ")
		}
		snippet := r.Title
		if snippet == "" {
			snippet = memory.Truncate(r.Content, 60)
		}
		fmt.Fprint(&b, snippet)
	}

	out := b.String()
	if len(out) > MaxBytes {
		out = out[:MaxBytes]
	}
	return out
}
