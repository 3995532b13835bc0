// Package assembler builds the context block injected at SessionStart:
// a compact text summary combining recent session framing, the
// project's ranked tool list, the most relevant recent observations,
// and any stash resume hints, kept within a byte budget so it stays
// cheap to inject into every new session.
package assembler

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/NoobyNull/Laminark-sub004/internal/memory"
)

// Budget bounds for the assembled block. The soft/hard distinction
// mirrors the latency budget, not the byte budget: callers are expected
// to abandon assembly and fall back to a minimal header once the hard
// deadline passes, regardless of how much of the content tiers below
// were reached.
const (
	MinBytes = 500
	MaxBytes = 1500
)

// Input bundles everything the assembler needs; each slice is expected
// to already be ranked/filtered by its owning package (RankedTools,
// HybridSearch, RecentStashes).
type Input struct {
	ProjectName   string
	RecentSession *memory.Session
	Tools         []memory.RegistryEntry
	Observations  []memory.SearchResult
	Stashes       []memory.Stash
}

// Assemble builds the SessionStart text block. It never returns an
// error: every tier degrades gracefully when its backing slice is
// empty, down to just the header.
func Assemble(in Input) string {
	var b strings.Builder

	writeHeader(&b, in)
	writeTools(&b, in.Tools)
	writeObservations(&b, in.Observations)
	writeStashes(&b, in.Stashes)

	out := b.String()
	if len(out) > MaxBytes {
		out = out[:MaxBytes]
	}
	return out
}

func writeHeader(b *strings.Builder, in Input) {
	if in.ProjectName != "" {
		fmt.Fprintf(b, "# Laminark context: %s\n", in.ProjectName)
	} else {
		b.WriteString("# Laminark context\n")
	}
	if in.RecentSession != nil && in.RecentSession.Summary != "" {
		fmt.Fprintf(b, "Last session (%s): %s\n", relativeTime(in.RecentSession.EndedAt), in.RecentSession.Summary)
	}
}

func writeTools(b *strings.Builder, tools []memory.RegistryEntry) {
	if len(tools) == 0 {
		return
	}
	b.WriteString("\n## Frequently used tools\n")
	limit := minInt(len(tools), 8)
	for _, t := range tools[:limit] {
		fmt.Fprintf(b, "- %s (%d uses)\n", t.ToolName, t.UsageCount)
	}
}

func writeObservations(b *strings.Builder, obs []memory.SearchResult) {
	if len(obs) == 0 {
		return
	}
	b.WriteString("\n## Relevant recent observations\n")
	limit := minInt(len(obs), 5)
	for _, o := range obs[:limit] {
		title := o.Title
		if title == "" {
			title = memory.Truncate(o.Content, 80)
		}
		fmt.Fprintf(b, "- %s\n", title)
	}
}

func writeStashes(b *strings.Builder, stashes []memory.Stash) {
	if len(stashes) == 0 {
		return
	}
	b.WriteString("\n## Paused topics\n")
	limit := minInt(len(stashes), 3)
	for _, s := range stashes[:limit] {
		if s.Status != "stashed" {
			continue
		}
		fmt.Fprintf(b, "- %s: %s\n", s.TopicLabel, memory.Truncate(s.Summary, 120))
	}
}

// relativeTime renders a stored "2006-01-02 15:04:05" UTC timestamp as
// a human-friendly relative time, falling back to "recently" when it
// can't be parsed (e.g. a session still missing its ended_at).
func relativeTime(stamp string) string {
	t, err := time.Parse("2006-01-02 15:04:05", stamp)
	if err != nil {
		return "recently"
	}
	return humanize.Time(t.UTC())
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
