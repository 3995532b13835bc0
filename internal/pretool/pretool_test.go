package pretool

import (
	"strings"
	"testing"

	"github.com/NoobyNull/Laminark-sub004/internal/memory"
)

func TestBuildEmptyResultsReturnsEmpty(t *testing.T) {
	if got := Build(nil); got != "" {
		t.Fatalf("expected empty string, got %q", got)
	}
}

func TestBuildIncludesSnippets(t *testing.T) {
	results := []memory.SearchResult{
		{Observation: memory.Observation{Title: "auth middleware rewrite"}},
	}
	out := Build(results)
	if !strings.Contains(out, "auth middleware rewrite") {
		t.Fatalf("expected snippet in output, got %q", out)
	}
}

func TestBuildCapsAtMaxBytes(t *testing.T) {
	var results []memory.SearchResult
	for i := 0; i < 10; i++ {
		results = append(results, memory.SearchResult{
			Observation: memory.Observation{Title: strings.Repeat("y", 300)},
		})
	}
	out := Build(results)
	if len(out) > MaxBytes {
		t.Fatalf("expected output capped at %d, got %d", MaxBytes, len(out))
	}
}
