package assembler

import (
	"strings"
	"testing"

	"github.com/NoobyNull/Laminark-sub004/internal/memory"
)

func TestAssembleEmptyInputStillHasHeader(t *testing.T) {
	out := Assemble(Input{ProjectName: "widget-api"})
	if !strings.Contains(out, "widget-api") {
		t.Fatalf("expected project name in header, got %q", out)
	}
}

func TestAssembleIncludesTools(t *testing.T) {
	out := Assemble(Input{
		Tools: []memory.RegistryEntry{{ToolName: "Bash", UsageCount: 10}},
	})
	if !strings.Contains(out, "Bash") {
		t.Fatalf("expected tool in output, got %q", out)
	}
}

func TestAssembleRespectsMaxBytes(t *testing.T) {
	var obs []memory.SearchResult
	for i := 0; i < 50; i++ {
		obs = append(obs, memory.SearchResult{
			Observation: memory.Observation{Title: strings.Repeat("x", 200)},
		})
	}
	out := Assemble(Input{Observations: obs})
	if len(out) > MaxBytes {
		t.Fatalf("expected output capped at %d bytes, got %d", MaxBytes, len(out))
	}
}

func TestAssembleSkipsResumedStashes(t *testing.T) {
	out := Assemble(Input{
		Stashes: []memory.Stash{{TopicLabel: "old topic", Status: "resumed"}},
	})
	if strings.Contains(out, "old topic") {
		t.Fatalf("resumed stash should not appear: %q", out)
	}
}
