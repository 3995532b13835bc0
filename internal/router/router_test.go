package router

import (
	"testing"

	"github.com/NoobyNull/Laminark-sub004/internal/memory"
)

func TestEvaluateWarmupGate(t *testing.T) {
	model := BuildModel(nil)
	_, ok := Evaluate(model, []string{"Read", "Grep"}, 1, memory.RoutingState{})
	if ok {
		t.Fatal("expected no suggestion before warmup threshold")
	}
}

func TestEvaluateMaxSuggestionsGate(t *testing.T) {
	model := BuildModel(nil)
	state := memory.RoutingState{SuggestionsMade: MaxSuggestionsPerSession}
	_, ok := Evaluate(model, []string{"Read", "Edit"}, 10, state)
	if ok {
		t.Fatal("expected no suggestion once session cap reached")
	}
}

func TestEvaluateCooldownGate(t *testing.T) {
	model := BuildModel(nil)
	state := memory.RoutingState{SuggestionsMade: 1, LastSuggestionAt: "x", ToolCallsSinceSuggest: 1}
	_, ok := Evaluate(model, []string{"Read", "Edit"}, 10, state)
	if ok {
		t.Fatal("expected no suggestion during cooldown")
	}
}

func TestEvaluateLearnedTier(t *testing.T) {
	patterns := []memory.RoutingPattern{
		{TargetTool: "Bash", Preceding: []string{"Read", "Edit"}, Frequency: 5},
	}
	model := BuildModel(patterns)
	s, ok := Evaluate(model, []string{"Read", "Edit"}, 25, memory.RoutingState{})
	if !ok || s.Tier != "learned" || s.TargetTool != "Bash" {
		t.Fatalf("expected learned suggestion, got %+v ok=%v", s, ok)
	}
}

func TestEvaluateHeuristicTierFallsBackWithLowHistory(t *testing.T) {
	model := BuildModel(nil)
	s, ok := Evaluate(model, []string{"Glob", "Read"}, 5, memory.RoutingState{})
	if !ok || s.Tier != "heuristic" {
		t.Fatalf("expected heuristic suggestion, got %+v ok=%v", s, ok)
	}
}

func TestEvaluateNoMatchReturnsFalse(t *testing.T) {
	model := BuildModel(nil)
	_, ok := Evaluate(model, []string{"Bash", "Bash"}, 5, memory.RoutingState{})
	if ok {
		t.Fatal("expected no suggestion without any matching pattern")
	}
}
