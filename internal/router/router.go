// Package router implements the conversation router: a two-tier
// suggestion engine that notices when the current sequence of tool
// calls resembles a pattern that historically led somewhere useful, and
// offers a one-shot nudge toward it.
package router

import (
	"strings"

	"github.com/NoobyNull/Laminark-sub004/internal/memory"
)

const (
	// WindowSize is how many preceding tool calls form a pattern's key.
	WindowSize = 5
	// MinFrequency is how many times a (preceding, target) pair must
	// have been observed before Tier A treats it as learned.
	MinFrequency = 2
	// MaxEventsForLearned caps how many historical events SessionStart
	// precomputes into the learned-pattern model.
	MaxEventsForLearned = 200
	// MinConfidence gates both tiers: a candidate below this is not
	// surfaced at all, not even as a weak hint.
	MinConfidence = 0.6
	// MaxSuggestionsPerSession caps how many suggestions the router will
	// make in a single session regardless of how many strong matches
	// appear, so it doesn't become a constant stream of nudges.
	MaxSuggestionsPerSession = 2
	// CooldownCalls is the minimum number of tool calls that must elapse
	// between two suggestions in the same session.
	CooldownCalls = 5
	// WarmupCalls is how many tool calls must happen before the router
	// will ever suggest anything, so a session doesn't get a suggestion
	// before it has established any pattern at all.
	WarmupCalls = 3
	// MinRecentEventsForLearned is the minimum session history before
	// falling back to Tier B's keyword heuristic instead of Tier A.
	MinRecentEventsForLearned = 20
)

// Suggestion is a single one-shot nudge the router decided to surface.
type Suggestion struct {
	TargetTool string
	Reason     string
	Confidence float64
	Tier       string
}

// Model is the precomputed learned-pattern lookup built once per
// session at SessionStart from memory.LearnedPatterns, keyed by the
// joined preceding-tool-names window.
type Model struct {
	byKey map[string][]memory.RoutingPattern
}

// BuildModel precomputes a lookup table from a project's learned
// routing patterns, capped at MaxEventsForLearned entries.
func BuildModel(patterns []memory.RoutingPattern) *Model {
	m := &Model{byKey: make(map[string][]memory.RoutingPattern)}
	for i, p := range patterns {
		if i >= MaxEventsForLearned {
			break
		}
		key := strings.Join(p.Preceding, "|")
		m.byKey[key] = append(m.byKey[key], p)
	}
	return m
}

// Evaluate decides whether to surface a suggestion given the current
// session's tool-call sequence and gating state. window is the last
// WindowSize tool names preceding the current point (oldest first);
// candidate heuristics receive the full available sequence for Tier B.
func Evaluate(model *Model, window []string, recentToolCount int, state memory.RoutingState) (Suggestion, bool) {
	if recentToolCount < WarmupCalls {
		return Suggestion{}, false
	}
	if state.SuggestionsMade >= MaxSuggestionsPerSession {
		return Suggestion{}, false
	}
	if state.LastSuggestionAt != "" && state.ToolCallsSinceSuggest < CooldownCalls {
		return Suggestion{}, false
	}

	if s, ok := tierALearned(model, window); ok {
		return s, true
	}
	if recentToolCount < MinRecentEventsForLearned {
		if s, ok := tierBHeuristic(window); ok {
			return s, true
		}
	}
	return Suggestion{}, false
}

// tierALearned looks up the current window in the precomputed model and
// returns its highest-frequency target as a suggestion, if any pattern
// matches with at least MinFrequency occurrences.
func tierALearned(model *Model, window []string) (Suggestion, bool) {
	if model == nil || len(window) == 0 {
		return Suggestion{}, false
	}
	key := strings.Join(window, "|")
	matches := model.byKey[key]
	if len(matches) == 0 {
		return Suggestion{}, false
	}

	best := matches[0]
	for _, m := range matches[1:] {
		if m.Frequency > best.Frequency {
			best = m
		}
	}
	if best.Frequency < MinFrequency {
		return Suggestion{}, false
	}

	confidence := confidenceFromFrequency(best.Frequency)
	if confidence < MinConfidence {
		return Suggestion{}, false
	}
	return Suggestion{
		TargetTool: best.TargetTool,
		Reason:     "this sequence has led here before",
		Confidence: confidence,
		Tier:       "learned",
	}, true
}

// tierBHeuristic is the keyword-overlap fallback used when a session
// has too little history for Tier A to have learned anything: the
// tools in window that share a recognizable file-extension or
// domain-word hint with one another suggest a natural next step.
func tierBHeuristic(window []string) (Suggestion, bool) {
	if len(window) < 2 {
		return Suggestion{}, false
	}
	last := window[len(window)-1]
	if last == "Read" || last == "Grep" || last == "Glob" {
		return Suggestion{
			TargetTool: "Edit",
			Reason:     "exploration tools often precede an edit",
			Confidence: 0.6,
			Tier:       "heuristic",
		}, true
	}
	return Suggestion{}, false
}

func confidenceFromFrequency(freq int) float64 {
	// Saturating curve: frequency 2 -> 0.67, frequency 6 -> 0.86, approaching 1.
	c := 1 - 1/float64(freq+1)
	if c > 0.98 {
		c = 0.98
	}
	return c
}
