package memory

import (
	"database/sql"
	"encoding/json"
	"fmt"
)

// RoutingPattern is one observed (preceding-5-tools -> target-tool)
// transition, with a running frequency used by the conversation
// router's Tier A learned-pattern matching.
type RoutingPattern struct {
	ProjectHash string
	SessionID   string
	TargetTool  string
	Preceding   []string
	Frequency   int
}

// RecordRoutingPattern upserts one observed transition, incrementing
// frequency on repeat. preceding is serialized as JSON so the composite
// key stays a single comparable column rather than a join table.
func (s *Store) RecordRoutingPattern(projectHash, sessionID, targetTool string, preceding []string) error {
	precedingJSON, err := json.Marshal(preceding)
	if err != nil {
		return fmt.Errorf("memory: record routing pattern: marshal preceding: %w", err)
	}
	_, err = s.db.Exec(
		`INSERT INTO routing_patterns (project_hash, session_id, target_tool, preceding_json, frequency)
		 VALUES (?, ?, ?, ?, 1)
		 ON CONFLICT(project_hash, session_id, target_tool, preceding_json)
		 DO UPDATE SET frequency = routing_patterns.frequency + 1`,
		projectHash, sessionID, targetTool, string(precedingJSON),
	)
	if err != nil {
		return fmt.Errorf("memory: record routing pattern: %w", err)
	}
	return nil
}

// LearnedPatterns returns every routing pattern recorded for a project
// across all of its sessions, capped at limit rows ordered by
// frequency, for SessionStart's precompute-once pass into the router's
// in-memory model.
func (s *Store) LearnedPatterns(projectHash string, limit int) ([]RoutingPattern, error) {
	rows, err := s.db.Query(
		`SELECT project_hash, session_id, target_tool, preceding_json, frequency
		 FROM routing_patterns WHERE project_hash = ?
		 ORDER BY frequency DESC LIMIT ?`,
		projectHash, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("memory: learned patterns: %w", err)
	}
	defer rows.Close()

	var out []RoutingPattern
	for rows.Next() {
		var p RoutingPattern
		var precedingJSON string
		if err := rows.Scan(&p.ProjectHash, &p.SessionID, &p.TargetTool, &precedingJSON, &p.Frequency); err != nil {
			return nil, fmt.Errorf("memory: learned patterns scan: %w", err)
		}
		if err := json.Unmarshal([]byte(precedingJSON), &p.Preceding); err != nil {
			return nil, fmt.Errorf("memory: learned patterns unmarshal: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// RoutingState tracks the conversation router's per-session gating
// counters: how many suggestions it has made, when the last one fired,
// and how many tool calls have elapsed since, so restarts of the hook
// process (every hook invocation is a fresh process) don't reset the
// cooldown.
type RoutingState struct {
	SuggestionsMade       int
	LastSuggestionAt      string
	ToolCallsSinceSuggest int
}

// GetRoutingState fetches a session's routing gate counters, returning
// the zero value if none exist yet.
func (s *Store) GetRoutingState(projectHash, sessionID string) (RoutingState, error) {
	var st RoutingState
	var lastAt sql.NullString
	err := s.db.QueryRow(
		`SELECT suggestions_made, last_suggestion_at, tool_calls_since_suggest
		 FROM routing_state WHERE project_hash = ? AND session_id = ?`,
		projectHash, sessionID,
	).Scan(&st.SuggestionsMade, &lastAt, &st.ToolCallsSinceSuggest)
	if err == sql.ErrNoRows {
		return RoutingState{}, nil
	}
	if err != nil {
		return RoutingState{}, fmt.Errorf("memory: get routing state: %w", err)
	}
	st.LastSuggestionAt = derefString(lastAt)
	return st, nil
}

// BumpToolCallCount increments a session's tool-call-since-suggestion
// counter by one, called on every PostToolUse regardless of whether a
// suggestion fires.
func (s *Store) BumpToolCallCount(projectHash, sessionID string) error {
	_, err := s.db.Exec(
		`INSERT INTO routing_state (project_hash, session_id, tool_calls_since_suggest)
		 VALUES (?, ?, 1)
		 ON CONFLICT(project_hash, session_id)
		 DO UPDATE SET tool_calls_since_suggest = routing_state.tool_calls_since_suggest + 1`,
		projectHash, sessionID,
	)
	if err != nil {
		return fmt.Errorf("memory: bump tool call count: %w", err)
	}
	return nil
}

// RecordSuggestion stamps a suggestion having fired, resetting the
// cooldown counter and incrementing the per-session suggestion count
// that the router caps at 2.
func (s *Store) RecordSuggestion(projectHash, sessionID string) error {
	_, err := s.db.Exec(
		`INSERT INTO routing_state (project_hash, session_id, suggestions_made, last_suggestion_at, tool_calls_since_suggest)
		 VALUES (?, ?, 1, ?, 0)
		 ON CONFLICT(project_hash, session_id) DO UPDATE SET
		   suggestions_made = routing_state.suggestions_made + 1,
		   last_suggestion_at = excluded.last_suggestion_at,
		   tool_calls_since_suggest = 0`,
		projectHash, sessionID, Now(),
	)
	if err != nil {
		return fmt.Errorf("memory: record suggestion: %w", err)
	}
	return nil
}
