package memory

import (
	"database/sql"
	"fmt"
)

// ToolUsageEvent is a single recorded tool invocation, used to mine
// conversation-routing patterns and to feed tool registry demotion.
type ToolUsageEvent struct {
	ID          int64
	ToolName    string
	ProjectHash string
	SessionID   string
	Success     bool
	CreatedAt   string
}

// RecordToolUsage appends one tool-invocation event. Called from the
// PostToolUse path after the admission filter has classified the call;
// success reflects whether the tool result carried an error.
func (s *Store) RecordToolUsage(toolName, projectHash, sessionID string, success bool) error {
	_, err := s.db.Exec(
		`INSERT INTO tool_usage_events (tool_name, project_hash, session_id, success, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		toolName, nullableString(projectHash), sessionID, boolToInt(success), Now(),
	)
	if err != nil {
		return fmt.Errorf("memory: record tool usage: %w", err)
	}
	return nil
}

// SessionToolSequence returns a session's tool calls in invocation
// order, capped at limit (most recent), for the conversation router's
// sliding-window pattern mining.
func (s *Store) SessionToolSequence(sessionID string, limit int) ([]ToolUsageEvent, error) {
	rows, err := s.db.Query(
		`SELECT id, tool_name, project_hash, session_id, success, created_at
		 FROM tool_usage_events
		 WHERE session_id = ?
		 ORDER BY id DESC LIMIT ?`,
		sessionID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("memory: session tool sequence: %w", err)
	}
	defer rows.Close()

	var events []ToolUsageEvent
	for rows.Next() {
		var e ToolUsageEvent
		var projectHash sql.NullString
		var success int
		if err := rows.Scan(&e.ID, &e.ToolName, &projectHash, &e.SessionID, &success, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("memory: session tool sequence scan: %w", err)
		}
		e.ProjectHash = derefString(projectHash)
		e.Success = success != 0
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Query returns most-recent-first; the router wants chronological order.
	for i, j := 0, len(events)-1; i < j; i, j = i+1, j-1 {
		events[i], events[j] = events[j], events[i]
	}
	return events, nil
}

// RecentFailureCount returns how many of a tool's last n invocations
// (within a project, across sessions) failed. Used by the tool registry
// to decide demotion.
func (s *Store) RecentFailureCount(toolName, projectHash string, n int) (int, error) {
	rows, err := s.db.Query(
		`SELECT success FROM tool_usage_events
		 WHERE tool_name = ? AND project_hash = ?
		 ORDER BY id DESC LIMIT ?`,
		toolName, projectHash, n,
	)
	if err != nil {
		return 0, fmt.Errorf("memory: recent failure count: %w", err)
	}
	defer rows.Close()

	failures := 0
	for rows.Next() {
		var success int
		if err := rows.Scan(&success); err != nil {
			return 0, fmt.Errorf("memory: recent failure count scan: %w", err)
		}
		if success == 0 {
			failures++
		}
	}
	return failures, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
