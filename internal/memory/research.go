package memory

import (
	"fmt"
	"time"
)

// ResearchEntry is one exploration call (Read, Glob, Grep) queued to be
// attached as a footer to the next Write/Edit observation in the same
// session, so a later "changed auth.go" observation carries the files
// that were read to get there.
type ResearchEntry struct {
	ID        int64
	SessionID string
	ToolName  string
	Target    string
	CreatedAt string
}

// PushResearch queues an exploration call. Only Read/Glob/Grep-shaped
// tools are expected to land here; the caller (internal/pipeline)
// decides which tool names qualify.
func (s *Store) PushResearch(sessionID, toolName, target string) error {
	_, err := s.db.Exec(
		`INSERT INTO research_buffer (session_id, tool_name, target, created_at) VALUES (?, ?, ?, ?)`,
		sessionID, toolName, target, Now(),
	)
	if err != nil {
		return fmt.Errorf("memory: push research: %w", err)
	}
	return nil
}

// DrainResearch returns and clears every research entry for a session
// newer than ttl, for attachment to a just-captured Write/Edit
// observation. Entries older than ttl are dropped unread: a file read
// ten minutes before an unrelated edit isn't background for it.
func (s *Store) DrainResearch(sessionID string, ttl time.Duration) ([]ResearchEntry, error) {
	cutoff := time.Now().UTC().Add(-ttl).Format("2006-01-02 15:04:05")

	rows, err := s.db.Query(
		`SELECT id, session_id, tool_name, target, created_at
		 FROM research_buffer WHERE session_id = ? AND created_at >= ?
		 ORDER BY id ASC`,
		sessionID, cutoff,
	)
	if err != nil {
		return nil, fmt.Errorf("memory: drain research: %w", err)
	}

	var out []ResearchEntry
	for rows.Next() {
		var e ResearchEntry
		if err := rows.Scan(&e.ID, &e.SessionID, &e.ToolName, &e.Target, &e.CreatedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("memory: drain research scan: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	if _, err := s.db.Exec(`DELETE FROM research_buffer WHERE session_id = ?`, sessionID); err != nil {
		return nil, fmt.Errorf("memory: drain research cleanup: %w", err)
	}
	return out, nil
}

// PurgeStaleResearch deletes research entries older than purgeAfter
// regardless of session, a housekeeping pass run from SessionEnd so an
// assistant session that ends mid-exploration doesn't leave orphaned
// rows behind forever.
func (s *Store) PurgeStaleResearch(purgeAfter time.Duration) error {
	cutoff := time.Now().UTC().Add(-purgeAfter).Format("2006-01-02 15:04:05")
	if _, err := s.db.Exec(`DELETE FROM research_buffer WHERE created_at < ?`, cutoff); err != nil {
		return fmt.Errorf("memory: purge stale research: %w", err)
	}
	return nil
}
