package memory

import (
	"database/sql"
	"fmt"
)

// Session is one coding-assistant session tracked from SessionStart to
// SessionEnd (or Stop, if the assistant process exits without a clean
// end event).
type Session struct {
	ID          string
	ProjectHash string
	StartedAt   string
	EndedAt     string
	Summary     string
}

// CreateSession records the start of a session. Called from the
// SessionStart hook handler; id is the assistant's own session
// identifier, reused verbatim so later writes can key off it.
func (s *Store) CreateSession(id, projectHash string) error {
	_, err := s.db.Exec(
		`INSERT INTO sessions (id, project_hash, started_at) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO NOTHING`,
		id, projectHash, Now(),
	)
	if err != nil {
		return fmt.Errorf("memory: create session: %w", err)
	}
	return nil
}

// EndSession marks a session completed with an optional summary. It is
// idempotent: calling it twice (SessionEnd followed by a defensive Stop)
// just overwrites ended_at and summary rather than erroring.
func (s *Store) EndSession(id, summary string) error {
	res, err := s.db.Exec(
		`UPDATE sessions SET ended_at = ?, summary = ? WHERE id = ?`,
		Now(), nullableString(summary), id,
	)
	if err != nil {
		return fmt.Errorf("memory: end session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("memory: end session: no session with id %q", id)
	}
	return nil
}

// GetSession fetches a single session by id.
func (s *Store) GetSession(id string) (*Session, error) {
	var sess Session
	var ended, summary sql.NullString
	err := s.db.QueryRow(
		`SELECT id, project_hash, started_at, ended_at, summary FROM sessions WHERE id = ?`,
		id,
	).Scan(&sess.ID, &sess.ProjectHash, &sess.StartedAt, &ended, &summary)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("memory: get session: %w", err)
	}
	sess.EndedAt = derefString(ended)
	sess.Summary = derefString(summary)
	return &sess, nil
}

// RecentSessions returns the most recent sessions for a project, most
// recent first, used by the context assembler to report "last session
// ended N ago" style framing.
func (s *Store) RecentSessions(projectHash string, limit int) ([]Session, error) {
	rows, err := s.db.Query(
		`SELECT id, project_hash, started_at, ended_at, summary
		 FROM sessions WHERE project_hash = ?
		 ORDER BY started_at DESC LIMIT ?`,
		projectHash, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("memory: recent sessions: %w", err)
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		var sess Session
		var ended, summary sql.NullString
		if err := rows.Scan(&sess.ID, &sess.ProjectHash, &sess.StartedAt, &ended, &summary); err != nil {
			return nil, fmt.Errorf("memory: recent sessions scan: %w", err)
		}
		sess.EndedAt = derefString(ended)
		sess.Summary = derefString(summary)
		out = append(out, sess)
	}
	return out, rows.Err()
}
