package memory

import (
	"fmt"

	"github.com/google/uuid"
)

// Stash is a topic-shift snapshot: the tail of observations from the
// topic being left behind, saved so the context assembler can offer a
// resume hint if the conversation returns to it later.
type Stash struct {
	ID          string
	ProjectHash string
	SessionID   string
	TopicLabel  string
	Summary     string
	Status      string
	CreatedAt   string
}

// StashObservation is one observation snapshotted into a stash at the
// moment of the shift. It is copied by value rather than referenced by
// id: a stash is a point-in-time snapshot, and the live observation it
// was copied from may later be edited or soft-deleted without that
// affecting what the stash shows on resume.
type StashObservation struct {
	Seq           int
	ObservationID int64
	Content       string
	Source        string
	CreatedAt     string
	Embedding     []float32
}

// CreateStash persists a new topic-shift stash and its snapshot
// observations in one transaction.
func (s *Store) CreateStash(projectHash, sessionID, topicLabel, summary string, obs []StashObservation) (string, error) {
	id := uuid.NewString()

	tx, err := s.db.Begin()
	if err != nil {
		return "", fmt.Errorf("memory: create stash: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(
		`INSERT INTO context_stashes (id, project_hash, session_id, topic_label, summary, status, created_at)
		 VALUES (?, ?, ?, ?, ?, 'stashed', ?)`,
		id, projectHash, sessionID, topicLabel, summary, Now(),
	); err != nil {
		return "", fmt.Errorf("memory: create stash: insert stash: %w", err)
	}

	for i, o := range obs {
		var embBlob []byte
		if len(o.Embedding) > 0 {
			embBlob = EncodeEmbedding(o.Embedding)
		}
		if _, err := tx.Exec(
			`INSERT INTO stash_observations (stash_id, seq, observation_id, content, source, created_at, embedding)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			id, i, o.ObservationID, o.Content, o.Source, o.CreatedAt, embBlob,
		); err != nil {
			return "", fmt.Errorf("memory: create stash: insert observation %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("memory: create stash: commit: %w", err)
	}
	return id, nil
}

// RecentStashes returns a project's most recent stashes, used by the
// context assembler's resume-hint tier at SessionStart.
func (s *Store) RecentStashes(projectHash string, limit int) ([]Stash, error) {
	rows, err := s.db.Query(
		`SELECT id, project_hash, session_id, topic_label, summary, status, created_at
		 FROM context_stashes WHERE project_hash = ?
		 ORDER BY created_at DESC LIMIT ?`,
		projectHash, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("memory: recent stashes: %w", err)
	}
	defer rows.Close()

	var out []Stash
	for rows.Next() {
		var st Stash
		if err := rows.Scan(&st.ID, &st.ProjectHash, &st.SessionID, &st.TopicLabel, &st.Summary, &st.Status, &st.CreatedAt); err != nil {
			return nil, fmt.Errorf("memory: recent stashes scan: %w", err)
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

// MarkStashResumed flips a stash's status once the assembler has
// offered it and the session appears to have picked the topic back up,
// so the same resume hint doesn't repeat every SessionStart.
func (s *Store) MarkStashResumed(id string) error {
	_, err := s.db.Exec(`UPDATE context_stashes SET status = 'resumed' WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("memory: mark stash resumed: %w", err)
	}
	return nil
}
