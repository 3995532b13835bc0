package memory

import (
	"database/sql"
	"fmt"
)

// Observation is a single captured unit of tool activity: a finding, a
// decision, an error, or a session summary, depending on Kind.
type Observation struct {
	ID          int64
	ProjectHash string
	SessionID   string
	Content     string
	Title       string
	Kind        string
	Source      string
	Embedding   []float32
	CreatedAt   string
	UpdatedAt   string
}

// AddObservationParams are the inputs to AddObservation. Embedding may be
// nil when the embedding service was unavailable at capture time; the
// save guard then falls back to its Jaccard tier for duplicate detection
// and the context assembler falls back to FTS-only ranking for this row.
type AddObservationParams struct {
	ProjectHash string
	SessionID   string
	Content     string
	Title       string
	Kind        string
	Source      string
	Embedding   []float32
}

// AddObservation inserts a new observation row. Callers are expected to
// have already run the content through the admission filter, privacy
// filter, and save guard (internal/admission, internal/privacy,
// internal/guard) — this method performs no filtering of its own, it
// only persists.
func (s *Store) AddObservation(p AddObservationParams) (int64, error) {
	if p.Kind == "" {
		p.Kind = "finding"
	}
	now := Now()

	var embBlob []byte
	if len(p.Embedding) > 0 {
		embBlob = EncodeEmbedding(p.Embedding)
	}

	res, err := s.db.Exec(
		`INSERT INTO observations
		   (project_hash, session_id, content, title, kind, source, embedding, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ProjectHash, nullableString(p.SessionID), p.Content, nullableString(p.Title),
		p.Kind, p.Source, embBlob, now, now,
	)
	if err != nil {
		return 0, fmt.Errorf("memory: add observation: %w", err)
	}
	return res.LastInsertId()
}

// GetObservation fetches one observation by id, including soft-deleted
// rows (callers that need deleted_at filtering query RecentObservations
// instead).
func (s *Store) GetObservation(id int64) (*Observation, error) {
	row := s.db.QueryRow(
		`SELECT id, project_hash, session_id, content, title, kind, source, embedding, created_at, updated_at
		 FROM observations WHERE id = ?`, id,
	)
	obs, err := scanObservation(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("memory: get observation: %w", err)
	}
	return obs, nil
}

// RecentObservations returns the most recent non-deleted observations
// for a project, most recent first. Used by the save guard's duplicate
// window and the context assembler's recency tier.
func (s *Store) RecentObservations(projectHash string, limit int) ([]Observation, error) {
	rows, err := s.db.Query(
		`SELECT id, project_hash, session_id, content, title, kind, source, embedding, created_at, updated_at
		 FROM observations
		 WHERE project_hash = ? AND deleted_at IS NULL
		 ORDER BY id DESC LIMIT ?`,
		projectHash, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("memory: recent observations: %w", err)
	}
	defer rows.Close()

	var out []Observation
	for rows.Next() {
		obs, err := scanObservation(rows)
		if err != nil {
			return nil, fmt.Errorf("memory: recent observations scan: %w", err)
		}
		out = append(out, *obs)
	}
	return out, rows.Err()
}

// SessionObservations returns every observation captured within a single
// session, oldest first, for research-buffer attachment and session
// summary generation.
func (s *Store) SessionObservations(sessionID string) ([]Observation, error) {
	rows, err := s.db.Query(
		`SELECT id, project_hash, session_id, content, title, kind, source, embedding, created_at, updated_at
		 FROM observations
		 WHERE session_id = ? AND deleted_at IS NULL
		 ORDER BY id ASC`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("memory: session observations: %w", err)
	}
	defer rows.Close()

	var out []Observation
	for rows.Next() {
		obs, err := scanObservation(rows)
		if err != nil {
			return nil, fmt.Errorf("memory: session observations scan: %w", err)
		}
		out = append(out, *obs)
	}
	return out, rows.Err()
}

// SessionObservationsBefore returns up to limit observations from a
// single session that were captured strictly before beforeID, oldest
// first. Used by the topic-shift detector to snapshot a stash: the
// candidate that triggered the shift must never appear in its own
// stash.
func (s *Store) SessionObservationsBefore(sessionID string, beforeID int64, limit int) ([]Observation, error) {
	rows, err := s.db.Query(
		`SELECT id, project_hash, session_id, content, title, kind, source, embedding, created_at, updated_at
		 FROM observations
		 WHERE session_id = ? AND id < ? AND deleted_at IS NULL
		 ORDER BY id ASC LIMIT ?`,
		sessionID, beforeID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("memory: session observations before: %w", err)
	}
	defer rows.Close()

	var out []Observation
	for rows.Next() {
		obs, err := scanObservation(rows)
		if err != nil {
			return nil, fmt.Errorf("memory: session observations before scan: %w", err)
		}
		out = append(out, *obs)
	}
	return out, rows.Err()
}

// DeleteObservation soft-deletes an observation by stamping deleted_at.
// The row and its FTS shadow stay in place; ResetObservationIndex is
// what actually purges FTS entries for rows that stay soft-deleted past
// ResearchPurgeAfter.
func (s *Store) DeleteObservation(id int64) error {
	_, err := s.db.Exec(`UPDATE observations SET deleted_at = ? WHERE id = ?`, Now(), id)
	if err != nil {
		return fmt.Errorf("memory: delete observation: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanObservation(row rowScanner) (*Observation, error) {
	var obs Observation
	var sessionID, title sql.NullString
	var embBlob []byte
	if err := row.Scan(
		&obs.ID, &obs.ProjectHash, &sessionID, &obs.Content, &title,
		&obs.Kind, &obs.Source, &embBlob, &obs.CreatedAt, &obs.UpdatedAt,
	); err != nil {
		return nil, err
	}
	obs.SessionID = derefString(sessionID)
	obs.Title = derefString(title)
	if len(embBlob) > 0 {
		obs.Embedding = DecodeEmbedding(embBlob)
	}
	return &obs, nil
}
