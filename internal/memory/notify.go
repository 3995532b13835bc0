package memory

import (
	"fmt"

	"github.com/google/uuid"
)

// PendingNotification is a one-shot message queued for delivery at the
// next SessionStart or pre-tool context injection for a project, such
// as a tool-registry demotion the assistant should be told about before
// it reaches for that tool again.
type PendingNotification struct {
	ID          string
	ProjectHash string
	Message     string
	CreatedAt   string
}

// QueueNotification appends a pending notification for a project.
func (s *Store) QueueNotification(projectHash, message string) error {
	_, err := s.db.Exec(
		`INSERT INTO pending_notifications (id, project_hash, message, created_at) VALUES (?, ?, ?, ?)`,
		uuid.NewString(), projectHash, message, Now(),
	)
	if err != nil {
		return fmt.Errorf("memory: queue notification: %w", err)
	}
	return nil
}

// ConsumePending returns and deletes every pending notification for a
// project, in insertion order. Consumption is atomic: a notification is
// handed to exactly one caller, never replayed across concurrent hook
// processes for the same project.
func (s *Store) ConsumePending(projectHash string) ([]PendingNotification, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("memory: consume pending: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.Query(
		`SELECT id, project_hash, message, created_at FROM pending_notifications
		 WHERE project_hash = ? ORDER BY created_at ASC`,
		projectHash,
	)
	if err != nil {
		return nil, fmt.Errorf("memory: consume pending: select: %w", err)
	}

	var out []PendingNotification
	for rows.Next() {
		var n PendingNotification
		if err := rows.Scan(&n.ID, &n.ProjectHash, &n.Message, &n.CreatedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("memory: consume pending: scan: %w", err)
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	if _, err := tx.Exec(`DELETE FROM pending_notifications WHERE project_hash = ?`, projectHash); err != nil {
		return nil, fmt.Errorf("memory: consume pending: delete: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("memory: consume pending: commit: %w", err)
	}
	return out, nil
}
