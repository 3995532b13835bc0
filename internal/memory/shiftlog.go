package memory

import (
	"database/sql"
	"fmt"
)

// TopicState is the EWMA model the topic-shift detector maintains per
// session: the previous observation's embedding, and the running mean
// and variance of recent cosine distances that the adaptive threshold
// is derived from.
type TopicState struct {
	ProjectHash       string
	SessionID         string
	PreviousEmbedding []float32
	EWMAMean          float64
	EWMAVariance      float64
	Initialized       bool
	ManualThreshold   *float64
}

// GetTopicState loads a session's topic-shift model, returning the zero
// value (Initialized=false) if this is the session's first observation.
func (s *Store) GetTopicState(projectHash, sessionID string) (TopicState, error) {
	var st TopicState
	var prevBlob []byte
	var initialized int
	var manual sql.NullFloat64
	err := s.db.QueryRow(
		`SELECT previous_embedding, ewma_mean, ewma_variance, initialized, manual_threshold
		 FROM topic_state WHERE project_hash = ? AND session_id = ?`,
		projectHash, sessionID,
	).Scan(&prevBlob, &st.EWMAMean, &st.EWMAVariance, &initialized, &manual)
	if err == sql.ErrNoRows {
		return TopicState{ProjectHash: projectHash, SessionID: sessionID}, nil
	}
	if err != nil {
		return TopicState{}, fmt.Errorf("memory: get topic state: %w", err)
	}
	st.ProjectHash = projectHash
	st.SessionID = sessionID
	st.Initialized = initialized != 0
	if len(prevBlob) > 0 {
		st.PreviousEmbedding = DecodeEmbedding(prevBlob)
	}
	if manual.Valid {
		st.ManualThreshold = &manual.Float64
	}
	return st, nil
}

// SaveTopicState upserts a session's topic-shift model after each
// observation is scored.
func (s *Store) SaveTopicState(st TopicState) error {
	var prevBlob []byte
	if len(st.PreviousEmbedding) > 0 {
		prevBlob = EncodeEmbedding(st.PreviousEmbedding)
	}
	var manual sql.NullFloat64
	if st.ManualThreshold != nil {
		manual = sql.NullFloat64{Float64: *st.ManualThreshold, Valid: true}
	}

	_, err := s.db.Exec(
		`INSERT INTO topic_state (project_hash, session_id, previous_embedding, ewma_mean, ewma_variance, initialized, manual_threshold)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(project_hash, session_id) DO UPDATE SET
		   previous_embedding = excluded.previous_embedding,
		   ewma_mean = excluded.ewma_mean,
		   ewma_variance = excluded.ewma_variance,
		   initialized = excluded.initialized,
		   manual_threshold = excluded.manual_threshold`,
		st.ProjectHash, st.SessionID, prevBlob, st.EWMAMean, st.EWMAVariance, boolToInt(st.Initialized), manual,
	)
	if err != nil {
		return fmt.Errorf("memory: save topic state: %w", err)
	}
	return nil
}

// ShiftDecision is one logged topic-shift scoring outcome, kept for
// diagnosing threshold behavior and for the assembler's "topics covered
// this session" summary.
type ShiftDecision struct {
	ID            int64
	ProjectHash   string
	SessionID     string
	ObservationID int64
	Distance      float64
	Threshold     float64
	EWMAMean      float64
	EWMAVariance  float64
	Shifted       bool
	Confidence    float64
	StashID       string
	CreatedAt     string
}

// LogShiftDecision records the outcome of one topic-shift evaluation.
func (s *Store) LogShiftDecision(d ShiftDecision) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO shift_decisions
		   (project_hash, session_id, observation_id, distance, threshold, ewma_mean, ewma_variance, shifted, confidence, stash_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ProjectHash, d.SessionID, d.ObservationID, d.Distance, d.Threshold,
		d.EWMAMean, d.EWMAVariance, boolToInt(d.Shifted), d.Confidence, nullableString(d.StashID), Now(),
	)
	if err != nil {
		return 0, fmt.Errorf("memory: log shift decision: %w", err)
	}
	return res.LastInsertId()
}

// SessionShiftCount returns how many topic shifts were detected in a
// session, used for session-summary generation.
func (s *Store) SessionShiftCount(sessionID string) (int, error) {
	var n int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM shift_decisions WHERE session_id = ? AND shifted = 1`,
		sessionID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("memory: session shift count: %w", err)
	}
	return n, nil
}
