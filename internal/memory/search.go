package memory

import (
	"database/sql"
	"fmt"
	"sort"
)

// SearchResult is a ranked observation returned from Search or
// VectorSearch, carrying whichever score the caller's method produced.
type SearchResult struct {
	Observation
	Score float64
}

// Search runs a BM25 full-text query over observations_fts scoped to a
// project. Query terms are quoted through sanitizeFTS so FTS5 query
// operators in user-supplied text are never interpreted as grammar.
func (s *Store) Search(projectHash, query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = s.cfg.MaxSearchResults
	}
	ftsQuery := sanitizeFTS(query)
	if ftsQuery == "" {
		return nil, nil
	}

	rows, err := s.db.Query(
		`SELECT o.id, o.project_hash, o.session_id, o.content, o.title, o.kind, o.source,
		        o.embedding, o.created_at, o.updated_at, bm25(observations_fts) AS rank
		 FROM observations_fts
		 JOIN observations o ON o.id = observations_fts.rowid
		 WHERE observations_fts MATCH ? AND o.project_hash = ? AND o.deleted_at IS NULL
		 ORDER BY rank LIMIT ?`,
		ftsQuery, projectHash, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("memory: search: %w", err)
	}
	defer rows.Close()

	var out []SearchResult
	for rows.Next() {
		var obs Observation
		var sessionID, title sql.NullString
		var embBlob []byte
		var rank float64
		if err := rows.Scan(
			&obs.ID, &obs.ProjectHash, &sessionID, &obs.Content, &title, &obs.Kind, &obs.Source,
			&embBlob, &obs.CreatedAt, &obs.UpdatedAt, &rank,
		); err != nil {
			return nil, fmt.Errorf("memory: search scan: %w", err)
		}
		obs.SessionID = derefString(sessionID)
		obs.Title = derefString(title)
		if len(embBlob) > 0 {
			obs.Embedding = DecodeEmbedding(embBlob)
		}
		// bm25() returns lower-is-better; invert so SearchResult.Score is
		// consistently higher-is-better across both search methods.
		out = append(out, SearchResult{Observation: obs, Score: -rank})
	}
	return out, rows.Err()
}

// VectorSearch ranks a project's observations by cosine similarity to a
// query embedding. There is no vector index in this database: every
// candidate row is scored in application code, which is acceptable at
// the per-project observation volumes this system targets (low
// thousands between resets) but would need an ANN structure at larger
// scale.
func (s *Store) VectorSearch(projectHash string, query []float32, limit int) ([]SearchResult, error) {
	if len(query) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = s.cfg.MaxSearchResults
	}

	rows, err := s.db.Query(
		`SELECT id, project_hash, session_id, content, title, kind, source, embedding, created_at, updated_at
		 FROM observations
		 WHERE project_hash = ? AND deleted_at IS NULL AND embedding IS NOT NULL`,
		projectHash,
	)
	if err != nil {
		return nil, fmt.Errorf("memory: vector search: %w", err)
	}
	defer rows.Close()

	var candidates []SearchResult
	for rows.Next() {
		obs, err := scanObservation(rows)
		if err != nil {
			return nil, fmt.Errorf("memory: vector search scan: %w", err)
		}
		sim := CosineSimilarity(query, obs.Embedding)
		candidates = append(candidates, SearchResult{Observation: *obs, Score: sim})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].Score > candidates[j].Score })
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates, nil
}

// HybridSearch fuses full-text and vector rankings with reciprocal rank
// fusion: each result's score is the sum of 1/(k+rank) over every list
// it appears in, with k=60 per the conventional RRF constant. This lets
// a row that's merely close in embedding space but not lexically
// present (or vice versa) still surface, without hand-tuning a weight
// between two differently-scaled score domains.
func (s *Store) HybridSearch(projectHash, query string, queryEmbedding []float32, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = s.cfg.MaxSearchResults
	}

	textResults, err := s.Search(projectHash, query, limit*3)
	if err != nil {
		return nil, err
	}
	var vectorResults []SearchResult
	if len(queryEmbedding) > 0 {
		vectorResults, err = s.VectorSearch(projectHash, queryEmbedding, limit*3)
		if err != nil {
			return nil, err
		}
	}

	const k = 60.0
	fused := make(map[int64]float64)
	byID := make(map[int64]Observation)

	for rank, r := range textResults {
		fused[r.ID] += 1.0 / (k + float64(rank+1))
		byID[r.ID] = r.Observation
	}
	for rank, r := range vectorResults {
		fused[r.ID] += 1.0 / (k + float64(rank+1))
		byID[r.ID] = r.Observation
	}

	out := make([]SearchResult, 0, len(fused))
	for id, score := range fused {
		out = append(out, SearchResult{Observation: byID[id], Score: score})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
