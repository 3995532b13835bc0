// Package guard implements the save guard: the two-tier duplicate
// check that runs immediately before an observation is persisted, so a
// tool being called repeatedly against the same file doesn't flood the
// store with near-identical rows.
package guard

import "github.com/NoobyNull/Laminark-sub004/internal/memory"

// Candidate is one recent observation the guard compares a new
// observation against.
type Candidate struct {
	ID        int64
	Content   string
	Embedding []float32
}

// Verdict is the guard's decision on whether a new observation is a
// duplicate of something already captured recently.
type Verdict struct {
	Duplicate bool
	MatchedID int64
	Method    string
	Score     float64
}

// Config holds the guard's two duplicate thresholds, mirrored from
// memory.Config so callers that already loaded store config can pass it
// straight through.
type Config struct {
	VectorThreshold float64
	TextThreshold   float64
}

// Check compares a candidate new observation (content + optional
// embedding) against the last window of observations in the same
// project. When the new observation carries an embedding, every
// candidate that also has one is scored by cosine distance; candidates
// below VectorThreshold count as a duplicate. Observations with no
// embedding on either side fall back to Jaccard text similarity at or
// above TextThreshold.
func Check(cfg Config, content string, embedding []float32, recent []Candidate) Verdict {
	for _, c := range recent {
		if len(embedding) > 0 && len(c.Embedding) > 0 {
			dist := memory.CosineDistance(embedding, c.Embedding)
			if dist < cfg.VectorThreshold {
				return Verdict{Duplicate: true, MatchedID: c.ID, Method: "vector", Score: dist}
			}
			continue
		}
		sim := memory.JaccardSimilarity(content, c.Content)
		if sim >= cfg.TextThreshold {
			return Verdict{Duplicate: true, MatchedID: c.ID, Method: "jaccard", Score: sim}
		}
	}
	return Verdict{Duplicate: false}
}
