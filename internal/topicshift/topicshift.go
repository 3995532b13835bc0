// Package topicshift detects when a session's conversation has moved
// from one topic to another, using an EWMA-adaptive threshold over the
// cosine distance between consecutive observation embeddings rather
// than a single fixed cutoff — a burst of genuinely varied but related
// work (e.g. editing five files in one refactor) shouldn't trip the
// same static threshold that catches an actual subject change.
package topicshift

import (
	"math"

	"github.com/NoobyNull/Laminark-sub004/internal/memory"
)

// Default EWMA smoothing and threshold parameters. Alpha controls how
// quickly the running mean/variance adapts to recent distances; k
// scales the standard deviation added to the mean to form the
// threshold (mean + k*stddev), the classic adaptive-anomaly-threshold
// shape.
const (
	DefaultAlpha = 0.3
	DefaultK     = 1.5
	// MinConfidence is the floor below which a shift is reported but
	// flagged low-confidence rather than suppressed outright, since an
	// EWMA model needs a handful of samples before its variance estimate
	// is trustworthy.
	MinConfidence = 0.5
	// MinThreshold and MaxThreshold bound the adaptive threshold so an
	// under-warmed EWMA (mean=0, variance=0 on the first real
	// comparison) can't pin it to zero and so a runaway variance can't
	// push it past a sane ceiling.
	MinThreshold = 0.15
	MaxThreshold = 0.6
)

// Decision is the result of scoring one new observation's embedding
// against a session's running topic model.
type Decision struct {
	Distance     float64
	Threshold    float64
	EWMAMean     float64
	EWMAVariance float64
	Shifted      bool
	Confidence   float64
}

// Score evaluates a new embedding against a session's topic state,
// updating the EWMA mean/variance and returning whether this
// observation represents a topic shift. The caller is responsible for
// persisting the returned state (memory.SaveTopicState) and, when
// Shifted is true, creating a stash from the preceding observations.
func Score(state memory.TopicState, newEmbedding []float32, manualThreshold *float64) (Decision, memory.TopicState) {
	next := state

	if !state.Initialized || len(state.PreviousEmbedding) == 0 {
		next.PreviousEmbedding = newEmbedding
		next.Initialized = true
		return Decision{Shifted: false, Confidence: 0}, next
	}

	distance := memory.CosineDistance(state.PreviousEmbedding, newEmbedding)

	threshold := clampThreshold(state.EWMAMean + DefaultK*stddev(state.EWMAVariance))
	if manualThreshold != nil {
		threshold = *manualThreshold
	}

	shifted := distance > threshold

	confidence := 0.0
	if threshold > 0 {
		confidence = clamp01((distance - threshold) / threshold)
	}

	delta := distance - state.EWMAMean
	next.EWMAMean = state.EWMAMean + DefaultAlpha*delta
	next.EWMAVariance = (1-DefaultAlpha)*state.EWMAVariance + DefaultAlpha*delta*delta
	next.PreviousEmbedding = newEmbedding
	next.Initialized = true

	return Decision{
		Distance:     distance,
		Threshold:    threshold,
		EWMAMean:     next.EWMAMean,
		EWMAVariance: next.EWMAVariance,
		Shifted:      shifted,
		Confidence:   confidence,
	}, next
}

func clampThreshold(threshold float64) float64 {
	if threshold < MinThreshold {
		return MinThreshold
	}
	if threshold > MaxThreshold {
		return MaxThreshold
	}
	return threshold
}

func stddev(variance float64) float64 {
	if variance <= 0 {
		return 0
	}
	return math.Sqrt(variance)
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
