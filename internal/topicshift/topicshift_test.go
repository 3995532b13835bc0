package topicshift

import (
	"testing"

	"github.com/NoobyNull/Laminark-sub004/internal/memory"
)

func TestScoreFirstObservationNeverShifts(t *testing.T) {
	state := memory.TopicState{}
	decision, next := Score(state, []float32{1, 0, 0}, nil)
	if decision.Shifted {
		t.Fatal("first observation should never be a shift")
	}
	if !next.Initialized {
		t.Fatal("state should be initialized after first observation")
	}
}

func TestScoreDetectsLargeDistanceShift(t *testing.T) {
	state := memory.TopicState{Initialized: true, PreviousEmbedding: []float32{1, 0, 0}}
	threshold := 0.1
	decision, _ := Score(state, []float32{0, 1, 0}, &threshold)
	if !decision.Shifted {
		t.Fatalf("expected shift for orthogonal embeddings, got %+v", decision)
	}
}

func TestScoreNoShiftForSimilarEmbedding(t *testing.T) {
	state := memory.TopicState{Initialized: true, PreviousEmbedding: []float32{1, 0, 0}}
	threshold := 0.5
	decision, _ := Score(state, []float32{0.99, 0.01, 0}, &threshold)
	if decision.Shifted {
		t.Fatalf("expected no shift for near-identical embeddings, got %+v", decision)
	}
}

func TestScoreClampsAdaptiveThresholdOnSecondObservation(t *testing.T) {
	// EWMAMean and EWMAVariance are both still zero at this point (no
	// prior comparison to learn from), so an unclamped threshold would
	// be zero and every distance would trivially "shift". The floor
	// bound must keep the comparison meaningful from the first
	// adaptive call onward.
	state := memory.TopicState{Initialized: true, PreviousEmbedding: []float32{1, 0, 0}}
	decision, _ := Score(state, []float32{0, 1, 0}, nil)
	if decision.Threshold < MinThreshold {
		t.Fatalf("expected threshold clamped to floor %v, got %v", MinThreshold, decision.Threshold)
	}
	if !decision.Shifted {
		t.Fatalf("expected orthogonal embeddings (distance 1.0) to shift against clamped threshold, got %+v", decision)
	}
}

func TestScoreUpdatesEWMAState(t *testing.T) {
	state := memory.TopicState{Initialized: true, PreviousEmbedding: []float32{1, 0, 0}, EWMAMean: 0.1}
	_, next := Score(state, []float32{0.9, 0.1, 0}, nil)
	if next.EWMAMean == state.EWMAMean {
		t.Fatal("expected EWMA mean to update after scoring")
	}
	if len(next.PreviousEmbedding) != 3 || next.PreviousEmbedding[0] != 0.9 {
		t.Fatalf("expected previous embedding to advance, got %+v", next.PreviousEmbedding)
	}
}
