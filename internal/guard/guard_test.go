package guard

import "testing"

func defaultConfig() Config {
	return Config{VectorThreshold: 0.08, TextThreshold: 0.85}
}

func TestCheckVectorDuplicate(t *testing.T) {
	recent := []Candidate{
		{ID: 1, Content: "old", Embedding: []float32{1, 0, 0}},
	}
	v := Check(defaultConfig(), "new", []float32{1, 0, 0.001}, recent)
	if !v.Duplicate || v.Method != "vector" {
		t.Fatalf("expected vector duplicate, got %+v", v)
	}
}

func TestCheckVectorNotDuplicateWhenDistant(t *testing.T) {
	recent := []Candidate{
		{ID: 1, Content: "old", Embedding: []float32{1, 0, 0}},
	}
	v := Check(defaultConfig(), "new", []float32{0, 1, 0}, recent)
	if v.Duplicate {
		t.Fatalf("expected no duplicate for orthogonal vectors, got %+v", v)
	}
}

func TestCheckJaccardFallback(t *testing.T) {
	recent := []Candidate{
		{ID: 1, Content: "fixed the off by one error in the loop bound"},
	}
	v := Check(defaultConfig(), "fixed the off by one error in the loop bounds", nil, recent)
	if !v.Duplicate || v.Method != "jaccard" {
		t.Fatalf("expected jaccard duplicate, got %+v", v)
	}
}

func TestCheckNoDuplicateAmongUnrelatedText(t *testing.T) {
	recent := []Candidate{
		{ID: 1, Content: "wrote the database migration"},
	}
	v := Check(defaultConfig(), "documented the public api surface", nil, recent)
	if v.Duplicate {
		t.Fatalf("expected no duplicate, got %+v", v)
	}
}
