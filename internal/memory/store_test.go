package memory

import (
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	cfg := DefaultConfig()
	cfg.DataDir = t.TempDir()
	s, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSessionLifecycle(t *testing.T) {
	s := newTestStore(t)
	ph := ProjectHash("/tmp/project-a")

	if err := s.CreateSession("sess-1", ph); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	// Idempotent re-create shouldn't error.
	if err := s.CreateSession("sess-1", ph); err != nil {
		t.Fatalf("CreateSession (repeat): %v", err)
	}

	got, err := s.GetSession("sess-1")
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if got == nil || got.ProjectHash != ph {
		t.Fatalf("GetSession returned %+v", got)
	}

	if err := s.EndSession("sess-1", "did things"); err != nil {
		t.Fatalf("EndSession: %v", err)
	}
	got, _ = s.GetSession("sess-1")
	if got.Summary != "did things" || got.EndedAt == "" {
		t.Fatalf("EndSession did not persist: %+v", got)
	}

	if err := s.EndSession("does-not-exist", "x"); err == nil {
		t.Fatal("expected error ending unknown session")
	}
}

func TestAddAndRecentObservations(t *testing.T) {
	s := newTestStore(t)
	ph := ProjectHash("/tmp/project-b")

	for i := 0; i < 3; i++ {
		_, err := s.AddObservation(AddObservationParams{
			ProjectHash: ph,
			SessionID:   "sess-1",
			Content:     "observation content",
			Kind:        "finding",
			Source:      "PostToolUse",
		})
		if err != nil {
			t.Fatalf("AddObservation: %v", err)
		}
	}

	obs, err := s.RecentObservations(ph, 10)
	if err != nil {
		t.Fatalf("RecentObservations: %v", err)
	}
	if len(obs) != 3 {
		t.Fatalf("want 3 observations, got %d", len(obs))
	}
	// Most recent first.
	if obs[0].ID < obs[1].ID {
		t.Fatalf("expected descending id order: %+v", obs)
	}
}

func TestObservationEmbeddingRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ph := ProjectHash("/tmp/project-c")
	vec := []float32{0.1, 0.2, 0.3, 0.4}

	id, err := s.AddObservation(AddObservationParams{
		ProjectHash: ph,
		SessionID:   "sess-1",
		Content:     "has an embedding",
		Source:      "PostToolUse",
		Embedding:   vec,
	})
	if err != nil {
		t.Fatalf("AddObservation: %v", err)
	}

	got, err := s.GetObservation(id)
	if err != nil {
		t.Fatalf("GetObservation: %v", err)
	}
	if len(got.Embedding) != len(vec) {
		t.Fatalf("embedding length mismatch: got %d want %d", len(got.Embedding), len(vec))
	}
	for i := range vec {
		if got.Embedding[i] != vec[i] {
			t.Fatalf("embedding[%d] = %v, want %v", i, got.Embedding[i], vec[i])
		}
	}
}

func TestSearchFullText(t *testing.T) {
	s := newTestStore(t)
	ph := ProjectHash("/tmp/project-d")

	if _, err := s.AddObservation(AddObservationParams{
		ProjectHash: ph, SessionID: "sess-1", Source: "PostToolUse",
		Content: "refactored the authentication middleware to use jwt tokens",
	}); err != nil {
		t.Fatalf("AddObservation: %v", err)
	}
	if _, err := s.AddObservation(AddObservationParams{
		ProjectHash: ph, SessionID: "sess-1", Source: "PostToolUse",
		Content: "updated the changelog for the release",
	}); err != nil {
		t.Fatalf("AddObservation: %v", err)
	}

	results, err := s.Search(ph, "authentication jwt", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("want 1 result, got %d", len(results))
	}
}

func TestDeleteObservationIsSoft(t *testing.T) {
	s := newTestStore(t)
	ph := ProjectHash("/tmp/project-e")

	id, err := s.AddObservation(AddObservationParams{
		ProjectHash: ph, SessionID: "sess-1", Source: "PostToolUse", Content: "to be deleted",
	})
	if err != nil {
		t.Fatalf("AddObservation: %v", err)
	}
	if err := s.DeleteObservation(id); err != nil {
		t.Fatalf("DeleteObservation: %v", err)
	}

	obs, err := s.RecentObservations(ph, 10)
	if err != nil {
		t.Fatalf("RecentObservations: %v", err)
	}
	if len(obs) != 0 {
		t.Fatalf("expected soft-deleted observation excluded, got %d", len(obs))
	}

	// Still fetchable directly by id.
	got, err := s.GetObservation(id)
	if err != nil || got == nil {
		t.Fatalf("GetObservation after delete: %v, %+v", err, got)
	}
}

func TestToolRegistryDemotionAndRestore(t *testing.T) {
	s := newTestStore(t)
	ph := ProjectHash("/tmp/project-f")

	if err := s.UpsertRegistryEntry(RegistryEntry{
		ToolName: "mcp__flaky__run", ProjectHash: ph, Type: "mcp", Scope: ScopeProject, Source: ".mcp.json",
	}); err != nil {
		t.Fatalf("UpsertRegistryEntry: %v", err)
	}

	for i := 0; i < 3; i++ {
		if err := s.RecordToolInvocation("mcp__flaky__run", ph, false); err != nil {
			t.Fatalf("RecordToolInvocation: %v", err)
		}
	}
	failures, err := s.RecentFailureCount("mcp__flaky__run", ph, 5)
	if err != nil {
		t.Fatalf("RecentFailureCount: %v", err)
	}
	if failures != 3 {
		t.Fatalf("want 3 failures, got %d", failures)
	}

	if err := s.Demote("mcp__flaky__run", ph); err != nil {
		t.Fatalf("Demote: %v", err)
	}
	ranked, err := s.RankedTools(ph, 10)
	if err != nil {
		t.Fatalf("RankedTools: %v", err)
	}
	if len(ranked) != 0 {
		t.Fatalf("demoted tool should not appear in ranked active tools, got %+v", ranked)
	}

	if err := s.RecordToolInvocation("mcp__flaky__run", ph, true); err != nil {
		t.Fatalf("RecordToolInvocation success: %v", err)
	}
	ranked, err = s.RankedTools(ph, 10)
	if err != nil {
		t.Fatalf("RankedTools: %v", err)
	}
	if len(ranked) != 1 {
		t.Fatalf("tool should be restored to active after a success, got %+v", ranked)
	}
}

func TestResearchBufferTTL(t *testing.T) {
	s := newTestStore(t)

	if err := s.PushResearch("sess-1", "Read", "auth.go"); err != nil {
		t.Fatalf("PushResearch: %v", err)
	}
	drained, err := s.DrainResearch("sess-1", time.Hour)
	if err != nil {
		t.Fatalf("DrainResearch: %v", err)
	}
	if len(drained) != 1 {
		t.Fatalf("want 1 drained entry, got %d", len(drained))
	}

	// Drained once, should be empty the second time.
	drained, err = s.DrainResearch("sess-1", time.Hour)
	if err != nil {
		t.Fatalf("DrainResearch (second): %v", err)
	}
	if len(drained) != 0 {
		t.Fatalf("expected buffer cleared after drain, got %d", len(drained))
	}
}

func TestNotificationsConsumedOnce(t *testing.T) {
	s := newTestStore(t)
	ph := ProjectHash("/tmp/project-g")

	if err := s.QueueNotification(ph, "tool X was demoted"); err != nil {
		t.Fatalf("QueueNotification: %v", err)
	}
	notes, err := s.ConsumePending(ph)
	if err != nil {
		t.Fatalf("ConsumePending: %v", err)
	}
	if len(notes) != 1 {
		t.Fatalf("want 1 notification, got %d", len(notes))
	}

	notes, err = s.ConsumePending(ph)
	if err != nil {
		t.Fatalf("ConsumePending (second): %v", err)
	}
	if len(notes) != 0 {
		t.Fatalf("expected notifications consumed exactly once, got %d", len(notes))
	}
}

func TestCosineSimilarityAndDistance(t *testing.T) {
	a := []float32{1, 0, 0}
	b := []float32{1, 0, 0}
	if sim := CosineSimilarity(a, b); sim < 0.999 {
		t.Fatalf("expected identical vectors to have similarity ~1, got %v", sim)
	}
	c := []float32{0, 1, 0}
	if sim := CosineSimilarity(a, c); sim > 0.001 {
		t.Fatalf("expected orthogonal vectors to have similarity ~0, got %v", sim)
	}
	if d := CosineDistance(a, b); d > 0.001 {
		t.Fatalf("expected identical vectors to have distance ~0, got %v", d)
	}
}

func TestJaccardSimilarity(t *testing.T) {
	a := "the quick brown fox"
	b := "the quick brown dog"
	sim := JaccardSimilarity(a, b)
	if sim < 0.3 || sim > 0.7 {
		t.Fatalf("expected partial overlap similarity, got %v", sim)
	}
	if JaccardSimilarity(a, a) != 1 {
		t.Fatalf("expected identical strings to have similarity 1")
	}
}
