package pipeline

import (
	"strings"
	"testing"
	"time"

	"github.com/NoobyNull/Laminark-sub004/internal/embedding"
	"github.com/NoobyNull/Laminark-sub004/internal/guard"
	"github.com/NoobyNull/Laminark-sub004/internal/memory"
	"github.com/NoobyNull/Laminark-sub004/internal/obslog"
)

func newTestPipeline(t *testing.T) (*Pipeline, *memory.Store) {
	t.Helper()
	cfg := memory.DefaultConfig()
	cfg.DataDir = t.TempDir()
	store, err := memory.New(cfg)
	if err != nil {
		t.Fatalf("memory.New: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	p := &Pipeline{
		Store:       store,
		Embedder:    embedding.NewHashingEmbedder(32),
		Log:         obslog.New("test"),
		Guard:       guard.Config{VectorThreshold: 0.08, TextThreshold: 0.85},
		ResearchTTL: 5 * time.Minute,
	}
	return p, store
}

func TestProcessSkipsSelfReference(t *testing.T) {
	p, _ := newTestPipeline(t)
	out := p.Process(Event{ToolName: "mcp__laminark__recent_context", ProjectHash: "p1", SessionID: "s1", Success: true})
	if out.Observed || out.SkipReason != "self-reference" {
		t.Fatalf("expected self-reference skip, got %+v", out)
	}
}

func TestProcessBuffersExplorationTools(t *testing.T) {
	p, _ := newTestPipeline(t)
	out := p.Process(Event{
		ToolName: "Read", FilePath: "auth.go", ProjectHash: "p1", SessionID: "s1", Success: true,
	})
	if out.Observed {
		t.Fatalf("exploration tools should not produce observations, got %+v", out)
	}
}

func TestProcessObservesAdmittedContent(t *testing.T) {
	p, store := newTestPipeline(t)
	out := p.Process(Event{
		ToolName:   "Bash",
		ToolInput:  "go test ./internal/... -run TestSomethingMeaningful -v",
		ProjectHash: "p1", SessionID: "s1", Success: true,
	})
	if !out.Observed {
		t.Fatalf("expected observation, got %+v", out)
	}
	obs, err := store.GetObservation(out.ObservationID)
	if err != nil || obs == nil {
		t.Fatalf("expected stored observation, err=%v obs=%+v", err, obs)
	}
}

func TestProcessExcludesPrivatePaths(t *testing.T) {
	p, _ := newTestPipeline(t)
	out := p.Process(Event{
		ToolName: "Write", FilePath: ".env", ToolInput: "SECRET_KEY=abc123defghijklmnop",
		ProjectHash: "p1", SessionID: "s1", Success: true,
	})
	if out.Observed {
		t.Fatalf("expected .env path excluded, got %+v", out)
	}
}

func TestScoreTopicShiftEmitsNotificationAndStashesStrictlyOlderObservations(t *testing.T) {
	p, store := newTestPipeline(t)

	firstID, err := store.AddObservation(memory.AddObservationParams{
		ProjectHash: "p1", SessionID: "s1", Content: "first topic content", Source: "Bash",
	})
	if err != nil {
		t.Fatalf("AddObservation first: %v", err)
	}
	// First call only ever initializes the topic state.
	p.scoreTopicShift(Event{ProjectHash: "p1", SessionID: "s1"}, []float32{1, 0, 0}, firstID)

	secondID, err := store.AddObservation(memory.AddObservationParams{
		ProjectHash: "p1", SessionID: "s1", Content: "second topic content", Source: "Bash",
	})
	if err != nil {
		t.Fatalf("AddObservation second: %v", err)
	}
	shifted := p.scoreTopicShift(Event{ProjectHash: "p1", SessionID: "s1"}, []float32{0, 1, 0}, secondID)
	if !shifted {
		t.Fatal("expected orthogonal embeddings to register a topic shift")
	}

	pending, err := store.ConsumePending("p1")
	if err != nil {
		t.Fatalf("ConsumePending: %v", err)
	}
	found := false
	for _, n := range pending {
		if strings.Contains(n.Message, "Topic shift detected") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a 'Topic shift detected' notification, got %+v", pending)
	}

	stashes, err := store.RecentStashes("p1", 5)
	if err != nil || len(stashes) != 1 {
		t.Fatalf("expected exactly one stash, err=%v stashes=%+v", err, stashes)
	}

	var snapCount int
	var snapObsID int64
	row := store.DB().QueryRow(`SELECT COUNT(*), MAX(observation_id) FROM stash_observations WHERE stash_id = ?`, stashes[0].ID)
	if err := row.Scan(&snapCount, &snapObsID); err != nil {
		t.Fatalf("scan stash_observations: %v", err)
	}
	if snapCount != 1 {
		t.Fatalf("expected exactly one snapshotted observation (strictly older than the shift candidate), got %d", snapCount)
	}
	if snapObsID != firstID {
		t.Fatalf("expected snapshot to hold the first observation (%d), got %d", firstID, snapObsID)
	}
	if snapObsID == secondID {
		t.Fatal("stash must not include the observation that triggered the shift")
	}
}

func TestProcessDemotesFailingTool(t *testing.T) {
	p, store := newTestPipeline(t)
	for i := 0; i < 3; i++ {
		p.Process(Event{ToolName: "Bash", ToolInput: "run the broken deploy script now please", ProjectHash: "p1", SessionID: "s1", Success: false})
	}
	ranked, err := store.RankedTools("p1", 10)
	if err != nil {
		t.Fatalf("RankedTools: %v", err)
	}
	for _, r := range ranked {
		if r.ToolName == "Bash" {
			t.Fatalf("expected Bash demoted out of active ranking, found %+v", r)
		}
	}
}
