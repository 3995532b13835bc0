package session

import (
	"strings"
	"testing"

	"github.com/NoobyNull/Laminark-sub004/internal/memory"
	"github.com/NoobyNull/Laminark-sub004/internal/obslog"
)

func newTestBridge(t *testing.T) (*Bridge, *memory.Store) {
	t.Helper()
	cfg := memory.DefaultConfig()
	cfg.DataDir = t.TempDir()
	store, err := memory.New(cfg)
	if err != nil {
		t.Fatalf("memory.New: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return New(store, obslog.New("test")), store
}

func TestStartCreatesSessionAndReturnsBlock(t *testing.T) {
	b, _ := newTestBridge(t)
	block, err := b.Start("ph1", "sess-1", "widget-api", "")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !strings.Contains(block, "widget-api") {
		t.Fatalf("expected project name in block, got %q", block)
	}
}

func TestEndClosesSessionWithSummary(t *testing.T) {
	b, store := newTestBridge(t)
	if _, err := b.Start("ph1", "sess-1", "widget-api", ""); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := store.AddObservation(memory.AddObservationParams{
		ProjectHash: "ph1", SessionID: "sess-1", Content: "did a thing", Kind: "change", Source: "Edit",
	}); err != nil {
		t.Fatalf("AddObservation: %v", err)
	}

	if err := b.End("sess-1"); err != nil {
		t.Fatalf("End: %v", err)
	}
	got, err := store.GetSession("sess-1")
	if err != nil || got == nil {
		t.Fatalf("GetSession: %v, %+v", err, got)
	}
	if got.EndedAt == "" || !strings.Contains(got.Summary, "1 observations") {
		t.Fatalf("expected summary with observation count, got %+v", got)
	}
}

func TestStopIsIdempotentWithEnd(t *testing.T) {
	b, store := newTestBridge(t)
	if _, err := b.Start("ph1", "sess-1", "widget-api", ""); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := b.End("sess-1"); err != nil {
		t.Fatalf("End: %v", err)
	}
	if err := b.Stop("sess-1"); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	got, _ := store.GetSession("sess-1")
	if got.EndedAt == "" {
		t.Fatalf("expected session still ended after Stop, got %+v", got)
	}
}
