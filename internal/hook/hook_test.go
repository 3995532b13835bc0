package hook

import (
	"bytes"
	"strings"
	"testing"

	"github.com/NoobyNull/Laminark-sub004/internal/memory"
)

func newTestDispatcher(t *testing.T) *Dispatcher {
	t.Helper()
	cfg := memory.DefaultConfig()
	cfg.DataDir = t.TempDir()
	store, err := memory.New(cfg)
	if err != nil {
		t.Fatalf("memory.New: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return New(store)
}

func TestDispatchSessionStartWritesStdout(t *testing.T) {
	d := newTestDispatcher(t)
	in := strings.NewReader(`{"hook_event_name":"SessionStart","session_id":"s1","cwd":"/tmp/proj","project_name":"proj"}`)
	var out bytes.Buffer
	d.Dispatch(in, &out)
	if out.Len() == 0 {
		t.Fatal("expected non-empty stdout for SessionStart")
	}
}

func TestDispatchPostToolUseWritesNoStdout(t *testing.T) {
	d := newTestDispatcher(t)
	in := strings.NewReader(`{"hook_event_name":"PostToolUse","session_id":"s1","cwd":"/tmp/proj","tool_name":"Bash","tool_input":{"command":"go test ./... -run TestX -v"}}`)
	var out bytes.Buffer
	d.Dispatch(in, &out)
	if out.Len() != 0 {
		t.Fatalf("expected no stdout for PostToolUse, got %q", out.String())
	}
}

func TestDispatchUnknownEventDoesNotPanic(t *testing.T) {
	d := newTestDispatcher(t)
	in := strings.NewReader(`{"hook_event_name":"SomethingNew"}`)
	var out bytes.Buffer
	d.Dispatch(in, &out)
	if out.Len() != 0 {
		t.Fatalf("expected no stdout for unknown event, got %q", out.String())
	}
}

func TestDispatchMalformedJSONDoesNotPanic(t *testing.T) {
	d := newTestDispatcher(t)
	in := strings.NewReader(`not json at all`)
	var out bytes.Buffer
	d.Dispatch(in, &out)
}
