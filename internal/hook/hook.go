// Package hook implements the dispatcher every hook process runs
// through: read one JSON document from stdin, route it by
// hook_event_name, and guarantee the process always exits 0 regardless
// of what happens downstream — a crashing or nonzero-exiting hook would
// block the tool call it was supposed to be silently observing.
package hook

import (
	"encoding/json"
	"io"

	"github.com/buger/jsonparser"

	"github.com/NoobyNull/Laminark-sub004/internal/embedding"
	"github.com/NoobyNull/Laminark-sub004/internal/guard"
	"github.com/NoobyNull/Laminark-sub004/internal/memory"
	"github.com/NoobyNull/Laminark-sub004/internal/notify"
	"github.com/NoobyNull/Laminark-sub004/internal/obslog"
	"github.com/NoobyNull/Laminark-sub004/internal/pipeline"
	"github.com/NoobyNull/Laminark-sub004/internal/pretool"
	"github.com/NoobyNull/Laminark-sub004/internal/session"
)

// EventName is one of the hook_event_name values the host assistant
// sends.
type EventName string

const (
	EventSessionStart     EventName = "SessionStart"
	EventPreToolUse       EventName = "PreToolUse"
	EventPostToolUse      EventName = "PostToolUse"
	EventPostToolUseError EventName = "PostToolUseFailure"
	EventSessionEnd       EventName = "SessionEnd"
	EventStop             EventName = "Stop"
)

// rawEvent is the subset of fields this dispatcher reads off the hook
// payload via jsonparser before deciding whether the rest needs full
// JSON decoding at all — most events only need a handful of top-level
// strings, not a full unmarshal.
type rawEvent struct {
	eventName   string
	sessionID   string
	cwd         string
	toolName    string
	toolInput   string
	toolOutput  string
	filePath    string
	success     bool
	projectName string
}

// Dispatcher holds the dependencies shared across every hook
// invocation. One Dispatcher is constructed per process; the process
// itself lives only as long as one hook call.
type Dispatcher struct {
	Store    *memory.Store
	Pipeline *pipeline.Pipeline
	Session  *session.Bridge
	Notify   *notify.Bus
	Log      *obslog.Logger
}

// New wires a Dispatcher from a store, constructing the pipeline and
// session bridge with sensible defaults.
func New(store *memory.Store) *Dispatcher {
	log := obslog.New("hook")
	return &Dispatcher{
		Store: store,
		Pipeline: &pipeline.Pipeline{
			Store:       store,
			Embedder:    embedding.NewHashingEmbedder(64),
			Log:         log,
			ResearchTTL: store.Config().ResearchBufferTTL,
			Guard:       guard.Config{VectorThreshold: store.Config().VectorDupeThreshold, TextThreshold: store.Config().TextDupeThreshold},
		},
		Session: session.New(store, log),
		Notify:  notify.New(store),
		Log:     log,
	}
}

// Dispatch reads one hook payload from r and routes it. Any error
// encountered anywhere in this function is logged to stderr and
// swallowed: the contract with the host is that hooks always exit 0.
// stdout is written to only for SessionStart and PreToolUse, matching
// the two events where the host actually reads the hook's stdout as
// context to inject.
func (d *Dispatcher) Dispatch(r io.Reader, stdout io.Writer) {
	body, err := io.ReadAll(r)
	if err != nil {
		d.Log.Error("read stdin failed", "err", err)
		return
	}

	ev := parseRawEvent(body)
	d.Log.Info("dispatching", "event", ev.eventName, "tool", ev.toolName)

	projectHash := memory.ProjectHash(ev.cwd)

	switch EventName(ev.eventName) {
	case EventSessionStart:
		block, err := d.Session.Start(projectHash, ev.sessionID, ev.projectName, ev.cwd)
		if err != nil {
			d.Log.Error("session start failed", "err", err)
			return
		}
		if pending, err := d.Notify.Drain(projectHash); err == nil && len(pending) > 0 {
			block = appendNotifications(block, pending)
		}
		io.WriteString(stdout, block)

	case EventPreToolUse:
		query := ev.toolInput
		if query == "" {
			query = ev.filePath
		}
		var results []memory.SearchResult
		if query != "" {
			results, err = d.Store.Search(projectHash, query, 5)
			if err != nil {
				d.Log.Warn("pre-tool search failed", "err", err)
			}
		}
		block := pretool.Build(results)
		if block != "" {
			io.WriteString(stdout, block)
		}

	case EventPostToolUse, EventPostToolUseError:
		d.Pipeline.Process(pipeline.Event{
			ToolName:    ev.toolName,
			ToolInput:   ev.toolInput,
			ToolOutput:  ev.toolOutput,
			FilePath:    ev.filePath,
			ProjectHash: projectHash,
			SessionID:   ev.sessionID,
			Success:     EventName(ev.eventName) == EventPostToolUse && ev.success,
		})

	case EventSessionEnd, EventStop:
		if err := d.Session.End(ev.sessionID); err != nil {
			d.Log.Error("session end failed", "err", err)
		}

	default:
		d.Log.Warn("unknown hook event", "event", ev.eventName)
	}
}

func parseRawEvent(body []byte) rawEvent {
	var ev rawEvent
	ev.eventName = jsonString(body, "hook_event_name")
	ev.sessionID = jsonString(body, "session_id")
	ev.cwd = jsonString(body, "cwd")
	ev.toolName = jsonString(body, "tool_name")
	ev.filePath = jsonString(body, "tool_input", "file_path")
	ev.projectName = jsonString(body, "project_name")

	if v, _, _, err := jsonparser.Get(body, "tool_input"); err == nil {
		ev.toolInput = compactJSONInput(v)
	}
	if v, _, _, err := jsonparser.Get(body, "tool_response"); err == nil {
		ev.toolOutput = compactJSONInput(v)
	}
	if b, err := jsonparser.GetBoolean(body, "success"); err == nil {
		ev.success = b
	} else {
		ev.success = true
	}
	return ev
}

func jsonString(body []byte, keys ...string) string {
	v, err := jsonparser.GetString(body, keys...)
	if err != nil {
		return ""
	}
	return v
}

// compactJSONInput stringifies a tool_input/tool_response sub-object
// for downstream text processing (admission heuristics, privacy
// redaction, embedding) without needing a typed struct per tool.
func compactJSONInput(raw []byte) string {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return string(raw)
	}
	out, err := json.Marshal(v)
	if err != nil {
		return string(raw)
	}
	return string(out)
}

func appendNotifications(block string, pending []string) string {
	if len(pending) == 0 {
		return block
	}
	out := block + "\n\n## Notifications\n"
	for _, p := range pending {
		out += "- " + p + "\n"
	}
	return out
}
