// Package pipeline orchestrates the PostToolUse control flow: the
// sequence of filters and stores a single tool invocation passes
// through between being observed on the wire and (maybe) landing as a
// persisted observation. Every step here is expected to run well under
// the hook's latency budget, so the pipeline never blocks on anything
// beyond local SQLite I/O and the configured Embedder.
package pipeline

import (
	"fmt"
	"strings"
	"time"

	"github.com/NoobyNull/Laminark-sub004/internal/admission"
	"github.com/NoobyNull/Laminark-sub004/internal/embedding"
	"github.com/NoobyNull/Laminark-sub004/internal/guard"
	"github.com/NoobyNull/Laminark-sub004/internal/memory"
	"github.com/NoobyNull/Laminark-sub004/internal/obslog"
	"github.com/NoobyNull/Laminark-sub004/internal/privacy"
	"github.com/NoobyNull/Laminark-sub004/internal/router"
	"github.com/NoobyNull/Laminark-sub004/internal/selfref"
	"github.com/NoobyNull/Laminark-sub004/internal/toolname"
	"github.com/NoobyNull/Laminark-sub004/internal/topicshift"
)

// explorationTools are attached to the research buffer rather than
// captured as their own observation: their value is as context for a
// later write, not as a finding in their own right.
var explorationTools = map[string]bool{"Read": true, "Glob": true, "Grep": true}

// writeTools are the ones whose content actually gets research-buffer
// entries attached as a footer when they're captured.
var writeTools = map[string]bool{"Write": true, "Edit": true, "NotebookEdit": true}

// recentWindow bounds how many recent observations the save guard
// compares a new one against.
const recentWindow = 20

// Pipeline holds the dependencies every PostToolUse invocation needs.
type Pipeline struct {
	Store       *memory.Store
	Embedder    embedding.Embedder
	Log         *obslog.Logger
	Guard       guard.Config
	ResearchTTL time.Duration
}

// Event is the subset of a PostToolUse hook payload the pipeline acts
// on, already decoded by internal/hook.
type Event struct {
	ToolName    string
	ToolInput   string
	ToolOutput  string
	FilePath    string
	ProjectHash string
	SessionID   string
	Success     bool
}

// Outcome reports what the pipeline actually did, for diagnostics and
// for internal/hook to decide whether anything needs to be written to
// stdout (PostToolUse never does, but the pipeline is shared plumbing
// that other callers may inspect).
type Outcome struct {
	Observed     bool
	SkipReason   string
	ObservationID int64
	Shifted      bool
	Suggestion   *router.Suggestion
}

// Process runs one tool invocation through the full PostToolUse flow:
// classification, self-reference exclusion, admission, privacy
// redaction, duplicate detection, persistence, tool-usage accounting,
// topic-shift scoring, and conversation routing.
func (p *Pipeline) Process(ev Event) Outcome {
	if selfref.IsSelf(ev.ToolName) {
		return Outcome{SkipReason: "self-reference"}
	}

	if err := p.Store.RecordToolUsage(ev.ToolName, ev.ProjectHash, ev.SessionID, ev.Success); err != nil {
		p.Log.Warn("record tool usage failed", "err", err)
	}
	if err := p.Store.RecordToolInvocation(ev.ToolName, ev.ProjectHash, ev.Success); err != nil {
		p.Log.Warn("record tool invocation failed", "err", err)
	}
	p.checkDemotion(ev)

	if err := p.Store.BumpToolCallCount(ev.ProjectHash, ev.SessionID); err != nil {
		p.Log.Warn("bump tool call count failed", "err", err)
	}
	p.evaluateRouting(ev)

	if ev.FilePath != "" && privacy.IsExcludedPath(ev.FilePath) {
		return Outcome{SkipReason: "excluded path"}
	}

	if explorationTools[ev.ToolName] {
		target := ev.FilePath
		if target == "" {
			target = ev.ToolInput
		}
		if err := p.Store.PushResearch(ev.SessionID, ev.ToolName, target); err != nil {
			p.Log.Warn("push research failed", "err", err)
		}
		return Outcome{SkipReason: "exploration tool buffered"}
	}

	content := contentFor(ev)
	decision := admission.Evaluate(ev.ToolName, content)
	if !decision.Admit {
		return Outcome{SkipReason: decision.Reason}
	}
	content = privacy.Redact(content)

	if writeTools[ev.ToolName] {
		if research, err := p.Store.DrainResearch(ev.SessionID, p.ResearchTTL); err == nil && len(research) > 0 {
			content = appendResearchFooter(content, research)
		} else if err != nil {
			p.Log.Warn("drain research failed", "err", err)
		}
	}

	var vec []float32
	if p.Embedder != nil {
		v, err := p.Embedder.Embed(content)
		if err != nil {
			p.Log.Warn("embed failed", "err", err)
		} else {
			vec = v
		}
	}

	if dup := p.checkDuplicate(ev.ProjectHash, content, vec); dup {
		return Outcome{SkipReason: "duplicate"}
	}

	id, err := p.Store.AddObservation(memory.AddObservationParams{
		ProjectHash: ev.ProjectHash,
		SessionID:   ev.SessionID,
		Content:     content,
		Kind:        classifyKind(ev.ToolName),
		Source:      ev.ToolName,
		Embedding:   vec,
	})
	if err != nil {
		p.Log.Error("add observation failed", "err", err)
		return Outcome{SkipReason: "store error"}
	}

	shifted := p.scoreTopicShift(ev, vec, id)

	return Outcome{Observed: true, ObservationID: id, Shifted: shifted}
}

func (p *Pipeline) checkDemotion(ev Event) {
	failures, err := p.Store.RecentFailureCount(ev.ToolName, ev.ProjectHash, 5)
	if err != nil {
		p.Log.Warn("recent failure count failed", "err", err)
		return
	}
	if failures >= 3 {
		if err := p.Store.Demote(ev.ToolName, ev.ProjectHash); err != nil {
			p.Log.Warn("demote failed", "err", err)
			return
		}
		if err := p.Store.QueueNotification(ev.ProjectHash, ev.ToolName+" has failed repeatedly and was demoted"); err != nil {
			p.Log.Warn("queue demotion notification failed", "err", err)
		}
	}
}

func (p *Pipeline) evaluateRouting(ev Event) {
	events, err := p.Store.SessionToolSequence(ev.SessionID, router.WindowSize+1)
	if err != nil {
		p.Log.Warn("session tool sequence failed", "err", err)
		return
	}
	if len(events) < 2 {
		return
	}

	window := make([]string, 0, router.WindowSize)
	for _, e := range events[:len(events)-1] {
		window = append(window, e.ToolName)
	}
	target := events[len(events)-1].ToolName
	if err := p.Store.RecordRoutingPattern(ev.ProjectHash, ev.SessionID, target, window); err != nil {
		p.Log.Warn("record routing pattern failed", "err", err)
	}

	patterns, err := p.Store.LearnedPatterns(ev.ProjectHash, router.MaxEventsForLearned)
	if err != nil {
		p.Log.Warn("learned patterns failed", "err", err)
		return
	}
	model := router.BuildModel(patterns)

	state, err := p.Store.GetRoutingState(ev.ProjectHash, ev.SessionID)
	if err != nil {
		p.Log.Warn("get routing state failed", "err", err)
		return
	}

	if s, ok := router.Evaluate(model, window, len(events), state); ok {
		if err := p.Store.RecordSuggestion(ev.ProjectHash, ev.SessionID); err != nil {
			p.Log.Warn("record suggestion failed", "err", err)
			return
		}
		if err := p.Store.QueueNotification(ev.ProjectHash, s.TargetTool+": "+s.Reason); err != nil {
			p.Log.Warn("queue suggestion notification failed", "err", err)
		}
	}
}

func (p *Pipeline) checkDuplicate(projectHash, content string, vec []float32) bool {
	recent, err := p.Store.RecentObservations(projectHash, recentWindow)
	if err != nil {
		p.Log.Warn("recent observations failed", "err", err)
		return false
	}
	candidates := make([]guard.Candidate, len(recent))
	for i, o := range recent {
		candidates[i] = guard.Candidate{ID: o.ID, Content: o.Content, Embedding: o.Embedding}
	}
	return guard.Check(p.Guard, content, vec, candidates).Duplicate
}

func (p *Pipeline) scoreTopicShift(ev Event, vec []float32, observationID int64) bool {
	if len(vec) == 0 {
		return false
	}
	state, err := p.Store.GetTopicState(ev.ProjectHash, ev.SessionID)
	if err != nil {
		p.Log.Warn("get topic state failed", "err", err)
		return false
	}

	decision, next := topicshift.Score(state, vec, nil)
	if err := p.Store.SaveTopicState(next); err != nil {
		p.Log.Warn("save topic state failed", "err", err)
	}

	var stashID string
	if decision.Shifted {
		preceding, err := p.Store.SessionObservationsBefore(ev.SessionID, observationID, recentWindow)
		if err != nil {
			p.Log.Warn("session observations before failed", "err", err)
		} else if len(preceding) > 0 {
			obsSnapshot := make([]memory.StashObservation, 0, len(preceding))
			for i, o := range preceding {
				obsSnapshot = append(obsSnapshot, memory.StashObservation{
					Seq: i, ObservationID: o.ID, Content: o.Content, Source: o.Source, CreatedAt: o.CreatedAt,
				})
			}
			label := stashLabel(preceding)
			summary := stashSummary(preceding)
			id, err := p.Store.CreateStash(ev.ProjectHash, ev.SessionID, label, summary, obsSnapshot)
			if err != nil {
				p.Log.Warn("create stash failed", "err", err)
			} else {
				stashID = id
				notice := fmt.Sprintf("Topic shift detected. Previous context stashed: %q. Use the stash %s to return.", label, id)
				if err := p.Store.QueueNotification(ev.ProjectHash, notice); err != nil {
					p.Log.Warn("queue shift notification failed", "err", err)
				}
			}
		}
	}

	if _, err := p.Store.LogShiftDecision(memory.ShiftDecision{
		ProjectHash: ev.ProjectHash, SessionID: ev.SessionID, ObservationID: observationID,
		Distance: decision.Distance, Threshold: decision.Threshold,
		EWMAMean: decision.EWMAMean, EWMAVariance: decision.EWMAVariance,
		Shifted: decision.Shifted, Confidence: decision.Confidence, StashID: stashID,
	}); err != nil {
		p.Log.Warn("log shift decision failed", "err", err)
	}

	return decision.Shifted
}

// stashLabel derives a topic label from the oldest-first observation
// snapshot: the first non-empty title, else the first 80 characters of
// the oldest observation's content.
func stashLabel(obs []memory.Observation) string {
	for _, o := range obs {
		if o.Title != "" {
			return o.Title
		}
	}
	return memory.Truncate(obs[0].Content, 80)
}

// stashSummary derives a stash summary from the oldest three
// observations' content, joined and truncated to 200 characters.
func stashSummary(obs []memory.Observation) string {
	n := len(obs)
	if n > 3 {
		n = 3
	}
	parts := make([]string, n)
	for i := 0; i < n; i++ {
		parts[i] = obs[i].Content
	}
	return memory.Truncate(strings.Join(parts, " | "), 200)
}

func contentFor(ev Event) string {
	if ev.ToolOutput != "" {
		return ev.ToolOutput
	}
	return ev.ToolInput
}

func classifyKind(toolNameStr string) string {
	if toolNameStr == "Edit" || toolNameStr == "Write" || toolNameStr == "NotebookEdit" {
		return "change"
	}
	cls := toolname.Classify(toolNameStr)
	if cls.Kind == toolname.KindMCP || cls.Kind == toolname.KindPlugin {
		return "mcp_call"
	}
	return "finding"
}

func appendResearchFooter(content string, research []memory.ResearchEntry) string {
	var b strings.Builder
	b.WriteString(content)
	b.WriteString("\n\n---\nRead before this change:\n")
	for _, r := range research {
		b.WriteString("- " + r.ToolName + ": " + r.Target + "\n")
	}
	return b.String()
}
