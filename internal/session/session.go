// Package session implements the lifecycle handlers around a coding
// session: SessionStart (create the session row, assemble and return
// the context block), SessionEnd (close it out with a heuristic
// summary), and Stop (a defensive close for sessions that never get a
// clean SessionEnd).
package session

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/NoobyNull/Laminark-sub004/internal/assembler"
	"github.com/NoobyNull/Laminark-sub004/internal/discovery"
	"github.com/NoobyNull/Laminark-sub004/internal/memory"
	"github.com/NoobyNull/Laminark-sub004/internal/obslog"
)

// Bridge wires the memory store into the session lifecycle handlers,
// named after the dependency-injection pattern the rest of this
// codebase uses to break the import cycle a direct memory<->pipeline
// reference would otherwise create.
type Bridge struct {
	Store *memory.Store
	Log   *obslog.Logger
}

// New constructs a Bridge.
func New(store *memory.Store, log *obslog.Logger) *Bridge {
	return &Bridge{Store: store, Log: log}
}

// Start handles SessionStart: creates the session row, rescans the
// config surfaces discovery understands, and assembles the context
// block to inject as the hook's stdout.
func (b *Bridge) Start(projectHash, sessionID, projectName, cwd string) (string, error) {
	if err := b.Store.CreateSession(sessionID, projectHash); err != nil {
		return "", fmt.Errorf("session: start: %w", err)
	}

	b.scanConfigSurfaces(projectHash, cwd)

	recentSessions, err := b.Store.RecentSessions(projectHash, 2)
	if err != nil {
		b.Log.Warn("recent sessions failed", "err", err)
	}
	var lastSession *memory.Session
	for i := range recentSessions {
		if recentSessions[i].ID != sessionID {
			lastSession = &recentSessions[i]
			break
		}
	}

	tools, err := b.Store.RankedTools(projectHash, 10)
	if err != nil {
		b.Log.Warn("ranked tools failed", "err", err)
	}

	recentObs, err := b.Store.RecentObservations(projectHash, 10)
	if err != nil {
		b.Log.Warn("recent observations failed", "err", err)
	}
	obsResults := make([]memory.SearchResult, len(recentObs))
	for i, o := range recentObs {
		obsResults[i] = memory.SearchResult{Observation: o}
	}

	stashes, err := b.Store.RecentStashes(projectHash, 5)
	if err != nil {
		b.Log.Warn("recent stashes failed", "err", err)
	}

	block := assembler.Assemble(assembler.Input{
		ProjectName:   projectName,
		RecentSession: lastSession,
		Tools:         tools,
		Observations:  obsResults,
		Stashes:       stashes,
	})
	return block, nil
}

// scanConfigSurfaces rescans every config surface discovery understands
// and upserts what it finds into the tool registry. Best-effort: a
// scan failure on one surface (unreadable directory, malformed
// JSON/YAML) is logged and the rest still run, per the "scanning
// continues with whatever succeeded" contract.
func (b *Bridge) scanConfigSurfaces(projectHash, cwd string) {
	if cwd == "" {
		return
	}

	register := func(entries []memory.RegistryEntry, err error) {
		if err != nil {
			b.Log.Warn("config scan failed", "err", err)
			return
		}
		for _, e := range entries {
			if err := b.Store.UpsertRegistryEntry(e); err != nil {
				b.Log.Warn("registry upsert failed", "tool", e.ToolName, "err", err)
			}
		}
	}

	register(discovery.ScanMCPConfig(cwd, projectHash))
	register(discovery.ScanCommands(filepath.Join(cwd, ".claude", "commands"), projectHash))
	register(discovery.ScanPluginManifest(filepath.Join(cwd, ".claude", "plugin.json"), projectHash))

	if skill, err := discovery.ScanSkill(filepath.Join(cwd, "SKILL.md"), projectHash); err != nil {
		b.Log.Warn("skill scan failed", "err", err)
	} else if skill != nil {
		if err := b.Store.UpsertRegistryEntry(*skill); err != nil {
			b.Log.Warn("registry upsert failed", "tool", skill.ToolName, "err", err)
		}
	}

	if home, err := os.UserHomeDir(); err == nil {
		globalEntries, err := discovery.ScanCommands(filepath.Join(home, ".claude", "commands"), projectHash)
		if err != nil {
			b.Log.Warn("global command scan failed", "err", err)
		}
		for i := range globalEntries {
			globalEntries[i].Scope = memory.ScopeGlobal
		}
		register(globalEntries, nil)
	}
}

// End handles SessionEnd: closes the session with a heuristic summary
// derived from what was captured, and runs research-buffer
// housekeeping.
func (b *Bridge) End(sessionID string) error {
	summary, err := b.summarize(sessionID)
	if err != nil {
		b.Log.Warn("summarize failed", "err", err)
	}
	if err := b.Store.EndSession(sessionID, summary); err != nil {
		return fmt.Errorf("session: end: %w", err)
	}
	if err := b.Store.PurgeStaleResearch(30 * time.Minute); err != nil {
		b.Log.Warn("purge stale research failed", "err", err)
	}
	return nil
}

// Stop is the defensive counterpart to End for sessions that terminate
// without a clean SessionEnd event. It is idempotent with End: calling
// both is harmless, since EndSession just overwrites ended_at/summary.
func (b *Bridge) Stop(sessionID string) error {
	return b.End(sessionID)
}

// summarize builds a short heuristic summary from a session's
// observations: counts by kind plus the shift count, in the absence of
// any natural-language generation (out of scope for this layer).
func (b *Bridge) summarize(sessionID string) (string, error) {
	obs, err := b.Store.SessionObservations(sessionID)
	if err != nil {
		return "", err
	}
	if len(obs) == 0 {
		return "", nil
	}

	counts := make(map[string]int)
	for _, o := range obs {
		counts[o.Kind]++
	}

	shifts, err := b.Store.SessionShiftCount(sessionID)
	if err != nil {
		return "", err
	}

	summary := fmt.Sprintf("%d observations captured", len(obs))
	if n := counts["change"]; n > 0 {
		summary += fmt.Sprintf(", %d changes", n)
	}
	if shifts > 0 {
		summary += fmt.Sprintf(", %d topic shifts", shifts)
	}
	return summary, nil
}
