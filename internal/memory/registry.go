package memory

import (
	"database/sql"
	"fmt"
)

// Scope describes where a tool was discovered from, which governs how
// it's presented and how it competes with same-named tools from other
// scopes. Project-scoped entries shadow global ones with the same name.
type Scope string

const (
	ScopeGlobal  Scope = "global"
	ScopeProject Scope = "project"
	ScopePlugin  Scope = "plugin"
)

// RegistryStatus tracks a tool's health as observed through usage
// outcomes, independent of whether it's still present in the host's
// configuration.
type RegistryStatus string

const (
	StatusActive   RegistryStatus = "active"
	StatusDemoted  RegistryStatus = "demoted"
	StatusStale    RegistryStatus = "stale"
)

// RegistryEntry is one row of the cross-project tool registry.
type RegistryEntry struct {
	ToolName      string
	ProjectHash   string
	Type          string
	Scope         Scope
	Source        string
	Description   string
	ServerName    string
	TriggerHints  string
	UsageCount    int
	LastUsedAt    string
	DiscoveredAt  string
	Status        RegistryStatus
}

// UpsertRegistryEntry records or refreshes a discovered tool. Discovery
// (internal/discovery) calls this once per scan; it never clears
// UsageCount or Status so a rescan doesn't erase demotion history.
func (s *Store) UpsertRegistryEntry(e RegistryEntry) error {
	if e.Scope == "" {
		e.Scope = ScopeGlobal
	}
	_, err := s.db.Exec(
		`INSERT INTO tool_registry
		   (tool_name, project_hash, type, scope, source, description, server_name, trigger_hints, discovered_at, status)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 'active')
		 ON CONFLICT(tool_name, project_hash) DO UPDATE SET
		   type = excluded.type,
		   scope = excluded.scope,
		   source = excluded.source,
		   description = excluded.description,
		   server_name = excluded.server_name,
		   trigger_hints = excluded.trigger_hints,
		   status = CASE WHEN tool_registry.status = 'stale' THEN 'active' ELSE tool_registry.status END`,
		e.ToolName, e.ProjectHash, e.Type, string(e.Scope), e.Source,
		nullableString(e.Description), nullableString(e.ServerName), nullableString(e.TriggerHints), Now(),
	)
	if err != nil {
		return fmt.Errorf("memory: upsert registry entry: %w", err)
	}
	return nil
}

// RecordToolInvocation bumps a registry entry's usage counter and, if
// it had been demoted, restores it to active on a single success. A
// tool that was never discovered (e.g. a transient MCP tool not picked
// up by a scan) gets an implicit registry row so it still accrues
// usage history.
func (s *Store) RecordToolInvocation(toolName, projectHash string, success bool) error {
	_, err := s.db.Exec(
		`INSERT INTO tool_registry (tool_name, project_hash, usage_count, last_used_at, discovered_at, status)
		 VALUES (?, ?, 1, ?, ?, 'active')
		 ON CONFLICT(tool_name, project_hash) DO UPDATE SET
		   usage_count = tool_registry.usage_count + 1,
		   last_used_at = excluded.last_used_at,
		   status = CASE WHEN ? THEN 'active' ELSE tool_registry.status END`,
		toolName, projectHash, Now(), Now(), success,
	)
	if err != nil {
		return fmt.Errorf("memory: record tool invocation: %w", err)
	}
	return nil
}

// Demote marks a tool demoted after the registry/usage layer has
// observed 3+ failures in its last 5 invocations. The caller
// (internal/pipeline) is responsible for running that check via
// RecentFailureCount before calling Demote.
func (s *Store) Demote(toolName, projectHash string) error {
	_, err := s.db.Exec(
		`UPDATE tool_registry SET status = 'demoted' WHERE tool_name = ? AND project_hash = ?`,
		toolName, projectHash,
	)
	if err != nil {
		return fmt.Errorf("memory: demote: %w", err)
	}
	return nil
}

// MarkStale flags registry entries from a given source that a fresh
// discovery scan no longer found, without deleting their usage history.
func (s *Store) MarkStale(projectHash, source string, stillPresent []string) error {
	placeholders := make([]any, 0, len(stillPresent)+2)
	placeholders = append(placeholders, projectHash, source)
	query := `UPDATE tool_registry SET status = 'stale'
	          WHERE project_hash = ? AND source = ? AND status != 'stale'`
	if len(stillPresent) > 0 {
		query += ` AND tool_name NOT IN (` + placeholdersFor(len(stillPresent)) + `)`
		for _, name := range stillPresent {
			placeholders = append(placeholders, name)
		}
	}
	if _, err := s.db.Exec(query, placeholders...); err != nil {
		return fmt.Errorf("memory: mark stale: %w", err)
	}
	return nil
}

func placeholdersFor(n int) string {
	out := make([]byte, 0, n*2)
	for i := 0; i < n; i++ {
		if i > 0 {
			out = append(out, ',')
		}
		out = append(out, '?')
	}
	return string(out)
}

// RankedTools returns active registry entries for a project ordered by
// usage count, falling back to global-scope entries. Project-scoped
// entries shadow global ones sharing the same tool_name.
func (s *Store) RankedTools(projectHash string, limit int) ([]RegistryEntry, error) {
	rows, err := s.db.Query(
		`SELECT tool_name, project_hash, type, scope, source, description, server_name,
		        trigger_hints, usage_count, last_used_at, discovered_at, status
		 FROM tool_registry
		 WHERE status = 'active' AND (project_hash = ? OR project_hash = '')
		 ORDER BY usage_count DESC LIMIT ?`,
		projectHash, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("memory: ranked tools: %w", err)
	}
	defer rows.Close()

	seen := make(map[string]bool)
	var out []RegistryEntry
	for rows.Next() {
		var e RegistryEntry
		var scope, description, serverName, triggerHints, lastUsed sql.NullString
		if err := rows.Scan(
			&e.ToolName, &e.ProjectHash, &e.Type, &scope, &e.Source, &description,
			&serverName, &triggerHints, &e.UsageCount, &lastUsed, &e.DiscoveredAt, &e.Status,
		); err != nil {
			return nil, fmt.Errorf("memory: ranked tools scan: %w", err)
		}
		if seen[e.ToolName] {
			continue // project-scoped row already shadowed a global one
		}
		seen[e.ToolName] = true
		e.Scope = Scope(scope.String)
		e.Description = derefString(description)
		e.ServerName = derefString(serverName)
		e.TriggerHints = derefString(triggerHints)
		e.LastUsedAt = derefString(lastUsed)
		out = append(out, e)
	}
	return out, rows.Err()
}
