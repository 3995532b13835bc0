// Package discovery scans the filesystem surfaces a host assistant
// exposes tools and commands through, and turns what it finds into
// memory.RegistryEntry rows: the host's own config, a project's
// .mcp.json, slash-command markdown files with YAML front matter, and
// plugin manifests.
package discovery

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/NoobyNull/Laminark-sub004/internal/memory"
)

// mcpConfig mirrors the subset of .mcp.json this package reads: a map
// of server name to its declared command, just enough to register each
// server's presence. Tool names under a server aren't enumerable from
// static config — those are only known once the host actually connects
// and lists them, so discovery registers the server itself and lets
// RecordToolInvocation create per-tool rows lazily on first use.
type mcpConfig struct {
	MCPServers map[string]struct {
		Command string   `json:"command"`
		Args    []string `json:"args"`
	} `json:"mcpServers"`
}

// ScanMCPConfig reads a project's .mcp.json, if present, and returns one
// registry entry per declared server.
func ScanMCPConfig(projectDir, projectHash string) ([]memory.RegistryEntry, error) {
	path := filepath.Join(projectDir, ".mcp.json")
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var cfg mcpConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	entries := make([]memory.RegistryEntry, 0, len(cfg.MCPServers))
	for name := range cfg.MCPServers {
		entries = append(entries, memory.RegistryEntry{
			ToolName:    "mcp__" + name,
			ProjectHash: projectHash,
			Type:        "mcp_server",
			Scope:       memory.ScopeProject,
			Source:      path,
			ServerName:  name,
		})
	}
	return entries, nil
}

// commandFrontMatter is the YAML front matter a slash-command markdown
// file carries ahead of its body: name/description plus optional
// trigger hint keywords the router can use for Tier B matching.
type commandFrontMatter struct {
	Description  string   `yaml:"description"`
	TriggerHints []string `yaml:"trigger-hints"`
}

// ScanCommands reads every *.md file under a commands directory,
// parsing leading "---"-delimited YAML front matter, and returns one
// registry entry per command found. Files without front matter are
// still registered with an empty description rather than skipped.
func ScanCommands(commandsDir, projectHash string) ([]memory.RegistryEntry, error) {
	entries, err := os.ReadDir(commandsDir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var out []memory.RegistryEntry
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".md") {
			continue
		}
		path := filepath.Join(commandsDir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		fm, _ := parseFrontMatter(data)
		name := "/" + strings.TrimSuffix(e.Name(), ".md")
		out = append(out, memory.RegistryEntry{
			ToolName:     name,
			ProjectHash:  projectHash,
			Type:         "slash_command",
			Scope:        memory.ScopeProject,
			Source:       path,
			Description:  fm.Description,
			TriggerHints: strings.Join(fm.TriggerHints, ","),
		})
	}
	return out, nil
}

// parseFrontMatter splits a "---\n...\n---\n" YAML block from the top
// of a markdown file and unmarshals it. A file with no front matter
// returns the zero value without error.
func parseFrontMatter(data []byte) (commandFrontMatter, error) {
	var fm commandFrontMatter
	text := string(data)
	if !strings.HasPrefix(text, "---") {
		return fm, nil
	}
	rest := strings.TrimPrefix(text, "---")
	idx := strings.Index(rest, "---")
	if idx < 0 {
		return fm, nil
	}
	block := rest[:idx]
	if err := yaml.Unmarshal([]byte(block), &fm); err != nil {
		return fm, err
	}
	return fm, nil
}

// skillManifest mirrors the handful of fields SKILL.md front matter
// carries that discovery cares about.
type skillManifest struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

// ScanSkill reads a single SKILL.md file and returns a registry entry
// for it, or nil if the file doesn't exist.
func ScanSkill(path, projectHash string) (*memory.RegistryEntry, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	fm, err := parseSkillFrontMatter(data)
	if err != nil {
		return nil, err
	}
	name := fm.Name
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(filepath.Dir(path)), string(filepath.Separator))
	}
	return &memory.RegistryEntry{
		ToolName:    "skill:" + name,
		ProjectHash: projectHash,
		Type:        "skill",
		Scope:       memory.ScopeProject,
		Source:      path,
		Description: fm.Description,
	}, nil
}

func parseSkillFrontMatter(data []byte) (skillManifest, error) {
	var fm skillManifest
	text := string(data)
	if !strings.HasPrefix(text, "---") {
		return fm, nil
	}
	rest := strings.TrimPrefix(text, "---")
	idx := strings.Index(rest, "---")
	if idx < 0 {
		return fm, nil
	}
	if err := yaml.Unmarshal([]byte(rest[:idx]), &fm); err != nil {
		return fm, err
	}
	return fm, nil
}

// pluginManifest mirrors a plugin.json manifest's tool-relevant fields.
type pluginManifest struct {
	Name    string `json:"name"`
	Servers []struct {
		Name string `json:"name"`
	} `json:"mcpServers"`
}

// ScanPluginManifest reads a plugin.json and returns one registry entry
// per MCP server the plugin declares, scoped plugin rather than
// project or global.
func ScanPluginManifest(path, projectHash string) ([]memory.RegistryEntry, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var m pluginManifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}

	out := make([]memory.RegistryEntry, 0, len(m.Servers))
	for _, srv := range m.Servers {
		out = append(out, memory.RegistryEntry{
			ToolName:    "mcp__plugin_" + m.Name + "_" + srv.Name,
			ProjectHash: projectHash,
			Type:        "plugin_mcp_server",
			Scope:       memory.ScopePlugin,
			Source:      path,
			ServerName:  srv.Name,
		})
	}
	return out, nil
}
