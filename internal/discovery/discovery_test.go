package discovery

import (
	"os"
	"path/filepath"
	"testing"
)

func TestScanMCPConfig(t *testing.T) {
	dir := t.TempDir()
	content := `{"mcpServers": {"github": {"command": "npx", "args": ["-y", "github-mcp"]}}}`
	if err := os.WriteFile(filepath.Join(dir, ".mcp.json"), []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	entries, err := ScanMCPConfig(dir, "deadbeef")
	if err != nil {
		t.Fatalf("ScanMCPConfig: %v", err)
	}
	if len(entries) != 1 || entries[0].ServerName != "github" {
		t.Fatalf("got %+v", entries)
	}
}

func TestScanMCPConfigMissingFile(t *testing.T) {
	entries, err := ScanMCPConfig(t.TempDir(), "deadbeef")
	if err != nil || entries != nil {
		t.Fatalf("expected nil, nil for missing file, got %+v, %v", entries, err)
	}
}

func TestScanCommands(t *testing.T) {
	dir := t.TempDir()
	content := "---\ndescription: runs the release flow\ntrigger-hints: [release, ship]\n---\n\nBody text.\n"
	if err := os.WriteFile(filepath.Join(dir, "release.md"), []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	entries, err := ScanCommands(dir, "deadbeef")
	if err != nil {
		t.Fatalf("ScanCommands: %v", err)
	}
	if len(entries) != 1 || entries[0].ToolName != "/release" {
		t.Fatalf("got %+v", entries)
	}
	if entries[0].Description != "runs the release flow" {
		t.Fatalf("expected front matter parsed, got %+v", entries[0])
	}
}

func TestScanSkill(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "SKILL.md")
	content := "---\nname: deploy\ndescription: deploys the service\n---\n\nBody.\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	entry, err := ScanSkill(path, "deadbeef")
	if err != nil {
		t.Fatalf("ScanSkill: %v", err)
	}
	if entry == nil || entry.ToolName != "skill:deploy" {
		t.Fatalf("got %+v", entry)
	}
}

func TestScanPluginManifest(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "plugin.json")
	content := `{"name": "acme", "mcpServers": [{"name": "search"}]}`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	entries, err := ScanPluginManifest(path, "deadbeef")
	if err != nil {
		t.Fatalf("ScanPluginManifest: %v", err)
	}
	if len(entries) != 1 || entries[0].ToolName != "mcp__plugin_acme_search" {
		t.Fatalf("got %+v", entries)
	}
}
