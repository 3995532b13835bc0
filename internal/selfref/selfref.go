// Package selfref filters out Laminark's own MCP tool calls from the
// observation pipeline so the memory layer never observes itself.
// Without this, a recent_context lookup would itself become an
// observation, and the next lookup would surface it, compounding noise
// every session.
package selfref

import "strings"

var selfPrefixes = []string{
	"mcp__laminark__",
	"mcp__plugin_laminark_laminark__",
}

// IsSelf reports whether a tool name belongs to Laminark's own MCP
// surface and should be excluded from capture entirely, before the
// admission filter or privacy filter ever see it.
func IsSelf(toolName string) bool {
	for _, p := range selfPrefixes {
		if strings.HasPrefix(toolName, p) {
			return true
		}
	}
	return false
}
