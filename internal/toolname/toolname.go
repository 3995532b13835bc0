// Package toolname classifies a tool invocation's name into the shape
// that determines how the rest of the pipeline treats it: a builtin
// single-letter-prefixed tool, an MCP server tool, a plugin-hosted MCP
// tool, or a slash command.
package toolname

import "strings"

// Kind is the classification of a tool name.
type Kind string

const (
	KindBuiltin Kind = "builtin"
	KindMCP     Kind = "mcp"
	KindPlugin  Kind = "plugin_mcp"
	KindSlash   Kind = "slash_command"
	KindUnknown Kind = "unknown"
)

// Classification is the result of classifying a tool name, with the
// server/plugin name extracted when the shape carries one.
type Classification struct {
	Kind       Kind
	ServerName string
	PluginName string
	ShortName  string
}

// Classify inspects a raw tool name and returns its shape. It is a pure
// function: no I/O, no state, safe to call on every tool invocation
// without budget concerns.
func Classify(name string) Classification {
	switch {
	case strings.HasPrefix(name, "mcp__plugin_"):
		return classifyPluginMCP(name)
	case strings.HasPrefix(name, "mcp__"):
		return classifyMCP(name)
	case strings.HasPrefix(name, "/"):
		return Classification{Kind: KindSlash, ShortName: strings.TrimPrefix(name, "/")}
	case isBuiltin(name):
		return Classification{Kind: KindBuiltin, ShortName: name}
	default:
		return Classification{Kind: KindUnknown, ShortName: name}
	}
}

// classifyMCP parses "mcp__<server>__<name>".
func classifyMCP(name string) Classification {
	rest := strings.TrimPrefix(name, "mcp__")
	parts := strings.SplitN(rest, "__", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return Classification{Kind: KindUnknown, ShortName: name}
	}
	return Classification{Kind: KindMCP, ServerName: parts[0], ShortName: parts[1]}
}

// classifyPluginMCP parses "mcp__plugin_<plugin>_<server>__<name>".
func classifyPluginMCP(name string) Classification {
	rest := strings.TrimPrefix(name, "mcp__plugin_")
	tailSplit := strings.SplitN(rest, "__", 2)
	if len(tailSplit) != 2 || tailSplit[0] == "" || tailSplit[1] == "" {
		return Classification{Kind: KindUnknown, ShortName: name}
	}
	head, shortName := tailSplit[0], tailSplit[1]

	idx := strings.LastIndex(head, "_")
	if idx <= 0 || idx == len(head)-1 {
		return Classification{Kind: KindUnknown, ShortName: name}
	}
	plugin, server := head[:idx], head[idx+1:]
	return Classification{Kind: KindPlugin, PluginName: plugin, ServerName: server, ShortName: shortName}
}

// builtinNames are the single-uppercase-letter-prefixed tools the host
// assistant ships natively (Read, Write, Edit, Bash, Glob, Grep, Task,
// WebFetch, and the rest of that family). Anything not in this set and
// not shaped like mcp__/plugin/slash falls through to KindUnknown rather
// than guessing.
var builtinNames = map[string]bool{
	"Read": true, "Write": true, "Edit": true, "Bash": true,
	"Glob": true, "Grep": true, "Task": true, "WebFetch": true,
	"WebSearch": true, "NotebookEdit": true, "TodoWrite": true,
	"BashOutput": true, "KillShell": true,
}

func isBuiltin(name string) bool {
	return builtinNames[name]
}
