// Package server hosts Laminark's deliberately thin assistant-facing
// MCP surface. The engine's real work happens inside the hook
// dispatcher (internal/hook), not here: this surface exists only for
// the handful of queries an assistant might want to make on demand —
// searching captured observations and checking what notifications are
// pending — rather than as a general tool-management API.
package server

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/NoobyNull/Laminark-sub004/internal/memory"
	"github.com/NoobyNull/Laminark-sub004/internal/notify"
)

const serverName = "laminark"

// Version is set at build time via ldflags.
var Version = "dev"

// New constructs the MCP server and returns it along with a cleanup
// function. The store is opened once here and shared by every tool
// call the server handles for the lifetime of the serve process.
func New(cfg memory.Config) (*server.MCPServer, func(), error) {
	store, err := memory.New(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("server: open store: %w", err)
	}

	s := server.NewMCPServer(serverName, Version,
		server.WithToolCapabilities(true),
		server.WithInstructions(serverInstructions),
	)

	bus := notify.New(store)

	s.AddTool(searchTool(), searchHandler(store))
	s.AddTool(recentContextTool(), recentContextHandler(store))
	s.AddTool(pendingNotificationsTool(), pendingNotificationsHandler(bus))

	cleanup := func() { _ = store.Close() }
	return s, cleanup, nil
}

const serverInstructions = `Laminark is a passive memory layer. You do not need to call these
tools to benefit from it: observations are captured automatically via
hooks, and relevant context is injected at session start and before
tool calls. Use mem_search when you need to look something up that
wasn't surfaced automatically. Use mem_recent_context for a recency-
ordered view instead of a relevance-ordered one. Use
mem_pending_notifications only if you suspect a notification (e.g. a
tool being demoted) was missed.`

func searchTool() mcp.Tool {
	return mcp.NewTool("mem_search",
		mcp.WithDescription("Full-text search over observations captured for this project."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query")),
		mcp.WithString("project_hash", mcp.Required(), mcp.Description("Project identifier")),
	)
}

func searchHandler(store *memory.Store) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query := req.GetString("query", "")
		projectHash := req.GetString("project_hash", "")
		if query == "" || projectHash == "" {
			return mcp.NewToolResultError("'query' and 'project_hash' are required"), nil
		}

		results, err := store.Search(projectHash, query, 10)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
		}
		return mcp.NewToolResultText(formatResults(results)), nil
	}
}

func recentContextTool() mcp.Tool {
	return mcp.NewTool("mem_recent_context",
		mcp.WithDescription("Most recent observations captured for this project, newest first."),
		mcp.WithString("project_hash", mcp.Required(), mcp.Description("Project identifier")),
	)
}

func recentContextHandler(store *memory.Store) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		projectHash := req.GetString("project_hash", "")
		if projectHash == "" {
			return mcp.NewToolResultError("'project_hash' is required"), nil
		}

		obs, err := store.RecentObservations(projectHash, 10)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("recent context failed: %v", err)), nil
		}
		results := make([]memory.SearchResult, len(obs))
		for i, o := range obs {
			results[i] = memory.SearchResult{Observation: o}
		}
		return mcp.NewToolResultText(formatResults(results)), nil
	}
}

func pendingNotificationsTool() mcp.Tool {
	return mcp.NewTool("mem_pending_notifications",
		mcp.WithDescription("Drain and return any queued notifications for this project."),
		mcp.WithString("project_hash", mcp.Required(), mcp.Description("Project identifier")),
	)
}

func pendingNotificationsHandler(bus *notify.Bus) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		projectHash := req.GetString("project_hash", "")
		if projectHash == "" {
			return mcp.NewToolResultError("'project_hash' is required"), nil
		}

		pending, err := bus.Drain(projectHash)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("drain failed: %v", err)), nil
		}
		if len(pending) == 0 {
			return mcp.NewToolResultText("no pending notifications"), nil
		}
		text := ""
		for _, p := range pending {
			text += "- " + p + "\n"
		}
		return mcp.NewToolResultText(text), nil
	}
}

func formatResults(results []memory.SearchResult) string {
	if len(results) == 0 {
		return "no matching observations"
	}
	out := ""
	for _, r := range results {
		title := r.Title
		if title == "" {
			title = memory.Truncate(r.Content, 100)
		}
		out += fmt.Sprintf("[%s] %s\n", r.CreatedAt, title)
	}
	return out
}
