// Laminark: a passive, persistent memory layer for AI coding assistants.
//
// Two entry points live behind this one binary:
//
//	laminark hook <<< '{"hook_event_name":"...", ...}'   # one-shot hook dispatch
//	laminark serve                                        # long-lived MCP server
//
// The "hook" subcommand is invoked once per tool call by the host
// assistant's hook runner; it must always exit 0 regardless of what
// happens inside, since a nonzero exit or a hang would block the tool
// call it is meant to be silently observing. "serve" hosts the
// assistant-facing MCP surface (search, recent context, pending
// notifications) over stdio for as long as the assistant session runs.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mark3labs/mcp-go/server"
	"github.com/mattn/go-isatty"

	"github.com/NoobyNull/Laminark-sub004/internal/hook"
	"github.com/NoobyNull/Laminark-sub004/internal/memory"
	lmserver "github.com/NoobyNull/Laminark-sub004/internal/server"
	"github.com/NoobyNull/Laminark-sub004/internal/updater"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "hook":
		runHook()
	case "serve":
		if err := runServe(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "update":
		runUpdate()
	case "--help", "-h", "help":
		printUsage()
		os.Exit(0)
	case "--version", "-v", "version":
		fmt.Printf("laminark v%s\n", lmserver.Version)
		os.Exit(0)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

// runHook dispatches a single hook event read from stdin. Per the
// contract with the host, this always exits 0 — every failure mode is
// logged to stderr and swallowed inside the dispatcher itself.
func runHook() {
	cfg := memory.DefaultConfig()
	store, err := memory.New(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "laminark: opening store: %v\n", err)
		return
	}
	defer func() { _ = store.Close() }()

	d := hook.New(store)
	d.Dispatch(os.Stdin, os.Stdout)
}

func runServe() error {
	cfg := memory.DefaultConfig()
	s, cleanup, err := lmserver.New(cfg)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	defer cleanup()

	// Background version check — prints to stderr so it doesn't
	// interfere with MCP's stdio transport on stdout.
	go checkForUpdates()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigCh
		cancel()
	}()

	_ = ctx // stdio server manages its own lifecycle

	return server.ServeStdio(s)
}

// checkForUpdates runs a non-blocking version check and prints a notice
// to stderr if an update is available. Best-effort: network failures
// are silently ignored.
func checkForUpdates() {
	result := updater.CheckVersion(lmserver.Version)
	if result.UpdateAvailable {
		fmt.Fprintf(os.Stderr,
			"\n  Update available: v%s -> v%s\n"+
				"     Run: laminark update\n"+
				"     Release: %s\n\n",
			result.CurrentVersion, result.LatestVersion, result.ReleaseURL,
		)
	}
}

// runUpdate performs a self-update to the latest version.
func runUpdate() {
	fmt.Fprintf(os.Stderr, "Checking for updates...\n")

	result := updater.CheckVersion(lmserver.Version)
	if !result.UpdateAvailable {
		fmt.Fprintf(os.Stderr, "Already at the latest version (v%s)\n", result.CurrentVersion)
		return
	}

	fmt.Fprintf(os.Stderr, "New version available: v%s -> v%s\n", result.CurrentVersion, result.LatestVersion)
	fmt.Fprintf(os.Stderr, "Downloading...\n")

	if err := updater.SelfUpdate(lmserver.Version); err != nil {
		fmt.Fprintf(os.Stderr, "Update failed: %v\n", err)
		fmt.Fprintf(os.Stderr, "\n   You can download manually from:\n   %s\n", result.ReleaseURL)
		os.Exit(1)
	}

	fmt.Fprintf(os.Stderr, "Updated to v%s!\n", result.LatestVersion)
	fmt.Fprintf(os.Stderr, "   Restart laminark to use the new version.\n")
}

// printUsage writes the usage banner to stderr. It skips the
// configuration example when stderr isn't a terminal, since that
// block is for a human reading the output, not for log scraping.
func printUsage() {
	fmt.Fprintf(os.Stderr, `Laminark v%s — passive memory layer for AI coding assistants

Usage:
  laminark hook     Dispatch one hook event read from stdin
  laminark serve    Start the MCP server (stdio transport)
  laminark update   Update to the latest version
`, lmserver.Version)

	if !isatty.IsTerminal(os.Stderr.Fd()) {
		return
	}

	fmt.Fprintf(os.Stderr, `
Configuration:
  Add to your AI tool's MCP config:

  {
    "mcpServers": {
      "laminark": {
        "command": "laminark",
        "args": ["serve"]
      }
    }
  }

  And wire "laminark hook" into PreToolUse/PostToolUse/SessionStart/
  SessionEnd hooks so observations are captured automatically.
`)
}
