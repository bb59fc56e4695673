// riskctl is the operator-facing entry point for the risk-control
// engine (C11, ambient tooling — not part of the engine's own
// correctness contract).
//
// Architecture:
//
//	cmd/riskctl/main.go      — entry point: cobra root command
//	cmd/riskctl/commands.go  — run/repl subcommands, engine construction
//	cmd/riskctl/repl.go      — chzyer/readline REPL for manual testing
//	internal/engine          — the synchronous risk-control core (C9)
//	internal/ingest          — batch-drain REST adapter (C11)
//	internal/ingest/wsingest — WebSocket feed adapter (C11)
//	internal/sink/httpsink   — webhook action-sink adapter
//	internal/store           — file-backed snapshot persistence
//	internal/store/sqlitestore — SQLite-backed snapshot persistence
//	internal/api             — read-only HTTP/WebSocket inspection API
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
