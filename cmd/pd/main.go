// Command pd is the protodrill CLI — a process-local harness for two
// classical coordination protocols: one-round Byzantine command
// agreement and Lamport total-order mutual exclusion.
package main

import (
	"fmt"
	"os"
)

const version = "1.0.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "--help", "-h", "help":
		printUsage()
		return
	case "--version", "-v", "version":
		fmt.Println("pd", version)
		return
	}

	a, err := newApp()
	if err != nil {
		fatal("%v", err)
	}
	defer a.Close()

	switch os.Args[1] {
	// Scenarios
	case "byzantine", "byz":
		os.Exit(a.cmdByzantine(os.Args[2:]))
	case "lamport", "mutex":
		os.Exit(a.cmdLamport(os.Args[2:]))

	// History
	case "runs":
		os.Exit(a.cmdRuns(os.Args[2:]))
	case "log":
		os.Exit(a.cmdLog(os.Args[2:]))

	default:
		fmt.Fprintf(os.Stderr, "pd: unknown command %q\n", os.Args[1])
		fmt.Fprintln(os.Stderr, "Run 'pd --help' for usage.")
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Print(`pd — drill harness for classical coordination protocols

One-round Oral Messages agreement (one faulty lieutenant tolerated) and
Lamport total-order mutual exclusion, each run as addressable nodes
exchanging JSON messages. Every run is recorded to a shared SQLite
event store and a line-oriented log file.

Usage:
  pd <command> [flags]

Scenarios:
  byzantine [flags]         3 nodes, node 0 commands ATTACK, node 2 lies
  lamport [flags]           4 nodes contend for resources "A" then "B"

History:
  runs                      List recorded runs
  log [--run ID]            Print a run's events (default: latest run)

Aliases:
  byz = byzantine, mutex = lamport

Environment:
  PROTODRILL_DB     SQLite event store path (default: .protodrill/protodrill.db)
  PROTODRILL_LOG    Shared log file path (default: .protodrill/protodrill.log)
  PROTODRILL_DEBUG  Set to 1 for debug-level diagnostics

All commands support --json for machine-readable output.

Exit codes:
  0  success
  1  error
`)
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "pd: "+format+"\n", args...)
	os.Exit(1)
}
