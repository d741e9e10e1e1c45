// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package main implements the logterm CLI for ingesting HTML test-log
// archives and querying the resulting log store.
//
// Usage:
//
//	logterm ingest <url|dir>      Ingest log sessions from HTTP or a local directory
//	logterm scan <url>            Probe a listing without downloading
//	logterm sessions [--json]     List loaded sessions
//	logterm entries <session-id>  Read entries with paging and filters
package main

import (
	"fmt"
	"os"

	flag "github.com/spf13/pflag"

	"github.com/kraklabs/logterm/internal/ui"
)

// Version information (set via ldflags during build)
var (
	version = "dev"     // Version string
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// GlobalFlags holds the global CLI flags that apply to all commands.
type GlobalFlags struct {
	JSON    bool // Output in JSON format (for applicable commands)
	NoColor bool // Disable color output
	Verbose int  // Verbosity level: 0=normal, 1=-v (info), 2=-vv (debug)
	Quiet   bool // Suppress non-essential output (progress, info messages)
}

// main is the entry point for the logterm CLI.
//
// It parses global flags and dispatches to command handlers.
func main() {
	var (
		showVersion = flag.BoolP("version", "V", false, "Show version and exit")
		configPath  = flag.StringP("config", "c", "", "Path to .logterm/project.yaml (default: ./.logterm/project.yaml)")
		jsonOutput  = flag.Bool("json", false, "Output in JSON format (for applicable commands)")
		noColor     = flag.Bool("no-color", false, "Disable color output")
		verbose     = flag.CountP("verbose", "v", "Increase verbosity (-v for info, -vv for debug)")
		quiet       = flag.BoolP("quiet", "q", false, "Suppress non-essential output (progress, info messages)")
	)

	// Stop parsing at the first non-flag argument (the command name) so
	// subcommand-specific flags like "delete --yes" reach the handlers.
	flag.SetInterspersed(false)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `logterm - Test Log Archive Engine

logterm ingests HTML-rendered test-run log archives from a local
directory tree or from an HTTP-served directory listing, normalizes
them into a queryable store, and exposes paginated filtered views
plus auto-detected bookmarks.

Usage:
  logterm <command> [options]

Commands:
  init          Create .logterm/project.yaml configuration
  ingest        Ingest log sessions from a URL or local directory
  scan          Probe an HTTP listing without downloading file bodies
  sessions      List loaded sessions
  delete        Delete a session and its entries
  entries       Read a session's entries (paged, filtered)
  page          Resolve which page contains a given entry
  levels        List the distinct log levels in a session
  bookmarks     List and manage bookmarks (list|add|delete|retitle)
  automark      Synthesize anchor bookmarks for a session
  recent        Show recently ingested sources

Global Options:
  --json            Output in JSON format (for applicable commands)
  --no-color        Disable color output (respects NO_COLOR env var)
  -v, --verbose     Increase verbosity (-v for info, -vv for debug)
  -q, --quiet       Suppress non-essential output (progress, info messages)
  -c, --config      Path to .logterm/project.yaml
  -V, --version     Show version and exit

Examples:
  logterm ingest http://ci.example.com/runs/2025-07-31/
  logterm ingest ./archived-logs --tests TestBoot_ID_4
  logterm scan http://ci.example.com/runs/2025-07-31/
  logterm sessions --json
  logterm entries session_TestBoot_ID_4_17538 --limit 100 --levels ERROR,WARN
  logterm page 4217 --per-page 50
  logterm automark session_TestBoot_ID_4_17538

Data Storage:
  Sessions are stored in a single SQLite database file
  (default: ~/.logterm/logterm.db, override via config or --db).

For detailed command help: logterm <command> --help

`)
	}

	flag.Parse()

	if *showVersion {
		fmt.Printf("logterm version %s\n", version)
		fmt.Printf("commit: %s\n", commit)
		fmt.Printf("built: %s\n", date)
		os.Exit(0)
	}

	// Check NO_COLOR environment variable
	if os.Getenv("NO_COLOR") != "" {
		*noColor = true
	}

	if *quiet && *verbose > 0 {
		fmt.Fprintf(os.Stderr, "Error: cannot use --quiet and --verbose together\n")
		os.Exit(1)
	}

	// JSON mode auto-enables quiet to prevent progress bars corrupting JSON output
	if *jsonOutput {
		*quiet = true
	}

	globals := GlobalFlags{
		JSON:    *jsonOutput,
		NoColor: *noColor,
		Verbose: *verbose,
		Quiet:   *quiet,
	}

	ui.InitColors(globals.NoColor)

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(1)
	}

	command := args[0]
	cmdArgs := args[1:]

	switch command {
	case "init":
		runInit(cmdArgs, *configPath, globals)
	case "ingest":
		runIngest(cmdArgs, *configPath, globals)
	case "scan":
		runScan(cmdArgs, *configPath, globals)
	case "sessions":
		runSessions(cmdArgs, *configPath, globals)
	case "delete":
		runDelete(cmdArgs, *configPath, globals)
	case "entries":
		runEntries(cmdArgs, *configPath, globals)
	case "page":
		runPage(cmdArgs, *configPath, globals)
	case "levels":
		runLevels(cmdArgs, *configPath, globals)
	case "bookmarks":
		runBookmarks(cmdArgs, *configPath, globals)
	case "automark":
		runAutomark(cmdArgs, *configPath, globals)
	case "recent":
		runRecent(cmdArgs, *configPath, globals)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		flag.Usage()
		os.Exit(1)
	}
}
