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

package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	flag "github.com/spf13/pflag"

	"github.com/kraklabs/logterm/internal/errors"
	"github.com/kraklabs/logterm/internal/ui"
	"github.com/kraklabs/logterm/pkg/store"
)

// runSessions executes the 'sessions' CLI command, listing loaded
// sessions most recently parsed first.
func runSessions(args []string, configPath string, globals GlobalFlags) {
	fs := flag.NewFlagSet("sessions", flag.ExitOnError)
	dbPath := fs.String("db", "", "Database file (default: from config)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: logterm sessions [options]

Description:
  List all loaded test sessions with their source, file count, and
  entry count, most recently parsed first.

Options:
`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	st := openStore(*dbPath, configPath, globals)
	defer st.Close()

	sessions, err := st.Sessions()
	if err != nil {
		errors.FatalError(errors.NewDatabaseError(
			"Cannot list sessions",
			"The session query failed",
			"The database file may be corrupt; re-ingest or delete it",
			err,
		), globals.JSON)
	}

	if globals.JSON {
		_ = json.NewEncoder(os.Stdout).Encode(sessions)
		return
	}

	if len(sessions) == 0 {
		ui.Info("No sessions loaded. Run 'logterm ingest <url|dir>' first.")
		return
	}

	ui.Header("Sessions")
	for _, s := range sessions {
		ui.Infof("  %s", ui.Label(s.Name))
		ui.Infof("    id:      %s", ui.DimText(s.ID))
		ui.Infof("    source:  %s (%s)", ui.DimText(s.DirectoryPath), s.SourceType)
		ui.Infof("    files:   %s   entries: %s", ui.CountText(s.FileCount), ui.CountText(s.TotalEntries))
		if !s.LastParsedAt.IsZero() {
			ui.Infof("    parsed:  %s", s.LastParsedAt.Format("2006-01-02 15:04:05"))
		}
	}
}

// runDelete executes the 'delete' CLI command, removing a session and
// its entries and bookmarks.
func runDelete(args []string, configPath string, globals GlobalFlags) {
	fs := flag.NewFlagSet("delete", flag.ExitOnError)
	dbPath := fs.String("db", "", "Database file (default: from config)")
	yes := fs.BoolP("yes", "y", false, "Skip the confirmation prompt")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: logterm delete <session-id> [options]

Description:
  Delete a session together with its log entries and bookmarks. The
  deletion is atomic; there is no undo.

Options:
`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if fs.NArg() == 0 {
		fs.Usage()
		errors.FatalError(errors.NewInputError(
			"Session ID required",
			"No session ID provided",
			"List sessions with 'logterm sessions' and pass an id",
		), globals.JSON)
	}
	sessionID := fs.Arg(0)

	if !*yes {
		fmt.Printf("Delete session %s and all its entries? [y/N] ", sessionID)
		reader := bufio.NewReader(os.Stdin)
		answer, _ := reader.ReadString('\n')
		if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(answer)), "y") {
			ui.Info("Aborted.")
			return
		}
	}

	st := openStore(*dbPath, configPath, globals)
	defer st.Close()

	if err := st.DeleteSession(sessionID); err != nil {
		errors.FatalError(errors.NewDatabaseError(
			"Cannot delete session",
			fmt.Sprintf("Deleting %s failed", sessionID),
			"Check the session id with 'logterm sessions'",
			err,
		), globals.JSON)
	}

	ui.Successf("Deleted %s", sessionID)
}

// openStore opens the store shared by the read-side commands.
func openStore(dbFlag, configPath string, globals GlobalFlags) *store.Store {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		errors.FatalError(err, globals.JSON)
	}
	db, err := resolveDBPath(dbFlag, cfg)
	if err != nil {
		errors.FatalError(err, globals.JSON)
	}
	st, err := store.Open(db, slog.Default())
	if err != nil {
		errors.FatalError(errors.NewDatabaseError(
			"Cannot open database",
			fmt.Sprintf("Failed to open %s", db),
			"Check the path exists and is writable",
			err,
		), globals.JSON)
	}
	return st
}
