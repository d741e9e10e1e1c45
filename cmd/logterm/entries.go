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
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	flag "github.com/spf13/pflag"

	"github.com/kraklabs/logterm/internal/errors"
	"github.com/kraklabs/logterm/internal/ui"
	"github.com/kraklabs/logterm/pkg/store"
)

// runEntries executes the 'entries' CLI command: a paginated, filtered
// read of one session's log entries.
//
// Flags:
//   - --offset / --limit: Page window (default: 0 / 50)
//   - --levels: Comma-separated level filter; an empty value matches nothing
//   - --search: Substring filter on timestamp or message
func runEntries(args []string, configPath string, globals GlobalFlags) {
	fs := flag.NewFlagSet("entries", flag.ExitOnError)
	dbPath := fs.String("db", "", "Database file (default: from config)")
	offset := fs.Int("offset", 0, "Row offset")
	limit := fs.Int("limit", 50, "Maximum rows to return")
	levels := fs.String("levels", "", "Comma-separated level filter (default: all levels)")
	search := fs.String("search", "", "Substring filter on timestamp or message")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: logterm entries <session-id> [options]

Description:
  Read one page of a session's log entries ordered by (timestamp, id).
  Level filtering tolerates historical rows whose stored level kept
  its brackets; search matches a substring of timestamp or message.

Options:
`)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  logterm entries session_TestBoot_ID_4_17538 --limit 100
  logterm entries session_TestBoot_ID_4_17538 --levels ERROR,WARN
  logterm entries session_TestBoot_ID_4_17538 --search "timeout"

`)
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

	filter := store.Filter{Search: *search}
	if fs.Changed("levels") {
		filter.Levels = splitLevels(*levels)
	}

	st := openStore(*dbPath, configPath, globals)
	defer st.Close()

	entries, total, err := st.EntriesPaginated(sessionID, *offset, *limit, filter)
	if err != nil {
		errors.FatalError(errors.NewDatabaseError(
			"Cannot read entries",
			"The entry query failed",
			"Check the session id with 'logterm sessions'",
			err,
		), globals.JSON)
	}

	if globals.JSON {
		payload := struct {
			Entries any `json:"entries"`
			Total   int `json:"total"`
		}{Entries: entries, Total: total}
		_ = json.NewEncoder(os.Stdout).Encode(payload)
		return
	}

	ui.Infof("%s of %s entries (offset %d)", ui.CountText(len(entries)), ui.CountText(total), *offset)
	for _, e := range entries {
		ui.Infof("%s  %s  [%s]  %s", ui.DimText(strconv.FormatInt(e.ID, 10)), e.Timestamp, e.Level, e.Message)
	}
}

// runPage executes the 'page' CLI command, resolving which page holds a
// given entry under the active filters.
func runPage(args []string, configPath string, globals GlobalFlags) {
	fs := flag.NewFlagSet("page", flag.ExitOnError)
	dbPath := fs.String("db", "", "Database file (default: from config)")
	perPage := fs.Int("per-page", 50, "Entries per page")
	levels := fs.String("levels", "", "Comma-separated level filter (default: all levels)")
	search := fs.String("search", "", "Substring filter on timestamp or message")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: logterm page <entry-id> [options]

Description:
  Resolve the 1-based page number an entry lands on, given a page size
  and the same filters a paginated read would use. Useful for jumping
  from a bookmark straight to its page.

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
			"Entry ID required",
			"No entry ID provided",
			"Pass a numeric log entry id",
		), globals.JSON)
	}
	entryID, err := strconv.ParseInt(fs.Arg(0), 10, 64)
	if err != nil {
		errors.FatalError(errors.NewInputError(
			"Invalid entry ID",
			fmt.Sprintf("%q is not a number", fs.Arg(0)),
			"Pass a numeric log entry id",
		), globals.JSON)
	}

	filter := store.Filter{Search: *search}
	if fs.Changed("levels") {
		filter.Levels = splitLevels(*levels)
	}

	st := openStore(*dbPath, configPath, globals)
	defer st.Close()

	page, ok, err := st.EntryPage(entryID, *perPage, filter)
	if err != nil {
		errors.FatalError(errors.NewDatabaseError(
			"Cannot resolve entry page",
			"The page query failed",
			"",
			err,
		), globals.JSON)
	}
	if !ok {
		errors.FatalError(errors.NewInputError(
			"Entry not found",
			fmt.Sprintf("No log entry with id %d", entryID),
			"Check the id with 'logterm entries'",
		), globals.JSON)
	}

	if globals.JSON {
		_ = json.NewEncoder(os.Stdout).Encode(struct {
			Page int `json:"page"`
		}{Page: page})
		return
	}
	ui.Infof("page %d", page)
}

// runLevels executes the 'levels' CLI command, listing a session's
// distinct level tokens.
func runLevels(args []string, configPath string, globals GlobalFlags) {
	fs := flag.NewFlagSet("levels", flag.ExitOnError)
	dbPath := fs.String("db", "", "Database file (default: from config)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: logterm levels <session-id> [options]

Description:
  List the distinct log levels stored for a session, ordered lexically.
  Useful for populating filter menus.

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

	st := openStore(*dbPath, configPath, globals)
	defer st.Close()

	levels, err := st.SessionLevels(fs.Arg(0))
	if err != nil {
		errors.FatalError(errors.NewDatabaseError(
			"Cannot list levels",
			"The level query failed",
			"Check the session id with 'logterm sessions'",
			err,
		), globals.JSON)
	}

	if globals.JSON {
		_ = json.NewEncoder(os.Stdout).Encode(levels)
		return
	}
	for _, level := range levels {
		ui.Info(level)
	}
}

// splitLevels parses the --levels flag value; an explicitly empty value
// is an empty (match-nothing) set.
func splitLevels(value string) []string {
	if value == "" {
		return []string{}
	}
	return strings.Split(value, ",")
}
