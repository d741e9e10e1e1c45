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
	"log/slog"
	"os"
	"strconv"

	flag "github.com/spf13/pflag"

	"github.com/kraklabs/logterm/internal/errors"
	"github.com/kraklabs/logterm/internal/ui"
	"github.com/kraklabs/logterm/pkg/bookmarks"
	"github.com/kraklabs/logterm/pkg/logs"
)

// defaultBookmarkColor is applied to user-added bookmarks without an
// explicit color.
const defaultBookmarkColor = "yellow"

// runBookmarks executes the 'bookmarks' CLI command family:
// list, add, delete, and retitle.
func runBookmarks(args []string, configPath string, globals GlobalFlags) {
	if len(args) == 0 {
		bookmarksUsage()
		os.Exit(1)
	}

	sub := args[0]
	subArgs := args[1:]

	switch sub {
	case "list":
		runBookmarksList(subArgs, configPath, globals)
	case "add":
		runBookmarksAdd(subArgs, configPath, globals)
	case "delete":
		runBookmarksDelete(subArgs, configPath, globals)
	case "retitle":
		runBookmarksRetitle(subArgs, configPath, globals)
	default:
		fmt.Fprintf(os.Stderr, "Unknown bookmarks subcommand: %s\n", sub)
		bookmarksUsage()
		os.Exit(1)
	}
}

func bookmarksUsage() {
	fmt.Fprintf(os.Stderr, `Usage: logterm bookmarks <subcommand> [options]

Subcommands:
  list <session-id>                 List a session's bookmarks
  add <entry-id> [--title --notes --color]
  delete <bookmark-id>
  retitle <bookmark-id> <title>

`)
}

func runBookmarksList(args []string, configPath string, globals GlobalFlags) {
	fs := flag.NewFlagSet("bookmarks list", flag.ExitOnError)
	dbPath := fs.String("db", "", "Database file (default: from config)")

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if fs.NArg() == 0 {
		errors.FatalError(errors.NewInputError(
			"Session ID required",
			"No session ID provided",
			"List sessions with 'logterm sessions' and pass an id",
		), globals.JSON)
	}

	st := openStore(*dbPath, configPath, globals)
	defer st.Close()

	marked, err := st.Bookmarks(fs.Arg(0))
	if err != nil {
		errors.FatalError(errors.NewDatabaseError(
			"Cannot list bookmarks",
			"The bookmark query failed",
			"Check the session id with 'logterm sessions'",
			err,
		), globals.JSON)
	}

	if globals.JSON {
		_ = json.NewEncoder(os.Stdout).Encode(marked)
		return
	}

	if len(marked) == 0 {
		ui.Info("No bookmarks.")
		return
	}
	for _, be := range marked {
		title := be.Bookmark.Title
		if title == "" {
			title = ui.DimText("(untitled)")
		}
		color := ""
		if be.Bookmark.Color != "" {
			color = "  " + ui.DimText(be.Bookmark.Color)
		}
		ui.Infof("%s  %s  %s%s", ui.DimText(strconv.FormatInt(be.Bookmark.ID, 10)), be.Entry.Timestamp, title, color)
	}
}

func runBookmarksAdd(args []string, configPath string, globals GlobalFlags) {
	fs := flag.NewFlagSet("bookmarks add", flag.ExitOnError)
	dbPath := fs.String("db", "", "Database file (default: from config)")
	title := fs.String("title", "", "Bookmark title")
	notes := fs.String("notes", "", "Bookmark notes")
	color := fs.String("color", "", "Palette token (default: yellow)")

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if fs.NArg() == 0 {
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

	st := openStore(*dbPath, configPath, globals)
	defer st.Close()

	b := logs.Bookmark{
		LogEntryID: entryID,
		Title:      *title,
		Notes:      *notes,
		Color:      *color,
	}
	if b.Color == "" {
		b.Color = defaultBookmarkColor
	}

	id, err := st.AddBookmark(&b)
	if err != nil {
		errors.FatalError(errors.NewDatabaseError(
			"Cannot add bookmark",
			fmt.Sprintf("Inserting a bookmark on entry %d failed", entryID),
			"Check the entry id with 'logterm entries'",
			err,
		), globals.JSON)
	}

	if globals.JSON {
		_ = json.NewEncoder(os.Stdout).Encode(struct {
			ID int64 `json:"id"`
		}{ID: id})
		return
	}
	ui.Successf("Bookmark %d added", id)
}

func runBookmarksDelete(args []string, configPath string, globals GlobalFlags) {
	fs := flag.NewFlagSet("bookmarks delete", flag.ExitOnError)
	dbPath := fs.String("db", "", "Database file (default: from config)")

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if fs.NArg() == 0 {
		errors.FatalError(errors.NewInputError(
			"Bookmark ID required",
			"No bookmark ID provided",
			"List bookmarks with 'logterm bookmarks list <session-id>'",
		), globals.JSON)
	}
	bookmarkID, err := strconv.ParseInt(fs.Arg(0), 10, 64)
	if err != nil {
		errors.FatalError(errors.NewInputError(
			"Invalid bookmark ID",
			fmt.Sprintf("%q is not a number", fs.Arg(0)),
			"Pass a numeric bookmark id",
		), globals.JSON)
	}

	st := openStore(*dbPath, configPath, globals)
	defer st.Close()

	if err := st.DeleteBookmark(bookmarkID); err != nil {
		errors.FatalError(errors.NewDatabaseError(
			"Cannot delete bookmark",
			fmt.Sprintf("Deleting bookmark %d failed", bookmarkID),
			"",
			err,
		), globals.JSON)
	}
	ui.Successf("Bookmark %d deleted", bookmarkID)
}

func runBookmarksRetitle(args []string, configPath string, globals GlobalFlags) {
	fs := flag.NewFlagSet("bookmarks retitle", flag.ExitOnError)
	dbPath := fs.String("db", "", "Database file (default: from config)")

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if fs.NArg() < 2 {
		errors.FatalError(errors.NewInputError(
			"Bookmark ID and title required",
			"Usage: logterm bookmarks retitle <bookmark-id> <title>",
			"",
		), globals.JSON)
	}
	bookmarkID, err := strconv.ParseInt(fs.Arg(0), 10, 64)
	if err != nil {
		errors.FatalError(errors.NewInputError(
			"Invalid bookmark ID",
			fmt.Sprintf("%q is not a number", fs.Arg(0)),
			"Pass a numeric bookmark id",
		), globals.JSON)
	}

	st := openStore(*dbPath, configPath, globals)
	defer st.Close()

	if err := st.UpdateBookmarkTitle(bookmarkID, fs.Arg(1)); err != nil {
		errors.FatalError(errors.NewDatabaseError(
			"Cannot retitle bookmark",
			fmt.Sprintf("Updating bookmark %d failed", bookmarkID),
			"",
			err,
		), globals.JSON)
	}
	ui.Successf("Bookmark %d retitled", bookmarkID)
}

// runAutomark executes the 'automark' CLI command, synthesizing anchor
// bookmarks for a session. Safe to run repeatedly.
func runAutomark(args []string, configPath string, globals GlobalFlags) {
	fs := flag.NewFlagSet("automark", flag.ExitOnError)
	dbPath := fs.String("db", "", "Database file (default: from config)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: logterm automark <session-id> [options]

Description:
  Detect anchor patterns in a session's entries and synthesize
  bookmarks: failure rows get red 'Failure' bookmarks, step markers
  get turquoise bookmarks, ###...### anchors and bare MARKER rows get
  plain ones. Existing bookmarks are upgraded in place, never
  duplicated, so the command is safe to run repeatedly.

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

	result, err := bookmarks.New(st, slog.Default()).EnsureSession(fs.Arg(0))
	if err != nil {
		errors.FatalError(errors.NewDatabaseError(
			"Cannot synthesize bookmarks",
			"The bookmark scan failed",
			"Check the session id with 'logterm sessions'",
			err,
		), globals.JSON)
	}

	if globals.JSON {
		_ = json.NewEncoder(os.Stdout).Encode(struct {
			Created  int `json:"created"`
			Upgraded int `json:"upgraded"`
		}{Created: result.Created, Upgraded: result.Upgraded})
		return
	}
	ui.Successf("%d bookmarks created, %d upgraded", result.Created, result.Upgraded)
}
