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
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	flag "github.com/spf13/pflag"

	"github.com/kraklabs/logterm/internal/errors"
	"github.com/kraklabs/logterm/internal/ui"
	"github.com/kraklabs/logterm/pkg/ingest"
)

// runScan executes the 'scan' CLI command: probe an HTTP listing for
// session groups without downloading any file bodies.
func runScan(args []string, configPath string, globals GlobalFlags) {
	fs := flag.NewFlagSet("scan", flag.ExitOnError)
	dbPath := fs.String("db", "", "Database file (default: from config)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: logterm scan <url> [options]

Description:
  Fetch a directory listing and report the test sessions it contains:
  session key, file count, and whether each session is already loaded
  in the local store.

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
			"URL argument required",
			"No listing URL provided",
			"Provide a URL: logterm scan http://ci.example.com/runs/",
		), globals.JSON)
	}
	url := fs.Arg(0)

	cfg, err := LoadConfig(configPath)
	if err != nil {
		errors.FatalError(err, globals.JSON)
	}
	db, err := resolveDBPath(*dbPath, cfg)
	if err != nil {
		errors.FatalError(err, globals.JSON)
	}

	results, err := ingest.ScanHTTP(context.Background(), url, db, slog.Default())
	if err != nil {
		errors.FatalError(errors.NewNetworkError(
			"Scan failed",
			fmt.Sprintf("Could not scan %s", url),
			"Check the URL is reachable and serves a directory listing",
			err,
		), globals.JSON)
	}

	if globals.JSON {
		_ = json.NewEncoder(os.Stdout).Encode(results)
		return
	}

	if len(results) == 0 {
		ui.Info("No test sessions found.")
		return
	}

	ui.Header(fmt.Sprintf("Sessions at %s", url))
	for _, r := range results {
		state := ui.DimText("not loaded")
		if r.IsLoaded {
			state = fmt.Sprintf("loaded (%s entries)", ui.CountText(r.EstimatedEntries))
		}
		ui.Infof("  %-40s %s files  %s", r.TestName, ui.CountText(r.FileCount), state)
	}
}
