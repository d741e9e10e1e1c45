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

	flag "github.com/spf13/pflag"

	"github.com/kraklabs/logterm/internal/errors"
	"github.com/kraklabs/logterm/internal/ui"
	"github.com/kraklabs/logterm/pkg/history"
)

// runRecent executes the 'recent' CLI command, listing recently
// ingested sources, newest first.
func runRecent(args []string, _ string, globals GlobalFlags) {
	fs := flag.NewFlagSet("recent", flag.ExitOnError)
	count := fs.IntP("count", "n", 10, "Number of entries to show")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: logterm recent [options]

Description:
  Show the most recently ingested sources (URLs and directories),
  newest first.

Options:
`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	path, err := historyFilePath()
	if err != nil {
		errors.FatalError(err, globals.JSON)
	}

	entries := history.New(path).Recent(*count)

	if globals.JSON {
		_ = json.NewEncoder(os.Stdout).Encode(entries)
		return
	}
	if len(entries) == 0 {
		ui.Info("No ingestion history.")
		return
	}
	for _, e := range entries {
		ui.Info(e)
	}
}
