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
	"fmt"
	"os"

	flag "github.com/spf13/pflag"

	"github.com/kraklabs/logterm/internal/errors"
	"github.com/kraklabs/logterm/internal/ui"
)

// runInit executes the 'init' CLI command, writing a default
// .logterm/project.yaml in the current directory.
func runInit(args []string, configPath string, globals GlobalFlags) {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	force := fs.Bool("force", false, "Overwrite an existing configuration file")
	dbPath := fs.String("db", "", "Database file path to record in the config")
	defaultURL := fs.String("url", "", "Default listing URL to record in the config")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: logterm init [options]

Description:
  Create a .logterm/project.yaml configuration file with the default
  ingestion settings. Every command works without a config file; the
  config pins a database path and ingestion defaults per project.

Options:
`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	path := configPath
	if path == "" {
		path = ConfigPath(".")
	}

	if _, err := os.Stat(path); err == nil && !*force {
		errors.FatalError(errors.NewInputError(
			"Configuration already exists",
			fmt.Sprintf("%s is already present", path),
			"Use 'logterm init --force' to overwrite it",
		), globals.JSON)
	}

	cfg := DefaultConfig()
	cfg.DBPath = *dbPath
	cfg.Ingest.DefaultURL = *defaultURL

	if err := SaveConfig(cfg, path); err != nil {
		errors.FatalError(err, globals.JSON)
	}

	ui.Successf("Wrote %s", path)
}
