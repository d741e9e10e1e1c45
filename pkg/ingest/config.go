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

// Package ingest orchestrates log-archive ingestion: the HTTP session
// coordinator with two-level bounded concurrency, the local-directory
// pipeline, and the probe-only scan.
package ingest

import "github.com/kraklabs/logterm/pkg/httpfetch"

// Config controls an ingestion run.
type Config struct {
	// DBPath is the SQLite database file all sessions are written to.
	DBPath string

	// MaxSessions bounds how many sessions download concurrently.
	MaxSessions int

	// MaxFilesPerSession bounds concurrent file downloads within a session.
	MaxFilesPerSession int

	// MaxRetries is the whole-file retry budget handed to the fetcher.
	MaxRetries int

	// SelectedTests restricts ingestion to the named session keys.
	// nil processes every discovered group; an empty non-nil slice
	// processes none.
	SelectedTests []string

	// ParseWorkers sizes the local pipeline's parsing pool.
	ParseWorkers int

	// OnProgress receives progress events; nil disables emission.
	OnProgress httpfetch.ProgressFunc
}

// DefaultConfig returns the shipping concurrency defaults.
func DefaultConfig() Config {
	return Config{
		MaxSessions:        2,
		MaxFilesPerSession: 4,
		MaxRetries:         3,
		ParseWorkers:       4,
	}
}

// emit reports a progress event if a callback is configured. The
// callback must be thread-safe; it is invoked from any task.
func (c *Config) emit(ev httpfetch.Event) {
	if c.OnProgress != nil {
		c.OnProgress(ev)
	}
}

// selects reports whether the session key passes the selection filter.
func (c *Config) selects(key string) bool {
	if c.SelectedTests == nil {
		return true
	}
	for _, t := range c.SelectedTests {
		if t == key {
			return true
		}
	}
	return false
}
