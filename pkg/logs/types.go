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

// Package logs defines the data model for test-run log archives and the
// HTML log document parser that turns rendered log tables into ordered
// row sequences.
package logs

import (
	"fmt"
	"strings"
	"time"
	"unicode"
)

// Source types for a test session.
const (
	SourceLocal = "local"
	SourceHTTP  = "http"
)

// TestSession is one logical test run: a group of HTML log files sharing
// a session key under a single source directory or base URL.
type TestSession struct {
	// ID is the opaque session identifier, format session_<slug>_<nanots>.
	ID string `json:"id"`

	// Name is the human key: the test-name token parsed from the filename,
	// or the directory name for ungrouped local ingests.
	Name string `json:"name"`

	// DirectoryPath is the source locator: absolute local path or base URL.
	DirectoryPath string `json:"directory_path"`

	// FileCount is the number of input files ingested.
	FileCount int `json:"file_count"`

	// TotalEntries is the number of log records in the session.
	TotalEntries int `json:"total_entries"`

	CreatedAt    time.Time `json:"created_at,omitzero"`
	LastParsedAt time.Time `json:"last_parsed_at,omitzero"`

	// SourceType is SourceLocal or SourceHTTP.
	SourceType string `json:"source_type"`
}

// LogEntry is one row from an HTML log table.
//
// Within a session the total order on entries is (Timestamp ASC, ID ASC);
// ID is assigned on insert and is monotonic with insertion order inside a
// transaction, so equal timestamps keep authored order.
type LogEntry struct {
	// ID is 0 until the entry has been inserted.
	ID int64 `json:"id"`

	TestSessionID string `json:"test_session_id"`

	// FilePath is the source URL or local path of the file this row came from.
	FilePath string `json:"file_path"`

	// FileIndex is the ordinal of the source file within its session.
	FileIndex int `json:"file_index"`

	// Timestamp is kept as authored; it is an opaque, lexically sortable string.
	Timestamp string `json:"timestamp"`

	// Level is the short level token with surrounding brackets stripped.
	Level string `json:"level"`

	// Stack is captured stack text, empty when the row carries none.
	Stack string `json:"stack"`

	Message string `json:"message"`

	// LineNumber is the 0-based row ordinal within the source file.
	LineNumber int `json:"line_number"`
}

// Bookmark is a user or auto-synthesized anchor on a specific entry.
type Bookmark struct {
	ID         int64     `json:"id"`
	LogEntryID int64     `json:"log_entry_id"`
	Title      string    `json:"title,omitempty"`
	Notes      string    `json:"notes,omitempty"`
	Color      string    `json:"color,omitempty"`
	CreatedAt  time.Time `json:"created_at,omitzero"`
}

// ScanResult is a probe-only view of one session group found at a source.
// It is derived, never persisted.
type ScanResult struct {
	TestName          string `json:"test_name"`
	FileCount         int    `json:"file_count"`
	IsLoaded          bool   `json:"is_loaded"`
	ExistingSessionID string `json:"existing_session_id,omitempty"`
	EstimatedEntries  int    `json:"estimated_entries,omitempty"`
}

// NewSessionID builds a session identifier from the session name and the
// current time: session_<slug>_<nanotimestamp>. Characters in the name
// other than Unicode letters, digits and '_' are folded to '_'.
func NewSessionID(name string, now time.Time) string {
	return fmt.Sprintf("session_%s_%d", slugify(name), now.UnixNano())
}

func slugify(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	return b.String()
}
