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

// Package history keeps the most-recently-used ingestion sources in a
// single flat file: entries joined by '|', newest first, capped at 10.
package history

import (
	"fmt"
	"os"
	"strings"
)

// maxEntries caps the history length.
const maxEntries = 10

// File is a most-recently-used source list backed by one text file.
type File struct {
	path string
}

// New creates a history file handle at path; nothing is read or written
// until Load or Add.
func New(path string) *File {
	return &File{path: path}
}

// Load reads the history, newest first. A missing file is an empty history.
func (f *File) Load() []string {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return nil
	}

	var entries []string
	for _, part := range strings.Split(string(data), "|") {
		if part = strings.TrimSpace(part); part != "" {
			entries = append(entries, part)
		}
	}
	return entries
}

// Add records entry as the most recent source, dropping any older
// duplicate and trimming to the cap.
func (f *File) Add(entry string) error {
	history := f.Load()

	kept := history[:0]
	for _, e := range history {
		if e != entry {
			kept = append(kept, e)
		}
	}
	history = append([]string{entry}, kept...)
	if len(history) > maxEntries {
		history = history[:maxEntries]
	}

	if err := os.WriteFile(f.path, []byte(strings.Join(history, "|")), 0600); err != nil {
		return fmt.Errorf("write history: %w", err)
	}
	return nil
}

// Recent returns the newest count entries.
func (f *File) Recent(count int) []string {
	history := f.Load()
	if count < len(history) {
		history = history[:count]
	}
	return history
}
