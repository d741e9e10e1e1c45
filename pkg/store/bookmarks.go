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

package store

import (
	"database/sql"
	"fmt"

	"github.com/kraklabs/logterm/pkg/logs"
)

// BookmarkedEntry pairs a bookmark with the entry it anchors.
type BookmarkedEntry struct {
	Bookmark logs.Bookmark `json:"bookmark"`
	Entry    logs.LogEntry `json:"entry"`
}

// AddBookmark inserts a bookmark and returns its id. Empty title, notes,
// and color are stored as NULL.
func (s *Store) AddBookmark(b *logs.Bookmark) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO bookmarks (log_entry_id, title, notes, color) VALUES (?, ?, ?, ?)`,
		b.LogEntryID, nullable(b.Title), nullable(b.Notes), nullable(b.Color))
	if err != nil {
		return 0, fmt.Errorf("add bookmark: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("add bookmark: %w", err)
	}
	return id, nil
}

// Bookmarks lists a session's bookmarks joined with their entries,
// ordered by entry timestamp.
func (s *Store) Bookmarks(sessionID string) ([]BookmarkedEntry, error) {
	rows, err := s.db.Query(
		`SELECT b.id, b.log_entry_id, b.title, b.notes, b.color,
		        e.id, e.test_session_id, e.file_path, e.file_index,
		        e.timestamp, e.level, e.stack, e.message, e.line_number
		 FROM bookmarks b
		 JOIN log_entries e ON b.log_entry_id = e.id
		 WHERE e.test_session_id = ?
		 ORDER BY e.timestamp ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query bookmarks: %w", err)
	}
	defer rows.Close()

	var result []BookmarkedEntry
	for rows.Next() {
		var be BookmarkedEntry
		var title, notes, color sql.NullString
		if err := rows.Scan(
			&be.Bookmark.ID, &be.Bookmark.LogEntryID, &title, &notes, &color,
			&be.Entry.ID, &be.Entry.TestSessionID, &be.Entry.FilePath, &be.Entry.FileIndex,
			&be.Entry.Timestamp, &be.Entry.Level, &be.Entry.Stack, &be.Entry.Message,
			&be.Entry.LineNumber); err != nil {
			return nil, fmt.Errorf("scan bookmark: %w", err)
		}
		be.Bookmark.Title = title.String
		be.Bookmark.Notes = notes.String
		be.Bookmark.Color = color.String
		result = append(result, be)
	}
	return result, rows.Err()
}

// BookmarkByEntry returns the bookmark anchored on an entry, if any.
// The auto-synthesizer keeps at most one bookmark per entry; when user
// additions left several, the oldest wins.
func (s *Store) BookmarkByEntry(entryID int64) (logs.Bookmark, bool, error) {
	var b logs.Bookmark
	var title, notes, color sql.NullString
	err := s.db.QueryRow(
		`SELECT id, log_entry_id, title, notes, color FROM bookmarks
		 WHERE log_entry_id = ? ORDER BY id LIMIT 1`, entryID,
	).Scan(&b.ID, &b.LogEntryID, &title, &notes, &color)
	if err == sql.ErrNoRows {
		return logs.Bookmark{}, false, nil
	}
	if err != nil {
		return logs.Bookmark{}, false, fmt.Errorf("lookup bookmark: %w", err)
	}
	b.Title = title.String
	b.Notes = notes.String
	b.Color = color.String
	return b, true, nil
}

// UpdateBookmarkTitle renames a bookmark.
func (s *Store) UpdateBookmarkTitle(bookmarkID int64, title string) error {
	if _, err := s.db.Exec(
		`UPDATE bookmarks SET title = ? WHERE id = ?`, title, bookmarkID); err != nil {
		return fmt.Errorf("update bookmark title: %w", err)
	}
	return nil
}

// UpdateBookmarkAnchor rewrites a bookmark's title and color in place;
// the synthesizer uses this to upgrade lower-priority bookmarks.
func (s *Store) UpdateBookmarkAnchor(bookmarkID int64, title, color string) error {
	if _, err := s.db.Exec(
		`UPDATE bookmarks SET title = ?, color = ? WHERE id = ?`,
		title, nullable(color), bookmarkID); err != nil {
		return fmt.Errorf("update bookmark: %w", err)
	}
	return nil
}

// DeleteBookmark removes a bookmark.
func (s *Store) DeleteBookmark(bookmarkID int64) error {
	if _, err := s.db.Exec(`DELETE FROM bookmarks WHERE id = ?`, bookmarkID); err != nil {
		return fmt.Errorf("delete bookmark: %w", err)
	}
	return nil
}

// AnchorCandidates returns the slim rows the bookmark synthesizer scans:
// entries that carry a failure suffix, a marker level, or a ###...###
// pattern, ordered by (timestamp, id).
func (s *Store) AnchorCandidates(sessionID string) ([]logs.LogEntry, error) {
	rows, err := s.db.Query(
		`SELECT id, level, message FROM log_entries
		 WHERE test_session_id = ?
		   AND (level = 'MARKER' OR message LIKE '%[FAIL]' OR message LIKE '%###%')
		 ORDER BY timestamp ASC, id ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query anchor candidates: %w", err)
	}
	defer rows.Close()

	var entries []logs.LogEntry
	for rows.Next() {
		e := logs.LogEntry{TestSessionID: sessionID}
		if err := rows.Scan(&e.ID, &e.Level, &e.Message); err != nil {
			return nil, fmt.Errorf("scan candidate: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
