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
	"strings"

	"github.com/kraklabs/logterm/pkg/logs"
)

// Filter narrows entry reads.
//
// Levels: nil means no level filtering; an empty non-nil slice matches
// nothing. Empty strings and the legacy token "ALL" are dropped from the
// set; stored levels match with or without surrounding brackets, so rows
// written before bracket stripping still surface.
//
// Search: non-empty means the row's timestamp or message must contain
// the substring. The match is a SQL LIKE without escaping, so '%' and
// '_' in the search string behave as wildcards.
type Filter struct {
	Levels []string
	Search string
}

// buildPredicate assembles the WHERE clause shared by paginated reads
// and entry-to-page resolution. Both callers must agree exactly, so this
// is the only place the predicate is built.
func buildPredicate(sessionID string, f Filter) (string, []any) {
	conds := []string{"test_session_id = ?"}
	args := []any{sessionID}

	if f.Levels != nil {
		if len(f.Levels) == 0 {
			conds = append(conds, "1 = 0")
		} else {
			var levels []string
			for _, level := range f.Levels {
				if level != "" && level != "ALL" {
					levels = append(levels, level)
				}
			}
			if len(levels) > 0 {
				placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(levels)), ", ")
				conds = append(conds, fmt.Sprintf("(level IN (%s) OR level IN (%s))", placeholders, placeholders))
				for _, level := range levels {
					args = append(args, level)
				}
				for _, level := range levels {
					args = append(args, "["+level+"]")
				}
			}
		}
	}

	if f.Search != "" {
		conds = append(conds, "(timestamp LIKE ? OR message LIKE ?)")
		pattern := "%" + f.Search + "%"
		args = append(args, pattern, pattern)
	}

	return strings.Join(conds, " AND "), args
}

// InsertEntries bulk-inserts entries in one transaction and returns the
// assigned ids in input order.
func (s *Store) InsertEntries(entries []logs.LogEntry) ([]int64, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin insert: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(
		`INSERT INTO log_entries
		 (test_session_id, file_path, file_index, timestamp, level, stack, message, line_number)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return nil, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	ids := make([]int64, 0, len(entries))
	for i := range entries {
		e := &entries[i]
		res, err := stmt.Exec(
			e.TestSessionID, e.FilePath, e.FileIndex,
			e.Timestamp, e.Level, e.Stack, e.Message, e.LineNumber)
		if err != nil {
			return nil, fmt.Errorf("insert entry %d: %w", i, err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return nil, fmt.Errorf("insert entry %d: %w", i, err)
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit insert: %w", err)
	}
	return ids, nil
}

// EntriesPaginated reads one page of a session's entries under the given
// filters, ordered by (timestamp ASC, id ASC), and returns the filtered
// total alongside.
func (s *Store) EntriesPaginated(sessionID string, offset, limit int, f Filter) ([]logs.LogEntry, int, error) {
	where, args := buildPredicate(sessionID, f)

	var total int
	countQuery := "SELECT COUNT(*) FROM log_entries WHERE " + where
	if err := s.db.QueryRow(countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count entries: %w", err)
	}

	query := `SELECT id, file_path, file_index, timestamp, level, stack, message, line_number
	          FROM log_entries WHERE ` + where + `
	          ORDER BY timestamp ASC, id ASC LIMIT ? OFFSET ?`
	rows, err := s.db.Query(query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()

	var entries []logs.LogEntry
	for rows.Next() {
		e := logs.LogEntry{TestSessionID: sessionID}
		if err := rows.Scan(&e.ID, &e.FilePath, &e.FileIndex,
			&e.Timestamp, &e.Level, &e.Stack, &e.Message, &e.LineNumber); err != nil {
			return nil, 0, fmt.Errorf("scan entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("read entries: %w", err)
	}

	return entries, total, nil
}

// EntryPage resolves the 1-based page an entry lands on under the given
// filters and page size. ok is false when the entry does not exist. The
// entry itself is not required to satisfy the filters; the caller may ask
// for the page that would contain it regardless.
func (s *Store) EntryPage(entryID int64, itemsPerPage int, f Filter) (int, bool, error) {
	var sessionID, timestamp string
	var id int64
	err := s.db.QueryRow(
		`SELECT test_session_id, timestamp, id FROM log_entries WHERE id = ?`,
		entryID,
	).Scan(&sessionID, &timestamp, &id)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("lookup entry: %w", err)
	}

	where, args := buildPredicate(sessionID, f)
	where += " AND ((timestamp < ?) OR (timestamp = ? AND id < ?))"
	args = append(args, timestamp, timestamp, id)

	var before int
	if err := s.db.QueryRow(
		"SELECT COUNT(*) FROM log_entries WHERE "+where, args...,
	).Scan(&before); err != nil {
		return 0, false, fmt.Errorf("count preceding entries: %w", err)
	}

	return before/itemsPerPage + 1, true, nil
}

// SessionLevels lists the distinct level tokens stored for a session,
// ordered lexically.
func (s *Store) SessionLevels(sessionID string) ([]string, error) {
	rows, err := s.db.Query(
		`SELECT DISTINCT level FROM log_entries WHERE test_session_id = ? ORDER BY level`,
		sessionID)
	if err != nil {
		return nil, fmt.Errorf("query levels: %w", err)
	}
	defer rows.Close()

	var levels []string
	for rows.Next() {
		var level string
		if err := rows.Scan(&level); err != nil {
			return nil, fmt.Errorf("scan level: %w", err)
		}
		levels = append(levels, level)
	}
	return levels, rows.Err()
}
