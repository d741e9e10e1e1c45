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
	"time"

	"github.com/kraklabs/logterm/pkg/logs"
)

const sqliteTimeLayout = "2006-01-02 15:04:05"

// CreateSession inserts a session row. last_parsed_at is stamped with the
// database clock.
func (s *Store) CreateSession(session *logs.TestSession) error {
	sourceType := session.SourceType
	if sourceType == "" {
		sourceType = logs.SourceLocal
	}
	_, err := s.db.Exec(
		`INSERT INTO test_sessions (id, name, directory_path, file_count, total_entries, source_type, last_parsed_at)
		 VALUES (?, ?, ?, ?, ?, ?, datetime('now'))`,
		session.ID, session.Name, session.DirectoryPath,
		session.FileCount, session.TotalEntries, sourceType)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// Sessions lists all sessions, most recently parsed first.
func (s *Store) Sessions() ([]logs.TestSession, error) {
	rows, err := s.db.Query(
		`SELECT id, name, directory_path, file_count, total_entries, created_at, last_parsed_at, source_type
		 FROM test_sessions ORDER BY last_parsed_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []logs.TestSession
	for rows.Next() {
		var sess logs.TestSession
		var createdAt, lastParsedAt, sourceType sql.NullString
		if err := rows.Scan(&sess.ID, &sess.Name, &sess.DirectoryPath,
			&sess.FileCount, &sess.TotalEntries, &createdAt, &lastParsedAt, &sourceType); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sess.CreatedAt = parseDBTime(createdAt)
		sess.LastParsedAt = parseDBTime(lastParsedAt)
		if sourceType.Valid {
			sess.SourceType = sourceType.String
		} else {
			sess.SourceType = logs.SourceLocal
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

// FindSessionByNameAndPath looks up the session identified by the
// (name, directory_path) re-ingest key. ok is false when none exists.
func (s *Store) FindSessionByNameAndPath(name, directoryPath string) (logs.TestSession, bool, error) {
	var sess logs.TestSession
	var sourceType sql.NullString
	err := s.db.QueryRow(
		`SELECT id, name, directory_path, file_count, total_entries, source_type
		 FROM test_sessions WHERE name = ? AND directory_path = ?`,
		name, directoryPath,
	).Scan(&sess.ID, &sess.Name, &sess.DirectoryPath, &sess.FileCount, &sess.TotalEntries, &sourceType)
	if err == sql.ErrNoRows {
		return logs.TestSession{}, false, nil
	}
	if err != nil {
		return logs.TestSession{}, false, fmt.Errorf("find session: %w", err)
	}
	if sourceType.Valid {
		sess.SourceType = sourceType.String
	}
	return sess, true, nil
}

// DeleteSession removes a session and its dependents atomically:
// bookmarks whose entry belongs to the session, then entries, then the
// session row, all in one transaction.
func (s *Store) DeleteSession(sessionID string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin delete: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		`DELETE FROM bookmarks WHERE log_entry_id IN
		 (SELECT id FROM log_entries WHERE test_session_id = ?)`, sessionID); err != nil {
		return fmt.Errorf("delete bookmarks: %w", err)
	}
	if _, err := tx.Exec(
		`DELETE FROM log_entries WHERE test_session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("delete entries: %w", err)
	}
	if _, err := tx.Exec(
		`DELETE FROM test_sessions WHERE id = ?`, sessionID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete: %w", err)
	}
	return nil
}

// DeleteSessionByNameAndPath deletes at most one session matching the
// re-ingest key and returns its id when one was deleted.
func (s *Store) DeleteSessionByNameAndPath(name, directoryPath string) (string, bool, error) {
	sess, ok, err := s.FindSessionByNameAndPath(name, directoryPath)
	if err != nil || !ok {
		return "", false, err
	}
	if err := s.DeleteSession(sess.ID); err != nil {
		return "", false, err
	}
	return sess.ID, true, nil
}

func parseDBTime(v sql.NullString) time.Time {
	if !v.Valid {
		return time.Time{}
	}
	// The driver may hand DATETIME columns back as RFC 3339 text.
	for _, layout := range []string{sqliteTimeLayout, time.RFC3339Nano} {
		if t, err := time.Parse(layout, v.String); err == nil {
			return t
		}
	}
	return time.Time{}
}
