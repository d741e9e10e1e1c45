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

// Package store is the embedded row store for ingested log sessions:
// transactional writes, stable-order paginated filtered reads, and
// entry-to-page resolution over a single SQLite database file.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"sync"

	_ "modernc.org/sqlite"
)

// Store wraps the SQLite database. Writes are serialized on one
// connection; open a Store per write-burst in blocking tasks rather than
// sharing one across async boundaries.
type Store struct {
	db     *sql.DB
	logger *slog.Logger

	mu     sync.Mutex
	closed bool
}

// Open opens (creating if needed) the database at path and ensures the
// schema exists.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// SQLite allows one writer; funneling through a single connection
	// turns SQLITE_BUSY into queueing.
	db.SetMaxOpenConns(1)

	// Concurrent write bursts open separate Stores on the same file;
	// waiting on the file lock beats surfacing SQLITE_BUSY.
	if _, err := db.Exec(`PRAGMA busy_timeout = 5000`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	s := &Store{db: db, logger: logger}
	if err := s.ensureSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database. Safe to call twice.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

// ensureSchema creates tables and indexes idempotently and applies the
// additive source_type migration. The ALTER fails on an already-migrated
// database; that failure is swallowed.
func (s *Store) ensureSchema() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS test_sessions (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			directory_path TEXT NOT NULL,
			file_count INTEGER DEFAULT 0,
			total_entries INTEGER DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			last_parsed_at DATETIME
		)`,
		`CREATE TABLE IF NOT EXISTS log_entries (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			test_session_id TEXT NOT NULL,
			file_path TEXT NOT NULL,
			file_index INTEGER NOT NULL,
			timestamp TEXT NOT NULL,
			level TEXT NOT NULL,
			stack TEXT NOT NULL,
			message TEXT NOT NULL,
			line_number INTEGER NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (test_session_id) REFERENCES test_sessions(id)
		)`,
		`CREATE TABLE IF NOT EXISTS bookmarks (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			log_entry_id INTEGER NOT NULL,
			title TEXT,
			notes TEXT,
			color TEXT,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (log_entry_id) REFERENCES log_entries(id) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_entries_session ON log_entries(test_session_id)`,
		`CREATE INDEX IF NOT EXISTS idx_entries_timestamp ON log_entries(timestamp)`,
		`CREATE INDEX IF NOT EXISTS idx_entries_level ON log_entries(level)`,
		`CREATE INDEX IF NOT EXISTS idx_bookmarks_entry ON bookmarks(log_entry_id)`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}

	if _, err := s.db.Exec(
		`ALTER TABLE test_sessions ADD COLUMN source_type TEXT DEFAULT 'local'`,
	); err != nil {
		s.logger.Debug("store.schema.source_type.exists", "err", err)
	}

	return nil
}
