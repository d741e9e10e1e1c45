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
	"fmt"
	"path/filepath"
	"testing"

	"github.com/kraklabs/logterm/pkg/logs"
)

// newTestStore opens a store on a fresh database file.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(filepath.Join(t.TempDir(), "test.db"), nil)
	if err != nil {
		t.Fatalf("newTestStore failed: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

// seedSession creates a session with n entries whose timestamps ascend.
func seedSession(t *testing.T, st *Store, sessionID string, n int) []int64 {
	t.Helper()

	session := logs.TestSession{
		ID:            sessionID,
		Name:          "TestSeed_ID_1",
		DirectoryPath: "/seed",
		FileCount:     1,
		TotalEntries:  n,
	}
	if err := st.CreateSession(&session); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	entries := make([]logs.LogEntry, n)
	for i := range entries {
		entries[i] = logs.LogEntry{
			TestSessionID: sessionID,
			FilePath:      "/seed/file---0.html",
			Timestamp:     fmt.Sprintf("2025-01-15 10:30:%05.2f", float64(i)/100),
			Level:         "INFO",
			Message:       fmt.Sprintf("message %d", i),
			LineNumber:    i,
		}
	}
	ids, err := st.InsertEntries(entries)
	if err != nil {
		t.Fatalf("InsertEntries failed: %v", err)
	}
	return ids
}

func TestOpen_SchemaIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	st, err := Open(path, nil)
	if err != nil {
		t.Fatalf("first Open failed: %v", err)
	}
	seedSession(t, st, "s1", 3)
	if err := st.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	// Reopening re-runs the DDL including the swallowed source_type ALTER.
	st2, err := Open(path, nil)
	if err != nil {
		t.Fatalf("second Open failed: %v", err)
	}
	defer st2.Close()

	sessions, err := st2.Sessions()
	if err != nil {
		t.Fatalf("Sessions failed: %v", err)
	}
	if len(sessions) != 1 || sessions[0].ID != "s1" {
		t.Errorf("sessions after reopen = %+v", sessions)
	}
}

func TestClose_Twice(t *testing.T) {
	st, err := Open(filepath.Join(t.TempDir(), "test.db"), nil)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := st.Close(); err != nil {
		t.Fatalf("first Close failed: %v", err)
	}
	if err := st.Close(); err != nil {
		t.Errorf("second Close should be a no-op, got %v", err)
	}
}
