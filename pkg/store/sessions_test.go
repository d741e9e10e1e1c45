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
	"testing"

	"github.com/kraklabs/logterm/pkg/logs"
)

func TestCreateSession_DefaultsSourceType(t *testing.T) {
	st := newTestStore(t)

	session := logs.TestSession{ID: "s1", Name: "T_ID_1", DirectoryPath: "/x"}
	if err := st.CreateSession(&session); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	found, ok, err := st.FindSessionByNameAndPath("T_ID_1", "/x")
	if err != nil || !ok {
		t.Fatalf("FindSessionByNameAndPath = ok=%v err=%v", ok, err)
	}
	if found.SourceType != logs.SourceLocal {
		t.Errorf("source_type = %q, want local default", found.SourceType)
	}
}

func TestFindSessionByNameAndPath_RequiresBothKeys(t *testing.T) {
	st := newTestStore(t)

	session := logs.TestSession{ID: "s1", Name: "T_ID_1", DirectoryPath: "/x", SourceType: logs.SourceHTTP}
	if err := st.CreateSession(&session); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	if _, ok, _ := st.FindSessionByNameAndPath("T_ID_1", "/other"); ok {
		t.Error("different directory_path must not match")
	}
	if _, ok, _ := st.FindSessionByNameAndPath("Other_ID_1", "/x"); ok {
		t.Error("different name must not match")
	}
}

func TestDeleteSession_Cascades(t *testing.T) {
	st := newTestStore(t)
	ids := seedSession(t, st, "s1", 5)
	otherIDs := seedSession(t, st, "s2", 3)

	if _, err := st.AddBookmark(&logs.Bookmark{LogEntryID: ids[0], Title: "doomed"}); err != nil {
		t.Fatalf("AddBookmark failed: %v", err)
	}
	keepID, err := st.AddBookmark(&logs.Bookmark{LogEntryID: otherIDs[0], Title: "survivor"})
	if err != nil {
		t.Fatalf("AddBookmark failed: %v", err)
	}

	if err := st.DeleteSession("s1"); err != nil {
		t.Fatalf("DeleteSession failed: %v", err)
	}

	if _, total, _ := st.EntriesPaginated("s1", 0, 10, Filter{}); total != 0 {
		t.Errorf("deleted session still has %d entries", total)
	}
	if _, ok, _ := st.BookmarkByEntry(ids[0]); ok {
		t.Error("bookmark on deleted session's entry must be gone")
	}

	// The sibling session is untouched.
	if _, total, _ := st.EntriesPaginated("s2", 0, 10, Filter{}); total != 3 {
		t.Errorf("sibling session entries = %d, want 3", total)
	}
	if b, ok, _ := st.BookmarkByEntry(otherIDs[0]); !ok || b.ID != keepID {
		t.Error("sibling session's bookmark must survive")
	}
}

func TestDeleteSessionByNameAndPath_ReplaceKey(t *testing.T) {
	st := newTestStore(t)
	seedSession(t, st, "s1", 4)

	deletedID, ok, err := st.DeleteSessionByNameAndPath("TestSeed_ID_1", "/seed")
	if err != nil {
		t.Fatalf("DeleteSessionByNameAndPath failed: %v", err)
	}
	if !ok || deletedID != "s1" {
		t.Errorf("deleted = (%q, %v), want (s1, true)", deletedID, ok)
	}

	// A second delete finds nothing.
	_, ok, err = st.DeleteSessionByNameAndPath("TestSeed_ID_1", "/seed")
	if err != nil {
		t.Fatalf("DeleteSessionByNameAndPath failed: %v", err)
	}
	if ok {
		t.Error("second delete must find nothing")
	}
}

func TestSessions_ListsAll(t *testing.T) {
	st := newTestStore(t)
	seedSession(t, st, "s1", 2)

	session2 := logs.TestSession{ID: "s2", Name: "Other_ID_2", DirectoryPath: "http://host/logs/", SourceType: logs.SourceHTTP, FileCount: 3, TotalEntries: 9}
	if err := st.CreateSession(&session2); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	sessions, err := st.Sessions()
	if err != nil {
		t.Fatalf("Sessions failed: %v", err)
	}
	if len(sessions) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(sessions))
	}

	byID := map[string]logs.TestSession{}
	for _, s := range sessions {
		byID[s.ID] = s
	}
	if byID["s2"].SourceType != logs.SourceHTTP {
		t.Errorf("s2 source_type = %q", byID["s2"].SourceType)
	}
	if byID["s2"].TotalEntries != 9 || byID["s2"].FileCount != 3 {
		t.Errorf("s2 counts = %+v", byID["s2"])
	}
	if byID["s1"].LastParsedAt.IsZero() {
		t.Error("last_parsed_at should be stamped on create")
	}
}
