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

package bookmarks

import (
	"path/filepath"
	"testing"

	"github.com/kraklabs/logterm/pkg/logs"
	"github.com/kraklabs/logterm/pkg/store"
)

// row is one seeded entry: level, message.
type row struct {
	level   string
	message string
}

// setup seeds a session with rows and returns the store plus entry ids
// aligned with the input.
func setup(t *testing.T, rows []row) (*store.Store, []int64) {
	t.Helper()

	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"), nil)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	session := logs.TestSession{ID: "s1", Name: "T_ID_1", DirectoryPath: "/x"}
	if err := st.CreateSession(&session); err != nil {
		t.Fatalf("create session: %v", err)
	}

	entries := make([]logs.LogEntry, len(rows))
	for i, r := range rows {
		entries[i] = logs.LogEntry{
			TestSessionID: "s1",
			Timestamp:     "2025-01-15 10:30:00",
			Level:         r.level,
			Message:       r.message,
		}
	}
	ids, err := st.InsertEntries(entries)
	if err != nil {
		t.Fatalf("insert entries: %v", err)
	}
	return st, ids
}

func mustBookmark(t *testing.T, st *store.Store, entryID int64) logs.Bookmark {
	t.Helper()
	b, ok, err := st.BookmarkByEntry(entryID)
	if err != nil {
		t.Fatalf("BookmarkByEntry failed: %v", err)
	}
	if !ok {
		t.Fatalf("expected a bookmark on entry %d", entryID)
	}
	return b
}

func TestEnsureSession_FailureAnchor(t *testing.T) {
	st, ids := setup(t, []row{
		{"ERROR", "assertion xyz [FAIL]"},
		{"INFO", "all fine"},
	})

	result, err := New(st, nil).EnsureSession("s1")
	if err != nil {
		t.Fatalf("EnsureSession failed: %v", err)
	}
	if result.Created != 1 {
		t.Errorf("created = %d, want 1", result.Created)
	}

	b := mustBookmark(t, st, ids[0])
	if b.Title != "Failure" || b.Color != ColorFailure {
		t.Errorf("failure bookmark = %+v", b)
	}
	if _, ok, _ := st.BookmarkByEntry(ids[1]); ok {
		t.Error("plain row must not get a bookmark")
	}
}

func TestEnsureSession_UpgradesUserBookmarkToFailure(t *testing.T) {
	st, ids := setup(t, []row{
		{"ERROR", "assertion xyz [FAIL]"},
	})

	userID, err := st.AddBookmark(&logs.Bookmark{LogEntryID: ids[0], Title: "note"})
	if err != nil {
		t.Fatalf("AddBookmark failed: %v", err)
	}

	result, err := New(st, nil).EnsureSession("s1")
	if err != nil {
		t.Fatalf("EnsureSession failed: %v", err)
	}
	if result.Created != 0 || result.Upgraded != 1 {
		t.Errorf("result = %+v, want upgrade without create", result)
	}

	b := mustBookmark(t, st, ids[0])
	if b.ID != userID {
		t.Errorf("upgrade must reuse the same bookmark row: %d != %d", b.ID, userID)
	}
	if b.Title != "Failure" || b.Color != ColorFailure {
		t.Errorf("upgraded bookmark = %+v", b)
	}
}

func TestEnsureSession_StepMarker(t *testing.T) {
	st, ids := setup(t, []row{
		{"MARKER", "[STEP 3] configure interfaces"},
		{"MARKER", "[STEP 4] verify [FAIL]"},
		{"INFO", "[STEP 5] not a marker level"},
	})

	if _, err := New(st, nil).EnsureSession("s1"); err != nil {
		t.Fatalf("EnsureSession failed: %v", err)
	}

	step := mustBookmark(t, st, ids[0])
	if step.Title != "[STEP 3] configure interfaces" || step.Color != ColorStep {
		t.Errorf("step bookmark = %+v", step)
	}

	// Failure suffix outranks the step token.
	fail := mustBookmark(t, st, ids[1])
	if fail.Title != "Failure" || fail.Color != ColorFailure {
		t.Errorf("failure-over-step bookmark = %+v", fail)
	}

	// A step token on a non-MARKER row is not a step anchor.
	if _, ok, _ := st.BookmarkByEntry(ids[2]); ok {
		t.Error("non-MARKER [STEP row must not get a bookmark")
	}
}

func TestEnsureSession_RegexAnchor(t *testing.T) {
	st, ids := setup(t, []row{
		{"INFO", "###STEP 1 START###"},
		{"MARKER", "###STEP 1 START###"},
		{"INFO", "######"},
		{"INFO", "###FIRST### then ###SECOND###"},
	})

	if _, err := New(st, nil).EnsureSession("s1"); err != nil {
		t.Fatalf("EnsureSession failed: %v", err)
	}

	// Plain-level anchor.
	b := mustBookmark(t, st, ids[0])
	if b.Title != "STEP 1 START" || b.Color != "" {
		t.Errorf("anchor bookmark = %+v", b)
	}

	// On a MARKER row the regex still wins over the bare-MARKER fallback.
	b = mustBookmark(t, st, ids[1])
	if b.Title != "STEP 1 START" {
		t.Errorf("marker-level anchor title = %q, want regex capture", b.Title)
	}

	// Empty capture is skipped entirely (not even a MARKER fallback here).
	if _, ok, _ := st.BookmarkByEntry(ids[2]); ok {
		t.Error("empty ###### must not produce a bookmark")
	}

	// Only the first match is used.
	b = mustBookmark(t, st, ids[3])
	if b.Title != "FIRST" {
		t.Errorf("multi-match title = %q, want FIRST", b.Title)
	}
}

func TestEnsureSession_BareMarkerFallback(t *testing.T) {
	st, ids := setup(t, []row{
		{"MARKER", "phase two begins"},
	})

	if _, err := New(st, nil).EnsureSession("s1"); err != nil {
		t.Fatalf("EnsureSession failed: %v", err)
	}

	b := mustBookmark(t, st, ids[0])
	if b.Title != "phase two begins" || b.Color != "" {
		t.Errorf("marker bookmark = %+v", b)
	}
}

func TestEnsureSession_WeakAnchorsNeverDowngrade(t *testing.T) {
	st, ids := setup(t, []row{
		{"MARKER", "###KEEP ME###"},
	})

	synth := New(st, nil)
	if _, err := synth.EnsureSession("s1"); err != nil {
		t.Fatalf("EnsureSession failed: %v", err)
	}

	// Simulate a later manual upgrade to failure coloring.
	b := mustBookmark(t, st, ids[0])
	if err := st.UpdateBookmarkAnchor(b.ID, "Failure", ColorFailure); err != nil {
		t.Fatalf("UpdateBookmarkAnchor failed: %v", err)
	}

	if _, err := synth.EnsureSession("s1"); err != nil {
		t.Fatalf("EnsureSession failed: %v", err)
	}
	after := mustBookmark(t, st, ids[0])
	if after.Title != "Failure" || after.Color != ColorFailure {
		t.Errorf("weak anchor downgraded an existing bookmark: %+v", after)
	}
}

func TestEnsureSession_Idempotent(t *testing.T) {
	st, ids := setup(t, []row{
		{"ERROR", "boom [FAIL]"},
		{"MARKER", "[STEP 1] go"},
		{"INFO", "###A###"},
		{"MARKER", "bare marker"},
	})

	synth := New(st, nil)
	first, err := synth.EnsureSession("s1")
	if err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	if first.Created != 4 {
		t.Errorf("first run created = %d, want 4", first.Created)
	}

	second, err := synth.EnsureSession("s1")
	if err != nil {
		t.Fatalf("second run failed: %v", err)
	}
	if second.Created != 0 || second.Upgraded != 0 {
		t.Errorf("second run must be a no-op, got %+v", second)
	}

	// Final set is unchanged.
	for i, want := range []struct{ title, color string }{
		{"Failure", ColorFailure},
		{"[STEP 1] go", ColorStep},
		{"A", ""},
		{"bare marker", ""},
	} {
		b := mustBookmark(t, st, ids[i])
		if b.Title != want.title || b.Color != want.color {
			t.Errorf("entry %d bookmark = (%q, %q), want (%q, %q)", i, b.Title, b.Color, want.title, want.color)
		}
	}
}

func TestClassify_Tiers(t *testing.T) {
	cases := []struct {
		level, message string
		wantPrio       priority
		wantTitle      string
		wantColor      string
	}{
		{"INFO", "x [FAIL]", prioFailure, "Failure", ColorFailure},
		{"MARKER", "[STEP 2] run", prioStep, "[STEP 2] run", ColorStep},
		{"INFO", "###T###", prioAnchor, "T", ""},
		{"INFO", "### spaced ###", prioAnchor, "spaced", ""},
		{"MARKER", "anything", prioMarker, "anything", ""},
		{"INFO", "nothing here", prioNone, "", ""},
		{"INFO", "[STEP 2] with ###T### too", prioNone, "", ""},
	}

	for _, tc := range cases {
		prio, title, color := classify(tc.level, tc.message)
		if prio != tc.wantPrio || title != tc.wantTitle || color != tc.wantColor {
			t.Errorf("classify(%q, %q) = (%v, %q, %q), want (%v, %q, %q)",
				tc.level, tc.message, prio, title, color, tc.wantPrio, tc.wantTitle, tc.wantColor)
		}
	}
}
