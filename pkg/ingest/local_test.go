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

package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/kraklabs/logterm/pkg/store"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func TestLocalPipeline_GrammarGroupedSessions(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "TestL_ID_1---0.html", logDoc([][3]string{
		{"10:00:00", "INFO", "first file"},
	}))
	writeFile(t, dir, "TestL_ID_1---1.html", logDoc([][3]string{
		{"10:00:01", "INFO", "second file"},
	}))
	writeFile(t, dir, "rollup.html", "<html><body>no table rows match</body></html>")

	cfg := testConfig(t)
	result, err := NewLocalPipeline(cfg, nil).Run(context.Background(), dir)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(result.SessionIDs) != 1 || len(result.Failures) != 0 {
		t.Fatalf("result = %+v", result)
	}
	if result.TotalEntries != 2 || result.FilesProcessed != 2 {
		t.Errorf("counts = %+v", result)
	}

	st, err := store.Open(cfg.DBPath, nil)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer st.Close()

	absDir, _ := filepath.Abs(dir)
	sess, ok, err := st.FindSessionByNameAndPath("TestL_ID_1", absDir)
	if err != nil || !ok {
		t.Fatalf("session missing: ok=%v err=%v", ok, err)
	}
	if sess.SourceType != "local" {
		t.Errorf("source_type = %q, want local", sess.SourceType)
	}

	entries, total, err := st.EntriesPaginated(sess.ID, 0, 10, store.Filter{})
	if err != nil {
		t.Fatalf("EntriesPaginated failed: %v", err)
	}
	if total != 2 {
		t.Fatalf("total = %d, want 2", total)
	}
	if entries[0].Message != "first file" || entries[1].Message != "second file" {
		t.Errorf("entries out of file order: %+v", entries)
	}
}

func TestLocalPipeline_UngroupedDirectoryIsOneSession(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "nested")
	if err := os.MkdirAll(sub, 0750); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	writeFile(t, dir, "run---1.html", logDoc([][3]string{
		{"10:00:01", "INFO", "later"},
	}))
	writeFile(t, sub, "run---0.html", logDoc([][3]string{
		{"10:00:00", "INFO", "earlier"},
	}))

	cfg := testConfig(t)
	result, err := NewLocalPipeline(cfg, nil).Run(context.Background(), dir)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(result.SessionIDs) != 1 {
		t.Fatalf("result = %+v", result)
	}

	st, err := store.Open(cfg.DBPath, nil)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer st.Close()

	absDir, _ := filepath.Abs(dir)
	sess, ok, err := st.FindSessionByNameAndPath(filepath.Base(absDir), absDir)
	if err != nil || !ok {
		t.Fatalf("directory-named session missing: ok=%v err=%v", ok, err)
	}
	if sess.FileCount != 2 {
		t.Errorf("file_count = %d, want 2 (recursive scan)", sess.FileCount)
	}
}

func TestLocalPipeline_EmptyDirectoryFails(t *testing.T) {
	cfg := testConfig(t)
	if _, err := NewLocalPipeline(cfg, nil).Run(context.Background(), t.TempDir()); err == nil {
		t.Fatal("expected error for a directory without HTML files")
	}
}

func TestLocalPipeline_ReingestReplaces(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "TestL_ID_1---0.html", logDoc([][3]string{
		{"10:00:00", "INFO", "v1"},
	}))

	cfg := testConfig(t)
	pipeline := NewLocalPipeline(cfg, nil)

	if _, err := pipeline.Run(context.Background(), dir); err != nil {
		t.Fatalf("first run failed: %v", err)
	}

	writeFile(t, dir, "TestL_ID_1---0.html", logDoc([][3]string{
		{"10:00:00", "INFO", "v2"},
		{"10:00:01", "INFO", "v2 extra"},
	}))
	if _, err := pipeline.Run(context.Background(), dir); err != nil {
		t.Fatalf("second run failed: %v", err)
	}

	st, err := store.Open(cfg.DBPath, nil)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer st.Close()

	sessions, err := st.Sessions()
	if err != nil {
		t.Fatalf("Sessions failed: %v", err)
	}
	if len(sessions) != 1 {
		t.Fatalf("sessions = %d, want 1 (replace-by-key)", len(sessions))
	}
	if sessions[0].TotalEntries != 2 {
		t.Errorf("total_entries = %d, want 2", sessions[0].TotalEntries)
	}
}
