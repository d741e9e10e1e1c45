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
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/kraklabs/logterm/pkg/httpfetch"
	"github.com/kraklabs/logterm/pkg/logs"
)

// LocalPipeline ingests HTML log files from a local directory tree. It
// reuses the HTTP path's parser and persistence contracts: grammar-based
// session grouping, all-or-nothing per session, replace-by-key.
type LocalPipeline struct {
	config Config
	logger *slog.Logger
	parser *logs.Parser
}

// LocalResult summarizes a local ingestion run.
type LocalResult struct {
	SessionIDs     []string
	FilesProcessed int
	TotalEntries   int
	Skipped        int
	Failures       []SessionFailure
	Duration       time.Duration
}

// NewLocalPipeline creates a local-directory pipeline.
func NewLocalPipeline(config Config, logger *slog.Logger) *LocalPipeline {
	if logger == nil {
		logger = slog.Default()
	}
	if config.ParseWorkers <= 0 {
		config.ParseWorkers = DefaultConfig().ParseWorkers
	}
	return &LocalPipeline{
		config: config,
		logger: logger,
		parser: logs.NewParser(logger),
	}
}

// Run scans dirPath recursively for .html log files and ingests them.
// Files matching the test-log grammar form one session per session key;
// when nothing matches the grammar, every HTML file is ingested as a
// single session named after the directory, ordered by any trailing
// ---N index in the filename.
func (p *LocalPipeline) Run(ctx context.Context, dirPath string) (*LocalResult, error) {
	start := time.Now()

	absDir, err := filepath.Abs(dirPath)
	if err != nil {
		return nil, fmt.Errorf("resolve directory: %w", err)
	}

	htmlFiles, err := scanHTMLFiles(absDir)
	if err != nil {
		return nil, err
	}
	if len(htmlFiles) == 0 {
		return nil, fmt.Errorf("no HTML log files found in %s", absDir)
	}

	p.logger.Info("ingest.local.start", "dir", absDir, "files", len(htmlFiles))

	groups := logs.GroupSessionFiles(htmlFiles)
	if len(groups) == 0 {
		files := make([]logs.SessionFile, len(htmlFiles))
		for i, path := range htmlFiles {
			files[i] = logs.SessionFile{URL: path, Index: logs.ExtractFileIndex(path)}
		}
		sort.Slice(files, func(i, j int) bool { return files[i].Index < files[j].Index })
		groups = map[string][]logs.SessionFile{filepath.Base(absDir): files}
	}

	result := &LocalResult{}
	for _, group := range sortedGroups(groups) {
		name, files := group.name, group.files
		if !p.config.selects(name) {
			continue
		}
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		default:
		}

		id, entryCount, err := p.ingestGroup(ctx, name, absDir, files)
		switch {
		case err != nil:
			p.logger.Error("ingest.local.session.error", "session", name, "err", err)
			result.Failures = append(result.Failures, SessionFailure{Session: name, Err: err})
		case id == "":
			result.Skipped++
		default:
			result.SessionIDs = append(result.SessionIDs, id)
			result.FilesProcessed += len(files)
			result.TotalEntries += entryCount
		}
	}

	p.config.emit(httpfetch.Event{Kind: httpfetch.EventComplete})
	result.Duration = time.Since(start)

	p.logger.Info("ingest.local.complete",
		"loaded", len(result.SessionIDs),
		"entries", result.TotalEntries,
		"failed", len(result.Failures),
		"duration_ms", result.Duration.Milliseconds(),
	)
	return result, nil
}

// ingestGroup parses one session's files and persists them, mirroring
// the HTTP coordinator's post-download phase.
func (p *LocalPipeline) ingestGroup(ctx context.Context, name, dirPath string, files []logs.SessionFile) (string, int, error) {
	p.config.emit(httpfetch.Event{Kind: httpfetch.EventParsing, Session: name})

	sessionID := logs.NewSessionID(name, time.Now())

	perFile, err := p.parseFilesParallel(ctx, sessionID, files)
	if err != nil {
		return "", 0, err
	}

	var entries []logs.LogEntry
	for _, parsed := range perFile {
		entries = append(entries, parsed...)
	}
	if len(entries) == 0 {
		p.logger.Warn("ingest.local.session.empty", "session", name, "files", len(files))
		return "", 0, nil
	}

	session := logs.TestSession{
		ID:            sessionID,
		Name:          name,
		DirectoryPath: dirPath,
		FileCount:     len(files),
		TotalEntries:  len(entries),
		SourceType:    logs.SourceLocal,
	}
	if err := persistSession(p.config.DBPath, &session, entries, p.logger); err != nil {
		return "", 0, err
	}

	p.logger.Info("ingest.local.session.complete",
		"session", name, "id", sessionID, "files", len(files), "entries", len(entries))
	return sessionID, len(entries), nil
}

// parseFilesParallel reads and parses a session's files under a small
// worker pool, keeping results in file order. Any file failing to read
// or parse fails the whole session.
func (p *LocalPipeline) parseFilesParallel(ctx context.Context, sessionID string, files []logs.SessionFile) ([][]logs.LogEntry, error) {
	results := make([][]logs.LogEntry, len(files))
	errs := make([]error, len(files))

	jobs := make(chan int, len(files))
	var wg sync.WaitGroup

	workers := min(p.config.ParseWorkers, len(files))
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				select {
				case <-ctx.Done():
					errs[i] = ctx.Err()
					continue
				default:
				}

				file := files[i]
				content, err := os.ReadFile(file.URL)
				if err != nil {
					errs[i] = fmt.Errorf("read %s: %w", file.URL, err)
					continue
				}
				parsed, err := p.parser.ParseDocument(string(content), file.URL, sessionID, file.Index)
				if err != nil {
					errs[i] = err
					continue
				}
				results[i] = parsed
			}
		}()
	}

	for i := range files {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	var failures []string
	for _, err := range errs {
		if err != nil {
			failures = append(failures, err.Error())
		}
	}
	if len(failures) > 0 {
		return nil, httpfetch.NewParseError(fmt.Sprintf(
			"%d/%d files failed to parse:\n  %s",
			len(failures), len(files), strings.Join(failures, "\n  ")), nil)
	}
	return results, nil
}

// scanHTMLFiles walks the tree collecting .html file paths.
func scanHTMLFiles(dir string) ([]string, error) {
	var htmlFiles []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.EqualFold(filepath.Ext(path), ".html") {
			htmlFiles = append(htmlFiles, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan directory: %w", err)
	}
	return htmlFiles, nil
}

type sessionGroup struct {
	name  string
	files []logs.SessionFile
}

// sortedGroups yields groups in deterministic name order.
func sortedGroups(groups map[string][]logs.SessionFile) []sessionGroup {
	ordered := make([]sessionGroup, 0, len(groups))
	for name, files := range groups {
		ordered = append(ordered, sessionGroup{name: name, files: files})
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].name < ordered[j].name })
	return ordered
}
