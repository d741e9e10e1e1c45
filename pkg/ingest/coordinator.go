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
	"log/slog"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/kraklabs/logterm/pkg/bookmarks"
	"github.com/kraklabs/logterm/pkg/httpfetch"
	"github.com/kraklabs/logterm/pkg/logs"
	"github.com/kraklabs/logterm/pkg/store"
)

// Coordinator downloads and ingests HTTP-served log sessions under
// two-level bounded concurrency: at most MaxSessions sessions in flight,
// and within each session at most MaxFilesPerSession files.
type Coordinator struct {
	config Config
	logger *slog.Logger
	parser *logs.Parser
}

// SessionFailure records one session that could not be ingested.
type SessionFailure struct {
	Session string
	Err     error
}

// RunResult summarizes a coordinator run. A failed session never aborts
// its siblings, so both lists can be populated.
type RunResult struct {
	// SessionIDs are the sessions successfully written to the store.
	SessionIDs []string
	// Skipped counts groups whose files parsed to zero entries.
	Skipped int
	// Failures lists sessions whose download, parse or store write
	// failed. A download or parse failure leaves the store untouched, so
	// a prior ingest of the same session survives intact; a write
	// failure can come after the prior copy was already deleted.
	Failures []SessionFailure
	// BytesDownloaded is the total byte count across all sessions.
	BytesDownloaded uint64
}

// NewCoordinator creates a coordinator with the given configuration.
func NewCoordinator(config Config, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	if config.MaxSessions <= 0 {
		config.MaxSessions = DefaultConfig().MaxSessions
	}
	if config.MaxFilesPerSession <= 0 {
		config.MaxFilesPerSession = DefaultConfig().MaxFilesPerSession
	}
	return &Coordinator{
		config: config,
		logger: logger,
		parser: logs.NewParser(logger),
	}
}

// Run ingests every selected session group found at baseURL.
func (c *Coordinator) Run(ctx context.Context, baseURL string) (*RunResult, error) {
	c.config.emit(httpfetch.Event{Kind: httpfetch.EventConnecting})

	fetcher, err := httpfetch.NewFetcher(baseURL, c.logger)
	if err != nil {
		return nil, err
	}

	c.config.emit(httpfetch.Event{Kind: httpfetch.EventScanning})
	listing, err := fetcher.FetchListing(ctx)
	if err != nil {
		return nil, err
	}
	urls, err := httpfetch.ParseDirectoryListing(listing, fetcher.BaseURL())
	if err != nil {
		return nil, err
	}

	groups := logs.GroupSessionFiles(urls)

	found := 0
	for _, files := range groups {
		found += len(files)
	}
	if found == 0 {
		c.config.emit(httpfetch.Event{Kind: httpfetch.EventComplete})
		return &RunResult{}, nil
	}
	c.config.emit(httpfetch.Event{Kind: httpfetch.EventScanning, Found: found})

	for key := range groups {
		if !c.config.selects(key) {
			delete(groups, key)
		}
	}
	if len(groups) == 0 {
		c.config.emit(httpfetch.Event{Kind: httpfetch.EventComplete})
		return &RunResult{}, nil
	}

	c.logger.Info("ingest.run.start",
		"url", fetcher.BaseURL().String(),
		"sessions", len(groups),
		"files", found,
	)

	// One retry router for the shared fetcher: sessions register their
	// trackers so retry notifications reach the right status map.
	router := &retryRouter{trackers: make(map[string]*statusTracker)}
	fetcher.SetRetryHook(router.dispatch)

	sem := semaphore.NewWeighted(int64(c.config.MaxSessions))
	totalSessions := len(groups)
	var sessionNum atomic.Int64

	result := &RunResult{}
	var mu sync.Mutex
	var wg sync.WaitGroup

	for name, files := range groups {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := sem.Acquire(ctx, 1); err != nil {
				mu.Lock()
				result.Failures = append(result.Failures, SessionFailure{Session: name, Err: err})
				mu.Unlock()
				return
			}
			defer sem.Release(1)

			num := int(sessionNum.Add(1))
			id, err := c.ingestSession(ctx, fetcher, router, name, files, num, totalSessions)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				c.logger.Error("ingest.session.error", "session", name, "err", err)
				result.Failures = append(result.Failures, SessionFailure{Session: name, Err: err})
			case id == "":
				result.Skipped++
			default:
				result.SessionIDs = append(result.SessionIDs, id)
			}
		}()
	}

	wg.Wait()
	result.BytesDownloaded = fetcher.BytesDownloaded()
	c.config.emit(httpfetch.Event{Kind: httpfetch.EventComplete})

	c.logger.Info("ingest.run.complete",
		"loaded", len(result.SessionIDs),
		"skipped", result.Skipped,
		"failed", len(result.Failures),
	)
	return result, nil
}

// fileResult is one finished file download, index-keyed for reordering.
type fileResult struct {
	url     string
	content string
	index   int
	err     error
}

// ingestSession downloads one session's files, parses them in file-index
// order, and replaces any prior ingest of the same (name, base URL) key.
//
// All-or-nothing: any file that fails to download or parse aborts the
// whole session before the database is touched, so a failed re-ingest
// never destroys the previously good copy.
func (c *Coordinator) ingestSession(
	ctx context.Context,
	fetcher *httpfetch.Fetcher,
	router *retryRouter,
	name string,
	files []logs.SessionFile,
	sessionNum, totalSessions int,
) (string, error) {
	baseURL := fetcher.BaseURL().String()
	fileSem := semaphore.NewWeighted(int64(c.config.MaxFilesPerSession))

	tracker := newStatusTracker(files)
	router.register(files, tracker)

	emitDownloading := func() {
		snapshot, completed, failed := tracker.snapshot()
		c.config.emit(httpfetch.Event{
			Kind: httpfetch.EventDownloading,
			Downloading: &httpfetch.DownloadingStatus{
				TotalSessions:  totalSessions,
				CurrentSession: sessionNum,
				TotalFiles:     len(files),
				CompletedFiles: completed,
				FailedFiles:    failed,
				Speed:          fetcher.Speed().Format(),
				Files:          snapshot,
			},
		})
	}

	results := make([]fileResult, len(files))
	var wg sync.WaitGroup

	for i, file := range files {
		wg.Add(1)
		go func() {
			defer wg.Done()

			if err := fileSem.Acquire(ctx, 1); err != nil {
				results[i] = fileResult{url: file.URL, err: err}
				tracker.set(file.URL, httpfetch.FileFailed, err.Error())
				return
			}
			defer fileSem.Release(1)

			tracker.set(file.URL, httpfetch.FileDownloading, "")

			res, err := fetcher.FetchFileWithRetry(ctx, file.URL, c.config.MaxRetries)
			if err != nil {
				tracker.set(file.URL, httpfetch.FileFailed, err.Error())
				emitDownloading()
				results[i] = fileResult{url: file.URL, err: err}
				return
			}

			tracker.set(file.URL, httpfetch.FileCompleted, "")
			emitDownloading()
			results[i] = fileResult{url: file.URL, content: res.Content, index: file.Index}
		}()
	}

	wg.Wait()

	var failed []string
	for _, r := range results {
		if r.err != nil {
			failed = append(failed, fmt.Sprintf("%s: %v", r.url, r.err))
		}
	}
	if len(failed) > 0 {
		return "", httpfetch.NewDownloadFailed(name, fmt.Sprintf(
			"%d/%d files failed; complete log data requires all files:\n  %s",
			len(failed), len(files), strings.Join(failed, "\n  ")))
	}

	// Order matters for entry sequencing across files.
	sort.Slice(results, func(i, j int) bool { return results[i].index < results[j].index })
	emitDownloading()

	c.config.emit(httpfetch.Event{Kind: httpfetch.EventParsing, Session: name})

	sessionID := logs.NewSessionID(name, time.Now())

	var entries []logs.LogEntry
	var parseErrors []string
	for _, r := range results {
		parsed, err := c.parser.ParseDocument(r.content, r.url, sessionID, r.index)
		if err != nil {
			parseErrors = append(parseErrors, fmt.Sprintf("%s: %v", r.url, err))
			continue
		}
		entries = append(entries, parsed...)
	}
	if len(parseErrors) > 0 {
		return "", httpfetch.NewParseError(fmt.Sprintf(
			"%d/%d files failed to parse:\n  %s",
			len(parseErrors), len(results), strings.Join(parseErrors, "\n  ")), nil)
	}

	if len(entries) == 0 {
		c.logger.Warn("ingest.session.empty", "session", name, "files", len(files))
		return "", nil
	}

	session := logs.TestSession{
		ID:            sessionID,
		Name:          name,
		DirectoryPath: baseURL,
		FileCount:     len(files),
		TotalEntries:  len(entries),
		SourceType:    logs.SourceHTTP,
	}
	if err := persistSession(c.config.DBPath, &session, entries, c.logger); err != nil {
		return "", err
	}

	c.logger.Info("ingest.session.complete",
		"session", name, "id", sessionID, "files", len(files), "entries", len(entries))
	return sessionID, nil
}

// persistSession runs the write burst on its own store handle: replace
// the prior same-keyed session, insert the new one, bulk-insert entries,
// and synthesize bookmarks.
func persistSession(dbPath string, session *logs.TestSession, entries []logs.LogEntry, logger *slog.Logger) error {
	st, err := store.Open(dbPath, logger)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	if deletedID, ok, err := st.DeleteSessionByNameAndPath(session.Name, session.DirectoryPath); err != nil {
		logger.Warn("ingest.session.replace.error", "session", session.Name, "err", err)
	} else if ok {
		logger.Info("ingest.session.replaced", "session", session.Name, "previous_id", deletedID)
	}

	if err := st.CreateSession(session); err != nil {
		return err
	}

	ids, err := st.InsertEntries(entries)
	if err != nil {
		return err
	}
	for i := range ids {
		entries[i].ID = ids[i]
	}

	if _, err := bookmarks.New(st, logger).EnsureSession(session.ID); err != nil {
		logger.Warn("ingest.session.bookmarks.error", "session", session.Name, "err", err)
	}
	return nil
}

// retryRouter fans retry notifications from the shared fetcher out to
// the per-session status trackers.
type retryRouter struct {
	mu       sync.Mutex
	trackers map[string]*statusTracker
}

func (r *retryRouter) register(files []logs.SessionFile, t *statusTracker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, f := range files {
		r.trackers[f.URL] = t
	}
}

func (r *retryRouter) dispatch(url string, attempt int) {
	r.mu.Lock()
	t := r.trackers[url]
	r.mu.Unlock()
	if t != nil {
		t.retrying(url, attempt)
	}
}

// statusTracker guards the per-session file status map. Critical
// sections are pure in-memory mutation plus snapshot copies; the lock is
// never held across a progress callback.
type statusTracker struct {
	mu       sync.Mutex
	statuses map[string]*httpfetch.FileStatus
	order    []string
}

func newStatusTracker(files []logs.SessionFile) *statusTracker {
	t := &statusTracker{statuses: make(map[string]*httpfetch.FileStatus, len(files))}
	for _, f := range files {
		t.statuses[f.URL] = &httpfetch.FileStatus{FileURL: f.URL, Status: httpfetch.FilePending}
		t.order = append(t.order, f.URL)
	}
	return t
}

func (t *statusTracker) set(url string, state httpfetch.FileState, errMsg string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if fs, ok := t.statuses[url]; ok {
		fs.Status = state
		fs.ErrorMessage = errMsg
	}
}

// retrying marks a file as retrying and bumps its attempt counter; wired
// into the fetcher's retry hook.
func (t *statusTracker) retrying(url string, attempt int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if fs, ok := t.statuses[url]; ok {
		fs.Status = httpfetch.FileRetrying
		fs.RetryCount = attempt
	}
}

// snapshot copies the current status vector out under the lock so the
// progress callback runs without it.
func (t *statusTracker) snapshot() ([]httpfetch.FileStatus, int, int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	files := make([]httpfetch.FileStatus, 0, len(t.order))
	completed, failed := 0, 0
	for _, url := range t.order {
		fs := *t.statuses[url]
		files = append(files, fs)
		switch fs.Status {
		case httpfetch.FileCompleted:
			completed++
		case httpfetch.FileFailed:
			failed++
		}
	}
	return files, completed, failed
}
