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

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/schollz/progressbar/v3"
	flag "github.com/spf13/pflag"

	"github.com/kraklabs/logterm/internal/errors"
	"github.com/kraklabs/logterm/internal/ui"
	"github.com/kraklabs/logterm/pkg/history"
	"github.com/kraklabs/logterm/pkg/httpfetch"
	"github.com/kraklabs/logterm/pkg/ingest"
)

// runIngest executes the 'ingest' CLI command, loading log sessions from
// an HTTP directory listing or a local directory tree into the store.
//
// Flags:
//   - --tests: Comma-separated session keys to ingest (default: all)
//   - --max-sessions: Concurrent sessions (default: 2)
//   - --max-files: Concurrent files per session (default: 4)
//   - --retries: Whole-file retry budget (default: 3)
//   - --db: Database file override
//   - --debug: Enable debug logging
//   - --metrics-addr: HTTP address for Prometheus metrics (default: disabled)
//
// Examples:
//
//	logterm ingest http://ci.example.com/runs/2025-07-31/
//	logterm ingest ./archived-logs
//	logterm ingest http://ci/runs/ --tests TestBoot_ID_4,TestShutdown_ID_2
func runIngest(args []string, configPath string, globals GlobalFlags) {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	tests := fs.String("tests", "", "Comma-separated session keys to ingest (default: all)")
	maxSessions := fs.Int("max-sessions", 0, "Concurrent sessions (default: from config)")
	maxFiles := fs.Int("max-files", 0, "Concurrent files per session (default: from config)")
	retries := fs.Int("retries", -1, "Whole-file retry budget (default: from config)")
	dbPath := fs.String("db", "", "Database file (default: from config)")
	debug := fs.Bool("debug", false, "Enable debug logging")
	metricsAddr := fs.String("metrics-addr", "", "HTTP listen address for Prometheus metrics (empty to disable)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: logterm ingest <url|directory> [options]

Description:
  Ingest HTML test-log archives into the local store. An http:// or
  https:// argument is treated as a directory listing URL: the listing
  is scanned for test-log files, files are grouped into sessions by
  test name, and each session is downloaded under bounded concurrency
  (large files in parallel Range chunks) before being parsed and
  written, replacing any prior copy with the same name and source.

  Any other argument is treated as a local directory and scanned
  recursively for .html log files.

  Re-ingesting a session deletes the prior copy only after every file
  has downloaded and parsed, so a failed download or parse leaves the
  prior copy untouched. The delete, the session insert and the entry
  insert are separate transactions; a write error between them is not
  rolled back.

Options:
`)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  # Ingest every session found at a listing
  logterm ingest http://ci.example.com/runs/2025-07-31/

  # Ingest only selected sessions
  logterm ingest http://ci/runs/ --tests TestBoot_ID_4

  # Ingest a local archive directory
  logterm ingest ./archived-logs

  # Expose download metrics while ingesting
  logterm ingest http://ci/runs/ --metrics-addr :9090

`)
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	cfg, err := LoadConfig(configPath)
	if err != nil {
		errors.FatalError(err, globals.JSON)
	}

	source := cfg.Ingest.DefaultURL
	if fs.NArg() > 0 {
		source = fs.Arg(0)
	}
	if source == "" {
		fs.Usage()
		errors.FatalError(errors.NewInputError(
			"Source argument required",
			"No listing URL or directory provided, and the config has no default_url",
			"Provide a source: logterm ingest http://ci.example.com/runs/",
		), globals.JSON)
	}

	db, err := resolveDBPath(*dbPath, cfg)
	if err != nil {
		errors.FatalError(err, globals.JSON)
	}

	logLevel := slog.LevelWarn
	if *debug || globals.Verbose >= 2 {
		logLevel = slog.LevelDebug
	} else if globals.Verbose == 1 {
		logLevel = slog.LevelInfo
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	if *metricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			srv := &http.Server{Addr: *metricsAddr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
			logger.Info("metrics.http.start", "addr", *metricsAddr, "path", "/metrics")
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Warn("metrics.http.error", "err", err)
			}
		}()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		logger.Info("shutdown.signal", "signal", sig.String())
		cancel()
	}()

	config := ingest.Config{
		DBPath:             db,
		MaxSessions:        cfg.Ingest.MaxSessions,
		MaxFilesPerSession: cfg.Ingest.MaxFilesPerSession,
		MaxRetries:         cfg.Ingest.MaxRetries,
	}
	if *maxSessions > 0 {
		config.MaxSessions = *maxSessions
	}
	if *maxFiles > 0 {
		config.MaxFilesPerSession = *maxFiles
	}
	if *retries >= 0 {
		config.MaxRetries = *retries
	}
	if *tests != "" {
		config.SelectedTests = strings.Split(*tests, ",")
	}

	if !globals.Quiet {
		config.OnProgress = newProgressRenderer().handle
	}

	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		runHTTPIngest(ctx, config, source, globals)
	} else {
		runLocalIngest(ctx, config, source, globals)
	}
}

// runHTTPIngest drives the session coordinator and reports the outcome.
func runHTTPIngest(ctx context.Context, config ingest.Config, url string, globals GlobalFlags) {
	coordinator := ingest.NewCoordinator(config, slog.Default())
	result, err := coordinator.Run(ctx, url)
	if err != nil {
		errors.FatalError(errors.NewNetworkError(
			"Ingestion failed",
			fmt.Sprintf("Could not ingest from %s", url),
			"Check the URL is reachable and serves a directory listing",
			err,
		), globals.JSON)
	}

	recordHistory(url)

	if globals.JSON {
		payload := struct {
			SessionIDs      []string `json:"session_ids"`
			Skipped         int      `json:"skipped"`
			Failed          []string `json:"failed,omitempty"`
			BytesDownloaded uint64   `json:"bytes_downloaded"`
		}{SessionIDs: result.SessionIDs, Skipped: result.Skipped, BytesDownloaded: result.BytesDownloaded}
		for _, f := range result.Failures {
			payload.Failed = append(payload.Failed, f.Session)
		}
		_ = json.NewEncoder(os.Stdout).Encode(payload)
	} else {
		ui.Header("Ingest Complete")
		ui.Infof("  Sessions loaded:  %s", ui.CountText(len(result.SessionIDs)))
		if result.Skipped > 0 {
			ui.Infof("  Sessions skipped: %s (no parseable entries)", ui.CountText(result.Skipped))
		}
		ui.Infof("  Downloaded:       %s", humanize.IBytes(result.BytesDownloaded))
		for _, f := range result.Failures {
			ui.Warningf("session %s failed: %v", f.Session, f.Err)
		}
	}

	if len(result.Failures) > 0 {
		os.Exit(1)
	}
}

// runLocalIngest drives the local directory pipeline.
func runLocalIngest(ctx context.Context, config ingest.Config, dir string, globals GlobalFlags) {
	pipeline := ingest.NewLocalPipeline(config, slog.Default())
	result, err := pipeline.Run(ctx, dir)
	if err != nil {
		errors.FatalError(errors.NewInputError(
			"Ingestion failed",
			fmt.Sprintf("Could not ingest from %s: %v", dir, err),
			"Check the directory exists and contains .html log files",
		), globals.JSON)
	}

	recordHistory(dir)

	if globals.JSON {
		payload := struct {
			SessionIDs   []string `json:"session_ids"`
			Files        int      `json:"files"`
			TotalEntries int      `json:"total_entries"`
			Skipped      int      `json:"skipped"`
			Failed       []string `json:"failed,omitempty"`
		}{SessionIDs: result.SessionIDs, Files: result.FilesProcessed, TotalEntries: result.TotalEntries, Skipped: result.Skipped}
		for _, f := range result.Failures {
			payload.Failed = append(payload.Failed, f.Session)
		}
		_ = json.NewEncoder(os.Stdout).Encode(payload)
	} else {
		ui.Header("Ingest Complete")
		ui.Infof("  Sessions loaded:  %s", ui.CountText(len(result.SessionIDs)))
		ui.Infof("  Files parsed:     %s", ui.CountText(result.FilesProcessed))
		ui.Infof("  Entries:          %s", ui.CountText(result.TotalEntries))
		for _, f := range result.Failures {
			ui.Warningf("session %s failed: %v", f.Session, f.Err)
		}
	}

	if len(result.Failures) > 0 {
		os.Exit(1)
	}
}

// recordHistory appends a successfully ingested source to the MRU list.
func recordHistory(source string) {
	path, err := historyFilePath()
	if err != nil {
		return
	}
	if err := history.New(path).Add(source); err != nil {
		slog.Default().Warn("history.save.error", "err", err)
	}
}

// progressRenderer turns progress events into a terminal progress bar.
// Events arrive from any download goroutine; rendering is serialized.
type progressRenderer struct {
	mu  sync.Mutex
	bar *progressbar.ProgressBar
}

func newProgressRenderer() *progressRenderer {
	return &progressRenderer{}
}

func (r *progressRenderer) handle(ev httpfetch.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch ev.Kind {
	case httpfetch.EventConnecting:
		fmt.Fprintln(os.Stderr, "Connecting...")
	case httpfetch.EventScanning:
		if ev.Found > 0 {
			fmt.Fprintf(os.Stderr, "Found %d log files\n", ev.Found)
		}
	case httpfetch.EventDownloading:
		st := ev.Downloading
		if r.bar == nil {
			r.bar = progressbar.NewOptions(st.TotalFiles,
				progressbar.OptionSetDescription("Downloading"),
				progressbar.OptionSetWriter(os.Stderr),
				progressbar.OptionShowCount(),
			)
		}
		_ = r.bar.Set(st.CompletedFiles + st.FailedFiles)
		r.bar.Describe(fmt.Sprintf("Downloading [%d/%d] %s",
			st.CurrentSession, st.TotalSessions, st.Speed))
	case httpfetch.EventParsing:
		fmt.Fprintf(os.Stderr, "\nParsing %s...\n", ev.Session)
	case httpfetch.EventComplete:
		if r.bar != nil {
			_ = r.bar.Finish()
			fmt.Fprintln(os.Stderr)
		}
	}
}
