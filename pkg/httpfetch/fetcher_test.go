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

package httpfetch

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
)

// rangeLog records the requests a test server saw.
type rangeLog struct {
	mu       sync.Mutex
	ranges   []string
	getCount int
}

func (l *rangeLog) record(rangeHeader string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.getCount++
	if rangeHeader != "" {
		l.ranges = append(l.ranges, rangeHeader)
	}
}

func (l *rangeLog) snapshot() ([]string, int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.ranges...), l.getCount
}

// newRangeServer serves body at /file.html with optional Range support.
func newRangeServer(t *testing.T, body []byte, supportRange bool) (*httptest.Server, *rangeLog) {
	t.Helper()
	log := &rangeLog{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodHead:
			if supportRange {
				w.Header().Set("Accept-Ranges", "bytes")
			}
			w.Header().Set("Content-Length", strconv.Itoa(len(body)))
			w.WriteHeader(http.StatusOK)
		case http.MethodGet:
			rangeHeader := r.Header.Get("Range")
			log.record(rangeHeader)

			if supportRange && rangeHeader != "" {
				var start, end int
				if _, err := fmt.Sscanf(rangeHeader, "bytes=%d-%d", &start, &end); err != nil {
					w.WriteHeader(http.StatusBadRequest)
					return
				}
				if end >= len(body) {
					end = len(body) - 1
				}
				w.Header().Set("Content-Length", strconv.Itoa(end-start+1))
				w.WriteHeader(http.StatusPartialContent)
				_, _ = w.Write(body[start : end+1])
				return
			}

			w.Header().Set("Content-Length", strconv.Itoa(len(body)))
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write(body)
		}
	}))
	t.Cleanup(srv.Close)
	return srv, log
}

// asciiBody builds a deterministic pattern that is valid UTF-8, so the
// decoded content compares byte-for-byte with the server body.
func asciiBody(n int) []byte {
	body := make([]byte, n)
	for i := range body {
		body[i] = byte('A' + (i % 23))
	}
	return body
}

func newTestFetcher(t *testing.T, baseURL string) *Fetcher {
	t.Helper()
	f, err := NewFetcher(baseURL, nil)
	if err != nil {
		t.Fatalf("NewFetcher failed: %v", err)
	}
	return f
}

func TestFetchFile_ChunkedReassembly(t *testing.T) {
	body := asciiBody(12 * 1024 * 1024)
	srv, log := newRangeServer(t, body, true)

	f := newTestFetcher(t, srv.URL+"/")
	result, err := f.FetchFileWithRetry(context.Background(), srv.URL+"/file.html", 0)
	if err != nil {
		t.Fatalf("FetchFileWithRetry failed: %v", err)
	}

	if result.Content != string(body) {
		t.Fatal("chunked reassembly does not match server body")
	}

	ranges, _ := log.snapshot()
	want := map[string]bool{
		"bytes=0-5242879":         true,
		"bytes=5242880-10485759":  true,
		"bytes=10485760-12582911": true,
	}
	if len(ranges) != 3 {
		t.Fatalf("expected 3 range requests, got %v", ranges)
	}
	for _, r := range ranges {
		if !want[r] {
			t.Errorf("unexpected range request %q", r)
		}
	}

	if got := f.BytesDownloaded(); got != uint64(len(body)) {
		t.Errorf("bytes downloaded = %d, want %d", got, len(body))
	}
}

func TestFetchFile_SimpleBelowThreshold(t *testing.T) {
	body := asciiBody(4096)
	srv, log := newRangeServer(t, body, true)

	f := newTestFetcher(t, srv.URL+"/")
	result, err := f.FetchFileWithRetry(context.Background(), srv.URL+"/file.html", 0)
	if err != nil {
		t.Fatalf("FetchFileWithRetry failed: %v", err)
	}
	if result.Content != string(body) {
		t.Fatal("content mismatch")
	}

	ranges, gets := log.snapshot()
	if len(ranges) != 0 {
		t.Errorf("small file should not use Range requests, saw %v", ranges)
	}
	if gets != 1 {
		t.Errorf("expected one GET, got %d", gets)
	}
}

func TestFetchFile_LargeWithoutRangeSupportStreams(t *testing.T) {
	body := asciiBody(11 * 1024 * 1024)
	srv, log := newRangeServer(t, body, false)

	f := newTestFetcher(t, srv.URL+"/")
	result, err := f.FetchFileWithRetry(context.Background(), srv.URL+"/file.html", 0)
	if err != nil {
		t.Fatalf("FetchFileWithRetry failed: %v", err)
	}
	if result.Content != string(body) {
		t.Fatal("content mismatch")
	}

	ranges, gets := log.snapshot()
	if len(ranges) != 0 || gets != 1 {
		t.Errorf("expected a single plain GET, ranges=%v gets=%d", ranges, gets)
	}
}

func TestFetchFile_RetryThenSuccess(t *testing.T) {
	body := []byte("<html>ok</html>")
	var mu sync.Mutex
	failures := 1

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.Header().Set("Content-Length", strconv.Itoa(len(body)))
			w.WriteHeader(http.StatusOK)
			return
		}
		mu.Lock()
		fail := failures > 0
		if fail {
			failures--
		}
		mu.Unlock()
		if fail {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write(body)
	}))
	defer srv.Close()

	f := newTestFetcher(t, srv.URL+"/")

	var retried []int
	f.SetRetryHook(func(_ string, attempt int) { retried = append(retried, attempt) })

	result, err := f.FetchFileWithRetry(context.Background(), srv.URL+"/file.html", 2)
	if err != nil {
		t.Fatalf("FetchFileWithRetry failed: %v", err)
	}
	if result.Content != string(body) {
		t.Errorf("content = %q", result.Content)
	}
	if len(retried) != 1 || retried[0] != 1 {
		t.Errorf("retry hook calls = %v, want [1]", retried)
	}
}

func TestFetchFile_ExhaustedRetriesCarriesHistory(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	f := newTestFetcher(t, srv.URL+"/")
	_, err := f.FetchFileWithRetry(context.Background(), srv.URL+"/file.html", 1)
	if err == nil {
		t.Fatal("expected failure")
	}

	fe, ok := err.(*FetchError)
	if !ok {
		t.Fatalf("error type = %T, want *FetchError", err)
	}
	if fe.Kind != KindDownloadFailed {
		t.Errorf("kind = %v, want KindDownloadFailed", fe.Kind)
	}
	if !strings.Contains(fe.Reason, "attempt 0") || !strings.Contains(fe.Reason, "attempt 1") {
		t.Errorf("reason should carry per-attempt history: %q", fe.Reason)
	}
}

func TestFetchFile_LossyDecode(t *testing.T) {
	body := append([]byte("valid prefix "), 0xFF, 0xFE)
	srv, _ := newRangeServer(t, body, false)

	f := newTestFetcher(t, srv.URL+"/")
	result, err := f.FetchFileWithRetry(context.Background(), srv.URL+"/file.html", 0)
	if err != nil {
		t.Fatalf("download must not fail on encoding: %v", err)
	}
	if !strings.HasPrefix(result.Content, "valid prefix ") {
		t.Errorf("valid prefix lost: %q", result.Content)
	}
	if !strings.Contains(result.Content, "�") {
		t.Errorf("invalid bytes should decode to replacement runes: %q", result.Content)
	}
}

func TestFetchListing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/logs/" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`<a href="x.html">x</a>`))
	}))
	defer srv.Close()

	f := newTestFetcher(t, srv.URL+"/logs")
	listing, err := f.FetchListing(context.Background())
	if err != nil {
		t.Fatalf("FetchListing failed: %v", err)
	}
	if !strings.Contains(listing, "x.html") {
		t.Errorf("listing = %q", listing)
	}

	missing := newTestFetcher(t, srv.URL+"/absent")
	if _, err := missing.FetchListing(context.Background()); err == nil {
		t.Error("expected error for 404 listing")
	}
}

func TestBackoffFormula(t *testing.T) {
	cases := []struct {
		attempt int
		wantMS  int64
	}{
		{1, 100}, {2, 200}, {3, 400}, {4, 800},
	}
	for _, tc := range cases {
		if got := backoff(tc.attempt).Milliseconds(); got != tc.wantMS {
			t.Errorf("backoff(%d) = %dms, want %dms", tc.attempt, got, tc.wantMS)
		}
	}
}
