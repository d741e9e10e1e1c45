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

// Package httpfetch downloads HTML log archives over HTTP: directory
// listing discovery, per-file chunked Range downloads with retry, and
// global throughput tracking.
package httpfetch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

const (
	// chunkSize is the byte range requested per chunk.
	chunkSize = 5 * 1024 * 1024

	// chunkTimeout bounds every request; 60s is ample for one 5 MiB chunk.
	chunkTimeout = 60 * time.Second

	// chunkedThreshold is the minimum Content-Length for chunked mode.
	chunkedThreshold = 10 * 1024 * 1024

	// chunkConcurrency is the number of chunks in flight per file.
	chunkConcurrency = 3

	// chunkRetries is the retry budget per chunk.
	chunkRetries = 3
)

// Fetcher downloads files from an HTTP-served directory. The embedded
// HTTP client, byte counter, and speed calculator are shared across all
// sessions so displayed throughput is global; the Fetcher is safe for
// concurrent use.
type Fetcher struct {
	client  *http.Client
	baseURL *url.URL
	logger  *slog.Logger

	bytesDownloaded atomic.Uint64
	speed           *SpeedCalculator

	// onRetry, when set, observes whole-file retry attempts.
	onRetry func(fileURL string, attempt int)
}

// Result is one downloaded file after decoding.
type Result struct {
	URL             string
	Content         string
	BytesDownloaded uint64
}

// NewFetcher creates a fetcher rooted at baseURL. The URL path is
// normalized to end with '/'.
func NewFetcher(baseURL string, logger *slog.Logger) (*Fetcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	u, err := NormalizeBaseURL(baseURL)
	if err != nil {
		return nil, err
	}
	return &Fetcher{
		client:  &http.Client{Timeout: chunkTimeout},
		baseURL: u,
		logger:  logger,
		speed:   NewSpeedCalculator(),
	}, nil
}

// BaseURL returns the normalized listing base URL.
func (f *Fetcher) BaseURL() *url.URL { return f.baseURL }

// Speed returns the shared speed calculator.
func (f *Fetcher) Speed() *SpeedCalculator { return f.speed }

// BytesDownloaded returns the cumulative byte count across all downloads.
func (f *Fetcher) BytesDownloaded() uint64 { return f.bytesDownloaded.Load() }

// SetRetryHook registers an observer for whole-file retry attempts.
// Must be called before downloads start.
func (f *Fetcher) SetRetryHook(hook func(fileURL string, attempt int)) {
	f.onRetry = hook
}

// FetchListing downloads the directory listing at the base URL.
func (f *Fetcher) FetchListing(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.baseURL.String(), nil)
	if err != nil {
		return "", NewInvalidURL(f.baseURL.String(), err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return "", NewNetworkError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", NewDownloadFailed(f.baseURL.String(), fmt.Sprintf("HTTP status: %s", resp.Status))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", NewNetworkError(err)
	}
	return string(body), nil
}

// FetchFileWithRetry downloads one file, retrying the whole download up
// to maxRetries times with exponential backoff. The error returned after
// an exhausted budget carries the per-attempt history.
func (f *Fetcher) FetchFileWithRetry(ctx context.Context, fileURL string, maxRetries int) (*Result, error) {
	var history []string

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			if f.onRetry != nil {
				f.onRetry(fileURL, attempt)
			}
			wait := backoff(attempt)
			f.logger.Warn("fetch.file.retry",
				"url", fileURL, "attempt", attempt, "max_retries", maxRetries, "backoff", wait)
			metricFileRetries.Inc()
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return nil, NewNetworkError(ctx.Err())
			}
		}

		result, err := f.fetchFileOnce(ctx, fileURL, attempt)
		if err == nil {
			if attempt > 0 {
				f.logger.Info("fetch.file.retry.success", "url", fileURL, "attempt", attempt)
			}
			metricFilesTotal.WithLabelValues("completed").Inc()
			return result, nil
		}

		history = append(history, fmt.Sprintf("attempt %d: %v", attempt, err))
		f.logger.Error("fetch.file.attempt.error", "url", fileURL, "attempt", attempt, "err", err)

		if ctx.Err() != nil {
			break
		}
		if attempt == maxRetries {
			metricFilesTotal.WithLabelValues("failed").Inc()
			return nil, NewDownloadFailed(fileURL, fmt.Sprintf(
				"exhausted %d retries; error history:\n  %s",
				maxRetries, strings.Join(history, "\n  ")))
		}
	}

	metricFilesTotal.WithLabelValues("failed").Inc()
	return nil, NewDownloadFailed(fileURL, strings.Join(history, "; "))
}

// fetchFileOnce runs a single download attempt, choosing chunked or
// simple mode from the HEAD probe. The probe runs once per attempt so a
// retry re-validates range support on whichever server answers it.
func (f *Fetcher) fetchFileOnce(ctx context.Context, fileURL string, attempt int) (*Result, error) {
	contentLength, supportsRange, err := f.probe(ctx, fileURL)
	if err != nil {
		return nil, err
	}

	var buf []byte
	if contentLength >= chunkedThreshold && supportsRange {
		f.logger.Info("fetch.file.chunked",
			"url", fileURL, "attempt", attempt, "bytes", contentLength)
		buf, err = f.fetchChunked(ctx, fileURL, contentLength)
	} else {
		if contentLength >= chunkedThreshold {
			f.logger.Warn("fetch.file.no_range_support",
				"url", fileURL, "attempt", attempt, "bytes", contentLength)
		}
		buf, err = f.fetchSimple(ctx, fileURL)
	}
	if err != nil {
		return nil, err
	}

	content := f.decode(buf, fileURL)
	return &Result{URL: fileURL, Content: content, BytesDownloaded: uint64(len(buf))}, nil
}

// probe issues the HEAD request. A missing Content-Length reads as 0,
// which routes the file to simple streaming.
func (f *Fetcher) probe(ctx context.Context, fileURL string) (int64, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, fileURL, nil)
	if err != nil {
		return 0, false, NewInvalidURL(fileURL, err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return 0, false, NewNetworkError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, false, NewDownloadFailed(fileURL, fmt.Sprintf("HEAD request failed: HTTP %s", resp.Status))
	}

	contentLength := resp.ContentLength
	if contentLength < 0 {
		contentLength = 0
	}
	supportsRange := strings.EqualFold(resp.Header.Get("Accept-Ranges"), "bytes")

	f.logger.Debug("fetch.file.probe",
		"url", fileURL, "content_length", contentLength, "accept_ranges", supportsRange)

	return contentLength, supportsRange, nil
}

// fetchChunked downloads the file as concurrent Range chunks and
// reassembles them in index order. Any chunk exhausting its retry budget
// fails the whole file.
func (f *Fetcher) fetchChunked(ctx context.Context, fileURL string, contentLength int64) ([]byte, error) {
	totalChunks := (contentLength + chunkSize - 1) / chunkSize

	chunks := make([][]byte, totalChunks)
	sem := semaphore.NewWeighted(chunkConcurrency)
	g, gctx := errgroup.WithContext(ctx)

	for i := int64(0); i < totalChunks; i++ {
		g.Go(func() error {
			if err := sem.Acquire(gctx, 1); err != nil {
				return NewNetworkError(err)
			}
			defer sem.Release(1)

			start := i * chunkSize
			end := min(start+chunkSize-1, contentLength-1)

			data, err := f.fetchChunkWithRetry(gctx, fileURL, i, start, end)
			if err != nil {
				return NewDownloadFailed(fileURL,
					fmt.Sprintf("chunk %d/%d: %v", i+1, totalChunks, err))
			}

			f.recordBytes(len(data))
			chunks[i] = data
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	buf := make([]byte, 0, contentLength)
	for _, chunk := range chunks {
		buf = append(buf, chunk...)
	}
	return buf, nil
}

// fetchChunkWithRetry is the per-chunk retry loop. Only 206 Partial
// Content counts as success; everything else is retryable.
func (f *Fetcher) fetchChunkWithRetry(ctx context.Context, fileURL string, index, start, end int64) ([]byte, error) {
	var lastErr error

	for attempt := 0; attempt <= chunkRetries; attempt++ {
		if attempt > 0 {
			metricChunkRetries.Inc()
			select {
			case <-time.After(backoff(attempt)):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		data, err := f.fetchChunk(ctx, fileURL, start, end)
		if err == nil {
			return data, nil
		}
		lastErr = err
		f.logger.Warn("fetch.chunk.error",
			"url", fileURL, "chunk", index, "attempt", attempt, "err", err)

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}

	return nil, lastErr
}

func (f *Fetcher) fetchChunk(ctx context.Context, fileURL string, start, end int64) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return nil, NewInvalidURL(fileURL, err)
	}
	req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", start, end))

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, NewNetworkError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusPartialContent {
		return nil, NewDownloadFailed(fileURL,
			fmt.Sprintf("expected 206 Partial Content, got %s", resp.Status))
	}

	// A short body is accepted: the server may hit end-of-file mid-range.
	return io.ReadAll(resp.Body)
}

// fetchSimple downloads the file in one GET, streaming the body.
func (f *Fetcher) fetchSimple(ctx context.Context, fileURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return nil, NewInvalidURL(fileURL, err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, NewNetworkError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, NewDownloadFailed(fileURL, fmt.Sprintf("HTTP %s", resp.Status))
	}

	capacity := resp.ContentLength
	if capacity < 0 {
		capacity = 0
	}
	buf := make([]byte, 0, capacity)

	reader := make([]byte, 64*1024)
	for {
		n, err := resp.Body.Read(reader)
		if n > 0 {
			buf = append(buf, reader[:n]...)
			f.recordBytes(n)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, NewNetworkError(err)
		}
	}

	return buf, nil
}

// recordBytes feeds the shared counter, the speed sampler, and metrics.
func (f *Fetcher) recordBytes(n int) {
	total := f.bytesDownloaded.Add(uint64(n))
	f.speed.AddSample(total)
	metricBytesDownloaded.Add(float64(n))
}

// decode attempts strict UTF-8 and falls back to replacing invalid
// sequences; a download never fails on encoding.
func (f *Fetcher) decode(buf []byte, fileURL string) string {
	if utf8.Valid(buf) {
		return string(buf)
	}
	f.logger.Warn("fetch.file.decode.lossy", "url", fileURL, "bytes", len(buf))
	return strings.ToValidUTF8(string(buf), string(utf8.RuneError))
}

// backoff returns 100ms * 2^(attempt-1) for attempt >= 1.
func backoff(attempt int) time.Duration {
	return 100 * time.Millisecond << (attempt - 1)
}
