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
	"log/slog"
	"sort"

	"github.com/kraklabs/logterm/pkg/httpfetch"
	"github.com/kraklabs/logterm/pkg/logs"
	"github.com/kraklabs/logterm/pkg/store"
)

// ScanHTTP probes an HTTP directory listing without downloading file
// bodies: it reports each session group found, whether a matching
// session is already loaded, and the loaded session's entry count as the
// estimate for re-ingest.
func ScanHTTP(ctx context.Context, baseURL, dbPath string, logger *slog.Logger) ([]logs.ScanResult, error) {
	if logger == nil {
		logger = slog.Default()
	}

	fetcher, err := httpfetch.NewFetcher(baseURL, logger)
	if err != nil {
		return nil, err
	}

	listing, err := fetcher.FetchListing(ctx)
	if err != nil {
		return nil, err
	}
	urls, err := httpfetch.ParseDirectoryListing(listing, fetcher.BaseURL())
	if err != nil {
		return nil, err
	}

	groups := logs.GroupSessionFiles(urls)
	if len(groups) == 0 {
		return nil, nil
	}

	st, err := store.Open(dbPath, logger)
	if err != nil {
		return nil, err
	}
	defer st.Close()

	normalized := fetcher.BaseURL().String()

	results := make([]logs.ScanResult, 0, len(groups))
	for name, files := range groups {
		sr := logs.ScanResult{TestName: name, FileCount: len(files)}
		if sess, ok, err := st.FindSessionByNameAndPath(name, normalized); err != nil {
			return nil, err
		} else if ok {
			sr.IsLoaded = true
			sr.ExistingSessionID = sess.ID
			sr.EstimatedEntries = sess.TotalEntries
		}
		results = append(results, sr)
	}

	sort.Slice(results, func(i, j int) bool { return results[i].TestName < results[j].TestName })

	logger.Info("ingest.scan.complete", "url", normalized, "sessions", len(results))
	return results, nil
}
