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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricBytesDownloaded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "logterm_download_bytes_total",
		Help: "Total bytes downloaded across all sessions.",
	})

	metricFilesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "logterm_download_files_total",
		Help: "Files downloaded, by terminal status.",
	}, []string{"status"})

	metricChunkRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "logterm_download_chunk_retries_total",
		Help: "Chunk download attempts that were retried.",
	})

	metricFileRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "logterm_download_file_retries_total",
		Help: "Whole-file download attempts that were retried.",
	})
)
