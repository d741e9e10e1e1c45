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

// FileState is the download state of one file.
type FileState string

// File download states.
const (
	FilePending     FileState = "Pending"
	FileDownloading FileState = "Downloading"
	FileCompleted   FileState = "Completed"
	FileFailed      FileState = "Failed"
	FileRetrying    FileState = "Retrying"
)

// FileStatus is a snapshot of one file's download progress.
type FileStatus struct {
	FileURL      string    `json:"file_url"`
	Status       FileState `json:"status"`
	RetryCount   int       `json:"retry_count"`
	ErrorMessage string    `json:"error_message,omitempty"`
}

// EventKind tags a progress event variant.
type EventKind string

// Progress event kinds, emitted at every pipeline state transition.
const (
	EventConnecting  EventKind = "Connecting"
	EventScanning    EventKind = "Scanning"
	EventDownloading EventKind = "Downloading"
	EventParsing     EventKind = "Parsing"
	EventComplete    EventKind = "Complete"
)

// DownloadingStatus is the aggregated status vector carried by a
// Downloading event.
type DownloadingStatus struct {
	TotalSessions  int          `json:"total_sessions"`
	CurrentSession int          `json:"current_session"`
	TotalFiles     int          `json:"total_files"`
	CompletedFiles int          `json:"completed_files"`
	FailedFiles    int          `json:"failed_files"`
	Speed          string       `json:"speed"`
	Files          []FileStatus `json:"files"`
}

// Event is one progress event. Exactly the fields relevant to Kind are
// populated: Found for Scanning, Downloading for Downloading, Session
// for Parsing.
type Event struct {
	Kind        EventKind          `json:"kind"`
	Found       int                `json:"found,omitempty"`
	Downloading *DownloadingStatus `json:"downloading,omitempty"`
	Session     string             `json:"session,omitempty"`
}

// ProgressFunc receives progress events. Implementations must be safe to
// call from any goroutine and must not block.
type ProgressFunc func(Event)
