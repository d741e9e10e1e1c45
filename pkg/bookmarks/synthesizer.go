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

// Package bookmarks synthesizes navigation bookmarks from anchor
// patterns in ingested log entries: failure suffixes, step markers,
// ###...### author anchors, and bare MARKER rows.
package bookmarks

import (
	"log/slog"
	"regexp"
	"strings"

	"github.com/kraklabs/logterm/pkg/logs"
	"github.com/kraklabs/logterm/pkg/store"
)

// Bookmark colors assigned by the synthesizer.
const (
	// ColorFailure marks failure anchors (red).
	ColorFailure = "#F56C6C"
	// ColorStep marks step markers (turquoise).
	ColorStep = "#00CED1"
)

const (
	failSuffix = "[FAIL]"
	stepToken  = "[STEP"
	markerLvl  = "MARKER"
)

var anchorPattern = regexp.MustCompile(`###(.+?)###`)

// priority orders the anchor tiers; lower value wins.
type priority int

const (
	prioNone priority = iota
	prioFailure
	prioStep
	prioAnchor
	prioMarker
)

// Result summarizes one synthesizer run.
type Result struct {
	// Created is the number of bookmarks newly created.
	Created int
	// Upgraded is the number of existing bookmarks rewritten in place.
	Upgraded int
}

// Synthesizer detects anchors and writes bookmarks. Running it twice
// over the same session yields the same final bookmark set.
type Synthesizer struct {
	store  *store.Store
	logger *slog.Logger
}

// New creates a synthesizer over the given store.
func New(st *store.Store, logger *slog.Logger) *Synthesizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Synthesizer{store: st, logger: logger}
}

// EnsureSession scans a session's anchor candidates and synthesizes
// bookmarks by priority. Failure and step anchors upgrade an existing
// bookmark in place when its color disagrees; weaker anchors never touch
// an existing bookmark, so re-runs neither duplicate nor downgrade.
func (s *Synthesizer) EnsureSession(sessionID string) (Result, error) {
	entries, err := s.store.AnchorCandidates(sessionID)
	if err != nil {
		return Result{}, err
	}

	var res Result
	for i := range entries {
		entry := &entries[i]
		if entry.ID == 0 {
			continue
		}

		prio, title, color := classify(entry.Level, entry.Message)
		if prio == prioNone {
			continue
		}

		existing, ok, err := s.store.BookmarkByEntry(entry.ID)
		if err != nil {
			return res, err
		}

		switch {
		case !ok:
			b := logs.Bookmark{LogEntryID: entry.ID, Title: title, Color: color}
			if _, err := s.store.AddBookmark(&b); err != nil {
				return res, err
			}
			res.Created++
		case (prio == prioFailure || prio == prioStep) && existing.Color != color:
			if err := s.store.UpdateBookmarkAnchor(existing.ID, title, color); err != nil {
				return res, err
			}
			res.Upgraded++
		}
	}

	s.logger.Info("bookmarks.ensure.complete",
		"session", sessionID,
		"candidates", len(entries),
		"created", res.Created,
		"upgraded", res.Upgraded,
	)
	return res, nil
}

// classify assigns an entry to its highest-priority anchor tier.
//
// Failure beats step beats ###...### beats bare MARKER. A ###...###
// match is suppressed on rows that carry the failure suffix or the step
// token; those rows belong to the stronger tiers.
func classify(level, message string) (priority, string, string) {
	if strings.HasSuffix(message, failSuffix) {
		return prioFailure, "Failure", ColorFailure
	}

	hasStep := strings.Contains(message, stepToken)
	if level == markerLvl && hasStep {
		return prioStep, message, ColorStep
	}

	if !hasStep {
		if m := anchorPattern.FindStringSubmatch(message); m != nil {
			if title := strings.TrimSpace(m[1]); title != "" {
				return prioAnchor, title, ""
			}
		}
	}

	if level == markerLvl {
		return prioMarker, message, ""
	}

	return prioNone, "", ""
}
