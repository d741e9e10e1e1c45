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

package logs

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Parser extracts log entries from HTML-rendered log documents.
//
// The log format is author-controlled HTML with class hints on the cells
// (date, level, message, stack), so selection is class-based and robust
// to column reordering and optional columns. A malformed row is dropped,
// never fatal.
type Parser struct {
	logger *slog.Logger
}

// NewParser creates a log document parser.
func NewParser(logger *slog.Logger) *Parser {
	if logger == nil {
		logger = slog.Default()
	}
	return &Parser{logger: logger}
}

// ParseDocument parses one HTML log document into its ordered entry
// sequence. Entry IDs are left unassigned; LineNumber is the 0-based row
// ordinal in the document, advancing on skipped rows too.
func (p *Parser) ParseDocument(html, filePath, sessionID string, fileIndex int) ([]LogEntry, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	table := doc.Find("table").First()
	if table.Length() == 0 {
		return nil, fmt.Errorf("no log table in %s", filePath)
	}

	var entries []LogEntry
	lineNumber := 0

	table.Find("tr").Each(func(_ int, row *goquery.Selection) {
		defer func() { lineNumber++ }()

		// Header rows carry <th>.
		if row.Find("th").Length() > 0 {
			return
		}

		entry, ok := p.extractRow(row)
		if !ok {
			return
		}

		entry.TestSessionID = sessionID
		entry.FilePath = filePath
		entry.FileIndex = fileIndex
		entry.LineNumber = lineNumber
		entries = append(entries, entry)
	})

	p.logger.Debug("logs.parse.document",
		"file", filePath,
		"file_index", fileIndex,
		"entries", len(entries),
		"rows", lineNumber,
	)

	return entries, nil
}

// extractRow pulls the tagged cells out of one data row. Returns ok=false
// for rows that must be skipped (empty timestamp or a repeated header).
func (p *Parser) extractRow(row *goquery.Selection) (LogEntry, bool) {
	cells := row.Find("td")
	if cells.Length() == 0 {
		return LogEntry{}, false
	}

	dateCells := cells.Filter("td.date")
	var timestamp string
	if dateCells.Length() > 0 {
		timestamp = strings.TrimSpace(dateCells.First().Text())
	} else {
		timestamp = strings.TrimSpace(cells.First().Text())
	}
	if timestamp == "" || timestamp == "Timestamp" {
		return LogEntry{}, false
	}

	level := StripLevelBrackets(strings.TrimSpace(cellText(cells, "level")))
	message := strings.TrimSpace(cellText(cells, "message"))

	stack := ""
	cells.Filter("td.stack").EachWithBreak(func(_ int, c *goquery.Selection) bool {
		if _, hidden := c.Attr("hidden"); hidden {
			stack = strings.TrimSpace(c.Text())
			return false
		}
		return true
	})

	return LogEntry{
		Timestamp: timestamp,
		Level:     level,
		Message:   message,
		Stack:     stack,
	}, true
}

// cellText returns the text of the first cell carrying the given class
// token, or "" when no cell is tagged with it.
func cellText(cells *goquery.Selection, class string) string {
	return cells.Filter("td." + class).First().Text()
}

// StripLevelBrackets removes at most one leading '[' and one trailing ']'
// from a level token: "[INFO]" becomes "INFO", "[[X]]" becomes "[X]".
func StripLevelBrackets(level string) string {
	level = strings.TrimPrefix(level, "[")
	return strings.TrimSuffix(level, "]")
}
