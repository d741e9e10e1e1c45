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
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// NormalizeBaseURL parses a listing base URL, ensuring its path ends
// with '/'. Relative hrefs resolve against this normalized form.
func NormalizeBaseURL(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, NewInvalidURL(fmt.Sprintf("%s: %v", raw, err), err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, NewInvalidURL(raw, nil)
	}
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	return u, nil
}

// ParseDirectoryListing extracts candidate file URLs from an Apache-style
// index page. Navigation links (parent dir, sort queries, subdirectories)
// are rejected, and resolved URLs that escape the listed directory are
// dropped.
func ParseDirectoryListing(html string, base *url.URL) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, NewParseError("directory listing html", err)
	}

	var urls []string
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		if href == "../" || strings.HasPrefix(href, "../") || strings.HasPrefix(href, "?") {
			return
		}
		if strings.HasSuffix(href, "/") {
			return
		}

		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		resolved := base.ResolveReference(ref)

		// Keep only files inside the listed directory.
		if !strings.HasPrefix(resolved.Path, base.Path) {
			return
		}

		urls = append(urls, resolved.String())
	})

	return urls, nil
}
