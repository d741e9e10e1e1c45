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
	"reflect"
	"sort"
	"testing"
)

const apacheListing = `<!DOCTYPE HTML PUBLIC "-//W3C//DTD HTML 3.2 Final//EN">
<html>
<head><title>Index of /logs</title></head>
<body>
<h1>Index of /logs</h1>
<table>
  <tr><th><a href="?C=N;O=D">Name</a></th><th><a href="?C=M;O=A">Last modified</a></th></tr>
  <tr><td><a href="../">Parent Directory</a></td><td>&nbsp;</td></tr>
  <tr><td><a href="TestEnableTcpdump_ID_1---0.html">TestEnableTcpdump_ID_1---0.html</a></td><td>2025-01-15 10:30</td></tr>
  <tr><td><a href="TestEnableTcpdump_ID_1---1.html">TestEnableTcpdump_ID_1---1.html</a></td><td>2025-01-15 10:31</td></tr>
  <tr><td><a href="subdir/">subdir/</a></td><td>2025-01-15 10:32</td></tr>
</table>
</body></html>`

func TestParseDirectoryListing_Apache(t *testing.T) {
	base, err := NormalizeBaseURL("http://example.com/logs/")
	if err != nil {
		t.Fatalf("NormalizeBaseURL failed: %v", err)
	}

	urls, err := ParseDirectoryListing(apacheListing, base)
	if err != nil {
		t.Fatalf("ParseDirectoryListing failed: %v", err)
	}

	sort.Strings(urls)
	want := []string{
		"http://example.com/logs/TestEnableTcpdump_ID_1---0.html",
		"http://example.com/logs/TestEnableTcpdump_ID_1---1.html",
	}
	if !reflect.DeepEqual(urls, want) {
		t.Errorf("urls = %v, want %v", urls, want)
	}
}

func TestParseDirectoryListing_BaseWithoutTrailingSlash(t *testing.T) {
	base, err := NormalizeBaseURL("http://example.com/logs")
	if err != nil {
		t.Fatalf("NormalizeBaseURL failed: %v", err)
	}
	if base.Path != "/logs/" {
		t.Fatalf("normalized path = %q, want /logs/", base.Path)
	}

	urls, err := ParseDirectoryListing(apacheListing, base)
	if err != nil {
		t.Fatalf("ParseDirectoryListing failed: %v", err)
	}
	if len(urls) != 2 {
		t.Fatalf("expected 2 urls, got %v", urls)
	}
}

func TestParseDirectoryListing_RejectsEscapingLinks(t *testing.T) {
	html := `<html><body>
	  <a href="../escape.html">up</a>
	  <a href="/other/abs.html">abs</a>
	  <a href="ok.html">ok</a>
	</body></html>`

	base, _ := NormalizeBaseURL("http://example.com/logs/")
	urls, err := ParseDirectoryListing(html, base)
	if err != nil {
		t.Fatalf("ParseDirectoryListing failed: %v", err)
	}

	want := []string{"http://example.com/logs/ok.html"}
	if !reflect.DeepEqual(urls, want) {
		t.Errorf("urls = %v, want %v (links escaping the base must be dropped)", urls, want)
	}
}

func TestNormalizeBaseURL_Invalid(t *testing.T) {
	if _, err := NormalizeBaseURL("not a url"); err == nil {
		t.Error("expected error for URL without scheme")
	}
	if _, err := NormalizeBaseURL("://bad"); err == nil {
		t.Error("expected error for malformed URL")
	}
}
