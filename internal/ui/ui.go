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

// Package ui provides colorized terminal output helpers for the CLI.
package ui

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

var (
	headerColor  = color.New(color.FgCyan, color.Bold)
	subColor     = color.New(color.FgCyan)
	successColor = color.New(color.FgGreen)
	warningColor = color.New(color.FgYellow)
	errorColor   = color.New(color.FgRed, color.Bold)
	labelColor   = color.New(color.Bold)
	dimColor     = color.New(color.Faint)
	countColor   = color.New(color.FgMagenta)
)

// InitColors enables or disables color output. Colors are disabled when
// requested, or automatically when stdout is not a terminal.
func InitColors(noColor bool) {
	if noColor || !isatty.IsTerminal(os.Stdout.Fd()) {
		color.NoColor = true
	}
}

// Header prints a top-level section header.
func Header(text string) {
	fmt.Println()
	headerColor.Println(text)
}

// SubHeader prints a secondary section header.
func SubHeader(text string) {
	subColor.Println(text)
}

// Success prints a success line with a check mark.
func Success(text string) {
	successColor.Printf("✓ %s\n", text)
}

// Successf prints a formatted success line.
func Successf(format string, args ...any) {
	Success(fmt.Sprintf(format, args...))
}

// Info prints an informational line.
func Info(text string) {
	fmt.Println(text)
}

// Infof prints a formatted informational line.
func Infof(format string, args ...any) {
	fmt.Printf(format+"\n", args...)
}

// Warning prints a warning line to stderr.
func Warning(text string) {
	warningColor.Fprintf(os.Stderr, "! %s\n", text)
}

// Warningf prints a formatted warning line to stderr.
func Warningf(format string, args ...any) {
	Warning(fmt.Sprintf(format, args...))
}

// Error prints an error line to stderr.
func Error(text string) {
	errorColor.Fprintf(os.Stderr, "✗ %s\n", text)
}

// Label renders a bold field label.
func Label(text string) string {
	return labelColor.Sprint(text)
}

// DimText renders de-emphasized text.
func DimText(text string) string {
	return dimColor.Sprint(text)
}

// CountText renders a numeric count.
func CountText(n int) string {
	return countColor.Sprintf("%d", n)
}
