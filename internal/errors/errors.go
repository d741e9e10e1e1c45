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

// Package errors defines user-facing CLI errors: a title, the likely
// cause, and a suggested remedy, rendered as text or JSON.
package errors

import (
	"encoding/json"
	"fmt"
	"os"
)

// Kind classifies user errors for JSON consumers.
type Kind string

// User error kinds.
const (
	KindConfig     Kind = "config"
	KindInput      Kind = "input"
	KindNetwork    Kind = "network"
	KindDatabase   Kind = "database"
	KindPermission Kind = "permission"
	KindInternal   Kind = "internal"
)

// UserError carries enough context for the user to act on a failure.
type UserError struct {
	Kind   Kind   `json:"kind"`
	Title  string `json:"title"`
	Cause  string `json:"cause"`
	Remedy string `json:"remedy"`
	Err    error  `json:"-"`
}

func (e *UserError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Title, e.Cause, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Title, e.Cause)
}

func (e *UserError) Unwrap() error { return e.Err }

func newError(kind Kind, title, cause, remedy string, err error) *UserError {
	return &UserError{Kind: kind, Title: title, Cause: cause, Remedy: remedy, Err: err}
}

// NewConfigError reports a configuration problem.
func NewConfigError(title, cause, remedy string, err error) *UserError {
	return newError(KindConfig, title, cause, remedy, err)
}

// NewInputError reports invalid command input; there is no underlying error.
func NewInputError(title, cause, remedy string) *UserError {
	return newError(KindInput, title, cause, remedy, nil)
}

// NewNetworkError reports a connectivity failure.
func NewNetworkError(title, cause, remedy string, err error) *UserError {
	return newError(KindNetwork, title, cause, remedy, err)
}

// NewDatabaseError reports a storage failure.
func NewDatabaseError(title, cause, remedy string, err error) *UserError {
	return newError(KindDatabase, title, cause, remedy, err)
}

// NewPermissionError reports a filesystem permission failure.
func NewPermissionError(title, cause, remedy string, err error) *UserError {
	return newError(KindPermission, title, cause, remedy, err)
}

// NewInternalError reports an unexpected condition.
func NewInternalError(title, cause, remedy string, err error) *UserError {
	return newError(KindInternal, title, cause, remedy, err)
}

// FatalError renders err and exits with status 1. In JSON mode the error
// is emitted as a single JSON object on stdout for machine consumers.
func FatalError(err error, jsonMode bool) {
	if jsonMode {
		ue, ok := err.(*UserError)
		if !ok {
			ue = NewInternalError("Unexpected error", err.Error(), "", err)
		}
		payload := struct {
			Error *UserError `json:"error"`
			Cause string     `json:"underlying,omitempty"`
		}{Error: ue}
		if ue.Err != nil {
			payload.Cause = ue.Err.Error()
		}
		_ = json.NewEncoder(os.Stdout).Encode(payload)
		os.Exit(1)
	}

	if ue, ok := err.(*UserError); ok {
		fmt.Fprintf(os.Stderr, "Error: %s\n", ue.Title)
		if ue.Cause != "" {
			fmt.Fprintf(os.Stderr, "  %s\n", ue.Cause)
		}
		if ue.Err != nil {
			fmt.Fprintf(os.Stderr, "  %v\n", ue.Err)
		}
		if ue.Remedy != "" {
			fmt.Fprintf(os.Stderr, "\n  %s\n", ue.Remedy)
		}
	} else {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	os.Exit(1)
}
