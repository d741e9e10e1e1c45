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

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/kraklabs/logterm/internal/errors"
)

const (
	defaultConfigDir  = ".logterm"
	defaultConfigFile = "project.yaml"
	configVersion     = "1"
)

// Config represents the .logterm/project.yaml configuration file.
type Config struct {
	Version string       `yaml:"version"`
	DBPath  string       `yaml:"db_path,omitempty"`
	Ingest  IngestConfig `yaml:"ingest"`
}

// IngestConfig contains ingestion defaults.
type IngestConfig struct {
	MaxSessions        int    `yaml:"max_sessions"`          // concurrent sessions
	MaxFilesPerSession int    `yaml:"max_files_per_session"` // concurrent files within a session
	MaxRetries         int    `yaml:"max_retries"`           // whole-file retry budget
	DefaultURL         string `yaml:"default_url,omitempty"` // listing URL used when ingest has no argument
}

// DefaultConfig returns a config with the shipping defaults.
func DefaultConfig() *Config {
	return &Config{
		Version: configVersion,
		Ingest: IngestConfig{
			MaxSessions:        2,
			MaxFilesPerSession: 4,
			MaxRetries:         3,
		},
	}
}

// LoadConfig loads configuration from the specified path. When no config
// file exists the defaults are returned; a config file is optional for
// every command.
//
// Resolution order: explicit path, LOGTERM_CONFIG_PATH, ./.logterm/project.yaml.
func LoadConfig(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = os.Getenv("LOGTERM_CONFIG_PATH")
	}
	if configPath == "" {
		configPath = ConfigPath(".")
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
	}

	data, err := os.ReadFile(configPath) //nolint:gosec // G304: Path comes from user config or discovery
	if err != nil {
		return nil, errors.NewConfigError(
			"Cannot read configuration file",
			fmt.Sprintf("Failed to read %s", configPath),
			"Check file permissions and ensure the file exists",
			err,
		)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.NewConfigError(
			"Invalid configuration format",
			"YAML parsing failed - the config file contains syntax errors",
			fmt.Sprintf("Edit %s to fix syntax errors, or run 'logterm init --force' to recreate", configPath),
			err,
		)
	}

	if cfg.Version != configVersion {
		return nil, errors.NewConfigError(
			"Unsupported configuration version",
			fmt.Sprintf("Config version '%s' is not supported (expected '%s')", cfg.Version, configVersion),
			"Run 'logterm init --force' to regenerate the configuration file",
			nil,
		)
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

// SaveConfig writes the configuration to the specified path as YAML.
func SaveConfig(cfg *Config, configPath string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return errors.NewInternalError(
			"Cannot encode configuration",
			"YAML marshaling failed unexpectedly",
			"This is a bug. Please report it with your configuration details",
			err,
		)
	}

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return errors.NewPermissionError(
			"Cannot create configuration directory",
			fmt.Sprintf("Permission denied creating %s", dir),
			"Check directory permissions or run with appropriate privileges",
			err,
		)
	}

	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return errors.NewPermissionError(
			"Cannot write configuration file",
			fmt.Sprintf("Permission denied writing to %s", configPath),
			"Check file permissions and ensure sufficient disk space",
			err,
		)
	}

	return nil
}

// ConfigPath returns <dir>/.logterm/project.yaml.
func ConfigPath(dir string) string {
	return filepath.Join(dir, defaultConfigDir, defaultConfigFile)
}

func applyDefaults(cfg *Config) {
	defaults := DefaultConfig()
	if cfg.Ingest.MaxSessions <= 0 {
		cfg.Ingest.MaxSessions = defaults.Ingest.MaxSessions
	}
	if cfg.Ingest.MaxFilesPerSession <= 0 {
		cfg.Ingest.MaxFilesPerSession = defaults.Ingest.MaxFilesPerSession
	}
	if cfg.Ingest.MaxRetries <= 0 {
		cfg.Ingest.MaxRetries = defaults.Ingest.MaxRetries
	}
}

// dataDir resolves the directory for the database and history files,
// creating it if needed.
func dataDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.NewInternalError(
			"Cannot determine home directory",
			"Operating system did not provide user home directory path",
			"Check your system configuration or set HOME environment variable",
			err,
		)
	}
	dir := filepath.Join(home, defaultConfigDir)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return "", errors.NewPermissionError(
			"Cannot create data directory",
			fmt.Sprintf("Permission denied creating %s", dir),
			"Check directory permissions",
			err,
		)
	}
	return dir, nil
}

// resolveDBPath picks the database file: --db flag, LOGTERM_DB, config,
// then ~/.logterm/logterm.db.
func resolveDBPath(flagValue string, cfg *Config) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	if env := os.Getenv("LOGTERM_DB"); env != "" {
		return env, nil
	}
	if cfg != nil && cfg.DBPath != "" {
		return cfg.DBPath, nil
	}
	dir, err := dataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "logterm.db"), nil
}

// historyFilePath returns the recent-sources file location.
func historyFilePath() (string, error) {
	dir, err := dataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "log_history.txt"), nil
}
