// Copyright (c) 2025-2026, the DriveMind contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package domain

import (
	"errors"
	"strings"
)

// Config represents the application configuration.
type Config struct {
	Version string

	Host string `toml:"host" mapstructure:"host"`
	Port int    `toml:"port" mapstructure:"port"`

	LogLevel      string `toml:"logLevel" mapstructure:"logLevel"`
	LogPath       string `toml:"logPath" mapstructure:"logPath"`
	LogMaxSize    int    `toml:"logMaxSize" mapstructure:"logMaxSize"`
	LogMaxBackups int    `toml:"logMaxBackups" mapstructure:"logMaxBackups"`

	DataDir      string `toml:"dataDir" mapstructure:"dataDir"`
	DatabasePath string `toml:"databasePath" mapstructure:"databasePath"`

	MetricsEnabled bool `toml:"metricsEnabled" mapstructure:"metricsEnabled"`

	// Google OAuth client used to refresh stored Drive credentials.
	GoogleClientID     string `toml:"googleClientId" mapstructure:"googleClientId"`
	GoogleClientSecret string `toml:"googleClientSecret" mapstructure:"googleClientSecret"`

	// Scan orchestrator tuning.
	ScanMaxRetries        int     `toml:"scanMaxRetries" mapstructure:"scanMaxRetries"`
	ScanPageSize          int     `toml:"scanPageSize" mapstructure:"scanPageSize"`
	ScanJobTimeoutMinutes int     `toml:"scanJobTimeoutMinutes" mapstructure:"scanJobTimeoutMinutes"`
	ScanRetentionDays     int     `toml:"scanRetentionDays" mapstructure:"scanRetentionDays"`
	DriveRequestsPerSec   float64 `toml:"driveRequestsPerSec" mapstructure:"driveRequestsPerSec"`
}

// Validate checks settings that have no usable fallback.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return errors.New("port must be between 1 and 65535")
	}
	if strings.TrimSpace(c.Host) == "" {
		return errors.New("host is required")
	}
	return nil
}
