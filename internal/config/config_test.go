// Copyright (c) 2025-2026, the DriveMind contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCreatesDefaultConfig(t *testing.T) {
	dir := t.TempDir()

	cfg, err := New(dir, "test-version")
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "config.toml"), cfg.ConfigPath())
	_, err = os.Stat(cfg.ConfigPath())
	require.NoError(t, err, "default config file should be written")

	assert.Equal(t, "test-version", cfg.Config.Version)
	assert.Equal(t, "localhost", cfg.Config.Host)
	assert.Equal(t, 7490, cfg.Config.Port)
	assert.Equal(t, "INFO", cfg.Config.LogLevel)
	assert.False(t, cfg.Config.MetricsEnabled)
	assert.Equal(t, 3, cfg.Config.ScanMaxRetries)
	assert.Equal(t, 1000, cfg.Config.ScanPageSize)
	assert.Equal(t, 15, cfg.Config.ScanJobTimeoutMinutes)
	assert.Equal(t, 30, cfg.Config.ScanRetentionDays)
	assert.Equal(t, 10.0, cfg.Config.DriveRequestsPerSec)

	// Database lands next to the config file unless overridden.
	assert.Equal(t, dir, cfg.Config.DataDir)
	assert.Equal(t, filepath.Join(dir, "drivemind.db"), cfg.Config.DatabasePath)
}

func TestNewReadsExistingConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
host = "0.0.0.0"
port = 9000
metricsEnabled = true
scanMaxRetries = 5
dataDir = "/var/lib/drivemind"
`), 0644))

	cfg, err := New(path, "v1.0.0")
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Config.Host)
	assert.Equal(t, 9000, cfg.Config.Port)
	assert.True(t, cfg.Config.MetricsEnabled)
	assert.Equal(t, 5, cfg.Config.ScanMaxRetries)
	assert.Equal(t, "/var/lib/drivemind", cfg.Config.DataDir)
	assert.Equal(t, filepath.Join("/var/lib/drivemind", "drivemind.db"), cfg.Config.DatabasePath)
}

func TestNewEnvironmentOverride(t *testing.T) {
	t.Setenv("DRIVEMIND_PORT", "8123")
	t.Setenv("DRIVEMIND_LOGLEVEL", "DEBUG")

	cfg, err := New(t.TempDir(), "dev")
	require.NoError(t, err)

	assert.Equal(t, 8123, cfg.Config.Port)
	assert.Equal(t, "DEBUG", cfg.Config.LogLevel)
}

func TestNewRejectsInvalidPort(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`port = 0`), 0644))

	_, err := New(path, "dev")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "port")
}
