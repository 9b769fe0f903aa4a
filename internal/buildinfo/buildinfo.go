// Copyright (c) 2025-2026, the DriveMind contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package buildinfo exposes version information stamped at build time.
package buildinfo

import (
	"encoding/json"
	"fmt"
	"runtime"
)

// Populated via -ldflags at build time.
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// String returns a human-readable version block.
func String() string {
	return fmt.Sprintf("Version: %s\nCommit: %s\nBuild date: %s\nGo: %s %s/%s",
		Version, Commit, Date, runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

// JSON returns the version information as JSON.
func JSON() ([]byte, error) {
	return json.Marshal(map[string]string{
		"version": Version,
		"commit":  Commit,
		"date":    Date,
	})
}
