// Copyright (c) 2025-2026, the DriveMind contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package database

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCreatesSchema(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	db, err := New(dbPath)
	require.NoError(t, err, "Failed to initialize database")
	defer db.Close()

	tables := []string{"scan_jobs", "file_index", "drive_credentials", "migrations"}
	for _, table := range tables {
		var count int
		err := db.Conn().QueryRow(`
			SELECT COUNT(*) FROM sqlite_master
			WHERE type = 'table' AND name = ?
		`, table).Scan(&count)
		require.NoError(t, err)
		assert.Equal(t, 1, count, "table %s should exist", table)
	}
}

func TestMigrationsAreIdempotentAcrossReopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	db, err := New(dbPath)
	require.NoError(t, err)

	_, err = db.Conn().Exec(`
		INSERT INTO scan_jobs (id, owner_id, status, type, progress, config)
		VALUES ('job-1', 'owner-1', 'pending', 'drive_scan', '{}', '{}')
	`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	// Reopening must replay nothing and keep the data.
	db, err = New(dbPath)
	require.NoError(t, err)
	defer db.Close()

	var count int
	require.NoError(t, db.Conn().QueryRow(`SELECT COUNT(*) FROM scan_jobs`).Scan(&count))
	assert.Equal(t, 1, count)

	var applied int
	require.NoError(t, db.Conn().QueryRow(`SELECT COUNT(*) FROM migrations`).Scan(&applied))
	assert.Equal(t, 1, applied)
}

func TestScanJobsStatusConstraint(t *testing.T) {
	db, err := New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Conn().Exec(`
		INSERT INTO scan_jobs (id, owner_id, status, type, progress, config)
		VALUES ('job-1', 'owner-1', 'bogus', 'drive_scan', '{}', '{}')
	`)
	require.Error(t, err, "unknown status values must be rejected")

	for _, status := range []string{"pending", "running", "completed", "failed", "cancelled", "chained"} {
		_, err = db.Conn().Exec(`
			INSERT INTO scan_jobs (id, owner_id, status, type, progress, config)
			VALUES (?, 'owner-1', ?, 'drive_scan', '{}', '{}')
		`, "job-"+status, status)
		assert.NoError(t, err, "status %s should be accepted", status)
	}
}

func TestFileIndexCompositeKey(t *testing.T) {
	db, err := New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	defer db.Close()

	insert := `
		INSERT INTO file_index (owner_id, file_id, name, mime_type, size, version, last_scan_id)
		VALUES (?, ?, 'a', 'text/plain', 1, 1, 'scan-1')
	`
	_, err = db.Conn().Exec(insert, "owner-1", "f1")
	require.NoError(t, err)

	// Same file for another owner is fine; same pair is not.
	_, err = db.Conn().Exec(insert, "owner-2", "f1")
	require.NoError(t, err)

	_, err = db.Conn().Exec(insert, "owner-1", "f1")
	require.Error(t, err)
}

func TestConnectionPragmas(t *testing.T) {
	db, err := New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	defer db.Close()

	var journalMode string
	require.NoError(t, db.Conn().QueryRow(`PRAGMA journal_mode`).Scan(&journalMode))
	assert.Equal(t, "wal", journalMode)

	var foreignKeys int
	require.NoError(t, db.Conn().QueryRow(`PRAGMA foreign_keys`).Scan(&foreignKeys))
	assert.Equal(t, 1, foreignKeys)
}
