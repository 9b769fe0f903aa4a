// Copyright (c) 2025-2026, the DriveMind contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package scan

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/VT-TyR/drivemind/internal/database"
	"github.com/VT-TyR/drivemind/internal/models"
)

func TestIndexWriterPersistsInBatches(t *testing.T) {
	db, err := database.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.Close()
	})
	store := models.NewFileIndexStore(db)
	ctx := context.Background()

	var entries []*models.FileIndexEntry
	for i := 0; i < 250; i++ {
		entries = append(entries, &models.FileIndexEntry{
			FileID:   fmt.Sprintf("f%d", i),
			Name:     fmt.Sprintf("file-%d", i),
			MimeType: "text/plain",
			Size:     int64(i + 1),
		})
	}

	writer := NewIndexWriter(store, 100)
	created, updated, err := writer.Persist(ctx, "owner-1", "scan-1", entries)
	require.NoError(t, err)
	assert.Equal(t, 250, created)
	assert.Equal(t, 0, updated)

	count, _, err := store.CountByOwner(ctx, "owner-1")
	require.NoError(t, err)
	assert.Equal(t, int64(250), count)

	// Re-run of the same scan is pure updates, idempotent on row count.
	created, updated, err = writer.Persist(ctx, "owner-1", "scan-2", entries)
	require.NoError(t, err)
	assert.Equal(t, 0, created)
	assert.Equal(t, 250, updated)

	count, _, err = store.CountByOwner(ctx, "owner-1")
	require.NoError(t, err)
	assert.Equal(t, int64(250), count)
}

func TestIndexWriterEmptyInput(t *testing.T) {
	writer := NewIndexWriter(nil, 0)

	created, updated, err := writer.Persist(context.Background(), "owner-1", "scan-1", nil)
	require.NoError(t, err)
	assert.Zero(t, created)
	assert.Zero(t, updated)
}
