// Copyright (c) 2025-2026, the DriveMind contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package models_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/VT-TyR/drivemind/internal/models"
)

func TestUpsertBatchCreatesThenUpdates(t *testing.T) {
	db := newTestDB(t)
	store := models.NewFileIndexStore(db)
	ctx := context.Background()

	created, updated, err := store.UpsertBatch(ctx, "owner-1", "scan-1", []*models.FileIndexEntry{
		{FileID: "f1", Name: "report.pdf", MimeType: "application/pdf", Size: 100},
		{FileID: "f2", Name: "photo.jpg", MimeType: "image/jpeg", Size: 200},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, created)
	assert.Equal(t, 0, updated)

	created, updated, err = store.UpsertBatch(ctx, "owner-1", "scan-2", []*models.FileIndexEntry{
		{FileID: "f1", Name: "report-v2.pdf", MimeType: "application/pdf", Size: 150},
		{FileID: "f3", Name: "notes.txt", MimeType: "text/plain", Size: 10},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, created)
	assert.Equal(t, 1, updated)

	entry, err := store.Get(ctx, "owner-1", "f1")
	require.NoError(t, err)
	assert.Equal(t, "report-v2.pdf", entry.Name)
	assert.Equal(t, int64(150), entry.Size)
	assert.Equal(t, "scan-2", entry.LastScanID)
}

func TestUpsertBatchMergePreservesKnownValues(t *testing.T) {
	db := newTestDB(t)
	store := models.NewFileIndexStore(db)
	ctx := context.Background()

	modified := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	_, _, err := store.UpsertBatch(ctx, "owner-1", "scan-1", []*models.FileIndexEntry{{
		FileID:       "f1",
		Name:         "report.pdf",
		MimeType:     "application/pdf",
		Size:         100,
		ModifiedTime: &modified,
		ParentID:     "folder-a",
		Checksum:     "abc123",
		Version:      7,
	}})
	require.NoError(t, err)

	// Later observation has no checksum, zero modified time, empty parent,
	// and an older version. None of those may clobber what is known.
	_, _, err = store.UpsertBatch(ctx, "owner-1", "scan-2", []*models.FileIndexEntry{{
		FileID:   "f1",
		Name:     "report.pdf",
		MimeType: "application/pdf",
		Size:     100,
		Version:  3,
	}})
	require.NoError(t, err)

	entry, err := store.Get(ctx, "owner-1", "f1")
	require.NoError(t, err)
	assert.Equal(t, "abc123", entry.Checksum)
	assert.Equal(t, "folder-a", entry.ParentID)
	assert.Equal(t, int64(7), entry.Version)
	require.NotNil(t, entry.ModifiedTime)
	assert.True(t, entry.ModifiedTime.Equal(modified))
}

func TestUpsertBatchScopedByOwner(t *testing.T) {
	db := newTestDB(t)
	store := models.NewFileIndexStore(db)
	ctx := context.Background()

	_, _, err := store.UpsertBatch(ctx, "owner-1", "scan-1", []*models.FileIndexEntry{
		{FileID: "f1", Name: "a", MimeType: "text/plain", Size: 1},
	})
	require.NoError(t, err)

	// Same file ID under a different owner is a distinct row.
	created, updated, err := store.UpsertBatch(ctx, "owner-2", "scan-1", []*models.FileIndexEntry{
		{FileID: "f1", Name: "b", MimeType: "text/plain", Size: 2},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, created)
	assert.Equal(t, 0, updated)

	count, bytes, err := store.CountByOwner(ctx, "owner-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
	assert.Equal(t, int64(1), bytes)
}

func TestUpsertBatchSkipsEmptyInput(t *testing.T) {
	db := newTestDB(t)
	store := models.NewFileIndexStore(db)

	created, updated, err := store.UpsertBatch(context.Background(), "owner-1", "scan-1", nil)
	require.NoError(t, err)
	assert.Zero(t, created)
	assert.Zero(t, updated)

	_, _, err = store.UpsertBatch(context.Background(), "", "scan-1", []*models.FileIndexEntry{{FileID: "f1"}})
	require.Error(t, err)
}

func TestListByOwnerMimeFilter(t *testing.T) {
	db := newTestDB(t)
	store := models.NewFileIndexStore(db)
	ctx := context.Background()

	_, _, err := store.UpsertBatch(ctx, "owner-1", "scan-1", []*models.FileIndexEntry{
		{FileID: "f1", Name: "a.jpg", MimeType: "image/jpeg", Size: 300},
		{FileID: "f2", Name: "b.png", MimeType: "image/png", Size: 100},
		{FileID: "f3", Name: "c.pdf", MimeType: "application/pdf", Size: 200},
	})
	require.NoError(t, err)

	images, err := store.ListByOwner(ctx, "owner-1", "image/", 10, 0)
	require.NoError(t, err)
	require.Len(t, images, 2)
	// Largest first.
	assert.Equal(t, "f1", images[0].FileID)
	assert.Equal(t, "f2", images[1].FileID)

	all, err := store.ListByOwner(ctx, "owner-1", "", 10, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestFileIndexGetNotFound(t *testing.T) {
	db := newTestDB(t)
	store := models.NewFileIndexStore(db)

	entry, err := store.Get(context.Background(), "owner-1", "missing")
	require.NoError(t, err)
	assert.Nil(t, entry)
}
