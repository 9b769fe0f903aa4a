// Copyright (c) 2025-2026, the DriveMind contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package scan

import (
	"context"
	"fmt"

	"github.com/VT-TyR/drivemind/internal/models"
)

// defaultIndexBatchSize respects the store's per-write operation ceiling.
const defaultIndexBatchSize = 100

// IndexWriter persists enumerated entries into the file index in bounded
// batches. Each batch is one atomic write; batches are not atomic with each
// other, which is acceptable because upserts are idempotent and the next
// full scan completes any partial sequence.
type IndexWriter struct {
	store     *models.FileIndexStore
	batchSize int
}

// NewIndexWriter creates an IndexWriter.
func NewIndexWriter(store *models.FileIndexStore, batchSize int) *IndexWriter {
	if batchSize <= 0 {
		batchSize = defaultIndexBatchSize
	}
	return &IndexWriter{store: store, batchSize: batchSize}
}

// Persist upserts entries in batches, returning counts for whatever
// succeeded before a failing batch.
func (w *IndexWriter) Persist(ctx context.Context, ownerID, scanID string, entries []*models.FileIndexEntry) (created, updated int, err error) {
	for start := 0; start < len(entries); start += w.batchSize {
		end := start + w.batchSize
		if end > len(entries) {
			end = len(entries)
		}

		batchCreated, batchUpdated, err := w.store.UpsertBatch(ctx, ownerID, scanID, entries[start:end])
		created += batchCreated
		updated += batchUpdated
		if err != nil {
			return created, updated, fmt.Errorf("persist index batch %d-%d: %w", start, end, err)
		}
	}
	return created, updated, nil
}
