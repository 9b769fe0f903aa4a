// Copyright (c) 2025-2026, the DriveMind contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package models

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/VT-TyR/drivemind/internal/dbinterface"
)

// FileIndexEntry is one observed (owner, remote file) pair. Entries are
// created on first observation and merged on every later one; the
// orchestrator never deletes them.
type FileIndexEntry struct {
	OwnerID      string     `json:"ownerId"`
	FileID       string     `json:"fileId"`
	Name         string     `json:"name"`
	MimeType     string     `json:"mimeType"`
	Size         int64      `json:"size"`
	ModifiedTime *time.Time `json:"modifiedTime,omitempty"`
	ParentID     string     `json:"parentId,omitempty"`
	Checksum     string     `json:"checksum,omitempty"`
	Version      int64      `json:"version"`
	LastScanID   string     `json:"lastScanId"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// FileIndexStore handles database operations for the file index.
type FileIndexStore struct {
	db dbinterface.TxBeginner
}

// NewFileIndexStore creates a new FileIndexStore.
func NewFileIndexStore(db dbinterface.TxBeginner) *FileIndexStore {
	return &FileIndexStore{db: db}
}

// UpsertBatch writes one batch of entries as a single transaction with merge
// semantics: an empty checksum or zero modified time in the new entry
// preserves the previously indexed value. Returns how many entries were
// created versus updated.
func (s *FileIndexStore) UpsertBatch(ctx context.Context, ownerID, scanID string, entries []*FileIndexEntry) (created, updated int, err error) {
	if len(entries) == 0 {
		return 0, 0, nil
	}
	if strings.TrimSpace(ownerID) == "" {
		return 0, 0, errors.New("ownerID is required")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("begin upsert transaction: %w", err)
	}
	defer tx.Rollback()

	existing, err := existingFileIDs(ctx, tx, ownerID, entries)
	if err != nil {
		return 0, 0, err
	}

	for _, entry := range entries {
		if entry == nil || entry.FileID == "" {
			continue
		}

		var checksum any
		if entry.Checksum != "" {
			checksum = entry.Checksum
		}
		var modifiedTime any
		if entry.ModifiedTime != nil && !entry.ModifiedTime.IsZero() {
			modifiedTime = entry.ModifiedTime.UTC()
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO file_index
				(owner_id, file_id, name, mime_type, size, modified_time, parent_id, checksum, version, last_scan_id)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(owner_id, file_id) DO UPDATE SET
				name = excluded.name,
				mime_type = excluded.mime_type,
				size = excluded.size,
				modified_time = COALESCE(excluded.modified_time, file_index.modified_time),
				parent_id = CASE WHEN excluded.parent_id != '' THEN excluded.parent_id ELSE file_index.parent_id END,
				checksum = COALESCE(excluded.checksum, file_index.checksum),
				version = MAX(excluded.version, file_index.version),
				last_scan_id = excluded.last_scan_id,
				updated_at = CURRENT_TIMESTAMP
		`, ownerID, entry.FileID, entry.Name, entry.MimeType, entry.Size,
			modifiedTime, entry.ParentID, checksum, entry.Version, scanID); err != nil {
			return created, updated, fmt.Errorf("upsert file %s: %w", entry.FileID, err)
		}

		if _, ok := existing[entry.FileID]; ok {
			updated++
		} else {
			created++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, 0, fmt.Errorf("commit upsert transaction: %w", err)
	}
	return created, updated, nil
}

func existingFileIDs(ctx context.Context, tx *sql.Tx, ownerID string, entries []*FileIndexEntry) (map[string]struct{}, error) {
	ids := make([]any, 0, len(entries)+1)
	ids = append(ids, ownerID)
	for _, entry := range entries {
		if entry != nil && entry.FileID != "" {
			ids = append(ids, entry.FileID)
		}
	}
	if len(ids) == 1 {
		return map[string]struct{}{}, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(ids)-1), ", ")
	rows, err := tx.QueryContext(ctx, `
		SELECT file_id FROM file_index
		WHERE owner_id = ? AND file_id IN (`+placeholders+`)
	`, ids...)
	if err != nil {
		return nil, fmt.Errorf("query existing file ids: %w", err)
	}
	defer rows.Close()

	existing := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan file id: %w", err)
		}
		existing[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate file ids: %w", err)
	}
	return existing, nil
}

const fileIndexColumns = `
	owner_id, file_id, name, mime_type, size, modified_time, parent_id,
	checksum, version, last_scan_id, created_at, updated_at`

// Get retrieves one indexed entry, or nil if not present.
func (s *FileIndexStore) Get(ctx context.Context, ownerID, fileID string) (*FileIndexEntry, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+fileIndexColumns+`
		FROM file_index
		WHERE owner_id = ? AND file_id = ?
	`, ownerID, fileID)

	entry, err := fileIndexEntryFromScanner(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return entry, err
}

// ListByOwner lists indexed entries for an owner, optionally filtered by
// MIME type prefix, largest first.
func (s *FileIndexStore) ListByOwner(ctx context.Context, ownerID, mimePrefix string, limit, offset int) ([]*FileIndexEntry, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT ` + fileIndexColumns + `
		FROM file_index
		WHERE owner_id = ?`
	args := []any{ownerID}
	if mimePrefix != "" {
		query += ` AND mime_type LIKE ?`
		args = append(args, mimePrefix+"%")
	}
	query += `
		ORDER BY size DESC, file_id ASC
		LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query file index: %w", err)
	}
	defer rows.Close()

	var entries []*FileIndexEntry
	for rows.Next() {
		entry, err := fileIndexEntryFromScanner(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate file index: %w", err)
	}
	return entries, nil
}

// CountByOwner returns the number of indexed entries and total bytes for an
// owner.
func (s *FileIndexStore) CountByOwner(ctx context.Context, ownerID string) (count int64, bytes int64, err error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(size), 0)
		FROM file_index
		WHERE owner_id = ?
	`, ownerID)
	if err := row.Scan(&count, &bytes); err != nil {
		return 0, 0, fmt.Errorf("count file index: %w", err)
	}
	return count, bytes, nil
}

func fileIndexEntryFromScanner(scanner sqlScanner) (*FileIndexEntry, error) {
	var entry FileIndexEntry
	var modifiedTime sql.NullTime
	var checksum sql.NullString

	if err := scanner.Scan(
		&entry.OwnerID,
		&entry.FileID,
		&entry.Name,
		&entry.MimeType,
		&entry.Size,
		&modifiedTime,
		&entry.ParentID,
		&checksum,
		&entry.Version,
		&entry.LastScanID,
		&entry.CreatedAt,
		&entry.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan file index columns: %w", err)
	}

	if modifiedTime.Valid {
		entry.ModifiedTime = &modifiedTime.Time
	}
	if checksum.Valid {
		entry.Checksum = checksum.String
	}

	return &entry, nil
}
