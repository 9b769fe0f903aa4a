// Copyright (c) 2025-2026, the DriveMind contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package models

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/VT-TyR/drivemind/internal/dbinterface"
)

// ScanJobStatus defines the lifecycle status of a scan job.
type ScanJobStatus string

const (
	ScanJobStatusPending   ScanJobStatus = "pending"
	ScanJobStatusRunning   ScanJobStatus = "running"
	ScanJobStatusCompleted ScanJobStatus = "completed"
	ScanJobStatusFailed    ScanJobStatus = "failed"
	ScanJobStatusCancelled ScanJobStatus = "cancelled"

	// ScanJobStatusChained is reserved. It appears in source data but no
	// transition assigns or consumes it.
	ScanJobStatusChained ScanJobStatus = "chained"
)

// IsTerminal reports whether no further transitions may occur from status.
func (s ScanJobStatus) IsTerminal() bool {
	switch s {
	case ScanJobStatusCompleted, ScanJobStatusFailed, ScanJobStatusCancelled:
		return true
	}
	return false
}

// ScanProgress is the mutable progress block persisted with a running job.
type ScanProgress struct {
	Current        int64  `json:"current"`
	Total          int64  `json:"total"`
	Percentage     int    `json:"percentage"`
	CurrentStep    string `json:"currentStep"`
	FilesProcessed int64  `json:"filesProcessed"`
	BytesProcessed int64  `json:"bytesProcessed"`
}

// ScanConfig holds the enumeration parameters of a job. Immutable after
// creation.
type ScanConfig struct {
	MaxDepth       int      `json:"maxDepth"`
	IncludeTrashed bool     `json:"includeTrashed"`
	RootFolderID   string   `json:"rootFolderId,omitempty"`
	FileTypes      []string `json:"fileTypes,omitempty"`
}

// ScanResults summarizes a completed scan.
type ScanResults struct {
	TotalFiles         int      `json:"totalFiles"`
	TotalBytes         int64    `json:"totalBytes"`
	PagesProcessed     int      `json:"pagesProcessed"`
	DuplicateGroups    int      `json:"duplicateGroups"`
	QualityScore       int      `json:"qualityScore"`
	RecommendedActions []string `json:"recommendedActions,omitempty"`
}

// ScanErrorDetails records how a job failed.
type ScanErrorDetails struct {
	TotalRetries int    `json:"totalRetries"`
	ElapsedMs    int64  `json:"elapsedMs"`
	FailedStep   string `json:"failedStep,omitempty"`
}

// ScanJob is one enumeration-and-index request with its own lifecycle.
type ScanJob struct {
	ID           string            `json:"id"`
	OwnerID      string            `json:"ownerId"`
	Status       ScanJobStatus     `json:"status"`
	Type         string            `json:"type"`
	Progress     ScanProgress      `json:"progress"`
	Config       ScanConfig        `json:"config"`
	PageCursor   string            `json:"-"`
	Results      *ScanResults      `json:"results,omitempty"`
	Error        string            `json:"error,omitempty"`
	ErrorDetails *ScanErrorDetails `json:"errorDetails,omitempty"`
	CreatedAt    time.Time         `json:"createdAt"`
	UpdatedAt    time.Time         `json:"updatedAt"`
	StartedAt    *time.Time        `json:"startedAt,omitempty"`
	CompletedAt  *time.Time        `json:"completedAt,omitempty"`
}

// ErrScanJobNotFound is returned when a job is not found.
var ErrScanJobNotFound = errors.New("scan job not found")

// ErrScanJobNotClaimable is returned when a pending job could not be claimed,
// typically because another worker already did.
var ErrScanJobNotClaimable = errors.New("scan job is not claimable")

// ScanJobStore handles database operations for scan jobs.
type ScanJobStore struct {
	db dbinterface.Querier
}

// NewScanJobStore creates a new ScanJobStore.
func NewScanJobStore(db dbinterface.Querier) *ScanJobStore {
	return &ScanJobStore{db: db}
}

const scanJobColumns = `
	id, owner_id, status, type, progress, config, page_cursor,
	results, error_message, error_details,
	created_at, updated_at, started_at, completed_at`

// Create inserts a new pending job and returns it.
func (s *ScanJobStore) Create(ctx context.Context, ownerID string, config ScanConfig) (*ScanJob, error) {
	if strings.TrimSpace(ownerID) == "" {
		return nil, errors.New("ownerID is required")
	}

	configJSON, err := json.Marshal(config)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}

	progressJSON, err := json.Marshal(ScanProgress{CurrentStep: "Queued"})
	if err != nil {
		return nil, fmt.Errorf("marshal progress: %w", err)
	}

	id := uuid.NewString()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO scan_jobs (id, owner_id, status, type, progress, config)
		VALUES (?, ?, ?, 'drive_scan', ?, ?)
	`, id, ownerID, ScanJobStatusPending, string(progressJSON), string(configJSON))
	if err != nil {
		return nil, fmt.Errorf("insert scan job: %w", err)
	}

	return s.Get(ctx, id)
}

// Get retrieves a job by ID. Returns ErrScanJobNotFound when missing.
func (s *ScanJobStore) Get(ctx context.Context, id string) (*ScanJob, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+scanJobColumns+`
		FROM scan_jobs
		WHERE id = ?
	`, id)

	job, err := scanJobFromScanner(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrScanJobNotFound
	}
	return job, err
}

// GetStatus retrieves only the current status of a job. The orchestrator
// polls this before every page fetch, so it stays a single-column read.
func (s *ScanJobStore) GetStatus(ctx context.Context, id string) (ScanJobStatus, error) {
	var status ScanJobStatus
	err := s.db.QueryRowContext(ctx, `SELECT status FROM scan_jobs WHERE id = ?`, id).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrScanJobNotFound
	}
	if err != nil {
		return "", fmt.Errorf("scan job status: %w", err)
	}
	return status, nil
}

// ListByOwner lists jobs for an owner, newest first.
func (s *ScanJobStore) ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]*ScanJob, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+scanJobColumns+`
		FROM scan_jobs
		WHERE owner_id = ?
		ORDER BY created_at DESC
		LIMIT ? OFFSET ?
	`, ownerID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query scan jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*ScanJob
	for rows.Next() {
		job, err := scanJobFromScanner(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate scan jobs: %w", err)
	}
	return jobs, nil
}

// ClaimPending atomically transitions a pending job to running and stamps
// started_at. Exactly one caller wins; the rest get ErrScanJobNotClaimable.
func (s *ScanJobStore) ClaimPending(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE scan_jobs
		SET status = ?, started_at = COALESCE(started_at, CURRENT_TIMESTAMP),
		    updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND status = ?
	`, ScanJobStatusRunning, id, ScanJobStatusPending)
	if err != nil {
		return fmt.Errorf("claim scan job: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return ErrScanJobNotClaimable
	}
	return nil
}

// ConfirmRunning is the idempotent re-entry variant of ClaimPending used by
// retry attempts: it refreshes the running marker without touching
// started_at, and reports ErrScanJobNotClaimable once the job left the
// running state.
func (s *ScanJobStore) ConfirmRunning(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE scan_jobs
		SET updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND status = ?
	`, id, ScanJobStatusRunning)
	if err != nil {
		return fmt.Errorf("confirm running scan job: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return ErrScanJobNotClaimable
	}
	return nil
}

// UpdateProgress persists the progress block and the last successful page
// cursor for a running job.
func (s *ScanJobStore) UpdateProgress(ctx context.Context, id string, progress ScanProgress, pageCursor string) error {
	progressJSON, err := json.Marshal(progress)
	if err != nil {
		return fmt.Errorf("marshal progress: %w", err)
	}

	var cursor any
	if pageCursor != "" {
		cursor = pageCursor
	}

	_, err = s.db.ExecContext(ctx, `
		UPDATE scan_jobs
		SET progress = ?, page_cursor = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND status = ?
	`, string(progressJSON), cursor, id, ScanJobStatusRunning)
	if err != nil {
		return fmt.Errorf("update scan job progress: %w", err)
	}
	return nil
}

// RequestCancel marks a pending or running job cancelled. Terminal jobs are
// left untouched; ErrScanJobNotFound is returned if the job does not exist.
func (s *ScanJobStore) RequestCancel(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE scan_jobs
		SET status = ?, completed_at = CURRENT_TIMESTAMP, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND status IN (?, ?)
	`, ScanJobStatusCancelled, id, ScanJobStatusPending, ScanJobStatusRunning)
	if err != nil {
		return fmt.Errorf("cancel scan job: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		if _, getErr := s.Get(ctx, id); getErr != nil {
			return getErr
		}
	}
	return nil
}

// MarkCompleted writes the terminal completed state with results. Only a
// running job can complete; terminal states are final.
func (s *ScanJobStore) MarkCompleted(ctx context.Context, id string, results *ScanResults, progress ScanProgress) error {
	resultsJSON, err := json.Marshal(results)
	if err != nil {
		return fmt.Errorf("marshal results: %w", err)
	}

	progressJSON, err := json.Marshal(progress)
	if err != nil {
		return fmt.Errorf("marshal progress: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE scan_jobs
		SET status = ?, results = ?, progress = ?, error_message = NULL, error_details = NULL,
		    completed_at = CURRENT_TIMESTAMP, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND status = ?
	`, ScanJobStatusCompleted, string(resultsJSON), string(progressJSON), id, ScanJobStatusRunning)
	if err != nil {
		return fmt.Errorf("mark scan job completed: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return ErrScanJobNotClaimable
	}
	return nil
}

// MarkFailed writes the terminal failed state with the triggering error.
// Cancelled and completed jobs are never overwritten.
func (s *ScanJobStore) MarkFailed(ctx context.Context, id, errorMessage string, details *ScanErrorDetails, progress ScanProgress) error {
	var detailsJSON any
	if details != nil {
		b, err := json.Marshal(details)
		if err != nil {
			return fmt.Errorf("marshal error details: %w", err)
		}
		detailsJSON = string(b)
	}

	progressJSON, err := json.Marshal(progress)
	if err != nil {
		return fmt.Errorf("marshal progress: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		UPDATE scan_jobs
		SET status = ?, error_message = ?, error_details = ?, results = NULL, progress = ?,
		    completed_at = CURRENT_TIMESTAMP, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND status IN (?, ?)
	`, ScanJobStatusFailed, errorMessage, detailsJSON, string(progressJSON),
		id, ScanJobStatusPending, ScanJobStatusRunning)
	if err != nil {
		return fmt.Errorf("mark scan job failed: %w", err)
	}
	return nil
}

// FailIfStillRunning force-fails a job only if it is still running. Used by
// the timeout watchdog; reports whether the transition happened.
func (s *ScanJobStore) FailIfStillRunning(ctx context.Context, id, errorMessage string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE scan_jobs
		SET status = ?, error_message = ?,
		    completed_at = CURRENT_TIMESTAMP, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND status = ?
	`, ScanJobStatusFailed, errorMessage, id, ScanJobStatusRunning)
	if err != nil {
		return false, fmt.Errorf("fail running scan job: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return rows > 0, nil
}

// MarkActiveJobsFailed fails any pending or running jobs (typically after a
// restart) and returns the number of jobs affected.
func (s *ScanJobStore) MarkActiveJobsFailed(ctx context.Context, errorMessage string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE scan_jobs
		SET status = ?, error_message = ?,
		    completed_at = CURRENT_TIMESTAMP, updated_at = CURRENT_TIMESTAMP
		WHERE status IN (?, ?)
	`, ScanJobStatusFailed, errorMessage, ScanJobStatusPending, ScanJobStatusRunning)
	if err != nil {
		return 0, fmt.Errorf("mark active scan jobs failed: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return rows, nil
}

// DeleteTerminalBefore deletes completed and failed jobs whose completion
// timestamp is older than cutoff, at most limit per call. Returns the number
// of jobs deleted.
func (s *ScanJobStore) DeleteTerminalBefore(ctx context.Context, cutoff time.Time, limit int) (int64, error) {
	if limit <= 0 {
		limit = 100
	}

	res, err := s.db.ExecContext(ctx, `
		DELETE FROM scan_jobs
		WHERE id IN (
			SELECT id FROM scan_jobs
			WHERE status IN (?, ?)
			  AND completed_at IS NOT NULL
			  AND completed_at < ?
			ORDER BY completed_at ASC
			LIMIT ?
		)
	`, ScanJobStatusCompleted, ScanJobStatusFailed, cutoff.UTC(), limit)
	if err != nil {
		return 0, fmt.Errorf("delete terminal scan jobs: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return rows, nil
}

// CountByStatus returns job counts per status.
func (s *ScanJobStore) CountByStatus(ctx context.Context) (map[ScanJobStatus]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT status, COUNT(*) FROM scan_jobs GROUP BY status
	`)
	if err != nil {
		return nil, fmt.Errorf("count scan jobs: %w", err)
	}
	defer rows.Close()

	counts := make(map[ScanJobStatus]int)
	for rows.Next() {
		var status ScanJobStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan status count: %w", err)
		}
		counts[status] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate status counts: %w", err)
	}
	return counts, nil
}

type sqlScanner interface {
	Scan(dest ...any) error
}

func scanJobFromScanner(scanner sqlScanner) (*ScanJob, error) {
	var job ScanJob
	var progressJSON, configJSON string
	var pageCursor, resultsJSON, errorMessage, errorDetailsJSON sql.NullString
	var startedAt, completedAt sql.NullTime

	if err := scanner.Scan(
		&job.ID,
		&job.OwnerID,
		&job.Status,
		&job.Type,
		&progressJSON,
		&configJSON,
		&pageCursor,
		&resultsJSON,
		&errorMessage,
		&errorDetailsJSON,
		&job.CreatedAt,
		&job.UpdatedAt,
		&startedAt,
		&completedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan job columns: %w", err)
	}

	if err := json.Unmarshal([]byte(progressJSON), &job.Progress); err != nil {
		return nil, fmt.Errorf("unmarshal progress: %w", err)
	}
	if err := json.Unmarshal([]byte(configJSON), &job.Config); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if pageCursor.Valid {
		job.PageCursor = pageCursor.String
	}
	if resultsJSON.Valid && resultsJSON.String != "" {
		job.Results = &ScanResults{}
		if err := json.Unmarshal([]byte(resultsJSON.String), job.Results); err != nil {
			return nil, fmt.Errorf("unmarshal results: %w", err)
		}
	}
	if errorMessage.Valid {
		job.Error = errorMessage.String
	}
	if errorDetailsJSON.Valid && errorDetailsJSON.String != "" {
		job.ErrorDetails = &ScanErrorDetails{}
		if err := json.Unmarshal([]byte(errorDetailsJSON.String), job.ErrorDetails); err != nil {
			return nil, fmt.Errorf("unmarshal error details: %w", err)
		}
	}
	if startedAt.Valid {
		job.StartedAt = &startedAt.Time
	}
	if completedAt.Valid {
		job.CompletedAt = &completedAt.Time
	}

	return &job, nil
}
