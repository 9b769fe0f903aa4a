// Copyright (c) 2025-2026, the DriveMind contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package scan

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/VT-TyR/drivemind/internal/models"
)

const (
	// DefaultRetention is how long terminal jobs are kept after completion.
	DefaultRetention = 30 * 24 * time.Hour

	// DefaultSweepLimit bounds one sweep; cleanup is best-effort garbage
	// collection, not hard-real-time.
	DefaultSweepLimit = 100
)

// Cleanup removes terminal jobs past the retention window.
type Cleanup struct {
	jobs      *models.ScanJobStore
	retention time.Duration
	limit     int
}

// NewCleanup creates the cleanup sweeper.
func NewCleanup(jobs *models.ScanJobStore, retention time.Duration, limit int) *Cleanup {
	if retention <= 0 {
		retention = DefaultRetention
	}
	if limit <= 0 {
		limit = DefaultSweepLimit
	}
	return &Cleanup{jobs: jobs, retention: retention, limit: limit}
}

// Sweep deletes one bounded page of expired terminal jobs and returns how
// many were removed.
func (c *Cleanup) Sweep(ctx context.Context) (int64, error) {
	cutoff := time.Now().Add(-c.retention)
	deleted, err := c.jobs.DeleteTerminalBefore(ctx, cutoff, c.limit)
	if err != nil {
		return 0, err
	}
	if deleted > 0 {
		log.Info().Int64("jobs", deleted).Time("cutoff", cutoff).Msg("cleanup: removed expired scan jobs")
	}
	return deleted, nil
}

// Run sweeps on a fixed interval until ctx is cancelled.
func (c *Cleanup) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := c.Sweep(ctx); err != nil {
				log.Error().Err(err).Msg("cleanup: sweep failed")
			}
		}
	}
}
