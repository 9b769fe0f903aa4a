// Copyright (c) 2025-2026, the DriveMind contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package scan

import (
	"sync"

	"github.com/VT-TyR/drivemind/internal/models"
)

// enumerationPercentCap holds the reported percentage at or below 90 until
// post-processing begins, so the bar never shows "almost done" while pages
// are still arriving.
const enumerationPercentCap = 90

// Tracker records scan progress. Percentage and the processed counters are
// monotonically non-decreasing while the job runs; only Reset (a fresh
// enumeration from page one) rolls the counters back.
type Tracker struct {
	mu             sync.Mutex
	step           string
	percentage     int
	pages          int
	filesProcessed int64
	bytesProcessed int64
}

// NewTracker creates a Tracker in the initializing step.
func NewTracker() *Tracker {
	return &Tracker{step: "Initializing scan", percentage: 0}
}

// SetStep updates the human-readable step and raises the percentage to at
// least floor.
func (t *Tracker) SetStep(step string, floor int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.step = step
	if floor > t.percentage {
		t.percentage = floor
	}
}

// RecordPage accounts one successfully fetched listing page.
func (t *Tracker) RecordPage(files int, bytes int64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.pages++
	t.filesProcessed += int64(files)
	t.bytesProcessed += bytes

	// Total page count is unknown while the cursor is live, so the
	// percentage ramps with pages fetched and saturates at the cap.
	pct := 10 + t.pages*8
	if pct > enumerationPercentCap {
		pct = enumerationPercentCap
	}
	if pct > t.percentage {
		t.percentage = pct
	}
}

// Reset rolls the counters back for a fresh enumeration from page one.
// Used when a retry attempt cannot resume from a persisted cursor.
func (t *Tracker) Reset(step string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.step = step
	t.pages = 0
	t.filesProcessed = 0
	t.bytesProcessed = 0
}

// Complete marks the scan finished at 100%.
func (t *Tracker) Complete() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.step = "Scan complete"
	t.percentage = 100
}

// Pages returns how many listing pages have been recorded.
func (t *Tracker) Pages() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pages
}

// Snapshot returns the progress block in its persisted shape.
func (t *Tracker) Snapshot() models.ScanProgress {
	t.mu.Lock()
	defer t.mu.Unlock()
	return models.ScanProgress{
		Current:        t.filesProcessed,
		Total:          t.filesProcessed,
		Percentage:     t.percentage,
		CurrentStep:    t.step,
		FilesProcessed: t.filesProcessed,
		BytesProcessed: t.bytesProcessed,
	}
}
