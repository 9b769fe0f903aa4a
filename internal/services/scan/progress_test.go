// Copyright (c) 2025-2026, the DriveMind contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package scan

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTrackerPercentageCappedDuringEnumeration(t *testing.T) {
	tracker := NewTracker()
	tracker.SetStep("Enumerating files", 10)

	// However many pages arrive, the bar never passes the cap while the
	// cursor is live.
	for i := 0; i < 50; i++ {
		tracker.RecordPage(1000, 1<<20)
	}

	snap := tracker.Snapshot()
	assert.Equal(t, enumerationPercentCap, snap.Percentage)
	assert.Equal(t, int64(50000), snap.FilesProcessed)
	assert.Equal(t, int64(50<<20), snap.BytesProcessed)
	assert.Equal(t, 50, tracker.Pages())
}

func TestTrackerPercentageMonotonic(t *testing.T) {
	tracker := NewTracker()
	tracker.SetStep("Enumerating files", 10)
	tracker.RecordPage(100, 0)
	tracker.RecordPage(100, 0)

	before := tracker.Snapshot().Percentage

	// A lower floor never rolls the percentage back.
	tracker.SetStep("Still enumerating", 5)
	assert.Equal(t, before, tracker.Snapshot().Percentage)
}

func TestTrackerComplete(t *testing.T) {
	tracker := NewTracker()
	tracker.SetStep("Enumerating files", 10)
	tracker.RecordPage(10, 100)
	tracker.Complete()

	snap := tracker.Snapshot()
	assert.Equal(t, 100, snap.Percentage)
	assert.Equal(t, "Scan complete", snap.CurrentStep)
}

func TestTrackerReset(t *testing.T) {
	tracker := NewTracker()
	tracker.RecordPage(10, 100)
	tracker.Reset("Enumerating files")

	snap := tracker.Snapshot()
	assert.Zero(t, snap.FilesProcessed)
	assert.Zero(t, snap.BytesProcessed)
	assert.Zero(t, tracker.Pages())
	assert.Equal(t, "Enumerating files", snap.CurrentStep)
}
