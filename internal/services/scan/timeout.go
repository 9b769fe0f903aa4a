// Copyright (c) 2025-2026, the DriveMind contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package scan

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/VT-TyR/drivemind/internal/models"
)

// TimeoutMonitor is the watchdog that force-fails jobs stuck in the running
// state past the wall-clock budget. It is the only component besides the
// orchestrator allowed to write job status, and only the forced-failure
// transition. One timer is armed per job at creation time.
type TimeoutMonitor struct {
	jobs    *models.ScanJobStore
	timeout time.Duration

	mu     sync.Mutex
	timers map[string]*time.Timer
}

// NewTimeoutMonitor creates the watchdog.
func NewTimeoutMonitor(jobs *models.ScanJobStore, timeout time.Duration) *TimeoutMonitor {
	return &TimeoutMonitor{
		jobs:    jobs,
		timeout: timeout,
		timers:  make(map[string]*time.Timer),
	}
}

// Schedule arms the watchdog for a job. Scheduling the same job twice is a
// no-op.
func (m *TimeoutMonitor) Schedule(jobID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.timers[jobID]; ok {
		return
	}
	m.timers[jobID] = time.AfterFunc(m.timeout, func() {
		m.fire(jobID)
	})
}

func (m *TimeoutMonitor) fire(jobID string) {
	m.mu.Lock()
	delete(m.timers, jobID)
	m.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	msg := fmt.Sprintf("Scan timed out after %s", m.timeout)
	forced, err := m.jobs.FailIfStillRunning(ctx, jobID, msg)
	if err != nil {
		log.Error().Err(err).Str("jobID", jobID).Msg("timeout: failed to enforce job timeout")
		return
	}
	if forced {
		log.Warn().Str("jobID", jobID).Dur("timeout", m.timeout).Msg("timeout: forced stuck job to failed")
	}
}

// Stop disarms all pending timers.
func (m *TimeoutMonitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, timer := range m.timers {
		timer.Stop()
		delete(m.timers, id)
	}
}
