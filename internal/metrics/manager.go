// Copyright (c) 2025-2026, the DriveMind contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"

	"github.com/VT-TyR/drivemind/internal/models"
)

// Manager owns the process metrics registry and the scan-domain collectors.
type Manager struct {
	registry     *prometheus.Registry
	scanRecorder *ScanRecorder
}

// NewManager creates a registry with runtime collectors plus the scan job
// collectors.
func NewManager(jobs *models.ScanJobStore) *Manager {
	registry := prometheus.NewRegistry()

	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	scanRecorder := NewScanRecorder()
	registry.MustRegister(scanRecorder)
	registry.MustRegister(NewJobStatusCollector(jobs))

	log.Info().Msg("Metrics manager initialized with scan collectors")

	return &Manager{
		registry:     registry,
		scanRecorder: scanRecorder,
	}
}

// GetRegistry returns the prometheus registry.
func (m *Manager) GetRegistry() *prometheus.Registry {
	return m.registry
}

// ScanRecorder returns the recorder the orchestrator reports outcomes to.
func (m *Manager) ScanRecorder() *ScanRecorder {
	return m.scanRecorder
}
