// Copyright (c) 2025-2026, the DriveMind contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package metrics exposes prometheus collectors for the scan subsystem.
package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"

	"github.com/VT-TyR/drivemind/internal/models"
)

// ScanRecorder counts scan outcomes as they happen. It implements the scan
// service's Recorder interface and prometheus.Collector.
type ScanRecorder struct {
	jobsFinished    *prometheus.CounterVec
	filesIndexed    prometheus.Counter
	duplicateGroups prometheus.Counter
}

// NewScanRecorder creates the outcome counters.
func NewScanRecorder() *ScanRecorder {
	return &ScanRecorder{
		jobsFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "drivemind_scan_jobs_finished_total",
			Help: "Scan jobs reaching a terminal state, by status",
		}, []string{"status"}),
		filesIndexed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "drivemind_scan_files_indexed_total",
			Help: "File index entries written by completed scans",
		}),
		duplicateGroups: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "drivemind_scan_duplicate_groups_total",
			Help: "Duplicate groups detected by completed scans",
		}),
	}
}

// JobFinished records a terminal job outcome.
func (r *ScanRecorder) JobFinished(status models.ScanJobStatus) {
	r.jobsFinished.WithLabelValues(string(status)).Inc()
}

// FilesIndexed records index writes of a completed scan.
func (r *ScanRecorder) FilesIndexed(count int) {
	r.filesIndexed.Add(float64(count))
}

// DuplicateGroupsFound records detected duplicate groups.
func (r *ScanRecorder) DuplicateGroupsFound(count int) {
	r.duplicateGroups.Add(float64(count))
}

// Describe implements prometheus.Collector.
func (r *ScanRecorder) Describe(ch chan<- *prometheus.Desc) {
	r.jobsFinished.Describe(ch)
	r.filesIndexed.Describe(ch)
	r.duplicateGroups.Describe(ch)
}

// Collect implements prometheus.Collector.
func (r *ScanRecorder) Collect(ch chan<- prometheus.Metric) {
	r.jobsFinished.Collect(ch)
	r.filesIndexed.Collect(ch)
	r.duplicateGroups.Collect(ch)
}

// JobStatusCollector gauges the live job count per status from the store on
// every scrape.
type JobStatusCollector struct {
	jobs *models.ScanJobStore
	desc *prometheus.Desc
}

// NewJobStatusCollector creates the store-backed gauge collector.
func NewJobStatusCollector(jobs *models.ScanJobStore) *JobStatusCollector {
	return &JobStatusCollector{
		jobs: jobs,
		desc: prometheus.NewDesc(
			"drivemind_scan_jobs",
			"Current scan jobs by status",
			[]string{"status"},
			nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *JobStatusCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.desc
}

// Collect implements prometheus.Collector.
func (c *JobStatusCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	counts, err := c.jobs.CountByStatus(ctx)
	if err != nil {
		log.Debug().Err(err).Msg("metrics: failed to count jobs by status")
		return
	}

	for status, count := range counts {
		ch <- prometheus.MustNewConstMetric(c.desc, prometheus.GaugeValue, float64(count), string(status))
	}
}
