// Copyright (c) 2025-2026, the DriveMind contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package handlers implements the HTTP API for scan jobs and the file
// index.
package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/VT-TyR/drivemind/internal/models"
	"github.com/VT-TyR/drivemind/internal/services/scan"
)

// ScansHandler handles HTTP requests for scan jobs.
type ScansHandler struct {
	service *scan.Service
	cleanup *scan.Cleanup
}

// NewScansHandler creates a new ScansHandler.
func NewScansHandler(service *scan.Service, cleanup *scan.Cleanup) *ScansHandler {
	return &ScansHandler{service: service, cleanup: cleanup}
}

// Routes mounts the scan endpoints.
func (h *ScansHandler) Routes(r chi.Router) {
	r.Route("/owners/{ownerID}/scans", func(r chi.Router) {
		r.Post("/", h.StartScan)
		r.Get("/", h.ListScans)
	})
	r.Route("/scans/{jobID}", func(r chi.Router) {
		r.Get("/", h.GetScan)
		r.Delete("/", h.CancelScan)
	})
	r.Post("/cleanup", h.TriggerCleanup)
}

// StartScanPayload is the request body for starting a scan.
type StartScanPayload struct {
	MaxDepth       int      `json:"maxDepth"`
	IncludeTrashed bool     `json:"includeTrashed"`
	RootFolderID   string   `json:"rootFolderId"`
	FileTypes      []string `json:"fileTypes"`
}

// StartScan creates a scan job and launches it in the background.
func (h *ScansHandler) StartScan(w http.ResponseWriter, r *http.Request) {
	ownerID := chi.URLParam(r, "ownerID")
	if ownerID == "" {
		RespondError(w, http.StatusBadRequest, "Owner ID is required")
		return
	}

	var payload StartScanPayload
	if !DecodeJSON(w, r, &payload) {
		return
	}

	job, err := h.service.StartJob(r.Context(), ownerID, models.ScanConfig{
		MaxDepth:       payload.MaxDepth,
		IncludeTrashed: payload.IncludeTrashed,
		RootFolderID:   payload.RootFolderID,
		FileTypes:      payload.FileTypes,
	})
	if err != nil {
		log.Error().Err(err).Str("ownerID", ownerID).Msg("api: failed to start scan")
		RespondError(w, http.StatusInternalServerError, "Failed to start scan")
		return
	}

	RespondJSON(w, http.StatusAccepted, job)
}

// GetScan returns one job with its progress.
func (h *ScansHandler) GetScan(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")

	job, err := h.service.GetJob(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, models.ErrScanJobNotFound) {
			RespondError(w, http.StatusNotFound, "Scan job not found")
			return
		}
		log.Error().Err(err).Str("jobID", jobID).Msg("api: failed to get scan")
		RespondError(w, http.StatusInternalServerError, "Failed to get scan")
		return
	}

	RespondJSON(w, http.StatusOK, job)
}

// ListScans lists an owner's jobs.
func (h *ScansHandler) ListScans(w http.ResponseWriter, r *http.Request) {
	ownerID := chi.URLParam(r, "ownerID")
	limit := QueryInt(r, "limit", 20)
	offset := QueryInt(r, "offset", 0)

	jobs, err := h.service.ListJobs(r.Context(), ownerID, limit, offset)
	if err != nil {
		log.Error().Err(err).Str("ownerID", ownerID).Msg("api: failed to list scans")
		RespondError(w, http.StatusInternalServerError, "Failed to list scans")
		return
	}
	if jobs == nil {
		jobs = []*models.ScanJob{}
	}

	RespondJSON(w, http.StatusOK, jobs)
}

// CancelScan requests cooperative cancellation of a job.
func (h *ScansHandler) CancelScan(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")

	if err := h.service.Cancel(r.Context(), jobID); err != nil {
		if errors.Is(err, models.ErrScanJobNotFound) {
			RespondError(w, http.StatusNotFound, "Scan job not found")
			return
		}
		log.Error().Err(err).Str("jobID", jobID).Msg("api: failed to cancel scan")
		RespondError(w, http.StatusInternalServerError, "Failed to cancel scan")
		return
	}

	RespondJSON(w, http.StatusOK, map[string]string{"status": "cancellation requested"})
}

// TriggerCleanup runs one cleanup sweep. This is the externally scheduled
// cleanup trigger.
func (h *ScansHandler) TriggerCleanup(w http.ResponseWriter, r *http.Request) {
	deleted, err := h.cleanup.Sweep(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("api: cleanup sweep failed")
		RespondError(w, http.StatusInternalServerError, "Cleanup sweep failed")
		return
	}

	RespondJSON(w, http.StatusOK, map[string]int64{"deleted": deleted})
}
