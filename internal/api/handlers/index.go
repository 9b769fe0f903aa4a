// Copyright (c) 2025-2026, the DriveMind contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/VT-TyR/drivemind/internal/models"
	"github.com/VT-TyR/drivemind/internal/services/scan"
)

// IndexHandler serves file index queries and the duplicate report.
type IndexHandler struct {
	index    *models.FileIndexStore
	detector scan.Detector
}

// NewIndexHandler creates a new IndexHandler.
func NewIndexHandler(index *models.FileIndexStore) *IndexHandler {
	return &IndexHandler{index: index, detector: scan.NewDetector()}
}

// Routes mounts the index endpoints.
func (h *IndexHandler) Routes(r chi.Router) {
	r.Route("/owners/{ownerID}", func(r chi.Router) {
		r.Get("/files", h.ListFiles)
		r.Get("/duplicates", h.ListDuplicates)
	})
}

// ListFiles lists indexed files for an owner.
func (h *IndexHandler) ListFiles(w http.ResponseWriter, r *http.Request) {
	ownerID := chi.URLParam(r, "ownerID")
	mimePrefix := r.URL.Query().Get("mimeType")
	limit := QueryInt(r, "limit", 100)
	offset := QueryInt(r, "offset", 0)

	entries, err := h.index.ListByOwner(r.Context(), ownerID, mimePrefix, limit, offset)
	if err != nil {
		log.Error().Err(err).Str("ownerID", ownerID).Msg("api: failed to list indexed files")
		RespondError(w, http.StatusInternalServerError, "Failed to list files")
		return
	}
	if entries == nil {
		entries = []*models.FileIndexEntry{}
	}

	RespondJSON(w, http.StatusOK, entries)
}

// DuplicateReport is the duplicates endpoint response.
type DuplicateReport struct {
	Groups       [][]*models.FileIndexEntry `json:"groups"`
	GroupCount   int                        `json:"groupCount"`
	QualityScore int                        `json:"qualityScore"`
}

// ListDuplicates groups the owner's index into duplicate sets.
func (h *IndexHandler) ListDuplicates(w http.ResponseWriter, r *http.Request) {
	ownerID := chi.URLParam(r, "ownerID")

	// Bounded read: duplicates are computed over at most this many of the
	// owner's largest files per request.
	const reportLimit = 10000

	entries, err := h.index.ListByOwner(r.Context(), ownerID, "", reportLimit, 0)
	if err != nil {
		log.Error().Err(err).Str("ownerID", ownerID).Msg("api: failed to load index for duplicate report")
		RespondError(w, http.StatusInternalServerError, "Failed to compute duplicates")
		return
	}

	groups := h.detector.Group(entries)
	if groups == nil {
		groups = [][]*models.FileIndexEntry{}
	}

	RespondJSON(w, http.StatusOK, DuplicateReport{
		Groups:       groups,
		GroupCount:   len(groups),
		QualityScore: scan.QualityScore(len(groups), len(entries)),
	})
}
