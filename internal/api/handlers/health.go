// Copyright (c) 2025-2026, the DriveMind contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"net/http"

	"github.com/VT-TyR/drivemind/internal/buildinfo"
)

// HealthHandler serves liveness and version endpoints.
type HealthHandler struct{}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler() *HealthHandler {
	return &HealthHandler{}
}

// Health reports liveness.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Version reports build information.
func (h *HealthHandler) Version(w http.ResponseWriter, r *http.Request) {
	data, err := buildinfo.JSON()
	if err != nil {
		RespondError(w, http.StatusInternalServerError, "Failed to encode version")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}
