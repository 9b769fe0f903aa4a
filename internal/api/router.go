// Copyright (c) 2025-2026, the DriveMind contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package api wires the HTTP router.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/VT-TyR/drivemind/internal/api/handlers"
	"github.com/VT-TyR/drivemind/internal/metrics"
	"github.com/VT-TyR/drivemind/internal/models"
	"github.com/VT-TyR/drivemind/internal/services/scan"
)

// Deps holds the router's collaborators.
type Deps struct {
	ScanService *scan.Service
	Cleanup     *scan.Cleanup
	IndexStore  *models.FileIndexStore
	Metrics     *metrics.Manager
}

// NewRouter builds the HTTP handler.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	health := handlers.NewHealthHandler()
	r.Get("/health", health.Health)
	r.Get("/version", health.Version)

	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(
			deps.Metrics.GetRegistry(),
			promhttp.HandlerOpts{},
		))
	}

	r.Route("/api", func(r chi.Router) {
		handlers.NewScansHandler(deps.ScanService, deps.Cleanup).Routes(r)
		handlers.NewIndexHandler(deps.IndexStore).Routes(r)
	})

	return r
}
