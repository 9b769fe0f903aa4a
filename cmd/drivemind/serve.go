// Copyright (c) 2025-2026, the DriveMind contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/oauth2"
	"golang.org/x/sync/errgroup"

	"github.com/VT-TyR/drivemind/internal/api"
	"github.com/VT-TyR/drivemind/internal/auth"
	"github.com/VT-TyR/drivemind/internal/buildinfo"
	"github.com/VT-TyR/drivemind/internal/config"
	"github.com/VT-TyR/drivemind/internal/database"
	"github.com/VT-TyR/drivemind/internal/domain"
	"github.com/VT-TyR/drivemind/internal/drive"
	"github.com/VT-TyR/drivemind/internal/logger"
	"github.com/VT-TyR/drivemind/internal/metrics"
	"github.com/VT-TyR/drivemind/internal/models"
	"github.com/VT-TyR/drivemind/internal/services/scan"
)

const shutdownTimeout = 10 * time.Second

func RunServeCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the DriveMind server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			appCfg, err := config.New(*configPath, buildinfo.Version)
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			return runServer(cmd.Context(), appCfg.Config)
		},
	}
}

func runServer(ctx context.Context, cfg *domain.Config) error {
	logger.Setup(cfg)

	log.Info().
		Str("version", cfg.Version).
		Str("commit", buildinfo.Commit).
		Msg("Starting DriveMind")

	db, err := database.New(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	jobStore := models.NewScanJobStore(db)
	indexStore := models.NewFileIndexStore(db)
	credStore := auth.NewCredentialStore(db)

	tokenService := auth.NewTokenService(&oauth2.Config{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		Endpoint: oauth2.Endpoint{
			AuthURL:  "https://accounts.google.com/o/oauth2/auth",
			TokenURL: "https://oauth2.googleapis.com/token",
		},
	}, credStore)

	driveClient := drive.NewClient(drive.WithRateLimit(cfg.DriveRequestsPerSec))

	var manager *metrics.Manager
	var recorder scan.Recorder
	if cfg.MetricsEnabled {
		manager = metrics.NewManager(jobStore)
		recorder = manager.ScanRecorder()
	}

	scanCfg := scan.DefaultConfig()
	if cfg.ScanMaxRetries > 0 {
		scanCfg.MaxRetries = cfg.ScanMaxRetries
	}
	if cfg.ScanPageSize > 0 {
		scanCfg.PageSize = cfg.ScanPageSize
	}
	if cfg.ScanJobTimeoutMinutes > 0 {
		scanCfg.JobTimeout = time.Duration(cfg.ScanJobTimeoutMinutes) * time.Minute
	}

	scanService := scan.NewService(scanCfg, jobStore, indexStore, driveClient, tokenService, recorder)
	defer scanService.Stop()

	// Jobs left active by a previous process cannot make progress; fail
	// them before accepting new work.
	recovered, err := scanService.RecoverInterruptedJobs(ctx)
	if err != nil {
		return fmt.Errorf("failed to recover interrupted jobs: %w", err)
	}
	if recovered > 0 {
		log.Warn().Int64("count", recovered).Msg("Marked interrupted scan jobs as failed")
	}

	retention := scan.DefaultRetention
	if cfg.ScanRetentionDays > 0 {
		retention = time.Duration(cfg.ScanRetentionDays) * 24 * time.Hour
	}
	cleanup := scan.NewCleanup(jobStore, retention, scan.DefaultSweepLimit)

	handler := api.NewRouter(api.Deps{
		ScanService: scanService,
		Cleanup:     cleanup,
		IndexStore:  indexStore,
		Metrics:     manager,
	})

	srv := &http.Server{
		Addr:              net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info().Str("addr", srv.Addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		cleanup.Run(gctx, 24*time.Hour)
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
