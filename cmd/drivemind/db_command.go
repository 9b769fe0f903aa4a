// Copyright (c) 2025-2026, the DriveMind contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/VT-TyR/drivemind/internal/buildinfo"
	"github.com/VT-TyR/drivemind/internal/config"
	"github.com/VT-TyR/drivemind/internal/database"
	"github.com/VT-TyR/drivemind/internal/models"
	"github.com/VT-TyR/drivemind/internal/services/scan"
)

func RunDBCommand(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Database operations",
	}

	cmd.AddCommand(runDBCleanCommand(configPath))
	return cmd
}

func runDBCleanCommand(configPath *string) *cobra.Command {
	var (
		retentionDays int
		limit         int
	)

	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Delete old finished scan jobs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			appCfg, err := config.New(*configPath, buildinfo.Version)
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}

			db, err := database.New(appCfg.Config.DatabasePath)
			if err != nil {
				return fmt.Errorf("failed to open database: %w", err)
			}
			defer db.Close()

			retention := time.Duration(retentionDays) * 24 * time.Hour
			cleanup := scan.NewCleanup(models.NewScanJobStore(db), retention, limit)

			deleted, err := cleanup.Sweep(cmd.Context())
			if err != nil {
				return err
			}

			cmd.Printf("Deleted %d finished scan jobs older than %d days\n", deleted, retentionDays)
			return nil
		},
	}

	cmd.Flags().IntVar(&retentionDays, "retention-days", 30, "Delete finished jobs older than this many days")
	cmd.Flags().IntVar(&limit, "limit", scan.DefaultSweepLimit, "Maximum jobs to delete per run")

	return cmd
}
