// Copyright (c) 2025-2026, the DriveMind contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "drivemind",
		Short: "Drive scan orchestrator",
		Long:  "DriveMind enumerates, indexes and de-duplicates the files of a remote Drive.",
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to configuration file or directory")

	rootCmd.AddCommand(RunServeCommand(&configPath))
	rootCmd.AddCommand(RunVersionCommand())
	rootCmd.AddCommand(RunDBCommand(&configPath))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
