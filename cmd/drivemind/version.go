// Copyright (c) 2025-2026, the DriveMind contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"github.com/spf13/cobra"

	"github.com/VT-TyR/drivemind/internal/buildinfo"
)

func RunVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Println(buildinfo.String())
		},
	}
}
