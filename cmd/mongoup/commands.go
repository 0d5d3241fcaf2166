// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"github.com/spf13/cobra"

	"github.com/jinterlante1206/mongoup/pkg/ux"
)

// --- Global Command Variables ---
var (
	assumeYes   bool
	plainOutput bool
	keepStopped bool

	rootCmd = &cobra.Command{
		Use:   "mongoup",
		Short: "A cli to upgrade a MongoDB server through major versions",
		Long: `Mongoup walks a single MongoDB server up the supported major-version
				ladder (3.6 through 7.0), one hop at a time: stop, install, migrate
				storage when needed, start, and align the feature compatibility
				version. Interrupted runs are safe to re-run.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			ux.SetPlain(plainOutput)
		},
	}

	upgradeCmd = &cobra.Command{
		Use:   "upgrade",
		Short: "Upgrade the managed server to the final target version",
		Run:   runUpgrade, // Defined in cmd_upgrade.go
	}

	planCmd = &cobra.Command{
		Use:   "plan",
		Short: "Show the upgrade plan without changing anything",
		Run:   runPlan, // Defined in cmd_status.go
	}

	statusCmd = &cobra.Command{
		Use:   "status",
		Short: "Show the server's version, FCV, storage engine, and state",
		Run:   runStatus, // Defined in cmd_status.go
	}
)

// init runs when the Go program starts
func init() {
	rootCmd.PersistentFlags().BoolVar(&plainOutput, "plain", false,
		"Unstyled output for scripts and captured logs")

	rootCmd.AddCommand(upgradeCmd)
	upgradeCmd.Flags().BoolVarP(&assumeYes, "yes", "y", false,
		"Skip the confirmation prompt (unattended runs)")
	upgradeCmd.Flags().BoolVar(&keepStopped, "keep-stopped", false,
		"Leave mongod stopped after a successful run")

	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(statusCmd)
}
