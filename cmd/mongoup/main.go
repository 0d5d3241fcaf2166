// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/jinterlante1206/mongoup/cmd/mongoup/config"
	"github.com/jinterlante1206/mongoup/cmd/mongoup/internal/util"
	"github.com/jinterlante1206/mongoup/pkg/ux"
)

func main() {
	// Execute the root command. Cobra handles parsing the arguments.
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	preRun := rootCmd.PersistentPreRun
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		if preRun != nil {
			preRun(cmd, args)
		}
		if err := config.Load(); err != nil {
			exitFatal("config", err)
		}
	}
}

// exitFatal prints a labeled error and ends the run with exit code 1.
// Every fatal path in the command layer funnels through here so the
// exit contract stays in one place. Classified errors already carry
// their own operation label, so op only prefixes bare ones.
func exitFatal(op string, err error) {
	msg := err.Error()
	if util.OpOf(err) == "" && op != "" {
		msg = op + ": " + msg
	}
	ux.Error(msg)
	os.Exit(1)
}
