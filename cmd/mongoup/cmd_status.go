// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/jinterlante1206/mongoup/pkg/ux"
)

func runStatus(cmd *cobra.Command, args []string) {
	ctx := context.Background()
	deps := buildDeps()
	defer deps.close(ctx)

	state := deps.manager.Status(ctx)

	ux.Title("Server status")
	if state.Known {
		ux.KeyValue("Version", state.Installed.String())
	} else {
		ux.KeyValue("Version", "unknown")
	}
	if state.FCV != "" {
		ux.KeyValue("FCV", state.FCV)
	} else {
		ux.KeyValue("FCV", "unknown")
	}
	ux.KeyValue("Storage engine", engineLabel(state.Engine))
	if state.Running {
		ux.KeyValue("Process", "running")
	} else {
		ux.KeyValue("Process", "stopped")
	}
}

func runPlan(cmd *cobra.Command, args []string) {
	ctx := context.Background()
	deps := buildDeps()
	defer deps.close(ctx)

	plan, err := deps.manager.PreparePlan(ctx)
	if err != nil {
		exitFatal("", err)
	}
	renderPlan(plan)
}

func engineLabel(e Engine) string {
	switch e {
	case EngineModern:
		return "wiredTiger"
	case EngineLegacy:
		return "mmapv1 (migration required)"
	default:
		return "unknown"
	}
}
