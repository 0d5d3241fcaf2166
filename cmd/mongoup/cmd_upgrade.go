// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jinterlante1206/mongoup/cmd/mongoup/config"
	"github.com/jinterlante1206/mongoup/cmd/mongoup/internal/infra/process"
	"github.com/jinterlante1206/mongoup/cmd/mongoup/internal/util"
	"github.com/jinterlante1206/mongoup/pkg/logging"
	"github.com/jinterlante1206/mongoup/pkg/ux"
)

// -----------------------------------------------------------------------------
// Wiring
// -----------------------------------------------------------------------------

// runtimeDeps is the wired production object graph for one invocation.
type runtimeDeps struct {
	manager    UpgradeManager
	controller ServerController
	admin      AdminCommander
	log        *logging.Logger
}

// buildDeps wires every component from the loaded config.
func buildDeps() *runtimeDeps {
	cfg := config.Global
	log := logging.New(logging.Config{
		Level:   parseLogLevel(cfg.Logging.Level),
		LogDir:  cfg.Logging.Dir,
		Service: "mongoup",
	})

	pm := NewDefaultProcessManager()
	clock := util.NewRealClock()
	admin := NewDefaultAdminCommander(cfg.Server.URI)
	mongodPath := filepath.Join(cfg.Install.BinDir, "mongod")

	controller := NewDefaultServerController(pm, admin, clock, cfg.Server, mongodPath, log)
	probe := NewDefaultVersionProbe(admin, pm, mongodPath, log)
	installer := NewDefaultInstaller(pm,
		cfg.Install.Variant, cfg.Install.DownloadURL, cfg.Install.BinDir, cfg.Install.CacheDir, log)
	backups := NewDefaultBackupManager(pm, clock,
		cfg.Backup.Root, cfg.Server.URI, cfg.Install.BinDir, log)
	migrator := NewDefaultStorageMigrator(admin, controller, backups, clock,
		cfg.Server.DBPath, cfg.Server.ConfigPath, log)
	fcv := NewDefaultFCVReconciler(admin, clock, log)
	checker := NewDefaultSystemChecker(cfg.Backup.Root, cfg.Install.BinDir, log)

	manager := NewDefaultUpgradeManager(probe, controller, installer, migrator, fcv,
		backups, checker, cfg.Server.ConfigPath, cfg.Backup.Enabled, log)

	return &runtimeDeps{
		manager:    manager,
		controller: controller,
		admin:      admin,
		log:        log,
	}
}

func (d *runtimeDeps) close(ctx context.Context) {
	_ = d.admin.Close(ctx)
	_ = d.log.Close()
}

func parseLogLevel(s string) logging.Level {
	switch strings.ToLower(s) {
	case "debug":
		return logging.LevelDebug
	case "warn":
		return logging.LevelWarn
	case "error":
		return logging.LevelError
	default:
		return logging.LevelInfo
	}
}

// -----------------------------------------------------------------------------
// Upgrade Command
// -----------------------------------------------------------------------------

func runUpgrade(cmd *cobra.Command, args []string) {
	// one orchestrator per host, enforced before anything is touched
	lock := process.NewRunLock(process.DefaultRunLockConfig())
	if err := lock.Acquire(); err != nil {
		exitFatal("lock", err)
	}
	defer lock.Release()

	ctx := context.Background()
	deps := buildDeps()
	defer deps.close(ctx)

	plan, err := deps.manager.PreparePlan(ctx)
	if err != nil {
		exitFatal("", err)
	}
	renderPlan(plan)

	if !plan.IsNoOp() {
		ux.WarningBox("Downtime ahead",
			fmt.Sprintf("mongod restarts at every one of the %d step(s) above.\nClients are disconnected each time until the new binary is up.", len(plan.Steps)))
		var prompter UserPrompter = NewDefaultUserPrompter()
		if assumeYes {
			prompter = &AutoApprovePrompter{}
		}
		ok, err := prompter.ConfirmUpgrade(plan)
		if err != nil {
			exitFatal("confirm", err)
		}
		if !ok {
			ux.Info("Upgrade aborted, nothing was changed.")
			return
		}
	}

	report, err := deps.manager.Execute(ctx, plan)
	renderReport(report)
	if err != nil {
		exitFatal("", err)
	}

	if keepStopped {
		if err := deps.controller.Stop(ctx); err != nil {
			exitFatal("stop", err)
		}
		ux.Info("mongod left stopped as requested.")
	}
	ux.Box("Upgrade complete", fmt.Sprintf("mongod is now at %s.\nFull run log: see the logging directory for run %s.", report.Final.String(), report.RunID))
}

// -----------------------------------------------------------------------------
// Rendering
// -----------------------------------------------------------------------------

func renderPlan(plan UpgradePlan) {
	ux.Title("Upgrade plan")
	ux.KeyValue("Current version", plan.From.String())
	ux.KeyValue("Final target", plan.FinalTarget().String())
	if plan.IsNoOp() {
		ux.Info("Nothing to do, the server is already at the final series.")
		return
	}
	for i, step := range plan.Steps {
		note := ""
		if step.MigrateStorage {
			note = "storage migration"
		}
		ux.StepLine(ux.IconPending, i+1, len(plan.Steps), step.Target.String(), note)
	}
	ux.Muted("Each step stops mongod, swaps the binary, restarts, then raises the feature compatibility version.")
}

func renderReport(report *RunReport) {
	if report == nil {
		return
	}
	ux.Title("Run report")
	ux.KeyValue("Run ID", report.RunID)
	ux.KeyValue("From", report.From.String())
	ux.KeyValue("Final", report.Final.String())
	ux.KeyValue("Duration", report.FinishedAt.Sub(report.StartedAt).Round(time.Second).String())
	if report.Backup != nil {
		ux.KeyValue("Backup", fmt.Sprintf("%s (%s)", report.Backup.Path, report.Backup.HumanSize()))
	}
	for i, s := range report.Steps {
		icon := ux.IconSuccess
		note := "fcv " + s.FCV.Outcome.String()
		if s.Skipped {
			note = "skipped"
		} else if s.Migrated {
			note = "migrated, " + note
		}
		if s.FCV.Outcome == FCVUnverifiable {
			icon = ux.IconWarning
		}
		ux.StepLine(icon, i+1, len(report.Steps), s.Step.Target.String(), note)
	}
	for _, w := range report.Warnings {
		ux.Warning(w)
	}
	if !report.Verified {
		ux.Warning("Final state was not verified.")
	}
}
