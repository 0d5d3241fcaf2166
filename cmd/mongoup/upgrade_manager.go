// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

/*
UpgradeManager orchestrates a full upgrade run.

A run is: preflight warnings, version detection, plan computation, one
backup, then each ladder step through a fixed state sequence

	Idle → Stopped → Installing → [StorageMigrating] → Started → FCVSet → Done

followed by final verification. The server state is re-probed before
every step rather than carried over, which is what makes an interrupted
run safely re-runnable: completed hops detect as done and skip.

Fatal errors abort the run with the backup left in place. Warnings
(FCV reconciliation, preflight findings) accumulate on the report and
never stop the ladder.
*/
package main

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jinterlante1206/mongoup/cmd/mongoup/internal/mongoconf"
	"github.com/jinterlante1206/mongoup/cmd/mongoup/internal/util"
	"github.com/jinterlante1206/mongoup/pkg/logging"
	"github.com/jinterlante1206/mongoup/pkg/ux"
)

// -----------------------------------------------------------------------------
// Types
// -----------------------------------------------------------------------------

// ServerState is a point-in-time observation of the managed server.
// It is re-probed whenever needed, never cached.
type ServerState struct {
	Installed Version
	Known     bool // false when no detection channel produced a version
	FCV       string
	Engine    Engine
	Running   bool
}

// StepResult records one ladder step for the run report.
type StepResult struct {
	Step     UpgradeStep
	Skipped  bool
	Migrated bool
	FCV      FCVResult
}

// RunReport is the outcome of a full run.
type RunReport struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time
	From       Version
	Final      Version
	Backup     *BackupInfo
	Steps      []StepResult
	Warnings   []string
	Verified   bool
}

// -----------------------------------------------------------------------------
// Interface Definition
// -----------------------------------------------------------------------------

// UpgradeManager owns the run lifecycle.
type UpgradeManager interface {
	// PreparePlan probes the server and computes the upgrade plan. The
	// caller shows the plan and collects consent before Execute.
	PreparePlan(ctx context.Context) (UpgradePlan, error)

	// Execute runs the plan to completion. The report is returned even
	// alongside a fatal error, describing how far the run got.
	Execute(ctx context.Context, plan UpgradePlan) (*RunReport, error)

	// Status probes the server without changing anything.
	Status(ctx context.Context) ServerState
}

// -----------------------------------------------------------------------------
// Implementation
// -----------------------------------------------------------------------------

// DefaultUpgradeManager implements UpgradeManager over the component
// interfaces. Every collaborator is an interface so step behavior is
// testable without a host.
type DefaultUpgradeManager struct {
	probe      VersionProbe
	controller ServerController
	installer  Installer
	migrator   StorageMigrator
	fcv        FCVReconciler
	backups    BackupManager
	checker    SystemChecker

	confPath      string
	backupEnabled bool

	runID string
	log   *logging.Logger
}

// NewDefaultUpgradeManager wires the production manager. A fresh run ID
// is minted per manager and stamped on every log line and the report.
func NewDefaultUpgradeManager(
	probe VersionProbe,
	controller ServerController,
	installer Installer,
	migrator StorageMigrator,
	fcv FCVReconciler,
	backups BackupManager,
	checker SystemChecker,
	confPath string,
	backupEnabled bool,
	log *logging.Logger,
) *DefaultUpgradeManager {
	runID := uuid.NewString()
	return &DefaultUpgradeManager{
		probe:         probe,
		controller:    controller,
		installer:     installer,
		migrator:      migrator,
		fcv:           fcv,
		backups:       backups,
		checker:       checker,
		confPath:      confPath,
		backupEnabled: backupEnabled,
		runID:         runID,
		log:           log.With("run_id", runID),
	}
}

// PreparePlan probes the server and computes the upgrade plan.
func (m *DefaultUpgradeManager) PreparePlan(ctx context.Context) (UpgradePlan, error) {
	current, ok := m.probe.Detect(ctx)
	if !ok {
		return UpgradePlan{}, util.Fatal("detect", fmt.Errorf("could not determine the installed MongoDB version"))
	}
	plan, err := BuildPlan(current)
	if err != nil {
		return UpgradePlan{}, util.Fatal("plan", err)
	}
	m.log.Info("plan computed", "from", plan.From.String(), "steps", len(plan.Steps))
	return plan, nil
}

// Execute runs the plan to completion.
func (m *DefaultUpgradeManager) Execute(ctx context.Context, plan UpgradePlan) (*RunReport, error) {
	report := &RunReport{
		RunID:     m.runID,
		StartedAt: time.Now(),
		From:      plan.From,
		Final:     plan.FinalTarget(),
	}
	defer func() { report.FinishedAt = time.Now() }()

	report.Warnings = append(report.Warnings, m.checker.Check()...)

	if plan.IsNoOp() {
		ux.Info(fmt.Sprintf("Server is already at %s or later, verifying only", finalTarget.FloorMinor().FCV()))
	} else {
		if err := m.takeBackup(ctx, report, plan.From); err != nil {
			return report, err
		}
		for i, step := range plan.Steps {
			result, err := m.runStep(ctx, step, i+1, len(plan.Steps))
			report.Steps = append(report.Steps, result)
			if result.FCV.Outcome == FCVUnverifiable {
				report.Warnings = append(report.Warnings,
					fmt.Sprintf("FCV %s could not be verified after the %s step", step.TargetFCV, step.Target))
			}
			if err != nil {
				return report, err
			}
		}
	}

	if err := m.verify(ctx, report); err != nil {
		return report, err
	}
	return report, nil
}

// Status probes the server without changing anything.
func (m *DefaultUpgradeManager) Status(ctx context.Context) ServerState {
	state := ServerState{}
	state.Installed, state.Known = m.probe.Detect(ctx)
	state.FCV, _ = m.fcv.Current(ctx, state.Installed)
	state.Engine = m.migrator.DetectEngine(ctx)
	state.Running, _ = m.controller.IsRunning(ctx)
	return state
}

// -----------------------------------------------------------------------------
// Run Phases
// -----------------------------------------------------------------------------

// takeBackup records the run's single safety-net dump. mongodump needs
// a live server, so a stopped one is started first.
func (m *DefaultUpgradeManager) takeBackup(ctx context.Context, report *RunReport, source Version) error {
	if !m.backupEnabled {
		report.Warnings = append(report.Warnings, "backups disabled in config, running without a safety net")
		return nil
	}
	running, err := m.controller.IsRunning(ctx)
	if err != nil {
		return util.Fatal("backup", err)
	}
	if !running {
		if err := m.controller.Start(ctx); err != nil {
			return util.Fatal("backup", err)
		}
	}
	info, err := m.backups.Create(ctx, source)
	if err != nil {
		return util.Fatal("backup", err)
	}
	report.Backup = &info
	ux.Success(fmt.Sprintf("Backup %s recorded (%s)", info.ID, info.HumanSize()))
	return nil
}

// runStep drives one ladder step through the state sequence.
func (m *DefaultUpgradeManager) runStep(ctx context.Context, step UpgradeStep, index, total int) (StepResult, error) {
	result := StepResult{Step: step}
	log := m.log.With("step", step.Target.String())

	// Idle: re-probe, a completed hop goes straight to Done
	current, ok := m.probe.Detect(ctx)
	if ok && stepCompleted(current, step) {
		log.Info("step already completed, skipping", "current", current.String())
		result.Skipped = true
		if current.FCV() == step.TargetFCV {
			// the server sits on this step's series, so the hop may
			// have been interrupted between install and FCV set
			fcvResult, err := m.fcv.Reconcile(ctx, step.TargetFCV, current)
			result.FCV = fcvResult
			if err != nil {
				log.Warn("FCV reconciliation unverified", "target", step.TargetFCV, "error", err)
			}
		} else {
			result.FCV = FCVResult{Outcome: FCVDeferred, Target: step.TargetFCV}
		}
		ux.StepLine(ux.IconSuccess, index, total, step.Target.String(), "already done")
		return result, nil
	}

	note := ""
	if step.MigrateStorage {
		note = "storage migration"
	}
	ux.StepLine(ux.IconPending, index, total, step.Target.String(), note)

	// Stopped
	if err := m.controller.Stop(ctx); err != nil {
		return result, util.Fatal("stop", err)
	}

	// Installing
	if err := m.installer.Install(ctx, step); err != nil {
		return result, util.Fatal("install", err)
	}

	// the new binary must never see a directive it rejects
	if err := m.neutralizeDirectives(step, log); err != nil {
		return result, util.Fatal("config", err)
	}

	// StorageMigrating: the migrator stops, rewrites, starts, and
	// restores on its own, so a migrated step is already Started.
	started := false
	if step.MigrateStorage {
		migrated, err := m.migrator.MigrateIfNeeded(ctx)
		if err != nil {
			return result, err
		}
		result.Migrated = migrated
		started = migrated
	}

	// Started
	if !started {
		if err := m.controller.Start(ctx); err != nil {
			return result, util.Fatal("start", err)
		}
	}

	// FCVSet: never fatal, the ladder keeps climbing
	fcvResult, err := m.fcv.Reconcile(ctx, step.TargetFCV, step.Target)
	result.FCV = fcvResult
	if err != nil {
		log.Warn("FCV reconciliation unverified", "target", step.TargetFCV, "error", err)
	}

	ux.StepLine(ux.IconSuccess, index, total, step.Target.String(), note)
	log.Info("step complete", "fcv", fcvResult.Outcome.String(), "migrated", result.Migrated)
	return result, nil
}

// neutralizeDirectives comments out config paths the step's binary no
// longer accepts. A directive that cannot be neutralized is fatal: the
// start attempt would burn its whole retry budget against a guaranteed
// parse error.
func (m *DefaultUpgradeManager) neutralizeDirectives(step UpgradeStep, log *logging.Logger) error {
	if len(step.RetiredDirectives) == 0 {
		return nil
	}
	store, err := mongoconf.Load(m.confPath)
	if err != nil {
		return fmt.Errorf("failed to load mongod config: %w", err)
	}
	changed := false
	for _, path := range step.RetiredDirectives {
		if store.Disable(path) {
			log.Info("retired directive neutralized", "directive", path)
			changed = true
		}
	}
	if !changed {
		return nil
	}
	if err := store.Save(); err != nil {
		return fmt.Errorf("failed to save mongod config: %w", err)
	}
	return nil
}

// verify re-probes after the ladder and reconciles the final FCV. A
// server that does not report the expected version after a "successful"
// run is a fatal inconsistency, not a warning.
func (m *DefaultUpgradeManager) verify(ctx context.Context, report *RunReport) error {
	installed, ok := m.probe.Detect(ctx)
	if !ok {
		report.Warnings = append(report.Warnings, "final version could not be verified")
		return nil
	}
	if installed.Less(finalTarget.FloorMinor()) {
		return util.Fatal("verify",
			fmt.Errorf("server reports %s after the run, expected at least %s", installed, finalTarget.FloorMinor()))
	}

	fcvResult, err := m.fcv.Reconcile(ctx, finalTarget.FCV(), installed)
	if err != nil || fcvResult.Outcome == FCVUnverifiable {
		report.Warnings = append(report.Warnings,
			fmt.Sprintf("final FCV %s could not be verified", finalTarget.FCV()))
	}

	report.Final = installed
	report.Verified = true
	m.log.Info("run verified", "installed", installed.String(), "fcv", fcvResult.Outcome.String())
	return nil
}

// Compile-time interface compliance check.
var _ UpgradeManager = (*DefaultUpgradeManager)(nil)
