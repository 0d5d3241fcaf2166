// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"

	"github.com/jinterlante1206/mongoup/pkg/logging"
)

// testLogger returns a quiet logger for unit tests.
func testLogger() *logging.Logger {
	return logging.New(logging.Config{Level: logging.LevelError, Quiet: true})
}

// MockVersionProbe is a test double for VersionProbe.
type MockVersionProbe struct {
	DetectFunc func(ctx context.Context) (Version, bool)
	Detects    int
}

func (m *MockVersionProbe) Detect(ctx context.Context) (Version, bool) {
	m.Detects++
	if m.DetectFunc == nil {
		panic("MockVersionProbe.DetectFunc not set")
	}
	return m.DetectFunc(ctx)
}

// MockServerController is a test double for ServerController.
type MockServerController struct {
	StopFunc      func(ctx context.Context) error
	StartFunc     func(ctx context.Context) error
	IsRunningFunc func(ctx context.Context) (bool, error)

	Stops  int
	Starts int
}

func (m *MockServerController) Stop(ctx context.Context) error {
	m.Stops++
	if m.StopFunc == nil {
		return nil
	}
	return m.StopFunc(ctx)
}

func (m *MockServerController) Start(ctx context.Context) error {
	m.Starts++
	if m.StartFunc == nil {
		return nil
	}
	return m.StartFunc(ctx)
}

func (m *MockServerController) IsRunning(ctx context.Context) (bool, error) {
	if m.IsRunningFunc == nil {
		return true, nil
	}
	return m.IsRunningFunc(ctx)
}

// MockInstaller is a test double for Installer.
type MockInstaller struct {
	InstallFunc func(ctx context.Context, step UpgradeStep) error
	Installed   []Version
}

func (m *MockInstaller) Install(ctx context.Context, step UpgradeStep) error {
	m.Installed = append(m.Installed, step.Target)
	if m.InstallFunc == nil {
		return nil
	}
	return m.InstallFunc(ctx, step)
}

// MockStorageMigrator is a test double for StorageMigrator.
type MockStorageMigrator struct {
	DetectEngineFunc    func(ctx context.Context) Engine
	MigrateIfNeededFunc func(ctx context.Context) (bool, error)
	Migrations          int
}

func (m *MockStorageMigrator) DetectEngine(ctx context.Context) Engine {
	if m.DetectEngineFunc == nil {
		return EngineModern
	}
	return m.DetectEngineFunc(ctx)
}

func (m *MockStorageMigrator) MigrateIfNeeded(ctx context.Context) (bool, error) {
	m.Migrations++
	if m.MigrateIfNeededFunc == nil {
		return false, nil
	}
	return m.MigrateIfNeededFunc(ctx)
}

// MockFCVReconciler is a test double for FCVReconciler.
type MockFCVReconciler struct {
	ReconcileFunc func(ctx context.Context, target string, installed Version) (FCVResult, error)
	CurrentFunc   func(ctx context.Context, installed Version) (string, bool)
	Reconciled    []string
}

func (m *MockFCVReconciler) Reconcile(ctx context.Context, target string, installed Version) (FCVResult, error) {
	m.Reconciled = append(m.Reconciled, target)
	if m.ReconcileFunc == nil {
		return FCVResult{Outcome: FCVMatched, Current: target, Target: target}, nil
	}
	return m.ReconcileFunc(ctx, target, installed)
}

func (m *MockFCVReconciler) Current(ctx context.Context, installed Version) (string, bool) {
	if m.CurrentFunc == nil {
		return installed.FCV(), true
	}
	return m.CurrentFunc(ctx, installed)
}

// MockBackupManager is a test double for BackupManager.
type MockBackupManager struct {
	CreateFunc  func(ctx context.Context, source Version) (BackupInfo, error)
	LatestFunc  func() (BackupInfo, error)
	RestoreFunc func(ctx context.Context, info BackupInfo) error

	Creates  int
	Restores int
}

func (m *MockBackupManager) Create(ctx context.Context, source Version) (BackupInfo, error) {
	m.Creates++
	if m.CreateFunc == nil {
		return BackupInfo{ID: "test-backup", Path: "/tmp/dump", SourceVersion: source.String()}, nil
	}
	return m.CreateFunc(ctx, source)
}

func (m *MockBackupManager) Latest() (BackupInfo, error) {
	if m.LatestFunc == nil {
		return BackupInfo{ID: "test-backup", Path: "/tmp/dump"}, nil
	}
	return m.LatestFunc()
}

func (m *MockBackupManager) Restore(ctx context.Context, info BackupInfo) error {
	m.Restores++
	if m.RestoreFunc == nil {
		return nil
	}
	return m.RestoreFunc(ctx, info)
}

// MockSystemChecker is a test double for SystemChecker.
type MockSystemChecker struct {
	Findings []string
}

func (m *MockSystemChecker) Check() []string {
	return m.Findings
}

// Compile-time interface compliance checks.
var (
	_ VersionProbe     = (*MockVersionProbe)(nil)
	_ ServerController = (*MockServerController)(nil)
	_ Installer        = (*MockInstaller)(nil)
	_ StorageMigrator  = (*MockStorageMigrator)(nil)
	_ FCVReconciler    = (*MockFCVReconciler)(nil)
	_ BackupManager    = (*MockBackupManager)(nil)
	_ SystemChecker    = (*MockSystemChecker)(nil)
)
