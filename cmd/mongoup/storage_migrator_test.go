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
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/jinterlante1206/mongoup/cmd/mongoup/internal/util"
)

const legacyMongodConf = `# mongod.conf
storage:
  dbPath: /var/lib/mongo
  engine: mmapv1
  mmapv1:
    smallFiles: true
  journal:
    enabled: true
net:
  port: 27017
`

// downAdmin simulates a stopped server: every admin call fails.
func downAdmin() *MockAdminCommander {
	return &MockAdminCommander{
		RunCommandFunc: func(ctx context.Context, cmd bson.D) (bson.M, error) {
			return nil, fmt.Errorf("connection refused")
		},
	}
}

func writeConf(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mongod.conf")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func newTestMigrator(admin AdminCommander, controller ServerController, backups BackupManager, dbPath, confPath string) *DefaultStorageMigrator {
	clock := util.NewFakeClock(time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC))
	return NewDefaultStorageMigrator(admin, controller, backups, clock, dbPath, confPath, testLogger())
}

func TestDetectEngineViaServerStatus(t *testing.T) {
	admin := &MockAdminCommander{
		RunCommandFunc: func(ctx context.Context, cmd bson.D) (bson.M, error) {
			return bson.M{"storageEngine": bson.M{"name": "wiredTiger"}}, nil
		},
	}
	m := newTestMigrator(admin, &MockServerController{}, &MockBackupManager{}, t.TempDir(), "/nonexistent.conf")
	if e := m.DetectEngine(context.Background()); e != EngineModern {
		t.Errorf("engine = %q, want modern", e)
	}
}

func TestDetectEngineViaConfig(t *testing.T) {
	conf := writeConf(t, legacyMongodConf)
	m := newTestMigrator(downAdmin(), &MockServerController{}, &MockBackupManager{}, t.TempDir(), conf)
	if e := m.DetectEngine(context.Background()); e != EngineLegacy {
		t.Errorf("engine = %q, want legacy", e)
	}
}

func TestDetectEngineViaDataFiles(t *testing.T) {
	conf := writeConf(t, "net:\n  port: 27017\n") // no engine directive

	modern := t.TempDir()
	if err := os.WriteFile(filepath.Join(modern, "WiredTiger"), []byte("WiredTiger\n"), 0600); err != nil {
		t.Fatal(err)
	}
	m := newTestMigrator(downAdmin(), &MockServerController{}, &MockBackupManager{}, modern, conf)
	if e := m.DetectEngine(context.Background()); e != EngineModern {
		t.Errorf("engine = %q, want modern from WiredTiger file", e)
	}

	legacy := t.TempDir()
	if err := os.WriteFile(filepath.Join(legacy, "test.ns"), []byte{0}, 0600); err != nil {
		t.Fatal(err)
	}
	m = newTestMigrator(downAdmin(), &MockServerController{}, &MockBackupManager{}, legacy, conf)
	if e := m.DetectEngine(context.Background()); e != EngineLegacy {
		t.Errorf("engine = %q, want legacy from namespace files", e)
	}
}

func TestDetectEngineDefaultsLegacy(t *testing.T) {
	conf := writeConf(t, "net:\n  port: 27017\n")
	m := newTestMigrator(downAdmin(), &MockServerController{}, &MockBackupManager{}, t.TempDir(), conf)
	if e := m.DetectEngine(context.Background()); e != EngineLegacy {
		t.Errorf("engine = %q, silence must default to legacy", e)
	}
}

func TestNormalizeEngine(t *testing.T) {
	tests := []struct {
		in   string
		want Engine
	}{
		{"wiredTiger", EngineModern},
		{"WiredTiger", EngineModern},
		{"mmapv1", EngineLegacy},
		{"MMAPv1", EngineLegacy},
		{"mmap_v1", EngineLegacy},
		{"inMemory", EngineUnknown},
		{"", EngineUnknown},
	}
	for _, tt := range tests {
		if got := NormalizeEngine(tt.in); got != tt.want {
			t.Errorf("NormalizeEngine(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestMigrateNoOpOnModern(t *testing.T) {
	admin := &MockAdminCommander{
		RunCommandFunc: func(ctx context.Context, cmd bson.D) (bson.M, error) {
			return bson.M{"storageEngine": bson.M{"name": "wiredTiger"}}, nil
		},
	}
	controller := &MockServerController{}
	backups := &MockBackupManager{}

	m := newTestMigrator(admin, controller, backups, t.TempDir(), "/nonexistent.conf")
	migrated, err := m.MigrateIfNeeded(context.Background())
	if err != nil {
		t.Fatalf("MigrateIfNeeded: %v", err)
	}
	if migrated {
		t.Error("modern engine must not migrate")
	}
	if controller.Stops != 0 || controller.Starts != 0 {
		t.Errorf("no-op touched the controller: %d stops, %d starts", controller.Stops, controller.Starts)
	}
	if backups.Restores != 0 {
		t.Error("no-op must not restore")
	}
}

func TestMigrateLegacyDataDir(t *testing.T) {
	base := t.TempDir()
	dbPath := filepath.Join(base, "mongo")
	if err := os.Mkdir(dbPath, 0750); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dbPath, "local.0"), []byte{0}, 0600); err != nil {
		t.Fatal(err)
	}
	conf := writeConf(t, legacyMongodConf)

	controller := &MockServerController{}
	backups := &MockBackupManager{}

	m := newTestMigrator(downAdmin(), controller, backups, dbPath, conf)
	migrated, err := m.MigrateIfNeeded(context.Background())
	if err != nil {
		t.Fatalf("MigrateIfNeeded: %v", err)
	}
	if !migrated {
		t.Fatal("legacy data directory must migrate")
	}

	// old directory preserved under a timestamped name, new one empty
	entries, err := os.ReadDir(base)
	if err != nil {
		t.Fatal(err)
	}
	asideFound := false
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), "mongo.mmapv1-") {
			asideFound = true
		}
	}
	if !asideFound {
		t.Error("legacy directory was not set aside")
	}
	fresh, err := os.ReadDir(dbPath)
	if err != nil {
		t.Fatalf("new dbpath missing: %v", err)
	}
	if len(fresh) != 0 {
		t.Errorf("new dbpath is not empty: %d entries", len(fresh))
	}

	// config now points at wiredTiger with mmapv1 neutralized
	data, err := os.ReadFile(conf)
	if err != nil {
		t.Fatal(err)
	}
	text := string(data)
	if !strings.Contains(text, "engine: wiredTiger") {
		t.Error("storage.engine was not rewritten")
	}
	if !strings.Contains(text, "#mmapv1:") {
		t.Errorf("storage.mmapv1 was not commented out:\n%s", text)
	}
	if !strings.Contains(text, "#smallFiles") {
		t.Errorf("the nested mmapv1 block was not commented out:\n%s", text)
	}

	if controller.Stops != 1 || controller.Starts != 1 {
		t.Errorf("lifecycle calls: %d stops, %d starts", controller.Stops, controller.Starts)
	}
	if backups.Restores != 1 {
		t.Errorf("restores = %d, want 1", backups.Restores)
	}
}

func TestMigrateWithoutBackupIsFatal(t *testing.T) {
	conf := writeConf(t, legacyMongodConf)
	controller := &MockServerController{}
	backups := &MockBackupManager{
		LatestFunc: func() (BackupInfo, error) {
			return BackupInfo{}, fmt.Errorf("%w: pointer missing", ErrNoBackup)
		},
	}

	m := newTestMigrator(downAdmin(), controller, backups, t.TempDir(), conf)
	_, err := m.MigrateIfNeeded(context.Background())
	if err == nil {
		t.Fatal("migration without a backup must fail")
	}
	if !util.IsFatal(err) {
		t.Errorf("error %v must classify as fatal", err)
	}
	if controller.Stops != 0 {
		t.Error("nothing may be stopped before the restore source is confirmed")
	}
}
