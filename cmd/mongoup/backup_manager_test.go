// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jinterlante1206/mongoup/cmd/mongoup/internal/util"
)

func newTestBackupManager(t *testing.T, pm ProcessManager) (*DefaultBackupManager, string) {
	t.Helper()
	root := t.TempDir()
	clock := util.NewFakeClock(time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC))
	b := NewDefaultBackupManager(pm, clock, root, "mongodb://127.0.0.1:27017", "/usr/local/bin", testLogger())
	return b, root
}

func TestCreateRecordsPointer(t *testing.T) {
	var dumpDir string
	pm := &MockProcessManager{
		RunFunc: func(ctx context.Context, name string, args ...string) ([]byte, error) {
			if filepath.Base(name) != "mongodump" {
				t.Fatalf("unexpected command %s", name)
			}
			// simulate mongodump writing data
			for i, a := range args {
				if a == "--out" {
					dumpDir = args[i+1]
				}
			}
			return nil, os.WriteFile(filepath.Join(dumpDir, "admin.bson"), []byte("0123456789"), 0600)
		},
	}
	b, root := newTestBackupManager(t, pm)

	info, err := b.Create(context.Background(), MustParseVersion("4.0.28"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if info.ID == "" {
		t.Error("backup must carry an ID")
	}
	if info.SourceVersion != "4.0.28" {
		t.Errorf("source version = %s", info.SourceVersion)
	}
	if info.SizeBytes != 10 {
		t.Errorf("size = %d, want 10", info.SizeBytes)
	}

	// the pointer file round-trips through Latest
	latest, err := b.Latest()
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if latest.ID != info.ID || latest.Path != info.Path {
		t.Errorf("Latest = %+v, want %+v", latest, info)
	}
	if filepath.Dir(latest.Path) != root {
		t.Errorf("dump dir %s is outside the backup root", latest.Path)
	}
}

func TestLatestWithoutPointer(t *testing.T) {
	b, _ := newTestBackupManager(t, &MockProcessManager{})
	if _, err := b.Latest(); !errors.Is(err, ErrNoBackup) {
		t.Errorf("Latest error = %v, want ErrNoBackup", err)
	}
}

func TestLatestCorruptPointer(t *testing.T) {
	b, root := newTestBackupManager(t, &MockProcessManager{})
	if err := os.WriteFile(filepath.Join(root, pointerFileName), []byte("{not yaml"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := b.Latest(); !errors.Is(err, ErrNoBackup) {
		t.Errorf("Latest error = %v, want ErrNoBackup", err)
	}
}

func TestCreateFailsWhenDumpFails(t *testing.T) {
	pm := &MockProcessManager{
		RunFunc: func(ctx context.Context, name string, args ...string) ([]byte, error) {
			return nil, fmt.Errorf("connection refused")
		},
	}
	b, root := newTestBackupManager(t, pm)

	if _, err := b.Create(context.Background(), MustParseVersion("4.0.28")); err == nil {
		t.Fatal("expected mongodump failure to surface")
	}
	// a failed dump must not leave a pointer behind
	if _, err := os.Stat(filepath.Join(root, pointerFileName)); !os.IsNotExist(err) {
		t.Error("pointer file written despite dump failure")
	}
}

func TestRestoreFailure(t *testing.T) {
	pm := &MockProcessManager{
		RunFunc: func(ctx context.Context, name string, args ...string) ([]byte, error) {
			return nil, fmt.Errorf("restore error")
		},
	}
	b, _ := newTestBackupManager(t, pm)

	err := b.Restore(context.Background(), BackupInfo{ID: "x", Path: "/tmp/dump"})
	if !errors.Is(err, ErrRestoreFailed) {
		t.Errorf("Restore error = %v, want ErrRestoreFailed", err)
	}
}

func TestDumpCommandsCarryDeadline(t *testing.T) {
	// a hung mongodump or mongorestore must be killed by its context,
	// never left to stall the run
	deadlines := 0
	pm := &MockProcessManager{
		RunFunc: func(ctx context.Context, name string, args ...string) ([]byte, error) {
			if _, ok := ctx.Deadline(); ok {
				deadlines++
			}
			return nil, nil
		},
	}
	b, _ := newTestBackupManager(t, pm)

	if _, err := b.Create(context.Background(), MustParseVersion("4.0.28")); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := b.Restore(context.Background(), BackupInfo{ID: "x", Path: "/tmp/dump"}); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if deadlines != 2 {
		t.Errorf("commands with a deadline = %d, want 2", deadlines)
	}
}

func TestRestoreUsesDrop(t *testing.T) {
	pm := &MockProcessManager{
		RunFunc: func(ctx context.Context, name string, args ...string) ([]byte, error) {
			return nil, nil
		},
	}
	b, _ := newTestBackupManager(t, pm)

	if err := b.Restore(context.Background(), BackupInfo{ID: "x", Path: "/tmp/dump"}); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	call := pm.GetCalls()[0]
	hasDrop := false
	for _, a := range call.Args {
		if a == "--drop" {
			hasDrop = true
		}
	}
	if !hasDrop {
		t.Error("restore must replace existing collections with --drop")
	}
}
