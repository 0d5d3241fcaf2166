// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

/*
BackupManager takes the run's safety-net dump and tracks it through a
pointer file.

Exactly one mongodump is taken per run, before the first step touches
anything. The pointer file (<root>/latest-backup.yaml) records where it
lives; the storage migrator restores from it and the final report shows
it. The dump directory itself is never deleted by this tool.
*/
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/jinterlante1206/mongoup/cmd/mongoup/internal/util"
	"github.com/jinterlante1206/mongoup/pkg/logging"
)

// -----------------------------------------------------------------------------
// Errors
// -----------------------------------------------------------------------------

var (
	// ErrNoBackup indicates the pointer file is missing or unreadable
	// when a restore is required. Fatal: restoring without a known dump
	// is not an option.
	ErrNoBackup = errors.New("no backup recorded")

	// ErrRestoreFailed indicates mongorestore did not complete. Fatal:
	// the data directory may be partial.
	ErrRestoreFailed = errors.New("backup restore failed")
)

const pointerFileName = "latest-backup.yaml"

// -----------------------------------------------------------------------------
// Types
// -----------------------------------------------------------------------------

// BackupInfo describes one mongodump, as recorded in the pointer file.
type BackupInfo struct {
	ID            string    `yaml:"id"`
	Path          string    `yaml:"path"`
	CreatedAt     time.Time `yaml:"created_at"`
	SourceVersion string    `yaml:"source_version"`
	SizeBytes     int64     `yaml:"size_bytes"`
}

// HumanSize renders the dump size for the run report, e.g. "1.3 GB".
func (b BackupInfo) HumanSize() string {
	return humanize.Bytes(uint64(b.SizeBytes))
}

// -----------------------------------------------------------------------------
// Interface Definition
// -----------------------------------------------------------------------------

// BackupManager creates, locates, and restores the run's dump.
type BackupManager interface {
	// Create takes a full mongodump and records it in the pointer file.
	Create(ctx context.Context, source Version) (BackupInfo, error)

	// Latest reads the pointer file. Returns ErrNoBackup (wrapped) when
	// no dump has been recorded.
	Latest() (BackupInfo, error)

	// Restore replays the dump into the running server.
	Restore(ctx context.Context, info BackupInfo) error
}

// -----------------------------------------------------------------------------
// Implementation
// -----------------------------------------------------------------------------

// DefaultBackupManager implements BackupManager with mongodump and
// mongorestore through the ProcessManager.
type DefaultBackupManager struct {
	pm       ProcessManager
	clock    util.Clock
	root     string
	uri      string
	binDir   string
	timeouts util.TimeoutConfig
	log      *logging.Logger
}

// NewDefaultBackupManager wires the production backup manager.
func NewDefaultBackupManager(pm ProcessManager, clock util.Clock, root, uri, binDir string, log *logging.Logger) *DefaultBackupManager {
	return &DefaultBackupManager{
		pm:       pm,
		clock:    clock,
		root:     root,
		uri:      uri,
		binDir:   binDir,
		timeouts: util.NewTimeoutConfig().Validated(),
		log:      log,
	}
}

// Create takes a full mongodump and records it in the pointer file.
func (b *DefaultBackupManager) Create(ctx context.Context, source Version) (BackupInfo, error) {
	now := b.clock.Now()
	dir := filepath.Join(b.root, "dump-"+now.Format("20060102-150405"))
	if err := os.MkdirAll(dir, 0700); err != nil {
		return BackupInfo{}, fmt.Errorf("failed to create backup directory %s: %w", dir, err)
	}

	b.log.Info("taking backup", "dir", dir, "source_version", source.String())
	mongodump := filepath.Join(b.binDir, "mongodump")
	dumpCtx, cancel := context.WithTimeout(ctx, b.timeouts.Dump)
	defer cancel()
	if _, err := b.pm.Run(dumpCtx, mongodump, "--uri", b.uri, "--out", dir); err != nil {
		return BackupInfo{}, fmt.Errorf("mongodump failed: %w", err)
	}

	size, err := dirSize(dir)
	if err != nil {
		// size is report detail only
		b.log.Warn("could not size backup directory", "dir", dir, "error", err)
	}

	info := BackupInfo{
		ID:            uuid.NewString(),
		Path:          dir,
		CreatedAt:     now,
		SourceVersion: source.String(),
		SizeBytes:     size,
	}
	if err := b.writePointer(info); err != nil {
		return BackupInfo{}, err
	}
	b.log.Info("backup recorded", "id", info.ID, "size", info.HumanSize())
	return info, nil
}

// Latest reads the pointer file.
func (b *DefaultBackupManager) Latest() (BackupInfo, error) {
	data, err := os.ReadFile(filepath.Join(b.root, pointerFileName))
	if err != nil {
		return BackupInfo{}, fmt.Errorf("%w: %v", ErrNoBackup, err)
	}
	var info BackupInfo
	if err := yaml.Unmarshal(data, &info); err != nil {
		return BackupInfo{}, fmt.Errorf("%w: pointer file is corrupt: %v", ErrNoBackup, err)
	}
	if info.Path == "" {
		return BackupInfo{}, fmt.Errorf("%w: pointer file has no path", ErrNoBackup)
	}
	return info, nil
}

// Restore replays the dump into the running server.
func (b *DefaultBackupManager) Restore(ctx context.Context, info BackupInfo) error {
	b.log.Info("restoring backup", "id", info.ID, "dir", info.Path)
	mongorestore := filepath.Join(b.binDir, "mongorestore")
	restoreCtx, cancel := context.WithTimeout(ctx, b.timeouts.Dump)
	defer cancel()
	if _, err := b.pm.Run(restoreCtx, mongorestore, "--uri", b.uri, "--drop", info.Path); err != nil {
		return fmt.Errorf("%w: %v", ErrRestoreFailed, err)
	}
	return nil
}

func (b *DefaultBackupManager) writePointer(info BackupInfo) error {
	data, err := yaml.Marshal(info)
	if err != nil {
		return fmt.Errorf("failed to marshal backup pointer: %w", err)
	}
	path := filepath.Join(b.root, pointerFileName)
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write backup pointer %s: %w", path, err)
	}
	return nil
}

func dirSize(root string) (int64, error) {
	var total int64
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() {
			info, err := d.Info()
			if err != nil {
				return err
			}
			total += info.Size()
		}
		return nil
	})
	return total, err
}

// Compile-time interface compliance check.
var _ BackupManager = (*DefaultBackupManager)(nil)
