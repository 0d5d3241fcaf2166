// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

/*
StorageMigrator moves an MMAPv1 data directory to WiredTiger.

MMAPv1 was removed in MongoDB 4.2, so the 4.2 hop cannot start against a
legacy data directory. Migration sets the old directory aside (renamed,
never deleted), points the config at WiredTiger, and rebuilds the data
from the run's mongodump. Engine detection is layered because each
source of truth is only available in some server states.
*/
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/jinterlante1206/mongoup/cmd/mongoup/internal/mongoconf"
	"github.com/jinterlante1206/mongoup/cmd/mongoup/internal/util"
	"github.com/jinterlante1206/mongoup/pkg/logging"
)

// -----------------------------------------------------------------------------
// Engine
// -----------------------------------------------------------------------------

// Engine is the canonical storage engine identity.
type Engine string

const (
	EngineModern  Engine = "wiredTiger"
	EngineLegacy  Engine = "mmapv1"
	EngineUnknown Engine = ""
)

// NormalizeEngine maps the spellings seen across server generations and
// config files onto the canonical constants.
func NormalizeEngine(name string) Engine {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "wiredtiger":
		return EngineModern
	case "mmapv1", "mmap_v1", "mmap":
		return EngineLegacy
	default:
		return EngineUnknown
	}
}

// -----------------------------------------------------------------------------
// Interface Definition
// -----------------------------------------------------------------------------

// StorageMigrator detects the storage engine and migrates legacy data
// directories to WiredTiger.
type StorageMigrator interface {
	// DetectEngine reports the effective storage engine. Never errors:
	// when every channel is silent it assumes legacy, because treating
	// a legacy directory as modern bricks the 4.2 start while the
	// converse only costs an unnecessary migration check.
	DetectEngine(ctx context.Context) Engine

	// MigrateIfNeeded migrates when the engine is legacy. Returns true
	// if a migration ran. A modern engine is a no-op that touches
	// nothing.
	MigrateIfNeeded(ctx context.Context) (bool, error)
}

// -----------------------------------------------------------------------------
// Implementation
// -----------------------------------------------------------------------------

// DefaultStorageMigrator implements StorageMigrator.
type DefaultStorageMigrator struct {
	admin      AdminCommander
	controller ServerController
	backups    BackupManager
	clock      util.Clock
	dbPath     string
	confPath   string
	log        *logging.Logger
}

// NewDefaultStorageMigrator wires the production migrator.
func NewDefaultStorageMigrator(admin AdminCommander, controller ServerController, backups BackupManager, clock util.Clock, dbPath, confPath string, log *logging.Logger) *DefaultStorageMigrator {
	return &DefaultStorageMigrator{
		admin:      admin,
		controller: controller,
		backups:    backups,
		clock:      clock,
		dbPath:     dbPath,
		confPath:   confPath,
		log:        log,
	}
}

// DetectEngine reports the effective storage engine.
func (m *DefaultStorageMigrator) DetectEngine(ctx context.Context) Engine {
	if e := m.detectViaServerStatus(ctx); e != EngineUnknown {
		return e
	}
	if e := m.detectViaConfig(); e != EngineUnknown {
		return e
	}
	if e := m.detectViaDataFiles(); e != EngineUnknown {
		return e
	}
	m.log.Warn("storage engine undetectable, assuming legacy", "dbpath", m.dbPath)
	return EngineLegacy
}

// MigrateIfNeeded migrates when the engine is legacy.
func (m *DefaultStorageMigrator) MigrateIfNeeded(ctx context.Context) (bool, error) {
	if m.DetectEngine(ctx) == EngineModern {
		m.log.Debug("storage engine already wiredTiger, skipping migration")
		return false, nil
	}

	// the restore source must exist before anything is moved aside
	backup, err := m.backups.Latest()
	if err != nil {
		return false, util.Fatal("storage-migrate", err)
	}

	m.log.Info("migrating storage engine", "dbpath", m.dbPath, "backup", backup.Path)

	if err := m.controller.Stop(ctx); err != nil {
		return false, util.Fatal("storage-migrate", err)
	}
	if err := m.setAsideDataDir(); err != nil {
		return false, util.Fatal("storage-migrate", err)
	}
	if err := m.rewriteConfig(); err != nil {
		return false, util.Fatal("storage-migrate", err)
	}
	if err := m.controller.Start(ctx); err != nil {
		return false, util.Fatal("storage-migrate", err)
	}
	if err := m.backups.Restore(ctx, backup); err != nil {
		return false, util.Fatal("storage-migrate", err)
	}

	m.log.Info("storage migration complete")
	return true, nil
}

// setAsideDataDir renames the legacy directory to a timestamped sibling
// and recreates an empty dbpath with the original mode and ownership.
// The old data survives until an operator removes it by hand.
func (m *DefaultStorageMigrator) setAsideDataDir() error {
	info, err := os.Stat(m.dbPath)
	if err != nil {
		return fmt.Errorf("failed to stat dbpath %s: %w", m.dbPath, err)
	}

	aside := fmt.Sprintf("%s.mmapv1-%s", m.dbPath, m.clock.Now().Format("20060102-150405"))
	if err := os.Rename(m.dbPath, aside); err != nil {
		return fmt.Errorf("failed to set aside dbpath: %w", err)
	}
	m.log.Info("legacy data directory preserved", "path", aside)

	if err := os.Mkdir(m.dbPath, info.Mode().Perm()); err != nil {
		return fmt.Errorf("failed to recreate dbpath: %w", err)
	}
	if st, ok := info.Sys().(*syscall.Stat_t); ok {
		if err := os.Chown(m.dbPath, int(st.Uid), int(st.Gid)); err != nil {
			return fmt.Errorf("failed to restore dbpath ownership: %w", err)
		}
	}
	return nil
}

func (m *DefaultStorageMigrator) rewriteConfig() error {
	store, err := mongoconf.Load(m.confPath)
	if err != nil {
		return fmt.Errorf("failed to load mongod config: %w", err)
	}
	store.Set("storage.engine", "wiredTiger")
	store.Disable("storage.mmapv1")
	if err := store.Save(); err != nil {
		return fmt.Errorf("failed to save mongod config: %w", err)
	}
	return nil
}

// -----------------------------------------------------------------------------
// Detection Strategies
// -----------------------------------------------------------------------------

// detectViaServerStatus asks the live server. Most authoritative, only
// works while mongod is up.
func (m *DefaultStorageMigrator) detectViaServerStatus(ctx context.Context) Engine {
	reply, err := m.admin.RunCommand(ctx, bson.D{{Key: "serverStatus", Value: 1}})
	if err != nil {
		return EngineUnknown
	}
	se, ok := reply["storageEngine"].(bson.M)
	if !ok {
		return EngineUnknown
	}
	name, _ := se["name"].(string)
	return NormalizeEngine(name)
}

// detectViaConfig reads storage.engine from mongod.conf. An explicit
// value decides; an absent one falls through, because the server default
// depends on the binary generation.
func (m *DefaultStorageMigrator) detectViaConfig() Engine {
	store, err := mongoconf.Load(m.confPath)
	if err != nil {
		return EngineUnknown
	}
	value, ok, err := store.Get("storage.engine")
	if err != nil || !ok {
		return EngineUnknown
	}
	return NormalizeEngine(value)
}

// detectViaDataFiles inspects the data directory layout. A WiredTiger
// metadata file marks a modern directory; namespace files (*.ns) or the
// local.0 extent mark MMAPv1.
func (m *DefaultStorageMigrator) detectViaDataFiles() Engine {
	if _, err := os.Stat(filepath.Join(m.dbPath, "WiredTiger")); err == nil {
		return EngineModern
	}
	if matches, err := filepath.Glob(filepath.Join(m.dbPath, "*.ns")); err == nil && len(matches) > 0 {
		return EngineLegacy
	}
	if _, err := os.Stat(filepath.Join(m.dbPath, "local.0")); err == nil {
		return EngineLegacy
	}
	return EngineUnknown
}

// Compile-time interface compliance check.
var _ StorageMigrator = (*DefaultStorageMigrator)(nil)
