// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package process

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// RunLocker defines the interface for single-instance locking.
//
// # Description
//
// RunLocker prevents two mongoup invocations from driving the same
// server at once. One instance mid-install while another stops the
// service would leave the ladder in an unclassifiable state.
//
// # Thread Safety
//
// Implementations must be safe for use from a single goroutine. The lock
// provides inter-process synchronization, not intra-process.
type RunLocker interface {
	// Acquire attempts to get an exclusive lock.
	// Returns nil if lock acquired, error otherwise.
	Acquire() error

	// Release releases the lock if held.
	// Safe to call multiple times or if lock was never acquired.
	Release() error

	// IsHeld returns true if this instance currently holds the lock.
	IsHeld() bool

	// HolderPID returns the PID of the process holding the lock.
	// Returns 0 if no process holds the lock or if unable to determine.
	HolderPID() int
}

// RunLockConfig configures lock file location.
type RunLockConfig struct {
	// LockDir is the directory for lock files.
	// Default: system temp directory
	LockDir string

	// LockName is the base name for lock files.
	// Default: "mongoup"
	LockName string
}

// DefaultRunLockConfig returns sensible defaults.
func DefaultRunLockConfig() RunLockConfig {
	return RunLockConfig{
		LockDir:  os.TempDir(),
		LockName: "mongoup",
	}
}

// RunLock implements RunLocker using flock(2).
//
// # How It Works
//
//  1. Creates a lock file at {LockDir}/{LockName}.lock
//  2. Attempts a non-blocking exclusive flock on it
//  3. Writes this PID to {LockDir}/{LockName}.pid for debugging
//  4. On release, removes the PID file and releases the flock
//
// The lock file itself is left behind after release for faster
// subsequent acquires; the flock is what matters.
type RunLock struct {
	config   RunLockConfig
	lockPath string
	pidPath  string
	lockFile *os.File
	held     bool
}

// NewRunLock creates a new run lock. Does not acquire it.
func NewRunLock(config RunLockConfig) *RunLock {
	if config.LockDir == "" {
		config.LockDir = os.TempDir()
	}
	if config.LockName == "" {
		config.LockName = "mongoup"
	}

	return &RunLock{
		config:   config,
		lockPath: filepath.Join(config.LockDir, config.LockName+".lock"),
		pidPath:  filepath.Join(config.LockDir, config.LockName+".pid"),
	}
}

// Acquire attempts a non-blocking exclusive lock.
//
// When another process holds the lock the returned error is an
// *ErrLockHeld carrying the holder PID when available.
func (l *RunLock) Acquire() error {
	if l.held {
		return nil // Already held
	}

	f, err := os.OpenFile(l.lockPath, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return fmt.Errorf("failed to create lock file %s: %w", l.lockPath, err)
	}

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		if err == unix.EWOULDBLOCK {
			return &ErrLockHeld{HolderPID: l.readHolderPID(), LockPath: l.lockPath}
		}
		return fmt.Errorf("failed to acquire lock: %w", err)
	}

	l.lockFile = f
	l.held = true

	// Best effort; the flock is authoritative.
	_ = l.writePID()

	return nil
}

// Release removes the PID file and releases the flock. Safe to call
// multiple times or if the lock was never acquired.
func (l *RunLock) Release() error {
	if !l.held || l.lockFile == nil {
		return nil
	}

	os.Remove(l.pidPath)

	err := unix.Flock(int(l.lockFile.Fd()), unix.LOCK_UN)
	l.lockFile.Close()
	l.lockFile = nil
	l.held = false

	if err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	return nil
}

// IsHeld returns true if this instance currently holds the lock.
// Checks local state only.
func (l *RunLock) IsHeld() bool {
	return l.held
}

// HolderPID reads the PID file to determine which process holds the
// lock. Returns 0 if unknown; may be stale if the holder crashed.
func (l *RunLock) HolderPID() int {
	return l.readHolderPID()
}

// LockPath returns the path to the lock file.
func (l *RunLock) LockPath() string {
	return l.lockPath
}

func (l *RunLock) writePID() error {
	return os.WriteFile(l.pidPath, []byte(fmt.Sprintf("%d\n", os.Getpid())), 0644)
}

func (l *RunLock) readHolderPID() int {
	data, err := os.ReadFile(l.pidPath)
	if err != nil {
		return 0
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0
	}
	return pid
}

// ErrLockHeld is returned when the lock is held by another process.
type ErrLockHeld struct {
	HolderPID int
	LockPath  string
}

// Error implements the error interface.
func (e *ErrLockHeld) Error() string {
	if e.HolderPID > 0 {
		return fmt.Sprintf("another mongoup instance is running (PID %d)", e.HolderPID)
	}
	return fmt.Sprintf("another mongoup instance is running (check: lsof %s)", e.LockPath)
}

// Compile-time interface satisfaction check
var _ RunLocker = (*RunLock)(nil)
