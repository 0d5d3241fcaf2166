// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"github.com/jinterlante1206/mongoup/pkg/logging"
)

// -----------------------------------------------------------------------------
// System Checker
// -----------------------------------------------------------------------------

// minRecommendedNoFile matches the mongod production notes: below this
// the server logs its own startup warning and may refuse connections
// under load.
const minRecommendedNoFile = 64000

// SystemChecker inspects host preconditions before a run.
//
// Every finding is advisory. The checks cannot see the environment the
// service unit will actually start mongod in (a raised limit in the
// unit file is invisible to this process), so nothing here blocks the
// run.
type SystemChecker interface {
	// Check returns human-readable warnings, empty when all clear.
	Check() []string
}

// DefaultSystemChecker implements SystemChecker for Linux hosts.
type DefaultSystemChecker struct {
	backupRoot string
	binDir     string
	log        *logging.Logger
}

// NewDefaultSystemChecker wires the production checker.
func NewDefaultSystemChecker(backupRoot, binDir string, log *logging.Logger) *DefaultSystemChecker {
	return &DefaultSystemChecker{backupRoot: backupRoot, binDir: binDir, log: log}
}

// Check returns human-readable warnings, empty when all clear.
func (c *DefaultSystemChecker) Check() []string {
	var warnings []string

	if w := c.checkNoFileLimit(); w != "" {
		warnings = append(warnings, w)
	}
	if w := c.checkWritable(c.binDir, "install directory"); w != "" {
		warnings = append(warnings, w)
	}
	if w := c.checkWritable(c.backupRoot, "backup root"); w != "" {
		warnings = append(warnings, w)
	}

	for _, w := range warnings {
		c.log.Warn("preflight", "finding", w)
	}
	return warnings
}

func (c *DefaultSystemChecker) checkNoFileLimit() string {
	var lim unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_NOFILE, &lim); err != nil {
		return fmt.Sprintf("could not read the open-file limit: %v", err)
	}
	if lim.Cur < minRecommendedNoFile {
		return fmt.Sprintf("open-file limit is %d, mongod recommends at least %d (ulimit -n)", lim.Cur, minRecommendedNoFile)
	}
	return ""
}

func (c *DefaultSystemChecker) checkWritable(dir, label string) string {
	if dir == "" {
		return ""
	}
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		// created on demand later; only warn about the parent
		return ""
	}
	if err != nil {
		return fmt.Sprintf("could not stat the %s %s: %v", label, dir, err)
	}
	if !info.IsDir() {
		return fmt.Sprintf("the %s %s is not a directory", label, dir)
	}
	if unix.Access(dir, unix.W_OK) != nil {
		return fmt.Sprintf("the %s %s is not writable by this user", label, dir)
	}
	return ""
}

// Compile-time interface compliance check.
var _ SystemChecker = (*DefaultSystemChecker)(nil)
