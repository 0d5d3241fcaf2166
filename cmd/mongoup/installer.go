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
	"path/filepath"
	"strings"
	"time"

	"github.com/jinterlante1206/mongoup/cmd/mongoup/internal/util"
	"github.com/jinterlante1206/mongoup/pkg/logging"
)

// -----------------------------------------------------------------------------
// Installer
// -----------------------------------------------------------------------------

var (
	// ErrInstallFailed indicates the target binary could not be
	// downloaded, unpacked, or verified. Always fatal: the step has not
	// touched the data directory yet, so the run aborts cleanly.
	ErrInstallFailed = errors.New("binary installation failed")
)

// Installer places a specific MongoDB release's binaries on the host.
type Installer interface {
	// Install downloads and unpacks the step's target release, then
	// verifies the installed mongod reports the expected version.
	Install(ctx context.Context, step UpgradeStep) error
}

// DefaultInstaller implements Installer with curl and tar through the
// ProcessManager. Downloads are cached, so a re-run after a mid-ladder
// failure does not refetch tarballs it already has.
type DefaultInstaller struct {
	pm       ProcessManager
	variant  string
	url      string
	binDir   string
	cacheDir string
	timeouts util.TimeoutConfig
	log      *logging.Logger
}

// NewDefaultInstaller wires the production installer.
func NewDefaultInstaller(pm ProcessManager, variant, url, binDir, cacheDir string, log *logging.Logger) *DefaultInstaller {
	return &DefaultInstaller{
		pm:       pm,
		variant:  variant,
		url:      url,
		binDir:   binDir,
		cacheDir: cacheDir,
		timeouts: util.NewTimeoutConfig().Validated(),
		log:      log,
	}
}

// run executes one external command under the given timeout, so a hung
// tool can never stall the whole run.
func (i *DefaultInstaller) run(ctx context.Context, timeout time.Duration, name string, args ...string) ([]byte, error) {
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return i.pm.Run(runCtx, name, args...)
}

// Install downloads, unpacks, and verifies the step's target release.
func (i *DefaultInstaller) Install(ctx context.Context, step UpgradeStep) error {
	variant := step.Variant
	if variant == "" {
		variant = i.variant
	}
	url := strings.NewReplacer(
		"{version}", step.Target.String(),
		"{variant}", variant,
	).Replace(i.url)
	tarball := filepath.Join(i.cacheDir, filepath.Base(url))

	if _, err := i.run(ctx, i.timeouts.Process, "mkdir", "-p", i.cacheDir); err != nil {
		return fmt.Errorf("%w: could not create cache directory: %v", ErrInstallFailed, err)
	}

	if err := i.download(ctx, url, tarball); err != nil {
		return err
	}

	// Unpack only the bin/ payload straight over the install dir.
	// Overwrite is the point: each step replaces the previous binaries.
	i.log.Info("unpacking release", "tarball", tarball, "dest", i.binDir)
	_, err := i.run(ctx, i.timeouts.Process, "tar",
		"-xzf", tarball,
		"-C", i.binDir,
		"--strip-components=2",
		"--wildcards", "*/bin/*",
	)
	if err != nil {
		return fmt.Errorf("%w: unpack of %s: %v", ErrInstallFailed, tarball, err)
	}

	return i.verify(ctx, step.Target)
}

// download fetches the tarball unless the cache already holds it.
func (i *DefaultInstaller) download(ctx context.Context, url, tarball string) error {
	if _, err := i.run(ctx, i.timeouts.Process, "test", "-f", tarball); err == nil {
		i.log.Info("using cached tarball", "path", tarball)
		return nil
	}
	i.log.Info("downloading release", "url", url)
	// a release tarball is a bulk transfer, so it gets the dump bound
	if _, err := i.run(ctx, i.timeouts.Dump, "curl", "-fsSL", "-o", tarball, url); err != nil {
		return fmt.Errorf("%w: download of %s: %v", ErrInstallFailed, url, err)
	}
	return nil
}

// verify runs the freshly installed mongod and checks the banner
// version against the step target.
func (i *DefaultInstaller) verify(ctx context.Context, want Version) error {
	mongod := filepath.Join(i.binDir, "mongod")
	out, err := i.run(ctx, i.timeouts.Command, mongod, "--version")
	if err != nil {
		return fmt.Errorf("%w: installed mongod does not run: %v", ErrInstallFailed, err)
	}
	m := dbVersionPattern.FindSubmatch(out)
	if m == nil {
		return fmt.Errorf("%w: could not parse installed mongod version", ErrInstallFailed)
	}
	got, err := ParseVersion(string(m[1]))
	if err != nil || got != want {
		return fmt.Errorf("%w: installed mongod reports %s, want %s", ErrInstallFailed, string(m[1]), want)
	}
	i.log.Info("installed binary verified", "version", got.String())
	return nil
}

// Compile-time interface compliance check.
var _ Installer = (*DefaultInstaller)(nil)
