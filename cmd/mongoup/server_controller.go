// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

/*
ServerController owns the mongod process lifecycle.

Two management modes: a systemd unit when the config names one, or a
directly forked mongod otherwise. Stop is idempotent. Start is bounded:
a fixed number of launch attempts, then a fixed number of readiness
polls, with every wait going through the injected Clock so tests run
without wall time.
*/
package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jinterlante1206/mongoup/cmd/mongoup/config"
	"github.com/jinterlante1206/mongoup/cmd/mongoup/internal/logtail"
	"github.com/jinterlante1206/mongoup/cmd/mongoup/internal/util"
	"github.com/jinterlante1206/mongoup/pkg/logging"
)

// -----------------------------------------------------------------------------
// Errors and Bounds
// -----------------------------------------------------------------------------

var (
	// ErrServerUnreachable indicates mongod launched but never answered
	// a ping within the readiness budget.
	ErrServerUnreachable = errors.New("mongod did not become reachable after start")

	// ErrDirectiveStuck indicates mongod refused to start because its
	// config still carries a directive the new binary rejects.
	ErrDirectiveStuck = errors.New("mongod rejected a configuration directive at startup")

	// ErrStopTimeout indicates mongod did not exit within the shutdown
	// budget.
	ErrStopTimeout = errors.New("mongod did not stop in time")
)

const (
	// Launch attempts and readiness polls are fixed, not configurable:
	// the budgets encode how long a healthy single-node mongod takes to
	// come up, which does not vary by deployment.
	startAttempts     = 3
	startRetryDelay   = 5 * time.Second
	readinessPolls    = 30
	readinessInterval = 2 * time.Second

	stopPolls        = 15
	stopPollInterval = 2 * time.Second

	pingTimeout = 3 * time.Second
)

// -----------------------------------------------------------------------------
// Interface Definition
// -----------------------------------------------------------------------------

// ServerController starts and stops the managed mongod.
type ServerController interface {
	// Stop shuts mongod down and waits for the process to exit.
	// Stopping an already-stopped server is a no-op, not an error.
	Stop(ctx context.Context) error

	// Start launches mongod and waits until it answers an admin ping.
	//
	// # Outputs
	//
	//   - error: ErrServerUnreachable when the readiness budget is
	//     exhausted; ErrDirectiveStuck when the mongod log shows the
	//     binary rejecting a config directive; nil when healthy.
	Start(ctx context.Context) error

	// IsRunning reports whether the managed mongod process exists.
	IsRunning(ctx context.Context) (bool, error)
}

// -----------------------------------------------------------------------------
// Implementation
// -----------------------------------------------------------------------------

// DefaultServerController implements ServerController over systemctl or
// a direct mongod fork.
type DefaultServerController struct {
	pm         ProcessManager
	admin      AdminCommander
	clock      util.Clock
	server     config.ServerConfig
	mongodPath string
	timeouts   util.TimeoutConfig
	log        *logging.Logger

	// followLog opens a tail session on the mongod log. Swapped out in
	// tests; nil-session returns are tolerated because startup
	// diagnostics are best effort.
	followLog func(path string) (*logtail.Session, error)
}

// NewDefaultServerController wires the production controller.
func NewDefaultServerController(pm ProcessManager, admin AdminCommander, clock util.Clock, server config.ServerConfig, mongodPath string, log *logging.Logger) *DefaultServerController {
	return &DefaultServerController{
		pm:         pm,
		admin:      admin,
		clock:      clock,
		server:     server,
		mongodPath: mongodPath,
		timeouts:   util.NewTimeoutConfig().Validated(),
		log:        log,
		followLog:  logtail.Follow,
	}
}

// run executes one management command under the process timeout, so a
// wedged systemctl or mongod --shutdown cannot hang the run.
func (c *DefaultServerController) run(ctx context.Context, name string, args ...string) ([]byte, error) {
	runCtx, cancel := context.WithTimeout(ctx, c.timeouts.Process)
	defer cancel()
	return c.pm.Run(runCtx, name, args...)
}

func (c *DefaultServerController) useService() bool {
	return c.server.ServiceName != ""
}

// Stop shuts mongod down and waits for the process to exit.
func (c *DefaultServerController) Stop(ctx context.Context) error {
	running, err := c.IsRunning(ctx)
	if err != nil {
		return fmt.Errorf("failed to check mongod state before stop: %w", err)
	}
	if !running {
		c.log.Debug("mongod already stopped")
		return nil
	}

	if c.useService() {
		if _, err := c.run(ctx, "systemctl", "stop", c.server.ServiceName); err != nil {
			return fmt.Errorf("systemctl stop %s failed: %w", c.server.ServiceName, err)
		}
	} else {
		if _, err := c.run(ctx, c.mongodPath, "--dbpath", c.server.DBPath, "--shutdown"); err != nil {
			return fmt.Errorf("mongod --shutdown failed: %w", err)
		}
	}

	for i := 0; i < stopPolls; i++ {
		running, err := c.IsRunning(ctx)
		if err != nil {
			return err
		}
		if !running {
			c.log.Info("mongod stopped")
			return nil
		}
		c.clock.Sleep(stopPollInterval)
	}
	return ErrStopTimeout
}

// Start launches mongod and waits until it answers an admin ping.
func (c *DefaultServerController) Start(ctx context.Context) error {
	session := c.beginTail()

	var launchErr error
	launched := false
	for attempt := 1; attempt <= startAttempts; attempt++ {
		if launchErr = c.launch(ctx); launchErr == nil {
			launched = true
			break
		}
		c.log.Warn("mongod launch failed", "attempt", attempt, "error", launchErr)
		if attempt < startAttempts {
			c.clock.Sleep(startRetryDelay)
		}
	}
	if !launched {
		diag := c.endTail(session)
		if diag.HasDirectiveError() {
			return fmt.Errorf("%w: %s", ErrDirectiveStuck, diag.Summary())
		}
		return fmt.Errorf("mongod failed to launch after %d attempts: %w", startAttempts, launchErr)
	}

	for i := 0; i < readinessPolls; i++ {
		pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
		err := c.admin.Ping(pingCtx)
		cancel()
		if err == nil {
			c.endTail(session)
			c.log.Info("mongod is reachable")
			return nil
		}
		c.clock.Sleep(readinessInterval)
	}

	diag := c.endTail(session)
	if diag.HasDirectiveError() {
		return fmt.Errorf("%w: %s", ErrDirectiveStuck, diag.Summary())
	}
	return fmt.Errorf("%w: gave up after %d polls", ErrServerUnreachable, readinessPolls)
}

// IsRunning reports whether the managed mongod process exists.
func (c *DefaultServerController) IsRunning(ctx context.Context) (bool, error) {
	checkCtx, cancel := context.WithTimeout(ctx, c.timeouts.Command)
	defer cancel()
	if c.useService() {
		out, err := c.pm.Run(checkCtx, "systemctl", "is-active", c.server.ServiceName)
		if err != nil {
			// is-active exits non-zero for inactive units
			return false, nil
		}
		return strings.TrimSpace(string(out)) == "active", nil
	}
	running, _, err := c.pm.IsRunning(checkCtx, "mongod --config "+c.server.ConfigPath)
	if err != nil {
		return false, err
	}
	return running, nil
}

func (c *DefaultServerController) launch(ctx context.Context) error {
	if c.useService() {
		_, err := c.run(ctx, "systemctl", "start", c.server.ServiceName)
		return err
	}
	_, err := c.pm.Start(ctx, c.mongodPath, "--config", c.server.ConfigPath, "--fork")
	return err
}

// beginTail opens the startup diagnostics session. Best effort: a
// missing or unreadable mongod log only costs us diagnostics detail.
func (c *DefaultServerController) beginTail() *logtail.Session {
	if c.server.LogPath == "" || c.followLog == nil {
		return nil
	}
	session, err := c.followLog(c.server.LogPath)
	if err != nil {
		c.log.Debug("could not follow mongod log", "path", c.server.LogPath, "error", err)
		return nil
	}
	return session
}

func (c *DefaultServerController) endTail(session *logtail.Session) logtail.Diagnostics {
	if session == nil {
		return logtail.Diagnostics{}
	}
	return session.Stop()
}

// Compile-time interface compliance check.
var _ ServerController = (*DefaultServerController)(nil)
