// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

/*
ProcessManager is the single doorway to external processes.

The upgrade pipeline shells out constantly: systemctl, mongod, mongodump,
mongorestore, curl, tar, pgrep. Everything goes through this interface so
the step logic can be exercised in tests against a recording mock instead
of a live host.
*/
package main

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	"github.com/jinterlante1206/mongoup/cmd/mongoup/internal/util"
)

// -----------------------------------------------------------------------------
// Interface Definition
// -----------------------------------------------------------------------------

// ProcessManager runs external commands on the host.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use.
type ProcessManager interface {
	// Run executes a command and waits for it.
	//
	// # Description
	//
	// Runs the command to completion and returns captured stdout. On
	// failure the error is a *util.CommandError carrying the exit code
	// and trimmed stderr, so callers can log the whole failure without
	// re-running anything.
	//
	// # Inputs
	//
	//   - ctx: cancels or times out the command
	//   - name: executable name or path
	//   - args: command arguments
	//
	// # Outputs
	//
	//   - []byte: captured stdout
	//   - error: nil only on exit code 0
	Run(ctx context.Context, name string, args ...string) ([]byte, error)

	// Start launches a process without waiting for it.
	//
	// # Description
	//
	// Used to launch mongod directly when no service unit manages it.
	// The forked server outlives the CLI, so the context deliberately
	// does not kill it and its output is not captured; mongod's own
	// log file is the record.
	//
	// # Outputs
	//
	//   - int: PID of the launched process
	//   - error: non-nil when the launch itself fails
	Start(ctx context.Context, name string, args ...string) (int, error)

	// IsRunning reports whether a process matches the command-line pattern.
	//
	// # Description
	//
	// Pattern matching is delegated to pgrep -f. A pattern with no match
	// is (false, 0, nil), not an error; errors mean detection itself
	// broke.
	//
	// # Outputs
	//
	//   - bool: a matching process exists
	//   - int: PID of the first match, 0 when none
	//   - error: non-nil only when pgrep could not run
	IsRunning(ctx context.Context, pattern string) (bool, int, error)
}

// -----------------------------------------------------------------------------
// Implementation
// -----------------------------------------------------------------------------

// DefaultProcessManager executes real processes via os/exec.
type DefaultProcessManager struct{}

// NewDefaultProcessManager returns the production ProcessManager.
func NewDefaultProcessManager() *DefaultProcessManager {
	return &DefaultProcessManager{}
}

// Run executes a command and waits for it.
func (pm *DefaultProcessManager) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, commandError(cmd, err, stderr.String())
	}
	return stdout.Bytes(), nil
}

// Start launches a process without waiting for it. exec.Command rather
// than CommandContext: the server must survive the CLI exiting.
func (pm *DefaultProcessManager) Start(ctx context.Context, name string, args ...string) (int, error) {
	cmd := exec.Command(name, args...)
	if err := cmd.Start(); err != nil {
		return 0, commandError(cmd, err, "")
	}
	return cmd.Process.Pid, nil
}

// IsRunning reports whether a process matches the command-line pattern.
func (pm *DefaultProcessManager) IsRunning(ctx context.Context, pattern string) (bool, int, error) {
	cmd := exec.CommandContext(ctx, "pgrep", "-f", pattern)
	out, err := cmd.Output()
	if err != nil {
		// exit code 1 is pgrep for "nothing matched"
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitCode() == 1 {
			return false, 0, nil
		}
		return false, 0, commandError(cmd, err, "")
	}

	first, _, _ := strings.Cut(strings.TrimSpace(string(out)), "\n")
	if first == "" {
		return false, 0, nil
	}
	pid, err := strconv.Atoi(first)
	if err != nil {
		return true, 0, nil
	}
	return true, pid, nil
}

// commandError wraps an exec failure with its exit code and stderr.
func commandError(cmd *exec.Cmd, err error, stderr string) *util.CommandError {
	exitCode := -1
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		exitCode = exitErr.ExitCode()
	}
	return util.NewCommandError(strings.Join(cmd.Args, " "), exitCode, strings.TrimSpace(stderr), err)
}

// -----------------------------------------------------------------------------
// Mock Implementation for Testing
// -----------------------------------------------------------------------------

// MockProcessManager is a recording test double for ProcessManager.
// Set the function fields before use; a nil field panics on call so a
// test never silently swallows an unexpected command.
//
// # Examples
//
//	mock := &MockProcessManager{
//	    RunFunc: func(ctx context.Context, name string, args ...string) ([]byte, error) {
//	        if name == "mongod" && args[0] == "--version" {
//	            return []byte("db version v4.0.28"), nil
//	        }
//	        return nil, fmt.Errorf("unexpected command: %s", name)
//	    },
//	}
type MockProcessManager struct {
	RunFunc       func(ctx context.Context, name string, args ...string) ([]byte, error)
	StartFunc     func(ctx context.Context, name string, args ...string) (int, error)
	IsRunningFunc func(ctx context.Context, pattern string) (bool, int, error)

	// Calls records every invocation in order.
	Calls []ProcessManagerCall

	mu sync.Mutex
}

// ProcessManagerCall records one method invocation.
type ProcessManagerCall struct {
	Method string
	Name   string
	Args   []string
}

func (m *MockProcessManager) record(method, name string, args []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, ProcessManagerCall{Method: method, Name: name, Args: args})
}

// Run delegates to RunFunc and records the call.
func (m *MockProcessManager) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	m.record("Run", name, args)
	if m.RunFunc == nil {
		panic("MockProcessManager.RunFunc not set")
	}
	return m.RunFunc(ctx, name, args...)
}

// Start delegates to StartFunc and records the call.
func (m *MockProcessManager) Start(ctx context.Context, name string, args ...string) (int, error) {
	m.record("Start", name, args)
	if m.StartFunc == nil {
		panic("MockProcessManager.StartFunc not set")
	}
	return m.StartFunc(ctx, name, args...)
}

// IsRunning delegates to IsRunningFunc and records the call.
func (m *MockProcessManager) IsRunning(ctx context.Context, pattern string) (bool, int, error) {
	m.record("IsRunning", pattern, nil)
	if m.IsRunningFunc == nil {
		panic("MockProcessManager.IsRunningFunc not set")
	}
	return m.IsRunningFunc(ctx, pattern)
}

// Reset clears the recorded calls.
func (m *MockProcessManager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = nil
}

// GetCalls returns a copy of the recorded calls.
func (m *MockProcessManager) GetCalls() []ProcessManagerCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]ProcessManagerCall, len(m.Calls))
	copy(result, m.Calls)
	return result
}

// Compile-time interface compliance checks.
var (
	_ ProcessManager = (*DefaultProcessManager)(nil)
	_ ProcessManager = (*MockProcessManager)(nil)
)
