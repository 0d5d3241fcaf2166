// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package util

import "time"

// =============================================================================
// Constants
// =============================================================================

// Timeout constants define minimum and default values for external
// operations. These floors prevent accidental infinite hangs from zero
// or misconfigured timeouts.
const (
	// MinCommandTimeout is the absolute minimum for any admin command.
	MinCommandTimeout = 1 * time.Second

	// MinProcessTimeout is the absolute minimum for process operations.
	MinProcessTimeout = 5 * time.Second

	// DefaultCommandTimeout is the standard timeout for admin commands.
	DefaultCommandTimeout = 30 * time.Second

	// DefaultProcessTimeout is the standard timeout for stop/start/install
	// shell operations.
	DefaultProcessTimeout = 2 * time.Minute

	// DefaultDumpTimeout is the standard timeout for mongodump and
	// mongorestore, which walk the whole data set.
	DefaultDumpTimeout = 2 * time.Hour
)

// =============================================================================
// TimeoutConfig
// =============================================================================

// TimeoutConfig holds timeout settings for external operations.
//
// # Description
//
// A validated set of timeouts consumed by the server controller,
// installer, and backup manager. Use NewTimeoutConfig for defaults and
// call Validated before handing values to production code.
//
// # Example
//
//	cfg := util.NewTimeoutConfig()
//	cfg.Command = 10 * time.Second
//	valid := cfg.Validated()
type TimeoutConfig struct {
	// Command is the timeout for a single admin command round trip.
	Command time.Duration

	// Process is the timeout for stop/start/install shell operations.
	Process time.Duration

	// Dump is the timeout for mongodump/mongorestore runs.
	Dump time.Duration
}

// NewTimeoutConfig returns a TimeoutConfig with default values.
func NewTimeoutConfig() TimeoutConfig {
	return TimeoutConfig{
		Command: DefaultCommandTimeout,
		Process: DefaultProcessTimeout,
		Dump:    DefaultDumpTimeout,
	}
}

// Validated returns a copy with every value raised to its minimum.
//
// The original config is not modified.
func (c TimeoutConfig) Validated() TimeoutConfig {
	out := c
	if out.Command < MinCommandTimeout {
		out.Command = MinCommandTimeout
	}
	if out.Process < MinProcessTimeout {
		out.Process = MinProcessTimeout
	}
	if out.Dump < MinProcessTimeout {
		out.Dump = DefaultDumpTimeout
	}
	return out
}
