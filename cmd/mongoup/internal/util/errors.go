// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package util

import (
	"errors"
	"fmt"
	"strings"
)

// =============================================================================
// Severity
// =============================================================================

// Severity classifies an upgrade-pipeline outcome.
//
// The upgrade manager never inspects raw errors from collaborators; every
// outcome crosses the component boundary as a Classified value so the
// fatal-vs-continue decision lives in one place.
type Severity int

const (
	// SeverityInfo is for status reporting (version, engine, backup).
	SeverityInfo Severity = iota

	// SeverityWarning is for recoverable issues; the run continues and the
	// warning is re-checked at final verification.
	SeverityWarning

	// SeverityFatal aborts the entire run with a non-zero exit.
	SeverityFatal
)

// String returns "INFO", "WARNING", or "FATAL".
func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "INFO"
	case SeverityWarning:
		return "WARNING"
	case SeverityFatal:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

// =============================================================================
// Classified Error Type
// =============================================================================

// Classified wraps an error with a severity and an operation label.
//
// # Description
//
// Classified is the only error type the upgrade manager acts on. The Op
// label names the pipeline operation ("install", "start", "fcv",
// "migrate", ...) for log correlation and the final report.
//
// # Thread Safety
//
// Classified is immutable after creation and safe for concurrent reads.
//
// # Example
//
//	err := util.Fatal("install", installErr)
//	if util.IsFatal(err) {
//	    fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
//	    os.Exit(1)
//	}
type Classified struct {
	// Severity is the classification of this outcome.
	Severity Severity

	// Op is the pipeline operation that produced the error.
	Op string

	// Err is the underlying error (never nil).
	Err error
}

// Error returns "<SEVERITY> <op>: <err>".
func (c *Classified) Error() string {
	return fmt.Sprintf("%s %s: %v", c.Severity, c.Op, c.Err)
}

// Unwrap returns the underlying error for errors.Is/As.
func (c *Classified) Unwrap() error {
	return c.Err
}

// Fatal wraps err as a run-aborting failure.
func Fatal(op string, err error) error {
	return &Classified{Severity: SeverityFatal, Op: op, Err: err}
}

// Warning wraps err as a recoverable, deferred issue.
func Warning(op string, err error) error {
	return &Classified{Severity: SeverityWarning, Op: op, Err: err}
}

// IsFatal reports whether err carries SeverityFatal anywhere in its chain.
//
// An unclassified error is treated as fatal: nothing may cross a component
// boundary unclassified, so an unlabeled error is a programming mistake
// and the safe response is to stop.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	var c *Classified
	if errors.As(err, &c) {
		return c.Severity == SeverityFatal
	}
	return true
}

// OpOf returns the operation label of a classified error, or "".
func OpOf(err error) string {
	var c *Classified
	if errors.As(err, &c) {
		return c.Op
	}
	return ""
}

// =============================================================================
// Command Error Type
// =============================================================================

// CommandError wraps an external command failure with stderr context.
//
// # Description
//
// Provides rich error context for mongod/mongodump/systemctl failures,
// including the command that failed, its exit code, and trimmed stderr.
// Implements the error interface and supports unwrapping.
//
// # Example
//
//	err := util.NewCommandError("mongodump", 1, "connection refused", origErr)
//	fmt.Println(err.Error()) // "mongodump (exit 1): connection refused"
type CommandError struct {
	// Command is the command that was executed.
	Command string

	// ExitCode is the process exit code (-1 if unknown).
	ExitCode int

	// Stderr contains the standard error output (trimmed).
	Stderr string

	// Wrapped is the underlying error (may be nil).
	Wrapped error
}

// NewCommandError creates a CommandError with trimmed stderr.
func NewCommandError(command string, exitCode int, stderr string, wrapped error) *CommandError {
	return &CommandError{
		Command:  command,
		ExitCode: exitCode,
		Stderr:   strings.TrimSpace(stderr),
		Wrapped:  wrapped,
	}
}

// Error returns a formatted error message.
func (e *CommandError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("%s (exit %d): %s", e.Command, e.ExitCode, e.Stderr)
	}
	if e.Wrapped != nil {
		return fmt.Sprintf("%s (exit %d): %v", e.Command, e.ExitCode, e.Wrapped)
	}
	return fmt.Sprintf("%s (exit %d)", e.Command, e.ExitCode)
}

// Unwrap returns the underlying error.
func (e *CommandError) Unwrap() error {
	return e.Wrapped
}

// HasStderr returns true if stderr output was captured.
func (e *CommandError) HasStderr() bool {
	return e.Stderr != ""
}
