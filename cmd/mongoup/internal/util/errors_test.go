// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package util

import (
	"errors"
	"fmt"
	"testing"
)

// =============================================================================
// Classification Tests
// =============================================================================

// TestClassified_FatalVsWarning verifies severity routing.
func TestClassified_FatalVsWarning(t *testing.T) {
	base := errors.New("boom")

	tests := []struct {
		name      string
		err       error
		wantFatal bool
	}{
		{"fatal", Fatal("install", base), true},
		{"warning", Warning("fcv", base), false},
		{"wrapped fatal", fmt.Errorf("step 2: %w", Fatal("start", base)), true},
		{"wrapped warning", fmt.Errorf("step 2: %w", Warning("fcv", base)), false},
		{"unclassified treated as fatal", base, true},
		{"nil", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsFatal(tt.err); got != tt.wantFatal {
				t.Errorf("IsFatal() = %v, want %v", got, tt.wantFatal)
			}
		})
	}
}

// TestClassified_Unwrap verifies errors.Is works through Classified.
func TestClassified_Unwrap(t *testing.T) {
	sentinel := errors.New("server unreachable")
	err := Fatal("start", sentinel)

	if !errors.Is(err, sentinel) {
		t.Error("errors.Is should find the wrapped sentinel")
	}
	if OpOf(err) != "start" {
		t.Errorf("OpOf() = %q, want %q", OpOf(err), "start")
	}
}

// TestClassified_Error verifies the message format.
func TestClassified_Error(t *testing.T) {
	err := Fatal("install", errors.New("download failed"))
	want := "FATAL install: download failed"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

// =============================================================================
// CommandError Tests
// =============================================================================

// TestCommandError_Error verifies message priority: stderr > wrapped > bare.
func TestCommandError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *CommandError
		want string
	}{
		{
			"with stderr",
			NewCommandError("mongodump", 1, "  connection refused \n", nil),
			"mongodump (exit 1): connection refused",
		},
		{
			"with wrapped only",
			NewCommandError("systemctl stop mongod", 5, "", errors.New("timeout")),
			"systemctl stop mongod (exit 5): timeout",
		},
		{
			"bare",
			NewCommandError("tar", 2, "", nil),
			"tar (exit 2)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

// TestCommandError_Unwrap verifies the error chain.
func TestCommandError_Unwrap(t *testing.T) {
	orig := errors.New("no such file")
	err := NewCommandError("mongod", -1, "", orig)
	if !errors.Is(err, orig) {
		t.Error("errors.Is should find the wrapped error")
	}
	if err.HasStderr() {
		t.Error("HasStderr() should be false without stderr")
	}
}
