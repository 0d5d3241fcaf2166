// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ux

import (
	"bytes"
	"io"
	"os"
	"strings"
	"testing"
)

// Helper to capture stdout
func captureStdout(f func()) string {
	old := os.Stdout
	r, w, _ := os.Pipe()
	os.Stdout = w

	f()

	w.Close()
	os.Stdout = old

	var buf bytes.Buffer
	io.Copy(&buf, r)
	return buf.String()
}

// Helper to capture stderr
func captureStderr(f func()) string {
	old := os.Stderr
	r, w, _ := os.Pipe()
	os.Stderr = w

	f()

	w.Close()
	os.Stderr = old

	var buf bytes.Buffer
	io.Copy(&buf, r)
	return buf.String()
}

func TestPlainModeLabels(t *testing.T) {
	SetPlain(true)
	defer SetPlain(false)

	out := captureStdout(func() { Success("server started") })
	if out != "OK: server started\n" {
		t.Errorf("Success plain output = %q", out)
	}

	errOut := captureStderr(func() { Warning("fcv unverifiable") })
	if errOut != "WARN: fcv unverifiable\n" {
		t.Errorf("Warning plain output = %q", errOut)
	}

	errOut = captureStderr(func() { Error("install failed") })
	if errOut != "ERROR: install failed\n" {
		t.Errorf("Error plain output = %q", errOut)
	}
}

func TestPlainModeKeyValue(t *testing.T) {
	SetPlain(true)
	defer SetPlain(false)

	out := captureStdout(func() { KeyValue("Current version", "4.0.28") })
	if out != "Current version: 4.0.28\n" {
		t.Errorf("KeyValue plain output = %q", out)
	}
}

func TestStepLine(t *testing.T) {
	SetPlain(true)
	defer SetPlain(false)

	out := captureStdout(func() { StepLine(IconSuccess, 2, 6, "4.2.25", "storage migration") })
	if !strings.Contains(out, "[2/6]") || !strings.Contains(out, "4.2.25") {
		t.Errorf("StepLine missing counter or target: %q", out)
	}
	if !strings.Contains(out, "(storage migration)") {
		t.Errorf("StepLine missing note: %q", out)
	}

	out = captureStdout(func() { StepLine(IconPending, 3, 6, "4.4.29", "") })
	if strings.Contains(out, "()") {
		t.Errorf("StepLine rendered empty note parens: %q", out)
	}
}

func TestPlainModeBoxes(t *testing.T) {
	SetPlain(true)
	defer SetPlain(false)

	out := captureStdout(func() { Box("Upgrade complete", "mongod is now at 7.0.14.") })
	if out != "Upgrade complete: mongod is now at 7.0.14.\n" {
		t.Errorf("Box plain output = %q", out)
	}

	errOut := captureStderr(func() { WarningBox("Downtime ahead", "mongod restarts at every step.") })
	if errOut != "WARN Downtime ahead: mongod restarts at every step.\n" {
		t.Errorf("WarningBox plain output = %q", errOut)
	}

	out = captureStdout(func() { Muted("each step stops mongod") })
	if out != "each step stops mongod\n" {
		t.Errorf("Muted plain output = %q", out)
	}
}

func TestIconRenderPlain(t *testing.T) {
	SetPlain(true)
	defer SetPlain(false)

	if IconError.Render() != string(IconError) {
		t.Error("plain icon render should be unstyled")
	}
}
