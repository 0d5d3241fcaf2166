// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package ux provides terminal output styling for the mongoup CLI.
//
// Upgrade runs are watched by operators, often over SSH, sometimes
// captured into tickets. Output therefore has two modes: styled
// (default) and plain (set via SetPlain, used for non-TTY captures),
// where every helper degrades to greppable "LABEL: text" lines.
package ux

import (
	"fmt"
	"os"
	"sync/atomic"

	"github.com/charmbracelet/lipgloss"
)

// mongoup palette - forest greens over slate
var (
	ColorGreenBright  = lipgloss.Color("#5DD39E") // success, completed steps
	ColorGreenPrimary = lipgloss.Color("#3E9B6F") // brand, titles
	ColorGreenDeep    = lipgloss.Color("#2C7355") // borders, accents

	ColorSlate   = lipgloss.Color("#51606B") // muted text
	ColorWarning = lipgloss.Color("#F4D03F") // gold for warnings
	ColorError   = lipgloss.Color("#E74C3C") // red for fatal errors
)

// Styles provides pre-configured lipgloss styles.
var Styles = struct {
	Title     lipgloss.Style
	Subtitle  lipgloss.Style
	Bold      lipgloss.Style
	Muted     lipgloss.Style
	Success   lipgloss.Style
	Warning   lipgloss.Style
	Error     lipgloss.Style
	Highlight lipgloss.Style

	Box        lipgloss.Style
	WarningBox lipgloss.Style
	ErrorBox   lipgloss.Style
}{
	Title:     lipgloss.NewStyle().Bold(true).Foreground(ColorGreenBright),
	Subtitle:  lipgloss.NewStyle().Foreground(ColorGreenPrimary),
	Bold:      lipgloss.NewStyle().Bold(true),
	Muted:     lipgloss.NewStyle().Foreground(ColorSlate),
	Success:   lipgloss.NewStyle().Foreground(ColorGreenBright),
	Warning:   lipgloss.NewStyle().Foreground(ColorWarning),
	Error:     lipgloss.NewStyle().Foreground(ColorError),
	Highlight: lipgloss.NewStyle().Foreground(ColorGreenBright).Bold(true),

	Box: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorGreenDeep).
		Padding(0, 1),
	WarningBox: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorWarning).
		Padding(0, 1),
	ErrorBox: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorError).
		Padding(0, 1),
}

// Icon provides themed status icons.
type Icon string

const (
	IconSuccess Icon = "✓"
	IconWarning Icon = "⚠"
	IconError   Icon = "✗"
	IconPending Icon = "○"
	IconArrow   Icon = "→"
	IconBullet  Icon = "•"
)

// Render returns the icon with appropriate styling.
func (i Icon) Render() string {
	if IsPlain() {
		return string(i)
	}
	switch i {
	case IconSuccess:
		return Styles.Success.Render(string(i))
	case IconWarning:
		return Styles.Warning.Render(string(i))
	case IconError:
		return Styles.Error.Render(string(i))
	case IconPending:
		return Styles.Muted.Render(string(i))
	default:
		return string(i)
	}
}

// plain flips all helpers to unstyled, label-prefixed output.
var plain atomic.Bool

// SetPlain switches between styled and plain output.
func SetPlain(v bool) {
	plain.Store(v)
}

// IsPlain reports whether plain output is active.
func IsPlain() bool {
	return plain.Load()
}

// Title prints a styled title.
func Title(text string) {
	if IsPlain() {
		fmt.Println(text)
		return
	}
	fmt.Println(Styles.Title.Render(text))
}

// Success prints a success message with checkmark.
func Success(text string) {
	if IsPlain() {
		fmt.Fprintf(os.Stdout, "OK: %s\n", text)
		return
	}
	fmt.Printf("%s %s\n", IconSuccess.Render(), Styles.Success.Render(text))
}

// Warning prints a warning message.
func Warning(text string) {
	if IsPlain() {
		fmt.Fprintf(os.Stderr, "WARN: %s\n", text)
		return
	}
	fmt.Printf("%s %s\n", IconWarning.Render(), Styles.Warning.Render(text))
}

// Error prints an error message.
func Error(text string) {
	if IsPlain() {
		fmt.Fprintf(os.Stderr, "ERROR: %s\n", text)
		return
	}
	fmt.Printf("%s %s\n", IconError.Render(), Styles.Error.Render(text))
}

// Info prints an informational message.
func Info(text string) {
	if IsPlain() {
		fmt.Println(text)
		return
	}
	fmt.Printf("%s %s\n", Styles.Muted.Render("│"), text)
}

// Muted prints muted/secondary text.
func Muted(text string) {
	if IsPlain() {
		fmt.Println(text)
		return
	}
	fmt.Println(Styles.Muted.Render(text))
}

// KeyValue prints an aligned "key: value" report line.
func KeyValue(key, value string) {
	if IsPlain() {
		fmt.Printf("%s: %s\n", key, value)
		return
	}
	fmt.Printf("  %s %s\n", Styles.Muted.Render(fmt.Sprintf("%-18s", key+":")), Styles.Bold.Render(value))
}

// Box prints text in a rounded box.
func Box(title, content string) {
	if IsPlain() {
		fmt.Printf("%s: %s\n", title, content)
		return
	}
	boxStyle := Styles.Box.Width(60)
	fmt.Println(boxStyle.Render(Styles.Title.Render(title) + "\n" + content))
}

// WarningBox prints text in a warning-styled box.
func WarningBox(title, content string) {
	if IsPlain() {
		fmt.Fprintf(os.Stderr, "WARN %s: %s\n", title, content)
		return
	}
	boxStyle := Styles.WarningBox.Width(60)
	fmt.Println(boxStyle.Render(Styles.Warning.Bold(true).Render(title) + "\n" + content))
}

// StepLine prints one upgrade step with its status icon, e.g.
//
//	✓ [2/6] 4.2.25  (storage migration)
func StepLine(status Icon, index, total int, target, note string) {
	counter := fmt.Sprintf("[%d/%d]", index, total)
	if IsPlain() {
		if note != "" {
			fmt.Printf("%s %s %s (%s)\n", status, counter, target, note)
		} else {
			fmt.Printf("%s %s %s\n", status, counter, target)
		}
		return
	}
	line := fmt.Sprintf("%s %s %s", status.Render(), Styles.Muted.Render(counter), Styles.Bold.Render(target))
	if note != "" {
		line += " " + Styles.Muted.Render("("+note+")")
	}
	fmt.Println(line)
}
