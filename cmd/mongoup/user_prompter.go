// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"fmt"

	"github.com/charmbracelet/huh"
)

// -----------------------------------------------------------------------------
// User Prompter
// -----------------------------------------------------------------------------

// UserPrompter gates the destructive part of a run on explicit consent.
type UserPrompter interface {
	// ConfirmUpgrade shows the plan summary and asks before touching
	// the server. Returns false when the operator declines.
	ConfirmUpgrade(plan UpgradePlan) (bool, error)
}

// DefaultUserPrompter implements UserPrompter with an interactive form.
type DefaultUserPrompter struct{}

// NewDefaultUserPrompter creates the interactive prompter.
func NewDefaultUserPrompter() *DefaultUserPrompter {
	return &DefaultUserPrompter{}
}

// ConfirmUpgrade shows the plan summary and asks before touching the server.
func (p *DefaultUserPrompter) ConfirmUpgrade(plan UpgradePlan) (bool, error) {
	title := fmt.Sprintf("Upgrade MongoDB %s to %s in %d steps?",
		plan.From, plan.FinalTarget(), len(plan.Steps))

	confirmed := false
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(title).
				Description("mongod will be stopped and restarted at every step.").
				Affirmative("Upgrade").
				Negative("Abort").
				Value(&confirmed),
		),
	)
	if err := form.Run(); err != nil {
		return false, fmt.Errorf("confirmation prompt failed: %w", err)
	}
	return confirmed, nil
}

// AutoApprovePrompter answers yes without asking. Selected by --yes for
// unattended runs.
type AutoApprovePrompter struct{}

// ConfirmUpgrade always approves.
func (p *AutoApprovePrompter) ConfirmUpgrade(plan UpgradePlan) (bool, error) {
	return true, nil
}

// Compile-time interface compliance check.
var (
	_ UserPrompter = (*DefaultUserPrompter)(nil)
	_ UserPrompter = (*AutoApprovePrompter)(nil)
)
