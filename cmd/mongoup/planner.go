// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

/*
Upgrade planning over the fixed MongoDB major-version ladder.

MongoDB only supports upgrading one major version at a time, so the path
from any supported start version to the final target is a fixed sequence
of hops. Planning is pure: the same start version always yields the same
plan, and the plan is computed once per run and never mutated.
*/
package main

import (
	"errors"
	"fmt"
)

// -----------------------------------------------------------------------------
// Errors
// -----------------------------------------------------------------------------

var (
	// ErrUnsupportedVersion indicates the server predates the upgrade
	// ladder (< 3.6). Those deployments need a manual hop first.
	ErrUnsupportedVersion = errors.New("server version is below 3.6 and cannot be upgraded by this tool")
)

// -----------------------------------------------------------------------------
// Types
// -----------------------------------------------------------------------------

// UpgradeStep is one hop on the ladder. Steps are immutable; the executor
// reads them but never modifies them.
type UpgradeStep struct {
	// Target is the exact binary version this step installs.
	Target Version

	// TargetFCV is the feature compatibility value to set after the
	// target binary is healthy, e.g. "4.2".
	TargetFCV string

	// Variant overrides the configured distro variant for this step's
	// download. Empty means use the configured variant.
	Variant string

	// MigrateStorage marks the step where an MMAPv1 data directory must
	// be migrated to WiredTiger before the new binary can serve it.
	MigrateStorage bool

	// RetiredDirectives lists mongod.conf paths the target binary no
	// longer accepts. They are commented out before the first start
	// attempt with the new binary.
	RetiredDirectives []string
}

// UpgradePlan is the ordered list of steps from the detected version to
// the final target. Targets are strictly increasing.
type UpgradePlan struct {
	From  Version
	Steps []UpgradeStep
}

// IsNoOp reports whether the server is already at or past the final
// target, so the run goes straight to verification.
func (p UpgradePlan) IsNoOp() bool {
	return len(p.Steps) == 0
}

// FinalTarget returns the version the plan ends at. For a no-op plan
// this is the ladder's final target.
func (p UpgradePlan) FinalTarget() Version {
	if len(p.Steps) == 0 {
		return finalTarget
	}
	return p.Steps[len(p.Steps)-1].Target
}

// -----------------------------------------------------------------------------
// The Ladder
// -----------------------------------------------------------------------------

var (
	minimumVersion = MustParseVersion("3.6.0")
	finalTarget    = MustParseVersion("7.0.14")
)

// upgradeLadder is the full hop sequence from 3.6. Pinned patch releases
// are the last ones published for each series.
//
// MMAPv1 was removed in 4.2, so the 4.2.25 step carries the storage
// migration and retires storage.mmapv1. The journal toggle was removed
// in 6.1, so the 7.0.14 step retires storage.journal.enabled.
var upgradeLadder = []UpgradeStep{
	{Target: MustParseVersion("4.0.28"), TargetFCV: "4.0"},
	{
		Target:            MustParseVersion("4.2.25"),
		TargetFCV:         "4.2",
		MigrateStorage:    true,
		RetiredDirectives: []string{"storage.mmapv1"},
	},
	{Target: MustParseVersion("4.4.29"), TargetFCV: "4.4"},
	{Target: MustParseVersion("5.0.24"), TargetFCV: "5.0"},
	{Target: MustParseVersion("6.0.14"), TargetFCV: "6.0"},
	{
		Target:            MustParseVersion("7.0.14"),
		TargetFCV:         "7.0",
		RetiredDirectives: []string{"storage.journal.enabled"},
	},
}

// -----------------------------------------------------------------------------
// Planning
// -----------------------------------------------------------------------------

// BuildPlan computes the upgrade plan for a server currently at the given
// version.
//
// # Description
//
// Returns the remaining ladder steps whose targets lie beyond the current
// version at major.minor granularity. A server already at or past 7.0
// gets an empty plan (verification only). A server below 3.6 cannot be
// upgraded and returns ErrUnsupportedVersion.
//
// # Inputs
//
//   - current: The detected server version
//
// # Outputs
//
//   - UpgradePlan: Deterministic for a given input, never mutated after
//   - error: ErrUnsupportedVersion for pre-3.6 servers
func BuildPlan(current Version) (UpgradePlan, error) {
	if current.Less(minimumVersion) {
		return UpgradePlan{}, fmt.Errorf("%w: detected %s", ErrUnsupportedVersion, current)
	}

	plan := UpgradePlan{From: current}
	if current.AtLeast(finalTarget.FloorMinor()) {
		return plan, nil
	}

	for _, step := range upgradeLadder {
		if stepCompleted(current, step) {
			continue
		}
		plan.Steps = append(plan.Steps, step)
	}
	return plan, nil
}

// stepCompleted reports whether the current version already covers the
// step. A server on any patch of the step's major.minor series counts as
// having completed the hop: 4.0.5 does not re-run the 4.0.28 step.
func stepCompleted(current Version, step UpgradeStep) bool {
	return current.AtLeast(step.Target.FloorMinor())
}
