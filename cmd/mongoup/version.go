// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"fmt"
	"regexp"
	"strconv"
)

// -----------------------------------------------------------------------------
// Version
// -----------------------------------------------------------------------------

// versionPattern accepts exactly major.minor.patch with numeric fields.
// Pre-release suffixes (4.0.28-rc1) are deliberately rejected: release
// candidates should never appear on a production upgrade path.
var versionPattern = regexp.MustCompile(`^(\d+)\.(\d+)\.(\d+)$`)

// Version is a parsed MongoDB server version.
//
// The zero value (0.0.0) is never a valid server version and is used to
// mean "unknown".
type Version struct {
	Major int
	Minor int
	Patch int
}

// ParseVersion parses a strict major.minor.patch string.
func ParseVersion(s string) (Version, error) {
	m := versionPattern.FindStringSubmatch(s)
	if m == nil {
		return Version{}, fmt.Errorf("invalid version string %q: want major.minor.patch", s)
	}
	// regexp guarantees numeric fields
	major, _ := strconv.Atoi(m[1])
	minor, _ := strconv.Atoi(m[2])
	patch, _ := strconv.Atoi(m[3])
	return Version{Major: major, Minor: minor, Patch: patch}, nil
}

// MustParseVersion parses s or panics. Only for the static step table and
// tests.
func MustParseVersion(s string) Version {
	v, err := ParseVersion(s)
	if err != nil {
		panic(err)
	}
	return v
}

// String renders the version as major.minor.patch.
func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// IsZero reports whether the version is unknown.
func (v Version) IsZero() bool {
	return v == Version{}
}

// Compare returns -1, 0, or 1 comparing v against other numerically,
// major first, then minor, then patch.
func (v Version) Compare(other Version) int {
	if v.Major != other.Major {
		return sign(v.Major - other.Major)
	}
	if v.Minor != other.Minor {
		return sign(v.Minor - other.Minor)
	}
	return sign(v.Patch - other.Patch)
}

// AtLeast reports whether v >= other.
func (v Version) AtLeast(other Version) bool {
	return v.Compare(other) >= 0
}

// Less reports whether v < other.
func (v Version) Less(other Version) bool {
	return v.Compare(other) < 0
}

// FloorMinor drops the patch component: 4.0.28 becomes 4.0.0. Skip
// decisions compare step boundaries at this granularity.
func (v Version) FloorMinor() Version {
	return Version{Major: v.Major, Minor: v.Minor}
}

// FCV returns the feature compatibility value for this server version,
// e.g. "4.0" for 4.0.28. FCV strings never carry a patch component.
func (v Version) FCV() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

func sign(n int) int {
	switch {
	case n < 0:
		return -1
	case n > 0:
		return 1
	default:
		return 0
	}
}
