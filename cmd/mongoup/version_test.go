// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import "testing"

func TestParseVersion(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Version
		wantErr bool
	}{
		{"simple", "4.0.28", Version{4, 0, 28}, false},
		{"large patch", "3.6.23", Version{3, 6, 23}, false},
		{"leading v rejected", "v4.0.28", Version{}, true},
		{"two parts rejected", "4.0", Version{}, true},
		{"four parts rejected", "4.0.28.1", Version{}, true},
		{"rc suffix rejected", "4.0.28-rc1", Version{}, true},
		{"empty rejected", "", Version{}, true},
		{"garbage rejected", "latest", Version{}, true},
		{"whitespace rejected", " 4.0.28", Version{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseVersion(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseVersion(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseVersion(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestVersionCompare(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"4.0.28", "4.0.28", 0},
		{"4.0.27", "4.0.28", -1},
		{"4.0.28", "4.0.27", 1},
		{"4.2.0", "4.0.28", 1}, // minor beats patch
		{"5.0.0", "4.9.99", 1}, // major beats minor
		{"3.6.23", "4.0.0", -1},
	}

	for _, tt := range tests {
		a := MustParseVersion(tt.a)
		b := MustParseVersion(tt.b)
		if got := a.Compare(b); got != tt.want {
			t.Errorf("Compare(%s, %s) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestVersionAtLeast(t *testing.T) {
	v := MustParseVersion("4.2.25")
	if !v.AtLeast(MustParseVersion("4.2.25")) {
		t.Error("version should be at least itself")
	}
	if !v.AtLeast(MustParseVersion("4.2.0")) {
		t.Error("4.2.25 should be at least 4.2.0")
	}
	if v.AtLeast(MustParseVersion("4.4.0")) {
		t.Error("4.2.25 should not be at least 4.4.0")
	}
}

func TestFloorMinor(t *testing.T) {
	got := MustParseVersion("4.0.28").FloorMinor()
	if got != (Version{Major: 4, Minor: 0}) {
		t.Errorf("FloorMinor = %v", got)
	}
}

func TestFCV(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"4.0.28", "4.0"},
		{"7.0.14", "7.0"},
		{"3.6.23", "3.6"},
	}
	for _, tt := range tests {
		if got := MustParseVersion(tt.in).FCV(); got != tt.want {
			t.Errorf("FCV(%s) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestVersionIsZero(t *testing.T) {
	if !(Version{}).IsZero() {
		t.Error("zero value should report IsZero")
	}
	if MustParseVersion("4.0.28").IsZero() {
		t.Error("parsed version should not report IsZero")
	}
}
