// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"regexp"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/jinterlante1206/mongoup/pkg/logging"
)

// -----------------------------------------------------------------------------
// Version Probe
// -----------------------------------------------------------------------------

// VersionProbe detects the installed MongoDB version.
//
// # Description
//
// Detection tries an ordered list of channels and takes the first one
// that yields a strict major.minor.patch version: a live buildInfo admin
// command first, then the installed binary's own --version output. The
// probe never fails; when every channel comes up empty it reports
// (zero Version, false) and the caller decides what that means.
type VersionProbe interface {
	// Detect returns the installed server version and whether any
	// channel produced one.
	Detect(ctx context.Context) (Version, bool)
}

// versionStrategy is one detection channel.
type versionStrategy interface {
	name() string
	detect(ctx context.Context) (Version, bool)
}

// DefaultVersionProbe runs the standard strategy chain.
type DefaultVersionProbe struct {
	strategies []versionStrategy
	log        *logging.Logger
}

// NewDefaultVersionProbe builds the probe with the standard channel
// order: live server first (authoritative when up), binary second (works
// while mongod is stopped mid-step).
func NewDefaultVersionProbe(admin AdminCommander, pm ProcessManager, mongodPath string, log *logging.Logger) *DefaultVersionProbe {
	return &DefaultVersionProbe{
		strategies: []versionStrategy{
			&buildInfoStrategy{admin: admin},
			&binaryStrategy{pm: pm, mongodPath: mongodPath},
		},
		log: log,
	}
}

// Detect tries each channel in order and returns the first hit.
func (p *DefaultVersionProbe) Detect(ctx context.Context) (Version, bool) {
	for _, s := range p.strategies {
		if v, ok := s.detect(ctx); ok {
			p.log.Debug("version detected", "channel", s.name(), "version", v.String())
			return v, true
		}
	}
	p.log.Warn("version detection exhausted all channels")
	return Version{}, false
}

// -----------------------------------------------------------------------------
// Strategies
// -----------------------------------------------------------------------------

// buildInfoStrategy asks the live server via the buildInfo admin command.
type buildInfoStrategy struct {
	admin AdminCommander
}

func (s *buildInfoStrategy) name() string { return "buildInfo" }

func (s *buildInfoStrategy) detect(ctx context.Context) (Version, bool) {
	reply, err := s.admin.RunCommand(ctx, bson.D{{Key: "buildInfo", Value: 1}})
	if err != nil {
		return Version{}, false
	}
	raw, ok := reply["version"].(string)
	if !ok {
		return Version{}, false
	}
	v, err := ParseVersion(raw)
	if err != nil {
		return Version{}, false
	}
	return v, true
}

// binaryStrategy runs `mongod --version` and parses the banner line,
// e.g. "db version v4.0.28".
type binaryStrategy struct {
	pm         ProcessManager
	mongodPath string
}

var dbVersionPattern = regexp.MustCompile(`db version v(\d+\.\d+\.\d+)`)

func (s *binaryStrategy) name() string { return "binary" }

func (s *binaryStrategy) detect(ctx context.Context) (Version, bool) {
	out, err := s.pm.Run(ctx, s.mongodPath, "--version")
	if err != nil {
		return Version{}, false
	}
	m := dbVersionPattern.FindSubmatch(out)
	if m == nil {
		return Version{}, false
	}
	v, err := ParseVersion(string(m[1]))
	if err != nil {
		return Version{}, false
	}
	return v, true
}
