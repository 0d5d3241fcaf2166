// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package util

import (
	"sync"
	"time"
)

// =============================================================================
// Clock Interface
// =============================================================================

// Clock abstracts wall-clock time for the upgrade pipeline.
//
// # Description
//
// All fixed delays in the core (start retry spacing, readiness poll
// intervals, FCV settle time) go through a Clock so tests can run the
// full retry ladder without real sleeps.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// Sleep blocks for the given duration.
	Sleep(d time.Duration)
}

// =============================================================================
// Real Implementation
// =============================================================================

// RealClock implements Clock using the time package.
type RealClock struct{}

// NewRealClock creates the production clock.
func NewRealClock() *RealClock {
	return &RealClock{}
}

// Now returns time.Now().
func (c *RealClock) Now() time.Time {
	return time.Now()
}

// Sleep delegates to time.Sleep.
func (c *RealClock) Sleep(d time.Duration) {
	time.Sleep(d)
}

// =============================================================================
// Fake Implementation for Testing
// =============================================================================

// FakeClock is a test double that records sleeps instead of waiting.
//
// Each Sleep call advances the fake's notion of now by the requested
// duration and appends it to Sleeps, so tests can assert both the
// number of waits and their spacing.
//
// # Examples
//
//	clock := util.NewFakeClock(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
//	controller := NewDefaultServerController(proc, admin, cfg, clock)
//	// ... drive a retry loop ...
//	if len(clock.Sleeps) != 3 {
//	    t.Errorf("expected 3 retry delays, got %d", len(clock.Sleeps))
//	}
type FakeClock struct {
	mu sync.Mutex

	// Sleeps records every Sleep call in order.
	Sleeps []time.Duration

	now time.Time
}

// NewFakeClock creates a FakeClock starting at the given instant.
func NewFakeClock(start time.Time) *FakeClock {
	return &FakeClock{now: start}
}

// Now returns the fake's current instant.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Sleep records the duration and advances the fake time.
func (c *FakeClock) Sleep(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Sleeps = append(c.Sleeps, d)
	c.now = c.now.Add(d)
}

// SleepCount returns the number of recorded sleeps.
func (c *FakeClock) SleepCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.Sleeps)
}

// TotalSlept returns the sum of every recorded sleep.
func (c *FakeClock) TotalSlept() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	var total time.Duration
	for _, d := range c.Sleeps {
		total += d
	}
	return total
}

var _ Clock = (*RealClock)(nil)
var _ Clock = (*FakeClock)(nil)
