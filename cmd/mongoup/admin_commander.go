// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

/*
AdminCommander abstracts admin-database access to the live mongod.

The upgrade pipeline needs a handful of admin commands (buildInfo,
getParameter, setFeatureCompatibilityVersion, serverStatus, ping) and one
collection read (admin.system.version). Everything goes through this
interface so the pipeline can be tested without a server, and so
connection lifecycle stays in one place.
*/
package main

import (
	"context"
	"fmt"
	"sync"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// -----------------------------------------------------------------------------
// Interface Definition
// -----------------------------------------------------------------------------

// AdminCommander runs admin commands against the managed mongod.
//
// # Connection Lifecycle
//
// Implementations connect lazily on first use and must tolerate the
// server restarting between calls: every upgrade step stops and restarts
// mongod, so a cached connection from before the restart has to be
// re-established, not returned as an error.
type AdminCommander interface {
	// RunCommand executes a command against the admin database and
	// returns the decoded reply document.
	RunCommand(ctx context.Context, cmd bson.D) (bson.M, error)

	// FindSystemVersion reads one document from admin.system.version by
	// _id. Returns mongo.ErrNoDocuments (wrapped) when absent.
	FindSystemVersion(ctx context.Context, id string) (bson.M, error)

	// Ping checks server liveness. Used as the readiness probe between
	// start attempts.
	Ping(ctx context.Context) error

	// Close releases the underlying connection. Safe to call when never
	// connected.
	Close(ctx context.Context) error
}

// -----------------------------------------------------------------------------
// Implementation
// -----------------------------------------------------------------------------

// DefaultAdminCommander implements AdminCommander over mongo-driver.
type DefaultAdminCommander struct {
	uri string

	mu     sync.Mutex
	client *mongo.Client
}

// NewDefaultAdminCommander creates a commander for the given connection
// string. No connection is made until the first call.
func NewDefaultAdminCommander(uri string) *DefaultAdminCommander {
	return &DefaultAdminCommander{uri: uri}
}

// connect returns the cached client, dialing if needed. The driver's
// topology layer handles server restarts underneath a live client, so a
// cached client is reused across upgrade steps.
func (c *DefaultAdminCommander) connect(ctx context.Context) (*mongo.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client != nil {
		return c.client, nil
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(c.uri).SetDirect(true))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", c.uri, err)
	}
	c.client = client
	return client, nil
}

// RunCommand executes a command against the admin database.
func (c *DefaultAdminCommander) RunCommand(ctx context.Context, cmd bson.D) (bson.M, error) {
	client, err := c.connect(ctx)
	if err != nil {
		return nil, err
	}
	var reply bson.M
	if err := client.Database("admin").RunCommand(ctx, cmd).Decode(&reply); err != nil {
		return nil, err
	}
	return reply, nil
}

// FindSystemVersion reads one document from admin.system.version.
func (c *DefaultAdminCommander) FindSystemVersion(ctx context.Context, id string) (bson.M, error) {
	client, err := c.connect(ctx)
	if err != nil {
		return nil, err
	}
	var doc bson.M
	err = client.Database("admin").Collection("system.version").
		FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&doc)
	if err != nil {
		return nil, fmt.Errorf("failed to read system.version %q: %w", id, err)
	}
	return doc, nil
}

// Ping checks server liveness.
func (c *DefaultAdminCommander) Ping(ctx context.Context) error {
	client, err := c.connect(ctx)
	if err != nil {
		return err
	}
	return client.Ping(ctx, nil)
}

// Close releases the underlying connection.
func (c *DefaultAdminCommander) Close(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client == nil {
		return nil
	}
	err := c.client.Disconnect(ctx)
	c.client = nil
	return err
}

// -----------------------------------------------------------------------------
// Mock Implementation for Testing
// -----------------------------------------------------------------------------

// MockAdminCommander is a test double for AdminCommander.
//
// Configure the mock by setting function fields before use. A nil
// function field panics when called, which keeps tests honest about
// which channels they expect to be exercised.
type MockAdminCommander struct {
	// RunCommandFunc is called when RunCommand is invoked
	RunCommandFunc func(ctx context.Context, cmd bson.D) (bson.M, error)

	// FindSystemVersionFunc is called when FindSystemVersion is invoked
	FindSystemVersionFunc func(ctx context.Context, id string) (bson.M, error)

	// PingFunc is called when Ping is invoked
	PingFunc func(ctx context.Context) error

	// Commands records the command name of every RunCommand invocation
	Commands []string

	mu sync.Mutex
}

// RunCommand delegates to RunCommandFunc and records the command name.
func (m *MockAdminCommander) RunCommand(ctx context.Context, cmd bson.D) (bson.M, error) {
	m.mu.Lock()
	if len(cmd) > 0 {
		m.Commands = append(m.Commands, cmd[0].Key)
	}
	m.mu.Unlock()
	if m.RunCommandFunc == nil {
		panic("MockAdminCommander.RunCommandFunc not set")
	}
	return m.RunCommandFunc(ctx, cmd)
}

// FindSystemVersion delegates to FindSystemVersionFunc.
func (m *MockAdminCommander) FindSystemVersion(ctx context.Context, id string) (bson.M, error) {
	if m.FindSystemVersionFunc == nil {
		panic("MockAdminCommander.FindSystemVersionFunc not set")
	}
	return m.FindSystemVersionFunc(ctx, id)
}

// Ping delegates to PingFunc.
func (m *MockAdminCommander) Ping(ctx context.Context) error {
	if m.PingFunc == nil {
		panic("MockAdminCommander.PingFunc not set")
	}
	return m.PingFunc(ctx)
}

// Close is a no-op on the mock.
func (m *MockAdminCommander) Close(ctx context.Context) error {
	return nil
}

// CommandNames returns a copy of the recorded command names.
func (m *MockAdminCommander) CommandNames() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.Commands))
	copy(out, m.Commands)
	return out
}

// Compile-time interface compliance check.
var (
	_ AdminCommander = (*DefaultAdminCommander)(nil)
	_ AdminCommander = (*MockAdminCommander)(nil)
)
