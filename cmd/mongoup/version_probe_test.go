// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"fmt"
	"testing"

	"go.mongodb.org/mongo-driver/bson"
)

func TestDetectViaBuildInfo(t *testing.T) {
	admin := &MockAdminCommander{
		RunCommandFunc: func(ctx context.Context, cmd bson.D) (bson.M, error) {
			return bson.M{"version": "4.2.25", "ok": 1}, nil
		},
	}
	pm := &MockProcessManager{
		RunFunc: func(ctx context.Context, name string, args ...string) ([]byte, error) {
			t.Fatal("binary channel must not run when buildInfo answers")
			return nil, nil
		},
	}

	probe := NewDefaultVersionProbe(admin, pm, "/usr/local/bin/mongod", testLogger())
	v, ok := probe.Detect(context.Background())
	if !ok || v.String() != "4.2.25" {
		t.Errorf("Detect = %v, %v", v, ok)
	}
}

func TestDetectFallsBackToBinary(t *testing.T) {
	admin := &MockAdminCommander{
		RunCommandFunc: func(ctx context.Context, cmd bson.D) (bson.M, error) {
			return nil, fmt.Errorf("connection refused")
		},
	}
	pm := &MockProcessManager{
		RunFunc: func(ctx context.Context, name string, args ...string) ([]byte, error) {
			banner := "db version v4.0.28\ngit version: af1a9dc12adcfa83cc19571cb3faba26eeddac92\n"
			return []byte(banner), nil
		},
	}

	probe := NewDefaultVersionProbe(admin, pm, "/usr/local/bin/mongod", testLogger())
	v, ok := probe.Detect(context.Background())
	if !ok || v.String() != "4.0.28" {
		t.Errorf("Detect = %v, %v", v, ok)
	}
}

func TestDetectAllChannelsFail(t *testing.T) {
	admin := &MockAdminCommander{
		RunCommandFunc: func(ctx context.Context, cmd bson.D) (bson.M, error) {
			return nil, fmt.Errorf("connection refused")
		},
	}
	pm := &MockProcessManager{
		RunFunc: func(ctx context.Context, name string, args ...string) ([]byte, error) {
			return nil, fmt.Errorf("no such file")
		},
	}

	probe := NewDefaultVersionProbe(admin, pm, "/usr/local/bin/mongod", testLogger())
	v, ok := probe.Detect(context.Background())
	if ok {
		t.Errorf("Detect reported ok with version %v", v)
	}
	if !v.IsZero() {
		t.Errorf("failed detection should return the zero version, got %v", v)
	}
}

func TestDetectRejectsMalformedBanner(t *testing.T) {
	admin := &MockAdminCommander{
		RunCommandFunc: func(ctx context.Context, cmd bson.D) (bson.M, error) {
			// reply present but version field is the wrong type
			return bson.M{"version": 42}, nil
		},
	}
	pm := &MockProcessManager{
		RunFunc: func(ctx context.Context, name string, args ...string) ([]byte, error) {
			return []byte("mongod: unrecognized option"), nil
		},
	}

	probe := NewDefaultVersionProbe(admin, pm, "/usr/local/bin/mongod", testLogger())
	if _, ok := probe.Detect(context.Background()); ok {
		t.Error("malformed replies on every channel must not produce a version")
	}
}
