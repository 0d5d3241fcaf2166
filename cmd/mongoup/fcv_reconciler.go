// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

/*
FCVReconciler drives the server's feature compatibility version to the
step target.

A freshly upgraded binary keeps serving with the previous FCV until it is
raised explicitly, and the next binary on the ladder refuses to start
against an FCV more than one series behind. Reconciliation reads the
effective FCV through layered strategies (different server generations
expose it differently), corrects it when needed, and reports one of three
outcomes. An outcome it cannot verify is a warning, not a failure: the
server is healthy, we just could not prove the FCV took.
*/
package main

import (
	"context"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/jinterlante1206/mongoup/cmd/mongoup/internal/util"
	"github.com/jinterlante1206/mongoup/pkg/logging"
)

// -----------------------------------------------------------------------------
// Types
// -----------------------------------------------------------------------------

// FCVOutcome classifies a reconciliation.
type FCVOutcome int

const (
	// FCVMatched: the server already ran the target FCV; no command sent.
	FCVMatched FCVOutcome = iota
	// FCVCorrected: setFeatureCompatibilityVersion was sent and the
	// re-read confirmed the target.
	FCVCorrected
	// FCVUnverifiable: the FCV could not be read, set, or confirmed.
	// Recorded as a warning and re-checked at final verification.
	FCVUnverifiable
	// FCVDeferred: no reconciliation was attempted for this step because
	// the server is already past its series; a later step or the final
	// verification owns the FCV from here.
	FCVDeferred
)

func (o FCVOutcome) String() string {
	switch o {
	case FCVMatched:
		return "matched"
	case FCVCorrected:
		return "corrected"
	case FCVDeferred:
		return "deferred"
	default:
		return "unverifiable"
	}
}

// FCVResult is the reconciliation outcome for the run report.
type FCVResult struct {
	Outcome FCVOutcome
	Current string // last observed FCV, empty if never read
	Target  string
}

const fcvSettleDelay = 3 * time.Second

// -----------------------------------------------------------------------------
// Interface Definition
// -----------------------------------------------------------------------------

// FCVReconciler aligns the server's FCV with a step target.
type FCVReconciler interface {
	// Reconcile reads the effective FCV and corrects it to target if
	// needed. installed is the known binary version, used as the
	// read-strategy of last resort; pass the zero Version when unknown.
	//
	// The error is non-nil only alongside FCVUnverifiable and carries
	// the underlying cause for the warning log.
	Reconcile(ctx context.Context, target string, installed Version) (FCVResult, error)

	// Current reads the effective FCV without changing anything.
	Current(ctx context.Context, installed Version) (string, bool)
}

// -----------------------------------------------------------------------------
// Implementation
// -----------------------------------------------------------------------------

// DefaultFCVReconciler implements FCVReconciler over AdminCommander.
type DefaultFCVReconciler struct {
	admin AdminCommander
	clock util.Clock
	log   *logging.Logger
}

// NewDefaultFCVReconciler wires the production reconciler.
func NewDefaultFCVReconciler(admin AdminCommander, clock util.Clock, log *logging.Logger) *DefaultFCVReconciler {
	return &DefaultFCVReconciler{admin: admin, clock: clock, log: log}
}

// Reconcile reads the effective FCV and corrects it to target if needed.
func (r *DefaultFCVReconciler) Reconcile(ctx context.Context, target string, installed Version) (FCVResult, error) {
	current, ok := r.readFCV(ctx, installed)
	if !ok {
		r.log.Warn("could not determine current FCV", "target", target)
		return FCVResult{Outcome: FCVUnverifiable, Target: target}, nil
	}
	if current == target {
		return FCVResult{Outcome: FCVMatched, Current: current, Target: target}, nil
	}

	r.log.Info("setting feature compatibility version", "from", current, "to", target)
	if err := r.setFCV(ctx, target); err != nil {
		return FCVResult{Outcome: FCVUnverifiable, Current: current, Target: target}, util.Warning("fcv", err)
	}

	// mongod applies the new FCV asynchronously on old series
	r.clock.Sleep(fcvSettleDelay)

	after, ok := r.readFCV(ctx, installed)
	if ok && after == target {
		return FCVResult{Outcome: FCVCorrected, Current: after, Target: target}, nil
	}
	return FCVResult{Outcome: FCVUnverifiable, Current: after, Target: target}, nil
}

// Current reads the effective FCV without changing anything.
func (r *DefaultFCVReconciler) Current(ctx context.Context, installed Version) (string, bool) {
	return r.readFCV(ctx, installed)
}

// setFCV sends setFeatureCompatibilityVersion. Servers from 7.0 refuse
// the bare command and demand an explicit confirmation flag; that reply
// gets exactly one retry with confirm: true.
func (r *DefaultFCVReconciler) setFCV(ctx context.Context, target string) error {
	_, err := r.admin.RunCommand(ctx, bson.D{
		{Key: "setFeatureCompatibilityVersion", Value: target},
	})
	if err == nil {
		return nil
	}
	if !strings.Contains(strings.ToLower(err.Error()), "confirm") {
		return err
	}
	_, err = r.admin.RunCommand(ctx, bson.D{
		{Key: "setFeatureCompatibilityVersion", Value: target},
		{Key: "confirm", Value: true},
	})
	return err
}

// readFCV tries each read strategy in order and returns the first hit.
func (r *DefaultFCVReconciler) readFCV(ctx context.Context, installed Version) (string, bool) {
	if fcv, ok := r.readViaGetParameter(ctx); ok {
		return fcv, true
	}
	if fcv, ok := r.readViaSystemVersion(ctx); ok {
		return fcv, true
	}
	// a binary that starts cleanly runs at most its own series' FCV
	if !installed.IsZero() {
		return installed.FCV(), true
	}
	return "", false
}

// readViaGetParameter handles both reply shapes: 3.x servers return the
// value as a bare string, 4.0+ as a {version: "X.Y"} subdocument.
func (r *DefaultFCVReconciler) readViaGetParameter(ctx context.Context) (string, bool) {
	reply, err := r.admin.RunCommand(ctx, bson.D{
		{Key: "getParameter", Value: 1},
		{Key: "featureCompatibilityVersion", Value: 1},
	})
	if err != nil {
		return "", false
	}
	switch v := reply["featureCompatibilityVersion"].(type) {
	case string:
		return v, true
	case bson.M:
		if s, ok := v["version"].(string); ok {
			return s, true
		}
	}
	return "", false
}

func (r *DefaultFCVReconciler) readViaSystemVersion(ctx context.Context) (string, bool) {
	doc, err := r.admin.FindSystemVersion(ctx, "featureCompatibilityVersion")
	if err != nil {
		return "", false
	}
	if s, ok := doc["version"].(string); ok {
		return s, true
	}
	return "", false
}

// Compile-time interface compliance check.
var _ FCVReconciler = (*DefaultFCVReconciler)(nil)
