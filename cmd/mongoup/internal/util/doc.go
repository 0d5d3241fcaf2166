// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

/*
Package util provides shared utilities for the mongoup CLI.

# Overview

This package contains three small components used across the upgrade
pipeline:

  - Clock: an injectable time source so retry and poll loops are
    deterministic under test (no bare time.Sleep in the core)
  - Severity / Classified: the error taxonomy separating fatal aborts
    from deferred warnings
  - CommandError: rich context for external command failures
  - TimeoutConfig: validated timeout floors for external operations

# Error Taxonomy

Every collaborator outcome is classified before the upgrade manager
decides fatal-vs-continue:

	if err := installer.Install(ctx, step.Target, step.Variant); err != nil {
	    return util.Fatal("install", err)
	}

Fatal errors abort the run with exit code 1. Warnings are accumulated
on the run report and re-checked at final verification.

# Thread Safety

All types in this package are either immutable after creation or
protected by internal synchronization (FakeClock).
*/
package util
