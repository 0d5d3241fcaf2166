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
Package process provides inter-process synchronization for the mongoup CLI.

# Overview

The upgrade run assumes exclusive ownership of the mongod process and
its data directory. RunLock enforces that assumption on the orchestrator
side: a second concurrent mongoup invocation fails fast instead of
racing the first through stop/install/start.

	lock := process.NewRunLock(process.DefaultRunLockConfig())
	if err := lock.Acquire(); err != nil {
	    fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	    os.Exit(1)
	}
	defer lock.Release()

# Thread Safety

RunLock is NOT safe for concurrent use from multiple goroutines. The
lock provides inter-process synchronization only; use it from main.

# Limitations

  - Advisory flock(2) only; a process that does not check can ignore it
  - NFS and some network filesystems do not support flock properly
*/
package process
