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
Package mongoconf edits a mongod YAML configuration file in place while
preserving everything it does not touch.

# Overview

mongod.conf is hand-maintained on most installations: operators leave
comments, spacing, and ordering that a parse-and-redump cycle would
destroy. This package therefore works line-oriented. Each line's dotted
path (e.g. "storage.journal.enabled") is derived from its indentation,
and edits rewrite only the affected lines.

Three operations are supported:

  - Get: read the scalar value at a dotted path
  - Set: replace a value in place, or create the path if absent
  - Disable: comment a directive out (never delete), including any
    nested block under it

Disable is the typed "toggle" used when a target binary retires a
directive: the line stays in the file, recoverable by hand, but the
server no longer sees it.

# Limitations

  - YAML sequences are not addressable (mongod.conf rarely uses them)
  - Flow mappings ({a: b}) are treated as opaque scalar values

# Thread Safety

Store is not safe for concurrent use. The upgrade pipeline is strictly
sequential, so no locking is provided.
*/
package mongoconf
