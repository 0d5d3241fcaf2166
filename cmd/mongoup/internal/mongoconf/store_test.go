// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package mongoconf

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// sampleConf mirrors a typical operator-maintained mongod.conf.
const sampleConf = `# mongod.conf
# for documentation of all options, see mongodb.com

systemLog:
  destination: file
  path: /var/log/mongodb/mongod.log  # rotated by logrotate
  logAppend: true

storage:
  dbPath: /var/lib/mongodb
  engine: mmapv1
  journal:
    enabled: true
  mmapv1:
    smallFiles: true

net:
  port: 27017
  bindIp: 127.0.0.1
`

// writeSample writes the fixture and loads it.
func writeSample(t *testing.T, content string) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mongod.conf")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	store, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	return store
}

// =============================================================================
// Get Tests
// =============================================================================

// TestStore_Get verifies dotted-path lookups at every nesting level.
func TestStore_Get(t *testing.T) {
	store := writeSample(t, sampleConf)

	tests := []struct {
		name      string
		path      string
		wantValue string
		wantFound bool
	}{
		{"top level nested", "net.port", "27017", true},
		{"deep nested", "storage.journal.enabled", "true", true},
		{"engine", "storage.engine", "mmapv1", true},
		{"with trailing comment", "systemLog.path", "/var/log/mongodb/mongod.log", true},
		{"absent", "storage.wiredTiger.engineConfig.cacheSizeGB", "", false},
		{"absent top level", "replication.replSetName", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, found, err := store.Get(tt.path)
			if err != nil {
				t.Fatalf("Get(%q) error: %v", tt.path, err)
			}
			if found != tt.wantFound {
				t.Fatalf("Get(%q) found = %v, want %v", tt.path, found, tt.wantFound)
			}
			if got != tt.wantValue {
				t.Errorf("Get(%q) = %q, want %q", tt.path, got, tt.wantValue)
			}
		})
	}
}

// TestStore_Get_Section verifies section headers are rejected.
func TestStore_Get_Section(t *testing.T) {
	store := writeSample(t, sampleConf)
	if _, _, err := store.Get("storage.journal"); err == nil {
		t.Error("Get on a section should return ErrNotScalar")
	}
}

// =============================================================================
// Set Tests
// =============================================================================

// TestStore_Set_InPlace verifies indentation and comments survive a rewrite.
func TestStore_Set_InPlace(t *testing.T) {
	store := writeSample(t, sampleConf)

	store.Set("storage.engine", "wiredTiger")

	got, found, err := store.Get("storage.engine")
	if err != nil || !found {
		t.Fatalf("Get after Set: %v found=%v", err, found)
	}
	if got != "wiredTiger" {
		t.Errorf("engine = %q, want wiredTiger", got)
	}
	// The header comment and the unrelated trailing comment must survive.
	rendered := store.Render()
	if !strings.Contains(rendered, "# mongod.conf") {
		t.Error("file header comment was lost")
	}
	if !strings.Contains(rendered, "# rotated by logrotate") {
		t.Error("trailing comment on an unrelated line was lost")
	}
	if !strings.Contains(rendered, "  engine: wiredTiger") {
		t.Error("rewritten line lost its indentation")
	}
}

// TestStore_Set_CreatesMissingChain verifies section creation under an
// existing ancestor.
func TestStore_Set_CreatesMissingChain(t *testing.T) {
	store := writeSample(t, sampleConf)

	store.Set("storage.wiredTiger.engineConfig.cacheSizeGB", "1")

	got, found, err := store.Get("storage.wiredTiger.engineConfig.cacheSizeGB")
	if err != nil || !found {
		t.Fatalf("created directive not readable: %v found=%v", err, found)
	}
	if got != "1" {
		t.Errorf("value = %q, want 1", got)
	}
	// It must land inside the storage block, not at file end.
	rendered := store.Render()
	storageIdx := strings.Index(rendered, "storage:")
	netIdx := strings.Index(rendered, "net:")
	wtIdx := strings.Index(rendered, "wiredTiger:")
	if !(storageIdx < wtIdx && wtIdx < netIdx) {
		t.Error("created chain was not inserted inside the storage block")
	}
}

// TestStore_Set_NewTopLevel verifies a whole missing chain appends cleanly.
func TestStore_Set_NewTopLevel(t *testing.T) {
	store := writeSample(t, sampleConf)

	store.Set("setParameter.enableLocalhostAuthBypass", "false")

	_, found, err := store.Get("setParameter.enableLocalhostAuthBypass")
	if err != nil || !found {
		t.Fatalf("new top-level chain not readable: %v found=%v", err, found)
	}
}

// =============================================================================
// Disable Tests
// =============================================================================

// TestStore_Disable verifies comment-out-not-delete semantics.
func TestStore_Disable(t *testing.T) {
	store := writeSample(t, sampleConf)

	changed := store.Disable("storage.journal.enabled")
	if !changed {
		t.Fatal("Disable should report a change")
	}

	// Directive is gone from active view but still present in the text.
	if store.Has("storage.journal.enabled") {
		t.Error("disabled directive still active")
	}
	if !strings.Contains(store.Render(), "#enabled: true") {
		t.Errorf("directive was not left commented:\n%s", store.Render())
	}

	// Second disable is a no-op.
	if store.Disable("storage.journal.enabled") {
		t.Error("second Disable should be a no-op")
	}
}

// TestStore_Disable_Block verifies a section disable takes its children.
func TestStore_Disable_Block(t *testing.T) {
	store := writeSample(t, sampleConf)

	if !store.Disable("storage.mmapv1") {
		t.Fatal("Disable should report a change")
	}
	rendered := store.Render()
	if !strings.Contains(rendered, "#mmapv1:") {
		t.Error("section header not commented")
	}
	if !strings.Contains(rendered, "#smallFiles: true") {
		t.Error("nested directive not commented")
	}
	// Siblings untouched.
	if !store.Has("storage.dbPath") {
		t.Error("sibling directive lost")
	}
}

// TestStore_Disable_Absent verifies an absent directive is a no-op.
func TestStore_Disable_Absent(t *testing.T) {
	store := writeSample(t, sampleConf)
	if store.Disable("operationProfiling.mode") {
		t.Error("Disable of an absent directive should return false")
	}
}

// =============================================================================
// Save / Load Tests
// =============================================================================

// TestStore_SaveRoundTrip verifies atomic save and reload.
func TestStore_SaveRoundTrip(t *testing.T) {
	store := writeSample(t, sampleConf)

	store.Set("storage.engine", "wiredTiger")
	store.Disable("storage.mmapv1")
	if err := store.Save(); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	reloaded, err := Load(store.Path())
	if err != nil {
		t.Fatalf("reload error: %v", err)
	}
	got, found, err := reloaded.Get("storage.engine")
	if err != nil || !found || got != "wiredTiger" {
		t.Errorf("reloaded engine = %q (found=%v, err=%v), want wiredTiger", got, found, err)
	}
	if reloaded.Has("storage.mmapv1") {
		t.Error("disabled block active after reload")
	}
}

// TestLoad_RejectsMalformed verifies we refuse to edit non-YAML files.
func TestLoad_RejectsMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mongod.conf")
	if err := os.WriteFile(path, []byte("storage: [unclosed\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("Load should reject a file that does not parse as YAML")
	}
}
