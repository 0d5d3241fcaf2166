// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package mongoconf

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// =============================================================================
// Error Definitions
// =============================================================================

var (
	// ErrNotYAML is returned when the config file does not parse as YAML.
	// Editing a file we cannot parse risks corrupting it.
	ErrNotYAML = errors.New("config file is not valid YAML")

	// ErrNotScalar is returned when Get targets a section rather than a value.
	ErrNotScalar = errors.New("path is a section, not a scalar")
)

// =============================================================================
// Store
// =============================================================================

// Store is a line-oriented editor for a mongod YAML config file.
//
// # Description
//
// Store keeps the raw file lines and derives each line's dotted path
// from indentation, so edits preserve comments, ordering, and spacing.
// Call Save to write changes back atomically.
//
// # Example
//
//	store, err := mongoconf.Load("/etc/mongod.conf")
//	if err != nil {
//	    return err
//	}
//	store.Set("storage.engine", "wiredTiger")
//	store.Disable("storage.mmapv1")
//	return store.Save()
type Store struct {
	path   string
	lines  []string
	indent int // detected indentation unit, spaces per level
}

// parsedLine is one active (uncommented) key line of the file.
type parsedLine struct {
	index   int    // position in Store.lines
	depth   int    // nesting depth (indent / unit)
	key     string // map key
	value   string // scalar value (unquoted), "" for section headers
	comment string // trailing " # ..." text including the marker
	path    string // full dotted path, e.g. "storage.journal.enabled"
}

// Load reads a mongod config file into a Store.
//
// The file must parse as YAML; on malformed input ErrNotYAML is
// returned so the caller never edits a file blind.
func Load(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	var probe map[string]any
	if err := yaml.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrNotYAML, path, err)
	}

	text := strings.ReplaceAll(string(data), "\r\n", "\n")
	lines := strings.Split(text, "\n")
	// Split leaves one empty trailing element for a newline-terminated file.
	if n := len(lines); n > 0 && lines[n-1] == "" {
		lines = lines[:n-1]
	}

	return &Store{
		path:   path,
		lines:  lines,
		indent: detectIndent(lines),
	}, nil
}

// Path returns the file path this store edits.
func (s *Store) Path() string {
	return s.path
}

// Get returns the scalar value at a dotted path.
//
// The second return is false when the path is absent or commented out.
// Requesting a section header yields ErrNotScalar.
func (s *Store) Get(path string) (string, bool, error) {
	parsed := s.parse()
	for i, pl := range parsed {
		if pl.path != path {
			continue
		}
		if pl.value == "" && i+1 < len(parsed) && parsed[i+1].depth > pl.depth {
			return "", false, fmt.Errorf("%w: %s", ErrNotScalar, path)
		}
		return pl.value, true, nil
	}
	return "", false, nil
}

// Has reports whether an active (uncommented) directive exists at path,
// either as a scalar or as a section.
func (s *Store) Has(path string) bool {
	for _, pl := range s.parse() {
		if pl.path == path {
			return true
		}
	}
	return false
}

// Set writes a scalar value at a dotted path.
//
// An existing directive is rewritten in place, keeping its indentation
// and trailing comment. A missing directive is created under its
// deepest existing ancestor, creating intermediate sections as needed.
func (s *Store) Set(path, value string) {
	parsed := s.parse()
	for _, pl := range parsed {
		if pl.path == path {
			pad := strings.Repeat(" ", pl.depth*s.indent)
			s.lines[pl.index] = fmt.Sprintf("%s%s: %s%s", pad, pl.key, value, pl.comment)
			return
		}
	}
	s.insert(parsed, strings.Split(path, "."), value)
}

// Disable comments out the directive at path, including any nested
// block under it. Lines are prefixed with "#", never deleted, so the
// directive stays recoverable. Returns true when anything changed; an
// absent or already-commented directive is a no-op.
func (s *Store) Disable(path string) bool {
	parsed := s.parse()
	for i, pl := range parsed {
		if pl.path != path {
			continue
		}
		s.commentOut(pl.index)
		for j := i + 1; j < len(parsed) && parsed[j].depth > pl.depth; j++ {
			s.commentOut(parsed[j].index)
		}
		return true
	}
	return false
}

// Save writes the file back via a temp file and atomic rename,
// preserving the original mode.
func (s *Store) Save() error {
	mode := os.FileMode(0644)
	if info, err := os.Stat(s.path); err == nil {
		mode = info.Mode()
	}

	tmp := s.path + ".mongoup.tmp"
	if err := os.WriteFile(tmp, []byte(s.Render()), mode); err != nil {
		return fmt.Errorf("write temp config: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace config %s: %w", s.path, err)
	}
	return nil
}

// Render returns the current file content.
func (s *Store) Render() string {
	return strings.Join(s.lines, "\n") + "\n"
}

// =============================================================================
// Line Parsing
// =============================================================================

// parse walks the raw lines and returns every active key line with its
// dotted path. Comments, blanks, and sequence items are skipped, so
// commented-out directives are invisible to Get/Has/Disable.
func (s *Store) parse() []parsedLine {
	type frame struct {
		depth int
		key   string
	}
	var (
		out   []parsedLine
		stack []frame
	)

	for i, raw := range s.lines {
		trimmed := strings.TrimLeft(raw, " ")
		if trimmed == "" || strings.HasPrefix(trimmed, "#") || strings.HasPrefix(trimmed, "-") {
			continue
		}
		colon := strings.Index(trimmed, ":")
		if colon < 0 {
			continue
		}

		spaces := len(raw) - len(trimmed)
		depth := 0
		if s.indent > 0 {
			depth = spaces / s.indent
		}

		key := strings.TrimSpace(trimmed[:colon])
		value, comment := splitComment(trimmed[colon+1:])

		for len(stack) > 0 && stack[len(stack)-1].depth >= depth {
			stack = stack[:len(stack)-1]
		}

		parts := make([]string, 0, len(stack)+1)
		for _, f := range stack {
			parts = append(parts, f.key)
		}
		parts = append(parts, key)

		out = append(out, parsedLine{
			index:   i,
			depth:   depth,
			key:     key,
			value:   value,
			comment: comment,
			path:    strings.Join(parts, "."),
		})
		stack = append(stack, frame{depth: depth, key: key})
	}
	return out
}

// commentOut prefixes a line with "#", keeping its indentation.
func (s *Store) commentOut(index int) {
	raw := s.lines[index]
	trimmed := strings.TrimLeft(raw, " ")
	pad := raw[:len(raw)-len(trimmed)]
	s.lines[index] = pad + "#" + trimmed
}

// insert creates a missing directive, reusing the deepest existing
// ancestor section and creating the rest of the chain beneath it.
func (s *Store) insert(parsed []parsedLine, segments []string, value string) {
	ancestorDepth := -1
	insertAt := len(s.lines)

	for n := len(segments) - 1; n > 0 && ancestorDepth < 0; n-- {
		prefix := strings.Join(segments[:n], ".")
		for i, pl := range parsed {
			if pl.path != prefix {
				continue
			}
			ancestorDepth = n - 1
			// The ancestor's block ends at the next line with <= depth.
			insertAt = len(s.lines)
			for j := i + 1; j < len(parsed); j++ {
				if parsed[j].depth <= pl.depth {
					insertAt = parsed[j].index
					break
				}
			}
			break
		}
	}

	var add []string
	for n := ancestorDepth + 1; n < len(segments); n++ {
		pad := strings.Repeat(" ", n*s.indent)
		if n == len(segments)-1 {
			add = append(add, fmt.Sprintf("%s%s: %s", pad, segments[n], value))
		} else {
			add = append(add, pad+segments[n]+":")
		}
	}

	tail := make([]string, len(s.lines)-insertAt)
	copy(tail, s.lines[insertAt:])
	s.lines = append(s.lines[:insertAt], append(add, tail...)...)
}

// =============================================================================
// Helpers
// =============================================================================

// detectIndent returns the indentation unit of the file (default 2).
func detectIndent(lines []string) int {
	for _, raw := range lines {
		trimmed := strings.TrimLeft(raw, " ")
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		if n := len(raw) - len(trimmed); n > 0 {
			return n
		}
	}
	return 2
}

// splitComment splits a value fragment into (unquoted value, trailing
// comment). The comment keeps its leading spaces and "#" marker.
func splitComment(rest string) (string, string) {
	comment := ""
	if idx := strings.Index(rest, " #"); idx >= 0 {
		comment = rest[idx:]
		rest = rest[:idx]
	}
	value := strings.TrimSpace(rest)
	value = strings.Trim(value, `"'`)
	return value, comment
}
