// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package logtail follows the mongod log during start attempts and
// collects lines that explain a failed startup.
//
// When a freshly installed binary refuses to boot, the exec layer only
// sees a dead process; the reason (an unrecognized option, a storage
// engine mismatch, a failed repair) is in the server log. A Session
// tails the log from its position at start time and keeps every line
// matching a known startup-failure pattern, so the executor can tell
// "directive the new binary no longer accepts" apart from a generic
// crash.
package logtail

import (
	"bufio"
	"io"
	"os"
	"regexp"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// startupErrorPatterns match mongod log lines that explain a boot failure.
var startupErrorPatterns = []*regexp.Regexp{
	regexp.MustCompile(`Unrecognized option`),
	regexp.MustCompile(`unknown option`),
	regexp.MustCompile(`Error parsing YAML config`),
	regexp.MustCompile(`Fatal [Aa]ssertion`),
	regexp.MustCompile(`exception in initAndListen`),
	regexp.MustCompile(`[Aa]borting after`),
	regexp.MustCompile(`shutting down with code:(?:\s*)(?:14|100)`),
	regexp.MustCompile(`requires instructions? unavailable`),
}

// directivePatterns identify the subset of failures caused by a config
// directive the binary does not accept.
var directivePatterns = []*regexp.Regexp{
	regexp.MustCompile(`Unrecognized option`),
	regexp.MustCompile(`unknown option`),
}

// IsStartupError reports whether a log line matches a known
// startup-failure pattern.
func IsStartupError(line string) bool {
	for _, re := range startupErrorPatterns {
		if re.MatchString(line) {
			return true
		}
	}
	return false
}

// IsDirectiveError reports whether a log line indicates an option the
// binary does not recognize.
func IsDirectiveError(line string) bool {
	for _, re := range directivePatterns {
		if re.MatchString(line) {
			return true
		}
	}
	return false
}

// Diagnostics holds the startup-failure lines observed by a Session.
type Diagnostics struct {
	// FatalLines are log lines matching a startup-failure pattern,
	// in observation order.
	FatalLines []string
}

// HasDirectiveError reports whether any collected line points at an
// unrecognized config directive.
func (d Diagnostics) HasDirectiveError() bool {
	for _, line := range d.FatalLines {
		if IsDirectiveError(line) {
			return true
		}
	}
	return false
}

// Summary returns the first fatal line, or "".
func (d Diagnostics) Summary() string {
	if len(d.FatalLines) == 0 {
		return ""
	}
	return strings.TrimSpace(d.FatalLines[0])
}

// Session tails one log file from its current end.
//
// The watch goroutine is the only background goroutine in the tree;
// Stop joins it before returning, so callers never race the collector.
type Session struct {
	watcher *fsnotify.Watcher
	file    *os.File
	reader  *bufio.Reader

	mu     sync.Mutex
	diag   Diagnostics
	done   chan struct{}
	joined sync.WaitGroup
}

// Follow opens the log file, seeks to its end, and starts collecting
// appended lines. A log file that does not exist yet is reported as
// os.ErrNotExist; the caller degrades to no diagnostics rather than
// waiting for it to appear.
func Follow(path string) (*Session, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	if _, err := f.Seek(0, io.SeekEnd); err != nil {
		f.Close()
		return nil, err
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		f.Close()
		return nil, err
	}
	if err := w.Add(path); err != nil {
		w.Close()
		f.Close()
		return nil, err
	}

	s := &Session{
		watcher: w,
		file:    f,
		reader:  bufio.NewReader(f),
		done:    make(chan struct{}),
	}
	s.joined.Add(1)
	go s.pump()
	return s, nil
}

// Stop ends collection, joins the watch goroutine, and returns what
// was seen. Safe to call exactly once.
func (s *Session) Stop() Diagnostics {
	close(s.done)
	s.joined.Wait()
	s.watcher.Close()
	// Drain anything written between the last event and Stop.
	s.drain()
	s.file.Close()

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.diag
}

// pump turns fsnotify write events into drain calls until Stop.
func (s *Session) pump() {
	defer s.joined.Done()
	for {
		select {
		case <-s.done:
			return
		case ev, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if ev.Op&fsnotify.Write != 0 {
				s.drain()
			}
		case _, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			// Watch errors degrade to fewer diagnostics, never failures.
		}
	}
}

// drain reads all complete appended lines and records matches.
func (s *Session) drain() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for {
		line, err := s.reader.ReadString('\n')
		if line != "" && IsStartupError(line) {
			s.diag.FatalLines = append(s.diag.FatalLines, strings.TrimRight(line, "\n"))
		}
		if err != nil {
			return
		}
	}
}
