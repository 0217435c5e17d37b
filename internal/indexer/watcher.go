// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package indexer

import (
	"log/slog"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Watcher accumulates file-change notifications from the filesystem so a
// host can drive memory_index_scan off real edits instead of polling a
// path list on a timer. It watches individual directories, not recursively
// (fsnotify has no native recursive mode); a caller watching a spec tree
// must add every subdirectory it cares about.
type Watcher struct {
	logger *slog.Logger

	mu      sync.Mutex
	fsw     *fsnotify.Watcher
	running bool
	changed map[string]struct{}
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewWatcher returns a Watcher with no directories registered yet.
func NewWatcher(logger *slog.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{logger: logger, fsw: fsw, changed: make(map[string]struct{})}, nil
}

// Add registers dir for change notifications.
func (w *Watcher) Add(dir string) error {
	return w.fsw.Add(dir)
}

// Start launches the goroutine that drains fsnotify events into the
// pending-changed set. A second call while already running is a no-op.
func (w *Watcher) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return
	}
	w.running = true
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	go w.run(w.stopCh, w.doneCh)
}

func (w *Watcher) run(stopCh, doneCh chan struct{}) {
	defer close(doneCh)
	for {
		select {
		case <-stopCh:
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				w.mu.Lock()
				w.changed[ev.Name] = struct{}{}
				w.mu.Unlock()
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("index watcher error", "error", err)
		}
	}
}

// Stop halts the watch loop and closes the underlying fsnotify watcher.
// Stopping a Watcher that isn't running is a no-op.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	close(w.stopCh)
	done := w.doneCh
	w.running = false
	w.mu.Unlock()

	<-done
	return w.fsw.Close()
}

// IsRunning reports whether the watch loop is active.
func (w *Watcher) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// DrainChanged returns every path that has changed since the last drain and
// clears the pending set.
func (w *Watcher) DrainChanged() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	paths := make([]string, 0, len(w.changed))
	for p := range w.changed {
		paths = append(paths, p)
	}
	w.changed = make(map[string]struct{})
	return paths
}
