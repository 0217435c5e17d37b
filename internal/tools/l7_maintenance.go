// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package tools

import (
	"context"

	"github.com/aleutian-labs/speckit-memory/internal/indexer"
	"github.com/aleutian-labs/speckit-memory/internal/memerr"
	"github.com/aleutian-labs/speckit-memory/internal/model"
	"github.com/aleutian-labs/speckit-memory/internal/store"
)

const (
	toolMemoryIndexScan          = "memory_index_scan"
	toolMemoryGetLearningHistory = "memory_get_learning_history"
	toolMemoryIndexWatch         = "memory_index_watch"
)

func (s *Surface) MemoryIndexScanDescribe() (string, int) {
	return describe(toolMemoryIndexScan, "Categorizes a list of file paths into needs-indexing, needs-mtime-bump, unchanged, and not-found, applying the mtime bumps directly. With no paths and a running watch, drains the watch's pending changes instead.")
}

// MemoryIndexScan runs should_reindex's decision table across paths and
// applies every resulting mtime-only update immediately. Paths in
// NeedsIndexing are left for the caller to drive through memory_save, since
// indexing a file's content is a save decision, not a scan one. When paths
// is empty and MemoryIndexWatchStart has been called, the paths the watcher
// has accumulated since the last drain are scanned instead of failing.
func (s *Surface) MemoryIndexScan(ctx context.Context, paths []string, force bool) Envelope[indexer.CategorizeResult] {
	if len(paths) == 0 && s.IndexWatcher != nil {
		paths = s.IndexWatcher.DrainChanged()
	}
	if len(paths) == 0 {
		return fail[indexer.CategorizeResult](toolMemoryIndexScan, memerr.New(memerr.E030MissingParameter, "paths must not be empty (and no watch has pending changes)", true, "supply at least one file path, or start memory_index_watch first", nil))
	}

	result, err := indexer.CategorizeFilesForIndexing(ctx, s.Engine.Index, paths, force)
	if err != nil {
		return fail[indexer.CategorizeResult](toolMemoryIndexScan, memerr.New(memerr.E024DBReadFailed, err.Error(), true, "retry", nil))
	}

	if len(result.NeedsMtimeUpdate) > 0 {
		if _, err := indexer.BatchUpdateMtimes(ctx, s.Engine.Index, result.NeedsMtimeUpdate); err != nil {
			return fail[indexer.CategorizeResult](toolMemoryIndexScan, memerr.New(memerr.E023DBWriteFailed, err.Error(), true, "retry", nil))
		}
	}

	return ok(result)
}

func (s *Surface) MemoryIndexWatchDescribe() (string, int) {
	return describe(toolMemoryIndexWatch, "Starts or stops an fsnotify watch over a set of directories, feeding memory_index_scan's drain-on-empty path.")
}

// MemoryIndexWatchStart watches every directory in dirs for writes, creates,
// and renames, so a later MemoryIndexScan call with no explicit paths picks
// up whatever changed in between. Calling it again while already running is
// a no-op; call MemoryIndexWatchStop first to re-point the watch at a
// different directory set.
func (s *Surface) MemoryIndexWatchStart(dirs []string) Envelope[struct{}] {
	if len(dirs) == 0 {
		return fail[struct{}](toolMemoryIndexWatch, memerr.New(memerr.E030MissingParameter, "dirs must not be empty", true, "supply at least one directory to watch", nil))
	}
	if s.IndexWatcher != nil && s.IndexWatcher.IsRunning() {
		return ok(struct{}{})
	}

	w, err := indexer.NewWatcher(s.Logger)
	if err != nil {
		return fail[struct{}](toolMemoryIndexWatch, memerr.New(memerr.E024DBReadFailed, err.Error(), true, "retry", nil))
	}
	for _, d := range dirs {
		if err := w.Add(d); err != nil {
			return fail[struct{}](toolMemoryIndexWatch, memerr.New(memerr.E031InvalidParameter, err.Error(), true, "check the directory exists and is readable", map[string]any{"dir": d}))
		}
	}
	w.Start()
	s.IndexWatcher = w
	return ok(struct{}{})
}

// MemoryIndexWatchStop stops the running watch, if any.
func (s *Surface) MemoryIndexWatchStop() Envelope[struct{}] {
	if s.IndexWatcher == nil {
		return ok(struct{}{})
	}
	if err := s.IndexWatcher.Stop(); err != nil {
		return fail[struct{}](toolMemoryIndexWatch, memerr.New(memerr.E024DBReadFailed, err.Error(), true, "retry", nil))
	}
	s.IndexWatcher = nil
	return ok(struct{}{})
}

func (s *Surface) MemoryGetLearningHistoryDescribe() (string, int) {
	return describe(toolMemoryGetLearningHistory, "Traces a memory's supersede/contradict lineage end to end, the full evolution of one piece of knowledge.")
}

// MemoryGetLearningHistory walks both directions of the causal graph from
// id, restricted to supersedes and contradicts edges, the trail of how a
// piece of knowledge changed over time rather than memory_drift_why's
// single-hop-focused incoming view.
func (s *Surface) MemoryGetLearningHistory(ctx context.Context, id int64, maxDepth int) Envelope[store.ChainResult] {
	if _, found, err := s.Engine.Index.Get(ctx, id); err != nil {
		return fail[store.ChainResult](toolMemoryGetLearningHistory, memerr.New(memerr.E024DBReadFailed, err.Error(), true, "retry", nil))
	} else if !found {
		return fail[store.ChainResult](toolMemoryGetLearningHistory, memerr.New(memerr.E080MemoryNotFound, "memory not found", true, "memory_list()", map[string]any{"memory_id": id}))
	}

	chain := s.Engine.Causal.GetCausalChain(id, store.ChainOptions{
		Direction: store.DirectionBoth,
		Relations: []model.CausalRelation{model.RelationSupersedes, model.RelationContradicts},
		MaxDepth:  maxDepth,
	})
	return ok(chain)
}
