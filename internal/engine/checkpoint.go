// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/aleutian-labs/speckit-memory/internal/checkpoint"
	"github.com/aleutian-labs/speckit-memory/internal/store"
	"github.com/aleutian-labs/speckit-memory/internal/workingmem"
)

// localVectorBackup returns e.Vector as a checkpoint.LocalVectorBackup when
// the configured backend is the local BadgerDB store, or (nil, false) for
// a remote (Weaviate) backend, which has nothing to snapshot locally.
func (e *Engine) localVectorBackup() (checkpoint.LocalVectorBackup, bool) {
	local, ok := e.Vector.(*store.LocalVectorStore)
	return local, ok
}

// CreateCheckpoint snapshots the live relational store and, when the
// backend is local, the vector store, via mgr.
func (e *Engine) CreateCheckpoint(ctx context.Context, mgr *checkpoint.Manager, label string, now time.Time) (checkpoint.Checkpoint, error) {
	vec, _ := e.localVectorBackup()
	return mgr.Create(ctx, e.Index.DB(), vec, label, now)
}

// RestoreCheckpoint overwrites the live data directory from checkpoint id
// and reopens every store handle against the restored files in place, so
// callers keep using the same *Engine afterward. It is not safe to call
// concurrently with any in-flight Search or Save.
func (e *Engine) RestoreCheckpoint(ctx context.Context, mgr *checkpoint.Manager, id string) error {
	if err := e.Index.Close(); err != nil {
		return fmt.Errorf("closing memory index before restore: %w", err)
	}
	if err := e.Vector.Close(); err != nil {
		return fmt.Errorf("closing vector store before restore: %w", err)
	}

	if _, err := mgr.Restore(id); err != nil {
		return fmt.Errorf("restoring checkpoint %s: %w", id, err)
	}

	idx, err := store.Open(ctx, indexDSN(e.Config))
	if err != nil {
		return fmt.Errorf("reopening memory index after restore: %w", err)
	}
	e.Index = idx
	e.WorkingMem = workingmem.NewManager(idx.DB())

	vec, err := openVectorStore(ctx, e.Config)
	if err != nil {
		return fmt.Errorf("reopening vector store after restore: %w", err)
	}
	e.Vector = vec

	causal, err := store.LoadCausalStore(ctx, idx.DB())
	if err != nil {
		return fmt.Errorf("reloading causal edges after restore: %w", err)
	}
	e.Causal = causal

	lexical := store.NewBM25Index()
	if err := warmLexicalIndex(ctx, idx, lexical); err != nil {
		return fmt.Errorf("rewarming lexical index after restore: %w", err)
	}
	e.Lexical = lexical

	return nil
}
