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
	"time"

	"github.com/aleutian-labs/speckit-memory/internal/checkpoint"
	"github.com/aleutian-labs/speckit-memory/internal/memerr"
)

const (
	toolCheckpointCreate  = "checkpoint_create"
	toolCheckpointList    = "checkpoint_list"
	toolCheckpointRestore = "checkpoint_restore"
	toolCheckpointDelete  = "checkpoint_delete"
)

func (s *Surface) CheckpointCreateDescribe() (string, int) {
	return describe(toolCheckpointCreate, "Snapshots the relational store and, on a local vector backend, the vector store, under a label.")
}

// CheckpointCreate snapshots the live store via a SQLite VACUUM INTO plus,
// when the vector backend is local, a BadgerDB streaming backup.
func (s *Surface) CheckpointCreate(ctx context.Context, label string) Envelope[checkpoint.Checkpoint] {
	cp, err := s.Engine.CreateCheckpoint(ctx, s.Checkpoint, label, time.Now())
	if err != nil {
		return fail[checkpoint.Checkpoint](toolCheckpointCreate, memerr.New(memerr.E061CheckpointCreateFailed, err.Error(), true, "check disk space, retry", nil))
	}
	return ok(cp)
}

func (s *Surface) CheckpointListDescribe() (string, int) {
	return describe(toolCheckpointList, "Lists every checkpoint on disk, newest first.")
}

func (s *Surface) CheckpointList() Envelope[[]checkpoint.Checkpoint] {
	cps, err := s.Checkpoint.List()
	if err != nil {
		return fail[[]checkpoint.Checkpoint](toolCheckpointList, memerr.New(memerr.E024DBReadFailed, err.Error(), true, "retry", nil))
	}
	return ok(cps)
}

func (s *Surface) CheckpointRestoreDescribe() (string, int) {
	return describe(toolCheckpointRestore, "Restores the store from a checkpoint id, reopening every store handle in place. Not safe to call concurrently with search or save.")
}

// CheckpointRestore overwrites the live data directory from id and reopens
// every engine store handle against the restored files.
func (s *Surface) CheckpointRestore(ctx context.Context, id string) Envelope[struct{}] {
	if id == "" {
		return fail[struct{}](toolCheckpointRestore, memerr.New(memerr.E030MissingParameter, "id must not be empty", true, "supply a checkpoint id from checkpoint_list()", nil))
	}
	if _, found, err := s.Checkpoint.Get(id); err != nil || !found {
		return fail[struct{}](toolCheckpointRestore, memerr.New(memerr.E060CheckpointNotFound, "no checkpoint with that id", true, "checkpoint_list()", map[string]any{"checkpoint_id": id}))
	}
	if err := s.Engine.RestoreCheckpoint(ctx, s.Checkpoint, id); err != nil {
		return fail[struct{}](toolCheckpointRestore, memerr.New(memerr.E062CheckpointRestoreFailed, err.Error(), true, "checkpoint_list(), retry restore", map[string]any{"checkpoint_id": id}))
	}
	return ok(struct{}{})
}

func (s *Surface) CheckpointDeleteDescribe() (string, int) {
	return describe(toolCheckpointDelete, "Deletes a checkpoint's files from disk.")
}

func (s *Surface) CheckpointDelete(id string) Envelope[struct{}] {
	if id == "" {
		return fail[struct{}](toolCheckpointDelete, memerr.New(memerr.E030MissingParameter, "id must not be empty", true, "supply a checkpoint id from checkpoint_list()", nil))
	}
	if err := s.Checkpoint.Delete(id); err != nil {
		return fail[struct{}](toolCheckpointDelete, memerr.New(memerr.E063CheckpointDeleteFailed, err.Error(), true, "retry", map[string]any{"checkpoint_id": id}))
	}
	return ok(struct{}{})
}
