// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package archival

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aleutian-labs/speckit-memory/internal/model"
	"github.com/aleutian-labs/speckit-memory/internal/store"

	"github.com/stretchr/testify/assert"
)

func newTestIndex(t *testing.T) *store.MemoryIndexStore {
	t.Helper()
	idx, err := store.Open(context.Background(), "file:"+t.Name()+"?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { idx.Close() })
	return idx
}

func seedMemory(t *testing.T, idx *store.MemoryIndexStore, path string, tier model.ImportanceTier, lastAccessed time.Time) int64 {
	t.Helper()
	m, err := idx.Create(context.Background(), model.Memory{
		SpecFolder: "demo", FilePath: path, ContentHash: "h", ImportanceTier: tier, LastAccessed: lastAccessed,
	})
	require.NoError(t, err)
	return m.ID
}

func TestArchiveMemory_MarkSetsArchivedState(t *testing.T) {
	idx := newTestIndex(t)
	id := seedMemory(t, idx, "a.md", model.TierNormal, time.Now().Add(-48*time.Hour))
	mgr := NewManager(idx, nil)

	require.NoError(t, mgr.ArchiveMemory(context.Background(), id, ActionMark))

	mem, found, err := idx.Get(context.Background(), id)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, model.ArchivalArchived, mem.IsArchived)
	assert.Equal(t, 1, mgr.GetStats().Archived)
}

func TestArchiveMemory_SoftDeleteSetsState(t *testing.T) {
	idx := newTestIndex(t)
	id := seedMemory(t, idx, "a.md", model.TierNormal, time.Now())
	mgr := NewManager(idx, nil)

	require.NoError(t, mgr.ArchiveMemory(context.Background(), id, ActionSoftDelete))

	mem, _, err := idx.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, model.ArchivalSoftDeleted, mem.IsArchived)
}

func TestArchiveMemory_LogOnlyLeavesStateUnchanged(t *testing.T) {
	idx := newTestIndex(t)
	id := seedMemory(t, idx, "a.md", model.TierNormal, time.Now())
	mgr := NewManager(idx, nil)

	require.NoError(t, mgr.ArchiveMemory(context.Background(), id, ActionLogOnly))

	mem, _, err := idx.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, model.ArchivalActive, mem.IsArchived)
	assert.Equal(t, 1, mgr.GetStats().LogOnly)
}

func TestArchiveMemory_ProtectedTierRefuses(t *testing.T) {
	idx := newTestIndex(t)
	id := seedMemory(t, idx, "a.md", model.TierCritical, time.Now().Add(-1000*time.Hour))
	mgr := NewManager(idx, nil)

	err := mgr.ArchiveMemory(context.Background(), id, ActionMark)
	require.Error(t, err)
}

func TestArchiveMemory_NotFoundErrors(t *testing.T) {
	idx := newTestIndex(t)
	mgr := NewManager(idx, nil)
	err := mgr.ArchiveMemory(context.Background(), 999, ActionMark)
	require.Error(t, err)
}

func TestUnarchiveMemory_RestoresActiveState(t *testing.T) {
	idx := newTestIndex(t)
	id := seedMemory(t, idx, "a.md", model.TierNormal, time.Now().Add(-48*time.Hour))
	mgr := NewManager(idx, nil)
	require.NoError(t, mgr.ArchiveMemory(context.Background(), id, ActionMark))

	require.NoError(t, mgr.UnarchiveMemory(context.Background(), id))

	mem, _, err := idx.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, model.ArchivalActive, mem.IsArchived)
}

func TestArchiveBatch_PartialFailureDoesNotAbort(t *testing.T) {
	idx := newTestIndex(t)
	okID := seedMemory(t, idx, "a.md", model.TierNormal, time.Now().Add(-48*time.Hour))
	protectedID := seedMemory(t, idx, "b.md", model.TierCritical, time.Now().Add(-48*time.Hour))
	mgr := NewManager(idx, nil)

	result := mgr.ArchiveBatch(context.Background(), []int64{okID, protectedID, 9999}, ActionMark)
	assert.Equal(t, 3, result.Total)
	assert.Equal(t, 1, result.Succeeded)
	assert.Equal(t, 2, result.Failed)
}

func TestRunArchivalScan_ArchivesOldCandidates(t *testing.T) {
	idx := newTestIndex(t)
	oldID := seedMemory(t, idx, "old.md", model.TierNormal, time.Now().Add(-60*24*time.Hour))
	freshID := seedMemory(t, idx, "fresh.md", model.TierNormal, time.Now())
	mgr := NewManager(idx, nil)

	result, err := mgr.RunArchivalScan(context.Background(), 30*24*time.Hour, 10, ActionMark)
	require.NoError(t, err)
	assert.Equal(t, 1, result.CandidateCount)
	assert.Equal(t, 1, result.Batch.Succeeded)

	oldMem, _, err := idx.Get(context.Background(), oldID)
	require.NoError(t, err)
	assert.Equal(t, model.ArchivalArchived, oldMem.IsArchived)

	freshMem, _, err := idx.Get(context.Background(), freshID)
	require.NoError(t, err)
	assert.Equal(t, model.ArchivalActive, freshMem.IsArchived)
}

func TestCheckMemoryArchivalStatus_Reasons(t *testing.T) {
	idx := newTestIndex(t)
	mgr := NewManager(idx, nil)

	protectedID := seedMemory(t, idx, "p.md", model.TierCritical, time.Now().Add(-1000*time.Hour))
	status, err := mgr.CheckMemoryArchivalStatus(context.Background(), protectedID, 30*24*time.Hour)
	require.NoError(t, err)
	assert.False(t, status.IsCandidate)
	assert.Equal(t, "Protected tier", status.Reason)

	status, err = mgr.CheckMemoryArchivalStatus(context.Background(), 99999, 30*24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, "Memory not found", status.Reason)

	oldID := seedMemory(t, idx, "old.md", model.TierNormal, time.Now().Add(-60*24*time.Hour))
	status, err = mgr.CheckMemoryArchivalStatus(context.Background(), oldID, 30*24*time.Hour)
	require.NoError(t, err)
	assert.True(t, status.IsCandidate)
}

func TestStartStopBackgroundJob_LifecycleAndReentry(t *testing.T) {
	idx := newTestIndex(t)
	mgr := NewManager(idx, nil)
	ctx := context.Background()

	result := mgr.StartBackgroundJob(ctx, 50, time.Hour, 10, ActionLogOnly)
	assert.True(t, result.Started)
	assert.Equal(t, 50, result.IntervalMs)
	assert.True(t, mgr.IsBackgroundJobRunning())

	again := mgr.StartBackgroundJob(ctx, 50, time.Hour, 10, ActionLogOnly)
	assert.False(t, again.Started)
	assert.Equal(t, "Already running", again.Reason)

	mgr.StopBackgroundJob()
	assert.False(t, mgr.IsBackgroundJobRunning())
}

func TestResetStats_ZeroesCounters(t *testing.T) {
	idx := newTestIndex(t)
	id := seedMemory(t, idx, "a.md", model.TierNormal, time.Now())
	mgr := NewManager(idx, nil)
	require.NoError(t, mgr.ArchiveMemory(context.Background(), id, ActionLogOnly))
	assert.Equal(t, 1, mgr.GetStats().LogOnly)

	mgr.ResetStats()
	assert.Equal(t, Stats{}, mgr.GetStats())
}
