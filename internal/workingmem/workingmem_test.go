// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package workingmem

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aleutian-labs/speckit-memory/internal/memerr"
	"github.com/aleutian-labs/speckit-memory/internal/model"
	"github.com/aleutian-labs/speckit-memory/internal/store"

	"github.com/stretchr/testify/assert"
)

func newTestManager(t *testing.T) (*Manager, *store.MemoryIndexStore) {
	t.Helper()
	ctx := context.Background()
	idx, err := store.Open(ctx, "file:"+t.Name()+"?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { idx.Close() })
	return NewManager(idx.DB()), idx
}

func mustSeedMemory(t *testing.T, idx *store.MemoryIndexStore, path string) int64 {
	t.Helper()
	m, err := idx.Create(context.Background(), model.Memory{SpecFolder: "demo", FilePath: path, ContentHash: "h"})
	require.NoError(t, err)
	return m.ID
}

func TestGetOrCreateSession_CreatesThenReuses(t *testing.T) {
	mgr, _ := newTestManager(t)
	ctx := context.Background()

	s1, created1, err := mgr.GetOrCreateSession(ctx, "sess-1")
	require.NoError(t, err)
	assert.True(t, created1)

	s2, created2, err := mgr.GetOrCreateSession(ctx, "sess-1")
	require.NoError(t, err)
	assert.False(t, created2)
	assert.Equal(t, s1.SessionID, s2.SessionID)
}

func TestGetOrCreateSession_EmptyIDFails(t *testing.T) {
	mgr, _ := newTestManager(t)
	_, _, err := mgr.GetOrCreateSession(context.Background(), "")
	require.Error(t, err)
	var merr *memerr.Error
	require.ErrorAs(t, err, &merr)
	assert.Equal(t, memerr.E072SessionInvalid, merr.Code)
}

func TestClearSession_RemovesWorkingMemoryRows(t *testing.T) {
	mgr, idx := newTestManager(t)
	ctx := context.Background()
	memID := mustSeedMemory(t, idx, "a.md")

	_, err := mgr.SetAttentionScore(ctx, "sess-1", memID, 0.5, 1)
	require.NoError(t, err)

	require.NoError(t, mgr.ClearSession(ctx, "sess-1"))

	_, found, err := mgr.GetWorkingMemory(ctx, "sess-1", memID)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestCleanupOldSessions_RemovesSessionsOlderThanCutoff(t *testing.T) {
	mgr, _ := newTestManager(t)
	ctx := context.Background()
	_, _, err := mgr.GetOrCreateSession(ctx, "old")
	require.NoError(t, err)
	_, _, err = mgr.GetOrCreateSession(ctx, "fresh")
	require.NoError(t, err)

	n, err := mgr.CleanupOldSessions(ctx, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestSetAttentionScore_ComputesTierAndUpserts(t *testing.T) {
	mgr, idx := newTestManager(t)
	ctx := context.Background()
	memID := mustSeedMemory(t, idx, "a.md")

	entry, err := mgr.SetAttentionScore(ctx, "sess-1", memID, 0.9, 1)
	require.NoError(t, err)
	assert.Equal(t, model.TierHot, entry.Tier)

	entry2, err := mgr.SetAttentionScore(ctx, "sess-1", memID, 0.1, 2)
	require.NoError(t, err)
	assert.Equal(t, model.TierCold, entry2.Tier)

	got, found, err := mgr.GetWorkingMemory(ctx, "sess-1", memID)
	require.NoError(t, err)
	require.True(t, found)
	assert.InDelta(t, 0.1, got.AttentionScore, 1e-9)
	assert.Equal(t, 2, got.LastTurn)
}

func TestSetAttentionScore_RejectsScoreOutOfRange(t *testing.T) {
	mgr, idx := newTestManager(t)
	ctx := context.Background()
	memID := mustSeedMemory(t, idx, "a.md")

	_, err := mgr.SetAttentionScore(ctx, "sess-1", memID, 1.5, 0)
	require.Error(t, err)
	var merr *memerr.Error
	require.ErrorAs(t, err, &merr)
	assert.Equal(t, memerr.E032ParameterOutOfRange, merr.Code)
}

func TestSetAttentionScore_RejectsNegativeMemoryID(t *testing.T) {
	mgr, _ := newTestManager(t)
	_, err := mgr.SetAttentionScore(context.Background(), "sess-1", -1, 0.5, 0)
	require.Error(t, err)
}

func TestSetAttentionScore_RejectsNegativeTurn(t *testing.T) {
	mgr, idx := newTestManager(t)
	memID := mustSeedMemory(t, idx, "a.md")
	_, err := mgr.SetAttentionScore(context.Background(), "sess-1", memID, 0.5, -1)
	require.Error(t, err)
}

func TestGetSessionMemories_OrderedByAttentionDescending(t *testing.T) {
	mgr, idx := newTestManager(t)
	ctx := context.Background()
	m1 := mustSeedMemory(t, idx, "a.md")
	m2 := mustSeedMemory(t, idx, "b.md")

	_, err := mgr.SetAttentionScore(ctx, "sess-1", m1, 0.3, 1)
	require.NoError(t, err)
	_, err = mgr.SetAttentionScore(ctx, "sess-1", m2, 0.9, 1)
	require.NoError(t, err)

	entries, err := mgr.GetSessionMemories(ctx, "sess-1")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, m2, entries[0].MemoryID)
}

func TestBatchUpdateScores_PartialFailureDoesNotAbortBatch(t *testing.T) {
	mgr, idx := newTestManager(t)
	ctx := context.Background()
	m1 := mustSeedMemory(t, idx, "a.md")

	result, err := mgr.BatchUpdateScores(ctx, "sess-1", []ScoreUpdate{
		{MemoryID: m1, Score: 0.5, Turn: 1},
		{MemoryID: m1, Score: 2.0, Turn: 1}, // out of range, should fail independently
	})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Total)
	assert.Equal(t, 1, result.Updated)
	assert.Equal(t, 1, result.Failed)
}

func TestBatchUpdateScores_EmptyListErrors(t *testing.T) {
	mgr, _ := newTestManager(t)
	_, err := mgr.BatchUpdateScores(context.Background(), "sess-1", nil)
	require.Error(t, err)
	var merr *memerr.Error
	require.ErrorAs(t, err, &merr)
	assert.Equal(t, memerr.E030MissingParameter, merr.Code)
}

func TestGetSessionStats_TalliesByTier(t *testing.T) {
	mgr, idx := newTestManager(t)
	ctx := context.Background()
	m1 := mustSeedMemory(t, idx, "a.md")
	m2 := mustSeedMemory(t, idx, "b.md")
	m3 := mustSeedMemory(t, idx, "c.md")

	_, err := mgr.SetAttentionScore(ctx, "sess-1", m1, 0.9, 1)
	require.NoError(t, err)
	_, err = mgr.SetAttentionScore(ctx, "sess-1", m2, 0.5, 1)
	require.NoError(t, err)
	_, err = mgr.SetAttentionScore(ctx, "sess-1", m3, 0.1, 1)
	require.NoError(t, err)

	stats, err := mgr.GetSessionStats(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 1, stats.Hot)
	assert.Equal(t, 1, stats.Warm)
	assert.Equal(t, 1, stats.Cold)
}

func TestSpreadActivation_BoostsConnectedMemoriesOncePerEdge(t *testing.T) {
	mgr, idx := newTestManager(t)
	ctx := context.Background()
	src := mustSeedMemory(t, idx, "src.md")
	dst := mustSeedMemory(t, idx, "dst.md")

	causal := store.NewCausalStore()
	_, err := causal.InsertEdge(model.CausalEdge{SourceID: src, TargetID: dst, Relation: model.RelationCaused, Strength: 0.8})
	require.NoError(t, err)

	result, err := mgr.SpreadActivation(ctx, "sess-1", causal, src, BoostOptions{Turn: 1})
	require.NoError(t, err)
	require.Len(t, result.Boosted, 1)
	assert.Equal(t, dst, result.Boosted[0].MemoryID)
	assert.InDelta(t, DefaultBoostAmount, result.Boosted[0].AttentionScore, 1e-9)
}

func TestSpreadActivation_CapsScoreAtOne(t *testing.T) {
	mgr, idx := newTestManager(t)
	ctx := context.Background()
	src := mustSeedMemory(t, idx, "src.md")
	dst := mustSeedMemory(t, idx, "dst.md")

	causal := store.NewCausalStore()
	_, err := causal.InsertEdge(model.CausalEdge{SourceID: src, TargetID: dst, Relation: model.RelationCaused, Strength: 0.8})
	require.NoError(t, err)

	_, err = mgr.SetAttentionScore(ctx, "sess-1", dst, 0.9, 1)
	require.NoError(t, err)

	result, err := mgr.SpreadActivation(ctx, "sess-1", causal, src, BoostOptions{Turn: 2})
	require.NoError(t, err)
	require.Len(t, result.Boosted, 1)
	assert.InDelta(t, 1.0, result.Boosted[0].AttentionScore, 1e-9)
}

func TestSpreadActivation_RespectsMaxRelatedMemories(t *testing.T) {
	mgr, idx := newTestManager(t)
	ctx := context.Background()
	src := mustSeedMemory(t, idx, "src.md")
	causal := store.NewCausalStore()
	for i := 0; i < 8; i++ {
		dst := mustSeedMemory(t, idx, "dst"+string(rune('a'+i))+".md")
		_, err := causal.InsertEdge(model.CausalEdge{SourceID: src, TargetID: dst, Relation: model.RelationSupports, Strength: 0.5})
		require.NoError(t, err)
	}

	result, err := mgr.SpreadActivation(ctx, "sess-1", causal, src, BoostOptions{MaxRelatedMemories: 3, Turn: 1})
	require.NoError(t, err)
	assert.Len(t, result.Boosted, 3)
}
