// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aleutian-labs/speckit-memory/internal/model"
)

func newTestStore(t *testing.T) *MemoryIndexStore {
	t.Helper()
	dsn := "file:" + t.Name() + "?mode=memory&cache=shared"
	s, err := Open(context.Background(), dsn)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCreate_AssignsID(t *testing.T) {
	s := newTestStore(t)
	m, err := s.Create(context.Background(), model.Memory{
		SpecFolder: "001-auth", FilePath: "001-auth/notes.md", Title: "Auth notes",
		ContentHash: "deadbeef", FileMtimeMs: 1000,
	})
	require.NoError(t, err)
	assert.NotZero(t, m.ID)
	assert.Equal(t, model.TierNormal, m.ImportanceTier)
	assert.Equal(t, model.EmbeddingPending, m.Status)
}

func TestCreate_RejectsDuplicateFilePath(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, err := s.Create(ctx, model.Memory{SpecFolder: "x", FilePath: "dup.md", ContentHash: "a", FileMtimeMs: 1})
	require.NoError(t, err)
	_, err = s.Create(ctx, model.Memory{SpecFolder: "x", FilePath: "dup.md", ContentHash: "b", FileMtimeMs: 2})
	assert.Error(t, err)
}

func TestGet_MissingReturnsFalseNotError(t *testing.T) {
	s := newTestStore(t)
	_, found, err := s.Get(context.Background(), 9999)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestGetByPath_RoundTrips(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	created, err := s.Create(ctx, model.Memory{SpecFolder: "x", FilePath: "a/b.md", Title: "T", ContentHash: "h", FileMtimeMs: 5})
	require.NoError(t, err)

	got, found, err := s.GetByPath(ctx, "a/b.md")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, "T", got.Title)
}

func TestUpdate_BumpsUpdatedAt(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	m, err := s.Create(ctx, model.Memory{SpecFolder: "x", FilePath: "u.md", ContentHash: "h", FileMtimeMs: 1})
	require.NoError(t, err)

	m.Title = "Updated"
	require.NoError(t, s.Update(ctx, m))

	got, _, err := s.Get(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, "Updated", got.Title)
}

func TestSetArchivalState_PersistsStateAndTimestamp(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	m, err := s.Create(ctx, model.Memory{SpecFolder: "x", FilePath: "arc.md", ContentHash: "h", FileMtimeMs: 1})
	require.NoError(t, err)

	now := time.Now()
	require.NoError(t, s.SetArchivalState(ctx, m.ID, model.ArchivalArchived, &now))

	got, _, err := s.Get(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ArchivalArchived, got.IsArchived)
	require.NotNil(t, got.ArchivedAt)
}

func TestArchivalCandidates_ExcludesProtectedTiers(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	old := time.Now().Add(-100 * 24 * time.Hour)

	normal, err := s.Create(ctx, model.Memory{SpecFolder: "x", FilePath: "n.md", ContentHash: "h", FileMtimeMs: 1, LastAccessed: old})
	require.NoError(t, err)
	critical, err := s.Create(ctx, model.Memory{SpecFolder: "x", FilePath: "c.md", ContentHash: "h", FileMtimeMs: 1, LastAccessed: old, ImportanceTier: model.TierCritical})
	require.NoError(t, err)

	candidates, err := s.ArchivalCandidates(ctx, time.Now().Add(-90*24*time.Hour), 10)
	require.NoError(t, err)

	ids := map[int64]bool{}
	for _, c := range candidates {
		ids[c.ID] = true
	}
	assert.True(t, ids[normal.ID])
	assert.False(t, ids[critical.ID])
}

func TestStatusStats_TalliesByEmbeddingStatus(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, err := s.Create(ctx, model.Memory{SpecFolder: "x", FilePath: "s1.md", ContentHash: "h", FileMtimeMs: 1, Status: model.EmbeddingSuccess})
	require.NoError(t, err)
	_, err = s.Create(ctx, model.Memory{SpecFolder: "x", FilePath: "s2.md", ContentHash: "h", FileMtimeMs: 1, Status: model.EmbeddingFailed})
	require.NoError(t, err)

	stats, err := s.StatusStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 1, stats.Success)
	assert.Equal(t, 1, stats.Failed)
}
