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
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aleutian-labs/speckit-memory/internal/model"
	"github.com/aleutian-labs/speckit-memory/internal/store"
)

func newTestIndex(t *testing.T) *store.MemoryIndexStore {
	t.Helper()
	idx, err := store.Open(context.Background(), "file:"+t.Name()+"?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })
	return idx
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestGetFileMetadata_MissingFileReturnsNil(t *testing.T) {
	meta, err := GetFileMetadata(filepath.Join(t.TempDir(), "missing.md"))
	require.NoError(t, err)
	assert.Nil(t, meta)
}

func TestGetFileMetadata_HashIsStableForIdenticalContent(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.md", "same content")
	b := writeFile(t, dir, "b.md", "same content")

	metaA, err := GetFileMetadata(a)
	require.NoError(t, err)
	metaB, err := GetFileMetadata(b)
	require.NoError(t, err)

	assert.Equal(t, metaA.ContentHash, metaB.ContentHash)
}

func TestShouldReindex_NewFile(t *testing.T) {
	idx := newTestIndex(t)
	dir := t.TempDir()
	path := writeFile(t, dir, "note.md", "hello")

	d, err := ShouldReindex(context.Background(), idx, path, false)
	require.NoError(t, err)
	assert.True(t, d.ShouldIndex)
	assert.Equal(t, ReasonNewFile, d.Reason)
}

func TestShouldReindex_FileNotFound(t *testing.T) {
	idx := newTestIndex(t)
	d, err := ShouldReindex(context.Background(), idx, filepath.Join(t.TempDir(), "gone.md"), false)
	require.NoError(t, err)
	assert.False(t, d.ShouldIndex)
	assert.Equal(t, ReasonFileNotFound, d.Reason)
	assert.Error(t, d.Err)
}

func TestShouldReindex_ForceRequested(t *testing.T) {
	idx := newTestIndex(t)
	dir := t.TempDir()
	path := writeFile(t, dir, "note.md", "hello")
	meta, err := GetFileMetadata(path)
	require.NoError(t, err)

	created, err := idx.Create(context.Background(), model.Memory{
		SpecFolder: "demo", FilePath: path, ContentHash: meta.ContentHash, FileMtimeMs: meta.MtimeMs, Status: model.EmbeddingSuccess,
	})
	require.NoError(t, err)

	d, err := ShouldReindex(context.Background(), idx, path, true)
	require.NoError(t, err)
	assert.True(t, d.ShouldIndex)
	assert.Equal(t, ReasonForceRequested, d.Reason)
	assert.Equal(t, created.ID, d.ExistingID)
}

func TestShouldReindex_MtimeUnchangedIsFastPath(t *testing.T) {
	idx := newTestIndex(t)
	dir := t.TempDir()
	path := writeFile(t, dir, "note.md", "hello")
	meta, err := GetFileMetadata(path)
	require.NoError(t, err)

	_, err = idx.Create(context.Background(), model.Memory{
		SpecFolder: "demo", FilePath: path, ContentHash: meta.ContentHash, FileMtimeMs: meta.MtimeMs, Status: model.EmbeddingSuccess,
	})
	require.NoError(t, err)

	d, err := ShouldReindex(context.Background(), idx, path, false)
	require.NoError(t, err)
	assert.False(t, d.ShouldIndex)
	assert.Equal(t, ReasonMtimeUnchanged, d.Reason)
	assert.True(t, d.FastPath)
}

func TestShouldReindex_ContentUnchangedButMtimeDrifted(t *testing.T) {
	idx := newTestIndex(t)
	dir := t.TempDir()
	path := writeFile(t, dir, "note.md", "hello")
	meta, err := GetFileMetadata(path)
	require.NoError(t, err)

	_, err = idx.Create(context.Background(), model.Memory{
		SpecFolder: "demo", FilePath: path, ContentHash: meta.ContentHash, FileMtimeMs: meta.MtimeMs - 5000, Status: model.EmbeddingSuccess,
	})
	require.NoError(t, err)

	d, err := ShouldReindex(context.Background(), idx, path, false)
	require.NoError(t, err)
	assert.False(t, d.ShouldIndex)
	assert.Equal(t, ReasonContentUnchanged, d.Reason)
	assert.Equal(t, meta.MtimeMs, d.UpdateMtimeTo)
}

func TestShouldReindex_ContentChanged(t *testing.T) {
	idx := newTestIndex(t)
	dir := t.TempDir()
	path := writeFile(t, dir, "note.md", "hello")
	meta, err := GetFileMetadata(path)
	require.NoError(t, err)

	_, err = idx.Create(context.Background(), model.Memory{
		SpecFolder: "demo", FilePath: path, ContentHash: "stale-hash", FileMtimeMs: meta.MtimeMs - 5000, Status: model.EmbeddingSuccess,
	})
	require.NoError(t, err)

	d, err := ShouldReindex(context.Background(), idx, path, false)
	require.NoError(t, err)
	assert.True(t, d.ShouldIndex)
	assert.Equal(t, ReasonContentChanged, d.Reason)
	assert.Equal(t, "stale-hash", d.OldHash)
	assert.Equal(t, meta.ContentHash, d.NewHash)
}

func TestShouldReindex_EmbeddingPendingAlwaysReindexes(t *testing.T) {
	idx := newTestIndex(t)
	dir := t.TempDir()
	path := writeFile(t, dir, "note.md", "hello")
	meta, err := GetFileMetadata(path)
	require.NoError(t, err)

	_, err = idx.Create(context.Background(), model.Memory{
		SpecFolder: "demo", FilePath: path, ContentHash: meta.ContentHash, FileMtimeMs: meta.MtimeMs, Status: model.EmbeddingPending,
	})
	require.NoError(t, err)

	d, err := ShouldReindex(context.Background(), idx, path, false)
	require.NoError(t, err)
	assert.True(t, d.ShouldIndex)
	assert.Equal(t, ReasonEmbeddingPending, d.Reason)
}

func TestCategorizeFilesForIndexing_PartitionsByDecision(t *testing.T) {
	idx := newTestIndex(t)
	dir := t.TempDir()

	newPath := writeFile(t, dir, "new.md", "brand new")
	missingPath := filepath.Join(dir, "missing.md")

	unchangedPath := writeFile(t, dir, "unchanged.md", "steady")
	unchangedMeta, err := GetFileMetadata(unchangedPath)
	require.NoError(t, err)
	_, err = idx.Create(context.Background(), model.Memory{
		SpecFolder: "demo", FilePath: unchangedPath, ContentHash: unchangedMeta.ContentHash, FileMtimeMs: unchangedMeta.MtimeMs, Status: model.EmbeddingSuccess,
	})
	require.NoError(t, err)

	result, err := CategorizeFilesForIndexing(context.Background(), idx, []string{newPath, missingPath, unchangedPath}, false)
	require.NoError(t, err)

	assert.Equal(t, 3, result.Stats.Total)
	assert.Contains(t, result.NeedsIndexing, newPath)
	assert.Contains(t, result.NotFound, missingPath)
	assert.Contains(t, result.Unchanged, unchangedPath)
	assert.Equal(t, 1, result.Stats.FastPathSkips)
}

func TestBatchUpdateMtimes_AppliesEveryUpdate(t *testing.T) {
	idx := newTestIndex(t)
	dir := t.TempDir()
	path := writeFile(t, dir, "note.md", "hello")

	created, err := idx.Create(context.Background(), model.Memory{SpecFolder: "demo", FilePath: path, Status: model.EmbeddingSuccess})
	require.NoError(t, err)

	newMtime := time.Now().UnixMilli()
	count, err := BatchUpdateMtimes(context.Background(), idx, []MtimeUpdate{{MemoryID: created.ID, MtimeMs: newMtime}})
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	reloaded, found, err := idx.Get(context.Background(), created.ID)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, newMtime, reloaded.FileMtimeMs)
}
