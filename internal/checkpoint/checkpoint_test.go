// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package checkpoint

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

func openTestDB(t *testing.T, path string) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", "file:"+path)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE memory_index (id INTEGER PRIMARY KEY, title TEXT)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO memory_index (title) VALUES ('alpha'), ('beta')`)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestManager_CreateAndList(t *testing.T) {
	dataDir := t.TempDir()
	db := openTestDB(t, filepath.Join(dataDir, "memory.db"))
	m := NewManager(dataDir)

	cp, err := m.Create(context.Background(), db, nil, "before-refactor", time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, "before-refactor", cp.Label)
	assert.False(t, cp.HasVector)
	assert.Greater(t, cp.SizeBytes, int64(0))

	list, err := m.List()
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, cp.ID, list[0].ID)
}

func TestManager_ListEmptyWhenNoCheckpointsDir(t *testing.T) {
	m := NewManager(t.TempDir())
	list, err := m.List()
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestManager_GetMissingReturnsFalse(t *testing.T) {
	m := NewManager(t.TempDir())
	_, found, err := m.Get("does-not-exist")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestManager_DeleteMissingReturnsError(t *testing.T) {
	m := NewManager(t.TempDir())
	err := m.Delete("does-not-exist")
	assert.Error(t, err)
}

func TestManager_CreateListDelete_RoundTrip(t *testing.T) {
	dataDir := t.TempDir()
	db := openTestDB(t, filepath.Join(dataDir, "memory.db"))
	m := NewManager(dataDir)

	cp, err := m.Create(context.Background(), db, nil, "snapshot-a", time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	got, found, err := m.Get(cp.ID)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "snapshot-a", got.Label)

	require.NoError(t, m.Delete(cp.ID))
	_, found, err = m.Get(cp.ID)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestManager_Plan_NoVectorWhenCheckpointHasNone(t *testing.T) {
	dataDir := t.TempDir()
	db := openTestDB(t, filepath.Join(dataDir, "memory.db"))
	m := NewManager(dataDir)

	cp, err := m.Create(context.Background(), db, nil, "", time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	plan, err := m.Plan(cp.ID)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dataDir, "memory.db"), plan.SQLiteDest)
	assert.Empty(t, plan.VectorSource)
}

func TestManager_Plan_MissingCheckpointErrors(t *testing.T) {
	m := NewManager(t.TempDir())
	_, err := m.Plan("nope")
	assert.Error(t, err)
}
