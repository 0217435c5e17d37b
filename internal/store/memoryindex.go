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
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/aleutian-labs/speckit-memory/internal/model"
)

// MemoryIndexStore is the relational single source of truth for memory
// rows, backed by modernc.org/sqlite.
type MemoryIndexStore struct {
	db *sql.DB
}

// Open applies CoreSchema to dsn and returns a ready MemoryIndexStore.
// dsn is a modernc.org/sqlite data source, e.g. "file:memory.db" or
// "file::memory:?cache=shared" for an ephemeral in-process store.
func Open(ctx context.Context, dsn string) (*MemoryIndexStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite store: %w", err)
	}
	db.SetMaxOpenConns(1) // sqlite is single-writer; serialize at the connection pool
	if _, err := db.ExecContext(ctx, CoreSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying core schema: %w", err)
	}
	return &MemoryIndexStore{db: db}, nil
}

// Close releases the underlying database handle.
func (s *MemoryIndexStore) Close() error { return s.db.Close() }

// DB returns the underlying database handle, for components (working
// memory, archival) that share the same schema and connection pool.
func (s *MemoryIndexStore) DB() *sql.DB { return s.db }

// Create inserts a new memory row and returns it with its assigned id.
func (s *MemoryIndexStore) Create(ctx context.Context, m model.Memory) (model.Memory, error) {
	now := time.Now()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	if m.UpdatedAt.IsZero() {
		m.UpdatedAt = now
	}
	if m.LastAccessed.IsZero() {
		m.LastAccessed = now
	}
	if m.ImportanceTier == "" {
		m.ImportanceTier = model.TierNormal
	}
	if m.Status == "" {
		m.Status = model.EmbeddingPending
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO memory_index (
			spec_folder, file_path, title, importance_tier, importance_weight,
			content_hash, file_mtime_ms, embedding_status, anchor_id,
			created_at, updated_at, last_accessed
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, m.SpecFolder, m.FilePath, m.Title, string(m.ImportanceTier), m.ImportanceWt,
		m.ContentHash, m.FileMtimeMs, string(m.Status), nullIfEmpty(m.AnchorID),
		m.CreatedAt, m.UpdatedAt, m.LastAccessed)
	if err != nil {
		return model.Memory{}, fmt.Errorf("inserting memory_index row: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.Memory{}, fmt.Errorf("reading inserted memory id: %w", err)
	}
	m.ID = id
	return m, nil
}

// Get returns the memory with the given id, or (false) if it doesn't exist.
func (s *MemoryIndexStore) Get(ctx context.Context, id int64) (model.Memory, bool, error) {
	row := s.db.QueryRowContext(ctx, memorySelectColumns+` WHERE id = ?`, id)
	m, err := scanMemory(row)
	if err == sql.ErrNoRows {
		return model.Memory{}, false, nil
	}
	if err != nil {
		return model.Memory{}, false, fmt.Errorf("scanning memory_index row: %w", err)
	}
	return m, true, nil
}

// GetByPath returns the memory with the given file_path, or (false) if it doesn't exist.
func (s *MemoryIndexStore) GetByPath(ctx context.Context, filePath string) (model.Memory, bool, error) {
	row := s.db.QueryRowContext(ctx, memorySelectColumns+` WHERE file_path = ?`, filePath)
	m, err := scanMemory(row)
	if err == sql.ErrNoRows {
		return model.Memory{}, false, nil
	}
	if err != nil {
		return model.Memory{}, false, fmt.Errorf("scanning memory_index row: %w", err)
	}
	return m, true, nil
}

// GetByContentHash returns the id and path of the first non-deleted memory
// with the given content hash, satisfying preflight's exact-duplicate check.
func (s *MemoryIndexStore) GetByContentHash(ctx context.Context, hash string) (int64, string, bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, file_path FROM memory_index WHERE content_hash = ? AND is_archived != 2 LIMIT 1`, hash)
	var id int64
	var path string
	err := row.Scan(&id, &path)
	if err == sql.ErrNoRows {
		return 0, "", false, nil
	}
	if err != nil {
		return 0, "", false, fmt.Errorf("looking up content hash: %w", err)
	}
	return id, path, true, nil
}

// Update persists every mutable field of m, bumping updated_at.
func (s *MemoryIndexStore) Update(ctx context.Context, m model.Memory) error {
	m.UpdatedAt = time.Now()
	_, err := s.db.ExecContext(ctx, `
		UPDATE memory_index SET
			title = ?, importance_tier = ?, importance_weight = ?,
			content_hash = ?, file_mtime_ms = ?, embedding_status = ?,
			anchor_id = ?, updated_at = ?
		WHERE id = ?
	`, m.Title, string(m.ImportanceTier), m.ImportanceWt, m.ContentHash, m.FileMtimeMs,
		string(m.Status), nullIfEmpty(m.AnchorID), m.UpdatedAt, m.ID)
	if err != nil {
		return fmt.Errorf("updating memory_index row %d: %w", m.ID, err)
	}
	return nil
}

// TouchAccess bumps last_accessed to now, used by every successful recall.
func (s *MemoryIndexStore) TouchAccess(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `UPDATE memory_index SET last_accessed = ? WHERE id = ?`, time.Now(), id)
	if err != nil {
		return fmt.Errorf("touching last_accessed for memory %d: %w", id, err)
	}
	return nil
}

// UpdateMtime sets file_mtime_ms without touching content_hash or embedding_status.
func (s *MemoryIndexStore) UpdateMtime(ctx context.Context, id int64, mtimeMs int64) error {
	_, err := s.db.ExecContext(ctx, `UPDATE memory_index SET file_mtime_ms = ?, updated_at = ? WHERE id = ?`, mtimeMs, time.Now(), id)
	if err != nil {
		return fmt.Errorf("updating mtime for memory %d: %w", id, err)
	}
	return nil
}

// Delete removes a memory row outright (the only path to physical deletion).
func (s *MemoryIndexStore) Delete(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM memory_index WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting memory %d: %w", id, err)
	}
	return nil
}

// SetArchivalState sets is_archived and archived_at for the archival manager.
func (s *MemoryIndexStore) SetArchivalState(ctx context.Context, id int64, state model.ArchivalState, archivedAt *time.Time) error {
	_, err := s.db.ExecContext(ctx, `UPDATE memory_index SET is_archived = ?, archived_at = ? WHERE id = ?`, int(state), archivedAt, id)
	if err != nil {
		return fmt.Errorf("setting archival state for memory %d: %w", id, err)
	}
	return nil
}

// ListBySpecFolder returns every non-deleted memory under a spec folder.
func (s *MemoryIndexStore) ListBySpecFolder(ctx context.Context, specFolder string) ([]model.Memory, error) {
	rows, err := s.db.QueryContext(ctx, memorySelectColumns+` WHERE spec_folder = ? AND is_archived != 2 ORDER BY id`, specFolder)
	if err != nil {
		return nil, fmt.Errorf("listing memories for spec_folder %q: %w", specFolder, err)
	}
	defer rows.Close()
	return scanMemories(rows)
}

// ListAll returns every non-soft-deleted memory, oldest first. Used to
// rebuild the in-memory lexical index at startup.
func (s *MemoryIndexStore) ListAll(ctx context.Context) ([]model.Memory, error) {
	rows, err := s.db.QueryContext(ctx, memorySelectColumns+` WHERE is_archived != 2 ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("listing all memories: %w", err)
	}
	defer rows.Close()
	return scanMemories(rows)
}

// ArchivalCandidates returns non-archived, non-protected memories whose
// last_accessed is older than cutoff, oldest first, up to limit rows.
func (s *MemoryIndexStore) ArchivalCandidates(ctx context.Context, cutoff time.Time, limit int) ([]model.Memory, error) {
	rows, err := s.db.QueryContext(ctx, memorySelectColumns+`
		WHERE is_archived = 0
		  AND importance_tier NOT IN ('constitutional', 'critical')
		  AND last_accessed < ?
		ORDER BY last_accessed ASC
		LIMIT ?
	`, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("querying archival candidates: %w", err)
	}
	defer rows.Close()
	return scanMemories(rows)
}

// Stats is the {total, success, pending, failed} embedding-status tally.
type Stats struct {
	Total   int
	Success int
	Pending int
	Failed  int
}

// StatusStats tallies memory_index rows by embedding_status.
func (s *MemoryIndexStore) StatusStats(ctx context.Context) (Stats, error) {
	var st Stats
	row := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			SUM(CASE WHEN embedding_status = 'success' THEN 1 ELSE 0 END),
			SUM(CASE WHEN embedding_status = 'pending' THEN 1 ELSE 0 END),
			SUM(CASE WHEN embedding_status = 'failed' THEN 1 ELSE 0 END)
		FROM memory_index
	`)
	var success, pending, failed sql.NullInt64
	if err := row.Scan(&st.Total, &success, &pending, &failed); err != nil {
		return Stats{}, fmt.Errorf("computing status stats: %w", err)
	}
	st.Success, st.Pending, st.Failed = int(success.Int64), int(pending.Int64), int(failed.Int64)
	return st, nil
}

const memorySelectColumns = `
	SELECT id, spec_folder, file_path, title, importance_tier, importance_weight,
	       content_hash, file_mtime_ms, embedding_status, COALESCE(anchor_id, ''),
	       created_at, updated_at, last_accessed, is_archived, archived_at
	FROM memory_index
`

type scanner interface {
	Scan(dest ...any) error
}

func scanMemory(row scanner) (model.Memory, error) {
	var m model.Memory
	var tier, status string
	var archived int
	var archivedAt sql.NullTime
	err := row.Scan(&m.ID, &m.SpecFolder, &m.FilePath, &m.Title, &tier, &m.ImportanceWt,
		&m.ContentHash, &m.FileMtimeMs, &status, &m.AnchorID,
		&m.CreatedAt, &m.UpdatedAt, &m.LastAccessed, &archived, &archivedAt)
	if err != nil {
		return model.Memory{}, err
	}
	m.ImportanceTier = model.ImportanceTier(tier)
	m.Status = model.EmbeddingStatus(status)
	m.IsArchived = model.ArchivalState(archived)
	if archivedAt.Valid {
		t := archivedAt.Time
		m.ArchivedAt = &t
	}
	return m, nil
}

func scanMemories(rows *sql.Rows) ([]model.Memory, error) {
	var out []model.Memory
	for rows.Next() {
		m, err := scanMemory(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning memory row: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
