// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package checkpoint snapshots and restores the on-disk store: the
// relational memory index and, for the local vector backend, the
// BadgerDB vector directory. It backs the
// checkpoint_create/list/restore/delete tools, which the operator CLI's
// checkpoint create/list/restore/delete subcommands call.
package checkpoint

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"
)

const metadataFile = "metadata.json"
const sqliteSnapshotFile = "memory.db"
const vectorSnapshotFile = "vectors.badger"

// Checkpoint describes one on-disk snapshot.
type Checkpoint struct {
	ID        string    `json:"id"`
	Label     string    `json:"label"`
	CreatedAt time.Time `json:"created_at"`
	SizeBytes int64     `json:"size_bytes"`
	HasVector bool      `json:"has_vector"`
}

// Manager creates, lists, restores, and deletes checkpoints under
// <dataDir>/checkpoints.
type Manager struct {
	dataDir        string
	checkpointsDir string
}

// NewManager returns a Manager rooted at dataDir.
func NewManager(dataDir string) *Manager {
	return &Manager{dataDir: dataDir, checkpointsDir: filepath.Join(dataDir, "checkpoints")}
}

// LocalVectorBackup is satisfied by store.LocalVectorStore; kept narrow so
// this package doesn't need to import store (which would import this
// package's eventual engine consumer, were it to need checkpoint types).
type LocalVectorBackup interface {
	Backup(w io.Writer, since uint64) (uint64, error)
}

// Create snapshots db (via SQLite's VACUUM INTO, a point-in-time copy
// that doesn't require quiescing writers) and, when vec is non-nil, the
// local vector store (via BadgerDB's native incremental backup stream).
// vec is nil when the configured vector backend is remote (Weaviate),
// in which case the checkpoint covers the relational store only.
func (m *Manager) Create(ctx context.Context, db *sql.DB, vec LocalVectorBackup, label string, now time.Time) (Checkpoint, error) {
	id := now.UTC().Format("20060102T150405.000000000")
	dir := filepath.Join(m.checkpointsDir, id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Checkpoint{}, fmt.Errorf("creating checkpoint directory: %w", err)
	}

	dbPath := filepath.Join(dir, sqliteSnapshotFile)
	if _, err := db.ExecContext(ctx, "VACUUM INTO ?", dbPath); err != nil {
		os.RemoveAll(dir)
		return Checkpoint{}, fmt.Errorf("snapshotting memory index: %w", err)
	}

	cp := Checkpoint{ID: id, Label: label, CreatedAt: now}

	if vec != nil {
		vecPath := filepath.Join(dir, vectorSnapshotFile)
		f, err := os.Create(vecPath)
		if err != nil {
			os.RemoveAll(dir)
			return Checkpoint{}, fmt.Errorf("creating vector snapshot file: %w", err)
		}
		_, backupErr := vec.Backup(f, 0)
		closeErr := f.Close()
		if backupErr != nil {
			os.RemoveAll(dir)
			return Checkpoint{}, fmt.Errorf("snapshotting vector store: %w", backupErr)
		}
		if closeErr != nil {
			os.RemoveAll(dir)
			return Checkpoint{}, fmt.Errorf("closing vector snapshot file: %w", closeErr)
		}
		cp.HasVector = true
	}

	size, err := dirSize(dir)
	if err != nil {
		return Checkpoint{}, fmt.Errorf("measuring checkpoint size: %w", err)
	}
	cp.SizeBytes = size

	if err := writeMetadata(dir, cp); err != nil {
		os.RemoveAll(dir)
		return Checkpoint{}, err
	}
	return cp, nil
}

// List returns every checkpoint, newest first.
func (m *Manager) List() ([]Checkpoint, error) {
	entries, err := os.ReadDir(m.checkpointsDir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("listing checkpoints directory: %w", err)
	}

	var out []Checkpoint
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		cp, err := readMetadata(filepath.Join(m.checkpointsDir, e.Name()))
		if err != nil {
			continue // corrupt or partially-written checkpoint; skip rather than fail the listing
		}
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// Get returns one checkpoint's metadata, or (false) if id doesn't exist.
func (m *Manager) Get(id string) (Checkpoint, bool, error) {
	cp, err := readMetadata(filepath.Join(m.checkpointsDir, id))
	if os.IsNotExist(err) {
		return Checkpoint{}, false, nil
	}
	if err != nil {
		return Checkpoint{}, false, err
	}
	return cp, true, nil
}

// Delete removes a checkpoint outright.
func (m *Manager) Delete(id string) error {
	dir := filepath.Join(m.checkpointsDir, id)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return fmt.Errorf("checkpoint %s: %w", id, os.ErrNotExist)
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("deleting checkpoint %s: %w", id, err)
	}
	return nil
}

// RestorePlan is the set of file operations Restore performs, returned so
// a caller can log or confirm before the engine is quiesced and files are
// overwritten in place. Restore itself must run with every store handle
// closed: the relational db and the local vector store both hold open
// file locks that a live copy would corrupt.
type RestorePlan struct {
	CheckpointID string
	SQLiteSource string
	SQLiteDest   string
	VectorSource string // empty when the checkpoint has no vector snapshot
	VectorDest   string
}

// Plan resolves the source/destination paths Restore would use, without
// touching the filesystem.
func (m *Manager) Plan(id string) (RestorePlan, error) {
	cp, found, err := m.Get(id)
	if err != nil {
		return RestorePlan{}, err
	}
	if !found {
		return RestorePlan{}, fmt.Errorf("checkpoint %s: %w", id, os.ErrNotExist)
	}
	dir := filepath.Join(m.checkpointsDir, id)
	plan := RestorePlan{
		CheckpointID: id,
		SQLiteSource: filepath.Join(dir, sqliteSnapshotFile),
		SQLiteDest:   filepath.Join(m.dataDir, "memory.db"),
	}
	if cp.HasVector {
		plan.VectorSource = filepath.Join(dir, vectorSnapshotFile)
		plan.VectorDest = filepath.Join(m.dataDir, "vectors")
	}
	return plan, nil
}

// Restore overwrites the live data directory with a checkpoint's
// contents. Callers must close every open store handle against dataDir
// first and reopen them afterward; Restore only moves bytes.
func (m *Manager) Restore(id string) (RestorePlan, error) {
	plan, err := m.Plan(id)
	if err != nil {
		return RestorePlan{}, err
	}

	if err := copyFile(plan.SQLiteSource, plan.SQLiteDest); err != nil {
		return RestorePlan{}, fmt.Errorf("restoring memory index: %w", err)
	}
	for _, suffix := range []string{"-wal", "-shm"} {
		os.Remove(plan.SQLiteDest + suffix) // stale WAL/SHM from the pre-restore db would shadow the restored file
	}

	if plan.VectorSource != "" {
		if err := restoreVectorDir(plan.VectorSource, plan.VectorDest); err != nil {
			return RestorePlan{}, fmt.Errorf("restoring vector store: %w", err)
		}
	}
	return plan, nil
}

func restoreVectorDir(snapshotPath, destDir string) error {
	if err := os.RemoveAll(destDir); err != nil {
		return err
	}
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return err
	}
	opts := badger.DefaultOptions(destDir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return fmt.Errorf("opening fresh vector store for restore: %w", err)
	}
	defer db.Close()

	f, err := os.Open(snapshotPath)
	if err != nil {
		return err
	}
	defer f.Close()

	return db.Load(f, 256)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func dirSize(dir string) (int64, error) {
	var total int64
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			total += info.Size()
		}
		return nil
	})
	return total, err
}

func writeMetadata(dir string, cp Checkpoint) error {
	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling checkpoint metadata: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, metadataFile), data, 0o644); err != nil {
		return fmt.Errorf("writing checkpoint metadata: %w", err)
	}
	return nil
}

func readMetadata(dir string) (Checkpoint, error) {
	data, err := os.ReadFile(filepath.Join(dir, metadataFile))
	if err != nil {
		return Checkpoint{}, err
	}
	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return Checkpoint{}, fmt.Errorf("parsing checkpoint metadata: %w", err)
	}
	return cp, nil
}
