// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package archival moves memories that have aged out of active recall into
// an archived or soft-deleted state, either on request or on a background
// schedule, honoring the protected-tier exemption the same way the memory
// index does for retrieval.
package archival

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aleutian-labs/speckit-memory/internal/memerr"
	"github.com/aleutian-labs/speckit-memory/internal/model"
	"github.com/aleutian-labs/speckit-memory/internal/store"
)

// DefaultMaxAge is the default idle window before a memory becomes an
// archival candidate.
const DefaultMaxAge = 90 * 24 * time.Hour

// DefaultIntervalMs is the default background-job tick interval.
const DefaultIntervalMs = 60 * 60 * 1000 // 1 hour

// Action is one of the three closed dispositions for a candidate memory.
type Action string

const (
	// ActionMark moves a memory to the archived state: excluded from
	// default recall, still present for audit and unarchive.
	ActionMark Action = "mark"
	// ActionSoftDelete moves a memory to the soft-deleted state: excluded
	// from all retrieval, retained only for audit.
	ActionSoftDelete Action = "soft_delete"
	// ActionLogOnly records that a memory qualified for archival without
	// changing its state, for dry-run scans.
	ActionLogOnly Action = "log_only"
)

// Index is the subset of MemoryIndexStore archival depends on.
type Index interface {
	Get(ctx context.Context, id int64) (model.Memory, bool, error)
	ArchivalCandidates(ctx context.Context, cutoff time.Time, limit int) ([]model.Memory, error)
	SetArchivalState(ctx context.Context, id int64, state model.ArchivalState, archivedAt *time.Time) error
}

var _ Index = (*store.MemoryIndexStore)(nil)

// Stats tallies archival activity since the last reset.
type Stats struct {
	ScansRun     int
	Archived     int
	SoftDeleted  int
	LogOnly      int
	Unarchived   int
}

// Manager runs candidate scans and the background archival job.
type Manager struct {
	index  Index
	logger *slog.Logger

	mu    sync.Mutex
	stats Stats

	jobMu    sync.Mutex
	running  bool
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewManager returns a Manager over index.
func NewManager(index Index, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{index: index, logger: logger}
}

// GetArchivalCandidates returns non-protected, non-archived memories whose
// last_accessed is older than maxAge, oldest first, capped at limit.
func (m *Manager) GetArchivalCandidates(ctx context.Context, maxAge time.Duration, limit int) ([]model.Memory, error) {
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	if limit <= 0 {
		limit = 100
	}
	cutoff := time.Now().Add(-maxAge)
	candidates, err := m.index.ArchivalCandidates(ctx, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("listing archival candidates: %w", err)
	}
	return candidates, nil
}

// ArchiveMemory applies action to a single memory id.
func (m *Manager) ArchiveMemory(ctx context.Context, id int64, action Action) error {
	mem, found, err := m.index.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("looking up memory %d: %w", id, err)
	}
	if !found {
		return memerr.New(memerr.E080MemoryNotFound, fmt.Sprintf("memory %d not found", id), true, "memory_list()", map[string]any{"memory_id": id})
	}
	if mem.ImportanceTier.Protected() {
		return memerr.New(memerr.E084MemoryArchiveFailed, fmt.Sprintf("memory %d is in a protected tier", id), true, "protected-tier memories are never archived", map[string]any{"memory_id": id, "tier": mem.ImportanceTier})
	}

	switch action {
	case ActionMark:
		now := time.Now()
		if err := m.index.SetArchivalState(ctx, id, model.ArchivalArchived, &now); err != nil {
			return memerr.New(memerr.E084MemoryArchiveFailed, err.Error(), true, "retry", map[string]any{"memory_id": id})
		}
		m.recordOutcome(func(s *Stats) { s.Archived++ })
	case ActionSoftDelete:
		now := time.Now()
		if err := m.index.SetArchivalState(ctx, id, model.ArchivalSoftDeleted, &now); err != nil {
			return memerr.New(memerr.E084MemoryArchiveFailed, err.Error(), true, "retry", map[string]any{"memory_id": id})
		}
		m.recordOutcome(func(s *Stats) { s.SoftDeleted++ })
	case ActionLogOnly:
		m.logger.Info("archival candidate (log_only)", "memory_id", id, "file_path", mem.FilePath)
		m.recordOutcome(func(s *Stats) { s.LogOnly++ })
	default:
		return memerr.New(memerr.E031InvalidParameter, fmt.Sprintf("unknown archival action %q", action), true, "use mark, soft_delete, or log_only", nil)
	}
	return nil
}

// UnarchiveMemory restores a memory to the active state.
func (m *Manager) UnarchiveMemory(ctx context.Context, id int64) error {
	_, found, err := m.index.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("looking up memory %d: %w", id, err)
	}
	if !found {
		return memerr.New(memerr.E080MemoryNotFound, fmt.Sprintf("memory %d not found", id), true, "memory_list()", map[string]any{"memory_id": id})
	}
	if err := m.index.SetArchivalState(ctx, id, model.ArchivalActive, nil); err != nil {
		return memerr.New(memerr.E084MemoryArchiveFailed, err.Error(), true, "retry", map[string]any{"memory_id": id})
	}
	m.recordOutcome(func(s *Stats) { s.Unarchived++ })
	return nil
}

// BatchResult reports per-id outcome for a batch archival request.
type BatchResult struct {
	Total     int
	Succeeded int
	Failed    int
	Errors    map[int64]error
}

// ArchiveBatch applies action to every id independently.
func (m *Manager) ArchiveBatch(ctx context.Context, ids []int64, action Action) BatchResult {
	result := BatchResult{Total: len(ids), Errors: make(map[int64]error)}
	for _, id := range ids {
		if err := m.ArchiveMemory(ctx, id, action); err != nil {
			result.Failed++
			result.Errors[id] = err
			continue
		}
		result.Succeeded++
	}
	return result
}

// ScanResult is the outcome of one run_archival_scan call.
type ScanResult struct {
	CandidateCount int
	Batch          BatchResult
}

// RunArchivalScan finds candidates older than maxAge and applies action to
// all of them, up to limit.
func (m *Manager) RunArchivalScan(ctx context.Context, maxAge time.Duration, limit int, action Action) (ScanResult, error) {
	candidates, err := m.GetArchivalCandidates(ctx, maxAge, limit)
	if err != nil {
		return ScanResult{}, err
	}
	ids := make([]int64, len(candidates))
	for i, c := range candidates {
		ids[i] = c.ID
	}
	batch := m.ArchiveBatch(ctx, ids, action)
	m.recordOutcome(func(s *Stats) { s.ScansRun++ })
	return ScanResult{CandidateCount: len(candidates), Batch: batch}, nil
}

// StartResult is the background-job start acknowledgment.
type StartResult struct {
	Started    bool
	IntervalMs int
	Reason     string
}

// StartBackgroundJob launches a ticking goroutine that runs a scan every
// intervalMs. A second call while one is already running is a no-op that
// reports {started:false, reason:"Already running"}.
func (m *Manager) StartBackgroundJob(ctx context.Context, intervalMs int, maxAge time.Duration, limit int, action Action) StartResult {
	if intervalMs <= 0 {
		intervalMs = DefaultIntervalMs
	}

	m.jobMu.Lock()
	defer m.jobMu.Unlock()
	if m.running {
		return StartResult{Started: false, Reason: "Already running"}
	}

	m.stopCh = make(chan struct{})
	m.doneCh = make(chan struct{})
	m.running = true

	go m.runLoop(ctx, time.Duration(intervalMs)*time.Millisecond, maxAge, limit, action)

	return StartResult{Started: true, IntervalMs: intervalMs}
}

func (m *Manager) runLoop(ctx context.Context, interval time.Duration, maxAge time.Duration, limit int, action Action) {
	defer close(m.doneCh)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-m.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := m.RunArchivalScan(ctx, maxAge, limit, action); err != nil {
				m.logger.Warn("background archival scan failed", "error", err)
			}
		}
	}
}

// StopBackgroundJob signals the running job to stop and waits for it to exit.
// Stopping a job that isn't running is a no-op.
func (m *Manager) StopBackgroundJob() {
	m.jobMu.Lock()
	if !m.running {
		m.jobMu.Unlock()
		return
	}
	close(m.stopCh)
	done := m.doneCh
	m.running = false
	m.jobMu.Unlock()

	<-done
}

// IsBackgroundJobRunning reports whether the background job is active.
func (m *Manager) IsBackgroundJobRunning() bool {
	m.jobMu.Lock()
	defer m.jobMu.Unlock()
	return m.running
}

// StatusResult is the outcome of check_memory_archival_status.
type StatusResult struct {
	MemoryID     int64
	IsCandidate  bool
	Reason       string
	IdleDuration time.Duration
}

// CheckMemoryArchivalStatus explains why a memory is or isn't currently an
// archival candidate.
func (m *Manager) CheckMemoryArchivalStatus(ctx context.Context, id int64, maxAge time.Duration) (StatusResult, error) {
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	mem, found, err := m.index.Get(ctx, id)
	if err != nil {
		return StatusResult{}, fmt.Errorf("looking up memory %d: %w", id, err)
	}
	if !found {
		return StatusResult{MemoryID: id, IsCandidate: false, Reason: "Memory not found"}, nil
	}
	if mem.ImportanceTier.Protected() {
		return StatusResult{MemoryID: id, IsCandidate: false, Reason: "Protected tier"}, nil
	}
	if mem.IsArchived != model.ArchivalActive {
		return StatusResult{MemoryID: id, IsCandidate: false, Reason: "Already archived"}, nil
	}
	idle := time.Since(mem.LastAccessed)
	if idle < maxAge {
		return StatusResult{MemoryID: id, IsCandidate: false, Reason: "Recently accessed", IdleDuration: idle}, nil
	}
	return StatusResult{MemoryID: id, IsCandidate: true, Reason: "Idle past max age", IdleDuration: idle}, nil
}

// GetStats returns a snapshot of activity since the last reset.
func (m *Manager) GetStats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats
}

// ResetStats zeroes the activity counters.
func (m *Manager) ResetStats() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats = Stats{}
}

func (m *Manager) recordOutcome(apply func(*Stats)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	apply(&m.stats)
}
