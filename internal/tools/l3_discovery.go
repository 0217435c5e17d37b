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

	"github.com/aleutian-labs/speckit-memory/internal/memerr"
	"github.com/aleutian-labs/speckit-memory/internal/model"
	"github.com/aleutian-labs/speckit-memory/internal/store"
)

const (
	toolMemoryList   = "memory_list"
	toolMemoryStats  = "memory_stats"
	toolMemoryHealth = "memory_health"
)

func (s *Surface) MemoryListDescribe() (string, int) {
	return describe(toolMemoryList, "Browse memories by spec folder, or every non-deleted memory when no folder is given.")
}

// MemoryList returns every non-deleted memory under specFolder, or every
// non-deleted memory when specFolder is empty.
func (s *Surface) MemoryList(ctx context.Context, specFolder string) Envelope[[]model.Memory] {
	if specFolder == "" {
		memories, err := s.Engine.Index.ListAll(ctx)
		if err != nil {
			return fail[[]model.Memory](toolMemoryList, memerr.New(memerr.E024DBReadFailed, err.Error(), true, "retry", nil))
		}
		return ok(memories)
	}
	memories, err := s.Engine.Index.ListBySpecFolder(ctx, specFolder)
	if err != nil {
		return fail[[]model.Memory](toolMemoryList, memerr.New(memerr.E024DBReadFailed, err.Error(), true, "retry", nil))
	}
	return ok(memories)
}

// MemoryStats is memory_stats' {total, success, pending, failed} embedding
// tally plus the lexical and causal store sizes, the bare counts a host
// surfaces without the full memory_health diagnostic.
type MemoryStats struct {
	Index     store.Stats
	LexicalDocs int
	GraphEdges  int
}

func (s *Surface) MemoryStatsDescribe() (string, int) {
	return describe(toolMemoryStats, "Embedding-status, lexical, and causal-graph counts across the whole store.")
}

func (s *Surface) MemoryStats(ctx context.Context) Envelope[MemoryStats] {
	st, err := s.Engine.Index.StatusStats(ctx)
	if err != nil {
		return fail[MemoryStats](toolMemoryStats, memerr.New(memerr.E024DBReadFailed, err.Error(), true, "retry", nil))
	}
	graph := s.Engine.Causal.GetGraphStats()
	return ok(MemoryStats{Index: st, LexicalDocs: s.Engine.Lexical.Size(), GraphEdges: graph.TotalEdges})
}

// HealthReport is memory_health's full diagnostic snapshot: the embedding
// provider chain's active tier, vector-store availability, and archival
// backlog, beyond the bare counts memory_stats reports.
type HealthReport struct {
	ProviderTier       model.FallbackTier
	ProviderReady      bool
	LexicalOnly        bool
	VectorAvailable    bool
	VectorStats        store.VectorStats
	LexicalDocs        int
	GraphStats         store.GraphStats
	ArchivalCandidates int
	ArchivalStats      archivalStatsView
}

type archivalStatsView struct {
	ScansRun    int
	Archived    int
	SoftDeleted int
	LogOnly     int
	Unarchived  int
}

func (s *Surface) MemoryHealthDescribe() (string, int) {
	return describe(toolMemoryHealth, "Full diagnostic snapshot: provider chain tier, vector store availability, archival backlog, graph stats.")
}

// MemoryHealth assembles a diagnostic view across every subsystem, the
// detail beyond memory_stats that DEFAULT_HINT and critical-severity
// errors point callers at.
func (s *Surface) MemoryHealth(ctx context.Context) Envelope[HealthReport] {
	vecStats, vecErr := s.Engine.Vector.Stats(ctx)
	if vecErr != nil {
		s.Logger.Warn("memory_health: vector stats unavailable", "error", vecErr)
	}

	candidates, err := s.Engine.Archival.GetArchivalCandidates(ctx, 0, 10000)
	if err != nil {
		return fail[HealthReport](toolMemoryHealth, memerr.New(memerr.E024DBReadFailed, err.Error(), true, "retry", nil))
	}

	as := s.Engine.Archival.GetStats()
	report := HealthReport{
		ProviderTier:       s.Engine.Chain.ActiveTier(),
		ProviderReady:      s.Engine.Chain.IsReady(),
		LexicalOnly:        s.Engine.Chain.IsBM25Only(),
		VectorAvailable:    s.Engine.Vector.Available(ctx),
		VectorStats:        vecStats,
		LexicalDocs:        s.Engine.Lexical.Size(),
		GraphStats:         s.Engine.Causal.GetGraphStats(),
		ArchivalCandidates: len(candidates),
		ArchivalStats: archivalStatsView{
			ScansRun: as.ScansRun, Archived: as.Archived, SoftDeleted: as.SoftDeleted,
			LogOnly: as.LogOnly, Unarchived: as.Unarchived,
		},
	}
	return ok(report)
}
