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

	"github.com/aleutian-labs/speckit-memory/internal/engine"
	"github.com/aleutian-labs/speckit-memory/internal/memerr"
	"github.com/aleutian-labs/speckit-memory/internal/registry"
)

const toolMemoryContext = "memory_context"

// MemoryContextInput is memory_context's accepted payload: the always-
// loaded entry point a host calls once per turn before deciding which
// deeper layers (L2-L7) the rest of the turn needs.
type MemoryContextInput struct {
	SessionID string
	Query     string
	Turn      int
	TaskClass registry.TaskClass // empty defaults to TaskSearch
	Limit     int
}

// MemoryContextOutput pairs the fused search with the layer set a host
// should load for this turn and those layers' descriptions. The attention
// scores MemoryContext writes to working memory are not returned here.
type MemoryContextOutput struct {
	Search          engine.SearchReport
	RecommendedLayers []registry.Layer
	LayerDescriptions []registry.Definition
}

// MemoryContextDescribe returns memory_context's enhanced description and token budget.
func (s *Surface) MemoryContextDescribe() (string, int) {
	return describe(toolMemoryContext, "Unified retrieval entry point: runs hybrid search and reports which deeper layers this turn should load.")
}

// MemoryContext runs the hybrid search pipeline and records each hit's
// relevance as a working-memory attention score for sessionID, the same
// way a successful recall reinforces a memory's last_accessed.
func (s *Surface) MemoryContext(ctx context.Context, in MemoryContextInput) Envelope[MemoryContextOutput] {
	if in.SessionID == "" {
		return fail[MemoryContextOutput](toolMemoryContext, memerr.New(memerr.E072SessionInvalid, "session_id must not be empty", true, "supply a non-empty session id", nil))
	}
	taskClass := in.TaskClass
	if taskClass == "" {
		taskClass = registry.TaskSearch
	}

	report, err := s.Engine.Search(ctx, engine.SearchOptions{Query: in.Query, Limit: in.Limit, AutoDetectIntent: true})
	if err != nil {
		return fail[MemoryContextOutput](toolMemoryContext, memerr.New(memerr.E040SearchFailed, err.Error(), true, "retry", nil))
	}

	if _, _, err := s.Engine.WorkingMem.GetOrCreateSession(ctx, in.SessionID); err != nil {
		s.Logger.Warn("memory_context could not establish session", "session_id", in.SessionID, "error", err)
	} else {
		for _, r := range report.Results {
			score := r.Fused.RRFScore
			if score > 1.0 {
				score = 1.0
			}
			if _, err := s.Engine.WorkingMem.SetAttentionScore(ctx, in.SessionID, r.Memory.ID, score, in.Turn); err != nil {
				s.Logger.Warn("memory_context attention write failed", "memory_id", r.Memory.ID, "error", err)
			}
		}
	}

	layers := registry.GetRecommendedLayers(taskClass)
	defs := make([]registry.Definition, len(layers))
	for i, l := range layers {
		defs[i] = l.Describe()
	}

	return ok(MemoryContextOutput{Search: report, RecommendedLayers: layers, LayerDescriptions: defs})
}
