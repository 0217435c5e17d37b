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
	"github.com/aleutian-labs/speckit-memory/internal/intent"
	"github.com/aleutian-labs/speckit-memory/internal/memerr"
)

const (
	toolMemorySearch        = "memory_search"
	toolMemorySave          = "memory_save"
	toolMemoryMatchTriggers = "memory_match_triggers"
)

// MemorySearchInput is memory_search's accepted payload, per spec.md §6:
// query, limit, an optional intent override, and autoDetectIntent
// (defaulted true when no explicit intent is given).
type MemorySearchInput struct {
	Query            string
	Limit            int
	Intent           intent.Intent
	AutoDetectIntent bool
	GraphSeedID      int64
}

func (s *Surface) MemorySearchDescribe() (string, int) {
	return describe(toolMemorySearch, "Hybrid search over the memory store: dense vector + BM25 lexical + causal graph, merged by reciprocal rank fusion.")
}

// MemorySearch runs the fused retrieval pipeline without touching working
// memory, for callers that want raw results rather than memory_context's
// session side effects.
func (s *Surface) MemorySearch(ctx context.Context, in MemorySearchInput) Envelope[engine.SearchReport] {
	if in.Query == "" {
		return fail[engine.SearchReport](toolMemorySearch, memerr.New(memerr.E030MissingParameter, "query must not be empty", true, "supply a search query", nil))
	}
	autoDetect := in.AutoDetectIntent
	if in.Intent == "" {
		autoDetect = true
	}
	report, err := s.Engine.Search(ctx, engine.SearchOptions{
		Query: in.Query, Limit: in.Limit, Intent: in.Intent,
		AutoDetectIntent: autoDetect, GraphSeedID: in.GraphSeedID,
	})
	if err != nil {
		return fail[engine.SearchReport](toolMemorySearch, memerr.New(memerr.E040SearchFailed, err.Error(), true, "retry", nil))
	}
	return ok(report)
}

func (s *Surface) MemorySaveDescribe() (string, int) {
	return describe(toolMemorySave, "Validates and persists new memory content through the prediction-error gate: create, update, reinforce, supersede, or link.")
}

// MemorySave runs preflight + the prediction-error gate + persistence for
// new content, per spec.md §6's {content, file_path, spec_folder, dryRun?,
// force?} payload.
func (s *Surface) MemorySave(ctx context.Context, in engine.SaveInput) Envelope[engine.SaveResult] {
	if in.Content == "" {
		return fail[engine.SaveResult](toolMemorySave, memerr.New(memerr.E030MissingParameter, "content must not be empty", true, "supply content to save", nil))
	}
	if in.FilePath == "" {
		return fail[engine.SaveResult](toolMemorySave, memerr.New(memerr.E030MissingParameter, "file_path must not be empty", true, "supply the source file path", nil))
	}

	result, err := s.Engine.Save(ctx, in)
	if err != nil {
		return fail[engine.SaveResult](toolMemorySave, memerr.New(memerr.E082MemoryUpdateFailed, err.Error(), true, "retry", nil))
	}
	if result.Err != nil {
		return fail[engine.SaveResult](toolMemorySave, result.Err)
	}
	return ok(result)
}

// TriggerMatch is one BM25 hit memory_match_triggers surfaces: a cheap
// lexical-only check for whether the current turn's text brushes against
// anything already in the store, without paying for the full fused
// pipeline memory_search/memory_context run.
type TriggerMatch struct {
	MemoryID int64
	Score    float64
}

func (s *Surface) MemoryMatchTriggersDescribe() (string, int) {
	return describe(toolMemoryMatchTriggers, "Lexical-only trigger-phrase check: BM25 over the current turn's text, no vector or graph cost.")
}

// MemoryMatchTriggers runs a BM25-only pass, the fast pre-filter a host
// calls before deciding whether the full memory_search cost is warranted.
func (s *Surface) MemoryMatchTriggers(ctx context.Context, text string, limit int) Envelope[[]TriggerMatch] {
	if text == "" {
		return fail[[]TriggerMatch](toolMemoryMatchTriggers, memerr.New(memerr.E030MissingParameter, "text must not be empty", true, "supply the text to check for trigger phrases", nil))
	}
	if limit <= 0 {
		limit = 5
	}
	hits := s.Engine.Lexical.Search(text, limit)
	out := make([]TriggerMatch, len(hits))
	for i, h := range hits {
		out[i] = TriggerMatch{MemoryID: h.ID, Score: h.Score}
	}
	return ok(out)
}
