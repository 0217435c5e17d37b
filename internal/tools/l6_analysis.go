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
	"github.com/aleutian-labs/speckit-memory/internal/model"
	"github.com/aleutian-labs/speckit-memory/internal/registry"
	"github.com/aleutian-labs/speckit-memory/internal/store"
	"github.com/aleutian-labs/speckit-memory/internal/workingmem"
)

const (
	toolMemoryDriftWhy  = "memory_drift_why"
	toolTaskPreflight   = "task_preflight"
	toolTaskPostflight  = "task_postflight"
)

func (s *Surface) MemoryDriftWhyDescribe() (string, int) {
	return describe(toolMemoryDriftWhy, "Explains a memory's lineage by traversing incoming causal edges: what superseded it, what it contradicts, what caused it.")
}

// MemoryDriftWhy walks the incoming causal edges into id, the "why does the
// store currently say this" view: every edge where something else caused,
// enabled, superseded, contradicted, or supported the memory in question.
func (s *Surface) MemoryDriftWhy(ctx context.Context, id int64, maxDepth int) Envelope[store.ChainResult] {
	if _, found, err := s.Engine.Index.Get(ctx, id); err != nil {
		return fail[store.ChainResult](toolMemoryDriftWhy, memerr.New(memerr.E024DBReadFailed, err.Error(), true, "retry", nil))
	} else if !found {
		return fail[store.ChainResult](toolMemoryDriftWhy, memerr.New(memerr.E080MemoryNotFound, "memory not found", true, "memory_list()", map[string]any{"memory_id": id}))
	}

	chain := s.Engine.Causal.GetCausalChain(id, store.ChainOptions{Direction: store.DirectionIncoming, MaxDepth: maxDepth})
	return ok(chain)
}

// taskClassForIntent maps a classified query intent onto the task class
// that drives which layers task_preflight recommends loading.
func taskClassForIntent(i intent.Intent) registry.TaskClass {
	switch i {
	case intent.AddFeature, intent.Refactor:
		return registry.TaskModify
	case intent.FixBug, intent.SecurityAudit:
		return registry.TaskAnalyze
	default:
		return registry.TaskSearch
	}
}

// TaskPreflightOutput is what a host loads before starting work on query:
// the intent classification driving layer selection, the layers
// themselves, and a first-pass search over the memory store.
type TaskPreflightOutput struct {
	Intent            intent.Classification
	RecommendedLayers []registry.Layer
	Search            engine.SearchReport
}

func (s *Surface) TaskPreflightDescribe() (string, int) {
	return describe(toolTaskPreflight, "Classifies task intent from a query and returns the layers and initial search results a host should load before starting work.")
}

// TaskPreflight classifies query's intent, searches with that intent
// applied, and reports the layer set the classified task class
// recommends, so a host can decide what else to load before the first
// tool call into the actual work.
func (s *Surface) TaskPreflight(ctx context.Context, query string, limit int) Envelope[TaskPreflightOutput] {
	if query == "" {
		return fail[TaskPreflightOutput](toolTaskPreflight, memerr.New(memerr.E030MissingParameter, "query must not be empty", true, "supply a task description", nil))
	}

	classification := intent.Classify(query)
	report, err := s.Engine.Search(ctx, engine.SearchOptions{Query: query, Limit: limit, Intent: classification.Intent})
	if err != nil {
		return fail[TaskPreflightOutput](toolTaskPreflight, memerr.New(memerr.E040SearchFailed, err.Error(), true, "retry", nil))
	}

	return ok(TaskPreflightOutput{
		Intent:            classification,
		RecommendedLayers: registry.GetRecommendedLayers(taskClassForIntent(classification.Intent)),
		Search:            report,
	})
}

func (s *Surface) TaskPostflightDescribe() (string, int) {
	return describe(toolTaskPostflight, "Wraps up a task: spreads attention to every memory causally linked to the ones the task touched.")
}

// TaskPostflight spreads activation from primaryMemoryID across its causal
// neighbors within sessionID's working memory, so the next task_preflight
// in this session starts with related memories already warm.
func (s *Surface) TaskPostflight(ctx context.Context, sessionID string, primaryMemoryID int64, turn int) Envelope[workingmem.BoostResult] {
	if sessionID == "" {
		return fail[workingmem.BoostResult](toolTaskPostflight, memerr.New(memerr.E072SessionInvalid, "session_id must not be empty", true, "supply a non-empty session id", nil))
	}

	result, err := s.Engine.WorkingMem.SpreadActivation(ctx, sessionID, s.Engine.Causal, primaryMemoryID, workingmem.BoostOptions{Turn: turn})
	if err != nil {
		return fail[workingmem.BoostResult](toolTaskPostflight, memerr.New(memerr.E082MemoryUpdateFailed, err.Error(), true, "retry", map[string]any{"memory_id": primaryMemoryID}))
	}
	return ok(result)
}
