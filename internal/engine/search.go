// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package engine

import (
	"context"
	"fmt"

	"github.com/aleutian-labs/speckit-memory/internal/fusion"
	"github.com/aleutian-labs/speckit-memory/internal/intent"
	"github.com/aleutian-labs/speckit-memory/internal/model"
	"github.com/aleutian-labs/speckit-memory/internal/store"
)

// SearchOptions configures a unified_search call.
type SearchOptions struct {
	Query            string
	Limit            int
	Intent           intent.Intent // overrides classification when non-empty
	AutoDetectIntent bool          // default true
	GraphSeedID      int64         // non-zero: also pull this memory's causal neighbors in as a source
}

// SearchResult pairs a fused ranking entry with its resolved Memory row.
type SearchResult struct {
	Memory   model.Memory
	Fused    fusion.FusedResult
}

// SearchReport is unified_search's full return value: ranked results plus
// the fusion/intent metadata a caller can surface in a tool response.
type SearchReport struct {
	Results        []SearchResult
	FusionMetadata fusion.Metadata
	Classification intent.Classification
	Weights        intent.Weights
}

const defaultSearchLimit = 10

// baseWeights is the unadjusted six-factor ranking weight map before an
// intent overlay is applied. Equal split across factors.
var baseWeights = intent.Weights{
	Similarity: 1.0 / 6, Importance: 1.0 / 6, Recency: 1.0 / 6,
	Popularity: 1.0 / 6, TierBoost: 1.0 / 6, Retrievability: 1.0 / 6,
}

// Search runs the hybrid retrieval pipeline: dense vector + BM25 + causal
// graph, merged by reciprocal rank fusion, intent-classified for the
// ranking weight overlay the caller may apply downstream.
func (e *Engine) Search(ctx context.Context, opts SearchOptions) (SearchReport, error) {
	if opts.Limit <= 0 {
		opts.Limit = defaultSearchLimit
	}

	classification := intent.Classification{Intent: opts.Intent}
	autoDetect := opts.AutoDetectIntent
	if opts.Intent == "" {
		autoDetect = true
	}
	if autoDetect && opts.Intent == "" {
		classification = intent.Classify(opts.Query)
	}
	weights := intent.ApplyIntentWeights(baseWeights, classification.Intent)

	vectorHits, err := e.searchVector(ctx, opts.Query, opts.Limit*3)
	if err != nil {
		e.Logger.Warn("vector search degraded", "error", err)
	}
	ftsHits := e.searchLexical(opts.Query, opts.Limit*3)
	graphHits := e.searchGraph(opts.GraphSeedID, opts.Limit*3)

	fused, meta := fusion.UnifiedSearch(vectorHits, ftsHits, graphHits,
		fusion.Options{K: e.Config.RRFK, ConvergenceBonus: e.Config.ConvergenceBonus},
		e.Config.EnableRRFFusion)

	if len(fused) > opts.Limit {
		fused = fused[:opts.Limit]
	}

	results := make([]SearchResult, 0, len(fused))
	for _, f := range fused {
		mem, found, err := e.Index.Get(ctx, f.ID)
		if err != nil {
			return SearchReport{}, fmt.Errorf("resolving search hit %d: %w", f.ID, err)
		}
		if !found || mem.IsArchived == model.ArchivalSoftDeleted {
			continue
		}
		results = append(results, SearchResult{Memory: mem, Fused: f})
	}

	return SearchReport{
		Results:        results,
		FusionMetadata: meta,
		Classification: classification,
		Weights:        weights,
	}, nil
}

func (e *Engine) searchVector(ctx context.Context, query string, topK int) ([]fusion.SourceHit, error) {
	vec, _, err := e.EmbedForSearch(ctx, query)
	if err != nil {
		return nil, err
	}
	if len(vec) == 0 {
		return nil, nil // lexical-only: the chain fell through to the sentinel
	}
	hits, err := e.Vector.Search(ctx, vec, topK)
	if err != nil {
		return nil, err
	}
	out := make([]fusion.SourceHit, len(hits))
	for i, h := range hits {
		out[i] = fusion.SourceHit{ID: h.MemoryID, Rank: i + 1}
	}
	return out, nil
}

func (e *Engine) searchLexical(query string, topK int) []fusion.SourceHit {
	hits := e.Lexical.Search(query, topK)
	out := make([]fusion.SourceHit, len(hits))
	for i, h := range hits {
		out[i] = fusion.SourceHit{ID: h.ID, Rank: i + 1}
	}
	return out
}

func (e *Engine) searchGraph(seedID int64, topK int) []fusion.SourceHit {
	if seedID == 0 {
		return nil
	}
	chain := e.Causal.GetCausalChain(seedID, store.ChainOptions{Direction: store.DirectionBoth})
	seen := map[int64]bool{}
	var out []fusion.SourceHit
	rank := 1
	for _, edge := range chain.Edges {
		for _, id := range []int64{edge.SourceID, edge.TargetID} {
			if id == seedID || seen[id] {
				continue
			}
			seen[id] = true
			out = append(out, fusion.SourceHit{ID: id, Rank: rank})
			rank++
			if rank > topK {
				return out
			}
		}
	}
	return out
}
