// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package fusion merges ranked result lists from the dense-vector, lexical,
// and causal-graph sources by reciprocal rank fusion.
package fusion

import "sort"

// DefaultK is the RRF smoothing constant.
const DefaultK = 60

// DefaultConvergenceBonus rewards documents surfaced by 2+ sources.
const DefaultConvergenceBonus = 0.10

// SourceHit is one document's rank within a single ranked source list.
// Rank is 1-based; rank 1 is the best match.
type SourceHit struct {
	ID   int64
	Rank int
}

// Options tunes the fusion formula. Zero values fall back to the defaults.
type Options struct {
	K                int
	ConvergenceBonus float64
}

func (o Options) resolved() (int, float64) {
	k := o.K
	if k <= 0 {
		k = DefaultK
	}
	bonus := o.ConvergenceBonus
	if bonus == 0 {
		bonus = DefaultConvergenceBonus
	}
	return k, bonus
}

// FusedResult is one document's merged ranking, naming which sources
// surfaced it and at what rank.
type FusedResult struct {
	ID          int64
	RRFScore    float64
	SourceCount int
	InVector    bool
	InFTS       bool
	InGraph     bool
	VectorRank  *int
	FTSRank     *int
	GraphRank   *int
}

// FuseResults merges the vector and lexical source lists.
func FuseResults(vector, fts []SourceHit, opts Options) []FusedResult {
	return FuseResultsMulti(vector, fts, nil, opts)
}

// FuseResultsMulti merges vector, lexical, and causal-graph source lists by
// reciprocal rank fusion, adding a convergence bonus to documents that
// appear in 2 or more sources.
func FuseResultsMulti(vector, fts, graph []SourceHit, opts Options) []FusedResult {
	k, bonus := opts.resolved()

	entries := map[int64]*FusedResult{}
	var order []int64

	get := func(id int64) *FusedResult {
		e, ok := entries[id]
		if !ok {
			e = &FusedResult{ID: id}
			entries[id] = e
			order = append(order, id)
		}
		return e
	}

	for _, h := range vector {
		e := get(h.ID)
		e.RRFScore += 1.0 / float64(k+h.Rank)
		e.InVector = true
		rank := h.Rank
		e.VectorRank = &rank
	}
	for _, h := range fts {
		e := get(h.ID)
		e.RRFScore += 1.0 / float64(k+h.Rank)
		e.InFTS = true
		rank := h.Rank
		e.FTSRank = &rank
	}
	for _, h := range graph {
		e := get(h.ID)
		e.RRFScore += 1.0 / float64(k+h.Rank)
		e.InGraph = true
		rank := h.Rank
		e.GraphRank = &rank
	}

	results := make([]FusedResult, 0, len(order))
	for _, id := range order {
		e := entries[id]
		count := 0
		if e.InVector {
			count++
		}
		if e.InFTS {
			count++
		}
		if e.InGraph {
			count++
		}
		e.SourceCount = count
		if count >= 2 {
			e.RRFScore += bonus
		}
		results = append(results, *e)
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].RRFScore != results[j].RRFScore {
			return results[i].RRFScore > results[j].RRFScore
		}
		return results[i].ID < results[j].ID
	})
	return results
}

// singleSource converts one ranked list into FusedResult form without
// fusing, used when unified_search bypasses fusion.
func singleSource(hits []SourceHit, k int, mark func(*FusedResult, int)) []FusedResult {
	results := make([]FusedResult, 0, len(hits))
	for _, h := range hits {
		e := &FusedResult{ID: h.ID, RRFScore: 1.0 / float64(k+h.Rank), SourceCount: 1}
		mark(e, h.Rank)
		results = append(results, *e)
	}
	return results
}

// Metadata describes how unified_search combined its sources.
type Metadata struct {
	FusionApplied bool
	ActiveSources []string
	VectorCount   int
	FTSCount      int
	GraphCount    int
}

// UnifiedSearch merges the three sources, bypassing fusion when the
// enable_rrf_fusion flag is off or when at most one source produced
// results.
func UnifiedSearch(vector, fts, graph []SourceHit, opts Options, enableFusion bool) ([]FusedResult, Metadata) {
	k, _ := opts.resolved()

	meta := Metadata{VectorCount: len(vector), FTSCount: len(fts), GraphCount: len(graph)}
	if len(vector) > 0 {
		meta.ActiveSources = append(meta.ActiveSources, "vector")
	}
	if len(fts) > 0 {
		meta.ActiveSources = append(meta.ActiveSources, "fts")
	}
	if len(graph) > 0 {
		meta.ActiveSources = append(meta.ActiveSources, "graph")
	}

	if !enableFusion || len(meta.ActiveSources) <= 1 {
		meta.FusionApplied = false
		switch {
		case len(vector) > 0:
			return singleSource(vector, k, func(e *FusedResult, rank int) { e.InVector = true; e.VectorRank = &rank }), meta
		case len(fts) > 0:
			return singleSource(fts, k, func(e *FusedResult, rank int) { e.InFTS = true; e.FTSRank = &rank }), meta
		case len(graph) > 0:
			return singleSource(graph, k, func(e *FusedResult, rank int) { e.InGraph = true; e.GraphRank = &rank }), meta
		default:
			return nil, meta
		}
	}

	meta.FusionApplied = true
	return FuseResultsMulti(vector, fts, graph, opts), meta
}
