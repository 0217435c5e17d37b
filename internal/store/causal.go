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
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/aleutian-labs/speckit-memory/internal/model"
)

// maxCausalChainDepth is the hard ceiling get_causal_chain clamps to,
// mirroring the graph builder's maxEmbedResolutionDepth guard against
// unbounded recursive traversal.
const maxCausalChainDepth = 10

// CausalDirection selects which edge direction get_causal_chain traverses.
type CausalDirection string

const (
	DirectionOutgoing CausalDirection = "outgoing"
	DirectionIncoming CausalDirection = "incoming"
	DirectionBoth     CausalDirection = "both"
)

// CausalStore holds causal edges in memory, indexed for fast traversal in
// both directions. Safe for concurrent use.
type CausalStore struct {
	mu       sync.RWMutex
	edges    map[int64]model.CausalEdge
	bySource map[int64][]int64 // source_id -> edge ids
	byTarget map[int64][]int64 // target_id -> edge ids
	nextID   int64
}

// NewCausalStore returns an empty causal edge store.
func NewCausalStore() *CausalStore {
	return &CausalStore{
		edges:    make(map[int64]model.CausalEdge),
		bySource: make(map[int64][]int64),
		byTarget: make(map[int64][]int64),
	}
}

// validateEdge enforces the §3 invariants: closed relation set, strength in
// [0,1], both ids present, source != target by string form.
func validateEdge(e model.CausalEdge) error {
	if !model.ValidRelations[e.Relation] {
		return fmt.Errorf("causal edge: relation %q is not in the closed set", e.Relation)
	}
	if e.Strength < 0 || e.Strength > 1 {
		return fmt.Errorf("causal edge: strength %f out of [0,1]", e.Strength)
	}
	if e.SourceID == 0 || e.TargetID == 0 {
		return fmt.Errorf("causal edge: source_id and target_id must be present")
	}
	if strconv.FormatInt(e.SourceID, 10) == strconv.FormatInt(e.TargetID, 10) {
		return fmt.Errorf("causal edge: source_id and target_id must differ")
	}
	return nil
}

// InsertEdge validates and inserts a single edge, rejecting a duplicate
// (source_id, target_id, relation) triple.
func (s *CausalStore) InsertEdge(e model.CausalEdge) (model.CausalEdge, error) {
	if err := validateEdge(e); err != nil {
		return model.CausalEdge{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range s.bySource[e.SourceID] {
		existing := s.edges[id]
		if existing.TargetID == e.TargetID && existing.Relation == e.Relation {
			return model.CausalEdge{}, fmt.Errorf("causal edge: duplicate (%d,%d,%s)", e.SourceID, e.TargetID, e.Relation)
		}
	}

	s.nextID++
	e.ID = s.nextID
	if e.ExtractedAt.IsZero() {
		e.ExtractedAt = time.Now()
	}
	s.edges[e.ID] = e
	s.bySource[e.SourceID] = append(s.bySource[e.SourceID], e.ID)
	s.byTarget[e.TargetID] = append(s.byTarget[e.TargetID], e.ID)
	return e, nil
}

// BatchInsertResult reports partial-failure outcome for InsertEdgesBatch.
type BatchInsertResult struct {
	Total    int
	Inserted int
	Failed   int
	Errors   []error
}

// InsertEdgesBatch inserts every edge independently; one failure never
// aborts the rest of the batch.
func (s *CausalStore) InsertEdgesBatch(edges []model.CausalEdge) BatchInsertResult {
	result := BatchInsertResult{Total: len(edges)}
	for _, e := range edges {
		if _, err := s.InsertEdge(e); err != nil {
			result.Failed++
			result.Errors = append(result.Errors, err)
			continue
		}
		result.Inserted++
	}
	return result
}

// GetEdgesFrom returns outgoing edges from id, optionally filtered by relation.
func (s *CausalStore) GetEdgesFrom(id int64, relation ...model.CausalRelation) []model.CausalEdge {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filterEdges(s.bySource[id], relation)
}

// GetEdgesTo returns incoming edges to id, optionally filtered by relation.
func (s *CausalStore) GetEdgesTo(id int64, relation ...model.CausalRelation) []model.CausalEdge {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filterEdges(s.byTarget[id], relation)
}

func (s *CausalStore) filterEdges(ids []int64, relation []model.CausalRelation) []model.CausalEdge {
	out := make([]model.CausalEdge, 0, len(ids))
	for _, id := range ids {
		e := s.edges[id]
		if len(relation) > 0 {
			match := false
			for _, r := range relation {
				if e.Relation == r {
					match = true
					break
				}
			}
			if !match {
				continue
			}
		}
		out = append(out, e)
	}
	return out
}

// AllEdges is the {incoming, outgoing, total} view for get_all_edges.
type AllEdges struct {
	Incoming []model.CausalEdge
	Outgoing []model.CausalEdge
	Total    int
}

// GetAllEdges returns every edge touching id in either direction.
func (s *CausalStore) GetAllEdges(id int64) AllEdges {
	s.mu.RLock()
	defer s.mu.RUnlock()
	in := s.filterEdges(s.byTarget[id], nil)
	out := s.filterEdges(s.bySource[id], nil)
	return AllEdges{Incoming: in, Outgoing: out, Total: len(in) + len(out)}
}

// UpdateEdge replaces the stored edge matching e.ID after re-validating it.
func (s *CausalStore) UpdateEdge(e model.CausalEdge) error {
	if err := validateEdge(e); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.edges[e.ID]; !ok {
		return fmt.Errorf("causal edge: id %d not found", e.ID)
	}
	s.edges[e.ID] = e
	return nil
}

// DeleteEdge removes a single edge by id. Deleting a missing id is a no-op.
func (s *CausalStore) DeleteEdge(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeEdgeLocked(id)
}

// DeleteEdgesForMemory removes every edge touching memoryID in either direction.
func (s *CausalStore) DeleteEdgesForMemory(memoryID int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make(map[int64]bool)
	for _, id := range s.bySource[memoryID] {
		ids[id] = true
	}
	for _, id := range s.byTarget[memoryID] {
		ids[id] = true
	}
	for id := range ids {
		s.removeEdgeLocked(id)
	}
	return len(ids)
}

// removeEdgeLocked removes edge id from all indexes. Caller must hold s.mu.
func (s *CausalStore) removeEdgeLocked(id int64) {
	e, ok := s.edges[id]
	if !ok {
		return
	}
	delete(s.edges, id)
	s.bySource[e.SourceID] = removeID(s.bySource[e.SourceID], id)
	s.byTarget[e.TargetID] = removeID(s.byTarget[e.TargetID], id)
}

func removeID(ids []int64, target int64) []int64 {
	out := ids[:0]
	for _, id := range ids {
		if id != target {
			out = append(out, id)
		}
	}
	return out
}

// GraphStats summarizes the edge store for get_graph_stats.
type GraphStats struct {
	TotalEdges int
	ByRelation map[model.CausalRelation]int
}

// GetGraphStats tallies edges by relation across the whole store.
func (s *CausalStore) GetGraphStats() GraphStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stats := GraphStats{TotalEdges: len(s.edges), ByRelation: make(map[model.CausalRelation]int)}
	for _, e := range s.edges {
		stats.ByRelation[e.Relation]++
	}
	return stats
}

// FindOrphanedEdges returns edges whose endpoint is not present in
// liveMemoryIDs, e.g. after a hard delete bypassed DeleteEdgesForMemory.
func (s *CausalStore) FindOrphanedEdges(liveMemoryIDs map[int64]bool) []model.CausalEdge {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var orphans []model.CausalEdge
	for _, e := range s.edges {
		if !liveMemoryIDs[e.SourceID] || !liveMemoryIDs[e.TargetID] {
			orphans = append(orphans, e)
		}
	}
	return orphans
}

// ChainOptions configures get_causal_chain.
type ChainOptions struct {
	Direction CausalDirection
	Relations []model.CausalRelation
	MaxDepth  int
}

// ChainResult is the flattened, pre-grouped result of a causal chain traversal.
type ChainResult struct {
	Edges            []model.CausalEdge
	ByRelation       map[model.CausalRelation][]model.CausalEdge
	TraversalOptions ChainOptions
}

// GetCausalChain runs a depth-clamped, cycle-safe breadth-first traversal
// from id in the requested direction. max_depth is clamped to the hard
// ceiling of 10 even if the caller asks for more; a visited-node set
// guarantees termination regardless of cycles in the edge set.
func (s *CausalStore) GetCausalChain(id int64, opts ChainOptions) ChainResult {
	if opts.Direction == "" {
		opts.Direction = DirectionOutgoing
	}
	if opts.MaxDepth <= 0 || opts.MaxDepth > maxCausalChainDepth {
		opts.MaxDepth = maxCausalChainDepth
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	visited := map[int64]bool{id: true}
	queue := []int64{id}
	depths := map[int64]int{id: 0}

	result := ChainResult{ByRelation: make(map[model.CausalRelation][]model.CausalEdge), TraversalOptions: opts}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		depth := depths[current]
		if depth >= opts.MaxDepth {
			continue
		}

		var frontier []model.CausalEdge
		if opts.Direction == DirectionOutgoing || opts.Direction == DirectionBoth {
			frontier = append(frontier, s.filterEdges(s.bySource[current], opts.Relations)...)
		}
		if opts.Direction == DirectionIncoming || opts.Direction == DirectionBoth {
			frontier = append(frontier, s.filterEdges(s.byTarget[current], opts.Relations)...)
		}

		for _, e := range frontier {
			result.Edges = append(result.Edges, e)
			result.ByRelation[e.Relation] = append(result.ByRelation[e.Relation], e)

			next := e.TargetID
			if next == current {
				next = e.SourceID
			}
			if !visited[next] {
				visited[next] = true
				depths[next] = depth + 1
				queue = append(queue, next)
			}
		}
	}

	return result
}
