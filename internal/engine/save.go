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
	"os"
	"time"

	"github.com/aleutian-labs/speckit-memory/internal/gate"
	"github.com/aleutian-labs/speckit-memory/internal/memerr"
	"github.com/aleutian-labs/speckit-memory/internal/model"
	"github.com/aleutian-labs/speckit-memory/internal/preflight"
)

// SaveInput is memory_save's accepted payload.
type SaveInput struct {
	Content    string
	FilePath   string
	SpecFolder string
	DryRun     bool
	Force      bool
}

// SaveResult is memory_save's outcome.
type SaveResult struct {
	Action       model.MemoryAction
	MemoryID     int64
	Preflight    preflight.Result
	GateResult   gate.Result
	Conflict     *model.ConflictRecord
	Err          *memerr.Error
}

// candidateLookup adapts the memory index + vector store to preflight's
// exact-duplicate and nearest-neighbor interfaces.
type candidateLookup struct {
	idx *Engine
}

func (c candidateLookup) GetByContentHash(ctx context.Context, hash string) (int64, string, bool, error) {
	return c.idx.Index.GetByContentHash(ctx, hash)
}

func (c candidateLookup) FindNearest(ctx context.Context, vec []float32) (int64, string, float64, bool, error) {
	hits, err := c.idx.Vector.Search(ctx, vec, 1)
	if err != nil || len(hits) == 0 {
		return 0, "", 0, false, err
	}
	mem, found, err := c.idx.Index.Get(ctx, hits[0].MemoryID)
	if err != nil || !found {
		return 0, "", 0, false, err
	}
	return mem.ID, mem.FilePath, float64(hits[0].Score), true, nil
}

// gateCandidates resolves the top-K most similar existing memories to vec,
// the gate's decision input.
func (e *Engine) gateCandidates(ctx context.Context, vec []float32, limit int) ([]gate.Candidate, error) {
	if len(vec) == 0 {
		return nil, nil
	}
	hits, err := e.Vector.Search(ctx, vec, limit)
	if err != nil {
		return nil, err
	}
	out := make([]gate.Candidate, 0, len(hits))
	for _, h := range hits {
		mem, found, err := e.Index.Get(ctx, h.MemoryID)
		if err != nil {
			return nil, err
		}
		if !found {
			continue
		}
		content, err := readMemoryContent(mem)
		if err != nil {
			continue
		}
		out = append(out, gate.Candidate{ID: mem.ID, Similarity: float64(h.Score), Content: content})
	}
	return out, nil
}

func readMemoryContent(m model.Memory) (string, error) {
	data, err := os.ReadFile(m.FilePath)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

const maxGateCandidates = 5

// Save runs the full preflight -> prediction-error gate -> persist pipeline
// for new memory content, mirroring the save/update duplication-handling
// the spec's memory_save tool is built around.
func (e *Engine) Save(ctx context.Context, in SaveInput) (SaveResult, error) {
	pf, err := preflight.RunPreflight(ctx, preflight.Input{
		Content:               in.Content,
		FilePath:              in.FilePath,
		SpecFolder:            in.SpecFolder,
		MinLength:             1,
		MaxLength:             0,
		MaxTokens:             8000,
		WithOverhead:          true,
		DryRun:                in.DryRun,
		CheckAnchorsEnabled:   true,
		CheckDuplicateEnabled: true,
		CheckTokensEnabled:    true,
		CheckSizeEnabled:      true,
	}, candidateLookup{idx: e}, nil)
	if err != nil {
		return SaveResult{}, fmt.Errorf("preflight: %w", err)
	}
	if !pf.Pass && !in.Force {
		return SaveResult{Preflight: pf, Err: pf.Errors[0]}, nil
	}

	vec, profile, err := e.EmbedForSearch(ctx, in.Content)
	if err != nil {
		e.Logger.Warn("embedding failed during save; continuing lexical-only", "error", err)
	}

	candidates, err := e.gateCandidates(ctx, vec, maxGateCandidates)
	if err != nil {
		return SaveResult{}, fmt.Errorf("resolving gate candidates: %w", err)
	}

	decision := gate.Decide(gate.NewInput(candidates, in.Content))
	conflict := gate.BuildConflictRecord(in.SpecFolder, decision, in.Content)

	if in.DryRun {
		return SaveResult{Action: decision.Action, GateResult: decision, Conflict: conflict, Preflight: pf}, nil
	}

	memID, err := e.applyGateDecision(ctx, in, decision, vec, profile)
	if err != nil {
		return SaveResult{}, err
	}

	return SaveResult{Action: decision.Action, MemoryID: memID, GateResult: decision, Conflict: conflict, Preflight: pf}, nil
}

func (e *Engine) applyGateDecision(ctx context.Context, in SaveInput, decision gate.Result, vec []float32, profile model.ProviderProfile) (int64, error) {
	switch decision.Action {
	case model.ActionReinforce:
		id := decision.Candidate.ID
		if err := e.Index.TouchAccess(ctx, id); err != nil {
			return 0, fmt.Errorf("reinforcing memory %d: %w", id, err)
		}
		return id, nil

	case model.ActionUpdate:
		id := decision.Candidate.ID
		mem, found, err := e.Index.Get(ctx, id)
		if err != nil || !found {
			return 0, fmt.Errorf("loading memory %d to update: %w", id, err)
		}
		mem.ContentHash = preflight.ContentHash(in.Content)
		mem.UpdatedAt = time.Now()
		if err := e.Index.Update(ctx, mem); err != nil {
			return 0, fmt.Errorf("updating memory %d: %w", id, err)
		}
		if len(vec) > 0 {
			if err := e.Vector.Upsert(ctx, id, vec, profile); err != nil {
				return 0, fmt.Errorf("upserting vector for memory %d: %w", id, err)
			}
		}
		e.Lexical.Upsert(id, in.Content)
		return id, nil

	case model.ActionSupersede:
		// The contradicting content replaces the candidate: a fresh row
		// carries the new claim, the old one is archived rather than
		// deleted, and a supersedes edge preserves the lineage.
		oldID := decision.Candidate.ID
		mem, err := e.Index.Create(ctx, model.Memory{
			SpecFolder:     in.SpecFolder,
			FilePath:       in.FilePath,
			ImportanceTier: model.TierNormal,
			ImportanceWt:   0.5,
			ContentHash:    preflight.ContentHash(in.Content),
			Status:         statusFor(vec),
		})
		if err != nil {
			return 0, fmt.Errorf("creating superseding memory: %w", err)
		}
		if len(vec) > 0 {
			if err := e.Vector.Upsert(ctx, mem.ID, vec, profile); err != nil {
				return 0, fmt.Errorf("upserting vector for memory %d: %w", mem.ID, err)
			}
		}
		e.Lexical.Upsert(mem.ID, in.Content)
		if err := e.Index.SetArchivalState(ctx, oldID, model.ArchivalArchived, timePtr(time.Now())); err != nil {
			e.Logger.Warn("archiving superseded memory failed", "id", oldID, "error", err)
		}
		if _, err := e.Causal.InsertEdge(model.CausalEdge{
			SourceID: mem.ID, TargetID: oldID,
			Relation: model.RelationSupersedes, Strength: decision.Similarity,
			Evidence: decision.Reason,
		}); err != nil {
			e.Logger.Warn("supersedes edge insert failed", "error", err)
		}
		return mem.ID, nil

	default: // CREATE, CREATE_LINKED
		mem, err := e.Index.Create(ctx, model.Memory{
			SpecFolder:     in.SpecFolder,
			FilePath:       in.FilePath,
			ImportanceTier: model.TierNormal,
			ImportanceWt:   0.5,
			ContentHash:    preflight.ContentHash(in.Content),
			Status:         statusFor(vec),
		})
		if err != nil {
			return 0, fmt.Errorf("creating memory: %w", err)
		}
		if len(vec) > 0 {
			if err := e.Vector.Upsert(ctx, mem.ID, vec, profile); err != nil {
				return 0, fmt.Errorf("upserting vector for memory %d: %w", mem.ID, err)
			}
		}
		e.Lexical.Upsert(mem.ID, in.Content)
		if decision.Action == model.ActionCreateLinked {
			for _, relatedID := range decision.RelatedIDs {
				if _, err := e.Causal.InsertEdge(model.CausalEdge{
					SourceID: mem.ID, TargetID: relatedID,
					Relation: model.RelationSupports, Strength: decision.Similarity,
					Evidence: "create_linked: " + decision.Reason,
				}); err != nil {
					e.Logger.Warn("create_linked edge insert failed", "error", err)
				}
			}
		}
		return mem.ID, nil
	}
}

func timePtr(t time.Time) *time.Time { return &t }

func statusFor(vec []float32) model.EmbeddingStatus {
	if len(vec) > 0 {
		return model.EmbeddingSuccess
	}
	return model.EmbeddingPending
}
