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
	"os"
	"time"

	"github.com/aleutian-labs/speckit-memory/internal/memerr"
	"github.com/aleutian-labs/speckit-memory/internal/model"
	"github.com/aleutian-labs/speckit-memory/internal/preflight"
)

const (
	toolMemoryUpdate   = "memory_update"
	toolMemoryDelete   = "memory_delete"
	toolMemoryValidate = "memory_validate"
)

// MemoryUpdateInput carries the mutable fields a caller may change on an
// existing memory. Zero-value fields are left untouched except Content,
// which re-embeds and re-indexes when non-empty.
type MemoryUpdateInput struct {
	ID             int64
	Title          string
	ImportanceTier model.ImportanceTier
	ImportanceWt   float64
	Content        string // when non-empty, replaces the file content and re-embeds
}

func (s *Surface) MemoryUpdateDescribe() (string, int) {
	return describe(toolMemoryUpdate, "Mutates an existing memory's title, tier, weight, or content in place.")
}

// MemoryUpdate applies in's fields to the stored memory, re-embedding and
// re-indexing when content changed.
func (s *Surface) MemoryUpdate(ctx context.Context, in MemoryUpdateInput) Envelope[model.Memory] {
	mem, found, err := s.Engine.Index.Get(ctx, in.ID)
	if err != nil {
		return fail[model.Memory](toolMemoryUpdate, memerr.New(memerr.E024DBReadFailed, err.Error(), true, "retry", nil))
	}
	if !found {
		return fail[model.Memory](toolMemoryUpdate, memerr.New(memerr.E080MemoryNotFound, "memory not found", true, "memory_list()", map[string]any{"memory_id": in.ID}))
	}

	if in.Title != "" {
		mem.Title = in.Title
	}
	if in.ImportanceTier != "" {
		mem.ImportanceTier = in.ImportanceTier
	}
	if in.ImportanceWt != 0 {
		mem.ImportanceWt = in.ImportanceWt
	}

	if in.Content != "" {
		if err := os.WriteFile(mem.FilePath, []byte(in.Content), 0o644); err != nil {
			return fail[model.Memory](toolMemoryUpdate, memerr.New(memerr.E023DBWriteFailed, err.Error(), true, "check file permissions", nil))
		}
		mem.ContentHash = preflight.ContentHash(in.Content)
		mem.Status = model.EmbeddingPending

		if vec, profile, embedErr := s.Engine.EmbedForSearch(ctx, in.Content); embedErr == nil && len(vec) > 0 {
			if err := s.Engine.Vector.Upsert(ctx, mem.ID, vec, profile); err != nil {
				s.Logger.Warn("memory_update vector upsert failed", "memory_id", mem.ID, "error", err)
			} else {
				mem.Status = model.EmbeddingSuccess
			}
		} else if embedErr != nil {
			s.Logger.Warn("memory_update embedding failed; content saved lexical-only", "memory_id", mem.ID, "error", embedErr)
		}
		s.Engine.Lexical.Upsert(mem.ID, in.Content)
	}

	if err := s.Engine.Index.Update(ctx, mem); err != nil {
		return fail[model.Memory](toolMemoryUpdate, memerr.New(memerr.E082MemoryUpdateFailed, err.Error(), true, "retry", map[string]any{"memory_id": in.ID}))
	}
	return ok(mem)
}

func (s *Surface) MemoryDeleteDescribe() (string, int) {
	return describe(toolMemoryDelete, "Removes a memory: soft-delete (default, audit-retained) or hard delete with hard=true.")
}

// MemoryDelete soft-deletes by default (excluded from retrieval, retained
// for audit) or physically removes the row, its vector, and its causal
// edges when hard is true.
func (s *Surface) MemoryDelete(ctx context.Context, id int64, hard bool) Envelope[struct{}] {
	_, found, err := s.Engine.Index.Get(ctx, id)
	if err != nil {
		return fail[struct{}](toolMemoryDelete, memerr.New(memerr.E024DBReadFailed, err.Error(), true, "retry", nil))
	}
	if !found {
		return fail[struct{}](toolMemoryDelete, memerr.New(memerr.E080MemoryNotFound, "memory not found", true, "memory_list()", map[string]any{"memory_id": id}))
	}

	if !hard {
		now := time.Now()
		if err := s.Engine.Index.SetArchivalState(ctx, id, model.ArchivalSoftDeleted, &now); err != nil {
			return fail[struct{}](toolMemoryDelete, memerr.New(memerr.E083MemoryDeleteFailed, err.Error(), true, "retry", map[string]any{"memory_id": id}))
		}
		return ok(struct{}{})
	}

	if err := s.Engine.Index.Delete(ctx, id); err != nil {
		return fail[struct{}](toolMemoryDelete, memerr.New(memerr.E083MemoryDeleteFailed, err.Error(), true, "retry", map[string]any{"memory_id": id}))
	}
	if err := s.Engine.Vector.Delete(ctx, id); err != nil {
		s.Logger.Warn("memory_delete: vector cleanup failed", "memory_id", id, "error", err)
	}
	s.Engine.Lexical.Delete(id)
	s.Engine.Causal.DeleteEdgesForMemory(id)
	return ok(struct{}{})
}

func (s *Surface) MemoryValidateDescribe() (string, int) {
	return describe(toolMemoryValidate, "Runs anchor, token-budget, and size checks against content without saving it.")
}

// MemoryValidate runs the same sub-checks memory_save's preflight does,
// minus duplicate detection (there is nothing to compare against yet for
// standalone validation), so a caller can check formatting before writing
// a file to disk.
func (s *Surface) MemoryValidate(ctx context.Context, content string, maxTokens int) Envelope[preflight.Result] {
	if content == "" {
		return fail[preflight.Result](toolMemoryValidate, memerr.New(memerr.E030MissingParameter, "content must not be empty", true, "supply content to validate", nil))
	}
	if maxTokens <= 0 {
		maxTokens = 8000
	}
	result, err := preflight.RunPreflight(ctx, preflight.Input{
		Content: content, MinLength: 1, MaxTokens: maxTokens, WithOverhead: true,
		CheckAnchorsEnabled: true, CheckDuplicateEnabled: false,
		CheckTokensEnabled: true, CheckSizeEnabled: true,
	}, nil, nil)
	if err != nil {
		return fail[preflight.Result](toolMemoryValidate, memerr.New(memerr.E031InvalidParameter, err.Error(), true, "", nil))
	}
	return ok(result)
}
