// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package indexer decides which spec-folder files need re-embedding, using
// the same content-hash-over-file-bytes comparison the graph snapshot
// manager uses to detect change, generalized to a per-file fast path keyed
// on mtime before falling back to a hash comparison.
package indexer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"time"

	"github.com/aleutian-labs/speckit-memory/internal/store"
)

// FileMetadata is the on-disk snapshot of a candidate file.
type FileMetadata struct {
	MtimeMs     int64
	MtimeISO    string
	ContentHash string
	FileSize    int64
}

// GetFileMetadata stats and hashes path. A missing file returns (nil, nil);
// any other I/O failure is returned as an error.
func GetFileMetadata(path string) (*FileMetadata, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	sum := sha256.Sum256(data)

	mtime := info.ModTime()
	return &FileMetadata{
		MtimeMs:     mtime.UnixMilli(),
		MtimeISO:    mtime.UTC().Format(time.RFC3339),
		ContentHash: hex.EncodeToString(sum[:]),
		FileSize:    info.Size(),
	}, nil
}

// ReindexReason is the closed set of decision codes for should_reindex.
type ReindexReason string

const (
	ReasonFileNotFound     ReindexReason = "file_not_found"
	ReasonForceRequested   ReindexReason = "force_requested"
	ReasonNewFile          ReindexReason = "new_file"
	ReasonEmbeddingPending ReindexReason = "embedding_pending"
	ReasonEmbeddingFailed  ReindexReason = "embedding_failed"
	ReasonMtimeUnchanged   ReindexReason = "mtime_unchanged"
	ReasonContentUnchanged ReindexReason = "content_unchanged"
	ReasonContentChanged   ReindexReason = "content_changed"
)

// ReindexDecision is the should_reindex verdict plus its supporting detail.
type ReindexDecision struct {
	ShouldIndex   bool
	Reason        ReindexReason
	Err           error
	FastPath      bool
	ExistingID    int64
	OldHash       string
	NewHash       string
	UpdateMtimeTo int64 // non-zero when content is unchanged but mtime drifted
}

// ShouldReindex applies the decision table against the file on disk and the
// stored memory_index row, if any.
func ShouldReindex(ctx context.Context, idx *store.MemoryIndexStore, path string, force bool) (ReindexDecision, error) {
	meta, err := GetFileMetadata(path)
	if err != nil {
		return ReindexDecision{}, err
	}
	if meta == nil {
		return ReindexDecision{ShouldIndex: false, Reason: ReasonFileNotFound, Err: fmt.Errorf("file not found: %s", path)}, nil
	}

	existing, found, err := idx.GetByPath(ctx, path)
	if err != nil {
		return ReindexDecision{}, fmt.Errorf("looking up stored metadata for %s: %w", path, err)
	}

	if !found {
		return ReindexDecision{ShouldIndex: true, Reason: ReasonNewFile}, nil
	}

	if force {
		return ReindexDecision{ShouldIndex: true, Reason: ReasonForceRequested, ExistingID: existing.ID}, nil
	}

	switch existing.Status {
	case "pending", "":
		return ReindexDecision{ShouldIndex: true, Reason: ReasonEmbeddingPending, ExistingID: existing.ID}, nil
	case "failed":
		return ReindexDecision{ShouldIndex: true, Reason: ReasonEmbeddingFailed, ExistingID: existing.ID}, nil
	}

	if existing.FileMtimeMs == meta.MtimeMs {
		return ReindexDecision{ShouldIndex: false, Reason: ReasonMtimeUnchanged, FastPath: true, ExistingID: existing.ID}, nil
	}

	if existing.ContentHash == meta.ContentHash {
		return ReindexDecision{
			ShouldIndex:   false,
			Reason:        ReasonContentUnchanged,
			ExistingID:    existing.ID,
			UpdateMtimeTo: meta.MtimeMs,
		}, nil
	}

	return ReindexDecision{
		ShouldIndex: true,
		Reason:      ReasonContentChanged,
		ExistingID:  existing.ID,
		OldHash:     existing.ContentHash,
		NewHash:     meta.ContentHash,
	}, nil
}

// CategorizeStats tallies the categorization pass.
type CategorizeStats struct {
	Total         int
	FastPathSkips int
	HashChecks    int
}

// CategorizeResult groups a batch of candidate paths by the action needed.
type CategorizeResult struct {
	NeedsIndexing    []string
	Unchanged        []string
	NeedsMtimeUpdate []MtimeUpdate
	NotFound         []string
	Stats            CategorizeStats
}

// MtimeUpdate pairs a stored memory id with the mtime it should be bumped to.
type MtimeUpdate struct {
	MemoryID int64
	MtimeMs  int64
}

// CategorizeFilesForIndexing partitions paths by should_reindex's verdict.
func CategorizeFilesForIndexing(ctx context.Context, idx *store.MemoryIndexStore, paths []string, force bool) (CategorizeResult, error) {
	var result CategorizeResult
	result.Stats.Total = len(paths)

	for _, path := range paths {
		decision, err := ShouldReindex(ctx, idx, path, force)
		if err != nil {
			return CategorizeResult{}, err
		}

		switch {
		case decision.Reason == ReasonFileNotFound:
			result.NotFound = append(result.NotFound, path)
		case decision.FastPath:
			result.Stats.FastPathSkips++
			result.Unchanged = append(result.Unchanged, path)
		case decision.ShouldIndex:
			result.Stats.HashChecks++
			result.NeedsIndexing = append(result.NeedsIndexing, path)
		case decision.UpdateMtimeTo != 0:
			result.Stats.HashChecks++
			result.NeedsMtimeUpdate = append(result.NeedsMtimeUpdate, MtimeUpdate{MemoryID: decision.ExistingID, MtimeMs: decision.UpdateMtimeTo})
		default:
			result.Unchanged = append(result.Unchanged, path)
		}
	}

	return result, nil
}

// BatchUpdateMtimes applies every mtime update and returns the count applied.
func BatchUpdateMtimes(ctx context.Context, idx *store.MemoryIndexStore, updates []MtimeUpdate) (int, error) {
	count := 0
	for _, u := range updates {
		if err := idx.UpdateMtime(ctx, u.MemoryID, u.MtimeMs); err != nil {
			return count, fmt.Errorf("updating mtime for memory %d: %w", u.MemoryID, err)
		}
		count++
	}
	return count, nil
}
