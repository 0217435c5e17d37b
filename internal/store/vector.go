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
	"context"

	"github.com/aleutian-labs/speckit-memory/internal/model"
)

// VectorHit is one ranked result from a dense-vector nearest-neighbor search.
type VectorHit struct {
	MemoryID int64
	Score    float32 // cosine similarity, higher is better
}

// VectorStats summarizes a vector store for memory_health/get_stats.
type VectorStats struct {
	Count     int
	Dimension int
	Backend   string
}

// VectorStore is the contract every dense-vector backend (remote ANN index
// or local brute-force fallback) must satisfy.
type VectorStore interface {
	// Upsert stores or replaces the vector for a memory id.
	Upsert(ctx context.Context, memoryID int64, vector []float32, profile model.ProviderProfile) error
	// Search returns the topK nearest neighbors of query, best first.
	Search(ctx context.Context, query []float32, topK int) ([]VectorHit, error)
	// Delete removes a memory's vector. Deleting a missing id is a no-op.
	Delete(ctx context.Context, memoryID int64) error
	// Get returns the stored vector for a memory id, or (false) if absent.
	Get(ctx context.Context, memoryID int64) ([]float32, bool, error)
	// Stats reports the store's current size and configuration.
	Stats(ctx context.Context) (VectorStats, error)
	// Available reports whether the backend is currently reachable.
	Available(ctx context.Context) bool
	// Dimension returns the vector width this store was opened with.
	Dimension() int
	// Close releases backend resources.
	Close() error
}
