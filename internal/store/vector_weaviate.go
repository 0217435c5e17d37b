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
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"

	"github.com/aleutian-labs/speckit-memory/internal/model"
)

// weaviateNamespace deterministically derives a UUID object id from an
// int64 memory id, since Weaviate requires UUID-shaped ids but memory ids
// are plain auto-increment integers from the relational store.
var weaviateNamespace = uuid.MustParse("7f3f9a2e-8f1a-4c3b-9b0a-9e7c2a6d4f10")

func weaviateObjectID(memoryID int64) string {
	return uuid.NewSHA1(weaviateNamespace, []byte(strconv.FormatInt(memoryID, 10))).String()
}

// WeaviateVectorStore is the remote ANN-backed primary vector store.
type WeaviateVectorStore struct {
	client    *weaviate.Client
	className string
	dim       int
}

// WeaviateConfig configures a remote Weaviate connection.
type WeaviateConfig struct {
	Host      string
	Scheme    string // "http" or "https"
	ClassName string
	Dimension int
}

// OpenWeaviateVectorStore connects to a Weaviate instance and ensures the
// configured class exists, creating it with vectorizer "none" (vectors are
// always supplied by the embedding chain, never computed by Weaviate
// itself).
func OpenWeaviateVectorStore(ctx context.Context, cfg WeaviateConfig) (*WeaviateVectorStore, error) {
	if cfg.ClassName == "" {
		cfg.ClassName = "Memory"
	}
	client, err := weaviate.NewClient(weaviate.Config{Host: cfg.Host, Scheme: cfg.Scheme})
	if err != nil {
		return nil, fmt.Errorf("creating weaviate client for %s: %w", cfg.Host, err)
	}

	exists, err := client.Schema().ClassExistenceChecker().WithClassName(cfg.ClassName).Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("checking weaviate class %q: %w", cfg.ClassName, err)
	}
	if !exists {
		class := &models.Class{
			Class:      cfg.ClassName,
			Vectorizer: "none",
			Properties: []*models.Property{
				{Name: "memoryId", DataType: []string{"int"}},
			},
		}
		if err := client.Schema().ClassCreator().WithClass(class).Do(ctx); err != nil {
			return nil, fmt.Errorf("creating weaviate class %q: %w", cfg.ClassName, err)
		}
	}

	return &WeaviateVectorStore{client: client, className: cfg.ClassName, dim: cfg.Dimension}, nil
}

// Upsert stores vector for memoryID, replacing any prior object at the
// same deterministic id.
func (s *WeaviateVectorStore) Upsert(ctx context.Context, memoryID int64, vector []float32, profile model.ProviderProfile) error {
	id := weaviateObjectID(memoryID)
	props := map[string]any{"memoryId": memoryID}

	exists, err := s.client.Data().Checker().WithClassName(s.className).WithID(id).Do(ctx)
	if err != nil {
		return fmt.Errorf("checking weaviate object for memory %d: %w", memoryID, err)
	}
	if exists {
		_, err := s.client.Data().Updater().
			WithClassName(s.className).
			WithID(id).
			WithVector(vector).
			WithProperties(props).
			Do(ctx)
		if err != nil {
			return fmt.Errorf("updating weaviate object for memory %d: %w", memoryID, err)
		}
		return nil
	}

	_, err = s.client.Data().Creator().
		WithClassName(s.className).
		WithID(id).
		WithVector(vector).
		WithProperties(props).
		Do(ctx)
	if err != nil {
		return fmt.Errorf("creating weaviate object for memory %d: %w", memoryID, err)
	}
	return nil
}

// Get returns the stored vector for memoryID, or (false) if no object exists.
func (s *WeaviateVectorStore) Get(ctx context.Context, memoryID int64) ([]float32, bool, error) {
	id := weaviateObjectID(memoryID)
	objs, err := s.client.Data().ObjectsGetter().
		WithClassName(s.className).
		WithID(id).
		WithVector().
		Do(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("fetching weaviate object for memory %d: %w", memoryID, err)
	}
	if len(objs) == 0 {
		return nil, false, nil
	}
	return objs[0].Vector, true, nil
}

// Delete removes the object backing memoryID. Deleting a missing id is a no-op.
func (s *WeaviateVectorStore) Delete(ctx context.Context, memoryID int64) error {
	id := weaviateObjectID(memoryID)
	if err := s.client.Data().Deleter().WithClassName(s.className).WithID(id).Do(ctx); err != nil {
		return fmt.Errorf("deleting weaviate object for memory %d: %w", memoryID, err)
	}
	return nil
}

// Search runs a nearVector query and returns the topK nearest memories.
func (s *WeaviateVectorStore) Search(ctx context.Context, query []float32, topK int) ([]VectorHit, error) {
	if topK <= 0 {
		topK = 10
	}
	nearVector := s.client.GraphQL().NearVectorArgBuilder().WithVector(query)

	fields := []graphql.Field{
		{Name: "memoryId"},
		{Name: "_additional", Fields: []graphql.Field{{Name: "distance"}}},
	}

	result, err := s.client.GraphQL().Get().
		WithClassName(s.className).
		WithNearVector(nearVector).
		WithLimit(topK).
		WithFields(fields...).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("weaviate nearVector search: %w", err)
	}
	if len(result.Errors) > 0 {
		return nil, fmt.Errorf("weaviate nearVector search returned errors: %v", result.Errors)
	}

	return parseGetResult(result.Data, s.className)
}

func parseGetResult(data map[string]any, className string) ([]VectorHit, error) {
	get, ok := data["Get"].(map[string]any)
	if !ok {
		return nil, nil
	}
	rows, ok := get[className].([]any)
	if !ok {
		return nil, nil
	}

	hits := make([]VectorHit, 0, len(rows))
	for _, row := range rows {
		obj, ok := row.(map[string]any)
		if !ok {
			continue
		}
		memID, ok := numberField(obj["memoryId"])
		if !ok {
			continue
		}
		var distance float64
		if additional, ok := obj["_additional"].(map[string]any); ok {
			if d, ok := numberField(additional["distance"]); ok {
				distance = d
			}
		}
		// Weaviate's cosine distance is 1 - cosine similarity.
		hits = append(hits, VectorHit{MemoryID: int64(memID), Score: float32(1 - distance)})
	}
	return hits, nil
}

func numberField(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

// Stats reports the remote class's object count via an Aggregate query.
func (s *WeaviateVectorStore) Stats(ctx context.Context) (VectorStats, error) {
	result, err := s.client.GraphQL().Aggregate().
		WithClassName(s.className).
		WithFields(graphql.Field{Name: "meta", Fields: []graphql.Field{{Name: "count"}}}).
		Do(ctx)
	if err != nil {
		return VectorStats{}, fmt.Errorf("aggregating weaviate class %q: %w", s.className, err)
	}
	count := 0
	if agg, ok := result.Data["Aggregate"].(map[string]any); ok {
		if rows, ok := agg[s.className].([]any); ok && len(rows) > 0 {
			if obj, ok := rows[0].(map[string]any); ok {
				if meta, ok := obj["meta"].(map[string]any); ok {
					if c, ok := numberField(meta["count"]); ok {
						count = int(c)
					}
				}
			}
		}
	}
	return VectorStats{Count: count, Dimension: s.dim, Backend: "weaviate"}, nil
}

// Available pings the instance's readiness endpoint.
func (s *WeaviateVectorStore) Available(ctx context.Context) bool {
	ready, err := s.client.Misc().ReadyChecker().Do(ctx)
	return err == nil && ready
}

// Dimension returns the vector width this store was configured with.
func (s *WeaviateVectorStore) Dimension() int { return s.dim }

// Close is a no-op: the weaviate client holds no long-lived connection.
func (s *WeaviateVectorStore) Close() error { return nil }

var _ VectorStore = (*WeaviateVectorStore)(nil)
