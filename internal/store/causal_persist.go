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
	"database/sql"
	"fmt"

	"github.com/aleutian-labs/speckit-memory/internal/model"
)

// LoadCausalStore rebuilds an in-memory CausalStore from the causal_edges
// table, the authoritative durable copy. The in-memory store serves reads
// and traversal; the table exists for restart durability and external
// inspection (§6 persisted state layout).
func LoadCausalStore(ctx context.Context, db *sql.DB) (*CausalStore, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, source_id, target_id, relation, strength, COALESCE(evidence, ''), extracted_at
		FROM causal_edges
	`)
	if err != nil {
		return nil, fmt.Errorf("loading causal edges: %w", err)
	}
	defer rows.Close()

	s := NewCausalStore()
	var maxID int64
	for rows.Next() {
		var e model.CausalEdge
		var relation string
		if err := rows.Scan(&e.ID, &e.SourceID, &e.TargetID, &relation, &e.Strength, &e.Evidence, &e.ExtractedAt); err != nil {
			return nil, fmt.Errorf("scanning causal edge: %w", err)
		}
		e.Relation = model.CausalRelation(relation)
		s.edges[e.ID] = e
		s.bySource[e.SourceID] = append(s.bySource[e.SourceID], e.ID)
		s.byTarget[e.TargetID] = append(s.byTarget[e.TargetID], e.ID)
		if e.ID > maxID {
			maxID = e.ID
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating causal edges: %w", err)
	}
	s.nextID = maxID
	return s, nil
}

// PersistEdge writes a single edge to causal_edges, used after InsertEdge
// succeeds against the in-memory store.
func PersistEdge(ctx context.Context, db *sql.DB, e model.CausalEdge) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO causal_edges (id, source_id, target_id, relation, strength, evidence, extracted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, e.ID, e.SourceID, e.TargetID, string(e.Relation), e.Strength, e.Evidence, e.ExtractedAt)
	if err != nil {
		return fmt.Errorf("persisting causal edge %d: %w", e.ID, err)
	}
	return nil
}

// PersistEdgeDelete removes a single edge from causal_edges.
func PersistEdgeDelete(ctx context.Context, db *sql.DB, id int64) error {
	if _, err := db.ExecContext(ctx, `DELETE FROM causal_edges WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting persisted causal edge %d: %w", id, err)
	}
	return nil
}
