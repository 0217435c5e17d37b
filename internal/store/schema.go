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

// SchemaVersion is the current relational schema version.
const SchemaVersion = 1

// CoreSchema is the full relational schema backing the memory index, the
// causal edge graph, session-scoped working memory, and FTS over memory
// content. Applied with modernc.org/sqlite (pure Go, CGO-free), the same
// driver convention used elsewhere across the retrieval pack.
const CoreSchema = `
PRAGMA foreign_keys = ON;

CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER PRIMARY KEY,
	applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

-- =============================================================================
-- MEMORY INDEX
-- Single source of truth for a memory row; referenced by id elsewhere.
-- =============================================================================
CREATE TABLE IF NOT EXISTS memory_index (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	spec_folder TEXT NOT NULL,
	file_path TEXT NOT NULL UNIQUE,
	title TEXT NOT NULL DEFAULT '',
	importance_tier TEXT NOT NULL DEFAULT 'normal',
	importance_weight REAL NOT NULL DEFAULT 0.5 CHECK (importance_weight >= 0.0 AND importance_weight <= 1.0),
	content_hash TEXT NOT NULL,
	file_mtime_ms INTEGER NOT NULL,
	embedding_status TEXT NOT NULL DEFAULT 'pending' CHECK (embedding_status IN ('pending', 'success', 'failed')),
	anchor_id TEXT,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	last_accessed DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	is_archived INTEGER NOT NULL DEFAULT 0 CHECK (is_archived IN (0, 1, 2)),
	archived_at DATETIME
);

CREATE INDEX IF NOT EXISTS idx_memory_index_spec_folder ON memory_index(spec_folder);
CREATE INDEX IF NOT EXISTS idx_memory_index_last_accessed ON memory_index(last_accessed);
CREATE INDEX IF NOT EXISTS idx_memory_index_importance_tier ON memory_index(importance_tier);
CREATE INDEX IF NOT EXISTS idx_memory_index_is_archived ON memory_index(is_archived);

-- =============================================================================
-- EMBEDDINGS
-- Owned exclusively by the vector store; memory_index never writes here.
-- =============================================================================
CREATE TABLE IF NOT EXISTS memory_embeddings (
	memory_id INTEGER PRIMARY KEY REFERENCES memory_index(id) ON DELETE CASCADE,
	provider TEXT NOT NULL,
	model TEXT NOT NULL,
	dim INTEGER NOT NULL,
	vector BLOB NOT NULL,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

-- =============================================================================
-- FULL-TEXT INDEX
-- =============================================================================
CREATE VIRTUAL TABLE IF NOT EXISTS memory_fts USING fts5(
	content,
	content='',
	tokenize='porter unicode61'
);

-- =============================================================================
-- CAUSAL EDGES
-- =============================================================================
CREATE TABLE IF NOT EXISTS causal_edges (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	source_id INTEGER NOT NULL REFERENCES memory_index(id) ON DELETE CASCADE,
	target_id INTEGER NOT NULL REFERENCES memory_index(id) ON DELETE CASCADE,
	relation TEXT NOT NULL CHECK (
		relation IN ('caused', 'enabled', 'supersedes', 'contradicts', 'derived_from', 'supports')
	),
	strength REAL NOT NULL CHECK (strength >= 0.0 AND strength <= 1.0),
	evidence TEXT,
	extracted_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	UNIQUE (source_id, target_id, relation)
);

CREATE INDEX IF NOT EXISTS idx_causal_edges_source ON causal_edges(source_id);
CREATE INDEX IF NOT EXISTS idx_causal_edges_target ON causal_edges(target_id);

-- =============================================================================
-- SESSIONS
-- =============================================================================
CREATE TABLE IF NOT EXISTS sessions (
	session_id TEXT PRIMARY KEY,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	last_activity DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

-- =============================================================================
-- WORKING MEMORY
-- =============================================================================
CREATE TABLE IF NOT EXISTS working_memory (
	session_id TEXT NOT NULL REFERENCES sessions(session_id) ON DELETE CASCADE,
	memory_id INTEGER NOT NULL REFERENCES memory_index(id) ON DELETE CASCADE,
	attention_score REAL NOT NULL CHECK (attention_score >= 0.0 AND attention_score <= 1.0),
	tier TEXT NOT NULL CHECK (tier IN ('HOT', 'WARM', 'COLD')),
	last_turn INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (session_id, memory_id)
);

CREATE INDEX IF NOT EXISTS idx_working_memory_session ON working_memory(session_id);
`
