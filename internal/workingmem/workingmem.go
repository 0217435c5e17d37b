// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package workingmem implements session-scoped attention tracking: which
// memories a conversation is currently paying attention to, how hot that
// attention is, and how it spreads across the causal graph when one memory
// in working memory gets reinforced.
package workingmem

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/aleutian-labs/speckit-memory/internal/memerr"
	"github.com/aleutian-labs/speckit-memory/internal/model"
	"github.com/aleutian-labs/speckit-memory/internal/store"
)

// Manager is the session/attention store, backed by the sessions and
// working_memory tables in the shared relational schema.
type Manager struct {
	db *sql.DB
}

// NewManager wraps db, which must already have store.CoreSchema applied.
func NewManager(db *sql.DB) *Manager {
	return &Manager{db: db}
}

func validateSessionID(sessionID string) error {
	if sessionID == "" {
		return memerr.New(memerr.E072SessionInvalid, "session_id must not be empty", true, "supply a non-empty session id", nil)
	}
	return nil
}

func validateMemoryID(memoryID int64) error {
	if memoryID < 0 {
		return memerr.New(memerr.E032ParameterOutOfRange, "memory_id must be a non-negative integer", true, "supply a non-negative memory id", map[string]any{"memory_id": memoryID})
	}
	return nil
}

func validateScore(score float64) error {
	if score < 0.0 || score > 1.0 {
		return memerr.New(memerr.E032ParameterOutOfRange, "attention score must be in [0,1]", true, "supply a score between 0 and 1", map[string]any{"score": score})
	}
	return nil
}

func validateTurn(turn int) error {
	if turn < 0 {
		return memerr.New(memerr.E032ParameterOutOfRange, "turn must be >= 0", true, "supply a non-negative turn number", map[string]any{"turn": turn})
	}
	return nil
}

// GetOrCreateSession returns the session, creating it (and bumping
// last_activity if it already existed) when needed.
func (m *Manager) GetOrCreateSession(ctx context.Context, sessionID string) (model.Session, bool, error) {
	if err := validateSessionID(sessionID); err != nil {
		return model.Session{}, false, err
	}

	now := time.Now()
	existing, found, err := m.getSession(ctx, sessionID)
	if err != nil {
		return model.Session{}, false, err
	}
	if found {
		if _, err := m.db.ExecContext(ctx, `UPDATE sessions SET last_activity = ? WHERE session_id = ?`, now, sessionID); err != nil {
			return model.Session{}, false, fmt.Errorf("touching session %q: %w", sessionID, err)
		}
		existing.LastActivity = now
		return existing, false, nil
	}

	session := model.Session{SessionID: sessionID, CreatedAt: now, LastActivity: now}
	if _, err := m.db.ExecContext(ctx, `
		INSERT INTO sessions (session_id, created_at, last_activity) VALUES (?, ?, ?)
	`, session.SessionID, session.CreatedAt, session.LastActivity); err != nil {
		return model.Session{}, false, fmt.Errorf("creating session %q: %w", sessionID, err)
	}
	return session, true, nil
}

func (m *Manager) getSession(ctx context.Context, sessionID string) (model.Session, bool, error) {
	row := m.db.QueryRowContext(ctx, `SELECT session_id, created_at, last_activity FROM sessions WHERE session_id = ?`, sessionID)
	var s model.Session
	err := row.Scan(&s.SessionID, &s.CreatedAt, &s.LastActivity)
	if err == sql.ErrNoRows {
		return model.Session{}, false, nil
	}
	if err != nil {
		return model.Session{}, false, fmt.Errorf("reading session %q: %w", sessionID, err)
	}
	return s, true, nil
}

// ClearSession deletes a session and, via ON DELETE CASCADE, every
// working_memory row scoped to it.
func (m *Manager) ClearSession(ctx context.Context, sessionID string) error {
	if err := validateSessionID(sessionID); err != nil {
		return err
	}
	if _, err := m.db.ExecContext(ctx, `DELETE FROM sessions WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("clearing session %q: %w", sessionID, err)
	}
	return nil
}

// CleanupOldSessions deletes every session whose last_activity is older
// than the cutoff, returning how many were removed.
func (m *Manager) CleanupOldSessions(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := m.db.ExecContext(ctx, `DELETE FROM sessions WHERE last_activity < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("cleaning up sessions older than %s: %w", cutoff, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting cleaned up sessions: %w", err)
	}
	return int(n), nil
}

// GetWorkingMemory returns the attention entry for one (session, memory)
// pair, or (false) if none exists.
func (m *Manager) GetWorkingMemory(ctx context.Context, sessionID string, memoryID int64) (model.WorkingMemoryEntry, bool, error) {
	if err := validateSessionID(sessionID); err != nil {
		return model.WorkingMemoryEntry{}, false, err
	}
	if err := validateMemoryID(memoryID); err != nil {
		return model.WorkingMemoryEntry{}, false, err
	}
	row := m.db.QueryRowContext(ctx, `
		SELECT session_id, memory_id, attention_score, tier, last_turn
		FROM working_memory WHERE session_id = ? AND memory_id = ?
	`, sessionID, memoryID)
	e, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return model.WorkingMemoryEntry{}, false, nil
	}
	if err != nil {
		return model.WorkingMemoryEntry{}, false, fmt.Errorf("reading working memory entry: %w", err)
	}
	return e, true, nil
}

// GetSessionMemories returns every working-memory entry for a session,
// hottest attention score first.
func (m *Manager) GetSessionMemories(ctx context.Context, sessionID string) ([]model.WorkingMemoryEntry, error) {
	if err := validateSessionID(sessionID); err != nil {
		return nil, err
	}
	rows, err := m.db.QueryContext(ctx, `
		SELECT session_id, memory_id, attention_score, tier, last_turn
		FROM working_memory WHERE session_id = ? ORDER BY attention_score DESC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("listing session memories for %q: %w", sessionID, err)
	}
	defer rows.Close()

	var out []model.WorkingMemoryEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning working memory entry: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// SetAttentionScore upserts the attention score for (session, memory),
// recomputing its tier, and bumps the session's last_activity.
func (m *Manager) SetAttentionScore(ctx context.Context, sessionID string, memoryID int64, score float64, turn int) (model.WorkingMemoryEntry, error) {
	if err := validateSessionID(sessionID); err != nil {
		return model.WorkingMemoryEntry{}, err
	}
	if err := validateMemoryID(memoryID); err != nil {
		return model.WorkingMemoryEntry{}, err
	}
	if err := validateScore(score); err != nil {
		return model.WorkingMemoryEntry{}, err
	}
	if err := validateTurn(turn); err != nil {
		return model.WorkingMemoryEntry{}, err
	}

	if _, _, err := m.GetOrCreateSession(ctx, sessionID); err != nil {
		return model.WorkingMemoryEntry{}, err
	}

	tier := model.CalculateTier(score)
	_, err := m.db.ExecContext(ctx, `
		INSERT INTO working_memory (session_id, memory_id, attention_score, tier, last_turn)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (session_id, memory_id) DO UPDATE SET
			attention_score = excluded.attention_score,
			tier = excluded.tier,
			last_turn = excluded.last_turn
	`, sessionID, memoryID, score, string(tier), turn)
	if err != nil {
		return model.WorkingMemoryEntry{}, fmt.Errorf("setting attention score for session %q memory %d: %w", sessionID, memoryID, err)
	}
	return model.WorkingMemoryEntry{SessionID: sessionID, MemoryID: memoryID, AttentionScore: score, Tier: tier, LastTurn: turn}, nil
}

// ScoreUpdate is one entry of a batch_update_scores request.
type ScoreUpdate struct {
	MemoryID int64
	Score    float64
	Turn     int
}

// BatchResult reports partial-failure outcome for BatchUpdateScores.
type BatchResult struct {
	Total    int
	Updated  int
	Failed   int
	Errors   []error
	Entries  []model.WorkingMemoryEntry
}

// BatchUpdateScores applies every update independently; a non-empty list
// is required, but one bad entry never aborts the rest.
func (m *Manager) BatchUpdateScores(ctx context.Context, sessionID string, updates []ScoreUpdate) (BatchResult, error) {
	if err := validateSessionID(sessionID); err != nil {
		return BatchResult{}, err
	}
	if len(updates) == 0 {
		return BatchResult{}, memerr.New(memerr.E030MissingParameter, "updates must be a non-empty list", true, "supply at least one score update", nil)
	}

	result := BatchResult{Total: len(updates)}
	for _, u := range updates {
		entry, err := m.SetAttentionScore(ctx, sessionID, u.MemoryID, u.Score, u.Turn)
		if err != nil {
			result.Failed++
			result.Errors = append(result.Errors, err)
			continue
		}
		result.Updated++
		result.Entries = append(result.Entries, entry)
	}
	return result, nil
}

// SessionStats is the {hot, warm, cold, total} tier breakdown for a session.
type SessionStats struct {
	Hot   int
	Warm  int
	Cold  int
	Total int
}

// GetSessionStats tallies a session's working-memory entries by tier.
func (m *Manager) GetSessionStats(ctx context.Context, sessionID string) (SessionStats, error) {
	if err := validateSessionID(sessionID); err != nil {
		return SessionStats{}, err
	}
	row := m.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			SUM(CASE WHEN tier = 'HOT' THEN 1 ELSE 0 END),
			SUM(CASE WHEN tier = 'WARM' THEN 1 ELSE 0 END),
			SUM(CASE WHEN tier = 'COLD' THEN 1 ELSE 0 END)
		FROM working_memory WHERE session_id = ?
	`, sessionID)
	var total int
	var hot, warm, cold sql.NullInt64
	if err := row.Scan(&total, &hot, &warm, &cold); err != nil {
		return SessionStats{}, fmt.Errorf("computing session stats for %q: %w", sessionID, err)
	}
	return SessionStats{Total: total, Hot: int(hot.Int64), Warm: int(warm.Int64), Cold: int(cold.Int64)}, nil
}

func scanEntry(row interface{ Scan(dest ...any) error }) (model.WorkingMemoryEntry, error) {
	var e model.WorkingMemoryEntry
	var tier string
	if err := row.Scan(&e.SessionID, &e.MemoryID, &e.AttentionScore, &tier, &e.LastTurn); err != nil {
		return model.WorkingMemoryEntry{}, err
	}
	e.Tier = model.WorkingMemoryTier(tier)
	return e, nil
}

// Spreading activation defaults.
const (
	DefaultBoostAmount         = 0.35
	DefaultMaxRelatedMemories  = 5
	maxScoreCap                = 1.0
)

// BoostOptions configures one spreading-activation pass.
type BoostOptions struct {
	BoostAmount        float64
	MaxRelatedMemories int
	Turn               int
}

func (o BoostOptions) resolved() BoostOptions {
	if o.BoostAmount <= 0 {
		o.BoostAmount = DefaultBoostAmount
	}
	if o.MaxRelatedMemories <= 0 {
		o.MaxRelatedMemories = DefaultMaxRelatedMemories
	}
	return o
}

// BoostResult reports which memories were boosted by spreading activation.
type BoostResult struct {
	Source  int64
	Boosted []model.WorkingMemoryEntry
}

// boostKey identifies one (session, source, target) spread, used to stop a
// memory being boosted twice through different causal paths in one turn.
type boostKey struct {
	session string
	source  int64
	target  int64
}

// SpreadActivation boosts the attention score of every memory causally
// connected to source (in either direction) by boost_amount, capped at
// 1.0, up to max_related_memories targets. A boosted_this_turn set keyed
// by (session, source, target) guarantees each edge only fires once per
// call, so a cyclic graph can't double-boost or loop forever.
func (m *Manager) SpreadActivation(ctx context.Context, sessionID string, causal *store.CausalStore, sourceID int64, opts BoostOptions) (BoostResult, error) {
	if err := validateSessionID(sessionID); err != nil {
		return BoostResult{}, err
	}
	opts = opts.resolved()

	edges := causal.GetAllEdges(sourceID)
	allEdges := append(append([]model.CausalEdge(nil), edges.Outgoing...), edges.Incoming...)

	boostedThisTurn := make(map[boostKey]bool)
	var boosted []model.WorkingMemoryEntry

	for _, e := range allEdges {
		if len(boosted) >= opts.MaxRelatedMemories {
			break
		}
		target := e.TargetID
		if target == sourceID {
			target = e.SourceID
		}
		key := boostKey{session: sessionID, source: sourceID, target: target}
		if boostedThisTurn[key] {
			continue
		}
		boostedThisTurn[key] = true

		existing, _, err := m.GetWorkingMemory(ctx, sessionID, target)
		if err != nil {
			return BoostResult{}, err
		}
		newScore := existing.AttentionScore + opts.BoostAmount
		if newScore > maxScoreCap {
			newScore = maxScoreCap
		}
		entry, err := m.SetAttentionScore(ctx, sessionID, target, newScore, opts.Turn)
		if err != nil {
			return BoostResult{}, err
		}
		boosted = append(boosted, entry)
	}

	return BoostResult{Source: sourceID, Boosted: boosted}, nil
}
