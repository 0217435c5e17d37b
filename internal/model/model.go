// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package model holds the shared domain types for the memory engine:
// memories, embeddings, causal edges, sessions, and working-memory
// entries. Every other package depends on model; model depends on
// nothing else in this module.
package model

import "time"

// ArchivalState is the lifecycle state of a Memory row.
type ArchivalState int

const (
	// ArchivalActive is the default state for a memory that has not been archived.
	ArchivalActive ArchivalState = iota
	// ArchivalArchived marks a memory moved out of active recall by the archival manager.
	ArchivalArchived
	// ArchivalSoftDeleted marks a memory excluded from all retrieval but retained for audit.
	ArchivalSoftDeleted
)

// ImportanceTier classifies how eligible a memory is for archival.
type ImportanceTier string

const (
	TierNormal         ImportanceTier = "normal"
	TierConstitutional ImportanceTier = "constitutional"
	TierCritical       ImportanceTier = "critical"
)

// Protected returns true if tier is excluded from archival regardless of age.
func (t ImportanceTier) Protected() bool {
	return t == TierConstitutional || t == TierCritical
}

// EmbeddingStatus tracks whether a memory's vector has been computed.
type EmbeddingStatus string

const (
	EmbeddingPending EmbeddingStatus = "pending"
	EmbeddingSuccess EmbeddingStatus = "success"
	EmbeddingFailed  EmbeddingStatus = "failed"
)

// Memory is a single indexed note from a spec folder.
type Memory struct {
	ID             int64
	SpecFolder     string
	FilePath       string
	Title          string
	ImportanceTier ImportanceTier
	ImportanceWt   float64
	ContentHash    string
	FileMtimeMs    int64
	Status         EmbeddingStatus
	CreatedAt      time.Time
	UpdatedAt      time.Time
	LastAccessed   time.Time
	IsArchived     ArchivalState
	ArchivedAt     *time.Time
	AnchorID       string
}

// ProviderProfile identifies the embedding model that produced a vector.
type ProviderProfile struct {
	Provider string
	Model    string
	Dim      int
}

// Embedding is a dense vector bound to a memory and the profile that produced it.
type Embedding struct {
	MemoryID  int64
	Vector    []float32
	Profile   ProviderProfile
	CreatedAt time.Time
}

// CausalRelation is one of the six closed causal-edge relation types.
type CausalRelation string

const (
	RelationCaused        CausalRelation = "caused"
	RelationEnabled       CausalRelation = "enabled"
	RelationSupersedes    CausalRelation = "supersedes"
	RelationContradicts   CausalRelation = "contradicts"
	RelationDerivedFrom   CausalRelation = "derived_from"
	RelationSupports      CausalRelation = "supports"
)

// ValidRelations is the closed set of causal-edge relation types.
var ValidRelations = map[CausalRelation]bool{
	RelationCaused:      true,
	RelationEnabled:     true,
	RelationSupersedes:  true,
	RelationContradicts: true,
	RelationDerivedFrom: true,
	RelationSupports:    true,
}

// CausalEdge is a typed, directed relation between two memories.
type CausalEdge struct {
	ID          int64
	SourceID    int64
	TargetID    int64
	Relation    CausalRelation
	Strength    float64
	Evidence    string
	ExtractedAt time.Time
}

// Session is a conversational scope for working memory.
type Session struct {
	SessionID    string
	CreatedAt    time.Time
	LastActivity time.Time
}

// WorkingMemoryTier is the coarse attention band over a score.
type WorkingMemoryTier string

const (
	TierHot  WorkingMemoryTier = "HOT"
	TierWarm WorkingMemoryTier = "WARM"
	TierCold WorkingMemoryTier = "COLD"
)

// CalculateTier maps an attention score in [0,1] to its coarse tier.
func CalculateTier(score float64) WorkingMemoryTier {
	switch {
	case score >= 0.80:
		return TierHot
	case score >= 0.25:
		return TierWarm
	default:
		return TierCold
	}
}

// WorkingMemoryEntry is a per-session, per-memory attention record.
type WorkingMemoryEntry struct {
	SessionID      string
	MemoryID       int64
	AttentionScore float64
	Tier           WorkingMemoryTier
	LastTurn       int
}

// FallbackTier names a tier in the embedding provider chain.
type FallbackTier string

const (
	TierPrimary   FallbackTier = "primary"
	TierSecondary FallbackTier = "secondary"
	TierTertiary  FallbackTier = "tertiary"
)

// FallbackReason is the closed set of classified fallback causes.
type FallbackReason string

const (
	ReasonAPIKeyInvalid   FallbackReason = "api_key_invalid"
	ReasonAPIRateLimited  FallbackReason = "api_rate_limited"
	ReasonAPITimeout      FallbackReason = "api_timeout"
	ReasonAPIUnavailable  FallbackReason = "api_unavailable"
	ReasonNetworkError    FallbackReason = "network_error"
	ReasonLocalError      FallbackReason = "local_error"
	ReasonAPIError        FallbackReason = "api_error"
)

// FallbackLogEntry records one fallback event in the embedding provider chain.
type FallbackLogEntry struct {
	Timestamp time.Time
	Tier      FallbackTier
	Provider  string
	Reason    FallbackReason
	ErrorMsg  string
	ErrorCode string
}

// MemoryAction is the decision produced by the prediction-error gate.
type MemoryAction string

const (
	ActionCreate       MemoryAction = "CREATE"
	ActionUpdate       MemoryAction = "UPDATE"
	ActionSupersede    MemoryAction = "SUPERSEDE"
	ActionReinforce    MemoryAction = "REINFORCE"
	ActionCreateLinked MemoryAction = "CREATE_LINKED"
)

// actionPriority orders actions for dashboards/reconciliation per spec §4.9.
var actionPriority = map[MemoryAction]int{
	ActionSupersede:    0,
	ActionUpdate:       1,
	ActionCreateLinked: 2,
	ActionReinforce:    3,
	ActionCreate:       4,
}

// Priority returns the dashboard ordering rank for an action (lower sorts first).
func (a MemoryAction) Priority() int {
	return actionPriority[a]
}

// ConflictRecord captures a non-CREATE gate decision for later review.
type ConflictRecord struct {
	Timestamp             time.Time
	SpecFolder            string
	Action                MemoryAction
	Similarity            float64
	CandidateID           int64
	CandidatePreview      string
	NewContentPreview     string
	ContradictionPattern  string
}
