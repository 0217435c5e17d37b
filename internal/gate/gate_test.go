// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package gate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aleutian-labs/speckit-memory/internal/model"
)

func TestDecide_NoCandidatesCreates(t *testing.T) {
	result := Decide(NewInput(nil, "new content"))
	assert.Equal(t, model.ActionCreate, result.Action)
	assert.Equal(t, "No similar memories found", result.Reason)
}

func TestDecide_AboveDuplicateThresholdReinforces(t *testing.T) {
	result := Decide(NewInput([]Candidate{{ID: 1, Similarity: 0.97, Content: "always retry on timeout"}}, "always retry on timeout"))
	assert.Equal(t, model.ActionReinforce, result.Action)
	assert.Equal(t, int64(1), result.Candidate.ID)
}

func TestDecide_HighMatchWithContradictionSupersedes(t *testing.T) {
	result := Decide(NewInput([]Candidate{{ID: 2, Similarity: 0.92, Content: "always retry on timeout"}}, "never retry on timeout"))
	assert.Equal(t, model.ActionSupersede, result.Action)
	require.NotNil(t, result.Contradiction)
	assert.True(t, result.Contradiction.Found)
	assert.Equal(t, "absolute", result.Contradiction.Type)
}

func TestDecide_HighMatchWithoutContradictionUpdates(t *testing.T) {
	result := Decide(NewInput([]Candidate{{ID: 3, Similarity: 0.92, Content: "retries use exponential backoff"}}, "retries use exponential backoff with jitter"))
	assert.Equal(t, model.ActionUpdate, result.Action)
}

func TestDecide_MediumMatchCreatesLinked(t *testing.T) {
	result := Decide(NewInput([]Candidate{
		{ID: 4, Similarity: 0.75, Content: "causal graph traversal"},
		{ID: 5, Similarity: 0.71, Content: "causal edge validation"},
	}, "new note about causal graph depth clamp"))
	assert.Equal(t, model.ActionCreateLinked, result.Action)
	assert.Contains(t, result.RelatedIDs, int64(5))
	assert.NotContains(t, result.RelatedIDs, int64(4)) // best candidate itself excluded
}

func TestDecide_BelowMediumMatchCreates(t *testing.T) {
	result := Decide(NewInput([]Candidate{{ID: 6, Similarity: 0.4, Content: "unrelated"}}, "something else entirely"))
	assert.Equal(t, model.ActionCreate, result.Action)
}

func TestDecide_ContradictionCheckDisabledSkipsSupersede(t *testing.T) {
	input := Input{Candidates: []Candidate{{ID: 7, Similarity: 0.92, Content: "always retry"}}, NewContent: "never retry", CheckContradictions: false}
	result := Decide(input)
	assert.Equal(t, model.ActionUpdate, result.Action)
	assert.Nil(t, result.Contradiction)
}

func TestDetectContradiction_FindsOpposingPair(t *testing.T) {
	r := DetectContradiction("you must enable logging", "you must disable logging")
	assert.True(t, r.Found)
	assert.Equal(t, "toggle", r.Type)
}

func TestDetectContradiction_NoMatchReturnsFalse(t *testing.T) {
	r := DetectContradiction("retry three times", "retry three times please")
	assert.False(t, r.Found)
}

func TestDetectContradiction_EmptyInputsNeverContradict(t *testing.T) {
	assert.False(t, DetectContradiction("", "never").Found)
	assert.False(t, DetectContradiction("always", "").Found)
	assert.False(t, DetectContradiction("   ", "   ").Found)
}

func TestBuildConflictRecord_NilForCreate(t *testing.T) {
	result := Result{Action: model.ActionCreate}
	assert.Nil(t, BuildConflictRecord("demo", result, "content"))
}

func TestBuildConflictRecord_PopulatedForNonCreate(t *testing.T) {
	result := Result{Action: model.ActionSupersede, Similarity: 0.9, Candidate: &Candidate{ID: 1, Content: "old"}}
	rec := BuildConflictRecord("demo", result, "new content")
	require.NotNil(t, rec)
	assert.Equal(t, model.ActionSupersede, rec.Action)
	assert.Equal(t, int64(1), rec.CandidateID)
}

func TestMemoryActionPriority_OrdersSupersedeFirst(t *testing.T) {
	assert.Less(t, model.ActionSupersede.Priority(), model.ActionUpdate.Priority())
	assert.Less(t, model.ActionUpdate.Priority(), model.ActionCreateLinked.Priority())
	assert.Less(t, model.ActionCreateLinked.Priority(), model.ActionReinforce.Priority())
	assert.Less(t, model.ActionReinforce.Priority(), model.ActionCreate.Priority())
}
