// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package intent

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify_AddFeature(t *testing.T) {
	c := Classify("add a new feature to implement retry support")
	assert.Equal(t, AddFeature, c.Intent)
	assert.False(t, c.Fallback)
}

func TestClassify_FixBug(t *testing.T) {
	c := Classify("fix the crash when the session is broken")
	assert.Equal(t, FixBug, c.Intent)
	assert.False(t, c.Fallback)
}

func TestClassify_Refactor(t *testing.T) {
	c := Classify("refactor and clean up the duplicated helper functions")
	assert.Equal(t, Refactor, c.Intent)
}

func TestClassify_SecurityAudit(t *testing.T) {
	c := Classify("run a security audit for the injection vulnerability")
	assert.Equal(t, SecurityAudit, c.Intent)
}

func TestClassify_Understand(t *testing.T) {
	c := Classify("can you explain how does the causal graph traversal work")
	assert.Equal(t, Understand, c.Intent)
}

func TestClassify_NoSignalFallsBackToUnderstand(t *testing.T) {
	c := Classify("zzz qux flibbertigibbet")
	assert.Equal(t, Understand, c.Intent)
	assert.True(t, c.Fallback)
}

func TestIntentWeights_SumToOne(t *testing.T) {
	for _, i := range []Intent{AddFeature, FixBug, Refactor, SecurityAudit, Understand} {
		w := ApplyIntentWeights(Weights{}, i)
		sum := w.Similarity + w.Importance + w.Recency + w.Popularity + w.TierBoost + w.Retrievability
		assert.InDelta(t, 1.0, sum, 0.01, "intent %s weights must sum to ~1.0", i)
	}
}

func TestGetQueryWeights_ReturnsResolvedWeights(t *testing.T) {
	qw := GetQueryWeights("fix the broken retry loop", Weights{})
	assert.Equal(t, FixBug, qw.Intent)
	assert.InDelta(t, 0.40, qw.Weights.Similarity, 1e-9)
}

func TestApplyIntentWeights_UnknownIntentReturnsBase(t *testing.T) {
	base := Weights{Similarity: 0.5, Importance: 0.5}
	got := ApplyIntentWeights(base, Intent("nonsense"))
	assert.Equal(t, base, got)
}
