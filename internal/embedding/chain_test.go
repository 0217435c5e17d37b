// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package embedding

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aleutian-labs/speckit-memory/internal/model"
)

// fakeProvider is an in-test Provider stand-in so chain tests never touch
// the network.
type fakeProvider struct {
	tier    model.FallbackTier
	name    string
	vec     []float32
	err     error
}

func (f *fakeProvider) Tier() model.FallbackTier { return f.tier }
func (f *fakeProvider) Profile() model.ProviderProfile {
	return model.ProviderProfile{Provider: f.name, Dim: len(f.vec)}
}
func (f *fakeProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	return f.vec, f.err
}

func TestChain_Embed_UsesFirstSuccessfulTier(t *testing.T) {
	primary := &fakeProvider{tier: model.TierPrimary, name: "voyage", err: &httpError{status: 401, msg: "unauthorized"}}
	secondary := &fakeProvider{tier: model.TierSecondary, name: "ollama", vec: []float32{1, 0}}
	sentinel := &fakeProvider{tier: model.TierTertiary, name: "lexical-only"}

	c := NewChain([]Provider{primary, secondary, sentinel}, 0, nil, nil)
	vec, profile, err := c.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0}, vec)
	assert.Equal(t, "ollama", profile.Provider)
	assert.Equal(t, model.TierSecondary, c.ActiveTier())
	assert.True(t, c.IsReady())
	assert.False(t, c.IsBM25Only())

	log := c.FallbackLog()
	require.Len(t, log, 1)
	assert.Equal(t, model.ReasonAPIKeyInvalid, log[0].Reason)
	assert.Equal(t, model.TierPrimary, log[0].Tier)
}

func TestChain_Embed_FallsThroughToSentinel(t *testing.T) {
	primary := &fakeProvider{tier: model.TierPrimary, name: "voyage", err: fmt.Errorf("connection refused: dial tcp")}
	secondary := &fakeProvider{tier: model.TierSecondary, name: "ollama", err: fmt.Errorf("local model not loaded")}
	sentinel := NewSentinelProvider()

	c := NewChain([]Provider{primary, secondary, sentinel}, 0, nil, nil)
	vec, profile, err := c.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Nil(t, vec)
	assert.Equal(t, "lexical-only", profile.Provider)
	assert.True(t, c.IsBM25Only())
	assert.False(t, c.IsReady())

	log := c.FallbackLog()
	require.Len(t, log, 2)
	assert.Equal(t, model.ReasonNetworkError, log[0].Reason)
	assert.Equal(t, model.ReasonLocalError, log[1].Reason)
}

func TestChain_FallbackLog_BoundedAtTwoHundredEntries(t *testing.T) {
	failing := &fakeProvider{tier: model.TierPrimary, name: "voyage", err: fmt.Errorf("api error")}
	sentinel := NewSentinelProvider()
	c := NewChain([]Provider{failing, sentinel}, 0, nil, nil)

	for i := 0; i < 250; i++ {
		_, _, err := c.Embed(context.Background(), "x")
		require.NoError(t, err)
	}

	assert.Len(t, c.FallbackLog(), maxFallbackLogEntries)
}

func TestClassifyFallbackReason_RateLimited(t *testing.T) {
	reason := classifyFallbackReason(model.TierPrimary, &httpError{status: 429, msg: "too many requests"})
	assert.Equal(t, model.ReasonAPIRateLimited, reason)
}

func TestClassifyFallbackReason_ServiceUnavailable(t *testing.T) {
	reason := classifyFallbackReason(model.TierPrimary, &httpError{status: 503, msg: "service unavailable"})
	assert.Equal(t, model.ReasonAPIUnavailable, reason)
}

func TestClassifyFallbackReason_LocalTierDefaultsToLocalError(t *testing.T) {
	reason := classifyFallbackReason(model.TierSecondary, fmt.Errorf("model not found"))
	assert.Equal(t, model.ReasonLocalError, reason)
}
