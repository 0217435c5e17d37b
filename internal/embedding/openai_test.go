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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aleutian-labs/speckit-memory/internal/model"
)

func TestOpenAIProvider_ProfileAndTier(t *testing.T) {
	p, err := NewOpenAIProvider("test-key", "text-embedding-3-small", 1536)
	require.NoError(t, err)
	assert.Equal(t, model.TierPrimary, p.Tier())
	assert.Equal(t, "openai", p.Profile().Provider)
	assert.Equal(t, 1536, p.Profile().Dim)
}

func TestOpenAIProvider_Embed_MissingKeyErrorsBeforeNetworkCall(t *testing.T) {
	p, err := NewOpenAIProvider("", "text-embedding-3-small", 1536)
	require.NoError(t, err)
	_, err = p.Embed(context.Background(), "hello")
	assert.Error(t, err)
}

func TestOpenAIProvider_ValidateCredentials_MissingKey(t *testing.T) {
	p, err := NewOpenAIProvider("", "text-embedding-3-small", 1536)
	require.NoError(t, err)
	result, err := p.ValidateCredentials(context.Background())
	require.NoError(t, err)
	assert.False(t, result.Valid)
	assert.Equal(t, "E050", result.ErrorCode)
}
