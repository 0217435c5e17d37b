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

	"github.com/aleutian-labs/speckit-memory/internal/model"
)

// SentinelProvider is the C1 tertiary tier: it never produces a vector and
// always succeeds, signaling "lexical-only" retrieval for this memory. The
// chain falls through to it only after both the primary and secondary
// providers have failed.
type SentinelProvider struct{}

// NewSentinelProvider constructs the always-available lexical-only tier.
func NewSentinelProvider() *SentinelProvider { return &SentinelProvider{} }

func (p *SentinelProvider) Tier() model.FallbackTier { return model.TierTertiary }

func (p *SentinelProvider) Profile() model.ProviderProfile {
	return model.ProviderProfile{Provider: "lexical-only", Model: "", Dim: 0}
}

// Embed always returns (nil, nil): no vector, no error.
func (p *SentinelProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	return nil, nil
}
