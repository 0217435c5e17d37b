// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package embedding implements the C1 embedding provider chain: a strict
// primary -> local -> lexical-only fallback order with classified fallback
// reasons and a bounded fallback log, generalized from the routing
// pre-filter's Ollama-backed ToolEmbeddingCache.
package embedding

import (
	"context"
	"fmt"
	"math"

	"github.com/aleutian-labs/speckit-memory/internal/model"
)

// Provider embeds text into a fixed-dimension vector, or reports it cannot.
type Provider interface {
	// Embed returns a vector for text, or (nil, nil) meaning "lexical-only".
	Embed(ctx context.Context, text string) ([]float32, error)
	Profile() model.ProviderProfile
	// Tier reports which fallback-chain position this provider occupies.
	Tier() model.FallbackTier
}

// ValidationResult is the pre-flight credential-probe outcome for §6's
// validate_api_key().
type ValidationResult struct {
	Valid      bool
	Provider   string
	Reason     string
	Error      string
	ErrorCode  string
	HTTPStatus int
	Warning    string
}

// CredentialValidator is implemented by providers that can pre-flight
// check their credentials without performing a full embed call.
type CredentialValidator interface {
	ValidateCredentials(ctx context.Context) (ValidationResult, error)
}

// unitNormalize scales v to unit L2 norm. A zero vector is returned unchanged.
func unitNormalize(v []float32) []float32 {
	norm := l2Norm(v)
	if norm == 0 {
		return v
	}
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = x / float32(norm)
	}
	return out
}

func l2Norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

// dotProduct computes the dot product of two equal-length float32 vectors.
func dotProduct(a, b []float32) (float32, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("embedding: dimension mismatch %d != %d", len(a), len(b))
	}
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum, nil
}

// CosineSimilarity returns the cosine similarity of two vectors, assuming
// both are already unit-normalized (cosine == dot product in that case).
func CosineSimilarity(a, b []float32) (float32, error) {
	return dotProduct(a, b)
}
