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

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/aleutian-labs/speckit-memory/internal/model"
)

// OpenAIProvider is a C1 primary-tier remote provider using langchaingo's
// OpenAI client, the same dependency the teacher's provider factory wires
// for chat completions.
type OpenAIProvider struct {
	apiKey   string
	model    string
	dim      int
	embedder *embeddings.EmbedderImpl
}

// NewOpenAIProvider constructs a primary-tier provider for the given API
// key, model (e.g. "text-embedding-3-small"), and its output dimension.
func NewOpenAIProvider(apiKey, modelName string, dim int) (*OpenAIProvider, error) {
	llm, err := openai.New(openai.WithToken(apiKey), openai.WithEmbeddingModel(modelName))
	if err != nil {
		return nil, fmt.Errorf("constructing openai client: %w", err)
	}
	embedder, err := embeddings.NewEmbedder(llm)
	if err != nil {
		return nil, fmt.Errorf("constructing openai embedder: %w", err)
	}
	return &OpenAIProvider{apiKey: apiKey, model: modelName, dim: dim, embedder: embedder}, nil
}

func (p *OpenAIProvider) Tier() model.FallbackTier { return model.TierPrimary }

func (p *OpenAIProvider) Profile() model.ProviderProfile {
	return model.ProviderProfile{Provider: "openai", Model: p.model, Dim: p.dim}
}

func (p *OpenAIProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	if p.apiKey == "" {
		return nil, fmt.Errorf("openai: missing API key")
	}
	vectors, err := p.embedder.EmbedDocuments(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("openai embed call: %w", err)
	}
	if len(vectors) == 0 || len(vectors[0]) == 0 {
		return nil, fmt.Errorf("openai embed returned empty vector")
	}
	return unitNormalize(vectors[0]), nil
}

// ValidateCredentials performs the §6 pre-flight probe for the OpenAI tier.
func (p *OpenAIProvider) ValidateCredentials(ctx context.Context) (ValidationResult, error) {
	if p.apiKey == "" {
		return ValidationResult{Valid: false, Provider: "openai", Reason: "missing API key", ErrorCode: "E050"}, nil
	}
	if _, err := p.Embed(ctx, "ping"); err != nil {
		return ValidationResult{Valid: false, Provider: "openai", Reason: err.Error(), ErrorCode: "E053"}, nil
	}
	return ValidationResult{Valid: true, Provider: "openai"}, nil
}
