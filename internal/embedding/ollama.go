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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/aleutian-labs/speckit-memory/internal/model"
)

// ollamaEmbedReq/Resp mirror the routing pre-filter's ToolEmbeddingCache
// request/response shape against Ollama's /api/embed endpoint.
type ollamaEmbedReq struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type ollamaEmbedResp struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// OllamaProvider is the C1 local/secondary tier: an on-host Ollama server.
type OllamaProvider struct {
	url    string
	model  string
	dim    int
	client *http.Client
}

// NewOllamaProvider builds a local-tier provider against url (e.g.
// "http://localhost:11434/api/embed") using the given model and its
// expected output dimension.
func NewOllamaProvider(url, model string, dim int) *OllamaProvider {
	return &OllamaProvider{
		url:   url,
		model: model,
		dim:   dim,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (p *OllamaProvider) Tier() model.FallbackTier { return model.TierSecondary }

func (p *OllamaProvider) Profile() model.ProviderProfile {
	return model.ProviderProfile{Provider: "ollama", Model: p.model, Dim: p.dim}
}

// Embed calls the Ollama embed endpoint and unit-normalizes the result.
func (p *OllamaProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	reqBody, err := json.Marshal(ollamaEmbedReq{Model: p.model, Input: text})
	if err != nil {
		return nil, fmt.Errorf("marshal ollama embed request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("create ollama embed request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ollama embed HTTP call: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read ollama embed response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &httpError{status: resp.StatusCode, msg: fmt.Sprintf("ollama embed returned %d: %s", resp.StatusCode, string(body))}
	}

	var parsed ollamaEmbedResp
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("parse ollama embed response: %w", err)
	}
	if len(parsed.Embeddings) == 0 || len(parsed.Embeddings[0]) == 0 {
		return nil, fmt.Errorf("ollama embed returned empty vector")
	}

	return unitNormalize(parsed.Embeddings[0]), nil
}

// httpError attaches an HTTP status code to an error for fallback-reason
// classification (§4.1).
type httpError struct {
	status int
	msg    string
}

func (e *httpError) Error() string { return e.msg }
func (e *httpError) StatusCode() int { return e.status }
