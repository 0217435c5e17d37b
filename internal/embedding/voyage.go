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
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/aleutian-labs/speckit-memory/internal/model"
)

const voyageDefaultURL = "https://api.voyageai.com/v1/embeddings"

type voyageRequest struct {
	Input     []string `json:"input"`
	Model     string   `json:"model"`
	InputType string   `json:"input_type,omitempty"`
}

type voyageResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// VoyageProvider is a C1 primary-tier remote provider, shaped the same way
// as the Ollama client but pointed at Voyage AI's hosted embeddings API.
type VoyageProvider struct {
	apiKey string
	model  string
	dim    int
	url    string
	client *http.Client
}

// NewVoyageProvider builds a primary-tier provider for the given API key and
// model (e.g. "voyage-3").
func NewVoyageProvider(apiKey, model string, dim int) *VoyageProvider {
	return &VoyageProvider{
		apiKey: apiKey,
		model:  model,
		dim:    dim,
		url:    voyageDefaultURL,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

func (p *VoyageProvider) Tier() model.FallbackTier { return model.TierPrimary }

func (p *VoyageProvider) Profile() model.ProviderProfile {
	return model.ProviderProfile{Provider: "voyage", Model: p.model, Dim: p.dim}
}

// embed sends text with inputType, which distinguishes query and document embeddings the way
// providers that support asymmetric retrieval expect.
func (p *VoyageProvider) embed(ctx context.Context, text, inputType string) ([]float32, error) {
	if p.apiKey == "" {
		return nil, fmt.Errorf("voyage: missing API key")
	}

	reqBody, err := json.Marshal(voyageRequest{Input: []string{text}, Model: p.model, InputType: inputType})
	if err != nil {
		return nil, fmt.Errorf("marshal voyage embed request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("create voyage embed request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("voyage embed HTTP call: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read voyage embed response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &httpError{status: resp.StatusCode, msg: fmt.Sprintf("voyage embed returned %d: %s", resp.StatusCode, string(body))}
	}

	var parsed voyageResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("parse voyage embed response: %w", err)
	}
	if len(parsed.Data) == 0 || len(parsed.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("voyage embed returned empty vector")
	}

	return unitNormalize(parsed.Data[0].Embedding), nil
}

func (p *VoyageProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	return p.embed(ctx, text, "document")
}

// EmbedQuery uses Voyage's query input_type for asymmetric retrieval.
func (p *VoyageProvider) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return p.embed(ctx, text, "query")
}

// ValidateCredentials performs the §6 pre-flight probe by issuing a tiny
// embed call and classifying the HTTP response without erroring on
// soft-fail statuses (429, 5xx).
func (p *VoyageProvider) ValidateCredentials(ctx context.Context) (ValidationResult, error) {
	if p.apiKey == "" {
		return ValidationResult{Valid: false, Provider: "voyage", Reason: "missing API key", ErrorCode: "E050"}, nil
	}

	_, err := p.embed(ctx, "ping", "query")
	if err == nil {
		return ValidationResult{Valid: true, Provider: "voyage"}, nil
	}

	var httpErr *httpError
	if errors.As(err, &httpErr) {
		switch {
		case httpErr.status == 401 || httpErr.status == 403:
			return ValidationResult{Valid: false, Provider: "voyage", Reason: "invalid credentials", ErrorCode: "E050", HTTPStatus: httpErr.status}, nil
		case httpErr.status == 429:
			return ValidationResult{Valid: true, Provider: "voyage", Warning: "rate limited", HTTPStatus: httpErr.status}, nil
		case httpErr.status >= 500:
			return ValidationResult{Valid: true, Provider: "voyage", Warning: "service issue", HTTPStatus: httpErr.status}, nil
		}
	}

	return ValidationResult{Valid: false, Provider: "voyage", Reason: err.Error(), ErrorCode: "E053"}, nil
}
