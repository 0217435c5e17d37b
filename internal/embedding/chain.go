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
	"errors"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/aleutian-labs/speckit-memory/internal/model"
	"github.com/aleutian-labs/speckit-memory/internal/telemetry"
)

// maxFallbackLogEntries bounds the fallback log at 200 entries, FIFO-evicted.
const maxFallbackLogEntries = 200

// Chain walks providers in strict order (primary -> secondary -> tertiary),
// classifying and logging every fallback, generalized from the routing
// pre-filter's single-provider ToolEmbeddingCache into a multi-tier chain.
type Chain struct {
	mu         sync.Mutex
	providers  []Provider
	perTierTTL time.Duration
	logger     *slog.Logger
	metrics    *telemetry.Metrics

	activeTier model.FallbackTier
	log        []model.FallbackLogEntry
}

// NewChain builds a chain over providers in the order they should be tried.
// perTierTTL bounds each provider's Embed call; zero disables the bound.
func NewChain(providers []Provider, perTierTTL time.Duration, logger *slog.Logger, metrics *telemetry.Metrics) *Chain {
	if logger == nil {
		logger = slog.Default()
	}
	return &Chain{
		providers:  providers,
		perTierTTL: perTierTTL,
		logger:     logger,
		metrics:    metrics,
	}
}

// Embed tries each provider in order, returning the first vector produced.
// A (nil, nil, profile) result means every tier fell through to the
// lexical-only sentinel; callers should treat the memory as BM25-only.
func (c *Chain) Embed(ctx context.Context, text string) ([]float32, model.ProviderProfile, error) {
	var lastErr error
	for _, p := range c.providers {
		callCtx := ctx
		var cancel context.CancelFunc
		if c.perTierTTL > 0 {
			callCtx, cancel = context.WithTimeout(ctx, c.perTierTTL)
		}
		vec, err := p.Embed(callCtx, text)
		if cancel != nil {
			cancel()
		}
		if err == nil {
			c.setActiveTier(p.Tier())
			return vec, p.Profile(), nil
		}

		reason := classifyFallbackReason(p.Tier(), err)
		c.recordFallback(p.Tier(), p.Profile().Provider, reason, err)
		lastErr = err
	}
	// Unreachable in practice: the sentinel tier never errors. Kept as a
	// defensive return for a chain built without a tertiary provider.
	return nil, model.ProviderProfile{}, lastErr
}

func (c *Chain) setActiveTier(t model.FallbackTier) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.activeTier = t
}

// ActiveTier reports the tier that produced the most recent successful embed.
func (c *Chain) ActiveTier() model.FallbackTier {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.activeTier
}

// IsReady reports whether the most recent embed was served by a vector-
// producing tier rather than the lexical-only sentinel.
func (c *Chain) IsReady() bool {
	return c.ActiveTier() != "" && c.ActiveTier() != model.TierTertiary
}

// IsBM25Only reports whether the chain most recently fell all the way
// through to the lexical-only tier.
func (c *Chain) IsBM25Only() bool {
	return c.ActiveTier() == model.TierTertiary
}

// FallbackLog returns a snapshot of the bounded fallback log, oldest first.
func (c *Chain) FallbackLog() []model.FallbackLogEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]model.FallbackLogEntry, len(c.log))
	copy(out, c.log)
	return out
}

func (c *Chain) recordFallback(tier model.FallbackTier, provider string, reason model.FallbackReason, err error) {
	entry := model.FallbackLogEntry{
		Timestamp: time.Now(),
		Tier:      tier,
		Provider:  provider,
		Reason:    reason,
		ErrorMsg:  err.Error(),
	}
	var httpErr *httpError
	if errors.As(err, &httpErr) {
		entry.ErrorCode = strconv.Itoa(httpErr.status)
	}

	c.mu.Lock()
	c.log = append(c.log, entry)
	if len(c.log) > maxFallbackLogEntries {
		c.log = c.log[len(c.log)-maxFallbackLogEntries:]
	}
	c.mu.Unlock()

	c.logger.Warn("embedding provider fallback",
		"tier", tier, "provider", provider, "reason", reason, "error", err.Error())
	if c.metrics != nil {
		c.metrics.EmbeddingFallback.WithLabelValues(string(tier), string(reason)).Inc()
	}
}

// classifyFallbackReason maps a provider error to the closed fallback-reason
// set per the chain's pre-flight classification table.
func classifyFallbackReason(tier model.FallbackTier, err error) model.FallbackReason {
	if err == nil {
		return ""
	}

	var httpErr *httpError
	if errors.As(err, &httpErr) {
		switch {
		case httpErr.status == 401 || httpErr.status == 403:
			return model.ReasonAPIKeyInvalid
		case httpErr.status == 429:
			return model.ReasonAPIRateLimited
		case httpErr.status >= 500:
			return model.ReasonAPIUnavailable
		default:
			return model.ReasonAPIError
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return model.ReasonAPITimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return model.ReasonAPITimeout
	}

	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "api key") || strings.Contains(msg, "credential") {
		return model.ReasonAPIKeyInvalid
	}
	if tier == model.TierSecondary {
		return model.ReasonLocalError
	}
	if strings.Contains(msg, "connection") || strings.Contains(msg, "dial") || strings.Contains(msg, "network") {
		return model.ReasonNetworkError
	}
	return model.ReasonAPIError
}
