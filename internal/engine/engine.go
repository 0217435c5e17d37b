// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package engine wires the retrieval, mutation, and lifecycle components
// into one process-wide handle: the memory index, the three search
// sources, the embedding provider chain, the prediction-error gate,
// session working memory, and the archival manager. It is the engine
// behind every tool in the layered surface, the way the routing
// pre-filter's EscalatingRouter sits behind every routed request.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/aleutian-labs/speckit-memory/internal/archival"
	"github.com/aleutian-labs/speckit-memory/internal/config"
	"github.com/aleutian-labs/speckit-memory/internal/embedding"
	"github.com/aleutian-labs/speckit-memory/internal/gate"
	"github.com/aleutian-labs/speckit-memory/internal/model"
	"github.com/aleutian-labs/speckit-memory/internal/retry"
	"github.com/aleutian-labs/speckit-memory/internal/store"
	"github.com/aleutian-labs/speckit-memory/internal/telemetry"
	"github.com/aleutian-labs/speckit-memory/internal/workingmem"
)

// Engine is the fully wired memory system: every store and subsystem a
// tool call needs, opened once at process start and shared across
// invocations.
type Engine struct {
	Config *config.Config
	Logger *slog.Logger
	Metrics *telemetry.Metrics

	Index    *store.MemoryIndexStore
	Lexical  *store.BM25Index
	Causal   *store.CausalStore
	Vector   store.VectorStore
	Chain    *embedding.Chain
	WorkingMem *workingmem.Manager
	Archival   *archival.Manager

	RetryOptions retry.Options
}

// Open builds every subsystem from cfg and returns a ready Engine. Callers
// must call Close when done.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger, metrics *telemetry.Metrics) (*Engine, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = telemetry.NewMetrics()
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory %s: %w", cfg.DataDir, err)
	}

	idx, err := store.Open(ctx, indexDSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("opening memory index: %w", err)
	}

	causal, err := store.LoadCausalStore(ctx, idx.DB())
	if err != nil {
		idx.Close()
		return nil, fmt.Errorf("loading causal edge store: %w", err)
	}

	lexical := store.NewBM25Index()
	if err := warmLexicalIndex(ctx, idx, lexical); err != nil {
		idx.Close()
		return nil, fmt.Errorf("warming lexical index: %w", err)
	}

	vec, err := openVectorStore(ctx, cfg)
	if err != nil {
		idx.Close()
		return nil, fmt.Errorf("opening vector store: %w", err)
	}

	chain := buildEmbeddingChain(cfg, logger, metrics)

	retryOpts := retry.Options{
		OperationName:   "embed",
		MaxRetries:      cfg.RetryMaxRetries,
		BaseDelay:       cfg.RetryBaseDelay(),
		MaxDelay:        cfg.RetryMaxDelay(),
		ExponentialBase: cfg.RetryExponentialBase,
	}

	return &Engine{
		Config:       cfg,
		Logger:       logger,
		Metrics:      metrics,
		Index:        idx,
		Lexical:      lexical,
		Causal:       causal,
		Vector:       vec,
		Chain:        chain,
		WorkingMem:   workingmem.NewManager(idx.DB()),
		Archival:     archival.NewManager(idx, logger),
		RetryOptions: retryOpts,
	}, nil
}

// warmLexicalIndex rebuilds the in-memory BM25 index from the on-disk
// content of every memory row that is not soft-deleted (archived rows
// included), mirroring the way the causal store
// is reloaded from its persistence layer at startup. memory_index stores
// file_path, not content, so content is re-read from disk the same way
// the indexer re-hashes a file to decide should_reindex.
func warmLexicalIndex(ctx context.Context, idx *store.MemoryIndexStore, lexical *store.BM25Index) error {
	memories, err := idx.ListAll(ctx)
	if err != nil {
		return err
	}
	for _, m := range memories {
		data, err := os.ReadFile(m.FilePath)
		if err != nil {
			continue // file missing or unreadable; memory_index_scan will flag it
		}
		lexical.Upsert(m.ID, string(data))
	}
	return nil
}

// indexDSN is the modernc.org/sqlite DSN for cfg's relational store,
// shared between Open and the checkpoint-restore reopen path.
func indexDSN(cfg *config.Config) string {
	return "file:" + filepath.Join(cfg.DataDir, "memory.db") + "?_pragma=busy_timeout(5000)"
}

func openVectorStore(ctx context.Context, cfg *config.Config) (store.VectorStore, error) {
	switch cfg.VectorBackend {
	case "weaviate":
		return store.OpenWeaviateVectorStore(ctx, store.WeaviateConfig{
			Host:      cfg.WeaviateHost,
			Scheme:    cfg.WeaviateScheme,
			ClassName: cfg.WeaviateClassName,
			Dimension: cfg.VectorDimension,
		})
	default:
		dir := filepath.Join(cfg.DataDir, "vectors")
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
		return store.OpenLocalVectorStore(dir, cfg.VectorDimension)
	}
}

// buildEmbeddingChain assembles the primary -> secondary -> sentinel
// provider order from the configured EmbeddingsProvider. hf-local has no
// dedicated HTTP client in this tree; it is served by the same local
// Ollama-shaped client as the secondary tier, since both are on-device
// inference with no remote credential.
func buildEmbeddingChain(cfg *config.Config, logger *slog.Logger, metrics *telemetry.Metrics) *embedding.Chain {
	var providers []embedding.Provider

	local := embedding.NewOllamaProvider(cfg.OllamaURL, cfg.OllamaModel, cfg.VectorDimension)

	switch cfg.EmbeddingsProvider {
	case config.ProviderVoyage:
		providers = append(providers, embedding.NewVoyageProvider(cfg.VoyageAPIKey(), cfg.VoyageModel, cfg.VectorDimension))
	case config.ProviderOpenAI:
		if p, err := embedding.NewOpenAIProvider(cfg.OpenAIAPIKey(), cfg.OpenAIModel, cfg.VectorDimension); err == nil {
			providers = append(providers, p)
		} else {
			logger.Warn("openai provider unavailable, skipping primary tier", "error", err)
		}
	case config.ProviderOllama, config.ProviderHFLocal:
		providers = append(providers, local)
		local = nil
	}

	if cfg.EnableLocalFallback && local != nil {
		providers = append(providers, local)
	}
	providers = append(providers, embedding.NewSentinelProvider())

	return embedding.NewChain(providers, cfg.ValidationTimeout(), logger, metrics)
}

// Close releases every owned resource.
func (e *Engine) Close() error {
	var errs []error
	if err := e.Vector.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := e.Index.Close(); err != nil {
		errs = append(errs, err)
	}
	e.Config.WipeSecrets()
	if len(errs) > 0 {
		return fmt.Errorf("closing engine: %v", errs)
	}
	return nil
}

// StartBackgroundJobs launches the archival scanner on its configured
// interval. Call once at process start; stops are driven by ctx
// cancellation plus Archival.StopBackgroundJob.
func (e *Engine) StartBackgroundJobs(ctx context.Context) {
	e.Archival.StartBackgroundJob(ctx, e.Config.ArchivalScanIntervalMs, e.Config.ArchivalAgeThreshold(), 100, archival.ActionMark)
}

// EmbedForSearch embeds query text through the retry engine, tolerating a
// sentinel (lexical-only) result.
func (e *Engine) EmbedForSearch(ctx context.Context, text string) ([]float32, model.ProviderProfile, error) {
	type embedResult struct {
		vec     []float32
		profile model.ProviderProfile
	}
	res, err := retry.WithBackoff(ctx, e.RetryOptions, func(ctx context.Context) (embedResult, error) {
		vec, profile, err := e.Chain.Embed(ctx, text)
		return embedResult{vec: vec, profile: profile}, err
	})
	if err != nil {
		return nil, model.ProviderProfile{}, err
	}
	return res.vec, res.profile, nil
}
