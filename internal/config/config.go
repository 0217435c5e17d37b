// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads the memory engine's runtime configuration: embedded
// YAML defaults overridden by recognised environment variables, the same
// two-layer pattern the routing pre-filter uses for its rule config.
package config

import (
	_ "embed"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/awnumar/memguard"
	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// EmbeddingsProvider is the closed set of selectable C1 primary providers.
type EmbeddingsProvider string

const (
	ProviderVoyage  EmbeddingsProvider = "voyage"
	ProviderOpenAI  EmbeddingsProvider = "openai"
	ProviderHFLocal EmbeddingsProvider = "hf-local"
	ProviderOllama  EmbeddingsProvider = "ollama"
)

var validProviders = map[EmbeddingsProvider]bool{
	ProviderVoyage:  true,
	ProviderOpenAI:  true,
	ProviderHFLocal: true,
	ProviderOllama:  true,
}

// Config is the fully resolved runtime configuration for the memory engine.
type Config struct {
	EmbeddingsProvider EmbeddingsProvider `yaml:"embeddings_provider"`

	// voyageKey and openAIKey hold the provider API keys in memguard-locked,
	// non-swappable memory rather than as plain strings, so a core dump or a
	// swapped page can't leak them. Access through VoyageAPIKey/OpenAIAPIKey.
	voyageKey *memguard.LockedBuffer
	openAIKey *memguard.LockedBuffer

	EnableLocalFallback bool `yaml:"enable_local_fallback"`

	ValidationTimeoutMs int `yaml:"validation_timeout_ms"`

	ArchivalScanIntervalMs   int `yaml:"archival_scan_interval_ms"`
	ArchivalAgeThresholdDays int `yaml:"archival_age_threshold_days"`

	EnableRRFFusion  bool    `yaml:"enable_rrf_fusion"`
	RRFK             int     `yaml:"rrf_k"`
	ConvergenceBonus float64 `yaml:"convergence_bonus"`

	WorkingMemoryHotThreshold     float64 `yaml:"working_memory_hot_threshold"`
	WorkingMemoryWarmThreshold    float64 `yaml:"working_memory_warm_threshold"`
	SpreadingActivationBoost      float64 `yaml:"spreading_activation_boost"`
	SpreadingActivationMaxRelated int     `yaml:"spreading_activation_max_related"`

	RetryMaxRetries      int     `yaml:"retry_max_retries"`
	RetryBaseDelayMs     int     `yaml:"retry_base_delay_ms"`
	RetryExponentialBase float64 `yaml:"retry_exponential_base"`
	RetryMaxDelayMs      int     `yaml:"retry_max_delay_ms"`

	// DataDir holds the relational store, the BadgerDB-backed local vector
	// fallback, and checkpoint snapshots.
	DataDir string `yaml:"data_dir"`

	VectorBackend     string `yaml:"vector_backend"` // "local" or "weaviate"
	VectorDimension   int    `yaml:"vector_dimension"`
	WeaviateHost      string `yaml:"weaviate_host"`
	WeaviateScheme    string `yaml:"weaviate_scheme"`
	WeaviateClassName string `yaml:"weaviate_class_name"`

	OllamaURL   string `yaml:"ollama_url"`
	OllamaModel string `yaml:"ollama_model"`
	VoyageModel string `yaml:"voyage_model"`
	OpenAIModel string `yaml:"openai_model"`

	// SkipAPIValidation bypasses the pre-flight credential probe. Semantically
	// equivalent to forcing a local-only provider chain.
	SkipAPIValidation bool `yaml:"-"`
}

// VoyageAPIKey reveals the locked Voyage API key, or "" if none was set.
func (c *Config) VoyageAPIKey() string {
	return revealKey(c.voyageKey)
}

// OpenAIAPIKey reveals the locked OpenAI API key, or "" if none was set.
func (c *Config) OpenAIAPIKey() string {
	return revealKey(c.openAIKey)
}

func revealKey(buf *memguard.LockedBuffer) string {
	if buf == nil {
		return ""
	}
	return string(buf.Bytes())
}

// WipeSecrets destroys the locked API key buffers, zeroing the underlying
// memory. Call once at shutdown; the Config must not be used afterward.
func (c *Config) WipeSecrets() {
	if c.voyageKey != nil {
		c.voyageKey.Destroy()
	}
	if c.openAIKey != nil {
		c.openAIKey.Destroy()
	}
}

// ValidationTimeout returns ValidationTimeoutMs as a time.Duration.
func (c *Config) ValidationTimeout() time.Duration {
	return time.Duration(c.ValidationTimeoutMs) * time.Millisecond
}

// ArchivalScanInterval returns ArchivalScanIntervalMs as a time.Duration.
func (c *Config) ArchivalScanInterval() time.Duration {
	return time.Duration(c.ArchivalScanIntervalMs) * time.Millisecond
}

// ArchivalAgeThreshold returns ArchivalAgeThresholdDays as a time.Duration.
func (c *Config) ArchivalAgeThreshold() time.Duration {
	return time.Duration(c.ArchivalAgeThresholdDays) * 24 * time.Hour
}

// RetryBaseDelay returns RetryBaseDelayMs as a time.Duration.
func (c *Config) RetryBaseDelay() time.Duration {
	return time.Duration(c.RetryBaseDelayMs) * time.Millisecond
}

// RetryMaxDelay returns RetryMaxDelayMs as a time.Duration.
func (c *Config) RetryMaxDelay() time.Duration {
	return time.Duration(c.RetryMaxDelayMs) * time.Millisecond
}

// Load builds the configuration from the embedded defaults overridden by
// recognised environment variables. A provider named in EMBEDDINGS_PROVIDER
// but not in the closed set is a load-time error.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded config defaults: %w", err)
	}

	if v := os.Getenv("EMBEDDINGS_PROVIDER"); v != "" {
		cfg.EmbeddingsProvider = EmbeddingsProvider(v)
	}
	if !validProviders[cfg.EmbeddingsProvider] {
		return nil, fmt.Errorf("invalid EMBEDDINGS_PROVIDER %q (valid: voyage, openai, hf-local, ollama)", cfg.EmbeddingsProvider)
	}

	if v := os.Getenv("VOYAGE_API_KEY"); v != "" {
		cfg.voyageKey = memguard.NewBufferFromBytes([]byte(v))
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.openAIKey = memguard.NewBufferFromBytes([]byte(v))
	}

	if v, ok := boolEnv("ENABLE_LOCAL_FALLBACK"); ok {
		cfg.EnableLocalFallback = v
	}
	if v, ok := intEnv("VALIDATION_TIMEOUT_MS"); ok {
		cfg.ValidationTimeoutMs = v
	}
	if v, ok := intEnv("ARCHIVAL_SCAN_INTERVAL_MS"); ok {
		cfg.ArchivalScanIntervalMs = v
	}
	if v, ok := boolEnv("ENABLE_RRF_FUSION"); ok {
		cfg.EnableRRFFusion = v
	}
	if v, ok := boolEnv("SPECKIT_SKIP_API_VALIDATION"); ok {
		cfg.SkipAPIValidation = v
	}
	if cfg.SkipAPIValidation {
		cfg.EmbeddingsProvider = ProviderHFLocal
	}

	if v := os.Getenv("SPECKIT_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("SPECKIT_VECTOR_BACKEND"); v != "" {
		cfg.VectorBackend = v
	}
	if v := os.Getenv("WEAVIATE_HOST"); v != "" {
		cfg.WeaviateHost = v
	}

	return cfg, nil
}

func boolEnv(name string) (bool, bool) {
	raw := os.Getenv(name)
	if raw == "" {
		return false, false
	}
	v, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return false, false
	}
	return v, true
}

func intEnv(name string) (int, bool) {
	raw := os.Getenv(name)
	if raw == "" {
		return 0, false
	}
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, false
	}
	return v, true
}
