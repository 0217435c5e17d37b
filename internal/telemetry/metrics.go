// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus instruments for the memory engine, registered
// with promauto the way the routing pre-filter registers its own metrics.
type Metrics struct {
	SearchLatency      prometheus.Histogram
	FusionMethodTotal  *prometheus.CounterVec
	GateActionTotal    *prometheus.CounterVec
	ArchivalScanned    prometheus.Counter
	EmbeddingFallback  *prometheus.CounterVec
	RetryAttempts      *prometheus.CounterVec
}

// NewMetrics registers and returns the memory engine's metric set against
// the default Prometheus registry. Call once at process start.
func NewMetrics() *Metrics {
	return &Metrics{
		SearchLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: "memory",
			Name:      "search_latency_seconds",
			Help:      "End-to-end unified_search latency",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),
		FusionMethodTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "memory",
			Name:      "fusion_method_total",
			Help:      "Result fusion method used: hybrid, single_source, or bypassed",
		}, []string{"method"}),
		GateActionTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "memory",
			Name:      "gate_action_total",
			Help:      "Prediction-error gate decisions by action",
		}, []string{"action"}),
		ArchivalScanned: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "memory",
			Name:      "archival_scanned_total",
			Help:      "Memories scanned by the background archival job",
		}),
		EmbeddingFallback: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "memory",
			Name:      "embedding_fallback_total",
			Help:      "Embedding provider chain fallbacks by tier and reason",
		}, []string{"tier", "reason"}),
		RetryAttempts: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "memory",
			Name:      "retry_attempts_total",
			Help:      "Retry engine attempts by outcome",
		}, []string{"outcome"}),
	}
}
