// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package intent classifies a search query into one of five task intents
// and maps each intent to an adjustment over the six ranking factors,
// blending keyword and regex-pattern signal the way the routing
// pre-filter blends BM25 and embedding scores (0.4/0.6) for its own
// hybrid classification.
package intent

import (
	"regexp"
	"strings"
)

// Intent is one of the five closed task categories.
type Intent string

const (
	AddFeature     Intent = "add_feature"
	FixBug         Intent = "fix_bug"
	Refactor       Intent = "refactor"
	SecurityAudit  Intent = "security_audit"
	Understand     Intent = "understand"
)

// primaryWeight and secondaryWeight score one keyword match; keywordBlend
// and patternBlend mix the keyword and pattern totals.
const (
	primaryWeight   = 1.0
	secondaryWeight = 0.5

	keywordBlend = 0.6
	patternBlend = 0.4

	// confidenceThreshold is the minimum blended score required to commit
	// to a non-default intent; below it classification falls back to
	// Understand with Fallback=true.
	confidenceThreshold = 0.15
)

type signals struct {
	primary   []string
	secondary []string
	patterns  []*regexp.Regexp
}

var intentSignals = map[Intent]signals{
	AddFeature: {
		primary:   []string{"add", "implement", "create", "build", "new feature"},
		secondary: []string{"support", "introduce", "enable"},
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\badd (a |an |the )?\w+`),
			regexp.MustCompile(`(?i)\bimplement\w*\b`),
			regexp.MustCompile(`(?i)\bnew feature\b`),
		},
	},
	FixBug: {
		primary:   []string{"fix", "bug", "broken", "error", "crash", "fail"},
		secondary: []string{"issue", "wrong", "incorrect"},
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\bfix(e[sd]|ing)?\b`),
			regexp.MustCompile(`(?i)\bdoesn'?t work\b`),
			regexp.MustCompile(`(?i)\bthrows?\b.*\berror\b`),
		},
	},
	Refactor: {
		primary:   []string{"refactor", "clean up", "reorganize", "restructure", "simplify"},
		secondary: []string{"rename", "extract", "consolidate"},
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\brefactor\w*\b`),
			regexp.MustCompile(`(?i)\bclean ?up\b`),
		},
	},
	SecurityAudit: {
		primary:   []string{"security", "vulnerability", "audit", "exploit", "cve"},
		secondary: []string{"auth", "credential", "injection", "sanitize"},
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\bsecurity\b`),
			regexp.MustCompile(`(?i)\bvulnerab\w+`),
			regexp.MustCompile(`(?i)\bcve-\d+`),
		},
	},
	Understand: {
		primary:   []string{"understand", "explain", "why", "how does", "what is"},
		secondary: []string{"clarify", "walk through", "overview"},
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\bhow does\b`),
			regexp.MustCompile(`(?i)\bwhat is\b`),
			regexp.MustCompile(`(?i)\bwhy\b`),
		},
	},
}

// Weights is the six-factor ranking adjustment an intent overlays onto a
// base weight map. Each intent's weights sum to 1.0 (within 0.01).
type Weights struct {
	Similarity     float64
	Importance     float64
	Recency        float64
	Popularity     float64
	TierBoost      float64
	Retrievability float64
}

var intentWeights = map[Intent]Weights{
	AddFeature:    {Similarity: 0.30, Importance: 0.15, Recency: 0.20, Popularity: 0.10, TierBoost: 0.15, Retrievability: 0.10},
	FixBug:        {Similarity: 0.40, Importance: 0.10, Recency: 0.15, Popularity: 0.05, TierBoost: 0.10, Retrievability: 0.20},
	Refactor:      {Similarity: 0.25, Importance: 0.25, Recency: 0.10, Popularity: 0.05, TierBoost: 0.25, Retrievability: 0.10},
	SecurityAudit: {Similarity: 0.20, Importance: 0.30, Recency: 0.05, Popularity: 0.05, TierBoost: 0.35, Retrievability: 0.05},
	Understand:    {Similarity: 0.25, Importance: 0.15, Recency: 0.10, Popularity: 0.20, TierBoost: 0.10, Retrievability: 0.20},
}

// Classification is the result of classifying a query.
type Classification struct {
	Intent     Intent
	Confidence float64
	Fallback   bool
}

// Classify scores query against every intent's keyword and pattern
// signals, blending 60% keyword / 40% pattern, and picks the highest
// scorer. Ties fall back to Understand.
func Classify(query string) Classification {
	lower := strings.ToLower(query)

	scores := map[Intent]float64{}
	var total float64
	for intent, sig := range intentSignals {
		keywordScore := 0.0
		for _, kw := range sig.primary {
			if strings.Contains(lower, kw) {
				keywordScore += primaryWeight
			}
		}
		for _, kw := range sig.secondary {
			if strings.Contains(lower, kw) {
				keywordScore += secondaryWeight
			}
		}

		patternScore := 0.0
		for _, re := range sig.patterns {
			if re.MatchString(query) {
				patternScore += 1.0
			}
		}

		blended := keywordBlend*keywordScore + patternBlend*patternScore
		scores[intent] = blended
		total += blended
	}

	best := Understand
	bestScore := -1.0
	for intent, score := range scores {
		if score > bestScore {
			best = intent
			bestScore = score
		}
	}
	tied := 0
	for _, score := range scores {
		if score == bestScore {
			tied++
		}
	}
	if tied > 1 {
		best = Understand
	}

	if bestScore < confidenceThreshold {
		confidence := 0.0
		if total > 0 {
			confidence = scores[Understand] / total
		}
		return Classification{Intent: Understand, Confidence: confidence, Fallback: true}
	}

	confidence := bestScore
	if total > 0 {
		confidence = bestScore / total
	}
	return Classification{Intent: best, Confidence: confidence, Fallback: false}
}

// ApplyIntentWeights overlays intent's weight map onto base, returning the
// combined weights. The overlay is total: intent weights fully replace the
// base's six factors, matching the "adjustment sums to 1.0" contract.
func ApplyIntentWeights(base Weights, intent Intent) Weights {
	w, ok := intentWeights[intent]
	if !ok {
		return base
	}
	return w
}

// QueryWeights is the result of get_query_weights: the classified intent,
// its confidence, whether classification fell back, and the resolved
// ranking weights.
type QueryWeights struct {
	Intent     Intent
	Confidence float64
	Fallback   bool
	Weights    Weights
}

// GetQueryWeights classifies query and resolves its ranking-factor weights
// against base.
func GetQueryWeights(query string, base Weights) QueryWeights {
	c := Classify(query)
	return QueryWeights{
		Intent:     c.Intent,
		Confidence: c.Confidence,
		Fallback:   c.Fallback,
		Weights:    ApplyIntentWeights(base, c.Intent),
	}
}
