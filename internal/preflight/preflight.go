// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package preflight validates candidate memory content before it is saved:
// anchor markup, duplicate detection, token budget, and content size.
package preflight

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"regexp"

	"github.com/aleutian-labs/speckit-memory/internal/memerr"
)

var anchorPattern = regexp.MustCompile(`(?i)<!--\s*(/?)ANCHOR:([A-Za-z0-9/_-]+)\s*-->`)

// AnchorResult is the anchor-format sub-check outcome.
type AnchorResult struct {
	Valid    bool
	Anchors  []string
	Errors   []*memerr.Error
	Warnings []*memerr.Error
}

// CheckAnchors validates `<!-- ANCHOR:id -->...<!-- /ANCHOR:id -->` markup.
func CheckAnchors(content string) AnchorResult {
	matches := anchorPattern.FindAllStringSubmatch(content, -1)

	var result AnchorResult
	seen := map[string]bool{}
	open := map[string]bool{}
	dupOpen := map[string]int{}

	for _, m := range matches {
		isClose := m[1] == "/"
		id := m[2]

		if !isClose {
			if seen[id] {
				result.Errors = append(result.Errors, memerr.New(memerr.PF003AnchorDuplicateID,
					fmt.Sprintf("duplicate anchor id %q", id), true, "rename one of the anchors", nil))
				dupOpen[id]++
				continue
			}
			seen[id] = true
			open[id] = true
			continue
		}

		if !open[id] && dupOpen[id] > 0 {
			dupOpen[id]-- // close tag of an already reported duplicate
			continue
		}
		if !open[id] {
			result.Errors = append(result.Errors, memerr.New(memerr.PF002AnchorUnclosed,
				fmt.Sprintf("close tag for anchor %q has no matching open tag", id), true, "add the matching ANCHOR open tag", nil))
			continue
		}
		delete(open, id)
		result.Anchors = append(result.Anchors, id)
	}

	for id := range open {
		result.Errors = append(result.Errors, memerr.New(memerr.PF002AnchorUnclosed,
			fmt.Sprintf("anchor %q was opened but never closed", id), true, "add the matching /ANCHOR tag", nil))
	}

	result.Valid = len(result.Errors) == 0
	return result
}

// ContentHash returns the hex SHA-256 of content, the same scheme used for
// exact duplicate detection and the indexer's change comparison.
func ContentHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// ExactDuplicateLookup finds an existing memory by content hash.
type ExactDuplicateLookup interface {
	GetByContentHash(ctx context.Context, hash string) (id int64, path string, found bool, err error)
}

// SimilarityFinder finds the nearest existing memory to a vector.
type SimilarityFinder interface {
	FindNearest(ctx context.Context, vec []float32) (id int64, path string, similarity float64, found bool, err error)
}

// DuplicateResult is the duplicate-detection sub-check outcome.
type DuplicateResult struct {
	IsDuplicate   bool
	DuplicateType string // "exact" or "similar"
	ExistingID    int64
	ExistingPath  string
	Similarity    float64
	ContentHash   string
	Error         *memerr.Error
}

const defaultSimilarityThreshold = 0.95

// CheckDuplicate runs exact hash comparison first, then an optional
// embedding-similarity lookup when vec and finder are both supplied.
func CheckDuplicate(ctx context.Context, content string, exact ExactDuplicateLookup, vec []float32, finder SimilarityFinder, similarityThreshold float64) (DuplicateResult, error) {
	if similarityThreshold <= 0 {
		similarityThreshold = defaultSimilarityThreshold
	}
	hash := ContentHash(content)
	result := DuplicateResult{ContentHash: hash}

	if exact != nil {
		id, path, found, err := exact.GetByContentHash(ctx, hash)
		if err != nil {
			return DuplicateResult{}, fmt.Errorf("exact duplicate lookup: %w", err)
		}
		if found {
			result.IsDuplicate = true
			result.DuplicateType = "exact"
			result.ExistingID = id
			result.ExistingPath = path
			result.Similarity = 1.0
			result.Error = memerr.New(memerr.PF010ExactDuplicate, "content is byte-identical to an existing memory", true, "reuse the existing memory id", map[string]any{"existing_id": id})
			return result, nil
		}
	}

	if len(vec) > 0 && finder != nil {
		id, path, sim, found, err := finder.FindNearest(ctx, vec)
		if err != nil {
			return DuplicateResult{}, fmt.Errorf("similar duplicate lookup: %w", err)
		}
		if found && sim >= similarityThreshold {
			result.IsDuplicate = true
			result.DuplicateType = "similar"
			result.ExistingID = id
			result.ExistingPath = path
			result.Similarity = sim
			result.Error = memerr.New(memerr.PF011SimilarDuplicate, "content is highly similar to an existing memory", true, "consider updating the existing memory instead", map[string]any{"existing_id": id, "similarity": sim})
			return result, nil
		}
	}

	return result, nil
}

const embeddingOverheadTokens = 150

// TokenBudgetResult is the token-budget sub-check outcome.
type TokenBudgetResult struct {
	Estimated int
	MaxTokens int
	Warning   bool
	Exceeded  bool
	Error     *memerr.Error
}

// EstimateTokens approximates token count as ceil(chars/3.5), plus a fixed
// embedding overhead when includeOverhead is set.
func EstimateTokens(content string, includeOverhead bool) int {
	n := int(math.Ceil(float64(len([]rune(content))) / 3.5))
	if includeOverhead {
		n += embeddingOverheadTokens
	}
	return n
}

// CheckTokenBudget warns at 80% of maxTokens and hard-fails above 100%.
func CheckTokenBudget(content string, maxTokens int, includeOverhead bool) TokenBudgetResult {
	estimated := EstimateTokens(content, includeOverhead)
	result := TokenBudgetResult{Estimated: estimated, MaxTokens: maxTokens}
	if maxTokens <= 0 {
		return result
	}

	ratio := float64(estimated) / float64(maxTokens)
	switch {
	case ratio > 1.0:
		result.Exceeded = true
		result.Error = memerr.New(memerr.PF021TokenBudgetExceeded,
			fmt.Sprintf("estimated %d tokens exceeds budget of %d", estimated, maxTokens), true, "shorten the content",
			map[string]any{"estimated": estimated, "max_tokens": maxTokens})
	case ratio >= 0.80:
		result.Warning = true
		result.Error = memerr.New(memerr.PF020TokenBudgetWarning,
			fmt.Sprintf("estimated %d tokens is within 80%% of the %d budget", estimated, maxTokens), true, "consider trimming before it grows further",
			map[string]any{"estimated": estimated, "max_tokens": maxTokens})
	}
	return result
}

// SizeResult is the content-size sub-check outcome.
type SizeResult struct {
	Length int
	Error  *memerr.Error
}

// CheckContentSize enforces min_length/max_length bounds; zero disables a bound.
func CheckContentSize(content string, minLength, maxLength int) SizeResult {
	length := len([]rune(content))
	result := SizeResult{Length: length}
	if minLength > 0 && length < minLength {
		result.Error = memerr.New(memerr.PF030ContentTooShort,
			fmt.Sprintf("content length %d is below minimum %d", length, minLength), true, "expand the content",
			map[string]any{"length": length, "min_length": minLength})
		return result
	}
	if maxLength > 0 && length > maxLength {
		result.Error = memerr.New(memerr.PF031ContentTooLong,
			fmt.Sprintf("content length %d exceeds maximum %d", length, maxLength), true, "split into multiple memories",
			map[string]any{"length": length, "max_length": maxLength})
	}
	return result
}

// Input carries the payload and toggles for a RunPreflight call.
type Input struct {
	Content     string
	FilePath    string
	SpecFolder  string
	Embedding   []float32
	MinLength   int
	MaxLength   int
	MaxTokens   int
	WithOverhead bool
	SimilarityThreshold float64
	DryRun      bool

	CheckAnchorsEnabled   bool
	CheckDuplicateEnabled bool
	CheckTokensEnabled    bool
	CheckSizeEnabled      bool
}

// Result is the unified run_preflight response.
type Result struct {
	Pass             bool
	DryRun           bool
	DryRunWouldPass  bool
	Anchors          *AnchorResult
	Duplicate        *DuplicateResult
	TokenBudget      *TokenBudgetResult
	Size             *SizeResult
	Errors           []*memerr.Error
	Warnings         []*memerr.Error
}

// RunPreflight executes every enabled sub-check and aggregates the verdict.
// In dry_run mode the real verdict is preserved in DryRunWouldPass while
// Pass is forced true.
func RunPreflight(ctx context.Context, in Input, exact ExactDuplicateLookup, finder SimilarityFinder) (Result, error) {
	var result Result

	if in.CheckAnchorsEnabled {
		anchors := CheckAnchors(in.Content)
		result.Anchors = &anchors
		result.Errors = append(result.Errors, anchors.Errors...)
	}

	if in.CheckDuplicateEnabled {
		dup, err := CheckDuplicate(ctx, in.Content, exact, in.Embedding, finder, in.SimilarityThreshold)
		if err != nil {
			return Result{}, err
		}
		result.Duplicate = &dup
		if dup.Error != nil {
			result.Errors = append(result.Errors, dup.Error)
		}
	}

	if in.CheckTokensEnabled {
		budget := CheckTokenBudget(in.Content, in.MaxTokens, in.WithOverhead)
		result.TokenBudget = &budget
		if budget.Exceeded {
			result.Errors = append(result.Errors, budget.Error)
		} else if budget.Warning {
			result.Warnings = append(result.Warnings, budget.Error)
		}
	}

	if in.CheckSizeEnabled {
		size := CheckContentSize(in.Content, in.MinLength, in.MaxLength)
		result.Size = &size
		if size.Error != nil {
			result.Errors = append(result.Errors, size.Error)
		}
	}

	wouldPass := len(result.Errors) == 0
	result.DryRun = in.DryRun
	if in.DryRun {
		result.DryRunWouldPass = wouldPass
		result.Pass = true
	} else {
		result.Pass = wouldPass
	}

	return result, nil
}
