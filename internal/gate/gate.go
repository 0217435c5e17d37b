// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package gate implements the prediction-error gate: deciding whether new
// content should create, update, reinforce, supersede, or link to an
// existing memory.
package gate

import (
	"fmt"
	"strings"
	"time"

	"github.com/aleutian-labs/speckit-memory/internal/model"
)

// Thresholds (exact, per the decision contract).
const (
	DuplicateThreshold   = 0.95
	HighMatchThreshold   = 0.90
	MediumMatchThreshold = 0.70
)

// Candidate is a ranked similar memory considered by the gate.
type Candidate struct {
	ID         int64
	Similarity float64
	Content    string
}

// Input is the gate's decision input.
type Input struct {
	Candidates          []Candidate
	NewContent          string
	CheckContradictions bool // default true
}

// Result is the gate's decision.
type Result struct {
	Action        model.MemoryAction
	Reason        string
	Similarity    float64
	Candidate     *Candidate
	Contradiction *ContradictionResult
	RelatedIDs    []int64
}

// NewInput builds a gate Input with check_contradictions defaulted to true,
// matching the tree's documented default. Callers that want the check off
// should set CheckContradictions=false on the returned value.
func NewInput(candidates []Candidate, newContent string) Input {
	return Input{Candidates: candidates, NewContent: newContent, CheckContradictions: true}
}

// Decide runs the prediction-error decision tree over input.
func Decide(input Input) Result {
	if len(input.Candidates) == 0 {
		return Result{Action: model.ActionCreate, Reason: "No similar memories found"}
	}

	best := input.Candidates[0]
	for _, c := range input.Candidates[1:] {
		if c.Similarity > best.Similarity {
			best = c
		}
	}
	bestCopy := best

	switch {
	case best.Similarity >= DuplicateThreshold:
		return Result{
			Action:     model.ActionReinforce,
			Reason:     fmt.Sprintf("Reinforcing near-duplicate memory (%s similar)", pct(best.Similarity)),
			Similarity: best.Similarity,
			Candidate:  &bestCopy,
		}

	case best.Similarity >= HighMatchThreshold:
		var contradiction *ContradictionResult
		if input.CheckContradictions {
			c := DetectContradiction(best.Content, input.NewContent)
			contradiction = &c
		}
		if contradiction != nil && contradiction.Found {
			return Result{
				Action:        model.ActionSupersede,
				Reason:        fmt.Sprintf("New content contradicts existing memory (%s similar)", pct(best.Similarity)),
				Similarity:    best.Similarity,
				Candidate:     &bestCopy,
				Contradiction: contradiction,
			}
		}
		return Result{
			Action:        model.ActionUpdate,
			Reason:        fmt.Sprintf("Updating closely related memory (%s similar)", pct(best.Similarity)),
			Similarity:    best.Similarity,
			Candidate:     &bestCopy,
			Contradiction: contradiction,
		}

	case best.Similarity >= MediumMatchThreshold:
		var related []int64
		for _, c := range input.Candidates {
			if c.Similarity >= MediumMatchThreshold && c.ID != best.ID {
				related = append(related, c.ID)
			}
		}
		return Result{
			Action:     model.ActionCreateLinked,
			Reason:     fmt.Sprintf("Creating memory linked to related content (%s similar)", pct(best.Similarity)),
			Similarity: best.Similarity,
			Candidate:  &bestCopy,
			RelatedIDs: related,
		}

	default:
		return Result{Action: model.ActionCreate, Reason: "No sufficiently similar memory found", Similarity: best.Similarity}
	}
}

func pct(sim float64) string {
	return fmt.Sprintf("%.0f%%", sim*100)
}

// BuildConflictRecord returns a conflict record for any non-CREATE decision,
// or nil for CREATE.
func BuildConflictRecord(specFolder string, result Result, newContentPreview string) *model.ConflictRecord {
	if result.Action == model.ActionCreate {
		return nil
	}
	rec := &model.ConflictRecord{
		Timestamp:         time.Now(),
		SpecFolder:        specFolder,
		Action:            result.Action,
		Similarity:        result.Similarity,
		NewContentPreview: preview(newContentPreview),
	}
	if result.Candidate != nil {
		rec.CandidateID = result.Candidate.ID
		rec.CandidatePreview = preview(result.Candidate.Content)
	}
	if result.Contradiction != nil && result.Contradiction.Found {
		rec.ContradictionPattern = result.Contradiction.Pattern
	}
	return rec
}

const previewLength = 200

func preview(s string) string {
	if len(s) <= previewLength {
		return s
	}
	return s[:previewLength]
}

// ContradictionPair is one lexically opposed phrase pair.
type ContradictionPair struct {
	Type string
	A    string
	B    string
}

// contradictionPairs is the ordered, closed set of lexical opposites the
// gate checks for when deciding SUPERSEDE vs UPDATE.
var contradictionPairs = []ContradictionPair{
	{Type: "absolute", A: "always", B: "never"},
	{Type: "directive", A: "use", B: "don't use"},
	{Type: "toggle", A: "enable", B: "disable"},
	{Type: "preference", A: "prefer", B: "avoid"},
	{Type: "recommendation", A: "should", B: "should not"},
	{Type: "boolean", A: "true", B: "false"},
	{Type: "affirmation", A: "yes", B: "no"},
	{Type: "inclusion", A: "include", B: "exclude"},
	{Type: "permission", A: "allow", B: "deny"},
	{Type: "requirement", A: "must", B: "must not"},
}

// ContradictionResult is the contradiction-detection outcome.
type ContradictionResult struct {
	Found   bool
	Type    string
	Pattern string
	Pair    [2]string
}

// DetectContradiction compares a and b against the ordered pattern pair
// list. Empty or blank inputs never contradict.
func DetectContradiction(a, b string) ContradictionResult {
	if strings.TrimSpace(a) == "" || strings.TrimSpace(b) == "" {
		return ContradictionResult{Found: false}
	}
	la, lb := strings.ToLower(a), strings.ToLower(b)

	for _, p := range contradictionPairs {
		if strings.Contains(la, p.A) && strings.Contains(lb, p.B) {
			return ContradictionResult{Found: true, Type: p.Type, Pattern: p.A + " vs " + p.B, Pair: [2]string{p.A, p.B}}
		}
		if strings.Contains(la, p.B) && strings.Contains(lb, p.A) {
			return ContradictionResult{Found: true, Type: p.Type, Pattern: p.B + " vs " + p.A, Pair: [2]string{p.B, p.A}}
		}
	}
	return ContradictionResult{Found: false}
}
