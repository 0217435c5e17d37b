// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package registry is the L1-L7 tool-surface catalog: which layer each
// tool belongs to, the token budget that layer owns, and which layers a
// given kind of task should pull into context.
package registry

import (
	"fmt"
	"sort"
)

// Layer is one of the seven closed tool-surface layers, ordered from the
// always-loaded core (L1) to the rarely-needed deep-audit surface (L7).
type Layer int

const (
	L1 Layer = iota + 1
	L2
	L3
	L4
	L5
	L6
	L7
)

// Name is the human-readable layer label used in enhanced descriptions.
func (l Layer) Name() string {
	return layerNames[l]
}

var layerNames = map[Layer]string{
	L1: "Orchestration",
	L2: "Core",
	L3: "Discovery",
	L4: "Mutation",
	L5: "Lifecycle",
	L6: "Analysis",
	L7: "Maintenance",
}

// tokenBudgets is the per-layer token budget. L1..L7 sum to 7600.
var tokenBudgets = map[Layer]int{
	L1: 2000,
	L2: 1500,
	L3: 800,
	L4: 500,
	L5: 600,
	L6: 1200,
	L7: 1000,
}

// defaultUnknownBudget is returned by GetTokenBudget for a tool this
// registry does not recognize.
const defaultUnknownBudget = 1000

// layerUseCases is the one-line "when to load this layer" description
// surfaced on Definition, read by memory_context when it decides what to
// pull into the agent's working context.
var layerUseCases = map[Layer]string{
	L1: "Always loaded; the unified retrieval entry point for every turn.",
	L2: "Loaded when the agent needs to search, save, or match trigger phrases.",
	L3: "Loaded when the agent is browsing or auditing without mutating state.",
	L4: "Loaded when the agent needs to update, delete, or validate a memory.",
	L5: "Loaded when the agent needs a restorable snapshot of the store.",
	L6: "Loaded when the agent needs decision lineage or pre/post-task checks.",
	L7: "Loaded rarely, for index maintenance and learning-history audits.",
}

// Definition is the full per-layer record the spec's registry exposes:
// {id, name, description, tokenBudget, priority, useCase, tools[]}.
type Definition struct {
	ID          Layer
	Name        string
	Description string
	TokenBudget int
	Priority    int
	UseCase     string
	Tools       []string
}

// Describe returns l's full Definition, with Tools sorted for determinism.
func (l Layer) Describe() Definition {
	var tools []string
	for tool, layer := range toolLayers {
		if layer == l {
			tools = append(tools, tool)
		}
	}
	sort.Strings(tools)
	return Definition{
		ID:          l,
		Name:        l.Name(),
		Description: fmt.Sprintf("Layer %d: %s", int(l), l.Name()),
		TokenBudget: tokenBudgets[l],
		Priority:    int(l),
		UseCase:     layerUseCases[l],
		Tools:       tools,
	}
}

// toolLayers assigns every known tool to its owning layer.
var toolLayers = map[string]Layer{
	"memory_context": L1,

	"memory_search":         L2,
	"memory_save":           L2,
	"memory_match_triggers": L2,

	"memory_list":   L3,
	"memory_stats":  L3,
	"memory_health": L3,

	"memory_update":   L4,
	"memory_delete":   L4,
	"memory_validate": L4,

	"checkpoint_create":  L5,
	"checkpoint_list":    L5,
	"checkpoint_restore": L5,
	"checkpoint_delete":  L5,

	"memory_drift_why": L6,
	"task_preflight":   L6,
	"task_postflight":  L6,

	"memory_index_scan":           L7,
	"memory_index_watch":          L7,
	"memory_get_learning_history": L7,
}

// LayerOf returns the layer a tool belongs to, or (false) if unknown.
func LayerOf(tool string) (Layer, bool) {
	l, ok := toolLayers[tool]
	return l, ok
}

// GetTokenBudget returns the token budget of tool's owning layer, or
// defaultUnknownBudget for a tool this registry does not recognize.
func GetTokenBudget(tool string) int {
	l, ok := toolLayers[tool]
	if !ok {
		return defaultUnknownBudget
	}
	return tokenBudgets[l]
}

// LayerBudget returns the token budget owned by layer l.
func LayerBudget(l Layer) int {
	return tokenBudgets[l]
}

// TotalBudget is the sum of every layer's token budget.
func TotalBudget() int {
	total := 0
	for _, b := range tokenBudgets {
		total += b
	}
	return total
}

// EnhanceDescription prepends a "[Lx:Name]" tag to desc for every tool this
// registry recognizes. An unrecognized tool's description passes through
// unchanged.
func EnhanceDescription(tool, desc string) string {
	l, ok := toolLayers[tool]
	if !ok {
		return desc
	}
	return fmt.Sprintf("[L%d:%s] %s", l, l.Name(), desc)
}

// TaskClass is a closed set of task shapes GetRecommendedLayers maps to a
// layer set.
type TaskClass string

const (
	TaskSearch      TaskClass = "search"
	TaskBrowse      TaskClass = "browse"
	TaskModify      TaskClass = "modify"
	TaskCheckpoint  TaskClass = "checkpoint"
	TaskAnalyze     TaskClass = "analyze"
	TaskMaintenance TaskClass = "maintenance"
)

var recommendedLayers = map[TaskClass][]Layer{
	TaskSearch:      {L1, L2},
	TaskBrowse:      {L1, L3},
	TaskModify:      {L1, L2, L4},
	TaskCheckpoint:  {L1, L5},
	TaskAnalyze:     {L1, L3, L6},
	TaskMaintenance: {L1, L7},
}

// GetRecommendedLayers returns which layers should be loaded into context
// for a given task class. An unrecognized class defaults to just L1, the
// always-loaded core.
func GetRecommendedLayers(task TaskClass) []Layer {
	if layers, ok := recommendedLayers[task]; ok {
		return append([]Layer(nil), layers...)
	}
	return []Layer{L1}
}
