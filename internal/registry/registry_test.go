// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTotalBudget_SumsToSevenThousandSixHundred(t *testing.T) {
	assert.Equal(t, 7600, TotalBudget())
}

func TestGetTokenBudget_KnownToolReturnsLayerBudget(t *testing.T) {
	assert.Equal(t, 2000, GetTokenBudget("memory_context"))
	assert.Equal(t, 1500, GetTokenBudget("memory_search"))
	assert.Equal(t, 1000, GetTokenBudget("memory_index_scan"))
}

func TestGetTokenBudget_UnknownToolDefaultsToOneThousand(t *testing.T) {
	assert.Equal(t, 1000, GetTokenBudget("nonexistent_tool"))
}

func TestLayerOf_EveryCatalogedTool(t *testing.T) {
	cases := map[string]Layer{
		"memory_context":               L1,
		"memory_search":                L2,
		"memory_save":                  L2,
		"memory_match_triggers":        L2,
		"memory_list":                  L3,
		"memory_stats":                 L3,
		"memory_health":                L3,
		"memory_update":                L4,
		"memory_delete":                L4,
		"memory_validate":              L4,
		"checkpoint_create":            L5,
		"checkpoint_list":              L5,
		"checkpoint_restore":           L5,
		"checkpoint_delete":            L5,
		"memory_drift_why":             L6,
		"task_preflight":               L6,
		"task_postflight":              L6,
		"memory_index_scan":            L7,
		"memory_index_watch":           L7,
		"memory_get_learning_history":  L7,
	}
	for tool, want := range cases {
		got, ok := LayerOf(tool)
		assert.True(t, ok, tool)
		assert.Equal(t, want, got, tool)
	}
}

func TestEnhanceDescription_PrependsLayerTag(t *testing.T) {
	assert.Equal(t, "[L2:Core] finds memories", EnhanceDescription("memory_search", "finds memories"))
}

func TestEnhanceDescription_UnknownToolPassesThrough(t *testing.T) {
	assert.Equal(t, "does a thing", EnhanceDescription("mystery_tool", "does a thing"))
}

func TestGetRecommendedLayers_KnownTaskClasses(t *testing.T) {
	assert.Equal(t, []Layer{L1, L2}, GetRecommendedLayers(TaskSearch))
	assert.Equal(t, []Layer{L1, L2, L4}, GetRecommendedLayers(TaskModify))
}

func TestGetRecommendedLayers_UnknownDefaultsToCoreOnly(t *testing.T) {
	assert.Equal(t, []Layer{L1}, GetRecommendedLayers(TaskClass("unknown")))
}

func TestDescribe_ListsOwnedToolsSorted(t *testing.T) {
	def := L2.Describe()
	assert.Equal(t, "Core", def.Name)
	assert.Equal(t, 1500, def.TokenBudget)
	assert.Equal(t, []string{"memory_match_triggers", "memory_save", "memory_search"}, def.Tools)
}
