// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package tools is the L1-L7 tool surface: one thin wrapper per tool name
// in registry.toolLayers, each decorating its engine call with the
// enhanced description, token budget, and coded-error/recovery-hint
// contract the registry and memerr packages define. Nothing here holds
// business logic beyond request shaping; the engine, checkpoint, gate,
// and archival packages own the actual decisions.
package tools

import (
	"log/slog"

	"github.com/aleutian-labs/speckit-memory/internal/checkpoint"
	"github.com/aleutian-labs/speckit-memory/internal/engine"
	"github.com/aleutian-labs/speckit-memory/internal/indexer"
	"github.com/aleutian-labs/speckit-memory/internal/memerr"
	"github.com/aleutian-labs/speckit-memory/internal/registry"
)

// Surface is the full tool surface bound to one running engine. Every tool
// method hangs off this type so a host process (an MCP server, a CLI, a
// test) wires it up once and calls tools by name.
type Surface struct {
	Engine     *engine.Engine
	Checkpoint *checkpoint.Manager
	Logger     *slog.Logger

	// IndexWatcher is nil until MemoryIndexWatchStart is called.
	IndexWatcher *indexer.Watcher
}

// New returns a Surface over eng, with checkpoints rooted at eng's data
// directory.
func New(eng *engine.Engine) *Surface {
	return &Surface{
		Engine:     eng,
		Checkpoint: checkpoint.NewManager(eng.Config.DataDir),
		Logger:     eng.Logger,
	}
}

// Envelope is the shape every tool call returns: either Data is populated
// or Err is, never both. Result is parameterized so each tool keeps its
// own concrete payload type.
type Envelope[T any] struct {
	Data T
	Err  *memerr.Error
	Hint *memerr.Hint
}

// fail builds a failed Envelope, attaching tool's registered recovery hint
// for err's code.
func fail[T any](tool string, err *memerr.Error) Envelope[T] {
	if err == nil {
		err = memerr.New(memerr.E040SearchFailed, "unknown failure", true, "", nil)
	}
	hint := memerr.GetRecoveryHint(tool, err.Code)
	return Envelope[T]{Err: err, Hint: &hint}
}

// ok builds a successful Envelope.
func ok[T any](data T) Envelope[T] {
	return Envelope[T]{Data: data}
}

// describe returns tool's registry-enhanced description and token budget,
// the pair a host surfaces alongside the tool's schema.
func describe(tool, rawDescription string) (string, int) {
	return registry.EnhanceDescription(tool, rawDescription), registry.GetTokenBudget(tool)
}
