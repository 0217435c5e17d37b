// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/aleutian-labs/speckit-memory/internal/config"
	"github.com/aleutian-labs/speckit-memory/internal/engine"
	"github.com/aleutian-labs/speckit-memory/internal/indexer"
	"github.com/aleutian-labs/speckit-memory/internal/tools"
)

// openSurface loads config, opens the engine, and wraps it in a tool
// surface, the sequence every subcommand below needs before it can do
// anything.
func openSurface(ctx context.Context) (*tools.Surface, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	eng, err := engine.Open(ctx, cfg, slog.Default(), nil)
	if err != nil {
		return nil, nil, fmt.Errorf("opening engine: %w", err)
	}
	return tools.New(eng), func() { _ = eng.Close() }, nil
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

// isOutputTerminal reports whether stdout is an interactive terminal, the
// same check cmd_chat's output formatting used to decide between plain and
// decorated output.
func isOutputTerminal() bool {
	return isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
}

func main() {
	color.NoColor = !isOutputTerminal()

	root := &cobra.Command{
		Use:   "memctx",
		Short: "Operator CLI for the spec-aware memory engine",
	}

	root.AddCommand(
		newStatsCmd(),
		newHealthCmd(),
		newListCmd(),
		newSearchCmd(),
		newScanCmd(),
		newCheckpointCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("error: %v", err))
		os.Exit(1)
	}
}

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print embedding, lexical, and causal-graph counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, closeFn, err := openSurface(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			env := s.MemoryStats(cmd.Context())
			if env.Err != nil {
				return fmt.Errorf("%s: %s", env.Err.Code, env.Err.Message)
			}
			printJSON(env.Data)
			return nil
		},
	}
}

func newHealthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Print a full diagnostic snapshot across every subsystem",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, closeFn, err := openSurface(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			env := s.MemoryHealth(cmd.Context())
			if env.Err != nil {
				return fmt.Errorf("%s: %s", env.Err.Code, env.Err.Message)
			}
			if env.Data.ProviderReady {
				fmt.Println(color.GreenString("provider chain ready (tier=%s)", env.Data.ProviderTier))
			} else {
				fmt.Println(color.YellowString("provider chain degraded (tier=%s, lexical_only=%v)", env.Data.ProviderTier, env.Data.LexicalOnly))
			}
			printJSON(env.Data)
			return nil
		},
	}
}

func newListCmd() *cobra.Command {
	var specFolder string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List memories, optionally filtered to one spec folder",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, closeFn, err := openSurface(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			env := s.MemoryList(cmd.Context(), specFolder)
			if env.Err != nil {
				return fmt.Errorf("%s: %s", env.Err.Code, env.Err.Message)
			}
			printJSON(env.Data)
			return nil
		},
	}
	cmd.Flags().StringVar(&specFolder, "spec-folder", "", "restrict listing to this spec folder")
	return cmd
}

func newSearchCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Run a hybrid search over the memory store",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, closeFn, err := openSurface(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			query := args[0]
			for _, a := range args[1:] {
				query += " " + a
			}

			env := s.MemorySearch(cmd.Context(), tools.MemorySearchInput{Query: query, Limit: limit, AutoDetectIntent: true})
			if env.Err != nil {
				return fmt.Errorf("%s: %s", env.Err.Code, env.Err.Message)
			}
			printJSON(env.Data)
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 10, "maximum results to return")
	return cmd
}

func newScanCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "scan [paths...]",
		Short: "Categorize file paths by whether they need reindexing",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, closeFn, err := openSurface(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			var bar *progressbar.ProgressBar
			if isOutputTerminal() {
				bar = progressbar.Default(int64(len(args)), "scanning")
			}

			var merged indexer.CategorizeResult
			for _, path := range args {
				env := s.MemoryIndexScan(cmd.Context(), []string{path}, force)
				if env.Err != nil {
					return fmt.Errorf("%s: %s", env.Err.Code, env.Err.Message)
				}
				mergeCategorizeResult(&merged, env.Data)
				if bar != nil {
					_ = bar.Add(1)
				}
			}

			printJSON(merged)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "force reindexing regardless of mtime/hash")
	return cmd
}

// mergeCategorizeResult folds one path's scan result into the running total,
// since the CLI drives memory_index_scan one path at a time to report
// per-path progress.
func mergeCategorizeResult(dst *indexer.CategorizeResult, src indexer.CategorizeResult) {
	dst.NeedsIndexing = append(dst.NeedsIndexing, src.NeedsIndexing...)
	dst.Unchanged = append(dst.Unchanged, src.Unchanged...)
	dst.NeedsMtimeUpdate = append(dst.NeedsMtimeUpdate, src.NeedsMtimeUpdate...)
	dst.NotFound = append(dst.NotFound, src.NotFound...)
	dst.Stats.Total += src.Stats.Total
	dst.Stats.FastPathSkips += src.Stats.FastPathSkips
	dst.Stats.HashChecks += src.Stats.HashChecks
}

func newCheckpointCmd() *cobra.Command {
	parent := &cobra.Command{
		Use:   "checkpoint",
		Short: "Create, list, restore, or delete store checkpoints",
	}

	parent.AddCommand(
		&cobra.Command{
			Use:   "create [label]",
			Short: "Snapshot the live store under a label",
			Args:  cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				s, closeFn, err := openSurface(cmd.Context())
				if err != nil {
					return err
				}
				defer closeFn()

				label := "manual"
				if len(args) > 0 {
					label = args[0]
				}
				env := s.CheckpointCreate(cmd.Context(), label)
				if env.Err != nil {
					return fmt.Errorf("%s: %s", env.Err.Code, env.Err.Message)
				}
				printJSON(env.Data)
				return nil
			},
		},
		&cobra.Command{
			Use:   "list",
			Short: "List every checkpoint on disk",
			RunE: func(cmd *cobra.Command, args []string) error {
				s, closeFn, err := openSurface(cmd.Context())
				if err != nil {
					return err
				}
				defer closeFn()

				env := s.CheckpointList()
				if env.Err != nil {
					return fmt.Errorf("%s: %s", env.Err.Code, env.Err.Message)
				}
				printJSON(env.Data)
				return nil
			},
		},
		&cobra.Command{
			Use:   "restore [id]",
			Short: "Restore the store from a checkpoint id",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				s, closeFn, err := openSurface(cmd.Context())
				if err != nil {
					return err
				}
				defer closeFn()

				env := s.CheckpointRestore(cmd.Context(), args[0])
				if env.Err != nil {
					return fmt.Errorf("%s: %s", env.Err.Code, env.Err.Message)
				}
				fmt.Println(color.GreenString("restored from checkpoint %s", args[0]))
				return nil
			},
		},
		&cobra.Command{
			Use:   "delete [id]",
			Short: "Delete a checkpoint's files from disk",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				s, closeFn, err := openSurface(cmd.Context())
				if err != nil {
					return err
				}
				defer closeFn()

				env := s.CheckpointDelete(args[0])
				if env.Err != nil {
					return fmt.Errorf("%s: %s", env.Err.Code, env.Err.Message)
				}
				fmt.Println(color.GreenString("deleted checkpoint %s", args[0]))
				return nil
			},
		},
	)

	return parent
}
