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
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/bytegraph/services/bytegraph"
	"github.com/AleutianAI/bytegraph/services/bytegraph/config"
	"github.com/AleutianAI/bytegraph/services/bytegraph/snapshot"
)

// app holds state shared by the subcommands. The configuration is loaded
// once, before any subcommand runs.
type app struct {
	root       *cobra.Command
	configPath string

	cfg             *config.Config
	logger          *slog.Logger
	shutdownTracing func(context.Context) error
}

func newApp() *app {
	a := &app{}
	a.root = &cobra.Command{
		Use:   "bytegraph",
		Short: "Extract a semantic graph from compiled Java class files",
		Long: `bytegraph reads Java class files and extracts classes, methods,
calls, inheritance and dependency-injection edges, enriched with Spring,
JPA, MyBatis, Quartz and AOP metadata.

Commands:
  analyze    Analyze a class file, class directory or package
  serve      Run the HTTP API
  watch      Re-analyze a class directory whenever it changes
  snapshots  Inspect saved analyses
  version    Print the version`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.load(cmd)
		},
	}

	a.root.PersistentFlags().StringVar(&a.configPath, "config", "", "config file (YAML) layered over the defaults")

	a.root.AddCommand(newAnalyzeCmd(a))
	a.root.AddCommand(newServeCmd(a))
	a.root.AddCommand(newWatchCmd(a))
	a.root.AddCommand(newSnapshotsCmd(a))
	a.root.AddCommand(newVersionCmd())
	return a
}

// load reads the configuration and installs logging and tracing.
func (a *app) load(cmd *cobra.Command) error {
	cfg, err := config.LoadFile(a.configPath)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = newLogger(cmd.ErrOrStderr(), cfg.Logging)
	slog.SetDefault(a.logger)

	if cfg.Tracing.Enabled {
		shutdown, err := setupTracing(cmd.Context(), cfg.Tracing, cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		a.shutdownTracing = shutdown
	}
	return nil
}

// close flushes the tracer provider.
func (a *app) close() {
	if a.shutdownTracing == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.shutdownTracing(ctx); err != nil {
		a.logger.Warn("Failed to flush traces", slog.String("error", err.Error()))
	}
	a.shutdownTracing = nil
}

// openStore opens the snapshot store, or returns nil when snapshots are
// disabled.
func (a *app) openStore() (*snapshot.Store, error) {
	if !a.cfg.Snapshot.Enabled {
		return nil, nil
	}
	store, err := snapshot.Open(a.cfg.Snapshot.Dir, a.logger)
	if err != nil {
		return nil, err
	}
	a.logger.Info("Snapshot store opened",
		slog.String("dir", a.cfg.Snapshot.Dir),
		slog.Bool("in_memory", a.cfg.Snapshot.Dir == ""))
	return store, nil
}

func (a *app) newService(store *snapshot.Store) (*bytegraph.Service, error) {
	return bytegraph.NewService(bytegraph.ServiceConfig{
		WorkerCount:  a.cfg.Analysis.WorkerPoolSize,
		ChunkSize:    a.cfg.Analysis.ChunkSize,
		AllowedRoots: a.cfg.Security.AllowedRoots,
		Exclude:      a.cfg.Analysis.Exclude,
		Store:        store,
		Logger:       a.logger,
	})
}

// closeStore closes a store opened by openStore.
func (a *app) closeStore(store *snapshot.Store) {
	if store == nil {
		return
	}
	if err := store.Close(); err != nil {
		a.logger.Warn("Failed to close snapshot store", slog.String("error", err.Error()))
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), "bytegraph", bytegraph.Version)
			return err
		},
	}
}
