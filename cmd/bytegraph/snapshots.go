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
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/bytegraph/services/bytegraph/model"
	"github.com/AleutianAI/bytegraph/services/bytegraph/search"
	"github.com/AleutianAI/bytegraph/services/bytegraph/snapshot"
)

var errNoSnapshotDir = errors.New("snapshot.dir is not set; snapshots kept in memory do not outlive the process")

// newSnapshotsCmd inspects the on-disk snapshot store.
func newSnapshotsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshots",
		Short: "Inspect saved analyses",
		Long: `Inspect the analyses saved in snapshot.dir.

Commands:
  list       List analyses, newest first
  diff       Compare two analyses
  search     Search the symbols of an analysis by name
  delete     Delete an analysis`,
	}
	cmd.AddCommand(newSnapshotsListCmd(a))
	cmd.AddCommand(newSnapshotsDiffCmd(a))
	cmd.AddCommand(newSnapshotsSearchCmd(a))
	cmd.AddCommand(newSnapshotsDeleteCmd(a))
	return cmd
}

// withStore opens the snapshot directory for one command. A directory
// that does not exist yet holds no snapshots; fn then receives nil.
func (a *app) withStore(fn func(*snapshot.Store) error) error {
	dir := a.cfg.Snapshot.Dir
	if dir == "" {
		return errNoSnapshotDir
	}
	if _, err := os.Stat(dir); errors.Is(err, os.ErrNotExist) {
		return fn(nil)
	}
	store, err := snapshot.Open(dir, a.logger)
	if err != nil {
		return err
	}
	defer a.closeStore(store)
	return fn(store)
}

func newSnapshotsListCmd(a *app) *cobra.Command {
	var (
		root  string
		limit int
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List analyses, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withStore(func(store *snapshot.Store) error {
				var list []*snapshot.Metadata
				if store != nil {
					var err error
					if list, err = store.List(cmd.Context(), root, limit); err != nil {
						return err
					}
				}
				return writeSnapshotTable(cmd.OutOrStdout(), list)
			})
		},
	}
	cmd.Flags().StringVar(&root, "root", "", "only analyses of this root")
	cmd.Flags().IntVar(&limit, "limit", snapshot.DefaultListLimit, "maximum analyses to list")
	return cmd
}

func writeSnapshotTable(w io.Writer, list []*snapshot.Metadata) error {
	if len(list) == 0 {
		_, err := fmt.Fprintln(w, "No snapshots found.")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCREATED\tROOT\tLABEL\tCLASSES\tMETHODS\tFAILED")
	for _, m := range list {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\t%d\n",
			m.AnalysisID,
			time.UnixMilli(m.CreatedAtMilli).UTC().Format(time.RFC3339),
			m.Root,
			m.Label,
			m.Stats.Classes,
			m.Stats.Methods,
			m.Failed)
	}
	return tw.Flush()
}

func newSnapshotsDiffCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "diff BASE_ID TARGET_ID",
		Short: "Compare two analyses",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(func(store *snapshot.Store) error {
				if store == nil {
					return snapshot.ErrNotFound
				}
				diff, err := store.Diff(cmd.Context(), args[0], args[1])
				if err != nil {
					return err
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(diff)
			})
		},
	}
}

func newSnapshotsSearchCmd(a *app) *cobra.Command {
	var (
		nodeType string
		limit    int
	)
	cmd := &cobra.Command{
		Use:   "search ID QUERY",
		Short: "Search the symbols of an analysis by name",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(func(store *snapshot.Store) error {
				if store == nil {
					return snapshot.ErrNotFound
				}
				analysis, _, err := store.Load(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				matches, err := search.NewIndex(analysis.Nodes).Search(cmd.Context(), search.Query{
					Text:     args[1],
					NodeType: model.NodeType(nodeType),
					Limit:    limit,
				})
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				for _, m := range matches {
					fmt.Fprintf(out, "%-9s %-10s %s\n", m.Symbol.NodeType, m.MatchType, m.Symbol.FQN)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&nodeType, "type", "", "class, interface, enum or method")
	cmd.Flags().IntVar(&limit, "limit", search.DefaultLimit, "maximum matches")
	return cmd
}

func newSnapshotsDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Delete an analysis",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(func(store *snapshot.Store) error {
				if store == nil {
					return snapshot.ErrNotFound
				}
				if err := store.Delete(cmd.Context(), args[0]); err != nil {
					return err
				}
				_, err := fmt.Fprintln(cmd.OutOrStdout(), "deleted", args[0])
				return err
			})
		},
	}
}
