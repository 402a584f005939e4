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
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/bytegraph/services/bytegraph/model"
	"github.com/AleutianAI/bytegraph/services/bytegraph/snapshot"
	"github.com/AleutianAI/bytegraph/services/bytegraph/watch"
)

// watchLine is one line of watch output.
type watchLine struct {
	Initial    bool        `json:"initial,omitempty"`
	Skipped    bool        `json:"skipped,omitempty"`
	Changed    int         `json:"changed"`
	Removed    int         `json:"removed"`
	Succeeded  int         `json:"succeeded"`
	Failed     int         `json:"failed"`
	Stats      model.Stats `json:"stats"`
	AnalysisID string      `json:"analysis_id,omitempty"`

	Diff *snapshot.DiffSummary `json:"diff,omitempty"`
}

func newWatchCmd(a *app) *cobra.Command {
	var (
		label    string
		debounce time.Duration
	)
	cmd := &cobra.Command{
		Use:   "watch DIR",
		Short: "Re-analyze a class directory whenever its class files change",
		Long: `Watch DIR recursively and re-analyze it after class files change.

Rewrites that leave every file's content unchanged are skipped. With
snapshots enabled, each analysis is saved and a restart over unchanged
files reuses the latest snapshot. One JSON line is printed per analysis.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openStore()
			if err != nil {
				return err
			}
			defer a.closeStore(store)

			svc, err := a.newService(store)
			if err != nil {
				return err
			}

			w, err := watch.New(watch.Config{
				Root:        args[0],
				Resolver:    svc.Resolver(),
				Coordinator: svc.Coordinator(),
				Store:       store,
				Label:       label,
				Debounce:    debounce,
				Logger:      a.logger,
			})
			if err != nil {
				return err
			}

			a.logger.Info("Watching class directory", slog.String("root", w.Root()))
			enc := json.NewEncoder(cmd.OutOrStdout())
			var encErr error
			err = w.Run(cmd.Context(), func(u watch.Update) {
				if encErr == nil {
					encErr = enc.Encode(newWatchLine(u))
				}
			})
			if err != nil {
				return err
			}
			return encErr
		},
	}
	cmd.Flags().StringVar(&label, "label", "watch", "snapshot label")
	cmd.Flags().DurationVar(&debounce, "debounce", watch.DefaultDebounce, "quiet period before re-analysis")
	return cmd
}

func newWatchLine(u watch.Update) watchLine {
	line := watchLine{
		Initial:    u.Initial,
		Skipped:    u.Result == nil,
		Changed:    len(u.Changed),
		Removed:    len(u.Removed),
		AnalysisID: u.AnalysisID,
	}
	if u.Diff != nil {
		line.Diff = &u.Diff.Summary
	}
	if u.Result != nil {
		line.Succeeded = u.Result.Succeeded
		line.Failed = u.Result.Failed
		line.Stats = u.Result.Stats
	}
	return line
}
