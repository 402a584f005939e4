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
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/bytegraph/services/bytegraph"
	"github.com/AleutianAI/bytegraph/services/bytegraph/input"
)

func newAnalyzeCmd(a *app) *cobra.Command {
	var (
		mode    string
		pkg     string
		persist bool
		label   string
		pretty  bool
	)
	cmd := &cobra.Command{
		Use:   "analyze PATH",
		Short: "Analyze a class file, class directory or package and print the class records",
		Long: `Analyze PATH and print the result as JSON.

Modes:
  class-file     PATH is a single .class file
  class-dir      PATH is a directory scanned recursively (default)
  package-root   PATH is a class root; --package selects the package`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m := input.Mode(mode)
			if !m.Valid() {
				return fmt.Errorf("%w: unknown mode %q", input.ErrInvalidRequest, mode)
			}

			store, err := a.openStore()
			if err != nil {
				return err
			}
			defer a.closeStore(store)

			svc, err := a.newService(store)
			if err != nil {
				return err
			}

			resp, err := svc.Analyze(cmd.Context(), bytegraph.AnalyzeRequest{
				Mode:    m,
				Path:    args[0],
				Package: pkg,
				Persist: persist,
				Label:   label,
			})
			if err != nil {
				return err
			}
			if resp.Failed > 0 {
				a.logger.Warn("Some class files could not be analyzed",
					slog.Int("failed", resp.Failed),
					slog.Int("succeeded", resp.Succeeded))
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			if pretty {
				enc.SetIndent("", "  ")
			}
			return enc.Encode(resp)
		},
	}
	cmd.Flags().StringVar(&mode, "mode", string(input.ModeClassDir), "input mode: class-file, class-dir or package-root")
	cmd.Flags().StringVar(&pkg, "package", "", "dotted package name for package-root mode")
	cmd.Flags().BoolVar(&persist, "persist", false, "save the result as a snapshot (requires snapshot.enabled)")
	cmd.Flags().StringVar(&label, "label", "", "snapshot label")
	cmd.Flags().BoolVar(&pretty, "pretty", false, "indent the JSON output")
	return cmd
}
