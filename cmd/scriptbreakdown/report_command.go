/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"scriptbreakdown/internal/export"
)

func newReportCommand(ctx *commandContext) *cobra.Command {
	var (
		pdfPath  string
		jsonPath string
		outDir   string
		preset   string
		formats  []string
		pdfOpts  export.PDFOptions
		scenes   string
	)
	cmd := &cobra.Command{
		Use:   "report <script-id>",
		Short: "Export the breakdown report as PDF sheets and JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			runCtx := cmd.Context()
			if runCtx == nil {
				runCtx = context.Background()
			}
			store, err := ctx.openStore(runCtx)
			if err != nil {
				return err
			}
			defer store.Close()

			r, err := export.LoadReport(runCtx, store, args[0])
			if err != nil {
				return err
			}
			if scenes != "" {
				for _, s := range strings.Split(scenes, ",") {
					if s = strings.TrimSpace(s); s != "" {
						pdfOpts.Scenes = append(pdfOpts.Scenes, s)
					}
				}
			}

			out := cmd.OutOrStdout()
			var written []string
			if pdfPath != "" {
				if err := export.WritePDF(pdfPath, r, pdfOpts); err != nil {
					return err
				}
				written = append(written, pdfPath)
			}
			if jsonPath != "" {
				if err := export.WriteJSONFile(jsonPath, r); err != nil {
					return err
				}
				written = append(written, jsonPath)
			}
			if len(written) == 0 {
				written, err = export.WriteAll(r, export.BatchOptions{
					Preset:  export.PresetName(preset),
					Formats: formats,
					OutDir:  outDir,
					PDF:     pdfOpts,
				})
				if err != nil {
					return err
				}
			}
			for _, p := range written {
				abs, err := filepath.Abs(p)
				if err != nil {
					abs = p
				}
				fmt.Fprintf(out, "Wrote %s\n", abs)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&pdfPath, "pdf", "", "Write the PDF report to this path")
	cmd.Flags().StringVar(&jsonPath, "json", "", "Write the JSON report to this path")
	cmd.Flags().StringVar(&outDir, "out-dir", ".", "Directory for preset exports")
	cmd.Flags().StringVar(&preset, "preset", string(export.PresetProduction), "Preset used when no explicit path is given (production, data)")
	cmd.Flags().StringSliceVar(&formats, "format", nil, "Formats to write with the preset (pdf, json)")
	cmd.Flags().BoolVar(&pdfOpts.IncludeCast, "cast", false, "Append a cast page to the PDF")
	cmd.Flags().StringVar(&pdfOpts.PageSize, "page-size", "Letter", "PDF page size (Letter, A4)")
	cmd.Flags().StringVar(&scenes, "scenes", "", "Comma separated scene numbers to print")
	return cmd
}
