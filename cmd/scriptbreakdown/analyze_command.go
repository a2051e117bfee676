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
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"scriptbreakdown/internal/breakdown"
	"scriptbreakdown/internal/domain"
	applog "scriptbreakdown/internal/log"
	"scriptbreakdown/internal/telemetry"
)

func newAnalyzeCommand(ctx *commandContext) *cobra.Command {
	var (
		production string
		opts       breakdown.RegisterOptions
		background bool
	)
	cmd := &cobra.Command{
		Use:   "analyze <file>",
		Short: "Register a screenplay and run its production breakdown",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			tables, err := ctx.tables()
			if err != nil {
				return err
			}
			runCtx := cmd.Context()
			if runCtx == nil {
				runCtx = context.Background()
			}
			store, err := ctx.openStore(runCtx)
			if err != nil {
				return err
			}
			defer store.Close()

			l := applog.WithComponent("cli")
			out := cmd.OutOrStdout()
			script, err := breakdown.NewRegistrar(store, cfg.Analysis.MaxScriptBytes()).Register(runCtx, production, args[0], opts)
			switch {
			case errors.Is(err, breakdown.ErrDuplicateScript):
				fmt.Fprintf(out, "Script already registered as %s; running its breakdown again.\n", script.ID)
			case err != nil:
				return err
			default:
				fmt.Fprintf(out, "Registered %q as %s (%s)\n", script.Title, script.ID, script.Format)
			}
			if ctx.session != nil {
				ctx.session.ScriptID = script.ID
				ctx.session.OnPanic = func(p any) {
					if b, err := store.GetBreakdownByScript(context.Background(), script.ID); err == nil {
						_ = store.FailBreakdown(context.Background(), b.ID, fmt.Sprint(p))
					}
				}
			}

			events := telemetry.Default()
			defer func() {
				fctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
				defer cancel()
				events.Flush(fctx)
			}()
			runner := breakdown.NewRunner(store, ctx.nlpLoader(tables), tables, breakdown.Options{
				LockDir: filepath.Join(cfg.Analysis.UploadDir, ".locks"),
				Events:  events,
			})

			if background {
				id, err := runner.Start(runCtx, script.ID)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Breakdown %s started\n", id)
				runner.Wait()
			} else if _, err := runner.Run(runCtx, script.ID); err != nil {
				l.Error("breakdown failed", slog.String("script", script.ID), slog.Any("err", err))
				return fmt.Errorf("breakdown of %s failed: %w", script.ID, err)
			}

			b, err := store.GetBreakdownByScript(runCtx, script.ID)
			if err != nil {
				return err
			}
			if b.Failed() {
				return fmt.Errorf("breakdown of %s failed: %s", script.ID, b.ErrorMessage())
			}
			fmt.Fprintln(out, breakdownSummary(script, b))
			return nil
		},
	}
	cmd.Flags().StringVar(&production, "production", "default", "Production the script belongs to")
	cmd.Flags().StringVar(&opts.Title, "title", "", "Title (defaults to the title page or file name)")
	cmd.Flags().StringVar(&opts.Author, "author", "", "Author (defaults to the title page)")
	cmd.Flags().StringVar(&opts.Version, "script-version", "", "Draft or revision label")
	cmd.Flags().BoolVar(&background, "background", false, "Run as a background job and wait for it")
	return cmd
}

func breakdownSummary(script domain.Script, b domain.Breakdown) string {
	status := "complete"
	switch {
	case b.Failed():
		status = "failed: " + b.ErrorMessage()
	case !b.IsComplete:
		status = "in progress"
	}
	pairs := [][2]string{
		{"Script", script.ID},
		{"Title", script.Title},
		{"Breakdown", b.ID},
		{"Status", status},
		{"Progress", fmt.Sprintf("%.0f%%", b.Progress*100)},
		{"Scenes", fmt.Sprintf("%d", b.SceneCount)},
		{"Pages", fmt.Sprintf("%d", b.PageCount)},
		{"Estimated duration", fmt.Sprintf("%.1f min", b.EstimatedDuration)},
	}
	for _, t := range domain.ExtractedTypes {
		pairs = append(pairs, [2]string{string(t), fmt.Sprintf("%d", b.ElementsByType[t])})
	}
	return keyValueTable(pairs)
}
