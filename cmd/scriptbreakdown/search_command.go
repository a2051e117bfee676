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
	"strconv"

	"github.com/spf13/cobra"

	"scriptbreakdown/internal/storage"
)

func newSearchCommand(ctx *commandContext) *cobra.Command {
	var (
		q      storage.SearchQuery
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "search <text>",
		Short: "Full-text search across stored scenes",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				q.Text = args[0]
			}
			if q.Text == "" && q.Location == "" && q.Character == "" && q.ScriptID == "" {
				return fmt.Errorf("search needs text or at least one filter")
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

			results, err := store.Search(runCtx, q)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, results)
			}
			out := cmd.OutOrStdout()
			if len(results) == 0 {
				fmt.Fprintln(out, "No matching scenes.")
				return nil
			}
			rows := make([][]string, 0, len(results))
			for _, r := range results {
				rows = append(rows, []string{r.ScriptID, r.SceneNumber, strconv.Itoa(r.PageNumber), r.SlugLine, r.Snippet})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Script", "Scene", "Page", "Heading", "Match"},
				rows,
				[]columnAlignment{alignLeft, alignRight, alignRight},
			))
			return nil
		},
	}
	cmd.Flags().StringVar(&q.ScriptID, "script", "", "Limit to one script")
	cmd.Flags().StringVar(&q.Location, "location", "", "Scene location contains")
	cmd.Flags().StringVar(&q.Character, "character", "", "Character speaks in the scene")
	cmd.Flags().IntVar(&q.Limit, "limit", 20, "Maximum results")
	cmd.Flags().IntVar(&q.Offset, "offset", 0, "Results to skip")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print results as JSON")
	return cmd
}
