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
	"strings"

	"github.com/spf13/cobra"

	"scriptbreakdown/internal/domain"
)

func newBreakdownCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "breakdown",
		Short: "Inspect stored breakdowns",
	}
	cmd.AddCommand(newBreakdownShowCommand(ctx))
	return cmd
}

func newBreakdownShowCommand(ctx *commandContext) *cobra.Command {
	var (
		showCharacters bool
		showElements   bool
		elementType    string
		asJSON         bool
	)
	cmd := &cobra.Command{
		Use:   "show <script-id>",
		Short: "Show the breakdown summary of a script",
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

			script, err := store.GetScript(runCtx, args[0])
			if err != nil {
				return fmt.Errorf("script %s: %w", args[0], err)
			}
			b, err := store.GetBreakdownByScript(runCtx, script.ID)
			if err != nil {
				return fmt.Errorf("breakdown for %s: %w", script.ID, err)
			}
			var filter domain.ElementType
			if elementType != "" {
				if filter, err = domain.ParseElementType(elementType); err != nil {
					return err
				}
				showElements = true
			}
			if asJSON {
				return writeJSON(cmd, b)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, breakdownSummary(script, b))
			if showCharacters {
				chars, err := store.ListCharacters(runCtx, script.ID)
				if err != nil {
					return err
				}
				fmt.Fprintln(out, castTable(chars))
			}
			if showElements {
				elems, err := store.ListElements(runCtx, script.ID, filter)
				if err != nil {
					return err
				}
				fmt.Fprintln(out, elementTable(elems))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&showCharacters, "characters", false, "List characters with importance and emotions")
	cmd.Flags().BoolVar(&showElements, "elements", false, "List extracted elements")
	cmd.Flags().StringVar(&elementType, "type", "", "Only list elements of this type")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the breakdown record as JSON")
	return cmd
}

func castTable(chars []domain.StoredCharacter) string {
	rows := make([][]string, 0, len(chars))
	for _, c := range chars {
		importance, emotion, arc := "-", "-", "-"
		if a := c.Analysis; a != nil {
			importance = strconv.FormatFloat(a.ImportanceScore, 'f', 2, 64)
			emotion = dominant(a.Emotions)
			if a.Arc.HasArc {
				arc = "yes"
			} else {
				arc = "no"
			}
		}
		rows = append(rows, []string{
			c.Character.Name,
			strconv.Itoa(c.Character.DialogueCount),
			strconv.Itoa(len(c.Character.Scenes)),
			importance,
			emotion,
			arc,
		})
	}
	return renderTable(
		[]string{"Character", "Lines", "Scenes", "Importance", "Emotion", "Arc"},
		rows,
		[]columnAlignment{alignLeft, alignRight, alignRight, alignRight},
	)
}

func elementTable(elems []domain.Element) string {
	rows := make([][]string, 0, len(elems))
	for _, e := range elems {
		rows = append(rows, []string{
			string(e.Type),
			e.Name,
			strconv.FormatFloat(e.Score(), 'f', 2, 64),
			strings.Join(e.Occurrences, ", "),
		})
	}
	return renderTable(
		[]string{"Type", "Name", "Importance", "Scenes"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight},
	)
}

// dominant returns the highest scoring emotion, ties going to the name that
// sorts first.
func dominant(emotions map[string]float64) string {
	best, bestScore := "-", 0.0
	for name, v := range emotions {
		if v > bestScore || (v == bestScore && v > 0 && name < best) {
			best, bestScore = name, v
		}
	}
	return best
}
