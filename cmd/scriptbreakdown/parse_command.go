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
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"scriptbreakdown/internal/domain"
	"scriptbreakdown/internal/fountain"
)

func newParseCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "parse <file>",
		Short: "Parse a Fountain screenplay and print its scenes and characters",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := fountain.DetectFormatFile(args[0])
			if err != nil {
				return err
			}
			parser, err := fountain.NewParser(format)
			if err != nil {
				return err
			}
			ps, err := parser.ParseFile(args[0])
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, ps)
			}
			out := cmd.OutOrStdout()
			if title := fountain.MetadataValue(ps.Metadata, "Title"); title != "" {
				fmt.Fprintf(out, "%s\n\n", title)
			}
			fmt.Fprintln(out, sceneTable(ps.Scenes))
			fmt.Fprintln(out, characterTable(ps.Characters))
			fmt.Fprintf(out, "%d scenes, %d pages, %d characters\n", len(ps.Scenes), ps.PageCount(), len(ps.Characters))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the parsed script as JSON")
	return cmd
}

func sceneTable(scenes []domain.Scene) string {
	rows := make([][]string, 0, len(scenes))
	for _, s := range scenes {
		rows = append(rows, []string{
			s.SceneNumber,
			strconv.Itoa(s.PageNumber),
			string(s.IntExt),
			s.LocationName(),
			s.TimeOfDayName(),
			strings.Join(s.Characters, ", "),
		})
	}
	return renderTable(
		[]string{"Scene", "Page", "Int/Ext", "Location", "Time", "Characters"},
		rows,
		[]columnAlignment{alignRight, alignRight},
	)
}

func characterTable(chars []domain.Character) string {
	rows := make([][]string, 0, len(chars))
	for _, c := range chars {
		rows = append(rows, []string{
			c.Name,
			strconv.Itoa(c.DialogueCount),
			strconv.Itoa(c.WordCount),
			strings.Join(c.Scenes, ", "),
		})
	}
	return renderTable(
		[]string{"Character", "Lines", "Words", "Scenes"},
		rows,
		[]columnAlignment{alignLeft, alignRight, alignRight},
	)
}
