/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package export turns a stored breakdown into shareable artifacts: a JSON
// report checked against an embedded schema and printable PDF breakdown sheets.
package export

import (
	"context"
	"fmt"
	"time"

	"scriptbreakdown/internal/breakdown"
	"scriptbreakdown/internal/domain"
)

// Report is the complete breakdown of one script.
type Report struct {
	GeneratedAt        time.Time                               `json:"generated_at"`
	Script             domain.Script                           `json:"script"`
	Breakdown          domain.Breakdown                        `json:"breakdown"`
	Scenes             []domain.StoredScene                    `json:"scenes"`
	Characters         []domain.StoredCharacter                `json:"characters"`
	Elements           map[domain.ElementType][]domain.Element `json:"elements"`
	RelationshipMatrix domain.RelationshipMatrix               `json:"relationship_matrix"`
}

// LoadReport collects everything stored for scriptID. The relationship
// matrix is rebuilt from the per-character analysis records.
func LoadReport(ctx context.Context, store breakdown.Store, scriptID string) (Report, error) {
	script, err := store.GetScript(ctx, scriptID)
	if err != nil {
		return Report{}, fmt.Errorf("load script: %w", err)
	}
	b, err := store.GetBreakdownByScript(ctx, scriptID)
	if err != nil {
		return Report{}, fmt.Errorf("load breakdown: %w", err)
	}
	scenes, err := store.ListScenes(ctx, scriptID)
	if err != nil {
		return Report{}, err
	}
	chars, err := store.ListCharacters(ctx, scriptID)
	if err != nil {
		return Report{}, err
	}
	elems, err := store.ListElements(ctx, scriptID, "")
	if err != nil {
		return Report{}, err
	}
	r := Report{
		GeneratedAt:        time.Now().UTC(),
		Script:             script,
		Breakdown:          b,
		Scenes:             scenes,
		Characters:         chars,
		Elements:           map[domain.ElementType][]domain.Element{},
		RelationshipMatrix: domain.RelationshipMatrix{},
	}
	for _, e := range elems {
		r.Elements[e.Type] = append(r.Elements[e.Type], e)
	}
	for _, c := range chars {
		if c.Analysis == nil {
			continue
		}
		for other, rel := range c.Analysis.Relationships {
			r.RelationshipMatrix.Set(c.Character.Name, other, rel)
		}
	}
	return r, nil
}

// ElementsIn returns the elements of type t that occur in scene number.
func (r Report) ElementsIn(t domain.ElementType, number string) []string {
	var out []string
	for _, e := range r.Elements[t] {
		for _, occ := range e.Occurrences {
			if occ == number {
				out = append(out, e.Name)
				break
			}
		}
	}
	return out
}

// normalized replaces nil collections with empty ones so the JSON form has
// arrays and objects where the schema expects them.
func (r Report) normalized() Report {
	if r.Scenes == nil {
		r.Scenes = []domain.StoredScene{}
	}
	if r.Characters == nil {
		r.Characters = []domain.StoredCharacter{}
	}
	if r.Elements == nil {
		r.Elements = map[domain.ElementType][]domain.Element{}
	}
	if r.RelationshipMatrix == nil {
		r.RelationshipMatrix = domain.RelationshipMatrix{}
	}
	if r.Breakdown.Summary == nil {
		r.Breakdown.Summary = map[string]any{}
	}
	return r
}
