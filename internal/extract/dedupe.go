/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package extract

import (
	"strings"

	"scriptbreakdown/internal/domain"
)

// section is one scene's action text inside the concatenated action text.
type section struct {
	scene      string
	start, end int
}

// actionText joins every scene's action lines with "\n", appending each
// non-empty scene block plus a trailing "\n", and records where each block
// landed.
func actionText(ps *domain.ParsedScript) (string, []section) {
	var b strings.Builder
	var sections []section
	for _, s := range ps.Scenes {
		block := strings.Join(s.Action, "\n")
		if block == "" {
			continue
		}
		start := b.Len()
		b.WriteString(block)
		sections = append(sections, section{scene: s.SceneNumber, start: start, end: start + len(block)})
		b.WriteByte('\n')
	}
	return b.String(), sections
}

// scenesFor lists the scenes whose section overlaps [start,end], bounds
// inclusive, in scene order. No overlap yields "unknown".
func scenesFor(sections []section, start, end int) []string {
	var out []string
	for _, s := range sections {
		if end < s.start || start > s.end {
			continue
		}
		if !contains(out, s.scene) {
			out = append(out, s.scene)
		}
	}
	if len(out) == 0 {
		return []string{unknownScene}
	}
	return out
}

// Dedupe merges elements whose lowercased names are equal. The first element
// keeps its name and position; occurrences are unioned in order and the
// longer context wins. Elements without an importance get
// occurrences/10, which is not capped. Dedupe(Dedupe(x)) equals Dedupe(x).
func Dedupe(elems []domain.Element) []domain.Element {
	out := make([]domain.Element, 0, len(elems))
	index := map[string]int{}
	for _, e := range elems {
		i, ok := index[e.Key()]
		if !ok {
			index[e.Key()] = len(out)
			e.Occurrences = append([]string{}, e.Occurrences...)
			out = append(out, e)
			continue
		}
		for _, o := range e.Occurrences {
			if !contains(out[i].Occurrences, o) {
				out[i].Occurrences = append(out[i].Occurrences, o)
			}
		}
		if len(e.Context) > len(out[i].Context) {
			out[i].Context = e.Context
		}
	}
	for i := range out {
		if out[i].Importance == nil {
			out[i].Importance = domain.Float(float64(len(out[i].Occurrences)) / occurrenceScale)
		}
	}
	return out
}
