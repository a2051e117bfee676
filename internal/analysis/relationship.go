/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package analysis

import (
	"strings"

	"scriptbreakdown/internal/domain"
	"scriptbreakdown/internal/log"
)

// Relationship weights. A bare indicator without a nearby name counts for
// a fraction of a proximity match.
const (
	weightCoOccurrence = 0.7
	weightInteraction  = 0.3
	bareIndicatorScore = 0.2
)

// relationshipMatrix scores every pair of characters that share a scene.
func (a *CharacterAnalyzer) relationshipMatrix(ps *domain.ParsedScript, near *nearCounter) domain.RelationshipMatrix {
	matrix := domain.RelationshipMatrix{}
	chars := ps.Characters
	for i := 0; i < len(chars); i++ {
		if len(chars[i].Scenes) == 0 {
			continue
		}
		for j := i + 1; j < len(chars); j++ {
			if len(chars[j].Scenes) == 0 {
				continue
			}
			c1, c2 := chars[i], chars[j]
			shared := sharedScenes(c1.Scenes, c2.Scenes)
			if len(shared) == 0 {
				continue
			}
			union := len(uniq(c1.Scenes)) + len(uniq(c2.Scenes)) - len(shared)
			co := float64(len(shared)) / float64(union)
			only := make(map[string]bool, len(shared))
			for _, s := range shared {
				only[s] = true
			}
			di := dialogueInteraction(ps.Scenes, c1.Name, c2.Name, only)
			typ := a.relationshipType(ps.Scenes, near, c1.Name, c2.Name, only)
			r, err := domain.NewRelationship(weightCoOccurrence*co+weightInteraction*di, co, di, shared, typ)
			if err != nil {
				log.WithComponent("analysis").Warn("relationship skipped", "a", c1.Name, "b", c2.Name, "error", err)
				continue
			}
			matrix.Set(c1.Name, c2.Name, r)
		}
	}
	return matrix
}

func uniq(scenes []string) map[string]struct{} {
	set := make(map[string]struct{}, len(scenes))
	for _, s := range scenes {
		set[s] = struct{}{}
	}
	return set
}

// sharedScenes returns the scenes of a that also appear in b, in a's order.
func sharedScenes(a, b []string) []string {
	inB := uniq(b)
	seen := map[string]struct{}{}
	var out []string
	for _, s := range a {
		if _, ok := inB[s]; !ok {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// dialogueInteraction counts adjacent speeches that alternate between the
// two characters, relative to the fewer speeches either made per scene.
// Long back-and-forth exchanges can exceed that count, so the result is
// capped at 1.
func dialogueInteraction(scenes []domain.Scene, c1, c2 string, only map[string]bool) float64 {
	exchanges, possible := 0, 0
	for _, s := range scenes {
		if !only[s.SceneNumber] || len(s.Dialogue) <= 1 {
			continue
		}
		n1, n2 := 0, 0
		for i, d := range s.Dialogue {
			switch d.Character {
			case c1:
				n1++
			case c2:
				n2++
			}
			if i == 0 {
				continue
			}
			prev := s.Dialogue[i-1].Character
			if (prev == c1 && d.Character == c2) || (prev == c2 && d.Character == c1) {
				exchanges++
			}
		}
		if n1 > 0 && n2 > 0 {
			possible += min(n1, n2)
		}
	}
	if possible == 0 {
		return 0
	}
	return domain.ClampUnit(float64(exchanges) / float64(possible))
}

// relationshipType scores each category by indicator keywords near either
// name in the shared scenes, plus a small credit for bare indicators. The
// first highest category wins; no evidence means associates.
func (a *CharacterAnalyzer) relationshipType(scenes []domain.Scene, near *nearCounter, c1, c2 string, only map[string]bool) domain.RelationshipType {
	var parts []string
	for _, s := range scenes {
		if !only[s.SceneNumber] {
			continue
		}
		for _, d := range s.Dialogue {
			parts = append(parts, d.Lines...)
		}
		parts = append(parts, s.Action...)
	}
	text := strings.ToLower(strings.Join(parts, " "))
	n1, n2 := strings.ToLower(c1), strings.ToLower(c2)

	best, bestScore := domain.RelationshipAssociates, 0.0
	for _, cat := range a.relationships {
		score := 0.0
		for _, k := range cat.keywords {
			ind := strings.ToLower(k.word)
			score += float64(near.count(text, n1, ind) + near.count(text, n2, ind))
		}
		score += bareIndicatorScore * float64(countKeywords(text, cat.keywords))
		if score > bestScore {
			best, bestScore = domain.RelationshipType(cat.name), score
		}
	}
	return best
}
