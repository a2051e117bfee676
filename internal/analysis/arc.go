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
	"fmt"
	"sort"
	"strings"

	"scriptbreakdown/internal/domain"
)

// arc tracks the dominant emotion of a character's dialogue scene by scene.
func (a *CharacterAnalyzer) arc(ps *domain.ParsedScript, c domain.Character) domain.CharacterArc {
	arc := domain.CharacterArc{Progression: []domain.EmotionPoint{}, Changes: []domain.EmotionalChange{}}
	if len(c.Scenes) == 0 {
		return arc
	}
	for _, num := range arcOrder(c.Scenes) {
		scene, ok := ps.Scene(num)
		if !ok {
			continue
		}
		lines := dialogueLines([]domain.Scene{scene}, c.Name, nil)
		if len(lines) == 0 {
			continue
		}
		emotions := a.emotionShares(strings.ToLower(strings.Join(lines, " ")))
		if len(emotions) == 0 {
			emotions = map[string]float64{emotionNeutral: 1.0}
		}
		arc.Progression = append(arc.Progression, domain.EmotionPoint{Scene: num, Emotions: emotions})
	}

	for i := 1; i < len(arc.Progression); i++ {
		prev, cur := arc.Progression[i-1], arc.Progression[i]
		from, to := a.dominant(prev.Emotions), a.dominant(cur.Emotions)
		if from != to {
			arc.Changes = append(arc.Changes, domain.EmotionalChange{
				FromScene: prev.Scene, ToScene: cur.Scene, FromEmotion: from, ToEmotion: to,
			})
		}
	}

	arc.HasArc = len(arc.Changes) >= 2
	if arc.HasArc {
		d := a.describeArc(arc.Changes)
		arc.Description = &d
	}
	return arc
}

// arcOrder sorts scene numbers numerically when every one is numeric and
// keeps parser order otherwise.
func arcOrder(scenes []string) []string {
	out := append([]string(nil), scenes...)
	for _, s := range out {
		if !domain.IsNumeric(s) {
			return out
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, _ := domain.SceneIndex(out[i])
		b, _ := domain.SceneIndex(out[j])
		return a < b
	})
	return out
}

// dominant picks the highest scoring emotion, earliest in table order on ties.
func (a *CharacterAnalyzer) dominant(emotions map[string]float64) string {
	best, bestScore := "", -1.0
	for _, name := range append(a.tables.EmotionNames(), emotionNeutral) {
		if v, ok := emotions[name]; ok && v > bestScore {
			best, bestScore = name, v
		}
	}
	return best
}

func (a *CharacterAnalyzer) describeArc(changes []domain.EmotionalChange) string {
	start, end := changes[0].FromEmotion, changes[len(changes)-1].ToEmotion
	_, startPos := a.positive[start]
	_, startNeg := a.negative[start]
	_, endPos := a.positive[end]
	_, endNeg := a.negative[end]
	switch {
	case startPos && endNeg:
		return "Fall from grace: Character begins positively but ends in a negative emotional state."
	case startNeg && endPos:
		return "Redemptive arc: Character begins negatively but ends in a positive emotional state."
	case start == end:
		return "Circular arc: Character returns to their original emotional state after changes."
	case len(changes) > complexArcMinShift:
		return "Complex emotional journey with multiple shifts."
	}
	return fmt.Sprintf("Character undergoes %d significant emotional changes.", len(changes))
}
