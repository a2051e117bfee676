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
	"scriptbreakdown/internal/lexicon"
	"scriptbreakdown/internal/log"
)

// Importance weights and scales.
const (
	weightPresence   = 0.4
	weightVolume     = 0.3
	weightCentrality = 0.2
	weightProminence = 0.1

	wordVolumeScale    = 5000.0
	neutralProminence  = 0.5
	emotionNeutral     = "neutral"
	defaultAgeRange    = "adult"
	genderMale         = "male"
	genderFemale       = "female"
	complexArcMinShift = 4
)

type emotionTable struct {
	name     string
	keywords []keyword
}

// CharacterAnalyzer is safe for concurrent use; per-call state lives in Analyze.
type CharacterAnalyzer struct {
	tables        *lexicon.Tables
	emotions      []emotionTable
	relationships []emotionTable
	positive      map[string]struct{}
	negative      map[string]struct{}
}

// NewCharacterAnalyzer builds a character analyzer from the lexicon.
func NewCharacterAnalyzer(tables *lexicon.Tables) *CharacterAnalyzer {
	if tables == nil {
		tables = lexicon.Default()
	}
	a := &CharacterAnalyzer{
		tables:   tables,
		positive: lexicon.Set(tables.PositiveEmotions),
		negative: lexicon.Set(tables.NegativeEmotions),
	}
	for _, e := range tables.Emotions {
		a.emotions = append(a.emotions, emotionTable{e.Name, compileKeywords(e.Keywords)})
	}
	for _, r := range tables.Relationships {
		a.relationships = append(a.relationships, emotionTable{r.Name, compileKeywords(r.Keywords)})
	}
	return a
}

// Analyze produces one analysis per parsed character, in parser order, and
// the symmetric relationship matrix.
func (a *CharacterAnalyzer) Analyze(ps *domain.ParsedScript) domain.CharacterReport {
	near := newNearCounter()
	out := make([]domain.CharacterAnalysis, 0, len(ps.Characters))
	for _, c := range ps.Characters {
		ca := domain.CharacterAnalysis{
			Name:          c.Name,
			DialogueCount: c.DialogueCount,
			WordCount:     c.WordCount,
			Scenes:        append([]string{}, c.Scenes...),
			Emotions:      map[string]float64{},
			Relationships: map[string]domain.Relationship{},
		}
		if c.DialogueCount > 0 {
			if lines := dialogueLines(ps.Scenes, c.Name, nil); len(lines) > 0 {
				joined := strings.Join(lines, " ")
				ca.Emotions = a.emotionShares(strings.ToLower(joined))
				ca.DialogueStyle = dialogueStyle(joined)
			}
		}
		if refs := references(ps.Scenes, c.Name); refs != "" {
			ca.Gender = a.gender(near, refs, strings.ToLower(c.Name))
			ca.AgeRange = a.ageRange(near, refs, strings.ToLower(c.Name))
		}
		ca.Arc = a.arc(ps, c)
		out = append(out, ca)
	}

	matrix := a.relationshipMatrix(ps, near)
	for i := range out {
		for other, r := range matrix[out[i].Name] {
			out[i].Relationships[other] = r
		}
		out[i].ImportanceScore = importance(out[i], len(ps.Scenes), len(ps.Characters))
	}
	log.WithComponent("analysis").Debug("characters analyzed", "count", len(out), "relationships", len(matrix))
	return domain.CharacterReport{Characters: out, RelationshipMatrix: matrix}
}

// dialogueLines collects the spoken lines of name, optionally limited to the
// scenes in only.
func dialogueLines(scenes []domain.Scene, name string, only map[string]bool) []string {
	var lines []string
	for _, s := range scenes {
		if only != nil && !only[s.SceneNumber] {
			continue
		}
		for _, d := range s.Dialogue {
			if d.Character == name {
				lines = append(lines, d.Lines...)
			}
		}
	}
	return lines
}

// emotionShares counts emotion keywords in lowercased text and returns each
// non-zero emotion's share of the total, rounded to 2 decimals.
func (a *CharacterAnalyzer) emotionShares(text string) map[string]float64 {
	counts := make([]int, len(a.emotions))
	total := 0
	for i, e := range a.emotions {
		counts[i] = countKeywords(text, e.keywords)
		total += counts[i]
	}
	out := map[string]float64{}
	for i, e := range a.emotions {
		if counts[i] > 0 {
			out[e.name] = domain.Round(float64(counts[i])/float64(total), 2)
		}
	}
	return out
}

// dialogueStyle measures sentence length, vocabulary and how often sentences
// end in a question or exclamation mark.
func dialogueStyle(text string) *domain.DialogueStyle {
	st := &domain.DialogueStyle{}
	sentences := splitSentences(text)
	if n := len(sentences); n > 0 {
		words, questions, exclamations := 0, 0, 0
		for _, s := range sentences {
			words += len(strings.Fields(s.text))
			if strings.Contains(s.term, "?") {
				questions++
			}
			if strings.Contains(s.term, "!") {
				exclamations++
			}
		}
		st.AvgSentenceLength = domain.Round(float64(words)/float64(n), 1)
		st.QuestionFrequency = domain.Round(float64(questions)/float64(n), 2)
		st.ExclamationFrequency = domain.Round(float64(exclamations)/float64(n), 2)
	}
	if words := reWord.FindAllString(strings.ToLower(text), -1); len(words) > 0 {
		unique := map[string]struct{}{}
		for _, w := range words {
			unique[w] = struct{}{}
		}
		st.VocabularyRichness = domain.Round(float64(len(unique))/float64(len(words)), 2)
	}
	return st
}

// references gathers the lowercased text that mentions name: action lines,
// whole speeches and parentheticals. The mention check is case-sensitive.
func references(scenes []domain.Scene, name string) string {
	var refs []string
	for _, s := range scenes {
		for _, line := range s.Action {
			if strings.Contains(line, name) {
				refs = append(refs, line)
			}
		}
		for _, d := range s.Dialogue {
			if speech := strings.Join(d.Lines, " "); strings.Contains(speech, name) {
				refs = append(refs, speech)
			}
			for _, p := range d.Parentheticals {
				if strings.Contains(p, name) {
					refs = append(refs, p)
				}
			}
		}
	}
	return strings.ToLower(strings.Join(refs, " "))
}

func (a *CharacterAnalyzer) gender(near *nearCounter, text, name string) *string {
	male, female := 0, 0
	for _, ind := range a.tables.Gender.Male {
		male += near.count(text, name, ind)
	}
	for _, ind := range a.tables.Gender.Female {
		female += near.count(text, name, ind)
	}
	var g string
	switch {
	case male > female:
		g = genderMale
	case female > male:
		g = genderFemale
	default:
		return nil
	}
	return &g
}

func (a *CharacterAnalyzer) ageRange(near *nearCounter, text, name string) *string {
	best, bestCount := defaultAgeRange, 0
	for _, age := range a.tables.Ages {
		n := 0
		for _, ind := range age.Keywords {
			n += near.count(text, name, ind)
		}
		if n > bestCount {
			best, bestCount = age.Name, n
		}
	}
	return &best
}

// importance weighs scene presence, dialogue volume, relationship count and
// how early the character first appears.
func importance(ca domain.CharacterAnalysis, totalScenes, totalCharacters int) float64 {
	presence := 0.0
	if totalScenes > 0 {
		presence = float64(len(ca.Scenes)) / float64(totalScenes)
	}
	volume := min(float64(ca.WordCount)/wordVolumeScale, 1)
	centrality := 0.0
	if totalCharacters > 1 {
		centrality = float64(len(ca.Relationships)) / float64(totalCharacters-1)
	}
	v := presence*weightPresence + volume*weightVolume + centrality*weightCentrality +
		prominence(ca.Scenes, totalScenes)*weightProminence
	return domain.Round(domain.ClampUnit(v), 2)
}

// prominence is 1 - first/(2*total) for the earliest numeric scene, floored
// at 0; 0.5 when no scene number is numeric; 0 without scenes.
func prominence(scenes []string, totalScenes int) float64 {
	if len(scenes) == 0 || totalScenes == 0 {
		return 0
	}
	first := -1
	for _, s := range scenes {
		if n, ok := domain.SceneIndex(s); ok && (first < 0 || n < first) {
			first = n
		}
	}
	if first < 0 {
		return neutralProminence
	}
	return max(1-float64(first)/float64(2*totalScenes), 0)
}
