/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package analysis scores scenes and characters: complexity, duration,
// sentiment and key actions per scene; emotions, speaking style, gender and
// age hints, relationships, importance and arcs per character.
package analysis

import (
	"context"
	"fmt"
	"strings"

	"scriptbreakdown/internal/domain"
	"scriptbreakdown/internal/lexicon"
	"scriptbreakdown/internal/log"
	"scriptbreakdown/internal/nlp"
)

// Complexity weights.
const (
	weightCharacters = 0.2
	weightDialogue   = 0.15
	weightAction     = 0.15
	weightSpecial    = 0.2
	weightLocation   = 0.15
	weightTime       = 0.15

	keywordCap        = 10
	defaultComplexity = 0.5
	maxKeyActions     = 5
	minKeyActionLen   = 10
)

// SceneAnalyzer is safe for concurrent use.
type SceneAnalyzer struct {
	loader           *nlp.Loader
	tables           *lexicon.Tables
	complexity       []keyword
	complexLocations []keyword
	actionVerbs      map[string]struct{}
	emotionOf        map[string][]string
}

// NewSceneAnalyzer builds a scene analyzer over the shared pipeline loader.
func NewSceneAnalyzer(loader *nlp.Loader, tables *lexicon.Tables) *SceneAnalyzer {
	if tables == nil {
		tables = lexicon.Default()
	}
	a := &SceneAnalyzer{
		loader:           loader,
		tables:           tables,
		complexity:       compileKeywords(tables.Scene.ComplexityKeywords),
		complexLocations: compileKeywords(tables.Scene.ComplexLocationKeywords),
		actionVerbs:      lexicon.Set(tables.Scene.ActionVerbs),
		emotionOf:        map[string][]string{},
	}
	for _, e := range tables.Emotions {
		for _, kw := range e.Keywords {
			k := strings.ToLower(kw)
			a.emotionOf[k] = append(a.emotionOf[k], e.Name)
		}
	}
	return a
}

// AnalyzeScenes analyzes scenes in order.
func (a *SceneAnalyzer) AnalyzeScenes(ctx context.Context, scenes []domain.Scene) ([]domain.SceneAnalysis, error) {
	out := make([]domain.SceneAnalysis, 0, len(scenes))
	for _, s := range scenes {
		r, err := a.AnalyzeScene(ctx, s)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	log.WithComponent("analysis").Debug("scenes analyzed", "count", len(out))
	return out, nil
}

// AnalyzeScene computes complexity, duration, sentiment and key actions.
func (a *SceneAnalyzer) AnalyzeScene(ctx context.Context, s domain.Scene) (domain.SceneAnalysis, error) {
	p, err := a.loader.Load()
	if err != nil {
		return domain.SceneAnalysis{}, fmt.Errorf("analyze scene %s: %w", s.SceneNumber, err)
	}
	m := domain.SceneMetrics{
		CharacterCount:    len(s.Characters),
		DialogueLineCount: s.DialogueLineCount(),
		ActionLineCount:   len(s.Action),
	}
	m.TotalLineCount = m.DialogueLineCount + m.ActionLineCount
	if m.TotalLineCount > 0 {
		m.DialogueDensity = float64(m.DialogueLineCount) / float64(m.TotalLineCount)
		m.ActionDensity = float64(m.ActionLineCount) / float64(m.TotalLineCount)
	}
	m.ComplexityKeywordMatches = min(countKeywords(strings.ToLower(s.Content), a.complexity), keywordCap)
	m.HasComplexElements = m.ComplexityKeywordMatches > 0
	m.LocationComplexity = a.LocationComplexity(s.IntExt, s.LocationName())
	m.TimeComplexity = a.TimeComplexity(s.TimeOfDayName())

	complexity := ComplexityScore(m)
	emotions, sentiment, err := a.sentiment(ctx, p, s.Content)
	if err != nil {
		return domain.SceneAnalysis{}, fmt.Errorf("analyze scene %s: %w", s.SceneNumber, err)
	}
	return domain.SceneAnalysis{
		SceneNumber:      s.SceneNumber,
		ComplexityScore:  complexity,
		DurationEstimate: EstimateDuration(m.CharacterCount, m.DialogueLineCount, m.ActionLineCount, complexity),
		Metrics:          m,
		Emotions:         emotions,
		OverallSentiment: sentiment,
		KeyActions:       a.keyActions(s.Action),
	}, nil
}

// LocationComplexity is the INT/EXT base value plus 0.1 per complex location
// keyword, the bonus capped at 0.5 and the total at 1.
func (a *SceneAnalyzer) LocationComplexity(ie domain.IntExt, location string) float64 {
	base, ok := a.tables.Scene.LocationTypes[strings.ToLower(string(ie))]
	if !ok {
		base = defaultComplexity
	}
	bonus := 0.0
	if location != "" {
		n := min(countKeywords(strings.ToLower(location), a.complexLocations), keywordCap)
		bonus = min(float64(n)*0.1, 0.5)
	}
	return min(base+bonus, 1.0)
}

// TimeComplexity returns the value of the first time-of-day entry contained
// in tod, or the default.
func (a *SceneAnalyzer) TimeComplexity(tod string) float64 {
	if tod == "" {
		return defaultComplexity
	}
	tod = strings.ToLower(tod)
	for _, w := range a.tables.Scene.TimesOfDay {
		if strings.Contains(tod, w.Name) {
			return w.Value
		}
	}
	return defaultComplexity
}

// ComplexityScore combines the six factors into a score in [0,1], rounded
// to 2 decimals.
func ComplexityScore(m domain.SceneMetrics) float64 {
	character := min(float64(m.CharacterCount)/10, 1)
	special := min(float64(m.ComplexityKeywordMatches)/10, 1)
	v := character*weightCharacters +
		m.DialogueDensity*weightDialogue +
		m.ActionDensity*weightAction +
		special*weightSpecial +
		m.LocationComplexity*weightLocation +
		m.TimeComplexity*weightTime
	return domain.Round(domain.ClampUnit(v), 2)
}

// EstimateDuration estimates screen minutes: 3s per dialogue line, 5-10s per
// action line depending on complexity, plus setup time per character, all
// scaled up for complex scenes. Rounded to 0.1 minute.
func EstimateDuration(characters, dialogueLines, actionLines int, complexity float64) float64 {
	dialogue := float64(dialogueLines) * 3 / 60
	action := float64(actionLines) * (5 + 5*complexity) / 60
	setup := (0.5 + 0.2*float64(characters)) * (1 + complexity)
	return domain.Round((dialogue+action+setup)*(1+0.5*complexity), 1)
}

// sentiment counts emotion keywords by lemma (or the lowercased word when
// the lemma is not a keyword), normalises by the highest count and maps the
// dominant emotion to a sentiment label.
func (a *SceneAnalyzer) sentiment(ctx context.Context, p nlp.Pipeline, content string) (map[string]float64, string, error) {
	if strings.TrimSpace(content) == "" {
		return map[string]float64{}, domain.SentimentNeutral, nil
	}
	doc, err := p.Process(ctx, content)
	if err != nil {
		return nil, "", err
	}
	counts := map[string]int{}
	for _, t := range doc.Tokens {
		emotions, ok := a.emotionOf[strings.ToLower(t.Lemma)]
		if !ok {
			emotions = a.emotionOf[strings.ToLower(t.Text)]
		}
		for _, e := range emotions {
			counts[e]++
		}
	}
	peak := 0
	for _, n := range counts {
		peak = max(peak, n)
	}
	scores := map[string]float64{}
	if peak == 0 {
		return scores, domain.SentimentNeutral, nil
	}
	dominant := ""
	for _, name := range a.tables.EmotionNames() {
		n := counts[name]
		if n == 0 {
			continue
		}
		scores[name] = domain.Round(float64(n)/float64(peak), 2)
		if dominant == "" && n == peak {
			dominant = name
		}
	}
	label, ok := a.tables.Sentiment[dominant]
	if !ok {
		label = domain.SentimentNeutral
	}
	return scores, label, nil
}

// keyActions returns up to five action sentences longer than ten characters
// that contain an action verb.
func (a *SceneAnalyzer) keyActions(action []string) []string {
	out := []string{}
	for _, s := range splitSentences(strings.Join(action, " ")) {
		if runeLen(s.text) <= minKeyActionLen || !a.hasActionVerb(s.text) {
			continue
		}
		out = append(out, s.text)
		if len(out) == maxKeyActions {
			break
		}
	}
	return out
}

func (a *SceneAnalyzer) hasActionVerb(s string) bool {
	for _, w := range strings.Fields(strings.ToLower(s)) {
		if _, ok := a.actionVerbs[trimPunct(w)]; ok {
			return true
		}
	}
	return false
}
