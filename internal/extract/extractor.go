/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package extract finds breakdown elements in a parsed script: characters,
// locations, props, vehicles, wardrobe and special effects.
package extract

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"scriptbreakdown/internal/domain"
	"scriptbreakdown/internal/lexicon"
	"scriptbreakdown/internal/log"
	"scriptbreakdown/internal/nlp"
)

const (
	propContext     = 20
	vehicleContext  = 50
	wardrobeContext = 20
	effectContext   = 30

	// occurrenceScale turns an occurrence count into a fallback importance.
	occurrenceScale = 10.0

	unknownScene = "unknown"
)

type keywordPattern struct {
	keyword string
	re      *regexp.Regexp
}

// Extractor is safe for concurrent use; all state is read-only after New.
type Extractor struct {
	loader       *nlp.Loader
	tables       *lexicon.Tables
	vehicles     []keywordPattern
	effects      []keywordPattern
	stopWords    map[string]struct{}
	entityLabels map[string]struct{}
	modifierDeps map[string]struct{}
}

// New builds an extractor over the shared pipeline loader.
func New(loader *nlp.Loader, tables *lexicon.Tables) *Extractor {
	if tables == nil {
		tables = lexicon.Default()
	}
	x := &Extractor{
		loader:       loader,
		tables:       tables,
		stopWords:    lexicon.Set(tables.Extraction.PropStopWords),
		entityLabels: make(map[string]struct{}),
		modifierDeps: make(map[string]struct{}),
	}
	for _, l := range tables.Extraction.PropEntityLabels {
		x.entityLabels[l] = struct{}{}
	}
	for _, d := range tables.Extraction.VehicleModifierDeps {
		x.modifierDeps[d] = struct{}{}
	}
	for _, kw := range tables.Extraction.Vehicles {
		x.vehicles = append(x.vehicles, keywordPattern{kw, lexicon.WordPattern("(?i)", kw)})
	}
	for _, kw := range tables.Extraction.Effects {
		x.effects = append(x.effects, keywordPattern{kw, lexicon.WordPattern("(?i)", kw)})
	}
	return x
}

// Extract returns the deduplicated elements of ps keyed by type. Every
// extracted type is present, possibly with an empty list. A pipeline that
// cannot load yields an error wrapping nlp.ErrModelUnavailable.
func (x *Extractor) Extract(ctx context.Context, ps *domain.ParsedScript) (domain.Elements, error) {
	p, err := x.loader.Load()
	if err != nil {
		return nil, fmt.Errorf("extract elements: %w", err)
	}
	text, sections := actionText(ps)
	doc, err := p.Process(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("extract elements: %w", err)
	}

	out := domain.Elements{
		domain.ElementCharacter:     characters(ps),
		domain.ElementLocation:      locations(ps),
		domain.ElementProp:          x.props(text, doc, sections),
		domain.ElementVehicle:       x.vehiclesIn(text, doc, sections),
		domain.ElementWardrobe:      x.wardrobe(text, sections),
		domain.ElementSpecialEffect: x.specialEffects(text, sections),
	}
	for t, list := range out {
		out[t] = Dedupe(list)
	}
	log.WithComponent("extract").Debug("elements extracted",
		"characters", len(out[domain.ElementCharacter]), "locations", len(out[domain.ElementLocation]),
		"props", len(out[domain.ElementProp]), "vehicles", len(out[domain.ElementVehicle]),
		"wardrobe", len(out[domain.ElementWardrobe]), "effects", len(out[domain.ElementSpecialEffect]))
	return out, nil
}

func characters(ps *domain.ParsedScript) []domain.Element {
	total := len(ps.Scenes)
	out := make([]domain.Element, 0, len(ps.Characters))
	for _, c := range ps.Characters {
		imp := 0.0
		if total > 0 {
			imp = float64(len(c.Scenes)) / float64(total)
		}
		out = append(out, domain.Element{
			Type:        domain.ElementCharacter,
			Name:        c.Name,
			Occurrences: append([]string{}, c.Scenes...),
			Importance:  domain.Float(imp),
		})
	}
	return out
}

func locations(ps *domain.ParsedScript) []domain.Element {
	var out []domain.Element
	index := map[string]int{}
	for _, s := range ps.Scenes {
		name := s.LocationName()
		if name == "" {
			continue
		}
		i, ok := index[name]
		if !ok {
			index[name] = len(out)
			out = append(out, domain.Element{Type: domain.ElementLocation, Name: name, Occurrences: []string{s.SceneNumber}})
			continue
		}
		if !contains(out[i].Occurrences, s.SceneNumber) {
			out[i].Occurrences = append(out[i].Occurrences, s.SceneNumber)
		}
	}
	for i := range out {
		out[i].Importance = domain.Float(float64(len(out[i].Occurrences)) / float64(len(ps.Scenes)))
	}
	return out
}

func (x *Extractor) props(text string, doc *nlp.Doc, sections []section) []domain.Element {
	var out []domain.Element
	for _, re := range x.tables.PropPatterns() {
		for _, m := range re.FindAllStringSubmatchIndex(text, -1) {
			if m[2] < 0 {
				continue
			}
			name := strings.TrimSpace(text[m[2]:m[3]])
			if x.isStopWord(name) {
				continue
			}
			out = append(out, domain.Element{
				Type:        domain.ElementProp,
				Name:        name,
				Occurrences: scenesFor(sections, m[0], m[1]),
				Context:     window(text, m[0], m[1], propContext),
			})
		}
	}
	for _, e := range doc.Entities {
		if _, ok := x.entityLabels[e.Label]; !ok || x.isStopWord(e.Text) {
			continue
		}
		out = append(out, domain.Element{
			Type:        domain.ElementProp,
			Name:        e.Text,
			Occurrences: scenesFor(sections, e.Start, e.Start),
			Context:     window(text, e.Start, e.End, propContext),
		})
	}
	return out
}

func (x *Extractor) isStopWord(name string) bool {
	_, ok := x.stopWords[strings.ToLower(name)]
	return ok
}

func (x *Extractor) vehiclesIn(text string, doc *nlp.Doc, sections []section) []domain.Element {
	var out []domain.Element
	for _, kp := range x.vehicles {
		for _, m := range kp.re.FindAllStringIndex(text, -1) {
			name := x.vehicleName(doc, m[0])
			if name == "" {
				name = text[m[0]:m[1]]
			}
			out = append(out, domain.Element{
				Type:        domain.ElementVehicle,
				Name:        name,
				Occurrences: scenesFor(sections, m[0], m[1]),
				Context:     window(text, m[0], m[1], vehicleContext),
			})
		}
	}
	return out
}

// vehicleName prefixes the vehicle token with its left modifiers, e.g.
// "old pickup truck".
func (x *Extractor) vehicleName(doc *nlp.Doc, off int) string {
	i, ok := doc.TokenAt(off)
	if !ok {
		return ""
	}
	var mods []string
	for _, l := range doc.Lefts(i) {
		if _, ok := x.modifierDeps[l.Dep]; ok || l.POS == nlp.PosAdj {
			mods = append(mods, l.Text)
		}
	}
	if len(mods) == 0 {
		return doc.Tokens[i].Text
	}
	return strings.Join(mods, " ") + " " + doc.Tokens[i].Text
}

func (x *Extractor) wardrobe(text string, sections []section) []domain.Element {
	var out []domain.Element
	for _, re := range x.tables.WardrobePatterns() {
		for _, m := range re.FindAllStringIndex(text, -1) {
			name := strings.TrimSpace(text[m[0]:m[1]])
			if name == "" {
				continue
			}
			out = append(out, domain.Element{
				Type:        domain.ElementWardrobe,
				Name:        name,
				Occurrences: scenesFor(sections, m[0], m[1]),
				Context:     window(text, m[0], m[1], wardrobeContext),
			})
		}
	}
	return out
}

func (x *Extractor) specialEffects(text string, sections []section) []domain.Element {
	title := cases.Title(language.English)
	var out []domain.Element
	for _, kp := range x.effects {
		name := title.String(kp.keyword) + " Effect"
		for _, m := range kp.re.FindAllStringIndex(text, -1) {
			out = append(out, domain.Element{
				Type:        domain.ElementSpecialEffect,
				Name:        name,
				Occurrences: scenesFor(sections, m[0], m[1]),
				Context:     window(text, m[0], m[1], effectContext),
			})
		}
	}
	return out
}

// window returns text around [start,end) widened by n bytes each side,
// snapped to rune boundaries and trimmed.
func window(text string, start, end, n int) string {
	lo, hi := max(0, start-n), min(len(text), end+n)
	for lo > 0 && !utf8.RuneStart(text[lo]) {
		lo--
	}
	for hi < len(text) && !utf8.RuneStart(text[hi]) {
		hi++
	}
	return strings.TrimSpace(text[lo:hi])
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
