/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package lexicon holds the static keyword tables and patterns that drive
// extraction and analysis. Tables are read once, validated, and treated as
// immutable afterwards.
package lexicon

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed tables.yaml
var defaultYAML []byte

// Category is a named keyword list, e.g. one emotion or one age bracket.
type Category struct {
	Name     string   `yaml:"name"`
	Keywords []string `yaml:"keywords"`
}

// Weighted is a named value in an ordered lookup.
type Weighted struct {
	Name  string  `yaml:"name"`
	Value float64 `yaml:"value"`
}

// Gender holds the pronoun and noun indicators per gender.
type Gender struct {
	Male   []string `yaml:"male"`
	Female []string `yaml:"female"`
}

// SceneTables feeds the scene analyzer.
type SceneTables struct {
	ComplexityKeywords      []string           `yaml:"complexity_keywords"`
	ComplexLocationKeywords []string           `yaml:"complex_location_keywords"`
	LocationTypes           map[string]float64 `yaml:"location_types"`
	TimesOfDay              []Weighted         `yaml:"times_of_day"`
	ActionVerbs             []string           `yaml:"action_verbs"`
}

// ExtractionTables feeds the element extractor.
type ExtractionTables struct {
	PropPatterns        []string `yaml:"prop_patterns"`
	PropEntityLabels    []string `yaml:"prop_entity_labels"`
	PropStopWords       []string `yaml:"prop_stop_words"`
	Vehicles            []string `yaml:"vehicles"`
	VehicleModifierDeps []string `yaml:"vehicle_modifier_deps"`
	WardrobePatterns    []string `yaml:"wardrobe_patterns"`
	Effects             []string `yaml:"effects"`
}

// NLPTables feeds the rule-based parts of the NLP pipeline.
type NLPTables struct {
	Gazetteer       []Category        `yaml:"gazetteer"`
	OrgSuffixes     []string          `yaml:"org_suffixes"`
	IrregularLemmas map[string]string `yaml:"irregular_lemmas"`
}

// Tables is the complete lexicon.
type Tables struct {
	Emotions         []Category        `yaml:"emotions"`
	Sentiment        map[string]string `yaml:"sentiment"`
	PositiveEmotions []string          `yaml:"positive_emotions"`
	NegativeEmotions []string          `yaml:"negative_emotions"`
	Gender           Gender            `yaml:"gender"`
	Ages             []Category        `yaml:"ages"`
	Relationships    []Category        `yaml:"relationships"`
	Scene            SceneTables       `yaml:"scene"`
	Extraction       ExtractionTables  `yaml:"extraction"`
	NLP              NLPTables         `yaml:"nlp"`

	propRes     []*regexp.Regexp
	wardrobeRes []*regexp.Regexp
}

var (
	defaultOnce   sync.Once
	defaultTables *Tables
)

// Default returns the embedded tables. It panics if the embedded file is
// invalid, which is a build defect.
func Default() *Tables {
	defaultOnce.Do(func() {
		t, err := Parse(defaultYAML)
		if err != nil {
			panic(fmt.Sprintf("lexicon: embedded tables: %v", err))
		}
		defaultTables = t
	})
	return defaultTables
}

// Load reads tables from a YAML file. An empty path yields Default().
func Load(path string) (*Tables, error) {
	if path == "" {
		return Default(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	t, err := Parse(b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// Parse decodes and validates tables from YAML and compiles their patterns.
func Parse(data []byte) (*Tables, error) {
	var t Tables
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("parse lexicon: %w", err)
	}
	if err := t.validate(); err != nil {
		return nil, err
	}
	var err error
	if t.propRes, err = compileAll(t.Extraction.PropPatterns); err != nil {
		return nil, fmt.Errorf("prop pattern: %w", err)
	}
	if t.wardrobeRes, err = compileAll(t.Extraction.WardrobePatterns); err != nil {
		return nil, fmt.Errorf("wardrobe pattern: %w", err)
	}
	return &t, nil
}

func (t *Tables) validate() error {
	var errs []error
	if len(t.Emotions) == 0 {
		errs = append(errs, errors.New("emotions: empty"))
	}
	for _, e := range t.Emotions {
		if _, ok := t.Sentiment[e.Name]; !ok {
			errs = append(errs, fmt.Errorf("sentiment: no entry for emotion %q", e.Name))
		}
	}
	if len(t.Ages) == 0 {
		errs = append(errs, errors.New("ages: empty"))
	}
	if len(t.Relationships) == 0 {
		errs = append(errs, errors.New("relationships: empty"))
	}
	for _, w := range t.Scene.TimesOfDay {
		if w.Value < 0 || w.Value > 1 {
			errs = append(errs, fmt.Errorf("times_of_day %q: value %v outside [0,1]", w.Name, w.Value))
		}
	}
	for k, v := range t.Scene.LocationTypes {
		if v < 0 || v > 1 {
			errs = append(errs, fmt.Errorf("location_types %q: value %v outside [0,1]", k, v))
		}
	}
	for _, group := range [][]Category{t.Emotions, t.Ages, t.Relationships, t.NLP.Gazetteer} {
		for _, c := range group {
			if strings.TrimSpace(c.Name) == "" {
				errs = append(errs, errors.New("category without name"))
			}
		}
	}
	return errors.Join(errs...)
}

func compileAll(patterns []string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, err
		}
		out = append(out, re)
	}
	return out, nil
}

// PropPatterns returns the compiled prop patterns in table order.
func (t *Tables) PropPatterns() []*regexp.Regexp { return t.propRes }

// WardrobePatterns returns the compiled wardrobe patterns in table order.
func (t *Tables) WardrobePatterns() []*regexp.Regexp { return t.wardrobeRes }

// EmotionNames lists the emotion categories in table order.
func (t *Tables) EmotionNames() []string {
	out := make([]string, len(t.Emotions))
	for i, e := range t.Emotions {
		out[i] = e.Name
	}
	return out
}

// Set builds a lookup set from words, lowercased.
func Set(words []string) map[string]struct{} {
	s := make(map[string]struct{}, len(words))
	for _, w := range words {
		s[strings.ToLower(w)] = struct{}{}
	}
	return s
}

// WordPattern matches keyword as a whole word. The keyword is quoted; flags
// such as "(?i)" are prepended verbatim. Boundaries are only asserted next
// to ASCII word characters, since \b does not see accented letters.
func WordPattern(flags, keyword string) *regexp.Regexp {
	return regexp.MustCompile(flags + boundary(keyword, true) + regexp.QuoteMeta(keyword) + boundary(keyword, false))
}

func boundary(keyword string, leading bool) string {
	if keyword == "" {
		return ""
	}
	c := keyword[len(keyword)-1]
	if leading {
		c = keyword[0]
	}
	if c == '_' || c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' {
		return `\b`
	}
	return ""
}

// NearPattern matches first followed within window characters by second,
// both as whole words.
func NearPattern(first, second string, window int) *regexp.Regexp {
	return regexp.MustCompile(fmt.Sprintf("%s%s.{0,%d}%s%s",
		boundary(first, true), regexp.QuoteMeta(first), window, regexp.QuoteMeta(second), boundary(second, false)))
}
