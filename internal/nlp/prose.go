/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package nlp

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/jdkato/prose/v2"

	"scriptbreakdown/internal/lexicon"
)

// ModelProseEN names the prose-backed English pipeline.
const ModelProseEN = "prose-en"

type gazetteerEntry struct {
	label string
	re    *regexp.Regexp
}

// Prose is the English pipeline: prose tokenization, tagging and
// PERSON/GPE entities, plus lexicon-driven lemmas, modifiers and
// PRODUCT/WORK_OF_ART/ORG entities.
type Prose struct {
	irregular   map[string]string
	gazetteer   []gazetteerEntry
	orgSuffixes map[string]struct{}
}

// NewProse builds the pipeline and runs one warm-up document so that model
// failures surface here rather than on first use.
func NewProse(tables *lexicon.Tables, model string) (*Prose, error) {
	if model != "" && model != ModelProseEN {
		return nil, fmt.Errorf("unknown model %q", model)
	}
	if tables == nil {
		tables = lexicon.Default()
	}
	p := &Prose{
		irregular:   tables.NLP.IrregularLemmas,
		orgSuffixes: make(map[string]struct{}, len(tables.NLP.OrgSuffixes)),
	}
	for _, s := range tables.NLP.OrgSuffixes {
		p.orgSuffixes[s] = struct{}{}
	}
	for _, c := range tables.NLP.Gazetteer {
		for _, kw := range c.Keywords {
			p.gazetteer = append(p.gazetteer, gazetteerEntry{label: c.Name, re: lexicon.WordPattern("", kw)})
		}
	}
	if _, err := prose.NewDocument("The model warms up."); err != nil {
		return nil, err
	}
	return p, nil
}

// Process tokenizes and annotates text.
func (p *Prose) Process(ctx context.Context, text string) (*Doc, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	doc := &Doc{Text: text}
	if strings.TrimSpace(text) == "" {
		return doc, nil
	}
	pd, err := prose.NewDocument(text, prose.WithSegmentation(false))
	if err != nil {
		return nil, fmt.Errorf("process text: %w", err)
	}
	cursor := 0
	for _, t := range pd.Tokens() {
		start := -1
		if k := strings.Index(text[cursor:], t.Text); k >= 0 {
			start = cursor + k
			cursor = start + len(t.Text)
		}
		doc.Tokens = append(doc.Tokens, Token{
			Text:  t.Text,
			Lemma: lemmatize(t.Text, t.Tag, p.irregular),
			POS:   universalPOS(t.Tag),
			Tag:   t.Tag,
			Start: start,
		})
	}
	attachModifiers(doc.Tokens)

	doc.Entities = append(doc.Entities, alignEntities(text, pd.Entities())...)
	doc.Entities = append(doc.Entities, p.gazetteerEntities(text)...)
	doc.Entities = append(doc.Entities, p.orgEntities(text, doc.Tokens)...)
	sort.SliceStable(doc.Entities, func(i, j int) bool { return doc.Entities[i].Start < doc.Entities[j].Start })
	return doc, nil
}

func alignEntities(text string, ents []prose.Entity) []Entity {
	next := map[string]int{}
	var out []Entity
	for _, e := range ents {
		from := next[e.Text]
		k := strings.Index(text[from:], e.Text)
		if k < 0 {
			continue
		}
		start := from + k
		next[e.Text] = start + len(e.Text)
		out = append(out, Entity{Text: e.Text, Label: e.Label, Start: start, End: start + len(e.Text)})
	}
	return out
}

func (p *Prose) gazetteerEntities(text string) []Entity {
	var out []Entity
	for _, g := range p.gazetteer {
		for _, m := range g.re.FindAllStringIndex(text, -1) {
			out = append(out, Entity{Text: text[m[0]:m[1]], Label: g.label, Start: m[0], End: m[1]})
		}
	}
	return out
}

// orgEntities finds capitalised word runs closed by an organisation suffix,
// e.g. "Mercy Hospital" or "Acme Corp".
func (p *Prose) orgEntities(text string, toks []Token) []Entity {
	var out []Entity
	for i, t := range toks {
		if _, ok := p.orgSuffixes[t.Text]; !ok || t.Start < 0 {
			continue
		}
		first := i
		for first > 0 && capitalised(toks[first-1]) && text[toks[first-1].End():toks[first].Start] == " " {
			first--
		}
		if first == i {
			continue
		}
		start, end := toks[first].Start, t.End()
		out = append(out, Entity{Text: text[start:end], Label: "ORG", Start: start, End: end})
	}
	return out
}

func capitalised(t Token) bool {
	if t.Start < 0 || t.POS == PosDet {
		return false
	}
	r, _ := utf8.DecodeRuneInString(t.Text)
	return unicode.IsUpper(r)
}
