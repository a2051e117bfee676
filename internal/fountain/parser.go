/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package fountain turns Fountain screenplay text into scenes, dialogue
// blocks and per-character aggregates.
//
// Parsing is line based and forgiving: malformed input never produces an
// error, only fewer structures. Text before the first scene heading belongs
// to no scene and is dropped.
package fountain

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"scriptbreakdown/internal/domain"
	"scriptbreakdown/internal/log"
)

var (
	rePageBreak     = regexp.MustCompile(`^==+$`)
	reSceneHeading  = regexp.MustCompile(`(?i)^(INT|EXT|I/E|INT/EXT)[./]`)
	reSceneNumber   = regexp.MustCompile(`#(.+)#`)
	reCue           = regexp.MustCompile(`^[A-Z\s]+$`)
	reParenthetical = regexp.MustCompile(`^\(.*\)$`)
)

type emitKind int

const (
	emitCue emitKind = iota
	emitParenthetical
	emitDialogue
	emitAction
	emitClose
)

// emission is a record produced by a state transition and applied to the
// open scene by the parser.
type emission struct {
	kind  emitKind
	text  string
	block *domain.DialogueBlock
}

// state is one of scanning or inDialogue.
type state interface {
	next(line string) (state, []emission)
}

// known reports whether a name already spoke as a cue in the script.
type known func(name string) bool

type scanning struct {
	known known
}

func (s scanning) next(line string) (state, []emission) {
	if isCue(line) {
		b := &domain.DialogueBlock{Character: line, Lines: []string{}, Parentheticals: []string{}}
		return inDialogue{block: b, known: s.known}, []emission{{kind: emitCue, text: line, block: b}}
	}
	return s, []emission{{kind: emitAction, text: line}}
}

type inDialogue struct {
	block *domain.DialogueBlock
	known known
}

func (s inDialogue) next(line string) (state, []emission) {
	if reParenthetical.MatchString(line) {
		return s, []emission{{kind: emitParenthetical, text: line, block: s.block}}
	}
	if !s.finished() || !(isCue(line) || startsWithName(line, s.known)) {
		return s, []emission{{kind: emitDialogue, text: line, block: s.block}}
	}
	st, out := scanning{known: s.known}.next(line)
	return st, append([]emission{{kind: emitClose, block: s.block}}, out...)
}

// finished reports whether the last spoken line completed a sentence. Only
// then can a cue or a name-led action line end the speech.
func (s inDialogue) finished() bool {
	if len(s.block.Lines) == 0 {
		return false
	}
	return endsSentence(s.block.Lines[len(s.block.Lines)-1])
}

func endsSentence(line string) bool {
	line = strings.TrimRight(line, `"')]’” `)
	if strings.HasSuffix(line, "--") {
		return true
	}
	return strings.HasSuffix(line, ".") || strings.HasSuffix(line, "!") ||
		strings.HasSuffix(line, "?") || strings.HasSuffix(line, "…")
}

// startsWithName matches action lines such as "JOHN walks to the door." or
// "Max picks up a gun.": a name followed by a lowercase word. The name is
// either all caps with two or more letters or a character who already spoke.
// "OK, fine." and "I know." stay dialogue.
func startsWithName(line string, isKnown known) bool {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return false
	}
	next, _ := utf8.DecodeRuneInString(fields[1])
	if !unicode.IsLower(next) {
		return false
	}
	name := fields[0]
	for _, suffix := range []string{"'s", "'S", "’s", "’S"} {
		name = strings.TrimSuffix(name, suffix)
	}
	if isKnown != nil && isKnown(strings.ToUpper(name)) {
		return true
	}
	if utf8.RuneCountInString(name) < 2 {
		return false
	}
	for _, r := range name {
		if !unicode.IsUpper(r) {
			return false
		}
	}
	return true
}

func isCue(line string) bool {
	return !strings.HasPrefix(line, "!") && reCue.MatchString(line)
}

// isHeading matches INT/EXT style headings and forced "." headings. A line
// opening with ".." is an ellipsis, not a forced heading.
func isHeading(line string) bool {
	if reSceneHeading.MatchString(line) {
		return true
	}
	return strings.HasPrefix(line, ".") && len(line) > 1 && line[1] != '.'
}

type parser struct {
	out    domain.ParsedScript
	byName map[string]int
	used   map[string]bool
	scene  *domain.Scene
	st     state
	page   int
	count  int
}

func newParser() *parser {
	p := &parser{
		out: domain.ParsedScript{
			Scenes:     []domain.Scene{},
			Characters: []domain.Character{},
			Metadata:   map[string]string{},
		},
		byName: map[string]int{},
		used:   map[string]bool{},
		page:   1,
	}
	p.st = p.scanning()
	return p
}

func (p *parser) scanning() state {
	return scanning{known: func(name string) bool {
		_, ok := p.byName[name]
		return ok
	}}
}

func (p *parser) feed(raw string) {
	line := strings.TrimSpace(raw)
	switch {
	case line == "":
		return
	case rePageBreak.MatchString(line):
		p.page++
		return
	case isHeading(line):
		p.openScene(line)
		return
	case p.scene == nil:
		return
	}
	var out []emission
	p.st, out = p.st.next(line)
	for _, e := range out {
		p.apply(e)
	}
}

func (p *parser) apply(e emission) {
	sc := p.scene
	switch e.kind {
	case emitCue:
		if !sc.HasCharacter(e.text) {
			sc.Characters = append(sc.Characters, e.text)
		}
		c := p.character(e.text)
		c.DialogueCount++
		if !contains(c.Scenes, sc.SceneNumber) {
			c.Scenes = append(c.Scenes, sc.SceneNumber)
		}
	case emitParenthetical:
		e.block.Parentheticals = append(e.block.Parentheticals, e.text)
	case emitDialogue:
		e.block.Lines = append(e.block.Lines, e.text)
		p.character(e.block.Character).WordCount += len(strings.Fields(e.text))
		sc.Content += e.text + "\n"
	case emitAction:
		sc.Action = append(sc.Action, e.text)
		sc.Content += e.text + "\n"
	case emitClose:
		sc.Dialogue = append(sc.Dialogue, *e.block)
	}
}

func (p *parser) character(name string) *domain.Character {
	i, ok := p.byName[name]
	if !ok {
		i = len(p.out.Characters)
		p.byName[name] = i
		p.out.Characters = append(p.out.Characters, domain.Character{Name: name, Scenes: []string{}})
	}
	return &p.out.Characters[i]
}

func (p *parser) openScene(line string) {
	p.closeScene()
	p.count++
	number := strconv.Itoa(p.count)
	if m := reSceneNumber.FindStringSubmatch(line); m != nil {
		number = strings.TrimSpace(m[1])
		line = strings.TrimSpace(reSceneNumber.ReplaceAllString(line, ""))
	}
	number = p.uniqueNumber(number, line)
	line = strings.TrimPrefix(line, ".")
	ie, loc, tod := ExtractSceneHeading(line)
	p.scene = &domain.Scene{
		SceneNumber: number,
		SlugLine:    line,
		PageNumber:  p.page,
		IntExt:      ie,
		Location:    loc,
		TimeOfDay:   tod,
		Content:     line + "\n",
		Action:      []string{},
		Dialogue:    []domain.DialogueBlock{},
		Characters:  []string{},
	}
}

// uniqueNumber keeps scene numbers unique within a script. A number already
// taken, for example an explicit #2# followed by the second counted scene,
// gets the next free letter suffix: 2A, 2B and so on.
func (p *parser) uniqueNumber(number, heading string) string {
	unique := number
	for suffix := 'A'; p.used[unique]; suffix++ {
		unique = number + string(suffix)
	}
	if unique != number {
		log.WithComponent("fountain").Warn("duplicate scene number",
			"number", number, "renumbered", unique, "heading", heading)
	}
	p.used[unique] = true
	return unique
}

// closeScene flushes an open dialogue block into its scene, then the scene
// into the result.
func (p *parser) closeScene() {
	if d, ok := p.st.(inDialogue); ok && p.scene != nil {
		p.apply(emission{kind: emitClose, block: d.block})
	}
	p.st = p.scanning()
	if p.scene != nil {
		p.out.Scenes = append(p.out.Scenes, *p.scene)
		p.scene = nil
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// ParseString parses already decoded Fountain text.
func ParseString(text string) *domain.ParsedScript {
	p := newParser()
	lines := strings.Split(text, "\n")
	p.out.Metadata = extractMetadata(lines)
	for _, l := range lines {
		p.feed(l)
	}
	p.closeScene()
	return &p.out
}

// Parse reads r to the end, decodes it best-effort and parses it. Only read
// failures are reported.
func Parse(r io.Reader) (*domain.ParsedScript, error) {
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(r); err != nil {
		return nil, fmt.Errorf("read script: %w", err)
	}
	return ParseString(Decode(buf.Bytes())), nil
}

// ParseFile parses the Fountain file at path.
func ParseFile(path string) (*domain.ParsedScript, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	ps, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	log.WithComponent("fountain").Debug("parsed script",
		"path", path, "scenes", len(ps.Scenes), "characters", len(ps.Characters), "pages", ps.PageCount())
	return ps, nil
}
