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
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"scriptbreakdown/internal/lexicon"
)

// proximityWindow is how many characters may separate a name from an
// indicator keyword.
const proximityWindow = 30

var (
	reSentence = regexp.MustCompile(`[^.!?]+[.!?]*`)
	reWord     = regexp.MustCompile(`\b[a-zA-Z]+\b`)
)

type keyword struct {
	word string
	re   *regexp.Regexp
}

func compileKeywords(words []string) []keyword {
	out := make([]keyword, 0, len(words))
	for _, w := range words {
		out = append(out, keyword{word: w, re: lexicon.WordPattern("", strings.ToLower(w))})
	}
	return out
}

// countKeywords counts whole-word occurrences of every keyword in text,
// which must already be lowercased.
func countKeywords(text string, kws []keyword) int {
	n := 0
	for _, k := range kws {
		if !strings.Contains(text, strings.ToLower(k.word)) {
			continue
		}
		n += len(k.re.FindAllStringIndex(text, -1))
	}
	return n
}

// sentence is one piece of text between sentence terminators, with the
// terminators that closed it.
type sentence struct {
	text string
	term string
}

// splitSentences splits on runs of . ! and ?, dropping empty pieces.
func splitSentences(text string) []sentence {
	var out []sentence
	for _, m := range reSentence.FindAllString(text, -1) {
		body := strings.TrimRight(m, ".!?")
		s := strings.TrimSpace(body)
		if s == "" {
			continue
		}
		out = append(out, sentence{text: s, term: m[len(body):]})
	}
	return out
}

// nearCounter counts name/keyword proximity matches in both orders. Patterns
// are compiled on first use and kept for the lifetime of the counter, which
// is not safe for concurrent use.
type nearCounter struct {
	cache map[[2]string]*regexp.Regexp
}

func newNearCounter() *nearCounter {
	return &nearCounter{cache: map[[2]string]*regexp.Regexp{}}
}

// count returns matches of name..keyword plus keyword..name in text. All
// arguments are lowercase.
func (c *nearCounter) count(text, name, kw string) int {
	if name == "" || !strings.Contains(text, name) || !strings.Contains(text, kw) {
		return 0
	}
	return len(c.pattern(name, kw).FindAllStringIndex(text, -1)) +
		len(c.pattern(kw, name).FindAllStringIndex(text, -1))
}

func (c *nearCounter) pattern(first, second string) *regexp.Regexp {
	k := [2]string{first, second}
	re, ok := c.cache[k]
	if !ok {
		re = lexicon.NearPattern(first, second, proximityWindow)
		c.cache[k] = re
	}
	return re
}

func trimPunct(w string) string {
	return strings.TrimFunc(w, func(r rune) bool { return unicode.IsPunct(r) || unicode.IsSymbol(r) })
}

func runeLen(s string) int { return utf8.RuneCountInString(s) }
