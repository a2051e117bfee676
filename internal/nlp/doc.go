/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package nlp provides the language capability used by extraction and
// analysis: tokens with lemmas, part-of-speech tags and shallow modifier
// relations, plus named entities with character offsets.
package nlp

import "context"

// Universal part-of-speech tags used on Token.POS.
const (
	PosNoun  = "NOUN"
	PosPropN = "PROPN"
	PosVerb  = "VERB"
	PosAux   = "AUX"
	PosAdj   = "ADJ"
	PosAdv   = "ADV"
	PosNum   = "NUM"
	PosDet   = "DET"
	PosAdp   = "ADP"
	PosPron  = "PRON"
	PosCConj = "CCONJ"
	PosPart  = "PART"
	PosIntj  = "INTJ"
	PosPunct = "PUNCT"
	PosOther = "X"
)

// Modifier relations attached by the shallow parser.
const (
	DepAmod     = "amod"
	DepCompound = "compound"
	DepNummod   = "nummod"
	DepDet      = "det"
)

// Token is one word or punctuation mark. Start is the byte offset in the
// processed text, or -1 when the token could not be aligned.
type Token struct {
	Text  string
	Lemma string
	POS   string
	Tag   string
	Dep   string
	Head  int
	Start int
}

// End is the byte offset just past the token.
func (t Token) End() int { return t.Start + len(t.Text) }

// Entity is a labelled span of the processed text.
type Entity struct {
	Text  string
	Label string
	Start int
	End   int
}

// Doc is the result of processing one text.
type Doc struct {
	Text     string
	Tokens   []Token
	Entities []Entity
}

// TokenAt returns the index of the first token covering byte offset off.
func (d *Doc) TokenAt(off int) (int, bool) {
	for i, t := range d.Tokens {
		if t.Start >= 0 && t.Start <= off && off < t.End() {
			return i, true
		}
	}
	return 0, false
}

// Lefts returns the tokens left of token i whose head is i, in text order.
func (d *Doc) Lefts(i int) []Token {
	var out []Token
	for j := 0; j < i && j < len(d.Tokens); j++ {
		if d.Tokens[j].Head == i {
			out = append(out, d.Tokens[j])
		}
	}
	return out
}

// Pipeline processes text into a Doc. Implementations are safe for
// concurrent use once constructed.
type Pipeline interface {
	Process(ctx context.Context, text string) (*Doc, error)
}
