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

import "strings"

// universalPOS maps a Penn Treebank tag to a universal part-of-speech tag.
func universalPOS(tag string) string {
	switch {
	case tag == "NNP" || tag == "NNPS":
		return PosPropN
	case strings.HasPrefix(tag, "NN"):
		return PosNoun
	case tag == "MD":
		return PosAux
	case strings.HasPrefix(tag, "VB"):
		return PosVerb
	case strings.HasPrefix(tag, "JJ"):
		return PosAdj
	case strings.HasPrefix(tag, "RB") || tag == "WRB":
		return PosAdv
	case tag == "CD":
		return PosNum
	case tag == "DT" || tag == "PDT" || tag == "WDT":
		return PosDet
	case tag == "IN":
		return PosAdp
	case strings.HasPrefix(tag, "PRP") || strings.HasPrefix(tag, "WP") || tag == "EX":
		return PosPron
	case tag == "CC":
		return PosCConj
	case tag == "RP" || tag == "TO" || tag == "POS":
		return PosPart
	case tag == "UH":
		return PosIntj
	case tag == "" || strings.ContainsAny(tag, ".,:;()\"'`$#") || tag == "SYM":
		return PosPunct
	}
	return PosOther
}

// lemmatize reduces a word to its dictionary form using the irregular table
// first and suffix rules selected by the Penn tag.
func lemmatize(word, tag string, irregular map[string]string) string {
	w := strings.ToLower(word)
	if l, ok := irregular[w]; ok {
		return l
	}
	switch tag {
	case "NNS", "NNPS", "VBZ":
		return stripPlural(w)
	case "VBG":
		return stripSuffix(w, "ing")
	case "VBD", "VBN":
		if strings.HasSuffix(w, "ied") && len(w) > 4 {
			return w[:len(w)-3] + "y"
		}
		return stripSuffix(w, "ed")
	case "JJR":
		return stripSuffix(w, "er")
	case "JJS":
		return stripSuffix(w, "est")
	}
	return w
}

func stripPlural(w string) string {
	switch {
	case len(w) <= 3:
		return w
	case strings.HasSuffix(w, "ies") && len(w) > 4:
		return w[:len(w)-3] + "y"
	case strings.HasSuffix(w, "sses"), strings.HasSuffix(w, "shes"), strings.HasSuffix(w, "ches"),
		strings.HasSuffix(w, "xes"), strings.HasSuffix(w, "zes"):
		return w[:len(w)-2]
	case strings.HasSuffix(w, "ss"), strings.HasSuffix(w, "us"):
		return w
	case strings.HasSuffix(w, "s"):
		return w[:len(w)-1]
	}
	return w
}

// stripSuffix removes suffix and undoes consonant doubling (running -> run).
func stripSuffix(w, suffix string) string {
	if !strings.HasSuffix(w, suffix) || len(w)-len(suffix) < 2 {
		return w
	}
	stem := w[:len(w)-len(suffix)]
	n := len(stem)
	if n >= 3 && stem[n-1] == stem[n-2] && !isVowel(stem[n-1]) && stem[n-1] != 'l' && stem[n-1] != 's' {
		return stem[:n-1]
	}
	return stem
}

func isVowel(c byte) bool { return strings.IndexByte("aeiou", c) >= 0 }
