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

// attachModifiers gives each noun phrase a head, its last noun, and labels
// the words before it by part of speech (amod, nummod, compound or det). A
// determiner only opens a phrase. Other tokens keep Head -1.
func attachModifiers(toks []Token) {
	for i := range toks {
		toks[i].Head = -1
	}
	i := 0
	for i < len(toks) {
		if !inNounPhrase(toks[i].POS) {
			i++
			continue
		}
		j := i
		for j < len(toks) && inNounPhrase(toks[j].POS) && (j == i || toks[j].POS != PosDet) {
			j++
		}
		head := -1
		for k := j - 1; k >= i; k-- {
			if toks[k].POS == PosNoun || toks[k].POS == PosPropN {
				head = k
				break
			}
		}
		if head >= 0 {
			for k := i; k < head; k++ {
				toks[k].Head = head
				toks[k].Dep = modifierDep(toks[k].POS)
			}
		}
		i = j
	}
}

func inNounPhrase(pos string) bool {
	switch pos {
	case PosDet, PosAdj, PosNum, PosNoun, PosPropN:
		return true
	}
	return false
}

func modifierDep(pos string) string {
	switch pos {
	case PosAdj:
		return DepAmod
	case PosNum:
		return DepNummod
	case PosDet:
		return DepDet
	}
	return DepCompound
}
