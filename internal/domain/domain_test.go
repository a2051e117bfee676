/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package domain

import (
	"errors"
	"math"
	"reflect"
	"testing"
)

func TestNewRelationshipValidatesAndRounds(t *testing.T) {
	r, err := NewRelationship(0.6666, 0.5, 1.0/3.0, []string{"10", "2", "A"}, "")
	if err != nil {
		t.Fatalf("NewRelationship: %v", err)
	}
	if r.Strength != 0.67 || r.CoOccurrence != 0.5 || r.DialogueInteraction != 0.33 {
		t.Fatalf("unexpected rounding: %+v", r)
	}
	if r.Type != RelationshipAssociates {
		t.Fatalf("default type = %q", r.Type)
	}
	if want := []string{"2", "10", "A"}; !reflect.DeepEqual(r.SharedScenes, want) {
		t.Fatalf("shared scenes = %v, want %v", r.SharedScenes, want)
	}

	for _, bad := range []float64{-0.01, 1.01, math.NaN()} {
		if _, err := NewRelationship(bad, 0, 0, nil, RelationshipFamily); !errors.Is(err, ErrScoreOutOfRange) {
			t.Fatalf("strength %v: expected ErrScoreOutOfRange, got %v", bad, err)
		}
	}
}

func TestRelationshipMatrixSetIsSymmetric(t *testing.T) {
	m := RelationshipMatrix{}
	r, _ := NewRelationship(0.5, 0.5, 0.5, []string{"1", "3"}, RelationshipFriendship)
	m.Set("ANNA", "BEN", r)
	if !reflect.DeepEqual(m["ANNA"]["BEN"], m["BEN"]["ANNA"]) {
		t.Fatalf("matrix not symmetric: %+v vs %+v", m["ANNA"]["BEN"], m["BEN"]["ANNA"])
	}
	m["ANNA"]["BEN"].SharedScenes[0] = "99"
	if m["BEN"]["ANNA"].SharedScenes[0] != "1" {
		t.Fatalf("mirrored entry shares backing array")
	}
}

func TestClampUnitAndRound(t *testing.T) {
	cases := []struct{ in, want float64 }{
		{-1, 0}, {0.25, 0.25}, {3, 1}, {math.NaN(), 0},
	}
	for _, c := range cases {
		if got := ClampUnit(c.in); got != c.want {
			t.Fatalf("ClampUnit(%v) = %v, want %v", c.in, got, c.want)
		}
	}
	if got := Round(2.345, 1); got != 2.3 && got != 2.4 {
		t.Fatalf("Round = %v", got)
	}
	if got := Round(1.26, 1); got != 1.3 {
		t.Fatalf("Round(1.26,1) = %v", got)
	}
}

func TestParsedScriptPageCountAndLookup(t *testing.T) {
	p := &ParsedScript{Scenes: []Scene{{SceneNumber: "1", PageNumber: 1}, {SceneNumber: "2A", PageNumber: 3}}}
	if got := p.PageCount(); got != 3 {
		t.Fatalf("PageCount = %d", got)
	}
	if _, ok := p.Scene("2A"); !ok {
		t.Fatalf("scene 2A not found")
	}
	if (&ParsedScript{}).PageCount() != 0 {
		t.Fatalf("empty script should have 0 pages")
	}
}

func TestParseElementType(t *testing.T) {
	if got, err := ParseElementType(" Special_Effect "); err != nil || got != ElementSpecialEffect {
		t.Fatalf("ParseElementType = %q, %v", got, err)
	}
	if _, err := ParseElementType("spaceship"); err == nil {
		t.Fatalf("expected error for unknown type")
	}
}

func TestBreakdownFailureState(t *testing.T) {
	b := Breakdown{Summary: map[string]any{StatError: "unsupported format"}}
	if !b.Failed() || b.ErrorMessage() != "unsupported format" {
		t.Fatalf("failure state not reported: %+v", b)
	}
	b.IsComplete = true
	if b.Failed() {
		t.Fatalf("complete breakdown cannot be failed")
	}
}
