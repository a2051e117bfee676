/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package fountain

import (
	"crypto/md5"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"golang.org/x/text/encoding/unicode"

	"scriptbreakdown/internal/domain"
)

func str(p *string) string {
	if p == nil {
		return "<nil>"
	}
	return *p
}

func TestExtractSceneHeading(t *testing.T) {
	cases := []struct {
		in       string
		ie       domain.IntExt
		loc, tod string
	}{
		{"INT. KITCHEN - NIGHT", domain.IntExtInterior, "KITCHEN", "NIGHT"},
		{"EXT. PARK", domain.IntExtExterior, "PARK", "<nil>"},
		{"INT/EXT. CAR - MOVING", domain.IntExtBoth, "CAR", "MOVING"},
		{"I/E. PORCH - DUSK", domain.IntExtBoth, "PORCH", "DUSK"},
		{"EXT. ROAD - DAY - LATER", domain.IntExtExterior, "ROAD", "DAY - LATER"},
		{"int. kitchen - day", domain.IntExtInterior, "kitchen", "day"},
		{"INT.", domain.IntExtInterior, "<nil>", "<nil>"},
		{"ROOFTOP", domain.IntExtUnknown, "<nil>", "<nil>"},
	}
	for _, c := range cases {
		ie, loc, tod := ExtractSceneHeading(c.in)
		if ie != c.ie || str(loc) != c.loc || str(tod) != c.tod {
			t.Fatalf("%q: got (%q,%q,%q) want (%q,%q,%q)", c.in, ie, str(loc), str(tod), c.ie, c.loc, c.tod)
		}
	}
}

func TestParseDialogueClosedByAction(t *testing.T) {
	ps := ParseString("INT. ROOM - DAY\nJOHN\nHello there.\nJOHN walks to the door.")
	if len(ps.Scenes) != 1 {
		t.Fatalf("expected 1 scene, got %d", len(ps.Scenes))
	}
	sc := ps.Scenes[0]
	if sc.SceneNumber != "1" || sc.IntExt != domain.IntExtInterior || str(sc.Location) != "ROOM" || str(sc.TimeOfDay) != "DAY" {
		t.Fatalf("unexpected scene: %+v", sc)
	}
	if len(ps.Characters) != 1 {
		t.Fatalf("expected 1 character, got %+v", ps.Characters)
	}
	c := ps.Characters[0]
	if c.Name != "JOHN" || c.DialogueCount != 1 || c.WordCount != 2 || !reflect.DeepEqual(c.Scenes, []string{"1"}) {
		t.Fatalf("unexpected character: %+v", c)
	}
	want := []domain.DialogueBlock{{Character: "JOHN", Lines: []string{"Hello there."}, Parentheticals: []string{}}}
	if !reflect.DeepEqual(sc.Dialogue, want) {
		t.Fatalf("unexpected dialogue: %+v", sc.Dialogue)
	}
	if !reflect.DeepEqual(sc.Action, []string{"JOHN walks to the door."}) {
		t.Fatalf("unexpected action: %q", sc.Action)
	}
	if sc.Content != "INT. ROOM - DAY\nHello there.\nJOHN walks to the door.\n" {
		t.Fatalf("unexpected content: %q", sc.Content)
	}
	if len(ps.Metadata) != 0 {
		t.Fatalf("expected no metadata, got %v", ps.Metadata)
	}
}

const nightShift = `Title: Night Shift
Author: Jane Doe

INT. KITCHEN - NIGHT
MARY
(whispering)
Is anyone there?
BOB
Just me.
===
EXT. PARK #12A#
A dog barks.
.ROOFTOP
MARY
I can see
everything from here.
`

func TestParseScenesNumbersPagesAndMetadata(t *testing.T) {
	ps := ParseString(nightShift)
	if ps.Metadata["Title"] != "Night Shift" || ps.Metadata["Author"] != "Jane Doe" || len(ps.Metadata) != 2 {
		t.Fatalf("unexpected metadata: %v", ps.Metadata)
	}
	var numbers []string
	for _, s := range ps.Scenes {
		numbers = append(numbers, s.SceneNumber)
	}
	if !reflect.DeepEqual(numbers, []string{"1", "12A", "3"}) {
		t.Fatalf("unexpected scene numbers: %v", numbers)
	}
	park := ps.Scenes[1]
	if park.SlugLine != "EXT. PARK" || str(park.Location) != "PARK" || park.TimeOfDay != nil || park.PageNumber != 2 {
		t.Fatalf("unexpected park scene: %+v", park)
	}
	roof := ps.Scenes[2]
	if roof.SlugLine != "ROOFTOP" || roof.IntExt != domain.IntExtUnknown || roof.Location != nil {
		t.Fatalf("unexpected forced scene: %+v", roof)
	}
	if ps.PageCount() != 2 {
		t.Fatalf("expected 2 pages, got %d", ps.PageCount())
	}

	kitchen := ps.Scenes[0]
	if !reflect.DeepEqual(kitchen.Characters, []string{"MARY", "BOB"}) {
		t.Fatalf("unexpected scene characters: %v", kitchen.Characters)
	}
	if len(kitchen.Dialogue) != 2 {
		t.Fatalf("expected 2 dialogue blocks, got %+v", kitchen.Dialogue)
	}
	if !reflect.DeepEqual(kitchen.Dialogue[0].Parentheticals, []string{"(whispering)"}) {
		t.Fatalf("unexpected parentheticals: %v", kitchen.Dialogue[0].Parentheticals)
	}
	if !reflect.DeepEqual(kitchen.Dialogue[1].Lines, []string{"Just me."}) {
		t.Fatalf("BOB block not flushed at heading: %+v", kitchen.Dialogue[1])
	}

	if got := roof.Dialogue; len(got) != 1 || !reflect.DeepEqual(got[0].Lines, []string{"I can see", "everything from here."}) {
		t.Fatalf("expected wrapped dialogue flushed at end of input, got %+v", got)
	}

	mary := ps.Characters[0]
	if mary.Name != "MARY" || mary.DialogueCount != 2 || mary.WordCount != 10 || !reflect.DeepEqual(mary.Scenes, []string{"1", "3"}) {
		t.Fatalf("unexpected MARY aggregate: %+v", mary)
	}
	if bob := ps.Characters[1]; bob.DialogueCount != 1 || bob.WordCount != 2 {
		t.Fatalf("unexpected BOB aggregate: %+v", bob)
	}
}

func TestParseProducesOneScenePerHeading(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 25; i++ {
		b.WriteString("EXT. FIELD - DAY\nWind moves the grass.\n\n")
	}
	ps := ParseString(b.String())
	if len(ps.Scenes) != 25 {
		t.Fatalf("expected 25 scenes, got %d", len(ps.Scenes))
	}
	seen := map[string]bool{}
	for i, s := range ps.Scenes {
		if seen[s.SceneNumber] {
			t.Fatalf("duplicate scene number %s", s.SceneNumber)
		}
		seen[s.SceneNumber] = true
		if idx, ok := domain.SceneIndex(s.SceneNumber); !ok || idx != i+1 {
			t.Fatalf("scene %d numbered %q", i, s.SceneNumber)
		}
	}
}

func TestParseQuirks(t *testing.T) {
	t.Run("pre-heading text dropped", func(t *testing.T) {
		ps := ParseString("JOHN\nHi.\nSome action.\nINT. HALL - DAY\nQuiet.")
		if len(ps.Characters) != 0 {
			t.Fatalf("pre-heading cue registered: %+v", ps.Characters)
		}
		if !reflect.DeepEqual(ps.Scenes[0].Action, []string{"Quiet."}) {
			t.Fatalf("unexpected action: %q", ps.Scenes[0].Action)
		}
	})
	t.Run("blank lines keep dialogue open", func(t *testing.T) {
		ps := ParseString("INT. HALL - DAY\nJOHN\n\nI was\n\nthere.")
		d := ps.Scenes[0].Dialogue
		if len(d) != 1 || !reflect.DeepEqual(d[0].Lines, []string{"I was", "there."}) {
			t.Fatalf("unexpected dialogue: %+v", d)
		}
	})
	t.Run("cue after finished line", func(t *testing.T) {
		ps := ParseString("INT. HALL - DAY\nJOHN\nHi.\nMARY\nHello.")
		if len(ps.Scenes[0].Dialogue) != 2 || ps.Scenes[0].Dialogue[1].Character != "MARY" {
			t.Fatalf("unexpected dialogue: %+v", ps.Scenes[0].Dialogue)
		}
	})
	t.Run("multi-sentence speech stays dialogue", func(t *testing.T) {
		ps := ParseString("INT. ROOM - DAY\nJOHN\nHello.\nHow are you today?\nMARY\nFine.\n")
		sc := ps.Scenes[0]
		if len(sc.Dialogue) != 2 || !reflect.DeepEqual(sc.Dialogue[0].Lines, []string{"Hello.", "How are you today?"}) {
			t.Fatalf("unexpected dialogue: %+v", sc.Dialogue)
		}
		if len(sc.Action) != 0 {
			t.Fatalf("speech leaked into action: %q", sc.Action)
		}
		if ps.Characters[0].Name != "JOHN" || ps.Characters[0].WordCount != 5 {
			t.Fatalf("unexpected character: %+v", ps.Characters[0])
		}
	})
	t.Run("name-led lines end speech", func(t *testing.T) {
		cases := []struct {
			line   string
			action bool
		}{
			{"JOHN walks to the door.", true},
			{"MARY'S phone rings.", true},
			{"John sits down.", true},
			{"OK, fine.", false},
			{"I know.", false},
			{"NO WAY.", false},
		}
		for _, tc := range cases {
			ps := ParseString("INT. ROOM - DAY\nJOHN\nHello.\n" + tc.line)
			got := reflect.DeepEqual(ps.Scenes[0].Action, []string{tc.line})
			if got != tc.action {
				t.Fatalf("%q: action=%v, want %v (dialogue %+v)", tc.line, got, tc.action, ps.Scenes[0].Dialogue)
			}
		}
	})
	t.Run("duplicate scene numbers get a suffix", func(t *testing.T) {
		ps := ParseString("INT. HALL #2# - DAY\nQuiet.\nEXT. YARD - DAY\nWind.\nINT. HALL - NIGHT #2#\nDark.")
		var numbers []string
		for _, s := range ps.Scenes {
			numbers = append(numbers, s.SceneNumber)
		}
		if !reflect.DeepEqual(numbers, []string{"2", "2A", "2B"}) {
			t.Fatalf("unexpected scene numbers: %v", numbers)
		}
	})
	t.Run("ellipsis is not a forced heading", func(t *testing.T) {
		ps := ParseString("INT. HALL - DAY\n...and then silence.")
		if len(ps.Scenes) != 1 || !reflect.DeepEqual(ps.Scenes[0].Action, []string{"...and then silence."}) {
			t.Fatalf("unexpected scenes: %+v", ps.Scenes)
		}
	})
	t.Run("bang line is action", func(t *testing.T) {
		ps := ParseString("INT. HALL - DAY\n!BOOM")
		if len(ps.Characters) != 0 || len(ps.Scenes[0].Action) != 1 {
			t.Fatalf("unexpected parse: %+v", ps)
		}
	})
	t.Run("empty input", func(t *testing.T) {
		ps := ParseString("")
		if len(ps.Scenes) != 0 || len(ps.Characters) != 0 || ps.PageCount() != 0 {
			t.Fatalf("expected empty result, got %+v", ps)
		}
	})
}

func TestDecode(t *testing.T) {
	if got := Decode([]byte("\xef\xbb\xbfINT. ROOM")); got != "INT. ROOM" {
		t.Fatalf("utf-8 bom not stripped: %q", got)
	}
	enc, err := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewEncoder().String("INT. ROOM")
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if got := Decode([]byte(enc)); got != "INT. ROOM" {
		t.Fatalf("utf-16 not transcoded: %q", got)
	}
	if got := Decode([]byte("A\xffB")); got != "AB" {
		t.Fatalf("invalid byte not dropped: %q", got)
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("disk gone") }

func TestParseReaderError(t *testing.T) {
	if _, err := Parse(failingReader{}); err == nil {
		t.Fatalf("expected read error")
	}
	if _, err := ParseFile(filepath.Join(t.TempDir(), "missing.fountain")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
}

func TestHash(t *testing.T) {
	got, err := HashReader(strings.NewReader("abc"))
	if err != nil || got != "900150983cd24fb0d6963f7d28e17f72" {
		t.Fatalf("unexpected md5: %q %v", got, err)
	}
	big := strings.Repeat("INT. ROOM - DAY\n", 1000)
	sum := md5.Sum([]byte(big))
	dir := t.TempDir()
	p := filepath.Join(dir, "a.fountain")
	if err := os.WriteFile(p, []byte(big), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	h1, err := HashFile(p)
	if err != nil || h1 != hex.EncodeToString(sum[:]) {
		t.Fatalf("chunked hash mismatch: %q %v", h1, err)
	}
	h2, _ := HashFile(p)
	if h1 != h2 {
		t.Fatalf("hash not stable")
	}
	changed := []byte(big)
	changed[5000] = 'X'
	if err := os.WriteFile(p, changed, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if h3, _ := HashFile(p); h3 == h1 {
		t.Fatalf("single byte change not detected")
	}
}

func TestDetectFormat(t *testing.T) {
	cases := []struct {
		name string
		head string
		want domain.ScriptFormat
	}{
		{"a.fountain", "", domain.FormatFountain},
		{"a.SPMD", "", domain.FormatFountain},
		{"a.pdf", "", domain.FormatPDF},
		{"a.fdx", "", domain.FormatFinalDraft},
		{"a.xml", `<?xml version="1.0"?><FinalDraft DocumentType="Script">`, domain.FormatFinalDraft},
		{"a.txt", "FADE IN:\n\nINT. ROOM - DAY\n", domain.FormatFountain},
		{"a.txt", "EXT. PARK\nCUT TO:\n", domain.FormatFountain},
		{"a.txt", "INT. ROOM - DAY\nno transition", domain.FormatPlainText},
		{"notes", "just notes", domain.FormatPlainText},
	}
	for _, c := range cases {
		if got := DetectFormat(c.name, []byte(c.head)); got != c.want {
			t.Fatalf("%s: got %s want %s", c.name, got, c.want)
		}
	}

	// Markers beyond the sniff window are ignored.
	late := strings.Repeat("x", 1200) + "INT. ROOM\nFADE IN:"
	if got := DetectFormat("late.txt", []byte(late)); got != domain.FormatPlainText {
		t.Fatalf("expected plain_text, got %s", got)
	}

	p := filepath.Join(t.TempDir(), "draft.txt")
	if err := os.WriteFile(p, []byte("FADE IN:\nINT. ROOM - DAY\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if f, err := DetectFormatFile(p); err != nil || f != domain.FormatFountain {
		t.Fatalf("DetectFormatFile: %s %v", f, err)
	}
}

func TestNewParser(t *testing.T) {
	if _, err := NewParser(domain.FormatFountain); err != nil {
		t.Fatalf("fountain parser: %v", err)
	}
	for _, f := range []domain.ScriptFormat{domain.FormatPDF, domain.FormatFinalDraft, domain.FormatPlainText} {
		if _, err := NewParser(f); !errors.Is(err, ErrUnsupportedFormat) {
			t.Fatalf("%s: expected ErrUnsupportedFormat, got %v", f, err)
		}
	}
}

func TestMetadataValue(t *testing.T) {
	meta := map[string]string{"title": "Night Shift", "Credit": "", "Authors": "Jane Doe"}
	if got := MetadataValue(meta, "Title"); got != "Night Shift" {
		t.Fatalf("got %q", got)
	}
	if got := MetadataValue(meta, "Author", "Credit", "Authors"); got != "Jane Doe" {
		t.Fatalf("got %q", got)
	}
}
