/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package domain holds the record types produced by the parser and the
// analysis stages. Parser records are immutable once parsing returns; the
// analysis stages attach sibling records keyed by scene number or character
// name instead of mutating them.
package domain

import (
	"strconv"
	"time"
)

// ScriptFormat is the detected screenplay format of an upload.
type ScriptFormat string

const (
	FormatFountain   ScriptFormat = "fountain"
	FormatPDF        ScriptFormat = "pdf"
	FormatFinalDraft ScriptFormat = "final_draft"
	FormatPlainText  ScriptFormat = "plain_text"
)

// IntExt is the interior/exterior marker of a scene heading. The empty value means unknown.
type IntExt string

const (
	IntExtUnknown  IntExt = ""
	IntExtInterior IntExt = "INT"
	IntExtExterior IntExt = "EXT"
	IntExtBoth     IntExt = "INT/EXT"
)

// DialogueBlock is one speech: a cue followed by lines and parentheticals.
type DialogueBlock struct {
	Character      string   `json:"character"`
	Lines          []string `json:"lines"`
	Parentheticals []string `json:"parentheticals"`
}

// Scene is a single scene as emitted by the Fountain parser.
type Scene struct {
	SceneNumber string          `json:"scene_number"`
	SlugLine    string          `json:"slug_line"`
	PageNumber  int             `json:"page_number"`
	IntExt      IntExt          `json:"int_ext"`
	Location    *string         `json:"location"`
	TimeOfDay   *string         `json:"time_of_day"`
	Content     string          `json:"content"`
	Action      []string        `json:"action"`
	Dialogue    []DialogueBlock `json:"dialogue"`
	Characters  []string        `json:"characters"`
}

// LocationName returns the location or "" when the heading had none.
func (s Scene) LocationName() string {
	if s.Location == nil {
		return ""
	}
	return *s.Location
}

// TimeOfDayName returns the time of day or "" when the heading had none.
func (s Scene) TimeOfDayName() string {
	if s.TimeOfDay == nil {
		return ""
	}
	return *s.TimeOfDay
}

// DialogueLineCount sums the spoken lines of every block in the scene.
func (s Scene) DialogueLineCount() int {
	n := 0
	for _, d := range s.Dialogue {
		n += len(d.Lines)
	}
	return n
}

// HasCharacter reports whether name spoke in the scene.
func (s Scene) HasCharacter(name string) bool {
	for _, c := range s.Characters {
		if c == name {
			return true
		}
	}
	return false
}

// Character is the running aggregate for one cue name across the script.
type Character struct {
	Name          string   `json:"name"`
	DialogueCount int      `json:"dialogue_count"`
	WordCount     int      `json:"word_count"`
	Scenes        []string `json:"scenes"`
}

// ParsedScript is the parser output.
type ParsedScript struct {
	Scenes     []Scene           `json:"scenes"`
	Characters []Character       `json:"characters"`
	Metadata   map[string]string `json:"metadata"`
}

// PageCount is the highest page number reached by any scene, 0 without scenes.
func (p *ParsedScript) PageCount() int {
	pages := 0
	for _, s := range p.Scenes {
		if s.PageNumber > pages {
			pages = s.PageNumber
		}
	}
	return pages
}

// Scene looks a scene up by its number.
func (p *ParsedScript) Scene(number string) (Scene, bool) {
	for _, s := range p.Scenes {
		if s.SceneNumber == number {
			return s, true
		}
	}
	return Scene{}, false
}

// Script is a registered screenplay upload.
type Script struct {
	ID               string            `json:"id"`
	ProductionID     string            `json:"production_id"`
	Title            string            `json:"title"`
	Version          string            `json:"version,omitempty"`
	Author           string            `json:"author,omitempty"`
	Format           ScriptFormat      `json:"format"`
	OriginalFilename string            `json:"original_filename"`
	FilePath         string            `json:"file_path"`
	ContentHash      string            `json:"content_hash"`
	Metadata         map[string]string `json:"metadata,omitempty"`
	IsParsed         bool              `json:"is_parsed"`
	UploadedAt       time.Time         `json:"uploaded_at"`
}

// IsNumeric reports whether a scene number is made of ASCII digits only.
func IsNumeric(sceneNumber string) bool {
	if sceneNumber == "" {
		return false
	}
	for _, r := range sceneNumber {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// SceneIndex returns the integer value of a numeric scene number.
func SceneIndex(sceneNumber string) (int, bool) {
	if !IsNumeric(sceneNumber) {
		return 0, false
	}
	n, err := strconv.Atoi(sceneNumber)
	if err != nil {
		return 0, false
	}
	return n, true
}
