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
	"time"
)

// ErrNotFound is returned by stores for lookups that match no record.
var ErrNotFound = errors.New("not found")

// Progress checkpoints of a breakdown run.
const (
	ProgressStarted   = 0.1
	ProgressParsed    = 0.3
	ProgressStored    = 0.5
	ProgressExtracted = 0.7
	ProgressComplete  = 1.0
)

// Summary statistic keys.
const (
	StatSceneCount        = "scene_count"
	StatPageCount         = "page_count"
	StatEstimatedDuration = "estimated_duration"
	StatCharacterCount    = "character_count"
	StatLocationCount     = "location_count"
	StatPropCount         = "prop_count"
	StatError             = "error"
)

// Breakdown is the aggregated production-planning record of a script.
type Breakdown struct {
	ID                string              `json:"id"`
	ScriptID          string              `json:"script_id"`
	ProductionID      string              `json:"production_id"`
	CreatedAt         time.Time           `json:"created_at"`
	UpdatedAt         time.Time           `json:"updated_at"`
	IsComplete        bool                `json:"is_complete"`
	Progress          float64             `json:"progress"`
	SceneCount        int                 `json:"scene_count"`
	PageCount         int                 `json:"page_count"`
	EstimatedDuration float64             `json:"estimated_duration"`
	ElementsByType    map[ElementType]int `json:"elements_by_type"`
	Summary           map[string]any      `json:"summary_statistics"`
}

// Failed reports whether the breakdown ended in the terminal failure state.
func (b Breakdown) Failed() bool {
	_, ok := b.Summary[StatError]
	return ok && !b.IsComplete
}

// ErrorMessage returns the recorded failure message, if any.
func (b Breakdown) ErrorMessage() string {
	s, _ := b.Summary[StatError].(string)
	return s
}

// StoredScene is a scene as persisted with its analysis figures.
type StoredScene struct {
	ScriptID string         `json:"script_id"`
	Scene    Scene          `json:"scene"`
	Analysis *SceneAnalysis `json:"analysis,omitempty"`
}

// StoredCharacter is a character as persisted with its analysis.
type StoredCharacter struct {
	ScriptID  string             `json:"script_id"`
	Character Character          `json:"character"`
	Analysis  *CharacterAnalysis `json:"analysis,omitempty"`
}
