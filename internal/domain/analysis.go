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

import "sort"

// Sentiment labels.
const (
	SentimentPositive = "positive"
	SentimentNegative = "negative"
	SentimentNeutral  = "neutral"
)

// SceneMetrics are the raw counts and factors behind a complexity score.
type SceneMetrics struct {
	CharacterCount           int     `json:"character_count"`
	DialogueLineCount        int     `json:"dialogue_line_count"`
	ActionLineCount          int     `json:"action_line_count"`
	TotalLineCount           int     `json:"total_line_count"`
	DialogueDensity          float64 `json:"dialogue_density"`
	ActionDensity            float64 `json:"action_density"`
	ComplexityKeywordMatches int     `json:"complexity_keyword_matches"`
	HasComplexElements       bool    `json:"has_complex_elements"`
	LocationComplexity       float64 `json:"location_complexity"`
	TimeComplexity           float64 `json:"time_complexity"`
}

// SceneAnalysis is attached to a scene by scene number.
type SceneAnalysis struct {
	SceneNumber      string             `json:"scene_number"`
	ComplexityScore  float64            `json:"complexity_score"`
	DurationEstimate float64            `json:"duration_estimate"`
	Metrics          SceneMetrics       `json:"metrics"`
	Emotions         map[string]float64 `json:"emotions"`
	OverallSentiment string             `json:"overall_sentiment"`
	KeyActions       []string           `json:"key_actions"`
}

// DialogueStyle summarises how a character speaks.
type DialogueStyle struct {
	AvgSentenceLength    float64 `json:"avg_sentence_length"`
	VocabularyRichness   float64 `json:"vocabulary_richness"`
	QuestionFrequency    float64 `json:"question_frequency"`
	ExclamationFrequency float64 `json:"exclamation_frequency"`
}

// EmotionPoint is the emotion profile of a character's lines in one scene.
type EmotionPoint struct {
	Scene    string             `json:"scene"`
	Emotions map[string]float64 `json:"emotions"`
}

// EmotionalChange marks a shift of the dominant emotion between consecutive appearances.
type EmotionalChange struct {
	FromScene   string `json:"from_scene"`
	ToScene     string `json:"to_scene"`
	FromEmotion string `json:"from_emotion"`
	ToEmotion   string `json:"to_emotion"`
}

// CharacterArc describes the emotional journey of a character.
type CharacterArc struct {
	HasArc      bool              `json:"has_arc"`
	Progression []EmotionPoint    `json:"emotion_progression"`
	Changes     []EmotionalChange `json:"emotional_changes"`
	Description *string           `json:"arc_description"`
}

// RelationshipType is the inferred kind of a relationship.
type RelationshipType string

const (
	RelationshipFamily       RelationshipType = "family"
	RelationshipRomantic     RelationshipType = "romantic"
	RelationshipProfessional RelationshipType = "professional"
	RelationshipFriendship   RelationshipType = "friendship"
	RelationshipAntagonistic RelationshipType = "antagonistic"
	RelationshipAssociates   RelationshipType = "associates"
)

// Relationship is one directed entry of the symmetric relationship matrix.
type Relationship struct {
	Strength            float64          `json:"strength"`
	CoOccurrence        float64          `json:"co_occurrence"`
	DialogueInteraction float64          `json:"dialogue_interaction"`
	SharedScenes        []string         `json:"shared_scenes"`
	Type                RelationshipType `json:"relationship_type"`
}

// NewRelationship validates the three scores and rounds them to 2 decimals.
// Shared scenes are copied and sorted so mirrored entries compare equal.
func NewRelationship(strength, coOccurrence, interaction float64, shared []string, typ RelationshipType) (Relationship, error) {
	var err error
	r := Relationship{Type: typ}
	if r.Strength, err = NewUnitScore("strength", strength); err != nil {
		return Relationship{}, err
	}
	if r.CoOccurrence, err = NewUnitScore("co_occurrence", coOccurrence); err != nil {
		return Relationship{}, err
	}
	if r.DialogueInteraction, err = NewUnitScore("dialogue_interaction", interaction); err != nil {
		return Relationship{}, err
	}
	r.SharedScenes = append([]string(nil), shared...)
	SortSceneNumbers(r.SharedScenes)
	if r.Type == "" {
		r.Type = RelationshipAssociates
	}
	return r, nil
}

// RelationshipMatrix maps character -> other character -> relationship.
type RelationshipMatrix map[string]map[string]Relationship

// Set stores r under both directions.
func (m RelationshipMatrix) Set(a, b string, r Relationship) {
	if m[a] == nil {
		m[a] = map[string]Relationship{}
	}
	if m[b] == nil {
		m[b] = map[string]Relationship{}
	}
	m[a][b] = r
	mirror := r
	mirror.SharedScenes = append([]string(nil), r.SharedScenes...)
	m[b][a] = mirror
}

// CharacterAnalysis is attached to a character by name.
type CharacterAnalysis struct {
	Name            string                  `json:"name"`
	DialogueCount   int                     `json:"dialogue_count"`
	WordCount       int                     `json:"word_count"`
	Scenes          []string                `json:"scenes"`
	ImportanceScore float64                 `json:"importance_score"`
	Emotions        map[string]float64      `json:"emotions"`
	DialogueStyle   *DialogueStyle          `json:"dialogue_style"`
	Relationships   map[string]Relationship `json:"relationships"`
	Gender          *string                 `json:"gender"`
	AgeRange        *string                 `json:"age_range"`
	Arc             CharacterArc            `json:"arc"`
}

// CharacterReport is the character analyzer output.
type CharacterReport struct {
	Characters         []CharacterAnalysis `json:"characters"`
	RelationshipMatrix RelationshipMatrix  `json:"relationship_matrix"`
}

// SortSceneNumbers orders numeric scene numbers numerically and places
// non-numeric ones after them in lexical order.
func SortSceneNumbers(nums []string) {
	sort.SliceStable(nums, func(i, j int) bool {
		a, aok := SceneIndex(nums[i])
		b, bok := SceneIndex(nums[j])
		switch {
		case aok && bok:
			return a < b
		case aok != bok:
			return aok
		default:
			return nums[i] < nums[j]
		}
	})
}
