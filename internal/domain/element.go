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
	"fmt"
	"strings"
)

// ElementType classifies a breakdown element.
type ElementType string

const (
	ElementCharacter     ElementType = "character"
	ElementLocation      ElementType = "location"
	ElementProp          ElementType = "prop"
	ElementWardrobe      ElementType = "wardrobe"
	ElementVehicle       ElementType = "vehicle"
	ElementSpecialEffect ElementType = "special_effect"
	ElementMakeup        ElementType = "makeup"
	ElementAnimal        ElementType = "animal"
	ElementCast          ElementType = "cast"
	ElementStunt         ElementType = "stunt"
	ElementSound         ElementType = "sound"
	ElementMusic         ElementType = "music"
	ElementCamera        ElementType = "camera"
	ElementLighting      ElementType = "lighting"
	ElementOther         ElementType = "other"
)

// ExtractedTypes lists the element types produced by extraction, in report order.
var ExtractedTypes = []ElementType{
	ElementCharacter, ElementLocation, ElementProp, ElementVehicle, ElementWardrobe, ElementSpecialEffect,
}

var allElementTypes = map[ElementType]bool{
	ElementCharacter: true, ElementLocation: true, ElementProp: true, ElementWardrobe: true,
	ElementVehicle: true, ElementSpecialEffect: true, ElementMakeup: true, ElementAnimal: true,
	ElementCast: true, ElementStunt: true, ElementSound: true, ElementMusic: true,
	ElementCamera: true, ElementLighting: true, ElementOther: true,
}

// ParseElementType validates a stored or user supplied element type.
func ParseElementType(s string) (ElementType, error) {
	t := ElementType(strings.ToLower(strings.TrimSpace(s)))
	if !allElementTypes[t] {
		return "", fmt.Errorf("unknown element type %q", s)
	}
	return t, nil
}

// Element is a typed breakdown item with the scenes it occurs in.
// Importance is nil until scored; extraction always sets it.
type Element struct {
	Type        ElementType `json:"type"`
	Name        string      `json:"name"`
	Occurrences []string    `json:"occurrences"`
	Context     string      `json:"context,omitempty"`
	Importance  *float64    `json:"importance,omitempty"`
}

// Score returns the importance or 0 when unset.
func (e Element) Score() float64 {
	if e.Importance == nil {
		return 0
	}
	return *e.Importance
}

// Key is the case-insensitive identity used for merging.
func (e Element) Key() string { return strings.ToLower(e.Name) }

// Float returns a pointer to v.
func Float(v float64) *float64 { return &v }

// Elements groups extraction output by type.
type Elements map[ElementType][]Element

// Counts returns the number of elements per type.
func (e Elements) Counts() map[ElementType]int {
	out := make(map[ElementType]int, len(e))
	for t, list := range e {
		out[t] = len(list)
	}
	return out
}
