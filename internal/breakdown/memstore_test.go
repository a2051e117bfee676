/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package breakdown

import (
	"context"
	"sort"
	"sync"

	"scriptbreakdown/internal/domain"
)

// memStore is an in-memory Store that also records every progress write.
type memStore struct {
	mu         sync.Mutex
	scripts    map[string]domain.Script
	breakdowns map[string]domain.Breakdown
	scenes     map[string]map[string]domain.StoredScene
	characters map[string]map[string]domain.StoredCharacter
	elements   map[string]map[domain.ElementType][]domain.Element
	progress   map[string][]float64
}

func newMemStore() *memStore {
	return &memStore{
		scripts:    map[string]domain.Script{},
		breakdowns: map[string]domain.Breakdown{},
		scenes:     map[string]map[string]domain.StoredScene{},
		characters: map[string]map[string]domain.StoredCharacter{},
		elements:   map[string]map[domain.ElementType][]domain.Element{},
		progress:   map[string][]float64{},
	}
}

func (m *memStore) SaveScript(_ context.Context, s domain.Script) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scripts[s.ID] = s
	return nil
}

func (m *memStore) GetScript(_ context.Context, id string) (domain.Script, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.scripts[id]
	if !ok {
		return domain.Script{}, domain.ErrNotFound
	}
	return s, nil
}

func (m *memStore) FindScriptByHash(_ context.Context, productionID, hash string) (domain.Script, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.scripts {
		if s.ProductionID == productionID && s.ContentHash == hash {
			return s, nil
		}
	}
	return domain.Script{}, domain.ErrNotFound
}

func (m *memStore) CreateBreakdown(_ context.Context, b domain.Breakdown) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.breakdowns[b.ID] = b
	return nil
}

func (m *memStore) GetBreakdown(_ context.Context, id string) (domain.Breakdown, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.breakdowns[id]
	if !ok {
		return domain.Breakdown{}, domain.ErrNotFound
	}
	return b, nil
}

func (m *memStore) GetBreakdownByScript(_ context.Context, scriptID string) (domain.Breakdown, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.breakdowns {
		if b.ScriptID == scriptID {
			return b, nil
		}
	}
	return domain.Breakdown{}, domain.ErrNotFound
}

func (m *memStore) UpdateProgress(_ context.Context, id string, progress float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.breakdowns[id]
	if !ok {
		return domain.ErrNotFound
	}
	b.Progress = progress
	m.breakdowns[id] = b
	m.progress[id] = append(m.progress[id], progress)
	return nil
}

func (m *memStore) FinishBreakdown(_ context.Context, b domain.Breakdown) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.breakdowns[b.ID] = b
	m.progress[b.ID] = append(m.progress[b.ID], b.Progress)
	return nil
}

func (m *memStore) FailBreakdown(_ context.Context, id, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.breakdowns[id]
	if !ok {
		return domain.ErrNotFound
	}
	b.Progress, b.IsComplete = 0, false
	b.Summary = map[string]any{domain.StatError: message}
	m.breakdowns[id] = b
	return nil
}

func (m *memStore) UpsertScene(_ context.Context, s domain.StoredScene) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.scenes[s.ScriptID] == nil {
		m.scenes[s.ScriptID] = map[string]domain.StoredScene{}
	}
	m.scenes[s.ScriptID][s.Scene.SceneNumber] = s
	return nil
}

func (m *memStore) UpsertCharacter(_ context.Context, c domain.StoredCharacter) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.characters[c.ScriptID] == nil {
		m.characters[c.ScriptID] = map[string]domain.StoredCharacter{}
	}
	m.characters[c.ScriptID][c.Character.Name] = c
	return nil
}

func (m *memStore) ReplaceElements(_ context.Context, scriptID string, t domain.ElementType, elems []domain.Element) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.elements[scriptID] == nil {
		m.elements[scriptID] = map[domain.ElementType][]domain.Element{}
	}
	m.elements[scriptID][t] = append([]domain.Element(nil), elems...)
	return nil
}

func (m *memStore) PruneAnalysis(_ context.Context, scriptID string, scenes, characters []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	keep := func(list []string) map[string]bool {
		set := map[string]bool{}
		for _, v := range list {
			set[v] = true
		}
		return set
	}
	sceneSet, charSet := keep(scenes), keep(characters)
	for num := range m.scenes[scriptID] {
		if !sceneSet[num] {
			delete(m.scenes[scriptID], num)
		}
	}
	for name := range m.characters[scriptID] {
		if !charSet[name] {
			delete(m.characters[scriptID], name)
		}
	}
	return nil
}

func (m *memStore) ListScenes(_ context.Context, scriptID string) ([]domain.StoredScene, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.StoredScene
	for _, s := range m.scenes[scriptID] {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Scene.SceneNumber < out[j].Scene.SceneNumber })
	return out, nil
}

func (m *memStore) ListCharacters(_ context.Context, scriptID string) ([]domain.StoredCharacter, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.StoredCharacter
	for _, c := range m.characters[scriptID] {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Character.Name < out[j].Character.Name })
	return out, nil
}

func (m *memStore) ListElements(_ context.Context, scriptID string, t domain.ElementType) ([]domain.Element, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t != "" {
		return append([]domain.Element(nil), m.elements[scriptID][t]...), nil
	}
	var out []domain.Element
	for _, typ := range domain.ExtractedTypes {
		out = append(out, m.elements[scriptID][typ]...)
	}
	return out, nil
}

func (m *memStore) progressOf(id string) []float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]float64(nil), m.progress[id]...)
}
