/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package storage

import (
	"context"
	"strings"
	"testing"

	"scriptbreakdown/internal/domain"
)

func seedSearch(t *testing.T) *Store {
	t.Helper()
	s := openTemp(t)
	seedScript(t, s, "s-1", "prod-1", "a")
	seedScript(t, s, "s-2", "prod-1", "b")
	garage, street := "GARAGE", "MAIN STREET"
	rows := []domain.StoredScene{
		{ScriptID: "s-1", Scene: domain.Scene{SceneNumber: "1", SlugLine: "INT. GARAGE - NIGHT", PageNumber: 1, Location: &garage,
			Content: "MAX picks up the gun and hides it.", Characters: []string{"MAX"}}},
		{ScriptID: "s-1", Scene: domain.Scene{SceneNumber: "2", SlugLine: "EXT. MAIN STREET - DAY", PageNumber: 2, Location: &street,
			Content: "Rain falls on the old truck.", Characters: []string{"LENA"}}},
		{ScriptID: "s-2", Scene: domain.Scene{SceneNumber: "1", SlugLine: "INT. GARAGE - DAY", PageNumber: 1, Location: &garage,
			Content: "LENA cleans the gun.", Characters: []string{"LENA", "MAX"}}},
	}
	for _, r := range rows {
		if err := s.UpsertScene(context.Background(), r); err != nil {
			t.Fatalf("UpsertScene: %v", err)
		}
	}
	return s
}

func TestSearchFullText(t *testing.T) {
	s := seedSearch(t)
	ctx := context.Background()

	hits, err := s.Search(ctx, SearchQuery{Text: "gun"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("expected 2 hits, got %+v", hits)
	}
	if !strings.Contains(hits[0].Snippet, "[gun]") {
		t.Fatalf("snippet not highlighted: %q", hits[0].Snippet)
	}

	hits, _ = s.Search(ctx, SearchQuery{Text: "gun", ScriptID: "s-2"})
	if len(hits) != 1 || hits[0].ScriptID != "s-2" || hits[0].SlugLine != "INT. GARAGE - DAY" {
		t.Fatalf("script filter: %+v", hits)
	}

	hits, _ = s.Search(ctx, SearchQuery{Text: `"old truck"`})
	if len(hits) != 1 || hits[0].SceneNumber != "2" || hits[0].PageNumber != 2 {
		t.Fatalf("phrase search: %+v", hits)
	}
}

func TestSearchFilters(t *testing.T) {
	s := seedSearch(t)
	ctx := context.Background()
	cases := []struct {
		name string
		q    SearchQuery
		want int
	}{
		{"location substring", SearchQuery{Location: "street"}, 1},
		{"location exact", SearchQuery{Location: "garage"}, 2},
		{"character", SearchQuery{Character: "max"}, 2},
		{"character and text", SearchQuery{Character: "LENA", Text: "gun"}, 1},
		{"no match", SearchQuery{Character: "NOBODY"}, 0},
		{"pagination", SearchQuery{Limit: 2, Offset: 2}, 1},
	}
	for _, c := range cases {
		hits, err := s.Search(ctx, c.q)
		if err != nil {
			t.Fatalf("%s: %v", c.name, err)
		}
		if len(hits) != c.want {
			t.Fatalf("%s: expected %d hits, got %+v", c.name, c.want, hits)
		}
	}
}

func TestSearchFollowsSceneUpdates(t *testing.T) {
	s := seedSearch(t)
	ctx := context.Background()
	garage := "GARAGE"
	updated := domain.StoredScene{ScriptID: "s-1", Scene: domain.Scene{SceneNumber: "1", SlugLine: "INT. GARAGE - NIGHT", PageNumber: 1,
		Location: &garage, Content: "MAX drops the wrench.", Characters: []string{"MAX"}}}
	if err := s.UpsertScene(ctx, updated); err != nil {
		t.Fatalf("UpsertScene: %v", err)
	}
	if hits, _ := s.Search(ctx, SearchQuery{Text: "gun", ScriptID: "s-1"}); len(hits) != 0 {
		t.Fatalf("stale FTS entry: %+v", hits)
	}
	if hits, _ := s.Search(ctx, SearchQuery{Text: "wrench"}); len(hits) != 1 {
		t.Fatalf("updated content not indexed: %+v", hits)
	}
}
