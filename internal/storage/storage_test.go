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
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"regexp"
	"strings"
	"testing"
	"time"

	"scriptbreakdown/internal/breakdown"
	"scriptbreakdown/internal/domain"
	"scriptbreakdown/internal/nlp"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "db", "breakdowns.sqlite"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func writeTestFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func seedScript(t *testing.T, s *Store, id, production, hash string) domain.Script {
	t.Helper()
	sc := domain.Script{
		ID:               id,
		ProductionID:     production,
		Title:            "Night Shift",
		Author:           "R. Vega",
		Format:           domain.FormatFountain,
		OriginalFilename: "night.fountain",
		FilePath:         "/scripts/night.fountain",
		ContentHash:      hash,
		Metadata:         map[string]string{"Title": "Night Shift"},
		IsParsed:         true,
		UploadedAt:       time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC),
	}
	if err := s.SaveScript(context.Background(), sc); err != nil {
		t.Fatalf("SaveScript: %v", err)
	}
	return sc
}

func TestOpenEnablesWALAndVersion(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()
	var mode string
	if err := s.DB().QueryRowContext(ctx, "PRAGMA journal_mode;").Scan(&mode); err != nil {
		t.Fatalf("journal_mode: %v", err)
	}
	if strings.ToLower(mode) != "wal" {
		t.Fatalf("expected WAL, got %q", mode)
	}
	var schema int
	var app string
	if err := s.DB().QueryRowContext(ctx, `SELECT schema, app FROM version WHERE id=1`).Scan(&schema, &app); err != nil {
		t.Fatalf("read version: %v", err)
	}
	if schema != schemaVersion || app == "" {
		t.Fatalf("version row = %d/%q", schema, app)
	}
	var cnt int
	if err := s.DB().QueryRowContext(ctx, `SELECT COUNT(*) FROM sqlite_master WHERE name IN ('scripts','breakdowns','scenes','characters','elements','fts_scenes')`).Scan(&cnt); err != nil {
		t.Fatalf("count tables: %v", err)
	}
	if cnt != 6 {
		t.Fatalf("expected 6 tables, got %d", cnt)
	}
	if !s.QuickCheck(ctx) {
		t.Fatalf("fresh database failed quick check")
	}
}

func TestOpenRequiresPath(t *testing.T) {
	if _, err := Open("  "); err == nil {
		t.Fatalf("expected error for empty path")
	}
}

func TestScriptRoundTripAndHashLookup(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()
	want := seedScript(t, s, "s-1", "prod-1", "abc")

	got, err := s.GetScript(ctx, "s-1")
	if err != nil {
		t.Fatalf("GetScript: %v", err)
	}
	if !got.UploadedAt.Equal(want.UploadedAt) {
		t.Fatalf("uploaded_at = %v, want %v", got.UploadedAt, want.UploadedAt)
	}
	got.UploadedAt = want.UploadedAt
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", got, want)
	}
	if got, err := s.FindScriptByHash(ctx, "prod-1", "abc"); err != nil || got.ID != "s-1" {
		t.Fatalf("FindScriptByHash = %+v, %v", got, err)
	}
	if _, err := s.FindScriptByHash(ctx, "prod-2", "abc"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("other production: expected ErrNotFound, got %v", err)
	}
	if _, err := s.GetScript(ctx, "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestBreakdownLifecycle(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()
	seedScript(t, s, "s-1", "prod-1", "abc")

	b := domain.Breakdown{ID: "b-1", ScriptID: "s-1", ProductionID: "prod-1", Summary: map[string]any{}}
	if err := s.CreateBreakdown(ctx, b); err != nil {
		t.Fatalf("CreateBreakdown: %v", err)
	}
	if err := s.UpdateProgress(ctx, "b-1", domain.ProgressParsed); err != nil {
		t.Fatalf("UpdateProgress: %v", err)
	}
	got, err := s.GetBreakdownByScript(ctx, "s-1")
	if err != nil || got.Progress != domain.ProgressParsed || got.CreatedAt.IsZero() {
		t.Fatalf("after progress: %+v, %v", got, err)
	}

	b.IsComplete, b.Progress = true, domain.ProgressComplete
	b.SceneCount, b.PageCount, b.EstimatedDuration = 2, 2, 2
	b.ElementsByType = map[domain.ElementType]int{domain.ElementProp: 3}
	b.Summary = map[string]any{domain.StatSceneCount: 2}
	if err := s.FinishBreakdown(ctx, b); err != nil {
		t.Fatalf("FinishBreakdown: %v", err)
	}
	got, _ = s.GetBreakdown(ctx, "b-1")
	if !got.IsComplete || got.ElementsByType[domain.ElementProp] != 3 || got.Summary[domain.StatSceneCount] != float64(2) {
		t.Fatalf("finished breakdown = %+v", got)
	}

	if err := s.FailBreakdown(ctx, "b-1", "boom"); err != nil {
		t.Fatalf("FailBreakdown: %v", err)
	}
	got, _ = s.GetBreakdown(ctx, "b-1")
	if !got.Failed() || got.ErrorMessage() != "boom" || got.Progress != 0 {
		t.Fatalf("failed breakdown = %+v", got)
	}

	if err := s.UpdateProgress(ctx, "nope", 0.5); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown breakdown: expected ErrNotFound, got %v", err)
	}
}

func TestUpsertSceneIsIdempotentAndKeepsOrder(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()
	seedScript(t, s, "s-1", "prod-1", "abc")
	loc := "GARAGE"
	scenes := []domain.Scene{
		{SceneNumber: "2", SlugLine: "INT. GARAGE - NIGHT", PageNumber: 1, IntExt: domain.IntExtInterior, Location: &loc, Content: "MAX picks up a gun.", Characters: []string{"MAX"}},
		{SceneNumber: "1", SlugLine: "EXT. STREET - DAY", PageNumber: 2, IntExt: domain.IntExtExterior, Content: "Rain.", Characters: []string{}},
	}
	for _, sc := range scenes {
		if err := s.UpsertScene(ctx, domain.StoredScene{ScriptID: "s-1", Scene: sc}); err != nil {
			t.Fatalf("UpsertScene: %v", err)
		}
	}
	a := &domain.SceneAnalysis{SceneNumber: "2", ComplexityScore: 0.4, Emotions: map[string]float64{"fear": 1}}
	if err := s.UpsertScene(ctx, domain.StoredScene{ScriptID: "s-1", Scene: scenes[0], Analysis: a}); err != nil {
		t.Fatalf("UpsertScene with analysis: %v", err)
	}

	got, err := s.ListScenes(ctx, "s-1")
	if err != nil {
		t.Fatalf("ListScenes: %v", err)
	}
	if len(got) != 2 || got[0].Scene.SceneNumber != "2" || got[1].Scene.SceneNumber != "1" {
		t.Fatalf("scenes out of script order: %+v", got)
	}
	if got[0].Analysis == nil || got[0].Analysis.Emotions["fear"] != 1 || got[1].Analysis != nil {
		t.Fatalf("analysis not stored per scene: %+v", got)
	}
	if got[0].Scene.LocationName() != "GARAGE" || got[1].Scene.Location != nil {
		t.Fatalf("nullable location lost: %+v", got)
	}
}

func TestCharactersAndElements(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()
	seedScript(t, s, "s-1", "prod-1", "abc")

	for _, name := range []string{"MAX", "LENA", "MAX"} {
		c := domain.StoredCharacter{ScriptID: "s-1", Character: domain.Character{Name: name, DialogueCount: 1, Scenes: []string{"1"}}}
		if err := s.UpsertCharacter(ctx, c); err != nil {
			t.Fatalf("UpsertCharacter: %v", err)
		}
	}
	chars, err := s.ListCharacters(ctx, "s-1")
	if err != nil || len(chars) != 2 || chars[0].Character.Name != "MAX" {
		t.Fatalf("ListCharacters = %+v, %v", chars, err)
	}

	props := []domain.Element{
		{Type: domain.ElementProp, Name: "gun", Occurrences: []string{"1"}, Importance: domain.Float(0.1)},
		{Type: domain.ElementProp, Name: "truck", Occurrences: []string{"2"}},
	}
	if err := s.ReplaceElements(ctx, "s-1", domain.ElementProp, props); err != nil {
		t.Fatalf("ReplaceElements: %v", err)
	}
	locs := []domain.Element{{Type: domain.ElementLocation, Name: "GARAGE", Occurrences: []string{"1"}, Context: "INT. GARAGE - NIGHT"}}
	if err := s.ReplaceElements(ctx, "s-1", domain.ElementLocation, locs); err != nil {
		t.Fatalf("ReplaceElements: %v", err)
	}
	if err := s.ReplaceElements(ctx, "s-1", domain.ElementProp, props[:1]); err != nil {
		t.Fatalf("ReplaceElements again: %v", err)
	}

	got, err := s.ListElements(ctx, "s-1", domain.ElementProp)
	if err != nil {
		t.Fatalf("ListElements: %v", err)
	}
	if !reflect.DeepEqual(got, props[:1]) {
		t.Fatalf("props = %+v", got)
	}
	all, _ := s.ListElements(ctx, "s-1", "")
	if len(all) != 2 {
		t.Fatalf("expected 2 elements across types, got %+v", all)
	}
}

func TestPruneAnalysisKeepsLatestRun(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()
	seedScript(t, s, "s-1", "prod-1", "abc")
	seedScript(t, s, "s-2", "prod-1", "def")
	for _, st := range []domain.StoredScene{
		{ScriptID: "s-1", Scene: domain.Scene{SceneNumber: "1", SlugLine: "INT. GARAGE - NIGHT", Content: "A gun.", Characters: []string{"MAX"}}},
		{ScriptID: "s-1", Scene: domain.Scene{SceneNumber: "2", SlugLine: "EXT. STREET - DAY", Content: "An old truck.", Characters: []string{"LENA"}}},
		{ScriptID: "s-2", Scene: domain.Scene{SceneNumber: "2", SlugLine: "EXT. PIER - DAY", Content: "A boat.", Characters: []string{}}},
	} {
		if err := s.UpsertScene(ctx, st); err != nil {
			t.Fatalf("UpsertScene: %v", err)
		}
	}
	for _, name := range []string{"MAX", "LENA"} {
		c := domain.StoredCharacter{ScriptID: "s-1", Character: domain.Character{Name: name, Scenes: []string{}}}
		if err := s.UpsertCharacter(ctx, c); err != nil {
			t.Fatalf("UpsertCharacter: %v", err)
		}
	}

	if err := s.PruneAnalysis(ctx, "s-1", []string{"1"}, []string{"MAX"}); err != nil {
		t.Fatalf("PruneAnalysis: %v", err)
	}
	scenes, _ := s.ListScenes(ctx, "s-1")
	if len(scenes) != 1 || scenes[0].Scene.SceneNumber != "1" {
		t.Fatalf("scenes after prune = %+v", scenes)
	}
	chars, _ := s.ListCharacters(ctx, "s-1")
	if len(chars) != 1 || chars[0].Character.Name != "MAX" {
		t.Fatalf("characters after prune = %+v", chars)
	}
	if other, _ := s.ListScenes(ctx, "s-2"); len(other) != 1 {
		t.Fatalf("prune touched another script: %+v", other)
	}
	if hits, err := s.Search(ctx, SearchQuery{Text: "truck"}); err != nil || len(hits) != 0 {
		t.Fatalf("pruned scene still searchable: %+v, %v", hits, err)
	}

	if err := s.PruneAnalysis(ctx, "s-1", nil, nil); err != nil {
		t.Fatalf("PruneAnalysis empty: %v", err)
	}
	if scenes, _ := s.ListScenes(ctx, "s-1"); len(scenes) != 0 {
		t.Fatalf("empty keep list left scenes: %+v", scenes)
	}
}

var reToken = regexp.MustCompile(`[A-Za-z']+|[^\sA-Za-z']`)

type tokenPipeline struct{}

func (tokenPipeline) Process(_ context.Context, text string) (*nlp.Doc, error) {
	doc := &nlp.Doc{Text: text}
	for _, m := range reToken.FindAllStringIndex(text, -1) {
		w := text[m[0]:m[1]]
		doc.Tokens = append(doc.Tokens, nlp.Token{Text: w, Lemma: strings.ToLower(w), POS: nlp.PosOther, Head: -1, Start: m[0]})
	}
	return doc, nil
}

const nightShift = `Title: Night Shift

INT. GARAGE - NIGHT
MAX picks up a gun.
MAX
Where is it?
LENA
Gone.

EXT. STREET - DAY
Rain falls on the old truck.
LENA
Run!
`

func TestRunnerPersistsIntoSQLite(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "night.fountain")
	writeTestFile(t, path, nightShift)

	script, err := breakdown.NewRegistrar(s, 0).Register(ctx, "prod-1", path, breakdown.RegisterOptions{})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	runner := breakdown.NewRunner(s, nlp.Static(tokenPipeline{}), nil, breakdown.Options{LockDir: t.TempDir()})
	b, err := runner.Run(ctx, script.ID)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	stored, err := s.GetBreakdown(ctx, b.ID)
	if err != nil {
		t.Fatalf("GetBreakdown: %v", err)
	}
	if !stored.IsComplete || stored.Progress != domain.ProgressComplete || stored.SceneCount != 2 {
		t.Fatalf("stored breakdown = %+v", stored)
	}
	if stored.Summary[domain.StatSceneCount] != float64(2) {
		t.Fatalf("summary = %+v", stored.Summary)
	}

	scenes, _ := s.ListScenes(ctx, script.ID)
	if len(scenes) != 2 || scenes[0].Analysis == nil || scenes[1].Analysis == nil {
		t.Fatalf("scenes = %+v", scenes)
	}
	chars, _ := s.ListCharacters(ctx, script.ID)
	if len(chars) != 2 || chars[0].Analysis == nil {
		t.Fatalf("characters = %+v", chars)
	}
	elems, _ := s.ListElements(ctx, script.ID, "")
	total := 0
	for _, n := range stored.ElementsByType {
		total += n
	}
	if len(elems) != total {
		t.Fatalf("stored %d elements, breakdown counts %d", len(elems), total)
	}

	// A second run reuses the breakdown row and does not duplicate scenes.
	again, err := runner.Run(ctx, script.ID)
	if err != nil || again.ID != b.ID {
		t.Fatalf("rerun = %s, %v", again.ID, err)
	}
	if scenes, _ := s.ListScenes(ctx, script.ID); len(scenes) != 2 {
		t.Fatalf("rerun duplicated scenes: %d", len(scenes))
	}
	hits, err := s.Search(ctx, SearchQuery{Text: "truck", ScriptID: script.ID})
	if err != nil || len(hits) != 1 || hits[0].SceneNumber != scenes[1].Scene.SceneNumber {
		t.Fatalf("search after rerun = %+v, %v", hits, err)
	}
}
