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
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"scriptbreakdown/internal/analysis"
	"scriptbreakdown/internal/domain"
	"scriptbreakdown/internal/extract"
	"scriptbreakdown/internal/fountain"
	"scriptbreakdown/internal/lexicon"
	"scriptbreakdown/internal/log"
	"scriptbreakdown/internal/nlp"
	"scriptbreakdown/internal/telemetry"
)

// minutesPerPage is the rough screen time of one script page.
const minutesPerPage = 1.0

// Options configure a Runner.
type Options struct {
	// LockDir holds the per-script lock files. Defaults to the OS temp dir.
	LockDir string
	// Events receives completion and failure notifications.
	Events Events
}

// Runner executes breakdown jobs. At most one run per script is active at a
// time across processes sharing LockDir.
type Runner struct {
	store     Store
	extractor *extract.Extractor
	scenes    *analysis.SceneAnalyzer
	chars     *analysis.CharacterAnalyzer
	lockDir   string
	events    Events
	now       func() time.Time
	wg        sync.WaitGroup
}

// NewRunner wires the analysis stages over one shared NLP loader.
func NewRunner(store Store, loader *nlp.Loader, tables *lexicon.Tables, opts Options) *Runner {
	if tables == nil {
		tables = lexicon.Default()
	}
	r := &Runner{
		store:     store,
		extractor: extract.New(loader, tables),
		scenes:    analysis.NewSceneAnalyzer(loader, tables),
		chars:     analysis.NewCharacterAnalyzer(tables),
		lockDir:   opts.LockDir,
		events:    opts.Events,
		now:       time.Now,
	}
	if r.lockDir == "" {
		r.lockDir = filepath.Join(os.TempDir(), "scriptbreakdown", "locks")
	}
	if r.events == nil {
		r.events = noEvents{}
	}
	return r
}

// Run performs a breakdown synchronously. Failures are recorded on the
// breakdown (progress 0, incomplete, summary error) and returned; the
// returned breakdown reflects the final state either way.
func (r *Runner) Run(ctx context.Context, scriptID string) (domain.Breakdown, error) {
	unlock, err := r.lock(scriptID)
	if err != nil {
		return domain.Breakdown{}, err
	}
	defer unlock()
	b, script, err := r.prepare(ctx, scriptID)
	if err != nil {
		return domain.Breakdown{}, err
	}
	return r.process(ctx, b, script)
}

// Start resets the breakdown and runs it in the background, returning its id
// right away. The run outlives ctx cancellation; use Wait to join it.
func (r *Runner) Start(ctx context.Context, scriptID string) (string, error) {
	unlock, err := r.lock(scriptID)
	if err != nil {
		return "", err
	}
	b, script, err := r.prepare(ctx, scriptID)
	if err != nil {
		unlock()
		return "", err
	}
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer unlock()
		_, _ = r.process(context.WithoutCancel(ctx), b, script)
	}()
	return b.ID, nil
}

// Wait blocks until every run started with Start has finished.
func (r *Runner) Wait() { r.wg.Wait() }

func (r *Runner) lock(scriptID string) (func(), error) {
	if err := os.MkdirAll(r.lockDir, 0o755); err != nil {
		return nil, fmt.Errorf("create lock dir: %w", err)
	}
	fl := flock.New(filepath.Join(r.lockDir, scriptID+".lock"))
	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRunInProgress, scriptID)
	}
	return func() {
		if err := fl.Unlock(); err != nil {
			log.WithComponent("breakdown").Warn("release lock failed", "script", scriptID, "error", err)
		}
	}, nil
}

// prepare creates the breakdown for the script or resets an existing one.
func (r *Runner) prepare(ctx context.Context, scriptID string) (domain.Breakdown, domain.Script, error) {
	script, err := r.store.GetScript(ctx, scriptID)
	if err != nil {
		return domain.Breakdown{}, domain.Script{}, fmt.Errorf("load script %s: %w", scriptID, err)
	}
	now := r.now().UTC()
	b, err := r.store.GetBreakdownByScript(ctx, scriptID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		b = domain.Breakdown{ID: uuid.NewString(), ScriptID: script.ID, ProductionID: script.ProductionID, CreatedAt: now}
	case err != nil:
		return domain.Breakdown{}, domain.Script{}, fmt.Errorf("load breakdown: %w", err)
	}
	b.UpdatedAt = now
	b.IsComplete = false
	b.Progress = 0
	b.ElementsByType = map[domain.ElementType]int{}
	b.Summary = map[string]any{}
	if err := r.store.CreateBreakdown(ctx, b); err != nil {
		return domain.Breakdown{}, domain.Script{}, fmt.Errorf("save breakdown: %w", err)
	}
	return b, script, nil
}

func (r *Runner) process(ctx context.Context, b domain.Breakdown, script domain.Script) (domain.Breakdown, error) {
	ctx = log.ContextWith(ctx, slog.String("breakdown", b.ID), slog.String("script", script.ID))
	l := log.WithOperation(log.WithComponent("breakdown"), "run")
	started := r.now()

	done, err := r.execute(ctx, b, script)
	if err != nil {
		msg := err.Error()
		l.ErrorContext(ctx, "breakdown failed", "error", msg)
		if ferr := r.store.FailBreakdown(context.WithoutCancel(ctx), b.ID, msg); ferr != nil {
			l.ErrorContext(ctx, "record breakdown failure", "error", ferr)
		}
		r.events.Event(telemetry.EventBreakdownFailed, map[string]any{"unsupported_format": errors.Is(err, fountain.ErrUnsupportedFormat)})
		b.Progress, b.IsComplete = 0, false
		b.Summary = map[string]any{domain.StatError: msg}
		return b, err
	}
	l.InfoContext(ctx, "breakdown complete", "scenes", done.SceneCount, "pages", done.PageCount)
	r.events.Event(telemetry.EventBreakdownCompleted, map[string]any{
		"scene_count":     done.SceneCount,
		"page_count":      done.PageCount,
		"character_count": done.ElementsByType[domain.ElementCharacter],
		"element_count":   totalElements(done.ElementsByType),
		"duration_ms":     r.now().Sub(started).Milliseconds(),
	})
	return done, nil
}

// execute runs the stages between the progress checkpoints.
func (r *Runner) execute(ctx context.Context, b domain.Breakdown, script domain.Script) (domain.Breakdown, error) {
	if err := r.checkpoint(ctx, b.ID, domain.ProgressStarted); err != nil {
		return b, err
	}
	parser, err := fountain.NewParser(script.Format)
	if err != nil {
		return b, err
	}
	if !script.IsParsed {
		return b, ErrNotParsed
	}
	ps, err := parser.ParseFile(script.FilePath)
	if err != nil {
		return b, fmt.Errorf("parse script: %w", err)
	}
	if err := r.checkpoint(ctx, b.ID, domain.ProgressParsed); err != nil {
		return b, err
	}

	for _, s := range ps.Scenes {
		if err := r.store.UpsertScene(ctx, domain.StoredScene{ScriptID: script.ID, Scene: s}); err != nil {
			return b, fmt.Errorf("store scene %s: %w", s.SceneNumber, err)
		}
	}
	if err := r.checkpoint(ctx, b.ID, domain.ProgressStored); err != nil {
		return b, err
	}

	elems, err := r.extractor.Extract(ctx, ps)
	if err != nil {
		return b, err
	}
	if err := r.checkpoint(ctx, b.ID, domain.ProgressExtracted); err != nil {
		return b, err
	}

	if err := r.storeAnalysis(ctx, script.ID, ps, elems); err != nil {
		return b, err
	}

	pages := ps.PageCount()
	b.IsComplete = true
	b.Progress = domain.ProgressComplete
	b.UpdatedAt = r.now().UTC()
	b.SceneCount = len(ps.Scenes)
	b.PageCount = pages
	b.EstimatedDuration = float64(pages) * minutesPerPage
	b.ElementsByType = elems.Counts()
	b.Summary = map[string]any{
		domain.StatSceneCount:        b.SceneCount,
		domain.StatPageCount:         pages,
		domain.StatEstimatedDuration: b.EstimatedDuration,
		domain.StatCharacterCount:    len(elems[domain.ElementCharacter]),
		domain.StatLocationCount:     len(elems[domain.ElementLocation]),
		domain.StatPropCount:         len(elems[domain.ElementProp]),
	}
	if err := r.store.FinishBreakdown(ctx, b); err != nil {
		return b, fmt.Errorf("finish breakdown: %w", err)
	}
	return b, nil
}

// storeAnalysis writes elements, analyzed scenes and analyzed characters.
func (r *Runner) storeAnalysis(ctx context.Context, scriptID string, ps *domain.ParsedScript, elems domain.Elements) error {
	for _, t := range domain.ExtractedTypes {
		if err := r.store.ReplaceElements(ctx, scriptID, t, persistable(elems[t])); err != nil {
			return fmt.Errorf("store %s elements: %w", t, err)
		}
	}

	analyses, err := r.scenes.AnalyzeScenes(ctx, ps.Scenes)
	if err != nil {
		return err
	}
	for i, s := range ps.Scenes {
		a := analyses[i]
		if err := r.store.UpsertScene(ctx, domain.StoredScene{ScriptID: scriptID, Scene: s, Analysis: &a}); err != nil {
			return fmt.Errorf("store scene analysis %s: %w", s.SceneNumber, err)
		}
	}

	report := r.chars.Analyze(ps)
	names := make([]string, 0, len(ps.Characters))
	for i, c := range ps.Characters {
		a := report.Characters[i]
		if err := r.store.UpsertCharacter(ctx, domain.StoredCharacter{ScriptID: scriptID, Character: c, Analysis: &a}); err != nil {
			return fmt.Errorf("store character %s: %w", c.Name, err)
		}
		names = append(names, c.Name)
	}

	numbers := make([]string, 0, len(ps.Scenes))
	for _, s := range ps.Scenes {
		numbers = append(numbers, s.SceneNumber)
	}
	if err := r.store.PruneAnalysis(ctx, scriptID, numbers, names); err != nil {
		return fmt.Errorf("prune stale analysis: %w", err)
	}
	return nil
}

// checkpoint records progress unless the run was cancelled.
func (r *Runner) checkpoint(ctx context.Context, id string, progress float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := r.store.UpdateProgress(ctx, id, progress); err != nil {
		return fmt.Errorf("update progress: %w", err)
	}
	return nil
}

// persistable caps importance into [0,1] for storage.
func persistable(elems []domain.Element) []domain.Element {
	out := make([]domain.Element, len(elems))
	for i, e := range elems {
		out[i] = e
		if e.Importance != nil {
			out[i].Importance = domain.Float(domain.ClampUnit(*e.Importance))
		}
	}
	return out
}

func totalElements(counts map[domain.ElementType]int) int {
	n := 0
	for _, c := range counts {
		n += c
	}
	return n
}
