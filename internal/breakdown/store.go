/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package breakdown registers screenplay uploads and runs the breakdown job:
// parse, store scenes, extract elements, analyze scenes and characters, and
// record progress and summary statistics on the way.
package breakdown

import (
	"context"
	"errors"

	"scriptbreakdown/internal/domain"
)

var (
	// ErrDuplicateScript is returned when a file with the same content hash
	// is already registered in the production.
	ErrDuplicateScript = errors.New("script already registered")
	// ErrRunInProgress is returned when another run holds the script lock.
	ErrRunInProgress = errors.New("breakdown already running for script")
	// ErrScriptTooLarge is returned for uploads over the configured limit.
	ErrScriptTooLarge = errors.New("script file too large")
	// ErrNotParsed is recorded when a script was registered without parsing.
	ErrNotParsed = errors.New("script has not been parsed yet")
)

// Store persists scripts, breakdowns and their analysis records. Writes are
// idempotent: scenes are keyed by (script, scene number), characters by
// (script, name), and elements are replaced per (script, type). Lookups with
// no match return domain.ErrNotFound.
type Store interface {
	SaveScript(ctx context.Context, s domain.Script) error
	GetScript(ctx context.Context, id string) (domain.Script, error)
	FindScriptByHash(ctx context.Context, productionID, hash string) (domain.Script, error)

	CreateBreakdown(ctx context.Context, b domain.Breakdown) error
	GetBreakdown(ctx context.Context, id string) (domain.Breakdown, error)
	GetBreakdownByScript(ctx context.Context, scriptID string) (domain.Breakdown, error)
	UpdateProgress(ctx context.Context, id string, progress float64) error
	FinishBreakdown(ctx context.Context, b domain.Breakdown) error
	FailBreakdown(ctx context.Context, id, message string) error

	UpsertScene(ctx context.Context, s domain.StoredScene) error
	UpsertCharacter(ctx context.Context, c domain.StoredCharacter) error
	ReplaceElements(ctx context.Context, scriptID string, t domain.ElementType, elems []domain.Element) error
	// PruneAnalysis deletes the script's scenes and characters whose scene
	// number or name is not listed, leaving only rows of the latest run.
	PruneAnalysis(ctx context.Context, scriptID string, scenes, characters []string) error

	ListScenes(ctx context.Context, scriptID string) ([]domain.StoredScene, error)
	ListCharacters(ctx context.Context, scriptID string) ([]domain.StoredCharacter, error)
	// ListElements returns elements of type t, or of every type when t is empty.
	ListElements(ctx context.Context, scriptID string, t domain.ElementType) ([]domain.Element, error)
}

// Events receives anonymous run notifications; *telemetry.Client satisfies it.
type Events interface {
	Event(name string, props map[string]any)
}

type noEvents struct{}

func (noEvents) Event(string, map[string]any) {}
