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
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"scriptbreakdown/internal/breakdown"
	"scriptbreakdown/internal/domain"
)

var _ breakdown.Store = (*Store)(nil)

func (s *Store) stamp() string { return s.now().UTC().Format(time.RFC3339Nano) }

func parseTime(v string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, v)
	return t
}

func marshal(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func unmarshalNull(v sql.NullString, dst any) error {
	if !v.Valid || v.String == "" {
		return nil
	}
	return json.Unmarshal([]byte(v.String), dst)
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// SaveScript inserts or replaces a script record.
func (s *Store) SaveScript(ctx context.Context, sc domain.Script) error {
	meta, err := marshal(sc.Metadata)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO scripts
		(id, production_id, title, version, author, format, original_filename, file_path, content_hash, metadata, is_parsed, uploaded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			production_id=excluded.production_id, title=excluded.title, version=excluded.version,
			author=excluded.author, format=excluded.format, original_filename=excluded.original_filename,
			file_path=excluded.file_path, content_hash=excluded.content_hash, metadata=excluded.metadata,
			is_parsed=excluded.is_parsed, uploaded_at=excluded.uploaded_at`,
		sc.ID, sc.ProductionID, sc.Title, sc.Version, sc.Author, string(sc.Format), sc.OriginalFilename,
		sc.FilePath, sc.ContentHash, meta, boolInt(sc.IsParsed), sc.UploadedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("save script: %w", err)
	}
	return nil
}

const scriptColumns = `id, production_id, title, COALESCE(version,''), COALESCE(author,''), format,
	original_filename, file_path, content_hash, metadata, is_parsed, uploaded_at`

func scanScript(row interface{ Scan(...any) error }) (domain.Script, error) {
	var (
		sc       domain.Script
		format   string
		meta     sql.NullString
		parsed   int
		uploaded string
	)
	err := row.Scan(&sc.ID, &sc.ProductionID, &sc.Title, &sc.Version, &sc.Author, &format,
		&sc.OriginalFilename, &sc.FilePath, &sc.ContentHash, &meta, &parsed, &uploaded)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Script{}, ErrNotFound
	}
	if err != nil {
		return domain.Script{}, fmt.Errorf("scan script: %w", err)
	}
	sc.Format = domain.ScriptFormat(format)
	sc.IsParsed = parsed != 0
	sc.UploadedAt = parseTime(uploaded)
	if err := unmarshalNull(meta, &sc.Metadata); err != nil {
		return domain.Script{}, fmt.Errorf("decode metadata: %w", err)
	}
	return sc, nil
}

// GetScript loads a script by id.
func (s *Store) GetScript(ctx context.Context, id string) (domain.Script, error) {
	return scanScript(s.db.QueryRowContext(ctx, `SELECT `+scriptColumns+` FROM scripts WHERE id=?`, id))
}

// FindScriptByHash returns the earliest script in the production with the given content hash.
func (s *Store) FindScriptByHash(ctx context.Context, productionID, hash string) (domain.Script, error) {
	return scanScript(s.db.QueryRowContext(ctx, `SELECT `+scriptColumns+` FROM scripts
		WHERE production_id=? AND content_hash=? ORDER BY uploaded_at LIMIT 1`, productionID, hash))
}

// CreateBreakdown inserts a breakdown or resets the stored one with the same id.
func (s *Store) CreateBreakdown(ctx context.Context, b domain.Breakdown) error {
	byType, summary, err := encodeBreakdown(b)
	if err != nil {
		return err
	}
	created := b.CreatedAt
	if created.IsZero() {
		created = s.now()
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO breakdowns
		(id, script_id, production_id, created_at, updated_at, is_complete, progress, scene_count, page_count, estimated_duration, elements_by_type, summary)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			updated_at=excluded.updated_at, is_complete=excluded.is_complete, progress=excluded.progress,
			scene_count=excluded.scene_count, page_count=excluded.page_count,
			estimated_duration=excluded.estimated_duration, elements_by_type=excluded.elements_by_type,
			summary=excluded.summary`,
		b.ID, b.ScriptID, b.ProductionID, created.UTC().Format(time.RFC3339Nano), s.stamp(), boolInt(b.IsComplete),
		b.Progress, b.SceneCount, b.PageCount, b.EstimatedDuration, byType, summary)
	if err != nil {
		return fmt.Errorf("create breakdown: %w", err)
	}
	return nil
}

func encodeBreakdown(b domain.Breakdown) (string, string, error) {
	byType, err := marshal(b.ElementsByType)
	if err != nil {
		return "", "", fmt.Errorf("encode elements_by_type: %w", err)
	}
	summary, err := marshal(b.Summary)
	if err != nil {
		return "", "", fmt.Errorf("encode summary: %w", err)
	}
	return byType, summary, nil
}

const breakdownColumns = `id, script_id, production_id, created_at, updated_at, is_complete, progress,
	scene_count, page_count, estimated_duration, elements_by_type, summary`

func scanBreakdown(row interface{ Scan(...any) error }) (domain.Breakdown, error) {
	var (
		b                domain.Breakdown
		created, updated string
		complete         int
		byType, summary  sql.NullString
	)
	err := row.Scan(&b.ID, &b.ScriptID, &b.ProductionID, &created, &updated, &complete, &b.Progress,
		&b.SceneCount, &b.PageCount, &b.EstimatedDuration, &byType, &summary)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Breakdown{}, ErrNotFound
	}
	if err != nil {
		return domain.Breakdown{}, fmt.Errorf("scan breakdown: %w", err)
	}
	b.CreatedAt, b.UpdatedAt = parseTime(created), parseTime(updated)
	b.IsComplete = complete != 0
	if err := unmarshalNull(byType, &b.ElementsByType); err != nil {
		return domain.Breakdown{}, fmt.Errorf("decode elements_by_type: %w", err)
	}
	if err := unmarshalNull(summary, &b.Summary); err != nil {
		return domain.Breakdown{}, fmt.Errorf("decode summary: %w", err)
	}
	return b, nil
}

// GetBreakdown loads a breakdown by id.
func (s *Store) GetBreakdown(ctx context.Context, id string) (domain.Breakdown, error) {
	return scanBreakdown(s.db.QueryRowContext(ctx, `SELECT `+breakdownColumns+` FROM breakdowns WHERE id=?`, id))
}

// GetBreakdownByScript loads the breakdown of a script.
func (s *Store) GetBreakdownByScript(ctx context.Context, scriptID string) (domain.Breakdown, error) {
	return scanBreakdown(s.db.QueryRowContext(ctx, `SELECT `+breakdownColumns+` FROM breakdowns WHERE script_id=?`, scriptID))
}

func (s *Store) execOne(ctx context.Context, what, q string, args ...any) error {
	res, err := s.db.ExecContext(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", what, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateProgress records a progress checkpoint.
func (s *Store) UpdateProgress(ctx context.Context, id string, progress float64) error {
	return s.execOne(ctx, "update progress",
		`UPDATE breakdowns SET progress=?, updated_at=? WHERE id=?`, progress, s.stamp(), id)
}

// FinishBreakdown stores the final counts and summary of a completed run.
func (s *Store) FinishBreakdown(ctx context.Context, b domain.Breakdown) error {
	byType, summary, err := encodeBreakdown(b)
	if err != nil {
		return err
	}
	return s.execOne(ctx, "finish breakdown", `UPDATE breakdowns SET
		updated_at=?, is_complete=?, progress=?, scene_count=?, page_count=?, estimated_duration=?,
		elements_by_type=?, summary=? WHERE id=?`,
		s.stamp(), boolInt(b.IsComplete), b.Progress, b.SceneCount, b.PageCount, b.EstimatedDuration,
		byType, summary, b.ID)
}

// FailBreakdown records the terminal failure state.
func (s *Store) FailBreakdown(ctx context.Context, id, message string) error {
	summary, err := marshal(map[string]any{domain.StatError: message})
	if err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}
	return s.execOne(ctx, "fail breakdown",
		`UPDATE breakdowns SET progress=0, is_complete=0, summary=?, updated_at=? WHERE id=?`,
		summary, s.stamp(), id)
}

// UpsertScene stores a scene keyed by (script, scene number). A nil analysis clears the stored one.
func (s *Store) UpsertScene(ctx context.Context, st domain.StoredScene) error {
	sc := st.Scene
	sceneJSON, err := marshal(sc)
	if err != nil {
		return fmt.Errorf("encode scene: %w", err)
	}
	chars, err := marshal(sc.Characters)
	if err != nil {
		return fmt.Errorf("encode characters: %w", err)
	}
	var analysis sql.NullString
	if st.Analysis != nil {
		a, err := marshal(st.Analysis)
		if err != nil {
			return fmt.Errorf("encode scene analysis: %w", err)
		}
		analysis = sql.NullString{String: a, Valid: true}
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO scenes
		(script_id, scene_number, slug_line, page_number, int_ext, location, time_of_day, content, characters_json, scene_json, analysis)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(script_id, scene_number) DO UPDATE SET
			slug_line=excluded.slug_line, page_number=excluded.page_number, int_ext=excluded.int_ext,
			location=excluded.location, time_of_day=excluded.time_of_day, content=excluded.content,
			characters_json=excluded.characters_json, scene_json=excluded.scene_json, analysis=excluded.analysis`,
		st.ScriptID, sc.SceneNumber, sc.SlugLine, sc.PageNumber, string(sc.IntExt), sc.Location, sc.TimeOfDay,
		sc.Content, chars, sceneJSON, analysis)
	if err != nil {
		return fmt.Errorf("upsert scene %s: %w", sc.SceneNumber, err)
	}
	return nil
}

// ListScenes returns the scenes of a script in script order.
func (s *Store) ListScenes(ctx context.Context, scriptID string) ([]domain.StoredScene, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT scene_json, analysis FROM scenes WHERE script_id=? ORDER BY scene_id`, scriptID)
	if err != nil {
		return nil, fmt.Errorf("list scenes: %w", err)
	}
	defer rows.Close()
	var out []domain.StoredScene
	for rows.Next() {
		var (
			sceneJSON string
			analysis  sql.NullString
		)
		if err := rows.Scan(&sceneJSON, &analysis); err != nil {
			return nil, fmt.Errorf("scan scene: %w", err)
		}
		st := domain.StoredScene{ScriptID: scriptID}
		if err := json.Unmarshal([]byte(sceneJSON), &st.Scene); err != nil {
			return nil, fmt.Errorf("decode scene: %w", err)
		}
		if analysis.Valid {
			st.Analysis = &domain.SceneAnalysis{}
			if err := json.Unmarshal([]byte(analysis.String), st.Analysis); err != nil {
				return nil, fmt.Errorf("decode scene analysis: %w", err)
			}
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

// UpsertCharacter stores a character keyed by (script, name).
func (s *Store) UpsertCharacter(ctx context.Context, sc domain.StoredCharacter) error {
	charJSON, err := marshal(sc.Character)
	if err != nil {
		return fmt.Errorf("encode character: %w", err)
	}
	var analysis sql.NullString
	if sc.Analysis != nil {
		a, err := marshal(sc.Analysis)
		if err != nil {
			return fmt.Errorf("encode character analysis: %w", err)
		}
		analysis = sql.NullString{String: a, Valid: true}
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO characters (script_id, name, character_json, analysis)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(script_id, name) DO UPDATE SET
			character_json=excluded.character_json, analysis=excluded.analysis`,
		sc.ScriptID, sc.Character.Name, charJSON, analysis)
	if err != nil {
		return fmt.Errorf("upsert character %s: %w", sc.Character.Name, err)
	}
	return nil
}

// ListCharacters returns the characters of a script in first-stored order.
func (s *Store) ListCharacters(ctx context.Context, scriptID string) ([]domain.StoredCharacter, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT character_json, analysis FROM characters WHERE script_id=? ORDER BY id`, scriptID)
	if err != nil {
		return nil, fmt.Errorf("list characters: %w", err)
	}
	defer rows.Close()
	var out []domain.StoredCharacter
	for rows.Next() {
		var (
			charJSON string
			analysis sql.NullString
		)
		if err := rows.Scan(&charJSON, &analysis); err != nil {
			return nil, fmt.Errorf("scan character: %w", err)
		}
		sc := domain.StoredCharacter{ScriptID: scriptID}
		if err := json.Unmarshal([]byte(charJSON), &sc.Character); err != nil {
			return nil, fmt.Errorf("decode character: %w", err)
		}
		if analysis.Valid {
			sc.Analysis = &domain.CharacterAnalysis{}
			if err := json.Unmarshal([]byte(analysis.String), sc.Analysis); err != nil {
				return nil, fmt.Errorf("decode character analysis: %w", err)
			}
		}
		out = append(out, sc)
	}
	return out, rows.Err()
}

// ReplaceElements swaps the stored elements of one type for a script in a single transaction.
func (s *Store) ReplaceElements(ctx context.Context, scriptID string, t domain.ElementType, elems []domain.Element) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace elements: %w", err)
	}
	defer func() { _ = tx.Rollback() }()
	if _, err := tx.ExecContext(ctx, `DELETE FROM elements WHERE script_id=? AND type=?`, scriptID, string(t)); err != nil {
		return fmt.Errorf("clear elements: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO elements (script_id, type, name, occurrences, context, importance)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare element insert: %w", err)
	}
	defer stmt.Close()
	for _, e := range elems {
		occ, err := marshal(e.Occurrences)
		if err != nil {
			return fmt.Errorf("encode occurrences: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, scriptID, string(t), e.Name, occ, e.Context, e.Importance); err != nil {
			return fmt.Errorf("insert element %q: %w", e.Name, err)
		}
	}
	return tx.Commit()
}

// PruneAnalysis removes scenes and characters of a previous run that the
// latest parse no longer produced.
func (s *Store) PruneAnalysis(ctx context.Context, scriptID string, scenes, characters []string) error {
	keepScenes, err := marshal(nonNil(scenes))
	if err != nil {
		return fmt.Errorf("encode scene numbers: %w", err)
	}
	keepChars, err := marshal(nonNil(characters))
	if err != nil {
		return fmt.Errorf("encode character names: %w", err)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin prune: %w", err)
	}
	defer func() { _ = tx.Rollback() }()
	if _, err := tx.ExecContext(ctx, `DELETE FROM scenes WHERE script_id=?
		AND scene_number NOT IN (SELECT value FROM json_each(?))`, scriptID, keepScenes); err != nil {
		return fmt.Errorf("prune scenes: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM characters WHERE script_id=?
		AND name NOT IN (SELECT value FROM json_each(?))`, scriptID, keepChars); err != nil {
		return fmt.Errorf("prune characters: %w", err)
	}
	return tx.Commit()
}

func nonNil(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}

// ListElements returns the elements of type t, or all elements when t is empty.
func (s *Store) ListElements(ctx context.Context, scriptID string, t domain.ElementType) ([]domain.Element, error) {
	q := `SELECT type, name, occurrences, COALESCE(context,''), importance FROM elements WHERE script_id=?`
	args := []any{scriptID}
	if t != "" {
		q += ` AND type=?`
		args = append(args, string(t))
	}
	rows, err := s.db.QueryContext(ctx, q+` ORDER BY id`, args...)
	if err != nil {
		return nil, fmt.Errorf("list elements: %w", err)
	}
	defer rows.Close()
	var out []domain.Element
	for rows.Next() {
		var (
			e          domain.Element
			typ, occ   string
			importance sql.NullFloat64
		)
		if err := rows.Scan(&typ, &e.Name, &occ, &e.Context, &importance); err != nil {
			return nil, fmt.Errorf("scan element: %w", err)
		}
		e.Type = domain.ElementType(typ)
		if err := json.Unmarshal([]byte(occ), &e.Occurrences); err != nil {
			return nil, fmt.Errorf("decode occurrences: %w", err)
		}
		if importance.Valid {
			e.Importance = domain.Float(importance.Float64)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
