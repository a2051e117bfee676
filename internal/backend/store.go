/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package backend

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

func jsonb(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decode(raw []byte, dst any) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, dst)
}

func (s *Store) SaveScript(ctx context.Context, sc domain.Script) error {
	meta, err := jsonb(sc.Metadata)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO scripts
		(id, production_id, title, version, author, format, original_filename, file_path, content_hash, metadata, is_parsed, uploaded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			production_id=EXCLUDED.production_id, title=EXCLUDED.title, version=EXCLUDED.version,
			author=EXCLUDED.author, format=EXCLUDED.format, original_filename=EXCLUDED.original_filename,
			file_path=EXCLUDED.file_path, content_hash=EXCLUDED.content_hash, metadata=EXCLUDED.metadata,
			is_parsed=EXCLUDED.is_parsed, uploaded_at=EXCLUDED.uploaded_at`,
		sc.ID, sc.ProductionID, sc.Title, sc.Version, sc.Author, string(sc.Format), sc.OriginalFilename,
		sc.FilePath, sc.ContentHash, meta, sc.IsParsed, sc.UploadedAt)
	if err != nil {
		return fmt.Errorf("save script: %w", err)
	}
	return nil
}

const scriptColumns = `id, production_id, title, version, author, format, original_filename,
	file_path, content_hash, metadata, is_parsed, uploaded_at`

func scanScript(row *sql.Row) (domain.Script, error) {
	var (
		sc     domain.Script
		format string
		meta   []byte
	)
	err := row.Scan(&sc.ID, &sc.ProductionID, &sc.Title, &sc.Version, &sc.Author, &format,
		&sc.OriginalFilename, &sc.FilePath, &sc.ContentHash, &meta, &sc.IsParsed, &sc.UploadedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Script{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Script{}, fmt.Errorf("scan script: %w", err)
	}
	sc.Format = domain.ScriptFormat(format)
	if err := decode(meta, &sc.Metadata); err != nil {
		return domain.Script{}, fmt.Errorf("decode metadata: %w", err)
	}
	return sc, nil
}

func (s *Store) GetScript(ctx context.Context, id string) (domain.Script, error) {
	return scanScript(s.db.QueryRowContext(ctx, `SELECT `+scriptColumns+` FROM scripts WHERE id=$1`, id))
}

func (s *Store) FindScriptByHash(ctx context.Context, productionID, hash string) (domain.Script, error) {
	return scanScript(s.db.QueryRowContext(ctx, `SELECT `+scriptColumns+` FROM scripts
		WHERE production_id=$1 AND content_hash=$2 ORDER BY uploaded_at LIMIT 1`, productionID, hash))
}

func encodeBreakdown(b domain.Breakdown) (string, string, error) {
	byType, err := jsonb(b.ElementsByType)
	if err != nil {
		return "", "", fmt.Errorf("encode elements_by_type: %w", err)
	}
	summary, err := jsonb(b.Summary)
	if err != nil {
		return "", "", fmt.Errorf("encode summary: %w", err)
	}
	return byType, summary, nil
}

func (s *Store) CreateBreakdown(ctx context.Context, b domain.Breakdown) error {
	byType, summary, err := encodeBreakdown(b)
	if err != nil {
		return err
	}
	created := b.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO breakdowns
		(id, script_id, production_id, created_at, updated_at, is_complete, progress, scene_count, page_count, estimated_duration, elements_by_type, summary)
		VALUES ($1, $2, $3, $4, now(), $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			updated_at=now(), is_complete=EXCLUDED.is_complete, progress=EXCLUDED.progress,
			scene_count=EXCLUDED.scene_count, page_count=EXCLUDED.page_count,
			estimated_duration=EXCLUDED.estimated_duration, elements_by_type=EXCLUDED.elements_by_type,
			summary=EXCLUDED.summary`,
		b.ID, b.ScriptID, b.ProductionID, created, b.IsComplete, b.Progress, b.SceneCount, b.PageCount,
		b.EstimatedDuration, byType, summary)
	if err != nil {
		return fmt.Errorf("create breakdown: %w", err)
	}
	return nil
}

const breakdownColumns = `id, script_id, production_id, created_at, updated_at, is_complete, progress,
	scene_count, page_count, estimated_duration, elements_by_type, summary`

func scanBreakdown(row *sql.Row) (domain.Breakdown, error) {
	var (
		b               domain.Breakdown
		byType, summary []byte
	)
	err := row.Scan(&b.ID, &b.ScriptID, &b.ProductionID, &b.CreatedAt, &b.UpdatedAt, &b.IsComplete, &b.Progress,
		&b.SceneCount, &b.PageCount, &b.EstimatedDuration, &byType, &summary)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Breakdown{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Breakdown{}, fmt.Errorf("scan breakdown: %w", err)
	}
	if err := decode(byType, &b.ElementsByType); err != nil {
		return domain.Breakdown{}, fmt.Errorf("decode elements_by_type: %w", err)
	}
	if err := decode(summary, &b.Summary); err != nil {
		return domain.Breakdown{}, fmt.Errorf("decode summary: %w", err)
	}
	return b, nil
}

func (s *Store) GetBreakdown(ctx context.Context, id string) (domain.Breakdown, error) {
	return scanBreakdown(s.db.QueryRowContext(ctx, `SELECT `+breakdownColumns+` FROM breakdowns WHERE id=$1`, id))
}

func (s *Store) GetBreakdownByScript(ctx context.Context, scriptID string) (domain.Breakdown, error) {
	return scanBreakdown(s.db.QueryRowContext(ctx, `SELECT `+breakdownColumns+` FROM breakdowns WHERE script_id=$1`, scriptID))
}

func (s *Store) execOne(ctx context.Context, what, q string, args ...any) error {
	res, err := s.db.ExecContext(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", what, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *Store) UpdateProgress(ctx context.Context, id string, progress float64) error {
	return s.execOne(ctx, "update progress",
		`UPDATE breakdowns SET progress=$1, updated_at=now() WHERE id=$2`, progress, id)
}

func (s *Store) FinishBreakdown(ctx context.Context, b domain.Breakdown) error {
	byType, summary, err := encodeBreakdown(b)
	if err != nil {
		return err
	}
	return s.execOne(ctx, "finish breakdown", `UPDATE breakdowns SET
		updated_at=now(), is_complete=$1, progress=$2, scene_count=$3, page_count=$4, estimated_duration=$5,
		elements_by_type=$6, summary=$7 WHERE id=$8`,
		b.IsComplete, b.Progress, b.SceneCount, b.PageCount, b.EstimatedDuration, byType, summary, b.ID)
}

func (s *Store) FailBreakdown(ctx context.Context, id, message string) error {
	summary, err := jsonb(map[string]any{domain.StatError: message})
	if err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}
	return s.execOne(ctx, "fail breakdown",
		`UPDATE breakdowns SET progress=0, is_complete=FALSE, summary=$1, updated_at=now() WHERE id=$2`, summary, id)
}

func (s *Store) UpsertScene(ctx context.Context, st domain.StoredScene) error {
	sc := st.Scene
	sceneJSON, err := jsonb(sc)
	if err != nil {
		return fmt.Errorf("encode scene: %w", err)
	}
	chars := sc.Characters
	if chars == nil {
		chars = []string{}
	}
	charsJSON, err := jsonb(chars)
	if err != nil {
		return fmt.Errorf("encode characters: %w", err)
	}
	var analysis sql.NullString
	if st.Analysis != nil {
		a, err := jsonb(st.Analysis)
		if err != nil {
			return fmt.Errorf("encode scene analysis: %w", err)
		}
		analysis = sql.NullString{String: a, Valid: true}
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO scenes
		(script_id, scene_number, slug_line, page_number, int_ext, location, time_of_day, content, characters, scene, analysis)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (script_id, scene_number) DO UPDATE SET
			slug_line=EXCLUDED.slug_line, page_number=EXCLUDED.page_number, int_ext=EXCLUDED.int_ext,
			location=EXCLUDED.location, time_of_day=EXCLUDED.time_of_day, content=EXCLUDED.content,
			characters=EXCLUDED.characters, scene=EXCLUDED.scene, analysis=EXCLUDED.analysis`,
		st.ScriptID, sc.SceneNumber, sc.SlugLine, sc.PageNumber, string(sc.IntExt), sc.Location, sc.TimeOfDay,
		sc.Content, charsJSON, sceneJSON, analysis)
	if err != nil {
		return fmt.Errorf("upsert scene %s: %w", sc.SceneNumber, err)
	}
	return nil
}

func (s *Store) ListScenes(ctx context.Context, scriptID string) ([]domain.StoredScene, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT scene, analysis FROM scenes WHERE script_id=$1 ORDER BY id`, scriptID)
	if err != nil {
		return nil, fmt.Errorf("list scenes: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var out []domain.StoredScene
	for rows.Next() {
		var sceneJSON, analysis []byte
		if err := rows.Scan(&sceneJSON, &analysis); err != nil {
			return nil, fmt.Errorf("scan scene: %w", err)
		}
		st := domain.StoredScene{ScriptID: scriptID}
		if err := json.Unmarshal(sceneJSON, &st.Scene); err != nil {
			return nil, fmt.Errorf("decode scene: %w", err)
		}
		if analysis != nil {
			st.Analysis = &domain.SceneAnalysis{}
			if err := json.Unmarshal(analysis, st.Analysis); err != nil {
				return nil, fmt.Errorf("decode scene analysis: %w", err)
			}
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

func (s *Store) UpsertCharacter(ctx context.Context, sc domain.StoredCharacter) error {
	charJSON, err := jsonb(sc.Character)
	if err != nil {
		return fmt.Errorf("encode character: %w", err)
	}
	var analysis sql.NullString
	if sc.Analysis != nil {
		a, err := jsonb(sc.Analysis)
		if err != nil {
			return fmt.Errorf("encode character analysis: %w", err)
		}
		analysis = sql.NullString{String: a, Valid: true}
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO characters (script_id, name, character, analysis)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (script_id, name) DO UPDATE SET character=EXCLUDED.character, analysis=EXCLUDED.analysis`,
		sc.ScriptID, sc.Character.Name, charJSON, analysis)
	if err != nil {
		return fmt.Errorf("upsert character %s: %w", sc.Character.Name, err)
	}
	return nil
}

func (s *Store) ListCharacters(ctx context.Context, scriptID string) ([]domain.StoredCharacter, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT character, analysis FROM characters WHERE script_id=$1 ORDER BY id`, scriptID)
	if err != nil {
		return nil, fmt.Errorf("list characters: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var out []domain.StoredCharacter
	for rows.Next() {
		var charJSON, analysis []byte
		if err := rows.Scan(&charJSON, &analysis); err != nil {
			return nil, fmt.Errorf("scan character: %w", err)
		}
		sc := domain.StoredCharacter{ScriptID: scriptID}
		if err := json.Unmarshal(charJSON, &sc.Character); err != nil {
			return nil, fmt.Errorf("decode character: %w", err)
		}
		if analysis != nil {
			sc.Analysis = &domain.CharacterAnalysis{}
			if err := json.Unmarshal(analysis, sc.Analysis); err != nil {
				return nil, fmt.Errorf("decode character analysis: %w", err)
			}
		}
		out = append(out, sc)
	}
	return out, rows.Err()
}

func (s *Store) ReplaceElements(ctx context.Context, scriptID string, t domain.ElementType, elems []domain.Element) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace elements: %w", err)
	}
	defer func() { _ = tx.Rollback() }()
	if _, err := tx.ExecContext(ctx, `DELETE FROM elements WHERE script_id=$1 AND type=$2`, scriptID, string(t)); err != nil {
		return fmt.Errorf("clear elements: %w", err)
	}
	for _, e := range elems {
		occ, err := jsonb(e.Occurrences)
		if err != nil {
			return fmt.Errorf("encode occurrences: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO elements (script_id, type, name, occurrences, context, importance)
			VALUES ($1, $2, $3, $4, $5, $6)`, scriptID, string(t), e.Name, occ, e.Context, e.Importance); err != nil {
			return fmt.Errorf("insert element %q: %w", e.Name, err)
		}
	}
	return tx.Commit()
}

// PruneAnalysis removes scenes and characters of a previous run that the
// latest parse no longer produced.
func (s *Store) PruneAnalysis(ctx context.Context, scriptID string, scenes, characters []string) error {
	if scenes == nil {
		scenes = []string{}
	}
	if characters == nil {
		characters = []string{}
	}
	keepScenes, err := jsonb(scenes)
	if err != nil {
		return fmt.Errorf("encode scene numbers: %w", err)
	}
	keepChars, err := jsonb(characters)
	if err != nil {
		return fmt.Errorf("encode character names: %w", err)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin prune: %w", err)
	}
	defer func() { _ = tx.Rollback() }()
	if _, err := tx.ExecContext(ctx, `DELETE FROM scenes WHERE script_id=$1
		AND scene_number NOT IN (SELECT jsonb_array_elements_text($2::jsonb))`, scriptID, keepScenes); err != nil {
		return fmt.Errorf("prune scenes: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM characters WHERE script_id=$1
		AND name NOT IN (SELECT jsonb_array_elements_text($2::jsonb))`, scriptID, keepChars); err != nil {
		return fmt.Errorf("prune characters: %w", err)
	}
	return tx.Commit()
}

func (s *Store) ListElements(ctx context.Context, scriptID string, t domain.ElementType) ([]domain.Element, error) {
	q := `SELECT type, name, occurrences, context, importance FROM elements WHERE script_id=$1`
	args := []any{scriptID}
	if t != "" {
		q += ` AND type=$2`
		args = append(args, string(t))
	}
	rows, err := s.db.QueryContext(ctx, q+` ORDER BY id`, args...)
	if err != nil {
		return nil, fmt.Errorf("list elements: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var out []domain.Element
	for rows.Next() {
		var (
			e          domain.Element
			typ        string
			occ        []byte
			importance sql.NullFloat64
		)
		if err := rows.Scan(&typ, &e.Name, &occ, &e.Context, &importance); err != nil {
			return nil, fmt.Errorf("scan element: %w", err)
		}
		e.Type = domain.ElementType(typ)
		if err := json.Unmarshal(occ, &e.Occurrences); err != nil {
			return nil, fmt.Errorf("decode occurrences: %w", err)
		}
		if importance.Valid {
			e.Importance = domain.Float(importance.Float64)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
