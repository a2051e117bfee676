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
	"fmt"
	"strings"
)

// SearchQuery describes a scene search.
// Text uses SQLite FTS5 syntax (simple terms, phrases in quotes, AND/OR/NOT).
// Filters are optional. Location matches as a case-insensitive substring,
// Character must equal one of the scene's speaking characters.
// Limit/Offset implement pagination; Limit defaults to 100.
type SearchQuery struct {
	Text      string
	ScriptID  string
	Location  string
	Character string
	Limit     int
	Offset    int
}

// SearchResult is a single matching scene.
// Snippet is a highlighted excerpt using [ ] markers when Text is set.
type SearchResult struct {
	ScriptID    string
	SceneNumber string
	SlugLine    string
	PageNumber  int
	Snippet     string
}

// Search runs a full-text search over stored scene content.
// When q.Text is empty it falls back to a filtered scan over scenes.
func (s *Store) Search(ctx context.Context, q SearchQuery) ([]SearchResult, error) {
	var args []any
	var sb strings.Builder
	if strings.TrimSpace(q.Text) != "" {
		sb.WriteString("SELECT s.script_id, s.scene_number, s.slug_line, s.page_number, snippet(fts_scenes, 0, '[', ']', '…', 10)\n")
		sb.WriteString("FROM fts_scenes JOIN scenes s ON fts_scenes.rowid = s.scene_id\n")
		sb.WriteString("WHERE fts_scenes MATCH ?\n")
		args = append(args, q.Text)
	} else {
		sb.WriteString("SELECT s.script_id, s.scene_number, s.slug_line, s.page_number, ''\n")
		sb.WriteString("FROM scenes s\nWHERE 1=1\n")
	}
	if id := strings.TrimSpace(q.ScriptID); id != "" {
		sb.WriteString(" AND s.script_id = ?\n")
		args = append(args, id)
	}
	if loc := strings.TrimSpace(q.Location); loc != "" {
		sb.WriteString(" AND lower(COALESCE(s.location,'')) LIKE ?\n")
		args = append(args, likeContains(strings.ToLower(loc)))
	}
	if c := strings.TrimSpace(q.Character); c != "" {
		sb.WriteString(" AND EXISTS (SELECT 1 FROM json_each(s.characters_json) WHERE upper(json_each.value) = ?)\n")
		args = append(args, strings.ToUpper(c))
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 100
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	sb.WriteString("ORDER BY s.script_id, s.scene_id\n")
	sb.WriteString("LIMIT ? OFFSET ?")
	args = append(args, limit, q.Offset)

	rows, err := s.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("search query: %w", err)
	}
	defer rows.Close()
	var out []SearchResult
	for rows.Next() {
		var r SearchResult
		var sn sql.NullString
		if err := rows.Scan(&r.ScriptID, &r.SceneNumber, &r.SlugLine, &r.PageNumber, &sn); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		if sn.Valid {
			r.Snippet = sn.String
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func likeContains(s string) string { return "%" + s + "%" }
