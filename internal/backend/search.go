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
	"fmt"
	"strings"

	"scriptbreakdown/internal/storage"
)

// Search runs a scene search over the tsvector column and maps rows to
// storage.SearchResult so both drivers answer the same query shape.
func (s *Store) Search(ctx context.Context, q storage.SearchQuery) ([]storage.SearchResult, error) {
	var (
		args []any
		b    strings.Builder
	)
	// Helper to add parameter and return placeholder like $n
	place := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if text := strings.TrimSpace(q.Text); text != "" {
		p := place(text)
		b.WriteString("SELECT s.script_id, s.scene_number, s.slug_line, s.page_number, ")
		b.WriteString("COALESCE(ts_headline('simple', COALESCE(s.content,''), plainto_tsquery('simple', " + p + "), 'StartSel=[, StopSel=], MaxFragments=1, MaxWords=12'), '') ")
		b.WriteString("FROM scenes s WHERE s.search_vector @@ plainto_tsquery('simple', " + p + ") ")
	} else {
		b.WriteString("SELECT s.script_id, s.scene_number, s.slug_line, s.page_number, '' FROM scenes s WHERE TRUE ")
	}
	if id := strings.TrimSpace(q.ScriptID); id != "" {
		b.WriteString(" AND s.script_id = " + place(id) + " ")
	}
	if loc := strings.TrimSpace(q.Location); loc != "" {
		b.WriteString(" AND lower(COALESCE(s.location,'')) LIKE " + place("%"+strings.ToLower(loc)+"%") + " ")
	}
	if c := strings.TrimSpace(q.Character); c != "" {
		b.WriteString(" AND EXISTS (SELECT 1 FROM jsonb_array_elements_text(s.characters) ch WHERE upper(ch) = " + place(strings.ToUpper(c)) + ") ")
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 100
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}
	b.WriteString(" ORDER BY s.script_id, s.id ")
	b.WriteString(" LIMIT " + place(limit) + " OFFSET " + place(offset))

	rows, err := s.db.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("search pg query: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var out []storage.SearchResult
	for rows.Next() {
		var r storage.SearchResult
		if err := rows.Scan(&r.ScriptID, &r.SceneNumber, &r.SlugLine, &r.PageNumber, &r.Snippet); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
