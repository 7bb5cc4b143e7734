/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"context"
	"fmt"
	"strings"
)

// SearchQuery describes a search over the novel index.
// Text uses SQLite FTS5 syntax over a trigram tokenizer, so terms need at least three characters.
// Kinds restricts to source, translation or note rows. Chapter restricts to one chapter name.
// Limit/Offset implement pagination; reasonable defaults applied if zero.
type SearchQuery struct {
	Text    string
	Kinds   []string
	Chapter string
	Limit   int
	Offset  int
}

// SearchResult is one matching paragraph. Index is the 0-based paragraph index.
// Snippet marks matches with [ ] when Text was given.
type SearchResult struct {
	Chapter string `json:"chapter"`
	Index   int    `json:"index"`
	Kind    string `json:"kind"`
	Snippet string `json:"snippet"`
}

// Search runs q against the index.
// When q.Text is empty it lists paragraphs with the filters applied.
func (ix *Index) Search(ctx context.Context, q SearchQuery) ([]SearchResult, error) {
	var args []any
	var sb strings.Builder
	if strings.TrimSpace(q.Text) != "" {
		sb.WriteString("SELECT c.name, p.idx, p.kind, snippet(fts_paragraphs, 0, '[', ']', '…', 12)\n")
		sb.WriteString("FROM fts_paragraphs JOIN paragraphs p ON fts_paragraphs.rowid = p.par_id\n")
		sb.WriteString("JOIN chapters c ON c.chapter_id = p.chapter_id\n")
		sb.WriteString("WHERE fts_paragraphs MATCH ?\n")
		args = append(args, q.Text)
	} else {
		sb.WriteString("SELECT c.name, p.idx, p.kind, p.text\n")
		sb.WriteString("FROM paragraphs p JOIN chapters c ON c.chapter_id = p.chapter_id\nWHERE 1=1\n")
	}
	if len(q.Kinds) > 0 {
		sb.WriteString(" AND p.kind IN (" + placeholders(len(q.Kinds)) + ")\n")
		for _, k := range q.Kinds {
			args = append(args, k)
		}
	}
	if s := strings.TrimSpace(q.Chapter); s != "" {
		sb.WriteString(" AND c.name = ?\n")
		args = append(args, s)
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 100
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}
	sb.WriteString("ORDER BY c.name, p.idx, p.kind\n")
	sb.WriteString("LIMIT ? OFFSET ?")
	args = append(args, limit, offset)

	rows, err := ix.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("search query: %w", err)
	}
	defer rows.Close()
	var out []SearchResult
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.Chapter, &r.Index, &r.Kind, &r.Snippet); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Search opens the index of h, runs q and closes it again.
func Search(ctx context.Context, h *NovelHandle, q SearchQuery) ([]SearchResult, error) {
	ix, err := OpenIndex(h)
	if err != nil {
		return nil, err
	}
	defer ix.Close()
	return ix.Search(ctx, q)
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
