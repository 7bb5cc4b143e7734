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
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestIndexInitCreatesWALAndMetaVersion(t *testing.T) {
	root := t.TempDir()
	db, err := InitOrOpenIndex(root)
	if err != nil {
		t.Fatalf("InitOrOpenIndex error: %v", err)
	}
	defer db.Close()
	if _, err := os.Stat(IndexPath(root)); err != nil {
		t.Fatalf("index file missing: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	var mode string
	if err := db.QueryRowContext(ctx, "PRAGMA journal_mode;").Scan(&mode); err != nil {
		t.Fatalf("read journal_mode: %v", err)
	}
	if mode != "wal" && mode != "WAL" {
		t.Fatalf("expected WAL mode, got %s", mode)
	}
	var cnt int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name IN ('meta','version','chapters','paragraphs','fts_paragraphs','snapshots')").Scan(&cnt); err != nil {
		t.Fatalf("query sqlite_master: %v", err)
	}
	if cnt != 6 {
		t.Fatalf("expected 6 tables, got %d", cnt)
	}
	var schema int
	if err := db.QueryRowContext(ctx, "SELECT schema FROM version WHERE id=1").Scan(&schema); err != nil || schema != schemaVersion {
		t.Fatalf("schema = %d, %v", schema, err)
	}
}

func TestIndexRefreshIsIncremental(t *testing.T) {
	h := newNovel(t, map[string]string{
		"Chapter_001.txt": "The hero drew his sword.\n\nRain fell.",
		"Chapter_002.txt": "Morning came.",
	})
	ix, err := OpenIndex(h)
	if err != nil {
		t.Fatalf("OpenIndex error: %v", err)
	}
	defer ix.Close()
	ctx := context.Background()

	st, err := ix.Refresh(ctx)
	if err != nil {
		t.Fatalf("Refresh error: %v", err)
	}
	if st.Indexed != 2 || st.Skipped != 0 {
		t.Fatalf("first refresh = %+v", st)
	}
	st, _ = ix.Refresh(ctx)
	if st.Indexed != 0 || st.Skipped != 2 {
		t.Fatalf("second refresh = %+v", st)
	}

	src := filepath.Join(h.SourceDir(), "Chapter_002.txt")
	if err := h.Store().WriteTranslation(src, "Le matin vint."); err != nil {
		t.Fatalf("WriteTranslation: %v", err)
	}
	if err := os.Remove(filepath.Join(h.SourceDir(), "Chapter_001.txt")); err != nil {
		t.Fatalf("remove chapter: %v", err)
	}
	st, _ = ix.Refresh(ctx)
	if st.Indexed != 1 || st.Removed != 1 {
		t.Fatalf("third refresh = %+v", st)
	}
	res, err := ix.Search(ctx, SearchQuery{Text: "sword"})
	if err != nil {
		t.Fatalf("Search error: %v", err)
	}
	if len(res) != 0 {
		t.Fatalf("removed chapter still searchable: %+v", res)
	}
}

func TestParseNotes(t *testing.T) {
	log := "Paragraph 2:\nArms of the hero\n\nParagraph 10:\nsecond\n\ngarbage\n\n"
	got := ParseNotes(log)
	if len(got) != 2 || got[0].Index != 1 || got[0].Text != "Arms of the hero" || got[1].Index != 9 {
		t.Fatalf("ParseNotes = %+v", got)
	}
}

func TestContentHashDistinguishesParts(t *testing.T) {
	a, err := contentHash("ab", "c")
	if err != nil {
		t.Fatalf("contentHash error: %v", err)
	}
	b, _ := contentHash("a", "bc")
	if a == b {
		t.Fatalf("hash ignores part boundaries")
	}
}
