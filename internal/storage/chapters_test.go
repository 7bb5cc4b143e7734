/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"os"
	"path/filepath"
	"testing"

	"gotranslator/internal/domain"
)

// newNovel scaffolds a workspace with the given source chapters (name -> text).
func newNovel(t *testing.T, chapters map[string]string) *NovelHandle {
	t.Helper()
	h, err := InitNovel(t.TempDir(), domain.Novel{Title: "Fixture"}, DefaultLayout())
	if err != nil {
		t.Fatalf("InitNovel error: %v", err)
	}
	for name, text := range chapters {
		p := filepath.Join(h.SourceDir(), filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(p, []byte(text), 0o644); err != nil {
			t.Fatalf("write chapter: %v", err)
		}
	}
	return h
}

func TestListChaptersSortedAndFiltered(t *testing.T) {
	h := newNovel(t, map[string]string{
		"Chapter_002.txt":     "b",
		"Chapter_001.txt":     "a",
		"extra/Chapter_1.txt": "c",
		"cover.jpg":           "bin",
	})
	got, err := ListChapters(h, "")
	if err != nil {
		t.Fatalf("ListChapters error: %v", err)
	}
	want := []string{"Chapter_001.txt", "Chapter_002.txt", "extra/Chapter_1.txt"}
	if len(got) != len(want) {
		t.Fatalf("chapters = %+v", got)
	}
	for i, w := range want {
		if got[i].Name != w {
			t.Fatalf("chapter %d = %q, want %q", i, got[i].Name, w)
		}
	}
	top, err := ListChapters(h, "Chapter_*.txt")
	if err != nil || len(top) != 2 {
		t.Fatalf("top-level pattern = %+v, %v", top, err)
	}
	if top[0].TranslationPath != filepath.Join(h.Root, "english", "Chapter_001.txt") {
		t.Fatalf("TranslationPath = %q", top[0].TranslationPath)
	}
	if _, err := ListChapters(h, "[unclosed"); err == nil {
		t.Fatalf("expected invalid pattern error")
	}
}

func TestProgressCountsTranslatedParagraphs(t *testing.T) {
	h := newNovel(t, map[string]string{"Chapter_001.txt": "a\n\nb\n\nc"})
	store := h.Store()
	src := filepath.Join(h.SourceDir(), "Chapter_001.txt")
	if err := store.WriteTranslation(src, "A\n\n\n\nC"); err != nil {
		t.Fatalf("WriteTranslation: %v", err)
	}
	if err := store.AppendNote(src, "Paragraph 1:\nnote\n\n"); err != nil {
		t.Fatalf("AppendNote: %v", err)
	}
	got, err := Progress(h, "")
	if err != nil {
		t.Fatalf("Progress error: %v", err)
	}
	c := got[0]
	if c.Paragraphs != 3 || c.Translated != 2 || !c.HasNotes || c.Done() {
		t.Fatalf("progress = %+v", c)
	}
}
