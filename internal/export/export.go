/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package export renders chapters as bilingual documents: a two-column PDF, an
// XLSX sheet with one row per paragraph, and a reflowable EPUB 3 book.
package export

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gotranslator/internal/align"
	"gotranslator/internal/storage"
)

// Row is one aligned paragraph pair.
type Row struct {
	Index       int
	Source      string
	Translation string
	Translated  bool
	Notes       []string
}

// Chapter is the export model of one chapter file.
type Chapter struct {
	Title      string
	SourceLang string
	TargetLang string
	Rows       []Row
}

// LoadChapter reads a chapter, its translation and its notes log through store.
// Languages default to ja and en.
func LoadChapter(store *storage.FileStore, sourcePath string) (Chapter, error) {
	src, err := store.ReadDocument(sourcePath)
	if err != nil {
		return Chapter{}, err
	}
	tr, _, err := store.ReadTranslation(sourcePath)
	if err != nil {
		return Chapter{}, err
	}
	doc, err := align.Load(src, tr)
	if err != nil {
		return Chapter{}, fmt.Errorf("load %s: %w", sourcePath, err)
	}
	notes, err := store.ReadNotes(sourcePath)
	if err != nil {
		return Chapter{}, err
	}
	byIndex := map[int][]string{}
	for _, n := range storage.ParseNotes(notes) {
		byIndex[n.Index] = append(byIndex[n.Index], strings.TrimSpace(n.Text))
	}

	ch := Chapter{
		Title:      strings.TrimSuffix(filepath.Base(sourcePath), filepath.Ext(sourcePath)),
		SourceLang: "ja",
		TargetLang: "en",
		Rows:       make([]Row, doc.Len()),
	}
	for i := range ch.Rows {
		s, _ := doc.Source(i)
		t, ok := doc.Translation(i)
		ch.Rows[i] = Row{Index: i, Source: s, Translation: t, Translated: ok, Notes: byIndex[i]}
	}
	return ch, nil
}

// prepareOut makes sure the parent directory of path exists.
func prepareOut(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("ensure out dir: %w", err)
	}
	return nil
}
