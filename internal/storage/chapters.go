/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"

	"gotranslator/internal/align"
	"gotranslator/internal/domain"
)

// DefaultChapterPattern matches every text file below the source directory.
const DefaultChapterPattern = "**/*.txt"

// ListChapters returns the source chapters matching pattern (relative to the source
// directory, doublestar syntax), sorted by name. Progress fields are left zero.
func ListChapters(h *NovelHandle, pattern string) ([]domain.ChapterInfo, error) {
	if pattern == "" {
		pattern = DefaultChapterPattern
	}
	if !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("invalid chapter pattern %q", pattern)
	}
	dir := h.SourceDir()
	matches, err := doublestar.Glob(os.DirFS(dir), pattern, doublestar.WithFilesOnly())
	if err != nil {
		return nil, fmt.Errorf("pattern matching failed: %w", err)
	}
	sort.Strings(matches)
	out := make([]domain.ChapterInfo, 0, len(matches))
	for _, m := range matches {
		src := filepath.Join(dir, filepath.FromSlash(m))
		out = append(out, domain.ChapterInfo{
			Name:            m,
			SourcePath:      src,
			TranslationPath: h.Layout.TranslationPath(src),
			NotesPath:       h.Layout.NotesPath(src),
		})
	}
	return out, nil
}

// Progress lists the chapters with paragraph and translation counts filled in.
// The first chapter that cannot be read or parsed aborts the listing.
func Progress(h *NovelHandle, pattern string) ([]domain.ChapterInfo, error) {
	chapters, err := ListChapters(h, pattern)
	if err != nil {
		return nil, err
	}
	store := h.Store()
	for i := range chapters {
		c := &chapters[i]
		doc, err := openDocument(store, c.SourcePath)
		if err != nil {
			return nil, fmt.Errorf("chapter %s: %w", c.Name, err)
		}
		c.Paragraphs = doc.Len()
		c.Translated = doc.TranslatedCount()
		if st, err := os.Stat(c.NotesPath); err == nil && st.Size() > 0 {
			c.HasNotes = true
		}
	}
	return chapters, nil
}

// openDocument reads a chapter and its translation through a Port and aligns them.
func openDocument(p Port, path string) (*align.Document, error) {
	src, err := p.ReadDocument(path)
	if err != nil {
		return nil, err
	}
	tr, _, err := p.ReadTranslation(path)
	if err != nil {
		return nil, err
	}
	return align.Load(src, tr)
}
