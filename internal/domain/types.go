/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany..
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package domain

import "time"

// This file defines the workspace-level data model. Paragraph alignment itself
// lives in package align; these types describe the novel a set of chapters belongs to.

// Novel is the manifest of a translation workspace, serialized to novel.json.
type Novel struct {
	Title      string    `json:"title"`
	SourceURL  string    `json:"sourceUrl,omitempty"`
	SourceLang string    `json:"sourceLang"` // BCP 47, e.g. "ja"
	TargetLang string    `json:"targetLang"` // e.g. "en"
	Chapters   int       `json:"chapters"`
	Notes      string    `json:"notes,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// ChapterInfo summarizes translation progress of one chapter file.
type ChapterInfo struct {
	Name            string `json:"name"` // path relative to the source directory, slash separated
	SourcePath      string `json:"sourcePath"`
	TranslationPath string `json:"translationPath"`
	NotesPath       string `json:"notesPath"`
	Paragraphs      int    `json:"paragraphs"`
	Translated      int    `json:"translated"`
	HasNotes        bool   `json:"hasNotes"`
}

// Done reports whether every paragraph has a translation.
func (c ChapterInfo) Done() bool { return c.Paragraphs > 0 && c.Translated >= c.Paragraphs }

// Percent is the translated share in [0,100].
func (c ChapterInfo) Percent() float64 {
	if c.Paragraphs == 0 {
		return 0
	}
	return float64(c.Translated) * 100 / float64(c.Paragraphs)
}

// Theme is the display theme requested from the display surface.
type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

// Toggle returns the other theme.
func (t Theme) Toggle() Theme {
	if t == ThemeDark {
		return ThemeLight
	}
	return ThemeDark
}
