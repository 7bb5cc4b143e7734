/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package editor orchestrates editing sessions over aligned documents: it loads a
// chapter through a storage.Port, applies translation edits with undo history,
// saves translations and runs the annotation flow that writes footnotes back to
// the source file and the notes log.
//
// Every call receives the Session it acts on. A Service may hold many sessions;
// each session serializes its own operations.
package editor

import (
	"sync"
	"time"

	"gotranslator/internal/align"
	"gotranslator/internal/domain"
	"gotranslator/internal/undo"
)

// NoSelection is the Selected value of a session without a selected paragraph.
const NoSelection = -1

// Session is the explicit context of one open document.
type Session struct {
	ID       string
	Path     string
	OpenedAt time.Time

	mu             sync.Mutex
	doc            *align.Document
	selected       int
	highlights     []string
	notePromptOpen bool
	theme          domain.Theme
	history        *undo.Manager
	draft          string
	hasDraft       bool
}

// ParagraphView is one row of the side-by-side view.
type ParagraphView struct {
	Index       int           `json:"index"`
	Source      string        `json:"source"`
	Translation string        `json:"translation,omitempty"`
	Translated  bool          `json:"translated"`
	Display     align.Display `json:"display"`
}

// View is a point-in-time copy of a session for the display surface.
// PendingAutosave is set while an autosaved draft that differs from the saved
// translation waits to be recovered or discarded.
type View struct {
	ID              string          `json:"id"`
	Path            string          `json:"path"`
	State           string          `json:"state"`
	Paragraphs      []ParagraphView `json:"paragraphs"`
	Selected        int             `json:"selected"`
	Highlights      []string        `json:"highlights"`
	NotePromptOpen  bool            `json:"notePromptOpen"`
	Theme           domain.Theme    `json:"theme"`
	PendingAutosave bool            `json:"pendingAutosave"`
}

// View snapshots the session.
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := View{
		ID:              s.ID,
		Path:            s.Path,
		State:           s.doc.State().String(),
		Selected:        s.selected,
		Highlights:      append([]string{}, s.highlights...),
		NotePromptOpen:  s.notePromptOpen,
		Theme:           s.theme,
		Paragraphs:      make([]ParagraphView, s.doc.Len()),
		PendingAutosave: s.hasDraft,
	}
	for i, src := range s.doc.SourceParagraphs() {
		tr, ok := s.doc.Translation(i)
		d, _ := s.doc.Display(i)
		v.Paragraphs[i] = ParagraphView{Index: i, Source: src, Translation: tr, Translated: ok, Display: d}
	}
	return v
}

// Translations returns align.GetTranslations of the session document.
func (s *Session) Translations() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.GetTranslations()
}

// Dirty reports unsaved changes.
func (s *Session) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.IsDirty()
}

// Selected returns the selected paragraph or NoSelection.
func (s *Session) Selected() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selected
}

// Theme returns the display theme of the session.
func (s *Session) Theme() domain.Theme {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.theme
}

// TranslatedCount returns the number of translated paragraphs.
func (s *Session) TranslatedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.TranslatedCount()
}

// Len returns the number of source paragraphs.
func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.Len()
}

// SerializedTranslation is what Save would write, without committing open buffers.
func (s *Session) SerializedTranslation() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.SerializeTranslations()
}
