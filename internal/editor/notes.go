/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package editor

import (
	"context"
	"log/slog"
	"strings"

	"gotranslator/internal/align"
	applog "gotranslator/internal/log"
)

// SelectParagraph makes index the target of the next note. Selecting another
// paragraph drops highlights collected for the previous one.
func (svc *Service) SelectParagraph(s *Session, index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.doc.Source(index); err != nil {
		return err
	}
	if s.selected != index {
		s.highlights = nil
	}
	s.selected = index
	return nil
}

// AddHighlight queues a word of the selected paragraph for highlighting.
// Blank words are ignored; duplicates are kept and consume successive occurrences.
func (svc *Service) AddHighlight(s *Session, word string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.selected == NoSelection {
		return ErrNoSelection
	}
	if strings.TrimSpace(word) == "" {
		return nil
	}
	s.highlights = append(s.highlights, word)
	return nil
}

// OpenNotePrompt asks the display surface to show the note input.
func (svc *Service) OpenNotePrompt(s *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.selected == NoSelection {
		return ErrNoSelection
	}
	s.notePromptOpen = true
	return nil
}

// CloseNotePrompt dismisses the note input and forgets pending highlights.
func (svc *Service) CloseNotePrompt(s *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notePromptOpen = false
	s.highlights = nil
}

// AuthorNote annotates the selected paragraph with note and the pending highlights.
// The annotated source is written first and then the notes log entry is appended.
// The session document changes only once the source write succeeded; a blank note
// changes nothing.
func (svc *Service) AuthorNote(ctx context.Context, s *Session, note string) (align.AnnotationResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.selected == NoSelection {
		return align.AnnotationResult{}, ErrNoSelection
	}
	ctx = applog.ContextWithSession(ctx, s.ID, s.Path)
	l := svc.logger("author_note")

	staged := s.doc.Clone()
	res, err := staged.AddAnnotation(s.selected, note, s.highlights)
	if err != nil || !res.Applied {
		return res, err
	}
	if err := svc.port.WriteDocument(s.Path, res.UpdatedSourceText); err != nil {
		l.ErrorContext(ctx, "write annotated source failed", slog.Any("err", err))
		return align.AnnotationResult{}, err
	}
	s.doc = staged
	s.notePromptOpen = false
	s.highlights = nil
	if err := svc.port.AppendNote(s.Path, res.NoteLogEntry); err != nil {
		l.ErrorContext(ctx, "append note failed", slog.Any("err", err))
		return res, err
	}
	l.InfoContext(ctx, "note added", slog.Int("paragraph", res.Annotation.Index+1), slog.Int("highlights", len(res.Annotation.Highlights)))
	if svc.opts.Recorder != nil {
		if _, err := svc.opts.Recorder.RefreshChapter(ctx, s.Path); err != nil {
			l.WarnContext(ctx, "index refresh failed", slog.Any("err", err))
		}
	}
	return res, nil
}
