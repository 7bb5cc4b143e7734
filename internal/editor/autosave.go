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
	"errors"
	"log/slog"

	"gotranslator/internal/align"
	applog "gotranslator/internal/log"
	"gotranslator/internal/undo"
)

// Autosaver parks unsaved translations somewhere other than the translation file.
// *storage.FileStore implements it.
type Autosaver interface {
	WriteAutosave(sourcePath, content string) (string, error)
}

// AutosaveReader reads back and removes parked drafts. *storage.FileStore implements it.
type AutosaveReader interface {
	ReadAutosave(sourcePath string) (string, bool, error)
	DiscardAutosave(sourcePath string) error
}

// pendingAutosave returns a parked draft that differs from the stored translation.
func (svc *Service) pendingAutosave(path, translation string) (string, bool) {
	ar, ok := svc.port.(AutosaveReader)
	if !ok {
		return "", false
	}
	draft, found, err := ar.ReadAutosave(path)
	if err != nil {
		svc.logger("open").Warn("read autosave failed", slog.String("path", path), slog.Any("err", err))
		return "", false
	}
	if !found || draft == translation {
		return "", false
	}
	return draft, true
}

// RecoverAutosave loads the session's pending draft into the document as unsaved
// edits. Each changed paragraph gets an undo entry. It reports false when no draft
// is pending. The draft file stays until the next successful Save.
func (svc *Service) RecoverAutosave(ctx context.Context, s *Session) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.hasDraft {
		return false, nil
	}
	recovered, err := align.Load(s.doc.SourceText(), s.draft)
	if err != nil {
		return false, err
	}
	changed := 0
	for i := 0; i < s.doc.Len(); i++ {
		t, ok := recovered.Translation(i)
		want := undo.Value{Text: t, Present: ok}
		before := currentValue(s.doc, i)
		if before == want {
			continue
		}
		if err := apply(s.doc, i, want); err != nil {
			return false, err
		}
		svc.record(s, i, before)
		changed++
	}
	s.draft, s.hasDraft = "", false
	ctx = applog.ContextWithSession(ctx, s.ID, s.Path)
	svc.logger("recover").InfoContext(ctx, "autosave recovered", slog.Int("changed", changed))
	return true, nil
}

// DiscardAutosave drops the session's pending draft and removes the parked file.
func (svc *Service) DiscardAutosave(ctx context.Context, s *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ar, ok := svc.port.(AutosaveReader); ok {
		if err := ar.DiscardAutosave(s.Path); err != nil {
			return err
		}
	}
	s.draft, s.hasDraft = "", false
	svc.logger("recover").InfoContext(applog.ContextWithSession(ctx, s.ID, s.Path), "autosave discarded")
	return nil
}

// autosaveDraft serializes the session as if every non-empty editing buffer were committed.
// The session itself is not modified.
func (s *Session) autosaveDraft() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc := s.doc.Clone()
	for i := 0; i < doc.Len(); i++ {
		if d, _ := doc.Display(i); d.Kind == align.Editing && d.Text != "" {
			_ = doc.CommitEdit(i)
		}
	}
	return doc.SerializeTranslations()
}

// AutosaveAll writes a draft of every dirty session through the port, if the
// port supports autosaves. It returns the written paths and the joined errors.
func (svc *Service) AutosaveAll() ([]string, error) {
	as, ok := svc.port.(Autosaver)
	if !ok {
		return nil, nil
	}
	l := applog.WithComponent("editor")
	var (
		paths []string
		errs  []error
	)
	for _, s := range svc.Sessions() {
		if !s.Dirty() {
			continue
		}
		p, err := as.WriteAutosave(s.Path, s.autosaveDraft())
		if err != nil {
			l.Error("autosave failed", slog.String("session", s.ID), slog.Any("err", err))
			errs = append(errs, err)
			continue
		}
		paths = append(paths, p)
	}
	return paths, errors.Join(errs...)
}
