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
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"gotranslator/internal/align"
	"gotranslator/internal/domain"
	applog "gotranslator/internal/log"
	"gotranslator/internal/storage"
	"gotranslator/internal/undo"
)

var (
	// ErrUnknownSession is returned when a session ID is not registered.
	ErrUnknownSession = errors.New("unknown session")
	// ErrNoSelection is returned by note operations without a selected paragraph.
	ErrNoSelection = errors.New("no paragraph selected")
)

// Recorder receives successful saves, e.g. the novel search index. Failures are
// logged and never fail the save.
type Recorder interface {
	RecordSave(ctx context.Context, sourcePath, translation string) error
	RefreshChapter(ctx context.Context, sourcePath string) (bool, error)
}

// Options configures a Service.
type Options struct {
	Undo     undo.Config
	Theme    domain.Theme
	Recorder Recorder
}

// Service opens sessions and runs editing operations against a storage.Port.
type Service struct {
	port storage.Port
	opts Options
	now  func() time.Time
	mu   sync.RWMutex
	byID map[string]*Session
}

// NewService returns a Service persisting through port.
func NewService(port storage.Port, opts Options) *Service {
	if opts.Theme == "" {
		opts.Theme = domain.ThemeLight
	}
	if opts.Undo.MinInterval == 0 {
		opts.Undo.MinInterval = 300 * time.Millisecond
	}
	if opts.Undo.MaxPerParagraph == 0 {
		opts.Undo.MaxPerParagraph = 50
	}
	return &Service{port: port, opts: opts, now: time.Now, byID: make(map[string]*Session)}
}

func (svc *Service) logger(op string) *slog.Logger {
	return applog.WithOperation(applog.WithComponent("editor"), op)
}

// Open reads the source document and its translation and registers a new session.
func (svc *Service) Open(ctx context.Context, path string) (*Session, error) {
	src, err := svc.port.ReadDocument(path)
	if err != nil {
		return nil, err
	}
	tr, _, err := svc.port.ReadTranslation(path)
	if err != nil {
		return nil, err
	}
	doc, err := align.Load(src, tr)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	s := &Session{
		ID:       uuid.NewString(),
		Path:     path,
		OpenedAt: svc.now(),
		doc:      doc,
		selected: NoSelection,
		theme:    svc.opts.Theme,
		history:  undo.NewManager(svc.opts.Undo),
	}
	s.draft, s.hasDraft = svc.pendingAutosave(path, tr)
	svc.mu.Lock()
	svc.byID[s.ID] = s
	svc.mu.Unlock()
	ctx = applog.ContextWithSession(ctx, s.ID, path)
	svc.logger("open").InfoContext(ctx, "document opened",
		slog.Int("paragraphs", doc.Len()), slog.Int("translated", doc.TranslatedCount()))
	if s.hasDraft {
		svc.logger("open").WarnContext(ctx, "unsaved autosave found; recover or discard it")
	}
	return s, nil
}

// Session looks up a registered session.
func (svc *Service) Session(id string) (*Session, error) {
	svc.mu.RLock()
	defer svc.mu.RUnlock()
	s, ok := svc.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSession, id)
	}
	return s, nil
}

// Sessions returns all open sessions ordered by opening time.
func (svc *Service) Sessions() []*Session {
	svc.mu.RLock()
	out := make([]*Session, 0, len(svc.byID))
	for _, s := range svc.byID {
		out = append(out, s)
	}
	svc.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].OpenedAt.Before(out[j].OpenedAt) })
	return out
}

// Close unregisters a session. Unsaved changes are discarded.
func (svc *Service) Close(id string) {
	svc.mu.Lock()
	delete(svc.byID, id)
	svc.mu.Unlock()
}

// UpdateTranslation sets the translation of one paragraph.
func (svc *Service) UpdateTranslation(s *Session, index int, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	before := currentValue(s.doc, index)
	if err := s.doc.UpdateTranslation(index, text); err != nil {
		return err
	}
	svc.record(s, index, before)
	return nil
}

// BeginEdit switches a paragraph into its editing box.
func (svc *Service) BeginEdit(s *Session, index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.BeginEdit(index)
}

// SetBuffer replaces the editing buffer of a paragraph.
func (svc *Service) SetBuffer(s *Session, index int, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.SetBuffer(index, text)
}

// CommitEdit makes the editing buffer the translation and returns the next paragraph
// still in editing state, if any, so the caller can move focus there.
func (svc *Service) CommitEdit(s *Session, index int) (next int, ok bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	before := currentValue(s.doc, index)
	if err := s.doc.CommitEdit(index); err != nil {
		return 0, false, err
	}
	svc.record(s, index, before)
	next, ok = s.doc.NextEditable(index)
	return next, ok, nil
}

// Undo reverts the newest change of a paragraph. It reports false when there is none.
func (svc *Service) Undo(s *Session, index int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.history.Undo(index)
	if !ok {
		return false, nil
	}
	return true, apply(s.doc, index, c.Before)
}

// Redo reapplies the newest undone change of a paragraph.
func (svc *Service) Redo(s *Session, index int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.history.Redo(index)
	if !ok {
		return false, nil
	}
	return true, apply(s.doc, index, c.After)
}

// Save commits open editing buffers and writes the serialized translations. The
// buffers are committed on a copy; on a write failure the session document keeps
// its open buffers and stays dirty.
func (svc *Service) Save(ctx context.Context, s *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ctx = applog.ContextWithSession(ctx, s.ID, s.Path)
	l := svc.logger("save")

	staged := s.doc.Clone()
	changes := svc.commitBuffers(staged)
	text := staged.SerializeTranslations()
	if err := svc.port.WriteTranslation(s.Path, text); err != nil {
		l.ErrorContext(ctx, "write translation failed", slog.Any("err", err))
		return err
	}
	s.doc = staged
	for _, c := range changes {
		s.history.Record(c)
	}
	s.doc.MarkSaved()
	l.InfoContext(ctx, "translations saved", slog.Int("translated", s.doc.TranslatedCount()), slog.Int("paragraphs", s.doc.Len()))
	// a draft never recovered or discarded stays on disk
	if ar, ok := svc.port.(AutosaveReader); ok && !s.hasDraft {
		if err := ar.DiscardAutosave(s.Path); err != nil {
			l.WarnContext(ctx, "discard autosave failed", slog.Any("err", err))
		}
	}
	if svc.opts.Recorder != nil {
		if err := svc.opts.Recorder.RecordSave(ctx, s.Path, text); err != nil {
			l.WarnContext(ctx, "record save failed", slog.Any("err", err))
		}
	}
	return nil
}

// commitBuffers turns pending editing buffers of doc into translations and returns
// the undo entries for them. A translated paragraph whose buffer was emptied loses
// its translation.
func (svc *Service) commitBuffers(doc *align.Document) []undo.Change {
	var changes []undo.Change
	for i := 0; i < doc.Len(); i++ {
		d, _ := doc.Display(i)
		if d.Kind != align.Editing {
			continue
		}
		before := currentValue(doc, i)
		switch {
		case d.Text != "":
			if before.Present && before.Text == d.Text {
				continue
			}
			_ = doc.CommitEdit(i)
		case before.Present:
			_ = doc.ClearTranslation(i)
		default:
			continue
		}
		changes = append(changes, undo.Change{Paragraph: i, Before: before, After: currentValue(doc, i), TS: svc.now()})
	}
	return changes
}

// ToggleTheme flips the display theme of the session and returns the new one.
func (svc *Service) ToggleTheme(s *Session) domain.Theme {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.theme = s.theme.Toggle()
	return s.theme
}

func (svc *Service) record(s *Session, index int, before undo.Value) {
	s.history.Record(undo.Change{Paragraph: index, Before: before, After: currentValue(s.doc, index), TS: svc.now()})
}

func currentValue(doc *align.Document, index int) undo.Value {
	t, ok := doc.Translation(index)
	return undo.Value{Text: t, Present: ok}
}

func apply(doc *align.Document, index int, v undo.Value) error {
	if v.Present {
		return doc.UpdateTranslation(index, v.Text)
	}
	return doc.ClearTranslation(index)
}
