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
	"testing"

	"gotranslator/internal/align"
	"gotranslator/internal/storage"
)

func TestAuthorNoteWritesSourceAndNotesLog(t *testing.T) {
	rec := &fakeRecorder{}
	port := newMemPort()
	port.docs[chapter] = "first\n\nHe raised his sword and his shield.\n\nthird"
	svc := NewService(port, Options{Recorder: rec})
	s, _ := svc.Open(context.Background(), chapter)

	if err := svc.SelectParagraph(s, 1); err != nil {
		t.Fatalf("SelectParagraph error: %v", err)
	}
	for _, w := range []string{"sword", "  ", "shield"} {
		if err := svc.AddHighlight(s, w); err != nil {
			t.Fatalf("AddHighlight error: %v", err)
		}
	}
	if err := svc.OpenNotePrompt(s); err != nil {
		t.Fatalf("OpenNotePrompt error: %v", err)
	}
	res, err := svc.AuthorNote(context.Background(), s, "Arms of the hero")
	if err != nil {
		t.Fatalf("AuthorNote error: %v", err)
	}
	want := "first\n\nHe raised his **sword** and his **shield**. [2]\n\nthird\n\n[2] Arms of the hero"
	if port.docs[chapter] != want || res.UpdatedSourceText != want {
		t.Fatalf("source = %q", port.docs[chapter])
	}
	if port.notes[chapter] != "Paragraph 2:\nArms of the hero\n\n" {
		t.Fatalf("notes = %q", port.notes[chapter])
	}
	v := s.View()
	if len(v.Paragraphs) != 4 || v.NotePromptOpen || len(v.Highlights) != 0 {
		t.Fatalf("view after note = %+v", v)
	}
	if rec.refreshes != 1 {
		t.Fatalf("index refreshes = %d", rec.refreshes)
	}
}

func TestAuthorNoteBlankIsNoop(t *testing.T) {
	svc, port, s := openFixture(t, "a foo", "")
	_ = svc.SelectParagraph(s, 0)
	res, err := svc.AuthorNote(context.Background(), s, "   ")
	if err != nil || res.Applied {
		t.Fatalf("AuthorNote = %+v, %v", res, err)
	}
	if len(port.calls) != 2 { // the two reads from Open
		t.Fatalf("unexpected storage calls: %v", port.calls)
	}
}

func TestAuthorNoteRequiresSelection(t *testing.T) {
	svc, _, s := openFixture(t, "a", "")
	if _, err := svc.AuthorNote(context.Background(), s, "n"); !errors.Is(err, ErrNoSelection) {
		t.Fatalf("err = %v", err)
	}
	if err := svc.AddHighlight(s, "a"); !errors.Is(err, ErrNoSelection) {
		t.Fatalf("AddHighlight err = %v", err)
	}
	if err := svc.OpenNotePrompt(s); !errors.Is(err, ErrNoSelection) {
		t.Fatalf("OpenNotePrompt err = %v", err)
	}
	if err := svc.SelectParagraph(s, 3); !errors.Is(err, align.ErrIndexOutOfRange) {
		t.Fatalf("SelectParagraph err = %v", err)
	}
}

func TestAuthorNoteSourceWriteFailureLeavesSessionUntouched(t *testing.T) {
	svc, port, s := openFixture(t, "a foo\n\nb", "")
	_ = svc.SelectParagraph(s, 0)
	_ = svc.AddHighlight(s, "foo")
	port.failOn["write document"] = true
	before := s.View()
	_, err := svc.AuthorNote(context.Background(), s, "note")
	if !errors.Is(err, storage.ErrIOFailure) {
		t.Fatalf("err = %v, want ErrIOFailure", err)
	}
	after := s.View()
	if len(after.Paragraphs) != len(before.Paragraphs) || after.Paragraphs[0].Source != "a foo" {
		t.Fatalf("document changed after failed write: %+v", after)
	}
	if len(after.Highlights) != 1 {
		t.Fatalf("pending highlights dropped: %v", after.Highlights)
	}
	if port.notes[chapter] != "" {
		t.Fatalf("notes appended despite failure")
	}
}

func TestAuthorNoteAppendFailureReported(t *testing.T) {
	svc, port, s := openFixture(t, "a\n\nb", "")
	_ = svc.SelectParagraph(s, 1)
	port.failOn["append note"] = true
	_, err := svc.AuthorNote(context.Background(), s, "note")
	if !errors.Is(err, storage.ErrIOFailure) {
		t.Fatalf("err = %v, want ErrIOFailure", err)
	}
	// the source on disk already carries the footnote, so the session follows it
	if got := s.View().Paragraphs; len(got) != 3 || got[1].Source != "b [2]" {
		t.Fatalf("session out of sync with source: %+v", got)
	}
}

func TestSelectingAnotherParagraphDropsHighlights(t *testing.T) {
	svc, _, s := openFixture(t, "a\n\nb", "")
	_ = svc.SelectParagraph(s, 0)
	_ = svc.AddHighlight(s, "a")
	_ = svc.SelectParagraph(s, 0)
	if len(s.View().Highlights) != 1 {
		t.Fatalf("reselecting the same paragraph dropped highlights")
	}
	_ = svc.SelectParagraph(s, 1)
	if len(s.View().Highlights) != 0 {
		t.Fatalf("highlights kept across paragraphs")
	}
	_ = svc.AddHighlight(s, "b")
	_ = svc.OpenNotePrompt(s)
	svc.CloseNotePrompt(s)
	if v := s.View(); v.NotePromptOpen || len(v.Highlights) != 0 {
		t.Fatalf("CloseNotePrompt left state: %+v", v)
	}
}
