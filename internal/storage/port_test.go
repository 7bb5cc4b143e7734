/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newChapter(t *testing.T, text string) (string, *FileStore) {
	t.Helper()
	root := t.TempDir()
	src := filepath.Join(root, "raw", "Chapter_001.txt")
	if err := os.MkdirAll(filepath.Dir(src), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(src, []byte(text), 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}
	return src, NewFileStore(DefaultLayout())
}

func TestFileStoreReadTranslationMissing(t *testing.T) {
	src, s := newChapter(t, "a\n\nb")
	text, ok, err := s.ReadTranslation(src)
	if err != nil || ok || text != "" {
		t.Fatalf("ReadTranslation = %q,%v,%v want empty,false,nil", text, ok, err)
	}
}

func TestFileStoreWriteAndReadTranslation(t *testing.T) {
	src, s := newChapter(t, "a\n\nb")
	if err := s.WriteTranslation(src, "A\n\nB"); err != nil {
		t.Fatalf("WriteTranslation: %v", err)
	}
	text, ok, err := s.ReadTranslation(src)
	if err != nil || !ok || text != "A\n\nB" {
		t.Fatalf("ReadTranslation = %q,%v,%v", text, ok, err)
	}
	// english/ was created next to raw/
	want := filepath.Join(filepath.Dir(filepath.Dir(src)), "english", "Chapter_001.txt")
	if _, err := os.Stat(want); err != nil {
		t.Fatalf("translation file missing at %s: %v", want, err)
	}
	// no temp files left behind
	ents, _ := os.ReadDir(filepath.Dir(want))
	for _, e := range ents {
		if strings.Contains(e.Name(), ".tmp-") {
			t.Fatalf("leftover temp file %s", e.Name())
		}
	}
}

func TestFileStoreAppendNoteIsAppendOnly(t *testing.T) {
	src, s := newChapter(t, "a")
	entries := []string{"Paragraph 1:\nfirst\n\n", "Paragraph 1:\nsecond\n\n"}
	for _, e := range entries {
		if err := s.AppendNote(src, e); err != nil {
			t.Fatalf("AppendNote: %v", err)
		}
	}
	got, err := s.ReadNotes(src)
	if err != nil {
		t.Fatalf("ReadNotes: %v", err)
	}
	if got != strings.Join(entries, "") {
		t.Fatalf("notes = %q", got)
	}
}

func TestFileStoreReadDocumentFailureIsIOFailure(t *testing.T) {
	s := NewFileStore(DefaultLayout())
	_, err := s.ReadDocument(filepath.Join(t.TempDir(), "raw", "missing.txt"))
	if !errors.Is(err, ErrIOFailure) {
		t.Fatalf("err = %v, want ErrIOFailure", err)
	}
	if !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("cause lost: %v", err)
	}
	var ioe *IOError
	if !errors.As(err, &ioe) || ioe.Op != "read document" {
		t.Fatalf("errors.As IOError failed: %#v", err)
	}
}

func TestFileStoreWriteTranslationFailure(t *testing.T) {
	root := t.TempDir()
	// a regular file where the english directory should be
	if err := os.WriteFile(filepath.Join(root, "english"), []byte("x"), 0o644); err != nil {
		t.Fatalf("seed: %v", err)
	}
	s := NewFileStore(DefaultLayout())
	err := s.WriteTranslation(filepath.Join(root, "raw", "c.txt"), "A")
	if !errors.Is(err, ErrIOFailure) {
		t.Fatalf("err = %v, want ErrIOFailure", err)
	}
}
