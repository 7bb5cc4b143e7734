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
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	applog "gotranslator/internal/log"
)

// ErrIOFailure marks every failure reported by a Port. The underlying cause is
// reachable through errors.Is/As as well.
var ErrIOFailure = errors.New("io failure")

// IOError describes a failed storage operation on one path.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() []error { return []error{ErrIOFailure, e.Err} }

func ioErr(op, path string, err error) error {
	return &IOError{Op: op, Path: path, Err: err}
}

// Port is the persistence surface the editor depends on. All paths are source
// document paths; implementations derive translation and notes locations.
type Port interface {
	ReadDocument(path string) (string, error)
	// ReadTranslation reports ok=false without error when no translation exists yet.
	ReadTranslation(path string) (text string, ok bool, err error)
	WriteTranslation(path, content string) error
	WriteDocument(path, content string) error
	AppendNote(path, entry string) error
}

// FileStore is the filesystem Port.
type FileStore struct {
	Layout Layout
	// Backups keeps an xz copy of a source file before WriteDocument replaces it.
	Backups bool
	// KeepBackups bounds the backups kept per chapter; 0 keeps all.
	KeepBackups int

	now func() time.Time
}

var _ Port = (*FileStore)(nil)

// NewFileStore returns a store using layout with source backups enabled.
func NewFileStore(layout Layout) *FileStore {
	return &FileStore{Layout: layout.withDefaults(), Backups: true, KeepBackups: 20, now: time.Now}
}

func (s *FileStore) logger() *slog.Logger {
	return applog.WithComponent("storage")
}

func (s *FileStore) ReadDocument(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", ioErr("read document", path, err)
	}
	return string(b), nil
}

func (s *FileStore) ReadTranslation(path string) (string, bool, error) {
	tp := s.Layout.TranslationPath(path)
	b, err := os.ReadFile(tp)
	if errors.Is(err, os.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, ioErr("read translation", tp, err)
	}
	return string(b), true, nil
}

func (s *FileStore) WriteTranslation(path, content string) error {
	tp := s.Layout.TranslationPath(path)
	if err := atomicWrite(tp, []byte(content)); err != nil {
		return ioErr("write translation", tp, err)
	}
	s.logger().Debug("translation written", slog.String("path", tp), slog.Int("bytes", len(content)))
	return nil
}

func (s *FileStore) WriteDocument(path, content string) error {
	if s.Backups {
		if _, err := os.Stat(path); err == nil {
			if _, berr := s.backupSource(path); berr != nil {
				return ioErr("backup document", path, berr)
			}
		}
	}
	if err := atomicWrite(path, []byte(content)); err != nil {
		return ioErr("write document", path, err)
	}
	return nil
}

// AppendNote appends entry to the notes log, creating it when missing.
// Existing entries are never rewritten.
func (s *FileStore) AppendNote(path, entry string) (err error) {
	np := s.Layout.NotesPath(path)
	if err := os.MkdirAll(filepath.Dir(np), 0o755); err != nil {
		return ioErr("append note", np, err)
	}
	f, err := os.OpenFile(np, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return ioErr("append note", np, err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = ioErr("append note", np, cerr)
		}
	}()
	if _, err := f.WriteString(entry); err != nil {
		return ioErr("append note", np, err)
	}
	if err := f.Sync(); err != nil {
		return ioErr("append note", np, err)
	}
	return nil
}

// ReadNotes returns the full notes log of a chapter, empty when none exists.
func (s *FileStore) ReadNotes(path string) (string, error) {
	np := s.Layout.NotesPath(path)
	b, err := os.ReadFile(np)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", ioErr("read notes", np, err)
	}
	return string(b), nil
}

func (s *FileStore) clock() time.Time {
	if s.now == nil {
		return time.Now()
	}
	return s.now()
}
