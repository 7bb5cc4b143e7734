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
	"log/slog"
	"os"
)

// AutosaveSuffix is appended to the translation path for crash autosaves.
const AutosaveSuffix = ".autosave"

// AutosavePath returns where an unsaved translation of src is parked.
func (s *FileStore) AutosavePath(src string) string {
	return s.Layout.TranslationPath(src) + AutosaveSuffix
}

// WriteAutosave stores unsaved translation content next to the translation file
// without touching the translation itself.
func (s *FileStore) WriteAutosave(src, content string) (string, error) {
	p := s.AutosavePath(src)
	if err := atomicWrite(p, []byte(content)); err != nil {
		return p, ioErr("write autosave", p, err)
	}
	s.logger().Info("autosave written", slog.String("path", p))
	return p, nil
}

// ReadAutosave returns a parked translation for src, if any.
func (s *FileStore) ReadAutosave(src string) (string, bool, error) {
	p := s.AutosavePath(src)
	b, err := os.ReadFile(p)
	if errors.Is(err, os.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, ioErr("read autosave", p, err)
	}
	return string(b), true, nil
}

// DiscardAutosave removes a parked translation. Missing files are not an error.
func (s *FileStore) DiscardAutosave(src string) error {
	p := s.AutosavePath(src)
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return ioErr("discard autosave", p, err)
	}
	return nil
}
