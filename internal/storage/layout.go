/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"path/filepath"
	"strings"
)

const BackupsDirName = "backups"

// Layout names the sibling directories of a novel workspace.
type Layout struct {
	SourceDir      string `yaml:"source_dir"`
	TranslationDir string `yaml:"translation_dir"`
	NotesDir       string `yaml:"notes_dir"`
}

// DefaultLayout matches the directories created by the chapter importer.
func DefaultLayout() Layout {
	return Layout{SourceDir: "raw", TranslationDir: "english", NotesDir: "notes"}
}

func (l Layout) withDefaults() Layout {
	d := DefaultLayout()
	if strings.TrimSpace(l.SourceDir) == "" {
		l.SourceDir = d.SourceDir
	}
	if strings.TrimSpace(l.TranslationDir) == "" {
		l.TranslationDir = d.TranslationDir
	}
	if strings.TrimSpace(l.NotesDir) == "" {
		l.NotesDir = d.NotesDir
	}
	return l
}

// TranslationPath maps a source chapter path to its translation file.
func (l Layout) TranslationPath(sourcePath string) string {
	return l.derive(sourcePath, l.withDefaults().TranslationDir)
}

// NotesPath maps a source chapter path to its notes log.
func (l Layout) NotesPath(sourcePath string) string {
	return l.derive(sourcePath, l.withDefaults().NotesDir)
}

// BackupDir is where overwritten versions of a source chapter are kept.
func (l Layout) BackupDir(sourcePath string) string {
	return filepath.Dir(l.derive(sourcePath, BackupsDirName))
}

// derive replaces the last directory segment equal to SourceDir with target and keeps
// the rest, so chapters nested below the source dir (raw/vol1/c.txt) map to the same
// subpath (english/vol1/c.txt). Paths without such a segment resolve to
// <dir>/../<target>/<file>.
func (l Layout) derive(sourcePath, target string) string {
	src := l.withDefaults().SourceDir
	clean := filepath.Clean(sourcePath)
	dir, file := filepath.Split(clean)
	parts := strings.Split(filepath.ToSlash(filepath.Clean(dir)), "/")
	for i := len(parts) - 1; i >= 0; i-- {
		if parts[i] == src {
			parts[i] = target
			return filepath.Join(filepath.FromSlash(strings.Join(parts, "/")), file)
		}
	}
	return filepath.Join(filepath.Dir(clean), "..", target, file)
}
