/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	gojsonschema "github.com/xeipuuv/gojsonschema"

	"gotranslator/internal/domain"
)

func TestInitNovelCreatesStructureAndManifest(t *testing.T) {
	root := t.TempDir()
	h, err := InitNovel(root, domain.Novel{Title: "Test Novel", SourceURL: "https://ncode.example/n1234/"}, Layout{})
	if err != nil {
		t.Fatalf("InitNovel error: %v", err)
	}
	for _, d := range []string{"raw", "english", "notes", BackupsDirName} {
		if fi, err := os.Stat(filepath.Join(root, d)); err != nil || !fi.IsDir() {
			t.Fatalf("expected directory %s to exist", d)
		}
	}
	b, err := os.ReadFile(h.ManifestPath)
	if err != nil {
		t.Fatalf("read manifest: %v", err)
	}
	var got domain.Novel
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatalf("unmarshal manifest: %v", err)
	}
	if got.Title != "Test Novel" || got.SourceLang != "ja" || got.TargetLang != "en" {
		t.Fatalf("manifest = %+v", got)
	}
	if got.CreatedAt.IsZero() || got.UpdatedAt.IsZero() {
		t.Fatalf("timestamps not set: %+v", got)
	}
}

func TestManifestConformsToSchema(t *testing.T) {
	root := t.TempDir()
	h, err := InitNovel(root, domain.Novel{Title: "Schema Test"}, DefaultLayout())
	if err != nil {
		t.Fatalf("InitNovel error: %v", err)
	}
	data, err := os.ReadFile(h.ManifestPath)
	if err != nil {
		t.Fatalf("read manifest: %v", err)
	}
	result, err := gojsonschema.Validate(gojsonschema.NewBytesLoader(manifestSchema), gojsonschema.NewBytesLoader(data))
	if err != nil {
		t.Fatalf("schema validate error: %v", err)
	}
	if !result.Valid() {
		for _, e := range result.Errors() {
			t.Logf("schema error: %s", e)
		}
		t.Fatalf("manifest does not conform to schema")
	}
}

func TestInitNovelRejectsEmptyTitle(t *testing.T) {
	_, err := InitNovel(t.TempDir(), domain.Novel{}, DefaultLayout())
	if !errors.Is(err, ErrInvalidManifest) {
		t.Fatalf("err = %v, want ErrInvalidManifest", err)
	}
}

func TestOpenNovelFallsBackToBackup(t *testing.T) {
	root := t.TempDir()
	h, err := InitNovel(root, domain.Novel{Title: "First"}, DefaultLayout())
	if err != nil {
		t.Fatalf("InitNovel error: %v", err)
	}
	h.Novel.Title = "Second"
	if err := SaveNovel(h); err != nil {
		t.Fatalf("SaveNovel error: %v", err)
	}
	if err := os.WriteFile(h.ManifestPath, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("corrupt manifest: %v", err)
	}
	got, err := OpenNovel(root, DefaultLayout())
	if err != nil {
		t.Fatalf("OpenNovel error: %v", err)
	}
	// the backup holds the manifest as it was before the second save
	if got.Novel.Title != "First" {
		t.Fatalf("title = %q, want First", got.Novel.Title)
	}
}

func TestOpenNovelWithoutManifestOrBackup(t *testing.T) {
	if _, err := OpenNovel(t.TempDir(), DefaultLayout()); err == nil {
		t.Fatalf("expected error for empty directory")
	}
}
