/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	gojsonschema "github.com/xeipuuv/gojsonschema"

	"gotranslator/internal/domain"
	applog "gotranslator/internal/log"
)

const ManifestFileName = "novel.json"

//go:embed novel.schema.json
var manifestSchema []byte

// ErrInvalidManifest is returned when novel.json does not conform to the schema.
var ErrInvalidManifest = errors.New("invalid novel manifest")

// NovelHandle is an opened novel workspace.
// Root contains novel.json and the chapter directories named by Layout.
type NovelHandle struct {
	Root         string
	ManifestPath string
	Layout       Layout
	Novel        domain.Novel
}

// SourceDir returns the absolute directory holding the source chapters.
func (h *NovelHandle) SourceDir() string {
	return filepath.Join(h.Root, h.Layout.withDefaults().SourceDir)
}

// Store returns a FileStore bound to the workspace layout.
func (h *NovelHandle) Store() *FileStore { return NewFileStore(h.Layout) }

// InitNovel creates the workspace at root, scaffolds the chapter directories and
// writes the manifest. Missing defaults (languages, timestamps) are filled in.
func InitNovel(root string, novel domain.Novel, layout Layout) (*NovelHandle, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("root path is required")
	}
	layout = layout.withDefaults()
	for _, d := range []string{"", layout.SourceDir, layout.TranslationDir, layout.NotesDir, BackupsDirName} {
		if err := os.MkdirAll(filepath.Join(root, d), 0o755); err != nil {
			return nil, fmt.Errorf("create workspace dir %q: %w", d, err)
		}
	}
	now := time.Now().UTC()
	if novel.CreatedAt.IsZero() {
		novel.CreatedAt = now
	}
	if novel.SourceLang == "" {
		novel.SourceLang = "ja"
	}
	if novel.TargetLang == "" {
		novel.TargetLang = "en"
	}
	h := &NovelHandle{
		Root:         root,
		ManifestPath: filepath.Join(root, ManifestFileName),
		Layout:       layout,
		Novel:        novel,
	}
	if err := SaveNovel(h); err != nil {
		return nil, err
	}
	applog.WithOperation(applog.WithComponent("storage"), "init_novel").Info("workspace created",
		slog.String("root", root), slog.String("title", novel.Title))
	return h, nil
}

// OpenNovel loads the manifest at root. An unreadable or invalid manifest falls back
// to the newest manifest backup.
func OpenNovel(root string, layout Layout) (*NovelHandle, error) {
	mpath := filepath.Join(root, ManifestFileName)
	h := &NovelHandle{Root: root, ManifestPath: mpath, Layout: layout.withDefaults()}
	b, err := os.ReadFile(mpath)
	if err == nil {
		var n domain.Novel
		if err = decodeManifest(b, &n); err == nil {
			h.Novel = n
			return h, nil
		}
	}
	n, berr := openManifestBackup(root)
	if berr != nil {
		return nil, fmt.Errorf("open manifest: %w; backup attempt: %v", err, berr)
	}
	applog.WithComponent("storage").Warn("manifest restored from backup", slog.String("root", root), slog.Any("err", err))
	h.Novel = *n
	return h, nil
}

// SaveNovel validates and writes the manifest, keeping a timestamped copy of the previous one.
func SaveNovel(h *NovelHandle) error {
	if h == nil {
		return errors.New("nil NovelHandle")
	}
	if h.Root == "" || h.ManifestPath == "" {
		return errors.New("invalid NovelHandle: missing paths")
	}
	h.Novel.UpdatedAt = time.Now().UTC()
	data, err := json.MarshalIndent(h.Novel, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	data = append(data, '\n')
	if err := ValidateManifest(data); err != nil {
		return err
	}
	if _, statErr := os.Stat(h.ManifestPath); statErr == nil {
		stamp := time.Now().Format("20060102-150405.000")
		bpath := filepath.Join(h.Root, BackupsDirName, fmt.Sprintf("%s.%s.bak", ManifestFileName, stamp))
		if cerr := copyFile(h.ManifestPath, bpath); cerr != nil {
			return fmt.Errorf("backup current manifest: %w", cerr)
		}
	}
	if err := atomicWrite(h.ManifestPath, data); err != nil {
		return fmt.Errorf("replace manifest: %w", err)
	}
	return nil
}

// ValidateManifest checks raw manifest JSON against the embedded schema.
func ValidateManifest(data []byte) error {
	res, err := gojsonschema.Validate(gojsonschema.NewBytesLoader(manifestSchema), gojsonschema.NewBytesLoader(data))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidManifest, err)
	}
	if !res.Valid() {
		msgs := make([]string, 0, len(res.Errors()))
		for _, e := range res.Errors() {
			msgs = append(msgs, e.String())
		}
		return fmt.Errorf("%w: %s", ErrInvalidManifest, strings.Join(msgs, "; "))
	}
	return nil
}

func decodeManifest(b []byte, n *domain.Novel) error {
	if err := ValidateManifest(b); err != nil {
		return err
	}
	if err := json.Unmarshal(b, n); err != nil {
		return fmt.Errorf("parse manifest: %w", err)
	}
	return nil
}

func openManifestBackup(root string) (*domain.Novel, error) {
	bdir := filepath.Join(root, BackupsDirName)
	ents, err := os.ReadDir(bdir)
	if err != nil {
		return nil, fmt.Errorf("read backups dir: %w", err)
	}
	var candidates []string
	for _, e := range ents {
		name := e.Name()
		if strings.HasPrefix(name, ManifestFileName+".") && strings.HasSuffix(name, ".bak") {
			candidates = append(candidates, filepath.Join(bdir, name))
		}
	}
	if len(candidates) == 0 {
		return nil, errors.New("no manifest backups found")
	}
	sort.Strings(candidates)
	b, err := os.ReadFile(candidates[len(candidates)-1])
	if err != nil {
		return nil, fmt.Errorf("read latest backup: %w", err)
	}
	var n domain.Novel
	if err := decodeManifest(b, &n); err != nil {
		return nil, err
	}
	return &n, nil
}
