/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"context"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/minio/highwayhash"

	"gotranslator/internal/align"
	applog "gotranslator/internal/log"
	"gotranslator/internal/version"

	// Pure-Go SQLite driver (CGO-free)
	_ "modernc.org/sqlite"
)

const (
	// IndexDirName holds all derived per-novel data under the workspace root.
	IndexDirName  = ".gtr"
	IndexFileName = "index.sqlite"

	// schemaVersion tracks the local SQLite schema. Bump it together with a migration step.
	schemaVersion = 2

	// DefaultKeepSnapshots is the per-chapter snapshot bound of a freshly opened Index.
	DefaultKeepSnapshots = 50
)

// Paragraph kinds stored in the index.
const (
	KindSource      = "source"
	KindTranslation = "translation"
	KindNote        = "note"
)

// 32-byte HighwayHash key for content fingerprints. Changing it forces a full reindex.
var indexHashKey = []byte("gotranslator-index-content-hash!")

// IndexPath returns the full path to the novel's index database file.
func IndexPath(root string) string {
	return filepath.Join(root, IndexDirName, IndexFileName)
}

// InitOrOpenIndex ensures the SQLite index exists at .gtr/index.sqlite, enables WAL
// and brings the schema up to date.
func InitOrOpenIndex(root string) (*sql.DB, error) {
	l := applog.WithOperation(applog.WithComponent("storage"), "index_init").With(slog.String("root", root))
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("novel root is required")
	}
	if err := os.MkdirAll(filepath.Join(root, IndexDirName), 0o755); err != nil {
		l.Error("create index dir failed", slog.Any("err", err))
		return nil, fmt.Errorf("create %s dir: %w", IndexDirName, err)
	}

	path := IndexPath(root)
	dsn := fmt.Sprintf("file:%s?cache=shared&_pragma=busy_timeout(5000)", filepath.ToSlash(path))
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		l.Error("sqlite open failed", slog.Any("err", err))
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL;"); err != nil {
		_ = db.Close()
		l.Error("enable WAL failed", slog.Any("err", err))
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON;"); err != nil {
		l.Warn("enable foreign_keys failed", slog.Any("err", err))
	}
	if err := ensureMetaAndVersion(ctx, db); err != nil {
		_ = db.Close()
		l.Error("ensure meta/version failed", slog.Any("err", err))
		return nil, err
	}
	if err := ensureIndexSchema(ctx, db); err != nil {
		_ = db.Close()
		l.Error("ensure index schema failed", slog.Any("err", err))
		return nil, err
	}
	if err := runMigrations(ctx, db); err != nil {
		_ = db.Close()
		l.Error("run migrations failed", slog.Any("err", err))
		return nil, err
	}
	l.Debug("index ready", slog.String("path", path))
	return db, nil
}

func ensureMetaAndVersion(ctx context.Context, db *sql.DB) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS version (
			id          INTEGER PRIMARY KEY CHECK(id=1),
			schema      INTEGER NOT NULL,
			app         TEXT,
			created_at  TEXT NOT NULL,
			updated_at  TEXT NOT NULL
		);`,
	}
	for _, q := range ddl {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}
	now := time.Now().UTC().Format(time.RFC3339)
	appv := version.String()
	var cur int
	err := db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&cur)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if _, err := db.ExecContext(ctx, `INSERT INTO version (id, schema, app, created_at, updated_at) VALUES(1, ?, ?, ?, ?)`, schemaVersion, appv, now, now); err != nil {
			return fmt.Errorf("insert version: %w", err)
		}
	case err != nil:
		return fmt.Errorf("read version: %w", err)
	default:
		// keep the stored schema number for runMigrations
		if _, err := db.ExecContext(ctx, `UPDATE version SET app=?, updated_at=? WHERE id=1`, appv, now); err != nil {
			return fmt.Errorf("update version: %w", err)
		}
	}
	return nil
}

// runMigrations applies incremental schema steps up to schemaVersion.
func runMigrations(ctx context.Context, db *sql.DB) error {
	var cur int
	if err := db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&cur); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	for cur < schemaVersion {
		next := cur + 1
		var stmts []string
		switch next {
		case 2:
			stmts = []string{
				`CREATE INDEX IF NOT EXISTS idx_paragraphs_chapter_idx ON paragraphs(chapter_id, idx);`,
				`CREATE INDEX IF NOT EXISTS idx_snapshots_chapter_ts ON snapshots(chapter, ts);`,
			}
		}
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", next, err)
		}
		for _, q := range stmts {
			if _, err := tx.ExecContext(ctx, q); err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("migration %d stmt failed: %w", next, err)
			}
		}
		if _, err := tx.ExecContext(ctx, `UPDATE version SET schema=?, updated_at=? WHERE id=1`, next, time.Now().UTC().Format(time.RFC3339)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d update version: %w", next, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("migration %d commit: %w", next, err)
		}
		if next == 2 {
			// best-effort, the index stays usable without it
			_, _ = db.ExecContext(ctx, `INSERT INTO fts_paragraphs(fts_paragraphs) VALUES('optimize')`)
		}
		cur = next
	}
	return nil
}

// ensureIndexSchema creates the chapter, paragraph and snapshot tables plus the FTS
// table kept in sync by triggers.
func ensureIndexSchema(ctx context.Context, db *sql.DB) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS chapters (
			chapter_id  INTEGER PRIMARY KEY,
			name        TEXT    NOT NULL UNIQUE,
			hash        TEXT    NOT NULL,
			paragraphs  INTEGER NOT NULL,
			translated  INTEGER NOT NULL,
			indexed_at  TEXT    NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS paragraphs (
			par_id      INTEGER PRIMARY KEY,
			chapter_id  INTEGER NOT NULL REFERENCES chapters(chapter_id),
			idx         INTEGER NOT NULL,
			kind        TEXT    NOT NULL,
			text        TEXT    NOT NULL
		);`,
		// External content FTS so snippet() can read the text back.
		`CREATE VIRTUAL TABLE IF NOT EXISTS fts_paragraphs USING fts5(
			text,
			content='paragraphs',
			content_rowid='par_id',
			tokenize = 'trigram'
		);`,
		`CREATE TABLE IF NOT EXISTS snapshots (
			id       INTEGER PRIMARY KEY,
			chapter  TEXT    NOT NULL,
			ts       TEXT    NOT NULL,
			text     TEXT    NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_paragraphs_chapter_idx ON paragraphs(chapter_id, idx);`,
		`CREATE INDEX IF NOT EXISTS idx_snapshots_chapter_ts ON snapshots(chapter, ts);`,
	}
	for _, q := range ddl {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("ensure index schema: %w", err)
		}
	}
	triggers := []string{
		`CREATE TRIGGER IF NOT EXISTS paragraphs_ai AFTER INSERT ON paragraphs BEGIN
			INSERT INTO fts_paragraphs(rowid, text) VALUES (new.par_id, new.text);
		END;`,
		`CREATE TRIGGER IF NOT EXISTS paragraphs_ad AFTER DELETE ON paragraphs BEGIN
			INSERT INTO fts_paragraphs(fts_paragraphs, rowid, text) VALUES ('delete', old.par_id, old.text);
		END;`,
		`CREATE TRIGGER IF NOT EXISTS paragraphs_au AFTER UPDATE OF text ON paragraphs BEGIN
			INSERT INTO fts_paragraphs(fts_paragraphs, rowid, text) VALUES ('delete', old.par_id, old.text);
			INSERT INTO fts_paragraphs(rowid, text) VALUES (new.par_id, new.text);
		END;`,
	}
	for _, q := range triggers {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("ensure fts triggers: %w", err)
		}
	}
	return nil
}

// Index is an open novel index. It is safe for concurrent use; the database handle
// serializes access through a single connection.
type Index struct {
	// KeepSnapshots bounds the snapshots kept per chapter; zero keeps all.
	KeepSnapshots int

	root   string
	layout Layout
	db     *sql.DB
}

// RefreshStats reports what a Refresh touched.
type RefreshStats struct {
	Indexed int
	Skipped int
	Removed int
}

// OpenIndex opens (creating if needed) the index of the workspace h.
func OpenIndex(h *NovelHandle) (*Index, error) {
	db, err := InitOrOpenIndex(h.Root)
	if err != nil {
		return nil, err
	}
	return &Index{KeepSnapshots: DefaultKeepSnapshots, root: h.Root, layout: h.Layout.withDefaults(), db: db}, nil
}

func (ix *Index) Close() error { return ix.db.Close() }

// ChapterName is the source path relative to the source directory, slash separated.
// Snapshots are keyed by it.
func (ix *Index) ChapterName(sourcePath string) string {
	base := filepath.Join(ix.root, ix.layout.SourceDir)
	rel, err := filepath.Rel(base, sourcePath)
	if err != nil || strings.HasPrefix(rel, "..") {
		return filepath.ToSlash(filepath.Clean(sourcePath))
	}
	return filepath.ToSlash(rel)
}

// Refresh brings the index in line with the chapter files. Chapters whose content
// hash is unchanged are skipped; chapters that disappeared are removed.
func (ix *Index) Refresh(ctx context.Context) (RefreshStats, error) {
	l := applog.WithOperation(applog.WithComponent("storage"), "index_refresh")
	var st RefreshStats
	h := &NovelHandle{Root: ix.root, Layout: ix.layout}
	chapters, err := ListChapters(h, "")
	if err != nil {
		return st, err
	}
	seen := make(map[string]bool, len(chapters))
	for _, c := range chapters {
		if err := ctx.Err(); err != nil {
			return st, err
		}
		seen[c.Name] = true
		changed, err := ix.RefreshChapter(ctx, c.SourcePath)
		if err != nil {
			return st, fmt.Errorf("index %s: %w", c.Name, err)
		}
		if changed {
			st.Indexed++
		} else {
			st.Skipped++
		}
	}
	names, err := ix.chapterNames(ctx)
	if err != nil {
		return st, err
	}
	for _, n := range names {
		if seen[n] {
			continue
		}
		if err := ix.removeChapter(ctx, n); err != nil {
			return st, err
		}
		st.Removed++
	}
	l.Info("index refreshed", slog.Int("indexed", st.Indexed), slog.Int("skipped", st.Skipped), slog.Int("removed", st.Removed))
	return st, nil
}

// RefreshChapter reindexes one chapter when its source, translation or notes
// changed since the last run. It reports whether rows were rewritten.
func (ix *Index) RefreshChapter(ctx context.Context, sourcePath string) (bool, error) {
	store := NewFileStore(ix.layout)
	src, err := store.ReadDocument(sourcePath)
	if err != nil {
		return false, err
	}
	tr, _, err := store.ReadTranslation(sourcePath)
	if err != nil {
		return false, err
	}
	notes, err := store.ReadNotes(sourcePath)
	if err != nil {
		return false, err
	}
	sum, err := contentHash(src, tr, notes)
	if err != nil {
		return false, err
	}
	name := ix.ChapterName(sourcePath)
	var old string
	err = ix.db.QueryRowContext(ctx, `SELECT hash FROM chapters WHERE name=?`, name).Scan(&old)
	if err == nil && old == sum {
		return false, nil
	}
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return false, fmt.Errorf("read chapter hash: %w", err)
	}
	doc, err := align.Load(src, tr)
	if err != nil {
		return false, err
	}
	if err := ix.writeChapter(ctx, name, sum, doc, ParseNotes(notes)); err != nil {
		return false, err
	}
	return true, nil
}

func (ix *Index) writeChapter(ctx context.Context, name, sum string, doc *align.Document, notes []Note) error {
	tx, err := ix.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM paragraphs WHERE chapter_id IN (SELECT chapter_id FROM chapters WHERE name=?)`, name); err != nil {
		return fmt.Errorf("clear paragraphs: %w", err)
	}
	now := time.Now().UTC().Format(time.RFC3339)
	if _, err := tx.ExecContext(ctx, `INSERT INTO chapters(name, hash, paragraphs, translated, indexed_at) VALUES(?,?,?,?,?)
		ON CONFLICT(name) DO UPDATE SET hash=excluded.hash, paragraphs=excluded.paragraphs, translated=excluded.translated, indexed_at=excluded.indexed_at`,
		name, sum, doc.Len(), doc.TranslatedCount(), now); err != nil {
		return fmt.Errorf("upsert chapter: %w", err)
	}
	var id int64
	if err := tx.QueryRowContext(ctx, `SELECT chapter_id FROM chapters WHERE name=?`, name).Scan(&id); err != nil {
		return fmt.Errorf("chapter id: %w", err)
	}
	ins, err := tx.PrepareContext(ctx, `INSERT INTO paragraphs(chapter_id, idx, kind, text) VALUES(?,?,?,?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer ins.Close()
	for i, p := range doc.SourceParagraphs() {
		if strings.TrimSpace(p) == "" {
			continue
		}
		if _, err := ins.ExecContext(ctx, id, i, KindSource, p); err != nil {
			return fmt.Errorf("insert paragraph: %w", err)
		}
		if t, ok := doc.Translation(i); ok {
			if _, err := ins.ExecContext(ctx, id, i, KindTranslation, t); err != nil {
				return fmt.Errorf("insert translation: %w", err)
			}
		}
	}
	for _, n := range notes {
		if _, err := ins.ExecContext(ctx, id, n.Index, KindNote, n.Text); err != nil {
			return fmt.Errorf("insert note: %w", err)
		}
	}
	return tx.Commit()
}

func (ix *Index) chapterNames(ctx context.Context) ([]string, error) {
	rows, err := ix.db.QueryContext(ctx, `SELECT name FROM chapters ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list chapters: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (ix *Index) removeChapter(ctx context.Context, name string) error {
	tx, err := ix.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()
	if _, err := tx.ExecContext(ctx, `DELETE FROM paragraphs WHERE chapter_id IN (SELECT chapter_id FROM chapters WHERE name=?)`, name); err != nil {
		return fmt.Errorf("remove paragraphs: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM chapters WHERE name=?`, name); err != nil {
		return fmt.Errorf("remove chapter: %w", err)
	}
	return tx.Commit()
}

// RecordSave stores a translation snapshot for the chapter, prunes snapshots past
// KeepSnapshots and refreshes the chapter rows.
func (ix *Index) RecordSave(ctx context.Context, sourcePath, translation string) error {
	name := ix.ChapterName(sourcePath)
	if err := ix.SaveSnapshot(ctx, name, translation, time.Now()); err != nil {
		return err
	}
	if n, err := ix.PruneSnapshots(ctx, name, ix.KeepSnapshots); err != nil {
		return fmt.Errorf("prune snapshots: %w", err)
	} else if n > 0 {
		applog.WithComponent("storage").Debug("snapshots pruned", slog.String("chapter", name), slog.Int64("removed", n))
	}
	_, err := ix.RefreshChapter(ctx, sourcePath)
	return err
}

func contentHash(parts ...string) (string, error) {
	h, err := highwayhash.New(indexHashKey)
	if err != nil {
		return "", fmt.Errorf("failed to create hash: %w", err)
	}
	for _, p := range parts {
		_, _ = h.Write([]byte(p))
		_, _ = h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Note is one entry of a chapter notes log. Index is zero-based.
type Note struct {
	Index int
	Text  string
}

// ParseNotes reads entries written as "Paragraph <n>:\n<note>\n\n".
// Malformed blocks are skipped.
func ParseNotes(log string) []Note {
	var out []Note
	for _, block := range strings.Split(log, align.Separator) {
		head, body, ok := strings.Cut(block, "\n")
		if !ok || !strings.HasPrefix(head, "Paragraph ") || !strings.HasSuffix(head, ":") {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(head, "Paragraph "), ":"))
		if err != nil || n < 1 || strings.TrimSpace(body) == "" {
			continue
		}
		out = append(out, Note{Index: n - 1, Text: body})
	}
	return out
}

// DetectAndRebuildIndex checks the index for corruption or a missing schema and
// rebuilds it from the chapter files when needed. It returns true when a rebuild ran.
func DetectAndRebuildIndex(ctx context.Context, h *NovelHandle) (bool, error) {
	path := IndexPath(h.Root)
	db, err := InitOrOpenIndex(h.Root)
	if err != nil {
		discardIndexFile(path)
		if rbErr := RebuildIndex(ctx, h); rbErr != nil {
			return false, fmt.Errorf("rebuild after open failure: %w (open err: %v)", rbErr, err)
		}
		return true, nil
	}
	needs := false
	var chk string
	if err := db.QueryRowContext(ctx, `PRAGMA quick_check;`).Scan(&chk); err != nil || !strings.Contains(strings.ToLower(chk), "ok") {
		needs = true
	}
	if !needs {
		if _, err := db.ExecContext(ctx, `SELECT 1 FROM paragraphs LIMIT 1;`); err != nil {
			needs = true
		}
	}
	_ = db.Close()
	if !needs {
		return false, nil
	}
	discardIndexFile(path)
	if err := RebuildIndex(ctx, h); err != nil {
		return false, err
	}
	return true, nil
}

// RebuildIndex drops the derived tables and reindexes every chapter.
// Snapshots are kept.
func RebuildIndex(ctx context.Context, h *NovelHandle) error {
	db, err := InitOrOpenIndex(h.Root)
	if err != nil {
		return err
	}
	ix := &Index{root: h.Root, layout: h.Layout.withDefaults(), db: db}
	defer ix.Close()
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	drops := []string{
		"DROP TRIGGER IF EXISTS paragraphs_ai;",
		"DROP TRIGGER IF EXISTS paragraphs_ad;",
		"DROP TRIGGER IF EXISTS paragraphs_au;",
		"DROP TABLE IF EXISTS fts_paragraphs;",
		"DROP TABLE IF EXISTS paragraphs;",
		"DROP TABLE IF EXISTS chapters;",
	}
	for _, q := range drops {
		if _, err := tx.ExecContext(ctx, q); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("drop schema: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("drop commit: %w", err)
	}
	if err := ensureIndexSchema(ctx, db); err != nil {
		return err
	}
	_, err = ix.Refresh(ctx)
	return err
}

// discardIndexFile moves a broken index aside into .gtr/backups and removes its WAL files.
func discardIndexFile(indexPath string) {
	bdir := filepath.Join(filepath.Dir(indexPath), BackupsDirName)
	_ = os.MkdirAll(bdir, 0o755)
	stamp := time.Now().Format("20060102-150405")
	_ = copyFile(indexPath, filepath.Join(bdir, fmt.Sprintf("%s.%s.bak", filepath.Base(indexPath), stamp)))
	for _, p := range []string{indexPath, indexPath + "-wal", indexPath + "-shm"} {
		_ = os.Remove(p)
	}
}
