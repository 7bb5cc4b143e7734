/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gotranslator/internal/align"
	"gotranslator/internal/config"
	"gotranslator/internal/crash"
	"gotranslator/internal/domain"
	"gotranslator/internal/editor"
	"gotranslator/internal/export"
	"gotranslator/internal/scrape"
	"gotranslator/internal/server"
	"gotranslator/internal/storage"
	"gotranslator/internal/telemetry"
	"gotranslator/internal/undo"
)

// autosaveEvery is how often serve parks unsaved sessions next to their translations.
const autosaveEvery = time.Minute

type app struct {
	cfg   config.AppConfig
	token string
	out   io.Writer
	ws    *crash.Workspace
	tel   *telemetry.Client
	log   *slog.Logger
}

func (a *app) layout() storage.Layout {
	w := a.cfg.Workspace
	return storage.Layout{SourceDir: w.SourceDir, TranslationDir: w.TranslationDir, NotesDir: w.NotesDir}
}

func (a *app) store() *storage.FileStore {
	st := storage.NewFileStore(a.layout())
	st.KeepBackups = a.cfg.Workspace.KeepBackups
	return st
}

// openNovel opens the workspace at dir, falling back to the configured root.
func (a *app) openNovel(dir string) (*storage.NovelHandle, error) {
	if dir == "" {
		dir = a.cfg.Workspace.Root
	}
	if dir == "" {
		return nil, fmt.Errorf("%w: no novel directory given and workspace.root is not configured", errUsage)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	h, err := storage.OpenNovel(abs, a.layout())
	if err != nil {
		return nil, err
	}
	a.ws.Root = h.Root
	return h, nil
}

// findNovel walks up from a chapter file to the directory holding novel.json.
func findNovel(chapterPath string) string {
	dir := filepath.Dir(chapterPath)
	for {
		if _, err := os.Stat(filepath.Join(dir, storage.ManifestFileName)); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// newService wires an editor service; the search index is attached when h is set.
// The returned func releases the index.
func (a *app) newService(h *storage.NovelHandle) (*editor.Service, *storage.Index, func()) {
	opts := editor.Options{
		Undo:  undo.Config{MinInterval: a.cfg.Editor.UndoCoalesce(), MaxPerParagraph: a.cfg.Editor.UndoMaxPerParagraph},
		Theme: domain.Theme(a.cfg.Editor.Theme),
	}
	var ix *storage.Index
	if h != nil {
		var err error
		if ix, err = storage.OpenIndex(h); err != nil {
			a.log.Warn("search index unavailable", slog.String("root", h.Root), slog.Any("err", err))
			ix = nil
		} else {
			ix.KeepSnapshots = a.cfg.Workspace.KeepSnapshots
			opts.Recorder = ix
		}
	}
	svc := editor.NewService(a.store(), opts)
	a.ws.Sessions = svc
	return svc, ix, func() {
		if ix != nil {
			_ = ix.Close()
		}
	}
}

// openChapter opens an edit session on one chapter file.
func (a *app) openChapter(ctx context.Context, chapter string) (*editor.Service, *editor.Session, func(), error) {
	abs, err := filepath.Abs(chapter)
	if err != nil {
		return nil, nil, nil, err
	}
	var h *storage.NovelHandle
	if root := findNovel(abs); root != "" {
		if h, err = storage.OpenNovel(root, a.layout()); err != nil {
			a.log.Warn("novel manifest unreadable", slog.String("root", root), slog.Any("err", err))
			h = nil
		} else {
			a.ws.Root = root
		}
	}
	svc, _, done := a.newService(h)
	sess, err := svc.Open(ctx, abs)
	if err != nil {
		done()
		return nil, nil, nil, err
	}
	return svc, sess, done, nil
}

// paragraphArg parses a 1-based paragraph number.
func paragraphArg(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("%w: paragraph must be a number >= 1, got %q", errUsage, s)
	}
	return n - 1, nil
}

func (a *app) initNovel(args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("%w: init requires <dir> and <title>", errUsage)
	}
	abs, err := filepath.Abs(args[0])
	if err != nil {
		return err
	}
	n := domain.Novel{Title: args[1]}
	if len(args) > 2 {
		n.SourceURL = args[2]
	}
	a.log.Info("init novel", slog.String("root", abs), slog.String("title", n.Title))
	h, err := storage.InitNovel(abs, n, a.layout())
	if err != nil {
		return err
	}
	a.ws.Root = h.Root
	fmt.Fprintln(a.out, "Created novel workspace at", h.Root)
	return nil
}

func (a *app) progress(args []string) error {
	var dir string
	if len(args) > 0 {
		dir = args[0]
	}
	h, err := a.openNovel(dir)
	if err != nil {
		return err
	}
	infos, err := storage.Progress(h, a.cfg.Workspace.ChapterPattern)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Novel: %s (%s -> %s)\n", h.Novel.Title, h.Novel.SourceLang, h.Novel.TargetLang)
	var done, total int
	for _, c := range infos {
		mark := ""
		if c.HasNotes {
			mark = " *"
		}
		fmt.Fprintf(a.out, "  %-32s %4d/%-4d %5.1f%%%s\n", c.Name, c.Translated, c.Paragraphs, c.Percent(), mark)
		done += c.Translated
		total += c.Paragraphs
	}
	sum := domain.ChapterInfo{Paragraphs: total, Translated: done}
	fmt.Fprintf(a.out, "Chapters: %d  Paragraphs: %d/%d (%.1f%%)\n", len(infos), done, total, sum.Percent())
	return nil
}

func (a *app) translate(ctx context.Context, args []string) error {
	if len(args) < 3 {
		return fmt.Errorf("%w: translate requires <chapter> <n> <text>", errUsage)
	}
	idx, err := paragraphArg(args[1])
	if err != nil {
		return err
	}
	svc, sess, done, err := a.openChapter(ctx, args[0])
	if err != nil {
		return err
	}
	defer done()
	if sess.View().PendingAutosave {
		return fmt.Errorf("%s has an unsaved autosave; run 'gotranslator recover %s' first", sess.Path, args[0])
	}
	if err := svc.UpdateTranslation(sess, idx, strings.Join(args[2:], " ")); err != nil {
		return err
	}
	if err := svc.Save(ctx, sess); err != nil {
		return err
	}
	a.tel.Count(telemetry.EventSessionSaved)
	fmt.Fprintf(a.out, "Saved paragraph %d (%d/%d translated)\n", idx+1, sess.TranslatedCount(), sess.Len())
	return nil
}

func (a *app) note(ctx context.Context, args []string) error {
	if len(args) < 3 {
		return fmt.Errorf("%w: note requires <chapter> <n> <note>", errUsage)
	}
	idx, err := paragraphArg(args[1])
	if err != nil {
		return err
	}
	svc, sess, done, err := a.openChapter(ctx, args[0])
	if err != nil {
		return err
	}
	defer done()
	if err := svc.SelectParagraph(sess, idx); err != nil {
		return err
	}
	for _, w := range args[3:] {
		if err := svc.AddHighlight(sess, w); err != nil {
			return err
		}
	}
	if err := svc.OpenNotePrompt(sess); err != nil {
		return err
	}
	res, err := svc.AuthorNote(ctx, sess, args[2])
	if err != nil {
		return err
	}
	if !res.Applied {
		fmt.Fprintln(a.out, "Empty note, nothing changed.")
		return nil
	}
	a.tel.Count(telemetry.EventNoteAuthored)
	fmt.Fprintf(a.out, "Added footnote to paragraph %d\n", res.Annotation.Index+1)
	return nil
}

func (a *app) search(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("%w: search requires <dir> and <query>", errUsage)
	}
	h, err := a.openNovel(args[0])
	if err != nil {
		return err
	}
	ix, err := storage.OpenIndex(h)
	if err != nil {
		return err
	}
	defer ix.Close()
	if _, err := ix.Refresh(ctx); err != nil {
		return err
	}
	q := storage.SearchQuery{Text: args[1], Limit: 50}
	if len(args) > 2 {
		q.Kinds = []string{args[2]}
	}
	res, err := ix.Search(ctx, q)
	if err != nil {
		return err
	}
	for _, r := range res {
		fmt.Fprintf(a.out, "%s #%d [%s] %s\n", r.Chapter, r.Index+1, r.Kind, r.Snippet)
	}
	fmt.Fprintf(a.out, "%d match(es)\n", len(res))
	return nil
}

func (a *app) export(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("%w: export requires <dir>", errUsage)
	}
	h, err := a.openNovel(args[0])
	if err != nil {
		return err
	}
	var formats []export.Format
	for _, s := range args[1:] {
		f, err := export.ParseFormat(s)
		if err != nil {
			return fmt.Errorf("%w: %v", errUsage, err)
		}
		formats = append(formats, f)
	}
	written, err := export.ExportNovel(h, export.BatchOptions{
		Formats: formats,
		Pattern: a.cfg.Workspace.ChapterPattern,
		PDF:     export.PDFOptions{FontPath: a.cfg.Export.FontPath},
	})
	for _, p := range written {
		fmt.Fprintln(a.out, "Wrote", p)
	}
	if err != nil {
		return err
	}
	a.tel.Event(telemetry.EventExportWritten, map[string]any{"files": len(written)})
	return nil
}

func (a *app) scrape(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("%w: scrape requires <index-url>", errUsage)
	}
	parent := a.cfg.Workspace.Root
	if len(args) > 1 {
		parent = args[1]
	}
	if parent == "" {
		parent = "."
	}
	sc := a.cfg.Scraper
	s := scrape.New(scrape.Options{
		UserAgent:   sc.UserAgent,
		Delay:       sc.Delay(),
		Concurrency: sc.Concurrency,
		Client:      &http.Client{Timeout: sc.Timeout()},
		Layout:      a.layout(),
	})
	res, err := s.Download(ctx, args[0], parent)
	if res != nil && res.Novel != nil {
		a.ws.Root = res.Novel.Root
	}
	if err != nil {
		return err
	}
	a.tel.Event(telemetry.EventChapterScraped, map[string]any{"chapters": len(res.Written), "empty": len(res.Empty)})
	fmt.Fprintf(a.out, "Imported %q: %d chapter(s) into %s\n", res.Novel.Novel.Title, len(res.Written), res.Novel.Root)
	for _, u := range res.Empty {
		fmt.Fprintln(a.out, "  no text:", u)
	}
	return nil
}

func (a *app) restore(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("%w: restore requires <chapter>", errUsage)
	}
	abs, err := filepath.Abs(args[0])
	if err != nil {
		return err
	}
	text, err := a.store().RestoreLatestBackup(abs)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Restored %s (%d bytes)\n", abs, len(text))
	return nil
}

// history lists the saved translations of a chapter, or prints the newest one.
func (a *app) history(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("%w: history requires <chapter>", errUsage)
	}
	abs, err := filepath.Abs(args[0])
	if err != nil {
		return err
	}
	root := findNovel(abs)
	if root == "" {
		return fmt.Errorf("%s is not inside a novel workspace", abs)
	}
	h, err := a.openNovel(root)
	if err != nil {
		return err
	}
	ix, err := storage.OpenIndex(h)
	if err != nil {
		return err
	}
	defer ix.Close()
	name := ix.ChapterName(abs)

	if len(args) > 1 {
		if args[1] != "latest" {
			return fmt.Errorf("%w: unknown history action %q", errUsage, args[1])
		}
		snap, ok, err := ix.LatestSnapshot(ctx, name)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("no saved translation of %s", name)
		}
		fmt.Fprintln(a.out, snap.Text)
		return nil
	}
	list, err := ix.ListSnapshots(ctx, name, 0)
	if err != nil {
		return err
	}
	for _, snap := range list {
		fmt.Fprintf(a.out, "  %s  %4d paragraph(s)\n", snap.TS.Local().Format(time.DateTime), len(align.Split(snap.Text)))
	}
	fmt.Fprintf(a.out, "%d snapshot(s) of %s\n", len(list), name)
	return nil
}

// recoverDraft applies a pending autosave and saves it, or discards it.
func (a *app) recoverDraft(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("%w: recover requires <chapter>", errUsage)
	}
	discard := len(args) > 1 && args[1] == "discard"
	if len(args) > 1 && !discard {
		return fmt.Errorf("%w: unknown recover action %q", errUsage, args[1])
	}
	svc, sess, done, err := a.openChapter(ctx, args[0])
	if err != nil {
		return err
	}
	defer done()
	if !sess.View().PendingAutosave {
		fmt.Fprintln(a.out, "No autosave pending.")
		return nil
	}
	if discard {
		if err := svc.DiscardAutosave(ctx, sess); err != nil {
			return err
		}
		fmt.Fprintln(a.out, "Autosave discarded.")
		return nil
	}
	if _, err := svc.RecoverAutosave(ctx, sess); err != nil {
		return err
	}
	if err := svc.Save(ctx, sess); err != nil {
		return err
	}
	a.tel.Count(telemetry.EventSessionSaved)
	fmt.Fprintf(a.out, "Recovered autosave (%d/%d translated)\n", sess.TranslatedCount(), sess.Len())
	return nil
}

func (a *app) reindex(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("%w: reindex requires <dir>", errUsage)
	}
	h, err := a.openNovel(args[0])
	if err != nil {
		return err
	}
	rebuilt, err := storage.DetectAndRebuildIndex(ctx, h)
	if err != nil {
		return err
	}
	ix, err := storage.OpenIndex(h)
	if err != nil {
		return err
	}
	defer ix.Close()
	st, err := ix.Refresh(ctx)
	if err != nil {
		return err
	}
	if rebuilt {
		fmt.Fprintln(a.out, "Index was damaged and has been rebuilt.")
	}
	fmt.Fprintf(a.out, "Indexed %d, unchanged %d, removed %d chapter(s)\n", st.Indexed, st.Skipped, st.Removed)
	return nil
}

func (a *app) serve(ctx context.Context, args []string) error {
	var h *storage.NovelHandle
	if len(args) > 0 || a.cfg.Workspace.Root != "" {
		var dir string
		if len(args) > 0 {
			dir = args[0]
		}
		var err error
		if h, err = a.openNovel(dir); err != nil {
			return err
		}
	}
	svc, ix, done := a.newService(h)
	defer done()
	var (
		search  server.Searcher
		history server.History
	)
	if ix != nil {
		search, history = ix, ix
	}
	root := ""
	if h != nil {
		root = h.SourceDir()
	} else if wd, err := os.Getwd(); err == nil {
		root = wd
	}
	if a.token == "" {
		a.log.Warn("serving without a token; set one with 'gotranslator token set'")
	}
	go autosaveLoop(ctx, svc, a.log)
	srv := server.New(svc, server.Options{
		Addr:      a.cfg.Server.Addr,
		Token:     a.token,
		Timeout:   a.cfg.Server.Timeout(),
		Root:      root,
		Search:    search,
		History:   history,
		Telemetry: a.tel,
	})
	fmt.Fprintln(a.out, "Listening on", a.cfg.Server.Addr)
	return srv.Run(ctx)
}

func autosaveLoop(ctx context.Context, svc *editor.Service, l *slog.Logger) {
	t := time.NewTicker(autosaveEvery)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			paths, err := svc.AutosaveAll()
			if err != nil {
				l.Warn("autosave failed", slog.Any("err", err))
			}
			if len(paths) > 0 {
				l.Debug("autosaved", slog.Int("sessions", len(paths)))
			}
		}
	}
}

func (a *app) tokenCmd(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("%w: token requires set <value> or clear", errUsage)
	}
	switch args[0] {
	case "set":
		if len(args) < 2 {
			return fmt.Errorf("%w: token set requires <value>", errUsage)
		}
		if err := config.SetToken(args[1]); err != nil {
			return err
		}
		fmt.Fprintln(a.out, "Token stored in the OS keychain.")
	case "clear":
		if err := config.ClearToken(); err != nil {
			return err
		}
		fmt.Fprintln(a.out, "Token removed.")
	default:
		return fmt.Errorf("%w: unknown token action %q", errUsage, args[0])
	}
	return nil
}
