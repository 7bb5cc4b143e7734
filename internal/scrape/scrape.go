/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package scrape imports a web novel from a Syosetu-style site into a novel
// workspace: it walks the paginated chapter index, downloads every chapter body
// and writes the chapters as raw/Chapter_NNN.txt.
package scrape

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/sync/errgroup"

	"gotranslator/internal/domain"
	applog "gotranslator/internal/log"
	"gotranslator/internal/storage"
)

// NextLabel is the anchor text of the pagination link on chapter index pages.
const NextLabel = "次へ"

// DefaultUserAgent mimics a desktop browser; some sites reject unknown agents.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/115.0.0.0 Safari/537.36"

// bodySelector matches the chapter text container across site revisions.
const bodySelector = "div.novel_view, div#novel_honbun, div.p-novel__body"

var (
	// ErrHTTPStatus is returned for non-2xx responses.
	ErrHTTPStatus = errors.New("unexpected http status")
	// ErrNoChapters is returned when an index lists no chapter links.
	ErrNoChapters = errors.New("no chapter links found")
)

// Options configures a Scraper. Zero values select the defaults.
type Options struct {
	UserAgent   string
	Delay       time.Duration // pause between two requests, default 1s
	Concurrency int           // parallel chapter downloads, default 2
	Client      *http.Client
	Layout      storage.Layout
}

// Scraper downloads novels. It is safe for concurrent use.
type Scraper struct {
	opts Options
	pace *pacer
	log  *slog.Logger
}

// New returns a Scraper with defaults filled in.
func New(opts Options) *Scraper {
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.Delay < 0 {
		opts.Delay = 0
	} else if opts.Delay == 0 {
		opts.Delay = time.Second
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 2
	}
	if opts.Client == nil {
		opts.Client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Scraper{opts: opts, pace: &pacer{delay: opts.Delay}, log: applog.WithComponent("scrape")}
}

// Index is what the chapter index pages of a novel list.
type Index struct {
	Title string
	Links []string
}

// Result reports a finished download.
type Result struct {
	Novel   *storage.NovelHandle
	Written []string // chapter files in chapter order
	Empty   []string // chapter URLs without a novel body
}

// Index walks the chapter index starting at indexURL, following NextLabel links.
// Links are kept in page order without duplicates. Query links and the index
// itself are skipped.
func (s *Scraper) Index(ctx context.Context, indexURL string) (Index, error) {
	base, err := url.Parse(indexURL)
	if err != nil {
		return Index{}, fmt.Errorf("parse index url: %w", err)
	}
	id := novelID(base)
	var out Index
	seen := map[string]bool{}
	visited := map[string]bool{}
	next := base.String()
	for next != "" && !visited[next] {
		visited[next] = true
		doc, err := s.fetch(ctx, next)
		if err != nil {
			return Index{}, err
		}
		if out.Title == "" {
			out.Title = strings.TrimSpace(doc.Find("title").First().Text())
		}
		doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
			href, _ := a.Attr("href")
			if !isChapterLink(href, id) {
				return
			}
			full, ok := resolve(base, href)
			if !ok || seen[full] {
				return
			}
			seen[full] = true
			out.Links = append(out.Links, full)
		})
		next = ""
		doc.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
			if strings.TrimSpace(a.Text()) != NextLabel {
				return true
			}
			href, _ := a.Attr("href")
			if full, ok := resolve(base, href); ok {
				next = full
			}
			return false
		})
	}
	s.log.Info("chapter index read", slog.String("url", indexURL), slog.Int("chapters", len(out.Links)), slog.Int("pages", len(visited)))
	return out, nil
}

// Chapter downloads one chapter and returns its paragraphs joined with "\n".
// ok is false when the page has no novel body.
func (s *Scraper) Chapter(ctx context.Context, chapterURL string) (text string, ok bool, err error) {
	doc, err := s.fetch(ctx, chapterURL)
	if err != nil {
		return "", false, err
	}
	body := doc.Find(bodySelector).First()
	if body.Length() == 0 {
		return "", false, nil
	}
	var paras []string
	body.Find("p").Each(func(_ int, p *goquery.Selection) {
		paras = append(paras, p.Text())
	})
	return strings.Join(paras, "\n"), true, nil
}

// Download scrapes the novel at indexURL into a new workspace under parentDir,
// named after the sanitized novel title. Chapters are numbered by their position
// in the index; chapters without a body leave a gap in the numbering.
func (s *Scraper) Download(ctx context.Context, indexURL, parentDir string) (*Result, error) {
	idx, err := s.Index(ctx, indexURL)
	if err != nil {
		return nil, err
	}
	if len(idx.Links) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoChapters, indexURL)
	}
	root := filepath.Join(parentDir, SanitizeName(idx.Title))
	h, err := storage.InitNovel(root, domain.Novel{Title: titleOr(idx.Title), SourceURL: indexURL}, s.opts.Layout)
	if err != nil {
		return nil, err
	}
	store := h.Store()

	files := make([]string, len(idx.Links))
	empty := make([]bool, len(idx.Links))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Concurrency)
	for i, link := range idx.Links {
		g.Go(func() error {
			text, ok, err := s.Chapter(gctx, link)
			if err != nil {
				return err
			}
			if !ok {
				empty[i] = true
				s.log.Warn("chapter has no body", slog.String("url", link))
				return nil
			}
			p := filepath.Join(h.SourceDir(), ChapterFileName(i+1))
			if err := store.WriteDocument(p, text); err != nil {
				return err
			}
			files[i] = p
			s.log.Debug("chapter written", slog.String("path", p), slog.Int("bytes", len(text)))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	res := &Result{Novel: h}
	for i := range idx.Links {
		switch {
		case empty[i]:
			res.Empty = append(res.Empty, idx.Links[i])
		case files[i] != "":
			res.Written = append(res.Written, files[i])
		}
	}
	h.Novel.Chapters = len(res.Written)
	if err := storage.SaveNovel(h); err != nil {
		return nil, err
	}
	s.log.Info("novel downloaded", slog.String("root", root), slog.Int("chapters", len(res.Written)), slog.Int("empty", len(res.Empty)))
	return res, nil
}

// ChapterFileName returns the file name used for the n-th chapter (1-based).
func ChapterFileName(n int) string { return fmt.Sprintf("Chapter_%03d.txt", n) }

// SanitizeName keeps letters, digits and "._- " and trims trailing spaces.
// An empty result becomes "novel".
func SanitizeName(name string) string {
	var b strings.Builder
	for _, r := range name {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || strings.ContainsRune("._- ", r) {
			b.WriteRune(r)
		}
	}
	out := strings.TrimRight(b.String(), " ")
	if out == "" || out == "." || out == ".." {
		return "novel"
	}
	return out
}

func titleOr(t string) string {
	if strings.TrimSpace(t) == "" {
		return "Untitled"
	}
	return t
}

func (s *Scraper) fetch(ctx context.Context, u string) (*goquery.Document, error) {
	if err := s.pace.Wait(ctx); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", s.opts.UserAgent)
	resp, err := s.opts.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", u, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("%w: GET %s: %s", ErrHTTPStatus, u, resp.Status)
	}
	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", u, err)
	}
	return doc, nil
}

// novelID is the last non-empty path segment of the index URL, e.g. "n7505bx".
func novelID(u *url.URL) string {
	return path.Base(strings.TrimRight(u.Path, "/"))
}

// isChapterLink reports whether href points below the novel but not at its index
// and carries no query in its last segment.
func isChapterLink(href, id string) bool {
	if id == "" || id == "." || id == "/" || !strings.Contains(href, id) {
		return false
	}
	if strings.HasSuffix(href, id+"/") {
		return false
	}
	last := href[strings.LastIndex(href, "/")+1:]
	return !strings.Contains(last, "?")
}

func resolve(base *url.URL, href string) (string, bool) {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return "", false
	}
	return base.ResolveReference(ref).String(), true
}

// pacer spaces requests at least delay apart across goroutines.
type pacer struct {
	mu    sync.Mutex
	delay time.Duration
	next  time.Time
}

// Wait blocks until the next request slot or until ctx is done.
func (p *pacer) Wait(ctx context.Context) error {
	p.mu.Lock()
	now := time.Now()
	at := p.next
	if at.Before(now) {
		at = now
	}
	p.next = at.Add(p.delay)
	p.mu.Unlock()

	d := time.Until(at)
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
