/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package scrape

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"gotranslator/internal/storage"
)

type site struct {
	hits   atomic.Int32
	agents atomic.Value
}

func (s *site) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/n1234ab/", func(w http.ResponseWriter, r *http.Request) {
		s.hits.Add(1)
		s.agents.Store(r.UserAgent())
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		switch {
		case r.URL.Path == "/n1234ab/" && r.URL.Query().Get("p") == "":
			fmt.Fprint(w, `<html><head><title>吾輩は猫: である?</title></head><body>
<a href="/n1234ab/">目次</a>
<a href="/n1234ab/1/">第一話</a>
<a href="/n1234ab/2/">第二話</a>
<a href="/n1234ab/1/">第一話 again</a>
<a href="/other/9/">unrelated</a>
<a href="/n1234ab/?p=2">次へ</a>
</body></html>`)
		case r.URL.Path == "/n1234ab/":
			fmt.Fprint(w, `<html><head><title>page 2</title></head><body>
<a href="/n1234ab/3/">第三話</a>
<a href="/n1234ab/?p=1">前へ</a>
</body></html>`)
		case r.URL.Path == "/n1234ab/1/":
			fmt.Fprint(w, `<html><body><div class="novel_view"><p>吾輩は猫である。</p><p></p><p>名前はまだ無い。</p></div></body></html>`)
		case r.URL.Path == "/n1234ab/2/":
			fmt.Fprint(w, `<html><body><div id="novel_honbun"><p>どこで生れたか</p></div></body></html>`)
		case r.URL.Path == "/n1234ab/3/":
			fmt.Fprint(w, `<html><body><p>no body container here</p></body></html>`)
		default:
			http.NotFound(w, r)
		}
	})
	return mux
}

func newSite(t *testing.T) (*site, *httptest.Server) {
	t.Helper()
	s := &site{}
	srv := httptest.NewServer(s.handler())
	t.Cleanup(srv.Close)
	return s, srv
}

func fastScraper() *Scraper {
	return New(Options{Delay: -1, Concurrency: 2, UserAgent: "gtr-test"})
}

func TestIndexFollowsPaginationAndDedupes(t *testing.T) {
	site, srv := newSite(t)
	idx, err := fastScraper().Index(context.Background(), srv.URL+"/n1234ab/")
	if err != nil {
		t.Fatalf("Index error: %v", err)
	}
	want := []string{srv.URL + "/n1234ab/1/", srv.URL + "/n1234ab/2/", srv.URL + "/n1234ab/3/"}
	if len(idx.Links) != len(want) {
		t.Fatalf("links = %v", idx.Links)
	}
	for i := range want {
		if idx.Links[i] != want[i] {
			t.Fatalf("links[%d] = %s, want %s", i, idx.Links[i], want[i])
		}
	}
	if idx.Title != "吾輩は猫: である?" {
		t.Fatalf("title = %q", idx.Title)
	}
	if site.agents.Load() != "gtr-test" {
		t.Fatalf("user agent = %v", site.agents.Load())
	}
}

func TestChapterJoinsParagraphs(t *testing.T) {
	_, srv := newSite(t)
	s := fastScraper()
	text, ok, err := s.Chapter(context.Background(), srv.URL+"/n1234ab/1/")
	if err != nil || !ok {
		t.Fatalf("Chapter = %v, %v", ok, err)
	}
	if text != "吾輩は猫である。\n\n名前はまだ無い。" {
		t.Fatalf("text = %q", text)
	}
	if _, ok, err := s.Chapter(context.Background(), srv.URL+"/n1234ab/3/"); err != nil || ok {
		t.Fatalf("bodyless chapter = %v, %v", ok, err)
	}
}

func TestDownloadWritesWorkspace(t *testing.T) {
	_, srv := newSite(t)
	parent := t.TempDir()
	res, err := fastScraper().Download(context.Background(), srv.URL+"/n1234ab/", parent)
	if err != nil {
		t.Fatalf("Download error: %v", err)
	}
	root := filepath.Join(parent, "吾輩は猫 である")
	if res.Novel.Root != root {
		t.Fatalf("root = %s, want %s", res.Novel.Root, root)
	}
	if len(res.Written) != 2 || len(res.Empty) != 1 {
		t.Fatalf("written=%v empty=%v", res.Written, res.Empty)
	}
	b, err := os.ReadFile(filepath.Join(root, "raw", "Chapter_002.txt"))
	if err != nil || string(b) != "どこで生れたか" {
		t.Fatalf("Chapter_002 = %q, %v", b, err)
	}
	if _, err := os.Stat(filepath.Join(root, "raw", "Chapter_003.txt")); !os.IsNotExist(err) {
		t.Fatalf("bodyless chapter written: %v", err)
	}
	for _, d := range []string{"english", "notes"} {
		if fi, err := os.Stat(filepath.Join(root, d)); err != nil || !fi.IsDir() {
			t.Fatalf("missing %s dir: %v", d, err)
		}
	}
	h, err := storage.OpenNovel(root, storage.DefaultLayout())
	if err != nil {
		t.Fatalf("OpenNovel: %v", err)
	}
	if h.Novel.Chapters != 2 || h.Novel.SourceURL != srv.URL+"/n1234ab/" || h.Novel.SourceLang != "ja" {
		t.Fatalf("manifest = %+v", h.Novel)
	}
}

func TestDownloadPropagatesHTTPErrors(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()
	_, err := fastScraper().Download(context.Background(), srv.URL+"/n0000zz/", t.TempDir())
	if !errors.Is(err, ErrHTTPStatus) {
		t.Fatalf("err = %v, want ErrHTTPStatus", err)
	}
}

func TestDownloadWithoutChapters(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><head><title>empty</title></head><body></body></html>`)
	}))
	defer srv.Close()
	_, err := fastScraper().Download(context.Background(), srv.URL+"/n0000zz/", t.TempDir())
	if !errors.Is(err, ErrNoChapters) {
		t.Fatalf("err = %v, want ErrNoChapters", err)
	}
}

func TestCancelledContextStopsScrape(t *testing.T) {
	_, srv := newSite(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := fastScraper().Index(ctx, srv.URL+"/n1234ab/"); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestPacerSpacesRequests(t *testing.T) {
	p := &pacer{delay: 30 * time.Millisecond}
	start := time.Now()
	for i := 0; i < 3; i++ {
		if err := p.Wait(context.Background()); err != nil {
			t.Fatalf("Wait: %v", err)
		}
	}
	if el := time.Since(start); el < 60*time.Millisecond {
		t.Fatalf("three requests took %v, want >= 60ms", el)
	}
}

func TestSanitizeNameAndLinks(t *testing.T) {
	cases := map[string]string{
		"a/b\\c":      "abc",
		"  ":          "novel",
		"..":          "novel",
		"v1.0 final ": "v1.0 final",
		"x: y?":       "x y",
	}
	for in, want := range cases {
		if got := SanitizeName(in); got != want {
			t.Errorf("SanitizeName(%q) = %q, want %q", in, got, want)
		}
	}
	if isChapterLink("/n1/?p=2", "n1") || isChapterLink("/n1/", "n1") || !isChapterLink("/n1/5/", "n1") {
		t.Fatalf("isChapterLink misclassifies")
	}
	if !strings.HasPrefix(ChapterFileName(7), "Chapter_007") {
		t.Fatalf("ChapterFileName(7) = %s", ChapterFileName(7))
	}
}
