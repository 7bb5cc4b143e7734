/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package crash

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gotranslator/internal/storage"
)

type stubSessions struct {
	paths []string
	err   error
	calls int
}

func (s *stubSessions) AutosaveAll() ([]string, error) {
	s.calls++
	return s.paths, s.err
}

func silenceStderr(t *testing.T) {
	t.Helper()
	old := os.Stderr
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	os.Stderr = w
	done := make(chan struct{})
	go func() { _, _ = io.Copy(io.Discard, r); close(done) }()
	t.Cleanup(func() {
		_ = w.Close()
		<-done
		os.Stderr = old
	})
}

func trapExit(t *testing.T) *int {
	t.Helper()
	code := -1
	old := exitFn
	exitFn = func(c int) { code = c }
	t.Cleanup(func() { exitFn = old })
	return &code
}

func findReport(t *testing.T, dir string) string {
	t.Helper()
	files, _ := os.ReadDir(dir)
	for _, f := range files {
		if strings.HasPrefix(f.Name(), "crash-") && strings.HasSuffix(f.Name(), ".log") {
			return filepath.Join(dir, f.Name())
		}
	}
	t.Fatalf("no crash report in %s", dir)
	return ""
}

func TestWriteReportCreatesFileInTemp(t *testing.T) {
	path, err := writeReport(nil, "boom", []byte("stacktrace"), nil)
	if err != nil {
		t.Fatalf("writeReport error: %v", err)
	}
	t.Cleanup(func() { _ = os.Remove(path) })
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	s := string(b)
	if !strings.Contains(s, "GoTranslator Crash Report") || !strings.Contains(s, "Panic: boom") {
		t.Fatalf("report content: %s", s)
	}
}

func TestRecoverAutosavesAndWritesReportUnderBackups(t *testing.T) {
	silenceStderr(t)
	code := trapExit(t)
	root := t.TempDir()
	sessions := &stubSessions{paths: []string{filepath.Join(root, "english", "Chapter_001.txt.autosave")}}

	func() {
		defer Recover(&Workspace{Root: root, Sessions: sessions})
		panic("kaboom")
	}()

	if *code != 2 {
		t.Fatalf("exit code = %d, want 2", *code)
	}
	if sessions.calls != 1 {
		t.Fatalf("AutosaveAll calls = %d", sessions.calls)
	}
	b, err := os.ReadFile(findReport(t, filepath.Join(root, storage.BackupsDirName)))
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	s := string(b)
	if !strings.Contains(s, "Panic: kaboom") || !strings.Contains(s, "Chapter_001.txt.autosave") || !strings.Contains(s, "Novel: "+root) {
		t.Fatalf("report content: %s", s)
	}
}

func TestRecoverStillReportsWhenAutosaveFails(t *testing.T) {
	silenceStderr(t)
	code := trapExit(t)
	root := t.TempDir()

	func() {
		defer Recover(&Workspace{Root: root, Sessions: &stubSessions{err: errors.New("disk full")}})
		panic("boom")
	}()

	if *code != 2 {
		t.Fatalf("exit code = %d", *code)
	}
	findReport(t, filepath.Join(root, storage.BackupsDirName))
}

func TestRecoverWithoutPanicDoesNothing(t *testing.T) {
	code := trapExit(t)
	sessions := &stubSessions{}
	func() {
		defer Recover(&Workspace{Sessions: sessions})
	}()
	if *code != -1 || sessions.calls != 0 {
		t.Fatalf("Recover acted without a panic: code=%d calls=%d", *code, sessions.calls)
	}
}
