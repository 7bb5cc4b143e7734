/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package crash turns a panic into a crash report and an autosave of the
// translations that were still unsaved.
package crash

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"strings"
	"time"

	applog "gotranslator/internal/log"
	"gotranslator/internal/storage"
	"gotranslator/internal/telemetry"
	"gotranslator/internal/version"
)

// exitFn is swapped in tests so Recover does not end the test process.
var exitFn = os.Exit

// Autosaver parks unsaved work; *editor.Service implements it.
type Autosaver interface {
	AutosaveAll() ([]string, error)
}

// Workspace describes what Recover can rescue. Either field may be empty.
type Workspace struct {
	Root     string
	Sessions Autosaver
}

// Recover captures a panic, logs it with its stack, autosaves open sessions,
// writes a report file and exits with code 2.
//
// Usage: defer crash.Recover(ws)
func Recover(ws *Workspace) {
	r := recover()
	if r == nil {
		return
	}
	l := applog.WithComponent("crash")
	stack := debug.Stack()
	l.Error("panic recovered", slog.Any("panic", r), slog.String("stack", string(stack)))

	var saved []string
	if ws != nil && ws.Sessions != nil {
		paths, err := ws.Sessions.AutosaveAll()
		if err != nil {
			l.Error("autosave failed", slog.Any("err", err))
		}
		saved = paths
		for _, p := range paths {
			l.Info("unsaved translation parked", slog.String("path", p))
		}
	}

	reportPath, err := writeReport(ws, r, stack, saved)
	if err != nil {
		l.Error("crash report not written", slog.Any("err", err))
	}
	if _, err := fmt.Fprintf(os.Stderr, "A fatal error occurred. A crash report was saved to: %s\n", reportPath); err != nil {
		l.Error("failed to write crash message to stderr", slog.Any("err", err))
	}
	if len(saved) > 0 {
		_, _ = fmt.Fprintf(os.Stderr, "Unsaved translations were written to:\n  %s\n", strings.Join(saved, "\n  "))
	}
	_, _ = fmt.Fprintf(os.Stderr, "Version: %s\nOS/Arch: %s/%s\n", version.String(), runtime.GOOS, runtime.GOARCH)
	exitFn(2)
}

func reportDir(ws *Workspace) string {
	if ws == nil || ws.Root == "" {
		return os.TempDir()
	}
	dir := filepath.Join(ws.Root, storage.BackupsDirName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return os.TempDir()
	}
	return dir
}

func writeReport(ws *Workspace, panicVal any, stack []byte, autosaves []string) (string, error) {
	now := time.Now()
	path := filepath.Join(reportDir(ws), fmt.Sprintf("crash-%s.log", now.Format("20060102-150405")))

	var buf bytes.Buffer
	_, _ = fmt.Fprintf(&buf, "GoTranslator Crash Report\n")
	_, _ = fmt.Fprintf(&buf, "Timestamp: %s\n", now.Format(time.RFC3339))
	_, _ = fmt.Fprintf(&buf, "Version: %s\n", version.String())
	_, _ = fmt.Fprintf(&buf, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	if ws != nil && ws.Root != "" {
		_, _ = fmt.Fprintf(&buf, "Novel: %s\n", ws.Root)
	}
	for _, p := range autosaves {
		_, _ = fmt.Fprintf(&buf, "Autosave: %s\n", p)
	}
	_, _ = fmt.Fprintf(&buf, "\nPanic: %v\n\n", panicVal)
	_, _ = fmt.Fprintf(&buf, "Stack:\n%s\n", string(stack))

	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return path, err
	}
	defer func() {
		if err := f.Close(); err != nil {
			applog.WithComponent("crash").Error("failed to close crash report file", slog.Any("err", err), slog.String("path", path))
		}
	}()
	if _, err := f.Write(buf.Bytes()); err != nil {
		return path, err
	}
	_ = f.Sync()

	// the report carries file paths and a stack, never novel text
	telemetry.UploadCrash(buf.Bytes())
	return path, nil
}
