/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package editor

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"gotranslator/internal/storage"
)

// memPort is an in-memory storage.Port with per-operation failure injection.
type memPort struct {
	mu     sync.Mutex
	docs   map[string]string
	trans  map[string]string
	notes  map[string]string
	failOn map[string]bool
	calls  []string
}

var _ storage.Port = (*memPort)(nil)

func newMemPort() *memPort {
	return &memPort{
		docs:   map[string]string{},
		trans:  map[string]string{},
		notes:  map[string]string{},
		failOn: map[string]bool{},
	}
}

func (m *memPort) fail(op, path string) error {
	m.calls = append(m.calls, op)
	if m.failOn[op] {
		return &storage.IOError{Op: op, Path: path, Err: errors.New("disk full")}
	}
	return nil
}

func (m *memPort) ReadDocument(path string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("read document", path); err != nil {
		return "", err
	}
	d, ok := m.docs[path]
	if !ok {
		return "", &storage.IOError{Op: "read document", Path: path, Err: fmt.Errorf("no such file")}
	}
	return d, nil
}

func (m *memPort) ReadTranslation(path string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("read translation", path); err != nil {
		return "", false, err
	}
	t, ok := m.trans[path]
	return t, ok, nil
}

func (m *memPort) WriteTranslation(path, content string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("write translation", path); err != nil {
		return err
	}
	m.trans[path] = content
	return nil
}

func (m *memPort) WriteDocument(path, content string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("write document", path); err != nil {
		return err
	}
	m.docs[path] = content
	return nil
}

func (m *memPort) AppendNote(path, entry string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("append note", path); err != nil {
		return err
	}
	m.notes[path] += entry
	return nil
}

type fakeRecorder struct {
	saves     []string
	refreshes int
	err       error
}

func (r *fakeRecorder) RecordSave(_ context.Context, _ string, translation string) error {
	r.saves = append(r.saves, translation)
	return r.err
}

func (r *fakeRecorder) RefreshChapter(context.Context, string) (bool, error) {
	r.refreshes++
	return true, r.err
}

// autosavePort adds autosave support to memPort.
type autosavePort struct {
	*memPort
	drafts map[string]string
}

func (a *autosavePort) WriteAutosave(path, content string) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.fail("write autosave", path); err != nil {
		return "", err
	}
	a.drafts[path] = content
	return path + ".autosave", nil
}

func (a *autosavePort) ReadAutosave(path string) (string, bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.fail("read autosave", path); err != nil {
		return "", false, err
	}
	d, ok := a.drafts[path]
	return d, ok, nil
}

func (a *autosavePort) DiscardAutosave(path string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.fail("discard autosave", path); err != nil {
		return err
	}
	delete(a.drafts, path)
	return nil
}
