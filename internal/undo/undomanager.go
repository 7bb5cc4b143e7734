/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package undo keeps in-memory undo/redo history of translation edits, one stack
// per paragraph index.
package undo

import (
	"sync"
	"time"
)

// Value is the translation of one paragraph at a point in time.
// Present is false for an untranslated paragraph.
type Value struct {
	Text    string
	Present bool
}

// Change records a translation edit of one paragraph.
type Change struct {
	Paragraph int
	Before    Value
	After     Value
	TS        time.Time
}

func (c Change) size() int { return len(c.Before.Text) + len(c.After.Text) }

// Config controls memory and depth caps and coalescing behavior.
type Config struct {
	// MaxBytes is a soft cap; older entries are pruned when exceeded.
	MaxBytes int
	// MaxPerParagraph limits the changes kept per paragraph (0 means unlimited).
	MaxPerParagraph int
	// MinInterval coalesces changes of the same paragraph recorded within the interval:
	// the earlier Before is kept and the newer After replaces the last entry.
	MinInterval time.Duration
}

// Manager provides an undo/redo stack per paragraph with memory safeguards.
// It is safe for concurrent use.
type Manager struct {
	cfg        Config
	mu         sync.Mutex
	undo       map[int][]Change
	redo       map[int][]Change
	totalBytes int
}

func NewManager(cfg Config) *Manager {
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = 4 * 1024 * 1024
	}
	if cfg.MinInterval < 0 {
		cfg.MinInterval = 0
	}
	return &Manager{cfg: cfg, undo: make(map[int][]Change), redo: make(map[int][]Change)}
}

// Record pushes a change and clears the redo stack of its paragraph.
// Changes whose Before equals After are ignored.
func (m *Manager) Record(c Change) {
	if c.Before == c.After {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p := c.Paragraph
	stack := m.undo[p]
	m.redo[p] = nil
	if n := len(stack); n > 0 && m.cfg.MinInterval > 0 {
		last := stack[n-1]
		if c.TS.Sub(last.TS) < m.cfg.MinInterval {
			merged := Change{Paragraph: p, Before: last.Before, After: c.After, TS: c.TS}
			m.totalBytes += merged.size() - last.size()
			if merged.Before == merged.After {
				m.totalBytes -= merged.size()
				m.undo[p] = stack[:n-1]
				return
			}
			stack[n-1] = merged
			m.enforceCapsLocked(p)
			return
		}
	}
	m.undo[p] = append(stack, c)
	m.totalBytes += c.size()
	m.enforceCapsLocked(p)
}

// Undo pops the newest change of a paragraph and moves it to redo.
// The caller restores c.Before.
func (m *Manager) Undo(paragraph int) (Change, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stack := m.undo[paragraph]
	if len(stack) == 0 {
		return Change{}, false
	}
	c := stack[len(stack)-1]
	m.undo[paragraph] = stack[:len(stack)-1]
	m.totalBytes -= c.size()
	m.redo[paragraph] = append(m.redo[paragraph], c)
	return c, true
}

// Redo pops from redo and pushes back to undo. The caller reapplies c.After.
func (m *Manager) Redo(paragraph int) (Change, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.redo[paragraph]
	if len(r) == 0 {
		return Change{}, false
	}
	c := r[len(r)-1]
	m.redo[paragraph] = r[:len(r)-1]
	m.undo[paragraph] = append(m.undo[paragraph], c)
	m.totalBytes += c.size()
	m.enforceCapsLocked(paragraph)
	return c, true
}

// CanUndo reports whether the paragraph has history.
func (m *Manager) CanUndo(paragraph int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.undo[paragraph]) > 0
}

// Clear drops all history, e.g. after the source paragraphs were renumbered.
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.undo = make(map[int][]Change)
	m.redo = make(map[int][]Change)
	m.totalBytes = 0
}

// Stats returns current sizes for diagnostics.
func (m *Manager) Stats() (totalBytes int, paragraphs int, changes int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, v := range m.undo {
		if len(v) > 0 {
			paragraphs++
			changes += len(v)
		}
	}
	return m.totalBytes, paragraphs, changes
}

func (m *Manager) enforceCapsLocked(paragraph int) {
	if m.cfg.MaxPerParagraph > 0 {
		stack := m.undo[paragraph]
		if len(stack) > m.cfg.MaxPerParagraph {
			toDrop := len(stack) - m.cfg.MaxPerParagraph
			for i := 0; i < toDrop; i++ {
				m.totalBytes -= stack[i].size()
			}
			m.undo[paragraph] = append([]Change{}, stack[toDrop:]...)
		}
	}
	// prune oldest across all paragraphs
	for m.totalBytes > m.cfg.MaxBytes {
		oldest := -1
		var oldestTS time.Time
		for p, stack := range m.undo {
			if len(stack) == 0 {
				continue
			}
			if oldest == -1 || stack[0].TS.Before(oldestTS) {
				oldest = p
				oldestTS = stack[0].TS
			}
		}
		if oldest == -1 {
			break
		}
		stack := m.undo[oldest]
		m.totalBytes -= stack[0].size()
		m.undo[oldest] = stack[1:]
		if len(m.undo[oldest]) == 0 {
			delete(m.undo, oldest)
		}
	}
}
