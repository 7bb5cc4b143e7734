/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package align holds the paragraph-level alignment between a source document and
// its translation, plus footnoted annotations on the source.
//
// All operations are synchronous computations over memory; nothing here touches
// storage. A Document is owned by a single caller and is not safe for concurrent use.
package align

import "strings"

// State is the lifecycle of an open document.
type State int

const (
	Unloaded State = iota
	Loaded
	Dirty
	// Saved is clean, equivalent to Loaded.
	Saved
)

func (s State) String() string {
	switch s {
	case Unloaded:
		return "unloaded"
	case Loaded:
		return "loaded"
	case Dirty:
		return "dirty"
	case Saved:
		return "saved"
	default:
		return "unknown"
	}
}

// Document is the aligned pair of paragraph sequences.
// The translation sequence never extends past the source sequence.
type Document struct {
	source      []string
	translation []string
	translated  []bool
	display     []Display
	state       State
}

// Load splits source and translation into paragraphs and aligns them by index.
// An empty translation (or a missing translation file) leaves every index
// untranslated, as does an empty translation paragraph. Translation paragraphs
// past the end of the source are dropped.
func Load(source, translation string) (*Document, error) {
	src, err := SplitChecked(source)
	if err != nil {
		return nil, err
	}
	var tr []string
	if translation != "" {
		if tr, err = SplitChecked(translation); err != nil {
			return nil, err
		}
	}
	d := &Document{
		source:      src,
		translation: make([]string, len(src)),
		translated:  make([]bool, len(src)),
		display:     make([]Display, len(src)),
		state:       Loaded,
	}
	for i := range src {
		if i < len(tr) && tr[i] != "" {
			d.translation[i] = tr[i]
			d.translated[i] = true
			d.display[i] = RenderedText(tr[i])
			continue
		}
		d.display[i] = EditingText("")
	}
	return d, nil
}

// Len returns the number of source paragraphs.
func (d *Document) Len() int { return len(d.source) }

// State returns the lifecycle state.
func (d *Document) State() State { return d.state }

// IsDirty reports unsaved in-memory changes.
func (d *Document) IsDirty() bool { return d.state == Dirty }

// MarkSaved records a successful persistence; the document is clean again.
func (d *Document) MarkSaved() {
	if d.state != Unloaded {
		d.state = Saved
	}
}

// Source returns the source paragraph at index.
func (d *Document) Source(index int) (string, error) {
	if err := checkIndex(index, len(d.source)); err != nil {
		return "", err
	}
	return d.source[index], nil
}

// SourceParagraphs returns a copy of the source paragraph sequence.
func (d *Document) SourceParagraphs() []string {
	return append([]string(nil), d.source...)
}

// SourceText is the source as it would be stored on disk.
func (d *Document) SourceText() string { return Join(d.source) }

// Translation returns the translation at index and whether one exists.
func (d *Document) Translation(index int) (string, bool) {
	if index < 0 || index >= len(d.source) {
		return "", false
	}
	return d.translation[index], d.translated[index]
}

// TranslatedCount returns the number of translated indices.
func (d *Document) TranslatedCount() int {
	n := 0
	for _, ok := range d.translated {
		if ok {
			n++
		}
	}
	return n
}

// Display returns the display state of the translation entry at index.
func (d *Document) Display(index int) (Display, error) {
	if err := checkIndex(index, len(d.source)); err != nil {
		return Display{}, err
	}
	return d.display[index], nil
}

// UpdateTranslation sets or overwrites the translation at index and shows it rendered.
func (d *Document) UpdateTranslation(index int, text string) error {
	if err := checkIndex(index, len(d.source)); err != nil {
		return err
	}
	d.translation[index] = text
	d.translated[index] = true
	d.display[index] = RenderedText(text)
	d.state = Dirty
	return nil
}

// ClearTranslation marks index untranslated and shows an empty editing box.
func (d *Document) ClearTranslation(index int) error {
	if err := checkIndex(index, len(d.source)); err != nil {
		return err
	}
	if !d.translated[index] && d.display[index] == EditingText("") {
		return nil
	}
	d.translation[index] = ""
	d.translated[index] = false
	d.display[index] = EditingText("")
	d.state = Dirty
	return nil
}

// BeginEdit switches a rendered entry into an editing box seeded with its text.
// Entries already being edited are left alone.
func (d *Document) BeginEdit(index int) error {
	if err := checkIndex(index, len(d.source)); err != nil {
		return err
	}
	if d.display[index].Kind == Editing {
		return nil
	}
	d.display[index] = EditingText(d.display[index].Text)
	return nil
}

// SetBuffer replaces the editing buffer at index.
func (d *Document) SetBuffer(index int, text string) error {
	if err := checkIndex(index, len(d.source)); err != nil {
		return err
	}
	if d.display[index].Kind != Editing {
		return ErrNotEditing
	}
	if d.display[index].Text != text {
		d.display[index].Text = text
		d.state = Dirty
	}
	return nil
}

// CommitEdit turns the editing buffer at index into the translation.
func (d *Document) CommitEdit(index int) error {
	if err := checkIndex(index, len(d.source)); err != nil {
		return err
	}
	if d.display[index].Kind != Editing {
		return ErrNotEditing
	}
	return d.UpdateTranslation(index, d.display[index].Text)
}

// NextEditable returns the first editing entry after index, wrapping to the start.
func (d *Document) NextEditable(index int) (int, bool) {
	n := len(d.display)
	for step := 1; step <= n; step++ {
		i := (index + step) % n
		if i < 0 {
			i += n
		}
		if d.display[i].Kind == Editing {
			return i, true
		}
	}
	return 0, false
}

// GetTranslations returns one entry per source index: the translation if present,
// otherwise the text currently shown for that entry.
func (d *Document) GetTranslations() []string {
	out := make([]string, len(d.source))
	for i := range d.source {
		if d.translated[i] {
			out[i] = d.translation[i]
		} else {
			out[i] = d.display[i].Text
		}
	}
	return out
}

// SerializeTranslations joins existing translations with Separator. Interior
// untranslated indices become empty segments so that alignment survives a reload;
// untranslated indices after the last translation are omitted.
func (d *Document) SerializeTranslations() string {
	last := -1
	for i, ok := range d.translated {
		if ok {
			last = i
		}
	}
	if last < 0 {
		return ""
	}
	parts := make([]string, last+1)
	for i := 0; i <= last; i++ {
		if d.translated[i] {
			parts[i] = d.translation[i]
		}
	}
	return strings.Join(parts, Separator)
}

// Clone returns a deep copy so callers can stage a mutation and discard it on failure.
func (d *Document) Clone() *Document {
	return &Document{
		source:      append([]string(nil), d.source...),
		translation: append([]string(nil), d.translation...),
		translated:  append([]bool(nil), d.translated...),
		display:     append([]Display(nil), d.display...),
		state:       d.state,
	}
}

func (d *Document) appendParagraph(text string) {
	d.source = append(d.source, text)
	d.translation = append(d.translation, "")
	d.translated = append(d.translated, false)
	d.display = append(d.display, EditingText(""))
}
