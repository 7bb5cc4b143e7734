/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package align

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// Separator is the paragraph boundary in stored files, for reading and writing alike.
const Separator = "\n\n"

var (
	// ErrIndexOutOfRange reports a paragraph index outside [0, source paragraph count).
	ErrIndexOutOfRange = errors.New("paragraph index out of range")
	// ErrMalformedInput reports content that is not valid UTF-8 text.
	ErrMalformedInput = errors.New("malformed input")
	// ErrNotEditing reports a buffer operation on a paragraph that is not in the editing state.
	ErrNotEditing = errors.New("paragraph is not being edited")
)

// Split cuts text into paragraphs on Separator. Empty segments are kept, so an
// empty text yields a single empty paragraph.
func Split(text string) []string {
	return strings.Split(text, Separator)
}

// Join is the inverse of Split: Join(Split(t)) == t for any t.
func Join(paragraphs []string) string {
	return strings.Join(paragraphs, Separator)
}

// SplitChecked is Split for untrusted file content.
func SplitChecked(text string) ([]string, error) {
	if !utf8.ValidString(text) {
		return nil, fmt.Errorf("%w: content is not valid UTF-8", ErrMalformedInput)
	}
	return Split(text), nil
}

// DisplayKind tells the display surface which widget to show for a translation entry.
type DisplayKind int

const (
	// Rendered is static text with an edit affordance.
	Rendered DisplayKind = iota
	// Editing is an editable box holding a buffer.
	Editing
)

func (k DisplayKind) String() string {
	switch k {
	case Rendered:
		return "rendered"
	case Editing:
		return "editing"
	default:
		return fmt.Sprintf("DisplayKind(%d)", int(k))
	}
}

// MarshalText encodes the kind by name.
func (k DisplayKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// UnmarshalText accepts the names produced by MarshalText.
func (k *DisplayKind) UnmarshalText(b []byte) error {
	switch string(b) {
	case "rendered":
		*k = Rendered
	case "editing":
		*k = Editing
	default:
		return fmt.Errorf("unknown display kind %q", b)
	}
	return nil
}

// Display is the per-paragraph variant {Rendered(text) | Editing(text)}.
type Display struct {
	Kind DisplayKind `json:"kind"`
	Text string      `json:"text"`
}

// RenderedText builds a Rendered display.
func RenderedText(text string) Display { return Display{Kind: Rendered, Text: text} }

// EditingText builds an Editing display.
func EditingText(text string) Display { return Display{Kind: Editing, Text: text} }

func checkIndex(index, count int) error {
	if index < 0 || index >= count {
		return fmt.Errorf("%w: %d not in [0,%d)", ErrIndexOutOfRange, index, count)
	}
	return nil
}
