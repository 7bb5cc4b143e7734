/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package align

import (
	"strconv"
	"strings"
)

// HighlightDelim wraps a highlighted substring on both sides. Delimiter characters
// already present inside the word are not escaped.
const HighlightDelim = "**"

// Annotation is a note attached to one source paragraph. Once written it is never
// edited or removed.
type Annotation struct {
	Index      int      `json:"index"`
	Note       string   `json:"note"`
	Highlights []string `json:"highlights,omitempty"`
}

// AnnotationResult carries what the caller needs to persist an annotation.
// Applied is false when the note was empty and nothing changed.
type AnnotationResult struct {
	Applied           bool
	Annotation        Annotation
	UpdatedSourceText string
	NoteLogEntry      string
}

// FootnoteMarker returns the inline reference for a paragraph index: "[index+1]".
func FootnoteMarker(index int) string {
	return "[" + strconv.Itoa(index+1) + "]"
}

// NoteLogEntry formats one entry of the per-file notes log.
func NoteLogEntry(index int, note string) string {
	return "Paragraph " + strconv.Itoa(index+1) + ":\n" + note + "\n\n"
}

// AddAnnotation highlights the given words in paragraph index, appends the footnote
// marker to it and appends a trailing "[n] note" paragraph to the source.
//
// Each word wraps the first occurrence not already inside a highlight, scanning left
// to right, so a repeated word consumes successive occurrences; requests beyond the
// available occurrences are ignored. An empty (blank) note changes nothing.
func (d *Document) AddAnnotation(index int, note string, highlightedWords []string) (AnnotationResult, error) {
	if err := checkIndex(index, len(d.source)); err != nil {
		return AnnotationResult{}, err
	}
	note = strings.TrimSpace(note)
	if note == "" {
		return AnnotationResult{}, nil
	}
	marker := FootnoteMarker(index)
	text := Highlight(d.source[index], highlightedWords)
	d.source[index] = text + " " + marker
	d.appendParagraph(marker + " " + note)
	d.state = Dirty

	return AnnotationResult{
		Applied: true,
		Annotation: Annotation{
			Index:      index,
			Note:       note,
			Highlights: append([]string(nil), highlightedWords...),
		},
		UpdatedSourceText: d.SourceText(),
		NoteLogEntry:      NoteLogEntry(index, note),
	}, nil
}

type span struct{ start, end int }

// Highlight wraps words in text with HighlightDelim, one occurrence per word, in order.
func Highlight(text string, words []string) string {
	var taken []span
	grow := 2 * len(HighlightDelim)
	for _, w := range words {
		if w == "" {
			continue
		}
		pos := freeOccurrence(text, w, taken)
		if pos < 0 {
			continue
		}
		end := pos + len(w)
		text = text[:pos] + HighlightDelim + w + HighlightDelim + text[end:]
		for i := range taken {
			if taken[i].start >= end {
				taken[i].start += grow
				taken[i].end += grow
			}
		}
		taken = append(taken, span{start: pos, end: end + grow})
	}
	return text
}

func freeOccurrence(text, word string, taken []span) int {
	from := 0
	for from <= len(text)-len(word) {
		i := strings.Index(text[from:], word)
		if i < 0 {
			return -1
		}
		pos := from + i
		if !overlaps(pos, pos+len(word), taken) {
			return pos
		}
		from = pos + 1
	}
	return -1
}

func overlaps(start, end int, taken []span) bool {
	for _, s := range taken {
		if start < s.end && end > s.start {
			return true
		}
	}
	return false
}
