/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package align

import (
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"testing"
)

func TestSplitJoinRoundTrip(t *testing.T) {
	inputs := []string{
		"",
		"one",
		"Hello.\n\nWorld.",
		"a\n\n\nb",
		"\n\n",
		"line one\nline two\n\nnext",
		"吾輩は猫である。\n\n名前はまだ無い。",
		"trailing\n\n",
	}
	for _, in := range inputs {
		if got := Join(Split(in)); got != in {
			t.Errorf("Join(Split(%q)) = %q", in, got)
		}
	}
}

func TestLoadWithoutTranslation(t *testing.T) {
	doc, err := Load("Hello.\n\nWorld.", "")
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if doc.Len() != 2 {
		t.Fatalf("Len = %d, want 2", doc.Len())
	}
	if doc.State() != Loaded {
		t.Fatalf("State = %v, want loaded", doc.State())
	}
	for i := 0; i < doc.Len(); i++ {
		if _, ok := doc.Translation(i); ok {
			t.Fatalf("index %d should be untranslated", i)
		}
		disp, _ := doc.Display(i)
		if disp.Kind != Editing || disp.Text != "" {
			t.Fatalf("index %d display = %+v, want empty editing box", i, disp)
		}
	}
}

func TestLoadEmptySourceYieldsOneParagraph(t *testing.T) {
	doc, err := Load("", "")
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if doc.Len() != 1 {
		t.Fatalf("Len = %d, want 1", doc.Len())
	}
	if s, _ := doc.Source(0); s != "" {
		t.Fatalf("paragraph = %q, want empty", s)
	}
}

func TestLoadAlignsTranslationByIndex(t *testing.T) {
	doc, err := Load("a\n\nb\n\nc", "A\n\n\n\nC\n\nEXTRA")
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	want := []struct {
		text string
		ok   bool
	}{{"A", true}, {"", false}, {"C", true}}
	for i, w := range want {
		got, ok := doc.Translation(i)
		if got != w.text || ok != w.ok {
			t.Fatalf("Translation(%d) = %q,%v want %q,%v", i, got, ok, w.text, w.ok)
		}
	}
	if doc.TranslatedCount() != 2 {
		t.Fatalf("TranslatedCount = %d, want 2", doc.TranslatedCount())
	}
	if d, _ := doc.Display(0); d.Kind != Rendered || d.Text != "A" {
		t.Fatalf("Display(0) = %+v", d)
	}
}

func TestLoadRejectsInvalidUTF8(t *testing.T) {
	if _, err := Load("ok\n\n\xff\xfe", ""); !errors.Is(err, ErrMalformedInput) {
		t.Fatalf("source: err = %v, want ErrMalformedInput", err)
	}
	if _, err := Load("ok", "\xc3\x28"); !errors.Is(err, ErrMalformedInput) {
		t.Fatalf("translation: err = %v, want ErrMalformedInput", err)
	}
}

func TestUpdateTranslationReadAfterWrite(t *testing.T) {
	doc, _ := Load("x\n\ny\n\nz", "")
	if err := doc.UpdateTranslation(1, "why"); err != nil {
		t.Fatalf("UpdateTranslation error: %v", err)
	}
	if got := doc.GetTranslations()[1]; got != "why" {
		t.Fatalf("GetTranslations()[1] = %q, want %q", got, "why")
	}
	if !doc.IsDirty() {
		t.Fatalf("document should be dirty after update")
	}
	doc.MarkSaved()
	if doc.State() != Saved || doc.IsDirty() {
		t.Fatalf("state after MarkSaved = %v", doc.State())
	}
}

func TestUpdateTranslationOutOfRangeLeavesDocUnchanged(t *testing.T) {
	doc, _ := Load("x\n\ny", "X")
	before := doc.Clone()
	for _, idx := range []int{2, 5, -1} {
		err := doc.UpdateTranslation(idx, "nope")
		if !errors.Is(err, ErrIndexOutOfRange) {
			t.Fatalf("UpdateTranslation(%d) err = %v, want ErrIndexOutOfRange", idx, err)
		}
	}
	if !reflect.DeepEqual(doc, before) {
		t.Fatalf("document changed after failed update")
	}
	if doc.State() != Loaded {
		t.Fatalf("state = %v, want loaded", doc.State())
	}
}

func TestSerializeTranslationsScenario(t *testing.T) {
	doc, _ := Load("Hello.\n\nWorld.", "")
	if err := doc.UpdateTranslation(0, "Bonjour."); err != nil {
		t.Fatalf("UpdateTranslation error: %v", err)
	}
	if got := doc.SerializeTranslations(); got != "Bonjour." {
		t.Fatalf("SerializeTranslations = %q, want %q", got, "Bonjour.")
	}
}

func TestSerializeTranslationsKeepsInteriorGaps(t *testing.T) {
	doc, _ := Load("a\n\nb\n\nc\n\nd", "")
	_ = doc.UpdateTranslation(0, "A")
	_ = doc.UpdateTranslation(2, "C")
	out := doc.SerializeTranslations()
	if out != "A\n\n\n\nC" {
		t.Fatalf("SerializeTranslations = %q", out)
	}
	reloaded, err := Load(doc.SourceText(), out)
	if err != nil {
		t.Fatalf("reload error: %v", err)
	}
	if got, ok := reloaded.Translation(2); !ok || got != "C" {
		t.Fatalf("alignment lost on reload: %q,%v", got, ok)
	}
	if _, ok := reloaded.Translation(1); ok {
		t.Fatalf("gap should reload as untranslated")
	}
}

func TestSerializeTranslationsEmptyWhenNothingTranslated(t *testing.T) {
	doc, _ := Load("a\n\nb", "")
	if got := doc.SerializeTranslations(); got != "" {
		t.Fatalf("SerializeTranslations = %q, want empty", got)
	}
}

func TestEditLifecycle(t *testing.T) {
	doc, _ := Load("a\n\nb\n\nc", "A\n\nB")
	if err := doc.SetBuffer(0, "x"); !errors.Is(err, ErrNotEditing) {
		t.Fatalf("SetBuffer on rendered entry err = %v", err)
	}
	if err := doc.BeginEdit(0); err != nil {
		t.Fatalf("BeginEdit error: %v", err)
	}
	if d, _ := doc.Display(0); d.Kind != Editing || d.Text != "A" {
		t.Fatalf("Display after BeginEdit = %+v", d)
	}
	if err := doc.SetBuffer(0, "A2"); err != nil {
		t.Fatalf("SetBuffer error: %v", err)
	}
	// translation stays authoritative until commit
	if got := doc.GetTranslations()[0]; got != "A" {
		t.Fatalf("GetTranslations()[0] = %q before commit", got)
	}
	if err := doc.CommitEdit(0); err != nil {
		t.Fatalf("CommitEdit error: %v", err)
	}
	if got, _ := doc.Translation(0); got != "A2" {
		t.Fatalf("Translation(0) = %q after commit", got)
	}
	if err := doc.CommitEdit(0); !errors.Is(err, ErrNotEditing) {
		t.Fatalf("second CommitEdit err = %v", err)
	}
	// untranslated entries report their buffer
	_ = doc.SetBuffer(2, "draft")
	if got := doc.GetTranslations()[2]; got != "draft" {
		t.Fatalf("GetTranslations()[2] = %q, want draft", got)
	}
}

func TestNextEditableWraps(t *testing.T) {
	doc, _ := Load("a\n\nb\n\nc\n\nd", "A\n\n\n\nC\n\nD")
	if i, ok := doc.NextEditable(1); !ok || i != 1 {
		t.Fatalf("NextEditable(1) = %d,%v want 1,true", i, ok)
	}
	if i, ok := doc.NextEditable(2); !ok || i != 1 {
		t.Fatalf("NextEditable(2) = %d,%v want 1,true", i, ok)
	}
	_ = doc.UpdateTranslation(1, "B")
	if _, ok := doc.NextEditable(0); ok {
		t.Fatalf("NextEditable should report none")
	}
}

func TestCloneIsIndependent(t *testing.T) {
	doc, _ := Load("a\n\nb", "")
	c := doc.Clone()
	_ = c.UpdateTranslation(0, "A")
	if _, ok := doc.Translation(0); ok {
		t.Fatalf("mutating clone changed original")
	}
	if !strings.Contains(c.SerializeTranslations(), "A") {
		t.Fatalf("clone lost its update")
	}
}

func TestClearTranslation(t *testing.T) {
	doc, _ := Load("a\n\nb", "A\n\nB")
	if err := doc.ClearTranslation(1); err != nil {
		t.Fatalf("ClearTranslation error: %v", err)
	}
	if _, ok := doc.Translation(1); ok {
		t.Fatalf("index 1 still translated")
	}
	if got := doc.SerializeTranslations(); got != "A" {
		t.Fatalf("SerializeTranslations = %q", got)
	}
	if err := doc.ClearTranslation(2); !errors.Is(err, ErrIndexOutOfRange) {
		t.Fatalf("err = %v", err)
	}
}

func TestDisplayJSONUsesKindNames(t *testing.T) {
	b, err := json.Marshal(EditingText("x"))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != `{"kind":"editing","text":"x"}` {
		t.Fatalf("json = %s", b)
	}
	var d Display
	if err := json.Unmarshal([]byte(`{"kind":"rendered","text":"y"}`), &d); err != nil || d != RenderedText("y") {
		t.Fatalf("unmarshal = %+v, %v", d, err)
	}
	if err := json.Unmarshal([]byte(`{"kind":"bogus"}`), &d); err == nil {
		t.Fatalf("expected error for unknown kind")
	}
}
