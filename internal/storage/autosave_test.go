/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"os"
	"strings"
	"testing"
)

func TestAutosaveRoundTripLeavesTranslationAlone(t *testing.T) {
	src, s := newChapter(t, "a\n\nb")
	if err := s.WriteTranslation(src, "A"); err != nil {
		t.Fatalf("WriteTranslation: %v", err)
	}

	if _, ok, err := s.ReadAutosave(src); err != nil || ok {
		t.Fatalf("ReadAutosave before write = %v, %v", ok, err)
	}
	p, err := s.WriteAutosave(src, "A\n\nB")
	if err != nil {
		t.Fatalf("WriteAutosave: %v", err)
	}
	if !strings.HasSuffix(p, AutosaveSuffix) {
		t.Fatalf("autosave path = %s", p)
	}
	got, ok, err := s.ReadAutosave(src)
	if err != nil || !ok || got != "A\n\nB" {
		t.Fatalf("ReadAutosave = %q, %v, %v", got, ok, err)
	}
	if tr, _, _ := s.ReadTranslation(src); tr != "A" {
		t.Fatalf("translation overwritten: %q", tr)
	}

	if err := s.DiscardAutosave(src); err != nil {
		t.Fatalf("DiscardAutosave: %v", err)
	}
	if _, err := os.Stat(p); !os.IsNotExist(err) {
		t.Fatalf("autosave still present: %v", err)
	}
	if err := s.DiscardAutosave(src); err != nil {
		t.Fatalf("second DiscardAutosave: %v", err)
	}
}
