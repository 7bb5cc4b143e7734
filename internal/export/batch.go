/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"fmt"
	"log/slog"
	"path"
	"path/filepath"
	"strings"

	applog "gotranslator/internal/log"
	"gotranslator/internal/storage"
)

// Format names an output format.
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatXLSX Format = "xlsx"
	FormatEPUB Format = "epub"
)

// ExportsDirName is the default output directory below the novel root.
const ExportsDirName = "exports"

// ParseFormat accepts a format name in any case.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatPDF, FormatXLSX, FormatEPUB:
		return f, nil
	default:
		return "", fmt.Errorf("unknown format: %s", s)
	}
}

// BatchOptions controls ExportNovel.
//
// Path semantics:
//   - An empty or relative OutDir is resolved below <novel>/exports/.
//   - PDF and XLSX write one file per chapter into <OutDir>/<format>/, keeping the
//     chapter's sub directories and replacing its extension.
//   - EPUB writes one book with every chapter to <OutDir>/epub/<novel dir>.epub.
type BatchOptions struct {
	Formats []Format // empty means all formats
	Pattern string   // chapter glob, see storage.ListChapters
	OutDir  string
	PDF     PDFOptions
}

// ExportNovel exports every matching chapter of the novel and returns the written files.
func ExportNovel(h *storage.NovelHandle, opt BatchOptions) ([]string, error) {
	if h == nil {
		return nil, fmt.Errorf("novel handle is nil")
	}
	formats := opt.Formats
	if len(formats) == 0 {
		formats = []Format{FormatPDF, FormatXLSX, FormatEPUB}
	}
	baseOut := opt.OutDir
	if !filepath.IsAbs(baseOut) {
		baseOut = filepath.Join(h.Root, ExportsDirName, baseOut)
	}

	infos, err := storage.ListChapters(h, opt.Pattern)
	if err != nil {
		return nil, err
	}
	if len(infos) == 0 {
		return nil, fmt.Errorf("no chapters match %q", opt.Pattern)
	}
	store := h.Store()
	chapters := make([]Chapter, 0, len(infos))
	for _, info := range infos {
		ch, err := LoadChapter(store, info.SourcePath)
		if err != nil {
			return nil, fmt.Errorf("chapter %s: %w", info.Name, err)
		}
		ch.SourceLang, ch.TargetLang = h.Novel.SourceLang, h.Novel.TargetLang
		chapters = append(chapters, ch)
	}

	l := applog.WithOperation(applog.WithComponent("export"), "batch")
	var written []string
	for _, f := range formats {
		switch f {
		case FormatPDF, FormatXLSX:
			for i, ch := range chapters {
				out := filepath.Join(baseOut, string(f), filepath.FromSlash(withExt(infos[i].Name, "."+string(f))))
				if f == FormatPDF {
					err = ExportPDF(ch, out, opt.PDF)
				} else {
					err = ExportXLSX(ch, out)
				}
				if err != nil {
					return written, fmt.Errorf("%s %s: %w", f, infos[i].Name, err)
				}
				written = append(written, out)
			}
		case FormatEPUB:
			out := filepath.Join(baseOut, string(f), filepath.Base(filepath.Clean(h.Root))+".epub")
			eo := EPUBOptions{Title: h.Novel.Title, Language: h.Novel.TargetLang, Description: h.Novel.Notes}
			if err := ExportEPUB(chapters, out, eo); err != nil {
				return written, fmt.Errorf("epub: %w", err)
			}
			written = append(written, out)
		default:
			return written, fmt.Errorf("unknown format: %s", f)
		}
	}
	l.Info("novel exported", slog.String("root", h.Root), slog.Int("chapters", len(chapters)), slog.Int("files", len(written)))
	return written, nil
}

func withExt(name, ext string) string {
	return strings.TrimSuffix(name, path.Ext(name)) + ext
}
