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
	"strings"
	"unicode"

	"github.com/jung-kurt/gofpdf"
)

// PDFOptions controls PDF export. Units are millimetres.
//
// Without FontPath the core Helvetica font is used, which only covers Latin-1;
// Japanese source text needs a UTF-8 TrueType font such as Noto Sans JP.
type PDFOptions struct {
	FontPath string
	FontSize float64 // points, default 10
	PageSize string  // gofpdf size name, default A4
	Gutter   float64 // space between the columns, default 6
}

const pdfFamily = "gtrbody"

// ExportPDF writes ch as a two-column PDF: source on the left, translation on
// the right, one aligned row per paragraph. Rows never start mid-line and
// continue on the next page when they do not fit.
func ExportPDF(ch Chapter, outPath string, opt PDFOptions) error {
	if opt.FontSize <= 0 {
		opt.FontSize = 10
	}
	if opt.PageSize == "" {
		opt.PageSize = "A4"
	}
	if opt.Gutter <= 0 {
		opt.Gutter = 6
	}

	pdf := gofpdf.New("P", "mm", opt.PageSize, "")
	family := "Helvetica"
	tr := func(s string) string { return s }
	utf8Font := opt.FontPath != ""
	if utf8Font {
		pdf.AddUTF8Font(pdfFamily, "", opt.FontPath)
		family = pdfFamily
	} else {
		tr = pdf.UnicodeTranslatorFromDescriptor("")
	}
	pdf.SetTitle(ch.Title, true)
	pdf.SetAuthor("GoTranslator", false)
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetMargins(15, 15, 15)
	pdf.AddPage()

	pageW, pageH := pdf.GetPageSize()
	left, top, right, _ := pdf.GetMargins()
	bottom := pageH - 15
	colW := (pageW - left - right - opt.Gutter) / 2
	lineH := opt.FontSize * 0.3528 * 1.4

	pdf.SetFont(family, "", opt.FontSize+4)
	pdf.CellFormat(0, lineH*1.5, tr(ch.Title), "", 1, "L", false, 0, "")
	pdf.Ln(lineH / 2)
	pdf.SetFont(family, "", opt.FontSize)

	y := pdf.GetY()
	for _, row := range ch.Rows {
		srcLines := wrapText(pdf, tr(row.Source), colW, utf8Font)
		trLines := wrapText(pdf, tr(row.Translation), colW, utf8Font)
		n := max(len(srcLines), len(trLines), 1)
		if y+lineH > bottom {
			pdf.AddPage()
			y = top
		}
		for i := 0; i < n; i++ {
			if y+lineH > bottom {
				pdf.AddPage()
				y = top
			}
			if i < len(srcLines) {
				pdf.SetXY(left, y)
				pdf.CellFormat(colW, lineH, srcLines[i], "", 0, "L", false, 0, "")
			}
			if i < len(trLines) {
				pdf.SetXY(left+colW+opt.Gutter, y)
				pdf.CellFormat(colW, lineH, trLines[i], "", 0, "L", false, 0, "")
			}
			y += lineH
		}
		y += lineH / 2
	}

	if err := prepareOut(outPath); err != nil {
		return err
	}
	if err := pdf.OutputFileAndClose(outPath); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}

// wrapText splits s into lines no wider than w in the current font. Hard line
// breaks are kept; soft breaks prefer the last space. Text set in a core font has
// already been translated to single-byte code points, so it is measured by byte.
func wrapText(pdf *gofpdf.Fpdf, s string, w float64, utf8Font bool) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, hard := range strings.Split(s, "\n") {
		units := splitUnits(hard, utf8Font)
		var cur []string
		lastSpace := -1
		for _, u := range units {
			cur = append(cur, u)
			if u == " " {
				lastSpace = len(cur) - 1
			}
			if len(cur) == 1 || pdf.GetStringWidth(strings.Join(cur, "")) <= w {
				continue
			}
			cut := len(cur) - 1
			if lastSpace > 0 {
				cut = lastSpace
			}
			out = append(out, strings.TrimRightFunc(strings.Join(cur[:cut], ""), unicode.IsSpace))
			rest := cur[cut:]
			if len(rest) > 0 && rest[0] == " " {
				rest = rest[1:]
			}
			cur = append([]string(nil), rest...)
			lastSpace = -1
			for i, r := range cur {
				if r == " " {
					lastSpace = i
				}
			}
		}
		out = append(out, strings.Join(cur, ""))
	}
	return out
}

func splitUnits(s string, utf8Font bool) []string {
	var units []string
	if utf8Font {
		for _, r := range s {
			units = append(units, string(r))
		}
		return units
	}
	for i := 0; i < len(s); i++ {
		units = append(units, s[i:i+1])
	}
	return units
}
