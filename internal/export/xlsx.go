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

	"github.com/xuri/excelize/v2"
)

// XLSXHeaders are the column titles of the exported sheet.
var XLSXHeaders = []string{"#", "Source", "Translation", "Notes"}

// ExportXLSX writes ch as a workbook with one row per paragraph: the 1-based
// paragraph number, source, translation (empty when untranslated) and notes.
func ExportXLSX(ch Chapter, outPath string) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	sheet := sheetName(ch.Title)
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return fmt.Errorf("name sheet: %w", err)
	}
	header := make([]any, len(XLSXHeaders))
	for i, h := range XLSXHeaders {
		header[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i, row := range ch.Rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		values := []any{row.Index + 1, row.Source, row.Translation, strings.Join(row.Notes, "\n")}
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	wrap, err := f.NewStyle(&excelize.Style{Alignment: &excelize.Alignment{WrapText: true, Vertical: "top"}})
	if err != nil {
		return err
	}
	if err := f.SetColStyle(sheet, "B:D", wrap); err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", "D1", bold); err != nil {
		return err
	}
	_ = f.SetColWidth(sheet, "A", "A", 6)
	_ = f.SetColWidth(sheet, "B", "C", 60)
	_ = f.SetColWidth(sheet, "D", "D", 40)
	if err := f.SetPanes(sheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"}); err != nil {
		return err
	}

	if err := prepareOut(outPath); err != nil {
		return err
	}
	if err := f.SaveAs(outPath); err != nil {
		return fmt.Errorf("write xlsx: %w", err)
	}
	return nil
}

// sheetName makes title usable as a worksheet name: at most 31 characters and
// none of []:*?/\.
func sheetName(title string) string {
	var b strings.Builder
	n := 0
	for _, r := range title {
		if strings.ContainsRune(`[]:*?/\`, r) {
			continue
		}
		if n == 31 {
			break
		}
		b.WriteRune(r)
		n++
	}
	if strings.TrimSpace(b.String()) == "" {
		return "Chapter"
	}
	return b.String()
}
