/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"archive/zip"
	"bytes"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
)

// EPUBOptions controls EPUB export.
type EPUBOptions struct {
	Title       string
	Author      string
	Language    string // book language, defaults to the target language
	Description string
}

// ExportEPUB writes chapters as a reflowable EPUB 3 book, one XHTML document per
// chapter. Each paragraph becomes a source block followed by its translation;
// notes follow the pair as asides.
func ExportEPUB(chapters []Chapter, outPath string, opt EPUBOptions) error {
	if len(chapters) == 0 {
		return fmt.Errorf("no chapters to export")
	}
	if opt.Language == "" {
		opt.Language = chapters[0].TargetLang
	}
	if opt.Language == "" {
		opt.Language = "en"
	}
	if opt.Title == "" {
		opt.Title = chapters[0].Title
	}
	if !strings.HasSuffix(strings.ToLower(outPath), ".epub") {
		outPath += ".epub"
	}
	if err := prepareOut(outPath); err != nil {
		return err
	}
	f, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("create epub: %w", err)
	}
	defer func() { _ = f.Close() }()

	zw := zip.NewWriter(f)
	if err := writeEPUB(zw, chapters, opt); err != nil {
		_ = zw.Close()
		return err
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("close zip: %w", err)
	}
	return f.Sync()
}

const epubCSS = "body { font-family: serif; line-height: 1.5; margin: 0 1em; }\n" +
	".pair { margin: 0 0 1.2em 0; }\n" +
	".src { color: #555; margin: 0; }\n" +
	".tr { margin: 0.3em 0 0 0; }\n" +
	".note { font-size: 0.85em; border-left: 2px solid #aaa; padding-left: 0.5em; }\n"

func writeEPUB(zw *zip.Writer, chapters []Chapter, opt EPUBOptions) error {
	// mimetype must be the first entry and stored uncompressed
	if err := addStoredZipFile(zw, "mimetype", []byte("application/epub+zip")); err != nil {
		return fmt.Errorf("write mimetype: %w", err)
	}
	containerXML := "" +
		"<?xml version=\"1.0\" encoding=\"utf-8\"?>\n" +
		"<container version=\"1.0\" xmlns=\"urn:oasis:names:tc:opendocument:xmlns:container\">\n" +
		"  <rootfiles>\n" +
		"    <rootfile full-path=\"OEBPS/content.opf\" media-type=\"application/oebps-package+xml\"/>\n" +
		"  </rootfiles>\n" +
		"</container>\n"
	if err := addZipFile(zw, "META-INF/container.xml", []byte(containerXML)); err != nil {
		return fmt.Errorf("write container.xml: %w", err)
	}
	if err := addZipFile(zw, "OEBPS/styles/book.css", []byte(epubCSS)); err != nil {
		return fmt.Errorf("write css: %w", err)
	}

	nav := &bytes.Buffer{}
	nav.WriteString("<?xml version=\"1.0\" encoding=\"utf-8\"?>\n")
	nav.WriteString("<html xmlns=\"http://www.w3.org/1999/xhtml\" xmlns:epub=\"http://www.idpf.org/2007/ops\">\n<head><title>Contents</title></head>\n<body>\n")
	nav.WriteString("<nav epub:type=\"toc\" id=\"toc\"><ol>\n")
	for i, ch := range chapters {
		name := chapterFile(i)
		if err := addZipFile(zw, "OEBPS/"+name, chapterXHTML(ch)); err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
		fmt.Fprintf(nav, "<li><a href=\"%s\">%s</a></li>\n", name, xmlEsc(ch.Title))
	}
	nav.WriteString("</ol></nav>\n</body>\n</html>\n")
	if err := addZipFile(zw, "OEBPS/nav.xhtml", nav.Bytes()); err != nil {
		return fmt.Errorf("write nav.xhtml: %w", err)
	}

	opf := &bytes.Buffer{}
	opf.WriteString("<?xml version=\"1.0\" encoding=\"utf-8\"?>\n")
	opf.WriteString("<package version=\"3.0\" unique-identifier=\"pub-id\" xmlns=\"http://www.idpf.org/2007/opf\">\n")
	opf.WriteString("  <metadata xmlns:dc=\"http://purl.org/dc/elements/1.1/\">\n")
	fmt.Fprintf(opf, "    <dc:identifier id=\"pub-id\">urn:uuid:%s</dc:identifier>\n", uuid.NewString())
	fmt.Fprintf(opf, "    <dc:title>%s</dc:title>\n", xmlEsc(opt.Title))
	fmt.Fprintf(opf, "    <dc:language>%s</dc:language>\n", xmlEsc(opt.Language))
	if strings.TrimSpace(opt.Author) != "" {
		fmt.Fprintf(opf, "    <dc:creator>%s</dc:creator>\n", xmlEsc(opt.Author))
	}
	if strings.TrimSpace(opt.Description) != "" {
		fmt.Fprintf(opf, "    <dc:description>%s</dc:description>\n", xmlEsc(opt.Description))
	}
	fmt.Fprintf(opf, "    <meta property=\"dcterms:modified\">%s</meta>\n", time.Now().UTC().Format("2006-01-02T15:04:05Z"))
	opf.WriteString("  </metadata>\n  <manifest>\n")
	opf.WriteString("    <item id=\"nav\" href=\"nav.xhtml\" media-type=\"application/xhtml+xml\" properties=\"nav\"/>\n")
	opf.WriteString("    <item id=\"css\" href=\"styles/book.css\" media-type=\"text/css\"/>\n")
	for i := range chapters {
		fmt.Fprintf(opf, "    <item id=\"ch%d\" href=\"%s\" media-type=\"application/xhtml+xml\"/>\n", i+1, chapterFile(i))
	}
	opf.WriteString("  </manifest>\n  <spine>\n")
	for i := range chapters {
		fmt.Fprintf(opf, "    <itemref idref=\"ch%d\"/>\n", i+1)
	}
	opf.WriteString("  </spine>\n</package>\n")
	if err := addZipFile(zw, "OEBPS/content.opf", opf.Bytes()); err != nil {
		return fmt.Errorf("write content.opf: %w", err)
	}
	return nil
}

func chapterFile(i int) string { return fmt.Sprintf("chapter-%03d.xhtml", i+1) }

func chapterXHTML(ch Chapter) []byte {
	b := &bytes.Buffer{}
	b.WriteString("<?xml version=\"1.0\" encoding=\"utf-8\"?>\n")
	fmt.Fprintf(b, "<html xmlns=\"http://www.w3.org/1999/xhtml\" xml:lang=\"%s\">\n<head>\n", xmlEsc(ch.TargetLang))
	b.WriteString("<meta charset=\"utf-8\"/>\n")
	fmt.Fprintf(b, "<title>%s</title>\n", xmlEsc(ch.Title))
	b.WriteString("<link rel=\"stylesheet\" type=\"text/css\" href=\"styles/book.css\"/>\n</head>\n<body>\n")
	fmt.Fprintf(b, "<h1>%s</h1>\n", xmlEsc(ch.Title))
	for _, row := range ch.Rows {
		fmt.Fprintf(b, "<div class=\"pair\" id=\"p%d\">\n", row.Index+1)
		fmt.Fprintf(b, "<p class=\"src\" xml:lang=\"%s\">%s</p>\n", xmlEsc(ch.SourceLang), lines(row.Source))
		if row.Translated {
			fmt.Fprintf(b, "<p class=\"tr\">%s</p>\n", lines(row.Translation))
		}
		for _, n := range row.Notes {
			fmt.Fprintf(b, "<aside class=\"note\">%s</aside>\n", lines(n))
		}
		b.WriteString("</div>\n")
	}
	b.WriteString("</body>\n</html>\n")
	return b.Bytes()
}

// lines escapes s and keeps its line breaks.
func lines(s string) string {
	return strings.ReplaceAll(xmlEsc(s), "\n", "<br/>")
}

// addStoredZipFile writes an entry with STORE method (no compression), required for EPUB mimetype.
func addStoredZipFile(zw *zip.Writer, name string, data []byte) error {
	hdr := &zip.FileHeader{Name: name, Method: zip.Store}
	hdr.Modified = time.Now()
	w, err := zw.CreateHeader(hdr)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

func addZipFile(zw *zip.Writer, name string, data []byte) error {
	w, err := zw.Create(name)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

func xmlEsc(s string) string {
	r := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", "\"", "&quot;", "'", "&apos;")
	return r.Replace(s)
}
