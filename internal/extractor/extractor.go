// Package extractor turns uploaded files into plain text by detected
// suffix. Images are passed through as base64 so they can be embedded as
// opaque content.
package extractor

import (
	"archive/zip"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
	"github.com/tealeg/xlsx"
	"github.com/xuri/excelize/v2"
)

// ErrUnsupportedFormat marks a file whose suffix has no extraction
// strategy. Ingestion skips such files instead of failing the batch.
var ErrUnsupportedFormat = errors.New("unsupported file format")

var imageSuffixes = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
	".bmp":  true,
}

// IsImageSuffix reports whether the suffix names a supported image type.
func IsImageSuffix(suffix string) bool {
	return imageSuffixes[strings.ToLower(suffix)]
}

// ExtractText reads the file at path and returns its textual content.
// PDF pages are concatenated with newlines, plain text and markdown are
// returned verbatim, images are base64 encoded, and office formats are
// flattened to text. Unknown suffixes fail with ErrUnsupportedFormat.
func ExtractText(path, suffix string) (string, error) {
	switch s := strings.ToLower(suffix); {
	case s == ".pdf":
		return extractPDF(path)
	case s == ".txt" || s == ".md":
		data, err := os.ReadFile(path)
		if err != nil {
			return "", err
		}
		return string(data), nil
	case imageSuffixes[s]:
		data, err := os.ReadFile(path)
		if err != nil {
			return "", err
		}
		return base64.StdEncoding.EncodeToString(data), nil
	case s == ".docx":
		return extractDOCX(path)
	case s == ".pptx":
		return extractPPTX(path)
	case s == ".xlsx":
		return extractXLSX(path)
	case s == ".ods":
		return extractODS(path)
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, suffix)
	}
}

func extractPDF(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return "", err
	}

	reader, err := pdf.NewReader(f, stat.Size())
	if err != nil {
		return "", err
	}

	pages := make([]string, 0, reader.NumPage())
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		// A page without extractable text contributes an empty string
		// rather than failing the whole document.
		text, err := page.GetPlainText(nil)
		if err != nil {
			text = ""
		}
		pages = append(pages, text)
	}
	return strings.Join(pages, "\n"), nil
}

func extractDOCX(path string) (string, error) {
	r, err := docx.ReadDocxFile(path)
	if err != nil {
		return "", err
	}
	defer r.Close()
	return r.Editable().GetContent(), nil
}

// extractPPTX flattens a slide deck to text. Slides are DrawingML XML
// inside the pptx zip; the visible text lives in <a:t> runs.
func extractPPTX(path string) (string, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return "", err
	}
	defer r.Close()

	var slides []string
	for _, file := range r.File {
		if !strings.HasPrefix(file.Name, "ppt/slides/slide") {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			continue
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			continue
		}
		if text := drawingMLText(string(data)); strings.TrimSpace(text) != "" {
			slides = append(slides, text)
		}
	}
	return strings.Join(slides, "\n"), nil
}

// drawingMLText collects the contents of every <a:t> run in the slide
// XML.
func drawingMLText(xmlContent string) string {
	var text strings.Builder
	parts := strings.Split(xmlContent, "<a:t>")
	for i, part := range parts {
		if i == 0 {
			continue
		}
		if end := strings.Index(part, "</a:t>"); end >= 0 {
			text.WriteString(part[:end] + " ")
		}
	}
	return text.String()
}

func extractXLSX(path string) (string, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return "", err
	}

	var text strings.Builder
	for _, sheet := range f.Sheets {
		text.WriteString(fmt.Sprintf("Sheet: %s\n", sheet.Name))
		for _, row := range sheet.Rows {
			for _, cell := range row.Cells {
				text.WriteString(cell.String() + "\t")
			}
			text.WriteString("\n")
		}
	}
	return text.String(), nil
}

func extractODS(path string) (string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	var text strings.Builder
	for _, sheetName := range f.GetSheetList() {
		rows, err := f.GetRows(sheetName)
		if err != nil {
			continue
		}
		text.WriteString(fmt.Sprintf("Sheet: %s\n", sheetName))
		for _, row := range rows {
			for _, cell := range row {
				text.WriteString(cell + "\t")
			}
			text.WriteString("\n")
		}
	}
	return text.String(), nil
}
