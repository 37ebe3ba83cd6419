package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// maxPDFChars bounds the extracted document text.
const maxPDFChars = 8000

// PDF extracts the text content of a PDF document, page by page with
// page markers, capped at maxPDFChars. Image-based or encrypted
// documents yield an error.
func PDF(data []byte) (text string, err error) {
	// The pdf package panics on some malformed documents; surface
	// those as errors instead of taking down the handler.
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = fmt.Errorf("read pdf: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("read pdf: %w", err)
	}

	var pages []string
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil || strings.TrimSpace(pageText) == "" {
			continue
		}
		pages = append(pages, fmt.Sprintf("--- Page %d ---\n%s", i, pageText))
	}
	if len(pages) == 0 {
		return "", fmt.Errorf("no extractable text: document may be image-based or encrypted")
	}

	full := strings.Join(pages, "\n\n")
	if len(full) > maxPDFChars {
		full = truncate(full, maxPDFChars) + "\n\n[... truncated ...]"
	}
	return full, nil
}
