// Package textract extracts text and administrative key-value pairs from
// uploaded claim documents.
package textract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// MaxTextLength bounds extracted_text in the claim record.
const MaxTextLength = 50000

// Result is the output of document text extraction.
type Result struct {
	Text          string
	PageCount     int
	KeyValuePairs map[string]string
}

// Parser extracts text from a raw document. The PDF implementation is the
// default; tests and alternative formats plug in their own.
type Parser interface {
	Parse(data []byte) (*Result, error)
}

// PDFParser parses PDF documents page by page.
type PDFParser struct{}

// NewPDFParser creates a PDF parser.
func NewPDFParser() *PDFParser {
	return &PDFParser{}
}

// Parse extracts per-page text joined with page separators, truncates to
// MaxTextLength and derives the key-value pairs.
func (p *PDFParser) Parse(data []byte) (*Result, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("textract: opening pdf: %w", err)
	}

	var sb strings.Builder
	pageCount := reader.NumPage()
	for i := 1; i <= pageCount; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("textract: extracting page %d: %w", i, err)
		}
		fmt.Fprintf(&sb, "\n--- Page %d ---\n%s", i, text)
	}

	text := Truncate(sb.String())
	return &Result{
		Text:          text,
		PageCount:     pageCount,
		KeyValuePairs: ExtractKeyValuePairs(text),
	}, nil
}

// Truncate bounds text to MaxTextLength.
func Truncate(text string) string {
	if len(text) > MaxTextLength {
		return text[:MaxTextLength]
	}
	return text
}
