// Package pdftext extracts per-page plain text from PDF documents.
package pdftext

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/ledongthuc/pdf"
)

// ErrEmptyDocument is returned for zero-length input.
var ErrEmptyDocument = errors.New("empty document")

// Extractor implements gazette.PageExtractor using ledongthuc/pdf.
type Extractor struct{}

// New returns an Extractor.
func New() *Extractor {
	return &Extractor{}
}

// Pages returns the text of every page in order. Pages whose text cannot be
// extracted (image-only, broken content streams) come back as "".
func (e *Extractor) Pages(data []byte) (pages []string, err error) {
	if len(data) == 0 {
		return nil, ErrEmptyDocument
	}
	// The parser panics on some malformed inputs.
	defer func() {
		if r := recover(); r != nil {
			pages = nil
			err = fmt.Errorf("parse pdf: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("parse pdf: %w", err)
	}

	n := reader.NumPage()
	pages = make([]string, n)
	for i := 1; i <= n; i++ {
		pages[i-1] = pageText(reader.Page(i))
	}
	return pages, nil
}

func pageText(page pdf.Page) string {
	if page.V.IsNull() {
		return ""
	}
	text, err := page.GetPlainText(nil)
	if err != nil {
		return ""
	}
	return text
}
