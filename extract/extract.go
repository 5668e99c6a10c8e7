// Package extract turns uploaded document bytes into plain text for
// ingestion.
package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/ledongthuc/pdf"
)

var ErrEmptyDocument = errors.New("empty document")

// Extractor converts raw document bytes to text.
type Extractor interface {
	ExtractText(ctx context.Context, data []byte) (string, error)
}

// Document extracts PDF content when the bytes carry the PDF magic and
// otherwise treats them as UTF-8 text.
type Document struct{}

func NewDocumentExtractor() *Document {
	return &Document{}
}

func (e *Document) ExtractText(ctx context.Context, data []byte) (string, error) {
	if len(data) == 0 {
		return "", ErrEmptyDocument
	}

	if bytes.HasPrefix(data, []byte("%PDF")) {
		return extractPDF(data)
	}

	return string(data), nil
}

func extractPDF(data []byte) (_ string, err error) {
	// The pdf package panics on some malformed files.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("reading pdf: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("reading pdf: %w", err)
	}

	text, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extracting pdf text: %w", err)
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(text); err != nil {
		return "", fmt.Errorf("extracting pdf text: %w", err)
	}

	return buf.String(), nil
}
