package extract

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"baliance.com/gooxml/document"
	"github.com/ledongthuc/pdf"

	"github.com/mfenderov/regrag/internal/doctype"
)

// ObjectReader reads raw objects from storage.
type ObjectReader interface {
	Get(ctx context.Context, objectPath string) ([]byte, error)
}

// LocalBackend extracts text in-process: embedded PDF text layers, DOCX
// document bodies and HTML. Scanned PDFs and legacy .doc files need the
// remote backend.
type LocalBackend struct {
	store ObjectReader
}

// NewLocal creates an in-process extraction backend reading from store.
func NewLocal(store ObjectReader) (*LocalBackend, error) {
	if store == nil {
		return nil, fmt.Errorf("object store is required")
	}
	return &LocalBackend{store: store}, nil
}

// Extract reads the object and extracts its text according to mimeType.
func (b *LocalBackend) Extract(ctx context.Context, storagePath, mimeType string) (string, error) {
	kind := doctype.FromContentType(mimeType)
	if kind == doctype.Unknown || kind == doctype.DOC {
		return "", fmt.Errorf("%w: %s", ErrUnsupported, mimeType)
	}

	data, err := b.store.Get(ctx, storagePath)
	if err != nil {
		return "", err
	}

	switch kind {
	case doctype.PDF:
		return PDFText(data)
	case doctype.DOCX:
		return DOCXText(data)
	default:
		return ConvertHTML(string(data))
	}
}

// PDFText returns the embedded text layer of a PDF.
func PDFText(data []byte) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to open pdf: %w", err)
	}
	plain, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("failed to read pdf text: %w", err)
	}
	text, err := io.ReadAll(plain)
	if err != nil {
		return "", fmt.Errorf("failed to read pdf text: %w", err)
	}
	return string(text), nil
}

// DOCXText returns the run text of every paragraph, one line per paragraph.
func DOCXText(data []byte) (string, error) {
	doc, err := document.Read(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to open docx: %w", err)
	}

	var b strings.Builder
	for _, p := range doc.Paragraphs() {
		for _, r := range p.Runs() {
			b.WriteString(r.Text())
		}
		b.WriteString("\n")
	}
	return strings.TrimSpace(b.String()), nil
}
