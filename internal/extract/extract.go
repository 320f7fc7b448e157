// Package extract turns stored raw documents into plain text, either through
// a remote OCR/document-understanding service or locally for formats that do
// not need one.
package extract

import (
	"context"
	"errors"
)

// ErrUnsupported is returned when a backend cannot handle a MIME type.
var ErrUnsupported = errors.New("unsupported document type")

// Backend extracts text from a document already persisted in object storage.
type Backend interface {
	Extract(ctx context.Context, storagePath, mimeType string) (string, error)
}
