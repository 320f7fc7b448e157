// Package processor turns a discovered URL into a persisted, normalized
// Document: fetch, checksum, raw persistence, text extraction, normalization,
// metadata extraction, quality gate and clean persistence.
package processor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/mfenderov/regrag/internal/doctype"
	"github.com/mfenderov/regrag/internal/extract"
	"github.com/mfenderov/regrag/internal/normalize"
	"github.com/mfenderov/regrag/internal/storage"
	"github.com/mfenderov/regrag/pkg/models"
)

var (
	ErrUnsupportedType = errors.New("unsupported content type")
	ErrTooLarge        = errors.New("document exceeds size limit")
	ErrNoExtractor     = errors.New("no extraction backend for content type")
	ErrLowQuality      = errors.New("document failed quality gate")
)

// DefaultMaxBytes is the fetch size ceiling.
const DefaultMaxBytes = 50 << 20

// MinDocumentChars is the minimum text length for an indexable document.
const MinDocumentChars = 100

// Store is the object storage the processor persists to.
type Store interface {
	Put(ctx context.Context, objectPath string, data []byte, contentType string) error
	Exists(ctx context.Context, objectPath string) (bool, error)
	GetText(ctx context.Context, objectPath string) (string, error)
}

// Config holds processor configuration.
type Config struct {
	MaxBytes  int64
	Timeout   time.Duration
	UserAgent string
}

// Processor fetches and processes documents.
type Processor struct {
	config     Config
	httpClient *http.Client
	store      Store
	extractor  extract.Backend
	now        func() time.Time
}

// New creates a Processor. extractor may be nil, in which case only HTML
// documents can be processed.
func New(config Config, store Store, extractor extract.Backend) (*Processor, error) {
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if config.MaxBytes <= 0 {
		config.MaxBytes = DefaultMaxBytes
	}
	if config.Timeout <= 0 {
		config.Timeout = 60 * time.Second
	}
	if config.UserAgent == "" {
		config.UserAgent = "regrag/1.0"
	}

	return &Processor{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		store:      store,
		extractor:  extractor,
		now:        time.Now,
	}, nil
}

// Process runs the per-document pipeline. Processing the same bytes twice
// returns the Document already in clean storage instead of reprocessing.
func (p *Processor) Process(ctx context.Context, url, province, asset, docClass string) (*models.Document, error) {
	data, contentType, err := p.fetch(ctx, url)
	if err != nil {
		return nil, err
	}

	kind := doctype.Detect(url, contentType, data)
	if !kind.Supported() {
		return nil, fmt.Errorf("%w: %q from %s", ErrUnsupportedType, contentType, url)
	}

	checksum := models.Checksum(data)
	cleanPath := storage.CleanPath(province, checksum)

	if existing, ok := p.loadExisting(ctx, cleanPath); ok {
		slog.Debug("document already processed", "url", url, "checksum", checksum)
		return existing, nil
	}

	rawPath := storage.RawPath(province, p.now(), checksum, kind.Ext())
	if err := p.putIfAbsent(ctx, rawPath, data, kind.MIME()); err != nil {
		return nil, err
	}

	raw, err := p.extractText(ctx, kind, rawPath, data)
	if err != nil {
		return nil, err
	}

	text := normalize.Normalize(raw)
	doc := &models.Document{
		ID:               checksum,
		Checksum:         checksum,
		URL:              url,
		Title:            p.title(kind, text, data),
		Text:             text,
		Province:         province,
		Asset:            asset,
		DocClass:         docClass,
		Lang:             models.Lang,
		RawStoragePath:   rawPath,
		CleanStoragePath: cleanPath,
		ProcessedAt:      p.now().UTC(),
	}
	if date, ok := normalize.ExtractEffectiveDate(text); ok {
		doc.EffectiveDate = date
	}
	doc.DocType = normalize.DetectDocType(doc.Title, text)

	if q := normalize.ValidateChineseContentQuality(text); !q.IsValid {
		return nil, fmt.Errorf("%w: ratio=%.2f length=%d terms=%d", ErrLowQuality, q.ChineseRatio, q.Length, q.RegulatoryTermCount)
	}

	body, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal document: %w", err)
	}
	if err := p.store.Put(ctx, cleanPath, body, "application/json"); err != nil {
		return nil, err
	}

	slog.Debug("document processed", "url", url, "checksum", checksum, "title", doc.Title, "chars", utf8.RuneCountInString(text))
	return doc, nil
}

func (p *Processor) fetch(ctx context.Context, url string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", p.config.UserAgent)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("failed to fetch %s: status %d", url, resp.StatusCode)
	}
	if resp.ContentLength > p.config.MaxBytes {
		return nil, "", fmt.Errorf("%w: %d bytes", ErrTooLarge, resp.ContentLength)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, p.config.MaxBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("failed to read %s: %w", url, err)
	}
	if int64(len(data)) > p.config.MaxBytes {
		return nil, "", fmt.Errorf("%w: more than %d bytes", ErrTooLarge, p.config.MaxBytes)
	}

	return data, resp.Header.Get("Content-Type"), nil
}

func (p *Processor) loadExisting(ctx context.Context, cleanPath string) (*models.Document, bool) {
	exists, err := p.store.Exists(ctx, cleanPath)
	if err != nil {
		slog.Warn("clean storage check failed", "path", cleanPath, "error", err)
		return nil, false
	}
	if !exists {
		return nil, false
	}

	body, err := p.store.GetText(ctx, cleanPath)
	if err != nil {
		slog.Warn("failed to read processed document", "path", cleanPath, "error", err)
		return nil, false
	}
	var doc models.Document
	if err := json.Unmarshal([]byte(body), &doc); err != nil {
		slog.Warn("processed document is corrupt, reprocessing", "path", cleanPath, "error", err)
		return nil, false
	}
	return &doc, true
}

func (p *Processor) putIfAbsent(ctx context.Context, objectPath string, data []byte, contentType string) error {
	exists, err := p.store.Exists(ctx, objectPath)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	return p.store.Put(ctx, objectPath, data, contentType)
}

// extractText prefers the configured backend; HTML falls back to tag stripping.
func (p *Processor) extractText(ctx context.Context, kind doctype.Kind, rawPath string, data []byte) (string, error) {
	if p.extractor != nil {
		text, err := p.extractor.Extract(ctx, rawPath, kind.MIME())
		if err == nil {
			return text, nil
		}
		if kind != doctype.HTML {
			return "", fmt.Errorf("failed to extract %s: %w", rawPath, err)
		}
		slog.Debug("extraction backend failed, stripping tags", "path", rawPath, "error", err)
	}

	if kind == doctype.HTML {
		return extract.StripTags(string(data)), nil
	}
	return "", fmt.Errorf("%w: %s", ErrNoExtractor, kind)
}

// title prefers a regulatory title line from the text, then the HTML <title>,
// then the first line of text.
func (p *Processor) title(kind doctype.Kind, text string, data []byte) string {
	if t, ok := normalize.ExtractTitle(text); ok {
		return t
	}
	if kind == doctype.HTML {
		if t := normalize.Normalize(extract.HTMLTitle(string(data))); t != "" {
			return t
		}
	}
	first, _, _ := strings.Cut(text, "\n")
	if r := []rune(strings.TrimSpace(first)); len(r) > 100 {
		return string(r[:100])
	}
	return strings.TrimSpace(first)
}

// ValidateDocumentQuality is the gate ingestion applies before indexing:
// minimum length, the Chinese content quality check, and required fields.
func ValidateDocumentQuality(doc *models.Document) bool {
	if doc == nil {
		return false
	}
	if utf8.RuneCountInString(doc.Text) < MinDocumentChars {
		return false
	}
	if !normalize.ValidateChineseContentQuality(doc.Text).IsValid {
		return false
	}
	for _, field := range []string{doc.Title, doc.URL, doc.Province, doc.Asset, doc.DocClass} {
		if strings.TrimSpace(field) == "" {
			return false
		}
	}
	return true
}
