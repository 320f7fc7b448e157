// Package ingestion turns processed documents into indexed chunks, either
// straight from a discovered URL or by replaying clean storage.
package ingestion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mfenderov/regrag/internal/chunker"
	"github.com/mfenderov/regrag/internal/metrics"
	"github.com/mfenderov/regrag/internal/processor"
	"github.com/mfenderov/regrag/internal/storage"
	"github.com/mfenderov/regrag/internal/vectorindex"
	"github.com/mfenderov/regrag/pkg/models"
)

// ErrRejected marks a document dropped by the quality gates. It is an
// expected outcome, counted as skipped rather than failed.
var ErrRejected = errors.New("document rejected")

// Processor turns a URL into a Document.
type Processor interface {
	Process(ctx context.Context, url, province, asset, docClass string) (*models.Document, error)
}

// Index embeds and stores chunks.
type Index interface {
	BatchEmbed(ctx context.Context, texts []string) ([][]float32, error)
	Upsert(ctx context.Context, chunks []models.Chunk) vectorindex.UpsertResult
}

// CleanStore lists and reads clean documents.
type CleanStore interface {
	List(ctx context.Context, prefix, suffix string) ([]string, error)
	GetText(ctx context.Context, objectPath string) (string, error)
}

// Result holds ingestion execution results.
type Result struct {
	Source         string
	DocsIndexed    int
	DocsSkipped    int
	ChunksUpserted int
	Duration       time.Duration
	Errors         []string
}

// Merge folds other into r.
func (r *Result) Merge(other *Result) {
	r.DocsIndexed += other.DocsIndexed
	r.DocsSkipped += other.DocsSkipped
	r.ChunksUpserted += other.ChunksUpserted
	r.Errors = append(r.Errors, other.Errors...)
}

// Engine chunks, embeds and upserts documents.
type Engine struct {
	processor Processor
	chunker   *chunker.Chunker
	index     Index
	store     CleanStore
	metrics   *metrics.Metrics
}

// New creates a new ingestion engine. processor and store may be nil when
// the engine is only used for IndexDocument.
func New(p Processor, c *chunker.Chunker, index Index, store CleanStore, m *metrics.Metrics) (*Engine, error) {
	if c == nil {
		return nil, fmt.Errorf("chunker is required")
	}
	if index == nil {
		return nil, fmt.Errorf("index is required")
	}
	return &Engine{
		processor: p,
		chunker:   c,
		index:     index,
		store:     store,
		metrics:   m,
	}, nil
}

// IndexDocument gates, chunks, embeds and upserts one document and returns
// the number of chunks written.
func (e *Engine) IndexDocument(ctx context.Context, doc *models.Document) (int, error) {
	if !processor.ValidateDocumentQuality(doc) {
		return 0, fmt.Errorf("%w: quality gate", ErrRejected)
	}

	chunks := chunker.ValidateChunks(e.chunker.Chunk(doc))
	if len(chunks) == 0 {
		return 0, fmt.Errorf("%w: no valid chunks", ErrRejected)
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vecs, err := e.index.BatchEmbed(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("embed %s: %w", doc.Checksum, err)
	}
	for i := range chunks {
		chunks[i].Embedding = vecs[i]
	}

	res := e.index.Upsert(ctx, chunks)
	if res.Upserted == 0 {
		return 0, fmt.Errorf("upsert %s: all %d batches failed", doc.Checksum, res.FailedBatches)
	}
	slog.Debug("document indexed", "checksum", doc.Checksum, "title", doc.Title, "chunks", res.Upserted, "failed", res.Failed)
	return res.Upserted, nil
}

// IngestURL processes and indexes one URL. Quality failures are reported in
// DocsSkipped, everything else in Errors; it never returns an error itself.
func (e *Engine) IngestURL(ctx context.Context, url, province, asset, docClass string) *Result {
	result := &Result{Source: url}
	if e.processor == nil {
		e.fail(result, url, fmt.Errorf("no processor configured"))
		return result
	}

	doc, err := e.processor.Process(ctx, url, province, asset, docClass)
	if err != nil {
		e.fail(result, url, err)
		return result
	}
	e.indexOne(ctx, result, doc)
	return result
}

// Reindex rebuilds vectors for every clean document of a province, or of all
// provinces when province is empty. Chunk ids are stable, so existing
// entries are overwritten.
func (e *Engine) Reindex(ctx context.Context, province string) (*Result, error) {
	if e.store == nil {
		return nil, fmt.Errorf("clean store is required for reindex")
	}
	start := time.Now()
	prefix := storage.CleanPrefix(province)
	result := &Result{Source: prefix}

	slog.Info("starting reindex", "prefix", prefix)

	paths, err := e.store.List(ctx, prefix, ".json")
	if err != nil {
		return nil, err
	}

	slog.Info("found documents to reindex", "count", len(paths))

	for _, path := range paths {
		if ctx.Err() != nil {
			result.Errors = append(result.Errors, "context cancelled")
			break
		}

		body, err := e.store.GetText(ctx, path)
		if err != nil {
			e.fail(result, path, err)
			continue
		}
		var doc models.Document
		if err := json.Unmarshal([]byte(body), &doc); err != nil {
			e.fail(result, path, fmt.Errorf("decode %s: %w", path, err))
			continue
		}
		e.indexOne(ctx, result, &doc)
	}

	result.Duration = time.Since(start)
	slog.Info("reindex complete",
		"prefix", prefix,
		"docs_indexed", result.DocsIndexed,
		"docs_skipped", result.DocsSkipped,
		"duration", result.Duration,
		"errors", len(result.Errors))

	return result, nil
}

func (e *Engine) indexOne(ctx context.Context, result *Result, doc *models.Document) {
	n, err := e.IndexDocument(ctx, doc)
	if err != nil {
		e.fail(result, doc.URL, err)
		return
	}
	result.DocsIndexed++
	result.ChunksUpserted += n
	e.metrics.Document("indexed")
}

// fail records err as a skip for expected data-quality outcomes and as an
// error otherwise.
func (e *Engine) fail(result *Result, source string, err error) {
	if skippable(err) {
		slog.Debug("document skipped", "source", source, "reason", err)
		result.DocsSkipped++
		e.metrics.Document("skipped")
		return
	}
	slog.Warn("document failed", "source", source, "error", err)
	result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", source, err))
	e.metrics.Document("failed")
}

func skippable(err error) bool {
	return errors.Is(err, ErrRejected) ||
		errors.Is(err, processor.ErrLowQuality) ||
		errors.Is(err, processor.ErrUnsupportedType) ||
		errors.Is(err, processor.ErrTooLarge)
}
