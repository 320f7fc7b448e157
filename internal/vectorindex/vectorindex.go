// Package vectorindex embeds chunks and queries and runs filtered
// nearest-neighbor search over a pluggable index backend.
package vectorindex

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mfenderov/regrag/internal/metrics"
	"github.com/mfenderov/regrag/pkg/models"
)

var (
	ErrEmptyInput  = errors.New("empty input")
	ErrInvalidTopK = errors.New("top_k must be between 1 and 100")
	ErrEmptyVector = errors.New("empty query vector")
)

// Bounds and defaults.
const (
	MaxTopK          = 100
	DefaultBatchSize = 32
)

// Embedder turns text into vectors.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Store is the similarity index backend. Search reports Distance on a scale
// where 0 is identical.
type Store interface {
	Upsert(ctx context.Context, chunks []models.Chunk) error
	Search(ctx context.Context, vector []float32, filters models.Filters, topK int) ([]models.SearchCandidate, error)
}

// Config holds index configuration.
type Config struct {
	Dimensions int
	BatchSize  int
}

// Index combines an embedder and a store.
type Index struct {
	embedder   Embedder
	store      Store
	metrics    *metrics.Metrics
	dimensions int
	batchSize  int
}

// New creates an Index. Missing collaborators are configuration errors.
func New(config Config, embedder Embedder, store Store, m *metrics.Metrics) (*Index, error) {
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if config.Dimensions <= 0 {
		return nil, fmt.Errorf("dimensions are required")
	}
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultBatchSize
	}
	return &Index{
		embedder:   embedder,
		store:      store,
		metrics:    m,
		dimensions: config.Dimensions,
		batchSize:  config.BatchSize,
	}, nil
}

// Embed embeds a single non-blank text.
func (x *Index) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyInput
	}
	vec, err := x.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed: %w", err)
	}
	return vec, nil
}

// BatchEmbed embeds texts in batches, keeping positions aligned: blank texts
// get a zero vector instead of a call to the embedder.
func (x *Index) BatchEmbed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))

	var idx []int
	var batch []string
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		vecs, err := x.embedder.EmbedBatch(ctx, batch)
		if err != nil {
			return fmt.Errorf("embed batch: %w", err)
		}
		if len(vecs) != len(batch) {
			return fmt.Errorf("embed batch: got %d vectors for %d texts", len(vecs), len(batch))
		}
		for i, v := range vecs {
			out[idx[i]] = v
		}
		idx, batch = idx[:0], batch[:0]
		return nil
	}

	for i, t := range texts {
		if strings.TrimSpace(t) == "" {
			out[i] = make([]float32, x.dimensions)
			continue
		}
		idx = append(idx, i)
		batch = append(batch, t)
		if len(batch) == x.batchSize {
			if err := flush(); err != nil {
				return nil, err
			}
		}
	}
	if err := flush(); err != nil {
		return nil, err
	}
	return out, nil
}

// UpsertResult counts chunks written and chunks lost to failed batches.
type UpsertResult struct {
	Upserted      int
	Failed        int
	FailedBatches int
}

// Upsert writes chunks in fixed-size batches. A failing batch is logged and
// skipped so the rest of the document still lands.
func (x *Index) Upsert(ctx context.Context, chunks []models.Chunk) UpsertResult {
	var res UpsertResult
	for start := 0; start < len(chunks); start += x.batchSize {
		end := min(start+x.batchSize, len(chunks))
		batch := chunks[start:end]
		if err := x.store.Upsert(ctx, batch); err != nil {
			slog.Warn("upsert batch failed", "first_id", batch[0].ID(), "size", len(batch), "error", err)
			x.metrics.UpsertBatchFailed()
			res.Failed += len(batch)
			res.FailedBatches++
			continue
		}
		res.Upserted += len(batch)
	}
	return res
}

// Search validates its arguments and returns candidates scored as 1 - distance.
// Backend errors are returned, never masked as an empty result.
func (x *Index) Search(ctx context.Context, vector []float32, filters models.Filters, topK int) ([]models.SearchCandidate, error) {
	if topK < 1 || topK > MaxTopK {
		return nil, fmt.Errorf("%w: %d", ErrInvalidTopK, topK)
	}
	if len(vector) == 0 {
		return nil, ErrEmptyVector
	}

	cands, err := x.store.Search(ctx, vector, filters, topK)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	for i := range cands {
		cands[i].Score = 1 - cands[i].Distance
	}
	return cands, nil
}

// Query embeds a question and searches with it.
func (x *Index) Query(ctx context.Context, question string, filters models.Filters, topK int) ([]models.SearchCandidate, error) {
	vec, err := x.Embed(ctx, question)
	if err != nil {
		return nil, err
	}
	return x.Search(ctx, vec, filters, topK)
}
