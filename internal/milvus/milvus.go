// Package milvus is the alternative vector index backend, storing chunks in
// a Milvus collection with scalar metadata columns for filtered search.
package milvus

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"

	"github.com/mfenderov/regrag/pkg/models"
)

// Collection fields.
const (
	FieldID         = "id"
	FieldEmbedding  = "embedding"
	FieldText       = "text"
	FieldChunkIndex = "chunk_index"
)

// metadataFields are stored as VarChar columns, with their max lengths.
var metadataFields = []struct {
	name   string
	maxLen int64
}{
	{"title", 512},
	{"url", 2048},
	{"effective_date", 16},
	{"province", 16},
	{"asset", 16},
	{"doc_class", 16},
	{"checksum", 64},
	{"lang", 16},
}

// Config holds Milvus connection configuration.
type Config struct {
	Address    string
	Collection string
	Dimensions int
	EF         int // HNSW search breadth
}

// Store is a Milvus-backed chunk index.
type Store struct {
	client     client.Client
	collection string
	dimensions int
	ef         int
}

// New connects to Milvus.
func New(ctx context.Context, config Config) (*Store, error) {
	if config.Address == "" {
		return nil, fmt.Errorf("address is required")
	}
	if config.Collection == "" {
		return nil, fmt.Errorf("collection is required")
	}
	if config.Dimensions <= 0 {
		return nil, fmt.Errorf("dimensions are required")
	}
	if config.EF <= 0 {
		config.EF = 64
	}

	c, err := client.NewClient(ctx, client.Config{Address: config.Address})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to milvus: %w", err)
	}

	return &Store{
		client:     c,
		collection: config.Collection,
		dimensions: config.Dimensions,
		ef:         config.EF,
	}, nil
}

// Close releases the connection.
func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) schema() *entity.Schema {
	schema := entity.NewSchema().
		WithName(s.collection).
		WithDescription("regulatory document chunks").
		WithField(entity.NewField().WithName(FieldID).WithDataType(entity.FieldTypeVarChar).WithIsPrimaryKey(true).WithMaxLength(128)).
		WithField(entity.NewField().WithName(FieldEmbedding).WithDataType(entity.FieldTypeFloatVector).WithDim(int64(s.dimensions))).
		WithField(entity.NewField().WithName(FieldText).WithDataType(entity.FieldTypeVarChar).WithMaxLength(16384)).
		WithField(entity.NewField().WithName(FieldChunkIndex).WithDataType(entity.FieldTypeInt64))
	for _, f := range metadataFields {
		schema.WithField(entity.NewField().WithName(f.name).WithDataType(entity.FieldTypeVarChar).WithMaxLength(f.maxLen))
	}
	return schema
}

// EnsureCollection creates the collection and its HNSW index if missing and
// loads it for search.
func (s *Store) EnsureCollection(ctx context.Context) error {
	exists, err := s.client.HasCollection(ctx, s.collection)
	if err != nil {
		return fmt.Errorf("failed to check collection: %w", err)
	}

	if !exists {
		if err := s.client.CreateCollection(ctx, s.schema(), 2); err != nil {
			return fmt.Errorf("failed to create collection: %w", err)
		}
		idx, err := entity.NewIndexHNSW(entity.COSINE, 16, 200)
		if err != nil {
			return fmt.Errorf("failed to build index params: %w", err)
		}
		if err := s.client.CreateIndex(ctx, s.collection, FieldEmbedding, idx, false); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
		slog.Info("created milvus collection", "collection", s.collection, "dims", s.dimensions)
	}

	if err := s.client.LoadCollection(ctx, s.collection, false); err != nil {
		return fmt.Errorf("failed to load collection: %w", err)
	}
	return nil
}

// buildColumns lays chunks out column-wise. Missing metadata becomes "".
func buildColumns(chunks []models.Chunk, dim int) ([]entity.Column, error) {
	ids := make([]string, len(chunks))
	texts := make([]string, len(chunks))
	indexes := make([]int64, len(chunks))
	vectors := make([][]float32, len(chunks))
	meta := make([][]string, len(metadataFields))
	for i := range meta {
		meta[i] = make([]string, len(chunks))
	}

	for i, ch := range chunks {
		if len(ch.Embedding) != dim {
			return nil, fmt.Errorf("chunk %s has %d dimensions, want %d", ch.ID(), len(ch.Embedding), dim)
		}
		ids[i] = ch.ID()
		texts[i] = ch.Text
		indexes[i] = int64(ch.ChunkIndex)
		vectors[i] = ch.Embedding
		for j, f := range metadataFields {
			meta[j][i] = ch.Metadata[f.name]
		}
	}

	cols := []entity.Column{
		entity.NewColumnVarChar(FieldID, ids),
		entity.NewColumnFloatVector(FieldEmbedding, dim, vectors),
		entity.NewColumnVarChar(FieldText, texts),
		entity.NewColumnInt64(FieldChunkIndex, indexes),
	}
	for j, f := range metadataFields {
		cols = append(cols, entity.NewColumnVarChar(f.name, meta[j]))
	}
	return cols, nil
}

// Upsert writes chunks keyed by their stable ID.
func (s *Store) Upsert(ctx context.Context, chunks []models.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	cols, err := buildColumns(chunks, s.dimensions)
	if err != nil {
		return err
	}
	if _, err := s.client.Upsert(ctx, s.collection, "", cols...); err != nil {
		return fmt.Errorf("failed to upsert into milvus: %w", err)
	}
	return nil
}

func outputFields() []string {
	fields := []string{FieldID, FieldText}
	for _, f := range metadataFields {
		fields = append(fields, f.name)
	}
	return fields
}

// Search runs a filtered cosine search. Distance is 1 - cosine similarity.
func (s *Store) Search(ctx context.Context, vector []float32, filters models.Filters, topK int) ([]models.SearchCandidate, error) {
	sp, err := entity.NewIndexHNSWSearchParam(max(s.ef, topK))
	if err != nil {
		return nil, fmt.Errorf("failed to build search params: %w", err)
	}

	results, err := s.client.Search(
		ctx, s.collection, []string{}, filters.Expr(), outputFields(),
		[]entity.Vector{entity.FloatVector(vector)},
		FieldEmbedding, entity.COSINE, topK, sp,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to search milvus: %w", err)
	}
	return parseResults(results)
}

func parseResults(results []client.SearchResult) ([]models.SearchCandidate, error) {
	var out []models.SearchCandidate
	for _, res := range results {
		if res.Err != nil {
			return nil, fmt.Errorf("milvus search result: %w", res.Err)
		}
		columns := make(map[string]entity.Column, len(res.Fields))
		for _, col := range res.Fields {
			columns[col.Name()] = col
		}
		str := func(name string, i int) string {
			col, ok := columns[name]
			if !ok {
				return ""
			}
			v, err := col.GetAsString(i)
			if err != nil {
				return ""
			}
			return v
		}

		for i := 0; i < res.ResultCount; i++ {
			cand := models.SearchCandidate{
				ID:       str(FieldID, i),
				Text:     str(FieldText, i),
				Metadata: make(map[string]string),
				Distance: 1 - float64(res.Scores[i]),
			}
			if cand.ID == "" && res.IDs != nil {
				cand.ID, _ = res.IDs.GetAsString(i)
			}
			for _, f := range metadataFields {
				if v := str(f.name, i); v != "" {
					cand.Metadata[f.name] = v
				}
			}
			out = append(out, cand)
		}
	}
	return out, nil
}
