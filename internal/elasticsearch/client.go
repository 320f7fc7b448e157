// Package elasticsearch is the default vector index backend: chunks are
// stored with a dense_vector field and searched with filtered kNN.
package elasticsearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"

	"github.com/mfenderov/regrag/pkg/models"
)

// Config holds Elasticsearch client configuration.
type Config struct {
	Addresses  []string
	Index      string
	Username   string
	Password   string
	Dimensions int
}

// Client wraps the Elasticsearch client with chunk index operations.
type Client struct {
	es         *elasticsearch.Client
	index      string
	dimensions int
}

// New creates a new Elasticsearch client.
func New(config Config) (*Client, error) {
	if len(config.Addresses) == 0 {
		return nil, fmt.Errorf("addresses are required")
	}
	if config.Index == "" {
		return nil, fmt.Errorf("index is required")
	}

	cfg := elasticsearch.Config{
		Addresses: config.Addresses,
		Username:  config.Username,
		Password:  config.Password,
	}

	es, err := elasticsearch.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create ES client: %w", err)
	}

	return &Client{
		es:         es,
		index:      config.Index,
		dimensions: config.Dimensions,
	}, nil
}

// Ping checks if Elasticsearch is available.
func (c *Client) Ping(ctx context.Context) bool {
	res, err := c.es.Ping(c.es.Ping.WithContext(ctx))
	if err != nil {
		return false
	}
	defer res.Body.Close()
	return !res.IsError()
}

// keywordFields are the chunk metadata fields used as exact-match filters.
var keywordFields = []string{"url", "effective_date", "province", "asset", "doc_class", "checksum", "lang"}

func (c *Client) mapping() ([]byte, error) {
	props := map[string]any{
		"text":        map[string]any{"type": "text"},
		"title":       map[string]any{"type": "text", "fields": map[string]any{"raw": map[string]any{"type": "keyword"}}},
		"chunk_index": map[string]any{"type": "integer"},
	}
	for _, f := range keywordFields {
		props[f] = map[string]any{"type": "keyword"}
	}
	if c.dimensions > 0 {
		props["embedding"] = map[string]any{
			"type":       "dense_vector",
			"dims":       c.dimensions,
			"index":      true,
			"similarity": "cosine",
		}
	}
	return json.Marshal(map[string]any{"mappings": map[string]any{"properties": props}})
}

// CreateIndex creates the index with proper mapping.
func (c *Client) CreateIndex(ctx context.Context) error {
	res, err := c.es.Indices.Exists([]string{c.index}, c.es.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to check index: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode == 200 {
		return nil
	}

	body, err := c.mapping()
	if err != nil {
		return fmt.Errorf("failed to build mapping: %w", err)
	}

	res, err = c.es.Indices.Create(
		c.index,
		c.es.Indices.Create.WithContext(ctx),
		c.es.Indices.Create.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("error creating index: %s", res.String())
	}

	return nil
}

// DeleteIndex removes the index (for testing/cleanup).
func (c *Client) DeleteIndex(ctx context.Context) error {
	res, err := c.es.Indices.Delete([]string{c.index}, c.es.Indices.Delete.WithContext(ctx))
	if err != nil {
		return err
	}
	defer res.Body.Close()
	return nil
}

// Refresh forces an index refresh (useful for testing).
func (c *Client) Refresh(ctx context.Context) error {
	res, err := c.es.Indices.Refresh(
		c.es.Indices.Refresh.WithContext(ctx),
		c.es.Indices.Refresh.WithIndex(c.index),
	)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	return nil
}

func chunkSource(ch models.Chunk) map[string]any {
	src := make(map[string]any, len(ch.Metadata)+3)
	for k, v := range ch.Metadata {
		src[k] = v
	}
	src["text"] = ch.Text
	src["chunk_index"] = ch.ChunkIndex
	if len(ch.Embedding) > 0 {
		src["embedding"] = ch.Embedding
	}
	return src
}

type bulkResponse struct {
	Errors bool `json:"errors"`
	Items  []map[string]struct {
		ID     string `json:"_id"`
		Status int    `json:"status"`
		Error  *struct {
			Type   string `json:"type"`
			Reason string `json:"reason"`
		} `json:"error"`
	} `json:"items"`
}

// Upsert writes chunks keyed by their stable ID, replacing earlier versions,
// in a single bulk request.
func (c *Client) Upsert(ctx context.Context, chunks []models.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, ch := range chunks {
		action := map[string]any{"index": map[string]any{"_index": c.index, "_id": ch.ID()}}
		if err := enc.Encode(action); err != nil {
			return fmt.Errorf("failed to encode action: %w", err)
		}
		if err := enc.Encode(chunkSource(ch)); err != nil {
			return fmt.Errorf("failed to encode chunk %s: %w", ch.ID(), err)
		}
	}

	res, err := c.es.Bulk(
		bytes.NewReader(buf.Bytes()),
		c.es.Bulk.WithContext(ctx),
		c.es.Bulk.WithIndex(c.index),
	)
	if err != nil {
		return fmt.Errorf("bulk request failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("bulk error: %s", res.String())
	}

	var br bulkResponse
	if err := json.NewDecoder(res.Body).Decode(&br); err != nil {
		return fmt.Errorf("failed to decode bulk response: %w", err)
	}
	if !br.Errors {
		return nil
	}

	var failed []string
	for _, item := range br.Items {
		for _, r := range item {
			if r.Error != nil {
				failed = append(failed, fmt.Sprintf("%s: %s", r.ID, r.Error.Reason))
			}
		}
	}
	return fmt.Errorf("bulk upsert failed for %d chunks: %s", len(failed), strings.Join(failed, "; "))
}

// searchResponse represents ES search response structure.
type searchResponse struct {
	Hits struct {
		Hits []struct {
			ID     string         `json:"_id"`
			Score  float64        `json:"_score"`
			Source map[string]any `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// Search runs a filtered kNN query. Distance is reported on the cosine scale
// (1 - cosine similarity); ES scores cosine as (1 + cos) / 2.
func (c *Client) Search(ctx context.Context, vector []float32, filters models.Filters, topK int) ([]models.SearchCandidate, error) {
	knn := map[string]any{
		"field":          "embedding",
		"query_vector":   vector,
		"k":              topK,
		"num_candidates": max(100, topK*10),
	}
	if terms := filters.Terms(); len(terms) > 0 {
		var must []map[string]any
		for _, t := range terms {
			must = append(must, map[string]any{"term": map[string]any{t[0]: t[1]}})
		}
		knn["filter"] = map[string]any{"bool": map[string]any{"filter": must}}
	}

	searchQuery := map[string]any{
		"knn":     knn,
		"size":    topK,
		"_source": map[string]any{"excludes": []string{"embedding"}},
	}

	data, err := json.Marshal(searchQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal query: %w", err)
	}

	res, err := c.es.Search(
		c.es.Search.WithContext(ctx),
		c.es.Search.WithIndex(c.index),
		c.es.Search.WithBody(bytes.NewReader(data)),
	)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("search error: %s", res.String())
	}

	var sr searchResponse
	if err := json.NewDecoder(res.Body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	out := make([]models.SearchCandidate, 0, len(sr.Hits.Hits))
	for _, hit := range sr.Hits.Hits {
		cand := models.SearchCandidate{
			ID:       hit.ID,
			Metadata: make(map[string]string),
			Distance: 2 - 2*hit.Score,
		}
		for k, v := range hit.Source {
			switch k {
			case "text":
				cand.Text, _ = v.(string)
			case "chunk_index", "embedding":
			default:
				if s, ok := v.(string); ok && s != "" {
					cand.Metadata[k] = s
				}
			}
		}
		out = append(out, cand)
	}
	return out, nil
}
