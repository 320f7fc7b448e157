package models

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// Chunk length bounds in characters.
const (
	MinChunkChars = 50
	MaxChunkChars = 2000
)

var (
	ErrChunkLength   = errors.New("chunk text out of bounds")
	ErrChunkChecksum = errors.New("chunk metadata has no checksum")
)

// Chunk is a bounded slice of a Document's text plus denormalized metadata.
type Chunk struct {
	Text       string            `json:"text"`
	ChunkIndex int               `json:"chunk_index"`
	Metadata   map[string]string `json:"metadata"`
	Embedding  []float32         `json:"embedding,omitempty"`
}

// NewChunk builds a chunk, rejecting text outside [MinChunkChars, MaxChunkChars]
// and metadata that does not trace back to a document checksum.
func NewChunk(text string, index int, meta map[string]string) (Chunk, error) {
	n := utf8.RuneCountInString(strings.TrimSpace(text))
	if n < MinChunkChars || n > MaxChunkChars {
		return Chunk{}, fmt.Errorf("%w: %d chars", ErrChunkLength, n)
	}
	if meta["checksum"] == "" {
		return Chunk{}, ErrChunkChecksum
	}

	copied := make(map[string]string, len(meta))
	for k, v := range meta {
		if v != "" {
			copied[k] = v
		}
	}

	return Chunk{
		Text:       text,
		ChunkIndex: index,
		Metadata:   copied,
	}, nil
}

// ID returns the stable vector-index key for the chunk.
func (c Chunk) ID() string {
	return fmt.Sprintf("%s-%d", c.Metadata["checksum"], c.ChunkIndex)
}

// Citation is a deduplicated source reference surfaced with an answer.
type Citation struct {
	Title         string `json:"title"`
	URL           string `json:"url"`
	EffectiveDate string `json:"effective_date,omitempty"`
}

// SearchCandidate is a ranked result of a single nearest-neighbor query.
type SearchCandidate struct {
	ID       string            `json:"id"`
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata"`
	Score    float64           `json:"score"`
	Distance float64           `json:"distance"`
}

// Filters restricts a search to a province/asset/doc-class slice of the index.
type Filters struct {
	Province string `json:"province,omitempty"`
	Asset    string `json:"asset,omitempty"`
	DocClass string `json:"doc_class,omitempty"`
}

// Terms returns the non-empty filter values keyed by metadata field, in a fixed order.
func (f Filters) Terms() [][2]string {
	var terms [][2]string
	if f.Province != "" {
		terms = append(terms, [2]string{"province", f.Province})
	}
	if f.Asset != "" {
		terms = append(terms, [2]string{"asset", f.Asset})
	}
	if f.DocClass != "" {
		terms = append(terms, [2]string{"doc_class", f.DocClass})
	}
	return terms
}

// Expr builds a conjunctive equality expression, e.g. `province == "gd" && asset == "solar"`.
// It returns "" when no filter is set.
func (f Filters) Expr() string {
	terms := f.Terms()
	parts := make([]string, len(terms))
	for i, t := range terms {
		parts[i] = fmt.Sprintf("%s == %q", t[0], t[1])
	}
	return strings.Join(parts, " && ")
}
