package vectorindex

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/mfenderov/regrag/internal/metrics"
	"github.com/mfenderov/regrag/pkg/models"
)

type fakeEmbedder struct {
	batches [][]string
	err     error
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []float32{float32(len(text)), 1}, nil
}

func (f *fakeEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.batches = append(f.batches, append([]string(nil), texts...))
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(len(t)), 1}
	}
	return out, nil
}

type fakeStore struct {
	upserts   [][]models.Chunk
	failBatch map[int]bool // by call number
	cands     []models.SearchCandidate
	err       error
	gotTopK   int
	gotFilter models.Filters
}

func (f *fakeStore) Upsert(_ context.Context, chunks []models.Chunk) error {
	call := len(f.upserts)
	f.upserts = append(f.upserts, chunks)
	if f.failBatch[call] {
		return fmt.Errorf("batch %d rejected", call)
	}
	return nil
}

func (f *fakeStore) Search(_ context.Context, _ []float32, filters models.Filters, topK int) ([]models.SearchCandidate, error) {
	f.gotTopK, f.gotFilter = topK, filters
	return f.cands, f.err
}

func newIndex(t *testing.T, e Embedder, s Store, m *metrics.Metrics) *Index {
	t.Helper()
	x, err := New(Config{Dimensions: 2, BatchSize: 2}, e, s, m)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return x
}

func TestNew_ConfigErrors(t *testing.T) {
	if _, err := New(Config{Dimensions: 2}, nil, &fakeStore{}, nil); err == nil {
		t.Error("expected error for missing embedder")
	}
	if _, err := New(Config{Dimensions: 2}, &fakeEmbedder{}, nil, nil); err == nil {
		t.Error("expected error for missing store")
	}
	if _, err := New(Config{}, &fakeEmbedder{}, &fakeStore{}, nil); err == nil {
		t.Error("expected error for missing dimensions")
	}
}

func TestEmbed_EmptyInput(t *testing.T) {
	x := newIndex(t, &fakeEmbedder{}, &fakeStore{}, nil)
	for _, in := range []string{"", "   ", "\n\t"} {
		if _, err := x.Embed(context.Background(), in); !errors.Is(err, ErrEmptyInput) {
			t.Errorf("Embed(%q) error = %v, want ErrEmptyInput", in, err)
		}
	}
}

func TestBatchEmbed_ZeroVectorsKeepAlignment(t *testing.T) {
	e := &fakeEmbedder{}
	x := newIndex(t, e, &fakeStore{}, nil)

	texts := []string{"aa", "", "bbbb", "  ", "c"}
	vecs, err := x.BatchEmbed(context.Background(), texts)
	if err != nil {
		t.Fatalf("BatchEmbed() error = %v", err)
	}

	want := [][]float32{{2, 1}, {0, 0}, {4, 1}, {0, 0}, {1, 1}}
	for i := range want {
		if len(vecs[i]) != 2 || vecs[i][0] != want[i][0] || vecs[i][1] != want[i][1] {
			t.Errorf("vecs[%d] = %v, want %v", i, vecs[i], want[i])
		}
	}
	if len(e.batches) != 2 || len(e.batches[0]) != 2 || len(e.batches[1]) != 1 {
		t.Errorf("batches = %v, want sizes [2 1]", e.batches)
	}
}

func TestBatchEmbed_Error(t *testing.T) {
	x := newIndex(t, &fakeEmbedder{err: errors.New("backend down")}, &fakeStore{}, nil)
	if _, err := x.BatchEmbed(context.Background(), []string{"a"}); err == nil {
		t.Error("expected embedder error to propagate")
	}
}

func TestUpsert_SkipsFailedBatch(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	store := &fakeStore{failBatch: map[int]bool{1: true}}
	x := newIndex(t, &fakeEmbedder{}, store, m)

	var chunks []models.Chunk
	for i := 0; i < 5; i++ {
		chunks = append(chunks, models.Chunk{ChunkIndex: i, Metadata: map[string]string{"checksum": "abc"}})
	}

	res := x.Upsert(context.Background(), chunks)

	if len(store.upserts) != 3 {
		t.Fatalf("store saw %d batches, want 3", len(store.upserts))
	}
	if res.Upserted != 3 || res.Failed != 2 || res.FailedBatches != 1 {
		t.Errorf("result = %+v", res)
	}
	if got := store.upserts[2][0].ID(); got != "abc-4" {
		t.Errorf("last batch starts at %q, want abc-4", got)
	}
	expected := `
# HELP regrag_upsert_batch_failures_total Vector upsert batches that failed and were skipped.
# TYPE regrag_upsert_batch_failures_total counter
regrag_upsert_batch_failures_total 1
`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(expected), "regrag_upsert_batch_failures_total"); err != nil {
		t.Errorf("upsert failure counter: %v", err)
	}
}

func TestSearch_Validation(t *testing.T) {
	x := newIndex(t, &fakeEmbedder{}, &fakeStore{}, nil)
	ctx := context.Background()

	for _, k := range []int{0, -1, 101} {
		if _, err := x.Search(ctx, []float32{1}, models.Filters{}, k); !errors.Is(err, ErrInvalidTopK) {
			t.Errorf("Search(topK=%d) error = %v, want ErrInvalidTopK", k, err)
		}
	}
	if _, err := x.Search(ctx, nil, models.Filters{}, 5); !errors.Is(err, ErrEmptyVector) {
		t.Errorf("Search(nil vector) error = %v, want ErrEmptyVector", err)
	}
}

func TestSearch_ScoreFromDistance(t *testing.T) {
	store := &fakeStore{cands: []models.SearchCandidate{{ID: "a", Distance: 0.25}, {ID: "b", Distance: 0.6}}}
	x := newIndex(t, &fakeEmbedder{}, store, nil)

	filters := models.Filters{Province: "gd", Asset: "solar"}
	cands, err := x.Search(context.Background(), []float32{1, 0}, filters, 100)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if math.Abs(cands[0].Score-0.75) > 1e-9 || math.Abs(cands[1].Score-0.4) > 1e-9 {
		t.Errorf("scores = %v, %v", cands[0].Score, cands[1].Score)
	}
	if store.gotTopK != 100 || store.gotFilter != filters {
		t.Errorf("store got topK=%d filters=%+v", store.gotTopK, store.gotFilter)
	}
}

func TestSearch_BackendErrorPropagates(t *testing.T) {
	x := newIndex(t, &fakeEmbedder{}, &fakeStore{err: errors.New("index unavailable")}, nil)
	if _, err := x.Search(context.Background(), []float32{1}, models.Filters{}, 5); err == nil {
		t.Error("backend error must not become an empty result")
	}
}

func TestQuery(t *testing.T) {
	store := &fakeStore{cands: []models.SearchCandidate{{ID: "a", Distance: 0.1}}}
	x := newIndex(t, &fakeEmbedder{}, store, nil)

	cands, err := x.Query(context.Background(), "光伏并网验收需要哪些资料？", models.Filters{Province: "gd"}, 5)
	if err != nil || len(cands) != 1 {
		t.Fatalf("Query() = %v, %v", cands, err)
	}
	if _, err := x.Query(context.Background(), "", models.Filters{}, 5); !errors.Is(err, ErrEmptyInput) {
		t.Errorf("Query(\"\") error = %v", err)
	}
}
