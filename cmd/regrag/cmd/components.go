package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/mfenderov/regrag/internal/cache"
	"github.com/mfenderov/regrag/internal/chunker"
	"github.com/mfenderov/regrag/internal/config"
	"github.com/mfenderov/regrag/internal/discovery"
	"github.com/mfenderov/regrag/internal/elasticsearch"
	"github.com/mfenderov/regrag/internal/embeddings"
	"github.com/mfenderov/regrag/internal/extract"
	"github.com/mfenderov/regrag/internal/ingestion"
	"github.com/mfenderov/regrag/internal/llm"
	"github.com/mfenderov/regrag/internal/metrics"
	"github.com/mfenderov/regrag/internal/milvus"
	"github.com/mfenderov/regrag/internal/pipeline"
	"github.com/mfenderov/regrag/internal/processor"
	"github.com/mfenderov/regrag/internal/rerank"
	"github.com/mfenderov/regrag/internal/scraper"
	"github.com/mfenderov/regrag/internal/search"
	"github.com/mfenderov/regrag/internal/storage"
	"github.com/mfenderov/regrag/internal/vectorindex"
)

// components builds clients from the loaded configuration and closes the
// ones that hold connections.
type components struct {
	cfg      config.Config
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	closers  []func() error

	store *storage.Client
	idx   *vectorindex.Index
}

func newComponents(cfg config.Config) *components {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return &components{cfg: cfg, registry: reg, metrics: metrics.New(reg)}
}

func (c *components) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			slog.Warn("close failed", "error", err)
		}
	}
}

func (c *components) storage(ctx context.Context) (*storage.Client, error) {
	if c.store != nil {
		return c.store, nil
	}
	if c.cfg.Storage.Endpoint == "" {
		return nil, fmt.Errorf("storage not configured - check config file")
	}
	s, err := storage.New(storage.Config{
		Endpoint:        c.cfg.Storage.Endpoint,
		Bucket:          c.cfg.Storage.Bucket,
		AccessKeyID:     c.cfg.Storage.AccessKeyID,
		SecretAccessKey: c.cfg.Storage.SecretAccessKey,
		UseSSL:          c.cfg.Storage.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	if err := s.EnsureBucket(ctx); err != nil {
		return nil, err
	}
	c.store = s
	return s, nil
}

func (c *components) retry() search.Retry {
	return search.Retry{MaxTries: c.cfg.Search.MaxRetries, InitialInterval: c.cfg.Search.RetryDelay}
}

// generative returns nil when no API key is configured.
func (c *components) generative() (*search.Generative, error) {
	g, err := search.NewGenerative(search.GenerativeConfig{
		APIKey:  c.cfg.Generative.APIKey,
		BaseURL: c.cfg.Generative.BaseURL,
		Model:   c.cfg.Generative.Model,
		Timeout: c.cfg.Generative.Timeout,
		Retry:   c.retry(),
	})
	if errors.Is(err, search.ErrNotConfigured) {
		return nil, nil
	}
	return g, err
}

func (c *components) discoveryConfig() discovery.Config {
	d := c.cfg.Discovery
	return discovery.Config{
		MaxVariants:       d.MaxVariants,
		ResultsPerQuery:   d.ResultsPerQuery,
		ExtraDomains:      d.ExtraDomains,
		GlobalDomains:     d.GlobalDomains,
		SeedPages:         c.cfg.Crawler.Seeds,
		CheckReachability: d.CheckReachability,
		ReachTimeout:      d.ReachTimeout,
		QueriesPerSecond:  d.QueriesPerSecond,
		Recency:           d.Recency,
	}
}

// discoverer wires every configured discovery stage. Unconfigured stages are
// left nil and skipped.
func (c *components) discoverer(ctx context.Context) (*discovery.Discoverer, error) {
	b := discovery.Backends{Metrics: c.metrics}

	cse, err := search.NewCSE(ctx, search.CSEConfig{
		APIKey: c.cfg.Search.APIKey,
		CX:     c.cfg.Search.CX,
		Retry:  c.retry(),
	})
	switch {
	case err == nil:
		b.Primary = cse
	case errors.Is(err, search.ErrNotConfigured):
		slog.Warn("primary search not configured")
	default:
		return nil, err
	}

	g, err := c.generative()
	if err != nil {
		return nil, err
	}
	if g != nil {
		b.Generative = g
	}

	if len(c.cfg.Crawler.Seeds) > 0 {
		b.Crawler = scraper.New(scraper.Config{
			Delay:       c.cfg.Crawler.Delay,
			MaxDepth:    c.cfg.Crawler.MaxDepth,
			FollowLinks: c.cfg.Crawler.MaxDepth > 1,
			UserAgent:   c.cfg.Crawler.UserAgent,
			Timeout:     c.cfg.Crawler.Timeout,
		})
	}

	if c.cfg.Discovery.CacheEnabled {
		rc, err := cache.New(ctx, cache.Config{
			Addr:     c.cfg.Redis.Addr,
			Password: c.cfg.Redis.Password,
			DB:       c.cfg.Redis.DB,
			TTL:      c.cfg.Discovery.CacheTTL,
		})
		if err != nil {
			slog.Warn("discovery cache disabled", "error", err)
		} else {
			b.Cache = rc
			c.closers = append(c.closers, rc.Close)
		}
	}

	return discovery.New(c.discoveryConfig(), b), nil
}

func (c *components) dimensions() int {
	if c.cfg.Embeddings.Dimensions > 0 {
		return c.cfg.Embeddings.Dimensions
	}
	return embeddings.Dimensions(c.cfg.Embeddings.Model)
}

// vectorStore returns the configured backend with its index or collection ready.
func (c *components) vectorStore(ctx context.Context) (vectorindex.Store, error) {
	vs := c.cfg.VectorStore
	switch vs.Backend {
	case "milvus":
		s, err := milvus.New(ctx, milvus.Config{
			Address:    vs.Milvus.Address,
			Collection: vs.Milvus.Collection,
			Dimensions: c.dimensions(),
			EF:         vs.Milvus.EF,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to connect to Milvus: %w", err)
		}
		c.closers = append(c.closers, s.Close)
		if err := s.EnsureCollection(ctx); err != nil {
			return nil, err
		}
		return s, nil
	case "elasticsearch", "":
		es, err := elasticsearch.New(elasticsearch.Config{
			Addresses:  vs.Elasticsearch.Addresses,
			Index:      vs.Elasticsearch.Index,
			Username:   vs.Elasticsearch.Username,
			Password:   vs.Elasticsearch.Password,
			Dimensions: c.dimensions(),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to connect to Elasticsearch: %w", err)
		}
		if err := es.CreateIndex(ctx); err != nil {
			return nil, err
		}
		return es, nil
	default:
		return nil, fmt.Errorf("unknown vector store backend %q", vs.Backend)
	}
}

func (c *components) index(ctx context.Context) (*vectorindex.Index, error) {
	if c.idx != nil {
		return c.idx, nil
	}
	e := c.cfg.Embeddings
	embedder, err := embeddings.New(embeddings.Config{
		BaseURL:       e.BaseURL,
		SocketPath:    e.SocketPath,
		APIKey:        e.APIKey,
		Model:         e.Model,
		MaxInputChars: e.MaxInputChars,
		Timeout:       e.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create embeddings client: %w", err)
	}

	store, err := c.vectorStore(ctx)
	if err != nil {
		return nil, err
	}

	idx, err := vectorindex.New(vectorindex.Config{Dimensions: c.dimensions(), BatchSize: e.BatchSize}, embedder, store, c.metrics)
	if err != nil {
		return nil, err
	}
	c.idx = idx
	return idx, nil
}

func (c *components) extractor(store *storage.Client) (extract.Backend, error) {
	x := c.cfg.Extractor
	switch x.Backend {
	case "http":
		b, err := extract.NewHTTP(extract.HTTPConfig{
			BaseURL:    x.BaseURL,
			SocketPath: x.SocketPath,
			APIKey:     x.APIKey,
			Timeout:    x.Timeout,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create extractor: %w", err)
		}
		return b, nil
	case "local", "":
		b, err := extract.NewLocal(store)
		if err != nil {
			return nil, err
		}
		return b, nil
	case "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown extractor backend %q", x.Backend)
	}
}

// engine builds the ingestion engine. The processor is only wired when
// withProcessor is set; reindex does not fetch anything.
func (c *components) engine(ctx context.Context, withProcessor bool) (*ingestion.Engine, error) {
	store, err := c.storage(ctx)
	if err != nil {
		return nil, err
	}
	idx, err := c.index(ctx)
	if err != nil {
		return nil, err
	}

	var proc ingestion.Processor
	if withProcessor {
		x, err := c.extractor(store)
		if err != nil {
			return nil, err
		}
		p, err := processor.New(processor.Config{
			MaxBytes:  c.cfg.Processor.MaxBytes,
			Timeout:   c.cfg.Processor.Timeout,
			UserAgent: c.cfg.Processor.UserAgent,
		}, store, x)
		if err != nil {
			return nil, err
		}
		proc = p
	}

	ch := chunker.New(chunker.Config{
		TargetTokens:  c.cfg.Chunking.TargetTokens,
		OverlapTokens: c.cfg.Chunking.OverlapTokens,
	})
	return ingestion.New(proc, ch, idx, store, c.metrics)
}

// reranker returns nil unless rerank is enabled and an LLM is addressable.
func (c *components) reranker() rerank.Reranker {
	if !c.cfg.Rerank.Enabled {
		return nil
	}
	client, err := llm.New(llm.Config{
		BaseURL:    c.cfg.LLM.BaseURL,
		SocketPath: c.cfg.LLM.SocketPath,
		APIKey:     c.cfg.LLM.APIKey,
		Model:      c.cfg.LLM.Model,
		Timeout:    c.cfg.LLM.Timeout,
	})
	if err != nil {
		slog.Warn("rerank disabled", "error", err)
		return nil
	}
	return rerank.FromConfig(true, rerank.Config{Timeout: c.cfg.Rerank.Timeout}, client, c.metrics)
}

// pipeline builds the pipeline used for answering and passage search. With
// ingest set it also wires discovery and the ingestion engine.
func (c *components) pipeline(ctx context.Context, ingest bool) (*pipeline.Pipeline, error) {
	idx, err := c.index(ctx)
	if err != nil {
		return nil, err
	}

	deps := pipeline.Deps{
		Searcher: idx,
		Reranker: c.reranker(),
		Metrics:  c.metrics,
	}

	if ingest {
		d, err := c.discoverer(ctx)
		if err != nil {
			return nil, err
		}
		eng, err := c.engine(ctx, true)
		if err != nil {
			return nil, err
		}
		deps.Discoverer = d
		deps.Ingester = eng
	}

	if c.cfg.Query.Mode == pipeline.ModeGenerative {
		g, err := c.generative()
		if err != nil {
			return nil, err
		}
		if g == nil {
			return nil, fmt.Errorf("generative mode requires generative.api_key")
		}
		deps.Generative = g
		if deps.Discoverer == nil {
			deps.Discoverer = discovery.New(c.discoveryConfig(), discovery.Backends{Metrics: c.metrics})
		}
	}

	return pipeline.New(pipeline.Config{
		Mode:        c.cfg.Query.Mode,
		TopK:        c.cfg.Query.TopK,
		RerankTopK:  c.cfg.Rerank.TopK,
		Concurrency: c.cfg.Ingest.Concurrency,
		MaxURLs:     c.cfg.Ingest.MaxURLs,
	}, deps)
}
