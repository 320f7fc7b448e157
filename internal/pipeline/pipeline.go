// Package pipeline wires discovery, ingestion, retrieval, reranking and
// composition into the two flows the service exposes: batch ingestion and
// question answering.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mfenderov/regrag/internal/catalog"
	"github.com/mfenderov/regrag/internal/composer"
	"github.com/mfenderov/regrag/internal/discovery"
	"github.com/mfenderov/regrag/internal/ingestion"
	"github.com/mfenderov/regrag/internal/intent"
	"github.com/mfenderov/regrag/internal/metrics"
	"github.com/mfenderov/regrag/internal/normalize"
	"github.com/mfenderov/regrag/internal/rerank"
	"github.com/mfenderov/regrag/internal/search"
	"github.com/mfenderov/regrag/pkg/models"
)

// ErrInvalidRequest marks requests with unknown codes or a missing question.
var ErrInvalidRequest = errors.New("invalid request")

// Answer modes.
const (
	ModeRetrieval  = "retrieval"
	ModeGenerative = "generative"
)

// Defaults.
const (
	DefaultTopK        = 8
	DefaultConcurrency = 4
	DefaultMaxURLs     = 30
	DefaultPassages    = 5
)

const generativeSystem = "你是中国新能源项目并网与审批政策助手。仅依据所检索到的政府官方文件作答，使用简体中文，逐条列出要点并注明文件名称；如无可靠依据，请直接说明无法回答。"

// Discoverer finds candidate document URLs.
type Discoverer interface {
	Discover(ctx context.Context, province, asset, docClass string) []string
	Allowlist(province string) []string
}

// Ingester processes and indexes one URL.
type Ingester interface {
	IngestURL(ctx context.Context, url, province, asset, docClass string) *ingestion.Result
}

// Searcher answers a question with nearest-neighbor candidates.
type Searcher interface {
	Query(ctx context.Context, question string, filters models.Filters, topK int) ([]models.SearchCandidate, error)
}

// Asker is a search-with-citations backend.
type Asker interface {
	Ask(ctx context.Context, req search.Request) (*search.Answer, error)
}

// Config holds pipeline configuration.
type Config struct {
	Mode        string
	TopK        int
	RerankTopK  int
	Concurrency int
	MaxURLs     int
}

// Deps are the collaborators a pipeline needs. Ingestion uses Discoverer and
// Ingester; retrieval uses Searcher; generative mode uses Generative.
// Reranker is optional.
type Deps struct {
	Discoverer Discoverer
	Ingester   Ingester
	Searcher   Searcher
	Reranker   rerank.Reranker
	Generative Asker
	Metrics    *metrics.Metrics
}

// Pipeline orchestrates ingestion and question answering.
type Pipeline struct {
	config Config
	deps   Deps
}

// New creates a Pipeline, checking the collaborators the configured mode needs.
func New(config Config, deps Deps) (*Pipeline, error) {
	if config.Mode == "" {
		config.Mode = ModeRetrieval
	}
	switch config.Mode {
	case ModeRetrieval:
	case ModeGenerative:
		if deps.Generative == nil {
			return nil, fmt.Errorf("generative mode requires a generative search backend")
		}
		if deps.Discoverer == nil {
			return nil, fmt.Errorf("generative mode requires a discoverer for the domain allowlist")
		}
	default:
		return nil, fmt.Errorf("unknown query mode %q", config.Mode)
	}
	if config.TopK <= 0 {
		config.TopK = DefaultTopK
	}
	if config.RerankTopK <= 0 || config.RerankTopK > config.TopK {
		config.RerankTopK = config.TopK
	}
	if config.Concurrency <= 0 {
		config.Concurrency = DefaultConcurrency
	}
	if config.MaxURLs <= 0 {
		config.MaxURLs = DefaultMaxURLs
	}
	return &Pipeline{config: config, deps: deps}, nil
}

// Mode returns the configured answer mode.
func (p *Pipeline) Mode() string {
	return p.config.Mode
}

// Request is a question scoped to one province, asset and document class.
type Request struct {
	Province string `json:"province"`
	Asset    string `json:"asset"`
	DocClass string `json:"doc_class"`
	Question string `json:"question"`
	Lang     string `json:"lang"`
}

// Answer is a composed response plus the mode that produced it and how the
// question was classified.
type Answer struct {
	composer.Response
	Mode            string          `json:"mode"`
	Intents         []intent.Intent `json:"intents,omitempty"`
	EnhancementType string          `json:"enhancement_type"`
}

// Normalize resolves province, asset and class aliases to codes and applies
// the default class. Unknown values are an ErrInvalidRequest.
func (r Request) Normalize() (Request, error) {
	province, ok := normalize.NormalizeProvinceCode(r.Province)
	if !ok {
		return r, fmt.Errorf("%w: unknown province %q", ErrInvalidRequest, r.Province)
	}
	asset, ok := normalize.NormalizeAssetType(r.Asset)
	if !ok {
		return r, fmt.Errorf("%w: unknown asset %q", ErrInvalidRequest, r.Asset)
	}
	docClass := catalog.DefaultDocClass
	if strings.TrimSpace(r.DocClass) != "" {
		if docClass, ok = normalize.NormalizeDocClass(r.DocClass); !ok {
			return r, fmt.Errorf("%w: unknown doc_class %q", ErrInvalidRequest, r.DocClass)
		}
	}
	question := strings.TrimSpace(r.Question)
	if question == "" {
		return r, fmt.Errorf("%w: question is required", ErrInvalidRequest)
	}
	lang := r.Lang
	if lang == "" {
		lang = models.Lang
	}
	return Request{Province: province, Asset: asset, DocClass: docClass, Question: question, Lang: lang}, nil
}

// Answer runs search, optional rerank and composition, or the generative
// backend, depending on the configured mode. Backend failures are returned;
// lack of evidence is a refusal, not an error.
func (p *Pipeline) Answer(ctx context.Context, req Request) (*Answer, error) {
	start := time.Now()
	req, err := req.Normalize()
	if err != nil {
		return nil, err
	}

	enhanced := intent.BuildEnhancedQuery(req.Question, req.Province, req.Asset)
	if v := intent.ValidateIntents(req.Question, enhanced.IntentsDetected); !v.Valid || len(v.Warnings) > 0 {
		slog.Debug("intent over-matching", "question", req.Question, "intents", enhanced.IntentsDetected, "warnings", v.Warnings)
	}
	p.deps.Metrics.QueryIntents(enhanced.EnhancementType, intentNames(enhanced.IntentsDetected))

	var resp composer.Response
	if p.config.Mode == ModeGenerative {
		resp, err = p.answerGenerative(ctx, req, enhanced)
	} else {
		resp, err = p.answerRetrieval(ctx, req)
	}

	outcome := "answer"
	switch {
	case err != nil:
		outcome = "error"
	case resp.Refused():
		outcome = "refusal"
	}
	p.deps.Metrics.ObserveQuery(p.config.Mode, outcome, time.Since(start))
	if err != nil {
		return nil, err
	}

	slog.Debug("question answered", "mode", p.config.Mode, "outcome", outcome, "citations", len(resp.Citations), "elapsed", time.Since(start))
	return &Answer{
		Response:        resp,
		Mode:            p.config.Mode,
		Intents:         enhanced.IntentsDetected,
		EnhancementType: enhanced.EnhancementType,
	}, nil
}

func intentNames(intents []intent.Intent) []string {
	names := make([]string, len(intents))
	for i, in := range intents {
		names[i] = string(in)
	}
	return names
}

func (p *Pipeline) answerRetrieval(ctx context.Context, req Request) (composer.Response, error) {
	if p.deps.Searcher == nil {
		return composer.Response{}, fmt.Errorf("no vector index configured")
	}

	filters := models.Filters{Province: req.Province, Asset: req.Asset, DocClass: req.DocClass}
	cands, err := p.deps.Searcher.Query(ctx, req.Question, filters, p.config.TopK)
	if err != nil {
		return composer.Response{}, fmt.Errorf("search: %w", err)
	}

	if p.deps.Reranker != nil {
		cands = p.deps.Reranker.Rerank(ctx, cands, req.Question, p.config.RerankTopK)
	}
	return composer.Compose(cands, req.Question, req.Lang), nil
}

// answerGenerative asks the search-with-citations backend, keeps only
// allowlisted citations and refuses when none survive.
func (p *Pipeline) answerGenerative(ctx context.Context, req Request, enhanced intent.Enhanced) (composer.Response, error) {
	allow := p.deps.Discoverer.Allowlist(req.Province)
	slog.Debug("generative query", "enhancement", enhanced.EnhancementType, "query", enhanced.EnhancedQuery)

	ans, err := p.deps.Generative.Ask(ctx, search.Request{
		System:  generativeSystem,
		User:    enhanced.EnhancedQuery,
		Domains: allow,
	})
	if err != nil {
		return composer.Response{}, fmt.Errorf("generative search: %w", err)
	}

	citations := []models.Citation{}
	seen := make(map[string]bool)
	for _, u := range ans.Citations {
		if seen[u] || !discovery.Allowed(u, allow) {
			continue
		}
		seen[u] = true
		citations = append(citations, models.Citation{Title: sourceTitle(u), URL: u})
	}

	resp := composer.Response{AnswerZh: strings.TrimSpace(ans.Text), Citations: citations}
	if len(citations) == 0 || resp.AnswerZh == "" {
		return composer.Refuse(req.Lang), nil
	}
	if err := composer.ValidateResponse(resp); err != nil {
		slog.Warn("generative answer rejected", "error", err)
		return composer.Refuse(req.Lang), nil
	}
	return resp, nil
}

func sourceTitle(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}
	return u.Host + u.Path
}

// SearchPassages returns raw ranked passages for a query without composing.
func (p *Pipeline) SearchPassages(ctx context.Context, query string, filters models.Filters, limit int) ([]models.SearchCandidate, error) {
	if p.deps.Searcher == nil {
		return nil, fmt.Errorf("no vector index configured")
	}
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: query is required", ErrInvalidRequest)
	}
	if limit <= 0 {
		limit = DefaultPassages
	}
	return p.deps.Searcher.Query(ctx, query, filters, limit)
}

// IngestRequest selects the provinces and assets to ingest. Empty lists mean
// all; an empty class means the default class.
type IngestRequest struct {
	Provinces []string
	Assets    []string
	DocClass  string
}

type job struct {
	url, province, asset, docClass string
}

// Ingest discovers documents for every (province, asset) pair in parallel,
// then processes and indexes the discovered URLs in parallel. Per-document
// failures are collected in the result; only invalid requests and
// cancellation return an error.
func (p *Pipeline) Ingest(ctx context.Context, req IngestRequest) (*ingestion.Result, error) {
	if p.deps.Discoverer == nil || p.deps.Ingester == nil {
		return nil, fmt.Errorf("ingestion is not configured")
	}
	start := time.Now()

	provinces, assets, docClass, err := req.resolve()
	if err != nil {
		return nil, err
	}

	var mu sync.Mutex
	var jobs []job
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.config.Concurrency)
	for _, province := range provinces {
		for _, asset := range assets {
			g.Go(func() error {
				urls := p.deps.Discoverer.Discover(gctx, province, asset, docClass)
				if len(urls) > p.config.MaxURLs {
					urls = urls[:p.config.MaxURLs]
				}
				slog.Info("discovered documents", "province", province, "asset", asset, "doc_class", docClass, "urls", len(urls))
				mu.Lock()
				for _, u := range urls {
					jobs = append(jobs, job{url: u, province: province, asset: asset, docClass: docClass})
				}
				mu.Unlock()
				return gctx.Err()
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := &ingestion.Result{Source: "discovery"}
	g, gctx = errgroup.WithContext(ctx)
	g.SetLimit(p.config.Concurrency)
	for _, j := range jobs {
		g.Go(func() error {
			r := p.deps.Ingester.IngestURL(gctx, j.url, j.province, j.asset, j.docClass)
			mu.Lock()
			result.Merge(r)
			mu.Unlock()
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result.Duration = time.Since(start)
	slog.Info("ingestion complete",
		"urls", len(jobs),
		"docs_indexed", result.DocsIndexed,
		"docs_skipped", result.DocsSkipped,
		"chunks", result.ChunksUpserted,
		"errors", len(result.Errors),
		"duration", result.Duration)
	return result, nil
}

func (r IngestRequest) resolve() (provinces, assets []string, docClass string, err error) {
	provinces = catalog.ProvinceCodes()
	if len(r.Provinces) > 0 {
		provinces = nil
		for _, s := range r.Provinces {
			code, ok := normalize.NormalizeProvinceCode(s)
			if !ok {
				return nil, nil, "", fmt.Errorf("%w: unknown province %q", ErrInvalidRequest, s)
			}
			provinces = append(provinces, code)
		}
	}
	assets = catalog.AssetCodes()
	if len(r.Assets) > 0 {
		assets = nil
		for _, s := range r.Assets {
			code, ok := normalize.NormalizeAssetType(s)
			if !ok {
				return nil, nil, "", fmt.Errorf("%w: unknown asset %q", ErrInvalidRequest, s)
			}
			assets = append(assets, code)
		}
	}
	docClass = catalog.DefaultDocClass
	if strings.TrimSpace(r.DocClass) != "" {
		var ok bool
		if docClass, ok = normalize.NormalizeDocClass(r.DocClass); !ok {
			return nil, nil, "", fmt.Errorf("%w: unknown doc_class %q", ErrInvalidRequest, r.DocClass)
		}
	}
	return provinces, assets, docClass, nil
}
