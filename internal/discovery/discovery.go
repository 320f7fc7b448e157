// Package discovery finds candidate regulatory document URLs for a
// province/asset/document-class triple by querying search backends under a
// government domain allowlist, falling back through a chain of sources.
package discovery

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/mfenderov/regrag/internal/cache"
	"github.com/mfenderov/regrag/internal/catalog"
	"github.com/mfenderov/regrag/internal/metrics"
	"github.com/mfenderov/regrag/internal/scraper"
	"github.com/mfenderov/regrag/internal/search"
)

// OutcomeKind separates a run-ending failure from an empty or successful stage.
type OutcomeKind int

const (
	OutcomeOK OutcomeKind = iota
	OutcomeEmpty
	OutcomeFatal
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeOK:
		return "ok"
	case OutcomeEmpty:
		return "empty"
	case OutcomeFatal:
		return "fatal"
	}
	return "unknown"
}

// Outcome is the result of one discovery stage. A Fatal outcome may still
// carry the candidates gathered before the run was aborted.
type Outcome struct {
	Kind       OutcomeKind
	candidates []candidate
}

func outcomeOf(cands []candidate, fatal bool) Outcome {
	switch {
	case fatal:
		return Outcome{Kind: OutcomeFatal, candidates: cands}
	case len(cands) == 0:
		return Outcome{Kind: OutcomeEmpty}
	default:
		return Outcome{Kind: OutcomeOK, candidates: cands}
	}
}

// Generative is the search-with-citations backend used as a fallback.
type Generative interface {
	Ask(ctx context.Context, req search.Request) (*search.Answer, error)
}

// Crawler collects document links from listing pages.
type Crawler interface {
	Collect(ctx context.Context, seeds []string, match scraper.MatchFunc) ([]scraper.Link, error)
}

// DefaultReachTimeout bounds each liveness probe.
const DefaultReachTimeout = 10 * time.Second

// Config holds discovery configuration.
type Config struct {
	MaxVariants       int
	ResultsPerQuery   int
	ExtraDomains      map[string][]string // per province code
	GlobalDomains     []string
	SeedPages         map[string][]string // per province code
	CheckReachability bool
	ReachTimeout      time.Duration
	QueriesPerSecond  float64
	Recency           string
}

// Backends are the optional sources discovery draws on. Any may be nil.
type Backends struct {
	Primary    search.Searcher
	Generative Generative
	Crawler    Crawler
	Cache      *cache.Cache
	Metrics    *metrics.Metrics
	HTTPClient *http.Client
}

// Discoverer runs the discovery fallback chain.
type Discoverer struct {
	config     Config
	primary    search.Searcher
	generative Generative
	crawler    Crawler
	cache      *cache.Cache
	metrics    *metrics.Metrics
	httpClient *http.Client
	limiter    *rate.Limiter
}

// New creates a Discoverer.
func New(config Config, b Backends) *Discoverer {
	if config.MaxVariants <= 0 {
		config.MaxVariants = DefaultMaxVariants
	}
	if config.ResultsPerQuery <= 0 {
		config.ResultsPerQuery = 10
	}
	if config.ReachTimeout <= 0 {
		config.ReachTimeout = DefaultReachTimeout
	}
	limit := rate.Inf
	if config.QueriesPerSecond > 0 {
		limit = rate.Limit(config.QueriesPerSecond)
	}
	httpClient := b.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: config.ReachTimeout}
	}

	return &Discoverer{
		config:     config,
		primary:    b.Primary,
		generative: b.Generative,
		crawler:    b.Crawler,
		cache:      b.Cache,
		metrics:    b.Metrics,
		httpClient: httpClient,
		limiter:    rate.NewLimiter(limit, 1),
	}
}

// Allowlist returns the domain allowlist for a province code.
func (d *Discoverer) Allowlist(province string) []string {
	p, ok := catalog.LookupProvince(province)
	if !ok {
		return []string{BaseDomain}
	}
	return Allowlist(p, d.config.ExtraDomains[province], d.config.GlobalDomains)
}

// Discover returns candidate document URLs. It never fails: backend errors
// are logged and an empty result means no documents were found.
func (d *Discoverer) Discover(ctx context.Context, province, asset, docClass string) []string {
	p, okP := catalog.LookupProvince(province)
	a, okA := catalog.LookupAsset(asset)
	c, okC := catalog.LookupDocClass(docClass)
	if !okP || !okA || !okC {
		slog.Warn("discovery skipped: unknown classification", "province", province, "asset", asset, "doc_class", docClass)
		return nil
	}

	allow := d.Allowlist(province)
	keep := func(stage string, cands []candidate) []string {
		urls := d.filter(ctx, cands, allow, p, a, c)
		d.metrics.DiscoveredURLs(stage, len(urls))
		slog.Debug("discovery stage finished", "stage", stage, "candidates", len(cands), "kept", len(urls))
		return urls
	}

	primary := d.searchPrimary(ctx, QueryVariants(p, a, c, d.config.MaxVariants))
	urls := keep("primary", primary.candidates)
	if primary.Kind == OutcomeOK && len(urls) > 0 {
		return urls
	}

	if primary.Kind == OutcomeFatal {
		slog.Warn("primary search aborted, using fallback", "province", province, "asset", asset)
	}

	generative := d.searchGenerative(ctx, p, a, c, allow)
	urls = appendNew(urls, keep("generative", generative.candidates))
	if len(urls) > 0 {
		return urls
	}

	return keep("crawl", d.crawl(ctx, p, a, c).candidates)
}

// searchPrimary runs each query variant through the primary backend. A fatal
// authorization failure aborts the remaining variants; rate limits and other
// errors skip only the failing variant.
func (d *Discoverer) searchPrimary(ctx context.Context, variants []string) Outcome {
	if d.primary == nil {
		return Outcome{Kind: OutcomeEmpty}
	}

	var cands []candidate
	for _, q := range variants {
		if err := d.limiter.Wait(ctx); err != nil {
			return outcomeOf(cands, false)
		}

		results, err := d.cachedSearch(ctx, q)
		if err != nil {
			switch {
			case search.IsFatal(err):
				slog.Error("search backend rejected credentials, aborting discovery", "query", q, "error", err)
				d.metrics.DiscoveryFailure("primary", "fatal")
				return outcomeOf(cands, true)
			case search.IsRateLimited(err):
				slog.Warn("search rate limited, skipping query", "query", q)
				d.metrics.DiscoveryFailure("primary", "rate_limited")
			default:
				slog.Warn("search query failed", "query", q, "error", err)
				d.metrics.DiscoveryFailure("primary", "error")
			}
			continue
		}

		for _, r := range results {
			cands = append(cands, candidate{URL: r.Link, Hint: r.Title + " " + r.Snippet})
		}
	}
	return outcomeOf(dedupe(cands), false)
}

func (d *Discoverer) cachedSearch(ctx context.Context, q string) ([]search.Result, error) {
	var key string
	if d.cache != nil {
		key = d.cache.Key("discovery", q)
		var cached []search.Result
		if ok, err := d.cache.GetJSON(ctx, key, &cached); err != nil {
			slog.Debug("discovery cache read failed", "error", err)
		} else if ok {
			return cached, nil
		}
	}

	results, err := d.primary.Search(ctx, q, d.config.ResultsPerQuery)
	if err != nil {
		return nil, err
	}

	if d.cache != nil && len(results) > 0 {
		if err := d.cache.SetJSON(ctx, key, results); err != nil {
			slog.Debug("discovery cache write failed", "error", err)
		}
	}
	return results, nil
}

// searchGenerative issues one aggregated question to the generative backend
// and collects both its citations and any URLs inlined in the answer.
func (d *Discoverer) searchGenerative(ctx context.Context, p catalog.Province, a catalog.Asset, c catalog.DocClass, allow []string) Outcome {
	if d.generative == nil {
		return Outcome{Kind: OutcomeEmpty}
	}

	ans, err := d.generative.Ask(ctx, search.Request{
		System:  aggregateSystem,
		User:    AggregateQuestion(p, a, c),
		Domains: allow,
		Recency: d.config.Recency,
	})
	if err != nil {
		kind := "error"
		if search.IsFatal(err) {
			kind = "fatal"
		} else if search.IsRateLimited(err) {
			kind = "rate_limited"
		}
		slog.Warn("generative search failed", "error", err)
		d.metrics.DiscoveryFailure("generative", kind)
		return outcomeOf(nil, kind == "fatal")
	}

	var cands []candidate
	hint := a.Name + " " + c.Name
	for _, u := range ans.Citations {
		cands = append(cands, candidate{URL: u, Hint: hint})
	}
	for _, u := range ExtractURLs(ans.Text) {
		cands = append(cands, candidate{URL: u, Hint: hint})
	}
	return outcomeOf(dedupe(cands), false)
}

// crawl walks the province's configured listing pages.
func (d *Discoverer) crawl(ctx context.Context, p catalog.Province, a catalog.Asset, c catalog.DocClass) Outcome {
	seeds := d.config.SeedPages[p.Code]
	if d.crawler == nil || len(seeds) == 0 {
		return Outcome{Kind: OutcomeEmpty}
	}

	// Attachments qualify on anchor text alone; HTML pages must also carry an
	// asset token in the URL so listing and navigation pages are skipped.
	match := func(link, anchor string) bool {
		if !mentions(anchor, nil, nil, a.Synonyms...) && !mentions(anchor, nil, nil, c.Synonyms...) {
			return false
		}
		if scraper.IsDocumentLink(link) {
			return true
		}
		words := make(map[string]bool)
		for _, w := range wordSplit.Split(strings.ToLower(link), -1) {
			words[w] = true
		}
		return mentions(link, words, a.Tokens)
	}

	links, err := d.crawler.Collect(ctx, seeds, match)
	if err != nil {
		slog.Warn("seed crawl failed", "province", p.Code, "error", err)
	}

	cands := make([]candidate, 0, len(links))
	for _, l := range links {
		cands = append(cands, candidate{URL: l.URL, Hint: p.Name + " " + l.Anchor})
	}
	return outcomeOf(dedupe(cands), false)
}

// filter keeps http(s) URLs on the allowlist that pass the relevance
// heuristic and, when enabled, a liveness check.
func (d *Discoverer) filter(ctx context.Context, cands []candidate, allow []string, p catalog.Province, a catalog.Asset, c catalog.DocClass) []string {
	var urls []string
	for _, cand := range dedupe(cands) {
		if !Allowed(cand.URL, allow) {
			slog.Debug("dropping URL outside allowlist", "url", cand.URL)
			continue
		}
		if !Relevant(cand.URL, cand.Hint, p, a, c) {
			slog.Debug("dropping irrelevant URL", "url", cand.URL)
			continue
		}
		if d.config.CheckReachability && !reachable(ctx, d.httpClient, cand.URL, d.config.ReachTimeout) {
			slog.Debug("dropping unreachable URL", "url", cand.URL)
			continue
		}
		urls = append(urls, cand.URL)
	}
	return urls
}

func appendNew(dst, src []string) []string {
	seen := make(map[string]bool, len(dst))
	for _, u := range dst {
		seen[u] = true
	}
	for _, u := range src {
		if !seen[u] {
			seen[u] = true
			dst = append(dst, u)
		}
	}
	return dst
}
