package scraper

import (
	"context"
	"log/slog"
	"net/url"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"
)

// Config holds crawler configuration.
type Config struct {
	Delay       time.Duration
	MaxDepth    int
	FollowLinks bool
	UserAgent   string
	Timeout     time.Duration
}

// Link is a candidate document link found on a listing page.
type Link struct {
	URL    string
	Anchor string
}

// MatchFunc decides whether a link is worth keeping.
type MatchFunc func(link, anchor string) bool

// Scraper walks government listing pages and collects links to documents.
type Scraper struct {
	config Config
}

// New creates a new Scraper with the given configuration.
func New(config Config) *Scraper {
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.UserAgent == "" {
		config.UserAgent = "regrag/1.0"
	}
	if config.MaxDepth == 0 {
		config.MaxDepth = 2
	}
	return &Scraper{config: config}
}

var documentExts = map[string]bool{".pdf": true, ".doc": true, ".docx": true}

// IsDocumentLink reports whether the URL path ends in a downloadable document extension.
func IsDocumentLink(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return documentExts[strings.ToLower(path.Ext(u.Path))]
}

// Collect visits each seed page, following same-host links up to MaxDepth,
// and returns every link accepted by match in discovery order.
// The context can be used to cancel the crawl.
func (s *Scraper) Collect(ctx context.Context, seeds []string, match MatchFunc) ([]Link, error) {
	var (
		links     []Link
		seen      = make(map[string]bool)
		mu        sync.Mutex
		cancelled bool
	)

	c := colly.NewCollector(
		colly.MaxDepth(s.config.MaxDepth),
		colly.UserAgent(s.config.UserAgent),
	)

	c.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Delay:       s.config.Delay,
		Parallelism: 2,
	})

	c.SetRequestTimeout(s.config.Timeout)

	c.OnRequest(func(r *colly.Request) {
		if ctx.Err() != nil {
			slog.Debug("crawl cancelled", "url", r.URL.String())
			r.Abort()
			cancelled = true
		}
	})

	c.OnError(func(r *colly.Response, err error) {
		slog.Debug("crawl request failed", "url", r.Request.URL.String(), "status", r.StatusCode, "error", err)
	})

	c.OnHTML("a[href]", func(e *colly.HTMLElement) {
		absoluteURL := e.Request.AbsoluteURL(e.Attr("href"))
		if absoluteURL == "" {
			return
		}
		linkURL, err := url.Parse(absoluteURL)
		if err != nil || (linkURL.Scheme != "http" && linkURL.Scheme != "https") {
			return
		}
		anchor := strings.TrimSpace(e.Text)

		if match(absoluteURL, anchor) {
			mu.Lock()
			if !seen[absoluteURL] {
				seen[absoluteURL] = true
				links = append(links, Link{URL: absoluteURL, Anchor: anchor})
			}
			mu.Unlock()
			return
		}

		if s.config.FollowLinks && !IsDocumentLink(absoluteURL) && linkURL.Host == e.Request.URL.Host {
			e.Request.Visit(absoluteURL)
		}
	})

	for _, seed := range seeds {
		if ctx.Err() != nil {
			break
		}
		if err := c.Visit(seed); err != nil {
			slog.Debug("visit error (continuing)", "url", seed, "error", err)
		}
	}
	c.Wait()

	if cancelled {
		slog.Info("crawl cancelled by context", "links", len(links))
		return links, ctx.Err()
	}

	slog.Debug("crawl complete", "seeds", len(seeds), "links", len(links))
	return links, nil
}
