package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"google.golang.org/api/customsearch/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const maxResultsPerPage = 10

// CSEConfig holds Google Programmable Search configuration.
type CSEConfig struct {
	APIKey   string
	CX       string // search engine id
	Endpoint string // override for tests; empty uses the public API
	Retry    Retry
}

// CSE queries the Google Custom Search JSON API.
type CSE struct {
	svc   *customsearch.Service
	cx    string
	retry Retry
}

// NewCSE creates a Custom Search client. It returns ErrNotConfigured when the
// API key or engine id is missing.
func NewCSE(ctx context.Context, config CSEConfig) (*CSE, error) {
	if config.APIKey == "" || config.CX == "" {
		return nil, fmt.Errorf("custom search: %w", ErrNotConfigured)
	}

	opts := []option.ClientOption{option.WithAPIKey(config.APIKey)}
	if config.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(config.Endpoint))
	}

	svc, err := customsearch.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create custom search service: %w", err)
	}

	return &CSE{svc: svc, cx: config.CX, retry: config.Retry}, nil
}

// Search returns up to num results for query. Errors carrying an HTTP status
// are returned as *StatusError so callers can tell fatal from soft failures.
func (c *CSE) Search(ctx context.Context, query string, num int) ([]Result, error) {
	if num <= 0 || num > maxResultsPerPage {
		num = maxResultsPerPage
	}

	return withRetry(ctx, c.retry, func() ([]Result, error) {
		res, err := c.svc.Cse.List().
			Cx(c.cx).
			Q(query).
			Num(int64(num)).
			Context(ctx).
			Do()
		if err != nil {
			var gerr *googleapi.Error
			if errors.As(err, &gerr) {
				slog.Debug("custom search error", "query", query, "status", gerr.Code)
				return nil, &StatusError{Backend: "cse", Code: gerr.Code, Body: gerr.Message}
			}
			return nil, fmt.Errorf("custom search request failed: %w", err)
		}

		results := make([]Result, 0, len(res.Items))
		for _, item := range res.Items {
			results = append(results, Result{Title: item.Title, Link: item.Link, Snippet: item.Snippet})
		}
		return results, nil
	})
}
