// Package search wraps the external search backends used for document
// discovery: a structured web search API and a generative search API that
// returns citations.
package search

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// ErrNotConfigured is returned by constructors when credentials are missing.
var ErrNotConfigured = errors.New("search backend not configured")

// Result is one structured search hit.
type Result struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Snippet string `json:"snippet"`
}

// Searcher runs a single web query.
type Searcher interface {
	Search(ctx context.Context, query string, num int) ([]Result, error)
}

// StatusError carries the HTTP status a backend answered with.
type StatusError struct {
	Backend string
	Code    int
	Body    string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: status %d", e.Backend, e.Code)
	}
	return fmt.Sprintf("%s: status %d: %s", e.Backend, e.Code, e.Body)
}

// IsFatal reports an authorization failure. Retrying cannot fix it and the
// caller should stop issuing queries with the same credential.
func (e *StatusError) IsFatal() bool {
	return e.Code == http.StatusUnauthorized || e.Code == http.StatusForbidden
}

// IsRateLimited reports a 429 response.
func (e *StatusError) IsRateLimited() bool {
	return e.Code == http.StatusTooManyRequests
}

// IsTransient reports a rate limit or server-side failure.
func (e *StatusError) IsTransient() bool {
	return e.IsRateLimited() || e.Code >= 500
}

// IsFatal reports whether err wraps a fatal StatusError.
func IsFatal(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.IsFatal()
}

// IsRateLimited reports whether err wraps a 429 StatusError.
func IsRateLimited(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.IsRateLimited()
}
