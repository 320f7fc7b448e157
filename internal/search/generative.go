package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// maxDomainFilter is the backend's limit on search_domain_filter entries.
const maxDomainFilter = 20

// GenerativeConfig holds configuration for a search-with-citations chat API.
type GenerativeConfig struct {
	APIKey  string
	BaseURL string // e.g. "https://api.perplexity.ai"
	Model   string // e.g. "sonar"
	Timeout time.Duration
	Retry   Retry
}

// Generative calls an OpenAI-compatible chat completions endpoint that runs a
// web search and returns the URLs it cited.
type Generative struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
	retry      Retry
}

// NewGenerative creates a generative search client.
func NewGenerative(config GenerativeConfig) (*Generative, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("generative search: %w", ErrNotConfigured)
	}
	if config.BaseURL == "" {
		config.BaseURL = "https://api.perplexity.ai"
	}
	if config.Model == "" {
		config.Model = "sonar"
	}
	if config.Timeout == 0 {
		config.Timeout = 60 * time.Second
	}

	return &Generative{
		httpClient: &http.Client{Timeout: config.Timeout},
		baseURL:    strings.TrimRight(config.BaseURL, "/"),
		apiKey:     config.APIKey,
		model:      config.Model,
		retry:      config.Retry,
	}, nil
}

// Request is a single generative search call.
type Request struct {
	System  string
	User    string
	Domains []string // allowlisted domains; leading dots are stripped
	Recency string   // "day", "week", "month", "year" or empty
}

// Answer is the generated text plus the URLs the backend cited.
type Answer struct {
	Text      string   `json:"text"`
	Citations []string `json:"citations"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model               string        `json:"model"`
	Messages            []chatMessage `json:"messages"`
	SearchDomainFilter  []string      `json:"search_domain_filter,omitempty"`
	SearchRecencyFilter string        `json:"search_recency_filter,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Citations     []string `json:"citations"`
	SearchResults []struct {
		URL string `json:"url"`
	} `json:"search_results"`
}

// DomainFilter strips leading dots, drops duplicates and caps the list at
// the backend's twenty-entry limit.
func DomainFilter(domains []string) []string {
	seen := make(map[string]bool, len(domains))
	var out []string
	for _, d := range domains {
		d = strings.ToLower(strings.TrimLeft(strings.TrimSpace(d), "."))
		if d == "" || seen[d] {
			continue
		}
		seen[d] = true
		out = append(out, d)
		if len(out) == maxDomainFilter {
			break
		}
	}
	return out
}

// Ask sends one question and returns the generated answer with citations.
func (g *Generative) Ask(ctx context.Context, req Request) (*Answer, error) {
	var messages []chatMessage
	if req.System != "" {
		messages = append(messages, chatMessage{Role: "system", Content: req.System})
	}
	messages = append(messages, chatMessage{Role: "user", Content: req.User})

	body, err := json.Marshal(chatRequest{
		Model:               g.model,
		Messages:            messages,
		SearchDomainFilter:  DomainFilter(req.Domains),
		SearchRecencyFilter: req.Recency,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	return withRetry(ctx, g.retry, func() (*Answer, error) {
		return g.do(ctx, body)
	})
}

func (g *Generative) do(ctx context.Context, body []byte) (*Answer, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+g.apiKey)

	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{Backend: "generative", Code: resp.StatusCode, Body: truncate(string(respBody), 200)}
	}

	var chatResp chatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return nil, &parseError{err: err}
	}
	if len(chatResp.Choices) == 0 {
		return nil, &parseError{err: fmt.Errorf("no choices returned")}
	}

	answer := &Answer{
		Text:      chatResp.Choices[0].Message.Content,
		Citations: chatResp.Citations,
	}
	if len(answer.Citations) == 0 {
		for _, r := range chatResp.SearchResults {
			answer.Citations = append(answer.Citations, r.URL)
		}
	}
	return answer, nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
