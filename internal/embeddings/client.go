// Package embeddings is a client for OpenAI-compatible embeddings APIs,
// reachable over HTTP(S) or a Docker Model Runner Unix socket.
package embeddings

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sort"
	"strings"
	"time"
	"unicode/utf8"
)

// dmrBaseURL is the OpenAI-compatible root of Docker Model Runner.
const dmrBaseURL = "http://localhost/exp/vDD4.40/engines/llama.cpp/v1"

// DefaultMaxInputChars is a conservative character ceiling for Chinese text.
// bge-m3 accepts 8192 tokens; Chinese runs at roughly 1.5 tokens per character.
const DefaultMaxInputChars = 4000

// ErrEmptyInput is returned when asked to embed blank text.
var ErrEmptyInput = errors.New("empty input")

// Config holds embeddings client configuration.
type Config struct {
	BaseURL       string // e.g. "https://api.siliconflow.cn/v1"
	SocketPath    string // Unix socket path for Docker Model Runner
	APIKey        string
	Model         string // e.g. "BAAI/bge-m3"
	MaxInputChars int
	Timeout       time.Duration
}

// Client wraps an embeddings API.
type Client struct {
	httpClient    *http.Client
	endpoint      string
	apiKey        string
	model         string
	maxInputChars int
}

// New creates a new embeddings client.
func New(config Config) (*Client, error) {
	if config.BaseURL == "" && config.SocketPath == "" {
		return nil, fmt.Errorf("base URL or socket path is required")
	}
	if config.Model == "" {
		return nil, fmt.Errorf("model is required")
	}
	if config.MaxInputChars <= 0 {
		config.MaxInputChars = DefaultMaxInputChars
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}

	httpClient := &http.Client{Timeout: config.Timeout}
	baseURL := strings.TrimRight(config.BaseURL, "/")
	if config.SocketPath != "" {
		socket := config.SocketPath
		httpClient.Transport = &http.Transport{
			DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
				var d net.Dialer
				return d.DialContext(ctx, "unix", socket)
			},
		}
		if baseURL == "" {
			baseURL = dmrBaseURL
		}
	}

	return &Client{
		httpClient:    httpClient,
		endpoint:      baseURL + "/embeddings",
		apiKey:        config.APIKey,
		model:         config.Model,
		maxInputChars: config.MaxInputChars,
	}, nil
}

// embeddingRequest is the request payload for the embeddings API.
type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

// embeddingResponse is the response from the embeddings API.
type embeddingResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Embed generates an embedding vector for the given text.
// Text exceeding the input ceiling is truncated from the end.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch embeds texts in one request, returning vectors in input order.
// Every text must be non-blank.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	inputs := make([]string, len(texts))
	for i, t := range texts {
		if strings.TrimSpace(t) == "" {
			return nil, fmt.Errorf("input %d: %w", i, ErrEmptyInput)
		}
		inputs[i] = c.truncate(t)
	}

	body, err := json.Marshal(embeddingRequest{Model: c.model, Input: inputs})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var embResp embeddingResponse
	if err := json.Unmarshal(respBody, &embResp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	if embResp.Error != nil {
		return nil, fmt.Errorf("API error: %s", embResp.Error.Message)
	}

	if len(embResp.Data) != len(inputs) {
		return nil, fmt.Errorf("got %d embeddings for %d inputs", len(embResp.Data), len(inputs))
	}

	sort.Slice(embResp.Data, func(i, j int) bool { return embResp.Data[i].Index < embResp.Data[j].Index })
	out := make([][]float32, len(inputs))
	for i, d := range embResp.Data {
		out[i] = d.Embedding
	}
	return out, nil
}

func (c *Client) truncate(text string) string {
	n := utf8.RuneCountInString(text)
	if n <= c.maxInputChars {
		return text
	}
	slog.Warn("truncating embedding input", "chars", n, "max_chars", c.maxInputChars)
	return string([]rune(text)[:c.maxInputChars])
}

// Dimensions returns the expected embedding dimensions for common models.
func Dimensions(model string) int {
	switch model {
	case "ai/embeddinggemma":
		return 768
	case "ai/snowflake-arctic-embed", "BAAI/bge-m3", "BAAI/bge-large-zh-v1.5":
		return 1024
	case "text-embedding-3-small", "text-embedding-v2":
		return 1536
	case "ai/qwen3-embedding":
		return 2560
	default:
		return 1024 // bge-m3 family
	}
}
