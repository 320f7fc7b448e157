// Package llm is a minimal client for OpenAI-compatible chat completions.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

const dmrBaseURL = "http://localhost/exp/vDD4.40/engines/llama.cpp/v1"

// Config holds LLM client configuration.
type Config struct {
	BaseURL     string // e.g. "https://api.deepseek.com/v1"
	SocketPath  string // Unix socket path for Docker Model Runner
	APIKey      string
	Model       string // e.g. "ai/gemma3", "deepseek-chat"
	Temperature float64
	Timeout     time.Duration
}

// Client wraps a chat completions API.
type Client struct {
	httpClient  *http.Client
	endpoint    string
	apiKey      string
	model       string
	temperature float64
}

// New creates a new LLM client.
func New(config Config) (*Client, error) {
	if config.BaseURL == "" && config.SocketPath == "" {
		return nil, fmt.Errorf("base URL or socket path is required")
	}
	if config.Model == "" {
		return nil, fmt.Errorf("model is required")
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
		httpClient:  httpClient,
		endpoint:    baseURL + "/chat/completions",
		apiKey:      config.APIKey,
		model:       config.Model,
		temperature: config.Temperature,
	}, nil
}

// chatRequest is the request payload for the chat completions API.
type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"` // Limit response length
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatResponse is the response from the chat completions API.
type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Chat sends an optional system message and a user message. If maxTokens is
// 0, no limit is applied.
func (c *Client) Chat(ctx context.Context, system, user string, maxTokens int) (string, error) {
	var messages []chatMessage
	if system != "" {
		messages = append(messages, chatMessage{Role: "system", Content: system})
	}
	messages = append(messages, chatMessage{Role: "user", Content: user})

	body, err := json.Marshal(chatRequest{
		Model:       c.model,
		Messages:    messages,
		MaxTokens:   maxTokens,
		Temperature: c.temperature,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var chatResp chatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return "", fmt.Errorf("failed to unmarshal response: %w", err)
	}

	if chatResp.Error != nil {
		return "", fmt.Errorf("API error: %s", chatResp.Error.Message)
	}

	if len(chatResp.Choices) == 0 {
		return "", fmt.Errorf("no response returned")
	}

	return strings.TrimSpace(chatResp.Choices[0].Message.Content), nil
}
