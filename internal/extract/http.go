package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"
)

// HTTPConfig addresses a remote extraction service.
type HTTPConfig struct {
	BaseURL    string // e.g. "http://ocr.internal:8080"
	SocketPath string // optional Unix socket; BaseURL host is then ignored
	APIKey     string
	Timeout    time.Duration
}

// HTTPBackend calls an OCR/document-understanding service that reads the
// document from shared object storage by path.
type HTTPBackend struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

// NewHTTP creates a remote extraction backend.
func NewHTTP(config HTTPConfig) (*HTTPBackend, error) {
	if config.BaseURL == "" && config.SocketPath == "" {
		return nil, fmt.Errorf("base URL or socket path is required")
	}
	if config.Timeout == 0 {
		config.Timeout = 60 * time.Second
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
			baseURL = "http://localhost"
		}
	}

	return &HTTPBackend{
		httpClient: httpClient,
		baseURL:    baseURL,
		apiKey:     config.APIKey,
	}, nil
}

type extractRequest struct {
	StoragePath string `json:"storage_path"`
	MimeType    string `json:"mime_type"`
}

type extractResponse struct {
	Text  string `json:"text"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Extract asks the service for the text of the object at storagePath.
func (b *HTTPBackend) Extract(ctx context.Context, storagePath, mimeType string) (string, error) {
	body, err := json.Marshal(extractRequest{StoragePath: storagePath, MimeType: mimeType})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", b.baseURL+"/v1/extract", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if b.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+b.apiKey)
	}

	slog.Debug("extracting document", "path", storagePath, "mime", mimeType)
	resp, err := b.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode == http.StatusUnsupportedMediaType {
		return "", fmt.Errorf("%w: %s", ErrUnsupported, mimeType)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var extResp extractResponse
	if err := json.Unmarshal(respBody, &extResp); err != nil {
		return "", fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if extResp.Error != nil {
		return "", fmt.Errorf("API error: %s", extResp.Error.Message)
	}

	return extResp.Text, nil
}
