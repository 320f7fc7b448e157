// Package rerank reorders search candidates with an LLM relevance judgment.
// Reranking is best effort: every failure returns the input order.
package rerank

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mfenderov/regrag/internal/metrics"
	"github.com/mfenderov/regrag/pkg/models"
)

// Defaults keep rerank inside the query latency budget.
const (
	DefaultTimeout         = 1500 * time.Millisecond
	DefaultMaxPassageChars = 300
)

const systemPrompt = "你是电力行业政策检索助手。根据问题判断各段落的相关性，只输出JSON整数数组，按相关性从高到低列出段落编号，不要输出其他内容。"

// Reranker reorders candidates for a question and returns at most topK.
type Reranker interface {
	Rerank(ctx context.Context, candidates []models.SearchCandidate, question string, topK int) []models.SearchCandidate
}

// Completer is the chat model used to judge relevance.
type Completer interface {
	Chat(ctx context.Context, system, user string, maxTokens int) (string, error)
}

// Config holds reranker configuration.
type Config struct {
	Timeout         time.Duration
	MaxPassageChars int
}

// LLM is a Reranker backed by a chat model.
type LLM struct {
	completer       Completer
	metrics         *metrics.Metrics
	timeout         time.Duration
	maxPassageChars int
}

// New creates an LLM reranker.
func New(config Config, completer Completer, m *metrics.Metrics) (*LLM, error) {
	if completer == nil {
		return nil, fmt.Errorf("completer is required")
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}
	if config.MaxPassageChars <= 0 {
		config.MaxPassageChars = DefaultMaxPassageChars
	}
	return &LLM{
		completer:       completer,
		metrics:         m,
		timeout:         config.Timeout,
		maxPassageChars: config.MaxPassageChars,
	}, nil
}

// FromConfig returns a Reranker only when reranking is enabled and a model is
// available; otherwise it returns nil and callers skip the stage.
func FromConfig(enabled bool, config Config, completer Completer, m *metrics.Metrics) Reranker {
	if !enabled || completer == nil {
		return nil
	}
	r, err := New(config, completer, m)
	if err != nil {
		slog.Warn("rerank disabled", "error", err)
		return nil
	}
	return r
}

// Rerank asks the model for an ordering. Candidates the model omits keep
// their relative order after the ones it ranked.
func (r *LLM) Rerank(ctx context.Context, candidates []models.SearchCandidate, question string, topK int) []models.SearchCandidate {
	if len(candidates) < 2 {
		return head(candidates, topK)
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	out, err := r.completer.Chat(ctx, systemPrompt, r.prompt(candidates, question), 128)
	if err != nil {
		return r.fallback(candidates, topK, err)
	}
	order, err := parseOrder(out, len(candidates))
	if err != nil {
		return r.fallback(candidates, topK, err)
	}

	ranked := make([]models.SearchCandidate, 0, len(candidates))
	used := make([]bool, len(candidates))
	for _, i := range order {
		ranked = append(ranked, candidates[i])
		used[i] = true
	}
	for i, c := range candidates {
		if !used[i] {
			ranked = append(ranked, c)
		}
	}
	return head(ranked, topK)
}

func (r *LLM) fallback(candidates []models.SearchCandidate, topK int, err error) []models.SearchCandidate {
	slog.Warn("rerank failed, keeping search order", "candidates", len(candidates), "error", err)
	r.metrics.RerankFallback()
	return head(candidates, topK)
}

func (r *LLM) prompt(candidates []models.SearchCandidate, question string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "问题：%s\n\n", question)
	for i, c := range candidates {
		text := []rune(strings.TrimSpace(c.Text))
		if len(text) > r.maxPassageChars {
			text = text[:r.maxPassageChars]
		}
		fmt.Fprintf(&b, "[%d] %s\n", i, string(text))
	}
	b.WriteString("\n输出示例：[2,0,1]")
	return b.String()
}

// parseOrder reads the first JSON integer array in out, keeping in-range
// indices once each.
func parseOrder(out string, n int) ([]int, error) {
	start := strings.Index(out, "[")
	end := strings.LastIndex(out, "]")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no index array in model output %q", out)
	}
	var raw []int
	if err := json.Unmarshal([]byte(out[start:end+1]), &raw); err != nil {
		return nil, fmt.Errorf("parse model output: %w", err)
	}

	seen := make(map[int]bool, len(raw))
	var order []int
	for _, i := range raw {
		if i < 0 || i >= n || seen[i] {
			continue
		}
		seen[i] = true
		order = append(order, i)
	}
	if len(order) == 0 {
		return nil, fmt.Errorf("model output ranks no valid candidate: %q", out)
	}
	return order, nil
}

func head(c []models.SearchCandidate, topK int) []models.SearchCandidate {
	if topK > 0 && topK < len(c) {
		return c[:topK]
	}
	return c
}
