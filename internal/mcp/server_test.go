package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/mfenderov/regrag/internal/composer"
	"github.com/mfenderov/regrag/internal/pipeline"
	"github.com/mfenderov/regrag/pkg/models"
)

type fakeService struct {
	answer     *pipeline.Answer
	err        error
	gotRequest pipeline.Request
	gotFilters models.Filters
	gotLimit   int
	passages   []models.SearchCandidate
}

func (f *fakeService) Answer(_ context.Context, req pipeline.Request) (*pipeline.Answer, error) {
	f.gotRequest = req
	return f.answer, f.err
}

func (f *fakeService) SearchPassages(_ context.Context, _ string, filters models.Filters, limit int) ([]models.SearchCandidate, error) {
	f.gotFilters, f.gotLimit = filters, limit
	return f.passages, f.err
}

func call(name string, args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

func text(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	if len(res.Content) == 0 {
		t.Fatal("empty tool result")
	}
	tc, ok := res.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("content is %T, want TextContent", res.Content[0])
	}
	return tc.Text
}

func TestServer_Creation(t *testing.T) {
	s, err := NewServer(Config{}, &fakeService{})
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}
	if s.mcpServer == nil {
		t.Error("mcpServer should not be nil")
	}

	if _, err := NewServer(Config{}, nil); err == nil {
		t.Error("expected error without service")
	}
}

func TestServer_AskRegulation(t *testing.T) {
	svc := &fakeService{answer: &pipeline.Answer{
		Response: composer.Response{
			AnswerZh:  "【广东省光伏并网】相关规定摘录：",
			Citations: []models.Citation{{Title: "办法", URL: "https://gd.gov.cn/a.pdf"}},
		},
		Mode: pipeline.ModeRetrieval,
	}}
	s, _ := NewServer(Config{}, svc)

	res, err := s.askHandler(context.Background(), call("ask_regulation", map[string]any{
		"province": "gd", "asset": "solar", "question": "并网验收需要哪些资料？",
	}))
	if err != nil {
		t.Fatalf("askHandler() error = %v", err)
	}
	if res.IsError {
		t.Fatalf("tool error: %s", text(t, res))
	}

	var got map[string]any
	if err := json.Unmarshal([]byte(text(t, res)), &got); err != nil {
		t.Fatalf("result is not JSON: %v", err)
	}
	if got["mode"] != "retrieval" || got["answer_zh"] == "" {
		t.Errorf("result = %v", got)
	}
	if svc.gotRequest.Province != "gd" || svc.gotRequest.DocClass != "" {
		t.Errorf("request = %+v", svc.gotRequest)
	}
}

func TestServer_AskRegulationErrors(t *testing.T) {
	tests := []struct {
		name string
		args map[string]any
		err  error
		want string
	}{
		{"missing question", map[string]any{"province": "gd"}, nil, "question parameter is required"},
		{"invalid province", map[string]any{"province": "bj", "asset": "solar", "question": "q"}, fmt.Errorf("%w: unknown province \"bj\"", pipeline.ErrInvalidRequest), "unknown province"},
		{"backend", map[string]any{"province": "gd", "asset": "solar", "question": "q"}, errors.New("es down"), "answer failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := NewServer(Config{}, &fakeService{err: tt.err})
			res, err := s.askHandler(context.Background(), call("ask_regulation", tt.args))
			if err != nil {
				t.Fatalf("handler returned protocol error: %v", err)
			}
			if !res.IsError || !strings.Contains(text(t, res), tt.want) {
				t.Errorf("result = %+v", res)
			}
		})
	}
}

func TestServer_SearchPassages(t *testing.T) {
	svc := &fakeService{passages: []models.SearchCandidate{{ID: "abc-0", Text: "并网验收", Score: 0.8}}}
	s, _ := NewServer(Config{}, svc)

	res, err := s.searchHandler(context.Background(), call("search_passages", map[string]any{
		"query": "并网验收", "province": "sd", "limit": float64(3),
	}))
	if err != nil || res.IsError {
		t.Fatalf("searchHandler() = %+v, %v", res, err)
	}

	var got []models.SearchCandidate
	if err := json.Unmarshal([]byte(text(t, res)), &got); err != nil {
		t.Fatalf("result is not JSON: %v", err)
	}
	if len(got) != 1 || got[0].ID != "abc-0" {
		t.Errorf("passages = %+v", got)
	}
	if svc.gotFilters != (models.Filters{Province: "sd"}) || svc.gotLimit != 3 {
		t.Errorf("filters = %+v limit = %d", svc.gotFilters, svc.gotLimit)
	}
}

func TestServer_SearchPassagesDefaults(t *testing.T) {
	svc := &fakeService{}
	s, _ := NewServer(Config{}, svc)

	res, err := s.searchHandler(context.Background(), call("search_passages", map[string]any{"query": "储能"}))
	if err != nil || res.IsError {
		t.Fatalf("searchHandler() = %+v, %v", res, err)
	}
	if text(t, res) != "[]" {
		t.Errorf("empty result = %q", text(t, res))
	}
	if svc.gotLimit != pipeline.DefaultPassages {
		t.Errorf("limit = %d", svc.gotLimit)
	}

	res, _ = s.searchHandler(context.Background(), call("search_passages", map[string]any{}))
	if !res.IsError {
		t.Error("expected error for missing query")
	}
}
