// Package mcp exposes regulation question answering and passage search as
// MCP tools over stdio.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/mfenderov/regrag/internal/pipeline"
	"github.com/mfenderov/regrag/pkg/models"
)

// Service answers questions and searches passages.
type Service interface {
	Answer(ctx context.Context, req pipeline.Request) (*pipeline.Answer, error)
	SearchPassages(ctx context.Context, query string, filters models.Filters, limit int) ([]models.SearchCandidate, error)
}

// Config holds MCP server configuration.
type Config struct {
	Name    string
	Version string
}

// Server wraps the MCP server.
type Server struct {
	mcpServer *server.MCPServer
	service   Service
}

// NewServer creates a new MCP server with the regulation tools.
func NewServer(config Config, service Service) (*Server, error) {
	if service == nil {
		return nil, fmt.Errorf("service is required")
	}
	if config.Name == "" {
		config.Name = "regrag"
	}
	if config.Version == "" {
		config.Version = "1.0.0"
	}

	mcpServer := server.NewMCPServer(
		config.Name,
		config.Version,
		server.WithToolCapabilities(true),
	)

	s := &Server{
		mcpServer: mcpServer,
		service:   service,
	}

	askTool := mcp.NewTool("ask_regulation",
		mcp.WithDescription("Answer a question about provincial grid-connection, permitting or market rules for solar, wind and storage projects in China. Returns quotes from official documents with citations, or a refusal when no evidence is found."),
		mcp.WithString("province",
			mcp.Required(),
			mcp.Description("Province code or name: gd (广东), sd (山东), nm (内蒙古)"),
		),
		mcp.WithString("asset",
			mcp.Required(),
			mcp.Description("Asset type: solar (光伏), wind (风电), storage (储能)"),
		),
		mcp.WithString("doc_class",
			mcp.Description("Document class: grid (default), permit, market"),
		),
		mcp.WithString("question",
			mcp.Required(),
			mcp.Description("Question in Chinese"),
		),
	)
	mcpServer.AddTool(askTool, s.askHandler)

	searchTool := mcp.NewTool("search_passages",
		mcp.WithDescription("Search indexed regulation passages by semantic similarity, optionally filtered by province, asset and document class."),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Search query"),
		),
		mcp.WithString("province", mcp.Description("Province code filter")),
		mcp.WithString("asset", mcp.Description("Asset code filter")),
		mcp.WithString("doc_class", mcp.Description("Document class filter")),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of passages to return (default: 5, max: 100)"),
		),
	)
	mcpServer.AddTool(searchTool, s.searchHandler)

	return s, nil
}

// askHandler handles the ask_regulation tool call.
func (s *Server) askHandler(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	question, err := req.RequireString("question")
	if err != nil {
		return mcp.NewToolResultError("question parameter is required"), nil
	}

	ans, err := s.service.Answer(ctx, pipeline.Request{
		Province: req.GetString("province", ""),
		Asset:    req.GetString("asset", ""),
		DocClass: req.GetString("doc_class", ""),
		Question: question,
	})
	if err != nil {
		if errors.Is(err, pipeline.ErrInvalidRequest) {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultError(fmt.Sprintf("answer failed: %v", err)), nil
	}

	return jsonResult(ans)
}

// searchHandler handles the search_passages tool call.
func (s *Server) searchHandler(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError("query parameter is required"), nil
	}

	filters := models.Filters{
		Province: req.GetString("province", ""),
		Asset:    req.GetString("asset", ""),
		DocClass: req.GetString("doc_class", ""),
	}
	passages, err := s.service.SearchPassages(ctx, query, filters, req.GetInt("limit", pipeline.DefaultPassages))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
	}
	if passages == nil {
		passages = []models.SearchCandidate{}
	}

	return jsonResult(passages)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	result, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(result)), nil
}

// ServeStdio starts the MCP server using stdio transport.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}
