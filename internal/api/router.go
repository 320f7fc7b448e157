// Package api exposes question answering and ingestion over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mfenderov/regrag/internal/ingestion"
	"github.com/mfenderov/regrag/internal/pipeline"
)

// Service is what the handlers call into.
type Service interface {
	Answer(ctx context.Context, req pipeline.Request) (*pipeline.Answer, error)
	Ingest(ctx context.Context, req pipeline.IngestRequest) (*ingestion.Result, error)
	Mode() string
}

// Config holds HTTP server configuration.
type Config struct {
	Addr          string
	IngestToken   string // empty disables POST /v1/ingest
	QueryTimeout  time.Duration
	IngestTimeout time.Duration
}

// Server is the HTTP API.
type Server struct {
	config  Config
	service Service
	engine  *gin.Engine
}

// New builds the router. gatherer backs GET /metrics and may be nil.
func New(config Config, service Service, gatherer prometheus.Gatherer) (*Server, error) {
	if service == nil {
		return nil, fmt.Errorf("service is required")
	}
	if config.Addr == "" {
		config.Addr = ":8080"
	}
	if config.QueryTimeout <= 0 {
		config.QueryTimeout = 30 * time.Second
	}
	if config.IngestTimeout <= 0 {
		config.IngestTimeout = 30 * time.Minute
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(traceMiddleware(), gin.CustomRecovery(recoverHandler))

	s := &Server{config: config, service: service, engine: engine}

	engine.GET("/healthz", s.healthHandler)
	if gatherer != nil {
		engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	v1 := engine.Group("/v1")
	{
		v1.POST("/query", s.queryHandler)
		v1.POST("/ingest", authMiddleware(config.IngestToken), s.ingestHandler)
	}
	return s, nil
}

// Handler returns the router as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.config.Addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server listening", "addr", s.config.Addr, "mode", s.service.Mode())
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
