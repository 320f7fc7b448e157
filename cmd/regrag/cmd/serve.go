package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mfenderov/regrag/internal/api"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Start the HTTP API.

Endpoints:
  GET  /healthz     Liveness
  GET  /metrics     Prometheus metrics
  POST /v1/query    Answer a question
  POST /v1/ingest   Run ingestion (requires server.ingest_token)

Example:
  REGRAG_SERVER_INGEST_TOKEN=secret regrag serve`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := GetConfig()
	c := newComponents(cfg)
	defer c.Close()

	// Ingestion needs storage and discovery; skip them when the endpoint is disabled.
	p, err := c.pipeline(ctx, cfg.Server.IngestToken != "")
	if err != nil {
		return fmt.Errorf("failed to create pipeline: %w", err)
	}

	server, err := api.New(api.Config{
		Addr:          cfg.Server.Addr,
		IngestToken:   cfg.Server.IngestToken,
		QueryTimeout:  cfg.Query.Timeout,
		IngestTimeout: cfg.Ingest.Timeout,
	}, p, c.registry)
	if err != nil {
		return fmt.Errorf("failed to create API server: %w", err)
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "Listening on %s (mode %s)\n", cfg.Server.Addr, p.Mode())

	return server.Run(ctx)
}
