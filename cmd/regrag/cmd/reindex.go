package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mfenderov/regrag/internal/catalog"
)

var reindexProvince string

var reindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Rebuild vectors from clean storage",
	Long: `Re-chunk and re-embed every processed document already in clean storage
and upsert the vectors again. Nothing is downloaded. Use this after changing
the embedding model, chunk sizes or vector store backend.

Examples:
  regrag reindex --province gd`,
	RunE: runReindex,
}

func init() {
	rootCmd.AddCommand(reindexCmd)

	reindexCmd.Flags().StringVar(&reindexProvince, "province", "", "Province code (required)")
	reindexCmd.MarkFlagRequired("province")
}

func runReindex(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if _, ok := catalog.LookupProvince(reindexProvince); !ok {
		return fmt.Errorf("unknown province %q", reindexProvince)
	}

	c := newComponents(GetConfig())
	defer c.Close()

	engine, err := c.engine(ctx, false)
	if err != nil {
		return fmt.Errorf("failed to create ingestion engine: %w", err)
	}

	fmt.Printf("Reindexing: %s\n", catalog.ProvinceName(reindexProvince))

	result, err := engine.Reindex(ctx, reindexProvince)
	if err != nil {
		return fmt.Errorf("reindex failed: %w", err)
	}

	printResult("Reindex", result)
	return nil
}
