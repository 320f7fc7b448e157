package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mfenderov/regrag/internal/ingestion"
	"github.com/mfenderov/regrag/internal/pipeline"
)

var (
	ingestProvinces []string
	ingestAssets    []string
	ingestDocClass  string
	ingestURL       string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Discover and index regulatory documents",
	Long: `Discover documents for every province/asset pair, then fetch, extract,
chunk, embed and index them. Documents that fail the quality gates are
skipped and reported; the run continues.

With --url a single document is processed instead and discovery is skipped;
--province and --asset then tag the document.

Examples:
  # Everything for one province
  regrag ingest --province gd

  # Two provinces, solar only, permitting documents
  regrag ingest --province gd --province sd --asset solar --doc-class permit

  # One known document
  regrag ingest --url https://drc.gd.gov.cn/a/b.pdf --province gd --asset solar`,
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)

	ingestCmd.Flags().StringSliceVar(&ingestProvinces, "province", nil, "Province codes (default: all)")
	ingestCmd.Flags().StringSliceVar(&ingestAssets, "asset", nil, "Asset codes (default: all)")
	ingestCmd.Flags().StringVar(&ingestDocClass, "doc-class", "grid", "Document class: grid, permit or market")
	ingestCmd.Flags().StringVar(&ingestURL, "url", "", "Process a single document URL")
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := GetConfig()
	c := newComponents(cfg)
	defer c.Close()

	var result *ingestion.Result
	if ingestURL != "" {
		if len(ingestProvinces) != 1 || len(ingestAssets) != 1 {
			return fmt.Errorf("--url needs exactly one --province and one --asset")
		}
		engine, err := c.engine(ctx, true)
		if err != nil {
			return fmt.Errorf("failed to create ingestion engine: %w", err)
		}
		fmt.Printf("Ingesting: %s\n", ingestURL)
		result = engine.IngestURL(ctx, ingestURL, ingestProvinces[0], ingestAssets[0], ingestDocClass)
	} else {
		p, err := c.pipeline(ctx, true)
		if err != nil {
			return fmt.Errorf("failed to create pipeline: %w", err)
		}
		slog.Debug("ingest command starting", "provinces", ingestProvinces, "assets", ingestAssets, "doc_class", ingestDocClass)
		result, err = p.Ingest(ctx, pipeline.IngestRequest{
			Provinces: ingestProvinces,
			Assets:    ingestAssets,
			DocClass:  ingestDocClass,
		})
		if err != nil {
			return fmt.Errorf("ingestion failed: %w", err)
		}
	}

	printResult("Ingestion", result)
	return nil
}

func printResult(label string, result *ingestion.Result) {
	fmt.Printf("\n%s complete:\n", label)
	fmt.Printf("  Docs indexed: %d\n", result.DocsIndexed)
	fmt.Printf("  Docs skipped: %d\n", result.DocsSkipped)
	fmt.Printf("  Chunks: %d\n", result.ChunksUpserted)
	fmt.Printf("  Duration: %v\n", result.Duration)

	if len(result.Errors) > 0 {
		fmt.Printf("  Warnings: %d\n", len(result.Errors))
		for _, e := range result.Errors {
			fmt.Printf("    - %s\n", e)
		}
	}
}
