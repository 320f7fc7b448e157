package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mfenderov/regrag/internal/catalog"
)

var (
	discoverProvince string
	discoverAsset    string
	discoverDocClass string
	discoverFormat   string
)

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Print candidate document URLs",
	Long: `Run the discovery chain (structured search, then generative search,
then seed-page crawl) for one province, asset and document class and print
the allowlisted URLs it finds. Nothing is fetched or indexed.

Examples:
  regrag discover --province gd --asset solar --doc-class grid
  regrag discover --province sd --asset wind --format json`,
	RunE: runDiscover,
}

func init() {
	rootCmd.AddCommand(discoverCmd)

	discoverCmd.Flags().StringVar(&discoverProvince, "province", "", "Province code (required)")
	discoverCmd.Flags().StringVar(&discoverAsset, "asset", "", "Asset code (required)")
	discoverCmd.Flags().StringVar(&discoverDocClass, "doc-class", "grid", "Document class: grid, permit or market")
	discoverCmd.Flags().StringVar(&discoverFormat, "format", "text", "Output format: text or json")
	discoverCmd.MarkFlagRequired("province")
	discoverCmd.MarkFlagRequired("asset")
}

func runDiscover(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if _, ok := catalog.LookupProvince(discoverProvince); !ok {
		return fmt.Errorf("unknown province %q", discoverProvince)
	}
	if _, ok := catalog.LookupAsset(discoverAsset); !ok {
		return fmt.Errorf("unknown asset %q", discoverAsset)
	}
	if _, ok := catalog.LookupDocClass(discoverDocClass); !ok {
		return fmt.Errorf("unknown doc class %q", discoverDocClass)
	}

	c := newComponents(GetConfig())
	defer c.Close()

	d, err := c.discoverer(ctx)
	if err != nil {
		return fmt.Errorf("failed to create discoverer: %w", err)
	}

	urls := d.Discover(ctx, discoverProvince, discoverAsset, discoverDocClass)

	if discoverFormat == "json" {
		output, err := json.MarshalIndent(urls, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(output))
		return nil
	}

	if len(urls) == 0 {
		fmt.Println("No documents found.")
		return nil
	}
	fmt.Printf("Found %d candidate documents for %s %s %s:\n\n",
		len(urls),
		catalog.ProvinceName(discoverProvince),
		catalog.AssetName(discoverAsset),
		catalog.DocClassName(discoverDocClass))
	for _, u := range urls {
		fmt.Printf("  %s\n", u)
	}
	return nil
}
