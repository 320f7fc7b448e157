package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mfenderov/regrag/internal/pipeline"
)

var (
	queryProvince string
	queryAsset    string
	queryDocClass string
	queryLang     string
	queryFormat   string
)

var queryCmd = &cobra.Command{
	Use:   "query [question]",
	Short: "Answer a question from indexed regulations",
	Long: `Answer a question with verbatim quotes from indexed documents and their
citations. When nothing relevant is indexed the answer is a refusal with
suggestions.

Examples:
  regrag query "分布式光伏并网需要哪些材料" --province gd --asset solar
  regrag query "储能项目备案流程" --province sd --asset storage --doc-class permit --format json`,
	Args: cobra.ExactArgs(1),
	RunE: runQuery,
}

func init() {
	rootCmd.AddCommand(queryCmd)

	queryCmd.Flags().StringVar(&queryProvince, "province", "", "Province code (required)")
	queryCmd.Flags().StringVar(&queryAsset, "asset", "", "Asset code (required)")
	queryCmd.Flags().StringVar(&queryDocClass, "doc-class", "grid", "Document class: grid, permit or market")
	queryCmd.Flags().StringVar(&queryLang, "lang", "zh", "Refusal language: zh or en")
	queryCmd.Flags().StringVar(&queryFormat, "format", "text", "Output format: text or json")
	queryCmd.MarkFlagRequired("province")
	queryCmd.MarkFlagRequired("asset")
}

func runQuery(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := GetConfig()
	if cfg.Query.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Query.Timeout)
		defer cancel()
	}

	c := newComponents(cfg)
	defer c.Close()

	p, err := c.pipeline(ctx, false)
	if err != nil {
		return fmt.Errorf("failed to create pipeline: %w", err)
	}

	answer, err := p.Answer(ctx, pipeline.Request{
		Province: queryProvince,
		Asset:    queryAsset,
		DocClass: queryDocClass,
		Question: args[0],
		Lang:     queryLang,
	})
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}

	if queryFormat == "json" {
		output, err := json.MarshalIndent(answer, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(output))
		return nil
	}

	if answer.Refused() {
		fmt.Println(answer.Refusal)
		for _, tip := range answer.Tips {
			fmt.Printf("  - %s\n", tip)
		}
		return nil
	}

	fmt.Println(answer.AnswerZh)
	fmt.Printf("\nSources (%s):\n", answer.Mode)
	for i, cit := range answer.Citations {
		fmt.Printf("  [%d] %s\n      %s\n", i+1, cit.Title, cit.URL)
	}
	return nil
}
