package commands

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kuroweb/crawlflare/internal"
	"github.com/kuroweb/crawlflare/internal/core/domain"
	"github.com/kuroweb/crawlflare/internal/core/port"
)

var (
	scrapeMode *string

	scrapeKeyword  *string
	scrapeCategory *int64
	scrapeMin      *int
	scrapeMax      *int
	scrapeFirstRun *bool

	scrapeURL *string
)

func init() {
	scrapeMode = scrapeCmd.PersistentFlags().String("mode", "", "Browser mode, rod or static. Overrides BROWSER_MODE.")

	scrapeKeyword = scrapeListCmd.Flags().String("keyword", "", "Search keyword.")
	scrapeCategory = scrapeListCmd.Flags().Int64("category", 0, "Category id, 0 for any.")
	scrapeMin = scrapeListCmd.Flags().Int("min", 0, "Minimum price, 0 for unbounded.")
	scrapeMax = scrapeListCmd.Flags().Int("max", 0, "Maximum price, 0 for unbounded.")
	scrapeFirstRun = scrapeListCmd.Flags().Bool("first-run", false, "Use the first run page budget.")
	_ = scrapeListCmd.MarkFlagRequired("keyword")

	scrapeURL = scrapeDetailCmd.Flags().String("url", "", "Item page URL.")
	_ = scrapeDetailCmd.MarkFlagRequired("url")

	scrapeCmd.AddCommand(scrapeListCmd, scrapeDetailCmd)
	rootCmd.AddCommand(scrapeCmd)
}

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Runs the crawlers and prints what they see. Nothing is stored.",
}

var scrapeListCmd = &cobra.Command{
	Use:   "list --keyword <kw> [--category <id>] [--min <yen>] [--max <yen>] [--first-run]",
	Short: "Crawls the search results of one keyword.",
	RunE: func(cmd *cobra.Command, args []string) error {
		setting := domain.CrawlConfiguration{
			Keyword:  *scrapeKeyword,
			MinPrice: *scrapeMin,
			MaxPrice: *scrapeMax,
			Enabled:  true,
		}
		if *scrapeCategory > 0 {
			setting.CategoryID = scrapeCategory
		}

		return withFetcher(cmd, func(f crawlers) (interface{}, error) {
			return f.CrawlList(cmd.Context(), setting, *scrapeFirstRun)
		})
	},
}

var scrapeDetailCmd = &cobra.Command{
	Use:   "detail --url <item url>",
	Short: "Fetches one item page.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withFetcher(cmd, func(f crawlers) (interface{}, error) {
			return f.FetchDetail(cmd.Context(), *scrapeURL)
		})
	},
}

type crawlers interface {
	port.ListCrawlerPort
	port.DetailFetcherPort
}

// withFetcher starts a browser, runs fn and prints its result as JSON.
func withFetcher(cmd *cobra.Command, fn func(f crawlers) (interface{}, error)) error {
	ctx, cfg, logger, cleanup, err := setup(cmd)
	if err != nil {
		return err
	}
	defer cleanup()
	cmd.SetContext(ctx)

	if *scrapeMode != "" {
		cfg.Browser.Mode = *scrapeMode
	}
	b, err := internal.NewBrowser(cfg.Browser, logger)
	if err != nil {
		return err
	}
	defer b.Close()

	fetcher, err := internal.NewFetcher(cfg.Crawler, b)
	if err != nil {
		return err
	}

	started := time.Now()
	result, err := fn(fetcher)
	if err != nil {
		return err
	}
	logger.Info("Scrape finished", port.Fields{"duration_ms": time.Since(started).Milliseconds()})

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}
