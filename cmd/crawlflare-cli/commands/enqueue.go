package commands

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/kuroweb/crawlflare/internal"
	postgres_adapter "github.com/kuroweb/crawlflare/internal/adapters/postgres"
	rabbitmq_adapter "github.com/kuroweb/crawlflare/internal/adapters/rabbitmq"
	"github.com/kuroweb/crawlflare/internal/contextkeys"
	"github.com/kuroweb/crawlflare/internal/core/port"
	"github.com/kuroweb/crawlflare/internal/core/usecase"
	"github.com/kuroweb/crawlflare/pkg/postgres"
	"github.com/kuroweb/crawlflare/pkg/rabbitmq/rabbitmq_common"
)

var (
	enqueueProduct *int64
	enqueueAll     *bool
)

func init() {
	enqueueProduct = enqueueCmd.Flags().Int64("product", 0, "Product id to crawl.")
	enqueueAll = enqueueCmd.Flags().Bool("all", false, "Crawl every product with an enabled setting.")
	enqueueCmd.MarkFlagsMutuallyExclusive("product", "all")
	enqueueCmd.MarkFlagsOneRequired("product", "all")
	rootCmd.AddCommand(enqueueCmd)
}

var enqueueCmd = &cobra.Command{
	Use:   "enqueue (--product <id> | --all)",
	Short: "Publishes list crawl jobs directly to RabbitMQ.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cfg, logger, cleanup, err := setup(cmd)
		if err != nil {
			return err
		}
		defer cleanup()
		if err := cfg.RequireServices(); err != nil {
			return err
		}
		ctx = contextkeys.ContextWithTraceID(ctx, uuid.New().String())

		pool, err := postgres.NewClient(ctx, postgres.Config{DatabaseURL: cfg.Database.URL})
		if err != nil {
			return err
		}
		defer pool.Close()

		connManager, err := rabbitmq_common.NewManager(cfg.RabbitMQ.URL, rabbitmq_adapter.NewPkgLoggerBridge(logger))
		if err != nil {
			return err
		}
		defer connManager.Close()

		producer, jobQueue, err := internal.NewJobPublisher(connManager, cfg.RabbitMQ.URL, logger)
		if err != nil {
			return err
		}
		defer producer.Close()

		products, err := postgres_adapter.NewPostgresProductRepository(pool)
		if err != nil {
			return err
		}
		requestCrawl := usecase.NewRequestCrawlUseCase(products, jobQueue)

		if *enqueueAll {
			n, err := requestCrawl.RequestAllEnabled(ctx)
			if err != nil {
				return err
			}
			logger.Info("List crawls enqueued", port.Fields{"enqueued": n})
			fmt.Fprintf(cmd.OutOrStdout(), "enqueued %d list crawl jobs\n", n)
			return nil
		}

		if err := requestCrawl.RequestProduct(ctx, *enqueueProduct); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "enqueued list crawl for product %d\n", *enqueueProduct)
		return nil
	},
}
