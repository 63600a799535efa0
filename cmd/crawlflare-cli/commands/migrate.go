package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	postgres_adapter "github.com/kuroweb/crawlflare/internal/adapters/postgres"
	"github.com/kuroweb/crawlflare/pkg/postgres"
)

func init() {
	rootCmd.AddCommand(migrateCmd)
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Creates the crawl tables and indexes. Safe to run repeatedly.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cfg, logger, cleanup, err := setup(cmd)
		if err != nil {
			return err
		}
		defer cleanup()

		if cfg.Database.URL == "" {
			return fmt.Errorf("DATABASE_URL environment variable is required")
		}
		pool, err := postgres.NewClient(ctx, postgres.Config{DatabaseURL: cfg.Database.URL})
		if err != nil {
			return err
		}
		defer pool.Close()

		if err := postgres.ApplySchema(ctx, pool, postgres_adapter.Schema); err != nil {
			return err
		}
		logger.Info("Schema applied", nil)
		return nil
	},
}
