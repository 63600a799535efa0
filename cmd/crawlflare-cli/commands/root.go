package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kuroweb/crawlflare/internal"
	"github.com/kuroweb/crawlflare/internal/configs"
	"github.com/kuroweb/crawlflare/internal/contextkeys"
	"github.com/kuroweb/crawlflare/internal/core/port"
)

var envPath *string

var rootCmd = &cobra.Command{
	Use:           "crawlflare-cli",
	Short:         "crawlflare-cli runs Mercari crawls and manages the crawl service by hand.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	envPath = rootCmd.PersistentFlags().String("env", "", "Path to a .env file. Defaults to ./.env when present.")
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setup loads the configuration and puts a logger for the command into ctx.
// The returned cleanup flushes the Fluent Bit client when one is configured.
func setup(cmd *cobra.Command) (context.Context, *configs.AppConfig, port.LoggerPort, func(), error) {
	cfg, err := configs.LoadConfig(*envPath)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	logger, fluentClient, err := internal.NewLogger(cfg)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	logger = logger.WithFields(port.Fields{"command": cmd.CommandPath()})

	cleanup := func() {
		if fluentClient != nil {
			_ = fluentClient.Close()
		}
	}
	ctx := contextkeys.ContextWithLogger(cmd.Context(), logger)
	return ctx, cfg, logger, cleanup, nil
}
