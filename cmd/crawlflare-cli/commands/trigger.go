package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	triggerAPI     *string
	triggerProduct *int64
)

func init() {
	triggerAPI = triggerCmd.Flags().String("api", "http://localhost:8080", "Base URL of the crawl service.")
	triggerProduct = triggerCmd.Flags().Int64("product", 0, "Product id; omit to crawl every enabled setting.")
	rootCmd.AddCommand(triggerCmd)
}

type triggerRequest struct {
	ProductID *int64 `json:"productId,omitempty"`
}

type triggerResponse struct {
	Enqueued  int    `json:"enqueued"`
	ProductID *int64 `json:"productId"`
}

type apiError struct {
	Error string `json:"error"`
}

var triggerCmd = &cobra.Command{
	Use:   "trigger [--api <url>] [--product <id>]",
	Short: "Asks a running crawl service to enqueue list crawls.",
	RunE: func(cmd *cobra.Command, args []string) error {
		var body triggerRequest
		if *triggerProduct > 0 {
			body.ProductID = triggerProduct
		}

		traceID := uuid.New().String()
		var ok triggerResponse
		var failed apiError

		resp, err := resty.New().
			SetTimeout(15*time.Second).
			SetRetryCount(2).
			SetBaseURL(strings.TrimRight(*triggerAPI, "/")).
			R().
			SetContext(cmd.Context()).
			SetHeader("X-Trace-ID", traceID).
			SetBody(body).
			SetResult(&ok).
			SetError(&failed).
			Post("/api/crawl/execute")
		if err != nil {
			return fmt.Errorf("call crawl service: %w", err)
		}
		if resp.IsError() {
			return fmt.Errorf("crawl service answered %d: %s (trace %s)", resp.StatusCode(), failed.Error, traceID)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "enqueued %d list crawl jobs (trace %s)\n", ok.Enqueued, traceID)
		return nil
	},
}
