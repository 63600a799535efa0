package port

import (
	"context"

	"github.com/kuroweb/crawlflare/internal/core/domain"
)

type CrawlJobQueuePort interface {
	EnqueueListCrawl(ctx context.Context, job domain.ListCrawlJob) error
	// EnqueueDetailCrawls publishes all jobs as one batch.
	EnqueueDetailCrawls(ctx context.Context, jobs []domain.DetailCrawlJob) error
}
