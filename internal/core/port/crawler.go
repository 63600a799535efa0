package port

import (
	"context"

	"github.com/kuroweb/crawlflare/internal/core/domain"
)

// ListCrawlerPort crawls the search results of one configuration.
type ListCrawlerPort interface {
	CrawlList(ctx context.Context, cfg domain.CrawlConfiguration, isFirstRun bool) ([]domain.ListingObservation, error)
}

// DetailFetcherPort reads one item page.
type DetailFetcherPort interface {
	FetchDetail(ctx context.Context, listingURL string) (domain.ListingDetail, error)
}
