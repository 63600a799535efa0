package usecase

import (
	"context"
	"fmt"

	"github.com/kuroweb/crawlflare/internal/contextkeys"
	"github.com/kuroweb/crawlflare/internal/core/domain"
	"github.com/kuroweb/crawlflare/internal/core/port"
)

// RequestCrawlUseCase puts list crawls on the queue for the API, the CLI and
// the scheduler.
type RequestCrawlUseCase struct {
	products port.ProductRepositoryPort
	jobs     port.CrawlJobQueuePort
}

func NewRequestCrawlUseCase(products port.ProductRepositoryPort, jobs port.CrawlJobQueuePort) *RequestCrawlUseCase {
	return &RequestCrawlUseCase{products: products, jobs: jobs}
}

func (uc *RequestCrawlUseCase) RequestProduct(ctx context.Context, productID int64) error {
	logger := contextkeys.LoggerFromContext(ctx).WithFields(port.Fields{
		"use_case":   "RequestCrawl",
		"product_id": productID,
	})

	if _, err := uc.products.FindProductByID(ctx, productID); err != nil {
		return fmt.Errorf("load product: %w", err)
	}
	setting, err := uc.products.FindCrawlConfiguration(ctx, productID)
	if err != nil {
		return fmt.Errorf("load crawl setting: %w", err)
	}
	if !setting.Enabled {
		return domain.ErrCrawlDisabled
	}

	if err := uc.jobs.EnqueueListCrawl(ctx, domain.ListCrawlJob{ProductID: productID}); err != nil {
		return fmt.Errorf("enqueue list crawl: %w", err)
	}
	logger.Info("List crawl enqueued", nil)
	return nil
}

func (uc *RequestCrawlUseCase) RequestAllEnabled(ctx context.Context) (int, error) {
	logger := contextkeys.LoggerFromContext(ctx).WithFields(port.Fields{"use_case": "RequestCrawl"})

	settings, err := uc.products.FindEnabledCrawlConfigurations(ctx)
	if err != nil {
		return 0, fmt.Errorf("load enabled crawl settings: %w", err)
	}

	enqueued := 0
	for _, s := range settings {
		if err := uc.jobs.EnqueueListCrawl(ctx, domain.ListCrawlJob{ProductID: s.ProductID}); err != nil {
			return enqueued, fmt.Errorf("enqueue list crawl for product %d: %w", s.ProductID, err)
		}
		enqueued++
	}
	logger.Info("List crawls enqueued for enabled settings", port.Fields{"count": enqueued})
	return enqueued, nil
}
