package port

import (
	"context"

	"github.com/kuroweb/crawlflare/internal/core/domain"
)

// ResultStorePort persists listing snapshots keyed by (productID, externalID).
type ResultStorePort interface {
	// UpsertBatch inserts or refreshes the given observations. Rows are merged
	// on (productID, externalID); SoldOutAt is never touched.
	UpsertBatch(ctx context.Context, productID int64, observations []domain.ListingObservation) error
	FindByProductID(ctx context.Context, productID int64) ([]domain.ListingSnapshot, error)
	FindByID(ctx context.Context, id int64) (domain.ListingSnapshot, error)
	FindByExternalID(ctx context.Context, productID int64, externalID string) (domain.ListingSnapshot, error)
	FindSellingByProductID(ctx context.Context, productID int64) ([]domain.ListingSnapshot, error)
	FindSoldOutWithoutDateByProductID(ctx context.Context, productID int64) ([]domain.ListingSnapshot, error)
	// UpdateByID applies a partial update and refreshes the updated timestamp.
	UpdateByID(ctx context.Context, id int64, patch domain.ListingPatch) error
	DeleteByID(ctx context.Context, id int64) error
	DeleteByProductID(ctx context.Context, productID int64) (int64, error)
}

// ProductRepositoryPort reads tracked products and their crawl settings.
type ProductRepositoryPort interface {
	FindProductByID(ctx context.Context, id int64) (domain.Product, error)
	FindCrawlConfiguration(ctx context.Context, productID int64) (domain.CrawlConfiguration, error)
	FindEnabledCrawlConfigurations(ctx context.Context) ([]domain.CrawlConfiguration, error)
}
