package usecases_port

import (
	"context"

	"github.com/kuroweb/crawlflare/internal/core/domain"
)

type ResultsPort interface {
	ListByProduct(ctx context.Context, productID int64) ([]domain.ListingSnapshot, error)
	GetByExternalID(ctx context.Context, productID int64, externalID string) (domain.ListingSnapshot, error)
	PurgeProduct(ctx context.Context, productID int64) (int64, error)
}
