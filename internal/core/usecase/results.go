package usecase

import (
	"context"
	"fmt"

	"github.com/kuroweb/crawlflare/internal/contextkeys"
	"github.com/kuroweb/crawlflare/internal/core/domain"
	"github.com/kuroweb/crawlflare/internal/core/port"
)

// ResultsUseCase is the read and purge side of the result store.
type ResultsUseCase struct {
	products port.ProductRepositoryPort
	results  port.ResultStorePort
}

func NewResultsUseCase(products port.ProductRepositoryPort, results port.ResultStorePort) *ResultsUseCase {
	return &ResultsUseCase{products: products, results: results}
}

func (uc *ResultsUseCase) ListByProduct(ctx context.Context, productID int64) ([]domain.ListingSnapshot, error) {
	if _, err := uc.products.FindProductByID(ctx, productID); err != nil {
		return nil, fmt.Errorf("load product: %w", err)
	}
	rows, err := uc.results.FindByProductID(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("find snapshots: %w", err)
	}
	return rows, nil
}

func (uc *ResultsUseCase) GetByExternalID(ctx context.Context, productID int64, externalID string) (domain.ListingSnapshot, error) {
	row, err := uc.results.FindByExternalID(ctx, productID, externalID)
	if err != nil {
		return domain.ListingSnapshot{}, fmt.Errorf("find snapshot %q: %w", externalID, err)
	}
	return row, nil
}

// PurgeProduct deletes every snapshot of a product and returns the count.
func (uc *ResultsUseCase) PurgeProduct(ctx context.Context, productID int64) (int64, error) {
	if _, err := uc.products.FindProductByID(ctx, productID); err != nil {
		return 0, fmt.Errorf("load product: %w", err)
	}
	n, err := uc.results.DeleteByProductID(ctx, productID)
	if err != nil {
		return 0, fmt.Errorf("delete snapshots: %w", err)
	}
	contextkeys.LoggerFromContext(ctx).Info("Snapshots purged", port.Fields{
		"use_case":   "PurgeProduct",
		"product_id": productID,
		"deleted":    n,
	})
	return n, nil
}
