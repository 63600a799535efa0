package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kuroweb/crawlflare/internal/core/domain"
)

func TestRequestProduct(t *testing.T) {
	disabled := domain.CrawlConfiguration{ProductID: 2, Keyword: "switch"}
	products := newFakeProducts(enabledSetting, disabled)
	queue := &fakeQueue{}
	uc := NewRequestCrawlUseCase(products, queue)

	require.NoError(t, uc.RequestProduct(context.Background(), 7))
	require.ErrorIs(t, uc.RequestProduct(context.Background(), 2), domain.ErrCrawlDisabled)
	require.ErrorIs(t, uc.RequestProduct(context.Background(), 100), domain.ErrProductNotFound)
	require.Equal(t, []domain.ListCrawlJob{{ProductID: 7}}, queue.list)
}

func TestRequestAllEnabled(t *testing.T) {
	other := domain.CrawlConfiguration{ProductID: 3, Keyword: "ps5", Enabled: true}
	disabled := domain.CrawlConfiguration{ProductID: 2, Keyword: "switch"}
	queue := &fakeQueue{}
	uc := NewRequestCrawlUseCase(newFakeProducts(enabledSetting, other, disabled), queue)

	n, err := uc.RequestAllEnabled(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, n)
	require.Equal(t, []domain.ListCrawlJob{{ProductID: 3}, {ProductID: 7}}, queue.list)
}

func TestResultsUseCase(t *testing.T) {
	store := newMemoryStore(
		snapshot(1, 7, "A", domain.StatusSelling),
		snapshot(2, 7, "B", domain.StatusSoldOut),
		snapshot(3, 8, "A", domain.StatusSelling),
	)
	uc := NewResultsUseCase(newFakeProducts(enabledSetting), store)
	ctx := context.Background()

	rows, err := uc.ListByProduct(ctx, 7)
	require.NoError(t, err)
	require.Equal(t, []string{"A", "B"}, externalIDs(rows))

	row, err := uc.GetByExternalID(ctx, 7, "B")
	require.NoError(t, err)
	require.Equal(t, int64(2), row.ID)

	_, err = uc.GetByExternalID(ctx, 7, "Z")
	require.ErrorIs(t, err, domain.ErrListingNotFound)

	n, err := uc.PurgeProduct(ctx, 7)
	require.NoError(t, err)
	require.Equal(t, int64(2), n)
	require.Len(t, store.rows, 1)

	_, err = uc.ListByProduct(ctx, 99)
	require.ErrorIs(t, err, domain.ErrProductNotFound)
}
