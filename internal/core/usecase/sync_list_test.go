package usecase

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/kuroweb/crawlflare/internal/core/domain"
)

var enabledSetting = domain.CrawlConfiguration{ID: 1, ProductID: 7, Keyword: "iPhone 15", Enabled: true}

func externalIDs(rows []domain.ListingSnapshot) []string {
	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.ExternalID)
	}
	return ids
}

func TestSyncListFirstRunUpsertsInChunks(t *testing.T) {
	var observations []domain.ListingObservation
	for i := 0; i < 23; i++ {
		observations = append(observations, observation(fmt.Sprintf("m%02d", i), 1000+i))
	}
	store := newMemoryStore()
	crawler := &fakeCrawler{observations: observations}
	queue := &fakeQueue{}
	uc := NewSyncListUseCase(newFakeProducts(enabledSetting), store, crawler, queue, SyncListOptions{})

	report, err := uc.Execute(context.Background(), 7)
	require.NoError(t, err)

	require.Equal(t, []bool{true}, crawler.calls)
	require.Len(t, store.upserts, 3)
	require.Len(t, store.upserts[0], 10)
	require.Len(t, store.upserts[2], 3)
	require.Equal(t, domain.SyncListReport{ProductID: 7, FirstRun: true, Observed: 23, Upserted: 23}, report)
	require.Empty(t, queue.batches)
}

func TestSyncListIsIdempotent(t *testing.T) {
	store := newMemoryStore()
	crawler := &fakeCrawler{observations: []domain.ListingObservation{observation("a", 1000), observation("b", 2000)}}
	uc := NewSyncListUseCase(newFakeProducts(enabledSetting), store, crawler, &fakeQueue{}, SyncListOptions{})

	_, err := uc.Execute(context.Background(), 7)
	require.NoError(t, err)

	crawler.observations = []domain.ListingObservation{observation("a", 900), observation("b", 2000)}
	report, err := uc.Execute(context.Background(), 7)
	require.NoError(t, err)
	require.False(t, report.FirstRun)
	require.Equal(t, []bool{true, false}, crawler.calls)

	rows, err := store.FindByProductID(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, 900, rows[0].Price)
}

func TestSyncListDeletesStaleRows(t *testing.T) {
	store := newMemoryStore(
		snapshot(1, 7, "A", domain.StatusSelling),
		snapshot(2, 7, "B", domain.StatusSelling),
		snapshot(3, 7, "C", domain.StatusSelling),
		snapshot(4, 8, "B", domain.StatusSelling),
	)
	crawler := &fakeCrawler{observations: []domain.ListingObservation{observation("A", 1000), observation("C", 1200)}}
	queue := &fakeQueue{}
	uc := NewSyncListUseCase(newFakeProducts(enabledSetting), store, crawler, queue, SyncListOptions{})

	report, err := uc.Execute(context.Background(), 7)
	require.NoError(t, err)
	require.Equal(t, 1, report.Deleted)

	rows, _ := store.FindByProductID(context.Background(), 7)
	require.Equal(t, []string{"A", "C"}, externalIDs(rows))
	require.Equal(t, 1200, rows[1].Price)

	// other products are untouched
	_, err = store.FindByID(context.Background(), 4)
	require.NoError(t, err)

	// under the delete policy nothing is left for an existence check
	require.Empty(t, queue.batches)
}

func TestSyncListVerifyPolicyDefersDeletion(t *testing.T) {
	soldAt := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	settled := snapshot(3, 7, "C", domain.StatusSoldOut)
	settled.SoldOutAt = &soldAt

	store := newMemoryStore(
		snapshot(1, 7, "A", domain.StatusSelling),
		snapshot(2, 7, "B", domain.StatusSelling),
		settled,
		snapshot(4, 7, "D", domain.StatusSoldOut),
	)
	crawler := &fakeCrawler{observations: []domain.ListingObservation{observation("A", 1000)}}
	queue := &fakeQueue{}
	uc := NewSyncListUseCase(newFakeProducts(enabledSetting), store, crawler, queue, SyncListOptions{StalePolicy: domain.StalePolicyVerify})

	report, err := uc.Execute(context.Background(), 7)
	require.NoError(t, err)

	rows, _ := store.FindByProductID(context.Background(), 7)
	require.Equal(t, []string{"A", "B", "D"}, externalIDs(rows))
	require.Equal(t, 1, report.Deleted)

	// B needs an existence check, D needs a date; each is queued once in one batch
	require.Len(t, queue.batches, 1)
	if diff := cmp.Diff([]domain.DetailCrawlJob{{SnapshotID: 2}, {SnapshotID: 4}}, queue.batches[0]); diff != "" {
		t.Fatalf("detail jobs mismatch (-want +got):\n%s", diff)
	}
	require.Equal(t, 2, report.DetailJobs)
}

func TestSyncListCleanupToleratesConcurrentDelete(t *testing.T) {
	store := newMemoryStore(
		snapshot(1, 7, "A", domain.StatusSelling),
		snapshot(2, 7, "B", domain.StatusSelling),
		snapshot(3, 7, "C", domain.StatusSoldOut),
		snapshot(4, 7, "D", domain.StatusSelling),
	)
	// B disappears between the cleanup scan and its delete
	store.beforeDelete = func(id int64) {
		if id == 2 {
			delete(store.rows, id)
		}
	}
	sold := observation("C", 3000)
	sold.Status = domain.StatusSoldOut
	crawler := &fakeCrawler{observations: []domain.ListingObservation{observation("A", 1000), sold}}
	queue := &fakeQueue{}
	syncList := NewSyncListUseCase(newFakeProducts(enabledSetting), store, crawler, queue, SyncListOptions{})

	verdict := NewDispatchJobUseCase(syncList, &stubSyncDetail{}, DefaultMaxAttempts).
		Dispatch(context.Background(), domain.ListCrawlJob{ProductID: 7}, 1)
	require.Equal(t, domain.VerdictAck, verdict)

	rows, _ := store.FindByProductID(context.Background(), 7)
	require.Equal(t, []string{"A", "C"}, externalIDs(rows))
	require.Equal(t, []int64{4}, store.deleted)

	// the undated sold out row still gets its detail fetch
	require.Equal(t, [][]domain.DetailCrawlJob{{{SnapshotID: 3}}}, queue.batches)
}

func TestSyncListQueuesUndatedSoldOutRows(t *testing.T) {
	store := newMemoryStore()
	sold := observation("S", 3000)
	sold.Status = domain.StatusSoldOut
	crawler := &fakeCrawler{observations: []domain.ListingObservation{observation("A", 1000), sold}}
	queue := &fakeQueue{}
	uc := NewSyncListUseCase(newFakeProducts(enabledSetting), store, crawler, queue, SyncListOptions{})

	report, err := uc.Execute(context.Background(), 7)
	require.NoError(t, err)

	stored, err := store.FindByExternalID(context.Background(), 7, "S")
	require.NoError(t, err)
	require.Equal(t, [][]domain.DetailCrawlJob{{{SnapshotID: stored.ID}}}, queue.batches)
	require.Equal(t, 1, report.DetailJobs)
}

func TestSyncListKeepsSoldOutDateOnUpsert(t *testing.T) {
	soldAt := time.Date(2024, 5, 7, 0, 0, 0, 0, time.UTC)
	row := snapshot(1, 7, "S", domain.StatusSoldOut)
	row.SoldOutAt = &soldAt
	store := newMemoryStore(row)

	sold := observation("S", 500)
	sold.Status = domain.StatusSoldOut
	uc := NewSyncListUseCase(newFakeProducts(enabledSetting), store, &fakeCrawler{observations: []domain.ListingObservation{sold}}, &fakeQueue{}, SyncListOptions{})

	_, err := uc.Execute(context.Background(), 7)
	require.NoError(t, err)

	got, _ := store.FindByID(context.Background(), 1)
	require.NotNil(t, got.SoldOutAt)
	require.True(t, got.SoldOutAt.Equal(soldAt))
}

func TestSyncListPreconditions(t *testing.T) {
	disabled := enabledSetting
	disabled.Enabled = false

	products := newFakeProducts(disabled)
	products.products[9] = domain.Product{ID: 9}

	testCases := []struct {
		name      string
		productID int64
		expected  error
	}{
		{name: "missing product", productID: 1, expected: domain.ErrProductNotFound},
		{name: "missing setting", productID: 9, expected: domain.ErrCrawlSettingNotFound},
		{name: "disabled setting", productID: 7, expected: domain.ErrCrawlDisabled},
	}

	for _, test := range testCases {
		t.Run(test.name, func(t *testing.T) {
			crawler := &fakeCrawler{}
			uc := NewSyncListUseCase(products, newMemoryStore(), crawler, &fakeQueue{}, SyncListOptions{})

			_, err := uc.Execute(context.Background(), test.productID)
			require.ErrorIs(t, err, test.expected)
			require.True(t, domain.IsTerminal(err))
			require.Empty(t, crawler.calls)
		})
	}
}

func TestSyncListCrawlFailureLeavesStoreUntouched(t *testing.T) {
	store := newMemoryStore(snapshot(1, 7, "A", domain.StatusSelling))
	crawler := &fakeCrawler{err: fmt.Errorf("navigate: context deadline exceeded")}
	uc := NewSyncListUseCase(newFakeProducts(enabledSetting), store, crawler, &fakeQueue{}, SyncListOptions{})

	_, err := uc.Execute(context.Background(), 7)
	require.Error(t, err)
	require.False(t, domain.IsTerminal(err))
	require.Empty(t, store.upserts)
	require.Empty(t, store.deleted)
}

func TestSyncListStoreFailureIsReturned(t *testing.T) {
	store := newMemoryStore()
	store.failOnOp = "upsert"
	uc := NewSyncListUseCase(newFakeProducts(enabledSetting), store, &fakeCrawler{observations: []domain.ListingObservation{observation("A", 1)}}, &fakeQueue{}, SyncListOptions{})

	_, err := uc.Execute(context.Background(), 7)
	require.ErrorIs(t, err, errStoreDown)
}
