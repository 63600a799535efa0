package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/kuroweb/crawlflare/internal/core/domain"
)

var tokyo = time.FixedZone("JST", 9*60*60)

func newDetailUseCase(store *memoryStore, fetcher *fakeFetcher, now time.Time) *SyncDetailUseCase {
	uc := NewSyncDetailUseCase(store, fetcher)
	uc.now = func() time.Time { return now }
	return uc
}

func TestPlanDetailUpdate(t *testing.T) {
	now := time.Date(2024, 5, 10, 15, 30, 0, 0, tokyo)
	threeDaysAgo := time.Date(2024, 5, 7, 0, 0, 0, 0, tokyo)
	soldOut := domain.StatusSoldOut
	newPrice := 800
	newName := "renamed"

	selling := snapshot(1, 7, "m1", domain.StatusSelling)
	undated := snapshot(1, 7, "m1", domain.StatusSoldOut)
	dated := snapshot(1, 7, "m1", domain.StatusSoldOut)
	dated.SoldOutAt = timePtr(threeDaysAgo)

	unchanged := domain.ListingDetail{Exists: true, Name: selling.Name, Price: selling.Price, Status: domain.StatusSelling}

	testCases := []struct {
		name     string
		stored   domain.ListingSnapshot
		detail   domain.ListingDetail
		action   domain.DetailAction
		expected domain.ListingPatch
	}{
		{
			name:   "selling becomes sold out",
			stored: selling,
			detail: domain.ListingDetail{Exists: true, Name: selling.Name, Price: 800, Status: domain.StatusSoldOut, SoldOutAt: timePtr(threeDaysAgo)},
			action: domain.ActionUpdated,
			expected: domain.ListingPatch{
				Price:     &newPrice,
				Status:    &soldOut,
				SoldOutAt: timePtr(threeDaysAgo),
			},
		},
		{
			name:     "selling with new name",
			stored:   selling,
			detail:   domain.ListingDetail{Exists: true, Name: newName, Price: selling.Price, Status: domain.StatusSelling},
			action:   domain.ActionUpdated,
			expected: domain.ListingPatch{Name: &newName},
		},
		{
			name:   "selling unchanged",
			stored: selling,
			detail: unchanged,
			action: domain.ActionNoChange,
		},
		{
			name:   "unreadable fields are not compared",
			stored: selling,
			detail: domain.ListingDetail{Exists: true, Status: domain.StatusSelling},
			action: domain.ActionNoChange,
		},
		{
			name:     "undated sold out gets resolved date",
			stored:   undated,
			detail:   domain.ListingDetail{Exists: true, Name: undated.Name, Price: undated.Price, Status: domain.StatusSoldOut, SoldOutAt: timePtr(threeDaysAgo)},
			action:   domain.ActionUpdated,
			expected: domain.ListingPatch{SoldOutAt: timePtr(threeDaysAgo)},
		},
		{
			name:     "undated sold out falls back to now",
			stored:   undated,
			detail:   domain.ListingDetail{Exists: true, Name: undated.Name, Status: domain.StatusSelling},
			action:   domain.ActionUpdated,
			expected: domain.ListingPatch{SoldOutAt: timePtr(now)},
		},
		{
			name:   "dated sold out is left alone",
			stored: dated,
			detail: domain.ListingDetail{Exists: true, Name: "relisted", Price: 1, Status: domain.StatusSelling},
			action: domain.ActionNoChange,
		},
	}

	for _, test := range testCases {
		t.Run(test.name, func(t *testing.T) {
			patch, action := planDetailUpdate(test.stored, test.detail, now)
			require.Equal(t, test.action, action)
			if diff := cmp.Diff(test.expected, patch); diff != "" {
				t.Fatalf("patch mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestSyncDetailResolvesRelativeSoldOutDate(t *testing.T) {
	now := time.Date(2024, 5, 10, 12, 0, 0, 0, tokyo)
	store := newMemoryStore(snapshot(5, 7, "m5", domain.StatusSoldOut))
	fetcher := &fakeFetcher{detail: domain.ListingDetail{
		Exists:    true,
		Status:    domain.StatusSoldOut,
		SoldOutAt: timePtr(time.Date(2024, 5, 7, 0, 0, 0, 0, tokyo)),
	}}

	res := newDetailUseCase(store, fetcher, now).Execute(context.Background(), 5)
	require.Equal(t, domain.ActionUpdated, res.Action)
	require.True(t, res.Success())
	require.Equal(t, []string{"https://jp.mercari.com/item/m5"}, fetcher.urls)

	got, _ := store.FindByID(context.Background(), 5)
	require.Equal(t, "2024-05-07T00:00:00+09:00", got.SoldOutAt.Format(time.RFC3339))
}

func TestSyncDetailDeletesRemovedListing(t *testing.T) {
	store := newMemoryStore(snapshot(5, 7, "m5", domain.StatusSelling))
	fetcher := &fakeFetcher{detail: domain.ListingDetail{Exists: false}}

	res := newDetailUseCase(store, fetcher, time.Now()).Execute(context.Background(), 5)
	require.Equal(t, domain.ActionDeleted, res.Action)
	require.Equal(t, []int64{5}, store.deleted)

	_, err := store.FindByID(context.Background(), 5)
	require.ErrorIs(t, err, domain.ErrListingNotFound)
}

func TestSyncDetailMissingSnapshot(t *testing.T) {
	store := newMemoryStore()
	fetcher := &fakeFetcher{}

	res := newDetailUseCase(store, fetcher, time.Now()).Execute(context.Background(), 42)
	require.Equal(t, domain.ActionError, res.Action)
	require.ErrorIs(t, res.Err, domain.ErrListingNotFound)
	require.Empty(t, fetcher.urls)
	require.Empty(t, store.rows)
}

func TestSyncDetailFailuresBecomeErrorResults(t *testing.T) {
	navErr := errors.New("navigation timeout")

	testCases := []struct {
		name    string
		fetcher *fakeFetcher
		failOn  string
	}{
		{name: "fetch error", fetcher: &fakeFetcher{err: navErr}},
		{name: "parser panic", fetcher: &fakeFetcher{panics: true}},
		{name: "update error", fetcher: &fakeFetcher{detail: domain.ListingDetail{Exists: true, Price: 1, Status: domain.StatusSelling}}, failOn: "update"},
	}

	for _, test := range testCases {
		t.Run(test.name, func(t *testing.T) {
			store := newMemoryStore(snapshot(5, 7, "m5", domain.StatusSelling))
			store.failOnOp = test.failOn

			res := newDetailUseCase(store, test.fetcher, time.Now()).Execute(context.Background(), 5)
			require.Equal(t, domain.ActionError, res.Action)
			require.Error(t, res.Err)
			require.NotEmpty(t, res.Message)
			require.False(t, domain.IsTerminal(res.Err))
		})
	}
}

func TestSoldOutDateIsNeverCleared(t *testing.T) {
	soldAt := time.Date(2024, 4, 1, 0, 0, 0, 0, tokyo)
	row := snapshot(5, 7, "m5", domain.StatusSoldOut)
	row.SoldOutAt = &soldAt
	store := newMemoryStore(row)

	details := []domain.ListingDetail{
		{Exists: true, Status: domain.StatusSelling, Price: 10},
		{Exists: true, Status: domain.StatusSoldOut},
		{Exists: true, Status: domain.StatusSoldOut, SoldOutAt: timePtr(time.Now())},
	}
	for _, d := range details {
		newDetailUseCase(store, &fakeFetcher{detail: d}, time.Now()).Execute(context.Background(), 5)
		got, err := store.FindByID(context.Background(), 5)
		require.NoError(t, err)
		require.NotNil(t, got.SoldOutAt)
		require.True(t, got.SoldOutAt.Equal(soldAt))
		require.Equal(t, domain.StatusSoldOut, got.Status)
	}
}
