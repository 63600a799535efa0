package mercarifetcher

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/kuroweb/crawlflare/internal/core/domain"
)

var jst = time.FixedZone("JST", 9*60*60)

func TestFetchDetail(t *testing.T) {
	now := time.Date(2024, 5, 10, 14, 25, 0, 0, jst)
	threeDaysAgo := time.Date(2024, 5, 7, 0, 0, 0, 0, jst)

	testCases := []struct {
		name     string
		fixture  fixture
		expected domain.ListingDetail
	}{
		{
			name:    "selling",
			fixture: fixture{status: 200, file: "item_selling.html"},
			expected: domain.ListingDetail{
				Exists:   true,
				Name:     "Camera body (boxed)",
				Price:    11000,
				ImageURL: "https://static.mercdn.net/item/detail/orig/photos/m11111111111_1.jpg",
				Status:   domain.StatusSelling,
			},
		},
		{
			name:    "sold three days ago",
			fixture: fixture{status: 200, file: "item_sold.html"},
			expected: domain.ListingDetail{
				Exists:    true,
				Name:      "Tripod",
				Price:     3000,
				ImageURL:  "https://static.mercdn.net/item/detail/orig/photos/m44444444444_1.jpg",
				Status:    domain.StatusSoldOut,
				SoldOutAt: &threeDaysAgo,
			},
		},
		{
			name:    "sold without detail container falls back to now",
			fixture: fixture{status: 200, file: "item_sold_undated.html"},
			expected: domain.ListingDetail{
				Exists:    true,
				Name:      "Tripod",
				Price:     3000,
				Status:    domain.StatusSoldOut,
				SoldOutAt: &now,
			},
		},
		{
			name:     "empty state marker",
			fixture:  fixture{status: 200, file: "item_removed.html"},
			expected: domain.ListingDetail{Exists: false},
		},
		{
			name:     "not found status",
			fixture:  fixture{status: 404, file: "item_selling.html"},
			expected: domain.ListingDetail{Exists: false},
		},
	}

	for _, test := range testCases {
		t.Run(test.name, func(t *testing.T) {
			b := &fixtureBrowser{route: func(string) fixture { return test.fixture }}
			a, _ := newTestAdapter(t, b, now)

			got, err := a.FetchDetail(context.Background(), "https://jp.mercari.com/item/m1")
			require.NoError(t, err)
			if diff := cmp.Diff(test.expected, got); diff != "" {
				t.Fatalf("detail mismatch (-want +got):\n%s", diff)
			}
			require.Equal(t, []string{"https://jp.mercari.com/item/m1"}, b.visited)
			require.Equal(t, 1, b.closed)
		})
	}
}

func TestFetchDetailNavigationFailure(t *testing.T) {
	b := &fixtureBrowser{route: func(string) fixture { return fixture{err: errNavigationTimeout} }}
	a, _ := newTestAdapter(t, b, time.Now())

	_, err := a.FetchDetail(context.Background(), "https://jp.mercari.com/item/m1")
	require.ErrorIs(t, err, errNavigationTimeout)
	require.Equal(t, 1, b.closed)
}
