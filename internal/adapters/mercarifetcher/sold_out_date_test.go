package mercarifetcher

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseRelativeDate(t *testing.T) {
	now := time.Date(2024, 5, 10, 18, 45, 12, 0, jst)

	testCases := []struct {
		text     string
		expected string
	}{
		{text: "12分前", expected: "2024-05-10T00:00:00+09:00"},
		{text: "5時間前", expected: "2024-05-10T00:00:00+09:00"},
		{text: "3日前", expected: "2024-05-07T00:00:00+09:00"},
		{text: "15日前", expected: "2024-04-25T00:00:00+09:00"},
		{text: "2か月前", expected: "2024-03-10T00:00:00+09:00"},
		{text: "半年以上前", expected: "2023-11-10T00:00:00+09:00"},
		{text: "日前", expected: "2024-05-10T00:00:00+09:00"},
	}

	for _, test := range testCases {
		t.Run(test.text, func(t *testing.T) {
			got := parseRelativeDate(test.text, now)
			require.Equal(t, test.expected, got.Format(time.RFC3339))
		})
	}
}

func TestResolveSoldOutDateUsesFirstPhrase(t *testing.T) {
	now := time.Date(2024, 5, 10, 9, 0, 0, 0, jst)
	page := loadFixture(t, 200, "item_sold.html")

	got := resolveSoldOutDate(page, now)
	require.Equal(t, "2024-05-07T00:00:00+09:00", got.Format(time.RFC3339))
}

func TestDayBoundaryFollowsLocation(t *testing.T) {
	// 2024-05-10 23:30 UTC is already 2024-05-11 in Tokyo
	now := time.Date(2024, 5, 10, 23, 30, 0, 0, time.UTC).In(jst)

	got := parseRelativeDate("1日前", now)
	require.Equal(t, "2024-05-10T00:00:00+09:00", got.Format(time.RFC3339))
}
