package mercarifetcher

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/kuroweb/crawlflare/internal/core/domain"
)

// buildSearchURL turns a crawl setting into the first result page URL. Only
// set filters are sent: no category, and price bounds of 0, are omitted.
func buildSearchURL(base string, setting domain.CrawlConfiguration) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse search url %q: %w", base, err)
	}

	q := url.Values{}
	q.Set("keyword", setting.Keyword)
	if setting.CategoryID != nil {
		q.Set("category_id", strconv.FormatInt(*setting.CategoryID, 10))
	}
	if setting.HasMinPrice() {
		q.Set("price_min", strconv.Itoa(setting.MinPrice))
	}
	if setting.HasMaxPrice() {
		q.Set("price_max", strconv.Itoa(setting.MaxPrice))
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// pageURL returns the URL of result page n, 1-based.
func pageURL(searchURL string, n int) string {
	if n <= 1 {
		return searchURL
	}
	return searchURL + "&page=" + strconv.Itoa(n)
}

// listingURL is the canonical item page of an external id.
func listingURL(itemBase, externalID string) string {
	if !strings.HasSuffix(itemBase, "/") {
		itemBase += "/"
	}
	return itemBase + externalID
}
