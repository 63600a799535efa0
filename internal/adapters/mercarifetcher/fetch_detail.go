package mercarifetcher

import (
	"context"
	"net/http"
	"time"

	"github.com/kuroweb/crawlflare/internal/contextkeys"
	"github.com/kuroweb/crawlflare/internal/core/domain"
	"github.com/kuroweb/crawlflare/internal/core/port"
)

var (
	selEmptyState  = port.CSS(".merEmptyState")
	selDetailName  = port.CSS("[class*='heading'][class*='page']")
	selDetailPrice = port.CSS("[data-testid='price']")
	selSoldNotice  = port.HasText("※売り切れのためコメントできません")
)

// FetchDetail reads one item page. A removed listing is reported with Exists
// false; only navigation failures are errors.
func (a *MercariFetcherAdapter) FetchDetail(ctx context.Context, listingURL string) (domain.ListingDetail, error) {
	logger := contextkeys.LoggerFromContext(ctx).WithFields(port.Fields{
		"adapter": "MercariFetcher",
		"url":     listingURL,
	})

	var detail domain.ListingDetail
	err := a.withSession(ctx, func(session port.BrowserSessionPort) error {
		page, err := session.Navigate(ctx, listingURL)
		if err != nil {
			return err
		}
		detail = parseDetailPage(page, a.now().In(a.cfg.Location))
		return nil
	})
	if err != nil {
		return domain.ListingDetail{}, err
	}

	logger.Debug("Item page parsed", port.Fields{
		"exists": detail.Exists,
		"status": detail.Status.String(),
	})
	return detail, nil
}

func parseDetailPage(page port.PagePort, now time.Time) domain.ListingDetail {
	if isRemoved(page) {
		return domain.ListingDetail{Exists: false}
	}

	detail := domain.ListingDetail{Exists: true, Status: domain.StatusSelling}
	if el, ok := page.Find(selDetailName); ok {
		detail.Name = el.Text()
	}
	if el, ok := page.Find(selDetailPrice); ok {
		if price, ok := parsePrice(el.Text()); ok {
			detail.Price = price
		}
	}
	detail.ImageURL = firstImage(page.FindAll(selImage))

	if _, sold := page.Find(selSoldNotice); sold {
		detail.Status = domain.StatusSoldOut
		at := resolveSoldOutDate(page, now)
		detail.SoldOutAt = &at
	}
	return detail
}

func isRemoved(page port.PagePort) bool {
	switch page.StatusCode() {
	case http.StatusNotFound, http.StatusGone:
		return true
	}
	_, empty := page.Find(selEmptyState)
	return empty
}
