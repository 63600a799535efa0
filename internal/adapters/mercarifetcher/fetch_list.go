package mercarifetcher

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/kuroweb/crawlflare/internal/contextkeys"
	"github.com/kuroweb/crawlflare/internal/core/domain"
	"github.com/kuroweb/crawlflare/internal/core/port"
)

var (
	selGrid       = port.CSS("div[data-testid='search-item-grid']")
	selCell       = port.CSS("li[data-testid='item-cell']")
	selSkeleton   = port.CSS(".merSkeleton")
	selLink       = port.CSS("a")
	selCardName   = port.CSS("[data-testid='thumbnail-item-name']")
	selCardPrice  = port.CSS("[class^='number']")
	selImage      = port.CSS("img")
	selSoldBadge  = port.CSS("[aria-label='売り切れ']")
	selNextButton = port.CSS("[data-testid='pagination-next-button']")

	itemIDPattern    = regexp.MustCompile(`/item/([^/?#]+)`)
	shopLinkPattern  = regexp.MustCompile(`product/([^/]+)`)
	promoImageMarker = "super_mercari_days"
)

// CrawlList walks the result pages of one setting inside a single browser
// session. It stops at the page budget, at an empty page, or when there is
// no next page. A failed navigation fails the whole crawl.
func (a *MercariFetcherAdapter) CrawlList(ctx context.Context, setting domain.CrawlConfiguration, isFirstRun bool) ([]domain.ListingObservation, error) {
	searchURL, err := buildSearchURL(a.cfg.SearchURL, setting)
	if err != nil {
		return nil, err
	}

	maxPages := a.cfg.SteadyPages
	if isFirstRun {
		maxPages = a.cfg.FirstRunPages
	}

	logger := contextkeys.LoggerFromContext(ctx).WithFields(port.Fields{
		"adapter":    "MercariFetcher",
		"product_id": setting.ProductID,
		"max_pages":  maxPages,
	})

	var results []domain.ListingObservation
	seen := make(map[string]struct{})

	err = a.withSession(ctx, func(session port.BrowserSessionPort) error {
		for n := 1; n <= maxPages; n++ {
			u := pageURL(searchURL, n)
			page, err := session.Navigate(ctx, u)
			if err != nil {
				return fmt.Errorf("result page %d: %w", n, err)
			}

			cards := parseSearchPage(page, a.cfg.ItemURL)
			logger.Debug("Result page parsed", port.Fields{"page": n, "url": u, "cards": len(cards)})
			if len(cards) == 0 {
				return nil
			}
			for _, c := range cards {
				// cards move between pages while we crawl
				if _, dup := seen[c.ExternalID]; dup {
					continue
				}
				seen[c.ExternalID] = struct{}{}
				results = append(results, c)
			}

			if _, ok := page.Find(selNextButton); !ok {
				return nil
			}
			if n < maxPages {
				if err := a.sleep(ctx, a.cfg.PageInterval); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info("Search results crawled", port.Fields{"observed": len(results)})
	return results, nil
}

// parseSearchPage reads every crawlable card on a result page. A card that
// cannot be read is skipped.
func parseSearchPage(page port.PagePort, itemBase string) []domain.ListingObservation {
	grid, ok := page.Find(selGrid)
	if !ok {
		return nil
	}

	var out []domain.ListingObservation
	for _, cell := range grid.FindAll(selCell) {
		if skipCard(cell) {
			continue
		}
		if obs, ok := parseCard(cell, itemBase); ok {
			out = append(out, obs)
		}
	}
	return out
}

// skipCard reports placeholders that have not rendered yet and Mercari Shops
// cards, which link to product/<id> instead of item/<id>.
func skipCard(cell port.ElementPort) bool {
	if _, ok := cell.Find(selSkeleton); ok {
		return true
	}
	if link, ok := cell.Find(selLink); ok {
		if href, ok := link.Attr("href"); ok && shopLinkPattern.MatchString(href) {
			return true
		}
	}
	return false
}

func parseCard(cell port.ElementPort, itemBase string) (domain.ListingObservation, bool) {
	link, ok := cell.Find(selLink)
	if !ok {
		return domain.ListingObservation{}, false
	}
	href, _ := link.Attr("href")
	m := itemIDPattern.FindStringSubmatch(href)
	if m == nil {
		return domain.ListingObservation{}, false
	}
	externalID := m[1]

	nameEl, ok := cell.Find(selCardName)
	if !ok || nameEl.Text() == "" {
		return domain.ListingObservation{}, false
	}

	priceEl, ok := cell.Find(selCardPrice)
	if !ok {
		return domain.ListingObservation{}, false
	}
	price, ok := parsePrice(priceEl.Text())
	if !ok {
		return domain.ListingObservation{}, false
	}

	status := domain.StatusSelling
	if _, sold := cell.Find(selSoldBadge); sold {
		status = domain.StatusSoldOut
	}

	return domain.ListingObservation{
		ExternalID: externalID,
		Name:       nameEl.Text(),
		Price:      price,
		SellingURL: listingURL(itemBase, externalID),
		ImageURL:   firstImage(cell.FindAll(selImage)),
		Status:     status,
		SellerKind: domain.SellerIndividual,
	}, true
}

// parsePrice accepts "¥12,345" style text. Zero and unparsable prices are
// rejected.
func parsePrice(text string) (int, bool) {
	cleaned := strings.NewReplacer(",", "", "¥", "", "￥", "").Replace(strings.TrimSpace(text))
	price, err := strconv.Atoi(strings.TrimSpace(cleaned))
	if err != nil || price <= 0 {
		return 0, false
	}
	return price, true
}

// firstImage returns the first non-promotional image source.
func firstImage(imgs []port.ElementPort) string {
	for _, img := range imgs {
		src, ok := img.Attr("src")
		if !ok || src == "" || strings.Contains(src, promoImageMarker) {
			continue
		}
		return src
	}
	return ""
}
