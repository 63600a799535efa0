package mercarifetcher

import (
	"context"
	"fmt"
	"time"

	"github.com/kuroweb/crawlflare/internal/core/port"
)

const (
	DefaultSearchURL = "https://www.mercari.com/jp/search/"
	DefaultItemURL   = "https://jp.mercari.com/item/"
)

// Config holds the crawl budget and the marketplace endpoints.
type Config struct {
	SearchURL string
	// ItemURL prefixes the external id to form the canonical listing URL.
	ItemURL string
	// PageInterval is the pause between two result pages.
	PageInterval  time.Duration
	FirstRunPages int
	SteadyPages   int
	// Location defines where "today" starts for relative sold-out dates.
	Location *time.Location
}

// DefaultConfig returns the production settings.
func DefaultConfig() Config {
	return Config{
		SearchURL:     DefaultSearchURL,
		ItemURL:       DefaultItemURL,
		PageInterval:  time.Second,
		FirstRunPages: 10,
		SteadyPages:   3,
		Location:      TokyoLocation(),
	}
}

// TokyoLocation loads Asia/Tokyo, falling back to a fixed +09:00 zone on hosts
// without tzdata.
func TokyoLocation() *time.Location {
	loc, err := time.LoadLocation("Asia/Tokyo")
	if err != nil {
		return time.FixedZone("JST", 9*60*60)
	}
	return loc
}

// MercariFetcherAdapter crawls Mercari search and item pages through a
// BrowserPort. It never touches the store.
type MercariFetcherAdapter struct {
	browser port.BrowserPort
	cfg     Config

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

var (
	_ port.ListCrawlerPort   = (*MercariFetcherAdapter)(nil)
	_ port.DetailFetcherPort = (*MercariFetcherAdapter)(nil)
)

func NewMercariFetcherAdapter(browser port.BrowserPort, cfg Config) (*MercariFetcherAdapter, error) {
	if browser == nil {
		return nil, fmt.Errorf("mercari fetcher: browser cannot be nil")
	}
	def := DefaultConfig()
	if cfg.SearchURL == "" {
		cfg.SearchURL = def.SearchURL
	}
	if cfg.ItemURL == "" {
		cfg.ItemURL = def.ItemURL
	}
	if cfg.FirstRunPages <= 0 {
		cfg.FirstRunPages = def.FirstRunPages
	}
	if cfg.SteadyPages <= 0 {
		cfg.SteadyPages = def.SteadyPages
	}
	if cfg.PageInterval < 0 {
		cfg.PageInterval = 0
	}
	if cfg.Location == nil {
		cfg.Location = def.Location
	}

	return &MercariFetcherAdapter{
		browser: browser,
		cfg:     cfg,
		now:     time.Now,
		sleep:   sleepContext,
	}, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// withSession scopes one browser session to fn.
func (a *MercariFetcherAdapter) withSession(ctx context.Context, fn func(port.BrowserSessionPort) error) (err error) {
	session, err := a.browser.NewSession(ctx)
	if err != nil {
		return fmt.Errorf("open browser session: %w", err)
	}
	defer func() {
		if cerr := session.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close browser session: %w", cerr)
		}
	}()
	return fn(session)
}
