package browser

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/gocolly/colly/v2/extensions"

	"github.com/kuroweb/crawlflare/internal/core/port"
)

// CollyConfig configures the static HTTP mode. It sees only server-rendered
// markup and is meant for fixtures, mirrors and smoke tests.
type CollyConfig struct {
	DomainGlob     string
	RandomDelay    time.Duration
	RequestTimeout time.Duration
}

// CollyBrowser fetches pages with plain HTTP requests. One parent collector
// carries the rate limit; every session works on a clone of it.
type CollyBrowser struct {
	collector *colly.Collector
	cfg       CollyConfig
}

var _ port.BrowserPort = (*CollyBrowser)(nil)

func NewCollyBrowser(cfg CollyConfig) (*CollyBrowser, error) {
	if cfg.DomainGlob == "" {
		cfg.DomainGlob = "*"
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}

	c := colly.NewCollector(colly.AllowURLRevisit())
	// 4xx bodies are still pages; the removed-listing check needs them
	c.ParseHTTPErrorResponse = true
	c.SetRequestTimeout(cfg.RequestTimeout)

	err := c.Limit(&colly.LimitRule{
		DomainGlob:  cfg.DomainGlob,
		Parallelism: 1,
		RandomDelay: cfg.RandomDelay,
	})
	if err != nil {
		return nil, fmt.Errorf("colly browser: set limit rule: %w", err)
	}

	return &CollyBrowser{collector: c, cfg: cfg}, nil
}

func (b *CollyBrowser) NewSession(ctx context.Context) (port.BrowserSessionPort, error) {
	return &collySession{parent: b.collector}, nil
}

type collySession struct {
	parent *colly.Collector
}

// Navigate returns a page for 2xx responses and for 404/410, which the
// marketplace uses for removed listings. Other statuses are errors.
func (s *collySession) Navigate(ctx context.Context, url string) (port.PagePort, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// clones share the parent's backend and limits but none of its callbacks
	c := s.parent.Clone()
	extensions.RandomUserAgent(c)
	extensions.Referer(c)

	var (
		doc      *Document
		fetchErr error
	)

	c.OnResponse(func(r *colly.Response) {
		if !acceptedStatus(r.StatusCode) {
			fetchErr = fmt.Errorf("unexpected status %d from %s", r.StatusCode, r.Request.URL)
			return
		}
		doc, fetchErr = NewDocument(r.StatusCode, bytes.NewReader(r.Body))
	})
	c.OnError(func(r *colly.Response, err error) {
		fetchErr = fmt.Errorf("request to %s failed with status %d: %w", url, r.StatusCode, err)
	})

	if err := c.Visit(url); err != nil {
		return nil, fmt.Errorf("visit %s: %w", url, err)
	}
	c.Wait()

	if fetchErr != nil {
		return nil, fetchErr
	}
	if doc == nil {
		return nil, fmt.Errorf("no response from %s", url)
	}
	return doc, nil
}

func (s *collySession) Close() error { return nil }

func acceptedStatus(code int) bool {
	if code >= 200 && code < 300 {
		return true
	}
	return code == http.StatusNotFound || code == http.StatusGone
}

// Close is a no-op; colly keeps no process or connection to release.
func (b *CollyBrowser) Close() error { return nil }
