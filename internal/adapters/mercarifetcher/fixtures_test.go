package mercarifetcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kuroweb/crawlflare/internal/adapters/browser"
	"github.com/kuroweb/crawlflare/internal/core/port"
)

type fixture struct {
	status int
	file   string
	err    error
}

// fixtureBrowser serves testdata files instead of the marketplace.
type fixtureBrowser struct {
	t       *testing.T
	route   func(url string) fixture
	visited []string
	opened  int
	closed  int
}

func (b *fixtureBrowser) NewSession(ctx context.Context) (port.BrowserSessionPort, error) {
	b.opened++
	return &fixtureSession{b: b}, nil
}

type fixtureSession struct {
	b *fixtureBrowser
}

func (s *fixtureSession) Navigate(ctx context.Context, url string) (port.PagePort, error) {
	s.b.visited = append(s.b.visited, url)
	f := s.b.route(url)
	if f.err != nil {
		return nil, f.err
	}
	return loadFixture(s.b.t, f.status, f.file), nil
}

func (s *fixtureSession) Close() error {
	s.b.closed++
	return nil
}

func loadFixture(t *testing.T, status int, name string) *browser.Document {
	t.Helper()
	raw, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	doc, err := browser.NewDocument(status, strings.NewReader(string(raw)))
	require.NoError(t, err)
	return doc
}

var errNavigationTimeout = errors.New("navigation timeout")

type recordedSleeps struct {
	durations []time.Duration
}

func newTestAdapter(t *testing.T, b *fixtureBrowser, now time.Time) (*MercariFetcherAdapter, *recordedSleeps) {
	t.Helper()
	b.t = t
	a, err := NewMercariFetcherAdapter(b, Config{Location: now.Location()})
	require.NoError(t, err)
	sleeps := &recordedSleeps{}
	a.now = func() time.Time { return now }
	a.sleep = func(ctx context.Context, d time.Duration) error {
		sleeps.durations = append(sleeps.durations, d)
		return nil
	}
	return a, sleeps
}
