package browser

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kuroweb/crawlflare/internal/core/port"
)

func newFixtureServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/item/ok", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, `<html><body><h1 class="heading page">Camera</h1></body></html>`)
	})
	mux.HandleFunc("/item/gone", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `<html><body><div class="merEmptyState">removed</div></body></html>`)
	})
	mux.HandleFunc("/item/broken", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestCollyBrowserNavigate(t *testing.T) {
	srv := newFixtureServer(t)
	b, err := NewCollyBrowser(CollyConfig{})
	require.NoError(t, err)

	session, err := b.NewSession(context.Background())
	require.NoError(t, err)
	defer session.Close()

	page, err := session.Navigate(context.Background(), srv.URL+"/item/ok")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, page.StatusCode())
	title, ok := page.Find(port.CSS("[class*='heading'][class*='page']"))
	require.True(t, ok)
	require.Equal(t, "Camera", title.Text())

	// revisiting the same url must work within one session
	_, err = session.Navigate(context.Background(), srv.URL+"/item/ok")
	require.NoError(t, err)
}

func TestCollyBrowserRemovedListingIsAPage(t *testing.T) {
	srv := newFixtureServer(t)
	b, err := NewCollyBrowser(CollyConfig{})
	require.NoError(t, err)
	session, _ := b.NewSession(context.Background())

	page, err := session.Navigate(context.Background(), srv.URL+"/item/gone")
	require.NoError(t, err)
	require.Equal(t, http.StatusNotFound, page.StatusCode())
	_, ok := page.Find(port.CSS(".merEmptyState"))
	require.True(t, ok)
}

func TestCollyBrowserFailures(t *testing.T) {
	srv := newFixtureServer(t)
	b, err := NewCollyBrowser(CollyConfig{})
	require.NoError(t, err)
	session, _ := b.NewSession(context.Background())

	_, err = session.Navigate(context.Background(), srv.URL+"/item/broken")
	require.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = session.Navigate(ctx, srv.URL+"/item/ok")
	require.ErrorIs(t, err, context.Canceled)
}
