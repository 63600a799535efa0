package contracts

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/require"

	"github.com/kuroweb/crawlflare/schemas"
)

func TestKeyFromPath(t *testing.T) {
	tests := map[string]string{
		"events/list-crawl/v1.json":        "ListCrawlEvent/1.0.0",
		"events/detail-crawl/v2.json":      "DetailCrawlEvent/2.0.0",
		"events/price-drop-alert/v1.json":  "PriceDropAlertEvent/1.0.0",
		"events/list-crawl.json":           "",
		"events/list-crawl/nested/v1.json": "",
		"events/list-crawl/latest.json":    "",
	}
	for path, want := range tests {
		require.Equal(t, want, keyFromPath(path), path)
	}
}

func TestEmbeddedSchemas(t *testing.T) {
	v, err := NewValidator(schemas.SchemasFS)
	require.NoError(t, err)
	require.Equal(t, []string{"DetailCrawlEvent/1.0.0", "ListCrawlEvent/1.0.0"}, v.Keys())

	tests := []struct {
		name    string
		event   string
		body    string
		wantErr bool
	}{
		{name: "list ok", event: ListCrawlEvent, body: `{"productId": 12}`},
		{name: "list extra fields allowed", event: ListCrawlEvent, body: `{"productId": 12, "source": "cron"}`},
		{name: "list missing id", event: ListCrawlEvent, body: `{}`, wantErr: true},
		{name: "list id as string", event: ListCrawlEvent, body: `{"productId": "12"}`, wantErr: true},
		{name: "list id zero", event: ListCrawlEvent, body: `{"productId": 0}`, wantErr: true},
		{name: "detail ok", event: DetailCrawlEvent, body: `{"mercariCrawlResultId": 7}`},
		{name: "detail fractional id", event: DetailCrawlEvent, body: `{"mercariCrawlResultId": 7.5}`, wantErr: true},
		{name: "not json", event: DetailCrawlEvent, body: `mercariCrawlResultId=7`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.event, VersionV1, []byte(tt.body))
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
		})
	}

	require.Error(t, v.Validate(ListCrawlEvent, "2.0.0", []byte(`{"productId": 1}`)))
}

func TestNewValidatorRejectsBadLayout(t *testing.T) {
	fsys := fstest.MapFS{
		"events/list-crawl.json": {Data: []byte(`{"type": "object"}`)},
	}
	_, err := NewValidator(fsys)
	require.Error(t, err)

	fsys = fstest.MapFS{
		"events/broken/v1.json": {Data: []byte(`{"type": 12}`)},
	}
	_, err = NewValidator(fsys)
	require.Error(t, err)
}
