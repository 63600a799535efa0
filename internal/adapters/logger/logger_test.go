package logger_adapter

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kuroweb/crawlflare/internal/core/port"
)

type recordedPost struct {
	tag  string
	data map[string]interface{}
}

type fakePoster struct {
	posts  []recordedPost
	closed bool
}

func (f *fakePoster) Post(tag string, message interface{}) error {
	f.posts = append(f.posts, recordedPost{tag: tag, data: message.(map[string]interface{})})
	return nil
}

func (f *fakePoster) Close() error {
	f.closed = true
	return nil
}

func TestSlogAdapterJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewSlogAdapter(SlogConfig{Writer: &buf, IsJSON: true, Level: slog.LevelDebug})

	logger.WithFields(port.Fields{"use_case": "SyncList"}).
		Error("crawl failed", errors.New("timeout"), port.Fields{"product_id": 7})

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "crawl failed", entry["msg"])
	require.Equal(t, "ERROR", entry["level"])
	require.Equal(t, "SyncList", entry["use_case"])
	require.Equal(t, float64(7), entry["product_id"])
	require.Equal(t, "timeout", entry["error"])
}

func TestSlogAdapterRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewSlogAdapter(SlogConfig{Writer: &buf, Level: slog.LevelWarn})

	logger.Info("hidden", nil)
	logger.Debug("hidden", nil)
	require.Zero(t, buf.Len())

	logger.Warn("shown", port.Fields{"b": 2, "a": 1})
	require.Contains(t, buf.String(), "a=1 b=2")
}

func TestParseLevel(t *testing.T) {
	testCases := []struct {
		in       string
		expected slog.Level
		fails    bool
	}{
		{in: "debug", expected: slog.LevelDebug},
		{in: "", expected: slog.LevelInfo},
		{in: " WARN ", expected: slog.LevelWarn},
		{in: "error", expected: slog.LevelError},
		{in: "trace", expected: slog.LevelInfo, fails: true},
	}
	for _, test := range testCases {
		level, err := ParseLevel(test.in)
		require.Equal(t, test.fails, err != nil, test.in)
		require.Equal(t, test.expected, level)
	}
}

func TestFluentAdapter(t *testing.T) {
	poster := &fakePoster{}
	logger, err := NewFluentLoggerAdapter(poster, slog.LevelInfo)
	require.NoError(t, err)
	logger.now = func() time.Time { return time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC) }

	scoped := logger.WithFields(port.Fields{"trace_id": "t-1"})
	scoped.Debug("dropped", nil)
	scoped.Warn("retrying", port.Fields{"attempt": 2})

	require.Len(t, poster.posts, 1)
	post := poster.posts[0]
	require.Equal(t, "warn", post.tag)
	require.Equal(t, "retrying", post.data["message"])
	require.Equal(t, "t-1", post.data["trace_id"])
	require.Equal(t, 2, post.data["attempt"])
	require.Equal(t, "2024-05-10T00:00:00Z", post.data["timestamp"])

	// scoped fields never leak back into the parent
	logger.Info("plain", nil)
	_, leaked := poster.posts[1].data["trace_id"]
	require.False(t, leaked)

	require.NoError(t, logger.Close())
	require.True(t, poster.closed)
}

func TestNewFluentAdapterRequiresClient(t *testing.T) {
	_, err := NewFluentLoggerAdapter(nil, nil)
	require.Error(t, err)
}

func TestMultiLogger(t *testing.T) {
	var a, b bytes.Buffer
	multi, err := NewMultiLoggerAdapter(
		NewSlogAdapter(SlogConfig{Writer: &a}),
		nil,
		NewSlogAdapter(SlogConfig{Writer: &b}),
	)
	require.NoError(t, err)

	multi.WithFields(port.Fields{"component": "scheduler"}).Info("tick", nil)
	for _, out := range []string{a.String(), b.String()} {
		require.True(t, strings.Contains(out, "component=scheduler"), out)
	}

	_, err = NewMultiLoggerAdapter()
	require.Error(t, err)
}
