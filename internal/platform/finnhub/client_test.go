package finnhub

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rickkless-King/Fingent/internal/config"
	"github.com/Rickkless-King/Fingent/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestClient(url string) *Client {
	return NewClient(config.FinnhubConfig{BaseURL: url}, "test-key", testLogger())
}

func TestGetMarketNews(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/news", r.URL.Path)
		require.Equal(t, "general", r.URL.Query().Get("category"))
		require.Equal(t, "test-key", r.URL.Query().Get("token"))

		items := []apiNewsItem{
			{ID: 1, Headline: "Fed signals pause", Summary: "Rates unchanged", URL: "https://example.com/1", Source: "Reuters", Datetime: 1_756_000_000},
			{ID: 2, Headline: "Markets rally", URL: "https://example.com/2", Source: "AP", Datetime: 1_756_000_100},
		}
		require.NoError(t, json.NewEncoder(w).Encode(items))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	items, err := c.GetMarketNews(context.Background(), "general")
	require.NoError(t, err)

	require.Len(t, items, 2)
	assert.Equal(t, "1", items[0].ID)
	assert.Equal(t, "Fed signals pause", items[0].Title)
	assert.Equal(t, "Rates unchanged", items[0].Summary)
	assert.Equal(t, "Reuters", items[0].Source)
	assert.Equal(t, time.Unix(1_756_000_000, 0).UTC(), items[0].PublishedAt)
}

func TestGetMarketNewsCapsAtTwenty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		items := make([]apiNewsItem, 35)
		for i := range items {
			items[i] = apiNewsItem{ID: int64(i), Headline: "headline"}
		}
		require.NoError(t, json.NewEncoder(w).Encode(items))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	items, err := c.GetMarketNews(context.Background(), "general")
	require.NoError(t, err)
	assert.Len(t, items, 20)
}

func TestGetMarketNewsDefaultsCategory(t *testing.T) {
	var gotCategory string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotCategory = r.URL.Query().Get("category")
		require.NoError(t, json.NewEncoder(w).Encode([]apiNewsItem{}))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	_, err := c.GetMarketNews(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "general", gotCategory)
}

func TestGetMarketNewsRateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	_, err := c.GetMarketNews(context.Background(), "general")
	assert.ErrorIs(t, err, domain.ErrRateLimited)
}
