// Package finnhub provides a minimal Finnhub market-news client.
package finnhub

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/Rickkless-King/Fingent/internal/config"
	"github.com/Rickkless-King/Fingent/internal/domain"
)

const (
	defaultBaseURL = "https://finnhub.io/api/v1"

	// maxNewsItems caps how many headlines a single poll returns.
	maxNewsItems = 20
)

// apiNewsItem is the Finnhub /news response shape.
type apiNewsItem struct {
	ID       int64  `json:"id"`
	Headline string `json:"headline"`
	Summary  string `json:"summary"`
	URL      string `json:"url"`
	Source   string `json:"source"`
	Datetime int64  `json:"datetime"`
	Category string `json:"category"`
}

// Client implements domain.NewsProvider against the Finnhub REST API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
}

var _ domain.NewsProvider = (*Client)(nil)

// NewClient returns a Finnhub client. apiKey must be non-empty for requests
// to succeed.
func NewClient(cfg config.FinnhubConfig, apiKey string, logger *slog.Logger) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	timeout := cfg.RequestTimeout.Duration
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.With(slog.String("component", "finnhub_client")),
	}
}

// GetMarketNews fetches the latest headlines for a category, newest first,
// capped at 20 items.
func (c *Client) GetMarketNews(ctx context.Context, category string) ([]domain.NewsItem, error) {
	if category == "" {
		category = "general"
	}

	params := url.Values{}
	params.Set("category", category)
	params.Set("token", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/news?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("finnhub: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("finnhub: /news: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("finnhub: /news: %w", domain.ErrRateLimited)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, fmt.Errorf("finnhub: /news: unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("finnhub: read body: %w", err)
	}
	var raw []apiNewsItem
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("finnhub: decode news: %w", err)
	}

	if len(raw) > maxNewsItems {
		raw = raw[:maxNewsItems]
	}
	items := make([]domain.NewsItem, 0, len(raw))
	for _, n := range raw {
		items = append(items, domain.NewsItem{
			ID:          strconv.FormatInt(n.ID, 10),
			Title:       n.Headline,
			Summary:     n.Summary,
			URL:         n.URL,
			Source:      n.Source,
			PublishedAt: time.Unix(n.Datetime, 0).UTC(),
		})
	}

	c.logger.DebugContext(ctx, "fetched market news",
		slog.String("category", category),
		slog.Int("items", len(items)))
	return items, nil
}
