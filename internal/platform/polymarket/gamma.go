// Package polymarket provides read-only clients for the Polymarket Gamma
// and CLOB APIs plus a market data provider built on top of them.
package polymarket

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

	"github.com/Rickkless-King/Fingent/internal/domain"
)

const defaultGammaHost = "https://gamma-api.polymarket.com"

// GammaClient fetches market metadata from the Gamma REST API.
type GammaClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewGammaClient returns a Gamma client. An empty host falls back to the
// public endpoint.
func NewGammaClient(host string, timeout time.Duration, logger *slog.Logger) *GammaClient {
	if host == "" {
		host = defaultGammaHost
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &GammaClient{
		baseURL:    host,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.With(slog.String("component", "gamma_client")),
	}
}

// ListActiveMarkets fetches up to limit active markets.
func (c *GammaClient) ListActiveMarkets(ctx context.Context, limit int) ([]APIMarket, error) {
	params := url.Values{}
	params.Set("limit", strconv.Itoa(limit))
	params.Set("active", "true")

	var markets []APIMarket
	if err := c.doGet(ctx, "/markets", params, &markets); err != nil {
		return nil, err
	}
	return markets, nil
}

func (c *GammaClient) doGet(ctx context.Context, path string, params url.Values, out any) error {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("polymarket/gamma: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("polymarket/gamma: %s: %w", path, err)
	}
	defer resp.Body.Close()

	if err := checkHTTPStatus(resp); err != nil {
		return fmt.Errorf("polymarket/gamma: %s: %w", path, err)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("polymarket/gamma: read body: %w", err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("polymarket/gamma: decode %s: %w", path, err)
	}
	return nil
}

// checkHTTPStatus maps non-2xx responses to domain errors where one fits.
func checkHTTPStatus(resp *http.Response) error {
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusNotFound:
		return domain.ErrNotFound
	case resp.StatusCode == http.StatusTooManyRequests:
		return domain.ErrRateLimited
	default:
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
}
