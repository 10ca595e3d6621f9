package polymarket

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/Rickkless-King/Fingent/internal/domain"
)

const defaultClobHost = "https://clob.polymarket.com"

// ClobClient fetches orderbooks from the CLOB REST API. It is read-only and
// needs no credentials.
type ClobClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClobClient returns a CLOB client. An empty host falls back to the
// public endpoint.
func NewClobClient(host string, timeout time.Duration, logger *slog.Logger) *ClobClient {
	if host == "" {
		host = defaultClobHost
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ClobClient{
		baseURL:    host,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.With(slog.String("component", "clob_client")),
	}
}

// GetOrderbook fetches the current book for one token.
func (c *ClobClient) GetOrderbook(ctx context.Context, tokenID string) (APIBook, error) {
	params := url.Values{}
	params.Set("token_id", tokenID)

	u := c.baseURL + "/book?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return APIBook{}, fmt.Errorf("polymarket/clob: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return APIBook{}, fmt.Errorf("polymarket/clob: /book: %w", err)
	}
	defer resp.Body.Close()

	if err := checkHTTPStatus(resp); err != nil {
		return APIBook{}, fmt.Errorf("polymarket/clob: /book: %w", err)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return APIBook{}, fmt.Errorf("polymarket/clob: read body: %w", err)
	}
	var book APIBook
	if err := json.Unmarshal(body, &book); err != nil {
		return APIBook{}, fmt.Errorf("polymarket/clob: decode book: %w", err)
	}
	return book, nil
}

// QuoteFromBook derives a Quote from the book's top of both sides. It returns
// domain.ErrNoQuote when either side is empty or the mid is not positive.
func QuoteFromBook(market domain.Market, book APIBook, now time.Time) (domain.Quote, error) {
	bidPx, bidSz, bidOK := book.BestBid()
	askPx, askSz, askOK := book.BestAsk()
	if !bidOK || !askOK {
		return domain.Quote{}, domain.ErrNoQuote
	}

	mid := (bidPx + askPx) / 2
	if mid <= 0 {
		return domain.Quote{}, domain.ErrNoQuote
	}

	return domain.Quote{
		MarketID:  market.ID,
		Mid:       mid,
		SpreadBps: (askPx - bidPx) / mid * 10_000,
		DepthBid:  bidPx * bidSz,
		DepthAsk:  askPx * askSz,
		Volume24h: market.Volume24h,
		Timestamp: now,
	}, nil
}
