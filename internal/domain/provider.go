package domain

import "context"

// MarketDataProvider supplies market metadata and point-in-time quotes.
// Implementations own all wire-format concerns; the detection core only ever
// sees these types.
type MarketDataProvider interface {
	// GetMarketsForArb returns active markets grouped by event, keeping only
	// events with at least minMarketsPerEvent markets above minVolume.
	GetMarketsForArb(ctx context.Context, keywords []string, minVolume float64, minMarketsPerEvent int) (map[string][]Market, error)

	// GetQuote fetches the current top-of-book quote for one market.
	// Returns ErrNoQuote when the orderbook is empty or unavailable.
	GetQuote(ctx context.Context, market Market) (Quote, error)

	// GetQuotesBatch fetches quotes for many markets, omitting markets whose
	// quote is unavailable rather than failing the batch.
	GetQuotesBatch(ctx context.Context, markets []Market) (map[string]Quote, error)
}

// NewsProvider supplies recent market headlines for trigger matching.
type NewsProvider interface {
	GetMarketNews(ctx context.Context, category string) ([]NewsItem, error)
}
