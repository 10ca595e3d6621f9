package arb

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/Rickkless-King/Fingent/internal/config"
	"github.com/Rickkless-King/Fingent/internal/domain"
)

// fakeProvider implements domain.MarketDataProvider from fixed maps.
type fakeProvider struct {
	events     map[string][]domain.Market
	quotes     map[string]domain.Quote
	marketsErr error
	quoteCalls int
}

func (f *fakeProvider) GetMarketsForArb(_ context.Context, _ []string, _ float64, _ int) (map[string][]domain.Market, error) {
	if f.marketsErr != nil {
		return nil, f.marketsErr
	}
	return f.events, nil
}

func (f *fakeProvider) GetQuote(_ context.Context, m domain.Market) (domain.Quote, error) {
	f.quoteCalls++
	q, ok := f.quotes[m.ID]
	if !ok {
		return domain.Quote{}, domain.ErrNoQuote
	}
	return q, nil
}

func (f *fakeProvider) GetQuotesBatch(ctx context.Context, markets []domain.Market) (map[string]domain.Quote, error) {
	out := make(map[string]domain.Quote, len(markets))
	for _, m := range markets {
		if q, ok := f.quotes[m.ID]; ok {
			out[m.ID] = q
		}
	}
	return out, nil
}

// fakeNews implements domain.NewsProvider from a fixed slice.
type fakeNews struct {
	items []domain.NewsItem
	err   error
}

func (f *fakeNews) GetMarketNews(_ context.Context, _ string) ([]domain.NewsItem, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.items, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// twoTenorEvent builds the standard two-market fixture: both legs snapshotted
// at p0=0.50, short leg now at 0.60, long leg at 0.52, 50bps spreads and
// healthy liquidity on both.
func twoTenorEvent() ([]domain.Market, map[string]domain.Quote, map[string]domain.Snapshot) {
	markets := []domain.Market{
		{ID: "mkt-7d", EventID: "evt-1", Question: "Will X happen by next week?", TenorDays: 7, Active: true},
		{ID: "mkt-30d", EventID: "evt-1", Question: "Will X happen by next month?", TenorDays: 30, Active: true},
	}

	now := time.Now().UTC()
	quotes := map[string]domain.Quote{
		"mkt-7d": {
			MarketID: "mkt-7d", Mid: 0.60, SpreadBps: 50,
			DepthBid: 3_000, DepthAsk: 3_000, Volume24h: 20_000, Timestamp: now,
		},
		"mkt-30d": {
			MarketID: "mkt-30d", Mid: 0.52, SpreadBps: 50,
			DepthBid: 3_000, DepthAsk: 3_000, Volume24h: 20_000, Timestamp: now,
		},
	}

	snapshots := map[string]domain.Snapshot{
		"mkt-7d":  {MarketID: "mkt-7d", NewsID: "manual", FirstSeenTS: now.Add(-5 * time.Minute), P0: 0.50},
		"mkt-30d": {MarketID: "mkt-30d", NewsID: "manual", FirstSeenTS: now.Add(-5 * time.Minute), P0: 0.50},
	}

	return markets, quotes, snapshots
}

func defaultTermStructureConfig() config.TermStructureConfig {
	return config.TermStructureConfig{
		DeltaThreshold:       0.05,
		TriggerWindowMinutes: 30,
		MaxMarketsPerEvent:   4,
		MinVolume24h:         1_000,
		MinMarketsPerEvent:   2,
		DepthFloorUSD:        500,
		VolumeNormUSD:        10_000,
		DepthNormUSD:         2_000,
		SpreadNormBps:        300,
	}
}

func defaultRiskConfig() config.RiskConfig {
	return config.RiskConfig{
		MinVolume24h:         5_000,
		MaxSpreadBps:         200,
		MinDepthUSD:          1_000,
		MinTimeToSettleHours: 12,
		CooldownSeconds:      900,
	}
}
