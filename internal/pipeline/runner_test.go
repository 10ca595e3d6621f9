package pipeline

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rickkless-King/Fingent/internal/arb"
	"github.com/Rickkless-King/Fingent/internal/config"
	"github.com/Rickkless-King/Fingent/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type memProvider struct {
	events map[string][]domain.Market
	quotes map[string]domain.Quote
}

func (p *memProvider) GetMarketsForArb(_ context.Context, _ []string, _ float64, _ int) (map[string][]domain.Market, error) {
	return p.events, nil
}

func (p *memProvider) GetQuote(_ context.Context, m domain.Market) (domain.Quote, error) {
	q, ok := p.quotes[m.ID]
	if !ok {
		return domain.Quote{}, domain.ErrNoQuote
	}
	return q, nil
}

func (p *memProvider) GetQuotesBatch(ctx context.Context, markets []domain.Market) (map[string]domain.Quote, error) {
	out := make(map[string]domain.Quote)
	for _, m := range markets {
		if q, err := p.GetQuote(ctx, m); err == nil {
			out[m.ID] = q
		}
	}
	return out, nil
}

type memRunStore struct {
	mu   sync.Mutex
	runs []domain.PipelineResult
}

func (s *memRunStore) InsertRun(_ context.Context, result domain.PipelineResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs = append(s.runs, result)
	return nil
}

func (s *memRunStore) ListRecentRuns(_ context.Context, _ int) ([]domain.PipelineResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.PipelineResult(nil), s.runs...), nil
}

type memSnapshotCache struct {
	mu    sync.Mutex
	snaps map[string]domain.Snapshot
}

func newMemSnapshotCache() *memSnapshotCache {
	return &memSnapshotCache{snaps: make(map[string]domain.Snapshot)}
}

func (c *memSnapshotCache) Set(_ context.Context, snap domain.Snapshot) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snaps[snap.MarketID] = snap
	return nil
}

func (c *memSnapshotCache) Get(_ context.Context, marketID string) (domain.Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	snap, ok := c.snaps[marketID]
	if !ok {
		return domain.Snapshot{}, domain.ErrNotFound
	}
	return snap, nil
}

func (c *memSnapshotCache) All(_ context.Context) (map[string]domain.Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]domain.Snapshot, len(c.snaps))
	for k, v := range c.snaps {
		out[k] = v
	}
	return out, nil
}

func (c *memSnapshotCache) Delete(_ context.Context, marketID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.snaps, marketID)
	return nil
}

type heldLock struct{}

func (heldLock) Acquire(context.Context, string, time.Duration) (func(), error) {
	return nil, domain.ErrLockHeld
}

func testEngine(p domain.MarketDataProvider) *arb.Engine {
	cfg := config.Defaults().Arb
	cfg.TermStructure.MinVolume24h = 0
	cfg.TermStructure.MinMarketsPerEvent = 2
	return arb.NewEngine(cfg, p, nil, testLogger())
}

func testMarkets() (*memProvider, map[string]domain.Snapshot) {
	now := time.Now().UTC()
	provider := &memProvider{
		events: map[string][]domain.Market{
			"evt-1": {
				{ID: "mkt-7d", EventID: "evt-1", TenorDays: 7, Active: true, Volume24h: 20_000},
				{ID: "mkt-30d", EventID: "evt-1", TenorDays: 30, Active: true, Volume24h: 20_000},
			},
		},
		quotes: map[string]domain.Quote{
			"mkt-7d":  {MarketID: "mkt-7d", Mid: 0.70, SpreadBps: 50, DepthBid: 3_000, DepthAsk: 3_000, Volume24h: 20_000, Timestamp: now},
			"mkt-30d": {MarketID: "mkt-30d", Mid: 0.52, SpreadBps: 50, DepthBid: 3_000, DepthAsk: 3_000, Volume24h: 20_000, Timestamp: now},
		},
	}
	snaps := map[string]domain.Snapshot{
		"mkt-7d":  {MarketID: "mkt-7d", NewsID: "manual", FirstSeenTS: now.Add(-5 * time.Minute), P0: 0.50},
		"mkt-30d": {MarketID: "mkt-30d", NewsID: "manual", FirstSeenTS: now.Add(-5 * time.Minute), P0: 0.50},
	}
	return provider, snaps
}

func TestRunOncePersistsRun(t *testing.T) {
	provider, snaps := testMarkets()
	engine := testEngine(provider)
	engine.RestoreSnapshots(snaps)

	runs := &memRunStore{}
	r := NewRunner(Config{ScanInterval: time.Minute}, engine, nil, runs, nil, nil, nil, nil, nil, testLogger())

	r.RunOnce(context.Background())

	require.Len(t, runs.runs, 1)
	assert.Equal(t, 1, runs.runs[0].OpportunitiesConfirmed)
	assert.True(t, runs.runs[0].Enabled)
}

func TestRunOnceSkipsWhenLockHeld(t *testing.T) {
	provider, snaps := testMarkets()
	engine := testEngine(provider)
	engine.RestoreSnapshots(snaps)

	runs := &memRunStore{}
	r := NewRunner(Config{ScanInterval: time.Minute}, engine, nil, runs, nil, nil, heldLock{}, nil, nil, testLogger())

	r.RunOnce(context.Background())

	assert.Empty(t, runs.runs)
}

func TestSnapshotMirroringAndRestore(t *testing.T) {
	provider, snaps := testMarkets()
	engine := testEngine(provider)
	engine.RestoreSnapshots(snaps)

	cache := newMemSnapshotCache()
	r := NewRunner(Config{ScanInterval: time.Minute}, engine, nil, nil, cache, nil, nil, nil, nil, testLogger())

	r.RunOnce(context.Background())

	// The cycle mirrors live snapshots into the cache.
	cached, err := cache.All(context.Background())
	require.NoError(t, err)
	assert.Len(t, cached, 2)
	assert.InDelta(t, 0.50, cached["mkt-7d"].P0, 1e-9)

	// A fresh engine restores p0 from the cache before its first cycle.
	engine2 := testEngine(provider)
	r2 := NewRunner(Config{ScanInterval: time.Minute}, engine2, nil, nil, cache, nil, nil, nil, nil, testLogger())
	r2.restoreSnapshots(context.Background())

	restored := engine2.Snapshots()
	require.Len(t, restored, 2)
	assert.InDelta(t, 0.50, restored["mkt-7d"].P0, 1e-9)
}

func TestTriggerIsNonBlocking(t *testing.T) {
	provider, _ := testMarkets()
	r := NewRunner(Config{ScanInterval: time.Minute}, testEngine(provider), nil, nil, nil, nil, nil, nil, nil, testLogger())

	// Repeated triggers must never block even with no consumer.
	for i := 0; i < 5; i++ {
		r.Trigger()
	}
}
