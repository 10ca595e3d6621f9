package arb

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rickkless-King/Fingent/internal/domain"
)

func TestEvaluateDivergentLegs(t *testing.T) {
	s := NewTermStructureStrategy(defaultTermStructureConfig(), testLogger())
	markets, quotes, snapshots := twoTenorEvent()

	opp, ok := s.Evaluate("evt-1", markets, quotes, snapshots, nil)
	require.True(t, ok)

	assert.Equal(t, domain.StatusCandidate, opp.Status)
	assert.Equal(t, domain.TypeTermStructure, opp.Type)
	assert.Equal(t, "evt-1", opp.EventID)
	assert.NotEmpty(t, opp.ID)
	require.Len(t, opp.Legs, 2)

	short := opp.Short()
	long := opp.Long()
	assert.Equal(t, "mkt-7d", short.MarketID)
	assert.Equal(t, "mkt-30d", long.MarketID)
	assert.InDelta(t, 0.10, short.Delta, 1e-9)
	assert.InDelta(t, 0.02, long.Delta, 1e-9)

	// delta_diff = |0.10 - 0.02| = 0.08; cost = 50bps/10000 = 0.005.
	assert.InDelta(t, 0.08, opp.DeltaDiff, 1e-9)
	assert.InDelta(t, 0.005, opp.Evidence.EstimatedCost, 1e-9)
	assert.InDelta(t, 0.075, opp.Edge, 1e-9)
}

func TestEvaluateBelowThreshold(t *testing.T) {
	s := NewTermStructureStrategy(defaultTermStructureConfig(), testLogger())
	markets, quotes, snapshots := twoTenorEvent()

	// Legs move together: both up 0.04, delta_diff = 0 < 0.05.
	q := quotes["mkt-7d"]
	q.Mid = 0.54
	quotes["mkt-7d"] = q
	q = quotes["mkt-30d"]
	q.Mid = 0.54
	quotes["mkt-30d"] = q

	_, ok := s.Evaluate("evt-1", markets, quotes, snapshots, nil)
	assert.False(t, ok)
}

func TestEvaluateEdgeAlwaysPositive(t *testing.T) {
	s := NewTermStructureStrategy(defaultTermStructureConfig(), testLogger())
	markets, quotes, snapshots := twoTenorEvent()

	// Spreads so wide the cost swallows the divergence: avg 900bps = 0.09,
	// delta_diff = 0.08, edge < 0.
	for id, q := range quotes {
		q.SpreadBps = 900
		quotes[id] = q
	}

	_, ok := s.Evaluate("evt-1", markets, quotes, snapshots, nil)
	assert.False(t, ok)
}

func TestEvaluateThinDepthDoublesCost(t *testing.T) {
	s := NewTermStructureStrategy(defaultTermStructureConfig(), testLogger())
	markets, quotes, snapshots := twoTenorEvent()

	// One leg's ask depth under the $500 floor doubles the cost estimate.
	q := quotes["mkt-30d"]
	q.DepthAsk = 300
	quotes["mkt-30d"] = q

	opp, ok := s.Evaluate("evt-1", markets, quotes, snapshots, nil)
	require.True(t, ok)
	assert.InDelta(t, 0.010, opp.Evidence.EstimatedCost, 1e-9)
	assert.InDelta(t, 0.070, opp.Edge, 1e-9)
}

func TestEvaluateConfidenceBounds(t *testing.T) {
	s := NewTermStructureStrategy(defaultTermStructureConfig(), testLogger())

	cases := []struct {
		name           string
		volume         float64
		depthBid       float64
		spreadBps      float64
		wantConfidence float64
	}{
		{"saturated liquidity", 50_000, 10_000, 0, 1.0},
		{"zero liquidity", 0, 0, 50, (0 + 0 + (1 - 50.0/300)) / 3},
		{"mixed", 5_000, 1_000, 150, (0.5 + 0.5 + 0.5) / 3},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			markets, quotes, snapshots := twoTenorEvent()
			for id, q := range quotes {
				q.Volume24h = tc.volume
				q.DepthBid = tc.depthBid
				q.SpreadBps = tc.spreadBps
				quotes[id] = q
			}

			opp, ok := s.Evaluate("evt-1", markets, quotes, snapshots, nil)
			require.True(t, ok)
			assert.GreaterOrEqual(t, opp.Confidence, 0.0)
			assert.LessOrEqual(t, opp.Confidence, 1.0)
			assert.InDelta(t, tc.wantConfidence, opp.Confidence, 1e-9)
		})
	}
}

func TestEvaluateStaleTrigger(t *testing.T) {
	s := NewTermStructureStrategy(defaultTermStructureConfig(), testLogger())
	markets, quotes, snapshots := twoTenorEvent()

	stale := time.Now().UTC().Add(-2 * time.Hour)
	_, ok := s.Evaluate("evt-1", markets, quotes, snapshots, &stale)
	assert.False(t, ok)
}

func TestEvaluateStaleSnapshotFallback(t *testing.T) {
	s := NewTermStructureStrategy(defaultTermStructureConfig(), testLogger())
	markets, quotes, snapshots := twoTenorEvent()

	// No trigger timestamp: the short leg's snapshot anchors the window.
	snap := snapshots["mkt-7d"]
	snap.FirstSeenTS = time.Now().UTC().Add(-2 * time.Hour)
	snapshots["mkt-7d"] = snap

	_, ok := s.Evaluate("evt-1", markets, quotes, snapshots, nil)
	assert.False(t, ok)
}

func TestEvaluateRequiresTwoEligibleMarkets(t *testing.T) {
	s := NewTermStructureStrategy(defaultTermStructureConfig(), testLogger())

	t.Run("inactive market excluded", func(t *testing.T) {
		markets, quotes, snapshots := twoTenorEvent()
		markets[1].Active = false
		_, ok := s.Evaluate("evt-1", markets, quotes, snapshots, nil)
		assert.False(t, ok)
	})

	t.Run("missing quote excluded", func(t *testing.T) {
		markets, quotes, snapshots := twoTenorEvent()
		delete(quotes, "mkt-30d")
		_, ok := s.Evaluate("evt-1", markets, quotes, snapshots, nil)
		assert.False(t, ok)
	})

	t.Run("missing snapshot excluded", func(t *testing.T) {
		markets, quotes, snapshots := twoTenorEvent()
		delete(snapshots, "mkt-7d")
		_, ok := s.Evaluate("evt-1", markets, quotes, snapshots, nil)
		assert.False(t, ok)
	})
}

func TestEvaluatePicksTenorExtremes(t *testing.T) {
	s := NewTermStructureStrategy(defaultTermStructureConfig(), testLogger())
	markets, quotes, snapshots := twoTenorEvent()

	// A middle tenor that diverges hardest must still be ignored: only the
	// extremes are compared.
	now := time.Now().UTC()
	markets = append(markets, domain.Market{
		ID: "mkt-14d", EventID: "evt-1", Question: "Will X happen in two weeks?", TenorDays: 14, Active: true,
	})
	quotes["mkt-14d"] = domain.Quote{
		MarketID: "mkt-14d", Mid: 0.90, SpreadBps: 50,
		DepthBid: 3_000, DepthAsk: 3_000, Volume24h: 20_000, Timestamp: now,
	}
	snapshots["mkt-14d"] = domain.Snapshot{
		MarketID: "mkt-14d", NewsID: "manual", FirstSeenTS: now.Add(-5 * time.Minute), P0: 0.50,
	}

	opp, ok := s.Evaluate("evt-1", markets, quotes, snapshots, nil)
	require.True(t, ok)
	assert.Equal(t, "mkt-7d", opp.Short().MarketID)
	assert.Equal(t, "mkt-30d", opp.Long().MarketID)
}

func TestEvaluateTruncatesToShortestTenors(t *testing.T) {
	cfg := defaultTermStructureConfig()
	cfg.MaxMarketsPerEvent = 2
	s := NewTermStructureStrategy(cfg, testLogger())

	markets, quotes, snapshots := twoTenorEvent()
	now := time.Now().UTC()
	markets = append(markets, domain.Market{
		ID: "mkt-90d", EventID: "evt-1", Question: "Will X happen this quarter?", TenorDays: 90, Active: true,
	})
	quotes["mkt-90d"] = domain.Quote{
		MarketID: "mkt-90d", Mid: 0.50, SpreadBps: 50,
		DepthBid: 3_000, DepthAsk: 3_000, Volume24h: 20_000, Timestamp: now,
	}
	snapshots["mkt-90d"] = domain.Snapshot{
		MarketID: "mkt-90d", NewsID: "manual", FirstSeenTS: now.Add(-5 * time.Minute), P0: 0.50,
	}

	// With max_markets_per_event = 2 the 90d market is dropped and the long
	// leg is the 30d market.
	opp, ok := s.Evaluate("evt-1", markets, quotes, snapshots, nil)
	require.True(t, ok)
	assert.Equal(t, "mkt-30d", opp.Long().MarketID)
}
