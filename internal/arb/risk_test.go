package arb

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rickkless-King/Fingent/internal/domain"
)

func candidateOpportunity() (domain.Opportunity, map[string]domain.Quote, map[string]domain.Market) {
	markets, quotes, _ := twoTenorEvent()
	marketsByID := map[string]domain.Market{
		markets[0].ID: markets[0],
		markets[1].ID: markets[1],
	}
	opp := domain.Opportunity{
		ID:      "opp-1",
		EventID: "evt-1",
		Type:    domain.TypeTermStructure,
		Legs: []domain.OpportunityLeg{
			{MarketID: "mkt-7d", TenorDays: 7, Side: domain.ShortLeg},
			{MarketID: "mkt-30d", TenorDays: 30, Side: domain.LongLeg},
		},
		DeltaDiff:  0.08,
		Edge:       0.075,
		Confidence: 0.8,
		Status:     domain.StatusCandidate,
	}
	return opp, quotes, marketsByID
}

func TestFilterCleanPass(t *testing.T) {
	rm := NewRiskManager(defaultRiskConfig(), testLogger())
	opp, quotes, markets := candidateOpportunity()

	got := rm.Filter(opp, quotes, markets)

	assert.Equal(t, domain.StatusCandidate, got.Status)
	assert.Empty(t, got.RiskFlags)
	assert.Greater(t, rm.CooldownRemaining("evt-1"), time.Duration(0))
}

func TestFilterLowVolume(t *testing.T) {
	rm := NewRiskManager(defaultRiskConfig(), testLogger())
	opp, quotes, markets := candidateOpportunity()

	q := quotes["mkt-7d"]
	q.Volume24h = 1_000
	quotes["mkt-7d"] = q

	got := rm.Filter(opp, quotes, markets)

	assert.Equal(t, domain.StatusFiltered, got.Status)
	assert.Contains(t, got.RiskFlags, "LOW_VOLUME:mkt-7d:1000")
	// A hard fail must not arm the cooldown.
	assert.Equal(t, time.Duration(0), rm.CooldownRemaining("evt-1"))
}

func TestFilterHardFailDominates(t *testing.T) {
	rm := NewRiskManager(defaultRiskConfig(), testLogger())
	opp, quotes, markets := candidateOpportunity()

	// High edge and confidence do not rescue a failing leg.
	opp.Edge = 0.5
	opp.Confidence = 1.0
	q := quotes["mkt-30d"]
	q.Volume24h = 10
	quotes["mkt-30d"] = q

	got := rm.Filter(opp, quotes, markets)
	assert.Equal(t, domain.StatusFiltered, got.Status)
}

func TestFilterWideSpread(t *testing.T) {
	rm := NewRiskManager(defaultRiskConfig(), testLogger())
	opp, quotes, markets := candidateOpportunity()

	q := quotes["mkt-7d"]
	q.SpreadBps = 250
	quotes["mkt-7d"] = q

	got := rm.Filter(opp, quotes, markets)

	assert.Equal(t, domain.StatusFiltered, got.Status)
	assert.Contains(t, got.RiskFlags, "WIDE_SPREAD:mkt-7d:250bps")
}

func TestFilterLowDepthIsSoft(t *testing.T) {
	rm := NewRiskManager(defaultRiskConfig(), testLogger())
	opp, quotes, markets := candidateOpportunity()

	q := quotes["mkt-30d"]
	q.DepthAsk = 400
	quotes["mkt-30d"] = q

	got := rm.Filter(opp, quotes, markets)

	assert.Equal(t, domain.StatusCandidate, got.Status)
	assert.Contains(t, got.RiskFlags, "LOW_DEPTH:mkt-30d:400")
}

func TestFilterMissingQuote(t *testing.T) {
	rm := NewRiskManager(defaultRiskConfig(), testLogger())
	opp, quotes, markets := candidateOpportunity()
	delete(quotes, "mkt-30d")

	got := rm.Filter(opp, quotes, markets)

	assert.Equal(t, domain.StatusFiltered, got.Status)
	assert.Contains(t, got.RiskFlags, "MISSING_QUOTE:mkt-30d")
}

func TestFilterTooCloseToSettle(t *testing.T) {
	rm := NewRiskManager(defaultRiskConfig(), testLogger())
	opp, quotes, markets := candidateOpportunity()

	// 0.1 days = 2.4h, under the 12h minimum.
	m := markets["mkt-7d"]
	m.TenorDays = 0.1
	markets["mkt-7d"] = m
	opp.Legs[0].TenorDays = 0.1

	got := rm.Filter(opp, quotes, markets)

	assert.Equal(t, domain.StatusFiltered, got.Status)
	assert.Contains(t, got.RiskFlags, "TOO_CLOSE_TO_SETTLE:mkt-7d:0.1d")
}

func TestFilterTenorCheckSkippedWithoutMarkets(t *testing.T) {
	rm := NewRiskManager(defaultRiskConfig(), testLogger())
	opp, quotes, _ := candidateOpportunity()
	opp.Legs[0].TenorDays = 0.1

	got := rm.Filter(opp, quotes, nil)
	assert.Equal(t, domain.StatusCandidate, got.Status)
}

func TestFilterCooldown(t *testing.T) {
	rm := NewRiskManager(defaultRiskConfig(), testLogger())

	base := time.Now().UTC()
	rm.now = func() time.Time { return base }

	opp, quotes, markets := candidateOpportunity()
	first := rm.Filter(opp, quotes, markets)
	require.Equal(t, domain.StatusCandidate, first.Status)

	// Second pass 10 minutes later, inside the 900s window.
	rm.now = func() time.Time { return base.Add(10 * time.Minute) }
	second := rm.Filter(opp, quotes, markets)

	assert.Equal(t, domain.StatusFiltered, second.Status)
	require.Len(t, second.RiskFlags, 1)
	assert.Equal(t, fmt.Sprintf("COOLDOWN:evt-1:%ds", 300), second.RiskFlags[0])
	assert.Equal(t, 5*time.Minute, rm.CooldownRemaining("evt-1"))

	// After the window passes, the event may alert again.
	rm.now = func() time.Time { return base.Add(16 * time.Minute) }
	third := rm.Filter(opp, quotes, markets)
	assert.Equal(t, domain.StatusCandidate, third.Status)
}

func TestResetCooldown(t *testing.T) {
	rm := NewRiskManager(defaultRiskConfig(), testLogger())
	opp, quotes, markets := candidateOpportunity()

	first := rm.Filter(opp, quotes, markets)
	require.Equal(t, domain.StatusCandidate, first.Status)
	require.Greater(t, rm.CooldownRemaining("evt-1"), time.Duration(0))

	rm.ResetCooldown("evt-1")
	assert.Equal(t, time.Duration(0), rm.CooldownRemaining("evt-1"))

	second := rm.Filter(opp, quotes, markets)
	assert.Equal(t, domain.StatusCandidate, second.Status)
}
