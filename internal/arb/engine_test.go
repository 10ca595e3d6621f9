package arb

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rickkless-King/Fingent/internal/config"
	"github.com/Rickkless-King/Fingent/internal/domain"
)

func testArbConfig() config.ArbConfig {
	return config.ArbConfig{
		Enabled:         true,
		TriggerKeywords: []string{`\bfed\b`, `rate (hike|cut)`},
		TermStructure:   defaultTermStructureConfig(),
		Risk:            defaultRiskConfig(),
	}
}

func TestCheckNewsTrigger(t *testing.T) {
	e := NewEngine(testArbConfig(), &fakeProvider{}, nil, testLogger())

	cases := []struct {
		name     string
		headline string
		summary  string
		want     []string
	}{
		{"headline match", "Fed signals pause", "", []string{"Fed"}},
		{"summary match", "Markets rally", "analysts expect a rate hike soon", []string{"rate hike"}},
		{"case insensitive", "FED SHOCKS MARKETS", "", []string{"FED"}},
		{"word boundary respected", "federal budget talks", "", nil},
		{"no match", "Sports roundup", "football results", nil},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := e.CheckNewsTrigger(tc.headline, tc.summary)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestNewEngineSkipsInvalidPatterns(t *testing.T) {
	cfg := testArbConfig()
	cfg.TriggerKeywords = []string{`\bfed\b`, `([unclosed`}

	e := NewEngine(cfg, &fakeProvider{}, nil, testLogger())

	assert.Len(t, e.patterns, 1)
	assert.Equal(t, []string{"fed"}, e.CheckNewsTrigger("fed decision today", ""))
}

func TestRunScanEndToEnd(t *testing.T) {
	markets, quotes, _ := twoTenorEvent()
	provider := &fakeProvider{
		events: map[string][]domain.Market{"evt-1": markets},
		quotes: quotes,
	}
	e := NewEngine(testArbConfig(), provider, nil, testLogger())

	// Snapshots are created from the same quotes the detection pass sees, so
	// a first scan observes no movement.
	first, err := e.RunScan(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Empty(t, first)

	// Short leg rallies before the second scan.
	q := provider.quotes["mkt-7d"]
	q.Mid = 0.70
	provider.quotes["mkt-7d"] = q

	second, err := e.RunScan(context.Background(), nil, nil)
	require.NoError(t, err)
	require.Len(t, second, 1)

	opp := second[0]
	assert.Equal(t, domain.StatusConfirmed, opp.Status)
	assert.Equal(t, "evt-1", opp.EventID)
	assert.InDelta(t, 0.10, opp.DeltaDiff, 1e-9)

	logged := e.Opportunities()
	require.Len(t, logged, 1)
	assert.Equal(t, opp.ID, logged[0].ID)
}

func TestRunScanDisabled(t *testing.T) {
	cfg := testArbConfig()
	cfg.Enabled = false
	e := NewEngine(cfg, &fakeProvider{}, nil, testLogger())

	opps, err := e.RunScan(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Empty(t, opps)
}

func TestRunScanProviderError(t *testing.T) {
	provider := &fakeProvider{marketsErr: errors.New("gamma: 503")}
	e := NewEngine(testArbConfig(), provider, nil, testLogger())

	_, err := e.RunScan(context.Background(), nil, nil)
	assert.Error(t, err)
}

func TestProcessNewsUnmatchedHeadline(t *testing.T) {
	markets, quotes, _ := twoTenorEvent()
	provider := &fakeProvider{
		events: map[string][]domain.Market{"evt-1": markets},
		quotes: quotes,
	}
	e := NewEngine(testArbConfig(), provider, nil, testLogger())

	opps, err := e.ProcessNews(context.Background(), "Local sports results", "", "news-1")
	require.NoError(t, err)
	assert.Empty(t, opps)
	// An unmatched headline never reaches the provider.
	assert.Equal(t, 0, provider.quoteCalls)
}

func TestRunFullPipelineDisabled(t *testing.T) {
	cfg := testArbConfig()
	cfg.Enabled = false
	e := NewEngine(cfg, &fakeProvider{}, &fakeNews{}, testLogger())

	result := e.RunFullPipeline(context.Background(), true, "general")

	assert.False(t, result.Enabled)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "disabled")
	assert.Empty(t, result.Opportunities)
}

func TestRunFullPipelineNewsError(t *testing.T) {
	e := NewEngine(testArbConfig(), &fakeProvider{}, &fakeNews{err: errors.New("finnhub: 429")}, testLogger())

	result := e.RunFullPipeline(context.Background(), true, "general")

	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "fetch news")
	assert.Zero(t, result.NewsScanned)
}

func TestRunFullPipelineCountsTriggers(t *testing.T) {
	markets, quotes, _ := twoTenorEvent()
	provider := &fakeProvider{
		events: map[string][]domain.Market{"evt-1": markets},
		quotes: quotes,
	}
	news := &fakeNews{items: []domain.NewsItem{
		{Title: "Fed signals pause", Summary: "", URL: "https://example.com/1"},
		{Title: "Sports roundup", Summary: ""},
		{Title: "Analysts expect rate cut", URL: "https://example.com/2"},
	}}
	e := NewEngine(testArbConfig(), provider, news, testLogger())

	result := e.RunFullPipeline(context.Background(), true, "general")

	assert.Equal(t, 3, result.NewsScanned)
	assert.Equal(t, 2, result.NewsTriggered)
	assert.Empty(t, result.Errors)
	// First scans snapshot at current prices, so nothing confirms here.
	assert.Equal(t, 0, result.OpportunitiesConfirmed)
}

func TestRunFullPipelineManualScan(t *testing.T) {
	markets, quotes, _ := twoTenorEvent()
	provider := &fakeProvider{
		events: map[string][]domain.Market{"evt-1": markets},
		quotes: quotes,
	}
	e := NewEngine(testArbConfig(), provider, nil, testLogger())

	// Seed snapshots at the reference prices, then move the short leg.
	e.RestoreSnapshots(map[string]domain.Snapshot{})
	_, err := e.RunScan(context.Background(), nil, nil)
	require.NoError(t, err)

	q := provider.quotes["mkt-7d"]
	q.Mid = 0.70
	provider.quotes["mkt-7d"] = q

	result := e.RunFullPipeline(context.Background(), false, "")

	assert.True(t, result.Enabled)
	assert.Equal(t, 1, result.EventsFound)
	assert.Equal(t, 1, result.OpportunitiesRaw)
	assert.Equal(t, 1, result.OpportunitiesConfirmed)
	require.Len(t, result.Opportunities, 1)
	assert.Equal(t, domain.StatusConfirmed, result.Opportunities[0].Status)
}

func TestClearSnapshotsThroughEngine(t *testing.T) {
	markets, quotes, _ := twoTenorEvent()
	provider := &fakeProvider{
		events: map[string][]domain.Market{"evt-1": markets},
		quotes: quotes,
	}
	e := NewEngine(testArbConfig(), provider, nil, testLogger())

	_, err := e.RunScan(context.Background(), nil, nil)
	require.NoError(t, err)
	require.Len(t, e.Snapshots(), 2)

	// Fresh snapshots survive an age-based clear.
	assert.Equal(t, 0, e.ClearSnapshots(1))
	assert.Len(t, e.Snapshots(), 2)
}
