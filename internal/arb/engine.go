package arb

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Rickkless-King/Fingent/internal/config"
	"github.com/Rickkless-King/Fingent/internal/domain"
)

// maxScanKeywords bounds how many derived keywords a single market scan
// passes to the provider.
const maxScanKeywords = 20

// Engine orchestrates the detection pipeline: trigger matching, market scan,
// snapshot creation, quote retrieval, strategy evaluation, and risk
// filtering. It owns the snapshot store and the confirmed-opportunity log.
type Engine struct {
	cfg      config.ArbConfig
	provider domain.MarketDataProvider
	news     domain.NewsProvider // may be nil; news entry points then degrade
	strategy *TermStructureStrategy
	risk     *RiskManager
	store    *SnapshotStore

	patterns []*regexp.Regexp

	mu            sync.Mutex
	opportunities []domain.Opportunity

	logger *slog.Logger
}

// NewEngine wires the strategy, risk manager, and snapshot store together.
// Invalid trigger patterns are logged and skipped here so matching never
// fails at scan time.
func NewEngine(
	cfg config.ArbConfig,
	provider domain.MarketDataProvider,
	news domain.NewsProvider,
	logger *slog.Logger,
) *Engine {
	log := logger.With(slog.String("component", "arb_engine"))

	if !cfg.Enabled {
		log.Warn("arbitrage engine is disabled in config")
	}

	patterns := make([]*regexp.Regexp, 0, len(cfg.TriggerKeywords))
	for _, raw := range cfg.TriggerKeywords {
		re, err := regexp.Compile("(?i)" + raw)
		if err != nil {
			log.Warn("invalid trigger pattern",
				slog.String("pattern", raw),
				slog.String("error", err.Error()),
			)
			continue
		}
		patterns = append(patterns, re)
	}

	return &Engine{
		cfg:      cfg,
		provider: provider,
		news:     news,
		strategy: NewTermStructureStrategy(cfg.TermStructure, logger),
		risk:     NewRiskManager(cfg.Risk, logger),
		store:    NewSnapshotStore(provider, logger),
		patterns: patterns,
		logger:   log,
	}
}

// Enabled reports whether the engine will act on scans.
func (e *Engine) Enabled() bool { return e.cfg.Enabled }

// CheckNewsTrigger matches the compiled trigger patterns against the
// headline and summary, returning the matched substrings.
func (e *Engine) CheckNewsTrigger(headline, summary string) []string {
	text := headline + " " + summary
	var matched []string
	for _, re := range e.patterns {
		if m := re.FindString(text); m != "" {
			matched = append(matched, m)
		}
	}
	return matched
}

// ScanMarkets asks the provider for arb-eligible markets grouped by event.
// When keywords is nil, search terms are derived from the trigger patterns.
func (e *Engine) ScanMarkets(ctx context.Context, keywords []string) (map[string][]domain.Market, error) {
	if !e.cfg.Enabled {
		return map[string][]domain.Market{}, nil
	}

	if keywords == nil {
		keywords = e.keywordsFromPatterns()
	}
	keywords = dedupeKeywords(keywords, maxScanKeywords)

	e.logger.InfoContext(ctx, "scanning markets",
		slog.Int("keyword_count", len(keywords)),
	)

	minVolume := e.cfg.TermStructure.MinVolume24h
	minMarkets := e.cfg.TermStructure.MinMarketsPerEvent
	if minMarkets < 2 {
		minMarkets = 2
	}

	events, err := e.provider.GetMarketsForArb(ctx, keywords, minVolume, minMarkets)
	if err != nil {
		return nil, fmt.Errorf("arb: scan markets: %w", err)
	}
	return events, nil
}

// DetectOpportunities runs the strategy per event. Each event needs
// snapshots and at least two current quotes; events failing those
// preconditions are skipped without failing the scan.
func (e *Engine) DetectOpportunities(
	ctx context.Context,
	eventMarkets map[string][]domain.Market,
	triggerTS *time.Time,
) []domain.Opportunity {
	if !e.cfg.Enabled {
		return nil
	}

	var opportunities []domain.Opportunity

	for eventID, markets := range eventMarkets {
		snapshots := e.store.Create(ctx, markets, "manual")

		quotes, err := e.provider.GetQuotesBatch(ctx, markets)
		if err != nil {
			e.logger.WarnContext(ctx, "quote batch failed",
				slog.String("event_id", eventID),
				slog.String("error", err.Error()),
			)
			continue
		}
		if len(quotes) < 2 {
			e.logger.DebugContext(ctx, "not enough quotes",
				slog.String("event_id", eventID),
				slog.Int("count", len(quotes)),
			)
			continue
		}

		if opp, ok := e.strategy.Evaluate(eventID, markets, quotes, snapshots, triggerTS); ok {
			opportunities = append(opportunities, opp)
		}
	}

	return opportunities
}

// FilterOpportunities re-fetches quotes per event and runs each candidate
// through the risk manager. Candidates that survive are promoted to
// CONFIRMED and appended to the engine's opportunity log.
func (e *Engine) FilterOpportunities(
	ctx context.Context,
	opportunities []domain.Opportunity,
	eventMarkets map[string][]domain.Market,
) []domain.Opportunity {
	var confirmed []domain.Opportunity

	for _, opp := range opportunities {
		markets := eventMarkets[opp.EventID]
		marketsByID := make(map[string]domain.Market, len(markets))
		for _, m := range markets {
			marketsByID[m.ID] = m
		}

		quotes, err := e.provider.GetQuotesBatch(ctx, markets)
		if err != nil {
			e.logger.WarnContext(ctx, "quote refresh failed",
				slog.String("event_id", opp.EventID),
				slog.String("error", err.Error()),
			)
			quotes = map[string]domain.Quote{}
		}

		opp = e.risk.Filter(opp, quotes, marketsByID)

		if opp.Status == domain.StatusCandidate {
			opp.Status = domain.StatusConfirmed
			confirmed = append(confirmed, opp)

			e.mu.Lock()
			e.opportunities = append(e.opportunities, opp)
			e.mu.Unlock()
		}
	}

	return confirmed
}

// RunScan composes scan, detect, and filter into one pass and returns the
// confirmed opportunities. A disabled engine or an empty scan short-circuits
// to an empty result.
func (e *Engine) RunScan(ctx context.Context, keywords []string, triggerTS *time.Time) ([]domain.Opportunity, error) {
	if !e.cfg.Enabled {
		e.logger.WarnContext(ctx, "scan requested while engine disabled")
		return nil, nil
	}

	e.logger.InfoContext(ctx, "starting arbitrage scan")

	eventMarkets, err := e.ScanMarkets(ctx, keywords)
	if err != nil {
		return nil, err
	}
	e.logger.InfoContext(ctx, "scan found events", slog.Int("events", len(eventMarkets)))
	if len(eventMarkets) == 0 {
		return nil, nil
	}

	raw := e.DetectOpportunities(ctx, eventMarkets, triggerTS)
	e.logger.InfoContext(ctx, "detected raw opportunities", slog.Int("count", len(raw)))
	if len(raw) == 0 {
		return nil, nil
	}

	confirmed := e.FilterOpportunities(ctx, raw, eventMarkets)
	e.logger.InfoContext(ctx, "confirmed opportunities", slog.Int("count", len(confirmed)))

	return confirmed, nil
}

// ProcessNews gates a single news item on the trigger patterns and, when
// matched, runs a scan anchored at the current instant.
func (e *Engine) ProcessNews(ctx context.Context, headline, summary, newsID string) ([]domain.Opportunity, error) {
	if !e.cfg.Enabled {
		return nil, nil
	}

	matched := e.CheckNewsTrigger(headline, summary)
	if len(matched) == 0 {
		e.logger.DebugContext(ctx, "no keyword match",
			slog.String("headline", truncate(headline, 50)),
		)
		return nil, nil
	}

	e.logger.InfoContext(ctx, "news triggered",
		slog.String("headline", truncate(headline, 50)),
		slog.String("news_id", newsID),
		slog.Any("matched", matched),
	)

	now := time.Now().UTC()
	return e.RunScan(ctx, matched, &now)
}

// RunFullPipeline is the top-level entry. With the news trigger enabled it
// fetches headlines, runs ProcessNews per item, and aggregates; otherwise it
// runs a single manual scan. Failures are collected into the result's Errors
// list and never escape as a Go error.
func (e *Engine) RunFullPipeline(ctx context.Context, useNewsTrigger bool, category string) domain.PipelineResult {
	result := domain.PipelineResult{
		ID:            uuid.New().String(),
		Timestamp:     time.Now().UTC(),
		Enabled:       e.cfg.Enabled,
		Opportunities: []domain.Opportunity{},
		Errors:        []string{},
	}

	if !e.cfg.Enabled {
		result.Errors = append(result.Errors, "arbitrage engine is disabled")
		return result
	}

	if useNewsTrigger && e.news == nil {
		result.Errors = append(result.Errors, "news provider not configured")
		return result
	}

	if useNewsTrigger {
		items, err := e.news.GetMarketNews(ctx, category)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("fetch news: %v", err))
			return result
		}
		result.NewsScanned = len(items)

		for _, item := range items {
			if len(e.CheckNewsTrigger(item.Title, item.Summary)) == 0 {
				continue
			}
			result.NewsTriggered++

			newsID := item.URL
			if newsID == "" {
				newsID = truncate(item.Title, 50)
			}
			opps, err := e.ProcessNews(ctx, item.Title, item.Summary, newsID)
			if err != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("process news %q: %v", truncate(item.Title, 50), err))
				continue
			}
			result.Opportunities = append(result.Opportunities, opps...)
		}
	} else {
		eventMarkets, err := e.ScanMarkets(ctx, nil)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("scan markets: %v", err))
			return result
		}
		result.EventsFound = len(eventMarkets)

		raw := e.DetectOpportunities(ctx, eventMarkets, nil)
		result.OpportunitiesRaw = len(raw)

		result.Opportunities = e.FilterOpportunities(ctx, raw, eventMarkets)
	}

	result.OpportunitiesConfirmed = len(result.Opportunities)
	return result
}

// Opportunities returns a copy of the confirmed-opportunity log.
func (e *Engine) Opportunities() []domain.Opportunity {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]domain.Opportunity, len(e.opportunities))
	copy(out, e.opportunities)
	return out
}

// Snapshots returns a copy of the current snapshot map.
func (e *Engine) Snapshots() map[string]domain.Snapshot {
	return e.store.All()
}

// RestoreSnapshots warm-starts the snapshot store from persisted entries.
func (e *Engine) RestoreSnapshots(snaps map[string]domain.Snapshot) int {
	return e.store.Restore(snaps)
}

// ClearSnapshots evicts snapshots older than the given age in hours.
func (e *Engine) ClearSnapshots(olderThanHours float64) int {
	return e.store.Clear(olderThanHours)
}

// ResetCooldown clears the risk manager's cooldown for one event.
func (e *Engine) ResetCooldown(eventID string) {
	e.risk.ResetCooldown(eventID)
}

// CooldownRemaining reports the remaining cooldown for one event.
func (e *Engine) CooldownRemaining(eventID string) time.Duration {
	return e.risk.CooldownRemaining(eventID)
}

// keywordsFromPatterns derives plain search terms from the trigger regexes by
// stripping regex syntax and splitting on whitespace.
func (e *Engine) keywordsFromPatterns() []string {
	var keywords []string
	replacer := strings.NewReplacer(
		`\b`, " ",
		`(?i)`, " ",
		"(", " ",
		")", " ",
		"|", " ",
		"?", " ",
		"*", " ",
		"+", " ",
	)
	for _, re := range e.patterns {
		cleaned := replacer.Replace(re.String())
		keywords = append(keywords, strings.Fields(cleaned)...)
	}
	return keywords
}

// dedupeKeywords drops duplicates and short tokens, preserving first-seen
// order and capping the result at limit entries.
func dedupeKeywords(keywords []string, limit int) []string {
	seen := make(map[string]bool, len(keywords))
	out := make([]string, 0, len(keywords))
	for _, k := range keywords {
		k = strings.TrimSpace(k)
		if len(k) <= 2 || seen[strings.ToLower(k)] {
			continue
		}
		seen[strings.ToLower(k)] = true
		out = append(out, k)
		if len(out) == limit {
			break
		}
	}
	return out
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
