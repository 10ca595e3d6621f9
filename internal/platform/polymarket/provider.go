package polymarket

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/Rickkless-King/Fingent/internal/config"
	"github.com/Rickkless-King/Fingent/internal/domain"
)

const rateLimitKey = "polymarket:rest"

// Provider implements domain.MarketDataProvider on top of the Gamma and CLOB
// APIs. The limiter, when set, throttles every outbound request.
type Provider struct {
	gamma   *GammaClient
	clob    *ClobClient
	limiter domain.RateLimiter
	limit   int
	logger  *slog.Logger

	mu           sync.Mutex
	wordPatterns map[string]*regexp.Regexp
}

var _ domain.MarketDataProvider = (*Provider)(nil)

// NewProvider wires the Gamma and CLOB clients from config. limiter may be
// nil, in which case requests are unthrottled.
func NewProvider(cfg config.PolymarketConfig, limiter domain.RateLimiter, logger *slog.Logger) *Provider {
	timeout := cfg.RequestTimeout.Duration
	limit := cfg.SearchLimit
	if limit < 1 {
		limit = 100
	}
	return &Provider{
		gamma:        NewGammaClient(cfg.GammaHost, timeout, logger),
		clob:         NewClobClient(cfg.ClobHost, timeout, logger),
		limiter:      limiter,
		limit:        limit,
		logger:       logger.With(slog.String("component", "polymarket_provider")),
		wordPatterns: make(map[string]*regexp.Regexp),
	}
}

// GetMarketsForArb returns active markets grouped by event, keeping only
// events with at least minMarketsPerEvent markets above minVolume. Keywords
// narrow the search; an empty slice matches everything.
func (p *Provider) GetMarketsForArb(ctx context.Context, keywords []string, minVolume float64, minMarketsPerEvent int) (map[string][]domain.Market, error) {
	markets, err := p.searchMarkets(ctx, keywords)
	if err != nil {
		return nil, err
	}

	byEvent := make(map[string][]domain.Market)
	for _, m := range markets {
		if !m.Active || m.EventID == "" {
			continue
		}
		if m.Volume24h < minVolume {
			continue
		}
		byEvent[m.EventID] = append(byEvent[m.EventID], m)
	}

	for eventID, group := range byEvent {
		if len(group) < minMarketsPerEvent {
			delete(byEvent, eventID)
		}
	}

	p.logger.DebugContext(ctx, "grouped markets for arb",
		slog.Int("markets", len(markets)),
		slog.Int("events", len(byEvent)))
	return byEvent, nil
}

// GetQuote derives a quote from the market's YES token orderbook. It returns
// domain.ErrNoQuote when the market carries no token or the book is empty.
func (p *Provider) GetQuote(ctx context.Context, market domain.Market) (domain.Quote, error) {
	if market.TokenID == "" {
		return domain.Quote{}, domain.ErrNoQuote
	}
	if err := p.throttle(ctx); err != nil {
		return domain.Quote{}, err
	}

	book, err := p.clob.GetOrderbook(ctx, market.TokenID)
	if err != nil {
		return domain.Quote{}, err
	}
	return QuoteFromBook(market, book, time.Now().UTC())
}

// GetQuotesBatch fetches quotes for all markets, skipping markets whose quote
// is unavailable. It fails only when the context is cancelled.
func (p *Provider) GetQuotesBatch(ctx context.Context, markets []domain.Market) (map[string]domain.Quote, error) {
	quotes := make(map[string]domain.Quote, len(markets))
	for _, m := range markets {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("polymarket: batch quotes: %w", err)
		}
		q, err := p.GetQuote(ctx, m)
		if err != nil {
			p.logger.DebugContext(ctx, "quote unavailable",
				slog.String("market_id", m.ID),
				slog.String("error", err.Error()))
			continue
		}
		quotes[m.ID] = q
	}
	return quotes, nil
}

// perKeywordPage sizes the market fetch: one page per keyword, capped at the
// configured search limit.
const perKeywordPage = 20

// searchMarkets fetches one page of active markets and keeps those matching
// any keyword. The page size scales with the keyword count, capped at the
// configured search limit.
func (p *Provider) searchMarkets(ctx context.Context, keywords []string) ([]domain.Market, error) {
	limit := p.limit
	if n := len(keywords); n > 0 {
		if scaled := perKeywordPage * n; scaled < limit {
			limit = scaled
		}
	}

	if err := p.throttle(ctx); err != nil {
		return nil, err
	}
	raw, err := p.gamma.ListActiveMarkets(ctx, limit)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	var out []domain.Market
	for i := range raw {
		if len(keywords) > 0 && !p.matchKeywords(&raw[i], keywords) {
			continue
		}
		out = append(out, raw[i].ToDomainMarket(now))
	}
	return out, nil
}

// matchKeywords reports whether the market's question or description mentions
// any keyword. Multi-word keywords match as substrings; single words match on
// word boundaries so "fed" does not hit "federal".
func (p *Provider) matchKeywords(m *APIMarket, keywords []string) bool {
	text := strings.ToLower(m.Question + " " + m.Description)
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw == "" {
			continue
		}
		if strings.Contains(kw, " ") {
			if strings.Contains(text, kw) {
				return true
			}
			continue
		}
		if p.wordPattern(kw).MatchString(text) {
			return true
		}
	}
	return false
}

func (p *Provider) wordPattern(kw string) *regexp.Regexp {
	p.mu.Lock()
	defer p.mu.Unlock()
	if re, ok := p.wordPatterns[kw]; ok {
		return re
	}
	re := regexp.MustCompile(`\b` + regexp.QuoteMeta(kw) + `\b`)
	p.wordPatterns[kw] = re
	return re
}

func (p *Provider) throttle(ctx context.Context) error {
	if p.limiter == nil {
		return nil
	}
	if err := p.limiter.Wait(ctx, rateLimitKey); err != nil {
		return fmt.Errorf("polymarket: rate limit: %w", err)
	}
	return nil
}
