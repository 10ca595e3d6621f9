package arb

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Rickkless-King/Fingent/internal/config"
	"github.com/Rickkless-King/Fingent/internal/domain"
)

// Fallback risk thresholds applied when the corresponding config field is
// unset.
const (
	defaultMinVolume24h         = 5_000.0
	defaultMaxSpreadBps         = 300.0
	defaultMinDepthUSD          = 1_000.0
	defaultMinTimeToSettleHours = 12.0
	defaultCooldownSeconds      = 900.0
)

// RiskManager gates candidate opportunities on liquidity, spread, settlement
// proximity, and a per-event cooldown. It owns the cooldown clock; nothing
// else mutates it.
type RiskManager struct {
	minVolume24h         float64
	maxSpreadBps         float64
	minDepthUSD          float64
	minTimeToSettleHours float64
	cooldown             time.Duration

	mu        sync.Mutex
	lastAlert map[string]time.Time

	now    func() time.Time // overridable in tests
	logger *slog.Logger
}

// NewRiskManager builds a risk manager from config, substituting defaults for
// unset fields.
func NewRiskManager(cfg config.RiskConfig, logger *slog.Logger) *RiskManager {
	rm := &RiskManager{
		minVolume24h:         cfg.MinVolume24h,
		maxSpreadBps:         cfg.MaxSpreadBps,
		minDepthUSD:          cfg.MinDepthUSD,
		minTimeToSettleHours: cfg.MinTimeToSettleHours,
		cooldown:             time.Duration(cfg.CooldownSeconds * float64(time.Second)),
		lastAlert:            make(map[string]time.Time),
		now:                  time.Now,
		logger:               logger.With(slog.String("component", "risk_manager")),
	}
	if rm.minVolume24h <= 0 {
		rm.minVolume24h = defaultMinVolume24h
	}
	if rm.maxSpreadBps <= 0 {
		rm.maxSpreadBps = defaultMaxSpreadBps
	}
	if rm.minDepthUSD <= 0 {
		rm.minDepthUSD = defaultMinDepthUSD
	}
	if rm.minTimeToSettleHours <= 0 {
		rm.minTimeToSettleHours = defaultMinTimeToSettleHours
	}
	if rm.cooldown <= 0 {
		rm.cooldown = time.Duration(defaultCooldownSeconds * float64(time.Second))
	}
	return rm
}

// Filter applies every gate to the opportunity and returns it with RiskFlags
// and Status updated. Any hard-fail flag on any leg sets FILTERED; a clean
// pass leaves the status CANDIDATE and arms the event's cooldown. Filter
// never returns an error.
func (rm *RiskManager) Filter(
	opp domain.Opportunity,
	quotes map[string]domain.Quote,
	markets map[string]domain.Market,
) domain.Opportunity {
	flags := []string{}
	hardFail := false

	for _, leg := range opp.Legs {
		quote, ok := quotes[leg.MarketID]
		if !ok {
			flags = append(flags, "MISSING_QUOTE:"+leg.MarketID)
			hardFail = true
			continue
		}

		// Volume (hard).
		if quote.Volume24h < rm.minVolume24h {
			flags = append(flags, fmt.Sprintf("LOW_VOLUME:%s:%.0f", leg.MarketID, quote.Volume24h))
			hardFail = true
		}

		// Spread (hard).
		if quote.SpreadBps > rm.maxSpreadBps {
			flags = append(flags, fmt.Sprintf("WIDE_SPREAD:%s:%.0fbps", leg.MarketID, quote.SpreadBps))
			hardFail = true
		}

		// Depth (soft): recorded but does not fail the opportunity.
		minDepth := quote.DepthBid
		if quote.DepthAsk < minDepth {
			minDepth = quote.DepthAsk
		}
		if minDepth < rm.minDepthUSD {
			flags = append(flags, fmt.Sprintf("LOW_DEPTH:%s:%.0f", leg.MarketID, minDepth))
		}

		// Settlement proximity (hard), only when market metadata is known.
		if markets != nil {
			if market, ok := markets[leg.MarketID]; ok {
				if market.TenorDays*24 < rm.minTimeToSettleHours {
					flags = append(flags, fmt.Sprintf("TOO_CLOSE_TO_SETTLE:%s:%gd", leg.MarketID, market.TenorDays))
					hardFail = true
				}
			}
		}
	}

	// Per-event cooldown (hard).
	now := rm.now()
	rm.mu.Lock()
	if last, ok := rm.lastAlert[opp.EventID]; ok {
		if elapsed := now.Sub(last); elapsed < rm.cooldown {
			remaining := rm.cooldown - elapsed
			flags = append(flags, fmt.Sprintf("COOLDOWN:%s:%.0fs", opp.EventID, remaining.Seconds()))
			hardFail = true
		}
	}

	opp.RiskFlags = flags
	if hardFail {
		opp.Status = domain.StatusFiltered
	} else {
		opp.Status = domain.StatusCandidate
		rm.lastAlert[opp.EventID] = now
	}
	rm.mu.Unlock()

	if len(flags) > 0 {
		rm.logger.Info("risk check",
			slog.String("event_id", opp.EventID),
			slog.String("status", string(opp.Status)),
			slog.Any("flags", flags),
		)
	}

	return opp
}

// ResetCooldown clears the cooldown clock for an event.
func (rm *RiskManager) ResetCooldown(eventID string) {
	rm.mu.Lock()
	_, ok := rm.lastAlert[eventID]
	delete(rm.lastAlert, eventID)
	rm.mu.Unlock()

	if ok {
		rm.logger.Info("reset cooldown", slog.String("event_id", eventID))
	}
}

// CooldownRemaining reports how long until the event may alert again.
// Returns zero when no cooldown is active.
func (rm *RiskManager) CooldownRemaining(eventID string) time.Duration {
	rm.mu.Lock()
	last, ok := rm.lastAlert[eventID]
	rm.mu.Unlock()

	if !ok {
		return 0
	}
	remaining := rm.cooldown - rm.now().Sub(last)
	if remaining < 0 {
		return 0
	}
	return remaining
}
