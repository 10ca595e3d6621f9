package arb

import (
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/Rickkless-King/Fingent/internal/config"
	"github.com/Rickkless-King/Fingent/internal/domain"
)

// Fallback thresholds applied when the corresponding config field is unset.
const (
	defaultDeltaThreshold       = 0.05
	defaultTriggerWindowMinutes = 120.0
	defaultMaxMarketsPerEvent   = 10
	defaultDepthFloorUSD        = 500.0
	defaultVolumeNormUSD        = 10_000.0
	defaultDepthNormUSD         = 2_000.0
	defaultSpreadNormBps        = 300.0
)

// TermStructureStrategy detects price divergence between same-event markets
// with different tenors. Both legs are measured against the reference price
// recorded in their snapshots; the signal is the difference between the two
// legs' moves, not the moves themselves.
type TermStructureStrategy struct {
	deltaThreshold       float64
	triggerWindowMinutes float64
	maxMarketsPerEvent   int
	depthFloorUSD        float64
	volumeNormUSD        float64
	depthNormUSD         float64
	spreadNormBps        float64

	logger *slog.Logger
}

// NewTermStructureStrategy builds a strategy from config, substituting
// defaults for unset fields.
func NewTermStructureStrategy(cfg config.TermStructureConfig, logger *slog.Logger) *TermStructureStrategy {
	s := &TermStructureStrategy{
		deltaThreshold:       cfg.DeltaThreshold,
		triggerWindowMinutes: cfg.TriggerWindowMinutes,
		maxMarketsPerEvent:   cfg.MaxMarketsPerEvent,
		depthFloorUSD:        cfg.DepthFloorUSD,
		volumeNormUSD:        cfg.VolumeNormUSD,
		depthNormUSD:         cfg.DepthNormUSD,
		spreadNormBps:        cfg.SpreadNormBps,
		logger:               logger.With(slog.String("strategy", "term_structure")),
	}
	if s.deltaThreshold <= 0 {
		s.deltaThreshold = defaultDeltaThreshold
	}
	if s.triggerWindowMinutes <= 0 {
		s.triggerWindowMinutes = defaultTriggerWindowMinutes
	}
	if s.maxMarketsPerEvent < 2 {
		s.maxMarketsPerEvent = defaultMaxMarketsPerEvent
	}
	if s.depthFloorUSD <= 0 {
		s.depthFloorUSD = defaultDepthFloorUSD
	}
	if s.volumeNormUSD <= 0 {
		s.volumeNormUSD = defaultVolumeNormUSD
	}
	if s.depthNormUSD <= 0 {
		s.depthNormUSD = defaultDepthNormUSD
	}
	if s.spreadNormBps <= 0 {
		s.spreadNormBps = defaultSpreadNormBps
	}
	return s
}

// Name returns the strategy identifier.
func (s *TermStructureStrategy) Name() string { return "term_structure" }

// Evaluate checks one event's markets for a term-structure divergence.
// It returns the candidate opportunity and true when one is found.
//
// triggerTS, when non-nil, is the instant of the triggering news item; it
// anchors the staleness window. Otherwise the short leg's snapshot time is
// used.
func (s *TermStructureStrategy) Evaluate(
	eventID string,
	markets []domain.Market,
	quotes map[string]domain.Quote,
	snapshots map[string]domain.Snapshot,
	triggerTS *time.Time,
) (domain.Opportunity, bool) {
	// 1. Keep active markets that have both a current quote and a snapshot.
	active := make([]domain.Market, 0, len(markets))
	for _, m := range markets {
		if !m.Active {
			continue
		}
		if _, ok := quotes[m.ID]; !ok {
			continue
		}
		if _, ok := snapshots[m.ID]; !ok {
			continue
		}
		active = append(active, m)
	}

	if len(active) < 2 {
		s.logger.Debug("not enough active markets",
			slog.String("event_id", eventID),
			slog.Int("count", len(active)),
		)
		return domain.Opportunity{}, false
	}

	// 2. Sort ascending by tenor, truncate to the configured maximum, and
	// take the extremes as the two legs.
	sort.Slice(active, func(i, j int) bool {
		return active[i].TenorDays < active[j].TenorDays
	})
	if len(active) > s.maxMarketsPerEvent {
		active = active[:s.maxMarketsPerEvent]
	}
	short := active[0]
	long := active[len(active)-1]

	snapShort := snapshots[short.ID]
	snapLong := snapshots[long.ID]

	// 3. Staleness check against the trigger window.
	now := time.Now().UTC()
	ref := snapShort.FirstSeenTS
	if triggerTS != nil {
		ref = *triggerTS
	}
	if ref.IsZero() {
		ref = now
	}
	elapsedMin := now.Sub(ref).Minutes()
	if elapsedMin > s.triggerWindowMinutes {
		s.logger.Debug("outside trigger window",
			slog.String("event_id", eventID),
			slog.Float64("elapsed_min", elapsedMin),
			slog.Float64("window_min", s.triggerWindowMinutes),
		)
		return domain.Opportunity{}, false
	}

	// 4. Per-leg deltas against p0.
	quoteShort := quotes[short.ID]
	quoteLong := quotes[long.ID]

	deltaShort := quoteShort.Mid - snapShort.P0
	deltaLong := quoteLong.Mid - snapLong.P0
	deltaDiff := abs(deltaShort - deltaLong)

	if deltaDiff < s.deltaThreshold {
		s.logger.Debug("delta diff below threshold",
			slog.String("event_id", eventID),
			slog.Float64("delta_diff", deltaDiff),
			slog.Float64("threshold", s.deltaThreshold),
		)
		return domain.Opportunity{}, false
	}

	// 5. Transaction-cost adjustment.
	cost := s.estimateCost(quoteShort, quoteLong)
	edge := deltaDiff - cost
	if edge <= 0 {
		s.logger.Debug("negative edge after costs",
			slog.String("event_id", eventID),
			slog.Float64("edge", edge),
		)
		return domain.Opportunity{}, false
	}

	// 6. Liquidity-based confidence.
	confidence := s.confidenceFromLiquidity(quoteShort, quoteLong)

	// 7. Assemble the candidate.
	evidence := domain.Evidence{
		ElapsedMinutes: elapsedMin,
		P0Short:        snapShort.P0,
		P0Long:         snapLong.P0,
		QuoteShort:     quoteShort,
		QuoteLong:      quoteLong,
		DeltaShort:     deltaShort,
		DeltaLong:      deltaLong,
		EstimatedCost:  cost,
	}
	if triggerTS != nil {
		evidence.TriggerTS = *triggerTS
	}

	opp := domain.Opportunity{
		ID:        uuid.New().String(),
		Timestamp: now,
		Type:      domain.TypeTermStructure,
		EventID:   eventID,
		Legs: []domain.OpportunityLeg{
			{
				MarketID:   short.ID,
				Question:   short.Question,
				TenorDays:  short.TenorDays,
				Side:       domain.ShortLeg,
				CurrentMid: quoteShort.Mid,
				Delta:      deltaShort,
			},
			{
				MarketID:   long.ID,
				Question:   long.Question,
				TenorDays:  long.TenorDays,
				Side:       domain.LongLeg,
				CurrentMid: quoteLong.Mid,
				Delta:      deltaLong,
			},
		},
		DeltaDiff:  deltaDiff,
		Edge:       edge,
		Confidence: confidence,
		Evidence:   evidence,
		RiskFlags:  []string{},
		Status:     domain.StatusCandidate,
	}

	s.logger.Info("opportunity detected",
		slog.String("event_id", eventID),
		slog.Float64("delta_diff", deltaDiff),
		slog.Float64("edge", edge),
		slog.Float64("confidence", confidence),
	)

	return opp, true
}

// estimateCost converts the legs' average spread to probability units and
// doubles it when any of the four depths is below the liquidity floor.
func (s *TermStructureStrategy) estimateCost(quoteShort, quoteLong domain.Quote) float64 {
	avgSpreadBps := (quoteShort.SpreadBps + quoteLong.SpreadBps) / 2
	cost := avgSpreadBps / 10_000

	minDepth := min4(quoteShort.DepthBid, quoteShort.DepthAsk, quoteLong.DepthBid, quoteLong.DepthAsk)
	if minDepth < s.depthFloorUSD {
		cost *= 2
	}
	return cost
}

// confidenceFromLiquidity averages three liquidity factors, each clamped to
// [0,1]: worst-leg volume, worst-leg bid depth, and worst-leg spread. The
// normalization constants are tuned defaults, not a calibrated model.
func (s *TermStructureStrategy) confidenceFromLiquidity(quoteShort, quoteLong domain.Quote) float64 {
	minVol := quoteShort.Volume24h
	if quoteLong.Volume24h < minVol {
		minVol = quoteLong.Volume24h
	}
	volScore := clamp01(minVol / s.volumeNormUSD)

	minDepth := quoteShort.DepthBid
	if quoteLong.DepthBid < minDepth {
		minDepth = quoteLong.DepthBid
	}
	depthScore := clamp01(minDepth / s.depthNormUSD)

	maxSpread := quoteShort.SpreadBps
	if quoteLong.SpreadBps > maxSpread {
		maxSpread = quoteLong.SpreadBps
	}
	spreadScore := clamp01(1 - maxSpread/s.spreadNormBps)

	return (volScore + depthScore + spreadScore) / 3
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

func min4(a, b, c, d float64) float64 {
	m := a
	for _, v := range []float64{b, c, d} {
		if v < m {
			m = v
		}
	}
	return m
}
