package domain

import "time"

// Market represents a single prediction-market contract. Markets on the same
// underlying question are grouped by EventID and differ by tenor.
type Market struct {
	ID        string  `json:"market_id"`
	EventID   string  `json:"event_id"`
	Question  string  `json:"question"`
	TenorDays float64 `json:"tenor_days"` // days to settlement, >= 0
	Active    bool    `json:"active"`

	// Provider-specific fields used when fetching quotes.
	TokenID   string  `json:"token_id,omitempty"` // YES outcome token
	Volume24h float64 `json:"volume_24h,omitempty"`
	Slug      string  `json:"slug,omitempty"`
	EndDate   string  `json:"end_date,omitempty"`
}

// Quote is a point-in-time view of a market's top of book. Quotes are never
// mutated after construction.
type Quote struct {
	MarketID  string    `json:"market_id"`
	Mid       float64   `json:"mid"`        // probability, 0-1
	SpreadBps float64   `json:"spread_bps"` // bid/ask spread in basis points
	DepthBid  float64   `json:"depth_bid"`  // USD available at best bid
	DepthAsk  float64   `json:"depth_ask"`  // USD available at best ask
	Volume24h float64   `json:"volume_24h"` // USD
	Timestamp time.Time `json:"timestamp"`
}

// Snapshot records the first-observed quote for a market after a trigger.
// P0 never changes after creation.
type Snapshot struct {
	MarketID    string    `json:"market_id"`
	NewsID      string    `json:"news_id"` // trigger identifier or "manual"
	FirstSeenTS time.Time `json:"first_seen_ts"`
	P0          float64   `json:"p0"` // mid price at first observation
	Quote0      Quote     `json:"quote0"`
	Volume0     float64   `json:"volume0"`
}

// Age returns how long ago the snapshot was taken. Zero-valued timestamps
// report a negative age so age-based eviction never removes them.
func (s Snapshot) Age(now time.Time) time.Duration {
	if s.FirstSeenTS.IsZero() {
		return -1
	}
	return now.Sub(s.FirstSeenTS)
}
