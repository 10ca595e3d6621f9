package domain

import "time"

// OpportunityStatus is the lifecycle state of an opportunity.
// CANDIDATE is the only non-terminal state; once an opportunity is CONFIRMED
// or FILTERED it is never re-evaluated.
type OpportunityStatus string

const (
	StatusCandidate OpportunityStatus = "CANDIDATE"
	StatusConfirmed OpportunityStatus = "CONFIRMED"
	StatusFiltered  OpportunityStatus = "FILTERED"
)

// OpportunityType identifies the detection strategy that produced an
// opportunity.
type OpportunityType string

const TypeTermStructure OpportunityType = "TERM_STRUCTURE"

// LegSide marks which end of the tenor spread a leg occupies.
type LegSide string

const (
	ShortLeg LegSide = "SHORT_LEG"
	LongLeg  LegSide = "LONG_LEG"
)

// OpportunityLeg is one side of a term-structure pair.
type OpportunityLeg struct {
	MarketID   string  `json:"market_id"`
	Question   string  `json:"question"`
	TenorDays  float64 `json:"tenor_days"`
	Side       LegSide `json:"side"`
	CurrentMid float64 `json:"current_mid"`
	Delta      float64 `json:"delta"` // current_mid - p0
}

// Evidence captures the raw inputs used to build an opportunity so a
// confirmed signal can be audited after the fact.
type Evidence struct {
	TriggerTS      time.Time `json:"trigger_ts"`
	ElapsedMinutes float64   `json:"elapsed_minutes"`
	P0Short        float64   `json:"p0_short"`
	P0Long         float64   `json:"p0_long"`
	QuoteShort     Quote     `json:"quote_short"`
	QuoteLong      Quote     `json:"quote_long"`
	DeltaShort     float64   `json:"delta_short"`
	DeltaLong      float64   `json:"delta_long"`
	EstimatedCost  float64   `json:"estimated_cost"`
}

// Opportunity is a detected term-structure mispricing. The legs slice always
// holds exactly two entries, the short leg first.
type Opportunity struct {
	ID         string            `json:"id"`
	Timestamp  time.Time         `json:"timestamp"`
	Type       OpportunityType   `json:"type"`
	EventID    string            `json:"event_id"`
	Legs       []OpportunityLeg  `json:"legs"`
	DeltaDiff  float64           `json:"delta_diff"` // |delta_short - delta_long|
	Edge       float64           `json:"edge"`       // delta_diff - estimated cost
	Confidence float64           `json:"confidence"` // 0-1
	Evidence   Evidence          `json:"evidence"`
	RiskFlags  []string          `json:"risk_flags"`
	Status     OpportunityStatus `json:"status"`
}

// Short returns the leg tagged SHORT_LEG, or a zero leg if absent.
func (o Opportunity) Short() OpportunityLeg { return o.legBySide(ShortLeg) }

// Long returns the leg tagged LONG_LEG, or a zero leg if absent.
func (o Opportunity) Long() OpportunityLeg { return o.legBySide(LongLeg) }

func (o Opportunity) legBySide(side LegSide) OpportunityLeg {
	for _, leg := range o.Legs {
		if leg.Side == side {
			return leg
		}
	}
	return OpportunityLeg{}
}
