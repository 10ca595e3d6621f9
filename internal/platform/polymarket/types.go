package polymarket

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/Rickkless-King/Fingent/internal/domain"
)

// flexBool unmarshals from JSON bool or string ("true"/"false") so Gamma API
// responses work whether "active" is sent as bool or string.
type flexBool bool

func (f *flexBool) UnmarshalJSON(data []byte) error {
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*f = flexBool(b)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*f = flexBool(strings.EqualFold(s, "true") || s == "1")
	return nil
}

// flexFloat unmarshals from a JSON number or a numeric string, both of which
// the Gamma API uses for volume fields.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		*f = flexFloat(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*f = 0
		return nil
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	*f = flexFloat(n)
	return nil
}

// stringArray unmarshals from a JSON array of strings or from a JSON-encoded
// string containing such an array (the Gamma API sends "clobTokenIds" both
// ways).
type stringArray []string

func (a *stringArray) UnmarshalJSON(data []byte) error {
	var arr []string
	if err := json.Unmarshal(data, &arr); err == nil {
		*a = arr
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*a = nil
		return nil
	}
	return json.Unmarshal([]byte(s), (*[]string)(a))
}

// --------------------------------------------------------------------------
// Gamma API DTOs
// --------------------------------------------------------------------------

// APIMarket represents a market as returned by the Polymarket Gamma API.
type APIMarket struct {
	ID           string      `json:"id"`
	Question     string      `json:"question"`
	Description  string      `json:"description"`
	Slug         string      `json:"slug"`
	Active       flexBool    `json:"active"`
	Closed       bool        `json:"closed"`
	EventID      string      `json:"eventId"`
	EndDate      string      `json:"endDate"`
	EndDateISO   string      `json:"end_date_iso"`
	Volume       flexFloat   `json:"volume"`
	Liquidity    flexFloat   `json:"liquidity"`
	ClobTokenIDs stringArray `json:"clobTokenIds"`
}

// endDate returns whichever end-date field the API populated.
func (m *APIMarket) endDate() string {
	if m.EndDate != "" {
		return m.EndDate
	}
	return m.EndDateISO
}

// ToDomainMarket converts an APIMarket to a domain.Market, deriving the tenor
// from the market's end date. A missing or unparseable end date yields a
// tenor of zero.
func (m *APIMarket) ToDomainMarket(now time.Time) domain.Market {
	tenorDays := 0.0
	if raw := m.endDate(); raw != "" {
		if end, err := time.Parse(time.RFC3339, raw); err == nil {
			tenorDays = end.Sub(now).Hours() / 24
		}
		if tenorDays < 0 {
			tenorDays = 0
		}
	}

	yesToken := ""
	if len(m.ClobTokenIDs) > 0 {
		yesToken = m.ClobTokenIDs[0]
	}

	return domain.Market{
		ID:        m.ID,
		EventID:   m.EventID,
		Question:  m.Question,
		TenorDays: tenorDays,
		Active:    bool(m.Active) && !m.Closed,
		TokenID:   yesToken,
		Volume24h: float64(m.Volume),
		Slug:      m.Slug,
		EndDate:   m.endDate(),
	}
}

// --------------------------------------------------------------------------
// CLOB API DTOs
// --------------------------------------------------------------------------

// PriceLevel is a single bid/ask level in the CLOB orderbook response.
type PriceLevel struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}

// APIBook is the CLOB /book response for one token.
type APIBook struct {
	Market    string       `json:"market"`
	AssetID   string       `json:"asset_id"`
	Bids      []PriceLevel `json:"bids"`
	Asks      []PriceLevel `json:"asks"`
	Timestamp string       `json:"timestamp"`
	Hash      string       `json:"hash"`
}

// BestBid returns the highest bid price and its size, or ok=false when the
// bid side is empty.
func (b *APIBook) BestBid() (price, size float64, ok bool) {
	return bestLevel(b.Bids, func(candidate, best float64) bool { return candidate > best })
}

// BestAsk returns the lowest ask price and its size, or ok=false when the
// ask side is empty.
func (b *APIBook) BestAsk() (price, size float64, ok bool) {
	return bestLevel(b.Asks, func(candidate, best float64) bool { return candidate < best })
}

func bestLevel(levels []PriceLevel, better func(candidate, best float64) bool) (price, size float64, ok bool) {
	for _, lvl := range levels {
		p, err := strconv.ParseFloat(lvl.Price, 64)
		if err != nil || p <= 0 {
			continue
		}
		s, err := strconv.ParseFloat(lvl.Size, 64)
		if err != nil {
			continue
		}
		if !ok || better(p, price) {
			price, size, ok = p, s, true
		}
	}
	return price, size, ok
}
