package notify

import (
	"fmt"
	"strings"

	"github.com/Rickkless-King/Fingent/internal/domain"
)

// EventOpportunityConfirmed is the event type emitted when an opportunity
// survives risk filtering.
const EventOpportunityConfirmed = "opportunity_confirmed"

// FormatOpportunity renders a confirmed opportunity as a notification title
// and message.
func FormatOpportunity(opp domain.Opportunity) (title, message string) {
	short := opp.Short()
	long := opp.Long()

	title = fmt.Sprintf("Term-structure signal: %s", opp.EventID)

	var b strings.Builder
	fmt.Fprintf(&b, "Short %gd @ %.3f (Δ%+.3f) vs long %gd @ %.3f (Δ%+.3f)\n",
		short.TenorDays, short.CurrentMid, short.Delta,
		long.TenorDays, long.CurrentMid, long.Delta)
	fmt.Fprintf(&b, "delta_diff=%.3f edge=%.3f confidence=%.2f\n",
		opp.DeltaDiff, opp.Edge, opp.Confidence)
	if short.Question != "" {
		fmt.Fprintf(&b, "%s\n", short.Question)
	}
	if len(opp.RiskFlags) > 0 {
		fmt.Fprintf(&b, "flags: %s\n", strings.Join(opp.RiskFlags, ", "))
	}
	return title, strings.TrimRight(b.String(), "\n")
}
