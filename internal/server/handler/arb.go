package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/Rickkless-King/Fingent/internal/domain"
)

// ArbService is the slice of the detection engine the HTTP layer needs.
type ArbService interface {
	Enabled() bool
	RunFullPipeline(ctx context.Context, useNewsTrigger bool, category string) domain.PipelineResult
	ProcessNews(ctx context.Context, headline, summary, newsID string) ([]domain.Opportunity, error)
	Opportunities() []domain.Opportunity
	Snapshots() map[string]domain.Snapshot
	ClearSnapshots(olderThanHours float64) int
	CooldownRemaining(eventID string) time.Duration
	ResetCooldown(eventID string)
}

// ArbHandler serves the detection endpoints.
type ArbHandler struct {
	svc      ArbService
	opps     domain.OpportunityStore // nil when persistence is disabled
	runs     domain.RunStore         // nil when persistence is disabled
	category string
	logger   *slog.Logger
}

// NewArbHandler creates an ArbHandler. The stores may be nil; the
// opportunity and run listings then fall back to the in-memory log or 503.
func NewArbHandler(svc ArbService, opps domain.OpportunityStore, runs domain.RunStore, newsCategory string, logger *slog.Logger) *ArbHandler {
	return &ArbHandler{
		svc:      svc,
		opps:     opps,
		runs:     runs,
		category: newsCategory,
		logger:   logHandler(logger, "arb"),
	}
}

// ListOpportunities returns recent opportunities, optionally filtered by
// event ID.
// GET /api/opportunities?event_id=&limit=&offset=
func (h *ArbHandler) ListOpportunities(w http.ResponseWriter, r *http.Request) {
	opts := parseListOpts(r)
	eventID := r.URL.Query().Get("event_id")

	if h.opps == nil {
		// In-memory log only; filtering and pagination are best-effort.
		all := h.svc.Opportunities()
		out := make([]domain.Opportunity, 0, len(all))
		for _, opp := range all {
			if eventID == "" || opp.EventID == eventID {
				out = append(out, opp)
			}
		}
		if opts.Limit > 0 && len(out) > opts.Limit {
			out = out[len(out)-opts.Limit:]
		}
		writeJSON(w, http.StatusOK, map[string]any{"opportunities": out, "count": len(out)})
		return
	}

	var (
		opps []domain.Opportunity
		err  error
	)
	if eventID != "" {
		opps, err = h.opps.ListByEvent(r.Context(), eventID, opts)
	} else {
		opps, err = h.opps.ListRecent(r.Context(), opts.Limit)
	}
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list opportunities", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list opportunities")
		return
	}
	if opps == nil {
		opps = []domain.Opportunity{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"opportunities": opps, "count": len(opps)})
}

// ListSnapshots returns the engine's current reference-price snapshots.
// GET /api/snapshots
func (h *ArbHandler) ListSnapshots(w http.ResponseWriter, r *http.Request) {
	snaps := h.svc.Snapshots()
	writeJSON(w, http.StatusOK, map[string]any{"snapshots": snaps, "count": len(snaps)})
}

// ClearSnapshots evicts snapshots older than the given age. Omitting
// older_than_hours clears everything.
// DELETE /api/snapshots?older_than_hours=24
func (h *ArbHandler) ClearSnapshots(w http.ResponseWriter, r *http.Request) {
	olderThan := 0.0
	if v := r.URL.Query().Get("older_than_hours"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f < 0 {
			writeError(w, http.StatusBadRequest, "invalid older_than_hours")
			return
		}
		olderThan = f
	}

	removed := h.svc.ClearSnapshots(olderThan)
	h.logger.InfoContext(r.Context(), "snapshots cleared",
		slog.Int("removed", removed),
		slog.Float64("older_than_hours", olderThan))
	writeJSON(w, http.StatusOK, map[string]any{"removed": removed})
}

// TriggerScan runs one full pipeline cycle synchronously and returns the
// result. The request body may set use_news_trigger.
// POST /api/scan
func (h *ArbHandler) TriggerScan(w http.ResponseWriter, r *http.Request) {
	if !h.svc.Enabled() {
		writeError(w, http.StatusServiceUnavailable, "detection is disabled")
		return
	}

	var body struct {
		UseNewsTrigger bool   `json:"use_news_trigger"`
		Category       string `json:"category"`
	}
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&body) // empty body means manual scan
	}
	category := body.Category
	if category == "" {
		category = h.category
	}

	result := h.svc.RunFullPipeline(r.Context(), body.UseNewsTrigger, category)
	writeJSON(w, http.StatusOK, result)
}

// ProcessNews feeds a single headline through the news trigger path.
// POST /api/news
func (h *ArbHandler) ProcessNews(w http.ResponseWriter, r *http.Request) {
	if !h.svc.Enabled() {
		writeError(w, http.StatusServiceUnavailable, "detection is disabled")
		return
	}

	var body struct {
		Headline string `json:"headline"`
		Summary  string `json:"summary"`
		NewsID   string `json:"news_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if body.Headline == "" {
		writeError(w, http.StatusBadRequest, "headline is required")
		return
	}
	if body.NewsID == "" {
		body.NewsID = body.Headline
	}

	opps, err := h.svc.ProcessNews(r.Context(), body.Headline, body.Summary, body.NewsID)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "process news", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to process news")
		return
	}
	if opps == nil {
		opps = []domain.Opportunity{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"opportunities": opps, "count": len(opps)})
}

// GetCooldown reports the remaining cooldown for an event.
// GET /api/cooldown/{event}
func (h *ArbHandler) GetCooldown(w http.ResponseWriter, r *http.Request) {
	eventID := pathParam(r, "event")
	remaining := h.svc.CooldownRemaining(eventID)
	writeJSON(w, http.StatusOK, map[string]any{
		"event_id":          eventID,
		"cooldown_active":   remaining > 0,
		"remaining_seconds": remaining.Seconds(),
	})
}

// ResetCooldown clears an event's cooldown so it may alert again.
// DELETE /api/cooldown/{event}
func (h *ArbHandler) ResetCooldown(w http.ResponseWriter, r *http.Request) {
	eventID := pathParam(r, "event")
	h.svc.ResetCooldown(eventID)
	h.logger.InfoContext(r.Context(), "cooldown reset", slog.String("event_id", eventID))
	writeJSON(w, http.StatusOK, map[string]any{"event_id": eventID, "reset": true})
}

// ListRuns returns recent pipeline run summaries.
// GET /api/runs?limit=
func (h *ArbHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	if h.runs == nil {
		writeError(w, http.StatusServiceUnavailable, "run persistence is disabled")
		return
	}

	opts := parseListOpts(r)
	runs, err := h.runs.ListRecentRuns(r.Context(), opts.Limit)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list runs", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}
	if runs == nil {
		runs = []domain.PipelineResult{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs, "count": len(runs)})
}
