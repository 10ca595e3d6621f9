package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rickkless-King/Fingent/internal/domain"
)

type fakeArbService struct {
	enabled       bool
	result        domain.PipelineResult
	newsOpps      []domain.Opportunity
	opps          []domain.Opportunity
	snaps         map[string]domain.Snapshot
	cleared       int
	clearedHours  float64
	cooldown      time.Duration
	resetEvents   []string
	processedNews []string
}

func (f *fakeArbService) Enabled() bool { return f.enabled }

func (f *fakeArbService) RunFullPipeline(_ context.Context, _ bool, _ string) domain.PipelineResult {
	return f.result
}

func (f *fakeArbService) ProcessNews(_ context.Context, headline, _, _ string) ([]domain.Opportunity, error) {
	f.processedNews = append(f.processedNews, headline)
	return f.newsOpps, nil
}

func (f *fakeArbService) Opportunities() []domain.Opportunity { return f.opps }

func (f *fakeArbService) Snapshots() map[string]domain.Snapshot { return f.snaps }

func (f *fakeArbService) CooldownRemaining(string) time.Duration { return f.cooldown }

func (f *fakeArbService) ResetCooldown(eventID string) {
	f.resetEvents = append(f.resetEvents, eventID)
}

func (f *fakeArbService) ClearSnapshots(olderThanHours float64) int {
	f.clearedHours = olderThanHours
	return f.cleared
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestMux(svc ArbService) *http.ServeMux {
	h := NewArbHandler(svc, nil, nil, "general", testLogger())
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/opportunities", h.ListOpportunities)
	mux.HandleFunc("GET /api/snapshots", h.ListSnapshots)
	mux.HandleFunc("DELETE /api/snapshots", h.ClearSnapshots)
	mux.HandleFunc("POST /api/scan", h.TriggerScan)
	mux.HandleFunc("POST /api/news", h.ProcessNews)
	mux.HandleFunc("GET /api/cooldown/{event}", h.GetCooldown)
	mux.HandleFunc("DELETE /api/cooldown/{event}", h.ResetCooldown)
	mux.HandleFunc("GET /api/runs", h.ListRuns)
	return mux
}

func doRequest(t *testing.T, mux *http.ServeMux, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestTriggerScan(t *testing.T) {
	svc := &fakeArbService{
		enabled: true,
		result: domain.PipelineResult{
			ID:                     "run-1",
			Enabled:                true,
			EventsFound:            2,
			OpportunitiesConfirmed: 1,
		},
	}
	rec := doRequest(t, newTestMux(svc), http.MethodPost, "/api/scan", `{"use_news_trigger":false}`)

	require.Equal(t, http.StatusOK, rec.Code)
	var result domain.PipelineResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, "run-1", result.ID)
	assert.Equal(t, 1, result.OpportunitiesConfirmed)
}

func TestTriggerScanDisabled(t *testing.T) {
	rec := doRequest(t, newTestMux(&fakeArbService{enabled: false}), http.MethodPost, "/api/scan", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestProcessNewsValidation(t *testing.T) {
	svc := &fakeArbService{enabled: true}
	mux := newTestMux(svc)

	rec := doRequest(t, mux, http.MethodPost, "/api/news", `{"summary":"no headline"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, mux, http.MethodPost, "/api/news", `{"headline":"Fed cuts rates"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, svc.processedNews, 1)
	assert.Equal(t, "Fed cuts rates", svc.processedNews[0])
}

func TestClearSnapshots(t *testing.T) {
	svc := &fakeArbService{enabled: true, cleared: 3}
	rec := doRequest(t, newTestMux(svc), http.MethodDelete, "/api/snapshots?older_than_hours=24", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.InDelta(t, 24, svc.clearedHours, 1e-9)

	var body map[string]int
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 3, body["removed"])
}

func TestClearSnapshotsRejectsBadAge(t *testing.T) {
	rec := doRequest(t, newTestMux(&fakeArbService{}), http.MethodDelete, "/api/snapshots?older_than_hours=nope", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCooldownEndpoints(t *testing.T) {
	svc := &fakeArbService{cooldown: 5 * time.Minute}
	mux := newTestMux(svc)

	rec := doRequest(t, mux, http.MethodGet, "/api/cooldown/evt-1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, true, body["cooldown_active"])
	assert.InDelta(t, 300, body["remaining_seconds"].(float64), 1e-9)

	rec = doRequest(t, mux, http.MethodDelete, "/api/cooldown/evt-1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"evt-1"}, svc.resetEvents)
}

func TestListOpportunitiesInMemoryFallback(t *testing.T) {
	svc := &fakeArbService{
		opps: []domain.Opportunity{
			{ID: "o1", EventID: "evt-1"},
			{ID: "o2", EventID: "evt-2"},
		},
	}
	rec := doRequest(t, newTestMux(svc), http.MethodGet, "/api/opportunities?event_id=evt-2", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Opportunities []domain.Opportunity `json:"opportunities"`
		Count         int                  `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 1, body.Count)
	assert.Equal(t, "o2", body.Opportunities[0].ID)
}

func TestListRunsWithoutStore(t *testing.T) {
	rec := doRequest(t, newTestMux(&fakeArbService{}), http.MethodGet, "/api/runs", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
