package notify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rickkless-King/Fingent/internal/domain"
)

type fakeSender struct {
	name  string
	err   error
	calls int
	title string
}

func (f *fakeSender) Send(_ context.Context, title, _ string) error {
	f.calls++
	f.title = title
	return f.err
}

func (f *fakeSender) Name() string { return f.name }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNotifyFiltersEvents(t *testing.T) {
	s := &fakeSender{name: "fake"}
	n := NewNotifier([]Sender{s}, []string{EventOpportunityConfirmed}, testLogger())

	require.NoError(t, n.Notify(context.Background(), "heartbeat", "t", "m"))
	assert.Equal(t, 0, s.calls)

	require.NoError(t, n.Notify(context.Background(), EventOpportunityConfirmed, "t", "m"))
	assert.Equal(t, 1, s.calls)
}

func TestNotifyEmptyFilterAllowsAll(t *testing.T) {
	s := &fakeSender{name: "fake"}
	n := NewNotifier([]Sender{s}, nil, testLogger())

	require.NoError(t, n.Notify(context.Background(), "anything", "t", "m"))
	assert.Equal(t, 1, s.calls)
}

func TestDispatchCollectsSenderErrors(t *testing.T) {
	ok := &fakeSender{name: "ok"}
	bad := &fakeSender{name: "bad", err: errors.New("boom")}
	n := NewNotifier([]Sender{bad, ok}, nil, testLogger())

	err := n.NotifyAll(context.Background(), "t", "m")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad")
	// A failing sender never blocks the others.
	assert.Equal(t, 1, ok.calls)
}

func TestFormatOpportunity(t *testing.T) {
	opp := domain.Opportunity{
		EventID:    "evt-1",
		DeltaDiff:  0.08,
		Edge:       0.075,
		Confidence: 0.8,
		Legs: []domain.OpportunityLeg{
			{MarketID: "mkt-7d", Question: "Will X happen this week?", TenorDays: 7, Side: domain.ShortLeg, CurrentMid: 0.70, Delta: 0.10},
			{MarketID: "mkt-30d", TenorDays: 30, Side: domain.LongLeg, CurrentMid: 0.52, Delta: 0.02},
		},
	}

	title, message := FormatOpportunity(opp)

	assert.Contains(t, title, "evt-1")
	assert.Contains(t, message, "delta_diff=0.080")
	assert.Contains(t, message, "Will X happen this week?")
}
