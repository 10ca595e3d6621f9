package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// OpportunityStore persists detected opportunities.
type OpportunityStore interface {
	Insert(ctx context.Context, opp Opportunity) error
	ListRecent(ctx context.Context, limit int) ([]Opportunity, error)
	ListByEvent(ctx context.Context, eventID string, opts ListOpts) ([]Opportunity, error)
}

// RunStore persists pipeline run summaries.
type RunStore interface {
	InsertRun(ctx context.Context, result PipelineResult) error
	ListRecentRuns(ctx context.Context, limit int) ([]PipelineResult, error)
}
