package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Rickkless-King/Fingent/internal/domain"
)

// OpportunityStore implements domain.OpportunityStore using PostgreSQL.
// Legs, evidence, and risk flags are stored as JSONB so the schema survives
// strategy changes without migrations.
type OpportunityStore struct {
	pool *pgxpool.Pool
}

var _ domain.OpportunityStore = (*OpportunityStore)(nil)

// NewOpportunityStore creates a store backed by the given connection pool.
func NewOpportunityStore(pool *pgxpool.Pool) *OpportunityStore {
	return &OpportunityStore{pool: pool}
}

const oppSelectCols = `id, ts, type, event_id, legs, delta_diff, edge,
	confidence, evidence, risk_flags, status`

// Insert stores a detected opportunity.
func (s *OpportunityStore) Insert(ctx context.Context, opp domain.Opportunity) error {
	const query = `
		INSERT INTO opportunities (
			id, ts, type, event_id, legs, delta_diff, edge,
			confidence, evidence, risk_flags, status
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7,
			$8, $9, $10, $11
		)`

	legs, err := json.Marshal(opp.Legs)
	if err != nil {
		return fmt.Errorf("postgres: marshal legs: %w", err)
	}
	evidence, err := json.Marshal(opp.Evidence)
	if err != nil {
		return fmt.Errorf("postgres: marshal evidence: %w", err)
	}
	flags := opp.RiskFlags
	if flags == nil {
		flags = []string{}
	}
	riskFlags, err := json.Marshal(flags)
	if err != nil {
		return fmt.Errorf("postgres: marshal risk flags: %w", err)
	}

	_, err = s.pool.Exec(ctx, query,
		opp.ID, opp.Timestamp, opp.Type, opp.EventID, legs, opp.DeltaDiff, opp.Edge,
		opp.Confidence, evidence, riskFlags, opp.Status,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert opportunity %s: %w", opp.ID, err)
	}
	return nil
}

// ListRecent returns the most recent opportunities ordered by detection time.
func (s *OpportunityStore) ListRecent(ctx context.Context, limit int) ([]domain.Opportunity, error) {
	query := `SELECT ` + oppSelectCols + ` FROM opportunities ORDER BY ts DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT $1"
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list recent opportunities: %w", err)
	}
	defer rows.Close()

	return scanOpportunities(rows)
}

// ListByEvent returns opportunities for one event, newest first.
func (s *OpportunityStore) ListByEvent(ctx context.Context, eventID string, opts domain.ListOpts) ([]domain.Opportunity, error) {
	query := `SELECT ` + oppSelectCols + ` FROM opportunities WHERE event_id = $1`
	args := []any{eventID}

	if opts.Since != nil {
		args = append(args, *opts.Since)
		query += fmt.Sprintf(" AND ts >= $%d", len(args))
	}
	if opts.Until != nil {
		args = append(args, *opts.Until)
		query += fmt.Sprintf(" AND ts < $%d", len(args))
	}
	query += " ORDER BY ts DESC"
	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if opts.Offset > 0 {
		args = append(args, opts.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list opportunities for event %s: %w", eventID, err)
	}
	defer rows.Close()

	return scanOpportunities(rows)
}

func scanOpportunities(rows pgx.Rows) ([]domain.Opportunity, error) {
	var opps []domain.Opportunity
	for rows.Next() {
		var (
			opp       domain.Opportunity
			legs      []byte
			evidence  []byte
			riskFlags []byte
		)
		if err := rows.Scan(
			&opp.ID, &opp.Timestamp, &opp.Type, &opp.EventID, &legs, &opp.DeltaDiff, &opp.Edge,
			&opp.Confidence, &evidence, &riskFlags, &opp.Status,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan opportunity: %w", err)
		}
		if err := json.Unmarshal(legs, &opp.Legs); err != nil {
			return nil, fmt.Errorf("postgres: decode legs for %s: %w", opp.ID, err)
		}
		if err := json.Unmarshal(evidence, &opp.Evidence); err != nil {
			return nil, fmt.Errorf("postgres: decode evidence for %s: %w", opp.ID, err)
		}
		if err := json.Unmarshal(riskFlags, &opp.RiskFlags); err != nil {
			return nil, fmt.Errorf("postgres: decode risk flags for %s: %w", opp.ID, err)
		}
		opps = append(opps, opp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: opportunity rows: %w", err)
	}
	return opps, nil
}
