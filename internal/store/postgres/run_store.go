package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Rickkless-King/Fingent/internal/domain"
)

// RunStore implements domain.RunStore using PostgreSQL. Run summaries keep
// only counters and errors; the confirmed opportunities themselves live in
// the opportunities table.
type RunStore struct {
	pool *pgxpool.Pool
}

var _ domain.RunStore = (*RunStore)(nil)

// NewRunStore creates a store backed by the given connection pool.
func NewRunStore(pool *pgxpool.Pool) *RunStore {
	return &RunStore{pool: pool}
}

// InsertRun stores a pipeline run summary.
func (s *RunStore) InsertRun(ctx context.Context, result domain.PipelineResult) error {
	const query = `
		INSERT INTO pipeline_runs (
			id, ts, enabled, news_scanned, news_triggered,
			events_found, opportunities_raw, opportunities_confirmed, errors
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9
		)`

	errsList := result.Errors
	if errsList == nil {
		errsList = []string{}
	}
	errsJSON, err := json.Marshal(errsList)
	if err != nil {
		return fmt.Errorf("postgres: marshal run errors: %w", err)
	}

	_, err = s.pool.Exec(ctx, query,
		result.ID, result.Timestamp, result.Enabled, result.NewsScanned, result.NewsTriggered,
		result.EventsFound, result.OpportunitiesRaw, result.OpportunitiesConfirmed, errsJSON,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert run %s: %w", result.ID, err)
	}
	return nil
}

// ListRecentRuns returns the most recent run summaries, newest first.
func (s *RunStore) ListRecentRuns(ctx context.Context, limit int) ([]domain.PipelineResult, error) {
	query := `
		SELECT id, ts, enabled, news_scanned, news_triggered,
			events_found, opportunities_raw, opportunities_confirmed, errors
		FROM pipeline_runs ORDER BY ts DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT $1"
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list recent runs: %w", err)
	}
	defer rows.Close()

	var runs []domain.PipelineResult
	for rows.Next() {
		var (
			run      domain.PipelineResult
			errsJSON []byte
		)
		if err := rows.Scan(
			&run.ID, &run.Timestamp, &run.Enabled, &run.NewsScanned, &run.NewsTriggered,
			&run.EventsFound, &run.OpportunitiesRaw, &run.OpportunitiesConfirmed, &errsJSON,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan run: %w", err)
		}
		if err := json.Unmarshal(errsJSON, &run.Errors); err != nil {
			return nil, fmt.Errorf("postgres: decode run errors for %s: %w", run.ID, err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: run rows: %w", err)
	}
	return runs, nil
}
