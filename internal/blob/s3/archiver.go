package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/Rickkless-King/Fingent/internal/domain"
)

// RunArchiver uploads full pipeline run results to object storage, one JSON
// document per run, partitioned by date:
//
//	runs/2026/08/31/run-20260831T143000Z.json
//
// The database keeps only run counters; the archive holds the complete
// result including confirmed opportunities and their evidence.
type RunArchiver struct {
	writer domain.BlobWriter
	logger *slog.Logger
}

// NewRunArchiver creates a RunArchiver writing through the given blob writer.
func NewRunArchiver(writer domain.BlobWriter, logger *slog.Logger) *RunArchiver {
	return &RunArchiver{
		writer: writer,
		logger: logger.With(slog.String("component", "run_archiver")),
	}
}

// ArchiveRun uploads one run result and returns the object key it was
// written to.
func (a *RunArchiver) ArchiveRun(ctx context.Context, result domain.PipelineResult) (string, error) {
	ts := result.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return "", fmt.Errorf("s3blob: marshal run %s: %w", result.ID, err)
	}

	path := runPath(ts)
	if err := a.writer.Put(ctx, path, bytes.NewReader(data), "application/json"); err != nil {
		return "", fmt.Errorf("s3blob: archive run %s: %w", result.ID, err)
	}

	a.logger.InfoContext(ctx, "archived pipeline run",
		slog.String("run_id", result.ID),
		slog.String("path", path),
		slog.Int("bytes", len(data)))
	return path, nil
}

// runPath builds the object key for a run, partitioned by date.
func runPath(ts time.Time) string {
	ts = ts.UTC()
	return fmt.Sprintf("runs/%04d/%02d/%02d/run-%s.json",
		ts.Year(), int(ts.Month()), ts.Day(), ts.Format("20060102T150405Z"))
}
