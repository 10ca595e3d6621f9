// Package pipeline drives the scheduled detection loop: run the engine,
// persist and archive results, and fan confirmed signals out to the bus and
// notifiers.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/Rickkless-King/Fingent/internal/arb"
	"github.com/Rickkless-King/Fingent/internal/domain"
	"github.com/Rickkless-King/Fingent/internal/notify"
)

const (
	// scanLockKey guards the scan cycle so only one process runs it at a time.
	scanLockKey = "pipeline:scan"

	// Bus channels the runner publishes to.
	channelOpportunities = "ch:arb"
	channelStatus        = "ch:status"
)

// RunArchiver uploads a full run result to object storage.
type RunArchiver interface {
	ArchiveRun(ctx context.Context, result domain.PipelineResult) (string, error)
}

// Config holds the runner's scheduling parameters.
type Config struct {
	ScanInterval        time.Duration
	UseNewsTrigger      bool
	NewsCategory        string
	SnapshotMaxAgeHours float64
	LockTTL             time.Duration
}

// Runner executes detection cycles on a ticker. All side-channel
// dependencies (stores, cache, bus, archiver, notifier, locks) are optional;
// a nil dependency disables that concern.
type Runner struct {
	cfg      Config
	engine   *arb.Engine
	opps     domain.OpportunityStore
	runs     domain.RunStore
	cache    domain.SnapshotCache
	bus      domain.SignalBus
	locks    domain.LockManager
	archiver RunArchiver
	notifier *notify.Notifier
	logger   *slog.Logger

	trigger chan struct{}
}

// NewRunner creates a Runner around the detection engine.
func NewRunner(
	cfg Config,
	engine *arb.Engine,
	opps domain.OpportunityStore,
	runs domain.RunStore,
	cache domain.SnapshotCache,
	bus domain.SignalBus,
	locks domain.LockManager,
	archiver RunArchiver,
	notifier *notify.Notifier,
	logger *slog.Logger,
) *Runner {
	if cfg.ScanInterval <= 0 {
		cfg.ScanInterval = time.Minute
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = cfg.ScanInterval
	}
	return &Runner{
		cfg:      cfg,
		engine:   engine,
		opps:     opps,
		runs:     runs,
		cache:    cache,
		bus:      bus,
		locks:    locks,
		archiver: archiver,
		notifier: notifier,
		logger:   logger.With(slog.String("component", "pipeline_runner")),
		trigger:  make(chan struct{}, 1),
	}
}

// Trigger requests one extra cycle outside the schedule. Non-blocking; a
// pending trigger absorbs further requests.
func (r *Runner) Trigger() {
	select {
	case r.trigger <- struct{}{}:
	default:
	}
}

// Run executes cycles until the context is cancelled. The first cycle runs
// immediately.
func (r *Runner) Run(ctx context.Context) error {
	r.restoreSnapshots(ctx)

	r.logger.InfoContext(ctx, "starting",
		slog.Duration("scan_interval", r.cfg.ScanInterval),
		slog.Bool("use_news_trigger", r.cfg.UseNewsTrigger))

	r.RunOnce(ctx)

	ticker := time.NewTicker(r.cfg.ScanInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("stopped")
			return ctx.Err()
		case <-ticker.C:
			r.RunOnce(ctx)
		case <-r.trigger:
			r.RunOnce(ctx)
		}
	}
}

// RunOnce executes a single detection cycle. Errors inside the cycle are
// logged and collected in the run result, never returned.
func (r *Runner) RunOnce(ctx context.Context) {
	if r.locks != nil {
		unlock, err := r.locks.Acquire(ctx, scanLockKey, r.cfg.LockTTL)
		if errors.Is(err, domain.ErrLockHeld) {
			r.logger.InfoContext(ctx, "scan already running elsewhere, skipping cycle")
			return
		}
		if err != nil {
			r.logger.WarnContext(ctx, "lock acquire failed, running unguarded",
				slog.String("error", err.Error()))
		} else {
			defer unlock()
		}
	}

	result := r.engine.RunFullPipeline(ctx, r.cfg.UseNewsTrigger, r.cfg.NewsCategory)

	r.logger.InfoContext(ctx, "cycle finished",
		slog.String("run_id", result.ID),
		slog.Int("news_scanned", result.NewsScanned),
		slog.Int("news_triggered", result.NewsTriggered),
		slog.Int("events_found", result.EventsFound),
		slog.Int("confirmed", result.OpportunitiesConfirmed),
		slog.Int("errors", len(result.Errors)))

	r.persist(ctx, result)
	r.archive(ctx, result)
	r.publish(ctx, result)
	r.notifyConfirmed(ctx, result)
	r.maintainSnapshots(ctx)
}

func (r *Runner) persist(ctx context.Context, result domain.PipelineResult) {
	if r.runs != nil {
		if err := r.runs.InsertRun(ctx, result); err != nil {
			r.logger.ErrorContext(ctx, "persist run failed", slog.String("error", err.Error()))
		}
	}
	if r.opps == nil {
		return
	}
	for _, opp := range result.Opportunities {
		if err := r.opps.Insert(ctx, opp); err != nil {
			r.logger.ErrorContext(ctx, "persist opportunity failed",
				slog.String("opportunity_id", opp.ID),
				slog.String("error", err.Error()))
		}
	}
}

func (r *Runner) archive(ctx context.Context, result domain.PipelineResult) {
	if r.archiver == nil {
		return
	}
	if _, err := r.archiver.ArchiveRun(ctx, result); err != nil {
		r.logger.ErrorContext(ctx, "archive run failed", slog.String("error", err.Error()))
	}
}

func (r *Runner) publish(ctx context.Context, result domain.PipelineResult) {
	if r.bus == nil {
		return
	}

	for _, opp := range result.Opportunities {
		payload, err := json.Marshal(map[string]any{"type": "opportunity", "payload": opp})
		if err != nil {
			continue
		}
		if err := r.bus.Publish(ctx, channelOpportunities, payload); err != nil {
			r.logger.WarnContext(ctx, "publish opportunity failed", slog.String("error", err.Error()))
		}
	}

	summary := result
	summary.Opportunities = nil
	payload, err := json.Marshal(map[string]any{"type": "run", "payload": summary})
	if err != nil {
		return
	}
	if err := r.bus.Publish(ctx, channelStatus, payload); err != nil {
		r.logger.WarnContext(ctx, "publish run status failed", slog.String("error", err.Error()))
	}
}

func (r *Runner) notifyConfirmed(ctx context.Context, result domain.PipelineResult) {
	if r.notifier == nil {
		return
	}
	for _, opp := range result.Opportunities {
		if opp.Status != domain.StatusConfirmed {
			continue
		}
		title, message := notify.FormatOpportunity(opp)
		if err := r.notifier.Notify(ctx, notify.EventOpportunityConfirmed, title, message); err != nil {
			r.logger.WarnContext(ctx, "notify failed", slog.String("error", err.Error()))
		}
	}
}

// maintainSnapshots evicts stale reference prices and mirrors the live set
// to the cache so a restart keeps the same p0 values.
func (r *Runner) maintainSnapshots(ctx context.Context) {
	if r.cfg.SnapshotMaxAgeHours > 0 {
		if removed := r.engine.ClearSnapshots(r.cfg.SnapshotMaxAgeHours); removed > 0 {
			r.logger.InfoContext(ctx, "evicted stale snapshots", slog.Int("removed", removed))
		}
	}

	if r.cache == nil {
		return
	}
	for _, snap := range r.engine.Snapshots() {
		if err := r.cache.Set(ctx, snap); err != nil {
			r.logger.WarnContext(ctx, "snapshot cache write failed",
				slog.String("market_id", snap.MarketID),
				slog.String("error", err.Error()))
			return
		}
	}
}

func (r *Runner) restoreSnapshots(ctx context.Context) {
	if r.cache == nil {
		return
	}
	snaps, err := r.cache.All(ctx)
	if err != nil {
		r.logger.WarnContext(ctx, "snapshot restore failed", slog.String("error", err.Error()))
		return
	}
	if restored := r.engine.RestoreSnapshots(snaps); restored > 0 {
		r.logger.InfoContext(ctx, "restored snapshots from cache", slog.Int("restored", restored))
	}
}
