package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Rickkless-King/Fingent/internal/server"
	"github.com/Rickkless-King/Fingent/internal/server/handler"
	"github.com/Rickkless-King/Fingent/internal/server/ws"
)

// ScanMode runs one detection cycle and writes the full run result to stdout
// as JSON. It does not start the scheduler or the HTTP server.
func (a *App) ScanMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting scan mode")

	result := deps.Engine.RunFullPipeline(ctx, a.cfg.Pipeline.UseNewsTrigger, a.cfg.Finnhub.Category)

	a.logger.InfoContext(ctx, "scan finished",
		slog.String("run_id", result.ID),
		slog.Int("events_found", result.EventsFound),
		slog.Int("confirmed", result.OpportunitiesConfirmed),
		slog.Int("errors", len(result.Errors)),
	)

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("scan mode: encode result: %w", err)
	}
	fmt.Fprintln(os.Stdout, string(out))
	return nil
}

// DaemonMode runs the scheduled detection loop, plus the HTTP and WebSocket
// API when the server is enabled in config.
func (a *App) DaemonMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting daemon mode",
		slog.Duration("scan_interval", a.cfg.Pipeline.ScanInterval.Duration),
		slog.Bool("server_enabled", a.cfg.Server.Enabled),
	)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := deps.Runner.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("daemon mode: runner: %w", err)
		}
		return nil
	})

	if a.cfg.Server.Enabled {
		a.startHTTPServer(ctx, g, deps)
	}

	return waitGroup(g)
}

// ServerMode runs the HTTP and WebSocket API without the scheduler. Scans run
// only on demand through POST /api/scan and POST /api/news. Cached reference
// prices are restored up front so on-demand scans see the same baselines a
// daemon would.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting server mode",
		slog.Int("port", a.cfg.Server.Port),
	)

	if deps.SnapshotCache != nil {
		if snaps, err := deps.SnapshotCache.All(ctx); err != nil {
			a.logger.WarnContext(ctx, "snapshot restore failed", slog.String("error", err.Error()))
		} else if restored := deps.Engine.RestoreSnapshots(snaps); restored > 0 {
			a.logger.InfoContext(ctx, "restored snapshots from cache", slog.Int("restored", restored))
		}
	}

	g, ctx := errgroup.WithContext(ctx)
	a.startHTTPServer(ctx, g, deps)
	return waitGroup(g)
}

// startHTTPServer adds the API server and WebSocket hub goroutines to the
// given errgroup. The server is shut down gracefully when the context is
// cancelled.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	// The hub streams bus messages to dashboard clients; without a bus there
	// is nothing to bridge and the /ws route is not registered.
	var hub *ws.Hub
	if deps.SignalBus != nil {
		hub = ws.NewHub(deps.SignalBus, a.logger, ws.Config{
			Mode:      a.cfg.Mode,
			StartedAt: time.Now().UTC(),
		})
		g.Go(func() error {
			if err := hub.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("ws hub: %w", err)
			}
			return nil
		})
	}

	srv := server.NewServer(
		server.Config{
			Port:          a.cfg.Server.Port,
			CORSOrigins:   a.cfg.Server.CORSOrigins,
			APIRateLimit:  a.cfg.Server.APIRateLimit,
			RateLimWindow: a.cfg.Server.RateLimitWindow.Duration,
		},
		server.Handlers{
			Health: handler.NewHealthHandler(a.logger),
			Arb:    handler.NewArbHandler(deps.Engine, deps.Opportunities, deps.Runs, a.cfg.Finnhub.Category, a.logger),
		},
		hub,
		deps.RateLimiter,
		a.logger,
	)

	g.Go(srv.Start)
	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
}

// waitGroup normalizes errgroup shutdown: context cancellation is a clean
// exit, anything else propagates.
func waitGroup(g *errgroup.Group) error {
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
